package scheduler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/store"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/alert"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/classify"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/item"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/topics"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestScheduler(t *testing.T, st *store.SQLiteStore, alerts *alert.Manager, interval time.Duration) *Scheduler {
	t.Helper()
	engine := classify.NewEngine(st, classify.NewLexiconScorer(nil), nil, classify.EngineOpts{})
	agg := topics.NewAggregator(st, topics.Builtin(), nil)
	return New(st, engine, agg, alerts, interval, 0, nil)
}

func TestRunExecutesBothStagesThenStops(t *testing.T) {
	st := newTestStore(t)
	sched := newTestScheduler(t, st, nil, time.Hour)

	for _, it := range []item.Item{
		{ID: "p1", Type: item.TypePost, CreatedUTC: 1704103200, Title: "tuition thread", Body: "tuition is out of control"},
		{ID: "c1", Type: item.TypeComment, CreatedUTC: 1704103260, Body: "the dorm is falling apart"},
	} {
		it := it
		_, err := st.InsertItem(context.Background(), &it)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	// The first cycle runs immediately, classification before aggregation.
	require.Eventually(t, func() bool {
		rows, err := st.ListTermMentions(context.Background(), store.TermMentionOpts{})
		return err == nil && len(rows) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	keys, err := st.ClassifiedKeys(context.Background())
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}

func TestRunRepeatsOnInterval(t *testing.T) {
	st := newTestStore(t)
	sched := newTestScheduler(t, st, nil, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	// Seed after the first pass so only a later cycle can pick it up.
	it := item.Item{ID: "c9", Type: item.TypeComment, CreatedUTC: 1704103200, Body: "rent is due"}
	_, err := st.InsertItem(context.Background(), &it)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		keys, err := st.ClassifiedKeys(context.Background())
		return err == nil && len(keys) == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestRunOnceSendsAlertWhenContentFlagged(t *testing.T) {
	st := newTestStore(t)

	it := item.Item{ID: "c1", Type: item.TypeComment, CreatedUTC: 1704103200, Body: "you people are vermin", Subreddit: "nyu"}
	_, err := st.InsertItem(context.Background(), &it)
	require.NoError(t, err)

	var (
		mu        sync.Mutex
		calls     int
		sig       string
		payload   alert.Notification
		decodeErr error
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		sig = r.Header.Get("X-Signature-256")
		decodeErr = json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer ts.Close()

	alerts := alert.NewManager([]alert.Notifier{alert.NewWebhook(ts.URL, "sekrit")})
	engine := classify.NewEngine(st, classify.NewLexiconScorer(nil), nil, classify.EngineOpts{})
	agg := topics.NewAggregator(st, topics.Builtin(), nil)

	New(st, engine, agg, alerts, time.Hour, 0.2, nil).runOnce(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.NoError(t, decodeErr)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, payload.Flagged)
	assert.Equal(t, 0.2, payload.Threshold)
	require.Len(t, payload.Items, 1)
	assert.Equal(t, "c1", payload.Items[0].ID)
	assert.True(t, strings.HasPrefix(sig, "sha256="), "signed payload")
}

func TestRunOnceNoAlertWithoutFlags(t *testing.T) {
	st := newTestStore(t)

	it := item.Item{ID: "c1", Type: item.TypeComment, CreatedUTC: 1704103200, Body: "the library is lovely"}
	_, err := st.InsertItem(context.Background(), &it)
	require.NoError(t, err)

	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer ts.Close()

	alerts := alert.NewManager([]alert.Notifier{alert.NewWebhook(ts.URL, "")})
	engine := classify.NewEngine(st, classify.NewLexiconScorer(nil), nil, classify.EngineOpts{})
	agg := topics.NewAggregator(st, topics.Builtin(), nil)

	New(st, engine, agg, alerts, time.Hour, 0.2, nil).runOnce(context.Background())

	assert.Equal(t, 0, calls)
}

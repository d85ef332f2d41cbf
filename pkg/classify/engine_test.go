package classify

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/store"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/item"
)

type stubScorer struct {
	scoreFn func(text string) Score
	err     error
	calls   int
	seen    []string
}

func (s *stubScorer) Name() string { return "stub" }

func (s *stubScorer) ScoreBatch(ctx context.Context, texts []string) ([]Score, error) {
	s.calls++
	s.seen = append(s.seen, texts...)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Score, len(texts))
	for i, t := range texts {
		out[i] = s.scoreFn(t)
	}
	return out, nil
}

func keywordScorer(hot string, hate float64) *stubScorer {
	return &stubScorer{scoreFn: func(text string) Score {
		if strings.Contains(text, hot) {
			return Score{NonHate: 1 - hate, HateSpeech: hate}
		}
		return Score{NonHate: 0.99, HateSpeech: 0.01}
	}}
}

type flakyStore struct {
	store.Store
	failAfter int
	upserts   int
}

func (f *flakyStore) UpsertClassification(ctx context.Context, c *store.Classification) error {
	f.upserts++
	if f.upserts > f.failAfter {
		return errors.New("disk full")
	}
	return f.Store.UpsertClassification(ctx, c)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, st store.Store, items ...item.Item) {
	t.Helper()
	ctx := context.Background()
	for i := range items {
		_, err := st.InsertItem(ctx, &items[i])
		require.NoError(t, err)
	}
}

func post(id, title, body string) item.Item {
	return item.Item{ID: id, Type: item.TypePost, Title: title, Body: body, CreatedUTC: 1700000000, Subreddit: "nyu"}
}

func comment(id, body string) item.Item {
	return item.Item{ID: id, Type: item.TypeComment, Body: body, CreatedUTC: 1700000100, Subreddit: "nyu"}
}

func classificationByID(t *testing.T, st store.Store, id string) store.ClassifiedItem {
	t.Helper()
	rows, err := st.ListClassified(context.Background(), store.ClassifiedOpts{Limit: 1000})
	require.NoError(t, err)
	for _, r := range rows {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("no classification for %s", id)
	return store.ClassifiedItem{}
}

func TestRunClassifiesAndPersists(t *testing.T) {
	st := newTestStore(t)
	seed(t, st,
		post("p1", "campus news", "i hate this place, racism everywhere"),
		post("p2", "Controversial Take", "[removed]"),
		comment("c1", "perfectly normal comment"),
		comment("c2", "[deleted]"),
		comment("c3", "https://only-a-link.example.com"),
	)

	scorer := keywordScorer("racism", 0.75)
	eng := NewEngine(st, scorer, nil, EngineOpts{})

	sum, err := eng.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 5, sum.Processed)
	assert.Equal(t, 2, sum.Scored)
	assert.Equal(t, 3, sum.Degenerate)
	assert.Equal(t, 1, sum.Flagged)
	assert.Equal(t, 0, sum.Skipped)
	assert.NotEmpty(t, sum.RunID)

	hot := classificationByID(t, st, "p1")
	assert.InDelta(t, 0.75, hot.HateSpeech, 1e-9)
	assert.InDelta(t, 0.25, hot.NonHate, 1e-9)
	assert.Contains(t, hot.TextCleaned, "racism")
	assert.True(t, Flagged(hot.HateSpeech, DefaultThreshold))

	removed := classificationByID(t, st, "p2")
	assert.True(t, removed.IsRemoved)
	assert.Zero(t, removed.HateSpeech, "sentinel items are never scored")
	assert.Equal(t, "controversial take", removed.TextCleaned, "title is kept for audit")

	deleted := classificationByID(t, st, "c2")
	assert.True(t, deleted.IsDeleted)
	assert.Zero(t, deleted.HateSpeech)

	empty := classificationByID(t, st, "c3")
	assert.True(t, empty.IsEmpty)
	assert.Zero(t, empty.HateSpeech)
}

func TestRunSkipsAlreadyClassified(t *testing.T) {
	st := newTestStore(t)
	seed(t, st,
		post("p1", "title", "plain body"),
		comment("c1", "plain comment"),
	)

	eng := NewEngine(st, keywordScorer("never", 0.9), nil, EngineOpts{})
	_, err := eng.Run(context.Background(), false)
	require.NoError(t, err)

	before := classificationByID(t, st, "p1")

	sum, err := eng.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Skipped)
	assert.Zero(t, sum.Processed)

	after := classificationByID(t, st, "p1")
	assert.Equal(t, before.ClassifiedAt, after.ClassifiedAt, "unforced rerun must not touch rows")
	assert.Equal(t, before.HateSpeech, after.HateSpeech)
}

func TestRunForceRescores(t *testing.T) {
	st := newTestStore(t)
	seed(t, st, comment("c1", "the model changed its mind"))

	eng := NewEngine(st, keywordScorer("model", 0.10), nil, EngineOpts{})
	_, err := eng.Run(context.Background(), false)
	require.NoError(t, err)
	assert.InDelta(t, 0.10, classificationByID(t, st, "c1").HateSpeech, 1e-9)

	eng = NewEngine(st, keywordScorer("model", 0.80), nil, EngineOpts{})
	sum, err := eng.Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Scored)
	assert.Zero(t, sum.Skipped)
	assert.InDelta(t, 0.80, classificationByID(t, st, "c1").HateSpeech, 1e-9)
}

func TestRunBatchesByConfiguredSize(t *testing.T) {
	st := newTestStore(t)
	seed(t, st,
		comment("c1", "one"), comment("c2", "two"), comment("c3", "three"),
		comment("c4", "four"), comment("c5", "five"),
	)

	scorer := keywordScorer("never", 0.9)
	eng := NewEngine(st, scorer, nil, EngineOpts{BatchSize: 2})
	sum, err := eng.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 5, sum.Scored)
	assert.Equal(t, 3, scorer.calls, "5 items at batch size 2")
}

func TestRunDeobfuscatesScorerInputOnly(t *testing.T) {
	st := newTestStore(t)
	seed(t, st, comment("c1", "this place is a$$"))

	scorer := keywordScorer("never", 0.9)
	eng := NewEngine(st, scorer, nil, EngineOpts{})
	_, err := eng.Run(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, scorer.seen, 1)
	assert.Equal(t, "this place is ass", scorer.seen[0], "scorer sees de-obfuscated text")
	assert.Equal(t, "this place is a$$", classificationByID(t, st, "c1").TextCleaned,
		"stored text keeps the original spelling")
}

func TestRunScorerFailureSkipsBatchAndRetriesNextRun(t *testing.T) {
	st := newTestStore(t)
	seed(t, st,
		comment("c1", "scorable one"),
		comment("c2", "scorable two"),
		comment("c3", "[deleted]"),
	)

	broken := &stubScorer{err: errors.New("inference down")}
	eng := NewEngine(st, broken, nil, EngineOpts{})
	sum, err := eng.Run(context.Background(), false)
	require.NoError(t, err, "scorer failure must not abort the run")
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, 1, sum.Degenerate, "degenerate items still persist")
	assert.Zero(t, sum.Scored)

	keys, err := st.ClassifiedKeys(context.Background())
	require.NoError(t, err)
	assert.Len(t, keys, 1, "failed items must not get rows")

	eng = NewEngine(st, keywordScorer("never", 0.9), nil, EngineOpts{})
	sum, err = eng.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Scored, "failed items are picked up next run")
	assert.Equal(t, 1, sum.Skipped)
}

func TestRunStoreWriteErrorAborts(t *testing.T) {
	st := newTestStore(t)
	seed(t, st,
		comment("c1", "first"),
		comment("c2", "second"),
		comment("c3", "third"),
	)

	flaky := &flakyStore{Store: st, failAfter: 1}
	eng := NewEngine(flaky, keywordScorer("never", 0.9), nil, EngineOpts{})
	sum, err := eng.Run(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, sum.Processed, "rows before the failure stay committed")
}

func TestRunDegenerateNeverReachesScorer(t *testing.T) {
	st := newTestStore(t)
	seed(t, st,
		comment("c1", "[deleted]"),
		comment("c2", "[removed]"),
		post("p1", "", ""),
	)

	scorer := keywordScorer("never", 0.9)
	eng := NewEngine(st, scorer, nil, EngineOpts{})
	sum, err := eng.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Degenerate)
	assert.Zero(t, scorer.calls)
}

func TestFlaggedThresholdMonotonic(t *testing.T) {
	st := newTestStore(t)
	seed(t, st,
		comment("low", "mild text"),
		comment("mid", "medium heat text"),
		comment("high", "maximum heat text"),
	)

	scorer := &stubScorer{scoreFn: func(text string) Score {
		switch {
		case strings.Contains(text, "maximum"):
			return Score{NonHate: 0.2, HateSpeech: 0.8}
		case strings.Contains(text, "medium"):
			return Score{NonHate: 0.7, HateSpeech: 0.3}
		default:
			return Score{NonHate: 0.95, HateSpeech: 0.05}
		}
	}}
	eng := NewEngine(st, scorer, nil, EngineOpts{})
	_, err := eng.Run(context.Background(), false)
	require.NoError(t, err)

	ctx := context.Background()
	loose, err := st.ListClassified(ctx, store.ClassifiedOpts{MinHate: 0.1})
	require.NoError(t, err)
	strict, err := st.ListClassified(ctx, store.ClassifiedOpts{MinHate: 0.5})
	require.NoError(t, err)

	require.Len(t, loose, 2)
	require.Len(t, strict, 1)
	looseIDs := map[string]bool{}
	for _, r := range loose {
		looseIDs[r.ID] = true
	}
	for _, r := range strict {
		assert.True(t, looseIDs[r.ID], "lower threshold must flag a superset")
	}
}

func TestLexiconScorerDeterministicAndBounded(t *testing.T) {
	s := NewLexiconScorer(nil)
	ctx := context.Background()

	texts := []string{
		"what a lovely day on campus",
		"you are all vermin and scum, kill yourself",
		"this is stupid",
	}
	first, err := s.ScoreBatch(ctx, texts)
	require.NoError(t, err)
	second, err := s.ScoreBatch(ctx, texts)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Zero(t, first[0].HateSpeech)
	assert.Greater(t, first[1].HateSpeech, first[2].HateSpeech)
	for _, sc := range first {
		assert.GreaterOrEqual(t, sc.HateSpeech, 0.0)
		assert.Less(t, sc.HateSpeech, 1.0)
		assert.InDelta(t, 1.0, sc.NonHate+sc.HateSpeech, 1e-9)
	}
}

func TestLexiconScorerExtraWeights(t *testing.T) {
	s := NewLexiconScorer(map[string]float64{"Blorbo": 0.9})
	scores, err := s.ScoreBatch(context.Background(), []string{"blorbo strikes again"})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, scores[0].HateSpeech, 1e-9)
}

package alert

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/store"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/item"
)

func sampleNotification() *Notification {
	return &Notification{
		RunID:     "run-1",
		Threshold: 0.2,
		Flagged:   2,
		Items: []store.ClassifiedItem{
			{
				Classification: store.Classification{
					ID:          "c1",
					ItemType:    item.TypeComment,
					TextCleaned: "flagged text",
					NonHate:     0.16,
					HateSpeech:  0.84,
				},
				Subreddit: "nyu",
				Permalink: "/r/nyu/comments/abc/x/",
			},
		},
	}
}

type capturedRequest struct {
	body   []byte
	header http.Header
}

func captureServer(t *testing.T, status int) (*httptest.Server, *capturedRequest) {
	t.Helper()
	cap := &capturedRequest{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cap.body, _ = io.ReadAll(r.Body)
		cap.header = r.Header.Clone()
		w.WriteHeader(status)
	}))
	t.Cleanup(ts.Close)
	return ts, cap
}

func TestWebhookSignsPayload(t *testing.T) {
	ts, cap := captureServer(t, http.StatusOK)

	err := NewWebhook(ts.URL, "s3cret").Send(context.Background(), sampleNotification())
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(cap.body)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, cap.header.Get("X-Signature-256"))
	assert.Equal(t, "application/json", cap.header.Get("Content-Type"))

	var got Notification
	require.NoError(t, json.Unmarshal(cap.body, &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 2, got.Flagged)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "c1", got.Items[0].ID)
}

func TestWebhookWithoutSecretSkipsSignature(t *testing.T) {
	ts, cap := captureServer(t, http.StatusOK)

	err := NewWebhook(ts.URL, "").Send(context.Background(), sampleNotification())
	require.NoError(t, err)
	assert.Empty(t, cap.header.Get("X-Signature-256"))
}

func TestWebhookErrorStatus(t *testing.T) {
	ts, _ := captureServer(t, http.StatusInternalServerError)

	err := NewWebhook(ts.URL, "").Send(context.Background(), sampleNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook status 500")
}

func TestSlackBuildsBlocks(t *testing.T) {
	ts, cap := captureServer(t, http.StatusOK)

	err := NewSlack(ts.URL).Send(context.Background(), sampleNotification())
	require.NoError(t, err)

	body := string(cap.body)
	assert.Contains(t, body, "2 items flagged for review")
	assert.Contains(t, body, "run-1")
	assert.Contains(t, body, "r/nyu")
	assert.Contains(t, body, "https://reddit.com/r/nyu/comments/abc/x/")
}

func TestDiscordBuildsEmbed(t *testing.T) {
	ts, cap := captureServer(t, http.StatusOK)

	err := NewDiscord(ts.URL).Send(context.Background(), sampleNotification())
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(cap.body, &payload))
	embeds := payload["embeds"].([]any)
	require.Len(t, embeds, 1)
	embed := embeds[0].(map[string]any)
	assert.Contains(t, embed["title"], "flagged for review")
	assert.Contains(t, embed["description"], "run-1")
	assert.Contains(t, embed["description"], "0.840")
}

type stubNotifier struct {
	name string
	err  error
	sent int
}

func (s *stubNotifier) Name() string { return s.name }

func (s *stubNotifier) Send(ctx context.Context, n *Notification) error {
	s.sent++
	return s.err
}

func TestBroadcastContinuesPastFailures(t *testing.T) {
	bad := &stubNotifier{name: "bad", err: assert.AnError}
	good := &stubNotifier{name: "good"}
	m := NewManager([]Notifier{bad, good})

	err := m.Broadcast(context.Background(), sampleNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad:")
	assert.Equal(t, 1, bad.sent)
	assert.Equal(t, 1, good.sent)
}

func TestHasNotifiers(t *testing.T) {
	assert.False(t, NewManager(nil).HasNotifiers())
	assert.True(t, NewManager([]Notifier{&stubNotifier{name: "x"}}).HasNotifiers())
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", excerpt("short", 10))
	assert.Equal(t, "0123456789...", excerpt("0123456789abcdef", 10))
}

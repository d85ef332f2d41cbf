package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Slack sends notifications via Slack incoming webhook.
type Slack struct {
	client     *http.Client
	webhookURL string
}

// NewSlack creates a new Slack notifier.
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, n *Notification) error {
	// Build Slack Block Kit message.
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type": "plain_text",
				"text": fmt.Sprintf("⚠️ %d items flagged for review", n.Flagged),
			},
		},
		{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Run:* %s | *Threshold:* %.2f", n.RunID, n.Threshold),
			},
		},
	}

	// Preview the worst offenders.
	if len(n.Items) > 0 {
		limit := 5
		if len(n.Items) < limit {
			limit = len(n.Items)
		}
		var elements []map[string]any
		for _, it := range n.Items[:limit] {
			text := fmt.Sprintf("r/%s %.3f: %s", it.Subreddit, it.HateSpeech, excerpt(it.TextCleaned, 120))
			if url := itemURL(it); url != "" {
				text = fmt.Sprintf("<%s|r/%s> %.3f: %s", url, it.Subreddit, it.HateSpeech, excerpt(it.TextCleaned, 120))
			}
			elements = append(elements, map[string]any{
				"type": "mrkdwn",
				"text": text,
			})
		}
		blocks = append(blocks, map[string]any{
			"type":     "context",
			"elements": elements,
		})
	}

	payload := map[string]any{"blocks": blocks}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook status %d", resp.StatusCode)
	}

	return nil
}

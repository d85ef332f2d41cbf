package item

import (
	"encoding/json"
	"time"
)

// Envelope is the raw JSON payload stored alongside every item. The
// collectors wrote these with many optional fields, so everything
// nested is a pointer and extraction falls back to explicit defaults
// instead of failing.
type Envelope struct {
	ID         string  `json:"id"`
	Type       Type    `json:"type"`
	Subreddit  string  `json:"subreddit"`
	Author     *string `json:"author"`
	CreatedUTC float64 `json:"created_utc"`
	Timestamp  string  `json:"timestamp"`
	Score      int     `json:"score"`
	Raw        RawData `json:"raw_data"`
}

// RawData carries the platform-specific payload fields.
type RawData struct {
	Title       *string  `json:"title,omitempty"`
	Body        *string  `json:"body,omitempty"`
	URL         *string  `json:"url,omitempty"`
	Permalink   *string  `json:"permalink,omitempty"`
	NumComments *int     `json:"num_comments,omitempty"`
	UpvoteRatio *float64 `json:"upvote_ratio,omitempty"`
	ParentID    *string  `json:"parent_id,omitempty"`
	LinkID      *string  `json:"link_id,omitempty"`
}

func strOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// Item converts an envelope into the standardized item shape,
// re-marshalling itself into RawJSON so the store keeps the full
// payload verbatim.
func (e *Envelope) Item() Item {
	it := Item{
		ID:          e.ID,
		Type:        e.Type,
		Author:      strOr(e.Author, ""),
		CreatedUTC:  int64(e.CreatedUTC),
		Title:       strOr(e.Raw.Title, ""),
		Body:        strOr(e.Raw.Body, ""),
		Score:       e.Score,
		NumComments: intOr(e.Raw.NumComments, 0),
		URL:         strOr(e.Raw.URL, ""),
		Permalink:   strOr(e.Raw.Permalink, ""),
		Subreddit:   e.Subreddit,
		ParentID:    strOr(e.Raw.ParentID, ""),
		LinkID:      strOr(e.Raw.LinkID, ""),
		Timestamp:   e.Timestamp,
	}
	if it.Timestamp == "" {
		it.Timestamp = it.CreatedAt().Format(time.RFC3339)
	}
	raw, err := json.Marshal(e)
	if err == nil {
		it.RawJSON = string(raw)
	}
	return it
}

// NewEnvelope builds an envelope from an item, used when importing
// from formats that do not carry the raw payload themselves.
func NewEnvelope(it *Item) Envelope {
	e := Envelope{
		ID:         it.ID,
		Type:       it.Type,
		Subreddit:  it.Subreddit,
		CreatedUTC: float64(it.CreatedUTC),
		Timestamp:  it.Timestamp,
		Score:      it.Score,
	}
	if e.Timestamp == "" {
		e.Timestamp = it.CreatedAt().Format(time.RFC3339)
	}
	if it.Author != "" {
		e.Author = &it.Author
	}
	if it.Type == TypePost {
		e.Raw.Title = &it.Title
		if it.URL != "" {
			e.Raw.URL = &it.URL
		}
		if it.Permalink != "" {
			e.Raw.Permalink = &it.Permalink
		}
		if it.NumComments > 0 {
			e.Raw.NumComments = &it.NumComments
		}
	}
	e.Raw.Body = &it.Body
	if it.Type == TypeComment {
		if it.ParentID != "" {
			e.Raw.ParentID = &it.ParentID
		}
		if it.LinkID != "" {
			e.Raw.LinkID = &it.LinkID
		}
	}
	return e
}

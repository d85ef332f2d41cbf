package item

import (
	"fmt"
	"time"
)

// Type identifies whether an item is a post or a comment.
type Type string

const (
	TypePost    Type = "post"
	TypeComment Type = "comment"
)

// Item is the standardized data model for ingested Reddit content.
// Posts and comments share one struct; type-specific fields are zero
// for the other kind.
type Item struct {
	ID          string `db:"id"`
	Type        Type   `db:"item_type"`
	Author      string `db:"author"`
	CreatedUTC  int64  `db:"created_utc"`
	Title       string `db:"title"`
	Body        string `db:"body"`
	Score       int    `db:"score"`
	NumComments int    `db:"num_comments"`
	URL         string `db:"url"`
	Permalink   string `db:"permalink"`
	Subreddit   string `db:"subreddit"`
	ParentID    string `db:"parent_id"`
	LinkID      string `db:"link_id"`
	RawJSON     string `db:"raw_json"`
	Timestamp   string `db:"timestamp"`
}

// Key is the logical identity of an item: ids are only guaranteed
// unique within one item type.
type Key struct {
	ID   string
	Type Type
}

func (it *Item) Key() Key {
	return Key{ID: it.ID, Type: it.Type}
}

// CreatedAt returns the creation time in UTC.
func (it *Item) CreatedAt() time.Time {
	return time.Unix(it.CreatedUTC, 0).UTC()
}

// Day returns the UTC calendar day (YYYY-MM-DD) the item was created on.
func (it *Item) Day() string {
	return it.CreatedAt().Format("2006-01-02")
}

// AllTypes returns both item types.
func AllTypes() []Type {
	return []Type{TypePost, TypeComment}
}

// ParseType validates a user-supplied item type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypePost, TypeComment:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown item type %q (want post or comment)", s)
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/item"
)

// Classification is one row of toxicity_classifications.
type Classification struct {
	ID           string    `db:"id" json:"id"`
	ItemType     item.Type `db:"item_type" json:"item_type"`
	TextCleaned  string    `db:"text_cleaned" json:"text_cleaned"`
	IsDeleted    bool      `db:"is_deleted" json:"is_deleted"`
	IsRemoved    bool      `db:"is_removed" json:"is_removed"`
	IsEmpty      bool      `db:"is_empty" json:"is_empty"`
	NonHate      float64   `db:"non_hate" json:"non_hate"`
	HateSpeech   float64   `db:"hate_speech" json:"hate_speech"`
	ClassifiedAt string    `db:"classification_timestamp" json:"classification_timestamp"`
}

// ClassifiedItem joins a classification with the item's metadata for
// review surfaces.
type ClassifiedItem struct {
	Classification
	Author     string `db:"author" json:"author"`
	Subreddit  string `db:"subreddit" json:"subreddit"`
	CreatedUTC int64  `db:"created_utc" json:"created_utc"`
	Score      int    `db:"score" json:"score"`
	Permalink  string `db:"permalink" json:"permalink"`
}

// TermMention is one row of topic_mentions_daily.
type TermMention struct {
	Term     string    `db:"term" json:"term"`
	Day      string    `db:"day" json:"day"`
	Count    int       `db:"count" json:"count"`
	ItemType item.Type `db:"item_type" json:"item_type"`
}

// CategoryMention is one row of topic_mentions_cat_daily.
type CategoryMention struct {
	Category string `db:"category" json:"category"`
	Term     string `db:"term" json:"term"`
	Day      string `db:"day" json:"day"`
	Count    int    `db:"count" json:"count"`
}

// ClassifiedOpts filters ListClassified.
type ClassifiedOpts struct {
	MinHate float64
	Types   []item.Type
	Since   time.Time
	Until   time.Time
	Limit   int
}

// TermMentionOpts filters ListTermMentions. From and To are inclusive
// YYYY-MM-DD day bounds; empty means unbounded.
type TermMentionOpts struct {
	From  string
	To    string
	Terms []string
	Types []item.Type
	Limit int
}

// CategoryMentionOpts filters ListCategoryMentions.
type CategoryMentionOpts struct {
	Category string
	Terms    []string
	From     string
	To       string
	Limit    int
}

// Counts summarizes table sizes for the stats surface.
type Counts struct {
	Posts        int `json:"posts"`
	Comments     int `json:"comments"`
	Classified   int `json:"classified"`
	Flagged      int `json:"flagged"`
	TermRows     int `json:"term_mention_rows"`
	CategoryRows int `json:"category_mention_rows"`
	PipelineRuns int `json:"pipeline_runs"`
}

// Store is the persistence interface for the pipeline.
type Store interface {
	InsertItem(ctx context.Context, it *item.Item) (bool, error)
	ListItems(ctx context.Context, types ...item.Type) ([]item.Item, error)
	CountItems(ctx context.Context) (map[item.Type]int, error)

	ClassifiedKeys(ctx context.Context) (map[item.Key]struct{}, error)
	UpsertClassification(ctx context.Context, c *Classification) error
	ListClassified(ctx context.Context, opts ClassifiedOpts) ([]ClassifiedItem, error)

	ReplaceMentions(ctx context.Context, terms []TermMention, cats []CategoryMention) error
	ListTermMentions(ctx context.Context, opts TermMentionOpts) ([]TermMention, error)
	ListCategoryMentions(ctx context.Context, opts CategoryMentionOpts) ([]CategoryMention, error)

	BeginRun(ctx context.Context, stage string) (string, error)
	FinishRun(ctx context.Context, runID string, processed, skipped int, runErr error) error

	Summary(ctx context.Context, threshold float64) (Counts, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertItem writes an item into posts or comments. Items are
// immutable once ingested: a duplicate id is ignored and reported as
// not inserted.
func (s *SQLiteStore) InsertItem(ctx context.Context, it *item.Item) (bool, error) {
	var res sql.Result
	var err error

	switch it.Type {
	case item.TypePost:
		res, err = s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO posts (id, author, created_utc, title, body, score, num_comments, url, permalink, subreddit, raw_json, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, it.ID, it.Author, it.CreatedUTC, it.Title, it.Body, it.Score,
			it.NumComments, it.URL, it.Permalink, it.Subreddit, it.RawJSON, it.Timestamp)
	case item.TypeComment:
		res, err = s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO comments (id, parent_id, link_id, author, created_utc, body, score, subreddit, raw_json, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, it.ID, it.ParentID, it.LinkID, it.Author, it.CreatedUTC, it.Body,
			it.Score, it.Subreddit, it.RawJSON, it.Timestamp)
	default:
		return false, fmt.Errorf("insert item %s: unknown type %q", it.ID, it.Type)
	}
	if err != nil {
		return false, fmt.Errorf("insert %s %s: %w", it.Type, it.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert %s %s: %w", it.Type, it.ID, err)
	}
	return n > 0, nil
}

// ListItems returns stored items of the given types (both when none
// are given), oldest first. Nullable columns are coalesced so rows
// written by earlier collectors scan cleanly.
func (s *SQLiteStore) ListItems(ctx context.Context, types ...item.Type) ([]item.Item, error) {
	if len(types) == 0 {
		types = item.AllTypes()
	}

	var items []item.Item
	for _, typ := range types {
		var query string
		switch typ {
		case item.TypePost:
			query = `
				SELECT id, COALESCE(author, '') AS author, COALESCE(created_utc, 0) AS created_utc,
				       COALESCE(title, '') AS title, COALESCE(body, '') AS body,
				       COALESCE(score, 0) AS score, COALESCE(num_comments, 0) AS num_comments,
				       COALESCE(url, '') AS url, COALESCE(permalink, '') AS permalink,
				       COALESCE(subreddit, '') AS subreddit
				FROM posts ORDER BY created_utc`
		case item.TypeComment:
			query = `
				SELECT id, COALESCE(parent_id, '') AS parent_id, COALESCE(link_id, '') AS link_id,
				       COALESCE(author, '') AS author, COALESCE(created_utc, 0) AS created_utc,
				       COALESCE(body, '') AS body, COALESCE(score, 0) AS score,
				       COALESCE(subreddit, '') AS subreddit
				FROM comments ORDER BY created_utc`
		default:
			return nil, fmt.Errorf("list items: unknown type %q", typ)
		}

		var batch []item.Item
		if err := s.db.SelectContext(ctx, &batch, query); err != nil {
			return nil, fmt.Errorf("list %ss: %w", typ, err)
		}
		for i := range batch {
			batch[i].Type = typ
		}
		items = append(items, batch...)
	}
	return items, nil
}

func (s *SQLiteStore) CountItems(ctx context.Context) (map[item.Type]int, error) {
	counts := make(map[item.Type]int, 2)

	var posts, comments int
	if err := s.db.GetContext(ctx, &posts, "SELECT COUNT(*) FROM posts"); err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}
	if err := s.db.GetContext(ctx, &comments, "SELECT COUNT(*) FROM comments"); err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}
	counts[item.TypePost] = posts
	counts[item.TypeComment] = comments
	return counts, nil
}

// ClassifiedKeys returns the identity of every already-classified
// item, so unforced runs can skip them.
func (s *SQLiteStore) ClassifiedKeys(ctx context.Context) (map[item.Key]struct{}, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT id, item_type FROM toxicity_classifications")
	if err != nil {
		return nil, fmt.Errorf("list classified keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[item.Key]struct{})
	for rows.Next() {
		var id, typ string
		if err := rows.Scan(&id, &typ); err != nil {
			return nil, err
		}
		keys[item.Key{ID: id, Type: item.Type(typ)}] = struct{}{}
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) UpsertClassification(ctx context.Context, c *Classification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO toxicity_classifications
			(id, item_type, text_cleaned, is_deleted, is_removed, is_empty, non_hate, hate_speech, classification_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			item_type = excluded.item_type,
			text_cleaned = excluded.text_cleaned,
			is_deleted = excluded.is_deleted,
			is_removed = excluded.is_removed,
			is_empty = excluded.is_empty,
			non_hate = excluded.non_hate,
			hate_speech = excluded.hate_speech,
			classification_timestamp = excluded.classification_timestamp
	`, c.ID, c.ItemType, c.TextCleaned, c.IsDeleted, c.IsRemoved, c.IsEmpty,
		c.NonHate, c.HateSpeech, c.ClassifiedAt)
	if err != nil {
		return fmt.Errorf("upsert classification %s: %w", c.ID, err)
	}
	return nil
}

// ListClassified joins classifications with item metadata, highest
// hate score first.
func (s *SQLiteStore) ListClassified(ctx context.Context, opts ClassifiedOpts) ([]ClassifiedItem, error) {
	query := `
		SELECT c.id, c.item_type, COALESCE(c.text_cleaned, '') AS text_cleaned,
		       c.is_deleted, c.is_removed, c.is_empty, c.non_hate, c.hate_speech,
		       COALESCE(c.classification_timestamp, '') AS classification_timestamp,
		       COALESCE(p.author, cm.author, '') AS author,
		       COALESCE(p.subreddit, cm.subreddit, '') AS subreddit,
		       COALESCE(p.created_utc, cm.created_utc, 0) AS created_utc,
		       COALESCE(p.score, cm.score, 0) AS score,
		       COALESCE(p.permalink, '') AS permalink
		FROM toxicity_classifications c
		LEFT JOIN posts p ON c.item_type = 'post' AND p.id = c.id
		LEFT JOIN comments cm ON c.item_type = 'comment' AND cm.id = c.id
		WHERE c.hate_speech >= ?`
	args := []any{opts.MinHate}

	if len(opts.Types) > 0 {
		query += " AND c.item_type IN (?)"
		args = append(args, opts.Types)
	}
	if !opts.Since.IsZero() {
		query += " AND COALESCE(p.created_utc, cm.created_utc, 0) >= ?"
		args = append(args, opts.Since.Unix())
	}
	if !opts.Until.IsZero() {
		query += " AND COALESCE(p.created_utc, cm.created_utc, 0) < ?"
		args = append(args, opts.Until.Unix())
	}

	query += " ORDER BY c.hate_speech DESC, c.classification_timestamp DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	query, expanded, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list classified: %w", err)
	}

	var out []ClassifiedItem
	if err := s.db.SelectContext(ctx, &out, query, expanded...); err != nil {
		return nil, fmt.Errorf("list classified: %w", err)
	}
	return out, nil
}

// ReplaceMentions rebuilds both mention tables wholesale: rows are
// written to staging tables which are then swapped in, all inside one
// transaction. Readers never see a half-replaced table and an
// interrupted run leaves the previous state intact.
func (s *SQLiteStore) ReplaceMentions(ctx context.Context, terms []TermMention, cats []CategoryMention) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace mentions: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, mentionStaging); err != nil {
		return fmt.Errorf("replace mentions: staging: %w", err)
	}

	termStmt, err := tx.PreparexContext(ctx, `
		INSERT INTO topic_mentions_daily_staging (term, day, count, item_type)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("replace mentions: prepare: %w", err)
	}
	defer termStmt.Close()
	for i := range terms {
		m := &terms[i]
		if _, err := termStmt.ExecContext(ctx, m.Term, m.Day, m.Count, m.ItemType); err != nil {
			return fmt.Errorf("replace mentions: term %s/%s: %w", m.Term, m.Day, err)
		}
	}

	catStmt, err := tx.PreparexContext(ctx, `
		INSERT INTO topic_mentions_cat_daily_staging (category, term, day, count)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("replace mentions: prepare: %w", err)
	}
	defer catStmt.Close()
	for i := range cats {
		m := &cats[i]
		if _, err := catStmt.ExecContext(ctx, m.Category, m.Term, m.Day, m.Count); err != nil {
			return fmt.Errorf("replace mentions: category %s/%s/%s: %w", m.Category, m.Term, m.Day, err)
		}
	}

	if _, err := tx.ExecContext(ctx, mentionSwap); err != nil {
		return fmt.Errorf("replace mentions: swap: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace mentions: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListTermMentions(ctx context.Context, opts TermMentionOpts) ([]TermMention, error) {
	query := "SELECT term, day, count, item_type FROM topic_mentions_daily WHERE 1=1"
	var args []any

	if opts.From != "" {
		query += " AND day >= ?"
		args = append(args, opts.From)
	}
	if opts.To != "" {
		query += " AND day <= ?"
		args = append(args, opts.To)
	}
	if len(opts.Terms) > 0 {
		query += " AND term IN (?)"
		args = append(args, opts.Terms)
	}
	if len(opts.Types) > 0 {
		query += " AND item_type IN (?)"
		args = append(args, opts.Types)
	}

	query += " ORDER BY day, term, item_type"

	limit := opts.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += " LIMIT ?"
	args = append(args, limit)

	query, expanded, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list term mentions: %w", err)
	}

	var out []TermMention
	if err := s.db.SelectContext(ctx, &out, query, expanded...); err != nil {
		return nil, fmt.Errorf("list term mentions: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListCategoryMentions(ctx context.Context, opts CategoryMentionOpts) ([]CategoryMention, error) {
	query := "SELECT category, term, day, count FROM topic_mentions_cat_daily WHERE 1=1"
	var args []any

	if opts.Category != "" {
		query += " AND category = ?"
		args = append(args, opts.Category)
	}
	if len(opts.Terms) > 0 {
		query += " AND term IN (?)"
		args = append(args, opts.Terms)
	}
	if opts.From != "" {
		query += " AND day >= ?"
		args = append(args, opts.From)
	}
	if opts.To != "" {
		query += " AND day <= ?"
		args = append(args, opts.To)
	}

	query += " ORDER BY day, category, term"

	limit := opts.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += " LIMIT ?"
	args = append(args, limit)

	query, expanded, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list category mentions: %w", err)
	}

	var out []CategoryMention
	if err := s.db.SelectContext(ctx, &out, query, expanded...); err != nil {
		return nil, fmt.Errorf("list category mentions: %w", err)
	}
	return out, nil
}

// BeginRun records the start of a pipeline stage and returns its run id.
func (s *SQLiteStore) BeginRun(ctx context.Context, stage string) (string, error) {
	runID := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (run_id, stage, started_at, status)
		VALUES (?, ?, ?, 'running')
	`, runID, stage, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("begin run %s: %w", stage, err)
	}
	return runID, nil
}

// FinishRun closes out a pipeline_runs row. A nil runErr marks the
// run ok, otherwise the error text is recorded.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, processed, skipped int, runErr error) error {
	status, errText := "ok", ""
	if runErr != nil {
		status, errText = "error", runErr.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE pipeline_runs
		SET finished_at = ?, items_processed = ?, items_skipped = ?, status = ?, error = ?
		WHERE run_id = ?
	`, time.Now().UTC().Format(time.RFC3339), processed, skipped, status, errText, runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

// Summary counts rows across all tables for the stats surface.
func (s *SQLiteStore) Summary(ctx context.Context, threshold float64) (Counts, error) {
	var c Counts

	queries := []struct {
		dst   *int
		query string
		args  []any
	}{
		{&c.Posts, "SELECT COUNT(*) FROM posts", nil},
		{&c.Comments, "SELECT COUNT(*) FROM comments", nil},
		{&c.Classified, "SELECT COUNT(*) FROM toxicity_classifications", nil},
		{&c.Flagged, "SELECT COUNT(*) FROM toxicity_classifications WHERE hate_speech >= ?", []any{threshold}},
		{&c.TermRows, "SELECT COUNT(*) FROM topic_mentions_daily", nil},
		{&c.CategoryRows, "SELECT COUNT(*) FROM topic_mentions_cat_daily", nil},
		{&c.PipelineRuns, "SELECT COUNT(*) FROM pipeline_runs", nil},
	}
	for _, q := range queries {
		if err := s.db.GetContext(ctx, q.dst, q.query, q.args...); err != nil {
			return Counts{}, fmt.Errorf("summary: %w", err)
		}
	}
	return c, nil
}

package store

const schema = `
CREATE TABLE IF NOT EXISTS posts (
    id           TEXT PRIMARY KEY,
    author       TEXT,
    created_utc  INTEGER,
    title        TEXT,
    body         TEXT,
    score        INTEGER,
    num_comments INTEGER,
    url          TEXT,
    permalink    TEXT,
    subreddit    TEXT,
    raw_json     TEXT,
    timestamp    TEXT
);

CREATE TABLE IF NOT EXISTS comments (
    id          TEXT PRIMARY KEY,
    parent_id   TEXT,
    link_id     TEXT,
    author      TEXT,
    created_utc INTEGER,
    body        TEXT,
    score       INTEGER,
    subreddit   TEXT,
    raw_json    TEXT,
    timestamp   TEXT
);

CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_utc);
CREATE INDEX IF NOT EXISTS idx_comments_created ON comments(created_utc);
CREATE INDEX IF NOT EXISTS idx_comments_link ON comments(link_id);
CREATE INDEX IF NOT EXISTS idx_comments_parent ON comments(parent_id);

CREATE TABLE IF NOT EXISTS toxicity_classifications (
    id                       TEXT PRIMARY KEY,
    item_type                TEXT CHECK(item_type IN ('post', 'comment')),
    text_cleaned             TEXT,
    is_deleted               INTEGER DEFAULT 0,
    is_removed               INTEGER DEFAULT 0,
    is_empty                 INTEGER DEFAULT 0,
    non_hate                 REAL DEFAULT 0.0,
    hate_speech              REAL DEFAULT 0.0,
    classification_timestamp TEXT
);

CREATE INDEX IF NOT EXISTS idx_toxicity_non_hate ON toxicity_classifications(non_hate);
CREATE INDEX IF NOT EXISTS idx_toxicity_hate_speech ON toxicity_classifications(hate_speech);
CREATE INDEX IF NOT EXISTS idx_toxicity_type ON toxicity_classifications(item_type);

CREATE TABLE IF NOT EXISTS topic_mentions_daily (
    term      TEXT,
    day       DATE,
    count     INTEGER,
    item_type TEXT,
    PRIMARY KEY(term, day, item_type)
);

CREATE INDEX IF NOT EXISTS idx_topic_day ON topic_mentions_daily(day);

CREATE TABLE IF NOT EXISTS topic_mentions_cat_daily (
    category TEXT,
    term     TEXT,
    day      DATE,
    count    INTEGER,
    PRIMARY KEY(category, term, day)
);

CREATE INDEX IF NOT EXISTS idx_topic_cat_day ON topic_mentions_cat_daily(day);
CREATE INDEX IF NOT EXISTS idx_topic_cat_category ON topic_mentions_cat_daily(category);

CREATE TABLE IF NOT EXISTS pipeline_runs (
    run_id          TEXT PRIMARY KEY,
    stage           TEXT NOT NULL,
    started_at      TEXT NOT NULL,
    finished_at     TEXT,
    items_processed INTEGER NOT NULL DEFAULT 0,
    items_skipped   INTEGER NOT NULL DEFAULT 0,
    status          TEXT NOT NULL DEFAULT 'running',
    error           TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_runs_stage ON pipeline_runs(stage);
`

// Staging copies of the mention tables. The aggregator fills these and
// swaps them in; shapes must stay identical to the live tables above.
const mentionStaging = `
DROP TABLE IF EXISTS topic_mentions_daily_staging;
CREATE TABLE topic_mentions_daily_staging (
    term      TEXT,
    day       DATE,
    count     INTEGER,
    item_type TEXT,
    PRIMARY KEY(term, day, item_type)
);

DROP TABLE IF EXISTS topic_mentions_cat_daily_staging;
CREATE TABLE topic_mentions_cat_daily_staging (
    category TEXT,
    term     TEXT,
    day      DATE,
    count    INTEGER,
    PRIMARY KEY(category, term, day)
);
`

const mentionSwap = `
DROP TABLE topic_mentions_daily;
ALTER TABLE topic_mentions_daily_staging RENAME TO topic_mentions_daily;
CREATE INDEX IF NOT EXISTS idx_topic_day ON topic_mentions_daily(day);

DROP TABLE topic_mentions_cat_daily;
ALTER TABLE topic_mentions_cat_daily_staging RENAME TO topic_mentions_cat_daily;
CREATE INDEX IF NOT EXISTS idx_topic_cat_day ON topic_mentions_cat_daily(day);
CREATE INDEX IF NOT EXISTS idx_topic_cat_category ON topic_mentions_cat_daily(category);
`

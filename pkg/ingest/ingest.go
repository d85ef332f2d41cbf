// Package ingest loads Reddit dump files into the local store. There
// is no network fetching here: collectors export JSONL envelopes or
// saved .rss listing files, and the importer replays them.
package ingest

import (
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/logging"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/store"
)

// Format selects how an input file is parsed.
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatRSS   Format = "rss"
)

// Importer bulk-loads dump files into posts and comments.
type Importer struct {
	store store.Store
	log   logging.Logger
}

func NewImporter(st store.Store, log logging.Logger) *Importer {
	if log == nil {
		log = logging.NewNop()
	}
	return &Importer{store: st, log: log}
}

// Summary reports one import run. Read counts every record seen in the
// file, including ones that were rejected or already present.
type Summary struct {
	RunID      string `json:"run_id"`
	Read       int    `json:"read"`
	Imported   int    `json:"imported"`
	Duplicates int    `json:"duplicates"`
	Skipped    int    `json:"skipped"`
}

package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/logging"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/metrics"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/item"
)

// maxLineBytes caps a single JSONL record. Self-text posts run long
// but never near this.
const maxLineBytes = 1 << 20

// ImportJSONL reads one envelope per line from path. Malformed lines
// are logged and skipped, already-known ids are left untouched.
// subreddit is applied to records that do not carry their own.
func (im *Importer) ImportJSONL(ctx context.Context, path, subreddit string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open dump %s: %w", path, err)
	}
	defer f.Close()

	runID, err := im.store.BeginRun(ctx, "import")
	if err != nil {
		return Summary{}, fmt.Errorf("begin import run: %w", err)
	}
	sum := Summary{RunID: runID}

	fail := func(err error) (Summary, error) {
		if ferr := im.store.FinishRun(ctx, runID, sum.Imported, sum.Skipped+sum.Duplicates, err); ferr != nil {
			im.log.WithError(ferr).Warn("finish import run")
		}
		return sum, err
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		sum.Read++

		var env item.Envelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			sum.Skipped++
			im.log.WithFields(logging.Fields{"file": path, "line": lineNo}).WithError(err).Warn("skip malformed record")
			continue
		}
		if _, err := item.ParseType(string(env.Type)); err != nil || env.ID == "" {
			sum.Skipped++
			im.log.WithFields(logging.Fields{"file": path, "line": lineNo, "id": env.ID}).Warn("skip record without id or type")
			continue
		}
		if env.Subreddit == "" {
			env.Subreddit = subreddit
		}

		it := env.Item()
		inserted, err := im.store.InsertItem(ctx, &it)
		if err != nil {
			return fail(fmt.Errorf("insert %s %s: %w", it.Type, it.ID, err))
		}
		if inserted {
			sum.Imported++
			metrics.ItemsImported.WithLabelValues(string(it.Type)).Inc()
		} else {
			sum.Duplicates++
		}
	}
	if err := sc.Err(); err != nil {
		return fail(fmt.Errorf("read dump %s: %w", path, err))
	}

	if err := im.store.FinishRun(ctx, runID, sum.Imported, sum.Skipped+sum.Duplicates, nil); err != nil {
		return sum, fmt.Errorf("finish import run: %w", err)
	}
	im.log.WithFields(logging.Fields{
		"run_id":     runID,
		"file":       path,
		"read":       sum.Read,
		"imported":   sum.Imported,
		"duplicates": sum.Duplicates,
		"skipped":    sum.Skipped,
	}).Info("jsonl import finished")
	return sum, nil
}

package classify

import (
	"context"
	"strings"
	"time"

	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/logging"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/metrics"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/store"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/item"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/normalize"
)

// DefaultBatchSize is how many items go to the scorer per call.
const DefaultBatchSize = 64

// borderlineFloor is the hate score above which a below-threshold
// item is still logged for review.
const borderlineFloor = 0.05

// protectedTerms are group references scanned for in low-scoring
// text. A mention plus a low hate score is logged as a potential
// false negative.
var protectedTerms = []string{
	"black", "asian", "white", "latino", "muslim", "jew", "jewish", "christian", "arab",
	"indian", "gay", "trans", "lgbt", "women", "female", "male", "immigrant", "chinese",
	"korean", "mexican", "african", "hispanic", "queer", "lesbian", "turk", "armenian",
}

// Engine runs the classification stage: normalize every stored item,
// score the non-degenerate ones in batches and upsert one row per
// item.
type Engine struct {
	store     store.Store
	scorer    Scorer
	log       logging.Logger
	batchSize int
	threshold float64
}

// EngineOpts configures NewEngine. Zero values pick defaults.
type EngineOpts struct {
	BatchSize int
	Threshold float64
}

func NewEngine(st store.Store, scorer Scorer, log logging.Logger, opts EngineOpts) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Engine{
		store:     st,
		scorer:    scorer,
		log:       log,
		batchSize: opts.BatchSize,
		threshold: opts.Threshold,
	}
}

// Summary reports what one classification run did. Processed counts
// rows written (scored plus degenerate); Failed counts items whose
// scorer batch errored, left unclassified for the next run.
type Summary struct {
	RunID      string `json:"run_id"`
	Processed  int    `json:"processed"`
	Scored     int    `json:"scored"`
	Degenerate int    `json:"degenerate"`
	Flagged    int    `json:"flagged"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
}

type pending struct {
	key  item.Key
	text string
}

// Run classifies every stored item that has no classification yet.
// With force, everything is rescored and overwritten. Store errors
// abort the run; per-batch scorer errors only skip that batch's
// items.
func (e *Engine) Run(ctx context.Context, force bool) (Summary, error) {
	start := time.Now()
	metrics.ClassifyRuns.Inc()
	defer metrics.ObserveClassifyDuration(start)

	var sum Summary
	runID, err := e.store.BeginRun(ctx, "classify")
	if err != nil {
		metrics.ClassifyErrors.Inc()
		return sum, err
	}
	sum.RunID = runID

	fail := func(runErr error) (Summary, error) {
		metrics.ClassifyErrors.Inc()
		if err := e.store.FinishRun(ctx, runID, sum.Processed, sum.Skipped, runErr); err != nil {
			e.log.WithError(err).Warn("record failed classification run")
		}
		return sum, runErr
	}

	items, err := e.store.ListItems(ctx)
	if err != nil {
		return fail(err)
	}

	done := map[item.Key]struct{}{}
	if !force {
		if done, err = e.store.ClassifiedKeys(ctx); err != nil {
			return fail(err)
		}
	}

	e.log.WithFields(logging.Fields{
		"run_id": runID,
		"items":  len(items),
		"known":  len(done),
		"force":  force,
		"scorer": e.scorer.Name(),
	}).Info("classification run started")

	batch := make([]pending, 0, e.batchSize)
	for i := range items {
		it := &items[i]
		if _, ok := done[it.Key()]; ok {
			sum.Skipped++
			continue
		}

		res := normalize.Normalize(*it)
		if res.Flags.Degenerate() {
			c := &store.Classification{
				ID:           it.ID,
				ItemType:     it.Type,
				TextCleaned:  res.Text,
				IsDeleted:    res.Flags.Deleted,
				IsRemoved:    res.Flags.Removed,
				IsEmpty:      res.Flags.Empty,
				ClassifiedAt: now(),
			}
			if err := e.store.UpsertClassification(ctx, c); err != nil {
				return fail(err)
			}
			sum.Degenerate++
			sum.Processed++
			metrics.ItemsClassified.WithLabelValues(string(it.Type)).Inc()
			continue
		}

		batch = append(batch, pending{key: it.Key(), text: res.Text})
		if len(batch) >= e.batchSize {
			if err := e.flush(ctx, batch, &sum); err != nil {
				return fail(err)
			}
			batch = batch[:0]
			// Interruption is safe between batches: every written row
			// is already committed.
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
		}
	}
	if len(batch) > 0 {
		if err := e.flush(ctx, batch, &sum); err != nil {
			return fail(err)
		}
	}

	if err := e.store.FinishRun(ctx, runID, sum.Processed, sum.Skipped, nil); err != nil {
		metrics.ClassifyErrors.Inc()
		return sum, err
	}

	e.log.WithFields(logging.Fields{
		"run_id":     runID,
		"processed":  sum.Processed,
		"scored":     sum.Scored,
		"degenerate": sum.Degenerate,
		"flagged":    sum.Flagged,
		"skipped":    sum.Skipped,
		"failed":     sum.Failed,
	}).Info("classification run finished")
	return sum, nil
}

// flush scores one batch and upserts its results. A scorer failure
// skips the batch (warned, retried next run); a store failure
// propagates and aborts the run.
func (e *Engine) flush(ctx context.Context, batch []pending, sum *Summary) error {
	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = normalize.Deobfuscate(p.text)
	}

	scores, err := e.scorer.ScoreBatch(ctx, texts)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metrics.ScorerBatchErrors.Inc()
		sum.Failed += len(batch)
		e.log.WithError(err).WithField("items", len(batch)).
			Warn("scorer batch failed, items left for next run")
		return nil
	}
	if len(scores) != len(batch) {
		metrics.ScorerBatchErrors.Inc()
		sum.Failed += len(batch)
		e.log.WithFields(logging.Fields{"want": len(batch), "got": len(scores)}).
			Warn("scorer returned wrong result count, batch left for next run")
		return nil
	}

	for i := range batch {
		p := &batch[i]
		sc := scores[i]
		e.telemetry(p.key, p.text, sc)

		c := &store.Classification{
			ID:           p.key.ID,
			ItemType:     p.key.Type,
			TextCleaned:  p.text,
			NonHate:      sc.NonHate,
			HateSpeech:   sc.HateSpeech,
			ClassifiedAt: now(),
		}
		if err := e.store.UpsertClassification(ctx, c); err != nil {
			return err
		}
		sum.Processed++
		sum.Scored++
		metrics.ItemsClassified.WithLabelValues(string(p.key.Type)).Inc()
		if Flagged(sc.HateSpeech, e.threshold) {
			sum.Flagged++
			metrics.ItemsFlagged.Inc()
		}
	}
	return nil
}

func (e *Engine) telemetry(key item.Key, text string, sc Score) {
	if sc.HateSpeech >= e.threshold {
		return
	}
	if sc.HateSpeech >= borderlineFloor {
		e.log.WithFields(logging.Fields{
			"id":          key.ID,
			"item_type":   key.Type,
			"hate_speech": sc.HateSpeech,
			"text":        truncate(text, 160),
		}).Debug("borderline hate score")
	}
	for _, term := range protectedTerms {
		if strings.Contains(text, term) {
			e.log.WithFields(logging.Fields{
				"id":          key.ID,
				"item_type":   key.Type,
				"hate_speech": sc.HateSpeech,
				"term":        term,
				"text":        truncate(text, 180),
			}).Debug("low hate score with protected term present")
			break
		}
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

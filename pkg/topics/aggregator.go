package topics

import (
	"context"
	"time"

	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/logging"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/metrics"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/store"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/item"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/normalize"
)

// Aggregator recomputes the daily mention tables from the full item
// population. Every run replaces both tables wholesale, so dictionary
// edits retroactively reshape history.
type Aggregator struct {
	store store.Store
	dict  *Dictionary
	log   logging.Logger
}

func NewAggregator(st store.Store, dict *Dictionary, log logging.Logger) *Aggregator {
	if log == nil {
		log = logging.NewNop()
	}
	return &Aggregator{store: st, dict: dict, log: log}
}

// Summary reports what one aggregation run produced.
type Summary struct {
	RunID        string `json:"run_id"`
	Items        int    `json:"items"`
	Matched      int    `json:"matched"`
	TermRows     int    `json:"term_rows"`
	CategoryRows int    `json:"category_rows"`
}

type termKey struct {
	term string
	day  string
	typ  item.Type
}

type catKey struct {
	category string
	term     string
	day      string
}

// Run streams every stored item, matches the dictionary against its
// normalized text and swaps the freshly computed counts into the
// mention tables. A term counts once per item per day regardless of
// repeat occurrences.
func (a *Aggregator) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	metrics.AggregateRuns.Inc()
	defer metrics.ObserveAggregateDuration(start)

	var sum Summary
	runID, err := a.store.BeginRun(ctx, "aggregate")
	if err != nil {
		metrics.AggregateErrors.Inc()
		return sum, err
	}
	sum.RunID = runID

	fail := func(runErr error) (Summary, error) {
		metrics.AggregateErrors.Inc()
		if err := a.store.FinishRun(ctx, runID, sum.Items, 0, runErr); err != nil {
			a.log.WithError(err).Warn("record failed aggregation run")
		}
		return sum, runErr
	}

	items, err := a.store.ListItems(ctx)
	if err != nil {
		return fail(err)
	}

	a.log.WithFields(logging.Fields{
		"run_id":     runID,
		"items":      len(items),
		"terms":      a.dict.Len(),
		"categories": len(a.dict.Categories()),
	}).Info("aggregation run started")

	counts := make(map[termKey]int)
	catCounts := make(map[catKey]int)
	perCategory := make(map[string]int)

	for i := range items {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		it := &items[i]
		sum.Items++

		res := normalize.Normalize(*it)
		if res.Text == "" {
			continue
		}
		day := it.Day()

		hits := a.dict.Match(res.Text)
		if len(hits) == 0 {
			continue
		}
		sum.Matched++
		for _, hit := range hits {
			counts[termKey{term: hit.Term, day: day, typ: it.Type}]++
			catCounts[catKey{category: hit.Category, term: hit.Term, day: day}]++
			perCategory[hit.Category]++
		}
	}

	termRows := make([]store.TermMention, 0, len(counts))
	for k, n := range counts {
		termRows = append(termRows, store.TermMention{Term: k.term, Day: k.day, Count: n, ItemType: k.typ})
	}
	catRows := make([]store.CategoryMention, 0, len(catCounts))
	for k, n := range catCounts {
		catRows = append(catRows, store.CategoryMention{Category: k.category, Term: k.term, Day: k.day, Count: n})
	}

	if err := a.store.ReplaceMentions(ctx, termRows, catRows); err != nil {
		return fail(err)
	}
	sum.TermRows = len(termRows)
	sum.CategoryRows = len(catRows)

	if err := a.store.FinishRun(ctx, runID, sum.Items, 0, nil); err != nil {
		metrics.AggregateErrors.Inc()
		return sum, err
	}

	fields := logging.Fields{
		"run_id":        runID,
		"items":         sum.Items,
		"matched":       sum.Matched,
		"term_rows":     sum.TermRows,
		"category_rows": sum.CategoryRows,
	}
	for category, n := range perCategory {
		fields["mentions_"+category] = n
	}
	a.log.WithFields(fields).Info("aggregation run finished")
	return sum, nil
}

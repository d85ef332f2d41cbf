// Package scheduler drives the pipeline stages on a fixed interval.
package scheduler

import (
	"context"
	"time"

	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/logging"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/store"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/alert"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/classify"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/topics"
)

// Scheduler periodically runs classification followed by mention
// aggregation, alerting moderators when a run flags content. Stages
// never overlap: each cycle runs them to completion in sequence.
type Scheduler struct {
	store      store.Store
	classifier *classify.Engine
	aggregator *topics.Aggregator
	alerts     *alert.Manager
	interval   time.Duration
	threshold  float64
	log        logging.Logger
}

// New creates a new scheduler.
func New(
	st store.Store,
	classifier *classify.Engine,
	aggregator *topics.Aggregator,
	alerts *alert.Manager,
	interval time.Duration,
	threshold float64,
	log logging.Logger,
) *Scheduler {
	if interval == 0 {
		interval = 30 * time.Minute
	}
	if threshold <= 0 {
		threshold = classify.DefaultThreshold
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Scheduler{
		store:      st,
		classifier: classifier,
		aggregator: aggregator,
		alerts:     alerts,
		interval:   interval,
		threshold:  threshold,
		log:        log,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start.
	s.runOnce(ctx)
	s.log.WithFields(logging.Fields{"interval": s.interval.String()}).Info("scheduler running")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if sum, err := s.classifier.Run(ctx, false); err != nil {
		s.log.WithError(err).Warn("scheduled classification failed")
	} else {
		s.log.WithFields(logging.Fields{
			"processed": sum.Processed,
			"flagged":   sum.Flagged,
		}).Info("scheduled classification finished")
		s.notifyFlagged(ctx, sum)
	}

	if ctx.Err() != nil {
		return
	}

	if sum, err := s.aggregator.Run(ctx); err != nil {
		s.log.WithError(err).Warn("scheduled aggregation failed")
	} else {
		s.log.WithFields(logging.Fields{
			"matched":   sum.Matched,
			"term_rows": sum.TermRows,
		}).Info("scheduled aggregation finished")
	}
}

func (s *Scheduler) notifyFlagged(ctx context.Context, sum classify.Summary) {
	if s.alerts == nil || !s.alerts.HasNotifiers() || sum.Flagged == 0 {
		return
	}

	items, err := s.store.ListClassified(ctx, store.ClassifiedOpts{
		MinHate: s.threshold,
		Limit:   5,
	})
	if err != nil {
		s.log.WithError(err).Warn("list flagged for alert")
		return
	}

	n := &alert.Notification{
		RunID:     sum.RunID,
		Threshold: s.threshold,
		Flagged:   sum.Flagged,
		Items:     items,
	}
	if err := s.alerts.Broadcast(ctx, n); err != nil {
		s.log.WithError(err).Warn("broadcast flagged alert")
		return
	}
	s.log.WithFields(logging.Fields{"flagged": sum.Flagged, "run_id": sum.RunID}).Info("alert sent")
}

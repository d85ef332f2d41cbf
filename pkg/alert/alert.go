// Package alert pushes moderation notifications when a classification
// run flags new content.
package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/store"
)

// Notification is a digest of one classification run's findings.
// Items holds the highest-scoring flagged content for preview.
type Notification struct {
	RunID     string                 `json:"run_id"`
	Threshold float64                `json:"threshold"`
	Flagged   int                    `json:"flagged"`
	Items     []store.ClassifiedItem `json:"items"`
}

// Notifier delivers notifications to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func excerpt(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func itemURL(it store.ClassifiedItem) string {
	if it.Permalink == "" {
		return ""
	}
	return "https://reddit.com" + it.Permalink
}

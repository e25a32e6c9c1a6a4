// Package app runs the background glucose watcher
package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mrcode/glucose-share/internal/models"
)

// Source provides the latest reading
type Source interface {
	GetLatestGlucose(ctx context.Context) (*models.Reading, error)
}

// Notifier raises alerts for a reading
type Notifier interface {
	CheckAndNotify(reading *models.Reading) (bool, error)
}

// Snapshot is the watcher state at one point in time
type Snapshot struct {
	LastReading       *models.Reading
	LastSuccess       time.Time
	ConsecutiveErrors int
}

// Watcher polls the source on an interval and feeds the notifier
type Watcher struct {
	source   Source
	notifier Notifier
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
	onUpdate func(*models.Reading)

	mu                sync.RWMutex
	lastReading       *models.Reading
	lastSuccessTime   time.Time
	consecutiveErrors int
}

// NewWatcher creates a watcher. A nil notifier disables alerts.
func NewWatcher(source Source, notifier Notifier, interval time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		source:   source,
		notifier: notifier,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// OnUpdate registers a callback for every fresh or aged reading
func (w *Watcher) OnUpdate(fn func(*models.Reading)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onUpdate = fn
}

// Run fetches immediately and then once per interval until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Watching glucose", "interval", w.interval)

	w.fetchAndUpdate(ctx)

	for {
		select {
		case <-ticker.C:
			w.fetchAndUpdate(ctx)
		case <-ctx.Done():
			w.logger.Info("Watcher stopped")
			return nil
		}
	}
}

// Snapshot returns the current state
func (w *Watcher) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Snapshot{
		LastReading:       w.lastReading,
		LastSuccess:       w.lastSuccessTime,
		ConsecutiveErrors: w.consecutiveErrors,
	}
}

func (w *Watcher) fetchAndUpdate(ctx context.Context) {
	reading, err := w.source.GetLatestGlucose(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.handleError(err)
		return
	}

	if reading == nil {
		w.logger.Warn("No glucose readings available")
		return
	}

	w.mu.Lock()
	w.consecutiveErrors = 0
	w.lastSuccessTime = w.now()
	w.lastReading = reading
	onUpdate := w.onUpdate
	w.mu.Unlock()

	w.logger.Info("Glucose reading",
		"value", reading.Value,
		"trend", reading.Trend.ID,
		"status", reading.Status,
		"read", reading.TimeAgo,
	)

	if onUpdate != nil {
		onUpdate(reading)
	}

	if w.notifier != nil {
		if _, err := w.notifier.CheckAndNotify(reading); err != nil {
			w.logger.Error("Notification error", "error", err)
		}
	}
}

// handleError counts the failure and ages the last good reading
func (w *Watcher) handleError(err error) {
	w.mu.Lock()
	w.consecutiveErrors++
	errorCount := w.consecutiveErrors
	var aged *models.Reading
	if w.lastReading != nil {
		copied := *w.lastReading
		elapsed := w.now().Sub(copied.Time)
		copied.MinutesAgo = models.MinutesAgo(elapsed)
		copied.TimeAgo = models.TimeAgo(elapsed)
		w.lastReading = &copied
		aged = &copied
	}
	onUpdate := w.onUpdate
	w.mu.Unlock()

	w.logger.Error("Error fetching glucose data", "attempt", errorCount, "error", err)

	if aged != nil && onUpdate != nil {
		onUpdate(aged)
	}
}

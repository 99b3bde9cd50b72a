package maintenance

import (
	"context"
	"time"

	"github.com/npezzotti/go-jobboard/internal/database"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Worker purges expired notifications and recomputes unread counters.
type Worker struct {
	log       *logrus.Logger
	db        database.JobBoardRepository
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

func NewWorker(logger *logrus.Logger, db database.JobBoardRepository, retention, interval time.Duration) *Worker {
	return &Worker{
		log:       logger,
		db:        db,
		retention: retention,
		interval:  interval,
		now:       time.Now,
	}
}

// Run executes a pass immediately and then on every tick until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.log.WithError(err).Error("maintenance pass failed")
		}

		select {
		case <-ctx.Done():
			w.log.Info("stopping maintenance worker")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce purges before reconciling so counters reflect the purge.
func (w *Worker) RunOnce(ctx context.Context) error {
	cutoff := w.now().Add(-w.retention)

	purged, err := w.db.PurgeNotifications(ctx, cutoff)
	if err != nil {
		return errors.Wrap(err, "purge notifications")
	}

	fixed, err := w.db.ReconcileUnreadCounters(ctx)
	if err != nil {
		return errors.Wrap(err, "reconcile unread counters")
	}

	w.log.WithFields(logrus.Fields{
		"purged":     purged,
		"reconciled": fixed,
		"cutoff":     cutoff.Format(time.RFC3339),
	}).Info("maintenance pass complete")

	return nil
}

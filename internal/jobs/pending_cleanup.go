package jobs

import (
	"context"
	"fmt"
	"time"

	"restaurant_ordering/internal/metrics"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const purgeTimeout = 30 * time.Second

// Purger removes registrations whose verification link has expired.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Scheduler runs background maintenance on cron schedules.
type Scheduler struct {
	cron *cron.Cron
	log  logrus.FieldLogger
}

func NewScheduler(log logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(log)))),
		log:  log,
	}
}

// SchedulePendingCleanup registers the purge job; schedule is a standard cron line or a descriptor like "@hourly".
func (s *Scheduler) SchedulePendingCleanup(schedule string, purger Purger) error {
	if _, err := s.cron.AddFunc(schedule, func() { RunPendingCleanup(context.Background(), purger, s.log) }); err != nil {
		return fmt.Errorf("invalid purge schedule %q: %w", schedule, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out with jobs still running")
	}
}

func RunPendingCleanup(ctx context.Context, purger Purger, log logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(ctx, purgeTimeout)
	defer cancel()

	n, err := purger.PurgeExpired(ctx)
	if err != nil {
		log.WithError(err).Error("pending user purge failed")
		return
	}
	metrics.PendingUsersPurged(n)
	if n > 0 {
		log.WithField("removed", n).Info("purged expired pending registrations")
	}
}

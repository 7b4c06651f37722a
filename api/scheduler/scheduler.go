package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/linesmerrill/event-checkin-api/databases"
	"github.com/linesmerrill/event-checkin-api/services"
)

const (
	reconcileLock    = "reconcile_job"
	reconcileLockTTL = 10 * time.Minute
	reconcileTimeout = 5 * time.Minute
)

// Reconciler repairs the event lifecycle records
type Reconciler interface {
	Run(ctx context.Context) (*services.ReconcileReport, error)
}

// Scheduler handles periodic background jobs
type Scheduler struct {
	cron       *cron.Cron
	Reconciler Reconciler
	LockDB     databases.SchedulerLockDatabase
	instanceID string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(reconciler Reconciler, lockDB databases.SchedulerLockDatabase) *Scheduler {
	// Heroku sets this to "web.1", "web.2", etc.
	instanceID := os.Getenv("DYNO")
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		Reconciler: reconciler,
		LockDB:     lockDB,
		instanceID: instanceID,
	}
}

// Start registers the reconciliation job on schedule and starts the cron loop
func (s *Scheduler) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.reconcile); err != nil {
		return fmt.Errorf("register reconcile job %q: %w", schedule, err)
	}
	s.cron.Start()
	zap.S().Infow("scheduler started", "reconcile", schedule, "instance", s.instanceID)
	return nil
}

// Stop waits for running jobs and stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("scheduler stopped")
}

// reconcile runs one reconciliation pass while holding the distributed lock
func (s *Scheduler) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()
	s.runLocked(ctx)
}

func (s *Scheduler) runLocked(ctx context.Context) {
	acquired, err := s.LockDB.TryAcquireLock(ctx, reconcileLock, s.instanceID, reconcileLockTTL)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for reconcile job", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("reconcile job already running on another instance, skipping")
		return
	}
	defer func() {
		if err := s.LockDB.ReleaseLock(ctx, reconcileLock, s.instanceID); err != nil {
			zap.S().Warnw("failed to release reconcile lock", "error", err)
		}
	}()

	start := time.Now()
	report, err := s.Reconciler.Run(ctx)
	if err != nil {
		zap.S().Errorw("reconcile job failed", "error", err, "instance", s.instanceID)
		return
	}
	zap.S().Infow("reconcile job complete",
		"instance", s.instanceID,
		"duration", time.Since(start),
		"guestsRestored", report.GuestsRestored,
		"stalePendingDeleted", report.StalePendingDeleted,
		"orphanedEvents", report.OrphanedEvents,
		"orphanedPhotoRecords", report.OrphanedPhotoRecords,
	)
}

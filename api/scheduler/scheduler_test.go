package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/linesmerrill/event-checkin-api/services"
)

type mockLocks struct {
	mock.Mock
}

func (m *mockLocks) TryAcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, name, owner, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockLocks) ReleaseLock(ctx context.Context, name, owner string) error {
	return m.Called(ctx, name, owner).Error(0)
}

type mockReconciler struct {
	mock.Mock
}

func (m *mockReconciler) Run(ctx context.Context) (*services.ReconcileReport, error) {
	args := m.Called(ctx)
	report, _ := args.Get(0).(*services.ReconcileReport)
	return report, args.Error(1)
}

func TestNewSchedulerInstanceID(t *testing.T) {
	t.Setenv("DYNO", "web.2")
	s := NewScheduler(&mockReconciler{}, &mockLocks{})
	assert.Equal(t, "web.2", s.instanceID)

	t.Setenv("DYNO", "")
	s = NewScheduler(&mockReconciler{}, &mockLocks{})
	assert.Contains(t, s.instanceID, "instance-")
}

func TestRunLocked(t *testing.T) {
	ctx := context.Background()
	locks := &mockLocks{}
	rec := &mockReconciler{}
	s := &Scheduler{Reconciler: rec, LockDB: locks, instanceID: "web.1"}

	locks.On("TryAcquireLock", ctx, reconcileLock, "web.1", reconcileLockTTL).Return(true, nil).Once()
	locks.On("ReleaseLock", ctx, reconcileLock, "web.1").Return(nil).Once()
	rec.On("Run", ctx).Return(&services.ReconcileReport{GuestsRestored: 2}, nil).Once()

	s.runLocked(ctx)
	locks.AssertExpectations(t)
	rec.AssertExpectations(t)
}

func TestRunLockedSkipsWhenHeldElsewhere(t *testing.T) {
	ctx := context.Background()
	locks := &mockLocks{}
	rec := &mockReconciler{}
	s := &Scheduler{Reconciler: rec, LockDB: locks, instanceID: "web.1"}

	locks.On("TryAcquireLock", ctx, reconcileLock, "web.1", reconcileLockTTL).Return(false, nil).Once()
	s.runLocked(ctx)

	locks.On("TryAcquireLock", ctx, reconcileLock, "web.1", reconcileLockTTL).Return(false, errors.New("boom")).Once()
	s.runLocked(ctx)

	rec.AssertNotCalled(t, "Run", mock.Anything)
	locks.AssertNotCalled(t, "ReleaseLock", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunLockedReleasesAfterFailure(t *testing.T) {
	ctx := context.Background()
	locks := &mockLocks{}
	rec := &mockReconciler{}
	s := &Scheduler{Reconciler: rec, LockDB: locks, instanceID: "web.1"}

	locks.On("TryAcquireLock", ctx, reconcileLock, "web.1", reconcileLockTTL).Return(true, nil).Once()
	locks.On("ReleaseLock", ctx, reconcileLock, "web.1").Return(nil).Once()
	rec.On("Run", ctx).Return(nil, errors.New("boom")).Once()

	s.runLocked(ctx)
	locks.AssertExpectations(t)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&mockReconciler{}, &mockLocks{})
	assert.Error(t, s.Start("not a schedule"))

	assert.NoError(t, s.Start("@every 1h"))
	s.Stop()
}

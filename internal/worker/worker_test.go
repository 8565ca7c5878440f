package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayo6706/restaurant-loyalty/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeExpirer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeExpirer) ExpireDue(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	return 1, f.err
}

type fakeReconciler struct {
	calls  atomic.Int32
	dryRun atomic.Bool
}

func (f *fakeReconciler) ReconcileAll(ctx context.Context, dryRun bool) (*models.ReconciliationSummary, error) {
	f.calls.Add(1)
	f.dryRun.Store(dryRun)
	return &models.ReconciliationSummary{DryRun: dryRun}, nil
}

func TestVoucherExpiryWorkerProcessOnce(t *testing.T) {
	ok := &fakeExpirer{}
	require.NoError(t, NewVoucherExpiryWorker(ok).ProcessOnce(context.Background()))
	require.Equal(t, int32(1), ok.calls.Load())

	failing := &fakeExpirer{err: errors.New("db down")}
	require.Error(t, NewVoucherExpiryWorker(failing).ProcessOnce(context.Background()))
}

func TestVoucherExpiryWorkerTicksUntilStopped(t *testing.T) {
	expirer := &fakeExpirer{}
	w := NewVoucherExpiryWorker(expirer).WithPollInterval(5 * time.Millisecond)

	stop := w.Run(context.Background())
	require.Eventually(t, func() bool { return expirer.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	stop()
	stop()
}

func TestReconciliationWorkerRunsDryOnStart(t *testing.T) {
	rec := &fakeReconciler{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	NewReconciliationWorker(rec).Run(ctx)
	require.Eventually(t, func() bool { return rec.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	require.True(t, rec.dryRun.Load())
}

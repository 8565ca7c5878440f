package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayo6706/restaurant-loyalty/internal/observability"
	"go.uber.org/zap"
)

// VoucherExpirer moves vouchers past their expiry to expired.
type VoucherExpirer interface {
	ExpireDue(ctx context.Context) (int64, error)
}

// VoucherExpiryWorker expires due vouchers in the background.
// Safe for concurrent instances: the expiry UPDATE only touches active rows.
type VoucherExpiryWorker struct {
	vouchers     VoucherExpirer
	pollInterval time.Duration
	stopCh       chan struct{}
	stopOnce     sync.Once
}

// NewVoucherExpiryWorker creates a worker polling hourly.
func NewVoucherExpiryWorker(vouchers VoucherExpirer) *VoucherExpiryWorker {
	return &VoucherExpiryWorker{
		vouchers:     vouchers,
		pollInterval: time.Hour,
		stopCh:       make(chan struct{}),
	}
}

// WithPollInterval sets the poll interval for the worker.
func (w *VoucherExpiryWorker) WithPollInterval(interval time.Duration) *VoucherExpiryWorker {
	if interval > 0 {
		w.pollInterval = interval
	}
	return w
}

// Start runs the loop until Stop is called or the context is canceled.
func (w *VoucherExpiryWorker) Start(ctx context.Context) {
	zap.L().Info("voucher expiry worker starting", zap.Duration("interval", w.pollInterval))

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("voucher expiry worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("voucher expiry worker stop signal received")
			return
		case <-ticker.C:
			_ = w.ProcessOnce(ctx)
		}
	}
}

// Stop signals the worker to stop.
func (w *VoucherExpiryWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// ProcessOnce expires due vouchers immediately.
func (w *VoucherExpiryWorker) ProcessOnce(ctx context.Context) error {
	if _, err := w.vouchers.ExpireDue(ctx); err != nil {
		observability.IncrementWorkerRun("voucher_expiry", "failed")
		zap.L().Error("voucher expiry run failed", zap.Error(err))
		return err
	}
	observability.IncrementWorkerRun("voucher_expiry", "success")
	return nil
}

// Run starts the worker and returns a function that stops it.
func (w *VoucherExpiryWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *VoucherExpiryWorker) String() string {
	return fmt.Sprintf("VoucherExpiryWorker(interval=%v)", w.pollInterval)
}

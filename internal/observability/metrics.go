package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpDurationHistogram  *prometheus.HistogramVec
	pointsCounter          *prometheus.CounterVec
	awardDuplicateCounter  prometheus.Counter
	negativeBalanceCounter prometheus.Counter
	discrepancyCounter     *prometheus.CounterVec
	idempotencyCounter     *prometheus.CounterVec
	expiredVoucherCounter  prometheus.Counter
	workerRunCounter       *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		pointsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loyalty_points_total",
			Help: "Absolute points moved through the ledger, by entry type",
		}, []string{"type"})

		awardDuplicateCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_award_duplicates_total",
			Help: "Award requests for orders that already had an earned entry",
		})

		negativeBalanceCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_negative_balance_refunds_total",
			Help: "Refund reversals that left a customer balance below zero",
		})

		discrepancyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loyalty_reconciliation_discrepancies_total",
			Help: "Findings reported by the reconciliation auditor",
		}, []string{"kind"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		expiredVoucherCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_vouchers_expired_total",
			Help: "Vouchers moved from active to expired",
		})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			pointsCounter,
			awardDuplicateCounter,
			negativeBalanceCounter,
			discrepancyCounter,
			idempotencyCounter,
			expiredVoucherCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

// AddPoints records a ledger movement. Negative amounts are counted by
// magnitude.
func AddPoints(entryType string, points int64) {
	if pointsCounter == nil {
		return
	}
	if points < 0 {
		points = -points
	}
	pointsCounter.WithLabelValues(entryType).Add(float64(points))
}

func IncrementAwardDuplicate() {
	if awardDuplicateCounter == nil {
		return
	}
	awardDuplicateCounter.Inc()
}

func IncrementNegativeBalanceRefund() {
	if negativeBalanceCounter == nil {
		return
	}
	negativeBalanceCounter.Inc()
}

func IncrementReconciliationDiscrepancy(kind string) {
	if discrepancyCounter == nil {
		return
	}
	discrepancyCounter.WithLabelValues(kind).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func AddExpiredVouchers(n int64) {
	if expiredVoucherCounter == nil || n <= 0 {
		return
	}
	expiredVoucherCounter.Add(float64(n))
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}

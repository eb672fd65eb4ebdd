package metrics

import (
	"net/http"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Prometheus records tracking observations on its own registry.
type Prometheus struct {
	registry       *prometheus.Registry
	cycles         prometheus.Counter
	cycleDuration  prometheus.Histogram
	submissions    *prometheus.CounterVec
	fetches        *prometheus.CounterVec
	payments       *prometheus.CounterVec
	paymentAmounts *prometheus.CounterVec
}

func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "submission_tracking"
	}
	reg := prometheus.NewRegistry()
	p := &Prometheus{
		registry: reg,
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_total", Help: "Tracking cycles run.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "cycle_duration_seconds", Help: "Wall time of one tracking cycle.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycle_submissions_total", Help: "Submissions handled by tracking cycles, by outcome.",
		}, []string{"outcome"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "metric_fetches_total", Help: "Platform metric fetches, by snapshot quality or failure.",
		}, []string{"outcome"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "payments_total", Help: "Ledger payments applied, by payment mode.",
		}, []string{"mode"}),
		paymentAmounts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "payment_amount_total", Help: "Sum of credited amounts, by payment mode.",
		}, []string{"mode"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.cycles, p.cycleDuration, p.submissions, p.fetches, p.payments, p.paymentAmounts,
	)
	return p
}

var _ ports.TrackingMetrics = (*Prometheus)(nil)

func (p *Prometheus) ObserveCycle(stats ports.CycleStats) {
	p.cycles.Inc()
	p.cycleDuration.Observe(stats.Duration.Seconds())
	p.submissions.WithLabelValues("tracked").Add(float64(stats.Tracked))
	p.submissions.WithLabelValues("completed").Add(float64(stats.Completed))
	p.submissions.WithLabelValues("deadline_completed").Add(float64(stats.DeadlineCompleted))
	p.submissions.WithLabelValues("fetch_failed").Add(float64(stats.FetchFailures))
	p.submissions.WithLabelValues("ledger_failed").Add(float64(stats.LedgerFailures))
	p.submissions.WithLabelValues("lock_skipped").Add(float64(stats.LockSkipped))
}

func (p *Prometheus) ObserveFetch(outcome string) {
	p.fetches.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) ObservePayment(mode string, amount decimal.Decimal) {
	p.payments.WithLabelValues(mode).Inc()
	p.paymentAmounts.WithLabelValues(mode).Add(amount.InexactFloat64())
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

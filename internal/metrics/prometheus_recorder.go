package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "tagshipper"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	tickDuration     prom.Histogram
	tickOutcomes     *prom.CounterVec
	tagResults       *prom.CounterVec
	packageBytes     *prom.HistogramVec
	deliveryDuration *prom.HistogramVec
	pendingPackages  prom.Gauge
	markerAdvances   prom.Counter
}

// NewPrometheusRecorder constructs the metrics and registers them with reg
// (a fresh registry when reg is nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		tickDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of poll loop ticks",
			Buckets:   prom.ExponentialBuckets(0.1, 2, 12),
		}),
		tickOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "tick_outcomes_total",
			Help:      "Ticks by outcome",
		}, []string{"outcome"}),
		tagResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "tag_results_total",
			Help:      "New tags by result",
		}, []string{"result"}),
		packageBytes: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "package_size_bytes",
			Help:      "Size of created packages",
			Buckets:   prom.ExponentialBuckets(1024, 4, 10),
		}, []string{"format"}),
		deliveryDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Duration of package transfers by result",
			Buckets:   prom.DefBuckets,
		}, []string{"result"}),
		pendingPackages: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_packages",
			Help:      "Packages found in the delivery area at the start of the last drain",
		}),
		markerAdvances: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "marker_advances_total",
			Help:      "Number of times the last-seen marker moved forward",
		}),
	}
	reg.MustRegister(pr.tickDuration, pr.tickOutcomes, pr.tagResults, pr.packageBytes,
		pr.deliveryDuration, pr.pendingPackages, pr.markerAdvances)
	return pr
}

func (p *PrometheusRecorder) ObserveTickDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.tickDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTickOutcome(outcome TickOutcome) {
	if p == nil {
		return
	}
	p.tickOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncTagResult(result TagResult) {
	if p == nil {
		return
	}
	p.tagResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) ObservePackageBytes(format string, n int64) {
	if p == nil {
		return
	}
	p.packageBytes.WithLabelValues(format).Observe(float64(n))
}

func (p *PrometheusRecorder) ObserveDelivery(d time.Duration, success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.deliveryDuration.WithLabelValues(res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetPendingPackages(n int) {
	if p == nil {
		return
	}
	p.pendingPackages.Set(float64(n))
}

func (p *PrometheusRecorder) IncMarkerAdvance() {
	if p == nil {
		return
	}
	p.markerAdvances.Inc()
}

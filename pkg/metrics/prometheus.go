package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	paymentEvents   *prometheus.CounterVec
	upstreamTotal   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
}

// New creates a Prometheus metrics recorder registered with reg
// (prometheus.DefaultRegisterer when nil).
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		paymentEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bitquery_x402_payment_events_total",
				Help: "Payment gate events by route",
			},
			[]string{"route", "event"},
		),
		upstreamTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bitquery_x402_upstream_requests_total",
				Help: "Bitquery requests by report and outcome",
			},
			[]string{"report", "outcome"},
		),
		upstreamLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bitquery_x402_upstream_duration_seconds",
				Help:    "Duration of Bitquery requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"report"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bitquery_x402_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// RecordUpstream records one upstream call.
func (r *Recorder) RecordUpstream(report, outcome string, seconds float64) {
	r.upstreamTotal.WithLabelValues(report, outcome).Inc()
	r.upstreamLatency.WithLabelValues(report).Observe(seconds)
}

// RecordPaymentEvent records a payment gate event for a route.
func (r *Recorder) RecordPaymentEvent(route, event string) {
	r.paymentEvents.WithLabelValues(route, event).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

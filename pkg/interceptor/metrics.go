//
//  Copyright © Manetu Inc. All rights reserved.
//

package interceptor

import (
	"time"

	"github.com/manetu/auditinterceptor/pkg/record"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors maintained by the interceptor
type Metrics struct {
	// CallsAudited counts calls that matched a selector
	CallsAudited *prometheus.CounterVec
	// RecordsEmitted counts records handed to the pipeline, by trigger
	RecordsEmitted *prometheus.CounterVec
	// PipelineFailures counts records the pipeline failed to process
	PipelineFailures *prometheus.CounterVec
	// PipelineDuration observes the time spent in the pipeline per record
	PipelineDuration *prometheus.HistogramVec
}

// NewMetrics registers the interceptor collectors with reg.  A nil reg uses a
// private registry that is never exported.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		CallsAudited: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "audit_calls_total",
			Help: "Total number of calls matched by an audit selector.",
		}, []string{"method"}),

		RecordsEmitted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "audit_records_emitted_total",
			Help: "Total number of audit records handed to the pipeline.",
		}, []string{"method", "trigger"}),

		PipelineFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "audit_pipeline_failures_total",
			Help: "Total number of audit records the pipeline failed to process.",
		}, []string{"method"}),

		PipelineDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audit_pipeline_duration_seconds",
			Help:    "Histogram of audit pipeline latencies.",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method"}),
	}
}

func (m *Metrics) callAudited(method string) {
	if m != nil {
		m.CallsAudited.WithLabelValues(method).Inc()
	}
}

func (m *Metrics) recordEmitted(method string, trigger record.Trigger, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.RecordsEmitted.WithLabelValues(method, string(trigger)).Inc()
	m.PipelineDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	if err != nil {
		m.PipelineFailures.WithLabelValues(method).Inc()
	}
}

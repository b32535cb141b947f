package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/garyjia/fbr-submission/internal/application/port"
	"github.com/garyjia/fbr-submission/internal/domain/entity"
)

const namespace = "fbr_submission"

// Metrics holds the submission collectors
type Metrics struct {
	RunsStarted     *prometheus.CounterVec
	RunsCompleted   *prometheus.CounterVec
	Results         *prometheus.CounterVec
	Submitted       *prometheus.CounterVec
	GatewayDuration *prometheus.HistogramVec
}

// New registers the submission collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Submission runs started, by mode.",
		}, []string{"mode"}),
		RunsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Submission runs that reached COMPLETE, by mode.",
		}, []string{"mode"}),
		Results: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_total",
			Help:      "Per-invoice results recorded, by mode, outcome and reason.",
		}, []string{"mode", "outcome", "reason"}),
		Submitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_submitted_total",
			Help:      "Invoices that reached the gateway, by mode.",
		}, []string{"mode"}),
		GatewayDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Latency of compliance gateway calls, by operation and result.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "result"}),
	}
}

// RunStarted counts a started run
func (m *Metrics) RunStarted(mode entity.SubmissionMode) {
	m.RunsStarted.WithLabelValues(string(mode)).Inc()
}

// RunCompleted counts a completed run
func (m *Metrics) RunCompleted(mode entity.SubmissionMode) {
	m.RunsCompleted.WithLabelValues(string(mode)).Inc()
}

// ResultRecorded counts one per-invoice result
func (m *Metrics) ResultRecorded(mode entity.SubmissionMode, r *entity.ProcessResult) {
	reason := ""
	switch r.Outcome {
	case entity.OutcomeFailed:
		reason = string(r.FailureKind)
	case entity.OutcomeSkipped:
		reason = string(r.SkipReason)
	}
	m.Results.WithLabelValues(string(mode), string(r.Outcome), reason).Inc()
	if r.IsSubmitted() {
		m.Submitted.WithLabelValues(string(mode)).Inc()
	}
}

// InstrumentGateway wraps a gateway so every call is timed
func (m *Metrics) InstrumentGateway(next port.ComplianceGateway) port.ComplianceGateway {
	return &instrumentedGateway{next: next, metrics: m, now: time.Now}
}

type instrumentedGateway struct {
	next    port.ComplianceGateway
	metrics *Metrics
	now     func() time.Time
}

func (g *instrumentedGateway) Validate(ctx context.Context, req *port.GatewayRequest) (*port.GatewayResponse, error) {
	start := g.now()
	resp, err := g.next.Validate(ctx, req)
	g.observe("validate", start, resp, err)
	return resp, err
}

func (g *instrumentedGateway) Post(ctx context.Context, req *port.GatewayRequest) (*port.GatewayResponse, error) {
	start := g.now()
	resp, err := g.next.Post(ctx, req)
	g.observe("post", start, resp, err)
	return resp, err
}

func (g *instrumentedGateway) observe(op string, start time.Time, resp *port.GatewayResponse, err error) {
	g.metrics.GatewayDuration.
		WithLabelValues(op, callResult(resp, err)).
		Observe(g.now().Sub(start).Seconds())
}

func callResult(resp *port.GatewayResponse, err error) string {
	var netErr *entity.NetworkError
	switch {
	case errors.As(err, &netErr):
		return "network_error"
	case err != nil:
		return "error"
	case resp == nil:
		return "empty"
	case resp.Success:
		return "accepted"
	default:
		return "rejected"
	}
}

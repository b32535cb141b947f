package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/fbr-submission/internal/application/port"
	"github.com/garyjia/fbr-submission/internal/domain/entity"
)

type stubGateway struct {
	resp *port.GatewayResponse
	err  error
}

func (s *stubGateway) Validate(ctx context.Context, req *port.GatewayRequest) (*port.GatewayResponse, error) {
	return s.resp, s.err
}

func (s *stubGateway) Post(ctx context.Context, req *port.GatewayRequest) (*port.GatewayResponse, error) {
	return s.resp, s.err
}

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RunStarted(entity.ModePost)
	m.RunStarted(entity.ModePost)
	m.RunCompleted(entity.ModeValidate)
	m.ResultRecorded(entity.ModePost, &entity.ProcessResult{Outcome: entity.OutcomeSuccess})
	m.ResultRecorded(entity.ModePost, &entity.ProcessResult{Outcome: entity.OutcomeFailed, FailureKind: entity.FailureNetwork})
	m.ResultRecorded(entity.ModePost, &entity.ProcessResult{Outcome: entity.OutcomeSkipped, SkipReason: entity.SkipAlreadyPosted})
	m.ResultRecorded(entity.ModePost, &entity.ProcessResult{Outcome: entity.OutcomeFailed, FailureKind: entity.FailureIncompletePayload})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsStarted.WithLabelValues("post")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsCompleted.WithLabelValues("validate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Results.WithLabelValues("post", "SUCCESS", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Results.WithLabelValues("post", "FAILED", "network")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Results.WithLabelValues("post", "SKIPPED", "already posted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Submitted.WithLabelValues("post")), "incomplete payloads and skips never reach the gateway")
}

func TestInstrumentGateway(t *testing.T) {
	tests := []struct {
		name   string
		resp   *port.GatewayResponse
		err    error
		result string
	}{
		{name: "accepted", resp: &port.GatewayResponse{Success: true}, result: "accepted"},
		{name: "rejected", resp: &port.GatewayResponse{Error: "duplicate NTN"}, result: "rejected"},
		{name: "network", err: &entity.NetworkError{Op: "post", Err: errors.New("refused")}, result: "network_error"},
		{name: "empty", result: "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			m := New(reg)
			gw := m.InstrumentGateway(&stubGateway{resp: tt.resp, err: tt.err})

			resp, err := gw.Post(context.Background(), &port.GatewayRequest{InvoiceID: 1})
			assert.Equal(t, tt.resp, resp)
			assert.Equal(t, tt.err, err)

			count, err := testutil.GatherAndCount(reg, "fbr_submission_gateway_request_duration_seconds")
			require.NoError(t, err)
			assert.Equal(t, 1, count)

			families, err := reg.Gather()
			require.NoError(t, err)
			require.Len(t, families, 1)
			labels := map[string]string{}
			for _, lp := range families[0].GetMetric()[0].GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			assert.Equal(t, "post", labels["op"])
			assert.Equal(t, tt.result, labels["result"])
		})
	}
}

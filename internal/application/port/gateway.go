package port

import (
	"context"

	"github.com/garyjia/fbr-submission/internal/domain/entity"
)

// GatewayRequest identifies one invoice submission to the compliance gateway
type GatewayRequest struct {
	InvoiceID int64
	CompanyID string
	Payload   *entity.SubmissionPayload
}

// GatewayResponse is the structured outcome of one gateway call.
// A response with Success=false is a gateway-reported rejection.
type GatewayResponse struct {
	Success          bool   `json:"success"`
	FBRInvoiceNumber string `json:"fbrInvoiceNumber,omitempty"`
	Message          string `json:"message,omitempty"`
	Error            string `json:"error,omitempty"`
}

// ComplianceGateway performs one network call per invoice against the tax-authority gateway.
// Transport failures are returned as *entity.NetworkError.
type ComplianceGateway interface {
	Validate(ctx context.Context, req *GatewayRequest) (*GatewayResponse, error)
	Post(ctx context.Context, req *GatewayRequest) (*GatewayResponse, error)
}

// RunNotifier announces completed runs to operators
type RunNotifier interface {
	NotifyRunCompleted(ctx context.Context, run *entity.SubmissionRun, results []*entity.ProcessResult) error
}

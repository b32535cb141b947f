package entity

import (
	"fmt"
	"time"
)

// Outcome tags the result of processing one invoice
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
	OutcomeSkipped Outcome = "SKIPPED"
)

// SkipReason is the closed set of reasons an invoice can be skipped
type SkipReason string

const (
	SkipAlreadyPosted     SkipReason = "already posted"
	SkipSkippedByOperator SkipReason = "skipped by operator"
	SkipStoppedByOperator SkipReason = "stopped by operator"
)

// IsValid reports whether the reason belongs to the closed set
func (r SkipReason) IsValid() bool {
	switch r {
	case SkipAlreadyPosted, SkipSkippedByOperator, SkipStoppedByOperator:
		return true
	default:
		return false
	}
}

// FailureKind distinguishes where a failure originated
type FailureKind string

const (
	FailureGatewayRejection  FailureKind = "gateway_rejection"
	FailureNetwork           FailureKind = "network"
	FailureIncompletePayload FailureKind = "incomplete_payload"
)

// NetworkFailureMessage is recorded for transport failures instead of the raw transport error
const NetworkFailureMessage = "gateway unreachable, please retry in a new run"

// MissingReferenceMessage is recorded when a post is acknowledged without an invoice reference.
// The invoice may be recorded at the gateway, so it must be checked there before posting again.
const MissingReferenceMessage = "gateway returned no invoice reference, check the FBR portal before reposting"

// ProcessResult is the outcome recorded for exactly one invoice of a run
type ProcessResult struct {
	InvoiceID     int64       `json:"invoice_id"`
	InvoiceNumber string      `json:"invoice_number"`
	Outcome       Outcome     `json:"outcome"`
	Reference     string      `json:"reference,omitempty"`
	Message       string      `json:"message,omitempty"`
	Error         string      `json:"error,omitempty"`
	FailureKind   FailureKind `json:"failure_kind,omitempty"`
	SkipReason    SkipReason  `json:"skip_reason,omitempty"`
	Position      int         `json:"position"`
	Sequence      int         `json:"sequence"`
	RecordedAt    time.Time   `json:"recorded_at"`
}

// NewSuccessResult records a gateway acceptance
func NewSuccessResult(inv *InvoiceCandidate, reference, message string) *ProcessResult {
	return &ProcessResult{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		Outcome:       OutcomeSuccess,
		Reference:     reference,
		Message:       message,
		RecordedAt:    time.Now(),
	}
}

// NewFailedResult records a failure of the given kind
func NewFailedResult(inv *InvoiceCandidate, kind FailureKind, errMsg string) *ProcessResult {
	return &ProcessResult{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		Outcome:       OutcomeFailed,
		Error:         errMsg,
		FailureKind:   kind,
		RecordedAt:    time.Now(),
	}
}

// NewSkippedResult records an invoice that was never sent
func NewSkippedResult(inv *InvoiceCandidate, reason SkipReason) *ProcessResult {
	return &ProcessResult{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		Outcome:       OutcomeSkipped,
		SkipReason:    reason,
		RecordedAt:    time.Now(),
	}
}

// Detail returns the per-invoice reason string shown in summaries
func (r *ProcessResult) Detail() string {
	switch r.Outcome {
	case OutcomeSuccess:
		if r.Message != "" {
			return fmt.Sprintf("%s (%s)", r.Reference, r.Message)
		}
		return r.Reference
	case OutcomeFailed:
		return r.Error
	case OutcomeSkipped:
		return string(r.SkipReason)
	default:
		return ""
	}
}

// IsSubmitted reports whether the gateway was actually called for this invoice
func (r *ProcessResult) IsSubmitted() bool {
	return r.Outcome == OutcomeSuccess ||
		(r.Outcome == OutcomeFailed && r.FailureKind != FailureIncompletePayload)
}

// SubmissionRun is the persisted header of one workflow instance
type SubmissionRun struct {
	ID          string         `json:"id"`
	CompanyID   string         `json:"company_id"`
	Mode        SubmissionMode `json:"mode"`
	State       string         `json:"state"`
	Total       int            `json:"total"`
	Succeeded   int            `json:"succeeded"`
	Failed      int            `json:"failed"`
	Skipped     int            `json:"skipped"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

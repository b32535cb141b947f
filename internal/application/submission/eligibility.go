package submission

import "github.com/garyjia/fbr-submission/internal/domain/entity"

// Eligibility splits a candidate set into invoices to offer and invoices skipped up front
type Eligibility struct {
	Eligible   []*entity.InvoiceCandidate
	PreSkipped []*entity.ProcessResult
}

// FilterEligible applies the mode rules to the candidates, preserving their order.
// In post mode an invoice that already carries a gateway reference is skipped as already posted;
// validate mode excludes nothing. Positions of pre-skipped results index into candidates.
func FilterEligible(candidates []*entity.InvoiceCandidate, mode entity.SubmissionMode) Eligibility {
	out := Eligibility{
		Eligible:   make([]*entity.InvoiceCandidate, 0, len(candidates)),
		PreSkipped: make([]*entity.ProcessResult, 0),
	}

	for i, inv := range candidates {
		if mode == entity.ModePost && inv.HasGatewayReference() {
			r := entity.NewSkippedResult(inv, entity.SkipAlreadyPosted)
			r.Position = i
			out.PreSkipped = append(out.PreSkipped, r)
			continue
		}
		out.Eligible = append(out.Eligible, inv)
	}

	return out
}

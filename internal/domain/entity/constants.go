package entity

// SubmissionMode selects which gateway operation a run performs
type SubmissionMode string

const (
	ModeValidate SubmissionMode = "validate"
	ModePost     SubmissionMode = "post"
)

// IsValid reports whether the mode is a known gateway operation
func (m SubmissionMode) IsValid() bool {
	return m == ModeValidate || m == ModePost
}

// String returns the string representation of the mode
func (m SubmissionMode) String() string {
	return string(m)
}

// Invoice lifecycle status constants
const (
	InvoiceStatusDraft  = "draft"
	InvoiceStatusIssued = "issued"
	InvoiceStatusPosted = "posted"
)

// Tax kinds carried in the tax breakdown
const (
	TaxKindSalesTax   = "sales_tax"
	TaxKindFurtherTax = "further_tax"
)

// DefaultInvoiceType is used when the seller profile does not configure one
const DefaultInvoiceType = "Sale Invoice"

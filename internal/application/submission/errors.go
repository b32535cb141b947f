package submission

import "errors"

var (
	// ErrInvalidMode is returned when a run is created with an unknown mode
	ErrInvalidMode = errors.New("invalid submission mode")

	// ErrDuplicateResult is returned when a second result is recorded for the same invoice
	ErrDuplicateResult = errors.New("result already recorded for invoice")

	// ErrInvoiceNotFound is returned when requested invoices do not exist for the company
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrInvoiceNotLoaded is returned when previewing an invoice outside the loaded set
	ErrInvoiceNotLoaded = errors.New("invoice not part of this run")

	// ErrNoCurrentInvoice is returned when no invoice is awaiting confirmation
	ErrNoCurrentInvoice = errors.New("no invoice awaiting confirmation")

	// ErrEmptySelection is returned when a run is started without invoice ids
	ErrEmptySelection = errors.New("no invoices selected")
)

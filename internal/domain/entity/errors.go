package entity

import (
	"fmt"
	"strings"
)

// IncompletePayloadError is returned when mandatory identity or line-item fields are missing.
// It blocks the affected invoice before any gateway call.
type IncompletePayloadError struct {
	InvoiceNumber string
	Fields        []string
}

func (e *IncompletePayloadError) Error() string {
	return fmt.Sprintf("incomplete payload for invoice %s: missing or invalid %s",
		e.InvoiceNumber, strings.Join(e.Fields, ", "))
}

// GatewayRejectionError is a failure reported by the gateway itself
type GatewayRejectionError struct {
	Code    string
	Message string
}

func (e *GatewayRejectionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway rejected invoice (%s): %s", e.Code, e.Message)
	}
	return "gateway rejected invoice: " + e.Message
}

// NetworkError wraps a transport failure talking to the gateway
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// AlreadyPostedError marks an invoice that already carries a gateway reference
type AlreadyPostedError struct {
	InvoiceNumber string
	Reference     string
}

func (e *AlreadyPostedError) Error() string {
	return fmt.Sprintf("invoice %s already posted as %s", e.InvoiceNumber, e.Reference)
}

package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubmissionPayload is the document sent to the compliance gateway for one invoice.
// It is built on demand and discarded after the call that consumes it.
type SubmissionPayload struct {
	InvoiceType        string        `json:"invoiceType" validate:"required"`
	InvoiceDate        time.Time     `json:"invoiceDate" validate:"required"`
	SellerNTNCNIC      string        `json:"sellerNTNCNIC" validate:"required,ntncnic"`
	SellerBusinessName string        `json:"sellerBusinessName" validate:"required"`
	SellerProvince     string        `json:"sellerProvince,omitempty"`
	SellerAddress      string        `json:"sellerAddress,omitempty"`
	BuyerNTNCNIC       string        `json:"buyerNTNCNIC" validate:"required,ntncnic"`
	BuyerBusinessName  string        `json:"buyerBusinessName" validate:"required"`
	BuyerProvince      string        `json:"buyerProvince,omitempty"`
	BuyerAddress       string        `json:"buyerAddress,omitempty"`
	InvoiceRefNo       string        `json:"invoiceRefNo" validate:"required"`
	ScenarioID         string        `json:"scenarioId" validate:"required"`
	Items              []PayloadItem `json:"items" validate:"required,min=1,dive"`
}

// PayloadItem is one line of the gateway document
type PayloadItem struct {
	Description string          `json:"description" validate:"required"`
	HSCode      string          `json:"hsCode" validate:"required"`
	UOM         string          `json:"uom" validate:"required"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gt=0"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
	TaxRate     decimal.Decimal `json:"taxRate"`
	TaxAmount   decimal.Decimal `json:"taxAmount"`
	FurtherTax  decimal.Decimal `json:"furtherTax"`
}

// TotalValue sums line totals and taxes across all items
func (p *SubmissionPayload) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, item := range p.Items {
		total = total.Add(item.LineTotal).Add(item.TaxAmount).Add(item.FurtherTax)
	}
	return total
}

package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceCandidate is a locally created invoice offered to a submission run.
// The workflow treats it as read-only input.
type InvoiceCandidate struct {
	ID               int64           `json:"id"`
	CompanyID        string          `json:"company_id"`
	InvoiceNumber    string          `json:"invoice_number"`
	InvoiceDate      time.Time       `json:"invoice_date"`
	BuyerName        string          `json:"buyer_name"`
	BuyerNTNCNIC     string          `json:"buyer_ntn_cnic"`
	BuyerProvince    string          `json:"buyer_province,omitempty"`
	BuyerAddress     string          `json:"buyer_address,omitempty"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Taxes            []TaxComponent  `json:"taxes"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Status           string          `json:"status"`
	FBRInvoiceNumber string          `json:"fbr_invoice_number,omitempty"`
	Lines            []InvoiceLine   `json:"lines"`
}

// TaxComponent is one entry of the invoice tax breakdown.
// Rate is a percentage (18 means 18%).
type TaxComponent struct {
	Kind   string          `json:"kind"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// InvoiceLine is a sold item on a local invoice
type InvoiceLine struct {
	LineNo      int             `json:"line_no"`
	Description string          `json:"description"`
	HSCode      string          `json:"hs_code"`
	UOM         string          `json:"uom"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// HasGatewayReference reports whether the gateway already assigned a reference to this invoice
func (i *InvoiceCandidate) HasGatewayReference() bool {
	return i.FBRInvoiceNumber != ""
}

// PrimaryTax returns the first tax component, if any
func (i *InvoiceCandidate) PrimaryTax() (TaxComponent, bool) {
	if len(i.Taxes) == 0 {
		return TaxComponent{}, false
	}
	return i.Taxes[0], true
}

// SecondaryTax returns the second tax component, if any
func (i *InvoiceCandidate) SecondaryTax() (TaxComponent, bool) {
	if len(i.Taxes) < 2 {
		return TaxComponent{}, false
	}
	return i.Taxes[1], true
}

// TaxTotal sums the amounts of every tax component
func (i *InvoiceCandidate) TaxTotal() decimal.Decimal {
	total := decimal.Zero
	for _, t := range i.Taxes {
		total = total.Add(t.Amount)
	}
	return total
}

// SellerProfile carries the seller-side identity and tax scenario used to build payloads
type SellerProfile struct {
	CompanyID    string `json:"company_id"`
	NTNCNIC      string `json:"ntn_cnic"`
	BusinessName string `json:"business_name"`
	Province     string `json:"province"`
	Address      string `json:"address"`
	ScenarioID   string `json:"scenario_id"`
	InvoiceType  string `json:"invoice_type"`
}

package fbr

import (
	"fmt"

	"github.com/garyjia/fbr-submission/internal/domain/entity"
)

const statusCodeValid = "00"

// invoiceRequest is the digital invoicing document as the gateway expects it
type invoiceRequest struct {
	InvoiceType        string        `json:"invoiceType"`
	InvoiceDate        string        `json:"invoiceDate"`
	SellerNTNCNIC      string        `json:"sellerNTNCNIC"`
	SellerBusinessName string        `json:"sellerBusinessName"`
	SellerProvince     string        `json:"sellerProvince"`
	SellerAddress      string        `json:"sellerAddress"`
	BuyerNTNCNIC       string        `json:"buyerNTNCNIC"`
	BuyerBusinessName  string        `json:"buyerBusinessName"`
	BuyerProvince      string        `json:"buyerProvince"`
	BuyerAddress       string        `json:"buyerAddress"`
	InvoiceRefNo       string        `json:"invoiceRefNo"`
	ScenarioID         string        `json:"scenarioId"`
	Items              []invoiceItem `json:"items"`
}

type invoiceItem struct {
	HSCode                string  `json:"hsCode"`
	ProductDescription    string  `json:"productDescription"`
	Rate                  string  `json:"rate"`
	UOM                   string  `json:"uoM"`
	Quantity              float64 `json:"quantity"`
	UnitPrice             float64 `json:"fixedNotifiedValueOrRetailPrice"`
	TotalValues           float64 `json:"totalValues"`
	ValueSalesExcludingST float64 `json:"valueSalesExcludingST"`
	SalesTaxApplicable    float64 `json:"salesTaxApplicable"`
	FurtherTax            float64 `json:"furtherTax"`
}

// invoiceResponse is the gateway reply to validate and post calls
type invoiceResponse struct {
	InvoiceNumber      string             `json:"invoiceNumber"`
	Dated              string             `json:"dated"`
	ValidationResponse validationResponse `json:"validationResponse"`
}

type validationResponse struct {
	StatusCode      string          `json:"statusCode"`
	Status          string          `json:"status"`
	Error           string          `json:"error"`
	InvoiceStatuses []invoiceStatus `json:"invoiceStatuses"`
}

type invoiceStatus struct {
	ItemSNo    string `json:"itemSNo"`
	StatusCode string `json:"statusCode"`
	Status     string `json:"status"`
	InvoiceNo  string `json:"invoiceNo"`
	ErrorCode  string `json:"errorCode"`
	Error      string `json:"error"`
}

func toInvoiceRequest(p *entity.SubmissionPayload) *invoiceRequest {
	req := &invoiceRequest{
		InvoiceType:        p.InvoiceType,
		InvoiceDate:        p.InvoiceDate.Format("2006-01-02"),
		SellerNTNCNIC:      p.SellerNTNCNIC,
		SellerBusinessName: p.SellerBusinessName,
		SellerProvince:     p.SellerProvince,
		SellerAddress:      p.SellerAddress,
		BuyerNTNCNIC:       p.BuyerNTNCNIC,
		BuyerBusinessName:  p.BuyerBusinessName,
		BuyerProvince:      p.BuyerProvince,
		BuyerAddress:       p.BuyerAddress,
		InvoiceRefNo:       p.InvoiceRefNo,
		ScenarioID:         p.ScenarioID,
		Items:              make([]invoiceItem, 0, len(p.Items)),
	}

	for _, item := range p.Items {
		qty, _ := item.Quantity.Float64()
		price, _ := item.UnitPrice.Float64()
		lineTotal, _ := item.LineTotal.Float64()
		tax, _ := item.TaxAmount.Float64()
		further, _ := item.FurtherTax.Float64()
		total, _ := item.LineTotal.Add(item.TaxAmount).Add(item.FurtherTax).Float64()

		req.Items = append(req.Items, invoiceItem{
			HSCode:                item.HSCode,
			ProductDescription:    item.Description,
			Rate:                  item.TaxRate.String() + "%",
			UOM:                   item.UOM,
			Quantity:              qty,
			UnitPrice:             price,
			TotalValues:           total,
			ValueSalesExcludingST: lineTotal,
			SalesTaxApplicable:    tax,
			FurtherTax:            further,
		})
	}

	return req
}

// rejection returns the most specific error the gateway reported
func (r *invoiceResponse) rejection() *entity.GatewayRejectionError {
	v := r.ValidationResponse
	if v.Error != "" {
		return &entity.GatewayRejectionError{Code: v.StatusCode, Message: v.Error}
	}
	for _, st := range v.InvoiceStatuses {
		if st.Error != "" {
			return &entity.GatewayRejectionError{
				Code:    st.ErrorCode,
				Message: fmt.Sprintf("item %s: %s", st.ItemSNo, st.Error),
			}
		}
	}
	msg := v.Status
	if msg == "" {
		msg = "rejected by gateway"
	}
	return &entity.GatewayRejectionError{Code: v.StatusCode, Message: msg}
}

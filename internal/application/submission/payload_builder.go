package submission

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/garyjia/fbr-submission/internal/domain/entity"
	"github.com/garyjia/fbr-submission/pkg/utils"
)

var hundred = decimal.NewFromInt(100)

// PayloadBuilder maps an invoice candidate and seller profile to a gateway payload
type PayloadBuilder struct {
	validate *validator.Validate
}

// NewPayloadBuilder creates a builder with the payload validation rules registered
func NewPayloadBuilder() *PayloadBuilder {
	v := validator.New()

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// Registration only fails for an empty tag or nil func
	_ = v.RegisterValidation("ntncnic", func(fl validator.FieldLevel) bool {
		return utils.IsNTNCNIC(fl.Field().String())
	})

	return &PayloadBuilder{validate: v}
}

// Build creates the payload for one invoice. It never mutates its inputs.
// A payload missing mandatory fields is returned together with an *entity.IncompletePayloadError.
func (b *PayloadBuilder) Build(inv *entity.InvoiceCandidate, seller *entity.SellerProfile) (*entity.SubmissionPayload, error) {
	if inv == nil {
		return nil, errors.New("invoice candidate is nil")
	}
	if seller == nil {
		seller = &entity.SellerProfile{CompanyID: inv.CompanyID}
	}

	invoiceType := seller.InvoiceType
	if invoiceType == "" {
		invoiceType = entity.DefaultInvoiceType
	}

	payload := &entity.SubmissionPayload{
		InvoiceType:        invoiceType,
		InvoiceDate:        inv.InvoiceDate,
		SellerNTNCNIC:      seller.NTNCNIC,
		SellerBusinessName: seller.BusinessName,
		SellerProvince:     seller.Province,
		SellerAddress:      seller.Address,
		BuyerNTNCNIC:       inv.BuyerNTNCNIC,
		BuyerBusinessName:  inv.BuyerName,
		BuyerProvince:      inv.BuyerProvince,
		BuyerAddress:       inv.BuyerAddress,
		InvoiceRefNo:       inv.InvoiceNumber,
		ScenarioID:         seller.ScenarioID,
		Items:              make([]entity.PayloadItem, 0, len(inv.Lines)),
	}

	primary, hasPrimary := inv.PrimaryTax()
	secondary, hasSecondary := inv.SecondaryTax()

	for _, line := range inv.Lines {
		lineTotal := line.Quantity.Mul(line.UnitPrice).Round(2)
		item := entity.PayloadItem{
			Description: line.Description,
			HSCode:      line.HSCode,
			UOM:         line.UOM,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
			LineTotal:   lineTotal,
		}
		if hasPrimary {
			item.TaxRate = primary.Rate
			item.TaxAmount = percentOf(lineTotal, primary.Rate)
		}
		if hasSecondary {
			item.FurtherTax = percentOf(lineTotal, secondary.Rate)
		}
		payload.Items = append(payload.Items, item)
	}

	if err := b.validate.Struct(payload); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return payload, fmt.Errorf("validate payload: %w", err)
		}
		return payload, &entity.IncompletePayloadError{
			InvoiceNumber: inv.InvoiceNumber,
			Fields:        fieldNames(verrs),
		}
	}

	return payload, nil
}

func percentOf(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred).Round(2)
}

// fieldNames turns validator namespaces like "SubmissionPayload.items[0].hsCode" into "items[0].hsCode"
func fieldNames(verrs validator.ValidationErrors) []string {
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if idx := strings.Index(ns, "."); idx >= 0 {
			ns = ns[idx+1:]
		}
		names = append(names, ns)
	}
	return names
}

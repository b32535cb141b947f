package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"

	"github.com/garyjia/fbr-submission/internal/application/port"
	"github.com/garyjia/fbr-submission/internal/domain/entity"
)

var seedProducts = []struct {
	description string
	hsCode      string
	uom         string
}{
	{"Steel rods", "7214.2000", "KG"},
	{"Galvanized wire", "7217.2000", "KG"},
	{"Cotton yarn", "5205.1200", "KG"},
	{"LED bulbs", "8539.5000", "Numbers, pieces, units"},
	{"Ceramic tiles", "6907.2100", "SqY"},
}

var seedProvinces = []string{"Punjab", "Sindh", "Khyber Pakhtunkhwa", "Balochistan", "Islamabad Capital Territory"}

// Seeder fills a company with plausible invoices for sandbox runs
type Seeder struct {
	tx       port.TransactionManager
	invoices port.InvoiceRepository
	sellers  port.SellerRepository
	faker    *gofakeit.Faker
}

// NewSeeder creates a seeder; the same seed always produces the same invoice contents
func NewSeeder(tx port.TransactionManager, invoices port.InvoiceRepository, sellers port.SellerRepository, seed uint64) *Seeder {
	return &Seeder{
		tx:       tx,
		invoices: invoices,
		sellers:  sellers,
		faker:    gofakeit.New(seed),
	}
}

// Seed stores a seller profile and n issued invoices in one transaction and returns their ids.
// Invoice numbers continue after the company's existing invoices so repeated seeding never collides.
func (s *Seeder) Seed(ctx context.Context, companyID string, n int) ([]int64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invoice count must be positive")
	}

	ids := make([]int64, 0, n)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.sellers.Upsert(ctx, s.seller(companyID)); err != nil {
			return fmt.Errorf("store seller: %w", err)
		}
		existing, err := s.invoices.CountByCompany(ctx, companyID)
		if err != nil {
			return fmt.Errorf("count invoices: %w", err)
		}
		for i := 0; i < n; i++ {
			inv := s.invoice(companyID, existing+i+1)
			if err := s.invoices.Create(ctx, inv); err != nil {
				return fmt.Errorf("store invoice %s: %w", inv.InvoiceNumber, err)
			}
			ids = append(ids, inv.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Seeder) seller(companyID string) *entity.SellerProfile {
	return &entity.SellerProfile{
		CompanyID:    companyID,
		NTNCNIC:      s.faker.DigitN(7),
		BusinessName: s.faker.Company(),
		Province:     seedProvinces[s.faker.Number(0, len(seedProvinces)-1)],
		Address:      s.faker.Street(),
		ScenarioID:   "SN001",
		InvoiceType:  entity.DefaultInvoiceType,
	}
}

func (s *Seeder) invoice(companyID string, seq int) *entity.InvoiceCandidate {
	f := s.faker
	lines := make([]entity.InvoiceLine, f.Number(1, 3))
	subtotal := decimal.Zero
	for i := range lines {
		p := seedProducts[f.Number(0, len(seedProducts)-1)]
		lines[i] = entity.InvoiceLine{
			LineNo:      i + 1,
			Description: p.description,
			HSCode:      p.hsCode,
			UOM:         p.uom,
			Quantity:    decimal.NewFromInt(int64(f.Number(1, 100))),
			UnitPrice:   decimal.NewFromFloat(f.Price(10, 5000)).Round(2),
		}
		subtotal = subtotal.Add(lines[i].Quantity.Mul(lines[i].UnitPrice).Round(2))
	}

	rate := decimal.NewFromInt(18)
	tax := subtotal.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)

	inv := &entity.InvoiceCandidate{
		CompanyID:     companyID,
		InvoiceNumber: fmt.Sprintf("SEED-%s-%04d", f.DigitN(4), seq),
		InvoiceDate:   time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -f.Number(0, 30)),
		BuyerName:     f.Company(),
		BuyerNTNCNIC:  f.DigitN(7),
		BuyerProvince: seedProvinces[f.Number(0, len(seedProvinces)-1)],
		BuyerAddress:  f.Street(),
		Subtotal:      subtotal,
		Taxes:         []entity.TaxComponent{{Kind: entity.TaxKindSalesTax, Rate: rate, Amount: tax}},
		Status:        entity.InvoiceStatusIssued,
		Lines:         lines,
	}
	inv.TotalAmount = subtotal.Add(inv.TaxTotal())
	return inv
}

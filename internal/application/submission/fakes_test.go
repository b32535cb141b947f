package submission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/garyjia/fbr-submission/internal/application/port"
	"github.com/garyjia/fbr-submission/internal/domain/entity"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Validate(ctx context.Context, req *port.GatewayRequest) (*port.GatewayResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*port.GatewayResponse)
	return resp, args.Error(1)
}

func (m *mockGateway) Post(ctx context.Context, req *port.GatewayRequest) (*port.GatewayResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*port.GatewayResponse)
	return resp, args.Error(1)
}

// forInvoice matches gateway requests for one invoice id
func forInvoice(id int64) interface{} {
	return mock.MatchedBy(func(req *port.GatewayRequest) bool {
		return req != nil && req.InvoiceID == id
	})
}

type fakeInvoices struct {
	mu        sync.Mutex
	byID      map[int64]*entity.InvoiceCandidate
	getByIDFn func(id int64) (*entity.InvoiceCandidate, error)
	getCalls  int
}

func newFakeInvoices(invoices ...*entity.InvoiceCandidate) *fakeInvoices {
	f := &fakeInvoices{byID: make(map[int64]*entity.InvoiceCandidate)}
	for _, inv := range invoices {
		f.byID[inv.ID] = inv
	}
	return f
}

func (f *fakeInvoices) GetByIDs(ctx context.Context, companyID string, ids []int64) ([]*entity.InvoiceCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*entity.InvoiceCandidate, 0, len(ids))
	for _, id := range ids {
		if inv, ok := f.byID[id]; ok && inv.CompanyID == companyID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeInvoices) GetByID(ctx context.Context, companyID string, id int64) (*entity.InvoiceCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getCalls++
	if f.getByIDFn != nil {
		return f.getByIDFn(id)
	}
	inv, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeInvoices) setReference(id int64, ref string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id].FBRInvoiceNumber = ref
}

type fakeSellers struct {
	seller *entity.SellerProfile
	err    error
}

func (f *fakeSellers) GetByCompanyID(ctx context.Context, companyID string) (*entity.SellerProfile, error) {
	return f.seller, f.err
}

func (f *fakeSellers) Upsert(ctx context.Context, seller *entity.SellerProfile) error {
	f.seller = seller
	return nil
}

type recordingObserver struct {
	results   []*entity.ProcessResult
	completed int
	summary   Summary
}

func (o *recordingObserver) OnResult(ctx context.Context, sessionID string, result *entity.ProcessResult) {
	o.results = append(o.results, result)
}

func (o *recordingObserver) OnComplete(ctx context.Context, sessionID string, summary Summary, results []*entity.ProcessResult) {
	o.completed++
	o.summary = summary
}

const testCompany = "acme"

func testSeller() *entity.SellerProfile {
	return &entity.SellerProfile{
		CompanyID:    testCompany,
		NTNCNIC:      "7654321-8",
		BusinessName: "Acme Traders",
		Province:     "Punjab",
		Address:      "12 Mall Road, Lahore",
		ScenarioID:   "SN001",
	}
}

func testInvoice(id int64) *entity.InvoiceCandidate {
	return &entity.InvoiceCandidate{
		ID:            id,
		CompanyID:     testCompany,
		InvoiceNumber: fmt.Sprintf("INV-%04d", id),
		InvoiceDate:   time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		BuyerName:     "Buyer Ltd",
		BuyerNTNCNIC:  "1234567",
		BuyerProvince: "Sindh",
		Subtotal:      decimal.NewFromInt(1000),
		Taxes: []entity.TaxComponent{
			{Kind: entity.TaxKindSalesTax, Rate: decimal.NewFromInt(18), Amount: decimal.NewFromInt(180)},
		},
		TotalAmount: decimal.NewFromInt(1180),
		Status:      entity.InvoiceStatusIssued,
		Lines: []entity.InvoiceLine{
			{LineNo: 1, Description: "Steel rods", HSCode: "7214.2000", UOM: "KG", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(100)},
		},
	}
}

// randomInvoices builds n complete invoices, some of them already carrying a gateway reference
func randomInvoices(f *gofakeit.Faker, n int) []*entity.InvoiceCandidate {
	out := make([]*entity.InvoiceCandidate, 0, n)
	for i := 0; i < n; i++ {
		inv := testInvoice(int64(i + 1))
		inv.BuyerName = f.Company()
		inv.BuyerNTNCNIC = f.DigitN(7)
		inv.Lines[0].Quantity = decimal.NewFromInt(int64(f.Number(1, 50)))
		inv.Lines[0].UnitPrice = decimal.NewFromFloat(f.Price(1, 1000)).Round(2)
		if f.Number(0, 3) == 0 {
			inv.FBRInvoiceNumber = "FBR-" + f.DigitN(6)
		}
		out = append(out, inv)
	}
	return out
}

func idsOf(invoices []*entity.InvoiceCandidate) []int64 {
	ids := make([]int64, 0, len(invoices))
	for _, inv := range invoices {
		ids = append(ids, inv.ID)
	}
	return ids
}

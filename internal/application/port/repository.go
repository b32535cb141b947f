package port

import (
	"context"

	"github.com/garyjia/fbr-submission/internal/domain/entity"
)

// InvoiceSource reads invoice candidates for a company
type InvoiceSource interface {
	// GetByIDs returns the candidates in the order of ids; unknown ids are omitted
	GetByIDs(ctx context.Context, companyID string, ids []int64) ([]*entity.InvoiceCandidate, error)

	// GetByID returns nil, nil when the invoice does not exist
	GetByID(ctx context.Context, companyID string, id int64) (*entity.InvoiceCandidate, error)
}

// InvoiceRepository extends InvoiceSource with the mutations performed after a gateway call
type InvoiceRepository interface {
	InvoiceSource
	Create(ctx context.Context, invoice *entity.InvoiceCandidate) error
	CountByCompany(ctx context.Context, companyID string) (int, error)
	MarkPosted(ctx context.Context, id int64, reference string) error
}

// SellerRepository provides the seller-side identity of a company
type SellerRepository interface {
	GetByCompanyID(ctx context.Context, companyID string) (*entity.SellerProfile, error)
	Upsert(ctx context.Context, seller *entity.SellerProfile) error
}

// RunRepository persists run headers and their results
type RunRepository interface {
	Create(ctx context.Context, run *entity.SubmissionRun) error
	GetByID(ctx context.Context, id string) (*entity.SubmissionRun, error)
	Complete(ctx context.Context, run *entity.SubmissionRun) error
	Delete(ctx context.Context, id string) error
	AppendResult(ctx context.Context, runID string, result *entity.ProcessResult) error
	GetResults(ctx context.Context, runID string) ([]*entity.ProcessResult, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

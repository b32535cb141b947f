package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/fbr-submission/internal/application/port"
	"github.com/garyjia/fbr-submission/internal/domain/entity"
	"github.com/garyjia/fbr-submission/internal/infrastructure/persistence/sqlite"
)

// SellerRepository implements port.SellerRepository over the companies table
type SellerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSellerRepository creates a new seller repository
func NewSellerRepository(db *sql.DB, logger *zap.Logger) *SellerRepository {
	return &SellerRepository{
		db:     db,
		logger: logger,
	}
}

// GetByCompanyID returns nil, nil when the company has no profile
func (r *SellerRepository) GetByCompanyID(ctx context.Context, companyID string) (*entity.SellerProfile, error) {
	query := `
		SELECT company_id, ntn_cnic, business_name, province, address, scenario_id, invoice_type
		FROM companies
		WHERE company_id = ?
	`

	var s entity.SellerProfile
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, companyID).Scan(
		&s.CompanyID,
		&s.NTNCNIC,
		&s.BusinessName,
		&s.Province,
		&s.Address,
		&s.ScenarioID,
		&s.InvoiceType,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get seller profile", zap.String("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to get seller profile: %w", err)
	}

	return &s, nil
}

// Upsert creates or replaces the profile of a company
func (r *SellerRepository) Upsert(ctx context.Context, seller *entity.SellerProfile) error {
	query := `
		INSERT INTO companies (company_id, ntn_cnic, business_name, province, address, scenario_id, invoice_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id) DO UPDATE SET
			ntn_cnic = excluded.ntn_cnic,
			business_name = excluded.business_name,
			province = excluded.province,
			address = excluded.address,
			scenario_id = excluded.scenario_id,
			invoice_type = excluded.invoice_type,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		seller.CompanyID,
		seller.NTNCNIC,
		seller.BusinessName,
		seller.Province,
		seller.Address,
		seller.ScenarioID,
		seller.InvoiceType,
	)
	if err != nil {
		r.logger.Error("Failed to upsert seller profile", zap.String("company_id", seller.CompanyID), zap.Error(err))
		return fmt.Errorf("failed to upsert seller profile: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.SellerRepository = (*SellerRepository)(nil)

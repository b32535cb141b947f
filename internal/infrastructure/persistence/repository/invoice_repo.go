package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/fbr-submission/internal/application/port"
	"github.com/garyjia/fbr-submission/internal/domain/entity"
	"github.com/garyjia/fbr-submission/internal/infrastructure/persistence/sqlite"
)

// InvoiceRepository implements port.InvoiceRepository
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

const invoiceColumns = `
	id, company_id, invoice_number, invoice_date, buyer_name, buyer_ntn_cnic,
	buyer_province, buyer_address, subtotal, taxes, total_amount, status, fbr_invoice_number`

// Create inserts an invoice with its lines
func (r *InvoiceRepository) Create(ctx context.Context, invoice *entity.InvoiceCandidate) error {
	taxes, err := json.Marshal(invoice.Taxes)
	if err != nil {
		return fmt.Errorf("failed to encode taxes: %w", err)
	}

	status := invoice.Status
	if status == "" {
		status = entity.InvoiceStatusDraft
	}

	query := `
		INSERT INTO invoices (
			company_id, invoice_number, invoice_date, buyer_name, buyer_ntn_cnic,
			buyer_province, buyer_address, subtotal, taxes, total_amount, status, fbr_invoice_number
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	exec := sqlite.Conn(ctx, r.db)
	result, err := exec.ExecContext(ctx, query,
		invoice.CompanyID,
		invoice.InvoiceNumber,
		invoice.InvoiceDate,
		invoice.BuyerName,
		invoice.BuyerNTNCNIC,
		invoice.BuyerProvince,
		invoice.BuyerAddress,
		invoice.Subtotal,
		string(taxes),
		invoice.TotalAmount,
		status,
		nullString(invoice.FBRInvoiceNumber),
	)
	if err != nil {
		r.logger.Error("Failed to create invoice", zap.String("invoice_number", invoice.InvoiceNumber), zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	for i, line := range invoice.Lines {
		lineNo := line.LineNo
		if lineNo == 0 {
			lineNo = i + 1
		}
		_, err := exec.ExecContext(ctx, `
			INSERT INTO invoice_lines (invoice_id, line_no, description, hs_code, uom, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, lineNo, line.Description, line.HSCode, line.UOM, line.Quantity, line.UnitPrice)
		if err != nil {
			return fmt.Errorf("failed to create invoice line %d: %w", lineNo, err)
		}
	}

	invoice.ID = id
	invoice.Status = status
	return nil
}

// GetByID retrieves one invoice of a company with its lines
func (r *InvoiceRepository) GetByID(ctx context.Context, companyID string, id int64) (*entity.InvoiceCandidate, error) {
	invoices, err := r.GetByIDs(ctx, companyID, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, nil
	}
	return invoices[0], nil
}

// GetByIDs retrieves invoices of a company in the order of ids; unknown ids are omitted
func (r *InvoiceRepository) GetByIDs(ctx context.Context, companyID string, ids []int64) ([]*entity.InvoiceCandidate, error) {
	if len(ids) == 0 {
		return []*entity.InvoiceCandidate{}, nil
	}

	placeholders, args := inClause(ids)
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE company_id = ? AND id IN (` + placeholders + `)`

	exec := sqlite.Conn(ctx, r.db)
	rows, err := exec.QueryContext(ctx, query, append([]interface{}{companyID}, args...)...)
	if err != nil {
		r.logger.Error("Failed to query invoices", zap.String("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*entity.InvoiceCandidate, len(ids))
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		byID[inv.ID] = inv
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invoices: %w", err)
	}

	if err := r.loadLines(ctx, exec, byID); err != nil {
		return nil, err
	}

	out := make([]*entity.InvoiceCandidate, 0, len(byID))
	for _, id := range ids {
		if inv, ok := byID[id]; ok {
			out = append(out, inv)
		}
	}
	return out, nil
}

// CountByCompany returns how many invoices a company has
func (r *InvoiceRepository) CountByCompany(ctx context.Context, companyID string) (int, error) {
	var n int
	err := sqlite.Conn(ctx, r.db).
		QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices WHERE company_id = ?`, companyID).
		Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return n, nil
}

// MarkPosted stores the gateway reference of an invoice.
// An invoice that already carries a reference is never overwritten.
func (r *InvoiceRepository) MarkPosted(ctx context.Context, id int64, reference string) error {
	exec := sqlite.Conn(ctx, r.db)
	result, err := exec.ExecContext(ctx, `
		UPDATE invoices
		SET fbr_invoice_number = ?, status = ?, posted_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND (fbr_invoice_number IS NULL OR fbr_invoice_number = '')
	`, reference, entity.InvoiceStatusPosted, id)
	if err != nil {
		r.logger.Error("Failed to mark invoice posted", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark invoice posted: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var number string
	var existing sql.NullString
	err = exec.QueryRowContext(ctx, `SELECT invoice_number, fbr_invoice_number FROM invoices WHERE id = ?`, id).
		Scan(&number, &existing)
	if err == sql.ErrNoRows {
		return fmt.Errorf("invoice not found: %d", id)
	}
	if err != nil {
		return fmt.Errorf("failed to read invoice: %w", err)
	}
	return &entity.AlreadyPostedError{InvoiceNumber: number, Reference: existing.String}
}

func (r *InvoiceRepository) loadLines(ctx context.Context, exec sqlite.Executor, byID map[int64]*entity.InvoiceCandidate) error {
	if len(byID) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	placeholders, args := inClause(ids)

	rows, err := exec.QueryContext(ctx, `
		SELECT invoice_id, line_no, description, hs_code, uom, quantity, unit_price
		FROM invoice_lines
		WHERE invoice_id IN (`+placeholders+`)
		ORDER BY invoice_id, line_no
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to query invoice lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var invoiceID int64
		var line entity.InvoiceLine
		if err := rows.Scan(&invoiceID, &line.LineNo, &line.Description, &line.HSCode, &line.UOM, &line.Quantity, &line.UnitPrice); err != nil {
			return fmt.Errorf("failed to scan invoice line: %w", err)
		}
		inv := byID[invoiceID]
		inv.Lines = append(inv.Lines, line)
	}
	return rows.Err()
}

func scanInvoice(rows *sql.Rows) (*entity.InvoiceCandidate, error) {
	var inv entity.InvoiceCandidate
	var taxes string
	var reference sql.NullString

	err := rows.Scan(
		&inv.ID,
		&inv.CompanyID,
		&inv.InvoiceNumber,
		&inv.InvoiceDate,
		&inv.BuyerName,
		&inv.BuyerNTNCNIC,
		&inv.BuyerProvince,
		&inv.BuyerAddress,
		&inv.Subtotal,
		&taxes,
		&inv.TotalAmount,
		&inv.Status,
		&reference,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan invoice: %w", err)
	}

	if err := json.Unmarshal([]byte(taxes), &inv.Taxes); err != nil {
		return nil, fmt.Errorf("failed to decode taxes of invoice %d: %w", inv.ID, err)
	}
	inv.FBRInvoiceNumber = reference.String
	inv.Lines = []entity.InvoiceLine{}
	return &inv, nil
}

func inClause(ids []int64) (string, []interface{}) {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Verify interface compliance
var _ port.InvoiceRepository = (*InvoiceRepository)(nil)

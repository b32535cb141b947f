package export

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/fbr-submission/internal/application/port"
	"github.com/garyjia/fbr-submission/internal/domain/entity"
)

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
	exportDir    = "exports"
)

var resultColumns = []string{
	"#", "Invoice ID", "Invoice Number", "Outcome", "Reference", "Reason", "Failure Kind", "Recorded At",
}

// RunHeader identifies the run a workbook belongs to
type RunHeader struct {
	RunID     string
	CompanyID string
	Mode      entity.SubmissionMode
	State     string
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Stopped   int
}

// ResultsWorkbook renders run results as an xlsx document
func ResultsWorkbook(header RunHeader, results []*entity.ProcessResult) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(resultsSheet, "A1", &resultColumns); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}
	if err := f.SetRowStyle(resultsSheet, 1, 1, bold); err != nil {
		return nil, fmt.Errorf("failed to style header row: %w", err)
	}

	for i, r := range results {
		row := []interface{}{
			r.Position + 1,
			r.InvoiceID,
			r.InvoiceNumber,
			string(r.Outcome),
			r.Reference,
			r.Detail(),
			string(r.FailureKind),
			r.RecordedAt.Format("2006-01-02 15:04:05"),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write result row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(resultsSheet, "C", "C", 20); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(resultsSheet, "E", "F", 40); err != nil {
		return nil, err
	}

	if err := writeSummary(f, header, bold); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}

func writeSummary(f *excelize.File, h RunHeader, bold int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Run", h.RunID},
		{"Company", h.CompanyID},
		{"Mode", string(h.Mode)},
		{"State", h.State},
		{"Total", h.Total},
		{"Succeeded", h.Succeeded},
		{"Failed", h.Failed},
		{"Skipped", h.Skipped},
		{"Stopped by operator", h.Stopped},
	}
	for i, row := range rows {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}
	if err := f.SetColStyle(summarySheet, "A", bold); err != nil {
		return err
	}
	return f.SetColWidth(summarySheet, "A", "B", 24)
}

// Exporter saves results workbooks to file storage
type Exporter struct {
	storage port.FileStorage
	logger  *zap.Logger
}

// NewExporter creates a new Exporter
func NewExporter(storage port.FileStorage, logger *zap.Logger) *Exporter {
	return &Exporter{
		storage: storage,
		logger:  logger,
	}
}

// Save writes the workbook of a run and returns its full path
func (e *Exporter) Save(ctx context.Context, header RunHeader, results []*entity.ProcessResult) (string, error) {
	buf, err := ResultsWorkbook(header, results)
	if err != nil {
		return "", err
	}

	rel := FileName(header.RunID)
	if err := e.storage.Save(ctx, rel, buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to save export: %w", err)
	}

	full := e.storage.GetFullPath(rel)
	e.logger.Info("Results exported",
		zap.String("run_id", header.RunID),
		zap.String("path", full),
		zap.Int("results", len(results)))
	return full, nil
}

// FileName is the storage-relative name of a run's workbook
func FileName(runID string) string {
	return path.Join(exportDir, "fbr-"+runID+".xlsx")
}

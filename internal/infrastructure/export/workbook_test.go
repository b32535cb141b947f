package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/fbr-submission/internal/domain/entity"
	"github.com/garyjia/fbr-submission/internal/infrastructure/storage"
)

func sampleRun() (RunHeader, []*entity.ProcessResult) {
	at := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	header := RunHeader{
		RunID:     "run-1",
		CompanyID: "acme",
		Mode:      entity.ModePost,
		State:     "COMPLETE",
		Total:     3,
		Succeeded: 1,
		Failed:    1,
		Skipped:   1,
		Stopped:   1,
	}
	results := []*entity.ProcessResult{
		{InvoiceID: 11, InvoiceNumber: "INV-11", Outcome: entity.OutcomeSuccess, Reference: "FBR-1001", Position: 0, RecordedAt: at},
		{InvoiceID: 12, InvoiceNumber: "INV-12", Outcome: entity.OutcomeFailed, Error: "duplicate NTN", FailureKind: entity.FailureGatewayRejection, Position: 1, RecordedAt: at},
		{InvoiceID: 13, InvoiceNumber: "INV-13", Outcome: entity.OutcomeSkipped, SkipReason: entity.SkipStoppedByOperator, Position: 2, RecordedAt: at},
	}
	return header, results
}

func TestResultsWorkbook(t *testing.T) {
	header, results := sampleRun()

	buf, err := ResultsWorkbook(header, results)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{resultsSheet, summarySheet}, f.GetSheetList())

	rows, err := f.GetRows(resultsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, resultColumns, rows[0])
	assert.Equal(t, []string{"1", "11", "INV-11", "SUCCESS", "FBR-1001", "FBR-1001", "", "2025-03-14 10:30:00"}, rows[1])
	assert.Equal(t, "duplicate NTN", rows[2][5])
	assert.Equal(t, "gateway_rejection", rows[2][6])
	assert.Equal(t, "stopped by operator", rows[3][5])

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mode", "post"}, summary[2])
	assert.Equal(t, []string{"Stopped by operator", "1"}, summary[8])
}

func TestResultsWorkbook_Empty(t *testing.T) {
	buf, err := ResultsWorkbook(RunHeader{RunID: "run-empty", Mode: entity.ModeValidate}, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(resultsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestExporter_Save(t *testing.T) {
	ctx := context.Background()
	store := storage.NewLocalFileStorage(t.TempDir(), zap.NewNop())
	header, results := sampleRun()

	full, err := NewExporter(store, zap.NewNop()).Save(ctx, header, results)
	require.NoError(t, err)

	assert.Equal(t, store.GetFullPath("exports/fbr-run-1.xlsx"), full)
	assert.True(t, store.Exists(ctx, FileName("run-1")))
}

package submission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/fbr-submission/internal/domain/entity"
)

func TestAggregator_RecordRejectsDuplicates(t *testing.T) {
	agg := NewAggregator()
	inv := testInvoice(1)

	require.NoError(t, agg.Record(entity.NewSuccessResult(inv, "FBR-1", "")))
	err := agg.Record(entity.NewFailedResult(inv, entity.FailureNetwork, entity.NetworkFailureMessage))
	assert.ErrorIs(t, err, ErrDuplicateResult)

	assert.Equal(t, Summary{Total: 1, Succeeded: 1}, agg.Summary())
	assert.Error(t, agg.Record(nil))
}

func TestAggregator_Ordering(t *testing.T) {
	agg := NewAggregator()

	third := entity.NewSkippedResult(testInvoice(3), entity.SkipAlreadyPosted)
	third.Position = 2
	first := entity.NewSuccessResult(testInvoice(1), "FBR-1", "")
	first.Position = 0
	second := entity.NewSkippedResult(testInvoice(2), entity.SkipStoppedByOperator)
	second.Position = 1

	require.NoError(t, agg.Record(third))
	require.NoError(t, agg.Record(first))
	require.NoError(t, agg.Record(second))

	byPosition := agg.Results()
	assert.Equal(t, []int64{1, 2, 3}, []int64{byPosition[0].InvoiceID, byPosition[1].InvoiceID, byPosition[2].InvoiceID})

	log := agg.Log()
	assert.Equal(t, []int64{3, 1, 2}, []int64{log[0].InvoiceID, log[1].InvoiceID, log[2].InvoiceID})
	assert.Equal(t, []int{0, 1, 2}, []int{log[0].Sequence, log[1].Sequence, log[2].Sequence})

	assert.Equal(t, Summary{Total: 3, Succeeded: 1, Skipped: 2, Stopped: 1}, agg.Summary())
}

func TestAggregator_ResultsAreCopies(t *testing.T) {
	agg := NewAggregator()
	require.NoError(t, agg.Record(entity.NewSuccessResult(testInvoice(1), "FBR-1", "")))

	agg.Results()[0].Reference = "tampered"
	assert.Equal(t, "FBR-1", agg.Results()[0].Reference)
}

func TestAggregator_Covers(t *testing.T) {
	agg := NewAggregator()
	require.NoError(t, agg.Record(entity.NewSkippedResult(testInvoice(1), entity.SkipSkippedByOperator)))

	assert.True(t, agg.Covers([]int64{1}))
	assert.False(t, agg.Covers([]int64{1, 2}))
	assert.True(t, agg.Has(1))
	assert.False(t, agg.Has(2))
}

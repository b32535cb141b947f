package submission

import (
	"fmt"
	"sort"
	"sync"

	"github.com/garyjia/fbr-submission/internal/domain/entity"
)

// Summary counts the outcomes recorded for a run.
// Succeeded + Failed + Skipped always equals Total; Stopped is the part of Skipped caused by Stop.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Stopped   int `json:"stopped"`
}

// Aggregator is the append-only result log of one run
type Aggregator struct {
	mu        sync.RWMutex
	byInvoice map[int64]*entity.ProcessResult
	log       []*entity.ProcessResult
}

// NewAggregator creates an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{
		byInvoice: make(map[int64]*entity.ProcessResult),
	}
}

// Record appends a result and stamps its sequence number.
// A second result for the same invoice is rejected with ErrDuplicateResult.
func (a *Aggregator) Record(result *entity.ProcessResult) error {
	if result == nil {
		return fmt.Errorf("record: nil result")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.byInvoice[result.InvoiceID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateResult, result.InvoiceID)
	}

	stored := *result
	stored.Sequence = len(a.log)
	a.byInvoice[stored.InvoiceID] = &stored
	a.log = append(a.log, &stored)
	result.Sequence = stored.Sequence
	return nil
}

// Has reports whether a result exists for the invoice
func (a *Aggregator) Has(invoiceID int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.byInvoice[invoiceID]
	return ok
}

// Results returns copies of all results ordered by candidate position
func (a *Aggregator) Results() []*entity.ProcessResult {
	out := a.Log()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}

// Log returns copies of all results in the order they were recorded
func (a *Aggregator) Log() []*entity.ProcessResult {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*entity.ProcessResult, 0, len(a.log))
	for _, r := range a.log {
		cp := *r
		out = append(out, &cp)
	}
	return out
}

// Summary counts results by outcome
func (a *Aggregator) Summary() Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := Summary{Total: len(a.log)}
	for _, r := range a.log {
		switch r.Outcome {
		case entity.OutcomeSuccess:
			s.Succeeded++
		case entity.OutcomeFailed:
			s.Failed++
		case entity.OutcomeSkipped:
			s.Skipped++
			if r.SkipReason == entity.SkipStoppedByOperator {
				s.Stopped++
			}
		}
	}
	return s
}

// Covers reports whether every id has exactly one result
func (a *Aggregator) Covers(ids []int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, id := range ids {
		if _, ok := a.byInvoice[id]; !ok {
			return false
		}
	}
	return true
}

package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/fbr-submission/internal/application/port"
	"github.com/garyjia/fbr-submission/internal/domain/entity"
	"github.com/garyjia/fbr-submission/internal/domain/workflow"
)

// Observer is notified of every recorded result and of run completion.
// Callbacks run while the session lock is held and must not call back into the session.
type Observer interface {
	OnResult(ctx context.Context, sessionID string, result *entity.ProcessResult)
	OnComplete(ctx context.Context, sessionID string, summary Summary, results []*entity.ProcessResult)
}

// Dependencies are the collaborators a session drives
type Dependencies struct {
	Invoices port.InvoiceSource
	Sellers  port.SellerRepository
	Gateway  port.ComplianceGateway
	Builder  *PayloadBuilder
}

// Review is the human checkpoint shown before any gateway call
type Review struct {
	RunID          string                  `json:"run_id"`
	CompanyID      string                  `json:"company_id"`
	Mode           entity.SubmissionMode   `json:"mode"`
	Total          int                     `json:"total"`
	Eligible       []ReviewItem            `json:"eligible"`
	PreSkipped     []*entity.ProcessResult `json:"pre_skipped"`
	EligibleAmount decimal.Decimal         `json:"eligible_amount"`
}

// ReviewItem is one eligible invoice in the review
type ReviewItem struct {
	InvoiceID     int64           `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	BuyerName     string          `json:"buyer_name"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// Step describes the invoice currently awaiting confirmation
type Step struct {
	Index      int                       `json:"index"`
	Of         int                       `json:"of"`
	Invoice    *entity.InvoiceCandidate  `json:"invoice"`
	Payload    *entity.SubmissionPayload `json:"payload,omitempty"`
	PayloadErr error                     `json:"-"`
	PayloadMsg string                    `json:"payload_error,omitempty"`
	LastResult *entity.ProcessResult     `json:"last_result,omitempty"`
}

// Session drives one bulk submission run through the workflow states.
// Only one operator action runs at a time, so at most one gateway call is in flight.
type Session struct {
	mu sync.Mutex

	id        string
	companyID string
	mode      entity.SubmissionMode
	deps      Dependencies
	observer  Observer
	logger    *zap.Logger

	state      workflow.State
	candidates []*entity.InvoiceCandidate
	positions  map[int64]int
	seller     *entity.SellerProfile
	eligible   []*entity.InvoiceCandidate
	preSkipped []*entity.ProcessResult
	cursor     int
	results    *Aggregator
	last       *entity.ProcessResult
}

// SessionOption configures a session
type SessionOption func(*Session)

// WithObserver sets the observer receiving result and completion callbacks
func WithObserver(o Observer) SessionOption {
	return func(s *Session) {
		s.observer = o
	}
}

// WithLogger sets the session logger
func WithLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates a session in LOADING state
func NewSession(id, companyID string, mode entity.SubmissionMode, deps Dependencies, opts ...SessionOption) (*Session, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if deps.Invoices == nil || deps.Sellers == nil || deps.Gateway == nil {
		return nil, errors.New("session requires invoice source, seller repository and gateway")
	}
	if deps.Builder == nil {
		deps.Builder = NewPayloadBuilder()
	}

	s := &Session{
		id:        id,
		companyID: companyID,
		mode:      mode,
		deps:      deps,
		logger:    zap.NewNop(),
		state:     workflow.StateLoading,
		positions: make(map[int64]int),
		results:   NewAggregator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("run_id", id), zap.String("mode", mode.String()))

	return s, nil
}

// ID returns the run id
func (s *Session) ID() string { return s.id }

// CompanyID returns the company the run submits for
func (s *Session) CompanyID() string { return s.companyID }

// Mode returns the gateway operation of the run
func (s *Session) Mode() entity.SubmissionMode { return s.mode }

// State returns the current workflow state
func (s *Session) State() workflow.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Load fetches the candidates and seller profile, records pre-skips and moves to REVIEWING.
// A failed fetch leaves the session in LOADING.
func (s *Session) Load(ctx context.Context, invoiceIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := workflow.Transition(s.state, workflow.NewEvent(workflow.TriggerLoaded, 0)); err != nil {
		return err
	}

	ids := dedupe(invoiceIDs)
	if len(ids) == 0 {
		return ErrEmptySelection
	}

	candidates, err := s.deps.Invoices.GetByIDs(ctx, s.companyID, ids)
	if err != nil {
		return fmt.Errorf("load invoices: %w", err)
	}
	if missing := missingIDs(ids, candidates); len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrInvoiceNotFound, missing)
	}

	seller, err := s.deps.Sellers.GetByCompanyID(ctx, s.companyID)
	if err != nil {
		return fmt.Errorf("load seller profile: %w", err)
	}
	if seller == nil {
		s.logger.Warn("No seller profile configured, payloads will be incomplete")
	}

	s.candidates = candidates
	s.seller = seller
	for i, inv := range candidates {
		s.positions[inv.ID] = i
	}

	elig := FilterEligible(candidates, s.mode)
	s.eligible = elig.Eligible
	s.preSkipped = elig.PreSkipped
	for _, r := range elig.PreSkipped {
		s.record(ctx, r)
	}

	s.state = workflow.StateReviewing
	s.logger.Info("Submission run loaded",
		zap.Int("total", len(candidates)),
		zap.Int("eligible", len(elig.Eligible)),
		zap.Int("pre_skipped", len(elig.PreSkipped)))
	return nil
}

// Review returns the checkpoint summary of the loaded run
func (s *Session) Review() Review {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Review{
		RunID:          s.id,
		CompanyID:      s.companyID,
		Mode:           s.mode,
		Total:          len(s.candidates),
		Eligible:       make([]ReviewItem, 0, len(s.eligible)),
		PreSkipped:     make([]*entity.ProcessResult, 0, len(s.preSkipped)),
		EligibleAmount: decimal.Zero,
	}
	for _, inv := range s.eligible {
		r.Eligible = append(r.Eligible, ReviewItem{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			BuyerName:     inv.BuyerName,
			TotalAmount:   inv.TotalAmount,
		})
		r.EligibleAmount = r.EligibleAmount.Add(inv.TotalAmount)
	}
	for _, p := range s.preSkipped {
		cp := *p
		r.PreSkipped = append(r.PreSkipped, &cp)
	}
	return r
}

// Begin leaves the review checkpoint and offers the first eligible invoice
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := workflow.Transition(s.state, workflow.NewEvent(workflow.TriggerBegin, len(s.eligible)))
	if err != nil {
		return err
	}
	s.advanceTo(ctx, next)
	return nil
}

// Current returns the invoice awaiting confirmation together with its payload
func (s *Session) Current() (*Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != workflow.StateAwaitingConfirmation {
		return nil, ErrNoCurrentInvoice
	}

	inv := s.eligible[s.cursor]
	payload, perr := s.deps.Builder.Build(inv, s.seller)
	step := &Step{
		Index:      s.cursor + 1,
		Of:         len(s.eligible),
		Invoice:    inv,
		Payload:    payload,
		PayloadErr: perr,
	}
	if perr != nil {
		step.PayloadMsg = perr.Error()
	}
	if s.last != nil {
		cp := *s.last
		step.LastResult = &cp
	}
	return step, nil
}

// Confirm submits the current invoice, records its outcome and advances.
// Gateway failures are recorded as results, never returned as errors.
// Cancelling ctx does not abort a started submission; the gateway client's own timeout bounds it.
func (s *Session) Confirm(ctx context.Context) (*entity.ProcessResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)

	next, err := workflow.Transition(s.state, workflow.NewEvent(workflow.TriggerConfirm, s.remaining()))
	if err != nil {
		return nil, err
	}
	s.state = next

	inv := s.eligible[s.cursor]
	result := s.submit(ctx, inv)
	s.record(ctx, result)

	after, err := workflow.Transition(s.state, workflow.NewEvent(workflow.TriggerSubmitted, s.remaining()))
	if err != nil {
		return nil, err
	}
	s.cursor++
	s.advanceTo(ctx, after)

	cp := *result
	return &cp, nil
}

// Skip records the current invoice as skipped by the operator and advances without a gateway call
func (s *Session) Skip(ctx context.Context) (*entity.ProcessResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := workflow.Transition(s.state, workflow.NewEvent(workflow.TriggerSkip, s.remaining()))
	if err != nil {
		return nil, err
	}

	inv := s.eligible[s.cursor]
	result := s.withPosition(entity.NewSkippedResult(inv, entity.SkipSkippedByOperator))
	s.record(ctx, result)

	s.cursor++
	s.advanceTo(ctx, next)

	cp := *result
	return &cp, nil
}

// Stop records every eligible invoice without a result as stopped and completes the run.
// It waits for an in-flight Confirm to finish first.
func (s *Session) Stop(ctx context.Context) ([]*entity.ProcessResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := workflow.Transition(s.state, workflow.NewEvent(workflow.TriggerStop, s.remaining()))
	if err != nil {
		return nil, err
	}

	stopped := make([]*entity.ProcessResult, 0, len(s.eligible)-s.cursor)
	for _, inv := range s.eligible[s.cursor:] {
		result := s.withPosition(entity.NewSkippedResult(inv, entity.SkipStoppedByOperator))
		s.record(ctx, result)
		cp := *result
		stopped = append(stopped, &cp)
	}
	s.cursor = len(s.eligible)

	s.logger.Info("Submission run stopped by operator", zap.Int("stopped", len(stopped)))
	s.advanceTo(ctx, next)
	return stopped, nil
}

// Preview builds the payload of any loaded invoice without changing the session
func (s *Session) Preview(invoiceID int64) (*entity.SubmissionPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[invoiceID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvoiceNotLoaded, invoiceID)
	}
	return s.deps.Builder.Build(s.candidates[pos], s.seller)
}

// Results returns the recorded results ordered by candidate position
func (s *Session) Results() []*entity.ProcessResult {
	return s.results.Results()
}

// Log returns the recorded results in the order they happened
func (s *Session) Log() []*entity.ProcessResult {
	return s.results.Log()
}

// Summary returns outcome counts of the results recorded so far
func (s *Session) Summary() Summary {
	return s.results.Summary()
}

// InvoiceIDs returns the ids of every loaded candidate
func (s *Session) InvoiceIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.candidates))
	for _, inv := range s.candidates {
		ids = append(ids, inv.ID)
	}
	return ids
}

// remaining counts eligible invoices after the current one
func (s *Session) remaining() int {
	n := len(s.eligible) - s.cursor - 1
	if n < 0 {
		return 0
	}
	return n
}

func (s *Session) advanceTo(ctx context.Context, next workflow.State) {
	s.state = next
	if next != workflow.StateComplete {
		return
	}

	summary := s.results.Summary()
	s.logger.Info("Submission run complete",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))

	if s.observer != nil {
		s.observer.OnComplete(ctx, s.id, summary, s.results.Results())
	}
}

func (s *Session) withPosition(r *entity.ProcessResult) *entity.ProcessResult {
	r.Position = s.positions[r.InvoiceID]
	return r
}

func (s *Session) record(ctx context.Context, result *entity.ProcessResult) {
	if err := s.results.Record(result); err != nil {
		// Only reachable through a programming error; the workflow visits each invoice once
		s.logger.Error("Failed to record result", zap.Int64("invoice_id", result.InvoiceID), zap.Error(err))
		return
	}
	s.last = result

	if s.observer != nil {
		cp := *result
		s.observer.OnResult(ctx, s.id, &cp)
	}
}

// submit performs the gateway call for one invoice and classifies the outcome
func (s *Session) submit(ctx context.Context, inv *entity.InvoiceCandidate) *entity.ProcessResult {
	log := s.logger.With(zap.Int64("invoice_id", inv.ID), zap.String("invoice_number", inv.InvoiceNumber))

	candidate := inv
	if s.mode == entity.ModePost {
		fresh, err := s.deps.Invoices.GetByID(ctx, s.companyID, inv.ID)
		if err != nil {
			log.Error("Eligibility re-check failed", zap.Error(err))
			return s.withPosition(entity.NewFailedResult(inv, entity.FailureNetwork, entity.NetworkFailureMessage))
		}
		if fresh == nil {
			return s.withPosition(entity.NewFailedResult(inv, entity.FailureIncompletePayload, "invoice no longer exists"))
		}
		if fresh.HasGatewayReference() {
			log.Info("Invoice posted since the run was loaded", zap.String("reference", fresh.FBRInvoiceNumber))
			return s.withPosition(entity.NewSkippedResult(inv, entity.SkipAlreadyPosted))
		}
		candidate = fresh
	}

	payload, err := s.deps.Builder.Build(candidate, s.seller)
	if err != nil {
		log.Warn("Payload incomplete, not submitting", zap.Error(err))
		return s.withPosition(entity.NewFailedResult(inv, entity.FailureIncompletePayload, err.Error()))
	}

	req := &port.GatewayRequest{
		InvoiceID: inv.ID,
		CompanyID: s.companyID,
		Payload:   payload,
	}

	var resp *port.GatewayResponse
	if s.mode == entity.ModePost {
		resp, err = s.deps.Gateway.Post(ctx, req)
	} else {
		resp, err = s.deps.Gateway.Validate(ctx, req)
	}

	if err != nil || resp == nil {
		log.Error("Gateway call failed", zap.Error(err))
		return s.withPosition(entity.NewFailedResult(inv, entity.FailureNetwork, entity.NetworkFailureMessage))
	}

	if !resp.Success {
		reason := rejectionMessage(resp)
		log.Info("Gateway rejected invoice", zap.String("reason", reason))
		return s.withPosition(entity.NewFailedResult(inv, entity.FailureGatewayRejection, reason))
	}

	if s.mode == entity.ModePost && resp.FBRInvoiceNumber == "" {
		log.Error("Gateway accepted post without a reference")
		return s.withPosition(entity.NewFailedResult(inv, entity.FailureGatewayRejection, entity.MissingReferenceMessage))
	}

	log.Info("Gateway accepted invoice", zap.String("reference", resp.FBRInvoiceNumber))
	return s.withPosition(entity.NewSuccessResult(inv, resp.FBRInvoiceNumber, resp.Message))
}

func rejectionMessage(resp *port.GatewayResponse) string {
	switch {
	case resp.Error != "":
		return resp.Error
	case resp.Message != "":
		return resp.Message
	default:
		return "rejected by gateway"
	}
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(ids []int64, found []*entity.InvoiceCandidate) []int64 {
	have := make(map[int64]struct{}, len(found))
	for _, inv := range found {
		have[inv.ID] = struct{}{}
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

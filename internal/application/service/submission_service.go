package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/fbr-submission/internal/application/dispatcher"
	"github.com/garyjia/fbr-submission/internal/application/port"
	"github.com/garyjia/fbr-submission/internal/application/submission"
	"github.com/garyjia/fbr-submission/internal/domain/entity"
	"github.com/garyjia/fbr-submission/internal/domain/event"
	"github.com/garyjia/fbr-submission/internal/domain/workflow"
)

var (
	// ErrRunNotFound is returned for unknown run ids
	ErrRunNotFound = errors.New("submission run not found")

	// ErrInvoiceInActiveRun is returned when a post run selects an invoice another active post run holds
	ErrInvoiceInActiveRun = errors.New("invoice is part of another active post run")
)

// StartRunRequest selects the invoices and gateway operation of a new run
type StartRunRequest struct {
	CompanyID  string                `json:"company_id" binding:"required"`
	Mode       entity.SubmissionMode `json:"mode" binding:"required"`
	InvoiceIDs []int64               `json:"invoice_ids" binding:"required,min=1"`
}

// RunView is the operator-facing snapshot of a run
type RunView struct {
	ID          string                `json:"id"`
	CompanyID   string                `json:"company_id"`
	Mode        entity.SubmissionMode `json:"mode"`
	State       workflow.State        `json:"state"`
	Permitted   []workflow.Trigger    `json:"permitted"`
	Review      *submission.Review    `json:"review,omitempty"`
	Summary     submission.Summary    `json:"summary"`
	StartedAt   time.Time             `json:"started_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

// SubmissionService manages bulk submission runs by id
type SubmissionService interface {
	StartRun(ctx context.Context, req StartRunRequest) (*RunView, error)
	Get(ctx context.Context, runID string) (*RunView, error)
	Begin(ctx context.Context, runID string) (*RunView, error)
	Current(ctx context.Context, runID string) (*submission.Step, error)
	Confirm(ctx context.Context, runID string) (*entity.ProcessResult, error)
	Skip(ctx context.Context, runID string) (*entity.ProcessResult, error)
	Stop(ctx context.Context, runID string) ([]*entity.ProcessResult, error)
	Preview(ctx context.Context, runID string, invoiceID int64) (*entity.SubmissionPayload, error)
	Results(ctx context.Context, runID string) ([]*entity.ProcessResult, submission.Summary, error)
	Summary(ctx context.Context, runID string) (submission.Summary, error)

	// PreviewInvoice builds the payload of a single invoice outside any run
	PreviewInvoice(ctx context.Context, companyID string, invoiceID int64) (*entity.SubmissionPayload, error)

	// EvictExpired drops completed runs older than the cache expiry and returns how many went
	EvictExpired() int

	// StopAbandoned stops runs nobody has touched within the abandon expiry, releasing their claims
	StopAbandoned(ctx context.Context) int
}

type runEntry struct {
	session      *submission.Session
	startedAt    time.Time
	completedAt  time.Time
	lastActivity time.Time
}

type submissionServiceImpl struct {
	deps       submission.Dependencies
	runRepo    port.RunRepository
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger

	mu           sync.Mutex
	runs         map[string]*runEntry
	claims       map[int64]string
	cacheExpiry  time.Duration
	abandonAfter time.Duration
	now          func() time.Time
}

// Option configures the submission service
type Option func(*submissionServiceImpl)

// WithDispatcher sets the event dispatcher run events are emitted on
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(s *submissionServiceImpl) {
		s.dispatcher = d
	}
}

// WithCacheExpiry sets how long completed runs stay in memory
func WithCacheExpiry(expiry time.Duration) Option {
	return func(s *submissionServiceImpl) {
		s.cacheExpiry = expiry
	}
}

// WithAbandonAfter sets how long an unfinished run may sit idle before it is stopped.
// Zero keeps idle runs forever.
func WithAbandonAfter(d time.Duration) Option {
	return func(s *submissionServiceImpl) {
		s.abandonAfter = d
	}
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *submissionServiceImpl) {
		s.logger = logger
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *submissionServiceImpl) {
		s.now = now
	}
}

// NewSubmissionService creates a new SubmissionService
func NewSubmissionService(deps submission.Dependencies, runRepo port.RunRepository, opts ...Option) SubmissionService {
	if deps.Builder == nil {
		deps.Builder = submission.NewPayloadBuilder()
	}

	s := &submissionServiceImpl{
		deps:         deps,
		runRepo:      runRepo,
		logger:       zap.NewNop(),
		runs:         make(map[string]*runEntry),
		claims:       make(map[int64]string),
		cacheExpiry:  30 * time.Minute,
		abandonAfter: 2 * time.Hour,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// StartRun loads a new session, persists its header and returns the review checkpoint
func (s *submissionServiceImpl) StartRun(ctx context.Context, req StartRunRequest) (*RunView, error) {
	if !req.Mode.IsValid() {
		return nil, fmt.Errorf("%w: %q", submission.ErrInvalidMode, req.Mode)
	}
	if req.CompanyID == "" {
		return nil, errors.New("company id is required")
	}

	runID := uuid.NewString()
	obs := &runObserver{svc: s, runID: runID, companyID: req.CompanyID, mode: req.Mode}

	session, err := submission.NewSession(runID, req.CompanyID, req.Mode, s.deps,
		submission.WithObserver(obs),
		submission.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}

	if req.Mode == entity.ModePost {
		if err := s.claim(runID, req.InvoiceIDs); err != nil {
			return nil, err
		}
	}

	startedAt := s.now()
	run := &entity.SubmissionRun{
		ID:        runID,
		CompanyID: req.CompanyID,
		Mode:      req.Mode,
		State:     string(workflow.StateLoading),
		Total:     len(req.InvoiceIDs),
		StartedAt: startedAt,
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		s.release(runID)
		return nil, fmt.Errorf("create run: %w", err)
	}

	if err := session.Load(ctx, req.InvoiceIDs); err != nil {
		s.release(runID)
		if delErr := s.runRepo.Delete(ctx, runID); delErr != nil {
			s.logger.Error("Failed to delete aborted run", zap.String("run_id", runID), zap.Error(delErr))
		}
		return nil, err
	}

	s.mu.Lock()
	s.evictExpiredLocked()
	s.runs[runID] = &runEntry{session: session, startedAt: startedAt, lastActivity: startedAt}
	s.mu.Unlock()

	s.emit(ctx, event.NewEvent(event.TypeRunStarted, runID, req.CompanyID, req.Mode, map[string]interface{}{
		event.KeyTotal:    len(session.InvoiceIDs()),
		event.KeyEligible: len(session.Review().Eligible),
	}))

	s.logger.Info("Submission run started",
		zap.String("run_id", runID),
		zap.String("company_id", req.CompanyID),
		zap.String("mode", req.Mode.String()))

	return s.view(runID, session, startedAt, time.Time{}), nil
}

// Get returns the run snapshot, falling back to the run store for evicted runs
func (s *submissionServiceImpl) Get(ctx context.Context, runID string) (*RunView, error) {
	entry, ok := s.lookup(runID)
	if ok {
		return s.view(runID, entry.session, entry.startedAt, entry.completedAt), nil
	}

	run, err := s.storedRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &RunView{
		ID:        run.ID,
		CompanyID: run.CompanyID,
		Mode:      run.Mode,
		State:     workflow.State(run.State),
		Permitted: workflow.Permitted(workflow.State(run.State)),
		Summary: submission.Summary{
			Total:     run.Succeeded + run.Failed + run.Skipped,
			Succeeded: run.Succeeded,
			Failed:    run.Failed,
			Skipped:   run.Skipped,
		},
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
	}, nil
}

// Begin moves the run past the review checkpoint
func (s *submissionServiceImpl) Begin(ctx context.Context, runID string) (*RunView, error) {
	entry, err := s.active(runID)
	if err != nil {
		return nil, err
	}
	if err := entry.session.Begin(ctx); err != nil {
		return nil, err
	}
	return s.Get(ctx, runID)
}

// Current returns the invoice awaiting confirmation
func (s *submissionServiceImpl) Current(ctx context.Context, runID string) (*submission.Step, error) {
	entry, err := s.active(runID)
	if err != nil {
		return nil, err
	}
	return entry.session.Current()
}

// Confirm submits the current invoice
func (s *submissionServiceImpl) Confirm(ctx context.Context, runID string) (*entity.ProcessResult, error) {
	entry, err := s.active(runID)
	if err != nil {
		return nil, err
	}
	return entry.session.Confirm(ctx)
}

// Skip skips the current invoice
func (s *submissionServiceImpl) Skip(ctx context.Context, runID string) (*entity.ProcessResult, error) {
	entry, err := s.active(runID)
	if err != nil {
		return nil, err
	}
	return entry.session.Skip(ctx)
}

// Stop ends the run, marking every unprocessed eligible invoice as stopped
func (s *submissionServiceImpl) Stop(ctx context.Context, runID string) ([]*entity.ProcessResult, error) {
	entry, err := s.active(runID)
	if err != nil {
		return nil, err
	}
	return entry.session.Stop(ctx)
}

// Preview builds the payload of a loaded invoice without side effects
func (s *submissionServiceImpl) Preview(ctx context.Context, runID string, invoiceID int64) (*entity.SubmissionPayload, error) {
	entry, err := s.active(runID)
	if err != nil {
		return nil, err
	}
	return entry.session.Preview(invoiceID)
}

// Results returns ordered results and their summary, from memory or the run store
func (s *submissionServiceImpl) Results(ctx context.Context, runID string) ([]*entity.ProcessResult, submission.Summary, error) {
	if entry, ok := s.lookup(runID); ok {
		return entry.session.Results(), entry.session.Summary(), nil
	}

	if _, err := s.storedRun(ctx, runID); err != nil {
		return nil, submission.Summary{}, err
	}
	stored, err := s.runRepo.GetResults(ctx, runID)
	if err != nil {
		return nil, submission.Summary{}, fmt.Errorf("load results: %w", err)
	}

	agg := submission.NewAggregator()
	for _, r := range stored {
		if err := agg.Record(r); err != nil {
			return nil, submission.Summary{}, err
		}
	}
	return agg.Results(), agg.Summary(), nil
}

// Summary returns the outcome counts of a run
func (s *submissionServiceImpl) Summary(ctx context.Context, runID string) (submission.Summary, error) {
	_, summary, err := s.Results(ctx, runID)
	return summary, err
}

// PreviewInvoice builds one payload without creating a run
func (s *submissionServiceImpl) PreviewInvoice(ctx context.Context, companyID string, invoiceID int64) (*entity.SubmissionPayload, error) {
	inv, err := s.deps.Invoices.GetByID(ctx, companyID, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("load invoice: %w", err)
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: %d", submission.ErrInvoiceNotFound, invoiceID)
	}
	seller, err := s.deps.Sellers.GetByCompanyID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("load seller profile: %w", err)
	}
	return s.deps.Builder.Build(inv, seller)
}

func (s *submissionServiceImpl) view(runID string, session *submission.Session, startedAt, completedAt time.Time) *RunView {
	review := session.Review()
	state := session.State()
	v := &RunView{
		ID:        runID,
		CompanyID: session.CompanyID(),
		Mode:      session.Mode(),
		State:     state,
		Permitted: workflow.Permitted(state),
		Review:    &review,
		Summary:   session.Summary(),
		StartedAt: startedAt,
	}
	if !completedAt.IsZero() {
		v.CompletedAt = &completedAt
	}
	return v
}

func (s *submissionServiceImpl) lookup(runID string) (*runEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredLocked()
	entry, ok := s.runs[runID]
	if ok {
		entry.lastActivity = s.now()
	}
	return entry, ok
}

// active returns a cached run; evicted runs only expose results
func (s *submissionServiceImpl) active(runID string) (*runEntry, error) {
	entry, ok := s.lookup(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return entry, nil
}

func (s *submissionServiceImpl) storedRun(ctx context.Context, runID string) (*entity.SubmissionRun, error) {
	run, err := s.runRepo.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, nil
}

// EvictExpired drops completed runs older than the cache expiry; their results stay in the run store
func (s *submissionServiceImpl) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictExpiredLocked()
}

func (s *submissionServiceImpl) evictExpiredLocked() int {
	now := s.now()
	evicted := 0
	for id, entry := range s.runs {
		if !entry.completedAt.IsZero() && now.Sub(entry.completedAt) >= s.cacheExpiry {
			delete(s.runs, id)
			evicted++
		}
	}
	return evicted
}

// StopAbandoned stops unfinished runs idle past the abandon expiry.
// Stopping completes the run, so its claims are released and it later ages out of the cache.
func (s *submissionServiceImpl) StopAbandoned(ctx context.Context) int {
	if s.abandonAfter <= 0 {
		return 0
	}

	now := s.now()
	idle := make(map[string]*submission.Session)
	s.mu.Lock()
	for id, entry := range s.runs {
		if entry.completedAt.IsZero() && now.Sub(entry.lastActivity) >= s.abandonAfter {
			idle[id] = entry.session
		}
	}
	s.mu.Unlock()

	// Stop runs the completion callback, which takes s.mu
	stopped := 0
	for id, session := range idle {
		results, err := session.Stop(ctx)
		if err != nil {
			s.logger.Debug("Abandoned run finished before it could be stopped", zap.String("run_id", id), zap.Error(err))
			continue
		}
		stopped++
		s.logger.Warn("Stopped abandoned run",
			zap.String("run_id", id),
			zap.Int("stopped_invoices", len(results)),
			zap.Duration("idle_for", s.abandonAfter))
	}
	return stopped
}

// claim reserves invoices for a post run
func (s *submissionServiceImpl) claim(runID string, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if owner, taken := s.claims[id]; taken && owner != runID {
			return fmt.Errorf("%w: invoice %d held by run %s", ErrInvoiceInActiveRun, id, owner)
		}
	}
	for _, id := range ids {
		s.claims[id] = runID
	}
	return nil
}

func (s *submissionServiceImpl) release(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked(runID)
}

func (s *submissionServiceImpl) releaseLocked(runID string) {
	for id, owner := range s.claims {
		if owner == runID {
			delete(s.claims, id)
		}
	}
}

func (s *submissionServiceImpl) emit(ctx context.Context, evt *event.Event) {
	if s.dispatcher == nil {
		return
	}
	// Recorded outcomes must be stored even when the caller has gone away
	if err := s.dispatcher.Dispatch(context.WithoutCancel(ctx), evt); err != nil {
		s.logger.Error("Event handlers failed",
			zap.String("event_type", evt.Type.String()),
			zap.String("run_id", evt.RunID),
			zap.Error(err))
	}
}

// runObserver turns session callbacks into run events
type runObserver struct {
	svc       *submissionServiceImpl
	runID     string
	companyID string
	mode      entity.SubmissionMode
}

func (o *runObserver) OnResult(ctx context.Context, sessionID string, result *entity.ProcessResult) {
	o.svc.emit(ctx, event.NewResultEvent(o.runID, o.companyID, o.mode, result))
}

func (o *runObserver) OnComplete(ctx context.Context, sessionID string, summary submission.Summary, results []*entity.ProcessResult) {
	s := o.svc
	completedAt := s.now()

	s.mu.Lock()
	s.releaseLocked(o.runID)
	if entry, ok := s.runs[o.runID]; ok {
		entry.completedAt = completedAt
	}
	s.mu.Unlock()

	if s.dispatcher == nil {
		return
	}

	evt := event.NewEvent(event.TypeRunCompleted, o.runID, o.companyID, o.mode, map[string]interface{}{
		event.KeyTotal:     summary.Total,
		event.KeySucceeded: summary.Succeeded,
		event.KeyFailed:    summary.Failed,
		event.KeySkipped:   summary.Skipped,
		event.KeyStopped:   summary.Stopped,
	})
	evt.Results = results
	evt.Timestamp = completedAt
	s.dispatcher.DispatchAsync(ctx, evt)
}

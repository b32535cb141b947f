package submission

import (
	"context"
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/fbr-submission/internal/application/port"
	"github.com/garyjia/fbr-submission/internal/domain/entity"
	"github.com/garyjia/fbr-submission/internal/domain/workflow"
)

type sessionFixture struct {
	session  *Session
	gateway  *mockGateway
	invoices *fakeInvoices
	observer *recordingObserver
}

func newFixture(t *testing.T, mode entity.SubmissionMode, invoices ...*entity.InvoiceCandidate) *sessionFixture {
	t.Helper()

	fx := &sessionFixture{
		gateway:  &mockGateway{},
		invoices: newFakeInvoices(invoices...),
		observer: &recordingObserver{},
	}
	s, err := NewSession("run-1", testCompany, mode, Dependencies{
		Invoices: fx.invoices,
		Sellers:  &fakeSellers{seller: testSeller()},
		Gateway:  fx.gateway,
	}, WithObserver(fx.observer))
	require.NoError(t, err)
	fx.session = s

	require.NoError(t, s.Load(context.Background(), idsOf(invoices)))
	return fx
}

func outcomes(results []*entity.ProcessResult) []entity.Outcome {
	out := make([]entity.Outcome, 0, len(results))
	for _, r := range results {
		out = append(out, r.Outcome)
	}
	return out
}

func TestNewSession_InvalidMode(t *testing.T) {
	_, err := NewSession("run-1", testCompany, entity.SubmissionMode("dry-run"), Dependencies{
		Invoices: newFakeInvoices(),
		Sellers:  &fakeSellers{},
		Gateway:  &mockGateway{},
	})
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestSession_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("moves to reviewing", func(t *testing.T) {
		fx := newFixture(t, entity.ModeValidate, testInvoice(1), testInvoice(2))
		assert.Equal(t, workflow.StateReviewing, fx.session.State())

		review := fx.session.Review()
		assert.Equal(t, 2, review.Total)
		assert.Len(t, review.Eligible, 2)
		assert.Equal(t, "2360", review.EligibleAmount.String())
	})

	t.Run("unknown invoice", func(t *testing.T) {
		s, err := NewSession("run-1", testCompany, entity.ModePost, Dependencies{
			Invoices: newFakeInvoices(testInvoice(1)),
			Sellers:  &fakeSellers{seller: testSeller()},
			Gateway:  &mockGateway{},
		})
		require.NoError(t, err)

		err = s.Load(ctx, []int64{1, 99})
		assert.ErrorIs(t, err, ErrInvoiceNotFound)
		assert.Equal(t, workflow.StateLoading, s.State())
	})

	t.Run("empty selection", func(t *testing.T) {
		s, err := NewSession("run-1", testCompany, entity.ModePost, Dependencies{
			Invoices: newFakeInvoices(),
			Sellers:  &fakeSellers{seller: testSeller()},
			Gateway:  &mockGateway{},
		})
		require.NoError(t, err)
		assert.ErrorIs(t, s.Load(ctx, nil), ErrEmptySelection)
	})

	t.Run("seller lookup failure", func(t *testing.T) {
		s, err := NewSession("run-1", testCompany, entity.ModePost, Dependencies{
			Invoices: newFakeInvoices(testInvoice(1)),
			Sellers:  &fakeSellers{err: errors.New("db down")},
			Gateway:  &mockGateway{},
		})
		require.NoError(t, err)
		assert.Error(t, s.Load(ctx, []int64{1}))
		assert.Equal(t, workflow.StateLoading, s.State())
	})

	t.Run("duplicate ids are loaded once", func(t *testing.T) {
		s, err := NewSession("run-1", testCompany, entity.ModeValidate, Dependencies{
			Invoices: newFakeInvoices(testInvoice(1), testInvoice(2)),
			Sellers:  &fakeSellers{seller: testSeller()},
			Gateway:  &mockGateway{},
		})
		require.NoError(t, err)
		require.NoError(t, s.Load(ctx, []int64{2, 1, 2}))
		assert.Equal(t, []int64{2, 1}, s.InvoiceIDs())
	})

	t.Run("load twice", func(t *testing.T) {
		fx := newFixture(t, entity.ModeValidate, testInvoice(1))
		err := fx.session.Load(ctx, []int64{1})
		assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
	})
}

func TestSession_ConfirmThenStop(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, entity.ModePost, testInvoice(1), testInvoice(2))

	fx.gateway.On("Post", mock.Anything, forInvoice(1)).
		Return(&port.GatewayResponse{Success: true, FBRInvoiceNumber: "FBR-1001", Message: "Valid"}, nil).Once()

	require.NoError(t, fx.session.Begin(ctx))
	assert.Equal(t, workflow.StateAwaitingConfirmation, fx.session.State())

	result, err := fx.session.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeSuccess, result.Outcome)
	assert.Equal(t, "FBR-1001", result.Reference)
	assert.Equal(t, workflow.StateAwaitingConfirmation, fx.session.State())

	stopped, err := fx.session.Stop(ctx)
	require.NoError(t, err)
	require.Len(t, stopped, 1)
	assert.Equal(t, workflow.StateComplete, fx.session.State())

	results := fx.session.Results()
	require.Len(t, results, 2)
	assert.Equal(t, entity.OutcomeSuccess, results[0].Outcome)
	assert.Equal(t, "FBR-1001", results[0].Reference)
	assert.Equal(t, entity.OutcomeSkipped, results[1].Outcome)
	assert.Equal(t, entity.SkipStoppedByOperator, results[1].SkipReason)

	assert.Equal(t, 1, fx.observer.completed)
	assert.Equal(t, Summary{Total: 2, Succeeded: 1, Skipped: 1, Stopped: 1}, fx.observer.summary)
	fx.gateway.AssertNumberOfCalls(t, "Post", 1)
}

func TestSession_GatewayRejectionDoesNotHaltBatch(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, entity.ModeValidate, testInvoice(1), testInvoice(2))

	fx.gateway.On("Validate", mock.Anything, forInvoice(1)).
		Return(&port.GatewayResponse{Success: false, Error: "duplicate NTN"}, nil).Once()

	require.NoError(t, fx.session.Begin(ctx))
	result, err := fx.session.Confirm(ctx)
	require.NoError(t, err)

	assert.Equal(t, entity.OutcomeFailed, result.Outcome)
	assert.Equal(t, "duplicate NTN", result.Error)
	assert.Equal(t, entity.FailureGatewayRejection, result.FailureKind)

	assert.Equal(t, workflow.StateAwaitingConfirmation, fx.session.State())
	assert.Equal(t, []workflow.Trigger{workflow.TriggerConfirm, workflow.TriggerSkip, workflow.TriggerStop},
		workflow.Permitted(fx.session.State()))

	step, err := fx.session.Current()
	require.NoError(t, err)
	assert.Equal(t, int64(2), step.Invoice.ID)
	assert.Equal(t, 2, step.Index)
	require.NotNil(t, step.LastResult)
	assert.Equal(t, "duplicate NTN", step.LastResult.Error)
}

func TestSession_AlreadyPostedNeverReachesConfirmation(t *testing.T) {
	ctx := context.Background()
	posted := testInvoice(2)
	posted.FBRInvoiceNumber = "FBR-0002"
	fx := newFixture(t, entity.ModePost, testInvoice(1), posted, testInvoice(3))

	fx.gateway.On("Post", mock.Anything, mock.Anything).
		Return(&port.GatewayResponse{Success: true, FBRInvoiceNumber: "FBR-NEW"}, nil)

	require.NoError(t, fx.session.Begin(ctx))

	var offered []int64
	for fx.session.State() == workflow.StateAwaitingConfirmation {
		step, err := fx.session.Current()
		require.NoError(t, err)
		offered = append(offered, step.Invoice.ID)
		_, err = fx.session.Confirm(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, []int64{1, 3}, offered)
	results := fx.session.Results()
	require.Len(t, results, 3)
	assert.Equal(t, entity.OutcomeSkipped, results[1].Outcome)
	assert.Equal(t, entity.SkipAlreadyPosted, results[1].SkipReason)
	fx.gateway.AssertNotCalled(t, "Post", mock.Anything, forInvoice(2))
}

func TestSession_FreshEligibilityCheckBeforePost(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, entity.ModePost, testInvoice(1), testInvoice(2))

	require.NoError(t, fx.session.Begin(ctx))
	// Another run posts invoice 1 after this one was loaded
	fx.invoices.setReference(1, "FBR-ELSEWHERE")

	result, err := fx.session.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeSkipped, result.Outcome)
	assert.Equal(t, entity.SkipAlreadyPosted, result.SkipReason)
	fx.gateway.AssertNotCalled(t, "Post", mock.Anything, mock.Anything)
}

func TestSession_ValidateModeSkipsFreshCheck(t *testing.T) {
	ctx := context.Background()
	posted := testInvoice(1)
	posted.FBRInvoiceNumber = "FBR-0001"
	fx := newFixture(t, entity.ModeValidate, posted)

	fx.gateway.On("Validate", mock.Anything, forInvoice(1)).
		Return(&port.GatewayResponse{Success: true, Message: "Valid"}, nil).Once()

	require.NoError(t, fx.session.Begin(ctx))
	result, err := fx.session.Confirm(ctx)
	require.NoError(t, err)

	assert.Equal(t, entity.OutcomeSuccess, result.Outcome)
	assert.Equal(t, 0, fx.invoices.getCalls)
	assert.Equal(t, workflow.StateComplete, fx.session.State())
}

func TestSession_NetworkFailure(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, entity.ModePost, testInvoice(1), testInvoice(2))

	fx.gateway.On("Post", mock.Anything, forInvoice(1)).
		Return(nil, &entity.NetworkError{Op: "post", Err: errors.New("connection refused")}).Once()

	require.NoError(t, fx.session.Begin(ctx))
	result, err := fx.session.Confirm(ctx)
	require.NoError(t, err)

	assert.Equal(t, entity.OutcomeFailed, result.Outcome)
	assert.Equal(t, entity.FailureNetwork, result.FailureKind)
	assert.Equal(t, entity.NetworkFailureMessage, result.Error)
	assert.Equal(t, workflow.StateAwaitingConfirmation, fx.session.State())
	fx.gateway.AssertNumberOfCalls(t, "Post", 1)
}

func TestSession_CallerCancelDoesNotAbortPost(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fx := newFixture(t, entity.ModePost, testInvoice(1), testInvoice(2))

	live := mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil })
	fx.gateway.On("Post", live, forInvoice(1)).
		Run(func(args mock.Arguments) {
			cancel()
			assert.NoError(t, args.Get(0).(context.Context).Err())
		}).
		Return(&port.GatewayResponse{Success: true, FBRInvoiceNumber: "FBR-1", Message: "Valid"}, nil).Once()

	require.NoError(t, fx.session.Begin(ctx))
	result, err := fx.session.Confirm(ctx)
	require.NoError(t, err)

	assert.Error(t, ctx.Err())
	assert.Equal(t, entity.OutcomeSuccess, result.Outcome)
	assert.Equal(t, "FBR-1", result.Reference)
	require.Len(t, fx.observer.results, 1)
	assert.Equal(t, entity.OutcomeSuccess, fx.observer.results[0].Outcome)
	assert.Equal(t, workflow.StateAwaitingConfirmation, fx.session.State())
}

func TestSession_PostWithoutReferenceIsFailed(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, entity.ModePost, testInvoice(1))

	fx.gateway.On("Post", mock.Anything, forInvoice(1)).
		Return(&port.GatewayResponse{Success: true, Message: "Valid"}, nil).Once()

	require.NoError(t, fx.session.Begin(ctx))
	result, err := fx.session.Confirm(ctx)
	require.NoError(t, err)

	assert.Equal(t, entity.OutcomeFailed, result.Outcome)
	assert.Equal(t, entity.FailureGatewayRejection, result.FailureKind)
	assert.Equal(t, entity.MissingReferenceMessage, result.Error)
	assert.Empty(t, result.Reference)
	assert.Equal(t, workflow.StateComplete, fx.session.State())
}

func TestSession_IncompletePayloadIsNotSent(t *testing.T) {
	ctx := context.Background()
	broken := testInvoice(1)
	broken.BuyerNTNCNIC = ""
	broken.Lines[0].HSCode = ""
	fx := newFixture(t, entity.ModePost, broken)

	require.NoError(t, fx.session.Begin(ctx))

	step, err := fx.session.Current()
	require.NoError(t, err)
	var incomplete *entity.IncompletePayloadError
	require.ErrorAs(t, step.PayloadErr, &incomplete)
	assert.Equal(t, []string{"buyerNTNCNIC", "items[0].hsCode"}, incomplete.Fields)

	result, err := fx.session.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeFailed, result.Outcome)
	assert.Equal(t, entity.FailureIncompletePayload, result.FailureKind)
	fx.gateway.AssertNotCalled(t, "Post", mock.Anything, mock.Anything)
}

func TestSession_Skip(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, entity.ModeValidate, testInvoice(1), testInvoice(2))

	require.NoError(t, fx.session.Begin(ctx))

	r1, err := fx.session.Skip(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.SkipSkippedByOperator, r1.SkipReason)
	assert.Equal(t, workflow.StateAwaitingConfirmation, fx.session.State())

	_, err = fx.session.Skip(ctx)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateComplete, fx.session.State())
	assert.Equal(t, Summary{Total: 2, Skipped: 2}, fx.session.Summary())
	fx.gateway.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
}

func TestSession_StopDuringReview(t *testing.T) {
	ctx := context.Background()
	posted := testInvoice(1)
	posted.FBRInvoiceNumber = "FBR-0001"
	fx := newFixture(t, entity.ModePost, posted, testInvoice(2), testInvoice(3))

	stopped, err := fx.session.Stop(ctx)
	require.NoError(t, err)
	assert.Len(t, stopped, 2)

	assert.Equal(t, []entity.Outcome{entity.OutcomeSkipped, entity.OutcomeSkipped, entity.OutcomeSkipped},
		outcomes(fx.session.Results()))
	assert.Equal(t, Summary{Total: 3, Skipped: 3, Stopped: 2}, fx.session.Summary())
}

func TestSession_BeginWithNothingEligible(t *testing.T) {
	ctx := context.Background()
	posted := testInvoice(1)
	posted.FBRInvoiceNumber = "FBR-0001"
	fx := newFixture(t, entity.ModePost, posted)

	require.NoError(t, fx.session.Begin(ctx))
	assert.Equal(t, workflow.StateComplete, fx.session.State())
	assert.Equal(t, 1, fx.observer.completed)
}

func TestSession_ActionsAfterComplete(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, entity.ModeValidate, testInvoice(1))

	_, err := fx.session.Stop(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, fx.session.Begin(ctx), workflow.ErrInvalidTransition)
	_, err = fx.session.Confirm(ctx)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
	_, err = fx.session.Skip(ctx)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
	_, err = fx.session.Stop(ctx)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
	_, err = fx.session.Current()
	assert.ErrorIs(t, err, ErrNoCurrentInvoice)

	assert.Len(t, fx.session.Results(), 1)
}

func TestSession_ConfirmBeforeBegin(t *testing.T) {
	fx := newFixture(t, entity.ModeValidate, testInvoice(1))

	_, err := fx.session.Confirm(context.Background())
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)
	assert.Equal(t, workflow.StateReviewing, fx.session.State())
}

func TestSession_PreviewIsIdempotent(t *testing.T) {
	fx := newFixture(t, entity.ModeValidate, testInvoice(1), testInvoice(2))

	first, err := fx.session.Preview(2)
	require.NoError(t, err)
	second, err := fx.session.Preview(2)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, workflow.StateReviewing, fx.session.State())
	assert.Empty(t, fx.session.Results())

	_, err = fx.session.Preview(42)
	assert.ErrorIs(t, err, ErrInvoiceNotLoaded)
}

func TestSession_ObserverSeesEveryResult(t *testing.T) {
	ctx := context.Background()
	posted := testInvoice(1)
	posted.FBRInvoiceNumber = "FBR-0001"
	fx := newFixture(t, entity.ModePost, posted, testInvoice(2))

	fx.gateway.On("Post", mock.Anything, forInvoice(2)).
		Return(&port.GatewayResponse{Success: true, FBRInvoiceNumber: "FBR-0002"}, nil).Once()

	require.NoError(t, fx.session.Begin(ctx))
	_, err := fx.session.Confirm(ctx)
	require.NoError(t, err)

	require.Len(t, fx.observer.results, 2)
	assert.Equal(t, int64(1), fx.observer.results[0].InvoiceID)
	assert.Equal(t, int64(2), fx.observer.results[1].InvoiceID)
	assert.Equal(t, 1, fx.observer.completed)
}

// Random invoice sets, random operator actions: every completed run covers each invoice once
// and the counts always add up.
func TestSession_RandomRunsCoverEveryInvoice(t *testing.T) {
	ctx := context.Background()
	faker := gofakeit.New(42)

	for run := 0; run < 50; run++ {
		invoices := randomInvoices(faker, faker.Number(1, 12))
		mode := entity.ModePost
		if faker.Bool() {
			mode = entity.ModeValidate
		}

		fx := newFixture(t, mode, invoices...)
		fx.gateway.On("Post", mock.Anything, mock.Anything).
			Return(&port.GatewayResponse{Success: true, FBRInvoiceNumber: "FBR-X"}, nil)
		fx.gateway.On("Validate", mock.Anything, mock.Anything).
			Return(&port.GatewayResponse{Success: false, Error: "invalid HS code"}, nil)

		require.NoError(t, fx.session.Begin(ctx))
		for fx.session.State() == workflow.StateAwaitingConfirmation {
			var err error
			if faker.Number(0, 3) == 0 {
				_, err = fx.session.Skip(ctx)
			} else {
				_, err = fx.session.Confirm(ctx)
			}
			require.NoError(t, err)

			s := fx.session.Summary()
			assert.Equal(t, s.Total, s.Succeeded+s.Failed+s.Skipped)
		}

		require.Equal(t, workflow.StateComplete, fx.session.State())
		results := fx.session.Results()
		require.Len(t, results, len(invoices))
		for i, r := range results {
			assert.Equal(t, invoices[i].ID, r.InvoiceID, "results follow candidate order")
		}
		assert.True(t, fx.session.results.Covers(idsOf(invoices)))

		if mode == entity.ModePost {
			for _, inv := range invoices {
				if inv.HasGatewayReference() {
					fx.gateway.AssertNotCalled(t, "Post", mock.Anything, forInvoice(inv.ID))
				}
			}
		}
	}
}

// Stopping at eligible index i leaves i submitted results and n-i stopped ones
func TestSession_StopAtIndex(t *testing.T) {
	ctx := context.Background()
	const n = 5

	for i := 0; i <= n-1; i++ {
		invoices := make([]*entity.InvoiceCandidate, 0, n)
		for id := int64(1); id <= n; id++ {
			invoices = append(invoices, testInvoice(id))
		}
		fx := newFixture(t, entity.ModeValidate, invoices...)
		fx.gateway.On("Validate", mock.Anything, mock.Anything).
			Return(&port.GatewayResponse{Success: true}, nil)

		require.NoError(t, fx.session.Begin(ctx))
		for k := 0; k < i; k++ {
			_, err := fx.session.Confirm(ctx)
			require.NoError(t, err)
		}
		_, err := fx.session.Stop(ctx)
		require.NoError(t, err)

		var submitted, stopped int
		for _, r := range fx.session.Results() {
			switch {
			case r.Outcome == entity.OutcomeSuccess || r.Outcome == entity.OutcomeFailed:
				submitted++
			case r.SkipReason == entity.SkipStoppedByOperator:
				stopped++
			}
		}
		assert.Equal(t, i, submitted, "stop at %d", i)
		assert.Equal(t, n-i, stopped, "stop at %d", i)
	}
}

package container

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/fbr-submission/internal/application/dispatcher"
	"github.com/garyjia/fbr-submission/internal/application/port"
	"github.com/garyjia/fbr-submission/internal/domain/entity"
	"github.com/garyjia/fbr-submission/internal/domain/event"
	"github.com/garyjia/fbr-submission/internal/domain/workflow"
	"github.com/garyjia/fbr-submission/internal/infrastructure/metrics"
)

// HandlerDeps holds the collaborators of the run event handlers
type HandlerDeps struct {
	Invoices port.InvoiceRepository
	Runs     port.RunRepository
	Metrics  *metrics.Metrics
	Notifier port.RunNotifier
	Logger   *zap.Logger
}

// RegisterHandlers subscribes the run event handlers in the order they must run
func RegisterHandlers(d dispatcher.Dispatcher, deps *HandlerDeps) {
	d.Subscribe(event.TypeResultRecorded, "persist_result", persistResultHandler(deps.Runs))
	d.Subscribe(event.TypeResultRecorded, "mark_posted", markPostedHandler(deps.Invoices, deps.Logger))

	if deps.Metrics != nil {
		m := deps.Metrics
		d.Subscribe(event.TypeRunStarted, "metrics", func(ctx context.Context, evt *event.Event) error {
			m.RunStarted(evt.Mode)
			return nil
		})
		d.Subscribe(event.TypeResultRecorded, "metrics", func(ctx context.Context, evt *event.Event) error {
			if evt.Result != nil {
				m.ResultRecorded(evt.Mode, evt.Result)
			}
			return nil
		})
		d.Subscribe(event.TypeRunCompleted, "metrics", func(ctx context.Context, evt *event.Event) error {
			m.RunCompleted(evt.Mode)
			return nil
		})
	}

	d.Subscribe(event.TypeRunCompleted, "finalize_run", finalizeRunHandler(deps.Runs))

	if deps.Notifier != nil {
		d.Subscribe(event.TypeRunCompleted, "notify", notifyHandler(deps.Notifier))
	}
}

func persistResultHandler(runs port.RunRepository) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		if evt.Result == nil {
			return fmt.Errorf("result event without result")
		}
		return runs.AppendResult(ctx, evt.RunID, evt.Result)
	}
}

// markPostedHandler records the gateway reference on the invoice after a successful post
func markPostedHandler(invoices port.InvoiceRepository, logger *zap.Logger) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		r := evt.Result
		if evt.Mode != entity.ModePost || r == nil || r.Outcome != entity.OutcomeSuccess {
			return nil
		}

		err := invoices.MarkPosted(ctx, r.InvoiceID, r.Reference)
		var posted *entity.AlreadyPostedError
		if errors.As(err, &posted) {
			logger.Warn("Invoice already carried a reference",
				zap.String("run_id", evt.RunID),
				zap.Int64("invoice_id", r.InvoiceID),
				zap.String("existing", posted.Reference),
				zap.String("received", r.Reference))
		}
		return err
	}
}

func finalizeRunHandler(runs port.RunRepository) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		run, err := runs.GetByID(ctx, evt.RunID)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run %s not found", evt.RunID)
		}

		applyCounts(run, evt)
		return runs.Complete(ctx, run)
	}
}

func notifyHandler(notifier port.RunNotifier) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		run := &entity.SubmissionRun{
			ID:        evt.RunID,
			CompanyID: evt.CompanyID,
			Mode:      evt.Mode,
		}
		applyCounts(run, evt)
		return notifier.NotifyRunCompleted(ctx, run, evt.Results)
	}
}

func applyCounts(run *entity.SubmissionRun, evt *event.Event) {
	completedAt := evt.Timestamp
	run.State = workflow.StateComplete.String()
	run.Total = int(evt.GetPayloadInt(event.KeyTotal))
	run.Succeeded = int(evt.GetPayloadInt(event.KeySucceeded))
	run.Failed = int(evt.GetPayloadInt(event.KeyFailed))
	run.Skipped = int(evt.GetPayloadInt(event.KeySkipped))
	run.CompletedAt = &completedAt
}

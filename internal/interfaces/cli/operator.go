package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/garyjia/fbr-submission/internal/application/service"
	"github.com/garyjia/fbr-submission/internal/application/submission"
	"github.com/garyjia/fbr-submission/internal/domain/entity"
	"github.com/garyjia/fbr-submission/internal/domain/workflow"
)

// Operator drives one submission run from a terminal
type Operator struct {
	svc    service.SubmissionService
	prompt *Prompter
	out    io.Writer
}

// NewOperator creates a terminal operator over the submission service
func NewOperator(svc service.SubmissionService, prompt *Prompter, out io.Writer) *Operator {
	return &Operator{
		svc:    svc,
		prompt: prompt,
		out:    out,
	}
}

// Run starts a run, walks the operator through every eligible invoice and returns the run id.
// Declining at the review checkpoint stops the run before any gateway call.
// If input ends mid-run the run is stopped so every invoice still gets a result.
func (o *Operator) Run(ctx context.Context, req service.StartRunRequest) (string, error) {
	run, err := o.svc.StartRun(ctx, req)
	if err != nil {
		return "", err
	}
	o.printReview(run.Review)

	proceed, err := o.prompt.YesNo("Proceed?")
	if err != nil && !errors.Is(err, ErrInputClosed) {
		return run.ID, err
	}
	if !proceed {
		if _, err := o.svc.Stop(ctx, run.ID); err != nil {
			return run.ID, err
		}
		fmt.Fprintln(o.out, "Run cancelled at review.")
		return run.ID, o.PrintSummary(ctx, run.ID)
	}

	view, err := o.svc.Begin(ctx, run.ID)
	if err != nil {
		return run.ID, err
	}

	for view.State == workflow.StateAwaitingConfirmation {
		step, err := o.svc.Current(ctx, run.ID)
		if err != nil {
			return run.ID, err
		}
		o.printStep(step)

		action, err := o.prompt.Checkpoint()
		if errors.Is(err, ErrInputClosed) {
			action, err = ActionStop, nil
		}
		if err != nil {
			return run.ID, err
		}

		switch action {
		case ActionConfirm:
			result, err := o.svc.Confirm(ctx, run.ID)
			if err != nil {
				return run.ID, err
			}
			o.printOutcome(result)
		case ActionSkip:
			result, err := o.svc.Skip(ctx, run.ID)
			if err != nil {
				return run.ID, err
			}
			o.printOutcome(result)
		case ActionStop:
			stopped, err := o.svc.Stop(ctx, run.ID)
			if err != nil {
				return run.ID, err
			}
			fmt.Fprintf(o.out, "Stopped; %d invoice(s) not submitted.\n", len(stopped))
		}

		if view, err = o.svc.Get(ctx, run.ID); err != nil {
			return run.ID, err
		}
	}

	return run.ID, o.PrintSummary(ctx, run.ID)
}

// PrintSummary writes the per-invoice result table and the counts
func (o *Operator) PrintSummary(ctx context.Context, runID string) error {
	results, summary, err := o.svc.Results(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Fprintln(o.out)
	tw := tabwriter.NewWriter(o.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INVOICE\tOUTCOME\tDETAIL")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.InvoiceNumber, r.Outcome, r.Detail())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(o.out, "\nTotal %d | Succeeded %d | Failed %d | Skipped %d (stopped %d)\n",
		summary.Total, summary.Succeeded, summary.Failed, summary.Skipped, summary.Stopped)
	return nil
}

func (o *Operator) printReview(r *submission.Review) {
	if r == nil {
		return
	}
	fmt.Fprintf(o.out, "%s run for %s: %d invoice(s), %d eligible, amount %s\n",
		r.Mode, r.CompanyID, r.Total, len(r.Eligible), r.EligibleAmount.StringFixed(2))
	for _, item := range r.Eligible {
		fmt.Fprintf(o.out, "  %s  %s  %s\n", item.InvoiceNumber, item.BuyerName, item.TotalAmount.StringFixed(2))
	}
	for _, skipped := range r.PreSkipped {
		fmt.Fprintf(o.out, "  %s  skipped: %s\n", skipped.InvoiceNumber, skipped.Detail())
	}
}

func (o *Operator) printStep(step *submission.Step) {
	fmt.Fprintf(o.out, "\n[%d/%d] %s\n", step.Index, step.Of, step.Invoice.InvoiceNumber)
	if step.PayloadMsg != "" {
		fmt.Fprintf(o.out, "Payload is incomplete and will fail: %s\n", step.PayloadMsg)
	}
	if step.Payload != nil {
		raw, err := json.MarshalIndent(step.Payload, "", "  ")
		if err == nil {
			fmt.Fprintln(o.out, string(raw))
		}
		fmt.Fprintf(o.out, "Payload total %s\n", step.Payload.TotalValue().StringFixed(2))
	}
}

func (o *Operator) printOutcome(r *entity.ProcessResult) {
	fmt.Fprintf(o.out, "%s: %s %s\n", r.InvoiceNumber, r.Outcome, r.Detail())
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/fbr-submission/internal/application/service"
	"github.com/garyjia/fbr-submission/internal/config"
	"github.com/garyjia/fbr-submission/internal/container"
	"github.com/garyjia/fbr-submission/internal/domain/entity"
	"github.com/garyjia/fbr-submission/internal/infrastructure/export"
	"github.com/garyjia/fbr-submission/internal/interfaces/cli"
	"github.com/garyjia/fbr-submission/pkg/utils"
)

// exportAuto is the --export value used when the flag is given without a path
const exportAuto = "auto"

type app struct {
	configPath string
	container  *container.Container
	logger     *zap.Logger
}

func main() {
	// An interrupted run still closes the container
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	a := &app{}
	err := a.rootCmd().ExecuteContext(ctx)
	if closeErr := a.close(); err == nil {
		err = closeErr
	}
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "fbr-submit",
		Short:        "Validate or post invoices to the FBR digital invoicing gateway",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "configs/config.yaml", "path to the YAML configuration")

	root.AddCommand(
		a.runCmd(entity.ModeValidate, "Check invoices against the gateway without recording them"),
		a.runCmd(entity.ModePost, "Record invoices with the gateway and store their references"),
		a.previewCmd(),
		a.seedCmd(),
	)
	return root
}

func (a *app) runCmd(mode entity.SubmissionMode, short string) *cobra.Command {
	var companyID, invoices, exportPath string

	cmd := &cobra.Command{
		Use:   string(mode),
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := utils.ParseIDList(invoices)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			op := cli.NewOperator(a.container.SubmissionService(), cli.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout()), cmd.OutOrStdout())
			runID, err := op.Run(ctx, service.StartRunRequest{
				CompanyID:  companyID,
				Mode:       mode,
				InvoiceIDs: ids,
			})
			if err != nil {
				return err
			}

			if exportPath == "" {
				return nil
			}
			path, err := a.export(ctx, runID, exportPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&companyID, "company", "", "company whose invoices are submitted")
	cmd.Flags().StringVar(&invoices, "invoices", "", "comma separated invoice ids")
	cmd.Flags().StringVar(&exportPath, "export", "", "write the results workbook to this path, or to the export directory when no path is given")
	cmd.Flags().Lookup("export").NoOptDefVal = exportAuto
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("invoices")
	return cmd
}

func (a *app) previewCmd() *cobra.Command {
	var companyID string
	var invoiceID int64

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the gateway payload built for one invoice",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := a.container.SubmissionService().PreviewInvoice(cmd.Context(), companyID, invoiceID)
			if payload != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(payload); encErr != nil {
					return encErr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&companyID, "company", "", "company that owns the invoice")
	cmd.Flags().Int64Var(&invoiceID, "invoice", 0, "invoice id")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("invoice")
	return cmd
}

func (a *app) seedCmd() *cobra.Command {
	var companyID string
	var count int
	var seed uint64

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create sample invoices for sandbox runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			repos := a.container.Repositories()
			ids, err := cli.NewSeeder(a.container.DB(), repos.Invoice, repos.Seller, seed).Seed(cmd.Context(), companyID, count)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d invoice(s) for %s: %s\n", len(ids), companyID, joinIDs(ids))
			return nil
		},
	}

	cmd.Flags().StringVar(&companyID, "company", "", "company to seed")
	cmd.Flags().IntVar(&count, "count", 5, "number of invoices")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed for invoice contents; numbering continues after existing invoices")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func (a *app) open(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// stdout carries the operator dialogue
	output := cfg.Logger.OutputPath
	if output == "" || output == "stdout" {
		output = "stderr"
	}
	a.logger, err = utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: output,
		Format:     cfg.Logger.Format,
		Service:    "fbr-submit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.container, err = container.NewContainer(cfg, a.logger)
	if err != nil {
		return err
	}
	return a.container.Start(ctx)
}

func (a *app) close() error {
	if a.container == nil {
		return nil
	}
	err := a.container.Close()
	a.container = nil
	_ = a.logger.Sync()
	return err
}

func (a *app) export(ctx context.Context, runID, path string) (string, error) {
	svc := a.container.SubmissionService()
	run, err := svc.Get(ctx, runID)
	if err != nil {
		return "", err
	}
	results, summary, err := svc.Results(ctx, runID)
	if err != nil {
		return "", err
	}

	header := export.RunHeader{
		RunID:     run.ID,
		CompanyID: run.CompanyID,
		Mode:      run.Mode,
		State:     run.State.String(),
		Total:     summary.Total,
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		Skipped:   summary.Skipped,
		Stopped:   summary.Stopped,
	}

	if path == exportAuto {
		return a.container.Exporter().Save(ctx, header, results)
	}

	buf, err := export.ResultsWorkbook(header, results)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

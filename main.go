package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"rca-rates/config"
	"rca-rates/models"
	"rca-rates/remote/stortrack"
	"rca-rates/services"
	"rca-rates/storage"
	"rca-rates/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var planPath string

	root := &cobra.Command{
		Use:           "rca-rates",
		Short:         "Reconcile self-storage rate history from the warehouse and the paid rates API",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&planPath, "plan", "p", "plan.json", "Path to the JSON analysis plan")

	var fetch string
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Fill gaps, reconcile rates and export the data dump and adjusted summary",
		Example: `
  # Database only
  rca-rates run --plan austin.json --fetch none

  # Pay for every missing day
  rca-rates run --plan austin.json --fetch all

  # Pay only for two competitors
  rca-rates run --plan austin.json --fetch 10234,10871
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), planPath, fetch, false)
		},
	}
	runCmd.Flags().StringVar(&fetch, "fetch", "none", "API fetch: none, all, or a comma separated list of store IDs")

	gapsCmd := &cobra.Command{
		Use:   "gaps",
		Short: "Show per-store data coverage and the estimated API cost, without fetching",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), planPath, "none", true)
		},
	}

	root.AddCommand(runCmd, gapsCmd)
	return root
}

func run(parent context.Context, planPath, fetch string, gapsOnly bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := utils.NewLogger(cfg.Debug)
	runID := uuid.NewString()

	logger.Info("=== RCA rate reconciliation starting (run %s) ===", runID)

	plan, err := models.LoadPlan(planPath)
	if err != nil {
		logger.Error("%v", err)
		return err
	}
	analysis, err := buildAnalysis(plan, fetch, runID, time.Now())
	if err != nil {
		logger.Error("Invalid input: %v", err)
		return err
	}
	if err := analysis.Validate(); err != nil {
		logger.Error("Invalid input: %v", err)
		return err
	}
	aggregation, ok := models.ParseAggregation(cfg.Aggregation)
	if !ok {
		logger.Warn("Unknown AGGREGATION %q, using %s", cfg.Aggregation, aggregation)
	}

	logger.Info("Config: driver: %s | window: %s | stores: %d | aggregation: %s | concurrency: %d",
		cfg.RatesDBDriver, analysis.Window, len(analysis.Stores), aggregation, cfg.MaxConcurrency)

	store, err := storage.OpenRateStore(ctx, cfg.RatesDBDriver, cfg.DSN())
	if err != nil {
		logger.Error("Failed to open rate warehouse: %v", err)
		return err
	}
	defer store.Close()

	normalizer := services.NewNormalizer(logger)

	var fetcher *services.Fetcher
	if analysis.Fetch.Mode != services.FetchNone {
		client, err := stortrack.New(stortrack.Options{
			BaseURL:    cfg.APIBaseURL,
			Username:   cfg.APIUsername,
			Password:   cfg.APIPassword,
			Timeout:    cfg.APITimeout,
			MaxRetries: cfg.MaxRetries,
			MaxRPS:     cfg.APIMaxRPS,
		}, logger)
		if err != nil {
			logger.Error("Failed to create API client: %v", err)
			return err
		}
		pool := utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs)
		fetcher = services.NewFetcher(client, pool, normalizer, logger)
	}

	var writer storage.RateWriter
	if cfg.BackfillAPIRates {
		writer = store
	}

	progress := services.ProgressFunc(func(ev services.ProgressEvent) {
		status := fmt.Sprintf("%d records", ev.Records)
		if ev.Err != nil {
			status = "failed"
		}
		logger.Info("[fetch] %d/%d store %s %s: %s", ev.Completed, ev.Total, ev.StoreID, ev.Range, status)
	})

	builder := services.NewSummaryBuilder(aggregation, logger)
	pipeline := services.NewPipeline(store, writer, fetcher, normalizer, builder, progress,
		services.PipelineOptions{
			CostPerDay:  cfg.APICostPerDay,
			MaxAPISpend: cfg.MaxAPISpend,
			Backfill:    cfg.BackfillAPIRates,
		}, logger)

	if gapsOnly {
		preview, err := pipeline.Preview(ctx, analysis)
		if err != nil {
			return err
		}
		builder.PrintGaps(preview.Gaps)
		builder.PrintFeatureKeys(preview.FeatureKeys, preview.Unmatched)
		return nil
	}

	result, err := pipeline.Run(ctx, analysis)
	if err != nil {
		logger.Error("Run failed: %v", err)
		return err
	}

	paths := storage.NewOutputPaths(cfg.OutputDir, plan.City, time.Now())

	if err := storage.WriteDumpCSV(paths.DataCSV, result.Records); err != nil {
		logger.Error("Data dump write failed: %v", err)
		return err
	}
	logger.Info("Data dump saved to %s (%d rows)", paths.DataCSV, len(result.Records))

	if result.Summary != nil {
		if err := storage.WriteSummaryCSV(paths.SummaryCSV, result.Summary); err != nil {
			logger.Error("Summary write failed: %v", err)
		} else {
			logger.Info("Summary saved to %s (%d rows)", paths.SummaryCSV, len(result.Summary.Rows))
		}
	}

	if err := storage.WriteWorkbook(paths.Workbook, storage.Workbook{
		Records:     result.Records,
		Summary:     result.Summary,
		Gaps:        &result.Gaps,
		FeatureKeys: result.FeatureKeys,
		Stats:       result.Stats,
	}); err != nil {
		logger.Error("Workbook write failed: %v", err)
	} else {
		logger.Info("Workbook saved to %s", paths.Workbook)
	}

	if result.SummaryErr != nil {
		return result.SummaryErr
	}
	builder.Print(result.Summary, &result.Gaps, result.FeatureKeys, result.Unmatched, result.Stats)
	return nil
}

// buildAnalysis turns the operator's plan and --fetch flag into pipeline input.
func buildAnalysis(plan *models.Plan, fetch, runID string, now time.Time) (services.Analysis, error) {
	window, err := plan.Window(now)
	if err != nil {
		return services.Analysis{}, err
	}

	sel, err := parseFetch(fetch)
	if err != nil {
		return services.Analysis{}, err
	}

	return services.Analysis{
		RunID:     runID,
		Stores:    plan.Stores(),
		Window:    window,
		Rankings:  plan.Rankings,
		Factors:   plan.Factors(),
		Names:     plan.Names,
		Overrides: plan.Overrides(),
		Fetch:     sel,
	}, nil
}

func parseFetch(v string) (services.FetchSelection, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "none", "no":
		return services.FetchSelection{Mode: services.FetchNone}, nil
	case "all", "yes":
		return services.FetchSelection{Mode: services.FetchAll}, nil
	}
	var ids []models.StoreID
	for _, part := range strings.Split(v, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, models.StoreID(id))
		}
	}
	if len(ids) == 0 {
		return services.FetchSelection{}, fmt.Errorf("%w: --fetch: no store IDs given", models.ErrInput)
	}
	return services.FetchSelection{Mode: services.FetchSelected, StoreIDs: ids}, nil
}

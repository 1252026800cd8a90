package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tariktz/contactminer/internal/canonical"
	"github.com/tariktz/contactminer/internal/classifier"
	"github.com/tariktz/contactminer/internal/config"
	"github.com/tariktz/contactminer/internal/input"
	"github.com/tariktz/contactminer/internal/logging"
	"github.com/tariktz/contactminer/internal/model"
	"github.com/tariktz/contactminer/internal/pipeline"
	"github.com/tariktz/contactminer/internal/report"
	"github.com/tariktz/contactminer/internal/robots"
	"github.com/tariktz/contactminer/internal/runctx"
)

type runOptions struct {
	inputPath string
	outputDir string
	envFile   string
}

func init() {
	opts := &runOptions{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one extraction pass over an input spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtraction(cmd.Context(), opts)
		},
	}

	runCmd.Flags().StringVar(&opts.inputPath, "input", "", "Path to the source spreadsheet (overrides CONTACTMINER_DATA_INPUT_PATH)")
	runCmd.Flags().StringVar(&opts.outputDir, "output-dir", "", "Run output directory (overrides CONTACTMINER_DATA_OUTPUT_DIR)")
	runCmd.Flags().StringVar(&opts.envFile, "config", ".env", "Path to a .env file to seed configuration")

	rootCmd.AddCommand(runCmd)
}

func runExtraction(ctx context.Context, opts *runOptions) error {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.inputPath != "" {
		cfg.Data.InputPath = opts.inputPath
	}
	if opts.outputDir != "" {
		cfg.Data.OutputDir = opts.outputDir
	}
	if cfg.RunID == "" {
		cfg.RunID = time.Now().UTC().Format("20060102T150405Z")
	}

	runDir := filepath.Join(cfg.Data.OutputDir, "run_"+cfg.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}

	logger, err := logging.New(filepath.Join(runDir, "pipeline_run_"+cfg.RunID+".log"), cfg.Logging.FileLevel, cfg.Logging.ConsoleLevel)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Sync()

	rows, err := input.Read(cfg.Data.InputPath, cfg.Data.RowRange, cfg.Data.ConsecutiveEmptyRowsToStop)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	logger.Info("input loaded", zap.Int("rows", len(rows)))

	failureFile, err := os.Create(filepath.Join(runDir, "failed_rows_"+cfg.RunID+".csv"))
	if err != nil {
		return fmt.Errorf("create failure log: %w", err)
	}
	defer failureFile.Close()
	failureWriter, err := runctx.NewFailureWriter(failureFile)
	if err != nil {
		return fmt.Errorf("init failure writer: %w", err)
	}

	robotsGate := robots.New(nil, cfg.Robots.Respect, cfg.Robots.UserAgent)
	rc := runctx.New(cfg.RunID, robotsGate, failureWriter)
	rc.Logger = logger

	transport := classifier.NewAnthropicTransport(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Temperature)

	deps := pipeline.Dependencies{
		Config:    cfg,
		Transport: transport,
		Resolver:  canonical.DefaultResolver,
		RunCtx:    rc,
	}

	start := time.Now()
	results, siteDetails, err := pipeline.Run(ctx, rows, deps)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}
	elapsed := time.Since(start)

	if err := writeReports(runDir, cfg.RunID, results, siteDetails, rc.Metrics.Snapshot(), elapsed); err != nil {
		return err
	}

	fmt.Printf("Run %s complete: %d rows, %d contacts extracted, output in %s\n",
		cfg.RunID, len(results), rc.Metrics.Snapshot().ContactsExtractedRows, runDir)
	return nil
}

func writeReports(runDir, runID string, results []pipeline.ReportRow, siteDetails map[model.CanonicalSiteKey]model.SiteContactDetails, metrics runctx.Metrics, elapsed time.Duration) error {
	determinedAt := time.Now()

	if err := report.WriteSummary(filepath.Join(runDir, "summary_report_"+runID+".xlsx"), results); err != nil {
		return err
	}
	if err := report.WriteDetailed(filepath.Join(runDir, "detailed_report_"+runID+".xlsx"), siteDetails); err != nil {
		return err
	}
	if err := report.WriteTopContacts(filepath.Join(runDir, "top_contacts_"+runID+".xlsx"), results, siteDetails); err != nil {
		return err
	}
	if err := report.WriteFinalProcessedContacts(filepath.Join(runDir, "final_processed_contacts_"+runID+".xlsx"), results, siteDetails); err != nil {
		return err
	}
	if err := report.WriteAttrition(filepath.Join(runDir, "row_attrition_report_"+runID+".xlsx"), results, determinedAt); err != nil {
		return err
	}
	return report.WriteMetrics(filepath.Join(runDir, "run_metrics_"+runID+".md"), runID, metrics, elapsed)
}

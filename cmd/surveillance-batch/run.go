package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/app"
	"github.com/joseph-ayodele/surveillance-tracker/internal/batch"
	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
	"github.com/joseph-ayodele/surveillance-tracker/internal/ingest"
	"github.com/joseph-ayodele/surveillance-tracker/internal/repository"
)

type runFlags struct {
	inputs      []string
	dataset     string
	covid       string
	mode        string
	workers     int
	docTimeout  time.Duration
	llm         bool
	llmProvider string
	llmModel    string
	report      string
	xlsx        string
	publish     string
	history     bool
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Extract every document under the inputs and merge the records into the dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.inputs = append(f.inputs, args...)
			return runBatch(cmd, f)
		},
	}
	fl := cmd.Flags()
	fl.StringSliceVarP(&f.inputs, "input", "i", nil, "Markdown file or directory (repeatable, defaults to INPUT_DIR)")
	fl.StringVar(&f.dataset, "dataset", "", "dataset CSV path (overrides DATASET_PATH)")
	fl.StringVar(&f.covid, "covid-dataset", "", "COVID-19 subset CSV path (overrides COVID_DATASET_PATH)")
	fl.StringVar(&f.mode, "mode", "", "merge or replace (overrides MERGE_MODE)")
	fl.IntVar(&f.workers, "workers", 0, "concurrent documents (overrides WORKERS)")
	fl.DurationVar(&f.docTimeout, "doc-timeout", 0, "per-document deadline (overrides DOC_TIMEOUT)")
	fl.BoolVar(&f.llm, "llm", false, "enable the LLM fallback (overrides LLM_ENABLED)")
	fl.StringVar(&f.llmProvider, "llm-provider", "", "openai, openrouter or gemini (overrides LLM_PROVIDER)")
	fl.StringVar(&f.llmModel, "llm-model", "", "model name (overrides LLM_MODEL)")
	fl.StringVar(&f.report, "report", "", "write the JSON run report here (overrides REPORT_PATH)")
	fl.StringVar(&f.xlsx, "xlsx", "", "also export the dataset as an XLSX workbook (overrides XLSX_PATH)")
	fl.StringVar(&f.publish, "publish", "", "S3 bucket to publish the dataset to (overrides S3_BUCKET)")
	fl.BoolVar(&f.history, "history", true, "record the run in the run-history database")
	return cmd
}

func applyRunFlags(cmd *cobra.Command, cfg *common.Config, f runFlags) error {
	fl := cmd.Flags()
	if fl.Changed("dataset") {
		cfg.Dataset.Path = f.dataset
	}
	if fl.Changed("covid-dataset") {
		cfg.Dataset.CovidPath = f.covid
	}
	if fl.Changed("mode") {
		mode, ok := constants.ParseMergeMode(f.mode)
		if !ok {
			return fmt.Errorf("%w: --mode must be merge or replace, got %q", common.ErrInvalidInput, f.mode)
		}
		cfg.Dataset.Mode = mode
	}
	if fl.Changed("workers") {
		cfg.Batch.Workers = f.workers
	}
	if fl.Changed("doc-timeout") {
		cfg.Batch.DocTimeout = f.docTimeout
	}
	if fl.Changed("llm") {
		cfg.LLM.Enabled = f.llm
	}
	if fl.Changed("llm-provider") {
		cfg.LLM.Provider = f.llmProvider
	}
	if fl.Changed("llm-model") {
		cfg.LLM.Model = f.llmModel
	}
	if fl.Changed("report") {
		cfg.Dataset.ReportPath = f.report
	}
	if fl.Changed("xlsx") {
		cfg.Dataset.XLSXPath = f.xlsx
	}
	if fl.Changed("publish") {
		cfg.Publish.Bucket = f.publish
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = common.ParseLevel(lvl)
	}
	return nil
}

func runBatch(cmd *cobra.Command, f runFlags) error {
	cfg := app.LoadConfig()
	if err := applyRunFlags(cmd, cfg, f); err != nil {
		return usageErr(err)
	}
	logger := app.NewLogger(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inputs := f.inputs
	if len(inputs) == 0 {
		inputs = []string{cfg.Input.Dir}
	}
	paths, files, stats, err := ingest.ExpandInputs(inputs, cfg.Input.SkipHidden)
	if err != nil {
		return usageErr(err)
	}
	for _, fr := range files {
		switch {
		case fr.Err != "":
			logger.Warn("ingest.file.failed", "path", fr.Path, "error", fr.Err)
		case fr.Deduplicated:
			logger.Info("ingest.file.duplicate", "path", fr.Path, "duplicate_of", fr.DuplicateOf)
		}
	}
	logger.Info("ingest.discovered",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
		"documents", len(paths))
	if len(paths) == 0 {
		return usageErr(fmt.Errorf("%w: no Markdown documents found under %v", common.ErrInvalidInput, inputs))
	}

	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		if errors.Is(err, common.ErrInvalidInput) {
			return usageErr(err)
		}
		return fatalErr(err)
	}
	defer rt.Close()

	if f.history {
		if _, err := rt.OpenHistory(ctx); err != nil {
			logger.Warn("batch.history.unavailable", "postgres", repository.IsPostgres(cfg.Database.DSN), "error", err)
		}
	}
	sinks, err := rt.Sinks(ctx)
	if err != nil {
		logger.Warn("batch.sinks.unavailable", "error", err)
	}

	rep, runErr := rt.Driver(sinks...).Run(ctx, paths)
	if p := cfg.Dataset.ReportPath; p != "" {
		if err := batch.WriteReport(p, rep); err != nil {
			logger.Error("batch.report.write_failed", "path", p, "error", err)
		}
	}
	printSummary(cmd.OutOrStdout(), rep)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Warn("batch.run.cancelled")
		}
		return fatalErr(runErr)
	}
	return nil
}

func printSummary(w io.Writer, rep *batch.RunReport) {
	_, _ = fmt.Fprintf(w, "run %s (%s): %d documents, %d succeeded, %d failed, %d records\n",
		rep.RunID, rep.Mode, rep.Documents, rep.Succeeded, rep.Failed, rep.RecordsExtracted)
	if m := rep.Merge; m != nil {
		_, _ = fmt.Fprintf(w, "dataset %s: %d added, %d updated, %d unchanged, %d retained, %d total (written=%t)\n",
			rep.DatasetPath, m.Added, m.Updated, m.Unchanged, m.Retained, m.Total, rep.DatasetWritten)
	}
	for _, c := range rep.BatchConflicts {
		_, _ = fmt.Fprintf(w, "conflict %s %s: kept %s, dropped %s\n",
			c.ReferenceDate, c.Pathogen, c.KeptDocument, c.DroppedDocument)
	}
	for _, d := range rep.Failures() {
		_, _ = fmt.Fprintf(w, "%-8s %-24s %s\n", d.Status, d.ErrorKind, d.Path)
	}
	for name, msg := range rep.SinkErrors {
		_, _ = fmt.Fprintf(w, "sink %s failed: %s\n", name, msg)
	}
	if rep.Error != "" {
		_, _ = fmt.Fprintf(w, "run failed (%s): %s\n", rep.ErrorKind, rep.Error)
	}
}

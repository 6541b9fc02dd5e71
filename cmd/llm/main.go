package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/app"
	"github.com/joseph-ayodele/surveillance-tracker/internal/llm"
	"github.com/joseph-ayodele/surveillance-tracker/internal/llm/provider"
	"github.com/joseph-ayodele/surveillance-tracker/internal/pipeline/textextract"
	"github.com/joseph-ayodele/surveillance-tracker/internal/temporal"
)

func main() {
	cfg := app.LoadConfig()
	logger := app.NewLogger(os.Stderr, cfg.LogLevel)

	if len(os.Args) < 2 {
		logger.Error("usage: llm <document.md> [times]")
		os.Exit(2)
	}
	path := os.Args[1]
	times := 1
	if len(os.Args) >= 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			times = n
		}
	}

	cfg.LLM.Enabled = true
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	doc, err := textextract.NewLoader(logger).Load(path)
	if err != nil {
		logger.Error("load document", "path", path, "error", err)
		os.Exit(1)
	}
	req := llm.ExtractRequest{
		DocumentID:       doc.ID,
		Text:             doc.Text,
		FilenameHint:     filepath.Base(path),
		AllowedPathogens: constants.AsStringSlice(),
	}
	if res, err := temporal.NewResolver(logger).Resolve(filepath.Base(path), doc.Text); err == nil {
		req.ReferenceDate = res.ReferenceDate.Format(constants.DateLayout)
		req.ReportWeek = res.ReportWeek
	} else {
		logger.Warn("llm.temporal.unresolved", "path", path, "error", err)
	}

	ctx := context.Background()
	extractor, closeFn, err := provider.New(ctx, cfg.LLM, logger)
	if err != nil {
		logger.Error("llm provider", "provider", cfg.LLM.Provider, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeFn(); err != nil {
			logger.Warn("llm.close_failed", "error", err)
		}
	}()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	// Loop N times on the same document to compare model outputs.
	failed := 0
	for i := 1; i <= times; i++ {
		runCtx, cancel := context.WithTimeout(ctx, cfg.LLM.Timeout)
		start := time.Now()
		logger.Info("llm.run.start", "iter", i, "doc_id", doc.ID, "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)

		payload, raw, err := extractor.ExtractRows(runCtx, req)
		cancel()
		if err != nil {
			failed++
			logger.Error("llm.run.error", "iter", i, "error", err, "raw_bytes", len(raw))
			continue
		}
		logger.Info("llm.run.ok", "iter", i, "rows", len(payload.Rows), "elapsed_ms", time.Since(start).Milliseconds())
		_ = enc.Encode(payload)
	}

	logger.Info("done", "doc_id", doc.ID, "times", times, "failed", failed)
	if failed == times {
		os.Exit(1)
	}
}

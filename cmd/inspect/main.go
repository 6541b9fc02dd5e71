// Command inspect prints what every extraction stage sees for one document.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/surveillance-tracker/internal/app"
	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
	"github.com/joseph-ayodele/surveillance-tracker/internal/entity"
	"github.com/joseph-ayodele/surveillance-tracker/internal/pathogen"
	"github.com/joseph-ayodele/surveillance-tracker/internal/pipeline"
	"github.com/joseph-ayodele/surveillance-tracker/internal/pipeline/textextract"
	"github.com/joseph-ayodele/surveillance-tracker/internal/rowparse"
	"github.com/joseph-ayodele/surveillance-tracker/internal/table"
	"github.com/joseph-ayodele/surveillance-tracker/internal/temporal"
)

type stageError struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

type inspection struct {
	Document   entity.Document          `json:"document"`
	Resolution *entity.Resolution       `json:"resolution,omitempty"`
	Temporal   *stageError              `json:"temporal_error,omitempty"`
	Table      *table.Table             `json:"table,omitempty"`
	Locate     *stageError              `json:"table_error,omitempty"`
	Parse      *rowparse.Result         `json:"parse,omitempty"`
	Matches    []pathogen.Match         `json:"matches,omitempty"`
	Result     *pipeline.DocumentResult `json:"result,omitempty"`
	Records    []entity.Record          `json:"records,omitempty"`
}

func newStageError(err error) *stageError {
	return &stageError{Kind: common.ErrorKind(err), Error: err.Error()}
}

func main() {
	var (
		withResult = flag.Bool("result", false, "also run the full processor (including the fallback when enabled)")
		level      = flag.String("log-level", "warn", "log level")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		_, _ = fmt.Fprintln(os.Stderr, "usage: inspect [--result] <document.md>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg := app.LoadConfig()
	logger := app.NewLogger(os.Stderr, common.ParseLevel(*level))

	doc, err := textextract.NewLoader(logger).Load(path)
	if err != nil {
		logger.Error("inspect.load_failed", "path", path, "error", err)
		os.Exit(1)
	}
	out := inspection{Document: doc}

	if res, err := temporal.NewResolver(logger).Resolve(filepath.Base(path), doc.Text); err != nil {
		out.Temporal = newStageError(err)
	} else {
		out.Resolution = &res
	}

	if t, err := table.NewLocator(logger).Locate(doc.Text); err != nil {
		out.Locate = newStageError(err)
	} else {
		out.Table = t
		parsed := rowparse.NewParser(logger).ParseTable(t)
		out.Parse = &parsed

		norm, err := pathogen.FromConfig(cfg.Normalizer, logger)
		if err != nil {
			logger.Error("inspect.normalizer_failed", "error", err)
			os.Exit(1)
		}
		for _, c := range parsed.Candidates {
			out.Matches = append(out.Matches, norm.Normalize(c.RawLabel))
		}
	}

	if *withResult {
		ctx := context.Background()
		rt, err := app.Build(ctx, cfg, logger)
		if err != nil {
			logger.Error("inspect.init_failed", "error", err)
			os.Exit(1)
		}
		defer rt.Close()
		res := rt.Processor.ProcessDocument(ctx, path)
		out.Result = &res
		out.Records = res.Records
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		logger.Error("inspect.encode_failed", "error", err)
		os.Exit(1)
	}
}

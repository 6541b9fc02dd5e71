// Package app wires configuration into the extraction stack shared by the binaries.
package app

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joseph-ayodele/surveillance-tracker/internal/batch"
	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
	"github.com/joseph-ayodele/surveillance-tracker/internal/export"
	"github.com/joseph-ayodele/surveillance-tracker/internal/llm"
	"github.com/joseph-ayodele/surveillance-tracker/internal/llm/provider"
	"github.com/joseph-ayodele/surveillance-tracker/internal/metrics"
	"github.com/joseph-ayodele/surveillance-tracker/internal/pathogen"
	"github.com/joseph-ayodele/surveillance-tracker/internal/pipeline"
	"github.com/joseph-ayodele/surveillance-tracker/internal/publish"
	"github.com/joseph-ayodele/surveillance-tracker/internal/repository"
)

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() *common.Config {
	_ = godotenv.Load()
	return common.LoadConfig()
}

// NewLogger returns a JSON logger at level and installs it as the default.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// Runtime holds the wired document processor and the optional collaborators around it.
type Runtime struct {
	Config     *common.Config
	Logger     *slog.Logger
	Normalizer *pathogen.Normalizer
	Fallback   llm.FallbackExtractor
	Processor  *pipeline.Processor
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics

	db            *repository.DB
	history       repository.RunRepository
	closeFallback func() error
}

// Build wires the normalizer, the fallback extractor and the processor.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	norm, err := pathogen.FromConfig(cfg.Normalizer, logger)
	if err != nil {
		return nil, common.WrapError(err, "pathogen normalizer")
	}
	fallback, closeFallback, err := provider.New(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, common.WrapError(err, "llm provider")
	}
	reg := prometheus.NewRegistry()
	rt := &Runtime{
		Config:        cfg,
		Logger:        logger,
		Normalizer:    norm,
		Fallback:      fallback,
		Processor:     pipeline.NewProcessor(logger, norm, fallback, cfg.LLM.Timeout),
		Registry:      reg,
		Metrics:       metrics.New(reg),
		closeFallback: closeFallback,
	}
	logger.Info("app.runtime.ready",
		"llm_enabled", fallback != nil,
		"llm_provider", cfg.LLM.Provider,
		"workers", cfg.Batch.Workers,
		"mode", cfg.Dataset.Mode,
	)
	return rt, nil
}

// OpenHistory connects the run-history store and migrates it. The store is
// reused by later calls and closed by Close.
func (r *Runtime) OpenHistory(ctx context.Context) (repository.RunRepository, error) {
	if r.history != nil {
		return r.history, nil
	}
	db, err := repository.Open(ctx, r.Config.Database, r.Logger)
	if err != nil {
		return nil, err
	}
	runs := repository.NewRunRepository(db, r.Logger)
	if err := runs.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	r.db, r.history = db, runs
	return runs, nil
}

// Sinks returns the configured secondary outputs: an XLSX workbook and an S3 upload.
func (r *Runtime) Sinks(ctx context.Context) ([]batch.Sink, error) {
	var sinks []batch.Sink
	if p := r.Config.Dataset.XLSXPath; p != "" {
		sinks = append(sinks, export.FileSink{
			Path:    p,
			Service: export.NewService(r.Logger),
			Options: export.Options{CovidSheet: true},
		})
	}
	if b := r.Config.Publish.Bucket; b != "" {
		client, err := publish.NewS3Client(ctx, r.Config.Publish)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, publish.Sink{
			Publisher: publish.NewS3Publisher(client, b, r.Config.Publish.Prefix, r.Logger),
			Covid:     true,
		})
	}
	return sinks, nil
}

// Driver builds a batch driver that reports to the runtime's metrics and, when
// opened, the run-history store.
func (r *Runtime) Driver(sinks ...batch.Sink) *batch.Driver {
	opts := []batch.DriverOption{batch.WithObserver(r.Metrics)}
	if r.history != nil {
		opts = append(opts, batch.WithHistory(r.history))
	}
	if len(sinks) > 0 {
		opts = append(opts, batch.WithSinks(sinks...))
	}
	return batch.NewDriver(r.Processor, batch.Config{
		DatasetPath: r.Config.Dataset.Path,
		CovidPath:   r.Config.Dataset.CovidPath,
		Mode:        r.Config.Dataset.Mode,
		Workers:     r.Config.Batch.Workers,
		DocTimeout:  r.Config.Batch.DocTimeout,
	}, r.Logger, opts...)
}

// Close releases the fallback client and the history store.
func (r *Runtime) Close() {
	if r.closeFallback != nil {
		if err := r.closeFallback(); err != nil {
			r.Logger.Warn("app.llm.close_failed", "error", err)
		}
	}
	if r.db != nil {
		r.db.Close()
	}
}

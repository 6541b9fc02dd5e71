package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/app"
	"github.com/joseph-ayodele/surveillance-tracker/internal/batch"
	"github.com/joseph-ayodele/surveillance-tracker/internal/ingest"
	"github.com/joseph-ayodele/surveillance-tracker/internal/metrics"
)

// serviceName is the health-check name whose status follows the last run.
const serviceName = "surveillance.extraction"

func main() {
	cfg := app.LoadConfig()
	logger := app.NewLogger(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("daemon.init_failed", "error", err)
		os.Exit(2)
	}
	defer rt.Close()

	if _, err := rt.OpenHistory(ctx); err != nil {
		logger.Warn("daemon.history.unavailable", "error", err)
	}
	sinks, err := rt.Sinks(ctx)
	if err != nil {
		logger.Warn("daemon.sinks.unavailable", "error", err)
	}
	driver := rt.Driver(sinks...)

	// gRPC server
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("daemon.grpc.listen_failed", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("daemon.grpc.serving", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("daemon.grpc.serve_failed", "error", err)
			stop()
		}
	}()

	// metrics server
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(rt.Registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	httpServer := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("daemon.metrics.serving", "addr", cfg.Server.MetricsAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("daemon.metrics.serve_failed", "error", err)
			stop()
		}
	}()

	bursts, watchErrs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{cfg.Input.Dir},
		SkipHidden:  cfg.Input.SkipHidden,
		InitialScan: true,
		Debounce:    cfg.Server.WatchDebounce,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("daemon.watch.start_failed", "dir", cfg.Input.Dir, "error", err)
		os.Exit(1)
	}

	d := &daemon{
		logger:     logger,
		driver:     driver,
		health:     hs,
		mode:       cfg.Dataset.Mode,
		inputDir:   cfg.Input.Dir,
		skipHidden: cfg.Input.SkipHidden,
	}
	d.loop(ctx, bursts, watchErrs)

	logger.Info("daemon.shutdown.start")
	hs.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("daemon.metrics.shutdown_failed", "error", err)
	}
	grpcServer.GracefulStop()
	logger.Info("daemon.shutdown.done")
}

type daemon struct {
	logger     *slog.Logger
	driver     *batch.Driver
	health     *health.Server
	mode       constants.MergeMode
	inputDir   string
	skipHidden bool
}

// loop runs one batch per watcher burst until ctx ends. Runs never overlap.
func (d *daemon) loop(ctx context.Context, bursts <-chan []string, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			d.logger.Warn("daemon.watch.error", "error", err)
		case burst, ok := <-bursts:
			if !ok {
				return
			}
			d.runBurst(ctx, burst)
		}
	}
}

// runBurst merges the touched documents. Replace mode rebuilds from the whole
// input directory so untouched documents are not dropped from the dataset.
func (d *daemon) runBurst(ctx context.Context, burst []string) {
	var (
		paths []string
		err   error
	)
	if d.mode == constants.MergeModeReplace {
		paths, _, _, err = ingest.DiscoverDocuments(d.inputDir, d.skipHidden)
	} else {
		paths, _, _, err = ingest.ExpandInputs(burst, d.skipHidden)
	}
	if err != nil {
		d.logger.Error("daemon.discover_failed", "error", err)
		return
	}
	if len(paths) == 0 {
		return
	}
	rep, err := d.driver.Run(ctx, paths)
	if err != nil {
		d.logger.Error("daemon.run.failed", "run_id", rep.RunID, "error_kind", rep.ErrorKind, "error", err)
		d.health.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	d.health.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	d.logger.Info("daemon.run.done",
		"run_id", rep.RunID,
		"documents", rep.Documents,
		"failed", rep.Failed,
		"written", rep.DatasetWritten)
}

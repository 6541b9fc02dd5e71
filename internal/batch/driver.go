package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
	"github.com/joseph-ayodele/surveillance-tracker/internal/dataset"
	"github.com/joseph-ayodele/surveillance-tracker/internal/entity"
	"github.com/joseph-ayodele/surveillance-tracker/internal/pipeline"
	"github.com/joseph-ayodele/surveillance-tracker/internal/pipeline/textextract"
)

// Observer is told about every finished document and the merge. Implementations
// must be safe for concurrent DocumentDone calls.
type Observer interface {
	DocumentDone(res pipeline.DocumentResult)
	MergeDone(rep dataset.MergeReport)
}

// HistoryRecorder persists a finished run.
type HistoryRecorder interface {
	RecordRun(ctx context.Context, rep *RunReport) error
}

// Sink receives the merged dataset after it is durable. Sink errors never fail a run.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ds *dataset.Dataset, rep *RunReport) error
}

// Config selects where and how a run persists its records.
type Config struct {
	DatasetPath string
	CovidPath   string
	Mode        constants.MergeMode
	Workers     int
	DocTimeout  time.Duration
}

// Driver fans documents out to a worker pool, then merges every record into the
// dataset in one single-threaded step.
type Driver struct {
	proc     DocumentProcessor
	cfg      Config
	logger   *slog.Logger
	observer Observer
	history  HistoryRecorder
	sinks    []Sink
	mu       sync.Mutex // serializes runs against the dataset file
}

type DriverOption func(*Driver)

func WithObserver(o Observer) DriverOption {
	return func(d *Driver) { d.observer = o }
}

func WithHistory(h HistoryRecorder) DriverOption {
	return func(d *Driver) { d.history = h }
}

func WithSinks(s ...Sink) DriverOption {
	return func(d *Driver) { d.sinks = append(d.sinks, s...) }
}

func NewDriver(proc DocumentProcessor, cfg Config, logger *slog.Logger, opts ...DriverOption) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mode == "" {
		cfg.Mode = constants.MergeModeMerge
	}
	d := &Driver{proc: proc, cfg: cfg, logger: logger}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run processes paths and merges the results. The returned error is non-nil only
// for run-fatal failures (dataset load or write, cancellation); the report is
// returned in every case.
func (d *Driver) Run(ctx context.Context, paths []string) (*RunReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rep := &RunReport{
		RunID:        uuid.NewString(),
		Mode:         d.cfg.Mode,
		StartedAt:    time.Now().UTC(),
		DatasetPath:  d.cfg.DatasetPath,
		CovidPath:    d.cfg.CovidPath,
		StatusCounts: make(map[constants.DocumentStatus]int),
	}
	ctx = common.WithRunID(ctx, rep.RunID)
	log := common.LoggerFrom(ctx, d.logger)

	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	log.Info("batch.run.start", "documents", len(sorted), "mode", d.cfg.Mode, "workers", d.cfg.Workers)

	results := d.extract(ctx, log, sorted)
	records := d.collect(log, results, rep)

	err := ctx.Err()
	if err != nil {
		err = fmt.Errorf("run cancelled before merge: %w", err)
	} else {
		err = d.merge(ctx, log, records, rep)
	}
	if err != nil {
		rep.ErrorKind = common.ErrorKind(err)
		rep.Error = err.Error()
	}
	rep.FinishedAt = time.Now().UTC()

	if d.history != nil {
		if herr := d.history.RecordRun(ctx, rep); herr != nil {
			log.Error("batch.history.failed", "error", herr)
		}
	}
	log.Info("batch.run.done",
		"documents", rep.Documents,
		"succeeded", rep.Succeeded,
		"failed", rep.Failed,
		"records", rep.RecordsExtracted,
		"conflicts", len(rep.BatchConflicts),
		"error_kind", rep.ErrorKind,
		"elapsed_ms", rep.Elapsed().Milliseconds())
	return rep, err
}

func (d *Driver) extract(ctx context.Context, log *slog.Logger, paths []string) []pipeline.DocumentResult {
	results := make([]pipeline.DocumentResult, len(paths))
	done := make([]bool, len(paths))

	q := NewQueue(ctx, d.proc, func(job Job, res pipeline.DocumentResult) {
		results[job.Index] = res
		done[job.Index] = true
		if d.observer != nil {
			d.observer.DocumentDone(res)
		}
	}, log, WithWorkers(d.cfg.Workers), WithDocTimeout(d.cfg.DocTimeout), WithQueueSize(len(paths)))

	for i, p := range paths {
		if err := q.Enqueue(ctx, Job{Index: i, Path: p}); err != nil {
			log.Warn("batch.enqueue.failed", "path", p, "error", err)
			break
		}
	}
	_ = q.Shutdown(context.Background())

	for i, ok := range done {
		if ok {
			continue
		}
		cause := ctx.Err()
		if cause == nil {
			cause = ErrQueueClosed
		}
		results[i] = pipeline.DocumentResult{
			DocumentID: textextract.DocumentID(paths[i]),
			Path:       paths[i],
			Status:     constants.DocumentStatusFailed,
			ErrorKind:  common.ErrorKind(cause),
			Error:      "not processed: " + cause.Error(),
		}
	}
	return results
}

// collect fills the per-document part of rep and returns every record in path
// order, so a later document wins a key both produce.
func (d *Driver) collect(log *slog.Logger, results []pipeline.DocumentResult, rep *RunReport) []entity.Record {
	type owner struct {
		doc    int
		record entity.Record
	}
	seen := make(map[entity.RecordKey]owner)
	var records []entity.Record

	for i := range results {
		res := &results[i]
		for _, r := range res.Records {
			k := r.Key()
			if prev, ok := seen[k]; ok && prev.doc != i && !prev.record.SameValues(r) {
				rep.BatchConflicts = append(rep.BatchConflicts, BatchConflict{
					ReferenceDate:   k.ReferenceDate,
					ReportWeek:      k.ReportWeek,
					Pathogen:        k.Pathogen,
					KeptDocument:    res.DocumentID,
					DroppedDocument: results[prev.doc].DocumentID,
				})
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %s %s also in %s",
					WarnBatchConflict, k.ReferenceDate, k.Pathogen, results[prev.doc].DocumentID))
				log.Warn("batch.conflict", "pathogen", k.Pathogen, "reference_date", k.ReferenceDate,
					"kept", res.DocumentID, "dropped", results[prev.doc].DocumentID)
			}
			seen[k] = owner{doc: i, record: r}
			records = append(records, r)
		}
	}

	for _, res := range results {
		rep.Documents++
		rep.StatusCounts[res.Status]++
		if res.Status.Succeeded() {
			rep.Succeeded++
		} else {
			rep.Failed++
		}
		rep.RecordsExtracted += len(res.Records)
		rep.Results = append(rep.Results, newDocumentReport(res))
	}
	return records
}

func (d *Driver) merge(ctx context.Context, log *slog.Logger, records []entity.Record, rep *RunReport) error {
	existing, err := dataset.Load(d.cfg.DatasetPath)
	if err != nil {
		if d.cfg.Mode != constants.MergeModeReplace {
			log.Error("dataset.load.failed", "path", d.cfg.DatasetPath, "error", err)
			return fmt.Errorf("load dataset: %w", err)
		}
		log.Warn("dataset.load.failed", "path", d.cfg.DatasetPath, "error", err)
		existing = &dataset.Dataset{}
	}

	merged, mrep := dataset.Merge(existing, records, d.cfg.Mode)
	rep.Merge = &mrep
	if d.observer != nil {
		d.observer.MergeDone(mrep)
	}

	written, err := dataset.Save(d.cfg.DatasetPath, merged)
	if err != nil {
		log.Error("dataset.write.failed", "path", d.cfg.DatasetPath, "error", err)
		return err
	}
	rep.DatasetWritten = written
	log.Info("dataset.merge.ok",
		"added", mrep.Added,
		"updated", mrep.Updated,
		"unchanged", mrep.Unchanged,
		"total", mrep.Total,
		"written", written)

	if d.cfg.CovidPath != "" {
		written, err := dataset.Save(d.cfg.CovidPath, merged.FilterPathogen(constants.SARSCoV2))
		if err != nil {
			log.Error("dataset.write.failed", "path", d.cfg.CovidPath, "error", err)
			return err
		}
		rep.CovidWritten = written
	}

	for _, s := range d.sinks {
		if err := s.Deliver(ctx, merged, rep); err != nil {
			if rep.SinkErrors == nil {
				rep.SinkErrors = make(map[string]string)
			}
			rep.SinkErrors[s.Name()] = err.Error()
			log.Warn("batch.sink.failed", "sink", s.Name(), "error", err)
		}
	}
	return nil
}

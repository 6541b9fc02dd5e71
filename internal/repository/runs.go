package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/batch"
	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
)

const (
	tableRuns     = "extraction_runs"
	tableOutcomes = "document_outcomes"
)

// RunSummary is one row of extraction_runs.
type RunSummary struct {
	ID         string              `json:"id"`
	Mode       constants.MergeMode `json:"mode"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Documents  int                 `json:"documents"`
	Succeeded  int                 `json:"succeeded"`
	Failed     int                 `json:"failed"`
	Added      int                 `json:"added"`
	Updated    int                 `json:"updated"`
	Unchanged  int                 `json:"unchanged"`
	ErrorKind  string              `json:"error_kind,omitempty"`
}

// DocumentOutcome is one row of document_outcomes.
type DocumentOutcome struct {
	RunID           string                   `json:"run_id"`
	Path            string                   `json:"path"`
	DocumentID      string                   `json:"doc_id"`
	Status          constants.DocumentStatus `json:"status"`
	ErrorKind       string                   `json:"error_kind,omitempty"`
	ReferenceDate   string                   `json:"reference_date,omitempty"`
	RowsLocated     int                      `json:"rows_located"`
	RecordsProduced int                      `json:"records_produced"`
}

type RunRepository interface {
	Migrate(ctx context.Context) error
	RecordRun(ctx context.Context, rep *batch.RunReport) error
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	ListOutcomes(ctx context.Context, runID string) ([]DocumentOutcome, error)
}

type runRepo struct {
	db  *DB
	log *slog.Logger
}

func NewRunRepository(db *DB, log *slog.Logger) RunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &runRepo{db: db, log: log}
}

func (r *runRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect)
}

// Migrate creates both tables when absent. Timestamps are RFC 3339 text in both dialects.
func (r *runRepo) Migrate(ctx context.Context) error {
	b := r.builder()
	stmts := []entsql.Querier{
		b.CreateTable(tableRuns).IfNotExists().
			Columns(
				b.Column("id").Type("TEXT").Attr("NOT NULL"),
				b.Column("mode").Type("TEXT").Attr("NOT NULL"),
				b.Column("started_at").Type("TEXT").Attr("NOT NULL"),
				b.Column("finished_at").Type("TEXT").Attr("NOT NULL"),
				b.Column("documents").Type("INTEGER").Attr("NOT NULL"),
				b.Column("succeeded").Type("INTEGER").Attr("NOT NULL"),
				b.Column("failed").Type("INTEGER").Attr("NOT NULL"),
				b.Column("added").Type("INTEGER").Attr("NOT NULL"),
				b.Column("updated").Type("INTEGER").Attr("NOT NULL"),
				b.Column("unchanged").Type("INTEGER").Attr("NOT NULL"),
				b.Column("error_kind").Type("TEXT"),
			).
			PrimaryKey("id"),
		b.CreateTable(tableOutcomes).IfNotExists().
			Columns(
				b.Column("run_id").Type("TEXT").Attr("NOT NULL"),
				b.Column("path").Type("TEXT").Attr("NOT NULL"),
				b.Column("doc_id").Type("TEXT").Attr("NOT NULL"),
				b.Column("status").Type("TEXT").Attr("NOT NULL"),
				b.Column("error_kind").Type("TEXT"),
				b.Column("reference_date").Type("TEXT"),
				b.Column("rows_located").Type("INTEGER").Attr("NOT NULL"),
				b.Column("records_produced").Type("INTEGER").Attr("NOT NULL"),
			).
			PrimaryKey("run_id", "path"),
	}
	for _, st := range stmts {
		q, args := st.Query()
		if _, err := r.db.SQL.ExecContext(ctx, q, args...); err != nil {
			r.log.Error("repository.migrate.failed", "error", err)
			return fmt.Errorf("%w: migrate: %v", common.ErrDatabase, err)
		}
	}
	r.log.Debug("repository.migrate.ok")
	return nil
}

// RecordRun stores the run and its per-document outcomes in one transaction.
func (r *runRepo) RecordRun(ctx context.Context, rep *batch.RunReport) error {
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", common.ErrDatabase, err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var added, updated, unchanged int
	if rep.Merge != nil {
		added, updated, unchanged = rep.Merge.Added, rep.Merge.Updated, rep.Merge.Unchanged
	}
	q, args := r.builder().Insert(tableRuns).
		Columns("id", "mode", "started_at", "finished_at", "documents", "succeeded", "failed",
			"added", "updated", "unchanged", "error_kind").
		Values(rep.RunID, string(rep.Mode), formatTime(rep.StartedAt), formatTime(rep.FinishedAt),
			rep.Documents, rep.Succeeded, rep.Failed, added, updated, unchanged, rep.ErrorKind).
		Query()
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		r.log.Error("repository.run.insert_failed", "run_id", rep.RunID, "error", err)
		return fmt.Errorf("%w: insert run: %v", common.ErrDatabase, err)
	}

	if len(rep.Results) > 0 {
		ins := r.builder().Insert(tableOutcomes).
			Columns("run_id", "path", "doc_id", "status", "error_kind", "reference_date", "rows_located", "records_produced")
		for _, d := range rep.Results {
			ins.Values(rep.RunID, d.Path, d.DocumentID, string(d.Status), d.ErrorKind, d.ReferenceDate, d.RowsLocated, d.RecordsProduced)
		}
		q, args := ins.Query()
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			r.log.Error("repository.outcomes.insert_failed", "run_id", rep.RunID, "error", err)
			return fmt.Errorf("%w: insert outcomes: %v", common.ErrDatabase, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrDatabase, err)
	}
	r.log.Info("repository.run.recorded", "run_id", rep.RunID, "documents", len(rep.Results))
	return nil
}

// ListRuns returns the latest runs, newest first.
func (r *runRepo) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	b := r.builder()
	q, args := b.Select("id", "mode", "started_at", "finished_at", "documents", "succeeded", "failed",
		"added", "updated", "unchanged", "error_kind").
		From(b.Table(tableRuns)).
		OrderBy(entsql.Desc("started_at")).
		Limit(limit).
		Query()

	rows, err := r.db.SQL.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list runs: %v", common.ErrDatabase, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var out []RunSummary
	for rows.Next() {
		var (
			s                RunSummary
			mode, start, end string
			errKind          sql.NullString
		)
		if err := rows.Scan(&s.ID, &mode, &start, &end, &s.Documents, &s.Succeeded, &s.Failed,
			&s.Added, &s.Updated, &s.Unchanged, &errKind); err != nil {
			return nil, fmt.Errorf("%w: scan run: %v", common.ErrDatabase, err)
		}
		s.Mode = constants.MergeMode(mode)
		s.StartedAt, _ = time.Parse(time.RFC3339Nano, start)
		s.FinishedAt, _ = time.Parse(time.RFC3339Nano, end)
		s.ErrorKind = errKind.String
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list runs: %v", common.ErrDatabase, err)
	}
	return out, nil
}

// ListOutcomes returns the documents of one run in path order.
func (r *runRepo) ListOutcomes(ctx context.Context, runID string) ([]DocumentOutcome, error) {
	b := r.builder()
	q, args := b.Select("run_id", "path", "doc_id", "status", "error_kind", "reference_date", "rows_located", "records_produced").
		From(b.Table(tableOutcomes)).
		Where(entsql.EQ("run_id", runID)).
		OrderBy("path").
		Query()

	rows, err := r.db.SQL.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list outcomes: %v", common.ErrDatabase, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var out []DocumentOutcome
	for rows.Next() {
		var (
			o             DocumentOutcome
			status        string
			kind, refDate sql.NullString
		)
		if err := rows.Scan(&o.RunID, &o.Path, &o.DocumentID, &status, &kind, &refDate, &o.RowsLocated, &o.RecordsProduced); err != nil {
			return nil, fmt.Errorf("%w: scan outcome: %v", common.ErrDatabase, err)
		}
		o.Status = constants.DocumentStatus(status)
		o.ErrorKind = kind.String
		o.ReferenceDate = refDate.String
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list outcomes: %v", common.ErrDatabase, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: run %s", common.ErrNotFound, runID)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

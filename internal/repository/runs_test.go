package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/batch"
	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
	"github.com/joseph-ayodele/surveillance-tracker/internal/dataset"
	"github.com/joseph-ayodele/surveillance-tracker/internal/pipeline"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := Open(context.Background(), common.DatabaseConfig{
		DSN:         "file:" + name + "?mode=memory&cache=shared",
		DialTimeout: time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func sampleRun(id string, started time.Time) *batch.RunReport {
	return &batch.RunReport{
		RunID:      id,
		Mode:       constants.MergeModeMerge,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Documents:  2,
		Succeeded:  1,
		Failed:     1,
		Merge:      &dataset.MergeReport{Added: 4, Updated: 1, Unchanged: 2},
		Results: []batch.DocumentReport{
			{
				DocumentResult:  pipeline.DocumentResult{DocumentID: "t20250901", Path: "/in/t20250901.md", Status: constants.DocumentStatusExtracted},
				ReferenceDate:   "2025-09-01",
				RowsLocated:     11,
				RecordsProduced: 11,
			},
			{
				DocumentResult: pipeline.DocumentResult{DocumentID: "x", Path: "/in/x.md", Status: constants.DocumentStatusUndated, ErrorKind: "TemporalResolutionFailed"},
			},
		},
	}
}

func TestRunRepository_RecordAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(openMemory(t), nil)
	require.NoError(t, repo.Migrate(ctx))
	require.NoError(t, repo.Migrate(ctx))

	t0 := time.Date(2025, 9, 8, 6, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordRun(ctx, sampleRun("run-1", t0)))
	require.NoError(t, repo.RecordRun(ctx, sampleRun("run-2", t0.Add(time.Hour))))

	runs, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-1", runs[1].ID)
	assert.Equal(t, 4, runs[1].Added)
	assert.Equal(t, 1, runs[1].Updated)
	assert.Equal(t, 2, runs[1].Unchanged)
	assert.True(t, runs[1].StartedAt.Equal(t0))
	assert.Equal(t, constants.MergeModeMerge, runs[1].Mode)

	limited, err := repo.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	outcomes, err := repo.ListOutcomes(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "/in/t20250901.md", outcomes[0].Path)
	assert.Equal(t, 11, outcomes[0].RecordsProduced)
	assert.Equal(t, "2025-09-01", outcomes[0].ReferenceDate)
	assert.Equal(t, constants.DocumentStatusUndated, outcomes[1].Status)
	assert.Equal(t, "TemporalResolutionFailed", outcomes[1].ErrorKind)
}

func TestRunRepository_DuplicateRunRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(openMemory(t), nil)
	require.NoError(t, repo.Migrate(ctx))

	run := sampleRun("run-1", time.Now())
	require.NoError(t, repo.RecordRun(ctx, run))
	err := repo.RecordRun(ctx, run)
	assert.ErrorIs(t, err, common.ErrDatabase)

	outcomes, err := repo.ListOutcomes(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, outcomes, 2)
}

func TestRunRepository_UnknownRun(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(openMemory(t), nil)
	require.NoError(t, repo.Migrate(ctx))

	_, err := repo.ListOutcomes(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestHealthCheck(t *testing.T) {
	db := openMemory(t)
	assert.NoError(t, db.HealthCheck(context.Background(), time.Second))
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(context.Background(), common.DatabaseConfig{}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	assert.True(t, IsPostgres("postgres://u@h/db"))
	assert.True(t, IsPostgres("postgresql://u@h/db"))
	assert.False(t, IsPostgres("file:runs.db"))
}

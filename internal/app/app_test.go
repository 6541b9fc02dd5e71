package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
	"github.com/joseph-ayodele/surveillance-tracker/internal/dataset"
)

const sampleReport = `# 全国急性呼吸道传染病哨点监测情况(2025年第36周)

表1 哨点医院门急诊流感样病例和住院严重急性呼吸道感染病例病原体阳性率

| 病原体 | 门急诊流感样病例(%) | 住院严重急性呼吸道感染病例(%) |
|---|---|---|
| 新型冠状病毒 | 6.8 | 3.7 |
| 流感病毒 | 12.1 | 8.4 |
`

func setEnv(t *testing.T, dir string) {
	t.Helper()
	t.Setenv("DATASET_PATH", filepath.Join(dir, "out", "surveillance_all.csv"))
	t.Setenv("COVID_DATASET_PATH", "")
	t.Setenv("MERGE_MODE", "merge")
	t.Setenv("WORKERS", "2")
	t.Setenv("LLM_ENABLED", "false")
	t.Setenv("XLSX_PATH", "")
	t.Setenv("S3_BUCKET", "")
	t.Setenv("PATHOGEN_ALIASES_FILE", "")
	t.Setenv("FUZZY_THRESHOLD", "")
	t.Setenv("DB_URL", filepath.Join(dir, "runs.db"))
}

func TestNewLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, common.ParseLevel("warn"))
	logger.Info("app.test.hidden")
	logger.Warn("app.test.shown", "k", 1)

	out := buf.String()
	assert.NotContains(t, out, "app.test.hidden")
	assert.Contains(t, out, `"msg":"app.test.shown"`)
}

func TestBuild_RejectsInvalidConfig(t *testing.T) {
	setEnv(t, t.TempDir())
	t.Setenv("WORKERS", "0")

	_, err := Build(context.Background(), LoadConfig(), NewLogger(&bytes.Buffer{}, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestBuild_LLMDisabledHasNoFallback(t *testing.T) {
	setEnv(t, t.TempDir())

	rt, err := Build(context.Background(), LoadConfig(), NewLogger(&bytes.Buffer{}, 0))
	require.NoError(t, err)
	defer rt.Close()
	assert.Nil(t, rt.Fallback)
	assert.NotNil(t, rt.Processor)

	sinks, err := rt.Sinks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sinks)
}

func TestRuntime_RunRecordsDatasetWorkbookAndHistory(t *testing.T) {
	dir := t.TempDir()
	setEnv(t, dir)
	t.Setenv("XLSX_PATH", filepath.Join(dir, "out", "surveillance.xlsx"))
	doc := filepath.Join(dir, "t20250901_312973.md")
	require.NoError(t, os.WriteFile(doc, []byte(sampleReport), 0o644))

	ctx := context.Background()
	cfg := LoadConfig()
	rt, err := Build(ctx, cfg, NewLogger(&bytes.Buffer{}, 0))
	require.NoError(t, err)
	defer rt.Close()

	history, err := rt.OpenHistory(ctx)
	require.NoError(t, err)
	again, err := rt.OpenHistory(ctx)
	require.NoError(t, err)
	assert.Same(t, history, again)

	sinks, err := rt.Sinks(ctx)
	require.NoError(t, err)
	require.Len(t, sinks, 1)
	assert.Equal(t, "xlsx", sinks[0].Name())

	rep, err := rt.Driver(sinks...).Run(ctx, []string{doc})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Succeeded)
	assert.True(t, rep.DatasetWritten)
	assert.Empty(t, rep.SinkErrors)

	ds, err := dataset.Load(cfg.Dataset.Path)
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, constants.SARSCoV2, ds.Rows[0].Pathogen)

	_, err = os.Stat(cfg.Dataset.XLSXPath)
	assert.NoError(t, err)

	runs, err := history.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rep.RunID, runs[0].ID)
	assert.Equal(t, 2, runs[0].Added)

	raw, err := os.ReadFile(cfg.Dataset.Path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "reference_date,"))
}

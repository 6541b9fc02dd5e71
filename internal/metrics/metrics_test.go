package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/dataset"
	"github.com/joseph-ayodele/surveillance-tracker/internal/entity"
	"github.com/joseph-ayodele/surveillance-tracker/internal/pipeline"
	"github.com/joseph-ayodele/surveillance-tracker/internal/rowparse"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.DocumentDone(pipeline.DocumentResult{
		Status:    constants.DocumentStatusFallbackOK,
		ElapsedMS: 1200,
		Skipped:   []rowparse.Skip{{Reason: rowparse.SkipSummary}, {Reason: rowparse.SkipNoRates}},
		Records: []entity.Record{
			{Source: constants.SourceFallback},
			{Source: constants.SourceFallback},
		},
		Fallback: &pipeline.FallbackSummary{Outcome: pipeline.FallbackOK},
	})
	m.DocumentDone(pipeline.DocumentResult{Status: constants.DocumentStatusUndated})
	m.MergeDone(dataset.MergeReport{Added: 2, Updated: 1})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.documentsTotal.WithLabelValues("FALLBACK_OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documentsTotal.WithLabelValues("UNDATED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rowsSkippedTotal.WithLabelValues(rowparse.SkipNoRates)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.recordsTotal.WithLabelValues("llm")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbackTotal.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.mergeRowsTotal.WithLabelValues("added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mergeRowsTotal.WithLabelValues("updated")))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "surveillance_document_seconds_count 2")
}

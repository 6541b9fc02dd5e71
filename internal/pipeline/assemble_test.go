package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/entity"
	"github.com/joseph-ayodele/surveillance-tracker/internal/pathogen"
	"github.com/joseph-ayodele/surveillance-tracker/internal/temporal"
)

func newAssembler(t *testing.T) *Assembler {
	t.Helper()
	n, err := pathogen.NewNormalizer(nil)
	require.NoError(t, err)
	return NewAssembler(n, nil)
}

func candidate(row int, label string, ili, sari *float64) entity.Candidate {
	return entity.Candidate{RowIndex: row, RawLabel: label, ILI: ili, SARI: sari}
}

func TestAssemble_AliasesResolveToWeekRecords(t *testing.T) {
	doc := entity.Document{ID: "t20250901_312973"}
	res := temporal.WeekOf(day("2025-09-03"))

	out := newAssembler(t).Assemble(context.Background(), doc, res, []entity.Candidate{
		candidate(0, "新冠病毒", entity.Float(6.8), nil),
		candidate(1, "流感", entity.Float(1.2), entity.Float(0.9)),
	}, constants.SourceRules)

	require.Len(t, out.Records, 2)
	assert.Equal(t, constants.SARSCoV2, out.Records[0].Pathogen)
	assert.Equal(t, constants.Influenza, out.Records[1].Pathogen)
	for _, r := range out.Records {
		assert.Equal(t, day("2025-09-01"), r.ReferenceDate)
		assert.Equal(t, day("2025-09-07"), r.TargetEndDate)
		assert.Equal(t, 36, r.ReportWeek)
		assert.Equal(t, "t20250901_312973", r.DocumentID)
		assert.NoError(t, r.Validate())
	}
	assert.Empty(t, out.Unrecognized)
}

func TestAssemble_CaseDefinitionRowDoesNotDisplaceInfluenza(t *testing.T) {
	res := temporal.WeekOf(day("2025-09-01"))

	out := newAssembler(t).Assemble(context.Background(), entity.Document{ID: "d"}, res, []entity.Candidate{
		candidate(0, "流感样病例", entity.Float(12.5), entity.Float(8.0)),
		candidate(1, "流感病毒", entity.Float(1.2), entity.Float(0.9)),
	}, constants.SourceRules)

	require.Len(t, out.Records, 1)
	assert.Equal(t, constants.Influenza, out.Records[0].Pathogen)
	assert.Equal(t, 1.2, *out.Records[0].ILIPercent)
	assert.Equal(t, 0.9, *out.Records[0].SARIPercent)
	assert.Empty(t, out.Conflicts)
	require.Len(t, out.Unrecognized, 1)
}

func TestAssemble_DuplicatesAndConflicts(t *testing.T) {
	res := temporal.WeekOf(day("2025-09-01"))

	out := newAssembler(t).Assemble(context.Background(), entity.Document{ID: "d"}, res, []entity.Candidate{
		candidate(0, "腺病毒", entity.Float(1.0), entity.Float(2.0)),
		candidate(1, "ADV", entity.Float(1.0), entity.Float(2.0)),
		candidate(2, "腺病毒", entity.Float(9.9), entity.Float(2.0)),
	}, constants.SourceRules)

	require.Len(t, out.Records, 1)
	assert.Equal(t, 1.0, *out.Records[0].ILIPercent)
	assert.Equal(t, 2, out.Duplicates)
	require.Len(t, out.Conflicts, 1)
	c := out.Conflicts[0]
	assert.Equal(t, constants.Adenovirus, c.Pathogen)
	assert.Equal(t, 0, c.KeptRow)
	assert.Equal(t, 2, c.DroppedRow)
	assert.Equal(t, 9.9, *c.DroppedILI)
}

func TestAssemble_UnrecognizedKeptForAudit(t *testing.T) {
	res := temporal.WeekOf(day("2025-09-01"))

	out := newAssembler(t).Assemble(context.Background(), entity.Document{ID: "d"}, res, []entity.Candidate{
		candidate(0, "结核分枝杆菌", entity.Float(0.1), nil),
		candidate(1, "鼻病毒", nil, entity.Float(4.4)),
	}, constants.SourceFallback)

	require.Len(t, out.Records, 1)
	assert.Equal(t, constants.Rhinovirus, out.Records[0].Pathogen)
	assert.Equal(t, constants.SourceFallback, out.Records[0].Source)
	require.Len(t, out.Unrecognized, 1)
	assert.Equal(t, 0, out.Unrecognized[0].RowIndex)
	assert.Equal(t, "结核分枝杆菌", out.Unrecognized[0].RawLabel)
}

func TestAssemble_InvalidRecordIsDropped(t *testing.T) {
	res := temporal.WeekOf(day("2025-09-01"))
	res.ReportWeek = 0

	out := newAssembler(t).Assemble(context.Background(), entity.Document{ID: "d"}, res, []entity.Candidate{
		candidate(0, "鼻病毒", entity.Float(1), nil),
	}, constants.SourceRules)

	assert.Empty(t, out.Records)
	assert.Len(t, out.Invalid, 1)
}

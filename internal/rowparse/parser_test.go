package rowparse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
	"github.com/joseph-ayodele/surveillance-tracker/internal/entity"
	"github.com/joseph-ayodele/surveillance-tracker/internal/table"
)

var threeColumns = table.Roles{Label: 0, ILI: 1, SARI: 2, Width: 3, FromHeader: true}

func row(i int, cells ...string) entity.RawTableRow {
	return entity.RawTableRow{Index: i, Cells: cells}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		name     string
		cell     string
		want     *float64
		issue    string
		repairs  []string
		decimal  bool
		missingX bool
	}{
		{name: "plain", cell: "6.8", want: entity.Float(6.8), decimal: true},
		{name: "percent sign", cell: "6.8%", want: entity.Float(6.8), decimal: true},
		{name: "full-width percent", cell: "３.７％", want: entity.Float(3.7), decimal: true},
		{name: "integer", cell: "12", want: entity.Float(12)},
		{name: "zero", cell: "0", want: entity.Float(0)},
		{name: "hundred", cell: "100", want: entity.Float(100)},
		{name: "comma decimal", cell: "6,8", want: entity.Float(6.8), repairs: []string{RepairComma}, decimal: true},
		{name: "trailing arrow", cell: "6.8↑", want: entity.Float(6.8), repairs: []string{RepairNoise}, decimal: true},
		{name: "inner space", cell: "6. 8", want: entity.Float(6.8), repairs: []string{RepairSpaces}, decimal: true},
		{name: "ocr letter o", cell: "1O.5", want: entity.Float(10.5), repairs: []string{RepairOCRDigit}, decimal: true},
		{name: "double dot", cell: "6..8", want: entity.Float(6.8), repairs: []string{RepairDots}, decimal: true},
		{name: "empty", cell: "", issue: IssueEmpty},
		{name: "dash", cell: "-", issue: IssueEmpty},
		{name: "em dash", cell: "—", issue: IssueEmpty},
		{name: "text", cell: "未报告", issue: IssueNonNumeric, repairs: []string{RepairNoise}},
		{name: "above range", cell: "150.5", issue: IssueOutOfRange, decimal: true},
		{name: "above range without decimal", cell: "685", issue: IssueOutOfRange, missingX: true},
		{name: "negative", cell: "-1.5", issue: IssueOutOfRange, decimal: true},
		{name: "thousands", cell: "1,234", issue: IssueOutOfRange, repairs: []string{RepairThousands}, missingX: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseRate(tt.cell)
			if tt.want == nil {
				assert.Nil(t, got.Value)
			} else {
				require.NotNil(t, got.Value)
				assert.InDelta(t, *tt.want, *got.Value, 1e-9)
			}
			assert.Equal(t, tt.issue, got.Issue)
			assert.Equal(t, tt.repairs, got.Repairs)
			assert.Equal(t, tt.decimal, got.HasDecimal)
			assert.Equal(t, tt.missingX, got.MissingDecimal)
		})
	}
}

func TestParseRow_LabelAndBothRates(t *testing.T) {
	c, err := NewParser(nil).ParseRow(row(0, "新型冠状病毒", "6.8", "3.7"), threeColumns)
	require.NoError(t, err)

	assert.Equal(t, "新型冠状病毒", c.RawLabel)
	assert.Equal(t, 6.8, *c.ILI)
	assert.Equal(t, 3.7, *c.SARI)
	assert.False(t, c.LowConfidence)
	assert.Empty(t, c.Repairs)
}

func TestParseRow_EmptySARICellIsNull(t *testing.T) {
	c, err := NewParser(nil).ParseRow(row(0, "新型冠状病毒", "6.8", ""), threeColumns)
	require.NoError(t, err)

	assert.Equal(t, 6.8, *c.ILI)
	assert.Nil(t, c.SARI)
	assert.False(t, c.LowConfidence)
}

func TestParseRow_RightAlignsShortRows(t *testing.T) {
	// group header with change columns: label, ILI, ILI change, SARI, SARI change
	roles := table.Roles{Label: 0, ILI: 1, SARI: 3, Width: 5, FromHeader: true}
	p := NewParser(nil)

	c, err := p.ParseRow(row(0, "流感病毒", "1.2", "+0.1", "0.9", "0.0"), roles)
	require.NoError(t, err)
	assert.Equal(t, 1.2, *c.ILI)
	assert.Equal(t, 0.9, *c.SARI)

	// one ILI cell lost to a merge: SARI and its change still line up from the right,
	// the remaining ILI cell sits where no role lands and stays unread
	c, err = p.ParseRow(row(1, "腺病毒", "2.0", "1.1", "-0.3"), roles)
	require.NoError(t, err)
	assert.Nil(t, c.ILI)
	assert.Equal(t, 1.1, *c.SARI)

	// two cells: only the trailing change column survives the alignment, nothing for ILI or SARI
	_, err = p.ParseRow(row(2, "鼻病毒", "0.4"), roles)
	var skip *SkipError
	require.ErrorAs(t, err, &skip)
	assert.Equal(t, SkipNoRates, skip.Reason)
}

func TestParseRow_ExtraLeadingCell(t *testing.T) {
	c, err := NewParser(nil).ParseRow(row(0, "", "呼吸道合胞病毒", "2.1", "1.0"), threeColumns)
	require.NoError(t, err)
	assert.Equal(t, "呼吸道合胞病毒", c.RawLabel)
	assert.Equal(t, 2.1, *c.ILI)
	assert.Equal(t, 1.0, *c.SARI)
}

func TestParseRow_Skips(t *testing.T) {
	tests := []struct {
		name   string
		cells  []string
		reason string
	}{
		{"blank", []string{"", " ", ""}, SkipEmptyRow},
		{"numbers only", []string{"1", "6.8", "3.7"}, SkipNoLabel},
		{"total", []string{"合计", "20.1", "10.2"}, SkipSummary},
		{"repeated header", []string{"病原体", "第36周", "第36周"}, SkipHeader},
		{"week header", []string{"第36周", "6.8", "3.7"}, SkipHeader},
		{"age group", []string{"0-4岁", "6.8", "3.7"}, SkipAgeGroup},
		{"footnote", []string{"①含甲型和乙型", "", ""}, SkipFootnote},
		{"note", []string{"注:数据为初步统计", "", ""}, SkipFootnote},
		{"no rates", []string{"博卡病毒", "-", "-"}, SkipNoRates},
		{"unparseable rates", []string{"博卡病毒", "n/a", "未检测"}, SkipNoRates},
		{"ambiguous drift", []string{"博卡病毒", "上升", "0.3", "0.2"}, SkipAmbiguous},
	}

	p := NewParser(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseRow(row(3, tt.cells...), threeColumns)
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrRowParseSkipped))

			var skip *SkipError
			require.ErrorAs(t, err, &skip)
			assert.Equal(t, tt.reason, skip.Reason)
			assert.Equal(t, 3, skip.RowIndex)
		})
	}
}

func TestParseRow_OutOfRangeIsNullAndFlagged(t *testing.T) {
	c, err := NewParser(nil).ParseRow(row(0, "流感病毒", "685", "3.7"), threeColumns)
	require.NoError(t, err)

	assert.Nil(t, c.ILI)
	assert.Equal(t, 3.7, *c.SARI)
	assert.True(t, c.LowConfidence)
	assert.Contains(t, c.Repairs, "ili:"+IssueOutOfRange)
	assert.Contains(t, c.Repairs, "ili:"+SuspectMagnitude)
}

func TestParseTable_FlagsMagnitudeWithoutCorrecting(t *testing.T) {
	tbl := &table.Table{
		Roles: threeColumns,
		Width: 3,
		Rows: []entity.RawTableRow{
			row(0, "新型冠状病毒", "6.8", "3.7"),
			row(1, "流感病毒", "1.2", "0.9"),
			row(2, "呼吸道合胞病毒", "15", "1.0"),
			row(3, "腺病毒", "2.1", "1.4"),
		},
	}

	res := NewParser(nil).ParseTable(tbl)
	require.Len(t, res.Candidates, 4)
	assert.Equal(t, 1, res.LowConfidence)

	rsv := res.Candidates[2]
	assert.Equal(t, 15.0, *rsv.ILI)
	assert.True(t, rsv.LowConfidence)
	assert.Equal(t, []string{"ili:" + SuspectMagnitude}, rsv.Repairs)

	for _, c := range []entity.Candidate{res.Candidates[0], res.Candidates[1], res.Candidates[3]} {
		assert.False(t, c.LowConfidence, c.RawLabel)
	}
}

func TestParseTable_IntegerColumnIsNotSuspect(t *testing.T) {
	tbl := &table.Table{
		Roles: threeColumns,
		Width: 3,
		Rows: []entity.RawTableRow{
			row(0, "新型冠状病毒", "12", "3"),
			row(1, "流感病毒", "15", "9"),
			row(2, "腺病毒", "2.1", "1.4"),
		},
	}

	res := NewParser(nil).ParseTable(tbl)
	assert.Zero(t, res.LowConfidence)
}

func TestParseTable_CandidatesAreInRange(t *testing.T) {
	tbl := &table.Table{
		Roles: threeColumns,
		Width: 3,
		Rows: []entity.RawTableRow{
			row(0, "新型冠状病毒", "6.8", "3.7"),
			row(1, "合计", "50", "40"),
			row(2, "流感病毒", "101", "-"),
			row(3, "腺病毒", "-5", "0.4"),
			row(4, "鼻病毒", "abc", "7,5"),
			row(5, "肺炎支原体", "", ""),
		},
	}

	res := NewParser(nil).ParseTable(tbl)
	for _, c := range res.Candidates {
		for _, v := range []*float64{c.ILI, c.SARI} {
			if v != nil {
				assert.GreaterOrEqual(t, *v, 0.0)
				assert.LessOrEqual(t, *v, 100.0)
			}
		}
	}
	assert.Equal(t, len(tbl.Rows), len(res.Candidates)+len(res.Skipped))
	assert.Equal(t, map[string]int{SkipSummary: 1, SkipNoRates: 2}, res.SkipCounts())
}

func TestFromValues(t *testing.T) {
	c := FromValues(2, "流感病毒", entity.Float(1.2), entity.Float(120))
	assert.Equal(t, 2, c.RowIndex)
	assert.Equal(t, 1.2, *c.ILI)
	assert.Nil(t, c.SARI)
	assert.True(t, c.LowConfidence)
	assert.Equal(t, []string{"sari:" + IssueOutOfRange}, c.Repairs)

	c = FromValues(0, "腺病毒", nil, entity.Float(0.4))
	assert.Nil(t, c.ILI)
	assert.False(t, c.LowConfidence)
}

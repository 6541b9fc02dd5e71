package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
	"github.com/joseph-ayodele/surveillance-tracker/internal/entity"
	"github.com/joseph-ayodele/surveillance-tracker/internal/utils"
)

// Columns is the fixed header of the persisted dataset.
var Columns = []string{
	"reference_date",
	"target_end_date",
	"report_week",
	"pathogen",
	"ili_percent",
	"sari_percent",
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load reads the dataset at path. A missing file is an empty dataset.
func Load(path string) (*Dataset, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Dataset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	ds, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return ds, nil
}

// Decode parses CSV bytes. A leading UTF-8 BOM is accepted. Rows of a file whose
// header matches Columns exactly keep their fields so Encode reproduces them unchanged.
func Decode(b []byte) (*Dataset, error) {
	b = bytes.TrimPrefix(b, utf8BOM)
	if len(bytes.TrimSpace(b)) == 0 {
		return &Dataset{}, nil
	}

	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse csv: %v", common.ErrInvalidInput, err)
	}

	header := all[0]
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range Columns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", common.ErrInvalidInput, c)
		}
	}
	exact := sameHeader(header)

	ds := &Dataset{Rows: make([]Row, 0, len(all)-1)}
	for n, fields := range all[1:] {
		if isBlank(fields) {
			continue
		}
		get := func(col string) string {
			i := idx[col]
			if i >= len(fields) {
				return ""
			}
			return strings.TrimSpace(fields[i])
		}
		rec, err := decodeRecord(get)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", common.ErrInvalidInput, n+2, err)
		}
		row := Row{Record: rec}
		if exact && len(fields) == len(Columns) {
			row.raw = fields
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

func decodeRecord(get func(string) string) (entity.Record, error) {
	ref, err := utils.ParseYMD(get("reference_date"))
	if err != nil {
		return entity.Record{}, fmt.Errorf("reference_date: %w", err)
	}
	end, err := utils.ParseYMD(get("target_end_date"))
	if err != nil {
		return entity.Record{}, fmt.Errorf("target_end_date: %w", err)
	}
	week, err := parseWeek(get("report_week"))
	if err != nil {
		return entity.Record{}, fmt.Errorf("report_week: %w", err)
	}
	ili, err := parseRate(get("ili_percent"))
	if err != nil {
		return entity.Record{}, fmt.Errorf("ili_percent: %w", err)
	}
	sari, err := parseRate(get("sari_percent"))
	if err != nil {
		return entity.Record{}, fmt.Errorf("sari_percent: %w", err)
	}
	p := get("pathogen")
	if p == "" {
		return entity.Record{}, errors.New("pathogen: empty")
	}
	return entity.Record{
		ReferenceDate: ref,
		TargetEndDate: end,
		ReportWeek:    week,
		Pathogen:      constants.Pathogen(p),
		ILIPercent:    ili,
		SARIPercent:   sari,
	}, nil
}

// parseWeek accepts "36" and the "36.0" a float column writer leaves behind.
func parseWeek(s string) (int, error) {
	if w, err := strconv.Atoi(s); err == nil {
		return w, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}

func parseRate(s string) (*float64, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("not a number: %q", s)
	}
	return &v, nil
}

// Encode writes the header and every row. Loaded rows that were not replaced are
// written from their original fields.
func Encode(ds *Dataset) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return nil, err
	}
	for _, row := range ds.Rows {
		fields := row.raw
		if fields == nil {
			fields = FormatRecord(row.Record)
		}
		if err := w.Write(fields); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FormatRecord renders r in column order. Rates use the shortest decimal form; null is empty.
func FormatRecord(r entity.Record) []string {
	return []string{
		r.ReferenceDate.Format(constants.DateLayout),
		r.TargetEndDate.Format(constants.DateLayout),
		strconv.Itoa(r.ReportWeek),
		string(r.Pathogen),
		formatRate(r.ILIPercent),
		formatRate(r.SARIPercent),
	}
}

func formatRate(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func sameHeader(h []string) bool {
	if len(h) != len(Columns) {
		return false
	}
	for i := range h {
		if h[i] != Columns[i] {
			return false
		}
	}
	return true
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

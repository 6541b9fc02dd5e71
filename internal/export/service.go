package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/batch"
	"github.com/joseph-ayodele/surveillance-tracker/internal/dataset"
	"github.com/joseph-ayodele/surveillance-tracker/internal/utils"
)

const (
	SheetAll   = "Surveillance"
	SheetCovid = "COVID-19"
)

// Options narrows an export. Nil bounds are open.
type Options struct {
	From       *time.Time // inclusive, compared with reference_date
	To         *time.Time // inclusive
	CovidSheet bool       // add a sheet with only 新型冠状病毒 rows
}

// Service is a tiny façade that produces XLSX bytes from a dataset.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// DatasetXLSX returns an XLSX workbook (as bytes) holding the rows of ds inside the window.
func (s *Service) DatasetXLSX(ds *dataset.Dataset, opts Options) ([]byte, error) {
	start := time.Now()

	var fromDate, toDate time.Time
	if opts.From != nil {
		fromDate = utils.DateOnly(*opts.From)
	}
	if opts.To != nil {
		toDate = utils.DateOnly(*opts.To)
	}
	window := &dataset.Dataset{}
	for _, r := range ds.Rows {
		if !fromDate.IsZero() && r.ReferenceDate.Before(fromDate) {
			continue
		}
		if !toDate.IsZero() && r.ReferenceDate.After(toDate) {
			continue
		}
		window.Rows = append(window.Rows, r)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := writeSheet(f, SheetAll, window); err != nil {
		return nil, err
	}
	if opts.CovidSheet {
		if err := writeSheet(f, SheetCovid, window.FilterPathogen(constants.SARSCoV2)); err != nil {
			return nil, err
		}
	}
	if idx, _ := f.GetSheetIndex("Sheet1"); idx != -1 {
		_ = f.DeleteSheet("Sheet1")
	}
	activeIndex, _ := f.GetSheetIndex(SheetAll)
	f.SetActiveSheet(activeIndex)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", window.Len(),
		"covid_sheet", opts.CovidSheet,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, ds *dataset.Dataset) error {
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("xlsx sheet %s: %w", sheet, err)
		}
	}

	for i, h := range dataset.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range ds.Rows {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, r.ReferenceDate.Format(constants.DateLayout))
		write(2, r.TargetEndDate.Format(constants.DateLayout))
		write(3, r.ReportWeek)
		write(4, string(r.Pathogen))
		if r.ILIPercent != nil {
			write(5, *r.ILIPercent)
		}
		if r.SARIPercent != nil {
			write(6, *r.SARIPercent)
		}
		row++
	}

	_ = f.SetColWidth(sheet, "A", "B", 14) // dates
	_ = f.SetColWidth(sheet, "C", "C", 12) // week
	_ = f.SetColWidth(sheet, "D", "D", 20) // pathogen
	_ = f.SetColWidth(sheet, "E", "F", 14) // rates
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	return nil
}

// FileSink writes the workbook next to the dataset after every run.
type FileSink struct {
	Path    string
	Service *Service
	Options Options
}

func (s FileSink) Name() string { return "xlsx" }

func (s FileSink) Deliver(_ context.Context, ds *dataset.Dataset, _ *batch.RunReport) error {
	b, err := s.Service.DatasetXLSX(ds, s.Options)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("xlsx dir: %w", err)
	}
	if err := os.WriteFile(s.Path, b, 0o644); err != nil {
		return fmt.Errorf("xlsx write %s: %w", s.Path, err)
	}
	return nil
}

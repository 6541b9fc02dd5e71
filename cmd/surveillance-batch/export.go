package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/app"
	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
	"github.com/joseph-ayodele/surveillance-tracker/internal/dataset"
	"github.com/joseph-ayodele/surveillance-tracker/internal/export"
)

func newExportCmd() *cobra.Command {
	var (
		datasetPath string
		out         string
		fromStr     string
		toStr       string
		covidSheet  bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the dataset CSV as an XLSX workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := app.LoadConfig()
			if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
				cfg.LogLevel = common.ParseLevel(lvl)
			}
			logger := app.NewLogger(os.Stderr, cfg.LogLevel)

			if datasetPath == "" {
				datasetPath = cfg.Dataset.Path
			}
			if out == "" {
				out = filepath.Join(filepath.Dir(datasetPath), "surveillance.xlsx")
			}
			from, err := parseDateFlag("from", fromStr)
			if err != nil {
				return usageErr(err)
			}
			to, err := parseDateFlag("to", toStr)
			if err != nil {
				return usageErr(err)
			}

			ds, err := dataset.Load(datasetPath)
			if err != nil {
				return fatalErr(err)
			}
			b, err := export.NewService(logger).DatasetXLSX(ds, export.Options{From: from, To: to, CovidSheet: covidSheet})
			if err != nil {
				return fatalErr(err)
			}
			if _, err := dataset.WriteAtomic(out, b); err != nil {
				return fatalErr(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows from %s to %s\n", ds.Len(), datasetPath, out)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&datasetPath, "dataset", "", "dataset CSV path (defaults to DATASET_PATH)")
	fl.StringVarP(&out, "out", "o", "", "output XLSX path (defaults to surveillance.xlsx next to the dataset)")
	fl.StringVar(&fromStr, "from", "", "first reference date, YYYY-MM-DD")
	fl.StringVar(&toStr, "to", "", "last reference date, YYYY-MM-DD")
	fl.BoolVar(&covidSheet, "covid-sheet", true, "add a sheet with only COVID-19 rows")
	return cmd
}

func parseDateFlag(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(constants.DateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid --%s date format, use YYYY-MM-DD: %v", common.ErrInvalidInput, name, err)
	}
	return &t, nil
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/surveillance-tracker/internal/app"
	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
	"github.com/joseph-ayodele/surveillance-tracker/internal/repository"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		runID  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, or the document outcomes of one run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := app.LoadConfig()
			if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
				cfg.LogLevel = common.ParseLevel(lvl)
			}
			logger := app.NewLogger(os.Stderr, cfg.LogLevel)
			ctx := cmd.Context()

			db, err := repository.Open(ctx, cfg.Database, logger)
			if err != nil {
				return fatalErr(err)
			}
			defer db.Close()
			runs := repository.NewRunRepository(db, logger)
			if err := runs.Migrate(ctx); err != nil {
				return fatalErr(err)
			}

			w := cmd.OutOrStdout()
			var out any
			if runID != "" {
				outcomes, err := runs.ListOutcomes(ctx, runID)
				if err != nil {
					return fatalErr(err)
				}
				out = outcomes
				if !asJSON {
					for _, o := range outcomes {
						_, _ = fmt.Fprintf(w, "%-8s %-24s %-10s %3d rows %3d records  %s\n",
							o.Status, o.ErrorKind, o.ReferenceDate, o.RowsLocated, o.RecordsProduced, o.Path)
					}
					return nil
				}
			} else {
				list, err := runs.ListRuns(ctx, limit)
				if err != nil {
					return fatalErr(err)
				}
				out = list
				if !asJSON {
					for _, r := range list {
						_, _ = fmt.Fprintf(w, "%s  %s  %-7s docs=%d ok=%d failed=%d added=%d updated=%d unchanged=%d %s\n",
							r.ID, r.StartedAt.Format("2006-01-02T15:04:05Z07:00"), r.Mode,
							r.Documents, r.Succeeded, r.Failed, r.Added, r.Updated, r.Unchanged, r.ErrorKind)
					}
					return nil
				}
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	fl := cmd.Flags()
	fl.IntVarP(&limit, "limit", "n", 20, "most recent runs to list")
	fl.StringVar(&runID, "run", "", "show the document outcomes of this run id")
	fl.BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

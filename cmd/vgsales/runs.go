package main

import (
	"database/sql"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newRunsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show the training run log",
		RunE: a.run(false, func(cmd *cobra.Command, _ []string) error {
			store, err := a.openDB()
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("database.path is not configured")
			}
			defer store.Close()

			runs, err := store.ListTrainingRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tTRAINED\tROWS\tLINEAR R2\tLINEAR RMSE\tFOREST R2\tFOREST RMSE\tDURATION")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\t%s\t%s\t%s\n",
					r.Version, r.TrainedAt.Format("2006-01-02 15:04"), r.TrainRows, r.HeldOutRows,
					score(r.LinearR2), score(r.LinearRMSE), score(r.ForestR2), score(r.ForestRMSE), r.Duration)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func score(v sql.NullFloat64) string {
	if !v.Valid {
		return "-"
	}
	return fmt.Sprintf("%.4f", v.Float64)
}

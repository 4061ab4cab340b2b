package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTopCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "List the best selling games in the catalog",
		RunE: a.run(false, func(cmd *cobra.Command, _ []string) error {
			catalog, closeFn, err := a.openCatalog(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := catalog.Top(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tNAME\tPLATFORM\tYEAR\tGENRE\tPUBLISHER\tGLOBAL (M)")
			for i, rec := range records {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%.2f\n",
					i+1, rec.Name, rec.Platform, rec.Year, rec.Genre, rec.Publisher, rec.GlobalSales)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of games to list")
	return cmd
}

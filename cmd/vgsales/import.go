package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	var corpusPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load the corpus CSV into the SQLite catalog",
		RunE: a.run(false, func(cmd *cobra.Command, _ []string) error {
			if corpusPath != "" {
				a.cfg.Corpus.Path = corpusPath
			}
			store, err := a.openDB()
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("database.path is not configured")
			}
			defer store.Close()

			res, err := a.loadCorpus()
			if err != nil {
				return err
			}
			n, err := store.ImportGames(cmd.Context(), res.Records)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d games (%d rows rejected)\n", n, res.Stats.Rejected)
			return nil
		}),
	}
	cmd.Flags().StringVar(&corpusPath, "corpus", "", "override corpus.path")
	return cmd
}

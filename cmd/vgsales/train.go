package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vgsales/bundle"
	"vgsales/pipeline"
)

func newTrainCmd(a *app) *cobra.Command {
	var (
		corpusPath string
		seed       int64
		workers    int
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit encoders and both regressors, then publish them as one bundle",
		RunE: a.run(true, func(cmd *cobra.Command, _ []string) error {
			if corpusPath != "" {
				a.cfg.Corpus.Path = corpusPath
			}
			if cmd.Flags().Changed("seed") {
				a.cfg.Training.Seed = seed
			}
			if cmd.Flags().Changed("workers") {
				a.cfg.Training.Workers = workers
			}
			report, err := a.train(cmd.Context())
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		}),
	}
	cmd.Flags().StringVar(&corpusPath, "corpus", "", "override corpus.path")
	cmd.Flags().Int64Var(&seed, "seed", 42, "override training.seed")
	cmd.Flags().IntVar(&workers, "workers", 0, "override training.workers")
	return cmd
}

// train runs one full training cycle and prunes old bundles.
func (a *app) train(ctx context.Context) (*pipeline.TrainReport, error) {
	res, err := a.loadCorpus()
	if err != nil {
		a.metrics.ObserveTrainingFailure()
		return nil, err
	}

	options := []pipeline.TrainerOption{
		pipeline.WithLogger(a.logger.Named("trainer")),
		pipeline.WithMetrics(a.metrics),
	}
	store, err := a.openDB()
	if err != nil {
		a.logger.Warn("training run log disabled", zap.Error(err))
	} else if store != nil {
		defer store.Close()
		options = append(options, pipeline.WithRecorder(store))
	}

	trainer := pipeline.NewTrainer(a.cfg.TrainOptions(), options...)
	_, report, err := trainer.Run(ctx, res.Records, a.cfg.Artifacts.Dir)
	if err != nil {
		return nil, err
	}
	if removed, err := bundle.Prune(a.cfg.Artifacts.Dir, a.cfg.Artifacts.Keep); err != nil {
		a.logger.Warn("prune bundles", zap.Error(err))
	} else if len(removed) > 0 {
		a.logger.Info("pruned bundles", zap.Strings("versions", removed))
	}
	return report, nil
}

func printReport(w io.Writer, r *pipeline.TrainReport) {
	fmt.Fprintf(w, "bundle %s\n", r.Version)
	fmt.Fprintf(w, "  rows: %d (train %d, held out %d)\n", r.Rows, r.TrainRows, r.HeldOutRows)
	fmt.Fprintf(w, "  linear_regression: r2=%.4f rmse=%.4f\n", r.Linear.R2, r.Linear.RMSE)
	fmt.Fprintf(w, "  random_forest:     r2=%.4f rmse=%.4f\n", r.Forest.R2, r.Forest.RMSE)
	fmt.Fprintf(w, "  took %s, written to %s\n", r.Duration.Round(1e6), r.BundleDir)
}

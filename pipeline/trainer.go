// Package pipeline trains, publishes and serves the sales regressors.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"vgsales/bundle"
	"vgsales/corpus"
	"vgsales/encoder"
	"vgsales/metrics"
	"vgsales/ml"
)

// TrainOptions controls one training run.
type TrainOptions struct {
	Seed      int64
	TestRatio float64
	Forest    ml.ForestParams
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Seed:      42,
		TestRatio: ml.DefaultTestRatio,
		Forest:    ml.DefaultForestParams(),
	}
}

// TrainReport summarizes a training run. The held-out scores are for audit
// only and never decide whether the run succeeds.
type TrainReport struct {
	Version     string
	StartedAt   time.Time
	Duration    time.Duration
	Rows        int
	TrainRows   int
	HeldOutRows int
	Linear      ml.Evaluation
	Forest      ml.Evaluation
	BundleDir   string
}

// RunRecorder persists a finished run, e.g. to the training run log.
type RunRecorder interface {
	SaveTrainingRun(ctx context.Context, report TrainReport) error
}

type Trainer struct {
	opts     TrainOptions
	logger   *zap.Logger
	metrics  *metrics.Manager
	recorder RunRecorder
}

type TrainerOption func(*Trainer)

func WithLogger(logger *zap.Logger) TrainerOption {
	return func(t *Trainer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Manager) TrainerOption {
	return func(t *Trainer) { t.metrics = m }
}

func WithRecorder(r RunRecorder) TrainerOption {
	return func(t *Trainer) { t.recorder = r }
}

func NewTrainer(opts TrainOptions, options ...TrainerOption) *Trainer {
	t := &Trainer{opts: opts, logger: zap.NewNop()}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Train is NewTrainer(opts).Train.
func Train(ctx context.Context, records []corpus.Record, opts TrainOptions) (*bundle.Bundle, *TrainReport, error) {
	return NewTrainer(opts).Train(ctx, records)
}

// Train fits the encoders and both regressors on records. Records failing
// validation are dropped first. Nothing is written to disk.
func (t *Trainer) Train(ctx context.Context, records []corpus.Record) (*bundle.Bundle, *TrainReport, error) {
	started := time.Now()
	b, report, err := t.train(ctx, records)
	if err != nil {
		t.metrics.ObserveTrainingFailure()
		return nil, nil, err
	}
	report.StartedAt = started
	report.Duration = time.Since(started)
	return b, report, nil
}

func (t *Trainer) train(ctx context.Context, records []corpus.Record) (*bundle.Bundle, *TrainReport, error) {
	usable := make([]corpus.Record, 0, len(records))
	for _, rec := range records {
		if rec.Validate() != nil || math.IsNaN(rec.GlobalSales) || math.IsInf(rec.GlobalSales, 0) {
			continue
		}
		usable = append(usable, rec)
	}
	if dropped := len(records) - len(usable); dropped > 0 {
		t.logger.Info("dropped unusable records", zap.Int("dropped", dropped))
	}
	if len(usable) == 0 {
		return nil, nil, fmt.Errorf("%w: no usable records", ErrEmptyCorpus)
	}

	encoders, err := encoder.Fit(usable)
	if err != nil {
		return nil, nil, fmt.Errorf("fit encoders: %w", err)
	}
	t.logger.Info("encoders fitted",
		zap.Int("platforms", encoders.Platform.Len()),
		zap.Int("genres", encoders.Genre.Len()),
		zap.Int("publishers", encoders.Publisher.Len()),
	)

	features, err := encoders.TransformAll(usable)
	if err != nil {
		return nil, nil, err
	}
	targets := make([]float64, len(usable))
	for i, rec := range usable {
		targets[i] = rec.GlobalSales
	}

	split, err := ml.SplitDataset(features, targets, t.opts.TestRatio, t.opts.Seed)
	if err != nil {
		if errors.Is(err, ml.ErrTooFewRows) {
			return nil, nil, fmt.Errorf("%w: %v", ErrEmptyCorpus, err)
		}
		return nil, nil, err
	}
	t.logger.Info("dataset split",
		zap.Int("train", len(split.TrainX)),
		zap.Int("held_out", len(split.TestX)),
	)

	linear := ml.NewLinearRegression()
	if err := linear.Train(split.TrainX, split.TrainY); err != nil {
		return nil, nil, fmt.Errorf("train linear regression: %w", err)
	}
	t.logger.Info("linear regression trained", zap.Int("rank", linear.Rank))

	params := t.opts.Forest
	params.Seed = t.opts.Seed
	forest := ml.NewRandomForest(params)
	if err := forest.TrainContext(ctx, split.TrainX, split.TrainY); err != nil {
		return nil, nil, fmt.Errorf("train random forest: %w", err)
	}
	t.logger.Info("random forest trained", zap.Int("trees", len(forest.Trees)))

	report := &TrainReport{
		Rows:        len(usable),
		TrainRows:   len(split.TrainX),
		HeldOutRows: len(split.TestX),
		Linear:      ml.EvaluateModel(linear, split.TestX, split.TestY),
		Forest:      ml.EvaluateModel(forest, split.TestX, split.TestY),
	}
	t.logger.Info("held-out evaluation",
		zap.Float64("linear_r2", report.Linear.R2),
		zap.Float64("linear_rmse", report.Linear.RMSE),
		zap.Float64("forest_r2", report.Forest.R2),
		zap.Float64("forest_rmse", report.Forest.RMSE),
	)

	b := bundle.New(encoders, ml.Pair{Linear: linear, Forest: forest}, bundle.Manifest{
		Seed:        t.opts.Seed,
		TestRatio:   t.opts.TestRatio,
		Estimators:  forest.Params.Estimators,
		TrainRows:   report.TrainRows,
		HeldOutRows: report.HeldOutRows,
	})
	report.Version = b.Version()
	return b, report, nil
}

// Persist publishes b under dir. A failure leaves the current bundle as it was.
func Persist(ctx context.Context, b *bundle.Bundle, dir string) (string, error) {
	return bundle.Publish(ctx, dir, b, nil)
}

// Persist publishes b and, when a recorder is configured, logs the run.
func (t *Trainer) Persist(ctx context.Context, b *bundle.Bundle, report *TrainReport, dir string) error {
	path, err := bundle.Publish(ctx, dir, b, t.logger.Named("bundle"))
	if err != nil {
		t.metrics.ObserveTrainingFailure()
		return err
	}
	t.metrics.ObservePublished(b.Manifest.CreatedAt)
	if report == nil {
		return nil
	}
	report.BundleDir = path
	t.metrics.ObserveTraining(report.Duration, report.TrainRows,
		map[string]float64{ml.TypeLinearRegression: report.Linear.R2, ml.TypeRandomForest: report.Forest.R2},
		map[string]float64{ml.TypeLinearRegression: report.Linear.RMSE, ml.TypeRandomForest: report.Forest.RMSE},
	)
	if t.recorder != nil {
		if err := t.recorder.SaveTrainingRun(ctx, *report); err != nil {
			t.logger.Warn("record training run", zap.String("version", report.Version), zap.Error(err))
		}
	}
	return nil
}

// Run trains on records and publishes the result under dir.
func (t *Trainer) Run(ctx context.Context, records []corpus.Record, dir string) (*bundle.Bundle, *TrainReport, error) {
	b, report, err := t.Train(ctx, records)
	if err != nil {
		return nil, nil, err
	}
	if err := t.Persist(ctx, b, report, dir); err != nil {
		return nil, nil, err
	}
	t.logger.Info("training run complete",
		zap.String("version", report.Version),
		zap.Duration("duration", report.Duration),
	)
	return b, report, nil
}

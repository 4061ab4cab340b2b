package db

import (
	"context"
	"database/sql"
	"time"

	"vgsales/pipeline"
)

// TrainingRun is one row of the training log.
type TrainingRun struct {
	Version     string
	Rows        int
	TrainRows   int
	HeldOutRows int
	LinearR2    sql.NullFloat64
	LinearRMSE  sql.NullFloat64
	ForestR2    sql.NullFloat64
	ForestRMSE  sql.NullFloat64
	Duration    time.Duration
	BundleDir   string
	TrainedAt   time.Time
}

var _ pipeline.RunRecorder = (*DB)(nil)

// SaveTrainingRun implements pipeline.RunRecorder.
func (d *DB) SaveTrainingRun(ctx context.Context, report pipeline.TrainReport) error {
	if d == nil || d.db == nil {
		return ErrNotOpen
	}
	trainedAt := report.StartedAt
	if trainedAt.IsZero() {
		trainedAt = time.Now()
	}
	_, err := d.db.ExecContext(ctx, `
        INSERT OR REPLACE INTO training_log
        (version, rows, train_rows, held_out_rows, linear_r2, linear_rmse, forest_r2, forest_rmse, duration_ms, bundle_dir, trained_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.Version, report.Rows, report.TrainRows, report.HeldOutRows,
		nullable(report.Linear.R2), nullable(report.Linear.RMSE),
		nullable(report.Forest.R2), nullable(report.Forest.RMSE),
		report.Duration.Milliseconds(), report.BundleDir, trainedAt.UTC(),
	)
	return err
}

// ListTrainingRuns returns the newest runs first. limit <= 0 returns all.
func (d *DB) ListTrainingRuns(ctx context.Context, limit int) ([]TrainingRun, error) {
	if d == nil || d.db == nil {
		return nil, ErrNotOpen
	}
	query := `SELECT version, rows, train_rows, held_out_rows, linear_r2, linear_rmse,
        forest_r2, forest_rmse, duration_ms, bundle_dir, trained_at
        FROM training_log ORDER BY trained_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]TrainingRun, 0)
	for rows.Next() {
		var (
			run        TrainingRun
			durationMs int64
			bundleDir  sql.NullString
		)
		if err := rows.Scan(&run.Version, &run.Rows, &run.TrainRows, &run.HeldOutRows,
			&run.LinearR2, &run.LinearRMSE, &run.ForestR2, &run.ForestRMSE,
			&durationMs, &bundleDir, &run.TrainedAt); err != nil {
			return nil, err
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		run.BundleDir = bundleDir.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

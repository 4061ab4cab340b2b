package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"vgsales/corpus"
)

var _ corpus.Source = (*DB)(nil)

// ImportGames replaces the catalog with records, keeping their file order.
func (d *DB) ImportGames(ctx context.Context, records []corpus.Record) (int, error) {
	if d == nil || d.db == nil {
		return 0, ErrNotOpen
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM games`); err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO games (position, name, platform, year, genre, publisher, global_sales)
        VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx, i, rec.Name, rec.Platform, rec.Year, rec.Genre, rec.Publisher, rec.GlobalSales); err != nil {
			return 0, fmt.Errorf("insert %q failed: %w", rec.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	d.logger.Info("games imported", zap.Int("count", len(records)))
	return len(records), nil
}

// LookupName returns the first imported record with name.
func (d *DB) LookupName(ctx context.Context, name string) (corpus.Record, bool, error) {
	if d == nil || d.db == nil {
		return corpus.Record{}, false, ErrNotOpen
	}
	row := d.db.QueryRowContext(ctx, `
        SELECT name, platform, year, genre, publisher, global_sales
        FROM games WHERE name = ? ORDER BY position LIMIT 1`, name)
	var rec corpus.Record
	err := row.Scan(&rec.Name, &rec.Platform, &rec.Year, &rec.Genre, &rec.Publisher, &rec.GlobalSales)
	if errors.Is(err, sql.ErrNoRows) {
		return corpus.Record{}, false, nil
	}
	if err != nil {
		return corpus.Record{}, false, err
	}
	return rec, true, nil
}

// TopSellers lists games by descending global sales; ties keep file order.
func (d *DB) TopSellers(ctx context.Context, limit int) ([]corpus.Record, error) {
	if d == nil || d.db == nil {
		return nil, ErrNotOpen
	}
	query := `SELECT name, platform, year, genre, publisher, global_sales
        FROM games ORDER BY global_sales DESC, position`
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

	out := make([]corpus.Record, 0)
	for rows.Next() {
		var rec corpus.Record
		if err := rows.Scan(&rec.Name, &rec.Platform, &rec.Year, &rec.Genre, &rec.Publisher, &rec.GlobalSales); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (d *DB) CountGames(ctx context.Context) (int, error) {
	if d == nil || d.db == nil {
		return 0, ErrNotOpen
	}
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&n)
	return n, err
}

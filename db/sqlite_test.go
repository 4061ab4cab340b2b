package db

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vgsales/corpus"
	"vgsales/ml"
	"vgsales/pipeline"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "data", "vgsales.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

var games = []corpus.Record{
	{Name: "Wii Sports", Platform: "Wii", Genre: "Sports", Publisher: "Nintendo", Year: 2006, GlobalSales: 82.74},
	{Name: "Super Mario Bros.", Platform: "NES", Genre: "Platform", Publisher: "Nintendo", Year: 1985, GlobalSales: 40.24},
	{Name: "Tetris", Platform: "GB", Genre: "Puzzle", Publisher: "Nintendo", Year: 1989, GlobalSales: 30.26},
	{Name: "Super Mario Bros.", Platform: "GB", Genre: "Platform", Publisher: "Nintendo", Year: 1999, GlobalSales: 5.07},
}

func TestImportAndLookup(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	n, err := d.ImportGames(ctx, games)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	rec, ok, err := d.LookupName(ctx, "Super Mario Bros.")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, games[1], rec)

	_, ok, err = d.LookupName(ctx, "Missing Game")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestImportReplacesCatalog(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	_, err := d.ImportGames(ctx, games)
	require.NoError(t, err)
	_, err = d.ImportGames(ctx, games[:2])
	require.NoError(t, err)

	count, err := d.CountGames(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestTopSellers(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	_, err := d.ImportGames(ctx, games)
	require.NoError(t, err)

	top, err := d.TopSellers(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Wii Sports", top[0].Name)
	assert.Equal(t, "Super Mario Bros.", top[1].Name)

	all, err := d.TopSellers(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestCatalogOverDB(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	_, err := d.ImportGames(ctx, games)
	require.NoError(t, err)

	catalog, err := corpus.NewCatalog(d, 8, nil)
	require.NoError(t, err)
	rec, err := catalog.Lookup(ctx, "  Tetris ")
	require.NoError(t, err)
	assert.Equal(t, 30.26, rec.GlobalSales)

	_, err = catalog.Lookup(ctx, "Nope")
	require.ErrorIs(t, err, corpus.ErrGameNotFound)
}

func TestTrainingRuns(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, d.SaveTrainingRun(ctx, pipeline.TrainReport{
		Version:     "20240501T120000Z-aaaaaaaa",
		StartedAt:   base,
		Duration:    1500 * time.Millisecond,
		Rows:        37,
		TrainRows:   29,
		HeldOutRows: 8,
		Linear:      ml.Evaluation{R2: 0.12, RMSE: 14.2},
		Forest:      ml.Evaluation{R2: math.NaN(), RMSE: 9.8},
	}))
	require.NoError(t, d.SaveTrainingRun(ctx, pipeline.TrainReport{
		Version:   "20240502T120000Z-bbbbbbbb",
		StartedAt: base.Add(24 * time.Hour),
		Rows:      40,
		TrainRows: 32,
		Linear:    ml.Evaluation{R2: 0.2, RMSE: 10},
		Forest:    ml.Evaluation{R2: 0.5, RMSE: 8},
	}))

	runs, err := d.ListTrainingRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "20240502T120000Z-bbbbbbbb", runs[0].Version)

	older := runs[1]
	assert.Equal(t, 29, older.TrainRows)
	assert.Equal(t, 1500*time.Millisecond, older.Duration)
	assert.True(t, older.LinearR2.Valid)
	assert.InDelta(t, 0.12, older.LinearR2.Float64, 1e-12)
	assert.False(t, older.ForestR2.Valid)

	latest, err := d.ListTrainingRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, latest, 1)
}

func TestNilDB(t *testing.T) {
	var d *DB
	_, err := d.ListTrainingRuns(context.Background(), 0)
	require.ErrorIs(t, err, ErrNotOpen)
	assert.NoError(t, d.Close())
}

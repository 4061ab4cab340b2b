package pipeline

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vgsales/bundle"
	"vgsales/corpus"
	"vgsales/encoder"
)

func loadFixture(t *testing.T) []corpus.Record {
	t.Helper()
	res, err := corpus.Load(filepath.Join("testdata", "vgsales.csv"), corpus.EncodingUTF8, nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 37)
	return res.Records
}

func lookup(t *testing.T, records []corpus.Record, name string) corpus.Record {
	t.Helper()
	rec, ok, err := corpus.NewMemorySource(records).LookupName(context.Background(), name)
	require.NoError(t, err)
	require.True(t, ok, "no record named %q", name)
	return rec
}

func testOptions() TrainOptions {
	opts := DefaultTrainOptions()
	opts.Forest.Workers = 4
	return opts
}

func TestSuperMarioBrosScenario(t *testing.T) {
	records := loadFixture(t)
	dir := t.TempDir()

	b, report, err := Train(context.Background(), records, testOptions())
	require.NoError(t, err)
	assert.Equal(t, 37, report.Rows)
	assert.Equal(t, 8, report.HeldOutRows)
	assert.Equal(t, 29, report.TrainRows)
	assert.Len(t, b.Models.Forest.Trees, 100)

	_, err = Persist(context.Background(), b, dir)
	require.NoError(t, err)

	pctx, err := Open(dir)
	require.NoError(t, err)

	mario := lookup(t, records, "Super Mario Bros.")
	p, err := pctx.Predict(mario)
	require.NoError(t, err)
	assert.Equal(t, "Super Mario Bros.", p.Name)
	assert.Equal(t, "NES", p.Platform)
	assert.Equal(t, "Platform", p.Genre)
	assert.Equal(t, "Nintendo", p.Publisher)
	assert.Equal(t, 1985, p.Year)
	assert.Equal(t, 40.24, p.ActualSales)
	assert.False(t, math.IsNaN(p.LinearEstimate))
	assert.False(t, math.IsNaN(p.ForestEstimate))
	assert.Equal(t, p.LinearEstimate, math.Round(p.LinearEstimate*100)/100)
	assert.Equal(t, b.Version(), p.Version)

	mario.Publisher = "UnknownCo"
	_, err = pctx.Predict(mario)
	require.Error(t, err)
	assert.True(t, errors.Is(err, encoder.ErrUnknownCategory))
	var unknown *encoder.UnknownCategoryError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "Publisher", unknown.Feature)
	assert.Equal(t, "UnknownCo", unknown.Value)
}

func TestTrainingIsDeterministic(t *testing.T) {
	records := loadFixture(t)

	optsA := testOptions()
	optsA.Forest.Workers = 1
	a, _, err := Train(context.Background(), records, optsA)
	require.NoError(t, err)
	b, _, err := Train(context.Background(), records, testOptions())
	require.NoError(t, err)

	assert.Equal(t, a.Models.Linear.Coefficients, b.Models.Linear.Coefficients)
	assert.Equal(t, a.Models.Forest.Trees, b.Models.Forest.Trees)
	for _, rec := range records {
		pa, err := NewContext(a).Predict(rec)
		require.NoError(t, err)
		pb, err := NewContext(b).Predict(rec)
		require.NoError(t, err)
		assert.Equal(t, pa.LinearEstimate, pb.LinearEstimate, rec.Name)
		assert.Equal(t, pa.ForestEstimate, pb.ForestEstimate, rec.Name)
	}
}

func TestTrainServeSymmetry(t *testing.T) {
	records := loadFixture(t)
	b, _, err := Train(context.Background(), records, testOptions())
	require.NoError(t, err)

	matrix, err := b.Encoders.TransformAll(records)
	require.NoError(t, err)
	for i, rec := range records {
		vec, err := b.Encoders.Transform(rec)
		require.NoError(t, err)
		assert.Equal(t, matrix[i], vec.Slice())
		assert.Len(t, vec, encoder.VectorWidth)
	}
}

func TestReloadedBundlePredictsIdentically(t *testing.T) {
	records := loadFixture(t)
	dir := t.TempDir()
	b, _, err := Train(context.Background(), records, testOptions())
	require.NoError(t, err)
	_, err = Persist(context.Background(), b, dir)
	require.NoError(t, err)

	fresh := NewContext(b)
	loaded, err := Open(dir)
	require.NoError(t, err)
	for _, rec := range records {
		want, err := fresh.Predict(rec)
		require.NoError(t, err)
		got, err := loaded.Predict(rec)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestEmptyCorpusLeavesPreviousBundle(t *testing.T) {
	records := loadFixture(t)
	dir := t.TempDir()
	first, _, err := Train(context.Background(), records, testOptions())
	require.NoError(t, err)
	_, err = Persist(context.Background(), first, dir)
	require.NoError(t, err)

	trainer := NewTrainer(testOptions())
	_, _, err = trainer.Run(context.Background(), []corpus.Record{
		{Name: "No Year", Platform: "PS2", Genre: "Sports", Publisher: "Electronic Arts"},
		{Name: "No Publisher", Platform: "PS2", Genre: "Fighting", Publisher: "N/A", Year: 2005},
	}, dir)
	require.ErrorIs(t, err, ErrEmptyCorpus)

	current, err := bundle.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, first.Version(), current.Version())
	versions, err := bundle.Versions(dir)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestEmptyCorpusWithoutPriorBundle(t *testing.T) {
	dir := t.TempDir()
	_, _, err := NewTrainer(testOptions()).Run(context.Background(), nil, dir)
	require.ErrorIs(t, err, ErrEmptyCorpus)
	assert.False(t, bundle.Exists(dir))
}

func TestSingleRecordIsTooSmall(t *testing.T) {
	_, _, err := Train(context.Background(), []corpus.Record{
		{Name: "Solo", Platform: "NES", Genre: "Platform", Publisher: "Nintendo", Year: 1985, GlobalSales: 40.24},
	}, testOptions())
	require.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestPredictMalformedRecord(t *testing.T) {
	b, _, err := Train(context.Background(), loadFixture(t), testOptions())
	require.NoError(t, err)

	_, err = NewContext(b).Predict(corpus.Record{Platform: "NES", Genre: "Platform", Publisher: "Nintendo"})
	require.ErrorIs(t, err, corpus.ErrMalformedRecord)
}

func TestContextWithoutBundle(t *testing.T) {
	var c *Context
	_, err := c.Predict(corpus.Record{Platform: "NES", Genre: "Platform", Publisher: "Nintendo", Year: 1985})
	require.ErrorIs(t, err, ErrModelsUnavailable)

	_, err = Open(t.TempDir())
	require.ErrorIs(t, err, bundle.ErrArtifactMissing)
}

type fakeRecorder struct {
	mu      sync.Mutex
	reports []TrainReport
}

func (f *fakeRecorder) SaveTrainingRun(_ context.Context, r TrainReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return nil
}

func TestRunRecordsTrainingRun(t *testing.T) {
	rec := &fakeRecorder{}
	dir := t.TempDir()
	b, report, err := NewTrainer(testOptions(), WithRecorder(rec)).Run(context.Background(), loadFixture(t), dir)
	require.NoError(t, err)

	require.Len(t, rec.reports, 1)
	assert.Equal(t, b.Version(), rec.reports[0].Version)
	assert.Equal(t, filepath.Join(dir, bundle.BundlesDir, b.Version()), report.BundleDir)
	assert.Positive(t, report.Duration)
}

func TestTrainCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Train(ctx, loadFixture(t), testOptions())
	require.ErrorIs(t, err, context.Canceled)
}

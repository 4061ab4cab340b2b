package ml

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"runtime"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
)

const DefaultEstimators = 100

// ForestParams configures a RandomForest.
type ForestParams struct {
	Estimators int        `json:"estimators" yaml:"estimators"`
	Seed       int64      `json:"seed" yaml:"seed"`
	Bootstrap  bool       `json:"bootstrap" yaml:"bootstrap"`
	Tree       TreeParams `json:"tree" yaml:"tree"`
	// Workers bounds parallel tree fitting; it never affects the result.
	Workers int `json:"-" yaml:"workers"`
}

func DefaultForestParams() ForestParams {
	return ForestParams{
		Estimators: DefaultEstimators,
		Seed:       42,
		Bootstrap:  true,
	}
}

// RandomForest averages independently grown regression trees, each fitted on
// its own bootstrap sample.
type RandomForest struct {
	Params ForestParams      `json:"params"`
	Trees  []*RegressionTree `json:"trees"`
}

func NewRandomForest(params ForestParams) *RandomForest {
	return &RandomForest{Params: params}
}

func (rf *RandomForest) Name() string { return TypeRandomForest }

func (rf *RandomForest) Train(features [][]float64, targets []float64) error {
	return rf.TrainContext(context.Background(), features, targets)
}

// TrainContext fits the forest. Per-tree seeds are drawn up front from the
// forest seed, so the fitted trees are identical whatever the worker count.
func (rf *RandomForest) TrainContext(ctx context.Context, features [][]float64, targets []float64) error {
	if _, err := validateTraining(features, targets); err != nil {
		return err
	}
	estimators := rf.Params.Estimators
	if estimators <= 0 {
		estimators = DefaultEstimators
		rf.Params.Estimators = estimators
	}
	workers := rf.Params.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	master := rand.New(rand.NewSource(rf.Params.Seed))
	seeds := make([]int64, estimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]*RegressionTree, estimators)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := range trees {
		i := i
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seeds[i]))
			rows := rf.sampleRows(len(features), rng)
			tree := NewRegressionTree(rf.Params.Tree)
			if err := tree.fit(features, targets, rows, rng); err != nil {
				return fmt.Errorf("tree %d: %w", i, err)
			}
			trees[i] = tree
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	rf.Trees = trees
	return nil
}

func (rf *RandomForest) sampleRows(n int, rng *rand.Rand) []int {
	rows := make([]int, n)
	if !rf.Params.Bootstrap {
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	for i := range rows {
		rows[i] = rng.Intn(n)
	}
	return rows
}

func (rf *RandomForest) Predict(features []float64) (float64, error) {
	if len(rf.Trees) == 0 {
		return 0, ErrNotTrained
	}
	sum := 0.0
	for i, tree := range rf.Trees {
		value, err := tree.Predict(features)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		sum += value
	}
	return sum / float64(len(rf.Trees)), nil
}

func (rf *RandomForest) Save(path string) error {
	if len(rf.Trees) == 0 {
		return ErrNotTrained
	}
	payload, err := json.Marshal(rf)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (rf *RandomForest) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded RandomForest
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}
	if len(loaded.Trees) == 0 {
		return fmt.Errorf("random forest %s: %w", path, ErrNotTrained)
	}
	for i, tree := range loaded.Trees {
		if tree == nil || len(tree.Nodes) == 0 {
			return fmt.Errorf("random forest %s: tree %d: %w", path, i, ErrNotTrained)
		}
	}
	*rf = loaded
	return nil
}

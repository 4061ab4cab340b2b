package ml

import (
	"fmt"
	"math"
	"math/rand"
)

const DefaultTestRatio = 0.2

// Split is a seeded train/held-out partition of a feature matrix.
type Split struct {
	TrainX   [][]float64
	TrainY   []float64
	TestX    [][]float64
	TestY    []float64
	TrainIdx []int
	TestIdx  []int
}

// SplitDataset shuffles row indices with the given seed and holds out
// ceil(testRatio*n) rows. The same seed and input always produce the same
// partition.
func SplitDataset(features [][]float64, targets []float64, testRatio float64, seed int64) (*Split, error) {
	if len(features) != len(targets) {
		return nil, ErrSizeMismatch
	}
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = DefaultTestRatio
	}
	n := len(features)
	testSize := int(math.Ceil(float64(n) * testRatio))
	trainSize := n - testSize
	if trainSize <= 0 {
		return nil, fmt.Errorf("%w: %d rows, %d held out", ErrTooFewRows, n, testSize)
	}

	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(n)

	split := &Split{
		TrainX:   make([][]float64, 0, trainSize),
		TrainY:   make([]float64, 0, trainSize),
		TestX:    make([][]float64, 0, testSize),
		TestY:    make([]float64, 0, testSize),
		TrainIdx: make([]int, 0, trainSize),
		TestIdx:  make([]int, 0, testSize),
	}
	for i, idx := range indices {
		if i < trainSize {
			split.TrainX = append(split.TrainX, features[idx])
			split.TrainY = append(split.TrainY, targets[idx])
			split.TrainIdx = append(split.TrainIdx, idx)
		} else {
			split.TestX = append(split.TestX, features[idx])
			split.TestY = append(split.TestY, targets[idx])
			split.TestIdx = append(split.TestIdx, idx)
		}
	}
	return split, nil
}

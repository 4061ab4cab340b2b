package ml

import (
	"errors"
	"math/rand"
	"os"
	"sort"

	"github.com/goccy/go-json"
)

// TreeParams controls how a regression tree grows. Zero values mean
// unlimited depth, a minimum split size of 2, a minimum leaf size of 1 and all
// features considered at every split.
type TreeParams struct {
	MaxDepth        int `json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit int `json:"min_samples_split" yaml:"min_samples_split"`
	MinSamplesLeaf  int `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	MaxFeatures     int `json:"max_features" yaml:"max_features"`
}

func (p TreeParams) withDefaults(width int) TreeParams {
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	if p.MaxFeatures <= 0 || p.MaxFeatures > width {
		p.MaxFeatures = width
	}
	return p
}

// RegressionTree is a CART regression tree stored as a flat node array.
// Node 0 is the root; children are absolute indices into Nodes.
type RegressionTree struct {
	Nodes  []TreeNode `json:"nodes"`
	Width  int        `json:"width"`
	params TreeParams
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	Samples    int     `json:"samples"`
	IsLeaf     bool    `json:"is_leaf"`
}

func NewRegressionTree(params TreeParams) *RegressionTree {
	return &RegressionTree{params: params}
}

func (dt *RegressionTree) Name() string { return "regression_tree" }

func (dt *RegressionTree) Train(features [][]float64, targets []float64) error {
	rows := make([]int, len(features))
	for i := range rows {
		rows[i] = i
	}
	return dt.fit(features, targets, rows, rand.New(rand.NewSource(0)))
}

// fit grows the tree over the given row indices. Indices may repeat, which is
// how bootstrap samples are weighted.
func (dt *RegressionTree) fit(features [][]float64, targets []float64, rows []int, rng *rand.Rand) error {
	width, err := validateTraining(features, targets)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrEmptyTraining
	}
	dt.Width = width
	dt.params = dt.params.withDefaults(width)
	dt.Nodes = dt.Nodes[:0]

	g := &grower{
		features: features,
		targets:  targets,
		params:   dt.params,
		rng:      rng,
		order:    make([]int, width),
	}
	for i := range g.order {
		g.order[i] = i
	}
	g.grow(dt, rows, 0)
	return nil
}

func (dt *RegressionTree) Predict(features []float64) (float64, error) {
	if len(dt.Nodes) == 0 {
		return 0, ErrNotTrained
	}
	if len(features) != dt.Width {
		return 0, ErrFeatureMismatch
	}
	idx := 0
	for {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx <= 0 || idx >= len(dt.Nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
}

// Depth returns the number of edges on the longest root to leaf path.
func (dt *RegressionTree) Depth() int {
	if len(dt.Nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return 0
		}
		return 1 + max(walk(node.LeftChild), walk(node.RightChild))
	}
	return walk(0)
}

func (dt *RegressionTree) Save(path string) error {
	if len(dt.Nodes) == 0 {
		return ErrNotTrained
	}
	payload, err := json.Marshal(dt)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (dt *RegressionTree) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded RegressionTree
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}
	if len(loaded.Nodes) == 0 {
		return ErrNotTrained
	}
	*dt = loaded
	return nil
}

type grower struct {
	features [][]float64
	targets  []float64
	params   TreeParams
	rng      *rand.Rand
	order    []int
}

func (g *grower) grow(dt *RegressionTree, rows []int, depth int) int {
	nodeIdx := len(dt.Nodes)
	mean, constant := g.summarize(rows)
	dt.Nodes = append(dt.Nodes, TreeNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Value:      mean,
		Samples:    len(rows),
		IsLeaf:     true,
	})

	if constant || len(rows) < g.params.MinSamplesSplit {
		return nodeIdx
	}
	if g.params.MaxDepth > 0 && depth >= g.params.MaxDepth {
		return nodeIdx
	}

	feature, threshold, ok := g.bestSplit(rows)
	if !ok {
		return nodeIdx
	}
	leftRows, rightRows := partition(g.features, rows, feature, threshold)
	if len(leftRows) == 0 || len(rightRows) == 0 {
		return nodeIdx
	}

	left := g.grow(dt, leftRows, depth+1)
	right := g.grow(dt, rightRows, depth+1)
	dt.Nodes[nodeIdx] = TreeNode{
		FeatureIdx: feature,
		Threshold:  threshold,
		LeftChild:  left,
		RightChild: right,
		Value:      mean,
		Samples:    len(rows),
		IsLeaf:     false,
	}
	return nodeIdx
}

func (g *grower) summarize(rows []int) (mean float64, constant bool) {
	first := g.targets[rows[0]]
	constant = true
	sum := 0.0
	for _, r := range rows {
		y := g.targets[r]
		sum += y
		if y != first {
			constant = false
		}
	}
	return sum / float64(len(rows)), constant
}

// bestSplit maximizes sumL^2/nL + sumR^2/nR, which is the same as minimizing
// the children's summed squared error. Thresholds sit halfway between
// consecutive distinct values. Ties keep the first candidate found.
func (g *grower) bestSplit(rows []int) (int, float64, bool) {
	candidates := g.order
	if g.params.MaxFeatures < len(g.order) {
		g.rng.Shuffle(len(g.order), func(i, j int) {
			g.order[i], g.order[j] = g.order[j], g.order[i]
		})
		candidates = g.order[:g.params.MaxFeatures]
	}

	total := 0.0
	for _, r := range rows {
		total += g.targets[r]
	}
	n := len(rows)
	minLeaf := g.params.MinSamplesLeaf

	bestFeature := -1
	bestThreshold := 0.0
	bestScore := total * total / float64(n)
	found := false

	sorted := make([]int, n)
	for _, feature := range candidates {
		copy(sorted, rows)
		sort.SliceStable(sorted, func(a, b int) bool {
			return g.features[sorted[a]][feature] < g.features[sorted[b]][feature]
		})

		left := 0.0
		for i := 0; i < n-1; i++ {
			left += g.targets[sorted[i]]
			current := g.features[sorted[i]][feature]
			next := g.features[sorted[i+1]][feature]
			if current == next {
				continue
			}
			nl := i + 1
			nr := n - nl
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			right := total - left
			score := left*left/float64(nl) + right*right/float64(nr)
			if !found || score > bestScore {
				bestScore = score
				bestFeature = feature
				bestThreshold = current + (next-current)/2
				found = true
			}
		}
	}
	if !found {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func partition(features [][]float64, rows []int, feature int, threshold float64) ([]int, []int) {
	left := make([]int, 0, len(rows)/2)
	right := make([]int, 0, len(rows)/2)
	for _, r := range rows {
		if features[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return left, right
}

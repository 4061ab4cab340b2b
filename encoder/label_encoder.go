package encoder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/goccy/go-json"

	"vgsales/corpus"
)

// LabelEncoder maps the distinct values of one categorical feature to dense
// codes 0..k-1. Codes follow byte-wise sorted order of the values, so fitting
// a shuffled copy of the same corpus yields the same mapping.
type LabelEncoder struct {
	feature string
	classes []string
	index   map[string]int
}

type labelEncoderJSON struct {
	Feature string   `json:"feature"`
	Classes []string `json:"classes"`
}

// FitLabelEncoder builds an encoder over values. Values are normalized with
// corpus.NormalizeCategory first; null cells are ignored.
func FitLabelEncoder(feature string, values []string) (*LabelEncoder, error) {
	distinct := make(map[string]struct{}, len(values))
	for _, v := range values {
		if corpus.IsNull(v) {
			continue
		}
		distinct[corpus.NormalizeCategory(v)] = struct{}{}
	}
	if len(distinct) == 0 {
		return nil, fmt.Errorf("%s: %w", feature, ErrEmptyFeature)
	}
	classes := make([]string, 0, len(distinct))
	for v := range distinct {
		classes = append(classes, v)
	}
	sort.Strings(classes)
	return newLabelEncoder(feature, classes), nil
}

func newLabelEncoder(feature string, classes []string) *LabelEncoder {
	index := make(map[string]int, len(classes))
	for i, v := range classes {
		index[v] = i
	}
	return &LabelEncoder{feature: feature, classes: classes, index: index}
}

func (e *LabelEncoder) Feature() string { return e.feature }

func (e *LabelEncoder) Len() int { return len(e.classes) }

// Classes returns a copy of the known values in code order.
func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.classes...)
}

// Code looks value up without ever extending the mapping.
func (e *LabelEncoder) Code(value string) (int, error) {
	key := corpus.NormalizeCategory(value)
	code, ok := e.index[key]
	if !ok {
		return -1, &UnknownCategoryError{Feature: e.feature, Value: key}
	}
	return code, nil
}

// Value is the inverse of Code.
func (e *LabelEncoder) Value(code int) (string, bool) {
	if code < 0 || code >= len(e.classes) {
		return "", false
	}
	return e.classes[code], true
}

func (e *LabelEncoder) MarshalJSON() ([]byte, error) {
	return json.Marshal(labelEncoderJSON{Feature: e.feature, Classes: e.classes})
}

func (e *LabelEncoder) UnmarshalJSON(data []byte) error {
	var raw labelEncoderJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Feature == "" || len(raw.Classes) == 0 {
		return fmt.Errorf("%w: empty feature or classes", ErrInvalidEncoder)
	}
	for i := 1; i < len(raw.Classes); i++ {
		if raw.Classes[i-1] >= raw.Classes[i] {
			return fmt.Errorf("%w: %s classes not sorted and unique", ErrInvalidEncoder, raw.Feature)
		}
	}
	*e = *newLabelEncoder(raw.Feature, raw.Classes)
	return nil
}

func (e *LabelEncoder) Save(path string) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// LoadLabelEncoder reads an encoder written by Save. Absent or unreadable
// files are reported as ErrArtifactMissing.
func LoadLabelEncoder(path string) (*LabelEncoder, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrArtifactMissing, path, err)
	}
	e := &LabelEncoder{}
	if err := json.Unmarshal(payload, e); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArtifactMissing, path, err)
	}
	return e, nil
}

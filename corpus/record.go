// Package corpus reads historical sales records and filters them down to rows
// that can be encoded.
package corpus

import (
	"math"
	"strings"

	"github.com/spf13/cast"
	"golang.org/x/text/unicode/norm"
)

// Column names of the sales CSV.
const (
	ColumnName        = "Name"
	ColumnPlatform    = "Platform"
	ColumnYear        = "Year"
	ColumnGenre       = "Genre"
	ColumnPublisher   = "Publisher"
	ColumnGlobalSales = "Global_Sales"
)

// RequiredColumns must all be present in a corpus header.
var RequiredColumns = []string{
	ColumnName,
	ColumnPlatform,
	ColumnYear,
	ColumnGenre,
	ColumnPublisher,
	ColumnGlobalSales,
}

// Record is one fully populated sales row.
type Record struct {
	Name        string  `json:"name"`
	Platform    string  `json:"platform"`
	Genre       string  `json:"genre"`
	Publisher   string  `json:"publisher"`
	Year        int     `json:"year"`
	GlobalSales float64 `json:"global_sales"`
}

// nullTokens are the spellings treated as a missing cell. Matching is case
// sensitive: "Na" is a value, not a null.
var nullTokens = map[string]struct{}{
	"":     {},
	"N/A":  {},
	"NA":   {},
	"NaN":  {},
	"nan":  {},
	"null": {},
}

// MaxYear bounds release years accepted by ParseYear.
const MaxYear = 9999

// IsNull reports whether a raw cell counts as missing.
func IsNull(value string) bool {
	_, ok := nullTokens[strings.TrimSpace(value)]
	return ok
}

// NormalizeCategory trims surrounding whitespace and applies NFC so that the
// same title typed two ways maps to one category.
func NormalizeCategory(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}

// ParseYear accepts integral years, including float spellings such as
// "2006.0".
func ParseYear(value string) (int, error) {
	if IsNull(value) {
		return 0, &MalformedRecordError{Field: ColumnYear, Reason: "is missing"}
	}
	raw := strings.TrimSpace(value)
	f, err := cast.ToFloat64E(raw)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &MalformedRecordError{Field: ColumnYear, Value: raw, Reason: "is not a number"}
	}
	if f != math.Trunc(f) {
		return 0, &MalformedRecordError{Field: ColumnYear, Value: raw, Reason: "is not an integer"}
	}
	if f <= 0 {
		return 0, &MalformedRecordError{Field: ColumnYear, Value: raw, Reason: "must be positive"}
	}
	if f > MaxYear {
		return 0, &MalformedRecordError{Field: ColumnYear, Value: raw, Reason: "is out of range"}
	}
	return int(f), nil
}

// ParseSales parses a non-negative sales figure in millions of units.
func ParseSales(value string) (float64, error) {
	if IsNull(value) {
		return 0, &MalformedRecordError{Field: ColumnGlobalSales, Reason: "is missing"}
	}
	raw := strings.TrimSpace(value)
	f, err := cast.ToFloat64E(raw)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &MalformedRecordError{Field: ColumnGlobalSales, Value: raw, Reason: "is not a number"}
	}
	if f < 0 {
		return 0, &MalformedRecordError{Field: ColumnGlobalSales, Value: raw, Reason: "must not be negative"}
	}
	return f, nil
}

// ParseRecord builds a Record from named cells. Every feature and the target
// must be present.
func ParseRecord(cells map[string]string) (Record, error) {
	rec := Record{Name: strings.TrimSpace(cells[ColumnName])}
	for _, field := range []struct {
		column string
		dst    *string
	}{
		{ColumnPlatform, &rec.Platform},
		{ColumnGenre, &rec.Genre},
		{ColumnPublisher, &rec.Publisher},
	} {
		value := cells[field.column]
		if IsNull(value) {
			return Record{}, &MalformedRecordError{Field: field.column, Reason: "is missing"}
		}
		*field.dst = NormalizeCategory(value)
	}

	year, err := ParseYear(cells[ColumnYear])
	if err != nil {
		return Record{}, err
	}
	rec.Year = year

	sales, err := ParseSales(cells[ColumnGlobalSales])
	if err != nil {
		return Record{}, err
	}
	rec.GlobalSales = sales
	return rec, nil
}

// Validate checks a record built outside of ParseRecord, such as one typed on
// the command line.
func (r Record) Validate() error {
	if IsNull(r.Platform) {
		return &MalformedRecordError{Field: ColumnPlatform, Reason: "is missing"}
	}
	if IsNull(r.Genre) {
		return &MalformedRecordError{Field: ColumnGenre, Reason: "is missing"}
	}
	if IsNull(r.Publisher) {
		return &MalformedRecordError{Field: ColumnPublisher, Reason: "is missing"}
	}
	if r.Year <= 0 {
		return &MalformedRecordError{Field: ColumnYear, Value: cast.ToString(r.Year), Reason: "must be positive"}
	}
	if r.Year > MaxYear {
		return &MalformedRecordError{Field: ColumnYear, Value: cast.ToString(r.Year), Reason: "is out of range"}
	}
	return nil
}

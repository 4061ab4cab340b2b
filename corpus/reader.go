package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	EncodingUTF8        = "utf-8"
	EncodingLatin1      = "latin1"
	EncodingWindows1252 = "windows-1252"
)

// LoadResult is a cleaned corpus plus the bookkeeping of what was dropped.
type LoadResult struct {
	Records []Record
	Issues  []QualityIssue
	Stats   CleaningStats
}

func textEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EncodingUTF8, "utf8":
		return unicode.UTF8BOM, nil
	case EncodingLatin1, "iso-8859-1":
		return charmap.ISO8859_1, nil
	case EncodingWindows1252, "cp1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("unsupported corpus encoding %q", name)
	}
}

// ReadRows decodes a CSV stream into rows keyed by header name. The header
// must name every column in RequiredColumns; other columns are kept but
// ignored downstream.
func ReadRows(r io.Reader, encodingName string) ([]Row, error) {
	enc, err := textEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(transform.NewReader(r, enc.NewDecoder()))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrCorpusUnavailable)
		}
		return nil, fmt.Errorf("%w: read header: %w", ErrCorpusUnavailable, err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range RequiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	var rows []Row
	line := 1
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrCorpusUnavailable, line, err)
		}
		cells := make(map[string]string, len(columns))
		for name, idx := range columns {
			if idx < len(fields) {
				cells[name] = fields[idx]
			}
		}
		rows = append(rows, Row{Line: line, Cells: cells})
	}
	return rows, nil
}

// Load reads and cleans the corpus at path.
func Load(path, encodingName string, logger *zap.Logger) (*LoadResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorpusUnavailable, err)
	}
	defer file.Close()

	rows, err := ReadRows(file, encodingName)
	if err != nil {
		return nil, err
	}

	cleaner := NewDataCleaner(logger)
	records, issues := cleaner.Clean(rows)
	stats := cleaner.Stats()
	logger.Info("corpus loaded",
		zap.String("path", path),
		zap.Int64("rows", stats.TotalProcessed),
		zap.Int64("kept", stats.Passed),
		zap.Int64("dropped", stats.Rejected),
	)
	return &LoadResult{Records: records, Issues: issues, Stats: stats}, nil
}

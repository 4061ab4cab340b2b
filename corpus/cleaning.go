package corpus

import (
	"sync"

	"go.uber.org/zap"
)

// Row is one raw CSV line keyed by column name.
type Row struct {
	Line  int
	Cells map[string]string
}

// CleaningRule rejects a row that cannot take part in training.
type CleaningRule interface {
	Apply(row Row) error
	Name() string
}

// QualityIssue records why a row was dropped.
type QualityIssue struct {
	Line    int    `json:"line"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// CleaningStats counts rows seen by a DataCleaner.
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Issues         map[string]int64 `json:"issues"`
}

// DataCleaner runs every rule against every row and converts the survivors to
// Records.
type DataCleaner struct {
	rules  []CleaningRule
	logger *zap.Logger

	stats     CleaningStats
	statsLock sync.RWMutex
}

func NewDataCleaner(logger *zap.Logger) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	cleaner := &DataCleaner{
		logger: logger,
		stats: CleaningStats{
			Issues: make(map[string]int64),
		},
	}

	cleaner.AddRule(RequiredFieldsRule{})
	cleaner.AddRule(YearRule{})
	cleaner.AddRule(SalesRule{})
	return cleaner
}

func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
	dc.logger.Debug("added cleaning rule", zap.String("rule", rule.Name()))
}

// Clean returns the rows that passed every rule, in input order.
func (dc *DataCleaner) Clean(rows []Row) ([]Record, []QualityIssue) {
	dc.statsLock.Lock()
	defer dc.statsLock.Unlock()

	records := make([]Record, 0, len(rows))
	var issues []QualityIssue
	for _, row := range rows {
		dc.stats.TotalProcessed++

		rejected := false
		for _, rule := range dc.rules {
			if err := rule.Apply(row); err != nil {
				issues = append(issues, QualityIssue{Line: row.Line, Rule: rule.Name(), Message: err.Error()})
				dc.stats.Issues[rule.Name()]++
				rejected = true
			}
		}
		if rejected {
			dc.stats.Rejected++
			continue
		}

		rec, err := ParseRecord(row.Cells)
		if err != nil {
			issues = append(issues, QualityIssue{Line: row.Line, Rule: "parse", Message: err.Error()})
			dc.stats.Issues["parse"]++
			dc.stats.Rejected++
			continue
		}
		dc.stats.Passed++
		records = append(records, rec)
	}
	return records, issues
}

func (dc *DataCleaner) Stats() CleaningStats {
	dc.statsLock.RLock()
	defer dc.statsLock.RUnlock()

	out := dc.stats
	out.Issues = make(map[string]int64, len(dc.stats.Issues))
	for k, v := range dc.stats.Issues {
		out.Issues[k] = v
	}
	return out
}

// RequiredFieldsRule drops rows with a null feature or target.
type RequiredFieldsRule struct{}

func (RequiredFieldsRule) Name() string { return "required_fields" }

func (RequiredFieldsRule) Apply(row Row) error {
	for _, column := range []string{ColumnPlatform, ColumnGenre, ColumnPublisher, ColumnYear, ColumnGlobalSales} {
		if IsNull(row.Cells[column]) {
			return &MalformedRecordError{Field: column, Reason: "is missing"}
		}
	}
	return nil
}

// YearRule drops rows whose year is not an integer. Null years are left to
// RequiredFieldsRule.
type YearRule struct{}

func (YearRule) Name() string { return "year" }

func (YearRule) Apply(row Row) error {
	value := row.Cells[ColumnYear]
	if IsNull(value) {
		return nil
	}
	_, err := ParseYear(value)
	return err
}

// SalesRule drops rows whose Global_Sales is not a non-negative number.
type SalesRule struct{}

func (SalesRule) Name() string { return "global_sales" }

func (SalesRule) Apply(row Row) error {
	value := row.Cells[ColumnGlobalSales]
	if IsNull(value) {
		return nil
	}
	_, err := ParseSales(value)
	return err
}

package corpus

import (
	"context"
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const DefaultCatalogCacheSize = 1024

// Source answers lookups over the cleaned corpus.
type Source interface {
	LookupName(ctx context.Context, name string) (Record, bool, error)
	TopSellers(ctx context.Context, limit int) ([]Record, error)
}

// Catalog looks games up by display name, caching hits.
type Catalog struct {
	source Source
	cache  *lru.Cache[string, Record]
	logger *zap.Logger
}

func NewCatalog(source Source, cacheSize int, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCatalogCacheSize
	}
	cache, err := lru.New[string, Record](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Catalog{source: source, cache: cache, logger: logger}, nil
}

// Lookup returns the first record carrying name.
func (c *Catalog) Lookup(ctx context.Context, name string) (Record, error) {
	key := strings.TrimSpace(name)
	if key == "" {
		return Record{}, &MalformedRecordError{Field: ColumnName, Reason: "is missing"}
	}
	if rec, ok := c.cache.Get(key); ok {
		return rec, nil
	}
	rec, ok, err := c.source.LookupName(ctx, key)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", ErrGameNotFound, key)
	}
	c.cache.Add(key, rec)
	c.logger.Debug("catalog miss", zap.String("name", key))
	return rec, nil
}

func (c *Catalog) Top(ctx context.Context, limit int) ([]Record, error) {
	return c.source.TopSellers(ctx, limit)
}

// MemorySource indexes an in-memory corpus. The first record with a given
// name wins, matching a top-down scan of the file.
type MemorySource struct {
	byName  map[string]Record
	ordered []Record
}

func NewMemorySource(records []Record) *MemorySource {
	src := &MemorySource{
		byName:  make(map[string]Record, len(records)),
		ordered: append([]Record(nil), records...),
	}
	for _, rec := range records {
		if rec.Name == "" {
			continue
		}
		if _, seen := src.byName[rec.Name]; !seen {
			src.byName[rec.Name] = rec
		}
	}
	sort.SliceStable(src.ordered, func(i, j int) bool {
		return src.ordered[i].GlobalSales > src.ordered[j].GlobalSales
	})
	return src
}

func (m *MemorySource) LookupName(_ context.Context, name string) (Record, bool, error) {
	rec, ok := m.byName[name]
	return rec, ok, nil
}

func (m *MemorySource) TopSellers(_ context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > len(m.ordered) {
		limit = len(m.ordered)
	}
	return append([]Record(nil), m.ordered[:limit]...), nil
}

// Names lists the distinct display names, sorted.
func (m *MemorySource) Names() []string {
	names := make([]string, 0, len(m.byName))
	for name := range m.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

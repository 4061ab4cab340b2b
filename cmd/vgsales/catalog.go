package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"vgsales/corpus"
	"vgsales/db"
)

func (a *app) loadCorpus() (*corpus.LoadResult, error) {
	return corpus.Load(a.cfg.Corpus.Path, a.cfg.Corpus.Encoding, a.logger.Named("corpus"))
}

// openDB returns nil when no database is configured.
func (a *app) openDB() (*db.DB, error) {
	if a.cfg.Database.Path == "" {
		return nil, nil
	}
	return db.Open(a.cfg.Database.Path, a.logger.Named("db"))
}

// openCatalog prefers the imported SQLite catalog and falls back to the
// corpus file when nothing was imported.
func (a *app) openCatalog(ctx context.Context) (*corpus.Catalog, func(), error) {
	noop := func() {}
	if a.cfg.Database.Path != "" {
		if _, err := os.Stat(a.cfg.Database.Path); err == nil {
			store, err := a.openDB()
			if err != nil {
				return nil, noop, err
			}
			n, err := store.CountGames(ctx)
			if err == nil && n > 0 {
				catalog, err := corpus.NewCatalog(store, a.cfg.Catalog.CacheSize, a.logger.Named("catalog"))
				if err != nil {
					store.Close()
					return nil, noop, err
				}
				return catalog, func() { store.Close() }, nil
			}
			store.Close()
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, noop, err
		}
	}

	res, err := a.loadCorpus()
	if err != nil {
		return nil, noop, fmt.Errorf("open catalog: %w", err)
	}
	catalog, err := corpus.NewCatalog(corpus.NewMemorySource(res.Records), a.cfg.Catalog.CacheSize, a.logger.Named("catalog"))
	if err != nil {
		return nil, noop, err
	}
	return catalog, noop, nil
}

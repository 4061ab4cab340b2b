// Package config loads the YAML configuration shared by every command.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"vgsales/corpus"
	"vgsales/ml"
	"vgsales/pipeline"
)

type Config struct {
	Corpus struct {
		Path     string `yaml:"path" validate:"required"`
		Encoding string `yaml:"encoding" validate:"oneof=utf-8 latin1 windows-1252"`
	} `yaml:"corpus"`
	Artifacts struct {
		Dir  string `yaml:"dir" validate:"required"`
		Keep int    `yaml:"keep" validate:"gte=1"`
	} `yaml:"artifacts"`
	Training Training `yaml:"training"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Catalog struct {
		CacheSize int `yaml:"cache_size" validate:"gte=1"`
	} `yaml:"catalog"`
	Log     Log `yaml:"log"`
	Metrics struct {
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`
}

type Training struct {
	Seed            int64   `yaml:"seed"`
	TestRatio       float64 `yaml:"test_ratio" validate:"gt=0,lt=1"`
	Estimators      int     `yaml:"estimators" validate:"gte=1"`
	MaxDepth        int     `yaml:"max_depth" validate:"gte=0"`
	MinSamplesSplit int     `yaml:"min_samples_split" validate:"gte=0"`
	MinSamplesLeaf  int     `yaml:"min_samples_leaf" validate:"gte=0"`
	Workers         int     `yaml:"workers" validate:"gte=0"`
}

type Log struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	File        string `yaml:"file"`
	MaxSizeMB   int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups  int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays  int    `yaml:"max_age_days" validate:"gte=0"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Corpus.Path = "vgsales.csv"
	cfg.Corpus.Encoding = corpus.EncodingUTF8
	cfg.Artifacts.Dir = "artifacts"
	cfg.Artifacts.Keep = 5
	cfg.Training = Training{
		Seed:       42,
		TestRatio:  ml.DefaultTestRatio,
		Estimators: ml.DefaultEstimators,
	}
	cfg.Database.Path = "data/vgsales.db"
	cfg.Catalog.CacheSize = corpus.DefaultCatalogCacheSize
	cfg.Log = Log{Level: "info", MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 28}
	return cfg
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			defer file.Close()
			if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// TrainOptions maps the training section onto pipeline options.
func (c *Config) TrainOptions() pipeline.TrainOptions {
	opts := pipeline.DefaultTrainOptions()
	opts.Seed = c.Training.Seed
	opts.TestRatio = c.Training.TestRatio
	opts.Forest.Seed = c.Training.Seed
	opts.Forest.Estimators = c.Training.Estimators
	opts.Forest.Workers = c.Training.Workers
	opts.Forest.Tree = ml.TreeParams{
		MaxDepth:        c.Training.MaxDepth,
		MinSamplesSplit: c.Training.MinSamplesSplit,
		MinSamplesLeaf:  c.Training.MinSamplesLeaf,
	}
	return opts
}

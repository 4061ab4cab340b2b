package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, int64(42), cfg.Training.Seed)
	assert.Equal(t, 100, cfg.Training.Estimators)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
corpus:
  path: data/vgsales.csv
  encoding: latin1
artifacts:
  dir: /var/lib/vgsales
training:
  seed: 7
  workers: 2
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "data/vgsales.csv", cfg.Corpus.Path)
	assert.Equal(t, "latin1", cfg.Corpus.Encoding)
	assert.Equal(t, "/var/lib/vgsales", cfg.Artifacts.Dir)
	assert.Equal(t, 5, cfg.Artifacts.Keep)
	assert.Equal(t, "debug", cfg.Log.Level)

	opts := cfg.TrainOptions()
	assert.Equal(t, int64(7), opts.Seed)
	assert.Equal(t, int64(7), opts.Forest.Seed)
	assert.Equal(t, 2, opts.Forest.Workers)
	assert.Equal(t, 0.2, opts.TestRatio)
	assert.True(t, opts.Forest.Bootstrap)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"encoding":   "corpus:\n  encoding: ebcdic\n",
		"test ratio": "training:\n  test_ratio: 1.5\n",
		"log level":  "log:\n  level: loud\n",
		"empty dir":  "artifacts:\n  dir: \"\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "corpus: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	corpusPath, err := filepath.Abs(filepath.Join("..", "..", "corpus", "testdata", "vgsales.csv"))
	require.NoError(t, err)
	body := fmt.Sprintf(`
corpus:
  path: %s
artifacts:
  dir: %s
training:
  estimators: 20
  workers: 2
database:
  path: %s
log:
  level: error
metrics:
  textfile: %s
`, corpusPath, filepath.Join(dir, "artifacts"), filepath.Join(dir, "vgsales.db"), filepath.Join(dir, "vgsales.prom"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPredictBeforeTraining(t *testing.T) {
	cfg := writeTestConfig(t)
	_, err := run(t, "", "--config", cfg, "predict", "--platform", "NES", "--genre", "Platform", "--publisher", "Nintendo", "--year", "1985")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "models unavailable")
}

func TestTrainPredictAndRuns(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := run(t, "", "--config", cfg, "train")
	require.NoError(t, err)
	assert.Contains(t, out, "rows: 37 (train 29, held out 8)")

	out, err = run(t, "", "--config", cfg, "predict", "--name", "Super Mario Bros.")
	require.NoError(t, err)
	assert.Contains(t, out, "actual global sales:      40.24M")
	assert.Contains(t, out, "platform:  NES")

	_, err = run(t, "", "--config", cfg, "predict", "--platform", "NES", "--genre", "Platform", "--publisher", "UnknownCo", "--year", "1985")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `Publisher "UnknownCo"`)
	assert.Contains(t, err.Error(), "known publisher values:")

	out, err = run(t, "", "--config", cfg, "runs")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "\n"))

	prom := readTextfile(t, cfg, "predict")
	assert.Contains(t, prom, `vgsales_pipeline_predictions_total{command="predict",outcome="unknown_category"} 1`)
}

func readTextfile(t *testing.T, cfg, command string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(filepath.Dir(cfg), "vgsales_"+command+".prom"))
	require.NoError(t, err)
	return string(data)
}

func TestMetricsExportedOnFailureAndKeptAcrossCommands(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := run(t, "", "--config", cfg, "train")
	require.NoError(t, err)

	_, err = run(t, "", "--config", cfg, "predict", "--platform", "NES", "--genre", "Platform", "--publisher", "UnknownCo", "--year", "1985")
	require.Error(t, err)
	assert.Contains(t, readTextfile(t, cfg, "predict"),
		`vgsales_pipeline_unknown_categories_total{command="predict",feature="Publisher"} 1`)

	_, err = run(t, "", "--config", cfg, "runs")
	require.NoError(t, err)
	_, err = run(t, "", "--config", cfg, "top")
	require.NoError(t, err)

	assert.Contains(t, readTextfile(t, cfg, "train"), `vgsales_pipeline_training_rows{command="train"} 29`)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(cfg), "vgsales_runs.prom"))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(cfg), "vgsales.prom"))
}

func TestFailedTrainExportsFailure(t *testing.T) {
	cfg := writeTestConfig(t)
	empty := filepath.Join(filepath.Dir(cfg), "empty.csv")
	require.NoError(t, os.WriteFile(empty, []byte("Rank,Name,Platform,Year,Genre,Publisher,Global_Sales\n"), 0o600))

	_, err := run(t, "", "--config", cfg, "train", "--corpus", empty)
	require.Error(t, err)
	assert.Contains(t, readTextfile(t, cfg, "train"),
		`vgsales_pipeline_training_runs_total{command="train",result="failure"} 1`)
}

func TestTextfilePath(t *testing.T) {
	assert.Equal(t, "/var/lib/node/vgsales_train.prom", textfilePath("/var/lib/node/vgsales.prom", "train"))
	assert.Equal(t, "metrics_predict.prom", textfilePath("metrics", "predict"))
	assert.Equal(t, "", textfilePath("", "train"))
}

func TestPredictAutoTrain(t *testing.T) {
	cfg := writeTestConfig(t)
	out, err := run(t, "", "--config", cfg, "predict", "--auto-train", "--json", "--name", "Tetris")
	require.NoError(t, err)
	assert.Contains(t, out, `"actual_sales":30.26`)
}

func TestPredictStdin(t *testing.T) {
	cfg := writeTestConfig(t)
	_, err := run(t, "", "--config", cfg, "train")
	require.NoError(t, err)

	input := strings.Join([]string{
		`{"platform":"NES","genre":"Platform","publisher":"Nintendo","year":1985,"global_sales":40.24}`,
		`{"platform":"NES","genre":"Platform","publisher":"UnknownCo","year":"1985"}`,
		`not json`,
		``,
	}, "\n")
	out, err := run(t, input, "--config", cfg, "predict", "--stdin")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"actual_sales":40.24`)
	assert.Contains(t, lines[1], "unknown category")
	assert.Contains(t, lines[2], "malformed record")
}

func TestImportAndTop(t *testing.T) {
	cfg := writeTestConfig(t)
	out, err := run(t, "", "--config", cfg, "import")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 37 games (3 rows rejected)")

	out, err = run(t, "", "--config", cfg, "top", "-n", "3")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "Wii Sports")
	assert.Contains(t, lines[2], "Super Mario Bros.")
}

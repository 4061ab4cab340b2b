package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vgsales/config"
	"vgsales/logging"
	"vgsales/metrics"
)

type app struct {
	configPath string
	logLevel   string

	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Manager
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "vgsales",
		Short:         "Estimate video game global sales from platform, genre, publisher and year",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Name())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "config.yaml", "path to the YAML config")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level from the config")

	root.AddCommand(
		newTrainCmd(a),
		newPredictCmd(a),
		newTopCmd(a),
		newImportCmd(a),
		newRunsCmd(a),
	)
	return root
}

func (a *app) setup(command string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	a.metrics = metrics.NewManager(metrics.WithConstLabels(prometheus.Labels{"command": command}))
	return nil
}

type runFunc func(cmd *cobra.Command, args []string) error

// run wraps a command body so cleanup happens whether or not it fails. With
// export set, the command's metrics go to its own textfile.
func (a *app) run(export bool, fn runFunc) runFunc {
	return func(cmd *cobra.Command, args []string) error {
		defer a.close(cmd.Name(), export)
		return fn(cmd, args)
	}
}

func (a *app) close(command string, export bool) {
	if a.logger == nil {
		return
	}
	if export && a.cfg != nil {
		path := textfilePath(a.cfg.Metrics.Textfile, command)
		if err := a.metrics.WriteTextfile(path); err != nil {
			a.logger.Warn("write metrics textfile", zap.String("path", path), zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// textfilePath derives a per-command file from the configured one, so one
// command's export never overwrites another's: vgsales.prom becomes
// vgsales_train.prom.
func textfilePath(base, command string) string {
	if base == "" {
		return ""
	}
	ext := filepath.Ext(base)
	if ext == "" {
		ext = ".prom"
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_" + command + ext
}

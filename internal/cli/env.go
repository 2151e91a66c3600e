package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"netsift/internal/app"
	"netsift/internal/config"
	"netsift/internal/logging"
	"netsift/internal/metrics"
	"netsift/internal/models"
	"netsift/internal/procs"
)

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	logFile    string
}

func (f *globalFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "YAML config file (defaults are used when empty)")
	cmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "override log.level")
	cmd.PersistentFlags().StringVar(&f.logFormat, "log-format", "", "override log.format (console, json)")
	cmd.PersistentFlags().StringVar(&f.logFile, "log-file", "", "write logs to this file instead of stderr")
}

// env is the state every command builds from the global flags.
type env struct {
	cfg      *config.Config
	log      zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	closers  []io.Closer
}

// setup loads the config and builds the logger. quiet discards logs unless
// a log file was given, for commands that own the terminal.
func (f *globalFlags) setup(quiet bool) (*env, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}

	e := &env{cfg: cfg, registry: prometheus.NewRegistry()}

	var w io.Writer = os.Stderr
	switch {
	case f.logFile != "":
		file, err := os.OpenFile(f.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		e.closers = append(e.closers, file)
		w = file
	case quiet:
		w = io.Discard
	}

	e.log, err = logging.New(w, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		e.close()
		return nil, err
	}
	e.metrics = metrics.New(e.registry)
	return e, nil
}

func (e *env) close() {
	for _, c := range e.closers {
		c.Close()
	}
}

// controller wires an app.Controller for the configured capture backend.
func (e *env) controller(sink models.Sink) *app.Controller {
	return app.New(app.Options{
		Config:  e.cfg,
		Source:  app.BuildSource(e.cfg.Capture, e.log),
		Lister:  procs.Lister{},
		Logger:  e.log,
		Metrics: e.metrics,
		Sink:    sink,
	})
}

// printer writes status notifications as plain lines.
func printer(w io.Writer) models.Sink {
	return models.SinkFunc(func(n models.Notification) {
		if n.Kind == models.StatusChanged {
			fmt.Fprintln(w, n.Status)
		}
	})
}

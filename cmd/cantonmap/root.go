package main

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gyeh/cantonhealth/internal/config"
	"github.com/gyeh/cantonhealth/internal/db"
	"github.com/gyeh/cantonhealth/internal/exitcode"
	"github.com/gyeh/cantonhealth/internal/logging"
	"github.com/gyeh/cantonhealth/internal/pipeline"
	"github.com/gyeh/cantonhealth/internal/source"
)

var (
	cfg        config.Config
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "cantonmap",
	Short: "Canton health coverage: population, hospitals and area per canton",
	Long: "Loads census population, health facility and canton boundary layers, " +
		"joins facilities to cantons and derives density and inhabitants per hospital.",
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to YAML config file")
	pf.StringVar(&cfg.Population, "population", "", "Population source: file or postgres:<layer> (or set "+config.EnvPopulation+")")
	pf.StringVar(&cfg.Facilities, "facilities", "", "Health facility source: file or postgres:<layer> (or set "+config.EnvFacilities+")")
	pf.StringVar(&cfg.Boundaries, "boundaries", "", "Canton boundary source: file or postgres:<layer> (or set "+config.EnvBoundaries+")")
	pf.StringVar(&cfg.DSN, "dsn", "", "Postgres connection string (or set "+config.EnvDSN+")")
	pf.StringVar(&cfg.LogFormat, "log-format", "", "Log format: text or json")
	pf.StringVar(&cfg.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
}

// setup resolves config from file and environment and returns the logger.
// Exits on an unreadable config file.
func setup() zerolog.Logger {
	fileErr := cfg.Load(configPath)
	if fileErr != nil {
		cfg.ApplyDefaults()
	}

	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	if fileErr != nil {
		log.Error().Err(fileErr).Str("config", configPath).Msg("config file failed")
		os.Exit(exitcode.UsageError)
	}
	return log
}

// validateSources checks the three sources and exits on failure.
func validateSources(log zerolog.Logger) {
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
}

// openStore connects to Postgres when any source is a staged layer. The
// returned close func is always safe to call.
func openStore(ctx context.Context, log zerolog.Logger) (source.LayerStore, func()) {
	if !cfg.NeedsDSN() {
		return nil, func() {}
	}
	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	return db.NewStore(pool, log), pool.Close
}

// exitForPipeline maps a pipeline failure to an exit code.
func exitForPipeline(log zerolog.Logger, err error) {
	var pe *pipeline.PipelineError
	if errors.As(err, &pe) {
		log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("pipeline failed")
		switch pe.Phase {
		case pipeline.PhaseLoad:
			os.Exit(exitcode.LoadError)
		default:
			os.Exit(exitcode.PipelineError)
		}
	}
	var le *pipeline.DataLoadError
	if errors.As(err, &le) {
		log.Error().Err(le.Err).Str("layer", le.Layer).Str("source", le.Path).Msg("load failed")
		os.Exit(exitcode.LoadError)
	}
	log.Error().Err(err).Msg("pipeline failed")
	os.Exit(exitcode.PipelineError)
}

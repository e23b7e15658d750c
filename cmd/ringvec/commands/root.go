package commands

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hupe1980/ringvec"
	"github.com/hupe1980/ringvec/embed"
	"github.com/hupe1980/ringvec/internal/config"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Loaded in PersistentPreRunE.
	appConfig  *config.AppConfig
	configFrom string
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ringvec",
	Short: "Streaming similarity search over a fixed-size in-memory window",
	Long: `ringvec - keeps the most recent records of a text stream in a sharded
circular buffer and answers top-k similarity queries against them.

Configuration is read from --config, ./ringvec.yaml or
~/.config/ringvec/config.yaml, in that order. A .env file in the working
directory is loaded first, so API keys can live there.

Examples:
  # Correlate a live log stream and alert on outages
  ringvec gen-logs --interval 100ms | ringvec stream --watch "service unreachable=0.7"

  # Serve the HTTP API while ingesting
  tail -f /var/log/app.log | ringvec stream --serve

  # Measure throughput
  ringvec bench --records 16384 --dim 384`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	var err error
	if configPath != "" {
		appConfig, err = config.Load(configPath)
		configFrom = configPath
	} else {
		appConfig, configFrom, err = config.LoadDefault()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err = newLogger(appConfig.Log, verbose, cmd.ErrOrStderr())
	return err
}

func newLogger(cfg config.LogConfig, verbose bool, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func newStore(cfg *config.AppConfig, mc ringvec.MetricsCollector) (*ringvec.Store, error) {
	return ringvec.New(cfg.Store.Shards, cfg.Store.Capacity,
		ringvec.WithDimension(cfg.Store.Dimension),
		ringvec.WithMetric(cfg.Metric()),
		ringvec.WithWorkers(cfg.Store.Workers),
		ringvec.WithLogger(&ringvec.Logger{Logger: logger.With("component", "store")}),
		ringvec.WithMetricsCollector(mc),
	)
}

func newEmbedder(cfg config.EmbedderConfig) (embed.Embedder, error) {
	switch cfg.Type {
	case "hash":
		return embed.NewHash(cfg.Dimension), nil
	case "openai":
		oc := cfg.OpenAI
		apiKey := os.Getenv(oc.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: %s is not set", oc.APIKeyEnv)
		}
		return embed.NewOpenAI(apiKey,
			embed.WithBaseURL(oc.BaseURL),
			embed.WithModel(oc.Model),
			embed.WithDimension(cfg.Dimension),
			embed.WithBatchSize(oc.BatchSize),
			embed.WithConcurrency(oc.Concurrency),
			embed.WithRateLimit(oc.RateLimit, oc.Concurrency),
			embed.WithHTTPClient(&http.Client{Timeout: time.Duration(oc.TimeoutSecs) * time.Second}),
		), nil
	default:
		return nil, fmt.Errorf("embedder: unknown type %q", cfg.Type)
	}
}

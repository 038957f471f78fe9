package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"textbookrag/internal/config"
	"textbookrag/internal/logger"
	"textbookrag/internal/telemetry"
)

var (
	cfgPath  string
	logLevel string
)

// app is the process-wide state built once before any subcommand runs.
var app struct {
	cfg      *config.AppConfig
	cfgFile  string
	log      *slog.Logger
	shutdown func(context.Context)
}

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "textbookrag",
		Short: "Question answering over textbook pages and diagrams",
		Long: `textbookrag indexes extracted textbook pages into two vector collections,
one for page text and one for page images, and answers questions by routing
them to the right collection and grounding a chat model on the results.

Typical flow:
  textbookrag extract --pdf-dir data/class10/science --out extracted/class10_science
  textbookrag collections create
  textbookrag ingest text
  textbookrag ingest images
  textbookrag chat`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.shutdown != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				app.shutdown(ctx)
			}
		},
	}
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config (default ./config.yaml, then ~/.config/textbookrag/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	cmd.AddCommand(
		NewCollectionsCmd(),
		NewIngestCmd(),
		NewExtractCmd(),
		NewAskCmd(),
		NewChatCmd(),
		NewVersionCmd(),
	)
	return cmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

func setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	var (
		cfg *config.AppConfig
		err error
	)
	if cfgPath == "" {
		cfg, app.cfgFile, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
		app.cfgFile = cfgPath
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	app.cfg = cfg
	app.log = logger.Init(cfg.Logging)

	shutdown, err := telemetry.Init(cmd.Context(), cfg.Telemetry, versionInfo.Version)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	app.shutdown = shutdown
	app.log.Debug("config loaded", "path", app.cfgFile, "vector_store", cfg.VectorStore.Type)
	return nil
}

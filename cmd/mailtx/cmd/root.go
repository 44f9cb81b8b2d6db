package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/mailtx/mailtx/internal/config"
	"github.com/mailtx/mailtx/internal/oracle"
	"github.com/mailtx/mailtx/internal/store"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mailtx",
	Short: "Local-first email spend analyzer",
	Long: `mailtx turns an archive of raw email messages into a deduplicated,
structured financial ledger, queryable in natural language.

The pipeline runs in independently resumable stages:
  ingest   normalize raw message blobs into the email table
  embed    build the semantic embedding index
  extract  populate the transaction ledger via the extraction oracle
  ask      answer a natural-language question about your spending`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return eris.Wrap(err, "load config")
		}

		if err := cfg.EnsureHomeDir(); err != nil {
			return eris.Wrapf(err, "create data directory %s", cfg.Data.DataDir)
		}

		return nil
	},
}

// ExecuteContext runs the root command with the given context, enabling
// graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// openStore opens the configured database and initializes its schema.
// Each command opens its own connection scope.
func openStore() (*store.Store, error) {
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, eris.Wrap(err, "open database")
	}
	if err := st.InitSchema(); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "init schema")
	}
	return st, nil
}

// newOracleClient builds the oracle client from config.
func newOracleClient() (*oracle.Client, error) {
	return oracle.NewClient(oracle.Config{
		ServerURL:  cfg.Oracle.Server,
		EmbedModel: cfg.Oracle.EmbedModel,
		ChatModel:  cfg.Oracle.ChatModel,
		QPS:        cfg.Oracle.RateQPS,
		Timeout:    cfg.OracleTimeout(),
	})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.mailtx/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

package cmd

import (
	"context"
	"time"

	"github.com/mailtx/mailtx/internal/api"
	"github.com/mailtx/mailtx/internal/embed"
	"github.com/mailtx/mailtx/internal/ingest"
	"github.com/mailtx/mailtx/internal/ledger"
	"github.com/mailtx/mailtx/internal/query"
	"github.com/mailtx/mailtx/internal/rawstore"
	"github.com/mailtx/mailtx/internal/scheduler"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serve exposes the mailtx command surface over HTTP: stats, full-text
and similarity search, ledger queries, and natural-language questions.

When [schedule] is enabled in the config, the full pipeline (ingest,
embed, extract) also runs on the configured cron expression while the
server is up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		const shutdownGrace = 10 * time.Second

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		client, err := newOracleClient()
		if err != nil {
			return err
		}

		ix := embed.New(st, client, logger)
		ix.Workers = cfg.Embed.Workers
		engine := query.NewEngine(st, client, logger)

		var sched *scheduler.Scheduler
		if cfg.Schedule.Enabled && cfg.Schedule.Pipeline != "" {
			sched = scheduler.New(func(ctx context.Context) error {
				n := ingest.New(st, rawstore.New(cfg.RawDir()), logger)
				if _, err := n.Run(ctx); err != nil {
					return err
				}
				if _, err := ix.EnsureEmbeddings(ctx); err != nil {
					return err
				}
				_, err := ledger.New(st, client, logger).BuildLedger(ctx)
				return err
			}, logger)
			if err := sched.Schedule(cfg.Schedule.Pipeline); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()
		}

		srv := api.NewServer(cfg, st, engine, ix, logger)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			return err
		case <-cmd.Context().Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

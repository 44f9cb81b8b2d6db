package cmd

import (
	"fmt"

	"github.com/mailtx/mailtx/internal/embed"
	"github.com/spf13/cobra"
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Generate embeddings for emails that lack them",
	Long: `Embed selects every email without a stored vector, sends its subject
and a body prefix to the embedding oracle, and stores the result. Oracle
failures skip the record; it stays eligible for the next run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		stats, err := ix.EnsureEmbeddings(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Embedded: %d\nFailed: %d\n", stats.Embedded, stats.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(embedCmd)
}

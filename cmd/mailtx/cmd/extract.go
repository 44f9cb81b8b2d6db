package cmd

import (
	"fmt"

	"github.com/mailtx/mailtx/internal/ledger"
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract transactions from emails into the ledger",
	Long: `Extract selects candidate emails (not yet ledgered, keyword-matched,
long enough to be a real transaction record), runs each through the
structured-extraction oracle, and inserts the resulting transactions.
Interrupted runs resume where they left off.`,
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

		b := ledger.New(st, client, logger)
		stats, err := b.BuildLedger(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Processed %d emails. Added %d transactions.\n",
			stats.Processed, stats.Inserted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

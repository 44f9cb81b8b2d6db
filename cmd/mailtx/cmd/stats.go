package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.GetStats()
		if err != nil {
			return err
		}

		fmt.Printf("Database: %s\n", cfg.DatabasePath())
		fmt.Printf("  Emails:       %d\n", stats.EmailCount)
		fmt.Printf("  Embeddings:   %d\n", stats.EmbeddingCount)
		fmt.Printf("  Transactions: %d\n", stats.TransactionCount)
		fmt.Printf("  Size:         %d bytes\n", stats.DatabaseSize)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

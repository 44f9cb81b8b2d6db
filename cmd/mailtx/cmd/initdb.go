package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		fmt.Printf("Database initialized at %s\n", cfg.DatabasePath())
		if !st.FTS5Available() {
			fmt.Println("Note: FTS5 not available in this SQLite build; full-text search disabled.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over email subjects and bodies",
	Long: `Search runs an FTS5 MATCH query over the email archive.

Examples:
  mailtx search "uber receipt"
  mailtx search 'subject:invoice'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		queryStr := strings.Join(args, " ")

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		results, err := st.SearchEmails(queryStr, searchLimit)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No emails found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDATE\tFROM\tSUBJECT")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				r.ID, r.Date.String, truncate(r.From, 30), truncate(r.Subject, 50))
		}
		w.Flush()
		fmt.Printf("\nShowing %d results\n", len(results))
		return nil
	},
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "maximum number of results")
}

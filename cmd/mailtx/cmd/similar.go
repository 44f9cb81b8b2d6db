package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mailtx/mailtx/internal/embed"
	"github.com/spf13/cobra"
)

var similarTopK int

var similarCmd = &cobra.Command{
	Use:   "similar <text>",
	Short: "Find emails semantically similar to the given text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")

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
		matches, err := ix.FindSimilar(cmd.Context(), text, similarTopK)
		if err != nil {
			return err
		}

		if len(matches) == 0 {
			fmt.Println("No embeddings stored. Run 'mailtx embed' first.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "EMAIL\tSIMILARITY\tSUBJECT")
		for _, m := range matches {
			subject := ""
			if e, err := st.GetEmail(m.EmailID); err == nil && e != nil {
				subject = e.Subject
			}
			fmt.Fprintf(w, "%s\t%.4f\t%s\n", m.EmailID, m.Similarity, subject)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(similarCmd)
	similarCmd.Flags().IntVarP(&similarTopK, "top", "k", 10, "number of results")
}

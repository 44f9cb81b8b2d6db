package cmd

import (
	"fmt"
	"strings"

	"github.com/mailtx/mailtx/internal/query"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a natural language question about your spending",
	Long: `Ask translates a natural-language question into a constrained ledger
query via the intent oracle and prints the result.

Examples:
  mailtx ask "How much did I spend on Uber last month?"
  mailtx ask "Show me my Amazon purchases in December"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		client, err := newOracleClient()
		if err != nil {
			return err
		}

		engine := query.NewEngine(st, client, logger)

		params := engine.ParseIntent(cmd.Context(), question)
		if params == nil {
			fmt.Println("Could not understand the query.")
			return nil
		}
		logger.Debug("intent parsed",
			"merchant", params.Merchant, "start", params.StartDate,
			"end", params.EndDate, "metric", params.Metric)

		result := engine.Execute(cmd.Context(), params)
		fmt.Println(query.FormatResult(result, params))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}

package cmd

import (
	"fmt"

	"github.com/mailtx/mailtx/internal/ingest"
	"github.com/mailtx/mailtx/internal/rawstore"
	"github.com/spf13/cobra"
)

var ingestDays int

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Normalize raw message blobs into the email table",
	Long: `Ingest processes every raw message blob under <data_dir>/raw/,
decoding each into a normalized email row. Identical body content is
stored once (content-hash dedup); malformed blobs are logged and
skipped. Re-running is safe: already-ingested blobs count as skips.

The raw directory is filled by your mail-source connector; mailtx only
consumes it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		n := ingest.New(st, rawstore.New(cfg.RawDir()), logger)
		n.Days = ingestDays

		stats, err := n.Run(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Imported: %d\nSkipped (duplicate): %d\nFiltered (outside window): %d\nErrors: %d\n",
			stats.Imported, stats.Skipped, stats.Filtered, stats.Errors)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().IntVar(&ingestDays, "days", 0, "only ingest messages dated within the last N days (0 = all)")
}

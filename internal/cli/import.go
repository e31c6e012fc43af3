package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cdtdelta/4n6graph/internal/database"
)

func newImportCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a telemetry JSONL or flow CSV export into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			p, count, excluded, err := a.readFile(path, format)
			if err != nil {
				return err
			}

			store, err := database.CreateStore(a.cfg.Database.Driver, a.cfg.Database.DSN)
			if err != nil {
				return fmt.Errorf("creating database: %w", err)
			}
			defer store.Close()

			total := p.Len()
			inserted, err := store.InsertPayload(cmd.Context(), p, func(n int) {
				a.log.Info("inserting",
					zap.String("done", humanize.Comma(int64(n))),
					zap.String("total", humanize.Comma(int64(total))))
			})
			if err != nil {
				return fmt.Errorf("inserting records: %w", err)
			}

			a.log.Info("import complete",
				zap.String("file", path),
				zap.Int("records", inserted),
				zap.Int("excluded", excluded))
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s records (%s excluded) into %s\n",
				humanize.Comma(int64(count)), humanize.Comma(int64(excluded)), store.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "auto", "input format: auto, jsonl or flow")
	return cmd
}

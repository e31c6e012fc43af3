package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/cdtdelta/4n6graph/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show 4n6graph version information",
		Args:  cobra.NoArgs,
		// Needs no config or logger.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "4n6graph %s\n", version.String())
			fmt.Fprintf(out, "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

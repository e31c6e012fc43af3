package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cdtdelta/4n6graph/internal/render"
)

func newHistogramCommand(a *app) *cobra.Command {
	var (
		brushed bool
		width   int
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "histogram",
		Short: "Print event counts per time bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := a.runSession(cmd)
			if err != nil {
				return err
			}
			defer done()

			get := s.Histogram
			if brushed {
				get = s.BrushedHistogram
			}
			buckets, err := get()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, buckets)
			}
			if len(buckets) == 0 {
				fmt.Fprintln(out, "no buckets in range")
				return nil
			}
			return render.Histogram(out, buckets, width)
		},
	}

	addSearchFlags(cmd)
	cmd.Flags().BoolVar(&brushed, "brushed", false, "only the buckets inside the window")
	cmd.Flags().IntVar(&width, "width", 40, "bar width in characters")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print buckets as JSON")
	return cmd
}

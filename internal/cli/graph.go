package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cdtdelta/4n6graph/internal/csvexport"
	"github.com/cdtdelta/4n6graph/internal/engine"
	"github.com/cdtdelta/4n6graph/internal/model"
	"github.com/cdtdelta/4n6graph/internal/render"
)

// addSearchFlags registers the flags that pick the search range, the window
// and the granularity.
func addSearchFlags(cmd *cobra.Command) {
	addSourceFlags(cmd)
	cmd.Flags().String("start", "", "search start (epoch ms or RFC3339; default: earliest event)")
	cmd.Flags().String("end", "", "search end (epoch ms or RFC3339; default: just past the latest event)")
	cmd.Flags().String("window-start", "", "brushed window start (default: search start)")
	cmd.Flags().String("window-end", "", "brushed window end (default: search end)")
	cmd.Flags().Int64("granularity", 0, "bucket width in ms (default from config)")
}

// runSession opens the source, runs the search and applies the window.
// The returned func releases the source.
func (a *app) runSession(cmd *cobra.Command) (*engine.Session, func(), error) {
	src, closeSrc, err := a.openSource(cmd)
	if err != nil {
		return nil, nil, err
	}

	g, _ := cmd.Flags().GetInt64("granularity")
	if g == 0 {
		g = a.cfg.Analysis.Granularity
	}
	s := engine.NewSession(src, engine.WithLogger(a.log), engine.WithGranularity(g))

	ctx := cmd.Context()
	start, end, err := a.searchRange(cmd, s)
	if err != nil {
		closeSrc()
		return nil, nil, err
	}
	if _, err := s.RunSearch(ctx, start, end); err != nil {
		closeSrc()
		return nil, nil, err
	}

	ws, _ := cmd.Flags().GetString("window-start")
	we, _ := cmd.Flags().GetString("window-end")
	if ws != "" || we != "" {
		w0, w1 := start, end
		if ws != "" {
			if w0, err = parseTime(ws); err != nil {
				closeSrc()
				return nil, nil, err
			}
		}
		if we != "" {
			if w1, err = parseTime(we); err != nil {
				closeSrc()
				return nil, nil, err
			}
		}
		if _, err := s.SetWindow(w0, w1); err != nil {
			closeSrc()
			return nil, nil, err
		}
	}
	return s, closeSrc, nil
}

func (a *app) searchRange(cmd *cobra.Command, s *engine.Session) (int64, int64, error) {
	startFlag, _ := cmd.Flags().GetString("start")
	endFlag, _ := cmd.Flags().GetString("end")

	var start, end int64
	if startFlag == "" || endFlag == "" {
		rng, err := s.Availability(cmd.Context())
		if err != nil {
			return 0, 0, err
		}
		start, end = rng.Start, rng.End
	}
	var err error
	if startFlag != "" {
		if start, err = parseTime(startFlag); err != nil {
			return 0, 0, err
		}
	}
	if endFlag != "" {
		if end, err = parseTime(endFlag); err != nil {
			return 0, 0, err
		}
	}
	return start, end, nil
}

type graphOptions struct {
	format        string
	hideNodeTypes []string
	hideLinkKinds []string
	hideHosts     []string
	hideColors    []string
	group         bool
}

// applyFilters replays the filter flags onto the session.
func (o *graphOptions) applyFilters(s *engine.Session) error {
	for _, name := range o.hideNodeTypes {
		t, err := model.ParseNodeType(name)
		if err != nil {
			return err
		}
		s.ToggleHiddenNodeType(t)
	}
	for _, name := range o.hideLinkKinds {
		k, err := model.ParseLinkKind(name)
		if err != nil {
			return err
		}
		s.ToggleHiddenLinkKind(k)
	}
	for _, host := range o.hideHosts {
		s.ToggleHiddenHost(host)
	}
	for _, spec := range o.hideColors {
		kind, color, ok := strings.Cut(spec, "=")
		if !ok {
			return fmt.Errorf("--hide-color %q: want KIND=COLOR", spec)
		}
		k, err := model.ParseLinkKind(kind)
		if err != nil {
			return err
		}
		if _, err := s.ToggleHiddenColorBucket(k, color); err != nil {
			return err
		}
	}
	s.SetGrouping(o.group)
	return nil
}

func newGraphCommand(a *app) *cobra.Command {
	o := &graphOptions{}

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the graph of links active in a time window",
		Example: `  4n6graph graph --start 2024-01-15T10:00:00Z --end 2024-01-15T11:00:00Z
  4n6graph graph --input telemetry.jsonl --hide-node-type File --format json
  4n6graph graph --hide-color NetworkActivityLink=#9096f8 --format csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := a.runSession(cmd)
			if err != nil {
				return err
			}
			defer done()

			if err := o.applyFilters(s); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			g, sc := s.View()
			switch o.format {
			case "text":
				return render.Graph(out, g, sc)
			case "json":
				return writeJSON(out, g)
			case "indexed":
				return writeJSON(out, s.IndexedGraph())
			case "csv":
				return csvexport.WriteLinks(out, g, sc)
			default:
				return fmt.Errorf("unknown format %q (want text, json, indexed or csv)", o.format)
			}
		},
	}

	addSearchFlags(cmd)
	flags := cmd.Flags()
	flags.StringVarP(&o.format, "format", "f", "text", "output format: text, json, indexed or csv")
	flags.StringSliceVar(&o.hideNodeTypes, "hide-node-type", nil, "hide nodes of this type (Endpoint, File, Port, Process)")
	flags.StringSliceVar(&o.hideLinkKinds, "hide-link-kind", nil, "hide links of this kind (PortLink, FileVersionLink, NetworkActivityLink)")
	flags.StringSliceVar(&o.hideHosts, "hide-host", nil, "hide nodes on this host")
	flags.StringSliceVar(&o.hideColors, "hide-color", nil, "hide an intensity color of a traffic kind, as KIND=COLOR")
	flags.BoolVar(&o.group, "group", false, "group nodes by host in indexed output")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

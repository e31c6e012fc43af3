// Package csvexport writes the links of a displayed graph as CSV so that a
// window of interest can be handed to spreadsheet tooling.
package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cdtdelta/4n6graph/internal/aggregate"
	"github.com/cdtdelta/4n6graph/internal/filter"
)

// Header is the column layout of an exported link table.
var Header = []string{
	"id", "kind", "source", "source_type", "source_host",
	"target", "target_type", "target_host",
	"total_bytes", "byte_proportion", "events", "color",
}

// WriteLinks writes one row per displayed link. Port links leave the traffic
// columns empty.
func WriteLinks(w io.Writer, g *filter.DisplayedGraph, sc filter.Scales) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, l := range g.Links {
		src, dst := l.SourceNode(), l.TargetNode()
		row := []string{
			l.LinkID(),
			string(l.Kind()),
			src.NodeID(),
			string(src.NodeType()),
			src.Host(),
			dst.NodeID(),
			string(dst.NodeType()),
			dst.Host(),
			"", "", "", "",
		}
		if tl, ok := l.(aggregate.TrafficLink); ok {
			t := tl.Stats()
			row[8] = strconv.FormatInt(t.TotalBytes, 10)
			row[9] = strconv.FormatFloat(t.ByteProportion, 'f', 6, 64)
			row[10] = strconv.Itoa(len(t.MemberEventIDs))
			row[11] = sc.Color(l)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteLinksFile writes the link table to path.
func WriteLinksFile(path string, g *filter.DisplayedGraph, sc filter.Scales) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	if err := WriteLinks(f, g, sc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Package render draws a displayed graph and the event timeline as text for
// terminals. Link colors come from the intensity scales.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/cdtdelta/4n6graph/internal/aggregate"
	"github.com/cdtdelta/4n6graph/internal/filter"
	"github.com/cdtdelta/4n6graph/internal/model"
	"github.com/cdtdelta/4n6graph/internal/quantile"
	"github.com/cdtdelta/4n6graph/internal/timeindex"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("33"))
	nodeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).PaddingLeft(2)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	portStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).PaddingLeft(2)
)

func nodeLabel(n model.Node) string {
	switch v := n.(type) {
	case *model.Port:
		return fmt.Sprintf("%s :%d", v.ID, v.PortNumber)
	case *model.Process:
		if v.Name != "" {
			return fmt.Sprintf("%s (%s)", v.ID, v.Name)
		}
	case *model.File:
		if v.Path != "" {
			return fmt.Sprintf("%s %s", v.ID, v.Path)
		}
	case *model.Endpoint:
		if v.HostIP != "" {
			return fmt.Sprintf("%s %s", v.ID, v.HostIP)
		}
	}
	return n.NodeID()
}

// Graph writes the nodes grouped by type and the links grouped by kind.
func Graph(w io.Writer, g *filter.DisplayedGraph, sc filter.Scales) error {
	var b strings.Builder

	byType := make(map[model.NodeType][]model.Node)
	for _, n := range g.Nodes {
		byType[n.NodeType()] = append(byType[n.NodeType()], n)
	}
	for _, t := range model.NodeTypes {
		nodes := byType[t]
		if len(nodes) == 0 {
			continue
		}
		b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", t, len(nodes))))
		b.WriteString("\n")
		for _, n := range nodes {
			b.WriteString(nodeStyle.Render(nodeLabel(n)))
			b.WriteString(" " + dimStyle.Render(n.Host()) + "\n")
		}
	}

	byKind := make(map[model.LinkKind][]aggregate.Link)
	for _, l := range g.Links {
		byKind[l.Kind()] = append(byKind[l.Kind()], l)
	}
	for _, k := range model.LinkKinds {
		links := byKind[k]
		if len(links) == 0 {
			continue
		}
		b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", k, len(links))))
		b.WriteString("\n")
		for _, l := range links {
			tl, ok := l.(aggregate.TrafficLink)
			if !ok {
				b.WriteString(portStyle.Render(l.LinkID()) + "\n")
				continue
			}
			t := tl.Stats()
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(sc.Color(l))).PaddingLeft(2)
			b.WriteString(style.Render(l.LinkID()))
			b.WriteString(dimStyle.Render(fmt.Sprintf("  %s  %.1f%%  %d events",
				humanize.IBytes(uint64(t.TotalBytes)), t.ByteProportion*100, len(t.MemberEventIDs))))
			b.WriteString("\n")
		}
		if ks := sc.For(k); ks.Len() > 0 {
			legend(&b, ks)
		}
	}
	if len(g.Nodes) == 0 {
		b.WriteString(dimStyle.Render("no data in this window") + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// legend writes the scale domain and one swatch per bucket labelled with
// the bucket's lower bound.
func legend(b *strings.Builder, sc quantile.Scale) {
	lo, hi := sc.Domain()
	b.WriteString(dimStyle.Render(fmt.Sprintf("  scale %.1f%%-%.1f%%", lo*100, hi*100)))
	th := sc.Thresholds()
	if len(th) == 0 {
		b.WriteString(" " + swatch(quantile.Buckets-1, lo) + "\n")
		return
	}
	for i := 0; i < quantile.Buckets; i++ {
		from := lo
		if i > 0 {
			from = th[i-1]
		}
		b.WriteString(" " + swatch(i, from))
	}
	b.WriteString("\n")
}

func swatch(bucket int, from float64) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(quantile.Colors[bucket]))
	return style.Render("■") + dimStyle.Render(fmt.Sprintf(">=%.1f%%", from*100))
}

// Histogram writes one bar per bucket, scaled to width characters.
func Histogram(w io.Writer, buckets []timeindex.Bucket, width int) error {
	if width <= 0 {
		width = 40
	}
	peak := 0
	for _, bk := range buckets {
		if c := bk.Count(); c > peak {
			peak = c
		}
	}
	barStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#9096f8"))

	var b strings.Builder
	for _, bk := range buckets {
		n := 0
		if peak > 0 {
			n = bk.Count() * width / peak
		}
		fmt.Fprintf(&b, "%13d %s %s\n", bk.Timestamp,
			barStyle.Render(strings.Repeat("█", n)),
			dimStyle.Render(humanize.Comma(int64(bk.Count()))))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

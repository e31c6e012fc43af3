// Package filter composes the independent analyst filters over an active
// window graph into the graph that is finally displayed.
package filter

import (
	"github.com/samber/lo"

	"github.com/cdtdelta/4n6graph/internal/aggregate"
	"github.com/cdtdelta/4n6graph/internal/model"
	"github.com/cdtdelta/4n6graph/internal/quantile"
	"github.com/cdtdelta/4n6graph/internal/window"
)

// DisplayedGraph is closed: every link endpoint is a node, and every node
// is the endpoint of at least one link.
type DisplayedGraph struct {
	Nodes []model.Node     `json:"nodes"`
	Links []aggregate.Link `json:"links"`
}

// Scales holds the intensity scale of each traffic link kind.
type Scales struct {
	FileVersion     quantile.Scale
	NetworkActivity quantile.Scale
}

// ScalesFor builds the scales over the active links of each kind. A kind
// whose window total is zero has no defined proportions and gets the empty
// scale.
func ScalesFor(a *window.Active) Scales {
	return Scales{
		FileVersion:     scaleFor(a, model.LinkFileVersion),
		NetworkActivity: scaleFor(a, model.LinkNetworkActivity),
	}
}

func scaleFor(a *window.Active, k model.LinkKind) quantile.Scale {
	if a.TotalBytes(k) == 0 {
		return quantile.Scale{}
	}
	return quantile.New(a.Proportions(k))
}

// For returns the scale of a traffic kind. Other kinds get the zero scale.
func (s Scales) For(k model.LinkKind) quantile.Scale {
	switch k {
	case model.LinkFileVersion:
		return s.FileVersion
	case model.LinkNetworkActivity:
		return s.NetworkActivity
	}
	return quantile.Scale{}
}

// Color returns the intensity color of a traffic link. Port links and links
// of a kind without a scale get "".
func (s Scales) Color(l aggregate.Link) string {
	tl, ok := l.(aggregate.TrafficLink)
	if !ok {
		return ""
	}
	sc := s.For(l.Kind())
	if sc.Len() == 0 {
		return ""
	}
	return sc.Color(tl.Stats().ByteProportion)
}

// Compose applies the filters in a fixed order: hidden link kinds, hidden
// color buckets, hidden hosts and node types, dangling links, and finally
// nodes left without links. It does not modify its inputs.
func Compose(a *window.Active, st *State) *DisplayedGraph {
	scales := ScalesFor(a)

	links := lo.Filter(a.Links(), func(l aggregate.Link, _ int) bool {
		if st.HiddenLinkKinds[l.Kind()] {
			return false
		}
		tl, ok := l.(aggregate.TrafficLink)
		if !ok {
			return true
		}
		sc := scales.For(l.Kind())
		if sc.Len() == 0 {
			return true
		}
		return !st.ColorHidden(l.Kind(), sc.Bucket(tl.Stats().ByteProportion))
	})

	kept := make(map[model.NodeKey]bool)
	for _, n := range a.Nodes() {
		if st.HiddenHosts[n.Host()] || st.HiddenNodeTypes[n.NodeType()] {
			continue
		}
		kept[model.KeyOf(n)] = true
	}

	links = lo.Filter(links, func(l aggregate.Link, _ int) bool {
		return kept[model.KeyOf(l.SourceNode())] && kept[model.KeyOf(l.TargetNode())]
	})

	used := make(map[model.NodeKey]bool, len(kept))
	for _, l := range links {
		used[model.KeyOf(l.SourceNode())] = true
		used[model.KeyOf(l.TargetNode())] = true
	}
	nodes := lo.Filter(a.Nodes(), func(n model.Node, _ int) bool {
		return used[model.KeyOf(n)]
	})

	return &DisplayedGraph{Nodes: nodes, Links: links}
}

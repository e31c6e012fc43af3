package filter

import (
	"github.com/cdtdelta/4n6graph/internal/aggregate"
	"github.com/cdtdelta/4n6graph/internal/model"
)

// IndexedNode is a node in the form expected by force-layout renderers.
type IndexedNode struct {
	ID     string         `json:"id"`
	Type   model.NodeType `json:"type"`
	Host   string         `json:"host"`
	Parent string         `json:"parent,omitempty"`
	Data   model.Node     `json:"data"`
}

// IndexedLink refers to its endpoints by position in Indexed.Nodes.
type IndexedLink struct {
	ID             string         `json:"id"`
	Kind           model.LinkKind `json:"kind"`
	Source         int            `json:"source"`
	Target         int            `json:"target"`
	ByteProportion *float64       `json:"byteProportion,omitempty"`
	Color          string         `json:"color,omitempty"`
}

// Indexed is a renderer-ready copy of a DisplayedGraph.
type Indexed struct {
	Nodes  []IndexedNode `json:"nodes"`
	Links  []IndexedLink `json:"links"`
	Groups []string      `json:"groups,omitempty"`
}

// IndexedGraph converts g into index form. When grouping is set, every node
// gets its host name as parent and Groups lists the hosts in first-seen order.
func IndexedGraph(g *DisplayedGraph, sc Scales, grouping bool) *Indexed {
	out := &Indexed{
		Nodes: make([]IndexedNode, 0, len(g.Nodes)),
		Links: make([]IndexedLink, 0, len(g.Links)),
	}
	pos := make(map[model.NodeKey]int, len(g.Nodes))
	seenHost := make(map[string]bool)
	for i, n := range g.Nodes {
		pos[model.KeyOf(n)] = i
		in := IndexedNode{ID: n.NodeID(), Type: n.NodeType(), Host: n.Host(), Data: n}
		if grouping {
			in.Parent = n.Host()
			if !seenHost[n.Host()] {
				seenHost[n.Host()] = true
				out.Groups = append(out.Groups, n.Host())
			}
		}
		out.Nodes = append(out.Nodes, in)
	}
	for _, l := range g.Links {
		il := IndexedLink{
			ID:     l.LinkID(),
			Kind:   l.Kind(),
			Source: pos[model.KeyOf(l.SourceNode())],
			Target: pos[model.KeyOf(l.TargetNode())],
			Color:  sc.Color(l),
		}
		if tl, ok := l.(aggregate.TrafficLink); ok {
			p := tl.Stats().ByteProportion
			il.ByteProportion = &p
		}
		out.Links = append(out.Links, il)
	}
	return out
}

package aggregate

import (
	"encoding/json"

	"github.com/cdtdelta/4n6graph/internal/model"
)

// Link is the sum type over the three aggregate link variants:
// *PortLink, *FileVersionLink and *NetworkActivityLink. The unexported
// marker keeps the set closed.
type Link interface {
	LinkID() string
	Kind() model.LinkKind
	SourceNode() model.Node
	TargetNode() model.Node
	isLink()
}

// TrafficLink is a Link derived from raw events.
type TrafficLink interface {
	Link
	Stats() *Traffic
	// WithTraffic returns a copy of the link carrying t.
	WithTraffic(t Traffic) TrafficLink
}

// Traffic holds the accumulated byte counts of an event-derived link.
// MemberEventIDs is shared between copies and must be treated as read-only.
type Traffic struct {
	ID             string   `json:"id"`
	TotalBytes     int64    `json:"totalBytes"`
	ByteProportion float64  `json:"byteProportion"`
	MemberEventIDs []string `json:"memberEventIds"`
}

// LinkID returns the `source->target` identifier used by every variant.
func LinkID(source, target string) string {
	return source + "->" + target
}

// FileVersionLink aggregates file versions written by one process to one file.
type FileVersionLink struct {
	Traffic
	Source *model.Process
	Target *model.File
}

// NetworkActivityLink aggregates network activity from one port to another.
type NetworkActivityLink struct {
	Traffic
	Source *model.Port
	Target *model.Port
}

// PortLink is the structural link from a port to the process that owns it,
// or to the endpoint of its host when no process owns it.
type PortLink struct {
	ID    string
	Port  *model.Port
	Owner model.Node
}

func (l *FileVersionLink) LinkID() string         { return l.ID }
func (l *FileVersionLink) Kind() model.LinkKind   { return model.LinkFileVersion }
func (l *FileVersionLink) SourceNode() model.Node { return l.Source }
func (l *FileVersionLink) TargetNode() model.Node { return l.Target }
func (l *FileVersionLink) Stats() *Traffic        { return &l.Traffic }
func (l *FileVersionLink) isLink()                {}

func (l *FileVersionLink) WithTraffic(t Traffic) TrafficLink {
	c := *l
	c.Traffic = t
	return &c
}

func (l *NetworkActivityLink) LinkID() string         { return l.ID }
func (l *NetworkActivityLink) Kind() model.LinkKind   { return model.LinkNetworkActivity }
func (l *NetworkActivityLink) SourceNode() model.Node { return l.Source }
func (l *NetworkActivityLink) TargetNode() model.Node { return l.Target }
func (l *NetworkActivityLink) Stats() *Traffic        { return &l.Traffic }
func (l *NetworkActivityLink) isLink()                {}

func (l *NetworkActivityLink) WithTraffic(t Traffic) TrafficLink {
	c := *l
	c.Traffic = t
	return &c
}

func (l *PortLink) LinkID() string         { return l.ID }
func (l *PortLink) Kind() model.LinkKind   { return model.LinkPort }
func (l *PortLink) SourceNode() model.Node { return l.Port }
func (l *PortLink) TargetNode() model.Node { return l.Owner }
func (l *PortLink) isLink()                {}

// linkJSON is the wire form handed to graph-drawing collaborators.
type linkJSON struct {
	ID             string         `json:"id"`
	Kind           model.LinkKind `json:"kind"`
	Source         string         `json:"source"`
	Target         string         `json:"target"`
	TotalBytes     int64          `json:"totalBytes,omitempty"`
	ByteProportion *float64       `json:"byteProportion,omitempty"`
	EventCount     int            `json:"eventCount,omitempty"`
}

func trafficJSON(l TrafficLink) ([]byte, error) {
	t := l.Stats()
	p := t.ByteProportion
	return json.Marshal(linkJSON{
		ID:             t.ID,
		Kind:           l.Kind(),
		Source:         l.SourceNode().NodeID(),
		Target:         l.TargetNode().NodeID(),
		TotalBytes:     t.TotalBytes,
		ByteProportion: &p,
		EventCount:     len(t.MemberEventIDs),
	})
}

func (l *FileVersionLink) MarshalJSON() ([]byte, error)     { return trafficJSON(l) }
func (l *NetworkActivityLink) MarshalJSON() ([]byte, error) { return trafficJSON(l) }

func (l *PortLink) MarshalJSON() ([]byte, error) {
	return json.Marshal(linkJSON{
		ID:     l.ID,
		Kind:   model.LinkPort,
		Source: l.Port.ID,
		Target: l.Owner.NodeID(),
	})
}

// Package aggregate collapses raw events sharing a (source, target) pair into
// one directed aggregate link per pair, and synthesizes the structural port
// links from the port entities.
package aggregate

import (
	"fmt"
	"sort"

	"github.com/cdtdelta/4n6graph/internal/dataset"
	"github.com/cdtdelta/4n6graph/internal/model"
)

// Diagnostic records an input record that could not be turned into a link.
type Diagnostic struct {
	EventID string         `json:"eventId"`
	Kind    model.LinkKind `json:"kind"`
	Reason  string         `json:"reason"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s: %s", d.Kind, d.EventID, d.Reason)
}

// Result holds the links of every kind for one dataset.
type Result struct {
	FileVersions      []*FileVersionLink
	NetworkActivities []*NetworkActivityLink
	PortLinks         []*PortLink
	Diagnostics       []Diagnostic
}

// TrafficLinks returns the event-derived links of both kinds.
func (r *Result) TrafficLinks() []TrafficLink {
	out := make([]TrafficLink, 0, len(r.FileVersions)+len(r.NetworkActivities))
	for _, l := range r.FileVersions {
		out = append(out, l)
	}
	for _, l := range r.NetworkActivities {
		out = append(out, l)
	}
	return out
}

// Aggregate builds every link kind over the dataset's full search range.
func Aggregate(ds *dataset.Dataset) *Result {
	r := &Result{}
	var diags []Diagnostic

	r.FileVersions, diags = FileVersions(ds.Catalog, ds.Events.FileVersions(), ds.Range)
	r.Diagnostics = append(r.Diagnostics, diags...)

	r.NetworkActivities, diags = NetworkActivities(ds.Catalog, ds.Events.NetworkActivities(), ds.Range)
	r.Diagnostics = append(r.Diagnostics, diags...)

	r.PortLinks, diags = PortLinks(ds.Catalog, ds.Catalog.Ports())
	r.Diagnostics = append(r.Diagnostics, diags...)
	return r
}

// group accumulates the events of one (source, target) pair.
type group struct {
	traffic Traffic
	source  string
	target  string
}

type accumulator struct {
	groups map[string]*group
	total  int64
}

func newAccumulator() *accumulator {
	return &accumulator{groups: make(map[string]*group)}
}

func (a *accumulator) add(eventID, source, target string, size int64) {
	id := LinkID(source, target)
	g, ok := a.groups[id]
	if !ok {
		g = &group{traffic: Traffic{ID: id}, source: source, target: target}
		a.groups[id] = g
	}
	g.traffic.TotalBytes += size
	g.traffic.MemberEventIDs = append(g.traffic.MemberEventIDs, eventID)
	a.total += size
}

// finish computes byte proportions and returns the groups sorted by id.
// When the kind's total is zero every proportion is 0.
func (a *accumulator) finish() []*group {
	out := make([]*group, 0, len(a.groups))
	for _, g := range a.groups {
		if a.total > 0 {
			g.traffic.ByteProportion = float64(g.traffic.TotalBytes) / float64(a.total)
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].traffic.ID < out[j].traffic.ID })
	return out
}

// FileVersions aggregates file version events with timestamps in rng
// (half-open). Events whose process or file is unknown are dropped with a
// diagnostic.
func FileVersions(cat *dataset.Catalog, events []model.FileVersion, rng model.Range) ([]*FileVersionLink, []Diagnostic) {
	var diags []Diagnostic
	acc := newAccumulator()
	for _, ev := range events {
		if !rng.Contains(ev.Timestamp) {
			continue
		}
		if ev.Size < 0 {
			diags = append(diags, Diagnostic{ev.ID, model.LinkFileVersion, fmt.Sprintf("negative size %d", ev.Size)})
			continue
		}
		if _, ok := cat.Process(ev.Source); !ok {
			diags = append(diags, Diagnostic{ev.ID, model.LinkFileVersion, "unknown source process " + ev.Source})
			continue
		}
		if _, ok := cat.File(ev.Target); !ok {
			diags = append(diags, Diagnostic{ev.ID, model.LinkFileVersion, "unknown target file " + ev.Target})
			continue
		}
		acc.add(ev.ID, ev.Source, ev.Target, ev.Size)
	}

	groups := acc.finish()
	links := make([]*FileVersionLink, 0, len(groups))
	for _, g := range groups {
		src, _ := cat.Process(g.source)
		dst, _ := cat.File(g.target)
		links = append(links, &FileVersionLink{Traffic: g.traffic, Source: src, Target: dst})
	}
	return links, diags
}

// NetworkActivities aggregates network activity events with timestamps in
// rng (half-open). Events whose ports are unknown are dropped with a diagnostic.
func NetworkActivities(cat *dataset.Catalog, events []model.NetworkActivity, rng model.Range) ([]*NetworkActivityLink, []Diagnostic) {
	var diags []Diagnostic
	acc := newAccumulator()
	for _, ev := range events {
		if !rng.Contains(ev.Timestamp) {
			continue
		}
		if ev.Size < 0 {
			diags = append(diags, Diagnostic{ev.ID, model.LinkNetworkActivity, fmt.Sprintf("negative size %d", ev.Size)})
			continue
		}
		if _, ok := cat.Port(ev.Source); !ok {
			diags = append(diags, Diagnostic{ev.ID, model.LinkNetworkActivity, "unknown source port " + ev.Source})
			continue
		}
		if _, ok := cat.Port(ev.Target); !ok {
			diags = append(diags, Diagnostic{ev.ID, model.LinkNetworkActivity, "unknown target port " + ev.Target})
			continue
		}
		acc.add(ev.ID, ev.Source, ev.Target, ev.Size)
	}

	groups := acc.finish()
	links := make([]*NetworkActivityLink, 0, len(groups))
	for _, g := range groups {
		src, _ := cat.Port(g.source)
		dst, _ := cat.Port(g.target)
		links = append(links, &NetworkActivityLink{Traffic: g.traffic, Source: src, Target: dst})
	}
	return links, diags
}

// PortLinks synthesizes one link per (port, owning process), or one link
// per (port, host endpoint) for ports without an owning process.
// The result is sorted by id.
func PortLinks(cat *dataset.Catalog, ports []*model.Port) ([]*PortLink, []Diagnostic) {
	var (
		links []*PortLink
		diags []Diagnostic
	)
	for _, port := range ports {
		if port.OwnedByProcess() {
			for _, pid := range port.ProcessIDs {
				proc, ok := cat.Process(pid)
				if !ok {
					diags = append(diags, Diagnostic{port.ID, model.LinkPort, "unknown owning process " + pid})
					continue
				}
				links = append(links, &PortLink{ID: LinkID(port.ID, proc.ID), Port: port, Owner: proc})
			}
			continue
		}
		ep, ok := cat.EndpointByHost(port.HostName)
		if !ok {
			diags = append(diags, Diagnostic{port.ID, model.LinkPort, "no endpoint for host " + port.HostName})
			continue
		}
		links = append(links, &PortLink{ID: LinkID(port.ID, ep.ID), Port: port, Owner: ep})
	}
	sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
	return links, diags
}

// Package window answers which entities and links are active in a brushed
// time window, using only per-bucket index lookups.
package window

import (
	"github.com/cdtdelta/4n6graph/internal/aggregate"
	"github.com/cdtdelta/4n6graph/internal/dataset"
	"github.com/cdtdelta/4n6graph/internal/model"
	"github.com/cdtdelta/4n6graph/internal/timeindex"
)

// Active is the pre-filter graph of one window. Traffic links are fresh
// copies carrying byte totals and proportions for the window only.
type Active struct {
	Window model.Range
	Lo, Hi int64

	Endpoints []*model.Endpoint
	Files     []*model.File
	Ports     []*model.Port
	Processes []*model.Process

	PortLinks            []*aggregate.PortLink
	FileVersionLinks     []*aggregate.FileVersionLink
	NetworkActivityLinks []*aggregate.NetworkActivityLink
}

// Empty reports whether the window holds no nodes and no links.
func (a *Active) Empty() bool {
	return len(a.Endpoints)+len(a.Files)+len(a.Ports)+len(a.Processes) == 0 &&
		len(a.PortLinks)+len(a.FileVersionLinks)+len(a.NetworkActivityLinks) == 0
}

// Nodes returns every active node: endpoints, files, ports, then processes.
func (a *Active) Nodes() []model.Node {
	out := make([]model.Node, 0, len(a.Endpoints)+len(a.Files)+len(a.Ports)+len(a.Processes))
	for _, n := range a.Endpoints {
		out = append(out, n)
	}
	for _, n := range a.Files {
		out = append(out, n)
	}
	for _, n := range a.Ports {
		out = append(out, n)
	}
	for _, n := range a.Processes {
		out = append(out, n)
	}
	return out
}

// Links returns every active link: port links, file versions, then network
// activities.
func (a *Active) Links() []aggregate.Link {
	out := make([]aggregate.Link, 0, len(a.PortLinks)+len(a.FileVersionLinks)+len(a.NetworkActivityLinks))
	for _, l := range a.PortLinks {
		out = append(out, l)
	}
	for _, l := range a.FileVersionLinks {
		out = append(out, l)
	}
	for _, l := range a.NetworkActivityLinks {
		out = append(out, l)
	}
	return out
}

// TotalBytes returns the window byte total of the active links of a traffic kind.
func (a *Active) TotalBytes(kind model.LinkKind) int64 {
	var total int64
	switch kind {
	case model.LinkFileVersion:
		for _, l := range a.FileVersionLinks {
			total += l.TotalBytes
		}
	case model.LinkNetworkActivity:
		for _, l := range a.NetworkActivityLinks {
			total += l.TotalBytes
		}
	}
	return total
}

// Proportions returns the byte proportions of the active links of a traffic kind.
func (a *Active) Proportions(kind model.LinkKind) []float64 {
	var out []float64
	switch kind {
	case model.LinkFileVersion:
		for _, l := range a.FileVersionLinks {
			out = append(out, l.ByteProportion)
		}
	case model.LinkNetworkActivity:
		for _, l := range a.NetworkActivityLinks {
			out = append(out, l.ByteProportion)
		}
	}
	return out
}

// Engine runs window queries against one built dataset. It never mutates
// the dataset, the aggregates or the index.
type Engine struct {
	ds  *dataset.Dataset
	agg *aggregate.Result
	ix  *timeindex.Index
}

func NewEngine(ds *dataset.Dataset, agg *aggregate.Result, ix *timeindex.Index) *Engine {
	return &Engine{ds: ds, agg: agg, ix: ix}
}

// Granularity returns the bucket width of the underlying index.
func (e *Engine) Granularity() int64 { return e.ix.Granularity() }

// Query returns the active graph for the window w = [Start, End], clamped to
// the search range. A window with Start >= End, or one wholly outside the
// search range, yields an empty result whose Window is not Valid.
func (e *Engine) Query(w model.Range) *Active {
	out := &Active{Window: w}
	if !w.Valid() {
		return out
	}
	w = w.Clamp(e.ds.Range)
	out.Window = w
	if !w.Valid() {
		return out
	}
	out.Lo, out.Hi = e.ix.Bounds(w)

	out.FileVersionLinks = selectTraffic(e.agg.FileVersions, e.ix, out.Lo, out.Hi)
	out.NetworkActivityLinks = selectTraffic(e.agg.NetworkActivities, e.ix, out.Lo, out.Hi)

	active := make(map[model.NodeKey]bool)
	for _, l := range out.FileVersionLinks {
		active[model.KeyOf(l.Source)] = true
		active[model.KeyOf(l.Target)] = true
	}
	for _, l := range out.NetworkActivityLinks {
		active[model.KeyOf(l.Source)] = true
		active[model.KeyOf(l.Target)] = true
	}

	cat := e.ds.Catalog
	selectedPorts := make(map[string]bool)
	for _, p := range cat.Ports() {
		if active[model.KeyOf(p)] || p.OwnedByProcess() {
			out.Ports = append(out.Ports, p)
			selectedPorts[p.ID] = true
		}
	}
	for _, f := range cat.Files() {
		if active[model.KeyOf(f)] {
			out.Files = append(out.Files, f)
		}
	}

	for _, l := range e.agg.PortLinks {
		if selectedPorts[l.Port.ID] {
			out.PortLinks = append(out.PortLinks, l)
			active[model.KeyOf(l.Owner)] = true
		}
	}

	for _, ep := range cat.Endpoints() {
		if active[model.KeyOf(ep)] {
			out.Endpoints = append(out.Endpoints, ep)
		}
	}
	for _, p := range cat.Processes() {
		if active[model.KeyOf(p)] {
			out.Processes = append(out.Processes, p)
		}
	}
	return out
}

// selectTraffic keeps the links with at least one bucket in [lo, hi] and
// returns copies whose byte totals and proportions cover that range only.
// When the window total is zero every proportion is 0.
func selectTraffic[L aggregate.TrafficLink](links []L, ix *timeindex.Index, lo, hi int64) []L {
	var (
		selected []L
		bytes    []int64
		total    int64
	)
	for _, l := range links {
		id := l.LinkID()
		if !ix.ActiveIn(id, lo, hi) {
			continue
		}
		b := ix.BytesIn(id, lo, hi)
		selected = append(selected, l)
		bytes = append(bytes, b)
		total += b
	}
	if len(selected) == 0 {
		return nil
	}

	out := make([]L, len(selected))
	for i, l := range selected {
		t := *l.Stats()
		t.TotalBytes = bytes[i]
		t.ByteProportion = 0
		if total > 0 {
			t.ByteProportion = float64(bytes[i]) / float64(total)
		}
		t.MemberEventIDs = t.MemberEventIDs[:len(t.MemberEventIDs):len(t.MemberEventIDs)]
		out[i] = l.WithTraffic(t).(L)
	}
	return out
}

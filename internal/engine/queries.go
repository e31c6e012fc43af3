package engine

import (
	"fmt"

	"github.com/cdtdelta/4n6graph/internal/aggregate"
	"github.com/cdtdelta/4n6graph/internal/filter"
	"github.com/cdtdelta/4n6graph/internal/model"
	"github.com/cdtdelta/4n6graph/internal/timeindex"
)

// Graph returns the current displayed graph. It is empty before the first
// search. Callers must not modify it.
func (s *Session) Graph() *filter.DisplayedGraph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph
}

// IndexedGraph returns a renderer-ready copy of the displayed graph.
func (s *Session) IndexedGraph() *filter.Indexed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filter.IndexedGraph(s.graph, s.scales, s.state.Grouping)
}

// Scales returns the intensity scales of the current window.
func (s *Session) Scales() filter.Scales {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scales
}

// View returns the displayed graph together with the scales it was colored
// with, read under one lock.
func (s *Session) View() (*filter.DisplayedGraph, filter.Scales) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph, s.scales
}

// Filters returns the current filter settings.
func (s *Session) Filters() filter.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Settings()
}

// Window returns the current window, clamped to the search range.
func (s *Session) Window() model.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return s.active.Window
	}
	return s.win
}

func (s *Session) Granularity() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.granularity
}

// SearchID returns the id of the installed search, or "".
func (s *Session) SearchID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return ""
	}
	return s.cur.id
}

// Histogram returns the event timeline over the whole search range.
func (s *Session) Histogram() ([]timeindex.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return nil, ErrNoData
	}
	return append([]timeindex.Bucket(nil), s.cur.histogram...), nil
}

// BrushedHistogram returns the timeline buckets inside the current window.
func (s *Session) BrushedHistogram() ([]timeindex.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return nil, ErrNoData
	}
	if !s.active.Window.Valid() {
		return nil, nil
	}
	return timeindex.Brush(s.cur.histogram, s.active.Lo, s.active.Hi), nil
}

// ActiveHosts returns "localhost" followed by the endpoint host names.
func (s *Session) ActiveHosts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return []string{"localhost"}
	}
	return s.cur.ds.Catalog.Hosts()
}

// Diagnostics returns the records dropped by the installed search.
func (s *Session) Diagnostics() []aggregate.Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return nil
	}
	return append([]aggregate.Diagnostic(nil), s.cur.agg.Diagnostics...)
}

// Details describes one displayed node or link.
type Details struct {
	ID   string         `json:"id"`
	Node model.Node     `json:"node,omitempty"`
	Link aggregate.Link `json:"link,omitempty"`
	// Links holds the displayed links incident to Node.
	Links []aggregate.Link `json:"links,omitempty"`
	// Member events of Link that fall inside the window.
	FileVersions      []model.FileVersion     `json:"fileVersions,omitempty"`
	NetworkActivities []model.NetworkActivity `json:"networkActivities,omitempty"`
}

// Details returns the displayed node or link with the given id.
func (s *Session) Details(id string) (*Details, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return nil, ErrNoData
	}

	for _, l := range s.graph.Links {
		if l.LinkID() != id {
			continue
		}
		d := &Details{ID: id, Link: l}
		tl, ok := l.(aggregate.TrafficLink)
		if !ok {
			return d, nil
		}
		g := s.cur.ix.Granularity()
		events := s.cur.ds.Events
		for _, eid := range tl.Stats().MemberEventIDs {
			switch l.Kind() {
			case model.LinkFileVersion:
				if fv, ok := events.FileVersion(eid); ok && s.inWindow(fv.Timestamp, g) {
					d.FileVersions = append(d.FileVersions, fv)
				}
			case model.LinkNetworkActivity:
				if na, ok := events.NetworkActivity(eid); ok && s.inWindow(na.Timestamp, g) {
					d.NetworkActivities = append(d.NetworkActivities, na)
				}
			}
		}
		return d, nil
	}

	for _, n := range s.graph.Nodes {
		if n.NodeID() != id {
			continue
		}
		d := &Details{ID: id, Node: n}
		for _, l := range s.graph.Links {
			if l.SourceNode().NodeID() == id || l.TargetNode().NodeID() == id {
				d.Links = append(d.Links, l)
			}
		}
		return d, nil
	}
	return nil, fmt.Errorf("details %q: %w", id, ErrNotFound)
}

func (s *Session) inWindow(ts, g int64) bool {
	b := timeindex.BucketOf(ts, g)
	return b >= s.active.Lo && b <= s.active.Hi
}

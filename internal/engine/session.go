// Package engine owns the analysis pipeline for one analyst session: it runs
// searches against a Source, rebuilds the aggregates and the time index, and
// recomputes the displayed graph on every window or filter interaction.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cdtdelta/4n6graph/internal/aggregate"
	"github.com/cdtdelta/4n6graph/internal/dataset"
	"github.com/cdtdelta/4n6graph/internal/filter"
	"github.com/cdtdelta/4n6graph/internal/model"
	"github.com/cdtdelta/4n6graph/internal/quantile"
	"github.com/cdtdelta/4n6graph/internal/timeindex"
	"github.com/cdtdelta/4n6graph/internal/window"
)

var (
	// ErrStaleSearch is returned by RunSearch when a newer search was issued
	// while this one was loading. The session state is left untouched.
	ErrStaleSearch = errors.New("search superseded by a newer search")
	// ErrNoData is returned by queries that need a completed search.
	ErrNoData = errors.New("no search has completed")
	// ErrNotFound is returned by Details for an id that is not displayed.
	ErrNotFound = errors.New("not found")
)

// GranularityOptions are the bucket widths offered to the analyst, in ms.
var GranularityOptions = timeindex.GranularityOptions

// Source provides telemetry for searches.
type Source interface {
	// DataAvailability returns the overall span of stored events.
	DataAvailability(ctx context.Context) (model.Range, error)
	// AnalysisData returns every entity and the events with
	// rng.Start <= timestamp <= rng.End.
	AnalysisData(ctx context.Context, rng model.Range) (*dataset.Payload, error)
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithGranularity sets the initial bucket width in ms.
func WithGranularity(g int64) Option {
	return func(s *Session) {
		if g > 0 {
			s.granularity = g
		}
	}
}

// build is everything derived from one search.
type build struct {
	id        string
	ds        *dataset.Dataset
	agg       *aggregate.Result
	ix        *timeindex.Index
	engine    *window.Engine
	histogram []timeindex.Bucket
}

// Session serializes interactions: every method runs to completion under
// the session lock. Only the loading phase of RunSearch happens outside it.
type Session struct {
	src Source
	log *zap.Logger

	mu          sync.Mutex
	generation  uint64
	granularity int64
	cur         *build
	win         model.Range
	state       *filter.State
	active      *window.Active
	scales      filter.Scales
	graph       *filter.DisplayedGraph
}

func NewSession(src Source, opts ...Option) *Session {
	s := &Session{
		src:         src,
		log:         zap.NewNop(),
		granularity: timeindex.DefaultGranularity,
		state:       filter.NewState(),
		graph:       emptyGraph(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func emptyGraph() *filter.DisplayedGraph {
	return &filter.DisplayedGraph{Nodes: []model.Node{}, Links: []aggregate.Link{}}
}

// Availability returns the span of data the source can serve.
func (s *Session) Availability(ctx context.Context) (model.Range, error) {
	rng, err := s.src.DataAvailability(ctx)
	if err != nil {
		return model.Range{}, fmt.Errorf("data availability: %w", err)
	}
	return rng, nil
}

// RunSearch loads [t0, t1] from the source and replaces the dataset, the
// aggregates and the index wholesale. The window resets to the search range.
// If another search is issued before this one finishes loading, this one
// returns ErrStaleSearch and changes nothing.
func (s *Session) RunSearch(ctx context.Context, t0, t1 int64) (*filter.DisplayedGraph, error) {
	rng := model.Range{Start: t0, End: t1}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	g := s.granularity
	s.mu.Unlock()

	id := uuid.NewString()
	started := time.Now()
	log := s.log.With(zap.String("search_id", id))

	payload := &dataset.Payload{}
	if rng.Valid() {
		p, err := s.src.AnalysisData(ctx, rng)
		if err != nil {
			return nil, fmt.Errorf("run search %s: %w", id, err)
		}
		payload = p
	}
	b, err := s.build(id, rng, payload, g)
	if err != nil {
		return nil, fmt.Errorf("run search %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		log.Debug("discarding stale search result", zap.Uint64("generation", gen), zap.Uint64("latest", s.generation))
		return nil, ErrStaleSearch
	}
	if s.granularity != g {
		if err := s.reindex(b, s.granularity); err != nil {
			return nil, fmt.Errorf("run search %s: %w", id, err)
		}
	}

	for _, d := range b.agg.Diagnostics {
		log.Warn("dropped record", zap.String("event_id", d.EventID), zap.String("kind", string(d.Kind)), zap.String("reason", d.Reason))
	}
	s.cur = b
	s.win = rng
	s.recompute()

	log.Info("search complete",
		zap.Int64("start", t0),
		zap.Int64("end", t1),
		zap.Int("events", b.ds.Events.Len()),
		zap.Int("links", len(b.agg.FileVersions)+len(b.agg.NetworkActivities)+len(b.agg.PortLinks)),
		zap.Int("diagnostics", len(b.agg.Diagnostics)),
		zap.Duration("duration", time.Since(started)))
	return s.graph, nil
}

func (s *Session) build(id string, rng model.Range, p *dataset.Payload, g int64) (*build, error) {
	ds := dataset.New(rng, p)
	b := &build{id: id, ds: ds, agg: aggregate.Aggregate(ds)}
	if err := s.reindex(b, g); err != nil {
		return nil, err
	}
	return b, nil
}

// reindex rebuilds the granularity-dependent parts of b.
func (s *Session) reindex(b *build, g int64) error {
	ix, err := timeindex.Build(g, b.agg.TrafficLinks(), b.ds.Events.Lookup)
	if err != nil {
		return err
	}
	hist, err := timeindex.Histogram(b.ds.Range, g, b.ds.Events.FileVersions(), b.ds.Events.NetworkActivities())
	if err != nil {
		s.log.Warn("timeline unavailable", zap.String("search_id", b.id), zap.Int64("granularity", g), zap.Error(err))
		hist = nil
	}
	b.ix = ix
	b.engine = window.NewEngine(b.ds, b.agg, ix)
	b.histogram = hist
	return nil
}

// recompute runs the window query and the filter composer. Callers hold mu.
func (s *Session) recompute() {
	if s.cur == nil {
		s.active = nil
		s.scales = filter.Scales{}
		s.graph = emptyGraph()
		return
	}
	s.active = s.cur.engine.Query(s.win)
	if s.active.Empty() {
		s.log.Debug("window has no activity",
			zap.String("search_id", s.cur.id),
			zap.Int64("start", s.win.Start),
			zap.Int64("end", s.win.End))
	}
	s.scales = filter.ScalesFor(s.active)
	s.graph = filter.Compose(s.active, s.state)
}

// SetWindow moves the brushed window to [t0, t1]. A window with t0 >= t1
// yields an empty graph.
func (s *Session) SetWindow(t0, t1 int64) (*filter.DisplayedGraph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return nil, ErrNoData
	}
	s.win = model.Range{Start: t0, End: t1}
	s.recompute()
	return s.graph, nil
}

// SetGranularity changes the bucket width and rebuilds the index.
func (s *Session) SetGranularity(g int64) (*filter.DisplayedGraph, error) {
	if g <= 0 {
		return nil, fmt.Errorf("set granularity: %w: %d", timeindex.ErrInvalidGranularity, g)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.granularity = g
	if s.cur == nil {
		return s.graph, nil
	}
	if err := s.reindex(s.cur, g); err != nil {
		return nil, fmt.Errorf("set granularity: %w", err)
	}
	s.recompute()
	s.log.Debug("granularity changed", zap.Int64("granularity", g))
	return s.graph, nil
}

func (s *Session) ToggleHiddenNodeType(t model.NodeType) *filter.DisplayedGraph {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ToggleHiddenNodeType(t)
	s.recompute()
	return s.graph
}

func (s *Session) ToggleHiddenLinkKind(k model.LinkKind) *filter.DisplayedGraph {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ToggleHiddenLinkKind(k)
	s.recompute()
	return s.graph
}

func (s *Session) ToggleHiddenHost(host string) *filter.DisplayedGraph {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ToggleHiddenHost(host)
	s.recompute()
	return s.graph
}

// ToggleHiddenColorBucket hides or shows the links of a traffic kind whose
// intensity color is color.
func (s *Session) ToggleHiddenColorBucket(k model.LinkKind, color string) (*filter.DisplayedGraph, error) {
	bucket, err := quantile.ColorBucket(color)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.state.ToggleHiddenColorBucket(k, bucket); err != nil {
		return nil, err
	}
	s.recompute()
	return s.graph, nil
}

// SetGrouping toggles grouping of nodes by host in the indexed graph.
func (s *Session) SetGrouping(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Grouping = on
}

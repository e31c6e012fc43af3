package window

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdtdelta/4n6graph/internal/aggregate"
	"github.com/cdtdelta/4n6graph/internal/dataset"
	"github.com/cdtdelta/4n6graph/internal/model"
	"github.com/cdtdelta/4n6graph/internal/timeindex"
)

func newEngine(t *testing.T, rng model.Range, g int64, p *dataset.Payload) *Engine {
	t.Helper()
	ds := dataset.New(rng, p)
	agg := aggregate.Aggregate(ds)
	ix, err := timeindex.Build(g, agg.TrafficLinks(), ds.Events.Lookup)
	require.NoError(t, err)
	return NewEngine(ds, agg, ix)
}

func scenarioPayload() *dataset.Payload {
	return &dataset.Payload{
		Ports: []model.Port{
			{ID: "portA", PortNumber: 50000, HostName: "ws1"},
			{ID: "portB", PortNumber: 443, HostName: "web"},
		},
		Endpoints: []model.Endpoint{
			{ID: "ep-ws1", HostName: "ws1"},
			{ID: "ep-web", HostName: "web"},
		},
		NetworkActivities: []model.NetworkActivity{
			{ID: "na-1", Timestamp: 1000, Source: "portA", Target: "portB", Size: 512},
			{ID: "na-2", Timestamp: 61000, Source: "portA", Target: "portB", Size: 512},
		},
	}
}

func TestScenarioSixtySecondBuckets(t *testing.T) {
	e := newEngine(t, model.Range{Start: 0, End: 600000}, 60000, scenarioPayload())

	full := e.Query(model.Range{Start: 0, End: 600000})
	require.Len(t, full.NetworkActivityLinks, 1)
	l := full.NetworkActivityLinks[0]
	assert.Equal(t, "portA->portB", l.ID)
	assert.Equal(t, int64(1024), l.TotalBytes)
	assert.Equal(t, 1.0, l.ByteProportion)
	assert.Equal(t, []int64{0, 1}, e.ix.Buckets(l.ID))

	first := e.Query(model.Range{Start: 0, End: 60000})
	require.Len(t, first.NetworkActivityLinks, 1)
	assert.Equal(t, int64(1024), first.NetworkActivityLinks[0].TotalBytes, "bucket 1 starts at 60000")

	// floor(61001/60000) = 1, so bucket 1 is still inside the window.
	second := e.Query(model.Range{Start: 61001, End: 120000})
	assert.Equal(t, int64(1), second.Lo)
	assert.Equal(t, int64(2), second.Hi)
	require.Len(t, second.NetworkActivityLinks, 1)
	assert.Equal(t, int64(512), second.NetworkActivityLinks[0].TotalBytes)

	later := e.Query(model.Range{Start: 120000, End: 180000})
	assert.Empty(t, later.NetworkActivityLinks)
	assert.Empty(t, later.Ports)
	assert.Empty(t, later.Endpoints)
}

func TestActiveGraphPullsInOwners(t *testing.T) {
	e := newEngine(t, model.Range{Start: 0, End: 600000}, 60000, scenarioPayload())
	a := e.Query(model.Range{Start: 0, End: 600000})

	require.Len(t, a.Ports, 2)
	require.Len(t, a.PortLinks, 2)
	assert.Equal(t, "portA->ep-ws1", a.PortLinks[0].ID)
	var eps []string
	for _, ep := range a.Endpoints {
		eps = append(eps, ep.ID)
	}
	assert.Equal(t, []string{"ep-web", "ep-ws1"}, eps)
}

func TestProcessOwnedPortsAlwaysPresent(t *testing.T) {
	e := newEngine(t, model.Range{Start: 0, End: 600000}, 60000, &dataset.Payload{
		Ports:     []model.Port{{ID: "port-1", HostName: "ws1", ProcessIDs: []string{"proc-1"}}},
		Processes: []model.Process{{ID: "proc-1", HostName: "ws1"}, {ID: "proc-2", HostName: "ws1"}},
		Files:     []model.File{{ID: "file-1", HostName: "ws1"}},
		FileVersions: []model.FileVersion{
			{ID: "fv-1", Timestamp: 500000, Source: "proc-2", Target: "file-1", Size: 1},
		},
	})

	a := e.Query(model.Range{Start: 0, End: 60000})
	assert.Empty(t, a.FileVersionLinks)
	require.Len(t, a.Ports, 1)
	require.Len(t, a.PortLinks, 1)
	require.Len(t, a.Processes, 1)
	assert.Equal(t, "proc-1", a.Processes[0].ID)
	assert.Empty(t, a.Files)
}

func TestDegenerateWindows(t *testing.T) {
	e := newEngine(t, model.Range{Start: 0, End: 600000}, 60000, scenarioPayload())

	assert.True(t, e.Query(model.Range{Start: 5000, End: 5000}).Empty())
	assert.True(t, e.Query(model.Range{Start: 9000, End: 5000}).Empty())
	assert.True(t, e.Query(model.Range{Start: 700000, End: 800000}).Empty())

	clamped := e.Query(model.Range{Start: -100000, End: 30000})
	assert.Equal(t, model.Range{Start: 0, End: 30000}, clamped.Window)
	assert.Len(t, clamped.NetworkActivityLinks, 1)
}

func zeroBytePayload() *dataset.Payload {
	return &dataset.Payload{
		Processes: []model.Process{{ID: "proc-1", HostName: "ws1"}},
		Files: []model.File{
			{ID: "file-1", HostName: "ws1"},
			{ID: "file-2", HostName: "ws1"},
		},
		FileVersions: []model.FileVersion{
			{ID: "fv-1", Timestamp: 1000, Source: "proc-1", Target: "file-1", Size: 0},
			{ID: "fv-2", Timestamp: 300000, Source: "proc-1", Target: "file-2", Size: 10},
		},
	}
}

func TestZeroByteWindowKeepsLinks(t *testing.T) {
	e := newEngine(t, model.Range{Start: 0, End: 600000}, 60000, zeroBytePayload())

	a := e.Query(model.Range{Start: 0, End: 50000})
	assert.True(t, e.ix.ActiveIn("proc-1->file-1", a.Lo, a.Hi))
	require.Len(t, a.FileVersionLinks, 1)
	l := a.FileVersionLinks[0]
	assert.Equal(t, "proc-1->file-1", l.ID)
	assert.Equal(t, 0.0, l.ByteProportion)
	assert.Equal(t, int64(0), a.TotalBytes(model.LinkFileVersion))
	require.Len(t, a.Files, 1)
	assert.Equal(t, "file-1", a.Files[0].ID)
	require.Len(t, a.Processes, 1)

	full := e.Query(model.Range{Start: 0, End: 600000})
	require.Len(t, full.FileVersionLinks, 2)
	assert.Equal(t, 0.0, full.FileVersionLinks[0].ByteProportion)
	assert.Equal(t, 1.0, full.FileVersionLinks[1].ByteProportion)
}

func TestOnlyZeroByteEvents(t *testing.T) {
	p := zeroBytePayload()
	p.FileVersions = p.FileVersions[:1]
	e := newEngine(t, model.Range{Start: 0, End: 600000}, 60000, p)
	require.Len(t, e.agg.FileVersions, 1)

	a := e.Query(model.Range{Start: 0, End: 600000})
	require.Len(t, a.FileVersionLinks, 1)
	assert.Equal(t, []float64{0}, a.Proportions(model.LinkFileVersion))
	assert.Len(t, a.Files, 1)
}

func TestIDsAreScopedByNodeType(t *testing.T) {
	e := newEngine(t, model.Range{Start: 0, End: 600000}, 60000, &dataset.Payload{
		Processes: []model.Process{
			{ID: "proc-1", HostName: "ws1"},
			{ID: "shared", HostName: "ws1"},
		},
		Files: []model.File{{ID: "shared", HostName: "ws1"}},
		FileVersions: []model.FileVersion{
			{ID: "fv-1", Timestamp: 1000, Source: "proc-1", Target: "shared", Size: 5},
		},
	})

	a := e.Query(model.Range{Start: 0, End: 600000})
	require.Len(t, a.Files, 1)
	require.Len(t, a.Processes, 1)
	assert.Equal(t, "proc-1", a.Processes[0].ID)
}

func TestEmptyEventSet(t *testing.T) {
	e := newEngine(t, model.Range{Start: 0, End: 600000}, 60000, &dataset.Payload{})
	assert.True(t, e.Query(model.Range{Start: 0, End: 600000}).Empty())
}

func TestWindowCopiesLeaveAggregatesUntouched(t *testing.T) {
	e := newEngine(t, model.Range{Start: 0, End: 600000}, 60000, scenarioPayload())
	a := e.Query(model.Range{Start: 61001, End: 120000})
	require.Len(t, a.NetworkActivityLinks, 1)

	orig := e.agg.NetworkActivities[0]
	assert.NotSame(t, orig, a.NetworkActivityLinks[0])
	assert.Equal(t, int64(1024), orig.TotalBytes)
	assert.Equal(t, 1.0, orig.ByteProportion)
}

func randomPayload(rnd *rand.Rand, n int) *dataset.Payload {
	p := &dataset.Payload{}
	for i := 0; i < 6; i++ {
		host := fmt.Sprintf("host-%d", i%3)
		p.Ports = append(p.Ports, model.Port{ID: fmt.Sprintf("port-%d", i), HostName: host})
		p.Processes = append(p.Processes, model.Process{ID: fmt.Sprintf("proc-%d", i), HostName: host})
		p.Files = append(p.Files, model.File{ID: fmt.Sprintf("file-%d", i), HostName: host})
	}
	for i := 0; i < 3; i++ {
		p.Endpoints = append(p.Endpoints, model.Endpoint{ID: fmt.Sprintf("ep-%d", i), HostName: fmt.Sprintf("host-%d", i)})
	}
	p.Ports[0].ProcessIDs = []string{"proc-0"}
	for i := 0; i < n; i++ {
		p.FileVersions = append(p.FileVersions, model.FileVersion{
			ID:        fmt.Sprintf("fv-%d", i),
			Timestamp: rnd.Int63n(3_600_000),
			Source:    fmt.Sprintf("proc-%d", rnd.Intn(6)),
			Target:    fmt.Sprintf("file-%d", rnd.Intn(6)),
			Size:      randomSize(rnd, 4096),
		})
		p.NetworkActivities = append(p.NetworkActivities, model.NetworkActivity{
			ID:        fmt.Sprintf("na-%d", i),
			Timestamp: rnd.Int63n(3_600_000),
			Source:    fmt.Sprintf("port-%d", rnd.Intn(6)),
			Target:    fmt.Sprintf("port-%d", rnd.Intn(6)),
			Size:      randomSize(rnd, 1500),
		})
	}
	return p
}

// randomSize returns 0 for about one event in five.
func randomSize(rnd *rand.Rand, max int64) int64 {
	if rnd.Intn(5) == 0 {
		return 0
	}
	return rnd.Int63n(max) + 1
}

func randomWindow(rnd *rand.Rand) model.Range {
	a := rnd.Int63n(3_600_000)
	b := a + rnd.Int63n(900_000) + 1
	return model.Range{Start: a, End: b}
}

func TestProportionClosure(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	e := newEngine(t, model.Range{Start: 0, End: 3_600_000}, 60000, randomPayload(rnd, 300))

	for i := 0; i < 100; i++ {
		a := e.Query(randomWindow(rnd))
		for _, kind := range []model.LinkKind{model.LinkFileVersion, model.LinkNetworkActivity} {
			props := a.Proportions(kind)
			if len(props) == 0 {
				continue
			}
			if a.TotalBytes(kind) == 0 {
				for _, p := range props {
					assert.Equal(t, 0.0, p)
				}
				continue
			}
			var sum float64
			for _, p := range props {
				sum += p
			}
			assert.InDelta(t, 1.0, sum, 1e-9, "window %v kind %s", a.Window, kind)
		}
	}
}

func TestMembershipMatchesNaiveScan(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	p := randomPayload(rnd, 200)
	const g = 60000
	e := newEngine(t, model.Range{Start: 0, End: 3_600_000}, g, p)

	for i := 0; i < 100; i++ {
		w := randomWindow(rnd)
		a := e.Query(w)
		lo, hi := timeindex.BucketOf(a.Window.Start, g), timeindex.BucketOf(a.Window.End, g)

		want := make(map[string]bool)
		for _, fv := range p.FileVersions {
			if b := timeindex.BucketOf(fv.Timestamp, g); b >= lo && b <= hi {
				want[aggregate.LinkID(fv.Source, fv.Target)] = true
			}
		}
		got := make(map[string]bool)
		for _, l := range a.FileVersionLinks {
			got[l.ID] = true
		}
		assert.Equal(t, want, got, "window %v", w)
	}
}

func TestMonotonicWindowShrink(t *testing.T) {
	rnd := rand.New(rand.NewSource(23))
	e := newEngine(t, model.Range{Start: 0, End: 3_600_000}, 60000, randomPayload(rnd, 200))

	for i := 0; i < 100; i++ {
		outer := randomWindow(rnd)
		inner := model.Range{
			Start: outer.Start + rnd.Int63n(outer.End-outer.Start),
		}
		inner.End = inner.Start + rnd.Int63n(outer.End-inner.Start) + 1

		big := linkIDs(e.Query(outer))
		for id := range linkIDs(e.Query(inner)) {
			assert.True(t, big[id], "%s active in %v but not in %v", id, inner, outer)
		}
	}
}

func linkIDs(a *Active) map[string]bool {
	out := make(map[string]bool)
	for _, l := range a.Links() {
		out[l.LinkID()] = true
	}
	return out
}

package aggregate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdtdelta/4n6graph/internal/dataset"
	"github.com/cdtdelta/4n6graph/internal/model"
)

func testDataset(fvs []model.FileVersion, nas []model.NetworkActivity) *dataset.Dataset {
	return dataset.New(model.Range{Start: 0, End: 1_000_000}, &dataset.Payload{
		Ports: []model.Port{
			{ID: "port-1", PortNumber: 49152, HostName: "ws1", ProcessIDs: []string{"proc-1", "proc-2"}},
			{ID: "port-2", PortNumber: 443, HostName: "web"},
			{ID: "port-3", PortNumber: 22, HostName: "nowhere"},
		},
		Processes: []model.Process{
			{ID: "proc-1", Name: "chrome", HostName: "ws1"},
			{ID: "proc-2", Name: "helper", HostName: "ws1"},
		},
		Files:             []model.File{{ID: "file-1", Path: "/tmp/a", Name: "a", HostName: "ws1"}},
		Endpoints:         []model.Endpoint{{ID: "ep-web", HostName: "web", HostIP: "10.0.0.80"}},
		FileVersions:      fvs,
		NetworkActivities: nas,
	})
}

func TestSingleEventHasFullProportion(t *testing.T) {
	ds := testDataset(
		[]model.FileVersion{{ID: "fv-1", Timestamp: 100, Source: "proc-1", Target: "file-1", Size: 512}},
		nil,
	)
	r := Aggregate(ds)

	require.Len(t, r.FileVersions, 1)
	l := r.FileVersions[0]
	assert.Equal(t, "proc-1->file-1", l.ID)
	assert.Equal(t, int64(512), l.TotalBytes)
	assert.Equal(t, 1.0, l.ByteProportion)
	assert.Equal(t, []string{"fv-1"}, l.MemberEventIDs)
	assert.Empty(t, r.NetworkActivities)
}

func TestEventsSharingPairAreMerged(t *testing.T) {
	ds := testDataset(nil, []model.NetworkActivity{
		{ID: "na-1", Timestamp: 10, Source: "port-1", Target: "port-2", Size: 100},
		{ID: "na-2", Timestamp: 20, Source: "port-1", Target: "port-2", Size: 200},
		{ID: "na-3", Timestamp: 30, Source: "port-2", Target: "port-1", Size: 100},
	})
	r := Aggregate(ds)

	require.Len(t, r.NetworkActivities, 2)
	assert.Equal(t, "port-1->port-2", r.NetworkActivities[0].ID)
	assert.Equal(t, int64(300), r.NetworkActivities[0].TotalBytes)
	assert.InDelta(t, 0.75, r.NetworkActivities[0].ByteProportion, 1e-12)
	assert.ElementsMatch(t, []string{"na-1", "na-2"}, r.NetworkActivities[0].MemberEventIDs)
	assert.Equal(t, "port-2->port-1", r.NetworkActivities[1].ID)
	assert.InDelta(t, 0.25, r.NetworkActivities[1].ByteProportion, 1e-12)
}

func TestUnknownEntitiesProduceDiagnostics(t *testing.T) {
	ds := testDataset(
		[]model.FileVersion{
			{ID: "fv-1", Timestamp: 1, Source: "proc-x", Target: "file-1", Size: 1},
			{ID: "fv-2", Timestamp: 1, Source: "proc-1", Target: "file-x", Size: 1},
			{ID: "fv-3", Timestamp: 1, Source: "proc-1", Target: "file-1", Size: -5},
		},
		[]model.NetworkActivity{{ID: "na-1", Timestamp: 1, Source: "port-1", Target: "port-x", Size: 1}},
	)
	r := Aggregate(ds)

	assert.Empty(t, r.FileVersions)
	assert.Empty(t, r.NetworkActivities)

	ids := make([]string, 0)
	for _, d := range r.Diagnostics {
		ids = append(ids, d.EventID)
	}
	assert.Contains(t, ids, "fv-1")
	assert.Contains(t, ids, "fv-2")
	assert.Contains(t, ids, "fv-3")
	assert.Contains(t, ids, "na-1")
	// port-3 lives on a host without an endpoint.
	assert.Contains(t, ids, "port-3")
}

func TestZeroTotalBytesKeepsLinks(t *testing.T) {
	ds := testDataset([]model.FileVersion{
		{ID: "fv-1", Timestamp: 1, Source: "proc-1", Target: "file-1", Size: 0},
	}, nil)
	r := Aggregate(ds)
	require.Len(t, r.FileVersions, 1)
	l := r.FileVersions[0]
	assert.Equal(t, "proc-1->file-1", l.ID)
	assert.Equal(t, int64(0), l.TotalBytes)
	assert.Equal(t, 0.0, l.ByteProportion)
	assert.Equal(t, []string{"fv-1"}, l.MemberEventIDs)
	for _, d := range r.Diagnostics {
		assert.NotEqual(t, "fv-1", d.EventID)
	}
}

func TestEventsOutsideRangeAreSkipped(t *testing.T) {
	cat := dataset.NewCatalog(&dataset.Payload{
		Processes: []model.Process{{ID: "proc-1"}},
		Files:     []model.File{{ID: "file-1"}},
	})
	links, diags := FileVersions(cat, []model.FileVersion{
		{ID: "fv-1", Timestamp: 999, Source: "proc-1", Target: "file-1", Size: 1},
		{ID: "fv-2", Timestamp: 1000, Source: "proc-1", Target: "file-1", Size: 3},
		{ID: "fv-3", Timestamp: 2000, Source: "proc-x", Target: "file-1", Size: 1},
	}, model.Range{Start: 1000, End: 2000})

	assert.Empty(t, diags)
	require.Len(t, links, 1)
	assert.Equal(t, int64(3), links[0].TotalBytes)
}

func TestPortLinks(t *testing.T) {
	ds := testDataset(nil, nil)
	r := Aggregate(ds)

	require.Len(t, r.PortLinks, 3)
	assert.Equal(t, "port-1->proc-1", r.PortLinks[0].ID)
	assert.Equal(t, "port-1->proc-2", r.PortLinks[1].ID)
	assert.Equal(t, "port-2->ep-web", r.PortLinks[2].ID)
	assert.Equal(t, model.NodeEndpoint, r.PortLinks[2].Owner.NodeType())
}

func TestWithTrafficCopies(t *testing.T) {
	ds := testDataset([]model.FileVersion{
		{ID: "fv-1", Timestamp: 1, Source: "proc-1", Target: "file-1", Size: 4},
	}, nil)
	orig := Aggregate(ds).FileVersions[0]

	c := orig.WithTraffic(Traffic{ID: orig.ID, TotalBytes: 2, ByteProportion: 0.5})
	assert.Equal(t, int64(4), orig.TotalBytes)
	assert.Equal(t, int64(2), c.Stats().TotalBytes)
	assert.Same(t, orig.Source, c.SourceNode())
}

func TestLinkJSON(t *testing.T) {
	ds := testDataset([]model.FileVersion{
		{ID: "fv-1", Timestamp: 1, Source: "proc-1", Target: "file-1", Size: 4},
	}, nil)
	r := Aggregate(ds)

	b, err := json.Marshal(r.FileVersions[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"proc-1->file-1","kind":"FileVersionLink","source":"proc-1","target":"file-1","totalBytes":4,"byteProportion":1,"eventCount":1}`, string(b))

	b, err = json.Marshal(r.PortLinks[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"port-1->proc-1","kind":"PortLink","source":"port-1","target":"proc-1"}`, string(b))
}

package csvexport

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdtdelta/4n6graph/internal/aggregate"
	"github.com/cdtdelta/4n6graph/internal/filter"
	"github.com/cdtdelta/4n6graph/internal/model"
	"github.com/cdtdelta/4n6graph/internal/quantile"
)

func sampleGraph() (*filter.DisplayedGraph, filter.Scales) {
	proc := &model.Process{ID: "proc-1", HostName: "ws1"}
	file := &model.File{ID: "file-1", HostName: "ws1"}
	port := &model.Port{ID: "port-1", HostName: "ws1", ProcessIDs: []string{"proc-1"}}
	fv := &aggregate.FileVersionLink{
		Traffic: aggregate.Traffic{
			ID:             aggregate.LinkID("proc-1", "file-1"),
			TotalBytes:     300,
			ByteProportion: 1,
			MemberEventIDs: []string{"fv-1", "fv-2"},
		},
		Source: proc,
		Target: file,
	}
	pl := &aggregate.PortLink{ID: aggregate.LinkID("port-1", "proc-1"), Port: port, Owner: proc}
	g := &filter.DisplayedGraph{
		Nodes: []model.Node{file, port, proc},
		Links: []aggregate.Link{pl, fv},
	}
	return g, filter.Scales{FileVersion: quantile.New([]float64{1})}
}

func TestWriteLinks(t *testing.T) {
	g, sc := sampleGraph()
	var buf bytes.Buffer
	require.NoError(t, WriteLinks(&buf, g, sc))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{
		"port-1->proc-1", "PortLink", "port-1", "Port", "ws1",
		"proc-1", "Process", "ws1", "", "", "", "",
	}, rows[1])
	assert.Equal(t, []string{
		"proc-1->file-1", "FileVersionLink", "proc-1", "Process", "ws1",
		"file-1", "File", "ws1", "300", "1.000000", "2", quantile.Colors[4],
	}, rows[2])
}

func TestWriteLinksFileEmptyGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.csv")
	require.NoError(t, WriteLinksFile(path, &filter.DisplayedGraph{}, filter.Scales{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWriteLinksFileBadPath(t *testing.T) {
	g, sc := sampleGraph()
	assert.Error(t, WriteLinksFile(filepath.Join(t.TempDir(), "missing", "links.csv"), g, sc))
}

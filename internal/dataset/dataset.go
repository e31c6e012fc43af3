// Package dataset holds the materialized telemetry of one search: the entity
// catalog and the raw event store. A Dataset is built once per search and is
// read-only afterwards.
package dataset

import (
	"sort"

	"github.com/cdtdelta/4n6graph/internal/model"
)

// Payload is the shape returned by the upstream analysis data query. It is
// also the JSON document accepted by the importers.
type Payload struct {
	Ports             []model.Port            `json:"ports"`
	Processes         []model.Process         `json:"processes"`
	Files             []model.File            `json:"files"`
	Endpoints         []model.Endpoint        `json:"endpoints"`
	FileVersions      []model.FileVersion     `json:"fileVersions"`
	NetworkActivities []model.NetworkActivity `json:"networkActivities"`
}

// Len returns the total number of records in the payload.
func (p *Payload) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Ports) + len(p.Processes) + len(p.Files) + len(p.Endpoints) +
		len(p.FileVersions) + len(p.NetworkActivities)
}

// Dataset is the explicit value owned by the analysis pipeline.
type Dataset struct {
	Range   model.Range
	Catalog *Catalog
	Events  *Events
}

// New builds a Dataset from a payload. Records that repeat an id replace the
// earlier record (last write wins).
func New(rng model.Range, p *Payload) *Dataset {
	if p == nil {
		p = &Payload{}
	}
	return &Dataset{
		Range:   rng,
		Catalog: NewCatalog(p),
		Events:  NewEvents(p.FileVersions, p.NetworkActivities),
	}
}

// Catalog indexes the four entity collections by id.
type Catalog struct {
	ports     map[string]*model.Port
	processes map[string]*model.Process
	files     map[string]*model.File
	endpoints map[string]*model.Endpoint

	// sorted views, built once
	portList     []*model.Port
	processList  []*model.Process
	fileList     []*model.File
	endpointList []*model.Endpoint
}

// NewCatalog copies the payload's entities into a Catalog.
func NewCatalog(p *Payload) *Catalog {
	c := &Catalog{
		ports:     make(map[string]*model.Port, len(p.Ports)),
		processes: make(map[string]*model.Process, len(p.Processes)),
		files:     make(map[string]*model.File, len(p.Files)),
		endpoints: make(map[string]*model.Endpoint, len(p.Endpoints)),
	}
	for i := range p.Ports {
		port := p.Ports[i]
		port.ProcessIDs = append([]string(nil), port.ProcessIDs...)
		c.ports[port.ID] = &port
	}
	for i := range p.Processes {
		proc := p.Processes[i]
		c.processes[proc.ID] = &proc
	}
	for i := range p.Files {
		f := p.Files[i]
		c.files[f.ID] = &f
	}
	for i := range p.Endpoints {
		e := p.Endpoints[i]
		c.endpoints[e.ID] = &e
	}

	c.portList = sortedValues(c.ports)
	c.processList = sortedValues(c.processes)
	c.fileList = sortedValues(c.files)
	c.endpointList = sortedValues(c.endpoints)
	return c
}

func sortedValues[T model.Node](m map[string]T) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID() < out[j].NodeID() })
	return out
}

func (c *Catalog) Port(id string) (*model.Port, bool) {
	p, ok := c.ports[id]
	return p, ok
}

func (c *Catalog) Process(id string) (*model.Process, bool) {
	p, ok := c.processes[id]
	return p, ok
}

func (c *Catalog) File(id string) (*model.File, bool) {
	f, ok := c.files[id]
	return f, ok
}

func (c *Catalog) Endpoint(id string) (*model.Endpoint, bool) {
	e, ok := c.endpoints[id]
	return e, ok
}

// EndpointByHost returns the first endpoint (by id) with the given host name.
func (c *Catalog) EndpointByHost(host string) (*model.Endpoint, bool) {
	for _, e := range c.endpointList {
		if e.HostName == host {
			return e, true
		}
	}
	return nil, false
}

// The list accessors return the shared sorted slices; callers must not modify them.

func (c *Catalog) Ports() []*model.Port         { return c.portList }
func (c *Catalog) Processes() []*model.Process  { return c.processList }
func (c *Catalog) Files() []*model.File         { return c.fileList }
func (c *Catalog) Endpoints() []*model.Endpoint { return c.endpointList }

// Hosts returns the distinct endpoint host names, prefixed with "localhost"
// which is always present in the host legend.
func (c *Catalog) Hosts() []string {
	seen := map[string]bool{"localhost": true}
	hosts := []string{"localhost"}
	for _, e := range c.endpointList {
		if e.HostName == "" || seen[e.HostName] {
			continue
		}
		seen[e.HostName] = true
		hosts = append(hosts, e.HostName)
	}
	return hosts
}

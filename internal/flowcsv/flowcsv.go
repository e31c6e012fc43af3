// Package flowcsv imports network flow exports (one row per flow or packet)
// into a telemetry payload. Endpoints, ports and owning processes are derived
// from the address columns.
package flowcsv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cdtdelta/4n6graph/internal/dataset"
	"github.com/cdtdelta/4n6graph/internal/model"
)

// ReadResult contains the outcome of a flow CSV import operation.
type ReadResult struct {
	Payload  *dataset.Payload
	Count    int
	Excluded int
}

// Maps possible header names to our internal field names.
var fieldAliases = map[string]string{
	"id":          "id",
	"flow_id":     "id",
	"timestamp":   "timestamp",
	"ts":          "timestamp",
	"time":        "timestamp",
	"start":       "timestamp",
	"src_host":    "src_host",
	"source_host": "src_host",
	"src_ip":      "src_ip",
	"srcaddr":     "src_ip",
	"source_ip":   "src_ip",
	"src_port":    "src_port",
	"srcport":     "src_port",
	"sport":       "src_port",
	"dst_host":    "dst_host",
	"dest_host":   "dst_host",
	"dst_ip":      "dst_ip",
	"dstaddr":     "dst_ip",
	"dest_ip":     "dst_ip",
	"dst_port":    "dst_port",
	"dstport":     "dst_port",
	"dport":       "dst_port",
	"bytes":       "bytes",
	"length":      "bytes",
	"size":        "bytes",
	"protocol":    "protocol",
	"proto":       "protocol",
	"process":     "process",
	"src_process": "process",
	"pid":         "process",
}

// required lists the fields every flow row must carry.
var required = []string{"timestamp", "src_port", "dst_port", "bytes"}

// ValidateFile checks that the header row maps every required field and at
// least one address column on each side.
func ValidateFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	reader := newReader(f)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	_, err = buildColumnMap(header)
	return err
}

// ReadEvents reads flows from a CSV file.
func ReadEvents(path string, onProgress func(int)) (*ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return Read(f, onProgress)
}

// Read reads flows from r. The header row determines which fields are
// present. Rows with unparseable numbers are counted as excluded.
func Read(r io.Reader, onProgress func(int)) (*ReadResult, error) {
	reader := newReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols, err := buildColumnMap(header)
	if err != nil {
		return nil, err
	}

	b := newBuilder()
	result := &ReadResult{}
	row := 0

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			result.Excluded++
			continue
		}

		fl, ok := parseFlow(rec, cols, row)
		if !ok {
			result.Excluded++
			continue
		}
		b.add(fl)
		result.Count++

		if onProgress != nil && result.Count%10000 == 0 {
			onProgress(result.Count)
		}
	}

	result.Payload = b.payload()
	return result, nil
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(newNullStripper(r))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	return reader
}

// buildColumnMap maps internal field names to column indices. The first
// column for a field wins.
func buildColumnMap(header []string) (map[string]int, error) {
	cols := make(map[string]int)
	for i, col := range header {
		col = strings.TrimSpace(strings.ToLower(col))
		if name, ok := fieldAliases[col]; ok {
			if _, seen := cols[name]; !seen {
				cols[name] = i
			}
		}
	}

	var missing []string
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	for _, side := range []string{"src", "dst"} {
		_, host := cols[side+"_host"]
		_, ip := cols[side+"_ip"]
		if !host && !ip {
			missing = append(missing, side+"_ip")
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing flow fields in header: %s (found: %s)",
			strings.Join(missing, ", "), strings.Join(header, ", "))
	}
	return cols, nil
}

type flow struct {
	id        string
	timestamp int64
	srcHost   string
	srcIP     string
	srcPort   int
	dstHost   string
	dstIP     string
	dstPort   int
	bytes     int64
	protocol  string
	process   string
}

func parseFlow(rec []string, cols map[string]int, row int) (flow, bool) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		v := strings.TrimSpace(rec[i])
		if v == "-" {
			return ""
		}
		return v
	}

	fl := flow{
		id:       get("id"),
		srcHost:  get("src_host"),
		srcIP:    get("src_ip"),
		dstHost:  get("dst_host"),
		dstIP:    get("dst_ip"),
		protocol: strings.ToLower(get("protocol")),
		process:  get("process"),
	}
	if fl.id == "" {
		fl.id = "flow-" + strconv.Itoa(row)
	}
	if fl.srcHost == "" {
		fl.srcHost = fl.srcIP
	}
	if fl.dstHost == "" {
		fl.dstHost = fl.dstIP
	}
	if fl.srcHost == "" || fl.dstHost == "" {
		return flow{}, false
	}

	ts, ok := parseTimestamp(get("timestamp"))
	if !ok {
		return flow{}, false
	}
	fl.timestamp = ts

	var err error
	if fl.srcPort, err = strconv.Atoi(get("src_port")); err != nil {
		return flow{}, false
	}
	if fl.dstPort, err = strconv.Atoi(get("dst_port")); err != nil {
		return flow{}, false
	}
	if fl.bytes, err = strconv.ParseInt(get("bytes"), 10, 64); err != nil {
		return flow{}, false
	}
	return fl, true
}

// parseTimestamp accepts epoch milliseconds, epoch seconds with a fractional
// part, or RFC3339.
func parseTimestamp(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f * 1000), true
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

// builder deduplicates the entities implied by the flows.
type builder struct {
	ports     map[string]*model.Port
	processes map[string]model.Process
	endpoints map[string]model.Endpoint
	flows     []model.NetworkActivity
}

func newBuilder() *builder {
	return &builder{
		ports:     make(map[string]*model.Port),
		processes: make(map[string]model.Process),
		endpoints: make(map[string]model.Endpoint),
	}
}

func portID(host string, n int) string { return "port:" + host + ":" + strconv.Itoa(n) }

func (b *builder) endpoint(host, ip string) {
	if _, ok := b.endpoints[host]; ok {
		return
	}
	b.endpoints[host] = model.Endpoint{ID: "endpoint:" + host, HostName: host, HostIP: ip}
}

func (b *builder) port(host string, n int) *model.Port {
	id := portID(host, n)
	p, ok := b.ports[id]
	if !ok {
		p = &model.Port{ID: id, PortNumber: n, HostName: host}
		b.ports[id] = p
	}
	return p
}

func (b *builder) add(fl flow) {
	b.endpoint(fl.srcHost, fl.srcIP)
	b.endpoint(fl.dstHost, fl.dstIP)
	src := b.port(fl.srcHost, fl.srcPort)
	dst := b.port(fl.dstHost, fl.dstPort)

	var procID string
	if fl.process != "" {
		procID = "process:" + fl.srcHost + ":" + fl.process
		if _, ok := b.processes[procID]; !ok {
			b.processes[procID] = model.Process{ID: procID, Name: fl.process, HostName: fl.srcHost}
		}
		owned := false
		for _, id := range src.ProcessIDs {
			if id == procID {
				owned = true
				break
			}
		}
		if !owned {
			src.ProcessIDs = append(src.ProcessIDs, procID)
		}
	}

	b.flows = append(b.flows, model.NetworkActivity{
		ID:        fl.id,
		Timestamp: fl.timestamp,
		Source:    src.ID,
		Target:    dst.ID,
		Size:      fl.bytes,
		Protocol:  fl.protocol,
		Process:   procID,
	})
}

func (b *builder) payload() *dataset.Payload {
	p := &dataset.Payload{NetworkActivities: b.flows}
	for _, port := range b.ports {
		p.Ports = append(p.Ports, *port)
	}
	for _, proc := range b.processes {
		p.Processes = append(p.Processes, proc)
	}
	for _, ep := range b.endpoints {
		p.Endpoints = append(p.Endpoints, ep)
	}
	sort.Slice(p.Ports, func(i, j int) bool { return p.Ports[i].ID < p.Ports[j].ID })
	sort.Slice(p.Processes, func(i, j int) bool { return p.Processes[i].ID < p.Processes[j].ID })
	sort.Slice(p.Endpoints, func(i, j int) bool { return p.Endpoints[i].ID < p.Endpoints[j].ID })
	return p
}

// nullStripper removes NUL bytes, which some flow exporters pad records with.
type nullStripper struct {
	r io.Reader
}

func newNullStripper(r io.Reader) io.Reader {
	return &nullStripper{r: r}
}

func (ns *nullStripper) Read(p []byte) (int, error) {
	n, err := ns.r.Read(p)
	if n > 0 {
		cleaned := strings.ReplaceAll(string(p[:n]), "\x00", "")
		copy(p, cleaned)
		n = len(cleaned)
	}
	return n, err
}

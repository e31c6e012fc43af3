package jsonlparser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cdtdelta/4n6graph/internal/dataset"
	"github.com/cdtdelta/4n6graph/internal/model"
)

// ReadResult contains the outcome of a JSONL import operation.
type ReadResult struct {
	Payload  *dataset.Payload
	Count    int
	Excluded int
}

// ValidateFile checks if a file looks like telemetry JSONL by reading the
// first line. Every record carries a __typename discriminator.
func ValidateFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)

	if !scanner.Scan() {
		return fmt.Errorf("empty file")
	}

	line := strings.TrimSpace(scanner.Text())
	if len(line) == 0 || line[0] != '{' {
		return fmt.Errorf("first line is not a JSON object")
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return fmt.Errorf("first line is not valid JSON: %w", err)
	}

	if _, ok := raw["__typename"]; !ok {
		return fmt.Errorf("no __typename field found; does not appear to be telemetry JSONL")
	}
	return nil
}

// ReadEvents reads all records from a telemetry JSONL file.
// An onProgress callback is called every 10,000 records if non-nil.
func ReadEvents(path string, onProgress func(count int)) (*ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return Read(f, onProgress)
}

// Read parses telemetry JSONL from r. Lines that are not JSON objects, carry
// an unknown __typename or lack an id are counted as excluded.
func Read(r io.Reader, onProgress func(count int)) (*ReadResult, error) {
	scanner := bufio.NewScanner(r)
	// Port records with many owning processes can get long
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)

	p := &dataset.Payload{}
	count := 0
	excluded := 0
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			excluded++
			continue
		}

		if !appendRecord(p, raw) {
			excluded++
			continue
		}
		count++

		if onProgress != nil && count%10000 == 0 {
			onProgress(count)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input at line %d: %w", lineNum, err)
	}

	return &ReadResult{
		Payload:  p,
		Count:    count,
		Excluded: excluded,
	}, nil
}

// appendRecord maps one decoded line onto the payload collection named by
// its __typename.
func appendRecord(p *dataset.Payload, raw map[string]interface{}) bool {
	id := interfaceToString(raw["id"])
	if id == "" {
		return false
	}
	host := firstString(raw, "hostName", "host_name", "host")

	switch interfaceToString(raw["__typename"]) {
	case "Port":
		p.Ports = append(p.Ports, model.Port{
			ID:         id,
			PortNumber: int(interfaceToInt64(first(raw, "portNumber", "port_number", "port"))),
			HostName:   host,
			ProcessIDs: interfaceToIDs(first(raw, "processes", "processIds", "process_ids")),
		})
	case "Process":
		p.Processes = append(p.Processes, model.Process{
			ID:       id,
			Name:     interfaceToString(raw["name"]),
			HostName: host,
		})
	case "File":
		p.Files = append(p.Files, model.File{
			ID:       id,
			Path:     interfaceToString(raw["path"]),
			Name:     interfaceToString(raw["name"]),
			Type:     interfaceToString(raw["type"]),
			HostName: host,
		})
	case "Endpoint":
		p.Endpoints = append(p.Endpoints, model.Endpoint{
			ID:       id,
			HostName: host,
			HostIP:   firstString(raw, "hostIp", "host_ip", "ip"),
		})
	case "FileVersion":
		ts, ok := interfaceToMillis(raw["timestamp"])
		if !ok {
			return false
		}
		p.FileVersions = append(p.FileVersions, model.FileVersion{
			ID:        id,
			Timestamp: ts,
			Source:    interfaceToString(raw["source"]),
			Target:    interfaceToString(raw["target"]),
			Size:      interfaceToInt64(first(raw, "fileSize", "size")),
			Action:    interfaceToString(raw["action"]),
		})
	case "NetworkActivity":
		ts, ok := interfaceToMillis(raw["timestamp"])
		if !ok {
			return false
		}
		p.NetworkActivities = append(p.NetworkActivities, model.NetworkActivity{
			ID:        id,
			Timestamp: ts,
			Source:    interfaceToString(raw["source"]),
			Target:    interfaceToString(raw["target"]),
			Size:      interfaceToInt64(first(raw, "length", "size")),
			Protocol:  interfaceToString(raw["protocol"]),
			Process:   interfaceToString(raw["process"]),
		})
	default:
		return false
	}
	return true
}

func first(raw map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(raw map[string]interface{}, keys ...string) string {
	return interfaceToString(first(raw, keys...))
}

// interfaceToMillis converts a timestamp given either as epoch milliseconds
// or as an RFC3339 string.
func interfaceToMillis(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case float64:
		return int64(val), true
	case string:
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n, true
		}
		t, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			return 0, false
		}
		return t.UnixMilli(), true
	default:
		return 0, false
	}
}

// interfaceToIDs accepts a list of ids or a list of objects with an id field.
func interfaceToIDs(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]interface{}); ok {
			item = obj["id"]
		}
		if s := interfaceToString(item); s != "" {
			ids = append(ids, s)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}

// interfaceToString converts various types to string.
func interfaceToString(v interface{}) string {
	if v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// interfaceToInt64 converts various types to int64.
func interfaceToInt64(v interface{}) int64 {
	if v == nil {
		return 0
	}
	switch val := v.(type) {
	case float64:
		return int64(val)
	case string:
		n, _ := strconv.ParseInt(val, 10, 64)
		return n
	default:
		return 0
	}
}

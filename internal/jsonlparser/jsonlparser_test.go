package jsonlparser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	err := os.WriteFile(path, []byte(content), 0644)
	if err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

// --- Validation Tests ---

func TestValidateFile_Valid(t *testing.T) {
	content := `{"__typename": "Process", "id": "proc-1", "name": "sshd", "hostName": "ws1"}
`
	path := writeTempFile(t, "valid.jsonl", content)
	if err := ValidateFile(path); err != nil {
		t.Errorf("expected valid file, got error: %v", err)
	}
}

func TestValidateFile_Empty(t *testing.T) {
	path := writeTempFile(t, "empty.jsonl", "")
	if err := ValidateFile(path); err == nil {
		t.Error("expected error for empty file, got nil")
	}
}

func TestValidateFile_NotJSON(t *testing.T) {
	path := writeTempFile(t, "notjson.jsonl", "this is not json\n")
	if err := ValidateFile(path); err == nil {
		t.Error("expected error for non-JSON file, got nil")
	}
}

func TestValidateFile_NoTypename(t *testing.T) {
	content := `{"random_field": "value", "another": 123}
`
	path := writeTempFile(t, "notypename.jsonl", content)
	if err := ValidateFile(path); err == nil {
		t.Error("expected error for JSON without __typename, got nil")
	}
}

func TestValidateFile_MissingFile(t *testing.T) {
	if err := ValidateFile("/nonexistent/path.jsonl"); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestValidateFile_CSVNotJSON(t *testing.T) {
	content := "timestamp,source,target\n1000,a,b\n"
	path := writeTempFile(t, "actually_csv.jsonl", content)
	if err := ValidateFile(path); err == nil {
		t.Error("expected error for CSV content in JSONL file, got nil")
	}
}

// --- Entity Tests ---

func TestReadEvents_Entities(t *testing.T) {
	content := `{"__typename": "Port", "id": "port-1", "portNumber": 22, "hostName": "ws1", "processes": [{"id": "proc-1"}]}
{"__typename": "Port", "id": "port-2", "portNumber": 51000, "hostName": "ws2", "processIds": ["proc-2", "proc-3"]}
{"__typename": "Process", "id": "proc-1", "name": "sshd", "hostName": "ws1"}
{"__typename": "File", "id": "file-1", "path": "/etc/passwd", "name": "passwd", "type": "text", "hostName": "ws1"}
{"__typename": "Endpoint", "id": "ep-1", "hostName": "ws1", "hostIp": "10.0.0.1"}
`
	path := writeTempFile(t, "entities.jsonl", content)
	result, err := ReadEvents(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Count != 5 {
		t.Fatalf("count = %d, want 5", result.Count)
	}
	p := result.Payload
	if len(p.Ports) != 2 || len(p.Processes) != 1 || len(p.Files) != 1 || len(p.Endpoints) != 1 {
		t.Fatalf("unexpected payload shape: %+v", p)
	}
	if p.Ports[0].PortNumber != 22 {
		t.Errorf("port number = %d, want 22", p.Ports[0].PortNumber)
	}
	if len(p.Ports[0].ProcessIDs) != 1 || p.Ports[0].ProcessIDs[0] != "proc-1" {
		t.Errorf("port-1 processes = %v, want [proc-1]", p.Ports[0].ProcessIDs)
	}
	if len(p.Ports[1].ProcessIDs) != 2 {
		t.Errorf("port-2 processes = %v, want two ids", p.Ports[1].ProcessIDs)
	}
	if p.Files[0].Path != "/etc/passwd" {
		t.Errorf("path = %q, want %q", p.Files[0].Path, "/etc/passwd")
	}
	if p.Endpoints[0].HostIP != "10.0.0.1" {
		t.Errorf("host ip = %q, want %q", p.Endpoints[0].HostIP, "10.0.0.1")
	}
}

func TestReadEvents_UnownedPort(t *testing.T) {
	content := `{"__typename": "Port", "id": "port-9", "portNumber": 443, "hostName": "web"}
`
	path := writeTempFile(t, "unowned.jsonl", content)
	result, err := ReadEvents(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Payload.Ports[0].OwnedByProcess() {
		t.Error("port without processes should not be owned")
	}
}

// --- Event Tests ---

func TestReadEvents_FileVersion(t *testing.T) {
	content := `{"__typename": "FileVersion", "id": "fv-1", "timestamp": 61001, "source": "proc-1", "target": "file-1", "fileSize": 300, "action": "write"}
`
	path := writeTempFile(t, "fv.jsonl", content)
	result, err := ReadEvents(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fv := result.Payload.FileVersions[0]
	if fv.Timestamp != 61001 {
		t.Errorf("timestamp = %d, want 61001", fv.Timestamp)
	}
	if fv.Size != 300 {
		t.Errorf("size = %d, want 300", fv.Size)
	}
	if fv.Source != "proc-1" || fv.Target != "file-1" {
		t.Errorf("endpoints = %s -> %s", fv.Source, fv.Target)
	}
	if fv.Action != "write" {
		t.Errorf("action = %q, want %q", fv.Action, "write")
	}
}

func TestReadEvents_NetworkActivityStringTimestamp(t *testing.T) {
	content := `{"__typename": "NetworkActivity", "id": "na-1", "timestamp": "2024-01-15T10:30:00Z", "source": "port-1", "target": "port-2", "length": 1500, "protocol": "tcp"}
`
	path := writeTempFile(t, "na.jsonl", content)
	result, err := ReadEvents(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	na := result.Payload.NetworkActivities[0]
	if na.Timestamp != 1705314600000 {
		t.Errorf("timestamp = %d, want %d", na.Timestamp, int64(1705314600000))
	}
	if na.Size != 1500 {
		t.Errorf("size = %d, want 1500", na.Size)
	}
	if na.Protocol != "tcp" {
		t.Errorf("protocol = %q, want %q", na.Protocol, "tcp")
	}
}

func TestReadEvents_BadTimestampExcluded(t *testing.T) {
	content := `{"__typename": "FileVersion", "id": "fv-1", "timestamp": "yesterday", "source": "proc-1", "target": "file-1", "fileSize": 1}
{"__typename": "FileVersion", "id": "fv-2", "source": "proc-1", "target": "file-1", "fileSize": 1}
`
	path := writeTempFile(t, "badts.jsonl", content)
	result, err := ReadEvents(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Count != 0 || result.Excluded != 2 {
		t.Errorf("count/excluded = %d/%d, want 0/2", result.Count, result.Excluded)
	}
}

func TestReadEvents_SkipsInvalidLines(t *testing.T) {
	content := `{"__typename": "Process", "id": "proc-1", "name": "a"}
this is not json at all
{"__typename": "Socket", "id": "s-1"}
{"__typename": "Process", "name": "no id"}
{"__typename": "Process", "id": "proc-2", "name": "b"}
`
	path := writeTempFile(t, "mixed.jsonl", content)
	result, err := ReadEvents(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Count != 2 {
		t.Errorf("count = %d, want 2", result.Count)
	}
	if result.Excluded != 3 {
		t.Errorf("excluded = %d, want 3", result.Excluded)
	}
}

func TestReadEvents_SkipsBlankLines(t *testing.T) {
	content := `{"__typename": "Process", "id": "proc-1"}

{"__typename": "Process", "id": "proc-2"}
`
	path := writeTempFile(t, "blanks.jsonl", content)
	result, err := ReadEvents(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Count != 2 {
		t.Errorf("count = %d, want 2", result.Count)
	}
	if result.Excluded != 0 {
		t.Errorf("excluded = %d, want 0", result.Excluded)
	}
}

func TestReadEvents_EmptyFile(t *testing.T) {
	path := writeTempFile(t, "empty.jsonl", "")
	result, err := ReadEvents(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Count != 0 {
		t.Errorf("count = %d, want 0", result.Count)
	}
	if result.Payload == nil {
		t.Error("payload should never be nil")
	}
}

func TestRead_Progress(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20000; i++ {
		fmt.Fprintf(&b, `{"__typename": "FileVersion", "id": "fv-%d", "timestamp": %d, "source": "p", "target": "f", "fileSize": 1}`+"\n", i, i)
	}
	var calls []int
	result, err := Read(strings.NewReader(b.String()), func(n int) { calls = append(calls, n) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Count != 20000 {
		t.Errorf("count = %d, want 20000", result.Count)
	}
	if len(calls) != 2 || calls[0] != 10000 || calls[1] != 20000 {
		t.Errorf("progress calls = %v, want [10000 20000]", calls)
	}
}

// --- Helper Tests ---

func TestInterfaceToMillis(t *testing.T) {
	tests := []struct {
		in   interface{}
		want int64
		ok   bool
	}{
		{float64(1000), 1000, true},
		{"2500", 2500, true},
		{"1970-01-01T00:00:01.5Z", 1500, true},
		{"not a time", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := interfaceToMillis(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("interfaceToMillis(%v) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestInterfaceToIDs(t *testing.T) {
	got := interfaceToIDs([]interface{}{"a", map[string]interface{}{"id": "b"}, float64(7), ""})
	want := []string{"a", "b", "7"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if interfaceToIDs("nope") != nil {
		t.Error("non-list input should give nil")
	}
}

func TestInterfaceToString(t *testing.T) {
	tests := []struct {
		input interface{}
		want  string
	}{
		{nil, ""},
		{"hello", "hello"},
		{float64(42), "42"},
		{float64(3.14), "3.14"},
		{true, "true"},
		{false, "false"},
	}
	for _, tt := range tests {
		if got := interfaceToString(tt.input); got != tt.want {
			t.Errorf("interfaceToString(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestInterfaceToInt64(t *testing.T) {
	tests := []struct {
		input interface{}
		want  int64
	}{
		{nil, 0},
		{float64(42), 42},
		{"123", 123},
		{"abc", 0},
		{true, 0},
	}
	for _, tt := range tests {
		if got := interfaceToInt64(tt.input); got != tt.want {
			t.Errorf("interfaceToInt64(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

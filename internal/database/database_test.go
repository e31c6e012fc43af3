package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cdtdelta/4n6graph/internal/dataset"
	"github.com/cdtdelta/4n6graph/internal/model"
)

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

func createTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := CreateSQLite(tempDBPath(t))
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func samplePayload() *dataset.Payload {
	return &dataset.Payload{
		Ports: []model.Port{
			{ID: "port-1", PortNumber: 50123, HostName: "ws1", ProcessIDs: []string{"proc-1", "proc-2"}},
			{ID: "port-2", PortNumber: 443, HostName: "web"},
		},
		Processes: []model.Process{
			{ID: "proc-1", Name: "curl", HostName: "ws1"},
			{ID: "proc-2", Name: "bash", HostName: "ws1"},
		},
		Files:     []model.File{{ID: "file-1", Path: "/tmp/a.sh", Name: "a.sh", Type: "sh", HostName: "ws1"}},
		Endpoints: []model.Endpoint{{ID: "ep-web", HostName: "web", HostIP: "10.0.0.80"}},
		FileVersions: []model.FileVersion{
			{ID: "fv-1", Timestamp: 1000, Source: "proc-1", Target: "file-1", Size: 64, Action: "write"},
			{ID: "fv-2", Timestamp: 90000, Source: "proc-2", Target: "file-1", Size: 32, Action: "write"},
		},
		NetworkActivities: []model.NetworkActivity{
			{ID: "na-1", Timestamp: 500, Source: "port-1", Target: "port-2", Size: 1500, Protocol: "TCP", Process: "proc-1"},
			{ID: "na-2", Timestamp: 120000, Source: "port-1", Target: "port-2", Size: 40, Protocol: "TCP"},
		},
	}
}

func TestCreateAndOpen(t *testing.T) {
	path := tempDBPath(t)

	db, err := CreateSQLite(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	db.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("database file was not created")
	}

	db2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db2.Close()

	for _, tbl := range model.Tables {
		count, err := db2.CountRows(context.Background(), tbl)
		if err != nil {
			t.Fatalf("CountRows(%s) failed: %v", tbl.Name, err)
		}
		if count != 0 {
			t.Errorf("expected 0 rows in %s, got %d", tbl.Name, count)
		}
	}
	if db2.Path() != path {
		t.Errorf("expected path %s, got %s", path, db2.Path())
	}
}

func TestInsertAndLoadPayload(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()

	inserted, err := db.InsertPayload(ctx, samplePayload(), nil)
	if err != nil {
		t.Fatalf("InsertPayload failed: %v", err)
	}
	if inserted != 10 {
		t.Errorf("expected 10 rows inserted, got %d", inserted)
	}

	p, err := db.AnalysisData(ctx, model.Range{Start: 0, End: 100000})
	if err != nil {
		t.Fatalf("AnalysisData failed: %v", err)
	}
	if len(p.Ports) != 2 || len(p.Processes) != 2 || len(p.Files) != 1 || len(p.Endpoints) != 1 {
		t.Errorf("unexpected entity counts: %d ports, %d processes, %d files, %d endpoints",
			len(p.Ports), len(p.Processes), len(p.Files), len(p.Endpoints))
	}
	if len(p.FileVersions) != 2 {
		t.Errorf("expected 2 file versions, got %d", len(p.FileVersions))
	}
	if len(p.NetworkActivities) != 1 || p.NetworkActivities[0].ID != "na-1" {
		t.Errorf("expected only na-1 in range, got %v", p.NetworkActivities)
	}

	port := p.Ports[0]
	if port.ID != "port-1" || strings.Join(port.ProcessIDs, ",") != "proc-1,proc-2" {
		t.Errorf("unexpected port-1: %+v", port)
	}
	if p.Ports[1].ProcessIDs != nil {
		t.Errorf("expected no process ids on port-2, got %v", p.Ports[1].ProcessIDs)
	}
	if p.FileVersions[0].Action != "write" || p.FileVersions[0].Size != 64 {
		t.Errorf("unexpected fv-1: %+v", p.FileVersions[0])
	}
}

func TestAnalysisDataIncludesRangeBounds(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	if _, err := db.InsertPayload(ctx, samplePayload(), nil); err != nil {
		t.Fatalf("InsertPayload failed: %v", err)
	}

	p, err := db.AnalysisData(ctx, model.Range{Start: 1000, End: 90000})
	if err != nil {
		t.Fatalf("AnalysisData failed: %v", err)
	}
	if len(p.FileVersions) != 2 {
		t.Errorf("expected both bounds included, got %d file versions", len(p.FileVersions))
	}
}

func TestUpsertReplacesByID(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	if _, err := db.InsertPayload(ctx, samplePayload(), nil); err != nil {
		t.Fatalf("InsertPayload failed: %v", err)
	}

	update := &dataset.Payload{
		FileVersions: []model.FileVersion{
			{ID: "fv-1", Timestamp: 2000, Source: "proc-1", Target: "file-1", Size: 128},
		},
	}
	if _, err := db.InsertPayload(ctx, update, nil); err != nil {
		t.Fatalf("InsertPayload failed: %v", err)
	}

	count, err := db.CountRows(ctx, model.FileVersionsTable)
	if err != nil {
		t.Fatalf("CountRows failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 file versions, got %d", count)
	}

	p, err := db.AnalysisData(ctx, model.Range{Start: 0, End: 5000})
	if err != nil {
		t.Fatalf("AnalysisData failed: %v", err)
	}
	if len(p.FileVersions) != 1 || p.FileVersions[0].Size != 128 {
		t.Errorf("expected replaced fv-1, got %v", p.FileVersions)
	}
}

func TestInsertProgress(t *testing.T) {
	db := createTestDB(t)

	p := &dataset.Payload{}
	for i := 0; i < 25000; i++ {
		p.FileVersions = append(p.FileVersions, model.FileVersion{
			ID: fmt.Sprintf("fv-%d", i),
		})
	}

	var calls []int
	inserted, err := db.InsertPayload(context.Background(), p, func(count int) {
		calls = append(calls, count)
	})
	if err != nil {
		t.Fatalf("InsertPayload failed: %v", err)
	}
	if inserted != 25000 {
		t.Errorf("expected 25000 inserted, got %d", inserted)
	}
	if len(calls) != 2 || calls[0] != 10000 || calls[1] != 20000 {
		t.Errorf("unexpected progress calls: %v", calls)
	}
}

func TestDataAvailability(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()

	if _, err := db.DataAvailability(ctx); !errors.Is(err, dataset.ErrNoEvents) {
		t.Fatalf("expected ErrNoEvents on empty database, got %v", err)
	}

	if _, err := db.InsertPayload(ctx, samplePayload(), nil); err != nil {
		t.Fatalf("InsertPayload failed: %v", err)
	}
	rng, err := db.DataAvailability(ctx)
	if err != nil {
		t.Fatalf("DataAvailability failed: %v", err)
	}
	if rng.Start != 500 || rng.End != 120001 {
		t.Errorf("expected [500, 120001), got %+v", rng)
	}
}

func TestMigrateAddsMissingColumns(t *testing.T) {
	path := tempDBPath(t)

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	if _, err := conn.Exec("CREATE TABLE file_versions (id TEXT PRIMARY KEY, timestamp INTEGER, source TEXT, target TEXT, size INTEGER)"); err != nil {
		t.Fatalf("creating legacy table failed: %v", err)
	}
	conn.Close()

	db, err := CreateSQLite(path)
	if err != nil {
		t.Fatalf("CreateSQLite failed: %v", err)
	}
	db.Close()

	db2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer db2.Close()

	var count int
	if err := db2.Conn().QueryRow(db2.dialect.SchemaCheckColumnSQL("file_versions", "action")).Scan(&count); err != nil {
		t.Fatalf("schema check failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected action column to be added, got count %d", count)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	if _, err := OpenStore("mysql", "x"); !errors.Is(err, ErrUnsupportedDriver) {
		t.Errorf("expected ErrUnsupportedDriver, got %v", err)
	}
	if _, err := CreateStore("oracle", "x"); !errors.Is(err, ErrUnsupportedDriver) {
		t.Errorf("expected ErrUnsupportedDriver, got %v", err)
	}
}

func TestFactorySQLite(t *testing.T) {
	path := tempDBPath(t)
	s, err := CreateStore("sqlite", path)
	if err != nil {
		t.Fatalf("CreateStore failed: %v", err)
	}
	s.Close()

	s, err = OpenStore("sqlite", path)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*SQLiteStore); !ok {
		t.Errorf("expected *SQLiteStore, got %T", s)
	}
}

func TestPostgresDialectSQL(t *testing.T) {
	d := &PostgresDialect{}

	got := d.UpsertSQL(model.EndpointsTable)
	want := "INSERT INTO endpoints (id, host_name, host_ip) VALUES ($1, $2, $3) ON CONFLICT (id) DO UPDATE SET host_name = EXCLUDED.host_name, host_ip = EXCLUDED.host_ip"
	if got != want {
		t.Errorf("unexpected upsert:\n got %s\nwant %s", got, want)
	}

	ddl := createTableSQL(d, model.FileVersionsTable)
	if !strings.Contains(ddl, `"timestamp" BIGINT NOT NULL DEFAULT 0`) {
		t.Errorf("expected quoted BIGINT timestamp column, got %s", ddl)
	}
	if d.SanitizeText("a\x00b") != "ab" {
		t.Error("expected null bytes to be stripped")
	}
}

func TestSQLiteDialectSQL(t *testing.T) {
	d := &SQLiteDialect{}
	got := d.UpsertSQL(model.ProcessesTable)
	want := "INSERT OR REPLACE INTO processes (id, name, host_name) VALUES (?, ?, ?)"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

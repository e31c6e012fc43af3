package model

// Table describes one telemetry table: its name and the ordered list of
// columns. Used for query building, column validation and schema creation.
type Table struct {
	Name    string
	Columns []string
	// Timed tables hold raw events and are filtered by timestamp.
	Timed bool
}

var (
	PortsTable = Table{
		Name:    "ports",
		Columns: []string{"id", "port_number", "host_name", "process_ids"},
	}
	ProcessesTable = Table{
		Name:    "processes",
		Columns: []string{"id", "name", "host_name"},
	}
	FilesTable = Table{
		Name:    "files",
		Columns: []string{"id", "path", "name", "type", "host_name"},
	}
	EndpointsTable = Table{
		Name:    "endpoints",
		Columns: []string{"id", "host_name", "host_ip"},
	}
	FileVersionsTable = Table{
		Name:    "file_versions",
		Columns: []string{"id", "timestamp", "source", "target", "size", "action"},
		Timed:   true,
	}
	NetworkActivitiesTable = Table{
		Name:    "network_activities",
		Columns: []string{"id", "timestamp", "source", "target", "size", "protocol", "process"},
		Timed:   true,
	}
)

// Tables lists every telemetry table in creation order.
var Tables = []Table{
	PortsTable, ProcessesTable, FilesTable, EndpointsTable,
	FileVersionsTable, NetworkActivitiesTable,
}

// HasColumn reports whether name is one of the table's columns.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

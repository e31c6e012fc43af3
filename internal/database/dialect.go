package database

import (
	"fmt"
	"strings"

	"github.com/cdtdelta/4n6graph/internal/model"
)

// Dialect abstracts all database-specific SQL generation.
// Each database backend (SQLite, PostgreSQL) implements this interface.
// Placeholder and QuoteColumn match query.Dialect through Go structural
// typing, so a Dialect can also serve as a query.Dialect.
type Dialect interface {
	// DriverName returns the database/sql driver name (e.g. "sqlite", "pgx").
	DriverName() string

	// DSN returns the data source name for opening a connection.
	DSN(pathOrConnStr string) string

	// Placeholder returns the parameter placeholder for the given 1-based index.
	Placeholder(index int) string

	// QuoteColumn returns the column name quoted appropriately for the dialect.
	QuoteColumn(name string) string

	// IntegerType is the column type used for timestamps, sizes and port numbers.
	IntegerType() string

	// SchemaCheckColumnSQL returns a query counting how many times a column
	// appears in a table's schema. Used for migration checks.
	SchemaCheckColumnSQL(table, column string) string

	// UpsertSQL returns the parameterized statement inserting one row of
	// table, replacing any row with the same id.
	UpsertSQL(table model.Table) string

	// SanitizeText cleans a string value before it is written.
	SanitizeText(s string) string
}

// integerColumns hold int64 values in every table.
var integerColumns = map[string]bool{"timestamp": true, "size": true, "port_number": true}

func columnDDL(d Dialect, column string) string {
	switch {
	case column == "id":
		return d.QuoteColumn(column) + " TEXT PRIMARY KEY"
	case integerColumns[column]:
		return d.QuoteColumn(column) + " " + d.IntegerType() + " NOT NULL DEFAULT 0"
	default:
		return d.QuoteColumn(column) + " TEXT NOT NULL DEFAULT ''"
	}
}

// createTableSQL returns the DDL for one telemetry table.
func createTableSQL(d Dialect, t model.Table) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = columnDDL(d, c)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.Name, strings.Join(cols, ", "))
}

// addColumnSQL returns the DDL adding a missing column to an existing table.
func addColumnSQL(d Dialect, t model.Table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", t.Name, columnDDL(d, column))
}

// indexedColumns lists the columns indexed on event tables.
var indexedColumns = []string{"timestamp", "source", "target"}

func createIndexSQL(d Dialect, t model.Table, column string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_%s_idx ON %s (%s)",
		t.Name, column, t.Name, d.QuoteColumn(column))
}

func columnList(d Dialect, t model.Table) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = d.QuoteColumn(c)
	}
	return strings.Join(cols, ", ")
}

func placeholders(d Dialect, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = d.Placeholder(i + 1)
	}
	return strings.Join(ph, ", ")
}

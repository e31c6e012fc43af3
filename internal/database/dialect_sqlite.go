package database

import (
	"fmt"

	"github.com/cdtdelta/4n6graph/internal/model"
)

// SQLiteDialect implements the Dialect interface for SQLite databases.
// It also satisfies query.Dialect through structural typing.
type SQLiteDialect struct{}

func (d *SQLiteDialect) DriverName() string              { return "sqlite" }
func (d *SQLiteDialect) DSN(pathOrConnStr string) string { return pathOrConnStr }
func (d *SQLiteDialect) Placeholder(index int) string    { return "?" }
func (d *SQLiteDialect) QuoteColumn(name string) string  { return name }
func (d *SQLiteDialect) IntegerType() string             { return "INTEGER" }
func (d *SQLiteDialect) SanitizeText(s string) string    { return s }

func (d *SQLiteDialect) SchemaCheckColumnSQL(table, column string) string {
	return fmt.Sprintf(
		"SELECT COUNT(*) FROM pragma_table_info('%s') WHERE name='%s'", table, column)
}

func (d *SQLiteDialect) UpsertSQL(t model.Table) string {
	return fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		t.Name, columnList(d, t), placeholders(d, len(t.Columns)))
}

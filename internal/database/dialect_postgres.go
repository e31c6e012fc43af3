package database

import (
	"fmt"
	"strings"

	"github.com/cdtdelta/4n6graph/internal/model"
)

// pgQuoteCol wraps a column name in double quotes if PostgreSQL treats it as
// a keyword that needs quoting in column position.
func pgQuoteCol(name string) string {
	switch name {
	case "timestamp", "type", "action":
		return `"` + name + `"`
	default:
		return name
	}
}

// PostgresDialect implements the Dialect interface for PostgreSQL databases.
// It also satisfies query.Dialect through structural typing.
type PostgresDialect struct{}

func (d *PostgresDialect) DriverName() string              { return "pgx" }
func (d *PostgresDialect) DSN(pathOrConnStr string) string { return pathOrConnStr }
func (d *PostgresDialect) Placeholder(index int) string    { return fmt.Sprintf("$%d", index) }
func (d *PostgresDialect) QuoteColumn(name string) string  { return pgQuoteCol(name) }
func (d *PostgresDialect) IntegerType() string             { return "BIGINT" }

// SanitizeText strips null bytes (0x00). SQLite stores these fine but
// PostgreSQL rejects them with "invalid byte sequence for encoding UTF8".
func (d *PostgresDialect) SanitizeText(s string) string {
	if strings.ContainsRune(s, '\x00') {
		return strings.ReplaceAll(s, "\x00", "")
	}
	return s
}

func (d *PostgresDialect) SchemaCheckColumnSQL(table, column string) string {
	return fmt.Sprintf(
		"SELECT COUNT(*) FROM information_schema.columns WHERE table_name='%s' AND column_name='%s'",
		table, column)
}

func (d *PostgresDialect) UpsertSQL(t model.Table) string {
	var sets []string
	for _, c := range t.Columns {
		if c == "id" {
			continue
		}
		q := d.QuoteColumn(c)
		sets = append(sets, q+" = EXCLUDED."+q)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		t.Name, columnList(d, t), placeholders(d, len(t.Columns)), strings.Join(sets, ", "))
}

package query

// Dialect abstracts the SQL syntax differences needed for query building.
// database.Dialect satisfies it through structural typing.
type Dialect interface {
	// Placeholder returns the parameter placeholder for the given 1-based index.
	// SQLite returns "?" (ignoring the index), PostgreSQL returns "$1", "$2", etc.
	Placeholder(index int) string

	// QuoteColumn returns the column name quoted appropriately for the dialect.
	QuoteColumn(name string) string
}

type sqliteDialect struct{}

func (sqliteDialect) Placeholder(int) string         { return "?" }
func (sqliteDialect) QuoteColumn(name string) string { return name }

// DefaultDialect produces SQLite-compatible SQL.
var DefaultDialect Dialect = sqliteDialect{}

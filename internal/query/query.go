// Package query builds parameterized SELECT statements over the telemetry
// tables. Column names are validated against model.Table so that nothing
// user-supplied is ever interpolated into SQL.
package query

import (
	"fmt"
	"strings"

	"github.com/cdtdelta/4n6graph/internal/model"
)

// Logic determines how multiple predicates are combined.
type Logic int

const (
	AND Logic = iota
	OR
)

// Operator represents a SQL comparison operator.
type Operator string

const (
	Equal          Operator = "="
	NotEqual       Operator = "!="
	Like           Operator = "LIKE"
	NotLike        Operator = "NOT LIKE"
	GreaterOrEqual Operator = ">="
	LessOrEqual    Operator = "<="
	Less           Operator = "<"
)

var validOperators = map[Operator]bool{
	Equal: true, NotEqual: true, Like: true, NotLike: true,
	GreaterOrEqual: true, LessOrEqual: true, Less: true,
}

// Predicate is a single condition or a composite of conditions.
type Predicate struct {
	kind  predicateKind
	field string
	op    Operator
	value interface{}
	lo    int64
	hi    int64
	left  *Predicate
	right *Predicate
	logic Logic
}

type predicateKind int

const (
	predNone predicateKind = iota
	predSimple
	predBetween
	predComposite
)

// Simple creates a predicate comparing a column of table to a value.
// Returns nil if the column or the operator is unknown.
func Simple(table model.Table, field string, op Operator, value interface{}) *Predicate {
	if !table.HasColumn(field) || !validOperators[op] {
		return nil
	}
	return &Predicate{kind: predSimple, field: field, op: op, value: value}
}

// TimeRange creates a predicate selecting rows with lo <= timestamp <= hi.
// Returns nil for tables without a timestamp column.
func TimeRange(table model.Table, lo, hi int64) *Predicate {
	if !table.Timed {
		return nil
	}
	return &Predicate{kind: predBetween, field: "timestamp", lo: lo, hi: hi}
}

// Combine joins predicates with the given logic. Nil predicates are skipped.
// Returns nil when nothing is left, or the single remaining predicate.
func Combine(preds []*Predicate, logic Logic) *Predicate {
	filtered := make([]*Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	result := filtered[0]
	for _, p := range filtered[1:] {
		result = &Predicate{kind: predComposite, left: result, right: p, logic: logic}
	}
	return result
}

// WhereClause returns the SQL WHERE fragment and its parameter values,
// numbering placeholders from 1.
func (p *Predicate) WhereClause(d Dialect) (string, []interface{}) {
	n := 0
	return p.where(d, &n)
}

func (p *Predicate) where(d Dialect, n *int) (string, []interface{}) {
	if p == nil {
		return "", nil
	}
	next := func() string {
		*n++
		return d.Placeholder(*n)
	}

	switch p.kind {
	case predSimple:
		col := d.QuoteColumn(p.field)
		if p.op == Like || p.op == NotLike {
			return fmt.Sprintf("(%s %s %s)", col, p.op, next()),
				[]interface{}{fmt.Sprintf("%%%v%%", p.value)}
		}
		return fmt.Sprintf("(%s %s %s)", col, p.op, next()), []interface{}{p.value}

	case predBetween:
		col := d.QuoteColumn(p.field)
		lo := next()
		hi := next()
		return fmt.Sprintf("(%s BETWEEN %s AND %s)", col, lo, hi), []interface{}{p.lo, p.hi}

	case predComposite:
		leftSQL, leftArgs := p.left.where(d, n)
		rightSQL, rightArgs := p.right.where(d, n)
		if leftSQL == "" {
			return rightSQL, rightArgs
		}
		if rightSQL == "" {
			return leftSQL, leftArgs
		}
		logicStr := "AND"
		if p.logic == OR {
			logicStr = "OR"
		}
		return fmt.Sprintf("(%s %s %s)", leftSQL, logicStr, rightSQL), append(leftArgs, rightArgs...)
	}
	return "", nil
}

// Fields returns the column names referenced by this predicate tree.
func (p *Predicate) Fields() []string {
	if p == nil {
		return nil
	}
	switch p.kind {
	case predSimple, predBetween:
		return []string{p.field}
	case predComposite:
		seen := make(map[string]bool)
		var result []string
		for _, f := range append(p.left.Fields(), p.right.Fields()...) {
			if !seen[f] {
				seen[f] = true
				result = append(result, f)
			}
		}
		return result
	}
	return nil
}

// Query builds a SELECT over one table from predicates, ordering and
// pagination.
type Query struct {
	table      model.Table
	predicates []*Predicate
	logic      Logic
	orderBy    string
	pageSize   int
	page       int
}

// New creates a query over table. Pass 0 for no pagination.
func New(table model.Table, pageSize int) *Query {
	return &Query{table: table, logic: AND, pageSize: pageSize, page: 1}
}

// Table returns the table the query selects from.
func (q *Query) Table() model.Table { return q.table }

func (q *Query) SetLogic(logic Logic) { q.logic = logic }

// AddPredicate appends a predicate. Nil predicates are ignored.
func (q *Query) AddPredicate(p *Predicate) {
	if p != nil {
		q.predicates = append(q.predicates, p)
	}
}

func (q *Query) ClearPredicates() { q.predicates = nil }

// OrderBy sets the column to sort results by. Pass "" to clear ordering.
func (q *Query) OrderBy(field string) error {
	if field != "" && !q.table.HasColumn(field) {
		return fmt.Errorf("invalid order by field for %s: %s", q.table.Name, field)
	}
	q.orderBy = field
	return nil
}

// SetPage sets the current page number (1-based).
func (q *Query) SetPage(page int) {
	if page >= 1 {
		q.page = page
	}
}

func (q *Query) PageNumber() int { return q.page }

func (q *Query) where(d Dialect) (string, []interface{}) {
	combined := Combine(q.predicates, q.logic)
	if combined == nil {
		return "", nil
	}
	sql, args := combined.WhereClause(d)
	if sql == "" {
		return "", nil
	}
	return " WHERE " + sql, args
}

// Build generates the SELECT statement, listing the table's columns in order.
func (q *Query) Build(d Dialect) (string, []interface{}) {
	cols := make([]string, len(q.table.Columns))
	for i, c := range q.table.Columns {
		cols[i] = d.QuoteColumn(c)
	}
	sql := "SELECT " + strings.Join(cols, ", ") + " FROM " + q.table.Name
	where, args := q.where(d)
	sql += where
	if q.orderBy != "" {
		sql += " ORDER BY " + d.QuoteColumn(q.orderBy)
	}
	if q.pageSize > 0 {
		sql += fmt.Sprintf(" LIMIT %d OFFSET %d", q.pageSize, q.pageSize*(q.page-1))
	}
	return sql, args
}

// BuildCount generates a COUNT query using the same predicates.
func (q *Query) BuildCount(d Dialect) (string, []interface{}) {
	where, args := q.where(d)
	return "SELECT COUNT(*) FROM " + q.table.Name + where, args
}

// BuildSpan generates a query for the smallest and largest timestamp, or
// "" for tables without timestamps.
func (q *Query) BuildSpan(d Dialect) (string, []interface{}) {
	if !q.table.Timed {
		return "", nil
	}
	col := d.QuoteColumn("timestamp")
	where, args := q.where(d)
	return fmt.Sprintf("SELECT MIN(%s), MAX(%s), COUNT(*) FROM %s%s", col, col, q.table.Name, where), args
}

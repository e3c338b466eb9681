package database

import (
	"fmt"
	"strings"
)

// Filter is a declarative predicate over a table's columns. Filters compose
// with And/Or and compile to a WHERE fragment with ? placeholders, which the
// dialect rewrites like any other query.
//
// Column and table names are trusted identifiers supplied by repository code,
// never by request input.
type Filter interface {
	compile(b *sqlBuilder)
}

type sqlBuilder struct {
	sb   strings.Builder
	args []any
}

// Where compiles a filter to a SQL fragment and its arguments. A nil filter
// matches every row.
func Where(f Filter) (string, []any) {
	if f == nil {
		f = MatchAll
	}
	b := &sqlBuilder{}
	f.compile(b)
	return b.sb.String(), b.args
}

type constFilter bool

func (c constFilter) compile(b *sqlBuilder) {
	if c {
		b.sb.WriteString("1 = 1")
	} else {
		b.sb.WriteString("1 = 0")
	}
}

var (
	// MatchAll matches every row
	MatchAll Filter = constFilter(true)
	// MatchNothing matches no row
	MatchNothing Filter = constFilter(false)
)

type compareFilter struct {
	column string
	op     string
	value  any
}

func (c compareFilter) compile(b *sqlBuilder) {
	fmt.Fprintf(&b.sb, "%s %s ?", c.column, c.op)
	b.args = append(b.args, c.value)
}

// Eq matches rows where column = value
func Eq(column string, value any) Filter {
	return compareFilter{column: column, op: "=", value: value}
}

// Gte matches rows where column >= value
func Gte(column string, value any) Filter {
	return compareFilter{column: column, op: ">=", value: value}
}

// Lte matches rows where column <= value
func Lte(column string, value any) Filter {
	return compareFilter{column: column, op: "<=", value: value}
}

// Between matches the inclusive range [lo, hi]
func Between(column string, lo, hi any) Filter {
	return And(Gte(column, lo), Lte(column, hi))
}

type nullFilter struct {
	column string
	isNull bool
}

func (n nullFilter) compile(b *sqlBuilder) {
	if n.isNull {
		fmt.Fprintf(&b.sb, "%s IS NULL", n.column)
	} else {
		fmt.Fprintf(&b.sb, "%s IS NOT NULL", n.column)
	}
}

// IsNull matches rows where column is NULL
func IsNull(column string) Filter {
	return nullFilter{column: column, isNull: true}
}

// NotNull matches rows where column is not NULL
func NotNull(column string) Filter {
	return nullFilter{column: column}
}

type inFilter struct {
	column string
	values []any
}

func (f inFilter) compile(b *sqlBuilder) {
	if len(f.values) == 0 {
		MatchNothing.compile(b)
		return
	}
	fmt.Fprintf(&b.sb, "%s IN (", f.column)
	for i, v := range f.values {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.sb.WriteString("?")
		b.args = append(b.args, v)
	}
	b.sb.WriteString(")")
}

// In matches rows where column is one of values. An empty set matches nothing.
func In[T any](column string, values ...T) Filter {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return inFilter{column: column, values: vals}
}

type boolFilter struct {
	op    string
	terms []Filter
}

func (f boolFilter) compile(b *sqlBuilder) {
	b.sb.WriteString("(")
	for i, t := range f.terms {
		if i > 0 {
			fmt.Fprintf(&b.sb, " %s ", f.op)
		}
		t.compile(b)
	}
	b.sb.WriteString(")")
}

// And matches rows satisfying every term. nil terms are ignored.
func And(terms ...Filter) Filter {
	kept := compact(terms)
	switch len(kept) {
	case 0:
		return MatchAll
	case 1:
		return kept[0]
	}
	return boolFilter{op: "AND", terms: kept}
}

// Or matches rows satisfying at least one term. nil terms are ignored.
func Or(terms ...Filter) Filter {
	kept := compact(terms)
	switch len(kept) {
	case 0:
		return MatchNothing
	case 1:
		return kept[0]
	}
	return boolFilter{op: "OR", terms: kept}
}

func compact(terms []Filter) []Filter {
	kept := make([]Filter, 0, len(terms))
	for _, t := range terms {
		if t != nil {
			kept = append(kept, t)
		}
	}
	return kept
}

type relatedFilter struct {
	column   string
	table    string
	relation string
	inner    Filter
}

func (f relatedFilter) compile(b *sqlBuilder) {
	fmt.Fprintf(&b.sb, "%s IN (SELECT %s FROM %s WHERE ", f.column, f.relation, f.table)
	f.inner.compile(b)
	b.sb.WriteString(")")
}

// Related matches rows whose column references a row of table (through
// relation, usually "id") that satisfies inner. It expresses predicates over
// nested relations, e.g. visits whose family belongs to a given nucleo.
func Related(column, table, relation string, inner Filter) Filter {
	if inner == nil {
		inner = MatchAll
	}
	return relatedFilter{column: column, table: table, relation: relation, inner: inner}
}

// Sort orders results by a single field
type Sort struct {
	Field string
	Desc  bool
}

// OrderBy renders the ORDER BY clause. Fields outside allowed fall back to def.
func (s Sort) OrderBy(allowed map[string]string, def string) string {
	column, ok := allowed[s.Field]
	if !ok {
		return " ORDER BY " + def
	}
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", column, dir)
}

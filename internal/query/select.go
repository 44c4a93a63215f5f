package query

import (
	"strings"
)

// Column is a projected expression with an optional alias
type Column struct {
	Expr Expr
	As   string
}

// As projects e under alias
func As(e Expr, alias string) Column { return Column{Expr: e, As: alias} }

// Plain projects e under its own name
func Plain(e Expr) Column { return Column{Expr: e} }

func (c Column) SQL() string {
	if c.As == "" {
		return c.Expr.SQL()
	}
	return c.Expr.SQL() + " AS " + QuoteIdent(c.As)
}

// AllExcept renders rel.* EXCLUDE (cols); rel may be empty
type AllExcept struct {
	Table   string
	Exclude []string
}

func (a AllExcept) SQL() string {
	s := "*"
	if a.Table != "" {
		s = a.Table + ".*"
	}
	if len(a.Exclude) == 0 {
		return s
	}
	quoted := make([]string, len(a.Exclude))
	for i, c := range a.Exclude {
		quoted[i] = QuoteIdent(c)
	}
	return s + " EXCLUDE (" + strings.Join(quoted, ", ") + ")"
}

// Source is anything usable in a FROM clause
type Source interface {
	SQL() string
}

// Table references a named relation such as a CTE
type Table string

func (t Table) SQL() string { return QuoteIdent(string(t)) }

// TableFunc is a table function such as read_parquet
type TableFunc struct {
	Name    string
	Args    []Expr
	Options []Option
}

// Option is a named table function or COPY argument
type Option struct {
	Name  string
	Value Expr // nil renders the bare keyword
}

func (t TableFunc) SQL() string {
	parts := make([]string, 0, len(t.Args)+len(t.Options))
	for _, a := range t.Args {
		parts = append(parts, a.SQL())
	}
	for _, o := range t.Options {
		parts = append(parts, o.Name+" = "+o.Value.SQL())
	}
	return t.Name + "(" + strings.Join(parts, ", ") + ")"
}

// Subquery uses a Select as a source
type Subquery struct{ Select Select }

func (s Subquery) SQL() string { return "(" + s.Select.SQL() + ")" }

// Join is a join clause
type Join struct {
	Kind   string // LEFT, INNER
	Source Source
	Alias  string
	On     Expr
}

// LeftJoin builds a LEFT join of source aliased as alias
func LeftJoin(source Source, alias string, on Expr) Join {
	return Join{Kind: "LEFT", Source: source, Alias: alias, On: on}
}

// CTE is a named common table expression
type CTE struct {
	Name   string
	Select Select
}

// Select is a SELECT statement
type Select struct {
	With      []CTE
	Distinct  bool
	Columns   []Column
	Prefix    []Expr // rendered before Columns, e.g. AllExcept
	From      Source
	FromAlias string
	Joins     []Join
	Where     []Expr
	GroupBy   []Expr
	Having    []Expr
	OrderBy   []Expr
	Limit     int
}

// SQL renders the statement
func (s Select) SQL() string {
	var b strings.Builder

	if len(s.With) > 0 {
		b.WriteString("WITH ")
		for i, cte := range s.With {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(QuoteIdent(cte.Name))
			b.WriteString(" AS (\n")
			b.WriteString(cte.Select.SQL())
			b.WriteString("\n)")
		}
		b.WriteString("\n")
	}

	b.WriteString("SELECT ")
	if s.Distinct {
		b.WriteString("DISTINCT ")
	}
	cols := make([]string, 0, len(s.Prefix)+len(s.Columns))
	for _, p := range s.Prefix {
		cols = append(cols, p.SQL())
	}
	for _, c := range s.Columns {
		cols = append(cols, c.SQL())
	}
	if len(cols) == 0 {
		cols = append(cols, "*")
	}
	b.WriteString(strings.Join(cols, ",\n  "))

	if s.From != nil {
		b.WriteString("\nFROM ")
		b.WriteString(s.From.SQL())
		if s.FromAlias != "" {
			b.WriteString(" AS " + s.FromAlias)
		}
	}

	for _, j := range s.Joins {
		b.WriteString("\n" + j.Kind + " JOIN ")
		b.WriteString(j.Source.SQL())
		if j.Alias != "" {
			b.WriteString(" AS " + j.Alias)
		}
		b.WriteString(" ON " + j.On.SQL())
	}

	if len(s.Where) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(And(s.Where).SQL())
	}
	if len(s.GroupBy) > 0 {
		b.WriteString("\nGROUP BY ")
		b.WriteString(joinExprs(s.GroupBy, ", "))
	}
	if len(s.Having) > 0 {
		b.WriteString("\nHAVING ")
		b.WriteString(And(s.Having).SQL())
	}
	if len(s.OrderBy) > 0 {
		b.WriteString("\nORDER BY ")
		b.WriteString(joinExprs(s.OrderBy, ", "))
	}
	if s.Limit > 0 {
		b.WriteString("\nLIMIT ")
		b.WriteString(Int(s.Limit).SQL())
	}

	return b.String()
}

// WithoutWhere returns a copy of s with no WHERE clause
func (s Select) WithoutWhere() Select {
	s.Where = nil
	return s
}

// Count wraps s as SELECT COUNT(*) FROM (s)
func Count(s Select) Select {
	return Select{
		Columns:   []Column{As(Call("COUNT", Star{}), "n")},
		From:      Subquery{Select: s},
		FromAlias: "q",
	}
}

// Desc orders by X descending
type Desc struct{ X Expr }

func (d Desc) SQL() string { return d.X.SQL() + " DESC" }

// Package query builds DuckDB statements as values instead of formatted strings.
// Identifiers and literals are always quoted on render.
package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr is a renderable SQL expression
type Expr interface {
	SQL() string
}

// QuoteIdent quotes an identifier, doubling embedded quotes
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString quotes a string literal, doubling embedded quotes
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Ident is a column reference, optionally qualified by a relation alias
type Ident struct {
	Table string
	Name  string
}

// Col references an unqualified column
func Col(name string) Ident { return Ident{Name: name} }

// QCol references a column of a named relation
func QCol(table, name string) Ident { return Ident{Table: table, Name: name} }

func (i Ident) SQL() string {
	if i.Table == "" {
		return QuoteIdent(i.Name)
	}
	return i.Table + "." + QuoteIdent(i.Name)
}

// String is a string literal
type String string

func (s String) SQL() string { return QuoteString(string(s)) }

// Date is a DATE literal in YYYY-MM-DD form
type Date string

func (d Date) SQL() string { return "DATE " + QuoteString(string(d)) }

// Bool is a boolean literal
type Bool bool

func (b Bool) SQL() string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// Int is an integer literal
type Int int64

func (i Int) SQL() string { return strconv.FormatInt(int64(i), 10) }

// Float is a floating point literal
type Float float64

func (f Float) SQL() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }

// Null is the NULL literal
type Null struct{}

func (Null) SQL() string { return "NULL" }

// Func is a scalar or aggregate function call
type Func struct {
	Name     string
	Args     []Expr
	Distinct bool
}

// Call builds a function call
func Call(name string, args ...Expr) Func { return Func{Name: name, Args: args} }

func (f Func) SQL() string {
	prefix := ""
	if f.Distinct {
		prefix = "DISTINCT "
	}
	return f.Name + "(" + prefix + joinExprs(f.Args, ", ") + ")"
}

// Star renders COUNT(*)-style arguments
type Star struct{}

func (Star) SQL() string { return "*" }

// Cast converts X to Type
type Cast struct {
	X    Expr
	Type string
}

func (c Cast) SQL() string { return "CAST(" + c.X.SQL() + " AS " + c.Type + ")" }

// Struct is a struct literal such as {'col': 'VARCHAR'}, fields in order
type Struct []Field

// Field is one entry of a Struct
type Field struct {
	Name  string
	Value Expr
}

func (s Struct) SQL() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = QuoteString(f.Name) + ": " + f.Value.SQL()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Coalesce returns the first non-null argument
func Coalesce(args ...Expr) Func { return Call("COALESCE", args...) }

// Case is a single-branch CASE expression
type Case struct {
	When Expr
	Then Expr
	Else Expr
}

func (c Case) SQL() string {
	s := "CASE WHEN " + c.When.SQL() + " THEN " + c.Then.SQL()
	if c.Else != nil {
		s += " ELSE " + c.Else.SQL()
	}
	return s + " END"
}

// IsNotNull tests X for non-null
type IsNotNull struct{ X Expr }

func (n IsNotNull) SQL() string { return n.X.SQL() + " IS NOT NULL" }

// Binary is an infix operation
type Binary struct {
	Op   string
	L, R Expr
}

func (b Binary) SQL() string { return b.L.SQL() + " " + b.Op + " " + b.R.SQL() }

func Eq(l, r Expr) Binary  { return Binary{Op: "=", L: l, R: r} }
func Ge(l, r Expr) Binary  { return Binary{Op: ">=", L: l, R: r} }
func Le(l, r Expr) Binary  { return Binary{Op: "<=", L: l, R: r} }
func Gt(l, r Expr) Binary  { return Binary{Op: ">", L: l, R: r} }
func Sub(l, r Expr) Binary { return Binary{Op: "-", L: l, R: r} }

// Paren wraps X in parentheses
type Paren struct{ X Expr }

func (p Paren) SQL() string { return "(" + p.X.SQL() + ")" }

// Div divides l by r, parenthesizing both sides
func Div(l, r Expr) Binary { return Binary{Op: "/", L: Paren{l}, R: Paren{r}} }

// And joins conditions with AND
type And []Expr

func (a And) SQL() string { return joinExprs(a, " AND ") }

// In tests membership of X in a literal list
type In struct {
	X    Expr
	List []Expr
}

func (in In) SQL() string { return in.X.SQL() + " IN (" + joinExprs(in.List, ", ") + ")" }

// Strings converts Go strings to literal expressions
func Strings(values ...string) []Expr {
	out := make([]Expr, len(values))
	for i, v := range values {
		out[i] = String(v)
	}
	return out
}

// Window applies an aggregate over a window
type Window struct {
	Func        Func
	PartitionBy []Expr
	OrderBy     []Expr
	Frame       string // e.g. "ROWS BETWEEN 28 PRECEDING AND 1 PRECEDING"
}

func (w Window) SQL() string {
	var parts []string
	if len(w.PartitionBy) > 0 {
		parts = append(parts, "PARTITION BY "+joinExprs(w.PartitionBy, ", "))
	}
	if len(w.OrderBy) > 0 {
		parts = append(parts, "ORDER BY "+joinExprs(w.OrderBy, ", "))
	}
	if w.Frame != "" {
		parts = append(parts, w.Frame)
	}
	return w.Func.SQL() + " OVER (" + strings.Join(parts, " ") + ")"
}

// RowsPreceding is a frame over the n rows before the current one
func RowsPreceding(n int) string {
	return fmt.Sprintf("ROWS BETWEEN %d PRECEDING AND 1 PRECEDING", n)
}

func joinExprs(exprs []Expr, sep string) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.SQL()
	}
	return strings.Join(parts, sep)
}

package enrich

import (
	"time"

	"dmastore/internal/query"
)

// Epoch is the sentinel date substituted for a missing the_date
var Epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// Policy is a named substitution applied when a source field is null.
// Expr renders it for the engine and Apply mirrors it in Go; both must agree.
type Policy[T any] struct {
	Field    string
	CastType string
	Default  T
	literal  func(T) query.Expr
}

// Expr casts col to the policy type and substitutes Default for null
func (p Policy[T]) Expr(col query.Expr) query.Expr {
	return query.Coalesce(query.Cast{X: col, Type: p.CastType}, p.literal(p.Default))
}

// Apply returns *v, or Default when v is nil
func (p Policy[T]) Apply(v *T) T {
	if v == nil {
		return p.Default
	}
	return *v
}

// TheDate substitutes the epoch for a null date
var TheDate = Policy[time.Time]{
	Field:    "the_date",
	CastType: "DATE",
	Default:  Epoch,
	literal: func(t time.Time) query.Expr {
		return query.Date(t.Format("2006-01-02"))
	},
}

// DS substitutes "unknown" for a null data source
var DS = Policy[string]{
	Field:    "ds",
	CastType: "VARCHAR",
	Default:  "unknown",
	literal: func(s string) query.Expr {
		return query.String(s)
	},
}

// MoverInd treats a null mover flag as a non-mover
var MoverInd = Policy[bool]{
	Field:    "mover_ind",
	CastType: "BOOLEAN",
	Default:  false,
	literal: func(b bool) query.Expr {
		return query.Bool(b)
	},
}

// Mover partition labels
const (
	MoverTrue  = "True"
	MoverFalse = "False"
)

// MoverLabel renders the p_mover_ind partition value
func MoverLabel(mover bool) string {
	if mover {
		return MoverTrue
	}
	return MoverFalse
}

// MoverLabelExpr is the engine form of MoverLabel
func MoverLabelExpr(col query.Expr) query.Expr {
	return query.Case{When: col, Then: query.String(MoverTrue), Else: query.String(MoverFalse)}
}

// Package analysis reads the partitioned store for national win-share series
// and rolling z-score outliers.
package analysis

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	"dmastore/internal/enrich"
	"dmastore/internal/query"
	"dmastore/pkg/errors"
	"dmastore/pkg/models"
)

const dateLayout = "2006-01-02"

// Querier runs read queries against the engine
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Scope selects a slice of the store
type Scope struct {
	Store string
	DS    string
	Mover bool
	Start string // YYYY-MM-DD, inclusive
	End   string // YYYY-MM-DD, inclusive
}

func (s Scope) validate() error {
	if strings.TrimSpace(s.Store) == "" {
		return errors.ValidationError("store", s.Store, "store location is required")
	}
	if strings.TrimSpace(s.DS) == "" {
		return errors.ValidationError("ds", s.DS, "data source is required")
	}
	start, err := time.Parse(dateLayout, s.Start)
	if err != nil {
		return errors.ValidationError("start", s.Start, "expected YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, s.End)
	if err != nil {
		return errors.ValidationError("end", s.End, "expected YYYY-MM-DD")
	}
	if end.Before(start) {
		return errors.ValidationError("end", s.End, "end is before start")
	}
	return nil
}

// StoreGlob is the pattern readers use for a store root
func StoreGlob(root string) string {
	if strings.HasSuffix(root, ".parquet") {
		return root
	}
	return filepath.Join(root, "**", "*.parquet")
}

// daily aggregates wins per (date, winner) within the scope, from start
func daily(scope Scope, start string, fc models.FactColumns) query.Select {
	theDate := query.Cast{X: query.Col(enrich.ColTheDate), Type: "DATE"}
	return query.Select{
		Columns: []query.Column{
			query.As(theDate, enrich.ColTheDate),
			query.As(query.Col(enrich.ColWinner), enrich.ColWinner),
			query.As(query.Call("SUM", query.Cast{X: query.Col(fc.Wins), Type: "DOUBLE"}), "wins"),
		},
		From: query.ReadParquet(StoreGlob(scope.Store), true),
		Where: []query.Expr{
			query.Eq(query.Cast{X: query.Col(enrich.ColDS), Type: "VARCHAR"}, query.String(scope.DS)),
			query.Eq(query.Cast{X: query.Col(enrich.ColPMoverInd), Type: "VARCHAR"}, query.String(enrich.MoverLabel(scope.Mover))),
			query.Ge(theDate, query.Date(start)),
			query.Le(theDate, query.Date(scope.End)),
		},
		GroupBy: []query.Expr{theDate, query.Col(enrich.ColWinner)},
	}
}

func nullFloat(v sql.NullFloat64) float64 {
	if !v.Valid {
		return 0
	}
	return v.Float64
}

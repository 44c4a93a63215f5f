package analysis

import (
	"context"
	"database/sql"
	"time"

	"dmastore/internal/enrich"
	"dmastore/internal/query"
	"dmastore/pkg/errors"
	"dmastore/pkg/models"
)

// SeriesQuery selects national win share for a set of carriers
type SeriesQuery struct {
	Scope
	Carriers []string // empty selects every named winner
}

// SeriesRow is one (date, winner) point of the national series
type SeriesRow struct {
	Date      time.Time `json:"the_date"`
	Winner    string    `json:"winner"`
	Wins      float64   `json:"wins"`
	TotalWins float64   `json:"total_wins"`
	WinShare  float64   `json:"win_share"`
}

// SeriesSQL builds the national series statement. Win share is a winner's
// wins over all wins of the day, before the carrier filter.
func SeriesSQL(q SeriesQuery, fc models.FactColumns) query.Select {
	d := func(col string) query.Ident { return query.QCol("d", col) }

	where := []query.Expr{query.IsNotNull{X: d(enrich.ColWinner)}}
	if len(q.Carriers) > 0 {
		where = append(where, query.In{X: d(enrich.ColWinner), List: query.Strings(q.Carriers...)})
	}

	return query.Select{
		With: []query.CTE{
			{Name: "daily", Select: daily(q.Scope, q.Start, fc)},
			{Name: "totals", Select: query.Select{
				Columns: []query.Column{
					query.Plain(query.Col(enrich.ColTheDate)),
					query.As(query.Call("SUM", query.Col("wins")), "total_wins"),
				},
				From:    query.Table("daily"),
				GroupBy: []query.Expr{query.Col(enrich.ColTheDate)},
			}},
		},
		Columns: []query.Column{
			query.Plain(d(enrich.ColTheDate)),
			query.Plain(d(enrich.ColWinner)),
			query.Plain(d("wins")),
			query.Plain(query.QCol("t", "total_wins")),
			query.As(query.Div(d("wins"), query.Call("NULLIF", query.QCol("t", "total_wins"), query.Int(0))), "win_share"),
		},
		From:      query.Table("daily"),
		FromAlias: "d",
		Joins: []query.Join{{
			Kind:   "INNER",
			Source: query.Table("totals"),
			Alias:  "t",
			On:     query.Eq(d(enrich.ColTheDate), query.QCol("t", enrich.ColTheDate)),
		}},
		Where:   where,
		OrderBy: []query.Expr{d(enrich.ColTheDate), d(enrich.ColWinner)},
	}
}

// NationalSeries returns win share rows ordered by date and winner
func NationalSeries(ctx context.Context, db Querier, q SeriesQuery, fc models.FactColumns) ([]SeriesRow, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	stmt := SeriesSQL(q, fc).SQL()
	rows, err := db.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SeriesRow
	for rows.Next() {
		var (
			r                     SeriesRow
			wins, total, winShare sql.NullFloat64
		)
		if err := rows.Scan(&r.Date, &r.Winner, &wins, &total, &winShare); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeResultScan, "Failed to read series rows")
		}
		r.Wins, r.TotalWins, r.WinShare = nullFloat(wins), nullFloat(total), nullFloat(winShare)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.SQLError("Failed to read series rows", stmt, err)
	}
	return out, nil
}

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

// OutlierQuery selects days whose wins deviate from the trailing window
type OutlierQuery struct {
	Scope
	Window     int
	ZThreshold float64
}

// OutlierRow is a (date, winner) whose z-score met the threshold
type OutlierRow struct {
	Date   time.Time `json:"the_date"`
	Winner string    `json:"winner"`
	Wins   float64   `json:"wins"`
	Mean   float64   `json:"mean"`
	StdDev float64   `json:"stddev"`
	ZScore float64   `json:"z_score"`
}

// historyStart widens the scan so the first days in range have a full window
func historyStart(start string, window int) string {
	t, err := time.Parse(dateLayout, start)
	if err != nil {
		return start
	}
	return t.AddDate(0, 0, -window).Format(dateLayout)
}

// OutliersSQL builds the outlier scan. Mean and stddev cover the Window rows
// before each day, excluding the day itself.
func OutliersSQL(q OutlierQuery, fc models.FactColumns) query.Select {
	stat := func(fn string) query.Window {
		return query.Window{
			Func:        query.Call(fn, query.Col("wins")),
			PartitionBy: []query.Expr{query.Col(enrich.ColWinner)},
			OrderBy:     []query.Expr{query.Col(enrich.ColTheDate)},
			Frame:       query.RowsPreceding(q.Window),
		}
	}
	z := query.Div(query.Sub(query.Col("wins"), query.Col("mean")), query.Col("stddev"))

	return query.Select{
		With: []query.CTE{
			{Name: "daily", Select: daily(q.Scope, historyStart(q.Start, q.Window), fc)},
			{Name: "scored", Select: query.Select{
				Columns: []query.Column{
					query.Plain(query.Col(enrich.ColTheDate)),
					query.Plain(query.Col(enrich.ColWinner)),
					query.Plain(query.Col("wins")),
					query.As(stat("AVG"), "mean"),
					query.As(stat("STDDEV_SAMP"), "stddev"),
				},
				From:  query.Table("daily"),
				Where: []query.Expr{query.IsNotNull{X: query.Col(enrich.ColWinner)}},
			}},
		},
		Columns: []query.Column{
			query.Plain(query.Col(enrich.ColTheDate)),
			query.Plain(query.Col(enrich.ColWinner)),
			query.Plain(query.Col("wins")),
			query.Plain(query.Col("mean")),
			query.Plain(query.Col("stddev")),
			query.As(z, "z_score"),
		},
		From: query.Table("scored"),
		Where: []query.Expr{
			query.Ge(query.Col(enrich.ColTheDate), query.Date(q.Start)),
			query.Gt(query.Col("stddev"), query.Int(0)),
			query.Ge(query.Call("ABS", z), query.Float(q.ZThreshold)),
		},
		OrderBy: []query.Expr{query.Col(enrich.ColTheDate), query.Col(enrich.ColWinner)},
	}
}

// ScanOutliers returns rows with |z| >= ZThreshold ordered by date and winner
func ScanOutliers(ctx context.Context, db Querier, q OutlierQuery, fc models.FactColumns) ([]OutlierRow, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if q.Window < 2 {
		return nil, errors.ValidationError("window", q.Window, "must be at least 2")
	}
	if q.ZThreshold <= 0 {
		return nil, errors.ValidationError("z_threshold", q.ZThreshold, "must be positive")
	}

	stmt := OutliersSQL(q, fc).SQL()
	rows, err := db.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutlierRow
	for rows.Next() {
		var (
			r                          OutlierRow
			wins, mean, stddev, zScore sql.NullFloat64
		)
		if err := rows.Scan(&r.Date, &r.Winner, &wins, &mean, &stddev, &zScore); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeResultScan, "Failed to read outlier rows")
		}
		r.Wins, r.Mean, r.StdDev, r.ZScore = nullFloat(wins), nullFloat(mean), nullFloat(stddev), nullFloat(zScore)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.SQLError("Failed to read outlier rows", stmt, err)
	}
	return out, nil
}

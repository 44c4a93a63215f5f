package analysis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmastore/internal/engine"
	"dmastore/pkg/errors"
	"dmastore/pkg/models"
)

var facts = models.DefaultSchema().Facts

func scope() Scope {
	return Scope{Store: "/data/store", DS: "gamoshi", Mover: true, Start: "2024-06-01", End: "2024-06-30"}
}

func TestStoreGlob(t *testing.T) {
	assert.Equal(t, "/data/store/**/*.parquet", StoreGlob("/data/store"))
	assert.Equal(t, "/data/one.parquet", StoreGlob("/data/one.parquet"))
}

func TestSeriesSQL(t *testing.T) {
	sql := SeriesSQL(SeriesQuery{Scope: scope(), Carriers: []string{"AT&T", "Verizon"}}, facts).SQL()

	assert.Contains(t, sql, "read_parquet('/data/store/**/*.parquet', hive_partitioning = TRUE)")
	assert.Contains(t, sql, `CAST("ds" AS VARCHAR) = 'gamoshi'`)
	assert.Contains(t, sql, `CAST("p_mover_ind" AS VARCHAR) = 'True'`)
	assert.Contains(t, sql, `CAST("the_date" AS DATE) >= DATE '2024-06-01'`)
	assert.Contains(t, sql, `CAST("the_date" AS DATE) <= DATE '2024-06-30'`)
	assert.Contains(t, sql, `SUM(CAST("adjusted_wins" AS DOUBLE)) AS "wins"`)
	assert.Contains(t, sql, `d."winner" IN ('AT&T', 'Verizon')`)
	assert.Contains(t, sql, `(d."wins") / (NULLIF(t."total_wins", 0)) AS "win_share"`)

	// the carrier filter applies after totals are computed
	totals := sql[strings.Index(sql, `"totals" AS`):strings.Index(sql, `d."winner" IN`)]
	assert.NotContains(t, totals[:strings.Index(totals, "\n)")], "IN (")
}

func TestNationalSeries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`WITH "daily"`).WillReturnRows(
		sqlmock.NewRows([]string{"the_date", "winner", "wins", "total_wins", "win_share"}).
			AddRow(day, "AT&T", 30.0, 120.0, 0.25).
			AddRow(day, "Verizon", 60.0, 120.0, 0.5))

	rows, err := NationalSeries(context.Background(), engine.NewFromDB(db, engine.Config{}),
		SeriesQuery{Scope: scope(), Carriers: []string{"AT&T", "Verizon"}}, facts)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, SeriesRow{Date: day, Winner: "AT&T", Wins: 30, TotalWins: 120, WinShare: 0.25}, rows[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScopeValidation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Scope)
		field string
	}{
		{"missing store", func(s *Scope) { s.Store = "" }, "store"},
		{"missing ds", func(s *Scope) { s.DS = " " }, "ds"},
		{"bad start", func(s *Scope) { s.Start = "June 1" }, "start"},
		{"end before start", func(s *Scope) { s.End = "2024-05-01" }, "end"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := scope()
			tt.edit(&s)
			_, err := NationalSeries(context.Background(), nil, SeriesQuery{Scope: s}, facts)

			var appErr *errors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, errors.ErrCodeValidationFailed, appErr.Code)
			assert.Equal(t, tt.field, appErr.Context["field"])
		})
	}
}

func TestOutliersSQL(t *testing.T) {
	sql := OutliersSQL(OutlierQuery{Scope: scope(), Window: 28, ZThreshold: 2.5}, facts).SQL()

	assert.Contains(t, sql, `CAST("the_date" AS DATE) >= DATE '2024-05-04'`, "history reaches back one window")
	assert.Contains(t, sql, `AVG("wins") OVER (PARTITION BY "winner" ORDER BY "the_date" ROWS BETWEEN 28 PRECEDING AND 1 PRECEDING) AS "mean"`)
	assert.Contains(t, sql, `STDDEV_SAMP("wins") OVER (PARTITION BY "winner" ORDER BY "the_date" ROWS BETWEEN 28 PRECEDING AND 1 PRECEDING) AS "stddev"`)
	assert.Contains(t, sql, `"the_date" >= DATE '2024-06-01'`)
	assert.Contains(t, sql, `"stddev" > 0`)
	assert.Contains(t, sql, `ABS(("wins" - "mean") / ("stddev")) >= 2.5`)
}

func TestScanOutliers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	day := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`"scored"`).WillReturnRows(
		sqlmock.NewRows([]string{"the_date", "winner", "wins", "mean", "stddev", "z_score"}).
			AddRow(day, "T-Mobile", 400.0, 100.0, 50.0, 6.0))

	rows, err := ScanOutliers(context.Background(), engine.NewFromDB(db, engine.Config{}),
		OutlierQuery{Scope: scope(), Window: 14, ZThreshold: 3}, facts)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "T-Mobile", rows[0].Winner)
	assert.Equal(t, 6.0, rows[0].ZScore)
}

func TestScanOutliersValidation(t *testing.T) {
	_, err := ScanOutliers(context.Background(), nil, OutlierQuery{Scope: scope(), Window: 1, ZThreshold: 3}, facts)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))

	_, err = ScanOutliers(context.Background(), nil, OutlierQuery{Scope: scope(), Window: 7}, facts)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))
}

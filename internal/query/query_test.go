package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoting(t *testing.T) {
	assert.Equal(t, `"dma_name"`, Col("dma_name").SQL())
	assert.Equal(t, `g."a""b"`, QCol("g", `a"b`).SQL())
	assert.Equal(t, `'O''Brien'`, String("O'Brien").SQL())
	assert.Equal(t, `DATE '2024-06-01'`, Date("2024-06-01").SQL())
}

func TestExpressions(t *testing.T) {
	tests := []struct {
		name     string
		expr     Expr
		expected string
	}{
		{"cast", Cast{X: Col("ds"), Type: "VARCHAR"}, `CAST("ds" AS VARCHAR)`},
		{"coalesce", Coalesce(Col("ds"), String("unknown")), `COALESCE("ds", 'unknown')`},
		{"case", Case{When: Col("mover_ind"), Then: String("True"), Else: String("False")},
			`CASE WHEN "mover_ind" THEN 'True' ELSE 'False' END`},
		{"not null", IsNotNull{X: Col("year")}, `"year" IS NOT NULL`},
		{"and", And{Eq(Col("a"), Int(1)), Ge(Col("b"), Float(2.5))}, `"a" = 1 AND "b" >= 2.5`},
		{"in", In{X: Col("winner"), List: Strings("AT&T", "Verizon")}, `"winner" IN ('AT&T', 'Verizon')`},
		{"div", Div(Col("wins"), Col("total")), `("wins") / ("total")`},
		{"distinct count", Func{Name: "COUNT", Args: []Expr{Col("b")}, Distinct: true}, `COUNT(DISTINCT "b")`},
		{"window", Window{
			Func:        Call("AVG", Col("wins")),
			PartitionBy: []Expr{Col("winner")},
			OrderBy:     []Expr{Col("the_date")},
			Frame:       RowsPreceding(7),
		}, `AVG("wins") OVER (PARTITION BY "winner" ORDER BY "the_date" ROWS BETWEEN 7 PRECEDING AND 1 PRECEDING)`},
		{"bools", And{Bool(true), Bool(false), Null{}}, "TRUE AND FALSE AND NULL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.expr.SQL())
		})
	}
}

func TestSelectRender(t *testing.T) {
	s := Select{
		With: []CTE{{
			Name:   "base",
			Select: Select{From: ReadParquet("/raw/**/*.parquet", false)},
		}},
		Prefix:    []Expr{AllExcept{Table: "f", Exclude: []string{"ds"}}},
		Columns:   []Column{As(Col("dma"), "dma")},
		From:      Table("base"),
		FromAlias: "f",
		Joins: []Join{
			LeftJoin(ReadCSV("/geo.csv"), "g", Eq(QCol("f", "geoid"), QCol("g", "census_blockid"))),
		},
		Where:   []Expr{IsNotNull{X: Col("ds")}},
		GroupBy: []Expr{Col("dma")},
		OrderBy: []Expr{Desc{X: Col("dma")}},
		Limit:   5,
	}

	expected := `WITH "base" AS (
SELECT *
FROM read_parquet('/raw/**/*.parquet')
)
SELECT f.* EXCLUDE ("ds"),
  "dma" AS "dma"
FROM "base" AS f
LEFT JOIN read_csv_auto('/geo.csv', header = TRUE) AS g ON f."geoid" = g."census_blockid"
WHERE "ds" IS NOT NULL
GROUP BY "dma"
ORDER BY "dma" DESC
LIMIT 5`
	assert.Equal(t, expected, s.SQL())
	assert.NotContains(t, s.WithoutWhere().SQL(), "WHERE")
}

func TestCount(t *testing.T) {
	s := Count(Select{From: Table("t")})
	assert.Equal(t, "SELECT COUNT(*) AS \"n\"\nFROM (SELECT *\nFROM \"t\") AS q", s.SQL())
}

func TestCopy(t *testing.T) {
	c := Copy{
		Query:   Select{From: Table("enriched")},
		To:      "/data/store",
		Options: []CopyOption{Format("PARQUET"), PartitionBy("ds", "the_date"), Flag("OVERWRITE_OR_IGNORE")},
	}
	assert.Equal(t,
		"COPY (\nSELECT *\nFROM \"enriched\"\n) TO '/data/store' (FORMAT PARQUET, PARTITION_BY (\"ds\", \"the_date\"), OVERWRITE_OR_IGNORE)",
		c.SQL())
}

func TestReaders(t *testing.T) {
	assert.Equal(t, "read_parquet('/s/**/*.parquet', hive_partitioning = TRUE)", ReadParquet("/s/**/*.parquet", true).SQL())
	assert.Equal(t, "read_csv_auto('/c.csv', header = TRUE)", ReadFiles("/c.csv", ".csv").SQL())
	assert.Equal(t, "read_parquet('/c/*.parquet')", ReadFiles("/c/*.parquet", "parquet").SQL())
}

func TestReadCSVTextColumns(t *testing.T) {
	assert.Equal(t,
		"read_csv_auto('/c.csv', header = TRUE, types = {'census_blockid': 'VARCHAR', 'it''s': 'VARCHAR'})",
		ReadFiles("/c.csv", "csv", "census_blockid", "it's").SQL())
	assert.Equal(t, "read_parquet('/c.parquet')", ReadFiles("/c.parquet", "parquet", "census_blockid").SQL())
}

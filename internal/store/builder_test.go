package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmastore/internal/engine"
	"dmastore/internal/testutil"
	"dmastore/pkg/errors"
	"dmastore/pkg/models"
)

type buildFixture struct {
	opts   BuildOptions
	output string
	engine *testutil.MockEngine
}

func newBuildFixture(t *testing.T) (*buildFixture, engine.Connector) {
	t.Helper()
	build := testutil.BuildInputs(t, t.TempDir())
	mock, connect := testutil.NewMockEngine(t)
	return &buildFixture{
		output: build.OutputPath,
		engine: mock,
		opts:   BuildOptions{Build: build, Schema: models.DefaultSchema()},
	}, connect
}

func expectCounts(mock sqlmock.Sqlmock, source, unfiltered, persisted int) {
	mock.ExpectQuery(`SELECT COUNT\(\*\) AS "n" FROM \(SELECT \* FROM read_parquet`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(source))
	mock.ExpectQuery(`SELECT COUNT\(\*\) AS "n" FROM \(WITH "base"`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(unfiltered))
	mock.ExpectQuery(`IS NOT NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(persisted))
}

func TestBuild(t *testing.T) {
	f, connect := newBuildFixture(t)
	mock := f.engine.Mock

	expectCounts(mock, 100, 100, 98)
	mock.ExpectExec(`COPY \(`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	result, err := NewBuilder(connect, nil).Build(context.Background(), f.opts)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, f.output, result.Output)
	assert.Equal(t, int64(100), result.SourceRows)
	assert.Equal(t, int64(98), result.PersistedRows)
	assert.Equal(t, int64(2), result.DroppedRows())
	assert.True(t, result.ParityOK())
	assert.Empty(t, result.Partitions)
	assert.DirExists(t, f.output)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildReportsParityMismatch(t *testing.T) {
	f, connect := newBuildFixture(t)
	mock := f.engine.Mock

	expectCounts(mock, 100, 120, 120)
	mock.ExpectExec(`COPY \(`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	result, err := NewBuilder(connect, nil).Build(context.Background(), f.opts)
	require.NoError(t, err)
	assert.False(t, result.ParityOK())
}

func TestBuildMissingInputLeavesOutputUntouched(t *testing.T) {
	f, connect := newBuildFixture(t)

	existing := testutil.Touch(t, filepath.Join(f.output, "ds=a", "keep.parquet"))

	f.opts.Build.GeoPath = filepath.Join(filepath.Dir(f.output), "no-geo")
	f.opts.Build.RulesPath = filepath.Join(filepath.Dir(f.output), "no-rules")

	_, err := NewBuilder(connect, nil).Build(context.Background(), f.opts)
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrCodeMissingInput, appErr.Code)
	assert.Equal(t, []string{"geo", "rules"}, appErr.Context["missing"])
	assert.Zero(t, f.engine.Calls)
	assert.FileExists(t, existing)
}

func TestBuildEngineUnavailable(t *testing.T) {
	f, _ := newBuildFixture(t)
	connect := func(ctx context.Context) (*engine.Service, error) {
		return nil, errors.EngineError("Failed to open DuckDB", fmt.Errorf("cgo disabled"))
	}

	_, err := NewBuilder(connect, nil).Build(context.Background(), f.opts)
	assert.True(t, errors.HasCode(err, errors.ErrCodeEngineUnavailable))
	assert.NoDirExists(t, f.output)
}

func TestBuildClosesEngineOnQueryFailure(t *testing.T) {
	f, connect := newBuildFixture(t)
	mock := f.engine.Mock

	mock.ExpectQuery(`SELECT COUNT`).WillReturnError(fmt.Errorf("Conversion Error: could not convert"))
	mock.ExpectClose()

	_, err := NewBuilder(connect, nil).Build(context.Background(), f.opts)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSQLExecution))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoDirExists(t, f.output)
}

func TestBuildValidatesConfig(t *testing.T) {
	f, connect := newBuildFixture(t)
	f.opts.Build.OutputPath = ""

	_, err := NewBuilder(connect, nil).Build(context.Background(), f.opts)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
}

// engineFacts has one fully matched row, one row with unknown loser and
// block, one row matching no dimension with every partition field null, and
// a second day.
const engineFacts = `SELECT * FROM (VALUES
	(DATE '2024-06-01', 'tel', true, 1, 2, '060010001001000', 3.0),
	(DATE '2024-06-01', 'tel', false, 1, 9, '999', 1.0),
	(NULL, NULL, NULL, 7, 8, '888', 2.0),
	(DATE '2024-06-02', 'tel', true, 2, 1, '060010001001000', 4.0)
) AS t(the_date, ds, mover_ind, primary_sp_group, secondary_sp_group, primary_geoid, adjusted_wins)`

func engineBuildConfig(t *testing.T, root string) models.BuildConfig {
	t.Helper()
	facts := filepath.Join(root, "raw")
	testutil.WriteParquet(t, filepath.Join(facts, "ds=tel", "part-0.parquet"), engineFacts)
	return models.BuildConfig{
		FactsPath:  facts,
		OutputPath: filepath.Join(root, "store"),
		Overwrite:  true,
	}
}

func storeCount(t *testing.T, output, where string) int64 {
	t.Helper()
	stmt := "SELECT COUNT(*) FROM read_parquet('" + filepath.Join(output, "**", "*.parquet") + "', hive_partitioning = TRUE)"
	if where != "" {
		stmt += " WHERE " + where
	}
	n, err := testutil.OpenEngine(t).QueryInt(context.Background(), stmt)
	require.NoError(t, err)
	return n
}

func partitionPaths(keys []PartitionKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

func TestBuildWithDuckDBKeepsEveryRowAndIsRepeatable(t *testing.T) {
	root := t.TempDir()
	build := engineBuildConfig(t, root)
	build.RulesPath = testutil.WriteParquet(t, filepath.Join(root, "rules.parquet"),
		`SELECT * FROM (VALUES (1, 'AT&T'), (2, 'Verizon')) AS t(sp_group, sp_reporting_name)`)
	build.GeoPath = testutil.WriteParquet(t, filepath.Join(root, "geo", "geo.parquet"),
		`SELECT * FROM (VALUES ('060010001001000', 501, 'New York', 'NY')) AS t(census_blockid, dma, dma_name, state)`)

	builder := NewBuilder(engine.NewConnector(engine.Config{}), nil)
	opts := BuildOptions{Build: build, Schema: models.DefaultSchema()}

	first, err := builder.Build(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, int64(4), first.SourceRows)
	assert.Equal(t, first.SourceRows, first.UnfilteredRows)
	assert.Equal(t, int64(4), first.PersistedRows)
	assert.Zero(t, first.DroppedRows())
	assert.Equal(t, []string{
		"ds=tel/p_mover_ind=False/year=2024/month=06/day=01/the_date=2024-06-01",
		"ds=tel/p_mover_ind=True/year=2024/month=06/day=01/the_date=2024-06-01",
		"ds=tel/p_mover_ind=True/year=2024/month=06/day=02/the_date=2024-06-02",
		"ds=unknown/p_mover_ind=False/year=1970/month=01/day=01/the_date=1970-01-01",
	}, partitionPaths(first.Partitions))

	assert.Equal(t, int64(4), storeCount(t, build.OutputPath, ""))
	assert.Equal(t, int64(1), storeCount(t, build.OutputPath, "winner IS NULL AND loser IS NULL AND dma IS NULL"))
	assert.Equal(t, int64(2), storeCount(t, build.OutputPath, "dma_name = 'New York'"))

	second, err := builder.Build(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, partitionPaths(first.Partitions), partitionPaths(second.Partitions))
	assert.Equal(t, int64(4), storeCount(t, build.OutputPath, ""))
}

func TestBuildWithDuckDBReadsCSVDimensions(t *testing.T) {
	root := t.TempDir()
	build := engineBuildConfig(t, root)
	build.RulesPath = testutil.WriteFile(t, root, "rules.csv", "sp_group,sp_reporting_name\n1,AT&T\n2,Verizon\n")
	build.GeoPath = testutil.WriteFile(t, root, "geo.csv", "census_blockid,dma,dma_name,state\n060010001001000,501,New York,NY\n")

	result, err := NewBuilder(engine.NewConnector(engine.Config{}), nil).
		Build(context.Background(), BuildOptions{Build: build, Schema: models.DefaultSchema()})
	require.NoError(t, err)

	assert.True(t, result.ParityOK())
	assert.Equal(t, int64(2), storeCount(t, build.OutputPath, "dma_name = 'New York'"))
	assert.Equal(t, int64(2), storeCount(t, build.OutputPath, "winner = 'AT&T'"))
}

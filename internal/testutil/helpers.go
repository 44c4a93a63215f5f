// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"dmastore/internal/common"
	"dmastore/internal/engine"
	"dmastore/internal/query"
	"dmastore/pkg/models"
)

// WriteFile writes content under dir, creating parent directories
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), common.DirPermissionNormal))
	require.NoError(t, os.WriteFile(path, []byte(content), common.FilePermissionNormal))
	return path
}

// Touch creates a placeholder file at path. Resolution only checks that
// files exist, so the content is never read.
func Touch(t *testing.T, path string) string {
	t.Helper()
	return WriteFile(t, filepath.Dir(path), filepath.Base(path), "x")
}

// MockEngine is a sqlmock-backed engine.Connector that counts connects
type MockEngine struct {
	Mock  sqlmock.Sqlmock
	Calls int
}

// NewMockEngine creates a mock engine closed at test cleanup
func NewMockEngine(t *testing.T) (*MockEngine, engine.Connector) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := &MockEngine{Mock: mock}
	return m, func(ctx context.Context) (*engine.Service, error) {
		m.Calls++
		return engine.NewFromDB(db, engine.Config{}), nil
	}
}

// OpenEngine opens an in-memory DuckDB engine closed at test cleanup
func OpenEngine(t *testing.T) *engine.Service {
	t.Helper()
	eng, err := engine.NewConnector(engine.Config{})(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

// WriteParquet writes the rows of a SELECT to a Parquet file at path
func WriteParquet(t *testing.T, path, rows string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), common.DirPermissionNormal))
	stmt := fmt.Sprintf("COPY (%s) TO %s (FORMAT PARQUET)", rows, query.QuoteString(path))
	require.NoError(t, OpenEngine(t).Exec(context.Background(), stmt))
	return path
}

// BuildInputs lays out a facts directory, a rules file and a geo directory
// under root and returns a build config writing to root/store
func BuildInputs(t *testing.T, root string) models.BuildConfig {
	t.Helper()
	facts := filepath.Join(root, "raw")
	rules := filepath.Join(root, "rules.parquet")
	geo := filepath.Join(root, "geo")

	Touch(t, filepath.Join(facts, "ds=tel", "part-0.parquet"))
	Touch(t, rules)
	Touch(t, filepath.Join(geo, "geo.parquet"))

	return models.BuildConfig{
		FactsPath:  facts,
		RulesPath:  rules,
		GeoPath:    geo,
		OutputPath: filepath.Join(root, "store"),
		Overwrite:  true,
	}
}

// SuppressionInputs lays out a candidate CSV and four cubes under root.
// The loss non-mover cube is a single CSV file.
func SuppressionInputs(t *testing.T, root string) (string, models.CubeConfig) {
	t.Helper()
	cube := func(name string) string {
		dir := filepath.Join(root, "cubes", name)
		Touch(t, filepath.Join(dir, "part.parquet"))
		return dir
	}

	candidates := Touch(t, filepath.Join(root, "candidates.csv"))
	return candidates, models.CubeConfig{
		WinMover:     cube("win_mover"),
		LossMover:    cube("loss_mover"),
		WinNonMover:  cube("win_non_mover"),
		LossNonMover: Touch(t, filepath.Join(root, "cubes", "loss_non_mover.csv")),
	}
}

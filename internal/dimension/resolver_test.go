package dimension

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmastore/internal/testutil"
	"dmastore/pkg/errors"
)

func TestResolve(t *testing.T) {
	root := t.TempDir()
	testutil.Touch(t, filepath.Join(root, "raw", "ds=a", "part-0.parquet"))
	testutil.Touch(t, filepath.Join(root, "raw", "ds=b", "deep", "part-1.parquet"))
	testutil.Touch(t, filepath.Join(root, "raw", "notes.txt"))
	testutil.Touch(t, filepath.Join(root, "rules.parquet"))
	testutil.Touch(t, filepath.Join(root, "flat", "geo-1.parquet"))
	testutil.Touch(t, filepath.Join(root, "flat", "geo-2.parquet"))

	tests := []struct {
		name        string
		path        string
		wantKind    Kind
		wantPattern string
		wantFiles   int
	}{
		{
			name:        "directory recurses",
			path:        filepath.Join(root, "raw"),
			wantKind:    KindDirectory,
			wantPattern: filepath.Join(root, "raw", "**", "*.parquet"),
			wantFiles:   2,
		},
		{
			name:        "single file used directly",
			path:        filepath.Join(root, "rules.parquet"),
			wantKind:    KindFile,
			wantPattern: filepath.Join(root, "rules.parquet"),
			wantFiles:   1,
		},
		{
			name:        "explicit glob used verbatim",
			path:        filepath.Join(root, "flat", "geo-*.parquet"),
			wantKind:    KindGlob,
			wantPattern: filepath.Join(root, "flat", "geo-*.parquet"),
			wantFiles:   2,
		},
		{
			name:        "missing path gets a flat glob",
			path:        filepath.Join(root, "nowhere"),
			wantKind:    KindGlob,
			wantPattern: filepath.Join(root, "nowhere", "*.parquet"),
			wantFiles:   0,
		},
		{
			name:        "file with another extension gets a flat glob",
			path:        filepath.Join(root, "raw", "notes.txt"),
			wantKind:    KindGlob,
			wantPattern: filepath.Join(root, "raw", "notes.txt", "*.parquet"),
			wantFiles:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := Resolve(tt.path, ".parquet")
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, loc.Kind)
			assert.Equal(t, tt.wantPattern, loc.Pattern)
			assert.Len(t, loc.Files(), tt.wantFiles)
			assert.Equal(t, tt.wantFiles == 0, loc.Empty())
		})
	}
}

func TestResolveEmptyPath(t *testing.T) {
	_, err := Resolve("  ", ExtParquet)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidLocation))
}

func TestResolveAuto(t *testing.T) {
	root := t.TempDir()
	testutil.Touch(t, filepath.Join(root, "candidates.csv"))

	loc, err := ResolveAuto(filepath.Join(root, "candidates.csv"))
	require.NoError(t, err)
	assert.Equal(t, ExtCSV, loc.Ext)
	assert.Equal(t, KindFile, loc.Kind)

	loc, err = ResolveAuto(root)
	require.NoError(t, err)
	assert.Equal(t, ExtParquet, loc.Ext)
	assert.True(t, loc.Empty())
}

func TestResolveInputs(t *testing.T) {
	root := t.TempDir()
	facts := filepath.Join(root, "facts")
	rules := filepath.Join(root, "rules.parquet")
	geo := filepath.Join(root, "geo")
	testutil.Touch(t, filepath.Join(facts, "2024", "part.parquet"))
	testutil.Touch(t, rules)
	testutil.Touch(t, filepath.Join(geo, "geo.parquet"))

	in, err := ResolveInputs(facts, rules, geo)
	require.NoError(t, err)
	assert.Equal(t, KindDirectory, in.Facts.Kind)
	assert.Equal(t, KindFile, in.Rules.Kind)
	assert.Equal(t, []string{filepath.Join(geo, "geo.parquet")}, in.Geo.Files())
}

func TestResolveInputsCSVDimensions(t *testing.T) {
	root := t.TempDir()
	facts := testutil.Touch(t, filepath.Join(root, "facts.parquet"))
	rules := testutil.Touch(t, filepath.Join(root, "rules.csv"))
	geo := testutil.Touch(t, filepath.Join(root, "geo.csv"))

	in, err := ResolveInputs(facts, rules, geo)
	require.NoError(t, err)
	assert.Equal(t, ExtParquet, in.Facts.Ext)
	assert.Equal(t, ExtCSV, in.Rules.Ext)
	assert.Equal(t, rules, in.Rules.Pattern)
	assert.Equal(t, ExtCSV, in.Geo.Ext)
	assert.Equal(t, []string{geo}, in.Geo.Files())
}

func TestResolveInputsFactsMustBeParquet(t *testing.T) {
	root := t.TempDir()
	facts := testutil.Touch(t, filepath.Join(root, "facts.csv"))
	rules := testutil.Touch(t, filepath.Join(root, "rules.csv"))
	geo := testutil.Touch(t, filepath.Join(root, "geo.parquet"))

	_, err := ResolveInputs(facts, rules, geo)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, []string{"facts"}, appErr.Context["missing"])
}

func TestResolveInputsNamesEveryMissingInput(t *testing.T) {
	root := t.TempDir()
	rules := filepath.Join(root, "rules.parquet")
	testutil.Touch(t, rules)

	_, err := ResolveInputs(filepath.Join(root, "facts"), rules, "")
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrCodeMissingInput, appErr.Code)
	assert.Equal(t, []string{"facts", "geo"}, appErr.Context["missing"])
	assert.Contains(t, appErr.Message, filepath.Join(root, "facts", "*.parquet"))
}

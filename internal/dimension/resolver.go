// Package dimension turns configured dataset paths into engine-readable locations.
package dimension

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dmastore/internal/common"
	"dmastore/pkg/errors"
)

// Extensions understood by the engine readers
const (
	ExtParquet = "parquet"
	ExtCSV     = "csv"
)

// Kind describes how a Location was derived
type Kind string

const (
	KindDirectory Kind = "directory"
	KindFile      Kind = "file"
	KindGlob      Kind = "glob"
)

// Location is a resolved dataset: the pattern handed to the engine plus the
// files it matched when resolved
type Location struct {
	Path    string
	Ext     string
	Kind    Kind
	Pattern string
	files   []string
}

// Files returns the matched files in lexical order
func (l Location) Files() []string {
	out := make([]string, len(l.files))
	copy(out, l.files)
	return out
}

// Empty reports whether nothing matched
func (l Location) Empty() bool {
	return len(l.files) == 0
}

// Resolve maps path to a Location for files with extension ext.
// A directory is searched recursively, a file with the extension is used
// as-is, a glob is used verbatim, and anything else gets a flat "*.ext" glob.
func Resolve(path, ext string) (Location, error) {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	path = common.ExpandHome(strings.TrimSpace(path))
	if path == "" {
		return Location{}, errors.New(errors.ErrCodeInvalidLocation, "Empty dataset location")
	}

	loc := Location{Path: path, Ext: ext}
	info, statErr := os.Stat(path)

	switch {
	case statErr == nil && info.IsDir():
		loc.Kind = KindDirectory
		loc.Pattern = filepath.Join(path, "**", "*."+ext)
		files, err := walk(path, ext)
		if err != nil {
			return Location{}, errors.FileSystemError("Failed to scan dataset directory", path, err)
		}
		loc.files = files

	case statErr == nil && common.HasExt(path, ext):
		loc.Kind = KindFile
		loc.Pattern = path
		loc.files = []string{path}

	case hasMeta(path):
		loc.Kind = KindGlob
		loc.Pattern = path
		files, err := filepath.Glob(path)
		if err != nil {
			return Location{}, errors.Wrap(err, errors.ErrCodeInvalidLocation, "Malformed dataset pattern").
				WithContext("pattern", path)
		}
		loc.files = files

	default:
		loc.Kind = KindGlob
		loc.Pattern = filepath.Join(path, "*."+ext)
		files, _ := filepath.Glob(loc.Pattern)
		loc.files = files
	}

	sort.Strings(loc.files)
	return loc, nil
}

// ResolveAuto resolves path choosing csv or parquet from its extension,
// defaulting to parquet for directories and patterns
func ResolveAuto(path string) (Location, error) {
	if common.HasExt(path, ExtCSV) {
		return Resolve(path, ExtCSV)
	}
	return Resolve(path, ExtParquet)
}

// Inputs are the three datasets a store build reads
type Inputs struct {
	Facts Location
	Rules Location
	Geo   Location
}

// ResolveInputs resolves facts as Parquet and the rules and geo dimensions
// as CSV or Parquet by extension. When any of them matches nothing, a single
// missing-input error names all of them.
func ResolveInputs(facts, rules, geo string) (Inputs, error) {
	var in Inputs
	missing := make(map[string]string)

	for _, item := range []struct {
		name    string
		path    string
		resolve func(string) (Location, error)
		dst     *Location
	}{
		{"facts", facts, resolveParquet, &in.Facts},
		{"rules", rules, ResolveAuto, &in.Rules},
		{"geo", geo, ResolveAuto, &in.Geo},
	} {
		loc, err := item.resolve(item.path)
		if err != nil {
			if errors.HasCode(err, errors.ErrCodeInvalidLocation) {
				missing[item.name] = item.path
				continue
			}
			return Inputs{}, err
		}
		if loc.Empty() {
			missing[item.name] = loc.Pattern
			continue
		}
		*item.dst = loc
	}

	if len(missing) > 0 {
		return Inputs{}, errors.MissingInputError(missing)
	}
	return in, nil
}

func resolveParquet(path string) (Location, error) {
	return Resolve(path, ExtParquet)
}

func walk(root, ext string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && common.HasExt(p, ext) {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

func hasMeta(path string) bool {
	return strings.ContainsAny(path, "*?[")
}

package store

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dmastore/internal/enrich"
	"dmastore/pkg/errors"
)

// PartitionColumns is the ordered hive partitioning of the store
var PartitionColumns = []string{
	enrich.ColDS,
	enrich.ColPMoverInd,
	enrich.ColYear,
	enrich.ColMonth,
	enrich.ColDay,
	enrich.ColTheDate,
}

const dateLayout = "2006-01-02"

// PartitionKey identifies one leaf directory of the store
type PartitionKey struct {
	DS    string
	Mover bool
	Date  time.Time
}

// DeriveKey applies the fallback policies to nullable source fields.
// Every input, including all nils, yields a complete key.
func DeriveKey(date *time.Time, ds *string, mover *bool) PartitionKey {
	d := enrich.TheDate.Apply(date)
	return PartitionKey{
		DS:    enrich.DS.Apply(ds),
		Mover: enrich.MoverInd.Apply(mover),
		Date:  time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
	}
}

// Values returns the partition values in PartitionColumns order
func (k PartitionKey) Values() []string {
	return []string{
		k.DS,
		enrich.MoverLabel(k.Mover),
		fmt.Sprintf("%04d", k.Date.Year()),
		fmt.Sprintf("%02d", int(k.Date.Month())),
		fmt.Sprintf("%02d", k.Date.Day()),
		k.Date.Format(dateLayout),
	}
}

// Path returns the directory of the partition relative to the store root
func (k PartitionKey) Path() string {
	values := k.Values()
	parts := make([]string, len(PartitionColumns))
	for i, col := range PartitionColumns {
		parts[i] = col + "=" + values[i]
	}
	return filepath.Join(parts...)
}

func (k PartitionKey) String() string {
	return filepath.ToSlash(k.Path())
}

// ParsePartitionPath parses a relative leaf directory back into a key
func ParsePartitionPath(rel string) (PartitionKey, error) {
	segments := strings.Split(filepath.ToSlash(filepath.Clean(rel)), "/")
	if len(segments) != len(PartitionColumns) {
		return PartitionKey{}, invalidPartition(rel, "expected %d segments, got %d", len(PartitionColumns), len(segments))
	}

	values := make([]string, len(segments))
	for i, seg := range segments {
		name, value, ok := strings.Cut(seg, "=")
		if !ok || name != PartitionColumns[i] {
			return PartitionKey{}, invalidPartition(rel, "segment %d should be %s=<value>", i+1, PartitionColumns[i])
		}
		if unescaped, err := url.PathUnescape(value); err == nil {
			value = unescaped
		}
		values[i] = value
	}

	var key PartitionKey
	key.DS = values[0]

	switch values[1] {
	case enrich.MoverTrue:
		key.Mover = true
	case enrich.MoverFalse:
	default:
		return PartitionKey{}, invalidPartition(rel, "p_mover_ind must be True or False, got %q", values[1])
	}

	date, err := time.Parse(dateLayout, values[5])
	if err != nil {
		return PartitionKey{}, invalidPartition(rel, "the_date %q is not a date", values[5])
	}
	key.Date = date

	// year/month/day are derived from the_date and must agree with it
	derived := key.Values()
	for i := 2; i <= 4; i++ {
		if derived[i] != values[i] {
			return PartitionKey{}, invalidPartition(rel, "%s=%s disagrees with the_date=%s", PartitionColumns[i], values[i], values[5])
		}
	}

	return key, nil
}

// ListPartitions returns every leaf partition under root, sorted by path.
// A missing root yields no partitions.
func ListPartitions(root string) ([]PartitionKey, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}

	var keys []PartitionKey
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || !strings.HasPrefix(d.Name(), enrich.ColTheDate+"=") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		key, err := ParsePartitionPath(rel)
		if err != nil {
			return err
		}
		keys = append(keys, key)
		return filepath.SkipDir
	})
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeInvalidLocation) {
			return nil, err
		}
		return nil, errors.FileSystemError("Failed to list store partitions", root, err)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Path() < keys[j].Path() })
	return keys, nil
}

func invalidPartition(rel, format string, args ...interface{}) error {
	return errors.New(errors.ErrCodeInvalidLocation, "Invalid partition path: "+fmt.Sprintf(format, args...)).
		WithContext("path", rel)
}

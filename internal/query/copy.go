package query

import "strings"

// Copy is a COPY (query) TO 'path' (options) statement
type Copy struct {
	Query   Select
	To      string
	Options []CopyOption
}

// CopyOption is one entry of the COPY option list
type CopyOption struct {
	Name  string
	Value string // rendered verbatim; empty renders the bare keyword
}

// Format sets the output format, e.g. PARQUET
func Format(name string) CopyOption { return CopyOption{Name: "FORMAT", Value: name} }

// PartitionBy sets hive partitioning columns in order
func PartitionBy(cols ...string) CopyOption {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c)
	}
	return CopyOption{Name: "PARTITION_BY", Value: "(" + strings.Join(quoted, ", ") + ")"}
}

// Flag is a bare COPY keyword such as OVERWRITE_OR_IGNORE or APPEND
func Flag(name string) CopyOption { return CopyOption{Name: name} }

func (c Copy) SQL() string {
	opts := make([]string, len(c.Options))
	for i, o := range c.Options {
		if o.Value == "" {
			opts[i] = o.Name
		} else {
			opts[i] = o.Name + " " + o.Value
		}
	}
	s := "COPY (\n" + c.Query.SQL() + "\n) TO " + QuoteString(c.To)
	if len(opts) > 0 {
		s += " (" + strings.Join(opts, ", ") + ")"
	}
	return s
}

// ReadParquet reads files matching pattern with hive partition columns
func ReadParquet(pattern string, hive bool) TableFunc {
	t := TableFunc{Name: "read_parquet", Args: []Expr{String(pattern)}}
	if hive {
		t.Options = append(t.Options, Option{Name: "hive_partitioning", Value: Bool(true)})
	}
	return t
}

// ReadCSV reads delimited files with a header row and type detection.
// Columns named in text are read as VARCHAR so identifiers such as census
// block ids keep their leading zeros.
func ReadCSV(pattern string, text ...string) TableFunc {
	t := TableFunc{
		Name:    "read_csv_auto",
		Args:    []Expr{String(pattern)},
		Options: []Option{{Name: "header", Value: Bool(true)}},
	}
	if len(text) > 0 {
		types := make(Struct, len(text))
		for i, col := range text {
			types[i] = Field{Name: col, Value: String("VARCHAR")}
		}
		t.Options = append(t.Options, Option{Name: "types", Value: types})
	}
	return t
}

// ReadFiles picks the reader for a pattern by extension. text only applies
// to CSV, Parquet keeps its stored types.
func ReadFiles(pattern, ext string, text ...string) TableFunc {
	if strings.EqualFold(strings.TrimPrefix(ext, "."), "csv") {
		return ReadCSV(pattern, text...)
	}
	return ReadParquet(pattern, false)
}

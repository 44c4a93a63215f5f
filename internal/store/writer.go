package store

import (
	"context"
	"os"
	"time"

	"dmastore/internal/common"
	"dmastore/internal/observability"
	"dmastore/internal/query"
	"dmastore/pkg/errors"
)

// Executor runs a single statement against the engine
type Executor interface {
	Exec(ctx context.Context, stmt string) error
}

// Options controls how a relation is materialized
type Options struct {
	Output    string
	Overwrite bool
}

// Writer materializes a relation as a hive-partitioned Parquet dataset
type Writer struct {
	exec   Executor
	logger *observability.Logger
}

// NewWriter creates a Writer; logger may be nil
func NewWriter(exec Executor, logger *observability.Logger) *Writer {
	if logger == nil {
		logger = observability.NewNop()
	}
	return &Writer{exec: exec, logger: logger}
}

// CopyStatement returns the COPY that writes rel under opts
func CopyStatement(rel query.Select, opts Options) query.Copy {
	mode := query.Flag("APPEND")
	if opts.Overwrite {
		mode = query.Flag("OVERWRITE_OR_IGNORE")
	}
	return query.Copy{
		Query: rel,
		To:    opts.Output,
		Options: []query.CopyOption{
			query.Format("PARQUET"),
			query.PartitionBy(PartitionColumns...),
			mode,
		},
	}
}

// Write materializes rel to opts.Output. With Overwrite the whole directory
// is removed first; otherwise new files are added beside existing ones.
// Partitions flushed before a failure are left in place.
func (w *Writer) Write(ctx context.Context, rel query.Select, opts Options) error {
	if common.IsRemote(opts.Output) {
		return errors.New(errors.ErrCodeInvalidLocation, "Store output must be a local directory").
			WithContext("output", opts.Output)
	}
	output, err := common.CleanPath(opts.Output)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidLocation, "Invalid store output path").
			WithContext("output", opts.Output)
	}
	opts.Output = output

	if opts.Overwrite {
		if err := os.RemoveAll(output); err != nil {
			return errors.FileSystemError("Failed to clear output directory", output, err)
		}
	}
	if err := os.MkdirAll(output, common.DirPermissionNormal); err != nil {
		return errors.FileSystemError("Failed to create output directory", output, err)
	}

	stmt := CopyStatement(rel, opts).SQL()
	w.logger.InfoWithFields("writing partitioned store", map[string]interface{}{
		"output":    output,
		"overwrite": opts.Overwrite,
	})

	start := time.Now()
	if err := w.exec.Exec(ctx, stmt); err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to write partitioned store").
			WithContext("output", output).
			WithSeverity(errors.SeverityCritical)
	}

	w.logger.InfoWithFields("partitioned store written", map[string]interface{}{
		"output":      output,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dmastore/internal/common"
	"dmastore/internal/config"
	"dmastore/internal/dimension"
	"dmastore/internal/engine"
	"dmastore/internal/enrich"
	"dmastore/internal/observability"
	"dmastore/internal/query"
	"dmastore/pkg/models"
)

// BuildOptions is the explicit input of a store build
type BuildOptions struct {
	RunID  string // generated when empty
	Build  models.BuildConfig
	Schema models.Schema
}

// BuildResult summarizes a completed build
type BuildResult struct {
	RunID          string
	Output         string
	Overwrite      bool
	SourceRows     int64
	UnfilteredRows int64
	PersistedRows  int64
	Partitions     []PartitionKey
	Duration       time.Duration
}

// DroppedRows is the number of enriched rows removed by the partition-key filter
func (r *BuildResult) DroppedRows() int64 {
	return r.UnfilteredRows - r.PersistedRows
}

// ParityOK reports whether enrichment preserved the source row count
func (r *BuildResult) ParityOK() bool {
	return r.SourceRows == r.UnfilteredRows
}

// Builder runs resolve, enrich and write as one build
type Builder struct {
	connect engine.Connector
	logger  *observability.Logger
}

// NewBuilder creates a Builder opening engines with connect
func NewBuilder(connect engine.Connector, logger *observability.Logger) *Builder {
	if logger == nil {
		logger = observability.NewNop()
	}
	return &Builder{connect: connect, logger: logger}
}

// Build resolves the inputs before touching the engine or the output, so a
// missing input leaves an existing store untouched.
func (b *Builder) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	start := time.Now()
	if err := config.ValidateBuild(opts.Build); err != nil {
		return nil, err
	}

	inputs, err := dimension.ResolveInputs(opts.Build.FactsPath, opts.Build.RulesPath, opts.Build.GeoPath)
	if err != nil {
		return nil, err
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	result := &BuildResult{
		RunID:     runID,
		Output:    opts.Build.OutputPath,
		Overwrite: opts.Build.Overwrite,
	}
	log := b.logger.WithFields(map[string]interface{}{
		"run_id": result.RunID,
		"output": result.Output,
	})
	log.InfoWithFields("inputs resolved", map[string]interface{}{
		"facts_files": len(inputs.Facts.Files()),
		"rules_files": len(inputs.Rules.Files()),
		"geo_files":   len(inputs.Geo.Files()),
	})

	eng, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := eng.Close(); cerr != nil {
			log.Warnf("failed to close engine: %v", cerr)
		}
	}()

	plan := enrich.Plan(inputs, opts.Schema)

	sourceCount := query.Count(query.Select{From: query.ReadParquet(inputs.Facts.Pattern, false)})
	if result.SourceRows, err = eng.QueryInt(ctx, sourceCount.SQL()); err != nil {
		return nil, err
	}
	if result.UnfilteredRows, err = eng.QueryInt(ctx, query.Count(plan.WithoutWhere()).SQL()); err != nil {
		return nil, err
	}
	if result.PersistedRows, err = eng.QueryInt(ctx, query.Count(plan).SQL()); err != nil {
		return nil, err
	}

	if !result.ParityOK() {
		log.WarnWithFields("enrichment changed the row count; check dimension keys for duplicates", map[string]interface{}{
			"source_rows":   result.SourceRows,
			"enriched_rows": result.UnfilteredRows,
		})
	}
	if dropped := result.DroppedRows(); dropped > 0 {
		log.WarnWithFields("rows dropped for missing partition keys", map[string]interface{}{
			"dropped_rows": dropped,
		})
	}

	writer := NewWriter(eng, log)
	if err := writer.Write(ctx, plan, Options{Output: opts.Build.OutputPath, Overwrite: opts.Build.Overwrite}); err != nil {
		return nil, err
	}

	// Write already validated the path
	result.Output, _ = common.CleanPath(opts.Build.OutputPath)
	if result.Partitions, err = ListPartitions(result.Output); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	log.InfoWithFields("build complete", map[string]interface{}{
		"rows":        result.PersistedRows,
		"partitions":  len(result.Partitions),
		"duration_ms": result.Duration.Milliseconds(),
	})
	return result, nil
}

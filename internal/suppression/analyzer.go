package suppression

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dmastore/internal/config"
	"dmastore/internal/engine"
	"dmastore/internal/observability"
	"dmastore/pkg/errors"
	"dmastore/pkg/models"
)

// RunOptions are the inputs of one suppression run
type RunOptions struct {
	RunID       string // generated when empty
	Date        string // YYYY-MM-DD
	Suppression models.SuppressionConfig
	Cubes       models.CubeConfig
	Units       models.SuppressionUnits
}

// Result wraps a report with run metadata
type Result struct {
	RunID    string
	Report   *Report
	Duration time.Duration
}

// Analyzer runs the suppression calculation end to end
type Analyzer struct {
	connect engine.Connector
	logger  *observability.Logger
}

// NewAnalyzer creates an Analyzer; logger may be nil
func NewAnalyzer(connect engine.Connector, logger *observability.Logger) *Analyzer {
	if logger == nil {
		logger = observability.NewNop()
	}
	return &Analyzer{connect: connect, logger: logger}
}

// Run loads the inputs for opts.Date and calculates the report. An empty
// candidate set is a warning unless RequireCandidates is set.
func (a *Analyzer) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	start := time.Now()

	if _, err := time.Parse("2006-01-02", opts.Date); err != nil {
		return nil, errors.ValidationError("date", opts.Date, "expected YYYY-MM-DD")
	}
	if err := config.ValidateSuppression(opts.Suppression, opts.Cubes); err != nil {
		return nil, err
	}

	locs, err := ResolveLocations(opts.Suppression.CandidatesPath, opts.Cubes)
	if err != nil {
		return nil, err
	}

	result := &Result{RunID: opts.RunID}
	if result.RunID == "" {
		result.RunID = uuid.NewString()
	}
	log := a.logger.WithFields(map[string]interface{}{
		"run_id": result.RunID,
		"date":   opts.Date,
	})

	eng, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := eng.Close(); cerr != nil {
			log.Warnf("failed to close engine: %v", cerr)
		}
	}()

	units := opts.Units
	if units == (models.SuppressionUnits{}) {
		units = models.DefaultSchema().Units
	}
	source := NewSource(eng, units, locs)

	candidates, err := source.Candidates(ctx, opts.Date)
	if err != nil {
		return nil, err
	}
	cubes, err := source.Cubes(ctx, opts.Date)
	if err != nil {
		return nil, err
	}

	report := Calculate(opts.Date, candidates, cubes)
	result.Report = report
	result.Duration = time.Since(start)

	if report.Empty {
		if opts.Suppression.RequireCandidates {
			return nil, errors.New(errors.ErrCodeNoResults, "No suppression candidates for "+opts.Date).
				WithContext("candidates", opts.Suppression.CandidatesPath).
				WithSuggestions("Check that the upstream suppression detection ran for this date")
		}
		log.WarnWithFields("no suppression candidates for date; report is empty", map[string]interface{}{
			"candidates": opts.Suppression.CandidatesPath,
		})
		return result, nil
	}

	if bad := report.Inconsistent(); len(bad) > 0 {
		log.WarnWithFields("suppressed blocks missing from every cube", map[string]interface{}{
			"groups": len(bad),
		})
	}

	log.InfoWithFields("suppression calculated", map[string]interface{}{
		"dmas_affected":       report.Summary.DMAsAffected,
		"unique_blocks":       report.Summary.UniqueBlocksToSuppress,
		"overall_retention":   report.Summary.OverallRetentionPct,
		"duration_ms":         result.Duration.Milliseconds(),
		"candidate_rows":      len(candidates),
		"suppression_records": report.Summary.TotalSuppressionRecords,
	})
	return result, nil
}

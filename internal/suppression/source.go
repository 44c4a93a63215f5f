package suppression

import (
	"context"
	"database/sql"

	"dmastore/internal/dimension"
	"dmastore/internal/query"
	"dmastore/pkg/errors"
	"dmastore/pkg/models"
)

// Querier runs read queries against the engine
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Locations are the resolved suppression inputs
type Locations struct {
	Candidates dimension.Location
	Cubes      map[CubeKind]dimension.Location
}

// ResolveLocations resolves the candidate file and the four cubes. Each may
// be CSV or Parquet. Missing inputs are reported together.
func ResolveLocations(candidates string, cubes models.CubeConfig) (Locations, error) {
	locs := Locations{Cubes: make(map[CubeKind]dimension.Location, len(CubeKinds))}
	missing := make(map[string]string)

	resolve := func(name, path string) (dimension.Location, bool) {
		loc, err := dimension.ResolveAuto(path)
		if err != nil {
			missing[name] = path
			return loc, false
		}
		if loc.Empty() {
			missing[name] = loc.Pattern
			return loc, false
		}
		return loc, true
	}

	if loc, ok := resolve("candidates", candidates); ok {
		locs.Candidates = loc
	}

	paths := map[CubeKind]string{
		WinMover:     cubes.WinMover,
		LossMover:    cubes.LossMover,
		WinNonMover:  cubes.WinNonMover,
		LossNonMover: cubes.LossNonMover,
	}
	for _, kind := range CubeKinds {
		if loc, ok := resolve(kind.String(), paths[kind]); ok {
			locs.Cubes[kind] = loc
		}
	}

	if len(missing) > 0 {
		return Locations{}, errors.MissingInputError(missing)
	}
	return locs, nil
}

// Source loads candidates and cube blocks for a date through the engine
type Source struct {
	q     Querier
	units models.SuppressionUnits
	locs  Locations
}

// NewSource creates a Source reading locs with the given column names
func NewSource(q Querier, units models.SuppressionUnits, locs Locations) *Source {
	return &Source{q: q, units: units, locs: locs}
}

// CandidatesQuery selects the candidate rows of date
func (s *Source) CandidatesQuery(date string) query.Select {
	loc := s.locs.Candidates
	return query.Select{
		Columns: []query.Column{
			query.As(asText(query.Col(s.units.DMAName)), "dma_name"),
			query.As(asText(query.Col(s.units.State)), "state"),
			query.As(asText(query.Col(s.units.CensusBlock)), "census_blockid"),
		},
		From:  s.read(loc),
		Where: []query.Expr{s.onDate(date)},
	}
}

// CubeQuery selects the distinct blocks of one cube on date
func (s *Source) CubeQuery(kind CubeKind, date string) query.Select {
	loc := s.locs.Cubes[kind]
	return query.Select{
		Distinct: true,
		Columns: []query.Column{
			query.As(asText(query.Col(s.units.DMAName)), "dma_name"),
			query.As(asText(query.Col(s.units.State)), "state"),
			query.As(asText(query.Col(s.units.CensusBlock)), "census_blockid"),
		},
		From: s.read(loc),
		Where: []query.Expr{
			s.onDate(date),
			query.IsNotNull{X: query.Col(s.units.CensusBlock)},
		},
	}
}

// Candidates loads the candidate rows of date
func (s *Source) Candidates(ctx context.Context, date string) ([]Candidate, error) {
	var out []Candidate
	err := s.scan(ctx, s.CandidatesQuery(date), func(dma, state, block string) {
		out = append(out, Candidate{Date: date, DMAName: dma, State: state, CensusBlock: block})
	})
	return out, err
}

// Cubes loads the blocks of every cube on date
func (s *Source) Cubes(ctx context.Context, date string) (map[CubeKind][]Block, error) {
	out := make(map[CubeKind][]Block, len(CubeKinds))
	for _, kind := range CubeKinds {
		var blocks []Block
		err := s.scan(ctx, s.CubeQuery(kind, date), func(dma, state, block string) {
			blocks = append(blocks, Block{DMAName: dma, State: state, CensusBlock: block})
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.GetErrorCode(err), "Failed to load cube "+kind.String())
		}
		out[kind] = blocks
	}
	return out, nil
}

func (s *Source) scan(ctx context.Context, sel query.Select, fn func(dma, state, block string)) error {
	stmt := sel.SQL()
	rows, err := s.q.Query(ctx, stmt)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var dma, state, block sql.NullString
		if err := rows.Scan(&dma, &state, &block); err != nil {
			return errors.Wrap(err, errors.ErrCodeResultScan, "Failed to read suppression rows")
		}
		fn(dma.String, state.String, block.String)
	}
	if err := rows.Err(); err != nil {
		return errors.SQLError("Failed to read suppression rows", stmt, err)
	}
	return nil
}

// read keeps CSV block ids as text so they match Parquet cubes
func (s *Source) read(loc dimension.Location) query.TableFunc {
	return query.ReadFiles(loc.Pattern, loc.Ext, s.units.CensusBlock)
}

func (s *Source) onDate(date string) query.Expr {
	return query.Eq(query.Cast{X: query.Col(s.units.Date), Type: "DATE"}, query.Date(date))
}

func asText(e query.Expr) query.Expr {
	return query.Cast{X: e, Type: "VARCHAR"}
}

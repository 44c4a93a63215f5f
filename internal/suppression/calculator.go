// Package suppression computes the census blocks to redact per DMA and state
// for one date, and how much of each market survives the redaction.
package suppression

import (
	"fmt"
	"sort"
)

// Candidate is one flagged row of the suppression input. A block may appear
// once per carrier pair, so rows are counted as records and deduplicated as
// blocks.
type Candidate struct {
	Date        string
	DMAName     string
	State       string
	CensusBlock string
}

// Block is a census block present in a directional cube on the target date
type Block struct {
	DMAName     string
	State       string
	CensusBlock string
}

// CubeKind identifies one of the four directional cubes
type CubeKind int

const (
	WinMover CubeKind = iota
	LossMover
	WinNonMover
	LossNonMover
)

// CubeKinds lists every cube in a stable order
var CubeKinds = []CubeKind{WinMover, LossMover, WinNonMover, LossNonMover}

func (k CubeKind) String() string {
	switch k {
	case WinMover:
		return "win_mover"
	case LossMover:
		return "loss_mover"
	case WinNonMover:
		return "win_non_mover"
	case LossNonMover:
		return "loss_non_mover"
	default:
		return fmt.Sprintf("cube(%d)", int(k))
	}
}

// GroupKey identifies a (DMA, state) group
type GroupKey struct {
	DMA   string
	State string
}

// GroupStat is one row of the suppression output
type GroupStat struct {
	DMA                     string  `json:"dma"`
	State                   string  `json:"state"`
	TotalBlocks             int     `json:"total_blocks"`
	UniqueBlocksToSuppress  int     `json:"unique_blocks_to_suppress"`
	TotalSuppressionRecords int     `json:"total_suppression_records"`
	RetentionRatePct        float64 `json:"retention_rate_pct"`
	// BlocksOutsideCubes counts suppressed blocks absent from every cube
	BlocksOutsideCubes int `json:"blocks_outside_cubes"`
}

// Summary aggregates all groups of a report
type Summary struct {
	DMAsAffected            int     `json:"dmas_affected"`
	TotalBlocks             int     `json:"total_blocks"`
	UniqueBlocksToSuppress  int     `json:"unique_blocks_to_suppress"`
	TotalSuppressionRecords int     `json:"total_suppression_records"`
	OverallRetentionPct     float64 `json:"overall_retention_pct"`
	MeanRetentionPct        float64 `json:"mean_retention_pct"`
	MedianRetentionPct      float64 `json:"median_retention_pct"`
}

// Report is the result of one suppression run
type Report struct {
	Date    string      `json:"date"`
	Groups  []GroupStat `json:"groups"`
	Summary Summary     `json:"summary"`
	// Empty is set when no candidate rows matched the date
	Empty bool `json:"empty"`
}

// Retention returns (total-unique)/total*100, or 0 when total is 0. The
// result is in [0, 100] while every suppressed block is present in the
// cubes. Blocks outside the cubes push unique above total and the rate below
// zero; it is not clamped so GroupStat.BlocksOutsideCubes stays explainable.
func Retention(total, unique int) float64 {
	if total == 0 {
		return 0
	}
	return float64(total-unique) / float64(total) * 100
}

// Calculate builds the report for date. Candidates for other dates are
// ignored; cube blocks are expected to be restricted to date already.
func Calculate(date string, candidates []Candidate, cubes map[CubeKind][]Block) *Report {
	type acc struct {
		blocks  map[string]struct{}
		records int
	}

	groups := make(map[GroupKey]*acc)
	for _, c := range candidates {
		if c.Date != date {
			continue
		}
		key := GroupKey{DMA: c.DMAName, State: c.State}
		a, ok := groups[key]
		if !ok {
			a = &acc{blocks: make(map[string]struct{})}
			groups[key] = a
		}
		a.records++
		if c.CensusBlock != "" {
			a.blocks[c.CensusBlock] = struct{}{}
		}
	}

	// union of blocks over all cubes, only for groups with candidates
	universe := make(map[GroupKey]map[string]struct{}, len(groups))
	for _, kind := range CubeKinds {
		for _, b := range cubes[kind] {
			key := GroupKey{DMA: b.DMAName, State: b.State}
			if _, ok := groups[key]; !ok || b.CensusBlock == "" {
				continue
			}
			set, ok := universe[key]
			if !ok {
				set = make(map[string]struct{})
				universe[key] = set
			}
			set[b.CensusBlock] = struct{}{}
		}
	}

	report := &Report{Date: date, Groups: make([]GroupStat, 0, len(groups))}
	for key, a := range groups {
		total := len(universe[key])
		unique := len(a.blocks)

		outside := 0
		for block := range a.blocks {
			if _, ok := universe[key][block]; !ok {
				outside++
			}
		}

		report.Groups = append(report.Groups, GroupStat{
			DMA:                     key.DMA,
			State:                   key.State,
			TotalBlocks:             total,
			UniqueBlocksToSuppress:  unique,
			TotalSuppressionRecords: a.records,
			RetentionRatePct:        Retention(total, unique),
			BlocksOutsideCubes:      outside,
		})
	}

	sort.Slice(report.Groups, func(i, j int) bool {
		gi, gj := report.Groups[i], report.Groups[j]
		if gi.DMA != gj.DMA {
			return gi.DMA < gj.DMA
		}
		return gi.State < gj.State
	})

	report.Summary = summarize(report.Groups)
	report.Empty = len(report.Groups) == 0
	return report
}

func summarize(groups []GroupStat) Summary {
	s := Summary{DMAsAffected: len(groups)}
	if len(groups) == 0 {
		return s
	}

	rates := make([]float64, len(groups))
	var sum float64
	for i, g := range groups {
		s.TotalBlocks += g.TotalBlocks
		s.UniqueBlocksToSuppress += g.UniqueBlocksToSuppress
		s.TotalSuppressionRecords += g.TotalSuppressionRecords
		rates[i] = g.RetentionRatePct
		sum += g.RetentionRatePct
	}

	s.OverallRetentionPct = Retention(s.TotalBlocks, s.UniqueBlocksToSuppress)
	s.MeanRetentionPct = sum / float64(len(rates))

	sort.Float64s(rates)
	mid := len(rates) / 2
	if len(rates)%2 == 1 {
		s.MedianRetentionPct = rates[mid]
	} else {
		s.MedianRetentionPct = (rates[mid-1] + rates[mid]) / 2
	}
	return s
}

// TopByRetention returns up to n groups with the highest retention
func (r *Report) TopByRetention(n int) []GroupStat {
	return r.top(n, func(a, b GroupStat) bool {
		if a.RetentionRatePct != b.RetentionRatePct {
			return a.RetentionRatePct > b.RetentionRatePct
		}
		return a.TotalBlocks > b.TotalBlocks
	})
}

// TopBySuppression returns up to n groups with the most blocks to suppress
func (r *Report) TopBySuppression(n int) []GroupStat {
	return r.top(n, func(a, b GroupStat) bool {
		if a.UniqueBlocksToSuppress != b.UniqueBlocksToSuppress {
			return a.UniqueBlocksToSuppress > b.UniqueBlocksToSuppress
		}
		return a.TotalSuppressionRecords > b.TotalSuppressionRecords
	})
}

func (r *Report) top(n int, less func(a, b GroupStat) bool) []GroupStat {
	ranked := make([]GroupStat, len(r.Groups))
	copy(ranked, r.Groups)
	// Groups are already in (DMA, state) order, so stable ties stay deterministic
	sort.SliceStable(ranked, func(i, j int) bool { return less(ranked[i], ranked[j]) })
	if n >= 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// Inconsistent returns groups with suppressed blocks missing from every cube
func (r *Report) Inconsistent() []GroupStat {
	var out []GroupStat
	for _, g := range r.Groups {
		if g.BlocksOutsideCubes > 0 {
			out = append(out, g)
		}
	}
	return out
}

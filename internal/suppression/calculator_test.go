package suppression

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const target = "2024-06-01"

func cand(dma, state, block string) Candidate {
	return Candidate{Date: target, DMAName: dma, State: state, CensusBlock: block}
}

func TestCalculateDeduplicatesAcrossCarrierPairs(t *testing.T) {
	// one block flagged for three carrier pairs
	candidates := []Candidate{
		cand("Boston", "MA", "X"),
		cand("Boston", "MA", "X"),
		cand("Boston", "MA", "X"),
	}
	cubes := map[CubeKind][]Block{
		WinMover: {{"Boston", "MA", "X"}, {"Boston", "MA", "Y"}},
	}

	report := Calculate(target, candidates, cubes)
	require.Len(t, report.Groups, 1)

	g := report.Groups[0]
	assert.Equal(t, 1, g.UniqueBlocksToSuppress)
	assert.Equal(t, 3, g.TotalSuppressionRecords)
	assert.Equal(t, 2, g.TotalBlocks)
	assert.Equal(t, 50.0, g.RetentionRatePct)
}

func TestCalculateUnionsCubes(t *testing.T) {
	candidates := []Candidate{cand("Boston", "MA", "X")}
	cubes := map[CubeKind][]Block{
		WinMover:     {{"Boston", "MA", "X"}},
		LossNonMover: {{"Boston", "MA", "X"}},
		LossMover:    {{"Boston", "MA", "Y"}},
		WinNonMover:  {{"Boston", "NH", "Z"}, {"Denver", "CO", "Q"}},
	}

	report := Calculate(target, candidates, cubes)
	require.Len(t, report.Groups, 1)
	assert.Equal(t, 2, report.Groups[0].TotalBlocks)
}

func TestRetention(t *testing.T) {
	assert.Equal(t, 0.0, Retention(0, 0))
	assert.Equal(t, 0.0, Retention(0, 5))
	assert.Equal(t, 100.0, Retention(10, 0))
	assert.Equal(t, 0.0, Retention(10, 10))

	prev := Retention(20, 0)
	for unique := 1; unique <= 20; unique++ {
		r := Retention(20, unique)
		assert.Less(t, r, prev)
		assert.GreaterOrEqual(t, r, 0.0)
		assert.LessOrEqual(t, r, 100.0)
		prev = r
	}

	// more suppressed blocks than the cubes hold
	assert.Equal(t, -50.0, Retention(2, 3))
}

func TestCalculateReport(t *testing.T) {
	candidates := []Candidate{
		cand("Boston", "MA", "b1"),
		cand("Boston", "MA", "b2"),
		cand("Boston", "MA", "b2"),
		cand("Austin", "TX", "t1"),
		cand("Denver", "CO", "d1"),
		cand("Denver", "CO", "d9"),
		{Date: "2024-05-31", DMAName: "Miami", State: "FL", CensusBlock: "m1"},
	}
	cubes := map[CubeKind][]Block{
		WinMover:    {{"Boston", "MA", "b1"}, {"Boston", "MA", "b2"}, {"Austin", "TX", "t1"}},
		LossMover:   {{"Boston", "MA", "b3"}, {"Boston", "MA", "b4"}, {"Austin", "TX", "t2"}},
		WinNonMover: {{"Austin", "TX", "t3"}, {"Austin", "TX", "t4"}, {"Denver", "CO", "d1"}},
		LossNonMover: {{"Denver", "CO", "d2"}, {"Denver", "CO", "d3"}, {"Denver", "CO", "d4"},
			{"Miami", "FL", "m1"}},
	}

	report := Calculate(target, candidates, cubes)

	expected := &Report{
		Date: target,
		Groups: []GroupStat{
			{DMA: "Austin", State: "TX", TotalBlocks: 4, UniqueBlocksToSuppress: 1, TotalSuppressionRecords: 1, RetentionRatePct: 75},
			{DMA: "Boston", State: "MA", TotalBlocks: 4, UniqueBlocksToSuppress: 2, TotalSuppressionRecords: 3, RetentionRatePct: 50},
			{DMA: "Denver", State: "CO", TotalBlocks: 4, UniqueBlocksToSuppress: 2, TotalSuppressionRecords: 2, RetentionRatePct: 50, BlocksOutsideCubes: 1},
		},
		Summary: Summary{
			DMAsAffected:            3,
			TotalBlocks:             12,
			UniqueBlocksToSuppress:  5,
			TotalSuppressionRecords: 6,
			OverallRetentionPct:     float64(7) / 12 * 100,
			MeanRetentionPct:        float64(175) / 3,
			MedianRetentionPct:      50,
		},
	}

	if diff := cmp.Diff(expected, report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []GroupStat{report.Groups[2]}, report.Inconsistent())
}

func TestCalculateEmpty(t *testing.T) {
	report := Calculate(target, nil, map[CubeKind][]Block{WinMover: {{"Boston", "MA", "b1"}}})

	assert.True(t, report.Empty)
	assert.Empty(t, report.Groups)
	assert.Equal(t, Summary{}, report.Summary)
	assert.Empty(t, report.TopByRetention(5))
}

func TestCalculateGroupWithoutCubeBlocks(t *testing.T) {
	report := Calculate(target, []Candidate{cand("Tulsa", "OK", "k1")}, nil)

	require.Len(t, report.Groups, 1)
	assert.Equal(t, 0, report.Groups[0].TotalBlocks)
	assert.Equal(t, 0.0, report.Groups[0].RetentionRatePct)
	assert.Equal(t, 1, report.Groups[0].BlocksOutsideCubes)
}

func TestMedianEvenCount(t *testing.T) {
	s := summarize([]GroupStat{
		{RetentionRatePct: 10},
		{RetentionRatePct: 90},
		{RetentionRatePct: 30},
		{RetentionRatePct: 50},
	})
	assert.Equal(t, 40.0, s.MedianRetentionPct)
	assert.Equal(t, 45.0, s.MeanRetentionPct)
}

func TestRankings(t *testing.T) {
	report := &Report{Groups: []GroupStat{
		{DMA: "A", State: "1", UniqueBlocksToSuppress: 5, TotalSuppressionRecords: 5, RetentionRatePct: 10, TotalBlocks: 10},
		{DMA: "B", State: "1", UniqueBlocksToSuppress: 1, TotalSuppressionRecords: 9, RetentionRatePct: 90, TotalBlocks: 10},
		{DMA: "C", State: "1", UniqueBlocksToSuppress: 5, TotalSuppressionRecords: 7, RetentionRatePct: 50, TotalBlocks: 10},
		{DMA: "D", State: "1", UniqueBlocksToSuppress: 2, TotalSuppressionRecords: 2, RetentionRatePct: 90, TotalBlocks: 20},
	}}

	names := func(gs []GroupStat) []string {
		out := make([]string, len(gs))
		for i, g := range gs {
			out[i] = g.DMA
		}
		return out
	}

	assert.Equal(t, []string{"D", "B"}, names(report.TopByRetention(2)))
	assert.Equal(t, []string{"C", "A", "D"}, names(report.TopBySuppression(3)))
	assert.Len(t, report.TopBySuppression(10), 4)
	assert.Equal(t, "A", report.Groups[0].DMA, "ranking must not reorder the report")
}

func TestCubeKindString(t *testing.T) {
	assert.Equal(t, "win_mover", WinMover.String())
	assert.Equal(t, "loss_non_mover", LossNonMover.String())
	assert.Equal(t, "cube(9)", CubeKind(9).String())
}

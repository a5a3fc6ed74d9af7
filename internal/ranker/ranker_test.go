package ranker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"structgraph/internal/model"
)

func groupWithSavings(id string, linesSaved int, complexity float64, instances, files int) ScoreInput {
	c := complexity
	g := &model.DuplicateGroup{
		GroupID:            id,
		LinesSavedEstimate: linesSaved,
		ComplexityScore:    &c,
		Instances:          make([]*model.Construct, instances),
	}
	return ScoreInput{Group: g, FileCount: files}
}

// TestScore_FixedWeights exercises spec §3 invariant 3: total_score equals
// the fixed weighted sum of component_scores, rounded to 2 decimals.
func TestScore_FixedWeights(t *testing.T) {
	r, err := New(0)
	require.NoError(t, err)

	coverage := 80.0
	risk := BreakingMedium
	in := groupWithSavings("g1", 50, 5, 3, 2)
	in.CoveragePercent = &coverage
	in.BreakingHint = &risk

	candidate := r.Score(in)

	sum := candidate.ComponentScores["savings"] + candidate.ComponentScores["complexity"] +
		candidate.ComponentScores["risk"] + candidate.ComponentScores["effort"]
	require.InDelta(t, sum, candidate.TotalScore, 1e-6)
}

// TestScore_PriorityThresholds exercises spec §3's threshold table.
func TestScore_PriorityThresholds(t *testing.T) {
	require.Equal(t, model.PriorityCritical, model.ClassifyPriority(80))
	require.Equal(t, model.PriorityHigh, model.ClassifyPriority(60))
	require.Equal(t, model.PriorityMedium, model.ClassifyPriority(40))
	require.Equal(t, model.PriorityLow, model.ClassifyPriority(20))
	require.Equal(t, model.PriorityMinimal, model.ClassifyPriority(19.99))
}

// TestScore_Caching verifies repeated scoring of an identical input is
// served from the LRU cache rather than recomputed.
func TestScore_Caching(t *testing.T) {
	r, err := New(8)
	require.NoError(t, err)

	in := groupWithSavings("g1", 100, 2, 2, 1)
	first := r.Score(in)
	require.Equal(t, 1, r.CacheSize())

	second := r.Score(in)
	require.Equal(t, first, second)
	require.Equal(t, 1, r.CacheSize())
}

// TestRankAll_Ordering is spec §8 seed scenario 6: two groups with
// differing savings/complexity/coverage/breaking-risk/instances/files must
// rank in score-descending order, reproducible to 2 decimals.
func TestRankAll_Ordering(t *testing.T) {
	r, err := New(0)
	require.NoError(t, err)

	coverageA, coverageB := 80.0, 0.0
	breakingA, breakingB := BreakingMedium, BreakingHigh

	a := groupWithSavings("group-a", 50, 5, 3, 2)
	a.CoveragePercent = &coverageA
	a.BreakingHint = &breakingA

	b := groupWithSavings("group-b", 200, 10, 4, 3)
	b.CoveragePercent = &coverageB
	b.BreakingHint = &breakingB

	ranked := r.RankAll([]ScoreInput{a, b})
	require.Len(t, ranked, 2)
	require.GreaterOrEqual(t, ranked[0].TotalScore, ranked[1].TotalScore)
	require.Equal(t, 1, ranked[0].Rank)
	require.Equal(t, 2, ranked[1].Rank)
}

// TestRankAll_StableTieBreak verifies the tie-break on group id when total
// scores are equal (spec §4.6 Ordering).
func TestRankAll_StableTieBreak(t *testing.T) {
	r, err := New(0)
	require.NoError(t, err)

	a := groupWithSavings("b-group", 50, 5, 2, 1)
	b := groupWithSavings("a-group", 50, 5, 2, 1)

	ranked := r.RankAll([]ScoreInput{a, b})
	require.Len(t, ranked, 2)
	require.InDelta(t, ranked[0].TotalScore, ranked[1].TotalScore, 1e-9)
	require.Equal(t, "a-group", ranked[0].Group.GroupID)
	require.Equal(t, "b-group", ranked[1].Group.GroupID)
}

// Package ranker implements the Ranker (C6): scores DuplicateGroups on a
// weighted multi-factor model and classifies priority, per spec §4.6.
package ranker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"structgraph/internal/logging"
	"structgraph/internal/model"
)

// Fixed weights per spec §3 invariant 3 — these are invariants, not config.
const (
	WeightSavings    = 0.40
	WeightComplexity = 0.20
	WeightRisk       = 0.25
	WeightEffort     = 0.15
)

// BreakingRisk is an external impact-analysis hint classifying how likely a
// change is to break callers.
type BreakingRisk string

const (
	BreakingLow    BreakingRisk = "low"
	BreakingMedium BreakingRisk = "medium"
	BreakingHigh   BreakingRisk = "high"
)

var breakingMultiplier = map[BreakingRisk]float64{
	BreakingLow:    1.0,
	BreakingMedium: 0.7,
	BreakingHigh:   0.3,
}

// ScoreInput bundles the external hints the fixed formula consumes beyond
// the DuplicateGroup itself.
type ScoreInput struct {
	Group          *model.DuplicateGroup
	CoveragePercent *float64 // nil -> default 50
	BreakingHint   *BreakingRisk // nil -> default medium (0.7 multiplier per spec §4.6)
	FileCount      int
}

// Ranker scores and ranks DuplicateGroups, memoizing scores by a
// fingerprint over (group signature, coverage bucket, impact hint,
// complexity value).
type Ranker struct {
	cache *lru.Cache[string, model.RankedCandidate]
}

// New constructs a Ranker with an LRU score cache of the given size.
func New(cacheSize int) (*Ranker, error) {
	if cacheSize <= 0 {
		cacheSize = 2048
	}
	c, err := lru.New[string, model.RankedCandidate](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("ranker: %w", err)
	}
	return &Ranker{cache: c}, nil
}

// Score computes (or returns the cached) RankedCandidate for one input.
func (r *Ranker) Score(in ScoreInput) model.RankedCandidate {
	key := fingerprint(in)
	if cached, ok := r.cache.Get(key); ok {
		return cached
	}

	savings := math.Min(float64(in.Group.LinesSavedEstimate)/5, 100) * WeightSavings

	var complexity float64
	if in.Group.ComplexityScore != nil {
		complexity = math.Max(0, 100-(*in.Group.ComplexityScore-1)*16.67) * WeightComplexity
	} else {
		complexity = 50 * WeightComplexity
	}

	coverage := 50.0
	if in.CoveragePercent != nil {
		coverage = *in.CoveragePercent
	}
	multiplier := 0.7
	if in.BreakingHint != nil {
		if m, ok := breakingMultiplier[*in.BreakingHint]; ok {
			multiplier = m
		}
	}
	risk := clamp(coverage*multiplier, 0, 100) * WeightRisk

	effort := math.Max(0, 100-(float64(len(in.Group.Instances))*5+float64(in.FileCount)*10)) * WeightEffort

	componentScores := map[string]float64{
		"savings":    round2(savings),
		"complexity": round2(complexity),
		"risk":       round2(risk),
		"effort":     round2(effort),
	}
	// TotalScore must equal round(sum(ComponentScores), 2), not
	// round(sum(raw values), 2) — summing already-rounded components keeps
	// the two consistent instead of letting round-then-sum and sum-then-round
	// drift apart.
	total := round2(componentScores["savings"] + componentScores["complexity"] + componentScores["risk"] + componentScores["effort"])

	candidate := model.RankedCandidate{
		Group:           in.Group,
		TotalScore:      total,
		ComponentScores: componentScores,
		Priority:        model.ClassifyPriority(total),
		TestCoverage:    in.CoveragePercent,
	}

	r.cache.Add(key, candidate)
	logging.RankerDebug("scored group=%s total=%.2f priority=%s", in.Group.GroupID, total, candidate.Priority)
	return candidate
}

// RankAll scores every input and returns candidates sorted descending by
// score, stable tie-break on group id, with ranks assigned after sort.
func (r *Ranker) RankAll(inputs []ScoreInput) []model.RankedCandidate {
	candidates := make([]model.RankedCandidate, 0, len(inputs))
	for _, in := range inputs {
		candidates = append(candidates, r.Score(in))
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].TotalScore != candidates[j].TotalScore {
			return candidates[i].TotalScore > candidates[j].TotalScore
		}
		return candidates[i].Group.GroupID < candidates[j].Group.GroupID
	})
	for i := range candidates {
		candidates[i].Rank = i + 1
	}
	return candidates
}

// CacheSize reports the number of memoized scores (the LRU's Len). Cache hits
// and misses are not tracked.
func (r *Ranker) CacheSize() int { return r.cache.Len() }

func fingerprint(in ScoreInput) string {
	h := sha256.New()
	fmt.Fprintf(h, "group=%s\ninstances=%d\nlines_saved=%d\n", in.Group.GroupID, len(in.Group.Instances), in.Group.LinesSavedEstimate)
	if in.Group.ComplexityScore != nil {
		fmt.Fprintf(h, "complexity=%.4f\n", *in.Group.ComplexityScore)
	}
	if in.CoveragePercent != nil {
		fmt.Fprintf(h, "coverage_bucket=%d\n", int(*in.CoveragePercent/10))
	}
	if in.BreakingHint != nil {
		fmt.Fprintf(h, "breaking=%s\n", *in.BreakingHint)
	}
	fmt.Fprintf(h, "files=%d\n", in.FileCount)
	return hex.EncodeToString(h.Sum(nil))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

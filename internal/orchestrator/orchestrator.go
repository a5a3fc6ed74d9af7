// Package orchestrator implements the Analysis Orchestrator (C10): the
// end-to-end duplication pipeline with coverage/impact enrichment and
// fractional progress reporting, per spec §4.10.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"sync"

	"structgraph/internal/detector"
	"structgraph/internal/logging"
	"structgraph/internal/model"
	"structgraph/internal/ranker"
)

// ProgressFunc receives fractional progress in [0,1] at each pipeline
// boundary, per spec §4.10's step list.
type ProgressFunc func(fraction float64, stage string)

// CoverageProbe is the external collaborator that reports test-coverage
// percentage per file (spec §4.10 step 3, §6 "external collaborators").
// The orchestrator degrades to the Ranker's coverage-absent default (50)
// when no probe is configured.
type CoverageProbe interface {
	Coverage(ctx context.Context, files []string) (map[string]float64, error)
}

// ImpactAnalyzer is the external collaborator that estimates breaking risk
// for a duplicate group via cross-file reference counting (spec §4.10
// step 4).
type ImpactAnalyzer interface {
	Analyze(ctx context.Context, group *model.DuplicateGroup) (ranker.BreakingRisk, error)
}

// Config parameterizes analyze_deduplication_candidates (spec §4.10, §6).
type Config struct {
	ProjectRoot         string
	Language            string
	MinSimilarity       float64
	MinLines            int
	ExcludePatterns     []string
	IncludeTestCoverage bool
	MaxCandidates       int
}

// Analysis is the {top_candidates, savings, analysis} result shape of
// analyze_deduplication_candidates (spec §6).
type Analysis struct {
	TopCandidates  []model.RankedCandidate
	SavingsLines   int
	GroupsDetected int
	FilesScanned   int
}

// Orchestrator lazily initializes its components on first use, per spec
// §4.10's "avoid up-front cost when constructed for introspection" note.
type Orchestrator struct {
	newDetector func() *detector.Detector
	newRanker   func() (*ranker.Ranker, error)

	mu       sync.Mutex
	det      *detector.Detector
	rnk      *ranker.Ranker
	rnkErr   error

	Coverage CoverageProbe  // optional; nil degrades per spec §4.6
	Impact   ImpactAnalyzer // optional; nil degrades per spec §4.6
}

// New constructs an Orchestrator. detFactory/rankerFactory are invoked at
// most once, on first use.
func New(detFactory func() *detector.Detector, rankerFactory func() (*ranker.Ranker, error)) *Orchestrator {
	return &Orchestrator{newDetector: detFactory, newRanker: rankerFactory}
}

func (o *Orchestrator) detector() *detector.Detector {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.det == nil {
		o.det = o.newDetector()
	}
	return o.det
}

func (o *Orchestrator) ranker() (*ranker.Ranker, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rnk == nil && o.rnkErr == nil {
		o.rnk, o.rnkErr = o.newRanker()
	}
	return o.rnk, o.rnkErr
}

// Analyze runs the pipeline: Detector -> coverage probe -> impact
// enrichment -> Ranker -> response, emitting progress at each boundary.
func (o *Orchestrator) Analyze(ctx context.Context, cfg Config, progress ProgressFunc) (*Analysis, error) {
	if progress == nil {
		progress = func(float64, string) {}
	}

	info, err := os.Stat(cfg.ProjectRoot)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: project_root must exist and be a directory", model.ErrInvalidInput)
	}
	if cfg.MinSimilarity < 0 || cfg.MinSimilarity > 1 {
		return nil, fmt.Errorf("%w: min_similarity must be in [0,1]", model.ErrInvalidInput)
	}
	if cfg.MinLines <= 0 {
		return nil, fmt.Errorf("%w: min_lines must be positive", model.ErrInvalidInput)
	}

	progress(0, "detect")
	groups, err := o.detector().FindDuplication(ctx, detector.Config{
		ProjectRoot:     cfg.ProjectRoot,
		Language:        cfg.Language,
		MinSimilarity:   cfg.MinSimilarity,
		MinLines:        cfg.MinLines,
		ExcludePatterns: cfg.ExcludePatterns,
	})
	if err != nil {
		return nil, err
	}
	progress(0.50, "detect")

	coverageByFile := make(map[string]float64)
	if cfg.IncludeTestCoverage && o.Coverage != nil {
		files := filesInGroups(groups)
		cov, err := o.Coverage.Coverage(ctx, files)
		if err != nil {
			logging.OrchestratorDebug("coverage probe failed, continuing without coverage: %v", err)
		} else {
			coverageByFile = cov
		}
	}
	progress(0.70, "coverage")

	breakingByGroup := make(map[string]ranker.BreakingRisk)
	if o.Impact != nil {
		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, g := range groups {
			wg.Add(1)
			go func(g *model.DuplicateGroup) {
				defer wg.Done()
				risk, err := o.Impact.Analyze(ctx, g)
				if err != nil {
					logging.OrchestratorDebug("impact analysis failed for group %s: %v", g.GroupID, err)
					return
				}
				mu.Lock()
				breakingByGroup[g.GroupID] = risk
				mu.Unlock()
			}(g)
		}
		wg.Wait()
	}
	progress(0.90, "impact")

	rnk, err := o.ranker()
	if err != nil {
		return nil, err
	}

	inputs := make([]ranker.ScoreInput, 0, len(groups))
	for _, g := range groups {
		fileCount := distinctFileCount(g)
		var coveragePercent *float64
		if pct, ok := averageCoverage(g, coverageByFile); ok {
			coveragePercent = &pct
		}
		var hint *ranker.BreakingRisk
		if risk, ok := breakingByGroup[g.GroupID]; ok {
			hint = &risk
		}
		inputs = append(inputs, ranker.ScoreInput{
			Group:           g,
			CoveragePercent: coveragePercent,
			BreakingHint:    hint,
			FileCount:       fileCount,
		})
	}
	ranked := rnk.RankAll(inputs)
	progress(0.98, "rank")

	if cfg.MaxCandidates > 0 && len(ranked) > cfg.MaxCandidates {
		ranked = ranked[:cfg.MaxCandidates]
	}

	totalSaved := 0
	for _, g := range groups {
		totalSaved += g.LinesSavedEstimate
	}

	result := &Analysis{
		TopCandidates:  ranked,
		SavingsLines:   totalSaved,
		GroupsDetected: len(groups),
		FilesScanned:   len(filesInGroups(groups)),
	}
	progress(1.0, "final")
	logging.OrchestratorDebug("analyze: %d groups, %d ranked candidates", len(groups), len(ranked))
	return result, nil
}

func filesInGroups(groups []*model.DuplicateGroup) []string {
	seen := make(map[string]struct{})
	for _, g := range groups {
		for _, c := range g.Instances {
			seen[c.File] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func distinctFileCount(g *model.DuplicateGroup) int {
	seen := make(map[string]struct{})
	for _, c := range g.Instances {
		seen[c.File] = struct{}{}
	}
	return len(seen)
}

func averageCoverage(g *model.DuplicateGroup, byFile map[string]float64) (float64, bool) {
	if len(byFile) == 0 {
		return 0, false
	}
	var sum float64
	var n int
	seen := make(map[string]struct{})
	for _, c := range g.Instances {
		if _, dup := seen[c.File]; dup {
			continue
		}
		seen[c.File] = struct{}{}
		if pct, ok := byFile[c.File]; ok {
			sum += pct
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// identifierPattern extracts candidate identifiers for impact analysis
// (spec §4.10 step 4: "identifier extraction + cross-file reference
// count"). Kept here rather than in detector/similarity since it is an
// orchestrator-local enrichment concern, not a duplication-detection one.
var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// ExtractIdentifiers returns the distinct identifier-like tokens in text,
// for use by an ImpactAnalyzer implementation.
func ExtractIdentifiers(text string) []string {
	found := identifierPattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(found))
	out := make([]string, 0, len(found))
	for _, id := range found {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

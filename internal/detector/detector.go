// Package detector implements the Duplication Detector (C5): it extracts
// Constructs from a project, groups them by hybrid similarity via the
// Similarity Kernel, and emits DuplicateGroups.
package detector

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/semaphore"

	"structgraph/internal/executor"
	"structgraph/internal/filegate"
	"structgraph/internal/logging"
	"structgraph/internal/model"
	"structgraph/internal/similarity"
)

// constructPatterns holds the language-specific matcher pattern used to locate
// function/class/method definitions. Kept minimal; the matcher owns actual
// structural matching semantics.
var constructPatterns = map[string]string{
	"python":     "def $NAME($$$ARGS):\n  $$$BODY",
	"javascript": "function $NAME($$$ARGS) { $$$BODY }",
	"typescript": "function $NAME($$$ARGS) { $$$BODY }",
	"go":         "func $NAME($$$ARGS) $$$RET { $$$BODY }",
	"java":       "$RET $NAME($$$ARGS) { $$$BODY }",
}

// Config parameterizes one find_duplication call.
type Config struct {
	ProjectRoot     string
	Language        string
	MinSimilarity   float64
	MinLines        int
	ExcludePatterns []string
	Parallelism     int // candidate-pair verification concurrency
	SizeRatioMin    float64 // invariant 2 default 0.8
}

// Detector owns the Executor and Similarity Kernel it composes.
type Detector struct {
	exec   *executor.Executor
	kernel *similarity.Kernel
}

// New constructs a Detector.
func New(exec *executor.Executor, kernel *similarity.Kernel) *Detector {
	return &Detector{exec: exec, kernel: kernel}
}

// FindDuplication implements spec §4.5's public operation.
func (d *Detector) FindDuplication(ctx context.Context, cfg Config) ([]*model.DuplicateGroup, error) {
	if cfg.ProjectRoot == "" {
		return nil, fmt.Errorf("%w: project_root required", model.ErrInvalidInput)
	}
	if cfg.SizeRatioMin <= 0 {
		cfg.SizeRatioMin = 0.8
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.MinLines <= 0 {
		cfg.MinLines = 5
	}

	files, err := filegate.Gate(filegate.Config{
		ProjectRoot:  cfg.ProjectRoot,
		Language:     cfg.Language,
		ExcludeGlobs: cfg.ExcludePatterns,
	})
	if err != nil {
		return nil, err
	}

	constructs, err := d.extractConstructs(ctx, cfg, files)
	if err != nil {
		return nil, err
	}

	constructs = filterByMinLines(constructs, cfg.MinLines)
	if len(constructs) < 2 {
		return nil, nil
	}

	signer := d.kernel.Signer()
	sigs := make(map[string]similarity.Signature, len(constructs))
	byID := make(map[string]*model.Construct, len(constructs))
	for _, c := range constructs {
		tokens := c.Tokens
		sigs[c.ID] = signer.Signature(c.ID, tokens)
		byID[c.ID] = c
	}

	idx := similarity.BuildLSHIndex(sigs, 16, len(sigs[constructs[0].ID])/16)

	type pair struct{ a, b string }
	var pairs []pair
	pairSeen := make(map[string]struct{})
	for _, c := range constructs {
		for _, candID := range idx.Candidates(sigs[c.ID], c.ID) {
			key := pairKey(c.ID, candID)
			if _, ok := pairSeen[key]; ok {
				continue
			}
			pairSeen[key] = struct{}{}
			pairs = append(pairs, pair{c.ID, candID})
		}
	}

	uf := newUnionFind()
	for _, c := range constructs {
		uf.add(c.ID)
	}

	sem := semaphore.NewWeighted(int64(cfg.Parallelism))
	resultsCh := make(chan struct {
		a, b string
		sim  float64
	}, len(pairs))

	for _, p := range pairs {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		go func(p pair) {
			defer sem.Release(1)
			a, b := byID[p.a], byID[p.b]
			if !sizeRatioOK(a, b, cfg.SizeRatioMin) {
				resultsCh <- struct {
					a, b string
					sim  float64
				}{p.a, p.b, 0}
				return
			}
			res := d.kernel.Verify(ctx, similarity.PairInput{ID: a.ID, Tokens: a.Tokens, NormalizedText: a.NormalizedText, Language: a.Language}, similarity.PairInput{ID: b.ID, Tokens: b.Tokens, NormalizedText: b.NormalizedText, Language: b.Language})
			resultsCh <- struct {
				a, b string
				sim  float64
			}{p.a, p.b, res.Similarity}
		}(p)
	}

	pairSims := make(map[string]float64, len(pairs))
	for range pairs {
		r := <-resultsCh
		if r.sim >= cfg.MinSimilarity {
			uf.union(r.a, r.b)
			pairSims[pairKey(r.a, r.b)] = r.sim
		}
	}

	groups := buildGroups(uf, byID, files, pairSims)
	logging.DetectorDebug("find_duplication: %d constructs, %d pairs verified, %d groups", len(constructs), len(pairs), len(groups))
	return groups, nil
}

func (d *Detector) extractConstructs(ctx context.Context, cfg Config, files []string) ([]*model.Construct, error) {
	pattern, ok := constructPatterns[strings.ToLower(cfg.Language)]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported language %q", model.ErrInvalidInput, cfg.Language)
	}

	seq, err := d.exec.Run(ctx, executorRunOpts(cfg, pattern))
	if err != nil {
		return nil, err
	}
	matches, err := seq.Collect()
	if err != nil {
		logging.DetectorWarn("matcher reported errors during construct extraction: %v", err)
	}

	constructs := make([]*model.Construct, 0, len(matches))
	for i, m := range matches {
		norm := similarity.NormalizeSource(cfg.Language, m.Text)
		tokens := tokenize(norm)
		c := &model.Construct{
			ID:             fmt.Sprintf("%s:%d:%d:%d", m.File, m.Range.Start.Line, m.Range.Start.Column, i),
			File:           m.File,
			Range:          m.Range,
			Language:       cfg.Language,
			Kind:           model.KindFunction,
			NormalizedText: norm,
			Tokens:         tokens,
			StructureHash:  similarity.StructureHash(cfg.Language, norm),
		}
		constructs = append(constructs, c)
	}
	return constructs, nil
}

func executorRunOpts(cfg Config, pattern string) executor.RunOptions {
	return executor.RunOptions{
		ProjectRoot:   cfg.ProjectRoot,
		PatternOrRule: pattern,
		Language:      cfg.Language,
	}
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
}

func filterByMinLines(constructs []*model.Construct, minLines int) []*model.Construct {
	out := make([]*model.Construct, 0, len(constructs))
	for _, c := range constructs {
		lines := c.Range.End.Line - c.Range.Start.Line + 1
		if lines >= minLines {
			out = append(out, c)
		}
	}
	return out
}

func sizeRatioOK(a, b *model.Construct, minRatio float64) bool {
	sa, sb := a.ByteSize(), b.ByteSize()
	if sa == 0 || sb == 0 {
		return false
	}
	smaller, larger := sa, sb
	if smaller > larger {
		smaller, larger = larger, smaller
	}
	return float64(smaller)/float64(larger) >= minRatio
}

func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

func buildGroups(uf *unionFind, byID map[string]*model.Construct, traversalOrder []string, pairSims map[string]float64) []*model.DuplicateGroup {
	fileOrder := make(map[string]int, len(traversalOrder))
	for i, f := range traversalOrder {
		fileOrder[f] = i
	}

	clusters := uf.clusters()
	var groups []*model.DuplicateGroup
	for root, ids := range clusters {
		if len(ids) < 2 {
			continue
		}
		instances := make([]*model.Construct, 0, len(ids))
		for _, id := range ids {
			instances = append(instances, byID[id])
		}
		sort.Slice(instances, func(i, j int) bool {
			oi, oj := fileOrder[instances[i].File], fileOrder[instances[j].File]
			if oi != oj {
				return oi < oj
			}
			return instances[i].Range.Start.Line < instances[j].Range.Start.Line
		})

		totalSize, maxSize := 0, 0
		for _, inst := range instances {
			sz := inst.ByteSize()
			totalSize += sz
			if sz > maxSize {
				maxSize = sz
			}
		}

		groups = append(groups, &model.DuplicateGroup{
			GroupID:            groupID(root, instances),
			Instances:          instances,
			Representative:     0,
			PairwiseSimilarity: averagePairwiseSimilarity(instances, pairSims),
			LinesSavedEstimate: linesSaved(instances),
			VariationClass:     classifyVariation(instances),
		})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].GroupID < groups[j].GroupID })
	return groups
}

func groupID(root string, instances []*model.Construct) string {
	return fmt.Sprintf("grp-%s-%d", filepath.Base(root), len(instances))
}

func linesSaved(instances []*model.Construct) int {
	total, max := 0, 0
	for _, c := range instances {
		lines := c.Range.End.Line - c.Range.Start.Line + 1
		total += lines
		if lines > max {
			max = lines
		}
	}
	return total - max
}

func averagePairwiseSimilarity(instances []*model.Construct, pairSims map[string]float64) float64 {
	var sum float64
	var n int
	for i := 0; i < len(instances); i++ {
		for j := i + 1; j < len(instances); j++ {
			if sim, ok := pairSims[pairKey(instances[i].ID, instances[j].ID)]; ok {
				sum += sim
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func classifyVariation(instances []*model.Construct) model.VariationClass {
	hashes := make(map[uint64]struct{})
	texts := make(map[string]struct{})
	for _, c := range instances {
		hashes[c.StructureHash] = struct{}{}
		texts[c.NormalizedText] = struct{}{}
	}
	if len(texts) == 1 {
		return model.VariationIdentical
	}
	if len(hashes) == 1 {
		return model.VariationIdentifierVarying
	}
	return model.VariationStructuralVarying
}

package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"structgraph/internal/detector"
	"structgraph/internal/executor"
	"structgraph/internal/ranker"
	"structgraph/internal/similarity"
)

const duplicationMatcherScript = `#!/bin/sh
cat > /dev/null
cat <<'EOF'
{"file":"a.py","range":{"start":{"line":1,"column":1},"end":{"line":6,"column":1}},"text":"def total(items):\n    acc = 0\n    for i in items:\n        acc += i\n    return acc","meta_variables":{"single":{}}}
{"file":"b.py","range":{"start":{"line":1,"column":1},"end":{"line":6,"column":1}},"text":"def total(values):\n    acc = 0\n    for i in values:\n        acc += i\n    return acc","meta_variables":{"single":{}}}
EOF
`

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-matcher.sh")
	require.NoError(t, os.WriteFile(script, []byte(duplicationMatcherScript), 0o755))

	exec := executor.New(executor.Config{MatcherPath: script, Timeout: 5 * time.Second, TermGrace: time.Second, KillGrace: time.Second})
	kernel := similarity.New(similarity.Config{
		NumPerm:          64,
		MinHashThreshold: 0.1,
		MinHashWeight:    1.0,
		SmallTokenCutoff: 0,
		LSHBands:         8,
		LSHRows:          8,
	}, nil)

	return New(
		func() *detector.Detector { return detector.New(exec, kernel) },
		func() (*ranker.Ranker, error) { return ranker.New(0) },
	)
}

func TestAnalyze_RejectsInvalidProjectRoot(t *testing.T) {
	o := newTestOrchestrator(t)
	_, err := o.Analyze(context.Background(), Config{ProjectRoot: "/does/not/exist", MinLines: 1}, nil)
	require.Error(t, err)
}

func TestAnalyze_RejectsOutOfRangeSimilarity(t *testing.T) {
	o := newTestOrchestrator(t)
	_, err := o.Analyze(context.Background(), Config{ProjectRoot: t.TempDir(), MinLines: 1, MinSimilarity: 1.5}, nil)
	require.Error(t, err)
}

func TestAnalyze_ProgressReachesOneInOrder(t *testing.T) {
	o := newTestOrchestrator(t)
	root := t.TempDir()

	var fractions []float64
	_, err := o.Analyze(context.Background(), Config{ProjectRoot: root, Language: "python", MinLines: 1, MinSimilarity: 0.5}, func(fraction float64, stage string) {
		fractions = append(fractions, fraction)
	})
	require.NoError(t, err)
	require.NotEmpty(t, fractions)
	for i := 1; i < len(fractions); i++ {
		require.GreaterOrEqual(t, fractions[i], fractions[i-1])
	}
	require.Equal(t, 1.0, fractions[len(fractions)-1])
}

func TestAnalyze_DetectsDuplicateGroup(t *testing.T) {
	o := newTestOrchestrator(t)
	root := t.TempDir()

	analysis, err := o.Analyze(context.Background(), Config{ProjectRoot: root, Language: "python", MinLines: 1, MinSimilarity: 0.5}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, analysis.GroupsDetected)
	require.Len(t, analysis.TopCandidates, 1)
}

type fakeCoverageProbe struct{ pct map[string]float64 }

func (f *fakeCoverageProbe) Coverage(ctx context.Context, files []string) (map[string]float64, error) {
	return f.pct, nil
}

func TestAnalyze_CoverageProbeEnriches(t *testing.T) {
	o := newTestOrchestrator(t)
	o.Coverage = &fakeCoverageProbe{pct: map[string]float64{"a.py": 90, "b.py": 90}}
	root := t.TempDir()

	analysis, err := o.Analyze(context.Background(), Config{
		ProjectRoot: root, Language: "python", MinLines: 1, MinSimilarity: 0.5, IncludeTestCoverage: true,
	}, nil)
	require.NoError(t, err)
	require.Len(t, analysis.TopCandidates, 1)
	require.NotNil(t, analysis.TopCandidates[0].TestCoverage)
}

func TestAnalyze_ZeroMaxCandidatesKeepsAll(t *testing.T) {
	o := newTestOrchestrator(t)
	root := t.TempDir()

	analysis, err := o.Analyze(context.Background(), Config{
		ProjectRoot: root, Language: "python", MinLines: 1, MinSimilarity: 0.5, MaxCandidates: 0,
	}, nil)
	require.NoError(t, err)
	require.Len(t, analysis.TopCandidates, 1)
}

func TestExtractIdentifiers_DeduplicatesPreservingFirstOccurrence(t *testing.T) {
	ids := ExtractIdentifiers("foo(bar, foo, baz)")
	require.Equal(t, []string{"foo", "bar", "baz"}, ids)
}

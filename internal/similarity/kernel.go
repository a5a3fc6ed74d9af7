package similarity

import (
	"context"
	"strings"

	"structgraph/internal/embedding"
	"structgraph/internal/logging"
)

// StageWeight names one hybrid-similarity stage alongside its configured
// weight; weights across enabled stages must sum to 1.0.
type StageWeight struct {
	Name   string
	Weight float64
}

// Config controls which optional stages are enabled and their weights.
type Config struct {
	NumPerm           int
	MinHashThreshold  float64 // short-circuit threshold for stage 1
	LSHBands          int
	LSHRows           int
	EnableAST         bool
	EnableSemantic    bool
	ASTWeight         float64
	SemanticWeight    float64
	MinHashWeight     float64
	SmallTokenCutoff  int // below this token count, prefer LCS ratio over MinHash
}

// DefaultConfig returns weights that sum to 1.0 with only MinHash enabled.
func DefaultConfig() Config {
	return Config{
		NumPerm:          DefaultNumPerm,
		MinHashThreshold: 0.5,
		LSHBands:         16,
		LSHRows:          8,
		MinHashWeight:    1.0,
		SmallTokenCutoff: 8,
	}
}

// Kernel combines the MinHash/LSH stage with optional AST and semantic
// verification stages into one hybrid similarity score.
type Kernel struct {
	cfg     Config
	signer  *Signer
	embedder embedding.EmbeddingEngine // nil when semantic stage disabled/unavailable
}

// New constructs a Kernel. embedder may be nil; if cfg.EnableSemantic is
// true but embedder is nil, the semantic stage reports "unavailable" and is
// dropped from the weighted sum without renormalizing the rest (spec §9
// design notes).
func New(cfg Config, embedder embedding.EmbeddingEngine) *Kernel {
	return &Kernel{
		cfg:      cfg,
		signer:   NewSigner(cfg.NumPerm, 8192),
		embedder: embedder,
	}
}

// Signer exposes the underlying MinHash signer for callers (the Detector)
// that need to build an LSH index directly.
func (k *Kernel) Signer() *Signer { return k.signer }

// PairInput bundles what the kernel needs to compare two constructs: their
// ids (for signature caching), token streams, and normalized source text.
type PairInput struct {
	ID             string
	Tokens         []string
	NormalizedText string
	Language       string
}

// Result is the hybrid similarity verdict for one candidate pair.
type Result struct {
	Similarity        float64
	MinHashEstimate   float64
	ShortCircuited    bool // rejected before AST/semantic stages ran
	SemanticAvailable bool
}

// Verify computes the hybrid similarity between a and b. When both
// constructs are smaller than SmallTokenCutoff tokens, an LCS-ratio
// estimate replaces the MinHash stage to avoid short-input variance (spec
// §4.4 edge policy).
func (k *Kernel) Verify(ctx context.Context, a, b PairInput) Result {
	if len(a.Tokens) == 0 || len(b.Tokens) == 0 {
		return Result{}
	}

	var stage1 float64
	if len(a.Tokens) < k.cfg.SmallTokenCutoff && len(b.Tokens) < k.cfg.SmallTokenCutoff {
		stage1 = lcsRatio(a.Tokens, b.Tokens)
	} else {
		sigA := k.signer.Signature(a.ID, a.Tokens)
		sigB := k.signer.Signature(b.ID, b.Tokens)
		stage1 = EstimateJaccard(sigA, sigB)
	}

	if stage1 < k.cfg.MinHashThreshold {
		return Result{Similarity: 0, MinHashEstimate: stage1, ShortCircuited: true}
	}

	weightSum := k.cfg.MinHashWeight
	total := stage1 * k.cfg.MinHashWeight
	semanticAvailable := false

	if k.cfg.EnableAST {
		astSim := astSimilarity(a, b)
		total += astSim * k.cfg.ASTWeight
		weightSum += k.cfg.ASTWeight
	}

	if k.cfg.EnableSemantic {
		if k.embedder != nil {
			if sim, ok := k.semanticSimilarity(ctx, a.NormalizedText, b.NormalizedText); ok {
				total += sim * k.cfg.SemanticWeight
				weightSum += k.cfg.SemanticWeight
				semanticAvailable = true
			} else {
				logging.SimilarityWarn("semantic stage unavailable, degrading without renormalization")
			}
		} else {
			logging.SimilarityDebug("semantic stage enabled but no embedder configured")
		}
	}

	final := clamp01(total)
	// Note: per spec §9, when a stage is unavailable we do not renormalize
	// the remaining weights — `total` simply reflects fewer contributing
	// stages, intentionally leaving `weightSum` < 1.0 in that case.
	_ = weightSum

	return Result{
		Similarity:        final,
		MinHashEstimate:   stage1,
		SemanticAvailable: semanticAvailable,
	}
}

func (k *Kernel) semanticSimilarity(ctx context.Context, textA, textB string) (float64, bool) {
	if hc, ok := k.embedder.(embedding.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return 0, false
		}
	}
	embA, err := k.embedder.Embed(ctx, textA)
	if err != nil {
		return 0, false
	}
	embB, err := k.embedder.Embed(ctx, textB)
	if err != nil {
		return 0, false
	}
	sim, err := embedding.CosineSimilarity(embA, embB)
	if err != nil {
		return 0, false
	}
	return clamp01(sim), true
}

// lcsRatio returns |LCS(a,b)| / max(|a|,|b|) as a cheap similarity proxy
// for short token streams where MinHash variance is high.
func lcsRatio(a, b []string) float64 {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return 0
	}
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] > dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}
	longest := n
	if m > longest {
		longest = m
	}
	return clamp01(float64(dp[n][m]) / float64(longest))
}

// astSimilarity compares two constructs' tree-sitter-derived node-kind
// sequences (see ast.go). Falls back to a token-overlap heuristic when a
// construct has no parsed node sequence (unsupported language, parse
// failure) so the AST stage degrades gracefully rather than panicking.
func astSimilarity(a, b PairInput) float64 {
	seqA := NodeKindSequence(a.Language, a.NormalizedText)
	seqB := NodeKindSequence(b.Language, b.NormalizedText)
	if len(seqA) == 0 || len(seqB) == 0 {
		return tokenOverlap(a.Tokens, b.Tokens)
	}
	return lcsRatio(seqA, seqB)
}

func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	inter := 0
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, ok := setA[t]; ok {
			inter++
		}
		setB[t] = struct{}{}
	}
	union := len(setA)
	for t := range setB {
		if _, ok := setA[t]; !ok {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return clamp01(float64(inter) / float64(union))
}

// NormalizeSource trims each line and drops blank lines and whole-line
// comments; trailing comments and interior whitespace are kept. The result
// feeds tokenization and the AST stage's structure-hash input, per spec §4.4.
func NormalizeSource(lang, src string) string {
	lines := strings.Split(src, "\n")
	var out []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isCommentLine(lang, trimmed) {
			continue
		}
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}

func isCommentLine(lang, line string) bool {
	switch lang {
	case "python":
		return strings.HasPrefix(line, "#")
	default:
		return strings.HasPrefix(line, "//") || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "/*")
	}
}

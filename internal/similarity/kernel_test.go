package similarity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 2 }
func (f *fakeEmbedder) Name() string    { return "fake" }

func TestKernel_ShortCircuitsBelowThreshold(t *testing.T) {
	k := New(Config{
		NumPerm:          128,
		MinHashThreshold: 0.9,
		MinHashWeight:    1.0,
		SmallTokenCutoff: 0,
	}, nil)

	a := PairInput{ID: "a", Tokens: []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"}}
	b := PairInput{ID: "b", Tokens: []string{"one", "two", "three", "four", "five", "six", "seven", "eight"}}

	res := k.Verify(context.Background(), a, b)
	require.True(t, res.ShortCircuited)
	require.Equal(t, 0.0, res.Similarity)
}

func TestKernel_IdenticalTokensAreFullySimilar(t *testing.T) {
	k := New(DefaultConfig(), nil)
	tokens := []string{"def", "foo", "bar", "baz", "return", "x", "plus", "one", "more", "tok"}

	a := PairInput{ID: "a", Tokens: tokens, NormalizedText: "def foo(): return x"}
	b := PairInput{ID: "b", Tokens: tokens, NormalizedText: "def foo(): return x"}

	res := k.Verify(context.Background(), a, b)
	require.False(t, res.ShortCircuited)
	require.InDelta(t, 1.0, res.Similarity, 1e-9)
}

func TestKernel_SmallTokenCutoffUsesLCS(t *testing.T) {
	k := New(Config{
		NumPerm:          128,
		MinHashThreshold: 0.1,
		MinHashWeight:    1.0,
		SmallTokenCutoff: 8,
	}, nil)

	a := PairInput{ID: "a", Tokens: []string{"x", "y"}}
	b := PairInput{ID: "b", Tokens: []string{"x", "y"}}

	res := k.Verify(context.Background(), a, b)
	require.Equal(t, 1.0, res.MinHashEstimate)
}

func TestKernel_EmptyTokensYieldsZeroResult(t *testing.T) {
	k := New(DefaultConfig(), nil)
	res := k.Verify(context.Background(), PairInput{ID: "a"}, PairInput{ID: "b", Tokens: []string{"x"}})
	require.Equal(t, Result{}, res)
}

// TestKernel_SemanticUnavailableDoesNotRenormalize is spec §9: when the
// semantic stage is enabled but the embedder errors, the remaining stages'
// weighted sum is reported as-is rather than rescaled to sum to 1.0.
func TestKernel_SemanticUnavailableDoesNotRenormalize(t *testing.T) {
	cfg := Config{
		NumPerm:          128,
		MinHashThreshold: 0.1,
		MinHashWeight:    0.5,
		EnableSemantic:   true,
		SemanticWeight:   0.5,
		SmallTokenCutoff: 0,
	}
	tokens := []string{"def", "foo", "bar", "baz", "return", "x", "plus", "one"}
	embedder := &fakeEmbedder{err: errUnavailable{}}
	k := New(cfg, embedder)

	a := PairInput{ID: "a", Tokens: tokens, NormalizedText: "same text"}
	b := PairInput{ID: "b", Tokens: tokens, NormalizedText: "same text"}

	res := k.Verify(context.Background(), a, b)
	require.False(t, res.SemanticAvailable)
	// Only the MinHash stage contributed: similarity == stage1 * 0.5, not
	// rescaled up to stage1 * 1.0.
	require.InDelta(t, res.MinHashEstimate*0.5, res.Similarity, 1e-9)
}

func TestKernel_SemanticAvailableContributes(t *testing.T) {
	cfg := Config{
		NumPerm:          128,
		MinHashThreshold: 0.1,
		MinHashWeight:    0.5,
		EnableSemantic:   true,
		SemanticWeight:   0.5,
		SmallTokenCutoff: 0,
	}
	tokens := []string{"def", "foo", "bar", "baz", "return", "x", "plus", "one"}
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"text-a": {1, 0},
		"text-b": {1, 0},
	}}
	k := New(cfg, embedder)

	a := PairInput{ID: "a", Tokens: tokens, NormalizedText: "text-a"}
	b := PairInput{ID: "b", Tokens: tokens, NormalizedText: "text-b"}

	res := k.Verify(context.Background(), a, b)
	require.True(t, res.SemanticAvailable)
}

func TestNormalizeSource_StripsCommentsAndBlankLines(t *testing.T) {
	src := "def foo():\n    # a comment\n\n    return 1\n"
	got := NormalizeSource("python", src)
	require.Equal(t, "def foo():\nreturn 1", got)
}

type errUnavailable struct{}

func (errUnavailable) Error() string { return "embedding service unavailable" }

package similarity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSigner_DeterministicAcrossInstances(t *testing.T) {
	tokens := []string{"def", "foo", "return", "x"}
	s1 := NewSigner(64, 0)
	s2 := NewSigner(64, 0)

	sig1 := s1.Signature("c1", tokens)
	sig2 := s2.Signature("c2", tokens)
	require.Equal(t, sig1, sig2, "signature must depend only on the token set, not on seed instance or cache key")
}

func TestSigner_CacheHitReturnsSameSignature(t *testing.T) {
	s := NewSigner(32, 8)
	tokens := []string{"a", "b", "c"}
	first := s.Signature("key", tokens)
	second := s.Signature("key", []string{"completely", "different", "tokens"})
	require.Equal(t, first, second, "cached signature must be returned regardless of new tokens passed under the same key")
}

func TestSigner_EmptyTokensYieldsSentinelSignature(t *testing.T) {
	s := NewSigner(16, 0)
	sig := s.Signature("", nil)
	require.Len(t, sig, 16)
	for _, v := range sig {
		require.Equal(t, ^uint64(0), v)
	}
}

func TestEstimateJaccard_IdenticalSignaturesIsOne(t *testing.T) {
	s := NewSigner(32, 0)
	sig := s.Signature("c1", []string{"alpha", "beta", "gamma"})
	require.Equal(t, 1.0, EstimateJaccard(sig, sig))
}

func TestEstimateJaccard_DisjointTokensIsLow(t *testing.T) {
	s := NewSigner(64, 0)
	sigA := s.Signature("a", []string{"alpha", "beta", "gamma"})
	sigB := s.Signature("b", []string{"delta", "epsilon", "zeta"})
	require.Less(t, EstimateJaccard(sigA, sigB), 0.5)
}

func TestEstimateJaccard_MismatchedWidthIsZero(t *testing.T) {
	require.Equal(t, 0.0, EstimateJaccard(Signature{1, 2}, Signature{1, 2, 3}))
}

func TestBuildLSHIndex_FindsSimilarCandidate(t *testing.T) {
	s := NewSigner(128, 0)
	shared := []string{"def", "foo", "bar", "baz", "return", "x", "plus", "one"}
	sigA := s.Signature("a", shared)
	sigB := s.Signature("b", shared)
	sigC := s.Signature("c", []string{"totally", "unrelated", "words", "here"})

	idx := BuildLSHIndex(map[string]Signature{"a": sigA, "b": sigB, "c": sigC}, 16, 8)

	candidates := idx.Candidates(sigA, "a")
	require.Contains(t, candidates, "b")
}

func TestLSHIndex_ExcludesSelf(t *testing.T) {
	s := NewSigner(64, 0)
	sig := s.Signature("a", []string{"x", "y", "z"})
	idx := BuildLSHIndex(map[string]Signature{"a": sig}, 8, 8)

	candidates := idx.Candidates(sig, "a")
	require.NotContains(t, candidates, "a")
}

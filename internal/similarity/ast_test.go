package similarity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNodeKindSequence_UnsupportedLanguageIsNil(t *testing.T) {
	require.Nil(t, NodeKindSequence("cobol", "whatever"))
}

func TestNodeKindSequence_GoSourceParses(t *testing.T) {
	seq := NodeKindSequence("go", "func add(a, b int) int { return a + b }")
	require.NotEmpty(t, seq)
}

func TestNodeKindSequence_IdenticalSourceIsDeterministic(t *testing.T) {
	src := "func add(a, b int) int { return a + b }"
	first := NodeKindSequence("go", src)
	second := NodeKindSequence("go", src)
	require.Equal(t, first, second)
}

func TestStructureHash_StableForIdenticalInput(t *testing.T) {
	h1 := StructureHash("go", "func add(a, b int) int { return a + b }")
	h2 := StructureHash("go", "func add(a, b int) int { return a + b }")
	require.Equal(t, h1, h2)
}

func TestStructureHash_FallsBackForUnsupportedLanguage(t *testing.T) {
	h1 := StructureHash("cobol", "MOVE A TO B")
	h2 := StructureHash("cobol", "MOVE A TO B")
	require.Equal(t, h1, h2)

	h3 := StructureHash("cobol", "MOVE C TO D")
	require.NotEqual(t, h1, h3)
}

func TestSizeBucket_MonotonicNonDecreasing(t *testing.T) {
	require.LessOrEqual(t, sizeBucket(10), sizeBucket(1000))
}

func TestNestingDepthEstimate(t *testing.T) {
	require.Equal(t, 3, nestingDepthEstimate("if (a) { foo(bar(x)) }"))
	require.Equal(t, 0, nestingDepthEstimate("no brackets here"))
}

package detector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"structgraph/internal/model"
)

func construct(id, text string, structHash uint64) *model.Construct {
	return &model.Construct{
		ID:             id,
		NormalizedText: text,
		StructureHash:  structHash,
		Range:          model.Range{Start: model.Position{Line: 1}, End: model.Position{Line: 5}},
	}
}

func TestSizeRatioOK(t *testing.T) {
	a := construct("a", "aaaaaaaaaa", 1) // 10 bytes
	b := construct("b", "aaaaaaaa", 1)   // 8 bytes
	require.True(t, sizeRatioOK(a, b, 0.8))

	c := construct("c", "aa", 1) // 2 bytes
	require.False(t, sizeRatioOK(a, c, 0.8))
}

func TestSizeRatioOK_ZeroSizeRejected(t *testing.T) {
	a := construct("a", "", 1)
	b := construct("b", "x", 1)
	require.False(t, sizeRatioOK(a, b, 0.1))
}

func TestPairKey_OrderIndependent(t *testing.T) {
	require.Equal(t, pairKey("a", "b"), pairKey("b", "a"))
	require.NotEqual(t, pairKey("a", "b"), pairKey("a", "c"))
}

func TestFilterByMinLines(t *testing.T) {
	short := construct("short", "x", 1)
	short.Range = model.Range{Start: model.Position{Line: 1}, End: model.Position{Line: 2}}
	long := construct("long", "y", 1)
	long.Range = model.Range{Start: model.Position{Line: 1}, End: model.Position{Line: 10}}

	got := filterByMinLines([]*model.Construct{short, long}, 5)
	require.Len(t, got, 1)
	require.Equal(t, "long", got[0].ID)
}

func TestClassifyVariation_Identical(t *testing.T) {
	a := construct("a", "same text", 1)
	b := construct("b", "same text", 1)
	require.Equal(t, model.VariationIdentical, classifyVariation([]*model.Construct{a, b}))
}

func TestClassifyVariation_IdentifierVarying(t *testing.T) {
	a := construct("a", "return x", 1)
	b := construct("b", "return y", 1)
	require.Equal(t, model.VariationIdentifierVarying, classifyVariation([]*model.Construct{a, b}))
}

func TestClassifyVariation_StructuralVarying(t *testing.T) {
	a := construct("a", "if x: return 1", 1)
	b := construct("b", "for x in y: return 1", 2)
	require.Equal(t, model.VariationStructuralVarying, classifyVariation([]*model.Construct{a, b}))
}

func TestLinesSaved(t *testing.T) {
	a := construct("a", "x", 1)
	a.Range = model.Range{Start: model.Position{Line: 1}, End: model.Position{Line: 10}} // 10 lines
	b := construct("b", "y", 1)
	b.Range = model.Range{Start: model.Position{Line: 1}, End: model.Position{Line: 10}} // 10 lines

	// two instances of 10 lines each: total 20, max 10, saved = 10
	require.Equal(t, 10, linesSaved([]*model.Construct{a, b}))
}

func TestAveragePairwiseSimilarity(t *testing.T) {
	a := construct("a", "x", 1)
	b := construct("b", "y", 1)
	c := construct("c", "z", 1)

	sims := map[string]float64{
		pairKey("a", "b"): 0.9,
		pairKey("a", "c"): 0.7,
	}

	got := averagePairwiseSimilarity([]*model.Construct{a, b, c}, sims)
	require.InDelta(t, 0.8, got, 1e-9)
}

func TestAveragePairwiseSimilarity_NoKnownPairs(t *testing.T) {
	a := construct("a", "x", 1)
	b := construct("b", "y", 1)
	require.Equal(t, 0.0, averagePairwiseSimilarity([]*model.Construct{a, b}, nil))
}

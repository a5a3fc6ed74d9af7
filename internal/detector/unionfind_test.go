package detector

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnionFind_UnionMergesClusters(t *testing.T) {
	uf := newUnionFind()
	for _, id := range []string{"a", "b", "c", "d"} {
		uf.add(id)
	}
	uf.union("a", "b")
	uf.union("c", "d")

	require.Equal(t, uf.find("a"), uf.find("b"))
	require.NotEqual(t, uf.find("a"), uf.find("c"))

	uf.union("b", "c")
	require.Equal(t, uf.find("a"), uf.find("d"))
}

func TestUnionFind_Clusters(t *testing.T) {
	uf := newUnionFind()
	for _, id := range []string{"x", "y", "z"} {
		uf.add(id)
	}
	uf.union("x", "y")

	clusters := uf.clusters()
	require.Len(t, clusters, 2)

	var sizes []int
	for _, members := range clusters {
		sizes = append(sizes, len(members))
	}
	require.ElementsMatch(t, []int{2, 1}, sizes)
}

func TestUnionFind_UnionSameRootIsNoop(t *testing.T) {
	uf := newUnionFind()
	uf.add("a")
	uf.add("b")
	uf.union("a", "b")
	root := uf.find("a")
	uf.union("a", "b")
	require.Equal(t, root, uf.find("a"))
}

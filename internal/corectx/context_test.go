package corectx

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"structgraph/internal/model"
	"structgraph/internal/similarity"
)

func TestNew_WithoutPersistentCache(t *testing.T) {
	ctx, err := New(Config{QueryCacheSize: 16, RankerCacheSize: 16}, similarity.New(similarity.DefaultConfig(), nil), "")
	require.NoError(t, err)
	defer ctx.Close()

	require.NotNil(t, ctx.QueryCache)
	require.NotNil(t, ctx.Ranker)
	require.Nil(t, ctx.EmbedCache)
}

func TestNew_WithPersistentCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeds.db")
	ctx, err := New(Config{QueryCacheSize: 16, RankerCacheSize: 16}, nil, path)
	require.NoError(t, err)
	defer ctx.Close()

	require.NotNil(t, ctx.EmbedCache)
}

func TestSetCacheDisabled_BypassesQueryCache(t *testing.T) {
	ctx, err := New(Config{QueryCacheSize: 16, RankerCacheSize: 16}, nil, "")
	require.NoError(t, err)
	defer ctx.Close()

	ctx.SetCacheDisabled(true)

	key := "k1"
	ctx.QueryCache.Put(key, []model.Match{{File: "a.py"}})
	_, ok := ctx.QueryCache.Get(key)
	require.False(t, ok)
}

func TestSecondsOrDefault(t *testing.T) {
	require.Equal(t, 300, secondsOrDefault(0))
	require.Equal(t, 300, secondsOrDefault(-5))
	require.Equal(t, 60, secondsOrDefault(60))
}

func TestClose_NoopWithoutEmbedCache(t *testing.T) {
	ctx, err := New(Config{}, nil, "")
	require.NoError(t, err)
	require.NoError(t, ctx.Close())
}

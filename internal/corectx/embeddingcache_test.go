package corectx

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbeddingCache_PutGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeds.db")
	c, err := NewEmbeddingCache(path)
	require.NoError(t, err)
	defer c.Close()

	vec := []float32{0.1, -0.2, 0.3, 1.5}
	require.NoError(t, c.Put("construct-1", "ollama", vec))

	got, ok := c.Get("construct-1", "ollama")
	require.True(t, ok)
	require.InDeltaSlice(t, vec, got, 1e-6)
}

func TestEmbeddingCache_MissReturnsFalse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeds.db")
	c, err := NewEmbeddingCache(path)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get("nonexistent", "ollama")
	require.False(t, ok)
}

func TestEmbeddingCache_DifferentProviderIsDistinctKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeds.db")
	c, err := NewEmbeddingCache(path)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Put("construct-1", "ollama", []float32{1, 2}))
	_, ok := c.Get("construct-1", "genai")
	require.False(t, ok)
}

func TestEmbeddingCache_PutOverwritesExistingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeds.db")
	c, err := NewEmbeddingCache(path)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Put("construct-1", "ollama", []float32{1, 2}))
	require.NoError(t, c.Put("construct-1", "genai", []float32{3, 4}))

	got, ok := c.Get("construct-1", "genai")
	require.True(t, ok)
	require.InDeltaSlice(t, []float32{3, 4}, got, 1e-6)
}

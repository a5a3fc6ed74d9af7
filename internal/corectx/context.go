// Package corectx implements the CoreContext (spec §9 design notes): a
// single owner for the process-wide caches (Query Cache, MinHash signature
// cache via the Similarity Kernel, Ranker score cache) so the cache-disable
// switch and lifecycle are explicit rather than relying on package
// globals.
package corectx

import (
	"time"

	"structgraph/internal/cache"
	"structgraph/internal/ranker"
	"structgraph/internal/similarity"
)

// CoreContext owns the shared, process-wide caches used across a
// structgraph invocation.
type CoreContext struct {
	QueryCache   *cache.Cache
	Kernel       *similarity.Kernel
	Ranker       *ranker.Ranker
	EmbedCache   *EmbeddingCache // optional; nil when no persistent path configured
}

// Config parameterizes New.
type Config struct {
	QueryCacheSize int
	QueryCacheTTLSeconds int
	RankerCacheSize int
	SimilarityConfig similarity.Config
	PersistentEmbedCachePath string // empty disables persistence
}

// New constructs a CoreContext. kernel embedding engine wiring (nil or a
// real embedding.EmbeddingEngine) is the caller's concern; New only wires
// the cache layer around it. A non-empty embedCachePath takes precedence
// over cfg.PersistentEmbedCachePath.
func New(cfg Config, embedderKernel *similarity.Kernel, embedCachePath string) (*CoreContext, error) {
	if embedCachePath == "" {
		embedCachePath = cfg.PersistentEmbedCachePath
	}
	qc, err := cache.New(cfg.QueryCacheSize, time.Duration(secondsOrDefault(cfg.QueryCacheTTLSeconds))*time.Second)
	if err != nil {
		return nil, err
	}

	rnk, err := ranker.New(cfg.RankerCacheSize)
	if err != nil {
		return nil, err
	}

	ctx := &CoreContext{
		QueryCache: qc,
		Kernel:     embedderKernel,
		Ranker:     rnk,
	}

	if embedCachePath != "" {
		ec, err := NewEmbeddingCache(embedCachePath)
		if err != nil {
			return nil, err
		}
		ctx.EmbedCache = ec
	}

	return ctx, nil
}

// SetCacheDisabled bypasses the Query Cache process-wide, per spec §9's
// cache-disable switch.
func (c *CoreContext) SetCacheDisabled(disabled bool) {
	c.QueryCache.SetDisabled(disabled)
}

// Close releases the persistent embedding cache's database handle, if any.
func (c *CoreContext) Close() error {
	if c.EmbedCache != nil {
		return c.EmbedCache.Close()
	}
	return nil
}

func secondsOrDefault(s int) (d int) {
	if s <= 0 {
		return 300
	}
	return s
}

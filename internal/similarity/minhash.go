// Package similarity implements the Similarity Kernel (C4): MinHash
// signatures with LSH banding for candidate retrieval, an optional
// AST-normalized verification stage, and an optional semantic embedding
// stage, combined into a hybrid similarity score per spec §4.4.
package similarity

import (
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spaolacci/murmur3"

	"structgraph/internal/logging"
)

// DefaultNumPerm is the default MinHash signature width (spec §3).
const DefaultNumPerm = 128

// Signature is a fixed-width MinHash vector over a token set.
type Signature []uint64

// Signer computes and caches MinHash signatures keyed by
// (construct id, num_perm).
type Signer struct {
	numPerm int
	seeds   []uint32
	cache   *lru.Cache[string, Signature]
}

// NewSigner constructs a Signer with numPerm permutation functions (derived
// deterministically from seeded murmur3 hashes) and an LRU signature cache.
func NewSigner(numPerm, cacheSize int) *Signer {
	if numPerm <= 0 {
		numPerm = DefaultNumPerm
	}
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	seeds := make([]uint32, numPerm)
	for i := range seeds {
		// Deterministic seed derivation: stable across runs, which the
		// MinHash contract requires (signature(construct) is deterministic
		// given the normalized token stream).
		seeds[i] = uint32(0x9E3779B9) * uint32(i+1)
	}
	c, _ := lru.New[string, Signature](cacheSize)
	return &Signer{numPerm: numPerm, seeds: seeds, cache: c}
}

// Signature computes (or returns the cached) MinHash signature for a token
// set, keyed by cacheKey (typically the construct id).
func (s *Signer) Signature(cacheKey string, tokens []string) Signature {
	if cacheKey != "" {
		if sig, ok := s.cache.Get(cacheKey); ok {
			return sig
		}
	}

	sig := make(Signature, s.numPerm)
	for i := range sig {
		sig[i] = ^uint64(0)
	}

	if len(tokens) == 0 {
		if cacheKey != "" {
			s.cache.Add(cacheKey, sig)
		}
		return sig
	}

	// Deduplicate tokens into a set — MinHash estimates Jaccard over sets,
	// not multisets.
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		seen[t] = struct{}{}
	}

	for token := range seen {
		base := murmur3.Sum64([]byte(token))
		for i, seed := range s.seeds {
			h := murmur3.Sum64WithSeed([]byte(token), seed) ^ base
			if h < sig[i] {
				sig[i] = h
			}
		}
	}

	if cacheKey != "" {
		s.cache.Add(cacheKey, sig)
	}
	return sig
}

// EstimateJaccard returns the MinHash estimate of Jaccard similarity
// between two signatures of equal width.
func EstimateJaccard(a, b Signature) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return clamp01(float64(matches) / float64(len(a)))
}

// LSHIndex buckets constructs by band-hash to retrieve similarity
// candidates in sublinear expected time.
type LSHIndex struct {
	bands   int
	rows    int
	buckets []map[uint64][]string // one map per band, bucketHash -> construct ids
	sigs    map[string]Signature
}

// BuildLSHIndex bands each construct's signature into `bands` bands of
// `rows` rows each; bands*rows must not exceed the signature width.
func BuildLSHIndex(signatures map[string]Signature, bands, rows int) *LSHIndex {
	idx := &LSHIndex{bands: bands, rows: rows, sigs: signatures}
	idx.buckets = make([]map[uint64][]string, bands)
	for b := range idx.buckets {
		idx.buckets[b] = make(map[uint64][]string)
	}

	for id, sig := range signatures {
		for b := 0; b < bands; b++ {
			start := b * rows
			end := start + rows
			if end > len(sig) {
				end = len(sig)
			}
			if start >= end {
				continue
			}
			h := bandHash(sig[start:end])
			idx.buckets[b][h] = append(idx.buckets[b][h], id)
		}
	}
	logging.SimilarityDebug("built LSH index: %d constructs, %d bands, %d rows", len(signatures), bands, rows)
	return idx
}

func bandHash(band Signature) uint64 {
	h := murmur3.New64()
	buf := make([]byte, 8)
	for _, v := range band {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf)
	}
	return h.Sum64()
}

// Candidates returns the set of construct ids that share at least one band
// bucket with querySig: a superset of all constructs with estimated
// Jaccard ≥ threshold, with high probability (spec §4.4).
func (idx *LSHIndex) Candidates(querySig Signature, excludeID string) []string {
	seen := make(map[string]struct{})
	for b := 0; b < idx.bands; b++ {
		start := b * idx.rows
		end := start + idx.rows
		if end > len(querySig) {
			end = len(querySig)
		}
		if start >= end {
			continue
		}
		h := bandHash(querySig[start:end])
		for _, id := range idx.buckets[b][h] {
			if id != excludeID {
				seen[id] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

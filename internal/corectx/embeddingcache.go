package corectx

import (
	"database/sql"
	"encoding/binary"
	"math"

	_ "modernc.org/sqlite"

	"structgraph/internal/logging"
)

// EmbeddingCache persists construct embedding vectors across process
// restarts, keyed by a content fingerprint (the same cache key the
// Similarity Kernel's semantic stage would otherwise recompute an
// embedding-provider call for). Backed by modernc.org/sqlite, the
// pure-Go driver the corpus already depends on; the vec0 virtual-table
// extension (sqlite-vec) targets the cgo and ncruces sqlite drivers, not
// modernc's pure-Go one, so this cache offers lookup and storage by key
// only; it performs no similarity search. Each key holds one vector: a Put
// under a different provider replaces the earlier entry. See DESIGN.md for
// why sqlite-vec itself could not be wired to this driver.
type EmbeddingCache struct {
	db *sql.DB
}

// NewEmbeddingCache opens (creating if absent) a SQLite database at path
// and ensures its schema exists.
func NewEmbeddingCache(path string) (*EmbeddingCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	const schema = `CREATE TABLE IF NOT EXISTS embeddings (
		key TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		vector BLOB NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &EmbeddingCache{db: db}, nil
}

// Get returns the cached vector for key under provider, if present.
func (c *EmbeddingCache) Get(key, provider string) ([]float32, bool) {
	row := c.db.QueryRow(`SELECT vector FROM embeddings WHERE key = ? AND provider = ?`, key, provider)
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		return nil, false
	}
	return decodeVector(blob), true
}

// Put stores a vector for key under provider, replacing any existing
// entry.
func (c *EmbeddingCache) Put(key, provider string, vec []float32) error {
	_, err := c.db.Exec(`INSERT INTO embeddings (key, provider, vector) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET provider = excluded.provider, vector = excluded.vector`,
		key, provider, encodeVector(vec))
	if err != nil {
		logging.SimilarityDebug("embedding cache put failed for key %s: %v", key, err)
	}
	return err
}

// Close releases the underlying database handle.
func (c *EmbeddingCache) Close() error {
	return c.db.Close()
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	n := len(buf) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embedding

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/dgraph-io/badger/v4"
)

// Cache persists embeddings in BadgerDB keyed by model name, dimension, and
// a SHA-256 of the text, so re-ingesting a paper does not re-encode its
// chunks.
type Cache struct {
	db *badger.DB
}

// OpenCache opens or creates a cache in dir. An empty dir opens an
// in-memory cache.
func OpenCache(dir string) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening embedding cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached embedding of text under model at dimension dim.
// A stored value of any other length is treated as a miss.
func (c *Cache) Get(model string, dim int, text string) ([]float32, bool) {
	var out []float32
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(model, dim, text))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = decodeVector(val)
			return nil
		})
	})
	if err != nil || len(out) != dim {
		return nil, false
	}
	return out, true
}

// Put stores v as the embedding of text under model.
func (c *Cache) Put(model, text string, v []float32) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cacheKey(model, len(v), text), encodeVector(v))
	})
}

func cacheKey(model string, dim int, text string) []byte {
	sum := sha256.Sum256([]byte(text))
	return fmt.Appendf(nil, "emb/%s/%d/%s", model, dim, hex.EncodeToString(sum[:]))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// CachedClient wraps a Client with a local badger store keyed by model and
// text, so re-ingesting a dataset does not re-call the provider for
// segments whose text has not changed.
type CachedClient struct {
	inner Client
	model string
	db    *badger.DB
}

// NewCachedClient opens (or creates) a badger database at path and wraps
// inner. The model name participates in cache keys so switching models
// never serves stale vectors.
func NewCachedClient(inner Client, model, path string) (*CachedClient, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}

	return &CachedClient{
		inner: inner,
		model: model,
		db:    db,
	}, nil
}

// Embed serves cache hits locally and forwards only the misses to the
// wrapped client, preserving input order in the result.
func (c *CachedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	err := c.db.View(func(txn *badger.Txn) error {
		for i, text := range texts {
			item, err := txn.Get(c.key(text))
			if err == badger.ErrKeyNotFound {
				missIdx = append(missIdx, i)
				missTexts = append(missTexts, text)
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &out[i])
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedding cache read failed: %w", err)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d want %d", len(fresh), len(missTexts))
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		for j, embedding := range fresh {
			out[missIdx[j]] = embedding
			val, err := json.Marshal(embedding)
			if err != nil {
				return err
			}
			if err := txn.Set(c.key(missTexts[j]), val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedding cache write failed: %w", err)
	}

	return out, nil
}

// EmbedSingle generates an embedding for a single text through the cache.
func (c *CachedClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return embeddings[0], nil
}

// Dimensions returns the wrapped client's dimensionality.
func (c *CachedClient) Dimensions() int {
	return c.inner.Dimensions()
}

// Close closes the cache database and the wrapped client.
func (c *CachedClient) Close() error {
	if err := c.db.Close(); err != nil {
		return err
	}
	return c.inner.Close()
}

func (c *CachedClient) key(text string) []byte {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return sum[:]
}

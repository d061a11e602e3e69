package ai

import (
	"container/list"
	"context"
	"encoding/hex"
	"sync"

	"github.com/go-crypt/x/blake2b"
)

// CachedEmbedder wraps an Embedder with a thread-safe LRU cache. Cache
// keys are BLAKE2b digests of the input text, so identical text always
// hits regardless of where it appears in a batch.
type CachedEmbedder struct {
	inner Embedder

	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List

	hits   int64
	misses int64
}

type cacheEntry struct {
	key    string
	vector []float32
}

// NewCachedEmbedder wraps inner with an LRU cache of the given capacity.
func NewCachedEmbedder(inner Embedder, capacity int) *CachedEmbedder {
	if capacity <= 0 {
		capacity = 128
	}
	return &CachedEmbedder{
		inner:    inner,
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

var _ Embedder = (*CachedEmbedder)(nil)

// EmbedText returns the cached vector for text, embedding on a miss.
func (c *CachedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vec := c.get(key); vec != nil {
		return vec, nil
	}

	vec, err := c.inner.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	c.put(key, vec)
	return vec, nil
}

// EmbedTexts embeds a batch, sending only cache misses to the inner
// embedder. Input order is preserved.
func (c *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if vec := c.get(cacheKey(text)); vec != nil {
			results[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return results, nil
	}

	embedded, err := c.inner.EmbedTexts(ctx, missing)
	if err != nil {
		return nil, err
	}

	for j, vec := range embedded {
		i := missingIdx[j]
		results[i] = vec
		c.put(cacheKey(texts[i]), vec)
	}
	return results, nil
}

// Dimension returns the wrapped embedder's vector dimension.
func (c *CachedEmbedder) Dimension() int {
	return c.inner.Dimension()
}

// Stats returns cumulative hit and miss counts.
func (c *CachedEmbedder) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *CachedEmbedder) get(key string) []float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		c.hits++
		return el.Value.(*cacheEntry).vector
	}
	c.misses++
	return nil
}

func (c *CachedEmbedder) put(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		el.Value.(*cacheEntry).vector = vector
		return
	}
	if c.order.Len() >= c.capacity {
		back := c.order.Back()
		if back != nil {
			c.order.Remove(back)
			delete(c.items, back.Value.(*cacheEntry).key)
		}
	}
	c.items[key] = c.order.PushFront(&cacheEntry{key: key, vector: vector})
}

// cacheKey hashes text with BLAKE2b so map keys stay small for long
// documents.
func cacheKey(text string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

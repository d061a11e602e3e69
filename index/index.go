// Package index implements the dense vector index: an in-memory matrix
// of L2-normalized embeddings scanned exactly for top-k cosine search.
//
// At roughly 30k documents an exact scan answers in single-digit
// milliseconds and sidesteps the incremental-upsert corruption that
// approximate structures suffer. Full text is never stored here; only
// vectors and a small metadata record per document.
package index

import (
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/domwxyz/marxist-search/core"
)

// Hit is a single search result from the index.
type Hit struct {
	DocID string
	Score float64
	Doc   *core.Document
}

// Index is the shared in-memory vector index. Readers run concurrently;
// writers take the index exclusively.
type Index struct {
	mu        sync.RWMutex
	dimension int
	docs      []*core.Document
	vectors   [][]float32
	pos       map[string]int
	logger    *slog.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Index) {
		idx.logger = logger
	}
}

// New creates an empty index for vectors of the given dimension.
func New(dimension int, opts ...Option) (*Index, error) {
	if dimension <= 0 {
		return nil, ErrInvalidDimension
	}

	idx := &Index{
		dimension: dimension,
		pos:       make(map[string]int),
		logger:    slog.Default().With("component", "vector-index"),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// Dimension returns the vector dimension the index was created with.
func (idx *Index) Dimension() int {
	return idx.dimension
}

// Upsert stores a document and its embedding, replacing any existing
// document with the same ID. The vector is copied and L2-normalized.
func (idx *Index) Upsert(doc *core.Document, vector []float32) error {
	if _, err := core.ParseDocID(doc.DocID); err != nil {
		return err
	}
	if len(vector) != idx.dimension {
		return ErrDimensionMismatch
	}

	normalized := normalize(vector)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if i, ok := idx.pos[doc.DocID]; ok {
		idx.docs[i] = doc
		idx.vectors[i] = normalized
		return nil
	}

	idx.pos[doc.DocID] = len(idx.docs)
	idx.docs = append(idx.docs, doc)
	idx.vectors = append(idx.vectors, normalized)
	return nil
}

// ReplaceArticle swaps every document belonging to the article for the
// given batch in one exclusive critical section, so concurrent readers
// see either the old set or the new set, never a mix. The batch is
// validated and normalized before the swap; a failed call leaves the
// index untouched.
func (idx *Index) ReplaceArticle(articleID int64, docs []*core.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return ErrVectorCountMismatch
	}

	normalized := make([][]float32, len(docs))
	for i, doc := range docs {
		if _, err := core.ParseDocID(doc.DocID); err != nil {
			return err
		}
		if len(vectors[i]) != idx.dimension {
			return ErrDimensionMismatch
		}
		normalized[i] = normalize(vectors[i])
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	var victims []string
	for id, i := range idx.pos {
		if idx.docs[i].ArticleID == articleID {
			victims = append(victims, id)
		}
	}
	for _, id := range victims {
		idx.deleteLocked(id)
	}

	for i, doc := range docs {
		if j, ok := idx.pos[doc.DocID]; ok {
			idx.docs[j] = doc
			idx.vectors[j] = normalized[i]
			continue
		}
		idx.pos[doc.DocID] = len(idx.docs)
		idx.docs = append(idx.docs, doc)
		idx.vectors = append(idx.vectors, normalized[i])
	}
	return nil
}

// Delete removes a document. Deleting an absent ID is a no-op.
func (idx *Index) Delete(docID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.deleteLocked(docID)
}

// DeleteArticle removes every document belonging to the article, both
// the whole-article document and all chunks. Returns how many were
// removed.
func (idx *Index) DeleteArticle(articleID int64) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var victims []string
	for id, i := range idx.pos {
		if idx.docs[i].ArticleID == articleID {
			victims = append(victims, id)
		}
	}
	for _, id := range victims {
		idx.deleteLocked(id)
	}
	return len(victims)
}

// deleteLocked removes one document by swapping the last row into its
// slot. Caller holds the write lock.
func (idx *Index) deleteLocked(docID string) {
	i, ok := idx.pos[docID]
	if !ok {
		return
	}

	last := len(idx.docs) - 1
	if i != last {
		idx.docs[i] = idx.docs[last]
		idx.vectors[i] = idx.vectors[last]
		idx.pos[idx.docs[i].DocID] = i
	}
	idx.docs = idx.docs[:last]
	idx.vectors = idx.vectors[:last]
	delete(idx.pos, docID)
}

// Search returns the top k documents by cosine similarity to the query
// vector, in descending score order. The query is normalized before the
// scan, so scores are true cosine similarities in [-1, 1].
func (idx *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != idx.dimension {
		return nil, ErrDimensionMismatch
	}
	if k <= 0 {
		return nil, nil
	}

	normalized := normalize(query)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	hits := make([]Hit, 0, len(idx.docs))
	for i, vec := range idx.vectors {
		hits = append(hits, Hit{
			DocID: idx.docs[i].DocID,
			Score: dotProduct(normalized, vec),
			Doc:   idx.docs[i],
		})
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].DocID < hits[b].DocID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of documents in the index.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Clear removes all documents.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.docs = nil
	idx.vectors = nil
	idx.pos = make(map[string]int)
}

// normalize returns an L2-normalized copy of the vector.
func normalize(vector []float32) []float32 {
	out := make([]float32, len(vector))
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		copy(out, vector)
		return out
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i, v := range vector {
		out[i] = v * inv
	}
	return out
}

// dotProduct of two equal-length vectors. Both sides are unit length, so
// this is cosine similarity.
func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

package index

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/domwxyz/marxist-search/core"
)

// On-disk layout: two artifacts in one directory.
//
//	vectors.bin    rows of little-endian float32, one row per document
//	metadata.json  dimension + ordered document list, row i ↔ doc i
//
// Save followed by Load round-trips exactly; float32 bit patterns are
// preserved.
const (
	vectorsFile  = "vectors.bin"
	metadataFile = "metadata.json"
)

type metadata struct {
	Dimension int              `json:"dimension"`
	Documents []*core.Document `json:"documents"`
}

// Save writes the index to dir, creating it if needed.
func (idx *Index) Save(dir string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	buf := make([]byte, 0, len(idx.vectors)*idx.dimension*4)
	scratch := make([]byte, 4)
	for _, vec := range idx.vectors {
		for _, v := range vec {
			binary.LittleEndian.PutUint32(scratch, math.Float32bits(v))
			buf = append(buf, scratch...)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, vectorsFile), buf, 0o644); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}

	meta := metadata{Dimension: idx.dimension, Documents: idx.docs}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	idx.logger.Info("index saved", "dir", dir, "documents", len(idx.docs))
	return nil
}

// Load replaces the index contents from dir. A missing directory leaves
// the index empty and returns nil, so a fresh deployment can start from
// nothing.
func (idx *Index) Load(dir string) error {
	metaData, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}

	var meta metadata
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	if meta.Dimension != idx.dimension {
		return fmt.Errorf("%w: dimension %d on disk, %d configured", ErrCorruptIndex, meta.Dimension, idx.dimension)
	}

	raw, err := os.ReadFile(filepath.Join(dir, vectorsFile))
	if err != nil {
		return fmt.Errorf("read vectors: %w", err)
	}

	rowBytes := meta.Dimension * 4
	if rowBytes == 0 || len(raw) != len(meta.Documents)*rowBytes {
		return fmt.Errorf("%w: %d vector bytes for %d documents", ErrCorruptIndex, len(raw), len(meta.Documents))
	}

	vectors := make([][]float32, len(meta.Documents))
	for i := range meta.Documents {
		row := raw[i*rowBytes : (i+1)*rowBytes]
		vec := make([]float32, meta.Dimension)
		for j := 0; j < meta.Dimension; j++ {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(row[j*4:]))
		}
		vectors[i] = vec
	}

	pos := make(map[string]int, len(meta.Documents))
	for i, doc := range meta.Documents {
		if _, err := core.ParseDocID(doc.DocID); err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptIndex, err)
		}
		pos[doc.DocID] = i
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.docs = meta.Documents
	idx.vectors = vectors
	idx.pos = pos

	idx.logger.Info("index loaded", "dir", dir, "documents", len(meta.Documents))
	return nil
}

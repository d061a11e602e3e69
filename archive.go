// Package marxistsearch assembles the search core: the SQLite article
// store, the vector index, and the embedding client, wired from one
// configuration record.
package marxistsearch

import (
	"log/slog"
	"os"

	"github.com/domwxyz/marxist-search/ai"
	"github.com/domwxyz/marxist-search/ai/openai"
	"github.com/domwxyz/marxist-search/chunker"
	"github.com/domwxyz/marxist-search/config"
	"github.com/domwxyz/marxist-search/index"
	"github.com/domwxyz/marxist-search/indexer"
	"github.com/domwxyz/marxist-search/search"
	"github.com/domwxyz/marxist-search/storage"
	"github.com/domwxyz/marxist-search/storage/sqlite"
)

// Archive owns the shared backends and hands out searchers and
// indexers that operate on them.
type Archive struct {
	cfg      *config.Config
	store    *sqlite.Store
	idx      *index.Index
	embedder ai.Embedder
	logger   *slog.Logger
}

// ArchiveOption configures Open.
type ArchiveOption func(*archiveOptions)

type archiveOptions struct {
	embedder ai.Embedder
}

// WithEmbedder substitutes the embedding client. Without it, Open
// builds an OpenAI-compatible client from the embedding configuration,
// wrapped in an LRU cache.
func WithEmbedder(e ai.Embedder) ArchiveOption {
	return func(o *archiveOptions) {
		o.embedder = e
	}
}

// Open opens the article store, loads the persisted vector index if one
// exists, and prepares the embedding client.
func Open(cfg *config.Config, opts ...ArchiveOption) (*Archive, error) {
	options := &archiveOptions{}
	for _, opt := range opts {
		opt(options)
	}

	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	idx, err := index.New(cfg.Embedding.Dimension)
	if err != nil {
		store.Close()
		return nil, err
	}
	if cfg.IndexDir != "" {
		if err := idx.Load(cfg.IndexDir); err != nil {
			store.Close()
			return nil, err
		}
	}

	embedder := options.embedder
	if embedder == nil {
		aiConfig := ai.NewConfig(
			ai.WithHost(cfg.Embedding.BaseURL),
			ai.WithModel(cfg.Embedding.Model),
			ai.WithDimension(cfg.Embedding.Dimension),
			ai.WithBatchSize(cfg.Embedding.BatchSize),
			ai.WithAPIKey(os.Getenv(cfg.Embedding.APIKeyEnv)),
		)
		inner, err := openai.NewEmbedder(aiConfig)
		if err != nil {
			store.Close()
			return nil, err
		}
		embedder = ai.NewCachedEmbedder(inner, cfg.Embedding.CacheSize)
	}

	return &Archive{
		cfg:      cfg,
		store:    store,
		idx:      idx,
		embedder: embedder,
		logger:   slog.Default().With("component", "archive"),
	}, nil
}

// Close releases the article store. The index lives in memory and needs
// no teardown.
func (a *Archive) Close() error {
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing article store", "err", err)
		return err
	}
	return nil
}

// Store exposes the article store.
func (a *Archive) Store() storage.Store {
	return a.store
}

// Index exposes the vector index.
func (a *Archive) Index() *index.Index {
	return a.idx
}

// NewSearcher creates a search engine over the archive's backends.
func (a *Archive) NewSearcher(opts ...search.Option) (*search.Engine, error) {
	base := []search.Option{search.WithConfig(a.cfg)}
	return search.New(a.store, a.idx, a.embedder, append(base, opts...)...)
}

// NewIndexer creates an indexing service over the archive's backends,
// persisting to the configured index directory after each pass.
func (a *Archive) NewIndexer(opts ...indexer.Option) (*indexer.Service, error) {
	base := []indexer.Option{
		indexer.WithChunker(chunker.New(chunker.Config{
			ThresholdWords: a.cfg.Chunking.ThresholdWords,
			ChunkSizeWords: a.cfg.Chunking.ChunkSizeWords,
			OverlapWords:   a.cfg.Chunking.OverlapWords,
			SectionMarkers: a.cfg.Chunking.SectionMarkers,
		})),
		indexer.WithTitleWeight(a.cfg.Chunking.TitleWeight),
		indexer.WithIndexDir(a.cfg.IndexDir),
	}
	return indexer.New(a.store, a.idx, a.embedder, append(base, opts...)...)
}

// Package indexer brings the vector index into agreement with the
// article store: full rebuilds and incremental updates of stale
// articles, with chunking and title weighting along the way.
package indexer

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/domwxyz/marxist-search/ai"
	"github.com/domwxyz/marxist-search/chunker"
	"github.com/domwxyz/marxist-search/core"
	"github.com/domwxyz/marxist-search/index"
	"github.com/domwxyz/marxist-search/storage"
)

const progressInterval = 100

// Report summarizes one indexing pass.
type Report struct {
	Total     int
	Indexed   int
	Failed    int
	Documents int
	Elapsed   time.Duration
}

// Service orchestrates (re)building the vector index.
type Service struct {
	store    storage.Store
	index    *index.Index
	embedder ai.Embedder
	chunker  *chunker.Chunker
	pool     *ants.Pool

	version     string
	indexDir    string
	titleWeight int
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithChunker replaces the default chunker.
func WithChunker(c *chunker.Chunker) Option {
	return func(s *Service) error {
		s.chunker = c
		return nil
	}
}

// WithVersion sets the embedding version tag recorded on indexed
// articles. Articles carrying a different tag are picked up by the next
// incremental update.
func WithVersion(version string) Option {
	return func(s *Service) error {
		s.version = version
		return nil
	}
}

// WithIndexDir sets where the index is persisted after a pass. Empty
// disables persistence.
func WithIndexDir(dir string) Option {
	return func(s *Service) error {
		s.indexDir = dir
		return nil
	}
}

// WithTitleWeight sets how many times titles are prepended to embedded
// text.
func WithTitleWeight(weight int) Option {
	return func(s *Service) error {
		s.titleWeight = weight
		return nil
	}
}

// WithPoolSize resizes the worker pool used to index articles in
// parallel.
func WithPoolSize(size int) Option {
	return func(s *Service) error {
		if size < 1 {
			size = 1
		}
		if s.pool != nil {
			s.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		s.pool = pool
		return nil
	}
}

// WithRetry sets the embedding retry policy.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(s *Service) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		s.maxAttempts = maxAttempts
		s.baseDelay = baseDelay
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// New creates an indexing service.
func New(store storage.Store, idx *index.Index, embedder ai.Embedder, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	s := &Service{
		store:       store,
		index:       idx,
		embedder:    embedder,
		chunker:     chunker.New(chunker.DefaultConfig()),
		pool:        pool,
		version:     "1.0",
		titleWeight: DefaultTitleWeight,
		maxAttempts: 3,
		baseDelay:   500 * time.Millisecond,
		logger:      slog.Default().With("component", "indexer"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			pool.Release()
			return nil, err
		}
	}
	return s, nil
}

// Close releases the worker pool.
func (s *Service) Close() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// Build rebuilds the index from scratch: clears it, indexes every
// article in id order, and persists the result.
func (s *Service) Build(ctx context.Context) (*Report, error) {
	articles, err := s.store.AllArticles(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("starting full build", "articles", len(articles))
	s.index.Clear()

	report, err := s.indexArticles(ctx, articles)
	if err != nil {
		return report, err
	}
	return report, s.persist()
}

// Update incrementally indexes articles that are new or carry a stale
// embedding version. Running it twice with no intervening changes is a
// no-op.
func (s *Service) Update(ctx context.Context) (*Report, error) {
	articles, err := s.store.UnindexedArticles(ctx, s.version)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		s.logger.Info("index up to date")
		return &Report{}, nil
	}

	s.logger.Info("starting incremental update", "articles", len(articles))

	report, err := s.indexArticles(ctx, articles)
	if err != nil {
		return report, err
	}
	return report, s.persist()
}

// indexArticles runs per-article indexing on the worker pool. Failures
// are logged and skipped; the failed article's indexed flag stays false
// so the next update retries it.
func (s *Service) indexArticles(ctx context.Context, articles []*core.Article) (*Report, error) {
	start := time.Now()

	var wg sync.WaitGroup
	var indexed, failed, documents, processed atomic.Int64

	for _, article := range articles {
		select {
		case <-ctx.Done():
			wg.Wait()
			return s.report(len(articles), &indexed, &failed, &documents, start), ctx.Err()
		default:
		}

		article := article
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()

			docs, err := s.indexArticle(ctx, article)
			if err != nil {
				failed.Add(1)
				s.logger.Error("failed to index article, skipping",
					"article_id", article.ID, "err", err)
			} else {
				indexed.Add(1)
				documents.Add(int64(docs))
			}

			if n := processed.Add(1); n%progressInterval == 0 {
				s.logger.Info("indexing progress",
					"processed", n, "total", len(articles), "failed", failed.Load())
			}
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return s.report(len(articles), &indexed, &failed, &documents, start), err
		}
	}
	wg.Wait()

	report := s.report(len(articles), &indexed, &failed, &documents, start)
	s.logger.Info("indexing pass complete",
		"indexed", report.Indexed, "failed", report.Failed,
		"documents", report.Documents, "elapsed", report.Elapsed)
	return report, nil
}

// indexArticle makes one article's index state agree with the store:
// chunk, embed, swap vector documents, mark indexed. Embeddings are
// computed before any mutation so a failure leaves the previous state
// intact.
func (s *Service) indexArticle(ctx context.Context, article *core.Article) (int, error) {
	chunks := s.chunker.ChunkArticle(article)

	var docs []prepared
	if len(chunks) == 0 {
		docs = []prepared{prepareArticle(article, s.titleWeight)}
	} else {
		docs = prepareChunks(article, chunks, s.titleWeight)
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.text
	}

	var vectors [][]float32
	err := retryWithBackoff(ctx, func() error {
		var embedErr error
		vectors, embedErr = s.embedder.EmbedTexts(ctx, texts)
		return embedErr
	}, s.maxAttempts, s.baseDelay)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(docs) {
		return 0, ErrEmbeddingCountMismatch
	}

	// Mutations start here. The index swap is atomic and validates the
	// batch up front, so a failure on either side leaves the previous
	// documents in place and the indexed flag still truthful.
	if err := s.store.ReplaceChunks(ctx, article.ID, chunks); err != nil {
		return 0, err
	}

	docList := make([]*core.Document, len(docs))
	for i, d := range docs {
		docList[i] = d.doc
	}
	if err := s.index.ReplaceArticle(article.ID, docList, vectors); err != nil {
		return 0, err
	}

	if err := s.store.MarkIndexed(ctx, article.ID, s.version); err != nil {
		// The flag could not be set; take the documents back out so it
		// stays in agreement with index membership.
		s.index.DeleteArticle(article.ID)
		if uerr := s.store.MarkUnindexed(ctx, article.ID); uerr != nil {
			s.logger.Error("failed to clear indexed flag during rollback",
				"article_id", article.ID, "err", uerr)
		}
		return 0, err
	}
	return len(docs), nil
}

func (s *Service) persist() error {
	if s.indexDir == "" {
		return nil
	}
	return s.index.Save(s.indexDir)
}

func (s *Service) report(total int, indexed, failed, documents *atomic.Int64, start time.Time) *Report {
	return &Report{
		Total:     total,
		Indexed:   int(indexed.Load()),
		Failed:    int(failed.Load()),
		Documents: int(documents.Load()),
		Elapsed:   time.Since(start),
	}
}

package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/domwxyz/marxist-search/ai"
	"github.com/domwxyz/marxist-search/config"
	"github.com/domwxyz/marxist-search/core"
	"github.com/domwxyz/marxist-search/index"
	"github.com/domwxyz/marxist-search/storage"
)

const (
	// DefaultLimit is the page size when the caller passes none.
	DefaultLimit = 10

	// MaxLimit caps the page size.
	MaxLimit = 100
)

// Engine runs queries end to end: parse, embed, retrieve, filter,
// rerank, deduplicate, paginate, enrich. Queries execute on a bounded
// worker pool; beyond the queue the engine sheds load instead of
// degrading every caller.
type Engine struct {
	store    storage.ArticleReader
	index    *index.Index
	embedder ai.Embedder
	reranker *Reranker

	retrievalK int
	timeout    time.Duration

	pool  *ants.Pool
	slots chan struct{}

	monitor SearchMonitor
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithConfig applies the retrieval, reranking, similarity filter, and
// pool sections of a full configuration.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) error {
		e.retrievalK = cfg.Retrieval.RetrievalK
		e.reranker = NewReranker(cfg.Reranking, cfg.SemanticFilter)
		return e.resizePool(cfg.Pool)
	}
}

// WithRetrievalK overrides how many documents dense retrieval returns.
func WithRetrievalK(k int) Option {
	return func(e *Engine) error {
		if k > 0 {
			e.retrievalK = k
		}
		return nil
	}
}

// WithTimeout overrides the per-query deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) error {
		if d > 0 {
			e.timeout = d
		}
		return nil
	}
}

// WithMonitor attaches a query execution observer.
func WithMonitor(m SearchMonitor) Option {
	return func(e *Engine) error {
		if m != nil {
			e.monitor = m
		}
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// New creates a search engine over an article store, a vector index,
// and an embedder.
func New(store storage.ArticleReader, idx *index.Index, embedder ai.Embedder, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	def := config.Default()
	e := &Engine{
		store:      store,
		index:      idx,
		embedder:   embedder,
		reranker:   NewReranker(def.Reranking, def.SemanticFilter),
		retrievalK: def.Retrieval.RetrievalK,
		monitor:    noopMonitor{},
		logger:     slog.Default().With("component", "search"),
	}
	if err := e.resizePool(def.Pool); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			e.Close()
			return nil, err
		}
	}
	return e, nil
}

func (e *Engine) resizePool(cfg config.PoolConfig) error {
	if e.pool != nil {
		e.pool.Release()
	}
	pool, err := ants.NewPool(cfg.Workers, ants.WithMaxBlockingTasks(cfg.QueueSize))
	if err != nil {
		return err
	}
	e.pool = pool
	e.slots = make(chan struct{}, cfg.Workers+cfg.QueueSize)
	e.timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	return nil
}

// Close releases the worker pool.
func (e *Engine) Close() {
	if e.pool != nil {
		e.pool.Release()
	}
}

type outcome struct {
	resp *core.SearchResponse
	err  error
}

// Search runs one query. Returns core.ErrOverloaded when the worker
// queue is full and core.ErrTimeout when the query misses its deadline.
// An empty or all-stopword query yields an empty response, not an
// error.
func (e *Engine) Search(ctx context.Context, query string, spec FilterSpec, limit, offset int) (*core.SearchResponse, error) {
	select {
	case e.slots <- struct{}{}:
	default:
		return nil, fmt.Errorf("%w: queue full", core.ErrOverloaded)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	task := func() {
		defer func() { <-e.slots }()
		resp, err := e.doSearch(ctx, query, spec, limit, offset)
		done <- outcome{resp, err}
	}

	go func() {
		if err := e.pool.Submit(task); err != nil {
			<-e.slots
			if errors.Is(err, ants.ErrPoolOverload) {
				err = fmt.Errorf("%w: queue full", core.ErrOverloaded)
			}
			done <- outcome{nil, err}
		}
	}()

	select {
	case out := <-done:
		return out.resp, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: after %s", core.ErrTimeout, e.timeout)
		}
		return nil, ctx.Err()
	}
}

func (e *Engine) doSearch(ctx context.Context, query string, spec FilterSpec, limit, offset int) (*core.SearchResponse, error) {
	start := time.Now()
	e.monitor.QueryStarted(query)

	parsed, err := ParseQuery(query)
	if err != nil {
		return nil, err
	}
	e.monitor.QueryParsed(parsed)

	resp := &core.SearchResponse{
		Results:     []*core.SearchResult{},
		ParsedQuery: parsed,
	}
	if !parsed.HasContent() {
		resp.QueryTimeMs = time.Since(start).Milliseconds()
		e.monitor.QueryFinished(0, time.Since(start))
		return resp, nil
	}

	filter, err := ResolveFilter(spec, time.Now())
	if err != nil {
		return nil, err
	}
	// Query syntax wins over the external filter.
	if parsed.AuthorFilter != "" {
		filter.Author = parsed.AuthorFilter
	}

	vector, err := e.embedder.EmbedText(ctx, semanticQuery(parsed, query))
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", core.ErrIndexUnavailable, err)
	}

	hits, err := e.index.Search(vector, e.retrievalK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIndexUnavailable, err)
	}

	// Article rows are fetched lazily and cached: content for the
	// keyword rerank window first, then only what the phrase filters and
	// the final page need.
	cache := make(map[int64]*core.Article)

	candidates, err := e.admitCandidates(ctx, hits, filter, cache)
	if err != nil {
		return nil, err
	}
	e.monitor.CandidatesRetrieved(len(hits), len(candidates))

	candidates = e.reranker.Rerank(candidates, parsed, time.Now())

	reps := dedupByArticle(candidates)
	reps, err = e.applyPhraseFilters(ctx, reps, parsed, cache)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(reps, func(i, j int) bool {
		a, b := reps[i].cand, reps[j].cand
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Doc.PublishedDate.Equal(b.Doc.PublishedDate) {
			return a.Doc.PublishedDate.After(b.Doc.PublishedDate)
		}
		return a.Doc.ArticleID < b.Doc.ArticleID
	})

	resp.Total = len(reps)
	page := paginate(reps, limit, offset)
	resp.Results, err = e.enrich(ctx, page, parsed, cache)
	if err != nil {
		return nil, err
	}

	resp.QueryTimeMs = time.Since(start).Milliseconds()
	e.monitor.QueryFinished(len(resp.Results), time.Since(start))
	return resp, nil
}

// fetchArticles batch-reads the ids not already cached into the cache.
// Ids with no row stay absent; callers treat that as a store/index
// mismatch.
func (e *Engine) fetchArticles(ctx context.Context, ids []int64, cache map[int64]*core.Article) error {
	missing := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := cache[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	articles, err := e.store.GetArticles(ctx, missing)
	if err != nil {
		return fmt.Errorf("%w: fetching articles: %v", core.ErrStoreUnavailable, err)
	}
	for id, a := range articles {
		cache[id] = a
	}
	return nil
}

// admitCandidates applies the metadata filter and attaches content to
// the keyword rerank window only; candidates past the window stay
// metadata-only. Chunk candidates inside the window carry their chunk's
// text, whole-article candidates the article body. Hits inside the
// window with no article row are dropped here.
func (e *Engine) admitCandidates(ctx context.Context, hits []index.Hit, filter storage.CandidateFilter, cache map[int64]*core.Article) ([]*Candidate, error) {
	ids := make([]int64, 0, len(hits))
	seen := make(map[int64]bool, len(hits))
	for _, h := range hits {
		if !seen[h.Doc.ArticleID] {
			seen[h.Doc.ArticleID] = true
			ids = append(ids, h.Doc.ArticleID)
		}
	}

	allowed, err := e.store.FilterCandidates(ctx, ids, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: filtering candidates: %v", core.ErrStoreUnavailable, err)
	}
	allowedSet := make(map[int64]bool, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = true
	}

	admitted := make([]index.Hit, 0, len(hits))
	for _, h := range hits {
		if allowedSet[h.Doc.ArticleID] {
			admitted = append(admitted, h)
		}
	}

	topN := e.reranker.cfg.KeywordRerankTopN
	window := len(admitted)
	if window > topN {
		window = topN
	}
	windowIDs := make([]int64, 0, window)
	for _, h := range admitted[:window] {
		windowIDs = append(windowIDs, h.Doc.ArticleID)
	}
	if err := e.fetchArticles(ctx, windowIDs, cache); err != nil {
		return nil, err
	}

	candidates := make([]*Candidate, 0, len(admitted))
	for i, h := range admitted {
		c := &Candidate{
			Doc:       h.Doc,
			BaseScore: h.Score,
			Score:     h.Score,
		}
		if i < window {
			article, ok := cache[h.Doc.ArticleID]
			if !ok {
				e.logger.Warn("dropping candidate with no article row",
					"doc_id", h.DocID, "article_id", h.Doc.ArticleID,
					"err", core.ErrIndexStoreMismatch)
				continue
			}
			c.Content = article.Content
			if h.Doc.IsChunk {
				chunks, err := e.store.GetChunks(ctx, h.Doc.ArticleID, []int{h.Doc.ChunkIndex})
				if err != nil {
					return nil, fmt.Errorf("%w: fetching chunk: %v", core.ErrStoreUnavailable, err)
				}
				if len(chunks) == 1 {
					c.Content = chunks[0].Content
				}
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// representative is the best-scoring section of one article.
type representative struct {
	cand     *Candidate
	sections int
}

// dedupByArticle collapses chunk hits of the same article to its best
// section, counting how many sections matched.
func dedupByArticle(candidates []*Candidate) []*representative {
	byArticle := make(map[int64]*representative, len(candidates))
	order := make([]int64, 0, len(candidates))

	for _, c := range candidates {
		rep, ok := byArticle[c.Doc.ArticleID]
		if !ok {
			byArticle[c.Doc.ArticleID] = &representative{cand: c, sections: 1}
			order = append(order, c.Doc.ArticleID)
			continue
		}
		rep.sections++
		if c.Score > rep.cand.Score {
			rep.cand = c
		}
	}

	reps := make([]*representative, 0, len(order))
	for _, id := range order {
		reps = append(reps, byArticle[id])
	}
	return reps
}

// applyPhraseFilters removes representatives missing a required exact
// phrase in the full article text, or a required title phrase in the
// stored title. Matching is whole-word and case-insensitive. The title
// filter runs first on index metadata alone; article bodies are fetched
// only when exact phrases demand them.
func (e *Engine) applyPhraseFilters(ctx context.Context, reps []*representative, parsed *core.ParsedQuery, cache map[int64]*core.Article) ([]*representative, error) {
	if len(parsed.TitlePhrases) > 0 {
		kept := reps[:0]
	nextTitle:
		for _, rep := range reps {
			for _, phrase := range parsed.TitlePhrases {
				if !containsWholeWord(rep.cand.Doc.Title, phrase) {
					continue nextTitle
				}
			}
			kept = append(kept, rep)
		}
		reps = kept
	}

	if len(parsed.ExactPhrases) == 0 {
		return reps, nil
	}

	ids := make([]int64, 0, len(reps))
	for _, rep := range reps {
		ids = append(ids, rep.cand.Doc.ArticleID)
	}
	if err := e.fetchArticles(ctx, ids, cache); err != nil {
		return nil, err
	}

	kept := reps[:0]
next:
	for _, rep := range reps {
		article, ok := cache[rep.cand.Doc.ArticleID]
		if !ok {
			e.logger.Warn("dropping result with no article row",
				"article_id", rep.cand.Doc.ArticleID,
				"err", core.ErrIndexStoreMismatch)
			continue
		}
		text := article.Title + "\n" + article.Content
		for _, phrase := range parsed.ExactPhrases {
			if !containsWholeWord(text, phrase) {
				continue next
			}
		}
		kept = append(kept, rep)
	}
	return kept, nil
}

func paginate(reps []*representative, limit, offset int) []*representative {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(reps) {
		return nil
	}
	end := offset + limit
	if end > len(reps) {
		end = len(reps)
	}
	return reps[offset:end]
}

// enrich turns the final page into caller-facing results: excerpt
// around the first phrase match, matched phrase, tags. Only the page's
// article rows are fetched.
func (e *Engine) enrich(ctx context.Context, page []*representative, parsed *core.ParsedQuery, cache map[int64]*core.Article) ([]*core.SearchResult, error) {
	phrases := append([]string(nil), parsed.ExactPhrases...)
	if len(parsed.SemanticTerms) >= 2 {
		phrases = append(phrases, strings.Join(parsed.SemanticTerms, " "))
	}

	ids := make([]int64, 0, len(page))
	for _, rep := range page {
		ids = append(ids, rep.cand.Doc.ArticleID)
	}
	if err := e.fetchArticles(ctx, ids, cache); err != nil {
		return nil, err
	}

	results := make([]*core.SearchResult, 0, len(page))
	for _, rep := range page {
		article, ok := cache[rep.cand.Doc.ArticleID]
		if !ok {
			e.logger.Warn("dropping result with no article row",
				"article_id", rep.cand.Doc.ArticleID,
				"err", core.ErrIndexStoreMismatch)
			continue
		}

		matched := ""
		for _, phrase := range phrases {
			if containsWholeWord(article.Content, phrase) {
				matched = phrase
				break
			}
		}

		results = append(results, &core.SearchResult{
			ArticleID:       article.ID,
			Title:           article.Title,
			URL:             article.URL,
			Source:          article.Source,
			Author:          article.Author,
			PublishedDate:   article.PublishedDate,
			Excerpt:         buildExcerpt(article.Content, matched),
			MatchedPhrase:   matched,
			MatchedSections: rep.sections,
			Score:           rep.cand.Score,
			Tags:            ParseTags(article.TagsJSON),
		})
	}
	return results, nil
}

// Stats is the combined health snapshot of store and index.
type Stats struct {
	Store          *core.StoreStats
	IndexDocuments int
}

// Sources lists per-source article populations.
func (e *Engine) Sources(ctx context.Context) ([]*core.SourceStat, error) {
	stats, err := e.store.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return stats, nil
}

// TopAuthors lists prolific authors.
func (e *Engine) TopAuthors(ctx context.Context, minCount, limit int) ([]*core.AuthorStat, error) {
	stats, err := e.store.TopAuthors(ctx, minCount, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return stats, nil
}

// Stats summarizes the store and the index together.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return &Stats{Store: stats, IndexDocuments: e.index.Count()}, nil
}

// Health reports the ingestion state of every source feed.
func (e *Engine) Health(ctx context.Context) ([]*core.FeedHealth, error) {
	health, err := e.store.FeedHealth(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return health, nil
}

package search

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domwxyz/marxist-search/ai/mock"
	"github.com/domwxyz/marxist-search/config"
	"github.com/domwxyz/marxist-search/core"
	"github.com/domwxyz/marxist-search/index"
	"github.com/domwxyz/marxist-search/storage"
	"github.com/domwxyz/marxist-search/storage/sqlite"
)

const engineDim = 4

// quietEngineConfig turns off every reranking signal and lowers the
// similarity floor so scores equal raw cosine similarity. Tests that
// exercise a signal enable it explicitly.
func quietEngineConfig() *config.Config {
	cfg := config.Default()
	cfg.Reranking.TitleBoostEnabled = false
	cfg.Reranking.KeywordBoostEnabled = false
	cfg.Reranking.PhrasePresence.Enabled = false
	cfg.Reranking.SemanticDiscovery.Enabled = false
	cfg.Reranking.Recency.Enabled = false
	cfg.SemanticFilter.MinAbsoluteThreshold = 0.01
	cfg.SemanticFilter.DistributionAdaptive = false
	cfg.SemanticFilter.StdMultiplier = 100
	return cfg
}

type engineFixture struct {
	engine   *Engine
	store    *sqlite.Store
	idx      *index.Index
	embedder *mock.MockEmbedder
}

func newEngineFixture(t *testing.T, opts ...Option) *engineFixture {
	t.Helper()

	store, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	idx, err := index.New(engineDim)
	require.NoError(t, err)

	embedder := mock.NewMockEmbedderDim(engineDim)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0, 0}, nil
	}

	base := []Option{WithConfig(quietEngineConfig())}
	engine, err := New(store, idx, embedder, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return &engineFixture{engine: engine, store: store, idx: idx, embedder: embedder}
}

// addArticle inserts an article row and indexes it at the given cosine
// similarity to the test query vector (1,0,0,0).
func (f *engineFixture) addArticle(t *testing.T, a *core.Article, similarity float64) *core.Article {
	t.Helper()

	if a.URL == "" {
		a.URL = fmt.Sprintf("https://example.org/%s", a.Title)
	}
	if a.Source == "" {
		a.Source = "marxist.com"
	}
	if a.PublishedDate.IsZero() {
		a.PublishedDate = time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	}
	if a.FetchedDate.IsZero() {
		a.FetchedDate = a.PublishedDate
	}
	n, err := f.store.UpsertArticles(context.Background(), []*core.Article{a})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, f.idx.Upsert(&core.Document{
		DocID:         core.MakeArticleID(a.ID),
		ArticleID:     a.ID,
		Title:         a.Title,
		Source:        a.Source,
		Author:        a.Author,
		PublishedDate: a.PublishedDate,
		WordCount:     a.WordCount,
	}, vectorAt(similarity)))
	return a
}

// vectorAt returns a unit vector whose cosine similarity to (1,0,0,0)
// is s.
func vectorAt(s float64) []float32 {
	return []float32{float32(s), float32(math.Sqrt(1 - s*s)), 0, 0}
}

func TestSearch_EmptyQuery(t *testing.T) {
	f := newEngineFixture(t)

	for _, query := range []string{"", "   "} {
		resp, err := f.engine.Search(context.Background(), query, FilterSpec{}, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 0, resp.Total)
		assert.Empty(t, resp.Results)
		assert.NotNil(t, resp.ParsedQuery)
	}
}

func TestSearch_RanksBySimilarity(t *testing.T) {
	f := newEngineFixture(t)
	f.addArticle(t, &core.Article{Title: "Closest", Content: "body one"}, 0.95)
	f.addArticle(t, &core.Article{Title: "Middle", Content: "body two"}, 0.80)
	f.addArticle(t, &core.Article{Title: "Farthest", Content: "body three"}, 0.60)

	resp, err := f.engine.Search(context.Background(), "anything", FilterSpec{}, 10, 0)
	require.NoError(t, err)

	require.Equal(t, 3, resp.Total)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "Closest", resp.Results[0].Title)
	assert.Equal(t, "Middle", resp.Results[1].Title)
	assert.Equal(t, "Farthest", resp.Results[2].Title)
	assert.Greater(t, resp.Results[0].Score, resp.Results[1].Score)
	assert.NotEmpty(t, resp.Results[0].Excerpt)
}

func TestSearch_AuthorSyntaxOverridesFilter(t *testing.T) {
	f := newEngineFixture(t)
	f.addArticle(t, &core.Article{Title: "One", Content: "b", Author: "Alan Woods"}, 0.9)
	f.addArticle(t, &core.Article{Title: "Two", Content: "b", Author: "Ted Grant"}, 0.9)

	resp, err := f.engine.Search(context.Background(),
		`marx author:"Alan Woods"`, FilterSpec{Author: "Ted Grant"}, 10, 0)
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "One", resp.Results[0].Title)
}

func TestSearch_ExactPhraseFilter(t *testing.T) {
	f := newEngineFixture(t)
	f.addArticle(t, &core.Article{
		Title:   "Results and Prospects",
		Content: "the theory of permanent revolution holds that",
	}, 0.9)
	f.addArticle(t, &core.Article{
		Title:   "Near Miss",
		Content: "every permanent revolutionary knows",
	}, 0.9)

	resp, err := f.engine.Search(context.Background(),
		`theory "permanent revolution"`, FilterSpec{}, 10, 0)
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Results and Prospects", resp.Results[0].Title)
	assert.Equal(t, "permanent revolution", resp.Results[0].MatchedPhrase)
	assert.Contains(t, resp.Results[0].Excerpt, "permanent revolution")
}

func TestSearch_TitlePhraseFilter(t *testing.T) {
	f := newEngineFixture(t)
	f.addArticle(t, &core.Article{Title: "The State and Revolution", Content: "b"}, 0.9)
	f.addArticle(t, &core.Article{Title: "On the State", Content: "state and revolution in the body"}, 0.9)

	resp, err := f.engine.Search(context.Background(),
		`lenin title:"state and revolution"`, FilterSpec{}, 10, 0)
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "The State and Revolution", resp.Results[0].Title)
}

func TestSearch_MetadataFilters(t *testing.T) {
	f := newEngineFixture(t)
	f.addArticle(t, &core.Article{
		Title: "Recent", Content: "b", Source: "marxist.com",
		PublishedDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}, 0.9)
	f.addArticle(t, &core.Article{
		Title: "Old", Content: "b", Source: "other.org",
		PublishedDate: time.Date(2005, 6, 1, 0, 0, 0, 0, time.UTC),
	}, 0.9)

	t.Run("source", func(t *testing.T) {
		resp, err := f.engine.Search(context.Background(), "x", FilterSpec{Source: "other.org"}, 10, 0)
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "Old", resp.Results[0].Title)
	})

	t.Run("custom date range", func(t *testing.T) {
		resp, err := f.engine.Search(context.Background(), "x", FilterSpec{
			DateRange: "custom",
			StartDate: "2024-01-01",
			EndDate:   "2024-12-31",
		}, 10, 0)
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "Recent", resp.Results[0].Title)
	})

	t.Run("malformed range", func(t *testing.T) {
		_, err := f.engine.Search(context.Background(), "x", FilterSpec{DateRange: "past_decade"}, 10, 0)
		assert.ErrorIs(t, err, core.ErrMalformedFilter)
	})
}

func TestSearch_Pagination(t *testing.T) {
	f := newEngineFixture(t)
	for i := 0; i < 5; i++ {
		f.addArticle(t, &core.Article{
			Title:   fmt.Sprintf("Article %d", i),
			Content: "b",
		}, 0.9-float64(i)*0.05)
	}

	page1, err := f.engine.Search(context.Background(), "x", FilterSpec{}, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, page1.Total)
	require.Len(t, page1.Results, 2)
	assert.Equal(t, "Article 0", page1.Results[0].Title)

	page3, err := f.engine.Search(context.Background(), "x", FilterSpec{}, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, page3.Total)
	require.Len(t, page3.Results, 1)
	assert.Equal(t, "Article 4", page3.Results[0].Title)

	beyond, err := f.engine.Search(context.Background(), "x", FilterSpec{}, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, beyond.Total)
	assert.Empty(t, beyond.Results)
}

func TestSearch_CollapsesChunksToOneResult(t *testing.T) {
	f := newEngineFixture(t)
	a := f.addArticle(t, &core.Article{Title: "Long Piece", Content: "the full body"}, 0.9)

	// Two more sections of the same article, as chunk documents.
	for i := 0; i < 2; i++ {
		require.NoError(t, f.idx.Upsert(&core.Document{
			DocID:         core.MakeChunkID(a.ID, i),
			ArticleID:     a.ID,
			Title:         a.Title,
			Source:        a.Source,
			PublishedDate: a.PublishedDate,
			IsChunk:       true,
			ChunkIndex:    i,
		}, vectorAt(0.85-float64(i)*0.05)))
	}

	resp, err := f.engine.Search(context.Background(), "x", FilterSpec{}, 10, 0)
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, a.ID, resp.Results[0].ArticleID)
	assert.Equal(t, 3, resp.Results[0].MatchedSections)
	assert.InDelta(t, 0.9, resp.Results[0].Score, 0.01, "best section's score represents the article")
}

func TestSearch_DropsCandidatesWithoutRows(t *testing.T) {
	f := newEngineFixture(t)
	f.addArticle(t, &core.Article{Title: "Real", Content: "b"}, 0.9)

	// A document the store has never heard of.
	require.NoError(t, f.idx.Upsert(&core.Document{
		DocID:     core.MakeArticleID(999),
		ArticleID: 999,
		Title:     "Ghost",
	}, vectorAt(0.95)))

	resp, err := f.engine.Search(context.Background(), "x", FilterSpec{}, 10, 0)
	require.NoError(t, err, "a mismatched candidate is dropped, not fatal")

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Real", resp.Results[0].Title)
}

// fetchCountingStore counts how many article rows GetArticles is asked
// for across a query.
type fetchCountingStore struct {
	storage.ArticleReader
	mu      sync.Mutex
	fetched int
}

func (s *fetchCountingStore) GetArticles(ctx context.Context, ids []int64) (map[int64]*core.Article, error) {
	s.mu.Lock()
	s.fetched += len(ids)
	s.mu.Unlock()
	return s.ArticleReader.GetArticles(ctx, ids)
}

func TestSearch_FetchesContentLazily(t *testing.T) {
	f := newEngineFixture(t)
	for i := 0; i < 10; i++ {
		f.addArticle(t, &core.Article{
			Title:   fmt.Sprintf("Article %d", i),
			Content: "a body of reasonable length",
		}, 0.9-float64(i)*0.02)
	}

	cfg := quietEngineConfig()
	cfg.Reranking.KeywordRerankTopN = 2

	counting := &fetchCountingStore{ArticleReader: f.store}
	engine, err := New(counting, f.idx, f.embedder, WithConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	resp, err := engine.Search(context.Background(), "x", FilterSpec{}, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, resp.Total)
	require.Len(t, resp.Results, 3)

	counting.mu.Lock()
	defer counting.mu.Unlock()
	// Content window plus the part of the page not already cached; far
	// fewer rows than the ten candidates.
	assert.LessOrEqual(t, counting.fetched, cfg.Reranking.KeywordRerankTopN+3)
}

func TestSearch_Tags(t *testing.T) {
	f := newEngineFixture(t)
	f.addArticle(t, &core.Article{
		Title:    "Tagged",
		Content:  "b",
		TagsJSON: `["theory","history"]`,
	}, 0.9)

	resp, err := f.engine.Search(context.Background(), "x", FilterSpec{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, []string{"theory", "history"}, resp.Results[0].Tags)
}

func TestSearch_QueryTooLong(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.engine.Search(context.Background(), strings.Repeat("a", MaxQueryLength+1), FilterSpec{}, 10, 0)
	assert.ErrorIs(t, err, core.ErrQueryTooLong)
}

func TestSearch_Overloaded(t *testing.T) {
	f := newEngineFixture(t)
	f.addArticle(t, &core.Article{Title: "A", Content: "b"}, 0.9)

	// Exhaust every admission slot.
	for i := 0; i < cap(f.engine.slots); i++ {
		f.engine.slots <- struct{}{}
	}
	defer func() {
		for i := 0; i < cap(f.engine.slots); i++ {
			<-f.engine.slots
		}
	}()

	_, err := f.engine.Search(context.Background(), "x", FilterSpec{}, 10, 0)
	assert.ErrorIs(t, err, core.ErrOverloaded)
}

func TestSearch_Timeout(t *testing.T) {
	f := newEngineFixture(t, WithTimeout(20*time.Millisecond))
	f.addArticle(t, &core.Article{Title: "A", Content: "b"}, 0.9)

	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		// Deliberately ignores cancellation so the deadline fires first.
		time.Sleep(500 * time.Millisecond)
		return []float32{1, 0, 0, 0}, nil
	}

	_, err := f.engine.Search(context.Background(), "x", FilterSpec{}, 10, 0)
	assert.ErrorIs(t, err, core.ErrTimeout)
}

// recordingMonitor counts stage callbacks.
type recordingMonitor struct {
	mu       sync.Mutex
	started  int
	parsed   int
	finished int
}

func (m *recordingMonitor) QueryStarted(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *recordingMonitor) QueryParsed(*core.ParsedQuery) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parsed++
}

func (m *recordingMonitor) CandidatesRetrieved(int, int) {}

func (m *recordingMonitor) QueryFinished(int, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished++
}

func TestSearch_Monitor(t *testing.T) {
	monitor := &recordingMonitor{}
	f := newEngineFixture(t, WithMonitor(monitor))
	f.addArticle(t, &core.Article{Title: "A", Content: "b"}, 0.9)

	_, err := f.engine.Search(context.Background(), "x", FilterSpec{}, 10, 0)
	require.NoError(t, err)

	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	assert.Equal(t, 1, monitor.started)
	assert.Equal(t, 1, monitor.parsed)
	assert.Equal(t, 1, monitor.finished)
}

func TestEngineStats(t *testing.T) {
	f := newEngineFixture(t)
	f.addArticle(t, &core.Article{Title: "A", Content: "b"}, 0.9)
	f.addArticle(t, &core.Article{Title: "B", Content: "b"}, 0.8)

	stats, err := f.engine.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Store.TotalArticles)
	assert.Equal(t, 2, stats.IndexDocuments)

	sources, err := f.engine.Sources(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "marxist.com", sources[0].Name)
	assert.Equal(t, 2, sources[0].ArticleCount)
}

func TestEngineNew_RequiresDependencies(t *testing.T) {
	store, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	idx, err := index.New(engineDim)
	require.NoError(t, err)
	embedder := mock.NewMockEmbedderDim(engineDim)

	_, err = New(nil, idx, embedder)
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = New(store, nil, embedder)
	assert.ErrorIs(t, err, ErrIndexRequired)

	_, err = New(store, idx, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domwxyz/marxist-search/core"
	"github.com/domwxyz/marxist-search/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testArticle(n int) *core.Article {
	return &core.Article{
		URL:           fmt.Sprintf("https://example.org/article-%d", n),
		GUID:          fmt.Sprintf("guid-%d", n),
		Title:         fmt.Sprintf("Article %d", n),
		Content:       fmt.Sprintf("Content of article %d about theory and practice.", n),
		Source:        "In Defence of Marxism",
		Author:        "Alan Woods",
		PublishedDate: time.Date(2024, 1, n%28+1, 0, 0, 0, 0, time.UTC),
		FetchedDate:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func seedArticles(t *testing.T, s *Store, n int) []*core.Article {
	t.Helper()
	articles := make([]*core.Article, n)
	for i := range articles {
		articles[i] = testArticle(i + 1)
	}
	inserted, err := s.UpsertArticles(context.Background(), articles)
	require.NoError(t, err)
	require.Equal(t, n, inserted)
	return articles
}

func TestUpsertArticles_AssignsIDs(t *testing.T) {
	s := newTestStore(t)
	articles := seedArticles(t, s, 3)

	for _, a := range articles {
		assert.Positive(t, a.ID)
	}
}

func TestUpsertArticles_DuplicatesDropped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := testArticle(1)
	inserted, err := s.UpsertArticles(ctx, []*core.Article{first})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)

	// Same URL, different title: silently dropped, not overwritten.
	dup := testArticle(1)
	dup.Title = "Replacement Title"
	inserted, err = s.UpsertArticles(ctx, []*core.Article{dup})
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	got, err := s.GetArticle(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Article 1", got.Title)
}

func TestUpsertArticles_SkipsInvalid(t *testing.T) {
	s := newTestStore(t)

	inserted, err := s.UpsertArticles(context.Background(), []*core.Article{
		{URL: "https://example.org/ok", Title: "OK", Content: "Body.", Source: "s",
			PublishedDate: time.Now(), FetchedDate: time.Now()},
		{URL: "", Title: "no url", Content: "Body."},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
}

func TestGetArticle_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetArticle(context.Background(), 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetArticle_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	articles := seedArticles(t, s, 1)

	got, err := s.GetArticle(context.Background(), articles[0].ID)
	require.NoError(t, err)

	assert.Equal(t, articles[0].URL, got.URL)
	assert.Equal(t, articles[0].GUID, got.GUID)
	assert.Equal(t, articles[0].Title, got.Title)
	assert.Equal(t, articles[0].Content, got.Content)
	assert.Equal(t, articles[0].Author, got.Author)
	assert.True(t, articles[0].PublishedDate.Equal(got.PublishedDate))
	assert.False(t, got.Indexed)
	assert.Positive(t, got.WordCount, "word count computed on insert")
}

func TestGetArticles_MissingIDsAbsent(t *testing.T) {
	s := newTestStore(t)
	articles := seedArticles(t, s, 2)

	got, err := s.GetArticles(context.Background(),
		[]int64{articles[0].ID, 999, articles[1].ID})
	require.NoError(t, err)

	assert.Len(t, got, 2)
	assert.Contains(t, got, articles[0].ID)
	assert.Contains(t, got, articles[1].ID)
}

func TestFilterCandidates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a1 := testArticle(1)
	a1.Source = "IMT"
	a1.Author = "Ted Grant"
	a1.PublishedDate = time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	a2 := testArticle(2)
	a2.Source = "IMT"
	a2.PublishedDate = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	a3 := testArticle(3)
	a3.PublishedDate = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.UpsertArticles(ctx, []*core.Article{a1, a2, a3})
	require.NoError(t, err)
	ids := []int64{a1.ID, a2.ID, a3.ID}

	t.Run("no constraints passes all", func(t *testing.T) {
		got, err := s.FilterCandidates(ctx, ids, storage.CandidateFilter{})
		require.NoError(t, err)
		assert.Equal(t, ids, got)
	})

	t.Run("source", func(t *testing.T) {
		got, err := s.FilterCandidates(ctx, ids, storage.CandidateFilter{Source: "IMT"})
		require.NoError(t, err)
		assert.Equal(t, []int64{a1.ID, a2.ID}, got)
	})

	t.Run("author", func(t *testing.T) {
		got, err := s.FilterCandidates(ctx, ids, storage.CandidateFilter{Author: "Ted Grant"})
		require.NoError(t, err)
		assert.Equal(t, []int64{a1.ID}, got)
	})

	t.Run("date window", func(t *testing.T) {
		got, err := s.FilterCandidates(ctx, ids, storage.CandidateFilter{
			Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{a2.ID, a3.ID}, got)
	})

	t.Run("conjunction", func(t *testing.T) {
		got, err := s.FilterCandidates(ctx, ids, storage.CandidateFilter{
			Source: "IMT",
			Start:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{a2.ID}, got)
	})

	t.Run("preserves input order", func(t *testing.T) {
		got, err := s.FilterCandidates(ctx, []int64{a3.ID, a1.ID, a2.ID}, storage.CandidateFilter{Source: "IMT"})
		require.NoError(t, err)
		assert.Equal(t, []int64{a1.ID, a2.ID}, got)
	})
}

func TestReplaceChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	articles := seedArticles(t, s, 1)
	id := articles[0].ID

	chunks := []*core.Chunk{
		{ArticleID: id, ChunkIndex: 0, Content: "first chunk", StartPosition: 0},
		{ArticleID: id, ChunkIndex: 1, Content: "second chunk", StartPosition: 12},
	}
	require.NoError(t, s.ReplaceChunks(ctx, id, chunks))

	got, err := s.GetChunks(ctx, id, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first chunk", got[0].Content)
	assert.Equal(t, 1, got[1].ChunkIndex)

	article, err := s.GetArticle(ctx, id)
	require.NoError(t, err)
	assert.True(t, article.IsChunked)

	// Replace with a smaller set.
	require.NoError(t, s.ReplaceChunks(ctx, id, []*core.Chunk{
		{ArticleID: id, ChunkIndex: 0, Content: "only chunk"},
	}))
	got, err = s.GetChunks(ctx, id, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Replace with none clears the flag.
	require.NoError(t, s.ReplaceChunks(ctx, id, nil))
	article, err = s.GetArticle(ctx, id)
	require.NoError(t, err)
	assert.False(t, article.IsChunked)
}

func TestReplaceChunks_MissingArticle(t *testing.T) {
	s := newTestStore(t)
	err := s.ReplaceChunks(context.Background(), 42, nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReplaceChunks_RejectsGappyIndices(t *testing.T) {
	s := newTestStore(t)
	articles := seedArticles(t, s, 1)

	err := s.ReplaceChunks(context.Background(), articles[0].ID, []*core.Chunk{
		{ChunkIndex: 0, Content: "a"},
		{ChunkIndex: 2, Content: "b"},
	})
	assert.Error(t, err)
}

func TestGetChunks_SubsetByIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	articles := seedArticles(t, s, 1)
	id := articles[0].ID

	require.NoError(t, s.ReplaceChunks(ctx, id, []*core.Chunk{
		{ChunkIndex: 0, Content: "zero"},
		{ChunkIndex: 1, Content: "one"},
		{ChunkIndex: 2, Content: "two"},
	}))

	got, err := s.GetChunks(ctx, id, []int{2, 0})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "zero", got[0].Content)
	assert.Equal(t, "two", got[1].Content)
}

func TestMarkIndexed_And_UnindexedArticles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	articles := seedArticles(t, s, 3)

	pending, err := s.UnindexedArticles(ctx, "2.0")
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	require.NoError(t, s.MarkIndexed(ctx, articles[0].ID, "2.0"))

	pending, err = s.UnindexedArticles(ctx, "2.0")
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	// Stale version counts as unindexed.
	require.NoError(t, s.MarkIndexed(ctx, articles[1].ID, "1.5"))
	pending, err = s.UnindexedArticles(ctx, "2.0")
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	assert.ErrorIs(t, s.MarkIndexed(ctx, 999, "2.0"), storage.ErrNotFound)
}

func TestMarkUnindexed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	articles := seedArticles(t, s, 2)

	require.NoError(t, s.MarkIndexed(ctx, articles[0].ID, "2.0"))
	require.NoError(t, s.MarkIndexed(ctx, articles[1].ID, "2.0"))

	require.NoError(t, s.MarkUnindexed(ctx, articles[0].ID))

	pending, err := s.UnindexedArticles(ctx, "2.0")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, articles[0].ID, pending[0].ID)
	assert.False(t, pending[0].Indexed)

	assert.ErrorIs(t, s.MarkUnindexed(ctx, 999), storage.ErrNotFound)
}

func TestListSources_And_TopAuthors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mk := func(n int, source, author string) *core.Article {
		a := testArticle(n)
		a.Source = source
		a.Author = author
		return a
	}
	_, err := s.UpsertArticles(ctx, []*core.Article{
		mk(1, "IMT", "Alan Woods"),
		mk(2, "IMT", "Alan Woods"),
		mk(3, "IMT", "Ted Grant"),
		mk(4, "MIA", "Ted Grant"),
	})
	require.NoError(t, err)

	sources, err := s.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "IMT", sources[0].Name)
	assert.Equal(t, 3, sources[0].ArticleCount)

	authors, err := s.TopAuthors(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, authors, 2)
	assert.Equal(t, 2, authors[0].ArticleCount)

	authors, err = s.TopAuthors(ctx, 3, 0)
	require.NoError(t, err)
	assert.Empty(t, authors)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	articles := seedArticles(t, s, 4)

	require.NoError(t, s.MarkIndexed(ctx, articles[0].ID, "1.0"))
	require.NoError(t, s.ReplaceChunks(ctx, articles[1].ID, []*core.Chunk{
		{ChunkIndex: 0, Content: "a"},
		{ChunkIndex: 1, Content: "b"},
	}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalArticles)
	assert.Equal(t, 1, stats.IndexedArticles)
	assert.Equal(t, 2, stats.TotalChunks)
	assert.Equal(t, 1, stats.SourceCount)
	assert.False(t, stats.EarliestArticle.IsZero())
}

func TestFeedHealth_EmptyTable(t *testing.T) {
	s := newTestStore(t)

	feeds, err := s.FeedHealth(context.Background())
	require.NoError(t, err)
	assert.Empty(t, feeds)
}

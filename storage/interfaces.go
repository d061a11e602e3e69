// Package storage defines the article store contract. The sqlite
// subpackage provides the production implementation.
package storage

import (
	"context"
	"time"

	"github.com/domwxyz/marxist-search/core"
)

// CandidateFilter is the resolved metadata predicate pushed down to the
// store during candidate filtering. Zero values mean "no constraint";
// date bounds compare against published_date.
type CandidateFilter struct {
	Source string
	Author string
	Start  time.Time
	End    time.Time
}

// IsZero reports whether the filter constrains nothing.
func (f CandidateFilter) IsZero() bool {
	return f.Source == "" && f.Author == "" && f.Start.IsZero() && f.End.IsZero()
}

// ArticleReader is the read surface used by the search engine.
type ArticleReader interface {
	// GetArticle fetches one article by primary key.
	// Returns ErrNotFound if the row does not exist.
	GetArticle(ctx context.Context, id int64) (*core.Article, error)

	// GetArticles fetches a batch of articles. Missing IDs are simply
	// absent from the result map.
	GetArticles(ctx context.Context, ids []int64) (map[int64]*core.Article, error)

	// GetChunks fetches chunks for an article. A nil indices slice
	// fetches all chunks, ordered by chunk index.
	GetChunks(ctx context.Context, articleID int64, indices []int) ([]*core.Chunk, error)

	// FilterCandidates returns the subset of ids whose articles satisfy
	// the filter, preserving input order.
	FilterCandidates(ctx context.Context, ids []int64, filter CandidateFilter) ([]int64, error)

	// ListSources returns per-source article populations.
	ListSources(ctx context.Context) ([]*core.SourceStat, error)

	// TopAuthors returns authors with at least minCount articles,
	// most prolific first, capped at limit (0 means no cap).
	TopAuthors(ctx context.Context, minCount, limit int) ([]*core.AuthorStat, error)

	// FeedHealth returns the ingestion state of every source feed.
	FeedHealth(ctx context.Context) ([]*core.FeedHealth, error)

	// Stats summarizes the store.
	Stats(ctx context.Context) (*core.StoreStats, error)
}

// ArticleWriter is the write surface used by ingestion and the indexing
// service.
type ArticleWriter interface {
	// UpsertArticles inserts a batch of articles. Rows whose URL or GUID
	// already exists are silently dropped, not overwritten. Returns the
	// number of rows actually inserted.
	UpsertArticles(ctx context.Context, articles []*core.Article) (int, error)

	// ReplaceChunks transactionally deletes an article's chunk rows,
	// inserts the new set, and updates is_chunked.
	ReplaceChunks(ctx context.Context, articleID int64, chunks []*core.Chunk) error

	// MarkIndexed sets indexed=true and records the embedding version.
	MarkIndexed(ctx context.Context, articleID int64, version string) error

	// MarkUnindexed clears the indexed flag so the article is picked up
	// by the next incremental update.
	MarkUnindexed(ctx context.Context, articleID int64) error

	// UnindexedArticles returns articles with indexed=false or an
	// embedding version different from currentVersion, in id order.
	UnindexedArticles(ctx context.Context, currentVersion string) ([]*core.Article, error)

	// AllArticles streams every article in id order for a full rebuild.
	AllArticles(ctx context.Context) ([]*core.Article, error)
}

// Store combines both surfaces with an explicit lifecycle.
type Store interface {
	ArticleReader
	ArticleWriter
	Close() error
}

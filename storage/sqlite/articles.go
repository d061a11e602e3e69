package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/domwxyz/marxist-search/core"
	"github.com/domwxyz/marxist-search/storage"
)

// SQLite caps bound parameters; large id sets are processed in batches.
const idBatchSize = 500

const articleColumns = `id, url, guid, title, content, summary, source, author,
	published_date, fetched_date, word_count, is_chunked, indexed,
	embedding_version, terms_json, tags_json`

// GetArticle fetches one article by primary key.
func (s *Store) GetArticle(ctx context.Context, id int64) (*core.Article, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)

	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("article %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return article, nil
}

// GetArticles fetches a batch of articles keyed by id. Missing ids are
// absent from the result.
func (s *Store) GetArticles(ctx context.Context, ids []int64) (map[int64]*core.Article, error) {
	result := make(map[int64]*core.Article, len(ids))

	for _, batch := range batchIDs(ids) {
		query := `SELECT ` + articleColumns + ` FROM articles WHERE id IN (` + placeholders(len(batch)) + `)`
		rows, err := s.db.QueryContext(ctx, query, batch...)
		if err != nil {
			return nil, err
		}

		for rows.Next() {
			article, err := scanArticle(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			result[article.ID] = article
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return result, nil
}

// FilterCandidates returns the subset of ids satisfying the filter,
// preserving input order. Predicates are pushed into SQL.
func (s *Store) FilterCandidates(ctx context.Context, ids []int64, filter storage.CandidateFilter) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if filter.IsZero() {
		out := make([]int64, len(ids))
		copy(out, ids)
		return out, nil
	}

	matched := make(map[int64]bool, len(ids))

	for _, batch := range batchIDs(ids) {
		var sb strings.Builder
		sb.WriteString(`SELECT id FROM articles WHERE id IN (`)
		sb.WriteString(placeholders(len(batch)))
		sb.WriteString(`)`)
		args := append([]any{}, batch...)

		if filter.Source != "" {
			sb.WriteString(` AND source = ?`)
			args = append(args, filter.Source)
		}
		if filter.Author != "" {
			sb.WriteString(` AND author = ?`)
			args = append(args, filter.Author)
		}
		if !filter.Start.IsZero() {
			sb.WriteString(` AND published_date >= ?`)
			args = append(args, filter.Start)
		}
		if !filter.End.IsZero() {
			sb.WriteString(` AND published_date < ?`)
			args = append(args, filter.End)
		}

		rows, err := s.db.QueryContext(ctx, sb.String(), args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			matched[id] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	var out []int64
	for _, id := range ids {
		if matched[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

// ListSources returns per-source article populations, largest first.
func (s *Store) ListSources(ctx context.Context) ([]*core.SourceStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, COUNT(*), MIN(published_date), MAX(published_date)
		FROM articles
		GROUP BY source
		ORDER BY COUNT(*) DESC, source ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*core.SourceStat
	for rows.Next() {
		st := &core.SourceStat{}
		if err := rows.Scan(&st.Name, &st.ArticleCount, &st.Earliest, &st.Latest); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// TopAuthors returns authors with at least minCount articles, most
// prolific first. limit of 0 means no cap.
func (s *Store) TopAuthors(ctx context.Context, minCount, limit int) ([]*core.AuthorStat, error) {
	query := `
		SELECT author, COUNT(*), MIN(published_date), MAX(published_date)
		FROM articles
		WHERE author IS NOT NULL AND author != ''
		GROUP BY author
		HAVING COUNT(*) >= ?
		ORDER BY COUNT(*) DESC, author ASC`
	args := []any{minCount}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*core.AuthorStat
	for rows.Next() {
		st := &core.AuthorStat{}
		if err := rows.Scan(&st.Name, &st.ArticleCount, &st.Earliest, &st.Latest); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// FeedHealth reports every source feed's ingestion state. The rss_feeds
// table is owned by the ingestion side; this is a read-only view.
func (s *Store) FeedHealth(ctx context.Context) ([]*core.FeedHealth, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, url, status, consecutive_failures, last_checked, article_count
		FROM rss_feeds
		ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var feeds []*core.FeedHealth
	for rows.Next() {
		fh := &core.FeedHealth{}
		var lastChecked sql.NullTime
		if err := rows.Scan(&fh.Name, &fh.URL, &fh.Status, &fh.ConsecutiveFailures, &lastChecked, &fh.ArticleCount); err != nil {
			return nil, err
		}
		fh.LastChecked = lastChecked.Time
		feeds = append(feeds, fh)
	}
	return feeds, rows.Err()
}

// Stats summarizes the store.
func (s *Store) Stats(ctx context.Context) (*core.StoreStats, error) {
	st := &core.StoreStats{}

	var earliest, latest sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(indexed), 0),
		       COUNT(DISTINCT source),
		       MIN(published_date),
		       MAX(published_date)
		FROM articles`).Scan(&st.TotalArticles, &st.IndexedArticles, &st.SourceCount, &earliest, &latest)
	if err != nil {
		return nil, err
	}
	st.EarliestArticle = earliest.Time
	st.LatestArticle = latest.Time

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM article_chunks`).Scan(&st.TotalChunks); err != nil {
		return nil, err
	}
	return st, nil
}

// UpsertArticles inserts a batch. Duplicate URLs and GUIDs are silently
// dropped so re-fetched feeds stay idempotent. Returns rows inserted.
func (s *Store) UpsertArticles(ctx context.Context, articles []*core.Article) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO articles
			(url, guid, title, content, summary, source, author,
			 published_date, fetched_date, word_count, is_chunked, indexed,
			 embedding_version, terms_json, tags_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, a := range articles {
		if err := core.ValidateArticle(a); err != nil {
			s.logger.Warn("skipping invalid article", "url", a.URL, "err", err)
			continue
		}
		wordCount := a.WordCount
		if wordCount == 0 {
			wordCount = len(strings.Fields(a.Content))
		}
		version := a.EmbeddingVersion
		if version == "" {
			version = "1.0"
		}
		res, err := stmt.ExecContext(ctx,
			a.URL, nullString(a.GUID), a.Title, a.Content, nullString(a.Summary),
			a.Source, nullString(a.Author), a.PublishedDate, a.FetchedDate,
			wordCount, a.IsChunked, a.Indexed, version,
			nullString(a.TermsJSON), nullString(a.TagsJSON))
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		if n > 0 {
			id, err := res.LastInsertId()
			if err == nil {
				a.ID = id
			}
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrTransactionFailed, err)
	}
	return inserted, nil
}

// MarkIndexed sets the indexed flag and embedding version.
func (s *Store) MarkIndexed(ctx context.Context, articleID int64, version string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE articles SET indexed = 1, embedding_version = ? WHERE id = ?`,
		version, articleID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("article %d: %w", articleID, storage.ErrNotFound)
	}
	return nil
}

// MarkUnindexed clears the indexed flag.
func (s *Store) MarkUnindexed(ctx context.Context, articleID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE articles SET indexed = 0 WHERE id = ?`, articleID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("article %d: %w", articleID, storage.ErrNotFound)
	}
	return nil
}

// UnindexedArticles returns articles needing (re)indexing: never indexed
// or embedded with a stale version.
func (s *Store) UnindexedArticles(ctx context.Context, currentVersion string) ([]*core.Article, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles
		 WHERE indexed = 0 OR embedding_version != ?
		 ORDER BY id ASC`, currentVersion)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectArticles(rows)
}

// AllArticles returns every article in id order.
func (s *Store) AllArticles(ctx context.Context) ([]*core.Article, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectArticles(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(row scanner) (*core.Article, error) {
	a := &core.Article{}
	var guid, summary, author, version, terms, tags sql.NullString
	var wordCount sql.NullInt64

	err := row.Scan(&a.ID, &a.URL, &guid, &a.Title, &a.Content, &summary,
		&a.Source, &author, &a.PublishedDate, &a.FetchedDate, &wordCount,
		&a.IsChunked, &a.Indexed, &version, &terms, &tags)
	if err != nil {
		return nil, err
	}

	a.GUID = guid.String
	a.Summary = summary.String
	a.Author = author.String
	a.WordCount = int(wordCount.Int64)
	a.EmbeddingVersion = version.String
	a.TermsJSON = terms.String
	a.TagsJSON = tags.String
	return a, nil
}

func collectArticles(rows *sql.Rows) ([]*core.Article, error) {
	var articles []*core.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func batchIDs(ids []int64) [][]any {
	var batches [][]any
	for start := 0; start < len(ids); start += idBatchSize {
		end := start + idBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := make([]any, 0, end-start)
		for _, id := range ids[start:end] {
			batch = append(batch, id)
		}
		batches = append(batches, batch)
	}
	return batches
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

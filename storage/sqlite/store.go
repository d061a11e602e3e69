// Package sqlite implements storage.Store on a single SQLite file via
// modernc.org/sqlite. WAL journaling gives concurrent readers a
// consistent snapshot while the indexer writes.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/domwxyz/marxist-search/storage"
)

// Store is the SQLite-backed article store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens (creating if needed) the article database at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{
		db:     db,
		logger: slog.Default().With("component", "article-store"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// OpenMemory opens a private in-memory database, used by tests. The
// connection pool is capped at one so every query sees the same
// in-memory database.
func OpenMemory(opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{
		db:     db,
		logger: slog.Default().With("component", "article-store"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the schema on first run. The layout mirrors the
// ingestion side's tables; the search core reads author_stats,
// rss_feeds, term_mentions and search_logs but never writes them.
func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS articles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT UNIQUE NOT NULL,
			guid TEXT UNIQUE,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			summary TEXT,
			source TEXT NOT NULL,
			author TEXT,
			published_date DATETIME NOT NULL,
			fetched_date DATETIME NOT NULL,
			word_count INTEGER,
			is_chunked BOOLEAN DEFAULT 0,
			indexed BOOLEAN DEFAULT 0,
			embedding_version TEXT DEFAULT '1.0',
			terms_json TEXT,
			tags_json TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS article_chunks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			article_id INTEGER NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			word_count INTEGER,
			start_position INTEGER,
			FOREIGN KEY (article_id) REFERENCES articles(id),
			UNIQUE(article_id, chunk_index)
		)`,
		`CREATE TABLE IF NOT EXISTS author_stats (
			author TEXT PRIMARY KEY,
			article_count INTEGER DEFAULT 0,
			latest_article_date DATETIME,
			first_article_date DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS rss_feeds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			pagination_type TEXT DEFAULT 'standard',
			limit_increment INTEGER DEFAULT 5,
			last_checked DATETIME,
			last_modified DATETIME,
			etag TEXT,
			status TEXT DEFAULT 'active',
			consecutive_failures INTEGER DEFAULT 0,
			article_count INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS term_mentions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			article_id INTEGER NOT NULL,
			term_text TEXT NOT NULL,
			term_type TEXT,
			mention_count INTEGER DEFAULT 1,
			FOREIGN KEY (article_id) REFERENCES articles(id)
		)`,
		`CREATE TABLE IF NOT EXISTS search_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			query TEXT NOT NULL,
			filters_json TEXT,
			result_count INTEGER,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_source ON articles(source)`,
		`CREATE INDEX IF NOT EXISTS idx_published_date ON articles(published_date)`,
		`CREATE INDEX IF NOT EXISTS idx_author ON articles(author)`,
		`CREATE INDEX IF NOT EXISTS idx_indexed ON articles(indexed)`,
		`CREATE INDEX IF NOT EXISTS idx_term_text ON term_mentions(term_text)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate %q: %w", stmt[:32], err)
		}
	}
	return nil
}

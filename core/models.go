package core

import "time"

// Article is the unit of user interest: one long-form piece ingested from
// a source feed. Rows are created by the ingestion collaborator; the core
// only ever mutates the indexing flags.
type Article struct {
	ID               int64
	URL              string
	GUID             string // Stable identifier from the source feed
	Title            string
	Content          string
	Summary          string
	Source           string
	Author           string
	PublishedDate    time.Time
	FetchedDate      time.Time
	WordCount        int
	IsChunked        bool
	Indexed          bool
	EmbeddingVersion string
	TermsJSON        string // JSON blob of extracted terms (owned by ingestion)
	TagsJSON         string // JSON blob of tags (owned by ingestion)
}

// Chunk is a contiguous sub-window of an article's content, created when
// the article exceeds the chunking threshold. Chunk indices for an
// article form a contiguous range starting at zero.
type Chunk struct {
	ArticleID     int64
	ChunkIndex    int
	Content       string
	WordCount     int
	StartPosition int // Character offset into the original body
}

// Document is the metadata stored alongside a vector in the index. The
// full text is never stored here; it lives in the article store and is
// fetched on demand.
type Document struct {
	DocID         string    `json:"id"`
	ArticleID     int64     `json:"article_id"`
	Title         string    `json:"title"`
	Source        string    `json:"source"`
	Author        string    `json:"author,omitempty"`
	PublishedDate time.Time `json:"published_date"`
	IsChunk       bool      `json:"is_chunk"`
	ChunkIndex    int       `json:"chunk_index"`
	WordCount     int       `json:"word_count"`
}

// ParsedQuery holds the components of a power-user query after parsing.
type ParsedQuery struct {
	SemanticTerms []string `json:"semantic_terms"`
	ExactPhrases  []string `json:"exact_phrases"`
	TitlePhrases  []string `json:"title_phrases"`
	AuthorFilter  string   `json:"author_filter,omitempty"`
}

// HasContent reports whether anything searchable survived parsing.
func (p *ParsedQuery) HasContent() bool {
	return len(p.SemanticTerms) > 0 ||
		len(p.ExactPhrases) > 0 ||
		len(p.TitlePhrases) > 0 ||
		p.AuthorFilter != ""
}

// SearchResult is a single enriched hit returned to the caller.
type SearchResult struct {
	ArticleID       int64     `json:"id"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	Source          string    `json:"source"`
	Author          string    `json:"author"`
	PublishedDate   time.Time `json:"published_date"`
	Excerpt         string    `json:"excerpt"`
	MatchedPhrase   string    `json:"matched_phrase,omitempty"`
	MatchedSections int       `json:"matched_sections"`
	Score           float64   `json:"score"`
	Tags            []string  `json:"tags,omitempty"`
}

// SearchResponse is the full result of one query.
type SearchResponse struct {
	Results     []*SearchResult `json:"results"`
	Total       int             `json:"total"`
	QueryTimeMs int64           `json:"query_time_ms"`
	ParsedQuery *ParsedQuery    `json:"parsed_query"`
}

// SourceStat describes one source feed's article population.
type SourceStat struct {
	Name         string
	ArticleCount int
	Earliest     time.Time
	Latest       time.Time
}

// AuthorStat describes one author's article population.
type AuthorStat struct {
	Name         string
	ArticleCount int
	Earliest     time.Time
	Latest       time.Time
}

// FeedHealth is the read-only view of a source feed's ingestion state.
// The rss_feeds table is owned by the ingestion collaborator.
type FeedHealth struct {
	Name                string
	URL                 string
	Status              string
	ConsecutiveFailures int
	LastChecked         time.Time
	ArticleCount        int
}

// StoreStats summarizes the article store.
type StoreStats struct {
	TotalArticles   int
	IndexedArticles int
	TotalChunks     int
	SourceCount     int
	EarliestArticle time.Time
	LatestArticle   time.Time
}

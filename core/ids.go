package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Vector index document IDs are deterministic strings so that incremental
// upserts never need to scan for a free integer id:
//
//	whole articles: "a_{article_id}"          -> "a_12345"
//	chunks:         "c_{article_id}_{index}"  -> "c_12345_0"
//
// The prefix makes collisions between the two kinds impossible and lets a
// chunk encode its parent article.
const (
	articleIDPrefix = "a_"
	chunkIDPrefix   = "c_"
)

// DocKind discriminates the two document ID shapes.
type DocKind int

const (
	// DocKindArticle is a whole-article document.
	DocKindArticle DocKind = iota + 1
	// DocKindChunk is a chunk document.
	DocKindChunk
)

// DocID is a parsed vector index document identifier.
type DocID struct {
	Kind       DocKind
	ArticleID  int64
	ChunkIndex int // Zero for whole-article documents
}

// MakeArticleID generates the document ID for a non-chunked article.
func MakeArticleID(articleID int64) string {
	return articleIDPrefix + strconv.FormatInt(articleID, 10)
}

// MakeChunkID generates the document ID for a chunk.
func MakeChunkID(articleID int64, chunkIndex int) string {
	return chunkIDPrefix + strconv.FormatInt(articleID, 10) + "_" + strconv.Itoa(chunkIndex)
}

// ParseDocID parses a document ID into its components.
// Returns ErrMalformedID for any string not produced by MakeArticleID or
// MakeChunkID.
func ParseDocID(id string) (DocID, error) {
	switch {
	case strings.HasPrefix(id, articleIDPrefix):
		articleID, err := strconv.ParseInt(id[len(articleIDPrefix):], 10, 64)
		if err != nil {
			return DocID{}, fmt.Errorf("%w: %q", ErrMalformedID, id)
		}
		return DocID{Kind: DocKindArticle, ArticleID: articleID}, nil

	case strings.HasPrefix(id, chunkIDPrefix):
		rest := id[len(chunkIDPrefix):]
		parts := strings.Split(rest, "_")
		if len(parts) != 2 {
			return DocID{}, fmt.Errorf("%w: %q", ErrMalformedID, id)
		}
		articleID, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return DocID{}, fmt.Errorf("%w: %q", ErrMalformedID, id)
		}
		chunkIndex, err := strconv.Atoi(parts[1])
		if err != nil {
			return DocID{}, fmt.Errorf("%w: %q", ErrMalformedID, id)
		}
		return DocID{Kind: DocKindChunk, ArticleID: articleID, ChunkIndex: chunkIndex}, nil

	default:
		return DocID{}, fmt.Errorf("%w: %q", ErrMalformedID, id)
	}
}

// ExtractArticleID returns the article id encoded in a document ID of
// either kind.
func ExtractArticleID(id string) (int64, error) {
	parsed, err := ParseDocID(id)
	if err != nil {
		return 0, err
	}
	return parsed.ArticleID, nil
}

// IsArticleID reports whether the document ID names a whole article.
func IsArticleID(id string) bool {
	parsed, err := ParseDocID(id)
	return err == nil && parsed.Kind == DocKindArticle
}

// IsChunkID reports whether the document ID names a chunk.
func IsChunkID(id string) bool {
	parsed, err := ParseDocID(id)
	return err == nil && parsed.Kind == DocKindChunk
}

// GroupByArticle groups document IDs by their parent article.
// Malformed IDs are skipped.
func GroupByArticle(ids []string) map[int64][]string {
	groups := make(map[int64][]string)
	for _, id := range ids {
		articleID, err := ExtractArticleID(id)
		if err != nil {
			continue
		}
		groups[articleID] = append(groups[articleID], id)
	}
	return groups
}

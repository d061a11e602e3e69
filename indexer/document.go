package indexer

import (
	"strings"

	"github.com/domwxyz/marxist-search/core"
)

// DefaultTitleWeight is how many times the title is prepended to the
// embedded text. Repetition biases cosine similarity toward title terms
// without a separate field index.
const DefaultTitleWeight = 5

// prepared pairs a vector document with the text to embed for it.
type prepared struct {
	doc  *core.Document
	text string
}

// weightTitle prepends the title weight times, "." separated, to the
// body.
func weightTitle(title, body string, weight int) string {
	if title == "" || weight <= 0 {
		return body
	}
	var sb strings.Builder
	sb.Grow(weight*(len(title)+2) + len(body))
	for i := 0; i < weight; i++ {
		sb.WriteString(title)
		sb.WriteString(". ")
	}
	sb.WriteString(body)
	return sb.String()
}

// prepareArticle shapes an unchunked article into its single vector
// document.
func prepareArticle(article *core.Article, titleWeight int) prepared {
	return prepared{
		doc: &core.Document{
			DocID:         core.MakeArticleID(article.ID),
			ArticleID:     article.ID,
			Title:         article.Title,
			Source:        article.Source,
			Author:        article.Author,
			PublishedDate: article.PublishedDate,
			WordCount:     article.WordCount,
		},
		text: weightTitle(article.Title, article.Content, titleWeight),
	}
}

// prepareChunks shapes a chunked article into one vector document per
// chunk. Only chunk 0 receives title weighting.
func prepareChunks(article *core.Article, chunks []*core.Chunk, titleWeight int) []prepared {
	docs := make([]prepared, len(chunks))
	for i, chunk := range chunks {
		text := chunk.Content
		if chunk.ChunkIndex == 0 {
			text = weightTitle(article.Title, text, titleWeight)
		}
		docs[i] = prepared{
			doc: &core.Document{
				DocID:         core.MakeChunkID(article.ID, chunk.ChunkIndex),
				ArticleID:     article.ID,
				Title:         article.Title,
				Source:        article.Source,
				Author:        article.Author,
				PublishedDate: article.PublishedDate,
				IsChunk:       true,
				ChunkIndex:    chunk.ChunkIndex,
				WordCount:     chunk.WordCount,
			},
			text: text,
		}
	}
	return docs
}

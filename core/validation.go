package core

import (
	"errors"
	"fmt"
)

// Article field validation errors.
var (
	// ErrInvalidArticle indicates an Article failed validation.
	ErrInvalidArticle = errors.New("invalid article")

	// ErrEmptyURL indicates the URL field is empty.
	ErrEmptyURL = errors.New("url cannot be empty")

	// ErrEmptyTitle indicates the Title field is empty.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")
)

// ValidateArticle validates an Article according to domain rules.
//
// Validation rules:
//   - URL must not be empty
//   - Title must not be empty
//   - Content must not be empty
//
// NOT validated (populated elsewhere):
//   - ID (0 is valid before the store assigns one)
//   - IsChunked, Indexed, EmbeddingVersion (owned by the indexing service)
//   - Author, Summary (optional per the data model)
func ValidateArticle(article *Article) error {
	if article == nil {
		return fmt.Errorf("%w: article is nil", ErrInvalidArticle)
	}

	if article.URL == "" {
		return fmt.Errorf("%w: %w", ErrInvalidArticle, ErrEmptyURL)
	}

	if article.Title == "" {
		return fmt.Errorf("%w: %w", ErrInvalidArticle, ErrEmptyTitle)
	}

	if article.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidArticle, ErrEmptyContent)
	}

	return nil
}

// ValidateChunks checks that a chunk set for one article has contiguous
// zero-based indices and non-empty content.
func ValidateChunks(chunks []*Chunk) error {
	for i, chunk := range chunks {
		if chunk.ChunkIndex != i {
			return fmt.Errorf("chunk index %d at position %d: indices must be contiguous from zero", chunk.ChunkIndex, i)
		}
		if chunk.Content == "" {
			return fmt.Errorf("chunk %d: %w", i, ErrEmptyContent)
		}
	}
	return nil
}

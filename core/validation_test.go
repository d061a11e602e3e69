package core

import (
	"errors"
	"testing"
	"time"
)

func TestValidateArticle(t *testing.T) {
	published := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		article *Article
		wantErr error
	}{
		{
			name: "valid article",
			article: &Article{
				URL:           "https://example.org/a",
				Title:         "On the Subject",
				Content:       "Body text.",
				PublishedDate: published,
			},
			wantErr: nil,
		},
		{
			name: "valid with ID zero",
			article: &Article{
				ID:      0,
				URL:     "https://example.org/b",
				Title:   "Untracked",
				Content: "Body.",
			},
			wantErr: nil,
		},
		{
			name: "valid without author",
			article: &Article{
				URL:     "https://example.org/c",
				Title:   "Anonymous",
				Content: "Body.",
			},
			wantErr: nil,
		},
		{
			name:    "nil article",
			article: nil,
			wantErr: ErrInvalidArticle,
		},
		{
			name: "empty url",
			article: &Article{
				Title:   "No URL",
				Content: "Body.",
			},
			wantErr: ErrEmptyURL,
		},
		{
			name: "empty title",
			article: &Article{
				URL:     "https://example.org/d",
				Content: "Body.",
			},
			wantErr: ErrEmptyTitle,
		},
		{
			name: "empty content",
			article: &Article{
				URL:   "https://example.org/e",
				Title: "Empty",
			},
			wantErr: ErrEmptyContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArticle(tt.article)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateArticle() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateArticle() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateChunks(t *testing.T) {
	tests := []struct {
		name    string
		chunks  []*Chunk
		wantErr bool
	}{
		{
			name:   "empty set",
			chunks: nil,
		},
		{
			name: "contiguous indices",
			chunks: []*Chunk{
				{ChunkIndex: 0, Content: "first"},
				{ChunkIndex: 1, Content: "second"},
				{ChunkIndex: 2, Content: "third"},
			},
		},
		{
			name: "gap in indices",
			chunks: []*Chunk{
				{ChunkIndex: 0, Content: "first"},
				{ChunkIndex: 2, Content: "third"},
			},
			wantErr: true,
		},
		{
			name: "not zero-based",
			chunks: []*Chunk{
				{ChunkIndex: 1, Content: "first"},
			},
			wantErr: true,
		},
		{
			name: "empty content",
			chunks: []*Chunk{
				{ChunkIndex: 0, Content: ""},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunks(tt.chunks)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateChunks() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParsedQuery_HasContent(t *testing.T) {
	tests := []struct {
		name  string
		query ParsedQuery
		want  bool
	}{
		{name: "empty", query: ParsedQuery{}, want: false},
		{name: "semantic terms", query: ParsedQuery{SemanticTerms: []string{"revolution"}}, want: true},
		{name: "exact phrase only", query: ParsedQuery{ExactPhrases: []string{"permanent revolution"}}, want: true},
		{name: "title phrase only", query: ParsedQuery{TitlePhrases: []string{"theory"}}, want: true},
		{name: "author only", query: ParsedQuery{AuthorFilter: "Alan Woods"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.HasContent(); got != tt.want {
				t.Errorf("HasContent() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Package chunker splits long articles into overlapping windows on
// paragraph boundaries. Articles at or under the threshold produce no
// chunks and are indexed whole.
package chunker

import (
	"log/slog"
	"strings"

	"github.com/domwxyz/marxist-search/core"
)

// Config controls chunking behavior.
type Config struct {
	// ThresholdWords is the word count above which an article is chunked.
	ThresholdWords int

	// ChunkSizeWords is the target size of each chunk.
	ChunkSizeWords int

	// OverlapWords is the number of words carried over between
	// consecutive chunks.
	OverlapWords int

	// SectionMarkers are the split boundaries tried in order: the first
	// marker delimits sections; later markers re-split sections still
	// over the chunk size before the word-window fallback.
	SectionMarkers []string
}

// DefaultConfig returns the production chunking parameters.
func DefaultConfig() Config {
	return Config{
		ThresholdWords: 3500,
		ChunkSizeWords: 1000,
		OverlapWords:   200,
		SectionMarkers: []string{"\n\n", "\n"},
	}
}

// Chunker splits article bodies into chunks.
type Chunker struct {
	cfg    Config
	logger *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) {
		c.logger = logger
	}
}

// New creates a Chunker. Zero config fields fall back to defaults.
func New(cfg Config, opts ...Option) *Chunker {
	def := DefaultConfig()
	if cfg.ThresholdWords <= 0 {
		cfg.ThresholdWords = def.ThresholdWords
	}
	if cfg.ChunkSizeWords <= 0 {
		cfg.ChunkSizeWords = def.ChunkSizeWords
	}
	if cfg.OverlapWords < 0 {
		cfg.OverlapWords = def.OverlapWords
	}
	if len(cfg.SectionMarkers) == 0 {
		cfg.SectionMarkers = def.SectionMarkers
	}

	c := &Chunker{
		cfg:    cfg,
		logger: slog.Default().With("component", "chunker"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ShouldChunk reports whether the text exceeds the chunking threshold.
func (c *Chunker) ShouldChunk(text string) bool {
	return len(strings.Fields(text)) > c.cfg.ThresholdWords
}

// ChunkArticle splits an article's content into chunks. Returns nil when
// the article is at or under the threshold. Chunk indices are zero-based
// and contiguous; StartPosition is the character offset into the body.
func (c *Chunker) ChunkArticle(article *core.Article) []*core.Chunk {
	wordCount := article.WordCount
	if wordCount == 0 {
		wordCount = len(strings.Fields(article.Content))
	}
	if wordCount <= c.cfg.ThresholdWords {
		return nil
	}

	c.logger.Info("chunking article", "article_id", article.ID, "words", wordCount)

	pieces := c.chunkBySections(article.Content)
	if len(pieces) < 2 {
		// Section structure too flat to split; fall back to plain
		// word windows.
		pieces = c.chunkByWords(article.Content, wordCount)
	}

	chunks := make([]*core.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = &core.Chunk{
			ArticleID:     article.ID,
			ChunkIndex:    i,
			Content:       p.text,
			WordCount:     len(strings.Fields(p.text)),
			StartPosition: p.start,
		}
	}

	c.logger.Info("created chunks", "article_id", article.ID, "chunks", len(chunks))
	return chunks
}

type piece struct {
	text  string
	start int
}

type paragraph struct {
	text  string
	start int
	words int
}

// chunkBySections accumulates paragraphs until the target size would be
// exceeded, flushes, and seeds the next chunk with trailing paragraphs
// totalling at most OverlapWords.
func (c *Chunker) chunkBySections(text string) []piece {
	paragraphs := c.splitSections(text)

	var chunks []piece
	var current []paragraph
	currentWords := 0
	chunkStart := 0

	for _, para := range paragraphs {
		// A single paragraph over the target size is windowed on word
		// boundaries by itself.
		if para.words > c.cfg.ChunkSizeWords {
			if len(current) > 0 {
				chunks = append(chunks, piece{text: joinParagraphs(current), start: chunkStart})
			}
			chunks = append(chunks, c.wordWindows(para.text, para.start, c.cfg.ChunkSizeWords)...)
			current = nil
			currentWords = 0
			continue
		}

		if currentWords+para.words > c.cfg.ChunkSizeWords && len(current) > 0 {
			chunks = append(chunks, piece{text: joinParagraphs(current), start: chunkStart})

			overlap := c.overlapParagraphs(current)
			current = append(overlap, para)
			chunkStart = para.start
			currentWords = 0
			for _, p := range current {
				currentWords += p.words
			}
			continue
		}

		if len(current) == 0 {
			chunkStart = para.start
		}
		current = append(current, para)
		currentWords += para.words
	}

	if len(current) > 0 {
		chunks = append(chunks, piece{text: joinParagraphs(current), start: chunkStart})
	}
	return chunks
}

// overlapParagraphs collects trailing paragraphs whose combined word
// count stays within OverlapWords, preserving order.
func (c *Chunker) overlapParagraphs(paragraphs []paragraph) []paragraph {
	var overlap []paragraph
	words := 0
	for i := len(paragraphs) - 1; i >= 0; i-- {
		p := paragraphs[i]
		if words+p.words > c.cfg.OverlapWords {
			break
		}
		overlap = append([]paragraph{p}, overlap...)
		words += p.words
	}
	return overlap
}

// chunkByWords windows the whole text on word boundaries. Used when
// paragraph structure cannot produce at least two chunks; the window
// shrinks so a just-over-threshold article still splits.
func (c *Chunker) chunkByWords(text string, wordCount int) []piece {
	size := c.cfg.ChunkSizeWords
	if size >= wordCount {
		size = (wordCount + 1) / 2
	}
	return c.wordWindows(text, 0, size)
}

// wordWindows slices text into overlapping word windows of the given
// size. base is added to every start offset so windows over a paragraph
// report positions in the full body.
func (c *Chunker) wordWindows(text string, base, size int) []piece {
	words := splitWords(text)

	step := size - c.cfg.OverlapWords
	if step < 1 {
		step = size
	}

	var chunks []piece
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		first, last := words[start], words[end-1]
		chunks = append(chunks, piece{
			text:  text[first.start : last.start+len(last.text)],
			start: base + first.start,
		})
		if end == len(words) {
			break
		}
	}
	return chunks
}

// splitSections splits on the primary marker, then re-splits any
// section still over the chunk size on each remaining marker in turn.
// A section no marker can break up is left whole for the word-window
// fallback in chunkBySections.
func (c *Chunker) splitSections(text string) []paragraph {
	markers := c.cfg.SectionMarkers
	sections := splitOnMarker(text, 0, markers[0])

	for _, marker := range markers[1:] {
		refined := make([]paragraph, 0, len(sections))
		for _, sec := range sections {
			if sec.words > c.cfg.ChunkSizeWords {
				if subs := splitOnMarker(sec.text, sec.start, marker); len(subs) > 1 {
					refined = append(refined, subs...)
					continue
				}
			}
			refined = append(refined, sec)
		}
		sections = refined
	}
	return sections
}

// splitOnMarker splits on runs of the marker, tracking each segment's
// character offset in the original body. base is added to every offset
// so nested splits report positions in the full text.
func splitOnMarker(text string, base int, marker string) []paragraph {
	var paragraphs []paragraph
	offset := 0
	for offset < len(text) {
		next := strings.Index(text[offset:], marker)
		var body string
		if next == -1 {
			body = text[offset:]
			next = len(text) - offset
		} else {
			body = text[offset : offset+next]
		}

		if trimmed := strings.TrimSpace(body); trimmed != "" {
			start := offset + strings.Index(body, trimmed[:1])
			paragraphs = append(paragraphs, paragraph{
				text:  trimmed,
				start: base + start,
				words: len(strings.Fields(trimmed)),
			})
		}

		offset += next
		if offset < len(text) {
			offset += len(marker)
		}
		// Swallow any trailing blank-line run
		for offset < len(text) && (text[offset] == '\n' || text[offset] == '\r') {
			offset++
		}
	}
	return paragraphs
}

func joinParagraphs(paragraphs []paragraph) string {
	parts := make([]string, len(paragraphs))
	for i, p := range paragraphs {
		parts[i] = p.text
	}
	return strings.Join(parts, "\n\n")
}

type word struct {
	text  string
	start int
}

// splitWords returns whitespace-delimited words with byte offsets.
func splitWords(text string) []word {
	var words []word
	inWord := false
	start := 0
	for i := 0; i < len(text); i++ {
		isSpace := text[i] == ' ' || text[i] == '\n' || text[i] == '\t' || text[i] == '\r'
		if !isSpace && !inWord {
			inWord = true
			start = i
		} else if isSpace && inWord {
			inWord = false
			words = append(words, word{text: text[start:i], start: start})
		}
	}
	if inWord {
		words = append(words, word{text: text[start:], start: start})
	}
	return words
}

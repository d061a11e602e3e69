package search

import (
	"fmt"
	"strings"

	"github.com/domwxyz/marxist-search/core"
)

const (
	// MaxQueryLength is the hard cap on raw query strings.
	MaxQueryLength = 1000

	// maxPhraseLength caps a single quoted phrase or field value.
	maxPhraseLength = 500
)

// Whitelisted field names for field:"value" clauses.
var queryFields = map[string]bool{
	"title":  true,
	"author": true,
}

// ParseQuery splits a power-user query into semantic terms, exact
// phrases, title phrases, and an author filter.
//
// Syntax, scanned left to right in a single pass:
//
//	"exact phrase"          quoted phrase that must appear verbatim
//	title:"some words"      phrase that must appear in the title
//	author:"Some Name"      exact author match (last one wins)
//	anything else           semantic terms
//
// Field names are case-insensitive. Unknown fields and unterminated
// quotes fall back to literal words. Returns core.ErrQueryTooLong for
// queries over MaxQueryLength characters.
func ParseQuery(query string) (*core.ParsedQuery, error) {
	if len(query) > MaxQueryLength {
		return nil, fmt.Errorf("%w: %d characters (max %d)", core.ErrQueryTooLong, len(query), MaxQueryLength)
	}
	query = strings.ReplaceAll(query, "\x00", "")

	parsed := &core.ParsedQuery{}
	q := strings.TrimSpace(query)

	i := 0
	for i < len(q) {
		switch {
		case q[i] == ' ' || q[i] == '\t' || q[i] == '\n' || q[i] == '\r':
			i++

		case q[i] == '"':
			// Bare quoted phrase. An unterminated quote is dropped and
			// whatever follows parses as ordinary words.
			end := strings.IndexByte(q[i+1:], '"')
			if end < 0 {
				i++
				continue
			}
			if phrase := sanitizePhrase(q[i+1 : i+1+end]); phrase != "" {
				parsed.ExactPhrases = append(parsed.ExactPhrases, phrase)
			}
			i += end + 2

		default:
			start := i
			for i < len(q) && !isSpace(q[i]) && q[i] != '"' {
				i++
			}
			token := q[start:i]

			// field:"value"
			if i < len(q) && q[i] == '"' && strings.HasSuffix(token, ":") {
				field := strings.ToLower(token[:len(token)-1])
				if queryFields[field] {
					end := strings.IndexByte(q[i+1:], '"')
					if end >= 0 {
						value := sanitizePhrase(q[i+1 : i+1+end])
						i += end + 2
						if value != "" {
							if field == "title" {
								parsed.TitlePhrases = append(parsed.TitlePhrases, value)
							} else {
								parsed.AuthorFilter = value
							}
						}
						continue
					}
					// Unterminated field value: the field token becomes a
					// word and the quote is dropped.
					parsed.SemanticTerms = append(parsed.SemanticTerms, token)
					i++
					continue
				}
			}
			// Unknown fields land here too: the token becomes a word and
			// any following quoted section parses as a bare phrase.
			if token != "" {
				parsed.SemanticTerms = append(parsed.SemanticTerms, token)
			}
		}
	}

	return parsed, nil
}

// sanitizePhrase trims a quoted value and caps its length.
func sanitizePhrase(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > maxPhraseLength {
		value = value[:maxPhraseLength]
	}
	return value
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// RenderQuery reassembles a parsed query into query syntax. Parsing the
// rendered string yields an equivalent ParsedQuery.
func RenderQuery(parsed *core.ParsedQuery) string {
	var parts []string
	parts = append(parts, parsed.SemanticTerms...)
	for _, phrase := range parsed.ExactPhrases {
		parts = append(parts, `"`+phrase+`"`)
	}
	for _, phrase := range parsed.TitlePhrases {
		parts = append(parts, `title:"`+phrase+`"`)
	}
	if parsed.AuthorFilter != "" {
		parts = append(parts, `author:"`+parsed.AuthorFilter+`"`)
	}
	return strings.Join(parts, " ")
}

// semanticQuery is the text sent to the embedder: the semantic terms
// joined, or the whole raw query when nothing but phrases and filters
// survived parsing.
func semanticQuery(parsed *core.ParsedQuery, raw string) string {
	if len(parsed.SemanticTerms) > 0 {
		return strings.Join(parsed.SemanticTerms, " ")
	}
	return strings.TrimSpace(raw)
}

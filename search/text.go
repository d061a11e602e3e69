package search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Stop words excluded from all-terms-in-title checks.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// tokenizeAndFilter splits text into words, lowercases, trims punctuation,
// and removes stop words.
func tokenizeAndFilter(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}
	return filtered
}

// containsAllWords reports whether every filtered query word appears in
// the document.
func containsAllWords(document, query string) bool {
	queryWords := tokenizeAndFilter(query)
	if len(queryWords) == 0 {
		return false
	}

	docWords := tokenizeAndFilter(document)
	docWordSet := make(map[string]bool, len(docWords))
	for _, word := range docWords {
		docWordSet[word] = true
	}

	for _, qWord := range queryWords {
		if !docWordSet[qWord] {
			return false
		}
	}
	return true
}

// isWordRune reports whether r belongs to a word for boundary purposes.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// indexWholeWord finds the first case-insensitive whole-word occurrence
// of needle in haystack. Both sides of the match must be non-word runes
// or string edges. Returns -1 if absent.
func indexWholeWord(haystack, needle string) int {
	if needle == "" {
		return -1
	}
	h := strings.ToLower(haystack)
	n := strings.ToLower(needle)

	for from := 0; ; {
		i := strings.Index(h[from:], n)
		if i < 0 {
			return -1
		}
		i += from

		before, _ := utf8.DecodeLastRuneInString(h[:i])
		after, _ := utf8.DecodeRuneInString(h[i+len(n):])
		leftOK := i == 0 || !isWordRune(before)
		rightOK := i+len(n) == len(h) || !isWordRune(after)
		if leftOK && rightOK {
			return i
		}
		from = i + 1
	}
}

// containsWholeWord reports whether needle occurs in haystack as a
// whole word (case-insensitive).
func containsWholeWord(haystack, needle string) bool {
	return indexWholeWord(haystack, needle) >= 0
}

// countWholeWord counts non-overlapping case-insensitive whole-word
// occurrences of needle in haystack.
func countWholeWord(haystack, needle string) int {
	if needle == "" {
		return 0
	}
	h := strings.ToLower(haystack)
	n := strings.ToLower(needle)

	count := 0
	for from := 0; from <= len(h)-len(n); {
		i := strings.Index(h[from:], n)
		if i < 0 {
			break
		}
		i += from

		before, _ := utf8.DecodeLastRuneInString(h[:i])
		after, _ := utf8.DecodeRuneInString(h[i+len(n):])
		leftOK := i == 0 || !isWordRune(before)
		rightOK := i+len(n) == len(h) || !isWordRune(after)
		if leftOK && rightOK {
			count++
			from = i + len(n)
		} else {
			from = i + 1
		}
	}
	return count
}

// excerptLength is the approximate size of result excerpts.
const excerptLength = 200

// buildExcerpt returns ~200 characters of content centered on the first
// whole-word occurrence of phrase. With no phrase or no match, the
// excerpt is the head of the content. Cuts land on word boundaries.
func buildExcerpt(content, phrase string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}

	at := -1
	if phrase != "" {
		at = indexWholeWord(content, phrase)
	}

	start := 0
	if at > excerptLength/2 {
		start = at - excerptLength/2
		// Back up to a word boundary
		for start > 0 && isWordRune(rune(content[start-1])) {
			start--
		}
	}

	end := start + excerptLength
	if end >= len(content) {
		end = len(content)
	} else {
		for end > start && isWordRune(rune(content[end])) {
			end--
		}
	}

	excerpt := strings.TrimSpace(content[start:end])
	if start > 0 {
		excerpt = "…" + excerpt
	}
	if end < len(content) {
		excerpt += "…"
	}
	return excerpt
}

package search

import (
	"math"
	"strings"
	"time"

	"github.com/domwxyz/marxist-search/config"
	"github.com/domwxyz/marxist-search/core"
)

// Candidate is one retrieved document moving through the rerank
// pipeline. BaseScore is the cosine similarity snapshot taken at
// retrieval; Score is always recomputed from it, so reranking the same
// slice twice yields identical scores.
type Candidate struct {
	Doc       *core.Document
	BaseScore float64
	Score     float64

	// Content is the candidate's text, fetched for the top keyword
	// rerank window. Empty outside that window.
	Content string

	keywordHits int
}

// Reranker applies the multi-signal score adjustment over retrieved
// candidates: a distribution-adaptive similarity floor, then additive
// boosts for title terms, phrase presence, keyword density, semantic
// discovery, and recency, all scaled down for long queries.
type Reranker struct {
	cfg    config.RerankingConfig
	filter config.SemanticFilterConfig
}

// NewReranker builds a reranker from configuration.
func NewReranker(cfg config.RerankingConfig, filter config.SemanticFilterConfig) *Reranker {
	return &Reranker{cfg: cfg, filter: filter}
}

// Rerank filters candidates below the similarity floor and recomputes
// every survivor's Score from its BaseScore. Candidates must arrive
// sorted by BaseScore descending; input order is preserved.
func (r *Reranker) Rerank(candidates []*Candidate, parsed *core.ParsedQuery, now time.Time) []*Candidate {
	if len(candidates) == 0 {
		return candidates
	}

	floor := r.similarityFloor(candidates)
	survivors := make([]*Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.BaseScore >= floor {
			survivors = append(survivors, c)
		}
	}

	multiplier := r.queryLengthMultiplier(len(parsed.SemanticTerms))
	phrases := boostPhrases(parsed)

	for i, c := range survivors {
		boost := 0.0
		c.keywordHits = 0

		// Keyword hits are only counted inside the content window;
		// hit-dependent signals stay off for candidates never counted.
		observed := i < r.cfg.KeywordRerankTopN && c.Content != ""
		if observed {
			c.keywordHits = r.countKeywordHits(c.Content, parsed.SemanticTerms)
		}

		if r.cfg.TitleBoostEnabled {
			boost += r.titleTermBoost(c.Doc.Title, parsed.SemanticTerms)
		}
		if r.cfg.KeywordBoostEnabled && observed {
			boost += r.keywordBoost(c)
		}
		if r.cfg.PhrasePresence.Enabled {
			boost += r.phrasePresenceBoost(c, parsed, phrases)
		}
		if r.cfg.SemanticDiscovery.Enabled && observed &&
			c.BaseScore >= r.cfg.SemanticDiscovery.MinSemanticScore &&
			c.keywordHits <= r.cfg.SemanticDiscovery.MaxKeywordHits {
			boost += r.cfg.SemanticDiscovery.Boost
		}
		if r.cfg.Recency.Enabled {
			boost += r.recencyBoost(c.Doc.PublishedDate, now)
		}

		c.Score = c.BaseScore + multiplier*boost
	}
	return survivors
}

// similarityFloor derives the cutoff from the candidate score
// distribution: max(minAbsolute, mean - m*std), where m adapts to the
// spread when distribution-adaptive mode is on. Tight clusters keep a
// lenient cut; wide spreads cut aggressively.
func (r *Reranker) similarityFloor(candidates []*Candidate) float64 {
	mean, std := scoreDistribution(candidates)

	m := r.filter.StdMultiplier
	if r.filter.DistributionAdaptive {
		switch {
		case std < r.filter.TightClusterStdThreshold:
			m = r.filter.TightClusterMultiplier
		case std > r.filter.WideSpreadStdThreshold:
			m = r.filter.WideSpreadMultiplier
		}
	}

	floor := mean - m*std
	if floor < r.filter.MinAbsoluteThreshold {
		floor = r.filter.MinAbsoluteThreshold
	}
	return floor
}

func scoreDistribution(candidates []*Candidate) (mean, std float64) {
	for _, c := range candidates {
		mean += c.BaseScore
	}
	mean /= float64(len(candidates))

	var variance float64
	for _, c := range candidates {
		d := c.BaseScore - mean
		variance += d * d
	}
	variance /= float64(len(candidates))
	return mean, math.Sqrt(variance)
}

// queryLengthMultiplier shrinks boost magnitudes for longer queries,
// where individual term matches carry less signal.
func (r *Reranker) queryLengthMultiplier(terms int) float64 {
	q := r.cfg.QueryLength
	switch {
	case terms <= q.ShortTerms:
		return 1.0
	case terms <= q.MediumTerms:
		return q.MediumMultiplier
	default:
		return q.LongMultiplier
	}
}

// titleTermBoost scales with the fraction of semantic terms appearing
// as whole words in the title, up to TitleBoostMax.
func (r *Reranker) titleTermBoost(title string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	matched := 0
	for _, term := range terms {
		if containsWholeWord(title, term) {
			matched++
		}
	}
	return r.cfg.TitleBoostMax * float64(matched) / float64(len(terms))
}

// boostPhrases returns the phrases fed to the phrase-presence signal:
// the explicit exact phrases plus, for multi-term queries, the semantic
// terms joined as one implicit phrase.
func boostPhrases(parsed *core.ParsedQuery) []string {
	phrases := append([]string(nil), parsed.ExactPhrases...)
	if len(parsed.SemanticTerms) >= 2 {
		phrases = append(phrases, strings.Join(parsed.SemanticTerms, " "))
	}
	return phrases
}

// phrasePresenceBoost awards the best matching tier: a phrase in the
// title, a phrase in the content, or all non-stopword terms scattered
// through the title. Only one tier applies.
func (r *Reranker) phrasePresenceBoost(c *Candidate, parsed *core.ParsedQuery, phrases []string) float64 {
	for _, phrase := range phrases {
		if containsWholeWord(c.Doc.Title, phrase) {
			return r.cfg.PhrasePresence.InTitle
		}
	}
	if c.Content != "" {
		for _, phrase := range phrases {
			if containsWholeWord(c.Content, phrase) {
				return r.cfg.PhrasePresence.InContent
			}
		}
	}
	if len(parsed.SemanticTerms) >= 2 &&
		containsAllWords(c.Doc.Title, strings.Join(parsed.SemanticTerms, " ")) {
		return r.cfg.PhrasePresence.AllTermsInTitle
	}
	return 0
}

// countKeywordHits totals whole-word occurrences of the leading query
// terms in the content, capped at KeywordMaxQueryTerms terms.
func (r *Reranker) countKeywordHits(content string, terms []string) int {
	if len(terms) > r.cfg.KeywordMaxQueryTerms {
		terms = terms[:r.cfg.KeywordMaxQueryTerms]
	}
	total := 0
	for _, term := range terms {
		total += countWholeWord(content, term)
	}
	return total
}

// keywordBoost rewards literal term density in the candidate's content.
// Density is occurrences over a length normalizer, so a passing mention
// in a long article scores below a focused short one. Saturates at
// KeywordBoostMax.
func (r *Reranker) keywordBoost(c *Candidate) float64 {
	total := c.keywordHits
	if total == 0 {
		return 0
	}

	words := c.Doc.WordCount
	if words <= 0 {
		words = len(strings.Fields(c.Content))
	}

	var normalizer float64
	if r.cfg.KeywordLengthNormalization == "linear" {
		normalizer = float64(words)
		if normalizer < 1 {
			normalizer = 1
		}
	} else {
		normalizer = math.Log(float64(words) + r.cfg.KeywordLogBaseOffset)
	}

	density := float64(total) / normalizer * r.cfg.KeywordDensityScale
	boost := r.cfg.KeywordBoostScale * math.Log1p(density)
	if boost > r.cfg.KeywordBoostMax {
		boost = r.cfg.KeywordBoostMax
	}
	return boost
}

// recencyBoost awards at most one tier by publication age.
func (r *Reranker) recencyBoost(published time.Time, now time.Time) float64 {
	if published.IsZero() {
		return 0
	}
	age := now.Sub(published)
	switch {
	case age < 0:
		return 0
	case age <= 7*24*time.Hour:
		return r.cfg.Recency.Week
	case age <= 30*24*time.Hour:
		return r.cfg.Recency.Month
	case age <= 90*24*time.Hour:
		return r.cfg.Recency.Quarter
	case age <= 365*24*time.Hour:
		return r.cfg.Recency.Year
	case age <= 3*365*24*time.Hour:
		return r.cfg.Recency.ThreeYears
	default:
		return 0
	}
}

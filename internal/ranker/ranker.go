// Package ranker scores candidates by topical relevance and freshness and
// removes in-batch duplicates by canonical URL.
package ranker

import (
	"sort"
	"strings"
	"time"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/domain"
)

// Signal weights. Scoring is additive over independent signals.
const (
	aiWeight     = 5
	domainWeight = 4
	rigorWeight  = 2
	promoWeight  = -3
	sourceWeight = 1
)

// Ranker orders candidates by score, ties broken by recency.
type Ranker struct {
	cfg config.RankingConfig
	now func() time.Time
}

// New builds a ranker over the configured keyword sets.
func New(cfg config.RankingConfig) *Ranker {
	return &Ranker{cfg: cfg, now: time.Now}
}

// Rank deduplicates by canonical URL (first seen wins; scoring is
// deterministic per content so duplicates tie anyway), scores every
// survivor, and returns them sorted best-first.
func (r *Ranker) Rank(candidates []domain.Candidate) []domain.Candidate {
	seen := make(map[string]struct{}, len(candidates))
	ranked := make([]domain.Candidate, 0, len(candidates))

	for _, c := range candidates {
		key := c.Key()
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		c.Score = r.score(c)
		ranked = append(ranked, c)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if !ranked[i].PublishedAt.Equal(ranked[j].PublishedAt) {
			return ranked[i].PublishedAt.After(ranked[j].PublishedAt)
		}
		return ranked[i].Key() < ranked[j].Key()
	})

	return ranked
}

func (r *Ranker) score(c domain.Candidate) int {
	text := strings.ToLower(c.Title + " " + c.Description)

	score := 0
	if matchesAny(text, r.cfg.AITerms) {
		score += aiWeight
	}
	if matchesAny(text, r.cfg.DomainTerms) {
		score += domainWeight
	}
	if matchesAny(text, r.cfg.RigorTerms) {
		score += rigorWeight
	}
	if matchesAny(text, r.cfg.PromoTerms) {
		score += promoWeight
	}
	if c.Source != "" && !r.isAggregatorSource(c.Source) {
		score += sourceWeight
	}
	score += r.recencyBonus(c.PublishedAt)

	return score
}

// recencyBonus is max(0, W - ageInDays) for freshness window W.
func (r *Ranker) recencyBonus(published time.Time) int {
	w := r.cfg.FreshnessWindowDays
	if w <= 0 || published.IsZero() {
		return 0
	}
	ageDays := int(r.now().Sub(published).Hours() / 24)
	if ageDays < 0 {
		ageDays = 0
	}
	if ageDays >= w {
		return 0
	}
	return w - ageDays
}

func (r *Ranker) isAggregatorSource(source string) bool {
	for _, agg := range r.cfg.AggregatorSources {
		if strings.EqualFold(source, agg) {
			return true
		}
	}
	return false
}

// matchesAny reports whether text contains any of the terms. Short terms
// ("ai") are matched on word boundaries to avoid substring hits like
// "maintain".
func matchesAny(text string, terms []string) bool {
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if len(term) <= 3 {
			if containsWord(text, term) {
				return true
			}
			continue
		}
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

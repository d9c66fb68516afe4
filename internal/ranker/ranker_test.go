package ranker

import (
	"testing"
	"time"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/domain"
)

func testRankingConfig() config.RankingConfig {
	return config.RankingConfig{
		AITerms:             []string{"ai", "artificial intelligence", "machine learning"},
		DomainTerms:         []string{"medical", "disease", "diagnosis"},
		RigorTerms:          []string{"study", "trial", "peer-review"},
		PromoTerms:          []string{"sponsored", "webinar"},
		FreshnessWindowDays: 7,
		AggregatorSources:   []string{"Google News"},
	}
}

func fixedRanker(now time.Time) *Ranker {
	r := New(testRankingConfig())
	r.now = func() time.Time { return now }
	return r
}

func TestRankScenarioSelection(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)
	r := fixedRanker(now)

	candidates := []domain.Candidate{
		{
			Title:        "Unrelated cooking tip",
			CanonicalURL: "https://example.com/cooking",
			Source:       "Google News",
			PublishedAt:  now.Add(-30 * 24 * time.Hour),
		},
		{
			Title:        "AI diagnoses Lyme disease faster",
			CanonicalURL: "https://example.com/lyme",
			Source:       "BBC",
			PublishedAt:  now.Add(-24 * time.Hour),
		},
	}

	ranked := r.Rank(candidates)
	if ranked[0].CanonicalURL != "https://example.com/lyme" {
		t.Fatalf("relevant item should rank first, got %q", ranked[0].CanonicalURL)
	}
	if ranked[0].Score < 5 {
		t.Fatalf("AI term should contribute at least 5, got %d", ranked[0].Score)
	}
	if ranked[1].Score >= ranked[0].Score {
		t.Fatalf("cooking tip should score lower: %d vs %d", ranked[1].Score, ranked[0].Score)
	}

	top := ranked[:1]
	if top[0].Title != "AI diagnoses Lyme disease faster" {
		t.Fatalf("TAKE_TOP=1 selection wrong: %q", top[0].Title)
	}
}

func TestRankTieBreakByRecency(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)
	r := fixedRanker(now)
	// Both items are outside the freshness window so recency adds nothing
	// and the computed scores are equal.
	older := domain.Candidate{
		Title:        "Machine learning trial for disease screening",
		CanonicalURL: "https://example.com/older",
		Source:       "Nature",
		PublishedAt:  now.Add(-10 * 24 * time.Hour),
	}
	newer := older
	newer.CanonicalURL = "https://example.com/newer"
	newer.PublishedAt = now.Add(-9 * 24 * time.Hour)

	ranked := r.Rank([]domain.Candidate{older, newer})
	if ranked[0].Score != ranked[1].Score {
		t.Fatalf("scores should tie: %d vs %d", ranked[0].Score, ranked[1].Score)
	}
	if ranked[0].CanonicalURL != "https://example.com/newer" {
		t.Fatalf("later publishedAt should sort first, got %q", ranked[0].CanonicalURL)
	}
}

func TestRankDeduplicatesByCanonicalURL(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	r := fixedRanker(now)

	a := domain.Candidate{Title: "AI study", CanonicalURL: "https://example.com/x", PublishedAt: now}
	b := a // same canonical URL via a different wrapper link
	b.RawURL = "https://news.google.com/rss/articles/other"

	ranked := r.Rank([]domain.Candidate{a, b})
	if len(ranked) != 1 {
		t.Fatalf("expected in-batch dedup to keep 1, got %d", len(ranked))
	}
}

func TestScoreSignals(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)
	r := fixedRanker(now)
	old := now.Add(-30 * 24 * time.Hour)

	cases := []struct {
		name string
		c    domain.Candidate
		want int
	}{
		{
			name: "ai term plus publisher",
			c:    domain.Candidate{Title: "Artificial intelligence milestone", Source: "Reuters", PublishedAt: old},
			want: 5 + 1,
		},
		{
			name: "short ai term needs word boundary",
			c:    domain.Candidate{Title: "Maintain your garden", Source: "Reuters", PublishedAt: old},
			want: 1,
		},
		{
			name: "promo penalty",
			c:    domain.Candidate{Title: "Sponsored: a medical webinar", Source: "Reuters", PublishedAt: old},
			want: 4 - 3 + 1,
		},
		{
			name: "rigor bonus",
			c:    domain.Candidate{Title: "Peer-review of disease trial", Source: "Reuters", PublishedAt: old},
			want: 4 + 2 + 1,
		},
		{
			name: "aggregator source gets no bonus",
			c:    domain.Candidate{Title: "Nothing topical", Source: "Google News", PublishedAt: old},
			want: 0,
		},
		{
			name: "fresh item gets linear recency bonus",
			c:    domain.Candidate{Title: "Nothing topical", Source: "Google News", PublishedAt: now.Add(-2 * 24 * time.Hour)},
			want: 5, // W=7, age=2
		},
	}

	for _, tc := range cases {
		if got := r.score(tc.c); got != tc.want {
			t.Errorf("%s: score = %d, want %d", tc.name, got, tc.want)
		}
	}
}

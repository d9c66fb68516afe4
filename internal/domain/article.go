package domain

import "time"

// Candidate is a parsed feed entry prior to ranking and selection.
type Candidate struct {
	Title        string
	RawURL       string
	CanonicalURL string
	Source       string
	PublishedAt  time.Time
	Description  string
	Score        int
}

// Key returns the identity key used for deduplication. Canonicalization
// fills CanonicalURL; entries that never passed through it fall back to
// the raw link.
func (c Candidate) Key() string {
	if c.CanonicalURL != "" {
		return c.CanonicalURL
	}
	return c.RawURL
}

// Enrichment carries everything the enricher discovers about a candidate's
// target page. ImageURL is never empty after enrichment.
type Enrichment struct {
	BodyExcerpt      string
	ImageURL         string
	ImageAttribution string
}

// EnrichedItem is a candidate augmented with page content, an image, a
// category label and generated text. All fields are denormalized.
type EnrichedItem struct {
	Candidate
	Enrichment
	Category string
	Summary  string
	Content  string
}

// ToArticle maps the enriched item onto the durable record, keyed by the
// canonical URL.
func (e EnrichedItem) ToArticle() Article {
	return Article{
		Title:            e.Title,
		Summary:          e.Summary,
		Content:          e.Content,
		Category:         e.Category,
		URL:              e.Key(),
		Source:           e.Source,
		PublishedAt:      e.PublishedAt,
		ImageURL:         e.ImageURL,
		ImageAttribution: e.ImageAttribution,
	}
}

// Article is the durable record kept by the store gateway. URL holds the
// canonical form and acts as the business key across runs.
type Article struct {
	ID               int64
	Title            string
	Summary          string
	Content          string
	Category         string
	URL              string
	Source           string
	PublishedAt      time.Time
	ImageURL         string
	ImageAttribution string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

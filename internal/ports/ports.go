package ports

import (
	"context"
	"time"

	"NewsPipeline/internal/domain"
)

// FeedSource gathers candidates from all configured feed endpoints.
// Individual endpoint failures are logged and skipped inside the source.
type FeedSource interface {
	Fetch(ctx context.Context) ([]domain.Candidate, error)
}

// Canonicalizer reduces a raw link to its stable identity form. It never
// fails: unparseable input comes back best-effort normalized.
type Canonicalizer interface {
	Canonicalize(ctx context.Context, rawURL string) string
}

// Enricher fetches the candidate's page and extracts a body excerpt and a
// lead image. The returned image URL is always non-empty.
type Enricher interface {
	Enrich(ctx context.Context, item domain.Candidate, category string) domain.Enrichment
}

// ImageFinder locates a stock image for a category. ok reports whether a
// usable result was found.
type ImageFinder interface {
	Find(ctx context.Context, category string) (url, attribution string, ok bool)
}

// ArticleStore is the only surface that touches the persistent collection.
type ArticleStore interface {
	EnsureSchema(ctx context.Context) error
	ExistingByURL(ctx context.Context, urls []string) (map[string]domain.Article, error)
	UpsertByURL(ctx context.Context, article domain.Article) error
	DedupeByURL(ctx context.Context) (int, error)
	PruneToNewest(ctx context.Context, n int) (int, error)
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// Package feed fetches the configured syndication endpoints and parses
// their entries into candidates. A failing endpoint is logged and skipped;
// it never aborts the run.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

var (
	tagExpr    = regexp.MustCompile(`<[^>]*>`)
	spaceExpr  = regexp.MustCompile(`\s+`)
	suffixExpr = regexp.MustCompile(`^(.*?)\s*-\s*([^-]+)$`)
)

// knownPublishers is consulted when an aggregator title carries no
// publisher suffix.
var knownPublishers = []string{
	"Nature", "Science", "MIT News", "Stanford", "NIH", "FDA", "Google", "DeepMind",
	"JAMA", "Lancet", "NEJM", "Forbes", "Reuters", "BBC", "CNN Health", "Harvard",
	"Johns Hopkins", "Mayo Clinic", "Cleveland Clinic", "Wired", "TechCrunch",
}

// Client gathers candidates from a fixed list of RSS/Atom endpoints.
type Client struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	cfg        config.FeedConfig
	logger     *slog.Logger
	now        func() time.Time
}

var _ ports.FeedSource = (*Client)(nil)

// NewClient wires an HTTP client; a nil client gets a default with the
// configured timeout.
func NewClient(httpClient *http.Client, cfg config.FeedConfig, logger *slog.Logger) *Client {
	if httpClient == nil {
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Fetch walks every endpoint and collects candidates up to the per-feed and
// global caps. Endpoint failures are logged and skipped.
func (c *Client) Fetch(ctx context.Context) ([]domain.Candidate, error) {
	var gathered []domain.Candidate

	for _, endpoint := range c.cfg.Endpoints {
		if c.capReached(len(gathered)) {
			break
		}

		parsed, err := c.fetchFeed(ctx, endpoint)
		if err != nil {
			c.warn("feed fetch failed", "endpoint", endpoint, "error", err)
			continue
		}

		perFeed := 0
		for _, item := range parsed.Items {
			if c.capReached(len(gathered)) {
				break
			}
			if c.cfg.PerFeedCap > 0 && perFeed >= c.cfg.PerFeedCap {
				break
			}

			candidate, ok := c.toCandidate(item, parsed.Title)
			if !ok {
				continue
			}
			gathered = append(gathered, candidate)
			perFeed++
		}
	}

	return gathered, nil
}

func (c *Client) capReached(n int) bool {
	return c.cfg.CandidateCap > 0 && n >= c.cfg.CandidateCap
}

func (c *Client) fetchFeed(ctx context.Context, endpoint string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	parsed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return parsed, nil
}

// toCandidate converts one feed entry; entries without a usable title or
// link are discarded.
func (c *Client) toCandidate(item *gofeed.Item, feedTitle string) (domain.Candidate, bool) {
	rawTitle := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	if rawTitle == "" || link == "" {
		return domain.Candidate{}, false
	}

	published := c.now().UTC()
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.UTC()
	}

	title, source := splitTitleSource(rawTitle)
	if source == "" {
		source = strings.TrimSpace(feedTitle)
	}

	return domain.Candidate{
		Title:       title,
		RawURL:      link,
		Source:      source,
		PublishedAt: published,
		Description: cleanDescription(item.Description),
	}, true
}

// splitTitleSource strips an aggregator's " - Publisher" suffix and reports
// the publisher. Short remainders keep the original title to avoid eating
// hyphenated headlines.
func splitTitleSource(title string) (string, string) {
	if m := suffixExpr.FindStringSubmatch(title); m != nil {
		stripped := strings.TrimSpace(m[1])
		source := strings.TrimSpace(m[2])
		if len(stripped) > 20 && source != "" && len(source) < 50 && !strings.Contains(source, "http") {
			return stripped, source
		}
	}

	lower := strings.ToLower(title)
	for _, pub := range knownPublishers {
		if strings.Contains(lower, strings.ToLower(pub)) {
			return title, pub
		}
	}
	return title, ""
}

func cleanDescription(desc string) string {
	desc = tagExpr.ReplaceAllString(desc, " ")
	desc = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&apos;", "'",
	).Replace(desc)
	return strings.TrimSpace(spaceExpr.ReplaceAllString(desc, " "))
}

func (c *Client) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

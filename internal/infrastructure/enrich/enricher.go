// Package enrich fetches a candidate's page and extracts readable body
// text and a lead image. Every failure degrades: the body falls back to the
// feed description and then the title, the image falls back through stock
// search to the placeholder pool. Enrichment never leaves a field empty.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/infrastructure/images"
	"NewsPipeline/internal/ports"
)

const (
	maxParagraphs = 5
	minParagraph  = 40
	minBody       = 120
	minFallback   = 40
)

var boilerplateMarkers = []string{
	"cookie", "subscribe", "newsletter", "sign up", "sign in", "advertisement",
	"privacy policy", "consent", "accept all", "your browser",
}

// junkImageMarkers are matched on word boundaries so that URLs like
// /silicon-chip.jpg are not mistaken for icons.
var junkImageMarkers = []string{
	"logo", "sprite", "icon", "favicon", "avatar", "placeholder", "1x1",
}

// Enricher extracts page content and discovers a lead image.
type Enricher struct {
	client    *http.Client
	userAgent string
	finder    ports.ImageFinder
	pool      *images.Pool
	logger    *slog.Logger
}

var _ ports.Enricher = (*Enricher)(nil)

// New wires an HTTP client for page fetches; finder may be nil when no
// stock-photo provider is configured.
func New(client *http.Client, userAgent string, finder ports.ImageFinder, pool *images.Pool, logger *slog.Logger) *Enricher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if pool == nil {
		pool = images.DefaultPool()
	}
	return &Enricher{
		client:    client,
		userAgent: userAgent,
		finder:    finder,
		pool:      pool,
		logger:    logger,
	}
}

// Enrich fetches the item's canonical URL and assembles body and image.
// Fetch errors produce an empty page and the fallback chain takes over.
func (e *Enricher) Enrich(ctx context.Context, item domain.Candidate, category string) domain.Enrichment {
	doc, err := e.fetchDocument(ctx, item.Key())
	if err != nil {
		e.debug("page fetch failed", "url", item.Key(), "error", err)
		doc = nil
	}

	body := ""
	metaImage := ""
	if doc != nil {
		body = extractBody(doc)
		metaImage = extractMetaImage(doc)
	}

	if len(body) < minBody {
		body = item.Description
	}
	if len(body) < minFallback {
		body = item.Title
	}

	enr := domain.Enrichment{BodyExcerpt: body}

	if metaImage != "" {
		enr.ImageURL = metaImage
		enr.ImageAttribution = item.Source
		return enr
	}

	if e.finder != nil {
		if url, attribution, ok := e.finder.Find(ctx, category); ok {
			enr.ImageURL = url
			enr.ImageAttribution = attribution
			return enr
		}
	}

	enr.ImageURL, enr.ImageAttribution = e.pool.Pick(category, item.Key())
	return enr
}

func (e *Enricher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return doc, nil
}

// extractBody collects the longest run of paragraph text inside likely
// content containers, skipping boilerplate lines.
func extractBody(doc *goquery.Document) string {
	containers := []string{
		"article p", "main p", "[class*=article] p", "[class*=content] p", "[itemprop=articleBody] p",
	}

	var best []string
	bestLen := 0
	for _, sel := range containers {
		paras := collectParagraphs(doc, sel)
		total := 0
		for _, p := range paras {
			total += len(p)
		}
		if total > bestLen {
			best = paras
			bestLen = total
		}
	}

	return strings.Join(best, "\n\n")
}

func collectParagraphs(doc *goquery.Document, selector string) []string {
	var out []string
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if len(text) < minParagraph || isBoilerplate(text) {
			return true
		}
		out = append(out, text)
		return len(out) < maxParagraphs
	})
	return out
}

func isBoilerplate(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range boilerplateMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// extractMetaImage tries the document's meta-image tags, rejecting obvious
// non-content images.
func extractMetaImage(doc *goquery.Document) string {
	selectors := []struct {
		query string
		attr  string
	}{
		{`meta[property="og:image"]`, "content"},
		{`meta[name="twitter:image"]`, "content"},
		{`link[rel="image_src"]`, "href"},
	}

	for _, sel := range selectors {
		val, ok := doc.Find(sel.query).First().Attr(sel.attr)
		if !ok {
			continue
		}
		if img := normalizeImageURL(val); img != "" {
			return img
		}
	}
	return ""
}

func normalizeImageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	if !strings.HasPrefix(raw, "http") {
		return ""
	}
	lower := strings.ToLower(raw)
	if strings.Contains(lower, ".svg") {
		return ""
	}
	for _, marker := range junkImageMarkers {
		if containsWord(lower, marker) {
			return ""
		}
	}
	return raw
}

func containsWord(text, word string) bool {
	for idx := 0; ; {
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

func (e *Enricher) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

// Package images locates lead images: a Pexels-backed stock search when a
// key is configured, and a fixed category-tagged placeholder pool as the
// last resort. The pool pick is deterministic per URL so repeated runs
// converge to identical rows.
package images

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"NewsPipeline/internal/ports"
)

// searchTerms maps a category to the stock-photo query used for it.
var searchTerms = map[string]string{
	"Diagnostics":     "medical diagnostics technology",
	"Medical Imaging": "radiology scan hospital",
	"Surgery":         "surgical operating room",
	"Drug Discovery":  "pharmaceutical laboratory research",
	"Genomics":        "dna genetics laboratory",
	"Patient Care":    "doctor patient hospital",
	"Clinical Trials": "clinical research laboratory",
	"Telemedicine":    "telehealth video consultation",
	"Research":        "science laboratory research",
}

// blockedAltTerms filters search results whose alt-text indicates an
// unrelated or sensitive subject.
var blockedAltTerms = []string{
	"war", "weapon", "gun", "blood", "corpse", "funeral", "accident",
	"cigarette", "alcohol", "party", "wedding", "food", "pet",
}

// PexelsClient queries the Pexels photo search API.
type PexelsClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

var _ ports.ImageFinder = (*PexelsClient)(nil)

// NewPexelsClient builds a search client; returns nil when no key is
// configured so callers can wire the absence directly.
func NewPexelsClient(endpoint, apiKey string, client *http.Client, logger *slog.Logger) *PexelsClient {
	if apiKey == "" {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if endpoint == "" {
		endpoint = "https://api.pexels.com/v1/search"
	}
	return &PexelsClient{endpoint: endpoint, apiKey: apiKey, client: client, logger: logger}
}

// Find searches for a category-appropriate photo and reports the first
// result whose alt-text passes the subject filter.
func (p *PexelsClient) Find(ctx context.Context, category string) (string, string, bool) {
	query, ok := searchTerms[category]
	if !ok {
		query = searchTerms["Research"]
	}

	reqURL := fmt.Sprintf("%s?query=%s&per_page=10", p.endpoint, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", "", false
	}
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		p.debug("pexels search failed", "category", category, "error", err)
		return "", "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.debug("pexels search rejected", "status", resp.Status)
		return "", "", false
	}

	var payload struct {
		Photos []struct {
			Alt          string `json:"alt"`
			Photographer string `json:"photographer"`
			Src          struct {
				Large string `json:"large"`
			} `json:"src"`
		} `json:"photos"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", "", false
	}

	for _, photo := range payload.Photos {
		if photo.Src.Large == "" || blockedAlt(photo.Alt) {
			continue
		}
		attribution := "Photo via Pexels"
		if photo.Photographer != "" {
			attribution = "Photo by " + photo.Photographer + " on Pexels"
		}
		return photo.Src.Large, attribution, true
	}
	return "", "", false
}

func blockedAlt(alt string) bool {
	lower := strings.ToLower(alt)
	for _, term := range blockedAltTerms {
		if containsWord(lower, term) {
			return true
		}
	}
	return false
}

func containsWord(text, word string) bool {
	for idx := 0; ; {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isLetter(text[start-1])
		afterOK := end == len(text) || !isLetter(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func (p *PexelsClient) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

// Pool is the fixed set of category-tagged placeholder images.
type Pool struct {
	byCategory map[string][]string
	fallback   string
}

// DefaultPool returns the built-in placeholder set.
func DefaultPool() *Pool {
	return &Pool{
		byCategory: map[string][]string{
			"Diagnostics": {
				"https://images.pexels.com/photos/356040/pexels-photo-356040.jpeg",
				"https://images.pexels.com/photos/433267/pexels-photo-433267.jpeg",
				"https://images.pexels.com/photos/4021775/pexels-photo-4021775.jpeg",
			},
			"Medical Imaging": {
				"https://images.pexels.com/photos/236380/pexels-photo-236380.jpeg",
				"https://images.pexels.com/photos/263337/pexels-photo-263337.jpeg",
				"https://images.pexels.com/photos/7089020/pexels-photo-7089020.jpeg",
			},
			"Surgery": {
				"https://images.pexels.com/photos/1250655/pexels-photo-1250655.jpeg",
				"https://images.pexels.com/photos/2324837/pexels-photo-2324837.jpeg",
				"https://images.pexels.com/photos/4225880/pexels-photo-4225880.jpeg",
			},
			"Drug Discovery": {
				"https://images.pexels.com/photos/3683055/pexels-photo-3683055.jpeg",
				"https://images.pexels.com/photos/3825527/pexels-photo-3825527.jpeg",
				"https://images.pexels.com/photos/3912979/pexels-photo-3912979.jpeg",
			},
			"Genomics": {
				"https://images.pexels.com/photos/3825527/pexels-photo-3825527.jpeg",
				"https://images.pexels.com/photos/1366942/pexels-photo-1366942.jpeg",
			},
			"Patient Care": {
				"https://images.pexels.com/photos/40568/medical-appointment-doctor-healthcare-40568.jpeg",
				"https://images.pexels.com/photos/127873/pexels-photo-127873.jpeg",
			},
			"Clinical Trials": {
				"https://images.pexels.com/photos/3825586/pexels-photo-3825586.jpeg",
				"https://images.pexels.com/photos/4173251/pexels-photo-4173251.jpeg",
			},
			"Telemedicine": {
				"https://images.pexels.com/photos/4386467/pexels-photo-4386467.jpeg",
				"https://images.pexels.com/photos/5699456/pexels-photo-5699456.jpeg",
			},
			"Research": {
				"https://images.pexels.com/photos/356040/pexels-photo-356040.jpeg",
				"https://images.pexels.com/photos/2280571/pexels-photo-2280571.jpeg",
				"https://images.pexels.com/photos/8376277/pexels-photo-8376277.jpeg",
			},
		},
		fallback: "Research",
	}
}

// Pick chooses a placeholder for the category, keyed deterministically by
// the item's canonical URL.
func (p *Pool) Pick(category, key string) (string, string) {
	pool, ok := p.byCategory[category]
	if !ok || len(pool) == 0 {
		pool = p.byCategory[p.fallback]
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return pool[int(h.Sum32())%len(pool)], "Stock photo via Pexels"
}

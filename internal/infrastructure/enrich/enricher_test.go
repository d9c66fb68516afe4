package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"NewsPipeline/internal/domain"
)

const pageHTML = `<!doctype html>
<html><head>
<meta property="og:image" content="https://cdn.example.com/lead-photo.jpg">
</head><body>
<header><p>Subscribe to our newsletter for the latest updates and offers today!</p></header>
<article>
<p>Researchers at a university hospital trained a model on thousands of past cases.</p>
<p>ok</p>
<p>The system flagged early-stage disease with higher sensitivity than the control group of clinicians.</p>
<p>We use cookies to improve your experience on this medical news website today.</p>
<p>Funding for the work came from a national research council grant over three years.</p>
</article>
</body></html>`

func TestEnrichExtractsBodyAndMetaImage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(pageHTML))
	}))
	defer srv.Close()

	e := New(srv.Client(), "test-agent", nil, nil, nil)
	item := domain.Candidate{Title: "Title", CanonicalURL: srv.URL + "/story", Source: "BBC"}

	enr := e.Enrich(context.Background(), item, "Diagnostics")

	if enr.ImageURL != "https://cdn.example.com/lead-photo.jpg" {
		t.Fatalf("meta image not used: %q", enr.ImageURL)
	}
	if enr.ImageAttribution != "BBC" {
		t.Fatalf("meta image attribution should credit the source: %q", enr.ImageAttribution)
	}

	paras := strings.Split(enr.BodyExcerpt, "\n\n")
	if len(paras) != 3 {
		t.Fatalf("expected 3 kept paragraphs, got %d: %q", len(paras), enr.BodyExcerpt)
	}
	for _, p := range paras {
		lower := strings.ToLower(p)
		if strings.Contains(lower, "cookie") || strings.Contains(lower, "newsletter") {
			t.Fatalf("boilerplate leaked into body: %q", p)
		}
	}
}

func TestEnrichRejectsJunkMetaImage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head>
<meta property="og:image" content="https://cdn.example.com/site-logo.svg">
</head><body></body></html>`))
	}))
	defer srv.Close()

	e := New(srv.Client(), "test-agent", nil, nil, nil)
	item := domain.Candidate{Title: "A perfectly serviceable title for the story", CanonicalURL: srv.URL}

	enr := e.Enrich(context.Background(), item, "Research")
	if strings.Contains(enr.ImageURL, "logo") {
		t.Fatalf("junk image should be rejected: %q", enr.ImageURL)
	}
	if enr.ImageURL == "" {
		t.Fatal("image URL must never be empty")
	}
}

func TestNormalizeImageURLMatchesMarkersOnWordBoundaries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want string
	}{
		// Markers inside larger words are not junk.
		{"https://cdn.example.com/silicon-chip.jpg", "https://cdn.example.com/silicon-chip.jpg"},
		{"https://cdn.example.com/iconic-building.jpg", "https://cdn.example.com/iconic-building.jpg"},
		// Word-bounded markers still are.
		{"https://cdn.example.com/site-icon.png", ""},
		{"https://cdn.example.com/header/logo.png", ""},
		{"https://cdn.example.com/pixel-1x1.gif", ""},
		{"https://cdn.example.com/art.svg", ""},
		{"//cdn.example.com/photo.jpg", "https://cdn.example.com/photo.jpg"},
	}

	for _, tc := range cases {
		if got := normalizeImageURL(tc.raw); got != tc.want {
			t.Errorf("normalizeImageURL(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestEnrichFallsBackToDescriptionThenTitle(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	e := New(srv.Client(), "test-agent", nil, nil, nil)

	withDesc := domain.Candidate{
		Title:        "Short title",
		CanonicalURL: srv.URL + "/a",
		Description:  "A description long enough to serve as the body excerpt for this item.",
	}
	enr := e.Enrich(context.Background(), withDesc, "Research")
	if enr.BodyExcerpt != withDesc.Description {
		t.Fatalf("expected description fallback, got %q", enr.BodyExcerpt)
	}

	titleOnly := domain.Candidate{
		Title:        "AI system outperforms radiologists in screening trial",
		CanonicalURL: srv.URL + "/b",
	}
	enr = e.Enrich(context.Background(), titleOnly, "Research")
	if enr.BodyExcerpt != titleOnly.Title {
		t.Fatalf("expected title fallback, got %q", enr.BodyExcerpt)
	}
	if enr.BodyExcerpt == "" {
		t.Fatal("body excerpt must never be empty")
	}
}

type fakeFinder struct {
	url string
	ok  bool
}

func (f fakeFinder) Find(ctx context.Context, category string) (string, string, bool) {
	return f.url, "Photo by Test on Pexels", f.ok
}

func TestEnrichUsesFinderBeforePool(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body></body></html>`))
	}))
	defer srv.Close()

	e := New(srv.Client(), "test-agent", fakeFinder{url: "https://stock.example.com/p.jpg", ok: true}, nil, nil)
	item := domain.Candidate{Title: "A title that is long enough for the excerpt", CanonicalURL: srv.URL}

	enr := e.Enrich(context.Background(), item, "Surgery")
	if enr.ImageURL != "https://stock.example.com/p.jpg" {
		t.Fatalf("finder result not used: %q", enr.ImageURL)
	}

	// Finder miss drops to the pool, which always produces an image.
	e = New(srv.Client(), "test-agent", fakeFinder{ok: false}, nil, nil)
	enr = e.Enrich(context.Background(), item, "Surgery")
	if enr.ImageURL == "" {
		t.Fatal("pool fallback must produce an image")
	}
}

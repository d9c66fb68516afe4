package canonical

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestNormalizeStripsTracking(t *testing.T) {
	t.Parallel()

	base := "https://Example.com/story?b=2&a=1"
	tracked := base + "&utm_source=x&fbclid=abc&gclid=def&mc_cid=1&mc_eid=2&igshid=3"

	want := "https://example.com/story?a=1&b=2"
	if got := Normalize(tracked); got != want {
		t.Fatalf("Normalize(%q) = %q, want %q", tracked, got, want)
	}
	if Normalize(base) != Normalize(tracked) {
		t.Fatalf("tracked and untracked forms should normalize identically")
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"https://example.com/?utm_campaign=spring",
		"https://EXAMPLE.com/path#section",
		"https://example.com/a?z=1&y=2&x=3",
		"not a url at all",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Fatalf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestNormalizeCollapsesRootPath(t *testing.T) {
	t.Parallel()

	if got := Normalize("https://example.com/"); got != "https://example.com" {
		t.Fatalf("root path not collapsed: %q", got)
	}
}

func TestCanonicalizeResolvesRedirectWrapper(t *testing.T) {
	t.Parallel()

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	wrapper := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL+"/story?utm_source=wrapped", http.StatusFound)
	}))
	defer wrapper.Close()

	wrapperHost, _ := url.Parse(wrapper.URL)
	c := New(wrapper.Client(), []string{wrapperHost.Hostname()}, nil)

	got := c.Canonicalize(context.Background(), wrapper.URL+"/rss/articles/abc123")
	want := target.URL + "/story"
	if got != want {
		t.Fatalf("Canonicalize = %q, want %q", got, want)
	}
}

func TestCanonicalizeMemoizesResolution(t *testing.T) {
	t.Parallel()

	hits := 0
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer target.Close()

	wrapper := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Redirect(w, r, target.URL+"/final", http.StatusFound)
	}))
	defer wrapper.Close()

	wrapperHost, _ := url.Parse(wrapper.URL)
	c := New(wrapper.Client(), []string{wrapperHost.Hostname()}, nil)

	ctx := context.Background()
	first := c.Canonicalize(ctx, wrapper.URL+"/rss/articles/same")
	second := c.Canonicalize(ctx, wrapper.URL+"/rss/articles/same")

	if first != second {
		t.Fatalf("memoized result differs: %q vs %q", first, second)
	}
	if hits != 1 {
		t.Fatalf("expected 1 wrapper fetch, got %d", hits)
	}
}

func TestCanonicalizeUnresolvableFallsBack(t *testing.T) {
	t.Parallel()

	wrapper := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	wrapperHost, _ := url.Parse(wrapper.URL)
	wrapper.Close() // wrapper is down; resolution must fail gracefully

	c := New(nil, []string{wrapperHost.Hostname()}, nil)

	raw := wrapper.URL + "/rss/articles/gone?utm_medium=feed"
	got := c.Canonicalize(context.Background(), raw)
	if got != Normalize(raw) {
		t.Fatalf("expected best-effort normalized original, got %q", got)
	}
}

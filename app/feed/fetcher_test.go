package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Kanet1105/linkdrive/app/config"
	"github.com/Kanet1105/linkdrive/app/digest"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Journal</title>
    <link>https://example.com</link>
    <description>Test feed</description>
    <item>
      <guid>item-1</guid>
      <title>Advances in Rust tooling</title>
      <link>https://example.com/rust-tooling</link>
      <description>Release notes for the toolchain.</description>
    </item>
    <item>
      <guid>item-2</guid>
      <title>Gardening for beginners</title>
      <link>https://example.com/gardening</link>
      <description>Nothing technical here.</description>
    </item>
    <item>
      <title>Compiler internals</title>
      <link>/posts/compiler-internals</link>
      <description>A deep dive.</description>
    </item>
  </channel>
</rss>`

func testSettings() config.Settings {
	return config.Settings{
		Timeout:   5,
		MaxItems:  25,
		RateLimit: 100,
	}
}

func testKeywords(t *testing.T, raw ...string) digest.KeywordSet {
	t.Helper()

	keywords, err := digest.ParseKeywords(raw)
	if err != nil {
		t.Fatal(err)
	}
	return keywords
}

func newFeedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetcherRun(t *testing.T) {
	var gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssFixture))
	}))
	defer server.Close()

	sources := []config.Source{{URL: server.URL}}
	fetcher := NewFetcher(server.Client(), sources, testSettings(), "linkdrive-test/1.0")

	items, err := fetcher.Run(context.Background(), testKeywords(t, "rust", "compiler"))
	if err != nil {
		t.Fatal(err)
	}

	if len(items) != 2 {
		t.Fatalf("Expected 2 matched items, got %d", len(items))
	}

	if items[0].ID != "item-1" {
		t.Errorf("Expected ID 'item-1', got '%s'", items[0].ID)
	}
	if items[0].Source != "Example Journal" {
		t.Errorf("Expected source from feed title, got '%s'", items[0].Source)
	}
	if len(items[0].MatchedKeywords) != 1 || items[0].MatchedKeywords[0] != "rust" {
		t.Errorf("Expected matched keywords [rust], got %v", items[0].MatchedKeywords)
	}

	// Relative link resolved against the source URL, and used as the ID
	// when the entry has no GUID.
	expectedLink := server.URL + "/posts/compiler-internals"
	if items[1].Link != expectedLink {
		t.Errorf("Expected resolved link '%s', got '%s'", expectedLink, items[1].Link)
	}
	if items[1].ID != expectedLink {
		t.Errorf("Expected ID to fall back to the link, got '%s'", items[1].ID)
	}

	if gotUserAgent != "linkdrive-test/1.0" {
		t.Errorf("Expected custom User-Agent, got '%s'", gotUserAgent)
	}
}

func TestFetcherRunConfiguredSourceName(t *testing.T) {
	server := newFeedServer(t, rssFixture)

	sources := []config.Source{{Name: "Journal", URL: server.URL}}
	fetcher := NewFetcher(server.Client(), sources, testSettings(), "test")

	items, err := fetcher.Run(context.Background(), testKeywords(t, "rust"))
	if err != nil {
		t.Fatal(err)
	}

	if len(items) == 0 || items[0].Source != "Journal" {
		t.Errorf("Expected configured source name to win, got %+v", items)
	}
}

func TestFetcherRunPartialFailure(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer broken.Close()

	working := newFeedServer(t, rssFixture)

	sources := []config.Source{
		{Name: "Broken", URL: broken.URL},
		{Name: "Working", URL: working.URL},
	}
	fetcher := NewFetcher(http.DefaultClient, sources, testSettings(), "test")

	items, err := fetcher.Run(context.Background(), testKeywords(t, "rust"))
	if err != nil {
		t.Fatalf("Expected partial failure to be tolerated, got %v", err)
	}
	if len(items) != 1 {
		t.Errorf("Expected 1 item from the working source, got %d", len(items))
	}
}

func TestFetcherRunAllSourcesFail(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer broken.Close()

	sources := []config.Source{
		{Name: "One", URL: broken.URL},
		{Name: "Two", URL: broken.URL},
	}
	fetcher := NewFetcher(http.DefaultClient, sources, testSettings(), "test")

	_, err := fetcher.Run(context.Background(), testKeywords(t, "rust"))
	if err == nil {
		t.Error("Expected error when every source fails")
	}
}

func TestFetcherRunMaxItems(t *testing.T) {
	server := newFeedServer(t, rssFixture)

	settings := testSettings()
	settings.MaxItems = 1

	fetcher := NewFetcher(server.Client(), []config.Source{{URL: server.URL}}, settings, "test")

	items, err := fetcher.Run(context.Background(), testKeywords(t, "rust", "compiler"))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Errorf("Expected max_items to cap at 1, got %d", len(items))
	}
}

func TestFetcherRunMatchAll(t *testing.T) {
	server := newFeedServer(t, rssFixture)

	fetcher := NewFetcher(server.Client(), []config.Source{{URL: server.URL}}, testSettings(), "test")

	items, err := fetcher.Run(context.Background(), testKeywords(t, "*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Errorf("Expected all 3 items under match-all, got %d", len(items))
	}
	for _, item := range items {
		if len(item.MatchedKeywords) == 0 {
			t.Errorf("Expected sentinel keywords on item '%s'", item.Title)
		}
	}
}

func TestFetcherRunCancelled(t *testing.T) {
	server := newFeedServer(t, rssFixture)

	fetcher := NewFetcher(server.Client(), []config.Source{{URL: server.URL}}, testSettings(), "test")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := fetcher.Run(ctx, testKeywords(t, "rust")); err == nil {
		t.Error("Expected error on cancelled context")
	}
}

func TestFetcherRunMalformedFeed(t *testing.T) {
	server := newFeedServer(t, "this is not a feed")

	fetcher := NewFetcher(server.Client(), []config.Source{{URL: server.URL}}, testSettings(), "test")

	if _, err := fetcher.Run(context.Background(), testKeywords(t, "rust")); err == nil {
		t.Error("Expected error for unparseable single source")
	}
}

func TestResolveLink(t *testing.T) {
	tests := []struct {
		base     string
		link     string
		expected string
	}{
		{"https://example.com/feed.xml", "https://other.com/a", "https://other.com/a"},
		{"https://example.com/feed.xml", "/posts/a", "https://example.com/posts/a"},
		{"https://example.com/blog/feed.xml", "a", "https://example.com/blog/a"},
		{"https://example.com/feed.xml", "", ""},
	}

	for _, tt := range tests {
		if got := resolveLink(tt.base, tt.link); got != tt.expected {
			t.Errorf("resolveLink(%q, %q) = %q, expected %q", tt.base, tt.link, got, tt.expected)
		}
	}
}

func TestFetcherRunExtractsSummaries(t *testing.T) {
	article := `<!DOCTYPE html>
<html>
<head><title>Advances in Rust tooling</title></head>
<body>
<article>
<h1>Advances in Rust tooling</h1>
<p>This is the main content of the article. It contains several paragraphs of meaningful text that should be extracted by the readability algorithm.</p>
<p>This is another paragraph with more content. The readability algorithm should identify this as the main content area and extract it properly.</p>
<p>Here is some more substantial content to ensure we meet the character threshold. This paragraph adds more context and information.</p>
</article>
</body>
</html>`

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	feedXML := strings.ReplaceAll(rssFixture, "https://example.com/rust-tooling", server.URL+"/article")
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feedXML))
	})
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(article))
	})

	settings := testSettings()
	settings.ExtractSummaries = true

	fetcher := NewFetcher(server.Client(), []config.Source{{URL: server.URL + "/feed"}}, settings, "test")

	items, err := fetcher.Run(context.Background(), testKeywords(t, "rust tooling"))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if !strings.Contains(items[0].Summary, "main content of the article") {
		t.Errorf("Expected extracted summary, got %q", items[0].Summary)
	}
	if strings.Contains(items[0].Summary, "\n") {
		t.Errorf("Expected collapsed whitespace, got %q", items[0].Summary)
	}
}

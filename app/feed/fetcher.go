package feed

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/Kanet1105/linkdrive/app/config"
	"github.com/Kanet1105/linkdrive/app/digest"
)

// Fetcher collects candidate items from the configured source feeds and
// matches them against the keyword set. Sources are queried sequentially
// behind a shared rate limiter.
type Fetcher struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	extractor  *Extractor
	limiter    *rate.Limiter
	sources    []config.Source
	settings   config.Settings
	userAgent  string
}

func NewFetcher(httpClient *http.Client, sources []config.Source, settings config.Settings, userAgent string) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
		extractor:  NewExtractor(httpClient, userAgent),
		limiter:    rate.NewLimiter(rate.Limit(settings.RateLimit), 1),
		sources:    sources,
		settings:   settings,
		userAgent:  userAgent,
	}
}

// Run fetches every configured source and returns the matched items in
// source order. A failing source is logged and skipped; Run fails only
// when no source could be fetched at all.
func (f *Fetcher) Run(ctx context.Context, keywords digest.KeywordSet) ([]digest.Item, error) {
	var items []digest.Item
	failureCount := 0

	for _, source := range f.sources {
		matched, err := f.fetchSource(ctx, source, keywords)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("Source fetch failed", "source", source.Name, "url", source.URL, "error", err)
			failureCount++
			continue
		}

		slog.Debug("Source fetched", "source", source.Name, "matched", len(matched))
		items = append(items, matched...)
	}

	if failureCount > 0 && failureCount == len(f.sources) {
		return nil, fmt.Errorf("all %d sources failed", len(f.sources))
	}

	return items, nil
}

func (f *Fetcher) fetchSource(ctx context.Context, source config.Source, keywords digest.KeywordSet) ([]digest.Item, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	data, err := f.fetch(ctx, source.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source: %w", err)
	}

	parsed, err := f.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	sourceName := cmp.Or(source.Name, parsed.Title)

	var items []digest.Item
	for _, entry := range parsed.Items {
		matched := keywords.Match(entry.Title + " " + entry.Description)
		if len(matched) == 0 {
			continue
		}

		link := resolveLink(source.URL, entry.Link)

		items = append(items, digest.Item{
			ID:              cmp.Or(entry.GUID, link),
			Title:           entry.Title,
			Link:            link,
			Source:          sourceName,
			PublishedAt:     entry.PublishedParsed,
			MatchedKeywords: matched,
		})

		if len(items) >= f.settings.MaxItems {
			break
		}
	}

	if f.settings.ExtractSummaries {
		f.extractSummaries(ctx, items)
	}

	return items, nil
}

func (f *Fetcher) extractSummaries(ctx context.Context, items []digest.Item) {
	for i := range items {
		if items[i].Link == "" {
			continue
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return
		}

		extractCtx, cancel := context.WithTimeout(ctx, f.settings.GetTimeout())
		summary, err := f.extractor.Run(extractCtx, items[i].Link)
		cancel()

		if err != nil {
			slog.Debug("Summary extraction failed", "url", items[i].Link, "error", err)
			continue
		}

		items[i].Summary = summary
	}
}

func (f *Fetcher) fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.settings.GetTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

// resolveLink makes relative item links absolute against the source URL.
func resolveLink(baseURL, link string) string {
	if link == "" {
		return link
	}

	parsed, err := url.Parse(link)
	if err != nil || parsed.IsAbs() {
		return link
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return link
	}

	return base.ResolveReference(parsed).String()
}

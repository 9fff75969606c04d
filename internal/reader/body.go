// Package reader fetches article pages and extracts their readable text.
package reader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	readability "codeberg.org/readeck/go-readability/v2"

	"horse.fit/clipper/internal/textnorm"
)

const (
	DefaultFetchTimeout  = 10 * time.Second
	DefaultBodyByteLimit = 2 * 1024 * 1024

	defaultUserAgent = "clipper/1.0 (+https://horse.fit/clipper)"

	// Body text is bounded to the first maxBodyLines substantial lines;
	// anything shorter than minLineRunes after normalization is navigation
	// debris, bylines, or captions.
	maxBodyLines = 200
	minLineRunes = 20
)

// FetchOptions controls HTTP behavior for article body extraction.
type FetchOptions struct {
	Timeout       time.Duration
	BodyByteLimit int64
	UserAgent     string
	HTTPClient    *http.Client
}

// FetchText retrieves a page and extracts its readable text with defaults.
func FetchText(ctx context.Context, pageURL string) (string, error) {
	return FetchTextWithOptions(ctx, pageURL, FetchOptions{})
}

// FetchTextWithOptions retrieves a page and extracts its readable text,
// bounded to the leading substantial lines.
func FetchTextWithOptions(ctx context.Context, pageURL string, opts FetchOptions) (string, error) {
	page := strings.TrimSpace(pageURL)
	if page == "" {
		return "", fmt.Errorf("page URL is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	bodyLimit := opts.BodyByteLimit
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyByteLimit
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, page, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.5")

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, bodyLimit))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	contentType := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	if strings.HasPrefix(contentType, "text/plain") {
		return BoundText(string(body)), nil
	}

	parsedURL, err := url.Parse(page)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return "", fmt.Errorf("readability parse: %w", err)
	}

	var renderedText bytes.Buffer
	if err := article.RenderText(&renderedText); err != nil {
		return "", fmt.Errorf("render readability text: %w", err)
	}

	text := BoundText(renderedText.String())
	if text == "" {
		text = BoundText(article.Excerpt())
	}
	return text, nil
}

// BoundText normalizes line endings, collapses in-line whitespace, drops
// lines shorter than minLineRunes, and keeps only the first maxBodyLines
// surviving lines.
func BoundText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	kept := make([]string, 0, maxBodyLines)
	for _, line := range strings.Split(normalized, "\n") {
		clean := textnorm.NormalizeWS(line)
		if utf8.RuneCountInString(clean) < minLineRunes {
			continue
		}
		kept = append(kept, clean)
		if len(kept) == maxBodyLines {
			break
		}
	}

	return strings.Join(kept, "\n")
}

// Fetcher carries fixed fetch settings and satisfies the pipeline's article
// fetcher dependency; the timeout comes from run configuration per call.
type Fetcher struct {
	UserAgent  string
	HTTPClient *http.Client
}

func (f *Fetcher) FetchText(ctx context.Context, pageURL string, timeout time.Duration) (string, error) {
	return FetchTextWithOptions(ctx, pageURL, FetchOptions{
		Timeout:    timeout,
		UserAgent:  f.UserAgent,
		HTTPClient: f.HTTPClient,
	})
}

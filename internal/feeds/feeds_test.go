package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"horse.fit/clipper/internal/extconfig"
)

func rssDocument(items string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>테스트 피드</title><link>http://example.test/</link>` +
		items + `</channel></rss>`
}

func serveRSS(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchParsesEntries(t *testing.T) {
	t.Parallel()

	server := serveRSS(t, rssDocument(`
		<item>
			<title>질병관리청 감염병 경보 발령</title>
			<link>http://example.test/a?utm_source=rss</link>
			<pubDate>Mon, 17 Aug 2026 09:30:00 +0900</pubDate>
		</item>
		<item>
			<title>두 번째 기사</title>
			<link>http://example.test/b</link>
		</item>`))

	fetcher := NewFetcher(zerolog.Nop(), Options{})
	got, err := fetcher.Fetch(context.Background(), extconfig.Source{Name: "테스트", FeedURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}

	first := got[0]
	if first.Source != "테스트" {
		t.Fatalf("unexpected source: %q", first.Source)
	}
	if first.Title != "질병관리청 감염병 경보 발령" {
		t.Fatalf("unexpected title: %q", first.Title)
	}
	if first.Link != "http://example.test/a?utm_source=rss" {
		t.Fatalf("link must stay raw at this stage: %q", first.Link)
	}
	if first.Published != "2026-08-17T00:30:00Z" {
		t.Fatalf("expected pubDate converted to UTC, got %q", first.Published)
	}
	if got[1].Published != "" {
		t.Fatalf("expected empty published for dateless entry, got %q", got[1].Published)
	}
}

func TestFetchCapsEntries(t *testing.T) {
	t.Parallel()

	var items strings.Builder
	for i := 0; i < maxEntriesPerFeed+10; i++ {
		fmt.Fprintf(&items, `<item><title>기사 %d</title><link>http://example.test/%d</link></item>`, i, i)
	}
	server := serveRSS(t, rssDocument(items.String()))

	fetcher := NewFetcher(zerolog.Nop(), Options{})
	got, err := fetcher.Fetch(context.Background(), extconfig.Source{Name: "대량", FeedURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if len(got) != maxEntriesPerFeed {
		t.Fatalf("expected %d candidates, got %d", maxEntriesPerFeed, len(got))
	}
	if got[0].Title != "기사 0" {
		t.Fatalf("expected feed order preserved, got %q first", got[0].Title)
	}
}

func TestFetchUnreachableFeed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	t.Cleanup(server.Close)

	fetcher := NewFetcher(zerolog.Nop(), Options{})
	if _, err := fetcher.Fetch(context.Background(), extconfig.Source{Name: "죽은 피드", FeedURL: server.URL}); err == nil {
		t.Fatalf("expected error for http failure")
	}
}

func TestParseEntryTime(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		published string
		updated   string
		want      string
	}{
		{"rfc1123 with zone", "Mon, 17 Aug 2026 09:30:00 +0900", "", "2026-08-17T00:30:00Z"},
		{"naive datetime tagged utc", "2026-08-17 09:30:00", "", "2026-08-17T09:30:00Z"},
		{"fallback to updated", "", "2026-08-17T01:02:03Z", "2026-08-17T01:02:03Z"},
		{"published wins over updated", "2026-08-17T00:00:00Z", "2026-08-18T00:00:00Z", "2026-08-17T00:00:00Z"},
		{"garbage yields empty", "not a date", "", ""},
		{"all empty", "", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := parseEntryTime(tc.published, tc.updated); got != tc.want {
				t.Fatalf("unexpected timestamp: got %q want %q", got, tc.want)
			}
		})
	}
}

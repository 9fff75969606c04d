package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/clipper/internal/classify"
	"horse.fit/clipper/internal/db"
	"horse.fit/clipper/internal/extconfig"
	"horse.fit/clipper/internal/feeds"
	"horse.fit/clipper/internal/simhash"
	"horse.fit/clipper/internal/textnorm"
)

type fakeStore struct {
	dedupKeys    []db.DedupKey
	fingerprints []db.FingerprintRow
	meta         map[string]string
	appendErr    error

	appended  [][]db.Article
	runsOpen  int
	completed []db.IngestRunCounts
	failed    []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{meta: map[string]string{}}
}

func (s *fakeStore) SelectDedupKeys(_ context.Context) ([]db.DedupKey, error) {
	return s.dedupKeys, nil
}

func (s *fakeStore) SelectRecentFingerprints(_ context.Context, _ int) ([]db.FingerprintRow, error) {
	return s.fingerprints, nil
}

func (s *fakeStore) AppendArticles(_ context.Context, articles []db.Article) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended = append(s.appended, articles)
	return nil
}

func (s *fakeStore) GetMeta(_ context.Context, key string) (string, error) {
	value, exists := s.meta[key]
	if !exists {
		return "", db.ErrMetaNotFound
	}
	return value, nil
}

func (s *fakeStore) SetMeta(_ context.Context, key, value string) error {
	s.meta[key] = value
	return nil
}

func (s *fakeStore) InsertIngestRun(_ context.Context, _ time.Time) (int64, error) {
	s.runsOpen++
	return int64(s.runsOpen), nil
}

func (s *fakeStore) MarkIngestRunCompleted(_ context.Context, _ int64, _ time.Time, counts db.IngestRunCounts) error {
	s.completed = append(s.completed, counts)
	return nil
}

func (s *fakeStore) MarkIngestRunFailed(_ context.Context, _ int64, _ time.Time, message string) error {
	s.failed = append(s.failed, message)
	return nil
}

type fakeFeeds struct {
	candidates map[string][]feeds.Candidate
	errs       map[string]error
	calls      int
}

func (f *fakeFeeds) Fetch(_ context.Context, source extconfig.Source) ([]feeds.Candidate, error) {
	f.calls++
	if err := f.errs[source.Name]; err != nil {
		return nil, err
	}
	return f.candidates[source.Name], nil
}

type fakeReader struct {
	texts map[string]string
	calls []string
}

func (f *fakeReader) FetchText(_ context.Context, pageURL string, _ time.Duration) (string, error) {
	f.calls = append(f.calls, pageURL)
	text, exists := f.texts[pageURL]
	if !exists {
		return "", errors.New("connection refused")
	}
	return text, nil
}

func testTaxonomy() *classify.Taxonomy {
	return classify.NewTaxonomy([]classify.Category{
		{Name: "보건/공공보건", Keywords: []string{"질병관리청", "감염병", "보건"}},
		{Name: "교통", Keywords: []string{"교통", "도로"}},
	}, []string{"연예", "가십"})
}

func newTestService(store *fakeStore, feedsFake *fakeFeeds, readerFake *fakeReader, sources []extconfig.Source, fetchDelay time.Duration) *Service {
	svc := NewService(store, feedsFake, readerFake, zerolog.Nop(), Options{
		Sources:    sources,
		Taxonomy:   testTaxonomy(),
		FetchDelay: fetchDelay,
	})
	svc.sleep = func(time.Duration) {}
	return svc
}

func TestRunFlagsNearDuplicateWithinRun(t *testing.T) {
	t.Parallel()

	sources := []extconfig.Source{
		{Name: "연합뉴스", FeedURL: "https://feeds.example/a", Language: "ko"},
		{Name: "한겨레", FeedURL: "https://feeds.example/b", Language: "ko"},
	}
	feedsFake := &fakeFeeds{candidates: map[string][]feeds.Candidate{
		"연합뉴스": {{
			Source:    "연합뉴스",
			Title:     "질병관리청 감염병 경보 발령",
			Link:      "https://news.example/a1?utm_source=rss",
			Published: "2026-08-20T09:00:00Z",
		}},
		"한겨레": {{
			Source:    "한겨레",
			Title:     "질병관리청, 감염병 경보 발령",
			Link:      "https://news.example/b1",
			Published: "2026-08-20T09:05:00Z",
		}},
	}}
	store := newFakeStore()
	readerFake := &fakeReader{}
	svc := newTestService(store, feedsFake, readerFake, sources, 0)

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	if result.SourcesScanned != 2 || result.ItemsSeen != 2 {
		t.Fatalf("unexpected scan counts: %+v", result)
	}
	if result.ItemsInserted != 2 {
		t.Fatalf("expected both articles inserted, got %d", result.ItemsInserted)
	}
	if result.NearDuplicates != 1 {
		t.Fatalf("expected one near duplicate, got %d", result.NearDuplicates)
	}

	if len(store.appended) != 1 {
		t.Fatalf("expected a single batch append, got %d", len(store.appended))
	}
	batch := store.appended[0]
	if len(batch) != 2 {
		t.Fatalf("unexpected batch size: %d", len(batch))
	}

	first, second := batch[0], batch[1]
	if first.DuplicateOf != "" {
		t.Fatalf("first article should be unique, got duplicate_of=%q", first.DuplicateOf)
	}
	if first.Simhash == "" {
		t.Fatalf("expected a fingerprint on the first article")
	}
	if first.URLCanonical != "https://news.example/a1" {
		t.Fatalf("unexpected canonical url: %q", first.URLCanonical)
	}
	if !strings.Contains(first.Tags, "보건/공공보건") {
		t.Fatalf("expected health tag, got %q", first.Tags)
	}
	if second.DuplicateOf != first.URL {
		t.Fatalf("duplicate_of should point at the first raw url: got %q want %q", second.DuplicateOf, first.URL)
	}
	if second.Simhash != first.Simhash {
		t.Fatalf("punctuation-only title variants should fingerprint identically: %q vs %q", second.Simhash, first.Simhash)
	}

	if len(readerFake.calls) != 2 {
		t.Fatalf("expected both bodies fetched, got %d calls", len(readerFake.calls))
	}
	if store.meta[metaKeyLastError] != "" {
		t.Fatalf("expected last_error cleared, got %q", store.meta[metaKeyLastError])
	}
	if store.meta[metaKeyLastInsertedCount] != "2" {
		t.Fatalf("unexpected last_inserted_count: %q", store.meta[metaKeyLastInsertedCount])
	}
	if _, err := time.Parse(time.RFC3339, store.meta[metaKeyLastRunAt]); err != nil {
		t.Fatalf("last_run_at not RFC3339: %q", store.meta[metaKeyLastRunAt])
	}
	if len(store.completed) != 1 || store.completed[0].ItemsInserted != 2 || store.completed[0].NearDuplicates != 1 {
		t.Fatalf("unexpected ledger counts: %+v", store.completed)
	}
}

func TestRunDropsKnownURLBeforeFetch(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.dedupKeys = []db.DedupKey{{
		URLCanonical: "https://news.example/a1",
		TitleHash:    textnorm.TitleHash("예전에 저장된 다른 제목"),
	}}
	feedsFake := &fakeFeeds{candidates: map[string][]feeds.Candidate{
		"연합뉴스": {{
			Source: "연합뉴스",
			Title:  "질병관리청 감염병 경보 발령",
			Link:   "https://news.example/a1?utm_campaign=x",
		}},
	}}
	readerFake := &fakeReader{}
	svc := newTestService(store, feedsFake, readerFake, []extconfig.Source{{Name: "연합뉴스", FeedURL: "https://feeds.example/a"}}, 0)

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if result.ItemsSeen != 1 || result.ItemsInserted != 0 {
		t.Fatalf("expected seen=1 inserted=0, got %+v", result)
	}
	if len(readerFake.calls) != 0 {
		t.Fatalf("exact url duplicate must be dropped before any fetch, got %d calls", len(readerFake.calls))
	}
	if len(store.appended) != 1 || len(store.appended[0]) != 0 {
		t.Fatalf("expected an empty batch, got %+v", store.appended)
	}
}

func TestRunDropsRepeatedTitleWithinRun(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	feedsFake := &fakeFeeds{candidates: map[string][]feeds.Candidate{
		"연합뉴스": {
			{Source: "연합뉴스", Title: "감염병 주간 동향 보고", Link: "https://news.example/a1"},
			{Source: "연합뉴스", Title: "감염병  주간 동향   보고", Link: "https://news.example/a2"},
		},
	}}
	readerFake := &fakeReader{}
	svc := newTestService(store, feedsFake, readerFake, []extconfig.Source{{Name: "연합뉴스", FeedURL: "https://feeds.example/a"}}, 0)

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if result.ItemsInserted != 1 {
		t.Fatalf("expected one insert, got %d", result.ItemsInserted)
	}
	if len(readerFake.calls) != 1 {
		t.Fatalf("repeated title must be dropped before fetch, got %d calls", len(readerFake.calls))
	}
}

func TestRunDropsVetoedAndUncategorizedTitles(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	feedsFake := &fakeFeeds{candidates: map[string][]feeds.Candidate{
		"연합뉴스": {
			{Source: "연합뉴스", Title: "질병관리청 출신 배우 연예 복귀", Link: "https://news.example/a1"},
			{Source: "연합뉴스", Title: "오늘의 날씨 전망", Link: "https://news.example/a2"},
			{Source: "연합뉴스", Title: "   ", Link: "https://news.example/a3"},
		},
	}}
	readerFake := &fakeReader{}
	svc := newTestService(store, feedsFake, readerFake, []extconfig.Source{{Name: "연합뉴스", FeedURL: "https://feeds.example/a"}}, 0)

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if result.ItemsSeen != 3 || result.ItemsInserted != 0 {
		t.Fatalf("expected seen=3 inserted=0, got %+v", result)
	}
	if len(readerFake.calls) != 0 {
		t.Fatalf("vetoed titles must never reach fetch, got %d calls", len(readerFake.calls))
	}
}

func TestRunMatchesSeededWindowAndSkipsMalformedRows(t *testing.T) {
	t.Parallel()

	title := "서울 도심 대규모 교통 통제 안내"
	fingerprint, ok := simhash.FromText(title)
	if !ok {
		t.Fatalf("expected a fingerprint for the seeded title")
	}

	store := newFakeStore()
	store.fingerprints = []db.FingerprintRow{
		{Simhash: "not-a-number", URL: "https://old.example/broken"},
		{Simhash: simhash.FormatFingerprint(fingerprint), URL: "https://old.example/keep"},
	}
	feedsFake := &fakeFeeds{candidates: map[string][]feeds.Candidate{
		"연합뉴스": {{Source: "연합뉴스", Title: title, Link: "https://news.example/fresh"}},
	}}
	readerFake := &fakeReader{}
	svc := newTestService(store, feedsFake, readerFake, []extconfig.Source{{Name: "연합뉴스", FeedURL: "https://feeds.example/a"}}, 0)

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if result.ItemsInserted != 1 || result.NearDuplicates != 1 {
		t.Fatalf("expected one flagged insert, got %+v", result)
	}
	got := store.appended[0][0]
	if got.DuplicateOf != "https://old.example/keep" {
		t.Fatalf("expected match against the seeded window row, got %q", got.DuplicateOf)
	}
}

func TestRunStoresExtractedSummary(t *testing.T) {
	t.Parallel()

	link := "https://news.example/a1"
	body := "첫 번째 공지 문장은 충분히 길어서 요약 대상이 됩니다. 짧은 문장. 두 번째 공지 문장도 충분히 길어서 요약에 포함됩니다."
	want := "첫 번째 공지 문장은 충분히 길어서 요약 대상이 됩니다. 두 번째 공지 문장도 충분히 길어서 요약에 포함됩니다."

	store := newFakeStore()
	feedsFake := &fakeFeeds{candidates: map[string][]feeds.Candidate{
		"연합뉴스": {{Source: "연합뉴스", Title: "감염병 예방 수칙 발표", Link: link}},
	}}
	readerFake := &fakeReader{texts: map[string]string{link: body}}
	svc := newTestService(store, feedsFake, readerFake, []extconfig.Source{{Name: "연합뉴스", FeedURL: "https://feeds.example/a"}}, 0)

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	got := store.appended[0][0]
	if got.Summary != want {
		t.Fatalf("unexpected summary:\n got %q\nwant %q", got.Summary, want)
	}
	if got.Simhash == "" {
		t.Fatalf("expected a fingerprint over title and summary")
	}
}

func TestRunDisabledViaMeta(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.meta[metaKeyRSSEnabled] = "false"
	feedsFake := &fakeFeeds{}
	svc := newTestService(store, feedsFake, &fakeReader{}, []extconfig.Source{{Name: "연합뉴스", FeedURL: "https://feeds.example/a"}}, 0)

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if result.ItemsSeen != 0 || result.ItemsInserted != 0 {
		t.Fatalf("disabled run must not process anything, got %+v", result)
	}
	if feedsFake.calls != 0 {
		t.Fatalf("disabled run must not touch feeds, got %d calls", feedsFake.calls)
	}
	if len(store.completed) != 1 {
		t.Fatalf("disabled run still closes the ledger, got %+v", store.completed)
	}
	if store.meta[metaKeyLastInsertedCount] != "0" {
		t.Fatalf("unexpected last_inserted_count: %q", store.meta[metaKeyLastInsertedCount])
	}
}

func TestLoadRunConfigFallsBackOnBadValues(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.meta[metaKeyMaxHamming] = "banana"
	store.meta[metaKeyRecentSimN] = "-5"
	store.meta[metaKeyFetchTimeoutSec] = "0"
	store.meta[metaKeyRSSEnabled] = "maybe"
	svc := newTestService(store, &fakeFeeds{}, &fakeReader{}, nil, 0)

	cfg, err := svc.loadRunConfig(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.maxHamming != DefaultMaxHamming {
		t.Fatalf("unexpected max hamming: %d", cfg.maxHamming)
	}
	if cfg.recentWindow != DefaultRecentWindow {
		t.Fatalf("unexpected recent window: %d", cfg.recentWindow)
	}
	if cfg.fetchTimeout != DefaultFetchTimeoutSec*time.Second {
		t.Fatalf("unexpected fetch timeout: %v", cfg.fetchTimeout)
	}
	if !cfg.rssEnabled {
		t.Fatalf("malformed rss_enabled should fall back to enabled")
	}
}

func TestLoadRunConfigHonorsStoredValues(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.meta[metaKeyMaxHamming] = "10"
	store.meta[metaKeyRecentSimN] = "50"
	store.meta[metaKeyFetchTimeoutSec] = "3"
	svc := newTestService(store, &fakeFeeds{}, &fakeReader{}, nil, 0)

	cfg, err := svc.loadRunConfig(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.maxHamming != 10 || cfg.recentWindow != 50 || cfg.fetchTimeout != 3*time.Second {
		t.Fatalf("unexpected run config: %+v", cfg)
	}
}

func TestRunRecordsFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.appendErr = errors.New("disk full")
	svc := newTestService(store, &fakeFeeds{}, &fakeReader{}, nil, 0)

	_, err := svc.Run(context.Background())
	if err == nil {
		t.Fatalf("expected run error")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.failed) != 1 || !strings.Contains(store.failed[0], "disk full") {
		t.Fatalf("expected failed ledger entry, got %+v", store.failed)
	}
	if !strings.Contains(store.meta[metaKeyLastError], "disk full") {
		t.Fatalf("expected last_error recorded, got %q", store.meta[metaKeyLastError])
	}
	if _, parseErr := time.Parse(time.RFC3339, store.meta[metaKeyLastRunAt]); parseErr != nil {
		t.Fatalf("failed runs must still stamp last_run_at, got %q", store.meta[metaKeyLastRunAt])
	}
}

func TestRunAppliesFetchDelayAfterEveryAttempt(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	feedsFake := &fakeFeeds{candidates: map[string][]feeds.Candidate{
		"연합뉴스": {
			{Source: "연합뉴스", Title: "감염병 주의보 발령 소식", Link: "https://news.example/a1"},
			{Source: "연합뉴스", Title: "보건 당국 현장 점검 결과", Link: "https://news.example/a2"},
		},
	}}
	readerFake := &fakeReader{}
	svc := newTestService(store, feedsFake, readerFake, []extconfig.Source{{Name: "연합뉴스", FeedURL: "https://feeds.example/a"}}, 250*time.Millisecond)

	var sleeps []time.Duration
	svc.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if len(sleeps) != 2 {
		t.Fatalf("expected a delay after each fetch attempt, got %d", len(sleeps))
	}
	for _, d := range sleeps {
		if d != 250*time.Millisecond {
			t.Fatalf("unexpected delay: %v", d)
		}
	}
}

func TestRunSkipsSourceOnFeedError(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	feedsFake := &fakeFeeds{
		candidates: map[string][]feeds.Candidate{
			"한겨레": {{Source: "한겨레", Title: "감염병 대응 체계 개편", Link: "https://news.example/b1"}},
		},
		errs: map[string]error{"연합뉴스": errors.New("feed unreachable")},
	}
	svc := newTestService(store, feedsFake, &fakeReader{}, []extconfig.Source{
		{Name: "연합뉴스", FeedURL: "https://feeds.example/a"},
		{Name: "한겨레", FeedURL: "https://feeds.example/b"},
	}, 0)

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("feed failures must not abort the run: %v", err)
	}
	if result.SourcesScanned != 1 {
		t.Fatalf("expected one scanned source, got %d", result.SourcesScanned)
	}
	if result.ItemsInserted != 1 {
		t.Fatalf("expected the healthy source to be ingested, got %+v", result)
	}
}

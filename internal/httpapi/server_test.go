package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"horse.fit/clipper/internal/db"
)

type fakeReadStore struct {
	articles    []db.ArticleListItem
	total       int64
	listOpts    []db.ArticleListOptions
	articleByID map[int64]*db.Article
	runs        []db.IngestRun
	metaEntries []db.MetaEntry
	corpus      *db.CorpusStats
	sources     []db.SourceCount
	latestRun   *db.IngestRun
}

func (s *fakeReadStore) ListArticles(_ context.Context, opts db.ArticleListOptions) ([]db.ArticleListItem, int64, error) {
	s.listOpts = append(s.listOpts, opts)
	return s.articles, s.total, nil
}

func (s *fakeReadStore) GetArticleByID(_ context.Context, id int64) (*db.Article, error) {
	row, exists := s.articleByID[id]
	if !exists {
		return nil, db.ErrNoRows
	}
	copyRow := *row
	return &copyRow, nil
}

func (s *fakeReadStore) ListIngestRuns(_ context.Context, _ int) ([]db.IngestRun, error) {
	return s.runs, nil
}

func (s *fakeReadStore) ListMeta(_ context.Context) ([]db.MetaEntry, error) {
	return s.metaEntries, nil
}

func (s *fakeReadStore) CorpusStatsSnapshot(_ context.Context) (*db.CorpusStats, error) {
	if s.corpus == nil {
		return &db.CorpusStats{}, nil
	}
	return s.corpus, nil
}

func (s *fakeReadStore) CountArticlesBySource(_ context.Context) ([]db.SourceCount, error) {
	return s.sources, nil
}

func (s *fakeReadStore) LatestIngestRun(_ context.Context) (*db.IngestRun, error) {
	if s.latestRun == nil {
		return nil, db.ErrNoRows
	}
	copyRow := *s.latestRun
	return &copyRow, nil
}

func newGETContext(path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (string, json.RawMessage) {
	t.Helper()
	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return envelope.Status, envelope.Data
}

func TestHandleArticlesPassesFiltersThrough(t *testing.T) {
	t.Parallel()

	store := &fakeReadStore{
		articles: []db.ArticleListItem{{ID: 1, Title: "감염병 경보"}},
		total:    21,
	}
	server := &Server{store: store, logger: zerolog.Nop()}

	c, rec := newGETContext("/api/v1/articles?page=2&page_size=10&source=연합뉴스&duplicates=true&q=감염")
	if err := server.handleArticles(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	if len(store.listOpts) != 1 {
		t.Fatalf("expected one store call, got %d", len(store.listOpts))
	}
	opts := store.listOpts[0]
	if opts.Source != "연합뉴스" || opts.TitleQuery != "감염" || !opts.DuplicatesOnly {
		t.Fatalf("unexpected filter options: %+v", opts)
	}
	if opts.Limit != 10 || opts.Offset != 10 {
		t.Fatalf("unexpected page window: %+v", opts)
	}

	status, data := decodeEnvelope(t, rec)
	if status != "success" {
		t.Fatalf("unexpected jsend status: %q", status)
	}
	var payload struct {
		Pagination struct {
			TotalItems int64 `json:"total_items"`
			TotalPages int   `json:"total_pages"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if payload.Pagination.TotalItems != 21 || payload.Pagination.TotalPages != 3 {
		t.Fatalf("unexpected pagination: %+v", payload.Pagination)
	}
}

func TestHandleArticlesRejectsBadPageSize(t *testing.T) {
	t.Parallel()

	server := &Server{store: &fakeReadStore{}, logger: zerolog.Nop()}

	c, rec := newGETContext("/api/v1/articles?page_size=0")
	if err := server.handleArticles(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	status, _ := decodeEnvelope(t, rec)
	if status != "fail" {
		t.Fatalf("unexpected jsend status: %q", status)
	}
}

func TestHandleArticleDetailNotFound(t *testing.T) {
	t.Parallel()

	server := &Server{store: &fakeReadStore{}, logger: zerolog.Nop()}

	c, rec := newGETContext("/api/v1/articles/42")
	c.SetParamNames("id")
	c.SetParamValues("42")
	if err := server.handleArticleDetail(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestHandleArticleDetailRejectsBadID(t *testing.T) {
	t.Parallel()

	server := &Server{store: &fakeReadStore{}, logger: zerolog.Nop()}

	c, rec := newGETContext("/api/v1/articles/abc")
	c.SetParamNames("id")
	c.SetParamValues("abc")
	if err := server.handleArticleDetail(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestHandleArticleDetailReturnsRow(t *testing.T) {
	t.Parallel()

	store := &fakeReadStore{articleByID: map[int64]*db.Article{
		7: {
			ID:           7,
			Source:       "연합뉴스",
			Title:        "질병관리청 감염병 경보 발령",
			URL:          "https://news.example/a1?utm_source=rss",
			URLCanonical: "https://news.example/a1",
			DuplicateOf:  "https://news.example/b1",
			CreatedAt:    time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
		},
	}}
	server := &Server{store: store, logger: zerolog.Nop()}

	c, rec := newGETContext("/api/v1/articles/7")
	c.SetParamNames("id")
	c.SetParamValues("7")
	if err := server.handleArticleDetail(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	_, data := decodeEnvelope(t, rec)
	var payload articleDetail
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if payload.ID != 7 || payload.URLCanonical != "https://news.example/a1" {
		t.Fatalf("unexpected article payload: %+v", payload)
	}
	if payload.DuplicateOf != "https://news.example/b1" {
		t.Fatalf("unexpected duplicate_of: %q", payload.DuplicateOf)
	}
}

func TestHandleStatsIncludesLatestRun(t *testing.T) {
	t.Parallel()

	finished := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	store := &fakeReadStore{
		corpus:  &db.CorpusStats{TotalArticles: 120, NearDuplicates: 4, DistinctSources: 3},
		sources: []db.SourceCount{{Source: "연합뉴스", ArticleCount: 80}},
		latestRun: &db.IngestRun{
			RunID:         9,
			StartedAt:     finished.Add(-time.Minute),
			FinishedAt:    &finished,
			Status:        db.RunStatusCompleted,
			ItemsInserted: 12,
		},
	}
	server := &Server{store: store, logger: zerolog.Nop()}

	c, rec := newGETContext("/api/v1/stats")
	if err := server.handleStats(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	_, data := decodeEnvelope(t, rec)
	var payload statsResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if payload.Corpus == nil || payload.Corpus.TotalArticles != 120 {
		t.Fatalf("unexpected corpus stats: %+v", payload.Corpus)
	}
	if payload.LatestRun == nil || payload.LatestRun.RunID != 9 {
		t.Fatalf("unexpected latest run: %+v", payload.LatestRun)
	}
}

func TestHandleStatsWithEmptyCorpus(t *testing.T) {
	t.Parallel()

	server := &Server{store: &fakeReadStore{}, logger: zerolog.Nop()}

	c, rec := newGETContext("/api/v1/stats")
	if err := server.handleStats(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	_, data := decodeEnvelope(t, rec)
	var payload statsResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if payload.LatestRun != nil {
		t.Fatalf("expected no latest run on an empty corpus, got %+v", payload.LatestRun)
	}
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	server := &Server{store: &fakeReadStore{}, logger: zerolog.Nop()}

	c, rec := newGETContext("/api/v1/health")
	if err := server.handleHealth(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	status, _ := decodeEnvelope(t, rec)
	if status != "success" {
		t.Fatalf("unexpected jsend status: %q", status)
	}
}

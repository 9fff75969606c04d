// Package httpapi serves the read-only JSON API over the article corpus.
// All ingest happens through the CLI; the API never writes.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/clipper/internal/db"
	"horse.fit/clipper/internal/globaltime"
)

const (
	defaultPageSize = 25
	maxPageSize     = 200

	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// Store is the read surface the handlers need. *db.Pool satisfies it.
type Store interface {
	ListArticles(ctx context.Context, opts db.ArticleListOptions) ([]db.ArticleListItem, int64, error)
	GetArticleByID(ctx context.Context, id int64) (*db.Article, error)
	ListIngestRuns(ctx context.Context, limit int) ([]db.IngestRun, error)
	ListMeta(ctx context.Context) ([]db.MetaEntry, error)
	CorpusStatsSnapshot(ctx context.Context) (*db.CorpusStats, error)
	CountArticlesBySource(ctx context.Context) ([]db.SourceCount, error)
	LatestIngestRun(ctx context.Context) (*db.IngestRun, error)
}

type Options struct {
	Host            string
	Port            int
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	store  Store
	logger zerolog.Logger
	opts   Options
}

type articleDetail struct {
	ID           int64     `json:"id"`
	PublishedAt  string    `json:"published_at,omitempty"`
	Source       string    `json:"source"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	URLCanonical string    `json:"url_canonical"`
	Tags         string    `json:"tags"`
	TitleHash    string    `json:"title_hash"`
	Simhash      string    `json:"simhash,omitempty"`
	DuplicateOf  string    `json:"duplicate_of,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type runItem struct {
	RunID          int64      `json:"run_id"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Status         string     `json:"status"`
	SourcesScanned int        `json:"sources_scanned"`
	ItemsSeen      int        `json:"items_seen"`
	ItemsInserted  int        `json:"items_inserted"`
	NearDuplicates int        `json:"near_duplicates"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
}

type statsResponse struct {
	Corpus    *db.CorpusStats  `json:"corpus"`
	Sources   []db.SourceCount `json:"sources"`
	LatestRun *runItem         `json:"latest_run,omitempty"`
}

func NewServer(store Store, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := opts.Port
	if port <= 0 {
		port = 8085
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		store:  store,
		logger: logger,
		opts: Options{
			Host:            host,
			Port:            port,
			AllowedOrigins:  origins,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
	}
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.opts.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.GET("/articles", s.handleArticles)
	api.GET("/articles/:id", s.handleArticleDetail)
	api.GET("/runs", s.handleRuns)
	api.GET("/meta", s.handleMeta)

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("clipper api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("clipper api server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "clipper",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleArticles(c echo.Context) error {
	page, err := parsePositiveInt(c.QueryParam("page"), 1, 1, 1_000_000)
	if err != nil {
		return failValidation(c, map[string]string{"page": err.Error()})
	}
	pageSize, err := parsePositiveInt(c.QueryParam("page_size"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"page_size": err.Error()})
	}
	duplicatesOnly, err := parseBoolParam(c.QueryParam("duplicates"))
	if err != nil {
		return failValidation(c, map[string]string{"duplicates": err.Error()})
	}

	opts := db.ArticleListOptions{
		Source:         strings.TrimSpace(c.QueryParam("source")),
		DuplicatesOnly: duplicatesOnly,
		TitleQuery:     strings.TrimSpace(c.QueryParam("q")),
		Limit:          pageSize,
		Offset:         (page - 1) * pageSize,
	}

	items, total, err := s.store.ListArticles(c.Request().Context(), opts)
	if err != nil {
		s.logger.Error().Err(err).Msg("query articles failed")
		return internalError(c, "Failed to load articles")
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}

	return success(c, map[string]any{
		"items": items,
		"pagination": map[string]any{
			"page":        page,
			"page_size":   pageSize,
			"total_items": total,
			"total_pages": totalPages,
		},
		"filters": map[string]any{
			"source":     opts.Source,
			"q":          opts.TitleQuery,
			"duplicates": opts.DuplicatesOnly,
		},
	})
}

func (s *Server) handleArticleDetail(c echo.Context) error {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		return failValidation(c, map[string]string{"id": "must be a positive integer"})
	}

	article, err := s.store.GetArticleByID(c.Request().Context(), id)
	if err != nil {
		if db.IsNoRows(err) {
			return failNotFound(c, "Article not found")
		}
		s.logger.Error().Err(err).Int64("article_id", id).Msg("query article failed")
		return internalError(c, "Failed to load article")
	}

	return success(c, articleDetailFromRow(article))
}

func (s *Server) handleRuns(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultRunsLimit, 1, maxRunsLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	runs, err := s.store.ListIngestRuns(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("query ingest runs failed")
		return internalError(c, "Failed to load ingest runs")
	}

	items := make([]runItem, 0, len(runs))
	for i := range runs {
		items = append(items, runItemFromRow(&runs[i]))
	}
	return success(c, map[string]any{
		"items": items,
		"limit": limit,
	})
}

func (s *Server) handleMeta(c echo.Context) error {
	entries, err := s.store.ListMeta(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("query run meta failed")
		return internalError(c, "Failed to load run meta")
	}
	return success(c, map[string]any{
		"items": entries,
	})
}

func (s *Server) handleStats(c echo.Context) error {
	ctx := c.Request().Context()

	corpus, err := s.store.CorpusStatsSnapshot(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("query corpus stats failed")
		return internalError(c, "Failed to load stats")
	}
	sources, err := s.store.CountArticlesBySource(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("query source counts failed")
		return internalError(c, "Failed to load stats")
	}

	resp := statsResponse{Corpus: corpus, Sources: sources}
	latest, err := s.store.LatestIngestRun(ctx)
	if err != nil && !db.IsNoRows(err) {
		s.logger.Error().Err(err).Msg("query latest run failed")
		return internalError(c, "Failed to load stats")
	}
	if latest != nil {
		item := runItemFromRow(latest)
		resp.LatestRun = &item
	}

	return success(c, resp)
}

func articleDetailFromRow(row *db.Article) articleDetail {
	return articleDetail{
		ID:           row.ID,
		PublishedAt:  row.PublishedAt,
		Source:       row.Source,
		Title:        row.Title,
		URL:          row.URL,
		URLCanonical: row.URLCanonical,
		Tags:         row.Tags,
		TitleHash:    row.TitleHash,
		Simhash:      row.Simhash,
		DuplicateOf:  row.DuplicateOf,
		Summary:      row.Summary,
		CreatedAt:    row.CreatedAt,
	}
}

func runItemFromRow(row *db.IngestRun) runItem {
	return runItem{
		RunID:          row.RunID,
		StartedAt:      row.StartedAt,
		FinishedAt:     row.FinishedAt,
		Status:         row.Status,
		SourcesScanned: row.SourcesScanned,
		ItemsSeen:      row.ItemsSeen,
		ItemsInserted:  row.ItemsInserted,
		NearDuplicates: row.NearDuplicates,
		ErrorMessage:   row.ErrorMessage,
	}
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}

func parseBoolParam(raw string) (bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false, nil
	}

	value, err := strconv.ParseBool(trimmed)
	if err != nil {
		return false, fmt.Errorf("must be a boolean")
	}
	return value, nil
}

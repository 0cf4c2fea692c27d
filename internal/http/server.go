// Package http exposes the JSON API used by the app's UI layer.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"farmdeck/internal/cache"
	"farmdeck/internal/core"
	applog "farmdeck/internal/log"
	"farmdeck/internal/share"
)

// ProjectAPI is the service surface the handlers call into.
type ProjectAPI interface {
	CreateProject(ctx context.Context, p core.Project) (core.Project, error)
	GetProject(ctx context.Context, id string) (core.Project, error)
	ListProjects(ctx context.Context) ([]core.Project, error)
	UpdateProject(ctx context.Context, p core.Project) error
	DeleteProject(ctx context.Context, id string) error

	CreateRecord(ctx context.Context, rec core.Record) (core.Record, error)
	GetRecord(ctx context.Context, id string) (core.Record, error)
	ListRecords(ctx context.Context, projectID string) ([]core.Record, error)
	UpdateRecord(ctx context.Context, rec core.Record) error
	DeleteRecord(ctx context.Context, projectID, id string) error

	MonthlySummaries(ctx context.Context, projectID string) ([]core.MonthlySummary, error)
	ExportPayload(ctx context.Context, projectID string, t share.PayloadType) (share.Payload, error)
}

// PayloadImporter applies a share payload to local storage.
type PayloadImporter interface {
	ImportJSON(ctx context.Context, data []byte) (share.Result, error)
}

type Server struct {
	http.Server
	service     ProjectAPI
	importer    PayloadImporter
	rateLimiter *rateLimiter
	metrics     *securityMetrics
	logger      *applog.StructuredLogger
	qrSize      int

	// Cached monthly summaries, invalidated on record writes.
	summaryCache *cache.LRUCache[[]core.MonthlySummary]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, service ProjectAPI, importer PayloadImporter, qrSize int) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		service:      service,
		importer:     importer,
		rateLimiter:  newRateLimiter(60, time.Minute),
		metrics:      &securityMetrics{},
		logger:       applog.NewStructuredLogger(applog.Default(applog.ComponentHTTP)),
		qrSize:       qrSize,
		summaryCache: cache.NewLRUCache[[]core.MonthlySummary](200, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/projects", s.secured(s.handleCreateProject))
	mux.HandleFunc("GET /api/projects", s.secured(s.handleListProjects))
	mux.HandleFunc("GET /api/projects/{id}", s.secured(s.handleGetProject))
	mux.HandleFunc("PUT /api/projects/{id}", s.secured(s.handleUpdateProject))
	mux.HandleFunc("DELETE /api/projects/{id}", s.secured(s.handleDeleteProject))

	mux.HandleFunc("POST /api/projects/{id}/records", s.secured(s.handleCreateRecord))
	mux.HandleFunc("GET /api/projects/{id}/records", s.secured(s.handleListRecords))
	mux.HandleFunc("PUT /api/projects/{id}/records/{recordID}", s.secured(s.handleUpdateRecord))
	mux.HandleFunc("DELETE /api/projects/{id}/records/{recordID}", s.secured(s.handleDeleteRecord))

	mux.HandleFunc("GET /api/projects/{id}/summary", s.secured(s.handleMonthlySummary))
	mux.HandleFunc("GET /api/projects/{id}/export", s.secured(s.handleExport))
	mux.HandleFunc("GET /api/projects/{id}/statement", s.secured(s.handleStatement))

	mux.HandleFunc("POST /api/import", s.secured(s.handleImport))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}

		rateLimitHits, suspicious := s.metrics.snapshot()
		slog.InfoContext(ctx, "Server shutting down",
			"rate_limit_hits", rateLimitHits,
			"suspicious_requests", suspicious)

		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// secured adds security headers, rate limiting, and request logging.
func (s *Server) secured(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		s.logger.HTTPStart(ctx, r, clientIP, requestID)

		if detectSuspiciousRequest(r, s.metrics) {
			s.logger.Suspicious(ctx, r, clientIP)
		}

		// Rate limit mutating requests
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP, s.metrics) {
			s.logger.RateLimited(ctx, r, clientIP)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		s.logger.HTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP, requestID)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) summaryCacheKey(projectID string) string {
	return "summary:" + projectID
}

// invalidateSummaries drops cached aggregations after a record write.
func (s *Server) invalidateSummaries(projectID string) {
	s.summaryCache.DeletePrefix(s.summaryCacheKey(projectID))
}

// Package server exposes the analysis engine over HTTP.
package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dataloom-cli/internal/analysis"
	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
	"github.com/KaramelBytes/dataloom-cli/internal/narrative"
)

// Config holds the server knobs.
type Config struct {
	Addr           string
	CacheSize      int
	MaxUploadBytes int64
	Decode         dataset.DecodeOptions
	Options        analysis.Options
	// Narrator, when set, rewrites summaries and strategies for each new result.
	Narrator *narrative.Narrator
	// Logger receives request and lifecycle logs. Nil discards them.
	Logger *zap.SugaredLogger
}

// Server serves POST /analyze, GET /analyses/{id} and GET /health.
type Server struct {
	cfg        Config
	byUpload   *lru.Cache[string, *analysis.Result]
	byID       *lru.Cache[string, *analysis.Result]
	httpServer *http.Server
	log        *zap.SugaredLogger
	startedAt  time.Time
}

// allowedType reports whether POST /analyze accepts an upload content type.
func allowedType(ct string) bool {
	switch ct {
	case "text/csv",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/octet-stream":
		return true
	}
	return false
}

// New builds a server. Zero config fields take defaults.
func New(cfg Config) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 64
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 25 << 20
	}
	byUpload, err := lru.New[string, *analysis.Result](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("result cache: %w", err)
	}
	byID, err := lru.New[string, *analysis.Result](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("id cache: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{cfg: cfg, byUpload: byUpload, byID: byID, log: logger, startedAt: time.Now()}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Handler returns the router with recovery, request IDs and CORS.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(corsMiddleware)

	r.Post("/analyze", s.handleAnalyze)
	r.Get("/analyses/{id}", s.handleGetAnalysis)
	r.Get("/health", s.handleHealth)
	return r
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.log.Infow("Server listening", "addr", ln.Addr().String(), "cache_size", s.cfg.CacheSize)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorw("Server stopped unexpectedly", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-Request-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func uploadKey(name string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Package httpapi exposes the gateway over HTTP: the chat endpoint, model
// catalog and availability checks, and the health probe.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/seqchat/seqchat/internal/gateway"
	"github.com/seqchat/seqchat/internal/llm"
	. "github.com/seqchat/seqchat/internal/logging"
)

// Server represents the HTTP server
type Server struct {
	server      *http.Server
	router      *gateway.Router
	registry    *llm.Registry
	prober      *llm.Prober
	uploads     *UploadStore
	corsOrigins []string
	wg          sync.WaitGroup
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Listen      string   // Address to listen on (e.g. ":8080")
	CORSOrigins []string // Browser origins allowed to call the API
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *ServerConfig, router *gateway.Router, registry *llm.Registry, prober *llm.Prober, uploads *UploadStore) *Server {
	listen := cfg.Listen
	if listen == "" {
		listen = ":8080"
	}

	s := &Server{
		router:      router,
		registry:    registry,
		prober:      prober,
		uploads:     uploads,
		corsOrigins: cfg.CORSOrigins,
	}

	s.server = &http.Server{
		Addr:    listen,
		Handler: s.setupRoutes(),
		// Generation and analysis calls can legitimately run for minutes.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Apply middleware chain: logging -> strip headers -> CORS
	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		return s.logRequest(s.stripHeaders(s.cors(h)))
	}

	mux.HandleFunc("/api/chat", wrap(s.handleChat))
	mux.HandleFunc("/api/check-model", wrap(s.handleCheckModel))
	mux.HandleFunc("/api/models", wrap(s.handleModels))
	mux.HandleFunc("/health", wrap(s.handleHealth))

	return mux
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		L_info("http: server starting", "addr", s.server.Addr)

		err := s.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			L_error("http: server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		L_error("http: shutdown error", "error", err)
		return err
	}

	s.wg.Wait()
	L_info("http: server stopped")
	return nil
}

// logRequest wraps an HTTP handler to log requests
func (s *Server) logRequest(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(lw, r)

		L_debug("http: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", lw.statusCode,
			"duration", time.Since(start))
	}
}

// loggingResponseWriter wraps ResponseWriter to capture status code
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lw *loggingResponseWriter) WriteHeader(code int) {
	lw.statusCode = code
	lw.ResponseWriter.WriteHeader(code)
}

// stripHeaders removes fingerprinting headers
func (s *Server) stripHeaders(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Del("Server")
		w.Header().Del("X-Powered-By")

		handler(w, r)
	}
}

// cors answers preflight requests and stamps the allow headers for
// configured browser origins.
func (s *Server) cors(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		handler(w, r)
	}
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.corsOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// writeJSON renders v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		L_error("http: response encoding failed", "error", err)
	}
}

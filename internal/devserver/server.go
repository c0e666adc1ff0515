// Package devserver is a local stand-in for the tuber admin server. It
// serves the same GraphQL operations from a JSON file so the dashboard can
// be developed and tested without a cluster.
package devserver

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"

	"github.com/freshly/tuberdash/internal/api"
	"github.com/freshly/tuberdash/internal/config"
)

//go:embed schema.graphql
var schemaSDL string

// DefaultAddr is where `tuberdash serve` listens unless told otherwise.
const DefaultAddr = "127.0.0.1:3001"

// Options configures a Server.
type Options struct {
	Addr   string
	Prefix string
	// Token, when set, must accompany every GraphQL request.
	Token string
	// LoginURL is sent in the auth redirect header on rejected requests.
	LoginURL string
	Version  string
	Logger   *slog.Logger
}

// Server is the dev GraphQL server.
type Server struct {
	httpServer *http.Server
	store      *Store
	logger     *slog.Logger
	opts       Options
}

// NewServer parses the schema and builds the route table.
func NewServer(store *Store, opts Options) (*Server, error) {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.Prefix == "" {
		opts.Prefix = config.DefaultPrefix
	}
	opts.Prefix = "/" + strings.Trim(opts.Prefix, "/")
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{store: store, logger: opts.Logger, opts: opts}

	schema, err := graphql.ParseSchema(schemaSDL, &Resolver{store: store, logger: opts.Logger},
		graphql.UseFieldResolvers())
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(opts.Prefix+"/graphql", s.requireToken(&relay.Handler{Schema: schema}))
	mux.HandleFunc(opts.Prefix+"/health", s.handleHealth)
	mux.HandleFunc(opts.Prefix+"/reload", s.handleReload)

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.securityHeaders(s.logRequests(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler exposes the routes for httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Endpoint is the GraphQL URL for a server reachable at baseURL.
func (s *Server) Endpoint(baseURL string) string {
	return config.Endpoint(baseURL, s.opts.Prefix)
}

// Start begins listening. Returns an error if the address is taken.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("%s is already in use: %w", s.httpServer.Addr, err)
	}
	s.logger.Info("dev server listening", "addr", s.httpServer.Addr,
		"graphql", s.opts.Prefix+"/graphql", "data", s.store.Path())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// securityHeaders adds security response headers.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"request_id", r.Header.Get(api.RequestIDHeader), "duration", time.Since(start))
	})
}

// requireToken rejects GraphQL requests without the configured token. With a
// login URL the rejection carries the auth redirect header, as tuber's own
// auth middleware does.
func (s *Server) requireToken(next http.Handler) http.Handler {
	if s.opts.Token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestToken(r) == s.opts.Token {
			next.ServeHTTP(w, r)
			return
		}
		s.logger.Warn("rejected unauthenticated request", "path", r.URL.Path)
		if s.opts.LoginURL != "" {
			w.Header().Set(api.AuthRedirectHeader, s.opts.LoginURL)
		}
		writeGraphQLError(w, http.StatusUnauthorized, "unauthorized")
	})
}

func requestToken(r *http.Request) string {
	if t := r.Header.Get(api.TokenHeader); t != "" {
		return t
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// --- health & reload ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.opts.Version,
		"cluster": s.store.Cluster().Name,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.store.Load(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeGraphQLError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"errors": []map[string]string{{"message": msg}},
	})
}

// WaitForReady polls the health endpoint under baseURL until it answers or
// ctx is cancelled.
func WaitForReady(ctx context.Context, baseURL, prefix string) error {
	if prefix == "" {
		prefix = config.DefaultPrefix
	}
	url := strings.TrimRight(baseURL, "/") + "/" + strings.Trim(prefix, "/") + "/health"
	client := &http.Client{Timeout: 500 * time.Millisecond}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
}

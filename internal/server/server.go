// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package server provides the HTTP façade over the engine (spec §6): JSON
// search and image endpoints, a reindex/status surface, the weights-fetch
// surface (including a server-sent progress stream), and settings CRUD.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"photolens/internal/app"
)

// Config holds server configuration.
type Config struct {
	Addr           string
	Port           int
	AllowedOrigins []string // CORS origins
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr: "0.0.0.0",
		Port: 8080,
	}
}

// Server is the HTTP façade over an *app.App.
type Server struct {
	config     Config
	app        *app.App
	httpServer *http.Server
	reindex    *reindexTracker
}

// New creates a new server wrapping app with the given configuration.
func New(cfg Config, a *app.App) *Server {
	return &Server{
		config:  cfg,
		app:     a,
		reindex: newReindexTracker(a),
	}
}

// ListenAndServe starts the HTTP server and blocks until ctx is cancelled or
// the server fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	s.registerAPIRoutes(mux)

	addr := fmt.Sprintf("%s:%d", s.config.Addr, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.corsMiddleware(s.loggingMiddleware(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // the SSE progress stream holds the connection open
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("photolens listening on http://%s", addr)

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// registerAPIRoutes sets up every endpoint spec §6 names.
func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /search", s.handleSearchText)
	mux.HandleFunc("POST /search/image", s.handleSearchImage)
	mux.HandleFunc("GET /search/tags", s.handleSearchTags)
	mux.HandleFunc("GET /search/browse", s.handleSearchBrowse)

	mux.HandleFunc("GET /images/{id}/thumb", s.handleImageThumb)
	mux.HandleFunc("GET /images/{id}/full", s.handleImageFull)
	mux.HandleFunc("PATCH /images/{id}/tags", s.handleImageTags)
	mux.HandleFunc("PATCH /images/{id}/blur", s.handleImageBlur)
	mux.HandleFunc("DELETE /images/{id}", s.handleImageDelete)

	mux.HandleFunc("POST /index/reindex", s.handleReindexStart)
	mux.HandleFunc("GET /index/status", s.handleReindexStatus)

	mux.HandleFunc("POST /models/download", s.handleModelsDownload)
	mux.HandleFunc("GET /models/status", s.handleModelsStatus)
	mux.HandleFunc("GET /models/progress", s.handleModelsProgress)
	mux.HandleFunc("POST /models/verify", s.handleModelsStatus)

	mux.HandleFunc("GET /settings/folders", s.handleFoldersList)
	mux.HandleFunc("POST /settings/folders", s.handleFoldersAdd)
	mux.HandleFunc("DELETE /settings/folders/{id}", s.handleFoldersRemove)
	mux.HandleFunc("GET /settings/token/status", s.handleTokenStatus)
	mux.HandleFunc("POST /settings/token", s.handleTokenSet)
	mux.HandleFunc("DELETE /settings/token", s.handleTokenClear)
	mux.HandleFunc("GET /settings/advanced", s.handleAdvancedGet)
	mux.HandleFunc("POST /settings/advanced", s.handleAdvancedSet)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" {
			allowed := len(s.config.AllowedOrigins) == 0
			for _, o := range s.config.AllowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}
			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

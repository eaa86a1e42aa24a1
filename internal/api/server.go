// Package api provides the REST surface of the analytics engine.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fare_analytics/internal/analysis"
	"fare_analytics/internal/storage"
)

// requestTimeout is the per-request analysis deadline.
const requestTimeout = 30 * time.Second

// AirlineStore lists airlines for the airline lookup endpoint.
type AirlineStore interface {
	AirlinesForRoute(ctx context.Context, origins []string, destination string) ([]storage.Airline, error)
}

// Server exposes the analysis operation over HTTP.
type Server struct {
	analyzer    *analysis.Analyzer
	store       AirlineStore
	port        int
	authEnabled bool
	apiKeys     map[string]bool // Simple API key auth (when enabled).
}

// Config holds configuration for the analytics API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string // List of valid API keys.
}

// NewServer creates a new analytics API server.
func NewServer(analyzer *analysis.Analyzer, store AirlineStore, cfg Config) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	return &Server{
		analyzer:    analyzer,
		store:       store,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
	}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(requestTimeout))

	// CORS for browser access.
	r.Use(corsMiddleware)

	// Optional authentication.
	if s.authEnabled {
		r.Use(s.authMiddleware)
	}

	// API routes.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/airlines/{origin}/{destination}", s.handleAirlines)
	})

	addr := ":" + strconv.Itoa(s.port)
	log.Printf("Analytics API starting at http://localhost%s", addr)
	if s.authEnabled {
		log.Printf("Authentication: ENABLED (API key required)")
	} else {
		log.Printf("Authentication: DISABLED (open access)")
	}

	return http.ListenAndServe(addr, r)
}

// Router returns the configured chi router for embedding in other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	if s.authEnabled {
		r.Use(s.authMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Post("/analyze", s.handleAnalyze)
	r.Get("/airlines/{origin}/{destination}", s.handleAirlines)

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check X-API-Key header first.
		apiKey := r.Header.Get("X-API-Key")

		// Fall back to Authorization: Bearer <key>.
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Fall back to query parameter (for simple testing).
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := s.analyzer.AnalyzeFlightPrices(r.Context(), req)
	if err != nil {
		switch analysis.KindOf(err) {
		case analysis.KindInput:
			writeError(w, http.StatusBadRequest, err.Error())
		case analysis.KindTimeout:
			writeError(w, http.StatusGatewayTimeout, err.Error())
		default:
			log.Printf("analyze: %v", err)
			writeError(w, http.StatusInternalServerError, "analysis failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// airlineResponse is the JSON shape of the airline lookup.
type airlineResponse struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	NameTH string `json:"nameTh,omitempty"`
}

func (s *Server) handleAirlines(w http.ResponseWriter, r *http.Request) {
	origin := chi.URLParam(r, "origin")
	destination := chi.URLParam(r, "destination")

	airlines, err := s.store.AirlinesForRoute(r.Context(), []string{strings.ToUpper(origin)}, strings.ToUpper(destination))
	if err != nil {
		log.Printf("airlines: %v", err)
		writeError(w, http.StatusInternalServerError, "airline lookup failed")
		return
	}

	out := make([]airlineResponse, 0, len(airlines))
	for _, a := range airlines {
		out = append(out, airlineResponse{Code: a.Code, Name: a.Name, NameTH: a.NameTH})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

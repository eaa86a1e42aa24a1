package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fare_analytics/internal/storage"
)

type stubAirlineStore struct{}

func (stubAirlineStore) AirlinesForRoute(ctx context.Context, origins []string, destination string) ([]storage.Airline, error) {
	return []storage.Airline{{Code: "TG", Name: "Thai Airways", NameTH: "การบินไทย"}}, nil
}

func TestHandleHealth(t *testing.T) {
	s := NewServer(nil, stubAirlineStore{}, Config{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandleAirlines(t *testing.T) {
	s := NewServer(nil, stubAirlineStore{}, Config{})
	req := httptest.NewRequest(http.MethodGet, "/airlines/bkk/hkt", nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Thai Airways") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := NewServer(nil, stubAirlineStore{}, Config{AuthEnabled: true, APIKeys: []string{"secret"}})

	// No key.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d", rec.Code)
	}

	// Wrong key.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong key: status = %d", rec.Code)
	}

	// Valid key via bearer token.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid key: status = %d", rec.Code)
	}
}

func TestHandleAnalyzeRejectsBadBody(t *testing.T) {
	s := NewServer(nil, stubAirlineStore{}, Config{})
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mirado-ravelo/safidy/archive"
	"github.com/mirado-ravelo/safidy/facematch"
	"github.com/mirado-ravelo/safidy/models"
	"github.com/mirado-ravelo/safidy/testutil"
	"github.com/mirado-ravelo/safidy/tokenstore"
)

func newTestRouter(db *sql.DB) *http.ServeMux {
	cfg := testutil.GetTestConfig()
	return NewRouter(db, cfg, Deps{
		Tokens:   tokenstore.NewMemory(0),
		Faces:    &testutil.FakeComparer{Result: facematch.Result{Matched: true}},
		Mailer:   &testutil.FakeSender{},
		Renderer: archive.TextRenderer{},
	})
}

func TestHealthEndpoint(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	mux := newTestRouter(db)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	mux := newTestRouter(db)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	expected := "safidy API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
}

func TestRootDoesNotSwallowUnmatchedPaths(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	mux := newTestRouter(db)

	req := httptest.NewRequest("GET", "/no-such-path", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unmatched path, got %d. Body: %s", w.Code, w.Body.String())
	}
}

func TestRouteExistence(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	mux := newTestRouter(db)

	// Handlers may answer 400/401/404 for missing data; only 405 means the
	// route itself is not registered
	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/"},

		{"POST", "/voters"},
		{"GET", "/voters/test-id"},

		{"POST", "/elections"},
		{"POST", "/elections/test-id/candidates"},
		{"POST", "/elections/test-id/open"},
		{"POST", "/elections/test-id/next-round"},
		{"POST", "/elections/test-id/close"},

		{"POST", "/auth/start"},
		{"POST", "/auth/test-id/face"},
		{"POST", "/auth/test-id/verify-otp"},
		{"DELETE", "/auth/test-id"},

		{"POST", "/elections/test-id/votes"},
		{"GET", "/elections/test-id/has-voted/test-session"},
		{"GET", "/elections/test-id/results"},
		{"GET", "/elections/test-id/final-result"},
		{"PATCH", "/elections/test-id/final-result/publish"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code == http.StatusMethodNotAllowed {
				t.Errorf("Route %s %s returned 405, expected route handler to exist", tc.method, tc.path)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	mux := newTestRouter(db)

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/health"}, // Only GET is defined
		{"DELETE", "/elections/test-id/results"}, // Only GET is defined
		{"POST", "/elections/test-id/final-result/publish"}, // Only PATCH is defined
		{"GET", "/auth/start"}, // Only POST is defined
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected 405 for %s %s, got %d", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestPathParameterExtraction(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	electionID, _ := testutil.CreateTestElection(t, db, cfg, models.StatusOngoing)

	mux := newTestRouter(db)

	t.Run("election ID extraction", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/elections/"+electionID+"/results", nil)
		w := httptest.NewRecorder()

		mux.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected 200 for existing election, got %d. Body: %s", w.Code, w.Body.String())
		}
	})

	t.Run("unknown election ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/elections/no-such-election/results", nil)
		w := httptest.NewRecorder()

		mux.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404 for unknown election, got %d", w.Code)
		}
	})
}

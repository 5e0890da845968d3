package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newCoreTestAPI() *api {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newAPI(nil, nil, log, config{})
}

func TestRateLimitWindow(t *testing.T) {
	a := newCoreTestAPI()
	for i := 0; i < 3; i++ {
		if !a.allow("1.2.3.4", "auth", 3, time.Minute) {
			t.Fatalf("request %d denied within limit", i+1)
		}
	}
	if a.allow("1.2.3.4", "auth", 3, time.Minute) {
		t.Error("request over the limit was allowed")
	}
	// Different IP and different key each get their own bucket.
	if !a.allow("5.6.7.8", "auth", 3, time.Minute) {
		t.Error("other IP denied")
	}
	if !a.allow("1.2.3.4", "other", 3, time.Minute) {
		t.Error("other key denied")
	}
}

func TestWithRateLimitResponds429(t *testing.T) {
	a := newCoreTestAPI()
	h := a.withRateLimit("test", 1, time.Minute, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"ok": true})
	})

	r := httptest.NewRequest("POST", "/api/auth/login", nil)
	r.RemoteAddr = "9.9.9.9:1234"
	w := httptest.NewRecorder()
	h(w, r)
	if w.Code != 200 {
		t.Fatalf("first request status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	h(w, r)
	if w.Code != 429 {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}
	var body struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.OK || body.Error == "" {
		t.Errorf("body = %+v, want ok=false with error message", body)
	}
}

func TestReadJSONRejectsUnknownFields(t *testing.T) {
	var dst struct {
		Title string `json:"title"`
	}
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"title":"x","bogus":1}`))
	w := httptest.NewRecorder()
	if err := readJSON(w, r, &dst); err == nil {
		t.Error("readJSON() accepted an unknown field")
	}

	r = httptest.NewRequest("POST", "/", strings.NewReader(`{"title":"x"}`))
	if err := readJSON(w, r, &dst); err != nil {
		t.Errorf("readJSON() error = %v", err)
	}
	if dst.Title != "x" {
		t.Errorf("dst.Title = %q, want x", dst.Title)
	}
}

func TestParseDate(t *testing.T) {
	if _, err := parseDate("2024-03-01"); err != nil {
		t.Errorf("parseDate(date-only) error = %v", err)
	}
	if _, err := parseDate("2024-03-01T09:30:00Z"); err != nil {
		t.Errorf("parseDate(RFC3339) error = %v", err)
	}
	if _, err := parseDate("yesterday"); err == nil {
		t.Error("parseDate() accepted junk")
	}
}

func TestStoreErrorMapping(t *testing.T) {
	a := newCoreTestAPI()
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", ErrNotFound, 404},
		{"forbidden", ErrForbidden, 403},
		{"conflict", ErrConflict, 400},
		{"invalid state", ErrInvalidState, 400},
		{"unexpected", errors.New("boom"), 500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			a.storeError(w, tc.err, "thing")
			if w.Code != tc.status {
				t.Errorf("status = %d, want %d", w.Code, tc.status)
			}
		})
	}
}

func TestStoreErrorProductionHidesDetail(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := newAPI(nil, nil, log, config{Production: true})
	w := httptest.NewRecorder()
	a.storeError(w, errors.New("pq: secret table missing"), "thing")
	if strings.Contains(w.Body.String(), "secret table") {
		t.Errorf("production 500 leaked internals: %s", w.Body.String())
	}
}

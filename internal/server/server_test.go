// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"photolens/internal/app"
	"photolens/internal/config"
)

func testServer(t *testing.T) (*Server, *app.App) {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	a, err := app.New(cfg)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	s := New(DefaultConfig(), a)
	mux := http.NewServeMux()
	s.registerAPIRoutes(mux)
	return s, a
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := testServer(t)
	mux := http.NewServeMux()
	s.registerAPIRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSearchTextFallsBackWhenEmbedderNotReady(t *testing.T) {
	s, _ := testServer(t)
	mux := http.NewServeMux()
	s.registerAPIRoutes(mux)

	body := strings.NewReader(`{"query":"cat","limit":10,"offset":0}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/search", body)
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestSearchImageReturns503WhenEmbedderNotReady(t *testing.T) {
	s, _ := testServer(t)
	mux := http.NewServeMux()
	s.registerAPIRoutes(mux)

	var buf strings.Builder
	writer := newMultipartFile(t, &buf, "file", "x.jpg", []byte("not-a-real-image"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/search/image", strings.NewReader(buf.String()))
	req.Header.Set("Content-Type", writer)
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestFoldersAddAndList(t *testing.T) {
	s, _ := testServer(t)
	mux := http.NewServeMux()
	s.registerAPIRoutes(mux)

	dir := t.TempDir()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/settings/folders", strings.NewReader(`{"path":"`+dir+`"}`))
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 adding folder, got %d: %s", rec.Code, rec.Body.String())
	}

	rec2 := httptest.NewRecorder()
	mux.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/settings/folders", nil))
	var listResp struct {
		Folders []struct {
			ID   int64  `json:"ID"`
			Path string `json:"Path"`
		} `json:"folders"`
	}
	if err := json.Unmarshal(rec2.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode folders: %v", err)
	}
	if len(listResp.Folders) != 1 {
		t.Fatalf("expected 1 folder, got %+v", listResp.Folders)
	}
}

func TestAdvancedSettingsRoundTrip(t *testing.T) {
	s, _ := testServer(t)
	mux := http.NewServeMux()
	s.registerAPIRoutes(mux)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/settings/advanced", strings.NewReader(`{"autoIndexing":false,"minScore":0.5}`))
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		AutoIndexing bool    `json:"autoIndexing"`
		MinScore     float64 `json:"minScore"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AutoIndexing || resp.MinScore != 0.5 {
		t.Fatalf("expected settings to apply, got %+v", resp)
	}
}

// newMultipartFile writes a minimal multipart body with one file field into
// buf and returns the Content-Type header value to use.
func newMultipartFile(t *testing.T, buf *strings.Builder, field, filename string, content []byte) string {
	t.Helper()
	boundary := "photolenstestboundary"
	buf.WriteString("--" + boundary + "\r\n")
	buf.WriteString(`Content-Disposition: form-data; name="` + field + `"; filename="` + filename + `"` + "\r\n")
	buf.WriteString("Content-Type: application/octet-stream\r\n\r\n")
	buf.Write(content)
	buf.WriteString("\r\n--" + boundary + "--\r\n")
	return "multipart/form-data; boundary=" + boundary
}

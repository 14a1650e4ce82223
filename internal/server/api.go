// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"photolens/internal/apperr"
	"photolens/internal/query"
	"photolens/internal/store"
)

// favoriteTag is the reserved tag PATCH /images/{id}/tags reads to derive
// the favorite column (spec §6).
const favoriteTag = "__sys_favorite__"

// searchRequest is the body of POST /search.
type searchRequest struct {
	Query   string     `json:"query"`
	Filters filtersDTO `json:"filters"`
	Limit   int        `json:"limit"`
	Offset  int        `json:"offset"`
}

type filtersDTO struct {
	MinScore *float64 `json:"minScore,omitempty"`
	Folder   string   `json:"folder,omitempty"`
	DateFrom string   `json:"dateFrom,omitempty"`
	DateTo   string   `json:"dateTo,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

func (f filtersDTO) toFilters() query.Filters {
	out := query.Filters{MinScore: f.MinScore, FolderPath: f.Folder, Tags: f.Tags}
	if t, err := time.Parse(time.RFC3339, f.DateFrom); err == nil {
		out.DateFrom = &t
	}
	if t, err := time.Parse(time.RFC3339, f.DateTo); err == nil {
		out.DateTo = &t
	}
	return out
}

// imageDTO is the JSON shape of one search/browse result (spec §3's image
// record, trimmed to what a client needs).
type imageDTO struct {
	ID           int64          `json:"id"`
	Path         string         `json:"path"`
	Score        float64        `json:"score"`
	Width        int            `json:"width,omitempty"`
	Height       int            `json:"height,omitempty"`
	SizeBytes    int64          `json:"sizeBytes"`
	LastModified time.Time      `json:"lastModified"`
	Favorite     bool           `json:"favorite"`
	Blurred      bool           `json:"blurred"`
	Blob         map[string]any `json:"blob,omitempty"`
}

func toImageDTO(h query.Hit) imageDTO {
	r := h.Record
	return imageDTO{
		ID:           r.ID,
		Path:         r.Path,
		Score:        h.Score,
		Width:        r.Width,
		Height:       r.Height,
		SizeBytes:    r.SizeBytes,
		LastModified: r.LastModified,
		Favorite:     r.Favorite,
		Blurred:      r.Blurred,
		Blob:         r.Blob,
	}
}

func toImageDTOs(hits []query.Hit) []imageDTO {
	out := make([]imageDTO, len(hits))
	for i, h := range hits {
		out[i] = toImageDTO(h)
	}
	return out
}

func (s *Server) handleSearchText(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	limit := normalizeLimit(req.Limit)

	filters := req.Filters.toFilters()
	if filters.MinScore == nil {
		min := s.app.MinScore()
		filters.MinScore = &min
	}

	result, err := s.app.Query.SearchText(req.Query, filters, limit, req.Offset)
	if err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results":    toImageDTOs(result.Hits),
		"count":      result.Count,
		"totalCount": result.TotalCount,
		"query":      result.CleanQuery,
	})
}

func (s *Server) handleSearchImage(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing multipart field \"file\"")
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "photolens-query-*.jpg")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not buffer uploaded image")
		return
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	if _, err := io.Copy(tmp, file); err != nil {
		writeError(w, http.StatusInternalServerError, "could not buffer uploaded image")
		return
	}
	tmp.Close()

	limit := normalizeLimit(queryInt(r, "limit", 30))
	offset := queryInt(r, "offset", 0)

	min := s.app.MinScore()
	result, err := s.app.Query.SearchImage(tmp.Name(), query.Filters{MinScore: &min}, limit, offset)
	if err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": toImageDTOs(result.Hits),
		"count":   result.Count,
	})
}

func (s *Server) handleSearchTags(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	if tag == "" {
		writeError(w, http.StatusBadRequest, "missing required query param \"tag\"")
		return
	}
	limit := normalizeLimit(queryInt(r, "limit", 50))

	result, err := s.app.Query.BrowseByTag(tag, limit)
	if err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": toImageDTOs(result.Hits),
		"count":   result.Count,
		"tag":     tag,
	})
}

func (s *Server) handleSearchBrowse(w http.ResponseWriter, r *http.Request) {
	folder := r.URL.Query().Get("folder")
	if folder == "" {
		writeError(w, http.StatusBadRequest, "missing required query param \"folder\"")
		return
	}
	limit := normalizeLimit(queryInt(r, "limit", 50))
	offset := queryInt(r, "offset", 0)

	result, err := s.app.Query.BrowseByFolder(folder, limit, offset)
	if err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": toImageDTOs(result.Hits),
		"count":   result.Count,
		"folder":  folder,
	})
}

func (s *Server) handleImageThumb(w http.ResponseWriter, r *http.Request) {
	rec, err := s.findImage(w, r)
	if err != nil {
		return
	}
	path := rec.ThumbnailPath
	if path == "" {
		path = rec.Path
	}
	if _, err := os.Stat(path); err != nil {
		path = rec.Path
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleImageFull(w http.ResponseWriter, r *http.Request) {
	rec, err := s.findImage(w, r)
	if err != nil {
		return
	}
	http.ServeFile(w, r, rec.Path)
}

func (s *Server) handleImageTags(w http.ResponseWriter, r *http.Request) {
	rec, err := s.findImage(w, r)
	if err != nil {
		return
	}
	var blob map[string]any
	if err := json.NewDecoder(r.Body).Decode(&blob); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if rec.Blob == nil {
		rec.Blob = map[string]any{}
	}
	for k, v := range blob {
		rec.Blob[k] = v
	}
	rec.Favorite = blobHasFavoriteTag(rec.Blob)

	if err := s.app.Store.Save(rec); err != nil {
		writeError(w, http.StatusInternalServerError, "could not save tags")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated"})
}

func blobHasFavoriteTag(blob map[string]any) bool {
	raw, ok := blob["tags"]
	if !ok {
		return false
	}
	list, ok := raw.([]any)
	if !ok {
		return false
	}
	for _, v := range list {
		if s, ok := v.(string); ok && s == favoriteTag {
			return true
		}
	}
	return false
}

func (s *Server) handleImageBlur(w http.ResponseWriter, r *http.Request) {
	rec, err := s.findImage(w, r)
	if err != nil {
		return
	}
	blurred, parseErr := strconv.ParseBool(r.URL.Query().Get("blurred"))
	if parseErr != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing \"blurred\" query param")
		return
	}
	rec.Blurred = blurred
	if err := s.app.Store.Save(rec); err != nil {
		writeError(w, http.StatusInternalServerError, "could not save blur state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated", "blurred": rec.Blurred})
}

func (s *Server) handleImageDelete(w http.ResponseWriter, r *http.Request) {
	rec, err := s.findImage(w, r)
	if err != nil {
		return
	}
	if err := s.app.Store.Delete(rec); err != nil {
		writeError(w, http.StatusInternalServerError, "could not delete record")
		return
	}
	s.app.Index.Remove(rec.ID)
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// findImage resolves {id} and writes a 400/404 response itself on failure,
// returning a non-nil error so the caller can just `return`.
func (s *Server) findImage(w http.ResponseWriter, r *http.Request) (*store.ImageRecord, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image id")
		return nil, err
	}
	rec, err := s.app.Store.FindByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return nil, err
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "image not found")
		return nil, apperr.ErrNotFound
	}
	return rec, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 30
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// --- Response helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeAppErr maps an apperr.Kind to spec §7's HTTP status and writes the
// standard {error} body.
func writeAppErr(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(apperr.KindOf(err))
	writeError(w, status, err.Error())
}

// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package query is the query engine (spec §4.10): text/image search against
// the vector index with a filename-substring fallback when the embedding
// service isn't ready, post-scoring filters, and plain tag/folder browsing
// that bypasses the vector path entirely.
//
// Grounded on Tejas242-sift's internal/index.Index.Search (overfetch
// factor, post-retrieval filtering, result assembly), generalized from its
// fixed k*5/dedupe-by-file shape to a configurable k_overfetch formula and
// filter set (min_score, folder, date range, tags).
package query

import (
	"strings"
	"time"

	"photolens/internal/apperr"
	"photolens/internal/dateparse"
	"photolens/internal/store"
	"photolens/internal/vectorindex"
)

// DefaultMinScore is the default score floor (spec §4.10).
const DefaultMinScore = 0.24

// favoriteTag is the reserved tag that denormalizes the favorite column into
// the tag-search surface (spec §3, §9 Open Question 3).
const favoriteTag = "__sys_favorite__"

// Embedder is the narrow capability the query engine needs from the
// embedding service.
type Embedder interface {
	IsReady() bool
	EmbedText(s string) []float32
	EmbedImage(path string) []float32
}

// Filters are the post-scoring predicates of spec §4.10.
type Filters struct {
	MinScore   *float64
	FolderPath string
	DateFrom   *time.Time
	DateTo     *time.Time
	Tags       []string
}

// Hit pairs a hydrated record with its similarity score (1.0 for
// non-scored fallback/browse results).
type Hit struct {
	Record *store.ImageRecord
	Score  float64
}

// Result is the outcome of a search: the page of hits, how many were
// returned, and (for text search) how many passed filtering before paging.
type Result struct {
	Hits       []Hit
	Count      int
	TotalCount int
	CleanQuery string
}

// Engine answers search, browse, and tag-lookup queries.
type Engine struct {
	repo     store.Repository
	index    *vectorindex.Index
	embedder Embedder
}

// New returns a query Engine.
func New(repo store.Repository, index *vectorindex.Index, embedder Embedder) *Engine {
	return &Engine{repo: repo, index: index, embedder: embedder}
}

// overfetchK computes k_overfetch = max(4*limit, 100), capped at 2000
// (spec §4.10).
func overfetchK(limit int) int {
	k := 4 * limit
	if k < 100 {
		k = 100
	}
	if k > 2000 {
		k = 2000
	}
	return k
}

// SearchText runs the text query path: natural-language date extraction,
// embed-or-fallback, overfetch, hydrate, filter, paginate.
func (e *Engine) SearchText(rawQuery string, filters Filters, limit, offset int) (Result, error) {
	parsed := dateparse.Parse(rawQuery, time.Now())
	if parsed.Range != nil {
		if filters.DateFrom == nil {
			filters.DateFrom = &parsed.Range.From
		}
		if filters.DateTo == nil {
			filters.DateTo = &parsed.Range.To
		}
	}
	cleanQuery := parsed.CleanQuery

	if !e.embedder.IsReady() {
		records, err := e.repo.FindByFilenameSubstring(cleanQuery, limit, offset)
		if err != nil {
			return Result{}, err
		}
		hits := make([]Hit, 0, len(records))
		for _, r := range records {
			if passesFilters(r, filters, nil) {
				hits = append(hits, Hit{Record: r, Score: 1})
			}
		}
		return Result{Hits: hits, Count: len(hits), TotalCount: len(hits), CleanQuery: cleanQuery}, nil
	}

	vec := e.embedder.EmbedText(cleanQuery)
	if vec == nil {
		return Result{CleanQuery: cleanQuery}, nil
	}
	return e.searchVector(vec, filters, limit, offset, cleanQuery)
}

// SearchImage runs the image query path (visual similarity). Returns
// apperr.KindNotReady if the embedding service isn't loaded (spec §4.10,
// §7: 503 service-unavailable).
func (e *Engine) SearchImage(imagePath string, filters Filters, limit, offset int) (Result, error) {
	if !e.embedder.IsReady() {
		return Result{}, apperr.New(apperr.KindNotReady, "embedding service is not ready")
	}
	vec := e.embedder.EmbedImage(imagePath)
	if vec == nil {
		return Result{}, apperr.New(apperr.KindIOFailed, "could not embed the uploaded image")
	}
	return e.searchVector(vec, filters, limit, offset, "")
}

func (e *Engine) searchVector(vec []float32, filters Filters, limit, offset int, cleanQuery string) (Result, error) {
	// top_k is invoked with the real offset, per spec §4.10: the window
	// of candidate vectors is shifted before hydration and filtering, not
	// after.
	k := overfetchK(limit)
	rawHits := e.index.TopK(vec, k, offset)

	ids := make([]int64, len(rawHits))
	scoreByID := make(map[int64]float64, len(rawHits))
	for i, h := range rawHits {
		ids[i] = h.ID
		scoreByID[h.ID] = float64(h.Score)
	}

	records := make([]*store.ImageRecord, 0, len(ids))
	for _, id := range ids {
		r, err := e.repo.FindByID(id)
		if err != nil {
			return Result{}, err
		}
		if r != nil {
			records = append(records, r)
		}
	}

	filtered := make([]Hit, 0, len(records))
	for _, r := range records {
		score := scoreByID[r.ID]
		if passesFilters(r, filters, &score) {
			filtered = append(filtered, Hit{Record: r, Score: score})
		}
	}

	total := len(filtered)
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return Result{Hits: filtered, Count: len(filtered), TotalCount: total, CleanQuery: cleanQuery}, nil
}

// passesFilters applies every post-scoring predicate of spec §4.10. score
// is nil for the filename-substring fallback path, which skips min_score.
func passesFilters(r *store.ImageRecord, f Filters, score *float64) bool {
	if score != nil {
		minScore := DefaultMinScore
		if f.MinScore != nil {
			minScore = *f.MinScore
		}
		if *score < minScore {
			return false
		}
	}

	if f.FolderPath != "" && !strings.Contains(r.Path, f.FolderPath) {
		return false
	}

	if f.DateFrom != nil && r.LastModified.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && r.LastModified.After(*f.DateTo) {
		return false
	}

	if len(f.Tags) > 0 && !matchesTags(r, f.Tags) {
		return false
	}

	return true
}

// matchesTags implements spec §4.10's tag predicate: every listed tag must
// appear case-insensitively in the blob's tags array; __sys_favorite__ maps
// to the favorite column, and if it's the only requested tag the
// tag-array check is skipped entirely.
func matchesTags(r *store.ImageRecord, tags []string) bool {
	if len(tags) == 1 && strings.EqualFold(tags[0], favoriteTag) {
		return r.Favorite
	}

	recordTags := extractTags(r)
	lowerRecordTags := make(map[string]bool, len(recordTags))
	for _, t := range recordTags {
		lowerRecordTags[strings.ToLower(t)] = true
	}

	for _, want := range tags {
		if strings.EqualFold(want, favoriteTag) {
			if !r.Favorite {
				return false
			}
			continue
		}
		if !lowerRecordTags[strings.ToLower(want)] {
			return false
		}
	}
	return true
}

func extractTags(r *store.ImageRecord) []string {
	if r.Blob == nil {
		return nil
	}
	raw, ok := r.Blob["tags"]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// BrowseByTag bypasses the vector path and reads directly from the durable
// store: a substring predicate on the opaque JSON blob, arbitrary order,
// capped by limit (spec §4.10).
func (e *Engine) BrowseByTag(tag string, limit int) (Result, error) {
	records, err := e.repo.FindByTagSubstring(tag, limit)
	if err != nil {
		return Result{}, err
	}
	hits := make([]Hit, len(records))
	for i, r := range records {
		hits[i] = Hit{Record: r, Score: 1}
	}
	return Result{Hits: hits, Count: len(hits), TotalCount: len(hits)}, nil
}

// BrowseByFolder bypasses the vector path and reads directly from the
// durable store: a substring predicate on the stored path.
func (e *Engine) BrowseByFolder(folder string, limit, offset int) (Result, error) {
	records, err := e.repo.FindByFolderSubstring(folder, limit, offset)
	if err != nil {
		return Result{}, err
	}
	hits := make([]Hit, len(records))
	for i, r := range records {
		hits[i] = Hit{Record: r, Score: 1}
	}
	return Result{Hits: hits, Count: len(hits), TotalCount: len(hits)}, nil
}

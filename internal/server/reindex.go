// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"net/http"
	"sync"
	"time"

	"photolens/internal/app"
	"photolens/internal/apperr"
)

// reindexTracker runs at most one bulk reindex at a time, reporting live
// progress via internal/ingest.Pipeline's progress hook.
//
// Grounded on internal/server/jobs.go's JobManager: a mutex-guarded status
// struct updated from a background goroutine's progress callback,
// generalized from a map of named download jobs down to the single
// always-present reindex operation spec §6 describes.
type reindexTracker struct {
	app *app.App

	mu             sync.Mutex
	running        bool
	processedCount int
	errorCount     int
	currentFile    string
	lastRunTime    time.Time
}

func newReindexTracker(a *app.App) *reindexTracker {
	t := &reindexTracker{app: a}
	a.Pipeline.SetProgressHook(t.onProgress)
	return t
}

func (t *reindexTracker) onProgress(path, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processedCount++
	t.currentFile = path
	if status == "error" {
		t.errorCount++
	}
}

// start launches a bulk reindex in the background. Returns apperr.ErrConflict
// if one is already running.
func (t *reindexTracker) start() error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return apperr.New(apperr.KindConflict, "a reindex is already running")
	}
	t.running = true
	t.processedCount = 0
	t.errorCount = 0
	t.currentFile = ""
	t.mu.Unlock()

	go func() {
		defer func() {
			t.mu.Lock()
			t.running = false
			t.lastRunTime = time.Now()
			t.mu.Unlock()
		}()
		roots, err := t.app.ReindexRoots()
		if err != nil {
			return
		}
		t.app.Pipeline.WalkRoots(roots)
	}()
	return nil
}

func (s *Server) handleReindexStart(w http.ResponseWriter, r *http.Request) {
	if err := s.reindex.start(); err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "started"})
}

func (s *Server) handleReindexStatus(w http.ResponseWriter, r *http.Request) {
	totalIndexed, err := s.app.Store.CountWithEmbedding()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not count indexed images")
		return
	}
	favoritesCount, err := s.app.Store.CountFavorites()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not count favorites")
		return
	}

	s.reindex.mu.Lock()
	processed, errCount, current, last := s.reindex.processedCount, s.reindex.errorCount, s.reindex.currentFile, s.reindex.lastRunTime
	s.reindex.mu.Unlock()

	resp := map[string]any{
		"totalIndexed":   totalIndexed,
		"favoritesCount": favoritesCount,
		"processedCount": processed,
		"errorCount":     errCount,
		"currentFile":    current,
	}
	if !last.IsZero() {
		resp["lastRunTime"] = last.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

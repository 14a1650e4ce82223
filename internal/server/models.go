// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"photolens/internal/weights"
)

type modelsDownloadRequest struct {
	Repo string `json:"repo,omitempty"`
}

func (s *Server) handleModelsDownload(w http.ResponseWriter, r *http.Request) {
	var req modelsDownloadRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := s.app.Fetcher.Start(context.Background(), req.Repo); err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "started"})
}

func (s *Server) handleModelsStatus(w http.ResponseWriter, r *http.Request) {
	files := s.app.Fetcher.Status()
	status := "ready"
	message := ""
	switch {
	case s.app.Fetcher.IsRunning():
		status = "downloading"
	case !allFilesPresent(files):
		status = "not-downloaded"
	case !s.app.Embedder.IsReady():
		status = "downloaded"
		message = "weights are on disk but not yet loaded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"message": message,
		"files":   files,
	})
}

func allFilesPresent(files []weights.FileStatus) bool {
	for _, f := range files {
		if !f.Exists {
			return false
		}
	}
	return true
}

// handleModelsProgress streams weights.ProgressEvent values to the client
// as Server-Sent Events (spec §6), unsubscribing when the client
// disconnects.
//
// Grounded on internal/server/websocket.go's register/unregister/broadcast
// hub shape (see DESIGN.md), retargeted from a bidirectional websocket onto
// a one-way SSE stream since that is all spec §6 requires here.
func (s *Server) handleModelsProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, unsubscribe := s.app.Fetcher.Subscribe()
	defer unsubscribe()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			b, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		}
	}
}

// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"
	"strconv"
)

func (s *Server) handleFoldersList(w http.ResponseWriter, r *http.Request) {
	folders, err := s.app.Store.ListWatchedFolders()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list watched folders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": folders})
}

func (s *Server) handleFoldersAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "missing required field \"path\"")
		return
	}
	folder, err := s.app.Store.AddWatchedFolder(req.Path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not add watched folder")
		return
	}
	if err := s.app.Watcher.AddRoot(req.Path); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

func (s *Server) handleFoldersRemove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid folder id")
		return
	}
	folders, err := s.app.Store.ListWatchedFolders()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not look up watched folder")
		return
	}
	var path string
	for _, f := range folders {
		if f.ID == id {
			path = f.Path
		}
	}
	if err := s.app.Store.RemoveWatchedFolder(id); err != nil {
		writeError(w, http.StatusInternalServerError, "could not remove watched folder")
		return
	}
	if path != "" {
		s.app.Watcher.RemoveRoot(path)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "removed"})
}

func (s *Server) handleTokenStatus(w http.ResponseWriter, r *http.Request) {
	ok, err := s.app.HasToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read token status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"set": ok})
}

func (s *Server) handleTokenSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "missing required field \"token\"")
		return
	}
	if err := s.app.SetToken(req.Token); err != nil {
		writeError(w, http.StatusInternalServerError, "could not save token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "saved"})
}

func (s *Server) handleTokenClear(w http.ResponseWriter, r *http.Request) {
	if err := s.app.SetToken(""); err != nil {
		writeError(w, http.StatusInternalServerError, "could not clear token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "cleared"})
}

func (s *Server) handleAdvancedGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"autoIndexing": s.app.AutoIndexing(),
		"exifEnabled":  s.app.ExifEnabled(),
		"minScore":     s.app.MinScore(),
	})
}

func (s *Server) handleAdvancedSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AutoIndexing *bool    `json:"autoIndexing,omitempty"`
		ExifEnabled  *bool    `json:"exifEnabled,omitempty"`
		MinScore     *float64 `json:"minScore,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.app.SetAdvanced(req.AutoIndexing, req.ExifEnabled, req.MinScore); err != nil {
		writeError(w, http.StatusInternalServerError, "could not save settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"autoIndexing": s.app.AutoIndexing(),
		"exifEnabled":  s.app.ExifEnabled(),
		"minScore":     s.app.MinScore(),
	})
}

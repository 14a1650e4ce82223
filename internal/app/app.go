// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package app wires the engine's components together (spec §9 Design
// Notes): every sibling package exposes only the narrow interface its
// neighbor needs, so the wiring lives in exactly one place instead of
// components reaching for each other directly.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"photolens/internal/config"
	"photolens/internal/embedding"
	"photolens/internal/ingest"
	"photolens/internal/query"
	"photolens/internal/store"
	"photolens/internal/thumbnail"
	"photolens/internal/vault"
	"photolens/internal/vectorindex"
	"photolens/internal/watcher"
	"photolens/internal/weights"
)

const settingAutoIndexing = "auto_indexing"
const settingExifEnabled = "exif_enabled"
const settingMinScore = "min_score"
const settingDebounceMs = "debounce_ms"
const settingToken = "token"

// thumbAdapter satisfies both ingest.Thumbnailer and watcher.SupportChecker
// over the concrete thumbnail.Service, which exposes IsSupported as a
// package-level function rather than a method.
type thumbAdapter struct{ *thumbnail.Service }

func (thumbAdapter) IsSupported(path string) bool { return thumbnail.IsSupported(path) }

// advanced holds the mutable "advanced settings" spec §6's
// GET/POST /settings/advanced surface edits at runtime, backed by the
// settings table for persistence across restarts.
type advanced struct {
	mu           sync.RWMutex
	autoIndexing bool
	exifEnabled  bool
	minScore     float64
	debounce     time.Duration
}

func (a *advanced) AutoIndexing() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.autoIndexing
}

func (a *advanced) ExifEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.exifEnabled
}

func (a *advanced) MinScore() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.minScore
}

func (a *advanced) Debounce() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.debounce
}

// App owns every long-lived component and the background goroutines that
// drive them.
type App struct {
	Cfg config.Settings

	Store    *store.SQLiteRepository
	Vault    *vault.Vault
	Index    *vectorindex.Index
	Embedder *embedding.Service
	Thumbs   thumbAdapter
	Pipeline *ingest.Pipeline
	Watcher  *watcher.Watcher
	Fetcher  *weights.Fetcher
	Query    *query.Engine

	adv *advanced
}

// New constructs every component, loads persisted state (watched folders,
// advanced settings, existing vector embeddings), starts the ingestion
// worker and filesystem watcher, and returns a ready App.
func New(cfg config.Settings) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("app: create data dir %s: %w", cfg.DataDir, err)
	}

	repo, err := store.Open(filepath.Join(cfg.DataDir, "photolens.db"))
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}

	v, err := vault.New()
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("app: init vault: %w", err)
	}

	adv := loadAdvancedSettings(repo, cfg)

	index := vectorindex.New()
	embedder := embedding.New()
	thumbsDir := filepath.Join(cfg.DataDir, "thumbnails")
	thumbSvc, err := thumbnail.New(thumbsDir)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("app: init thumbnail service: %w", err)
	}
	thumbs := thumbAdapter{thumbSvc}

	pipeline := ingest.New(repo, index, thumbs, embedder, adv.ExifEnabled)
	pipeline.SetProgressHook(nil)

	w, err := watcher.New(pipeline, thumbs, adv.Debounce())
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("app: init watcher: %w", err)
	}
	w.SetAutoIndexing(adv.AutoIndexing())

	tokenFunc := func() (string, error) {
		sealed, ok, err := repo.GetSetting(settingToken)
		if err != nil {
			return "", err
		}
		if !ok || sealed == "" {
			return "", nil
		}
		return v.Decrypt(sealed)
	}
	modelsDir := filepath.Join(cfg.DataDir, "models")
	fetcher := weights.New(modelsDir, cfg.ModelRepo, cfg.ModelsURL, embedder, tokenFunc)

	q := query.New(repo, index, embedder)

	a := &App{
		Cfg:      cfg,
		Store:    repo,
		Vault:    v,
		Index:    index,
		Embedder: embedder,
		Thumbs:   thumbs,
		Pipeline: pipeline,
		Watcher:  w,
		Fetcher:  fetcher,
		Query:    q,
		adv:      adv,
	}

	if err := a.bootstrap(); err != nil {
		repo.Close()
		return nil, err
	}
	return a, nil
}

// bootstrap reloads the vector index from durable state, registers every
// active watched folder (persisted ∪ configured) with the filesystem
// watcher, hot-loads the encoder weights if they're already on disk from a
// previous run, and starts the background workers.
func (a *App) bootstrap() error {
	if err := a.Pipeline.ReloadIndexFromStore(); err != nil {
		return fmt.Errorf("app: reload vector index: %w", err)
	}

	roots, err := a.mergedWatchedRoots()
	if err != nil {
		return err
	}
	for _, root := range roots {
		if err := a.Watcher.AddRoot(root); err != nil {
			return fmt.Errorf("app: watch root %s: %w", root, err)
		}
	}

	if a.allWeightsPresent() {
		visual, text, tokenizer := a.weightsPaths()
		if err := a.Embedder.LoadModels(visual, text, tokenizer); err != nil {
			// Non-fatal: the engine still starts, but search stays
			// filename-substring-only until a fresh download succeeds.
			fmt.Fprintf(os.Stderr, "app: hot-load existing weights: %v\n", err)
		}
	}

	a.Pipeline.Start()
	go a.Watcher.Run()
	return nil
}

// mergedWatchedRoots returns active persisted watched folders unioned with
// cfg.WatchedRoots, persisting any configured root not already tracked.
func (a *App) mergedWatchedRoots() ([]string, error) {
	existing, err := a.Store.ListWatchedFolders()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	var roots []string
	for _, wf := range existing {
		if wf.Active {
			roots = append(roots, wf.Path)
			seen[wf.Path] = true
		}
	}
	for _, r := range a.Cfg.WatchedRoots {
		if seen[r] {
			continue
		}
		if _, err := a.Store.AddWatchedFolder(r); err != nil {
			return nil, err
		}
		roots = append(roots, r)
		seen[r] = true
	}
	return roots, nil
}

// weightsPaths returns the on-disk paths of the image encoder, text
// encoder, and tokenizer, in that order, as embedding.Service.LoadModels
// expects them.
func (a *App) weightsPaths() (visual, text, tokenizer string) {
	for _, st := range a.Fetcher.Status() {
		switch st.Name {
		case "image-encoder":
			visual = st.Path
		case "text-encoder":
			text = st.Path
		case "tokenizer":
			tokenizer = st.Path
		}
	}
	return visual, text, tokenizer
}

func (a *App) allWeightsPresent() bool {
	for _, st := range a.Fetcher.Status() {
		if !st.Exists {
			return false
		}
	}
	return true
}

// AutoIndexing reports whether CREATE/MODIFY filesystem events currently
// schedule ingestion.
func (a *App) AutoIndexing() bool { return a.adv.AutoIndexing() }

// ExifEnabled reports whether EXIF extraction is currently enabled.
func (a *App) ExifEnabled() bool { return a.adv.ExifEnabled() }

// MinScore returns the currently configured search score floor.
func (a *App) MinScore() float64 { return a.adv.MinScore() }

// SetToken seals token with the vault and persists it as the weights
// repository credential. An empty token clears it.
func (a *App) SetToken(token string) error {
	if token == "" {
		return a.Store.SetSetting(settingToken, "")
	}
	sealed, err := a.Vault.Encrypt(token)
	if err != nil {
		return err
	}
	return a.Store.SetSetting(settingToken, sealed)
}

// HasToken reports whether a weights repository credential is currently
// saved.
func (a *App) HasToken() (bool, error) {
	v, ok, err := a.Store.GetSetting(settingToken)
	if err != nil {
		return false, err
	}
	return ok && v != "", nil
}

// SetAdvanced updates the advanced settings, persists them, and propagates
// the auto-indexing toggle to the live watcher.
func (a *App) SetAdvanced(autoIndexing, exifEnabled *bool, minScore *float64) error {
	a.adv.mu.Lock()
	if autoIndexing != nil {
		a.adv.autoIndexing = *autoIndexing
	}
	if exifEnabled != nil {
		a.adv.exifEnabled = *exifEnabled
	}
	if minScore != nil {
		a.adv.minScore = *minScore
	}
	snapshot := *a.adv
	a.adv.mu.Unlock()

	a.Watcher.SetAutoIndexing(snapshot.autoIndexing)

	if err := a.Store.SetSetting(settingAutoIndexing, boolString(snapshot.autoIndexing)); err != nil {
		return err
	}
	if err := a.Store.SetSetting(settingExifEnabled, boolString(snapshot.exifEnabled)); err != nil {
		return err
	}
	return a.Store.SetSetting(settingMinScore, fmt.Sprintf("%g", snapshot.minScore))
}

// ReindexRoots returns the active watched folders union configured roots,
// for driving POST /index/reindex.
func (a *App) ReindexRoots() ([]string, error) {
	return a.mergedWatchedRoots()
}

// Close stops the background workers and closes the durable store.
func (a *App) Close() error {
	a.Watcher.Stop()
	a.Pipeline.Stop()
	return a.Store.Close()
}

func loadAdvancedSettings(repo *store.SQLiteRepository, cfg config.Settings) *advanced {
	a := &advanced{
		autoIndexing: cfg.AutoIndexing,
		exifEnabled:  cfg.ExifEnabled,
		minScore:     cfg.MinScore,
		debounce:     time.Duration(cfg.DebounceMillis) * time.Millisecond,
	}
	if v, ok, _ := repo.GetSetting(settingAutoIndexing); ok {
		a.autoIndexing = v == "true"
	}
	if v, ok, _ := repo.GetSetting(settingExifEnabled); ok {
		a.exifEnabled = v == "true"
	}
	if v, ok, _ := repo.GetSetting(settingMinScore); ok {
		fmt.Sscan(v, &a.minScore)
	}
	if v, ok, _ := repo.GetSetting(settingDebounceMs); ok {
		var ms int
		fmt.Sscan(v, &ms)
		if ms > 0 {
			a.debounce = time.Duration(ms) * time.Millisecond
		}
	}
	return a
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

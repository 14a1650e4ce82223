// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package watcher is the filesystem watcher (spec §4.9): recursively
// registers every subdirectory of each active watched root with fsnotify,
// coalesces rapid events on a path into a pending map, and flushes entries
// older than a debounce threshold on every poll iteration.
//
// Grounded on standardbeagle-lci's internal/indexing/watcher.go for the
// recursive filepath.Walk registration and the "add watch for new directory
// on CREATE" handling, adapted from its timer-reset debouncer to the
// explicit fixed-interval poll-and-flush loop spec §4.9 prescribes.
package watcher

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the default coalescing window T (spec §4.9).
const DefaultDebounce = 1500 * time.Millisecond

// pollInterval is the fixed timeout on each loop iteration (spec §4.9: "poll
// with a 1-second timeout").
const pollInterval = 1 * time.Second

// Ingester is the narrow capability the watcher needs from the ingestion
// pipeline (spec §9: siblings, no upward reference).
type Ingester interface {
	Enqueue(path string)
	RemoveDeleted(path string) error
}

// SupportChecker reports whether a path names a supported image file.
type SupportChecker interface {
	IsSupported(path string) bool
}

// Watcher is the long-lived recursive filesystem watcher.
type Watcher struct {
	fsw      *fsnotify.Watcher
	ingester Ingester
	support  SupportChecker
	debounce time.Duration

	mu           sync.Mutex
	pending      map[string]time.Time
	autoIndexing bool

	quit chan struct{}
	done chan struct{}
}

// New creates a Watcher. autoIndexing starts on; CREATE/MODIFY events are
// dropped while it is off, but DELETE events are never gated (spec §4.9).
func New(ingester Ingester, support SupportChecker, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		fsw:          fsw,
		ingester:     ingester,
		support:      support,
		debounce:     debounce,
		pending:      make(map[string]time.Time),
		autoIndexing: true,
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}, nil
}

// SetAutoIndexing toggles whether CREATE/MODIFY events are scheduled for
// ingestion.
func (w *Watcher) SetAutoIndexing(on bool) {
	w.mu.Lock()
	w.autoIndexing = on
	w.mu.Unlock()
}

// AddRoot recursively registers root and every existing subdirectory with
// the fsnotify watcher.
func (w *Watcher) AddRoot(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				log.Printf("watcher: add %s: %v", path, err)
			}
		}
		return nil
	})
}

// RemoveRoot cancels every registration whose path starts with root.
func (w *Watcher) RemoveRoot(root string) {
	for _, watched := range w.fsw.WatchList() {
		if watched == root || strings.HasPrefix(watched, root+string(filepath.Separator)) {
			w.fsw.Remove(watched)
		}
	}
}

// Run is the watch loop. It blocks until Stop is called.
func (w *Watcher) Run() {
	defer close(w.done)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.quit:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("watcher: fsnotify error: %v", err)

		case <-ticker.C:
			w.flushExpired()
		}
	}
}

// Stop halts the watch loop and releases the fsnotify handle.
func (w *Watcher) Stop() {
	close(w.quit)
	<-w.done
	w.fsw.Close()
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name

	if ev.Op&fsnotify.Create != 0 {
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			if err := w.AddRoot(path); err != nil {
				log.Printf("watcher: register new directory %s: %v", path, err)
			}
			return
		}
	}

	if ev.Op&fsnotify.Remove != 0 || ev.Op&fsnotify.Rename != 0 {
		if w.support.IsSupported(path) {
			if err := w.ingester.RemoveDeleted(path); err != nil {
				log.Printf("watcher: remove_deleted %s: %v", path, err)
			}
		}
		return
	}

	if ev.Op&fsnotify.Create != 0 || ev.Op&fsnotify.Write != 0 {
		if !w.support.IsSupported(path) {
			return
		}
		w.mu.Lock()
		if w.autoIndexing {
			w.pending[path] = time.Now()
		}
		w.mu.Unlock()
	}
}

func (w *Watcher) flushExpired() {
	now := time.Now()
	w.mu.Lock()
	var ready []string
	for path, t := range w.pending {
		if now.Sub(t) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.ingester.Enqueue(path)
	}
}

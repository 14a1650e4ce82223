// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeIngester struct {
	mu       sync.Mutex
	enqueued []string
	removed  []string
}

func (f *fakeIngester) Enqueue(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, path)
}

func (f *fakeIngester) RemoveDeleted(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, path)
	return nil
}

func (f *fakeIngester) enqueueCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.enqueued)
}

type extSupport struct{ ext string }

func (s extSupport) IsSupported(path string) bool {
	return filepath.Ext(path) == s.ext
}

func TestAddRootRegistersSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	ing := &fakeIngester{}
	w, err := New(ing, extSupport{".jpg"}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.fsw.Close()

	if err := w.AddRoot(dir); err != nil {
		t.Fatalf("AddRoot: %v", err)
	}

	list := w.fsw.WatchList()
	foundDir, foundSub := false, false
	for _, p := range list {
		if p == dir {
			foundDir = true
		}
		if p == sub {
			foundSub = true
		}
	}
	if !foundDir || !foundSub {
		t.Fatalf("expected both %s and %s registered, got %v", dir, sub, list)
	}
}

func TestDebounceCoalescesRapidEventsIntoOneEnqueue(t *testing.T) {
	dir := t.TempDir()
	ing := &fakeIngester{}
	w, err := New(ing, extSupport{".jpg"}, 60*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.AddRoot(dir); err != nil {
		t.Fatalf("AddRoot: %v", err)
	}

	go w.Run()
	defer w.Stop()

	path := filepath.Join(dir, "a.jpg")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte{byte(i)}, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for ing.enqueueCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	if n := ing.enqueueCount(); n != 1 {
		t.Fatalf("expected exactly 1 coalesced enqueue, got %d", n)
	}
}

func TestAutoIndexingOffDropsCreateButDeleteStillFlows(t *testing.T) {
	dir := t.TempDir()
	ing := &fakeIngester{}
	w, err := New(ing, extSupport{".jpg"}, 30*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.AddRoot(dir); err != nil {
		t.Fatalf("AddRoot: %v", err)
	}
	w.SetAutoIndexing(false)

	go w.Run()
	defer w.Stop()

	path := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if ing.enqueueCount() != 0 {
		t.Fatalf("expected no enqueue while auto-indexing is off, got %d", ing.enqueueCount())
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ing.mu.Lock()
		n := len(ing.removed)
		ing.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	ing.mu.Lock()
	defer ing.mu.Unlock()
	if len(ing.removed) == 0 {
		t.Fatal("expected delete events to flow even with auto-indexing off")
	}
}

// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"path/filepath"
	"testing"

	"photolens/internal/config"
)

func testSettings(t *testing.T) config.Settings {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	return cfg
}

func TestNewWiresComponentsAndStartsClean(t *testing.T) {
	a, err := New(testSettings(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Index.Len() != 0 {
		t.Fatalf("expected an empty index on a fresh data dir, got %d", a.Index.Len())
	}
	if !a.AutoIndexing() {
		t.Fatalf("expected auto-indexing to default on")
	}
	if a.Embedder.IsReady() {
		t.Fatalf("expected the embedder to be idle before any weights are downloaded")
	}
}

func TestSetAdvancedPersistsAcrossRestart(t *testing.T) {
	cfg := testSettings(t)
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	off := false
	if err := a.SetAdvanced(&off, nil, nil); err != nil {
		t.Fatalf("SetAdvanced: %v", err)
	}
	if a.AutoIndexing() {
		t.Fatalf("expected auto-indexing to be disabled")
	}
	a.Close()

	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New (restart): %v", err)
	}
	defer b.Close()
	if b.AutoIndexing() {
		t.Fatalf("expected auto-indexing=false to survive a restart")
	}
}

func TestMergedWatchedRootsPersistsConfiguredRoots(t *testing.T) {
	cfg := testSettings(t)
	root := t.TempDir()
	cfg.WatchedRoots = []string{root}

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	folders, err := a.Store.ListWatchedFolders()
	if err != nil {
		t.Fatalf("ListWatchedFolders: %v", err)
	}
	found := false
	for _, f := range folders {
		if f.Path == root {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected configured root %s to be persisted, got %+v", root, folders)
	}
}

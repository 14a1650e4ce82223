// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"photolens/internal/store"
	"photolens/internal/vectorindex"
)

type fakeThumbs struct {
	created, deleted []string
}

func (f *fakeThumbs) IsSupported(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".jpg" || ext == ".jpeg"
}

func (f *fakeThumbs) Create(path string) (string, error) {
	f.created = append(f.created, path)
	return path + ".thumb.jpg", nil
}

func (f *fakeThumbs) Delete(path string) error {
	f.deleted = append(f.deleted, path)
	return nil
}

type fakeEmbedder struct {
	ready bool
	vec   []float32
}

func (f *fakeEmbedder) IsReady() bool { return f.ready }

func (f *fakeEmbedder) EmbedImage(path string) []float32 {
	if !f.ready {
		return nil
	}
	return f.vec
}

func writeTestJPEG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func newTestRepo(t *testing.T) *store.SQLiteRepository {
	t.Helper()
	repo, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestIngestPathCreatesRecordAndUpsertsVector(t *testing.T) {
	repo := newTestRepo(t)
	index := vectorindex.New()
	thumbs := &fakeThumbs{}
	embedder := &fakeEmbedder{ready: true, vec: []float32{1, 0, 0}}

	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	writeTestJPEG(t, path)

	p := New(repo, index, thumbs, embedder, func() bool { return false })
	p.IngestPath(path)

	rec, err := repo.FindByPath(path)
	if err != nil {
		t.Fatalf("FindByPath: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a record after ingestion")
	}
	if rec.Status != "indexed" {
		t.Fatalf("expected status indexed, got %s", rec.Status)
	}
	if rec.Embedding == nil {
		t.Fatal("expected an embedding to be stored")
	}
	if index.Len() != 1 {
		t.Fatalf("expected 1 vector in the index, got %d", index.Len())
	}
	if len(thumbs.created) != 1 {
		t.Fatalf("expected a thumbnail to be created, got %d", len(thumbs.created))
	}

	entries, err := repo.RecentAudit(10)
	if err != nil {
		t.Fatalf("RecentAudit: %v", err)
	}
	if len(entries) != 1 || entries[0].Status != "success" {
		t.Fatalf("expected 1 success audit entry, got %+v", entries)
	}
}

func TestIngestPathTwiceWithoutChangeIsSkippedAndDoesNotMutateIndexedAt(t *testing.T) {
	repo := newTestRepo(t)
	index := vectorindex.New()
	thumbs := &fakeThumbs{}
	embedder := &fakeEmbedder{ready: true, vec: []float32{0, 1, 0}}

	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	writeTestJPEG(t, path)

	p := New(repo, index, thumbs, embedder, func() bool { return false })
	p.IngestPath(path)

	first, err := repo.FindByPath(path)
	if err != nil || first == nil {
		t.Fatalf("FindByPath after first ingest: %v", err)
	}
	firstIndexedAt := first.IndexedAt

	time.Sleep(10 * time.Millisecond)
	p.IngestPath(path)

	second, err := repo.FindByPath(path)
	if err != nil || second == nil {
		t.Fatalf("FindByPath after second ingest: %v", err)
	}
	if !second.IndexedAt.Equal(firstIndexedAt) {
		t.Fatalf("expected indexed_at unchanged on a no-op re-ingest: first=%v second=%v", firstIndexedAt, second.IndexedAt)
	}

	entries, err := repo.RecentAudit(10)
	if err != nil {
		t.Fatalf("RecentAudit: %v", err)
	}
	if len(entries) != 2 || entries[0].Status != "skipped" {
		t.Fatalf("expected second pass to log skipped, got %+v", entries)
	}
}

func TestIngestPathWithoutReadyEmbedderStillSavesThumbnailAndMetadata(t *testing.T) {
	repo := newTestRepo(t)
	index := vectorindex.New()
	thumbs := &fakeThumbs{}
	embedder := &fakeEmbedder{ready: false}

	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	writeTestJPEG(t, path)

	p := New(repo, index, thumbs, embedder, func() bool { return false })
	p.IngestPath(path)

	rec, err := repo.FindByPath(path)
	if err != nil || rec == nil {
		t.Fatalf("FindByPath: %v", err)
	}
	if rec.Embedding != nil {
		t.Fatal("expected no embedding when the embedder is not ready")
	}
	if rec.Status != "indexed" {
		t.Fatalf("expected the record still saved as indexed, got %s", rec.Status)
	}
	if index.Len() != 0 {
		t.Fatalf("expected no vector in the index, got %d", index.Len())
	}
}

func TestRemoveDeletedDeletesThumbnailVectorAndRecord(t *testing.T) {
	repo := newTestRepo(t)
	index := vectorindex.New()
	thumbs := &fakeThumbs{}
	embedder := &fakeEmbedder{ready: true, vec: []float32{1, 0, 0}}

	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	writeTestJPEG(t, path)

	p := New(repo, index, thumbs, embedder, func() bool { return false })
	p.IngestPath(path)

	if err := p.RemoveDeleted(path); err != nil {
		t.Fatalf("RemoveDeleted: %v", err)
	}
	rec, err := repo.FindByPath(path)
	if err != nil {
		t.Fatalf("FindByPath: %v", err)
	}
	if rec != nil {
		t.Fatal("expected the record to be gone after RemoveDeleted")
	}
	if index.Len() != 0 {
		t.Fatal("expected the vector to be removed from the index")
	}
	if len(thumbs.deleted) != 1 {
		t.Fatal("expected the thumbnail to be deleted")
	}
}

func TestEnqueueCoalescesDuplicatePaths(t *testing.T) {
	repo := newTestRepo(t)
	index := vectorindex.New()
	thumbs := &fakeThumbs{}
	embedder := &fakeEmbedder{ready: true, vec: []float32{1, 0, 0}}

	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	writeTestJPEG(t, path)

	p := New(repo, index, thumbs, embedder, func() bool { return false })
	p.Enqueue(path)
	p.Enqueue(path)
	p.Enqueue(path)

	p.mu.Lock()
	n := len(p.queue)
	p.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected duplicate enqueues to coalesce to 1 pending item, got %d", n)
	}
}

func TestWorkerDrainsQueueAndStops(t *testing.T) {
	repo := newTestRepo(t)
	index := vectorindex.New()
	thumbs := &fakeThumbs{}
	embedder := &fakeEmbedder{ready: true, vec: []float32{1, 0, 0}}

	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	writeTestJPEG(t, path)

	p := New(repo, index, thumbs, embedder, func() bool { return false })
	p.Start()
	p.Enqueue(path)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rec, _ := repo.FindByPath(path); rec != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	p.Stop()

	rec, err := repo.FindByPath(path)
	if err != nil || rec == nil {
		t.Fatalf("expected the worker to have ingested the file: %v", err)
	}
}

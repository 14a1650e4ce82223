// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package ingest is the ingestion pipeline (spec §4.8): a single-writer
// worker that hashes, thumbnails, extracts metadata from, and embeds each
// file handed to it by the watcher or a bulk reindex, writing the durable
// record and upserting the in-memory vector index synchronously.
//
// Grounded on internal/server/jobs.go's mutex-guarded map + background
// goroutine shape, generalized from a map of named download jobs to a
// bounded, path-keyed work queue (see DESIGN.md).
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"image"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"photolens/internal/apperr"
	"photolens/internal/metadata"
	"photolens/internal/store"
	"photolens/internal/vecmath"
	"photolens/internal/vectorindex"
)

// hashChunkSize matches spec §4.8 step 2: SHA-256 in 64 KiB chunks.
const hashChunkSize = 64 * 1024

// defaultQueueCapacity bounds the pending work queue (spec §4.8: "a bounded
// work queue backs the scheduler; on overflow the oldest pending event is
// preserved").
const defaultQueueCapacity = 4096

// Embedder is the narrow capability the pipeline needs from the embedding
// service (spec §9: siblings, no upward reference).
type Embedder interface {
	IsReady() bool
	EmbedImage(path string) []float32
}

// Thumbnailer is the narrow capability the pipeline needs from the
// thumbnail service.
type Thumbnailer interface {
	IsSupported(path string) bool
	Create(path string) (string, error)
	Delete(path string) error
}

// Pipeline is the single-writer ingestion worker.
type Pipeline struct {
	repo       store.Repository
	index      *vectorindex.Index
	thumbs     Thumbnailer
	embedder   Embedder
	exifToggle func() bool

	mu      sync.Mutex
	queue   []string // pending paths, FIFO, de-duplicated by queuedSet
	queued  map[string]bool
	signal  chan struct{}
	quit    chan struct{}
	wg      sync.WaitGroup
	started bool

	// ingestMu serializes every call into ingestOne, regardless of which
	// goroutine makes it. loop holds it for each queued path it dequeues;
	// WalkRoots holds it for each file it walks directly. Together they
	// guarantee the single-writer contract even though a bulk reindex runs
	// in its own goroutine alongside the ever-running worker loop.
	ingestMu sync.Mutex

	progress atomic.Value // func(path, status string), set by SetProgressHook
}

// New returns a Pipeline bound to the given durable repository, vector
// index, thumbnail service, and embedder. exifToggle reports whether EXIF
// extraction is currently enabled (an advanced setting).
func New(repo store.Repository, index *vectorindex.Index, thumbs Thumbnailer, embedder Embedder, exifToggle func() bool) *Pipeline {
	return &Pipeline{
		repo:       repo,
		index:      index,
		thumbs:     thumbs,
		embedder:   embedder,
		exifToggle: exifToggle,
		queued:     make(map[string]bool),
		signal:     make(chan struct{}, 1),
		quit:       make(chan struct{}),
	}
}

// SetProgressHook registers fn to be called after every IngestPath
// completes, with the path and its outcome status ("success", "skipped",
// or "error"). Used by the HTTP façade to report live reindex progress
// without the pipeline holding any reference back to it.
func (p *Pipeline) SetProgressHook(fn func(path, status string)) {
	p.progress.Store(fn)
}

// Start launches the single ingestion worker goroutine. Calling Start twice
// is a no-op.
func (p *Pipeline) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop()
}

// Stop signals the worker to exit and waits for it to drain its current
// item.
func (p *Pipeline) Stop() {
	close(p.quit)
	p.wg.Wait()
}

// Enqueue schedules path for ingestion. Duplicate enqueues of a path
// already pending coalesce into a single work item (spec §4.8/§4.9), and on
// queue overflow the oldest pending events are preserved (the new path is
// dropped and the drop is logged).
func (p *Pipeline) Enqueue(path string) {
	norm := normalizePath(path)
	p.mu.Lock()
	if p.queued[norm] {
		p.mu.Unlock()
		return
	}
	if len(p.queue) >= defaultQueueCapacity {
		p.mu.Unlock()
		log.Printf("ingest: queue at capacity, dropping %s", norm)
		return
	}
	p.queue = append(p.queue, norm)
	p.queued[norm] = true
	p.mu.Unlock()

	select {
	case p.signal <- struct{}{}:
	default:
	}
}

func (p *Pipeline) dequeue() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return "", false
	}
	path := p.queue[0]
	p.queue = p.queue[1:]
	delete(p.queued, path)
	return path, true
}

func (p *Pipeline) loop() {
	defer p.wg.Done()
	for {
		for {
			path, ok := p.dequeue()
			if !ok {
				break
			}
			p.IngestPath(path)
		}
		select {
		case <-p.quit:
			return
		case <-p.signal:
		}
	}
}

// IngestPath runs the full per-file procedure of spec §4.8. It is exported
// so a bulk reindex walk can drive the same pipeline directly, but it holds
// ingestMu for the duration of ingestOne so a walk running in its own
// goroutine can never execute ingestOne concurrently with the worker loop
// (spec §4.8's single-writer rule) — only one caller's ingestOne runs at a
// time, whichever goroutine it's on.
func (p *Pipeline) IngestPath(path string) {
	start := time.Now()
	norm := normalizePath(path)

	p.ingestMu.Lock()
	status, errMsg := p.ingestOne(norm)
	p.ingestMu.Unlock()

	p.repo.AppendAudit(&store.AuditEntry{
		Path:     norm,
		Status:   status,
		Duration: time.Since(start),
		ErrorMsg: errMsg,
		At:       time.Now(),
	})

	if fn, ok := p.progress.Load().(func(path, status string)); ok && fn != nil {
		fn(norm, status)
	}
}

func (p *Pipeline) ingestOne(path string) (status, errMsg string) {
	hash, err := hashFile(path)
	if err != nil {
		return "error", err.Error()
	}

	existing, err := p.repo.FindByPath(path)
	if err != nil {
		return "error", err.Error()
	}

	exifNeeded := p.exifToggle() && (existing == nil || !existing.ExifParsed())
	embedNeeded := existing == nil || existing.Embedding == nil || existing.ContentHash != hash
	firstSight := existing == nil

	if !exifNeeded && !embedNeeded {
		return "skipped", ""
	}

	record := existing
	if record == nil {
		record = &store.ImageRecord{Path: path, Status: "pending", Blob: map[string]any{}}
	}
	if record.Blob == nil {
		record.Blob = map[string]any{}
	}

	if embedNeeded || firstSight {
		if thumbPath, err := p.thumbs.Create(path); err != nil {
			log.Printf("ingest: thumbnail %s: %v", path, err)
		} else {
			record.ThumbnailPath = thumbPath
		}
		if w, h, err := readDimensions(path); err == nil {
			record.Width, record.Height = w, h
		}
	}

	if exifNeeded {
		result := metadata.Extract(path)
		record.Blob["camera"] = result.Fields
		record.Blob["exif_parsed"] = true
		record.Lat = result.Lat
		record.Lon = result.Lon
	}

	var vec []float32
	if embedNeeded && p.embedder.IsReady() {
		vec = p.embedder.EmbedImage(path)
		if vec != nil {
			record.Embedding = vecmath.ToBytes(vec)
		}
	}

	fi, err := os.Stat(path)
	if err != nil {
		return "error", err.Error()
	}
	record.ContentHash = hash
	record.SizeBytes = fi.Size()
	record.LastModified = fi.ModTime()
	record.IndexedAt = time.Now()
	record.Status = "indexed"

	if err := p.repo.Save(record); err != nil {
		return "error", err.Error()
	}

	if vec != nil {
		p.index.Upsert(record.ID, vec)
	}

	return "success", ""
}

// RemoveDeleted implements spec §4.8's remove_deleted(path): deletes the
// thumbnail, removes the vector entry, and deletes the durable record.
func (p *Pipeline) RemoveDeleted(path string) error {
	norm := normalizePath(path)
	record, err := p.repo.FindByPath(norm)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}
	if err := p.thumbs.Delete(norm); err != nil {
		log.Printf("ingest: delete thumbnail for %s: %v", norm, err)
	}
	p.index.Remove(record.ID)
	if err := p.repo.Delete(record); err != nil {
		return apperr.Wrap(apperr.KindIOFailed, "delete durable record", err)
	}
	return nil
}

// ReloadIndexFromStore reloads the vector index wholesale from the durable
// store, used after a bulk reindex to guarantee a clean vector set (spec
// §4.8).
func (p *Pipeline) ReloadIndexFromStore() error {
	rows, err := p.repo.FindAllEmbeddings()
	if err != nil {
		return err
	}
	converted := make([]vectorindex.Row, len(rows))
	for i, r := range rows {
		converted[i] = vectorindex.Row{ID: r.ID, Bytes: r.Bytes}
	}
	p.index.LoadAll(converted)
	return nil
}

// WalkRoots performs a bulk reindex: it ingests every supported file under
// roots, one at a time, in whatever goroutine calls it (the reindex HTTP
// handler's background goroutine, or the reindex CLI command). It does not
// go through Enqueue/the work queue, since an unbounded walk could exceed
// defaultQueueCapacity and silently drop files the queue's overflow policy
// is meant for watcher events, not a full walk. Single-writer safety
// against the ever-running worker loop instead comes from IngestPath's
// ingestMu: the watcher's queued events and this walk's direct calls can
// never execute ingestOne concurrently, only interleaved.
func (p *Pipeline) WalkRoots(roots []string) error {
	for _, root := range roots {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.IsDir() {
				return nil
			}
			if !p.thumbs.IsSupported(path) {
				return nil
			}
			p.IngestPath(path)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return p.ReloadIndexFromStore()
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func readDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func normalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

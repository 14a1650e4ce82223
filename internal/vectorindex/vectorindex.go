// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package vectorindex is the in-memory vector index (spec §4.7): two
// parallel arrays of (id, unit-vector), exact brute-force top-K by dot
// product, single-writer/multiple-reader via sync.RWMutex. Approximate
// structures (HNSW etc.) are explicitly out of scope (spec §1 Non-goals);
// the scale target is ≤100k images.
package vectorindex

import (
	"container/heap"
	"sort"
	"sync"

	"photolens/internal/vecmath"
)

// Index is safe for concurrent use. The zero value is ready to use.
type Index struct {
	mu   sync.RWMutex
	ids  []int64
	vecs [][]float32
	pos  map[int64]int // id -> slice index, kept in sync with ids/vecs
}

// New returns an empty index.
func New() *Index {
	return &Index{pos: make(map[int64]int)}
}

// Row is a bulk-load entry: an image id and its raw little-endian float32
// embedding bytes.
type Row struct {
	ID    int64
	Bytes []byte
}

// LoadAll replaces the index contents wholesale, decoding each row's bytes
// into a float32 vector. Used on startup and after a bulk reindex so the
// in-memory index always mirrors the durable store (spec §9, Open Question
// 2: the index is never persisted independently).
func (x *Index) LoadAll(rows []Row) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ids = make([]int64, 0, len(rows))
	x.vecs = make([][]float32, 0, len(rows))
	x.pos = make(map[int64]int, len(rows))
	for _, r := range rows {
		x.ids = append(x.ids, r.ID)
		x.vecs = append(x.vecs, vecmath.FromBytes(r.Bytes))
		x.pos[r.ID] = len(x.ids) - 1
	}
}

// Upsert overwrites the vector for id if present, else appends it.
// Append grows the backing slices by Go's normal doubling-amortized
// append, satisfying spec §4.7's "growing capacity by doubling".
func (x *Index) Upsert(id int64, vec []float32) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if i, ok := x.pos[id]; ok {
		x.vecs[i] = vec
		return
	}
	x.ids = append(x.ids, id)
	x.vecs = append(x.vecs, vec)
	x.pos[id] = len(x.ids) - 1
}

// Remove deletes id via swap-with-last, shrinking the arrays by one. A
// no-op if id is not present.
func (x *Index) Remove(id int64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	i, ok := x.pos[id]
	if !ok {
		return
	}
	last := len(x.ids) - 1
	if i != last {
		x.ids[i] = x.ids[last]
		x.vecs[i] = x.vecs[last]
		x.pos[x.ids[i]] = i
	}
	x.ids = x.ids[:last]
	x.vecs = x.vecs[:last]
	delete(x.pos, id)
}

// Len returns the number of distinct ids currently held.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// Hit is one scored result from TopK.
type Hit struct {
	ID    int64
	Score float32
}

type scoredHeap []Hit

func (h scoredHeap) Len() int { return len(h) }
func (h scoredHeap) Less(i, j int) bool {
	// min-heap: worst score (or, on tie, largest id) sits at the root so
	// it's the one evicted when a better candidate arrives.
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].ID > h[j].ID
}
func (h scoredHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *scoredHeap) Push(x any)   { *h = append(*h, x.(Hit)) }
func (h *scoredHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// TopK computes score = dot(query, vecs[i]) for every entry, keeps the top
// k+offset by a bounded min-heap, sorts descending (ties broken by id
// ascending), and returns the window [offset, offset+k). Returns fewer than
// k entries if the index holds fewer; empty on an empty index.
func (x *Index) TopK(query []float32, k, offset int) []Hit {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if k < 0 {
		k = 0
	}
	if offset < 0 {
		offset = 0
	}
	limit := k + offset
	if limit <= 0 || len(x.ids) == 0 {
		return nil
	}

	h := make(scoredHeap, 0, limit)
	heap.Init(&h)
	for i, id := range x.ids {
		score := vecmath.Dot(query, x.vecs[i])
		if len(h) < limit {
			heap.Push(&h, Hit{ID: id, Score: score})
			continue
		}
		worst := h[0]
		if score > worst.Score || (score == worst.Score && id < worst.ID) {
			heap.Pop(&h)
			heap.Push(&h, Hit{ID: id, Score: score})
		}
	}

	sorted := make([]Hit, len(h))
	copy(sorted, h)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].ID < sorted[j].ID
	})

	if offset >= len(sorted) {
		return nil
	}
	end := offset + k
	if end > len(sorted) {
		end = len(sorted)
	}
	return sorted[offset:end]
}

// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package store is the durable repository (spec §6): the narrow interface
// the core consumes, plus a concrete CGO-free SQLite implementation. The
// core treats the on-disk relational store as an external collaborator; this
// package is the "something behind the interface" a runnable repository
// needs.
package store

import "time"

// ImageRecord mirrors spec §3's image record. Embedding is nil until the
// embedding service has produced a vector for this path.
type ImageRecord struct {
	ID            int64
	Path          string
	ThumbnailPath string
	Width, Height int
	SizeBytes     int64
	ContentHash   string
	LastModified  time.Time
	IndexedAt     time.Time
	Embedding     []byte // raw little-endian float32 bytes, length D*4
	Blob          map[string]any
	Status        string // pending | indexed | error
	Favorite      bool
	Blurred       bool
	Lat, Lon      *float64
}

// ExifParsed reports the blob's exif_parsed flag (spec §4.6).
func (r *ImageRecord) ExifParsed() bool {
	if r.Blob == nil {
		return false
	}
	v, ok := r.Blob["exif_parsed"]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// WatchedFolder mirrors spec §3's watched folder.
type WatchedFolder struct {
	ID      int64
	Path    string
	Active  bool
	AddedAt time.Time
}

// AuditEntry is one per-file ingestion outcome (spec §4.8 step 9).
type AuditEntry struct {
	ID       int64
	Path     string
	Status   string // success | skipped | error
	Duration time.Duration
	ErrorMsg string
	At       time.Time
}

// EmbeddingRow is one (id, raw bytes) pair for bulk vector-index loading.
type EmbeddingRow struct {
	ID    int64
	Bytes []byte
}

// Repository is the narrow interface spec §6 specifies the core consumes.
// Transaction boundaries are per method.
type Repository interface {
	FindByPath(path string) (*ImageRecord, error)
	FindByID(id int64) (*ImageRecord, error)
	FindAllEmbeddings() ([]EmbeddingRow, error)
	Save(r *ImageRecord) error
	Delete(r *ImageRecord) error
	CountWithEmbedding() (int, error)
	FindByTagSubstring(tag string, limit int) ([]*ImageRecord, error)
	FindByFilenameSubstring(sub string, limit, offset int) ([]*ImageRecord, error)
	FindByFolderSubstring(sub string, limit, offset int) ([]*ImageRecord, error)
	CountFavorites() (int, error)
	FindFavorites(limit, offset int) ([]*ImageRecord, error)

	AddWatchedFolder(path string) (*WatchedFolder, error)
	RemoveWatchedFolder(id int64) error
	ListWatchedFolders() ([]*WatchedFolder, error)

	AppendAudit(e *AuditEntry) error
	RecentAudit(limit int) ([]*AuditEntry, error)

	GetSetting(key string) (string, bool, error)
	SetSetting(key, value string) error

	Close() error
}

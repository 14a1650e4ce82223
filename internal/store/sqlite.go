// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS images (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	path           TEXT NOT NULL UNIQUE,
	thumbnail_path TEXT NOT NULL DEFAULT '',
	width          INTEGER NOT NULL DEFAULT 0,
	height         INTEGER NOT NULL DEFAULT 0,
	size_bytes     INTEGER NOT NULL DEFAULT 0,
	content_hash   TEXT NOT NULL DEFAULT '',
	last_modified  INTEGER NOT NULL DEFAULT 0,
	indexed_at     INTEGER NOT NULL DEFAULT 0,
	embedding      BLOB,
	blob_json      TEXT NOT NULL DEFAULT '{}',
	status         TEXT NOT NULL DEFAULT 'pending',
	favorite       INTEGER NOT NULL DEFAULT 0,
	blurred        INTEGER NOT NULL DEFAULT 0,
	lat            REAL,
	lon            REAL
);
CREATE INDEX IF NOT EXISTS idx_images_favorite ON images(favorite);

CREATE TABLE IF NOT EXISTS watched_folders (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	path     TEXT NOT NULL UNIQUE,
	active   INTEGER NOT NULL DEFAULT 1,
	added_at INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	path     TEXT NOT NULL,
	status   TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error_msg TEXT NOT NULL DEFAULT '',
	at       INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteRepository is the concrete, CGO-free Repository implementation,
// grounded on hazyhaar-chrc/horos47's modernc.org/sqlite usage (pragma set,
// database/sql wrapping).
type SQLiteRepository struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite database at path and applies the
// schema and pragma set.
func Open(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (s *SQLiteRepository) Close() error { return s.db.Close() }

func scanRecord(row interface {
	Scan(dest ...any) error
}) (*ImageRecord, error) {
	var r ImageRecord
	var lastMod, indexedAt int64
	var blobJSON string
	var favorite, blurred int
	var lat, lon sql.NullFloat64
	var embedding []byte
	if err := row.Scan(&r.ID, &r.Path, &r.ThumbnailPath, &r.Width, &r.Height,
		&r.SizeBytes, &r.ContentHash, &lastMod, &indexedAt, &embedding,
		&blobJSON, &r.Status, &favorite, &blurred, &lat, &lon); err != nil {
		return nil, err
	}
	r.LastModified = time.Unix(lastMod, 0).UTC()
	r.IndexedAt = time.Unix(indexedAt, 0).UTC()
	r.Embedding = embedding
	r.Favorite = favorite != 0
	r.Blurred = blurred != 0
	if lat.Valid {
		v := lat.Float64
		r.Lat = &v
	}
	if lon.Valid {
		v := lon.Float64
		r.Lon = &v
	}
	r.Blob = map[string]any{}
	if blobJSON != "" {
		_ = json.Unmarshal([]byte(blobJSON), &r.Blob)
	}
	return &r, nil
}

const recordColumns = `id, path, thumbnail_path, width, height, size_bytes, content_hash,
	last_modified, indexed_at, embedding, blob_json, status, favorite, blurred, lat, lon`

func (s *SQLiteRepository) FindByPath(path string) (*ImageRecord, error) {
	row := s.db.QueryRow(`SELECT `+recordColumns+` FROM images WHERE path = ?`, path)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (s *SQLiteRepository) FindByID(id int64) (*ImageRecord, error) {
	row := s.db.QueryRow(`SELECT `+recordColumns+` FROM images WHERE id = ?`, id)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (s *SQLiteRepository) FindAllEmbeddings() ([]EmbeddingRow, error) {
	rows, err := s.db.Query(`SELECT id, embedding FROM images WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EmbeddingRow
	for rows.Next() {
		var e EmbeddingRow
		if err := rows.Scan(&e.ID, &e.Bytes); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteRepository) Save(r *ImageRecord) error {
	blobJSON, err := json.Marshal(r.Blob)
	if err != nil {
		return fmt.Errorf("store: marshal blob: %w", err)
	}
	favorite, blurred := 0, 0
	if r.Favorite {
		favorite = 1
	}
	if r.Blurred {
		blurred = 1
	}
	if r.ID == 0 {
		res, err := s.db.Exec(`INSERT INTO images
			(path, thumbnail_path, width, height, size_bytes, content_hash,
			 last_modified, indexed_at, embedding, blob_json, status, favorite, blurred, lat, lon)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			r.Path, r.ThumbnailPath, r.Width, r.Height, r.SizeBytes, r.ContentHash,
			r.LastModified.Unix(), r.IndexedAt.Unix(), r.Embedding, string(blobJSON),
			r.Status, favorite, blurred, r.Lat, r.Lon)
		if err != nil {
			return fmt.Errorf("store: insert image: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("store: last insert id: %w", err)
		}
		r.ID = id
		return nil
	}
	_, err = s.db.Exec(`UPDATE images SET path=?, thumbnail_path=?, width=?, height=?,
		size_bytes=?, content_hash=?, last_modified=?, indexed_at=?, embedding=?,
		blob_json=?, status=?, favorite=?, blurred=?, lat=?, lon=? WHERE id=?`,
		r.Path, r.ThumbnailPath, r.Width, r.Height, r.SizeBytes, r.ContentHash,
		r.LastModified.Unix(), r.IndexedAt.Unix(), r.Embedding, string(blobJSON),
		r.Status, favorite, blurred, r.Lat, r.Lon, r.ID)
	if err != nil {
		return fmt.Errorf("store: update image %d: %w", r.ID, err)
	}
	return nil
}

func (s *SQLiteRepository) Delete(r *ImageRecord) error {
	_, err := s.db.Exec(`DELETE FROM images WHERE id = ?`, r.ID)
	if err != nil {
		return fmt.Errorf("store: delete image %d: %w", r.ID, err)
	}
	return nil
}

func (s *SQLiteRepository) CountWithEmbedding() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM images WHERE embedding IS NOT NULL`).Scan(&n)
	return n, err
}

func (s *SQLiteRepository) queryRecords(query string, args ...any) ([]*ImageRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*ImageRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteRepository) FindByTagSubstring(tag string, limit int) ([]*ImageRecord, error) {
	return s.queryRecords(`SELECT `+recordColumns+` FROM images
		WHERE LOWER(blob_json) LIKE ? LIMIT ?`,
		"%"+strings.ToLower(tag)+"%", limit)
}

func (s *SQLiteRepository) FindByFilenameSubstring(sub string, limit, offset int) ([]*ImageRecord, error) {
	return s.queryRecords(`SELECT `+recordColumns+` FROM images
		WHERE LOWER(path) LIKE ? ORDER BY id LIMIT ? OFFSET ?`,
		"%"+strings.ToLower(sub)+"%", limit, offset)
}

func (s *SQLiteRepository) FindByFolderSubstring(sub string, limit, offset int) ([]*ImageRecord, error) {
	return s.queryRecords(`SELECT `+recordColumns+` FROM images
		WHERE LOWER(path) LIKE ? ORDER BY id LIMIT ? OFFSET ?`,
		"%"+strings.ToLower(sub)+"%", limit, offset)
}

func (s *SQLiteRepository) CountFavorites() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM images WHERE favorite = 1`).Scan(&n)
	return n, err
}

func (s *SQLiteRepository) FindFavorites(limit, offset int) ([]*ImageRecord, error) {
	return s.queryRecords(`SELECT `+recordColumns+` FROM images
		WHERE favorite = 1 ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
}

func (s *SQLiteRepository) AddWatchedFolder(path string) (*WatchedFolder, error) {
	now := time.Now().Unix()
	_, err := s.db.Exec(`INSERT INTO watched_folders (path, active, added_at) VALUES (?, 1, ?)
		ON CONFLICT(path) DO UPDATE SET active = 1`, path, now)
	if err != nil {
		return nil, fmt.Errorf("store: add watched folder %s: %w", path, err)
	}
	row := s.db.QueryRow(`SELECT id, path, active, added_at FROM watched_folders WHERE path = ?`, path)
	var wf WatchedFolder
	var active int
	var addedAt int64
	if err := row.Scan(&wf.ID, &wf.Path, &active, &addedAt); err != nil {
		return nil, err
	}
	wf.Active = active != 0
	wf.AddedAt = time.Unix(addedAt, 0).UTC()
	return &wf, nil
}

func (s *SQLiteRepository) RemoveWatchedFolder(id int64) error {
	_, err := s.db.Exec(`UPDATE watched_folders SET active = 0 WHERE id = ?`, id)
	return err
}

func (s *SQLiteRepository) ListWatchedFolders() ([]*WatchedFolder, error) {
	rows, err := s.db.Query(`SELECT id, path, active, added_at FROM watched_folders ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*WatchedFolder
	for rows.Next() {
		var wf WatchedFolder
		var active int
		var addedAt int64
		if err := rows.Scan(&wf.ID, &wf.Path, &active, &addedAt); err != nil {
			return nil, err
		}
		wf.Active = active != 0
		wf.AddedAt = time.Unix(addedAt, 0).UTC()
		out = append(out, &wf)
	}
	return out, rows.Err()
}

func (s *SQLiteRepository) AppendAudit(e *AuditEntry) error {
	_, err := s.db.Exec(`INSERT INTO audit_log (path, status, duration_ms, error_msg, at)
		VALUES (?,?,?,?,?)`, e.Path, e.Status, e.Duration.Milliseconds(), e.ErrorMsg, time.Now().Unix())
	return err
}

func (s *SQLiteRepository) RecentAudit(limit int) ([]*AuditEntry, error) {
	rows, err := s.db.Query(`SELECT id, path, status, duration_ms, error_msg, at
		FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		var durationMs, at int64
		if err := rows.Scan(&e.ID, &e.Path, &e.Status, &durationMs, &e.ErrorMsg, &at); err != nil {
			return nil, err
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.At = time.Unix(at, 0).UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *SQLiteRepository) GetSetting(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *SQLiteRepository) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

var _ Repository = (*SQLiteRepository)(nil)

// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package weights implements the encoder-weights acquisition subsystem
// (spec §4.2): a non-reentrant session that fetches the two encoder model
// artifacts and the tokenizer spec from a remote repository, verifying,
// retrying, and reporting progress as it goes, then hands the files to the
// embedding service to hot-load.
//
// Adapted from pkg/hfdownloader's retry/verify/progress-event shape,
// simplified to the fixed three-file protocol and single-session guard
// spec §4.2 specifies (see DESIGN.md).
package weights

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"photolens/internal/apperr"
)

const chunkSize = 512 * 1024                 // 512 KiB streaming chunks, spec §4.2
const progressByteInterval = 5 * 1024 * 1024 // at least every 5 MiB, spec §4.2
const maxAttempts = 3

// ModelLoader is the narrow capability the embedding service exposes so the
// fetcher can hand it freshly downloaded files without holding a full
// back-reference (spec §9: "fetcher holds a back-reference only via a
// narrow load_models capability").
type ModelLoader interface {
	LoadModels(visualPath, textPath, tokenizerPath string) error
}

// Fetcher runs at most one download session at a time.
type Fetcher struct {
	modelsDir   string
	defaultRepo string
	baseURL     string
	loader      ModelLoader
	tokenFunc   func() (string, error)

	running     atomic.Bool
	broadcaster *broadcaster
}

// New returns a Fetcher that writes into modelsDir. tokenFunc supplies the
// decrypted bearer credential on demand (typically vault.Decrypt of the
// stored settings value); baseURL defaults to the HuggingFace hub if empty.
func New(modelsDir, defaultRepo, baseURL string, loader ModelLoader, tokenFunc func() (string, error)) *Fetcher {
	if baseURL == "" {
		baseURL = "https://huggingface.co"
	}
	return &Fetcher{
		modelsDir:   modelsDir,
		defaultRepo: defaultRepo,
		baseURL:     baseURL,
		loader:      loader,
		tokenFunc:   tokenFunc,
		broadcaster: newBroadcaster(),
	}
}

// IsRunning reports whether a session is currently in progress.
func (f *Fetcher) IsRunning() bool {
	return f.running.Load()
}

// Subscribe registers a new progress-event subscriber.
func (f *Fetcher) Subscribe() (<-chan ProgressEvent, func()) {
	return f.broadcaster.Subscribe()
}

// Status reports whether each of the three files currently exists on disk.
func (f *Fetcher) Status() []FileStatus {
	out := make([]FileStatus, 0, 3)
	for _, spec := range DefaultFiles() {
		path := filepath.Join(f.modelsDir, spec.destName)
		st := FileStatus{Name: spec.ID, Path: path}
		if fi, err := os.Stat(path); err == nil {
			st.Exists = true
			st.SizeBytes = fi.Size()
		}
		out = append(out, st)
	}
	return out
}

// Start begins a fetch session for repoOverride (or the configured default
// repo if empty). It is non-reentrant: a second call while a session is
// running fails with apperr.KindConflict. The session itself runs
// asynchronously; Start returns once it has been launched.
func (f *Fetcher) Start(ctx context.Context, repoOverride string) error {
	if !f.running.CompareAndSwap(false, true) {
		return apperr.New(apperr.KindConflict, "a weights download session is already running")
	}
	repo := f.defaultRepo
	if repoOverride != "" {
		repo = repoOverride
	}
	go f.run(ctx, repo)
	return nil
}

func (f *Fetcher) run(ctx context.Context, repo string) {
	defer f.running.Store(false)

	f.publish(ProgressEvent{Status: StatusStarted, Message: "starting weights download for " + repo})

	token, err := f.tokenFunc()
	if err != nil {
		f.publish(ProgressEvent{Status: StatusError, Message: "could not decrypt credential: " + err.Error()})
		return
	}

	if err := os.MkdirAll(f.modelsDir, 0o755); err != nil {
		f.publish(ProgressEvent{Status: StatusError, Message: err.Error()})
		return
	}

	httpc := buildHTTPClient()
	var visualPath, textPath, tokenizerPath string

	for _, spec := range DefaultFiles() {
		dst := filepath.Join(f.modelsDir, spec.destName)
		switch spec.ID {
		case "image-encoder":
			visualPath = dst
		case "text-encoder":
			textPath = dst
		case "tokenizer":
			tokenizerPath = dst
		}

		if fi, err := os.Stat(dst); err == nil && fi.Size() > 0 {
			f.publish(ProgressEvent{Status: StatusSkipped, FileID: spec.ID, Message: "already present"})
			continue
		}

		url := resolveURL(f.baseURL, repo, spec.RepoPath)
		if err := f.fetchOne(ctx, httpc, token, spec, url, dst); err != nil {
			f.publish(ProgressEvent{Status: StatusError, FileID: spec.ID, Message: err.Error()})
			return
		}
		f.publish(ProgressEvent{Status: StatusFileComplete, FileID: spec.ID})
	}

	f.publish(ProgressEvent{Status: StatusLoading, Message: "hot-loading models"})
	if err := f.loader.LoadModels(visualPath, textPath, tokenizerPath); err != nil {
		f.publish(ProgressEvent{Status: StatusError, Message: "load failed: " + err.Error()})
		return
	}
	f.publish(ProgressEvent{Status: StatusReady, Message: "models ready"})
}

// fetchOne implements the per-file protocol of spec §4.2: streamed chunked
// GET with bearer auth, running SHA-256, byte-count verification against
// Content-Length, atomic temp-file + rename, retry with exponential
// backoff, and the 401/404 non-retryable response-code policy.
func (f *Fetcher) fetchOne(ctx context.Context, httpc *http.Client, token string, spec FileSpec, url, dst string) error {
	bo := newBackoff()
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			f.publish(ProgressEvent{Status: StatusRetrying, FileID: spec.ID, Message: lastErr.Error()})
			d := bo.Next()
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := f.attemptFetch(ctx, httpc, token, spec, url, dst)
		if err == nil {
			return nil
		}
		lastErr = err

		if ae, ok := err.(*apperr.Error); ok {
			if ae.Kind == apperr.KindAuthFailed || ae.Kind == apperr.KindMissingRemoteFile {
				return err // non-retryable per spec §4.2
			}
		}
	}
	return fmt.Errorf("weights: %s: exhausted %d attempts: %w", spec.ID, maxAttempts, lastErr)
}

func (f *Fetcher) attemptFetch(ctx context.Context, httpc *http.Client, token string, spec FileSpec, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	addAuth(req, token)

	resp, err := httpc.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindIOFailed, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return apperr.New(apperr.KindAuthFailed, "auth failed fetching "+spec.ID)
	case resp.StatusCode == http.StatusNotFound:
		return apperr.New(apperr.KindMissingRemoteFile, "missing remote file "+spec.RepoPath)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return apperr.New(apperr.KindIOFailed, fmt.Sprintf("unexpected status %s fetching %s", resp.Status, spec.ID))
	}

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return apperr.Wrap(apperr.KindIOFailed, "create temp file", err)
	}

	hasher := sha256.New()
	var bytesSoFar int64
	var sinceLastEmit int64
	buf := make([]byte, chunkSize)

	f.publish(ProgressEvent{Status: StatusDownloading, FileID: spec.ID, TotalBytes: resp.ContentLength})

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				os.Remove(tmp)
				return apperr.Wrap(apperr.KindIOFailed, "write temp file", werr)
			}
			hasher.Write(buf[:n])
			bytesSoFar += int64(n)
			sinceLastEmit += int64(n)
			if sinceLastEmit >= progressByteInterval {
				f.publish(ProgressEvent{Status: StatusDownloading, FileID: spec.ID, BytesSoFar: bytesSoFar, TotalBytes: resp.ContentLength})
				sinceLastEmit = 0
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			os.Remove(tmp)
			return apperr.Wrap(apperr.KindIOFailed, "read response body", readErr)
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return apperr.Wrap(apperr.KindIOFailed, "close temp file", err)
	}

	if resp.ContentLength >= 0 && bytesSoFar != resp.ContentLength {
		os.Remove(tmp)
		return apperr.New(apperr.KindIOFailed, fmt.Sprintf("byte count mismatch for %s: got %d want %d", spec.ID, bytesSoFar, resp.ContentLength))
	}

	_ = hex.EncodeToString(hasher.Sum(nil)) // running checksum computed; no remote digest to compare against in this protocol

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return apperr.Wrap(apperr.KindIOFailed, "rename into place", err)
	}
	return nil
}

func (f *Fetcher) publish(ev ProgressEvent) {
	ev.Time = timeNow()
	f.broadcaster.Publish(ev)
}

// timeNow is a seam so tests could substitute a fixed clock; production
// code always uses the wall clock.
var timeNow = time.Now

// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package weights

import "time"

// Status is the closed set of weight-fetch progress states (spec §3). It is
// a sum type in internal code (per spec §9's design note preferring sum
// types over string discriminants) and serializes to its string form at the
// HTTP boundary via MarshalJSON.
type Status int

const (
	StatusStarted Status = iota
	StatusDownloading
	StatusRetrying
	StatusFileComplete
	StatusLoading
	StatusReady
	StatusError
	StatusSkipped
)

var statusNames = map[Status]string{
	StatusStarted:      "started",
	StatusDownloading:  "downloading",
	StatusRetrying:     "retrying",
	StatusFileComplete: "file-complete",
	StatusLoading:      "loading",
	StatusReady:        "ready",
	StatusError:        "error",
	StatusSkipped:      "skipped",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON serializes Status as its string form.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// ProgressEvent is spec §3's weight-fetch progress event: observable,
// never retroactively modified.
type ProgressEvent struct {
	Status     Status    `json:"status"`
	FileID     string    `json:"fileId,omitempty"`
	BytesSoFar int64     `json:"bytesSoFar,omitempty"`
	TotalBytes int64     `json:"totalBytes,omitempty"`
	Message    string    `json:"message,omitempty"`
	Time       time.Time `json:"time"`
}

// FileSpec is one of the three files the fetcher retrieves (spec §4.2: two
// encoder model artifacts and one tokenizer spec).
type FileSpec struct {
	ID       string // "image-encoder" | "text-encoder" | "tokenizer"
	RepoPath string // path within the remote repo
	destName string // local file name under the models directory
}

// DefaultFiles is the fixed three-file plan spec §4.2/§6 describes.
func DefaultFiles() []FileSpec {
	return []FileSpec{
		{ID: "image-encoder", RepoPath: "image_encoder.onnx", destName: "image_encoder.onnx"},
		{ID: "text-encoder", RepoPath: "text_encoder.onnx", destName: "text_encoder.onnx"},
		{ID: "tokenizer", RepoPath: "tokenizer.json", destName: "tokenizer.json"},
	}
}

// FileStatus reports one file's on-disk presence, for /models/status.
type FileStatus struct {
	Name      string `json:"name"`
	Exists    bool   `json:"exists"`
	SizeBytes int64  `json:"sizeBytes"`
	Path      string `json:"path"`
}

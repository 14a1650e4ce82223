// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package apperr models the engine-wide error kinds surfaced to HTTP callers
// (spec §7): not-ready, invalid-input, auth-failed, missing-remote-file,
// io-failed, decrypt-failed, conflict, not-found. Kinds map to HTTP status
// codes at the server boundary; internally code should check kind with
// errors.Is against the sentinels below, not string-match messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a closed set of error categories the HTTP façade understands.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotReady
	KindInvalidInput
	KindAuthFailed
	KindMissingRemoteFile
	KindIOFailed
	KindDecryptFailed
	KindConflict
	KindNotFound
)

// Sentinel errors; wrap one of these with fmt.Errorf("...: %w", ...) or use
// New to attach a kind to an arbitrary message.
var (
	ErrNotReady          = errors.New("subsystem not ready")
	ErrInvalidInput      = errors.New("invalid input")
	ErrAuthFailed        = errors.New("authentication failed")
	ErrMissingRemoteFile = errors.New("remote file not found")
	ErrIOFailed          = errors.New("io failure")
	ErrDecryptFailed     = errors.New("credential sealed on a different host")
	ErrConflict          = errors.New("conflicting operation already in progress")
	ErrNotFound          = errors.New("record not found")
	kindSentinel         = map[Kind]error{}
)

func init() {
	kindSentinel[KindNotReady] = ErrNotReady
	kindSentinel[KindInvalidInput] = ErrInvalidInput
	kindSentinel[KindAuthFailed] = ErrAuthFailed
	kindSentinel[KindMissingRemoteFile] = ErrMissingRemoteFile
	kindSentinel[KindIOFailed] = ErrIOFailed
	kindSentinel[KindDecryptFailed] = ErrDecryptFailed
	kindSentinel[KindConflict] = ErrConflict
	kindSentinel[KindNotFound] = ErrNotFound
}

// Error carries a Kind alongside a wrapped cause, in the same
// wrap-with-context shape as *DownloadError/*APIError.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	if sentinel, ok := kindSentinel[e.Kind]; ok {
		if e.Err != nil {
			return e.Err
		}
		return sentinel
	}
	return e.Err
}

// Is lets errors.Is(err, apperr.ErrNotReady) succeed against a wrapped Error
// of the matching kind, mirroring pkg/hfdownloader's APIError.Is pattern.
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinel[e.Kind]
	return ok && errors.Is(sentinel, target)
}

// New builds an *Error of the given kind with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, else
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps a Kind to the status code spec §7 assigns it.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidInput:
		return 400
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	case KindNotReady:
		return 503
	case KindAuthFailed, KindMissingRemoteFile, KindIOFailed, KindDecryptFailed:
		return 500
	default:
		return 500
	}
}

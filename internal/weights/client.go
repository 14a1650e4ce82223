// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package weights

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// resolveURLTemplate mirrors the HuggingFace LFS resolver convention
// (pkg/hfdownloader/client.go's LfsModelResolverURL), generalized to an
// arbitrary configured base so the remote isn't hardcoded to one host.
const resolveURLTemplate = "%s/%s/resolve/main/%s"

func resolveURL(base, repo, repoPath string) string {
	base = strings.TrimSuffix(base, "/")
	return fmt.Sprintf(resolveURLTemplate, base, repo, pathEscapeAll(repoPath))
}

func pathEscapeAll(p string) string {
	segs := strings.Split(p, "/")
	for i := range segs {
		segs[i] = url.PathEscape(segs[i])
	}
	return strings.Join(segs, "/")
}

// buildHTTPClient builds the client used for weight downloads: connect
// timeout 30s, read timeout 120s (spec §4.2).
func buildHTTPClient() *http.Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   120 * time.Second,
	}
}

func addAuth(req *http.Request, bearerToken string) {
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}
	req.Header.Set("User-Agent", "photolens-weights-fetcher/1")
}

// backoff implements the exponential schedule spec §4.2 mandates: 2s, 4s,
// ... capped at 30s.
type backoff struct {
	next time.Duration
	max  time.Duration
}

func newBackoff() *backoff {
	return &backoff{next: 2 * time.Second, max: 30 * time.Second}
}

func (b *backoff) Next() time.Duration {
	d := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return d
}

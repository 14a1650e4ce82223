// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package thumbnail implements the deterministic JPEG thumbnail
// service (spec §4.5): fit-inside-square resize preserving aspect ratio,
// stable on-disk naming by md5(absolute path), reuse of existing nonempty
// files.
package thumbnail

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// DefaultSide is the default square side S (spec §4.5).
const DefaultSide = 300

// DefaultQuality is JPEG quality 0.85 expressed on Go's 1-100 scale.
const DefaultQuality = 85

var supportedExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".webp": true, ".tiff": true, ".tif": true,
}

// Service creates and removes thumbnails under a single directory.
type Service struct {
	dir     string
	side    int
	quality int
}

// New returns a thumbnail service writing into dir, creating it if needed.
func New(dir string) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("thumbnail: create dir %s: %w", dir, err)
	}
	return &Service{dir: dir, side: DefaultSide, quality: DefaultQuality}, nil
}

// IsSupported reports whether path's extension is one of the accepted
// raster formats.
func IsSupported(path string) bool {
	return supportedExt[strings.ToLower(filepath.Ext(path))]
}

// pathFor returns the deterministic thumbnail path for an absolute image
// path: hex(md5(abs_path)).jpg.
func (s *Service) pathFor(absPath string) string {
	sum := md5.Sum([]byte(absPath))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".jpg")
}

// Create returns the thumbnail path for absPath, generating the file if it
// doesn't already exist as a nonempty file.
func (s *Service) Create(absPath string) (string, error) {
	out := s.pathFor(absPath)
	if fi, err := os.Stat(out); err == nil && fi.Size() > 0 {
		return out, nil
	}

	f, err := os.Open(absPath)
	if err != nil {
		return "", fmt.Errorf("thumbnail: open %s: %w", absPath, err)
	}
	defer f.Close()

	src, _, err := decodeAny(f)
	if err != nil {
		return "", fmt.Errorf("thumbnail: decode %s: %w", absPath, err)
	}

	thumb := s.fitInsideSquare(src)

	tmp := out + ".tmp"
	wf, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("thumbnail: create temp %s: %w", tmp, err)
	}
	if err := jpeg.Encode(wf, thumb, &jpeg.Options{Quality: s.quality}); err != nil {
		wf.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("thumbnail: encode %s: %w", tmp, err)
	}
	if err := wf.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("thumbnail: close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, out); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("thumbnail: rename into place %s: %w", out, err)
	}
	return out, nil
}

// Delete removes the thumbnail for absPath, if any.
func (s *Service) Delete(absPath string) error {
	err := os.Remove(s.pathFor(absPath))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("thumbnail: delete for %s: %w", absPath, err)
	}
	return nil
}

// fitInsideSquare resizes src so its larger dimension equals s.side,
// preserving aspect ratio, using Catmull-Rom interpolation.
func (s *Service) fitInsideSquare(src image.Image) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	var newW, newH int
	if w >= h {
		newW = s.side
		newH = int(float64(s.side) * float64(h) / float64(w))
	} else {
		newH = s.side
		newW = int(float64(s.side) * float64(w) / float64(h))
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// decodeAny decodes any of the accepted raster formats.
func decodeAny(f *os.File) (image.Image, string, error) {
	switch ext := strings.ToLower(filepath.Ext(f.Name())); ext {
	case ".png":
		img, err := png.Decode(f)
		return img, "png", err
	case ".gif":
		img, err := gif.Decode(f)
		return img, "gif", err
	case ".bmp":
		img, err := bmp.Decode(f)
		return img, "bmp", err
	case ".webp":
		img, err := webp.Decode(f)
		return img, "webp", err
	case ".tiff", ".tif":
		img, err := tiff.Decode(f)
		return img, "tiff", err
	default:
		img, format, err := image.Decode(f)
		return img, format, err
	}
}

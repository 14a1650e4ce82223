// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package embedding

import (
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

// TestNotReadyBeforeLoad covers the parts of the service reachable without a
// real ONNX model artifact: a fresh Service reports not-ready, and both
// embed paths return nil rather than touching a nil session.
func TestNotReadyBeforeLoad(t *testing.T) {
	s := New()
	if s.IsReady() {
		t.Fatal("expected a fresh Service to be not ready")
	}
	if got := s.EmbedText("a cat"); got != nil {
		t.Fatalf("expected nil embedding before load, got %v", got)
	}
	if got := s.EmbedImage("/nonexistent.jpg"); got != nil {
		t.Fatalf("expected nil embedding before load, got %v", got)
	}
}

// TestEmbedTextEmptyString covers the explicit empty-input short circuit,
// which must return nil without requiring a loaded session.
func TestEmbedTextEmptyString(t *testing.T) {
	s := New()
	if got := s.EmbedText(""); got != nil {
		t.Fatalf("expected nil embedding for empty text, got %v", got)
	}
}

// TestPreprocessImageProducesNormalizedTensor exercises the preprocessing
// pipeline (the part of the embedding service that needs no ONNX runtime or
// model file) against a small synthetic JPEG, checking output shape and that
// values land in the normalized range CLIP-style preprocessing implies.
func TestPreprocessImageProducesNormalizedTensor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.jpg")
	writeSolidJPEG(t, path, 400, 200, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	out, err := preprocessImage(path)
	if err != nil {
		t.Fatalf("preprocessImage: %v", err)
	}
	if want := 3 * inputSide * inputSide; len(out) != want {
		t.Fatalf("expected %d values, got %d", want, len(out))
	}

	// A solid-color image should normalize to a near-constant value per
	// channel plane; spot check the three plane offsets agree with the
	// expected per-channel normalization of a fixed 8-bit value.
	plane := inputSide * inputSide
	r := (200.0/255 - float64(clipMean[0])) / float64(clipStd[0])
	if diff := float64(out[0]) - r; diff > 0.05 || diff < -0.05 {
		t.Fatalf("red plane[0] = %v, want near %v", out[0], r)
	}
	if out[plane] == 0 && out[2*plane] == 0 {
		t.Fatal("expected green/blue planes to be populated")
	}
}

func TestCenterCropSquareHandlesNonSquareInput(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 100))
	cropped := centerCropSquare(src)
	b := cropped.Bounds()
	if b.Dx() != 100 || b.Dy() != 100 {
		t.Fatalf("expected a 100x100 crop from the shorter side, got %dx%d", b.Dx(), b.Dy())
	}
}

func writeSolidJPEG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
}

package metadata

import (
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

func TestExtractNoEXIFReturnsEmptyResult(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.jpg")
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.Close()

	res := Extract(path)
	if res.Lat != nil || res.Lon != nil {
		t.Fatal("expected nil coordinates for an image with no EXIF")
	}
	if res.Fields != (Fields{}) {
		t.Fatalf("expected zero-value fields, got %+v", res.Fields)
	}
}

func TestExtractMissingFileReturnsEmptyResult(t *testing.T) {
	res := Extract("/nonexistent/path/does-not-exist.jpg")
	if res.Lat != nil || res.Lon != nil || res.Fields != (Fields{}) {
		t.Fatal("expected empty result for missing file")
	}
}

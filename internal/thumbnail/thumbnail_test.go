package thumbnail

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

func writeTestJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 255), G: uint8(y % 255), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func TestIsSupported(t *testing.T) {
	cases := map[string]bool{
		"a.jpg": true, "a.JPEG": true, "a.png": true, "a.gif": true,
		"a.bmp": true, "a.webp": true, "a.tiff": true, "a.tif": true,
		"a.txt": false, "a.mp4": false, "noext": false,
	}
	for name, want := range cases {
		if got := IsSupported(name); got != want {
			t.Errorf("IsSupported(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestCreateReuseAndDelete(t *testing.T) {
	srcDir := t.TempDir()
	thumbDir := t.TempDir()
	src := filepath.Join(srcDir, "photo.jpg")
	writeTestJPEG(t, src, 800, 400)

	svc, err := New(thumbDir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out1, err := svc.Create(src)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	fi, err := os.Stat(out1)
	if err != nil || fi.Size() == 0 {
		t.Fatalf("expected nonempty thumbnail, stat err=%v size=%v", err, fi)
	}

	decoded, err := os.ReadFile(out1)
	if err != nil {
		t.Fatalf("read thumbnail: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(decoded))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != DefaultSide || b.Dy() != DefaultSide/2 {
		t.Fatalf("expected %dx%d thumbnail, got %dx%d", DefaultSide, DefaultSide/2, b.Dx(), b.Dy())
	}

	mtime1 := fi.ModTime()
	out2, err := svc.Create(src)
	if err != nil {
		t.Fatalf("Create (reuse): %v", err)
	}
	if out2 != out1 {
		t.Fatalf("expected same path on reuse: %s vs %s", out1, out2)
	}
	fi2, _ := os.Stat(out2)
	if !fi2.ModTime().Equal(mtime1) {
		t.Fatal("expected reuse to skip regeneration (mtime unchanged)")
	}

	if err := svc.Delete(src); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(out1); !os.IsNotExist(err) {
		t.Fatal("expected thumbnail removed after Delete")
	}
}

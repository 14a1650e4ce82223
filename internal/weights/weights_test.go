package weights

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"photolens/internal/apperr"
)

type fakeLoader struct {
	mu                                  sync.Mutex
	called                              bool
	visualPath, textPath, tokenizerPath string
}

func (l *fakeLoader) LoadModels(visualPath, textPath, tokenizerPath string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.called = true
	l.visualPath, l.textPath, l.tokenizerPath = visualPath, textPath, tokenizerPath
	return nil
}

func waitForTerminal(t *testing.T, sub <-chan ProgressEvent) ProgressEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-sub:
			if ev.Status == StatusReady || ev.Status == StatusError {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for terminal event")
		}
	}
}

func TestStartFetchesAllFilesAndLoads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := []byte("payload-for-" + strings.TrimPrefix(r.URL.Path, "/owner%2Fmodel/resolve/main/"))
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	loader := &fakeLoader{}
	f := New(dir, "owner/model", srv.URL, loader, func() (string, error) { return "tok", nil })

	sub, unsub := f.Subscribe()
	defer unsub()

	if err := f.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ev := waitForTerminal(t, sub)
	if ev.Status != StatusReady {
		t.Fatalf("expected ready, got %v (%s)", ev.Status, ev.Message)
	}
	if !loader.called {
		t.Fatal("expected LoadModels to be called")
	}
	if f.IsRunning() {
		t.Fatal("expected session to have finished")
	}

	for _, spec := range DefaultFiles() {
		path := filepath.Join(dir, spec.destName)
		if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
			t.Fatalf("expected nonempty file at %s, err=%v", path, err)
		}
	}
}

func TestStartRejectsSecondConcurrentSession(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	loader := &fakeLoader{}
	f := New(dir, "owner/model", srv.URL, loader, func() (string, error) { return "tok", nil })

	if err := f.Start(context.Background(), ""); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	err := f.Start(context.Background(), "")
	close(block)
	if err == nil {
		t.Fatal("expected conflict starting a second session")
	}
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected KindConflict, got %v", err)
	}
	// drain so the background goroutine finishes before the test server closes
	sub, unsub := f.Subscribe()
	defer unsub()
	waitForTerminal(t, sub)
}

func TestFetchUnauthorizedIsNonRetryable(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	dir := t.TempDir()
	loader := &fakeLoader{}
	f := New(dir, "owner/model", srv.URL, loader, func() (string, error) { return "tok", nil })
	sub, unsub := f.Subscribe()
	defer unsub()

	if err := f.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ev := waitForTerminal(t, sub)
	if ev.Status != StatusError {
		t.Fatalf("expected error status, got %v", ev.Status)
	}
	if hits != 1 {
		t.Fatalf("expected exactly 1 request for a 401 (non-retryable), got %d", hits)
	}
}

func TestStatusReportsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	loader := &fakeLoader{}
	f := New(dir, "owner/model", "http://example.invalid", loader, func() (string, error) { return "", nil })
	if err := os.WriteFile(filepath.Join(dir, "image_encoder.onnx"), []byte("data"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	statuses := f.Status()
	found := false
	for _, s := range statuses {
		if s.Name == "image-encoder" {
			found = true
			if !s.Exists || s.SizeBytes != 4 {
				t.Fatalf("expected exists+size for image-encoder, got %+v", s)
			}
		}
	}
	if !found {
		t.Fatal("expected image-encoder in status list")
	}
}

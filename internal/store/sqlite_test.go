package store

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photolens.db")
	repo, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSaveAndFindByPath(t *testing.T) {
	repo := newTestRepo(t)
	rec := &ImageRecord{
		Path:         "/photos/a.jpg",
		ContentHash:  "deadbeef",
		LastModified: time.Now().Truncate(time.Second),
		IndexedAt:    time.Now().Truncate(time.Second),
		Status:       "indexed",
		Blob:         map[string]any{"tags": []any{"vacation"}},
	}
	if err := repo.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("expected Save to assign an id")
	}

	got, err := repo.FindByPath("/photos/a.jpg")
	if err != nil {
		t.Fatalf("FindByPath: %v", err)
	}
	if got == nil || got.ContentHash != "deadbeef" {
		t.Fatalf("got %+v", got)
	}

	got.Status = "error"
	if err := repo.Save(got); err != nil {
		t.Fatalf("Save (update): %v", err)
	}
	reloaded, err := repo.FindByID(got.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if reloaded.Status != "error" {
		t.Fatalf("expected updated status, got %q", reloaded.Status)
	}
}

func TestFindByPathMissingReturnsNil(t *testing.T) {
	repo := newTestRepo(t)
	got, err := repo.FindByPath("/nope")
	if err != nil {
		t.Fatalf("FindByPath: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	repo := newTestRepo(t)
	rec := &ImageRecord{Path: "/photos/b.jpg", Status: "indexed"}
	if err := repo.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Delete(rec); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := repo.FindByID(rec.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got != nil {
		t.Fatal("expected record to be gone after delete")
	}
}

func TestFavoritesAndTagSubstring(t *testing.T) {
	repo := newTestRepo(t)
	rec := &ImageRecord{
		Path:     "/photos/c.jpg",
		Status:   "indexed",
		Favorite: true,
		Blob:     map[string]any{"tags": []any{"Vacation", "__sys_favorite__"}},
	}
	if err := repo.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	n, err := repo.CountFavorites()
	if err != nil || n != 1 {
		t.Fatalf("CountFavorites = %d, %v", n, err)
	}
	favs, err := repo.FindFavorites(10, 0)
	if err != nil || len(favs) != 1 {
		t.Fatalf("FindFavorites = %v, %v", favs, err)
	}

	hits, err := repo.FindByTagSubstring("vacation", 10)
	if err != nil || len(hits) != 1 {
		t.Fatalf("FindByTagSubstring = %v, %v", hits, err)
	}
}

func TestWatchedFolderLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	wf, err := repo.AddWatchedFolder("/library/photos")
	if err != nil {
		t.Fatalf("AddWatchedFolder: %v", err)
	}
	if !wf.Active {
		t.Fatal("expected new folder to be active")
	}
	// idempotent
	wf2, err := repo.AddWatchedFolder("/library/photos")
	if err != nil {
		t.Fatalf("AddWatchedFolder (idempotent): %v", err)
	}
	if wf2.ID != wf.ID {
		t.Fatalf("expected same id on re-add, got %d vs %d", wf2.ID, wf.ID)
	}

	if err := repo.RemoveWatchedFolder(wf.ID); err != nil {
		t.Fatalf("RemoveWatchedFolder: %v", err)
	}
	list, err := repo.ListWatchedFolders()
	if err != nil {
		t.Fatalf("ListWatchedFolders: %v", err)
	}
	if len(list) != 1 || list[0].Active {
		t.Fatalf("expected folder to remain but be inactive, got %+v", list)
	}
}

func TestSettingsRoundtrip(t *testing.T) {
	repo := newTestRepo(t)
	if _, ok, err := repo.GetSetting("missing"); err != nil || ok {
		t.Fatalf("expected not found, got ok=%v err=%v", ok, err)
	}
	if err := repo.SetSetting("minScore", "0.24"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	v, ok, err := repo.GetSetting("minScore")
	if err != nil || !ok || v != "0.24" {
		t.Fatalf("GetSetting = %q, %v, %v", v, ok, err)
	}
	if err := repo.SetSetting("minScore", "0.3"); err != nil {
		t.Fatalf("SetSetting (update): %v", err)
	}
	v, _, _ = repo.GetSetting("minScore")
	if v != "0.3" {
		t.Fatalf("expected updated value, got %q", v)
	}
}

func TestAuditLog(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.AppendAudit(&AuditEntry{Path: "/a.jpg", Status: "success", Duration: 5 * time.Millisecond}); err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}
	if err := repo.AppendAudit(&AuditEntry{Path: "/b.jpg", Status: "error", ErrorMsg: "boom"}); err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}
	recent, err := repo.RecentAudit(10)
	if err != nil || len(recent) != 2 {
		t.Fatalf("RecentAudit = %v, %v", recent, err)
	}
	if recent[0].Path != "/b.jpg" {
		t.Fatalf("expected most recent first, got %+v", recent[0])
	}
}

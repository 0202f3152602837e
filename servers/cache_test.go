package servers

import (
	"path/filepath"
	"testing"
)

func openTestCache(t *testing.T, path string) *Cache {
	t.Helper()
	cache, err := OpenCache(path)
	if err != nil {
		t.Fatalf("OpenCache() returned error: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestCache_LoadEmpty(t *testing.T) {
	cache := openTestCache(t, filepath.Join(t.TempDir(), "servers.db"))

	list, err := cache.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if list != nil {
		t.Errorf("Load() on empty cache = %v, want nil", list)
	}
}

func TestCache_SaveAndLoad(t *testing.T) {
	cache := openTestCache(t, filepath.Join(t.TempDir(), "servers.db"))

	saved := NewServerList([]LogicalServer{
		{ID: "1", Name: "IS#9", ExitCountry: "IS", Load: 42, Tier: 1, Enabled: true, Features: FeatureP2P},
		{ID: "2", Name: "CH#1", ExitCountry: "CH", Enabled: false},
	}, 1700000000)
	if err := cache.Save(saved); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}

	loaded, err := cache.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load() = nil after Save")
	}
	if loaded.UpdatedAt() != saved.UpdatedAt() {
		t.Errorf("UpdatedAt() = %d, want %d", loaded.UpdatedAt(), saved.UpdatedAt())
	}
	if loaded.Len() != saved.Len() {
		t.Fatalf("Len() = %d, want %d", loaded.Len(), saved.Len())
	}

	got, ok := loaded.GetByID("1")
	if !ok {
		t.Fatal("server 1 missing after roundtrip")
	}
	if got != saved.Servers()[0] {
		t.Errorf("server 1 = %+v, want %+v", got, saved.Servers()[0])
	}
}

func TestCache_SaveReplacesPreviousSnapshot(t *testing.T) {
	cache := openTestCache(t, filepath.Join(t.TempDir(), "servers.db"))

	if err := cache.Save(NewServerList([]LogicalServer{{ID: "old"}}, 10)); err != nil {
		t.Fatal(err)
	}
	if err := cache.Save(NewServerList([]LogicalServer{{ID: "new"}}, 20)); err != nil {
		t.Fatal(err)
	}

	loaded, err := cache.Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.UpdatedAt() != 20 || loaded.Len() != 1 {
		t.Fatalf("loaded snapshot = ts %d with %d servers, want ts 20 with 1", loaded.UpdatedAt(), loaded.Len())
	}
	if _, ok := loaded.GetByID("new"); !ok {
		t.Error("replacement snapshot not stored")
	}
}

func TestCache_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.db")

	first := openTestCache(t, path)
	if err := first.Save(NewServerList([]LogicalServer{{ID: "1", Name: "IS#9"}}, 99)); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second := openTestCache(t, path)
	loaded, err := second.Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded == nil || loaded.UpdatedAt() != 99 {
		t.Fatalf("reopened cache returned %v, want snapshot with ts 99", loaded)
	}
}

func TestCache_SaveNilSnapshot(t *testing.T) {
	cache := openTestCache(t, filepath.Join(t.TempDir(), "servers.db"))

	if err := cache.Save(nil); err == nil {
		t.Error("Save(nil) returned no error")
	}
}

package kv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInit_CreatesDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(filepath.Join(tmpDir, "simplecp.db")); err != nil {
		t.Errorf("database file should exist: %v", err)
	}
}

func TestGet_AbsentKey(t *testing.T) {
	store, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer store.Close()

	value, err := store.Get("missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != nil {
		t.Errorf("Get(absent) = %v, want nil", value)
	}
}

func TestPutGetRoundtrip(t *testing.T) {
	store, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer store.Close()

	payload := []byte(`[{"id":"01ABC"}]`)
	if err := store.Put(KeyHistory, payload); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(KeyHistory)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("Get = %q, want %q", got, payload)
	}
}

func TestPut_Replaces(t *testing.T) {
	store, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer store.Close()

	if err := store.Put(KeyFolders, []byte("first")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(KeyFolders, []byte("second")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(KeyFolders)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Get = %q, want %q", got, "second")
	}
}

func TestDelete(t *testing.T) {
	store, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer store.Close()

	if err := store.Put(KeySnippets, []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(KeySnippets); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, err := store.Get(KeySnippets)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Get after Delete = %v, want nil", got)
	}

	// Deleting an absent key is a no-op
	if err := store.Delete(KeySnippets); err != nil {
		t.Errorf("Delete(absent) should not fail: %v", err)
	}
}

func TestInit_Reopen(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := store.Put(KeyHistory, []byte("persisted")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	store.Close()

	reopened, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(KeyHistory)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "persisted" {
		t.Errorf("Get after reopen = %q, want %q", got, "persisted")
	}
}

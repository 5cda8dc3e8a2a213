package trustdb

import (
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAddContainsRemove(t *testing.T) {
	store := openTestStore(t)
	var id [32]byte
	id[0] = 0x42

	found, err := store.Contains(id)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("new store must not already contain the signer")
	}

	if err := store.Add(id, []byte("pubkey-bytes"), "test signer"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	found, err = store.Contains(id)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("Contains() false after Add()")
	}

	removed, err := store.Remove(id)
	if err != nil {
		t.Fatal(err)
	}
	if !removed {
		t.Fatal("Remove() reported nothing removed")
	}

	found, err = store.Contains(id)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("Contains() true after Remove()")
	}
}

func TestRemoveNonExistentIsNoop(t *testing.T) {
	store := openTestStore(t)
	var id [32]byte
	id[0] = 0x99

	removed, err := store.Remove(id)
	if err != nil {
		t.Fatal(err)
	}
	if removed {
		t.Fatal("Remove() reported removal of an entry that was never added")
	}
}

func TestList(t *testing.T) {
	store := openTestStore(t)
	var id1, id2 [32]byte
	id1[0] = 1
	id2[0] = 2

	if err := store.Add(id1, []byte("pk1"), "alice"); err != nil {
		t.Fatal(err)
	}
	if err := store.Add(id2, []byte("pk2"), "bob"); err != nil {
		t.Fatal(err)
	}

	entries, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() returned %d entries, want 2", len(entries))
	}
}

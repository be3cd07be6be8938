package storage

import (
	"errors"
	"testing"
)

func TestMemDBRoundTrip(t *testing.T) {
	db := NewMemDB()
	if _, err := db.Get([]byte("k")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("expected v, got %q", got)
	}
	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("k")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	value := []byte("original")
	if err := db.Put([]byte("k"), value); err != nil {
		t.Fatalf("put: %v", err)
	}
	value[0] = 'X'
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "original" {
		t.Fatalf("stored value aliased caller memory: %q", got)
	}
	got[0] = 'Y'
	again, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(again) != "original" {
		t.Fatalf("returned value aliased stored memory: %q", again)
	}
}

func TestOverlayStagesWrites(t *testing.T) {
	backend := NewMemDB()
	overlay := NewOverlay(backend)

	if err := overlay.Put([]byte("k"), []byte("staged")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := overlay.Get([]byte("k"))
	if err != nil {
		t.Fatalf("overlay get: %v", err)
	}
	if string(got) != "staged" {
		t.Fatalf("expected staged value, got %q", got)
	}
	if _, err := backend.Get([]byte("k")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("backend must not see uncommitted writes, got %v", err)
	}

	if err := overlay.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, err = backend.Get([]byte("k"))
	if err != nil {
		t.Fatalf("backend get after commit: %v", err)
	}
	if string(got) != "staged" {
		t.Fatalf("expected committed value, got %q", got)
	}
}

func TestOverlayShadowsDeletes(t *testing.T) {
	backend := NewMemDB()
	if err := backend.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	overlay := NewOverlay(backend)

	if err := overlay.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := overlay.Get([]byte("k")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("staged delete must hide the key, got %v", err)
	}
	if _, err := backend.Get([]byte("k")); err != nil {
		t.Fatalf("backend must keep the key until commit, got %v", err)
	}

	// A put after a delete resurrects the key.
	if err := overlay.Put([]byte("k"), []byte("new")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := overlay.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "new" {
		t.Fatalf("expected new value, got %q", got)
	}

	if err := overlay.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, err = backend.Get([]byte("k"))
	if err != nil {
		t.Fatalf("backend get: %v", err)
	}
	if string(got) != "new" {
		t.Fatalf("expected new value committed, got %q", got)
	}
}

func TestOverlayDiscard(t *testing.T) {
	backend := NewMemDB()
	if err := backend.Put([]byte("keep"), []byte("v")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	overlay := NewOverlay(backend)
	if err := overlay.Put([]byte("drop"), []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := overlay.Delete([]byte("keep")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	overlay.Discard()

	if _, err := backend.Get([]byte("drop")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("discarded write must not reach the backend, got %v", err)
	}
	if _, err := backend.Get([]byte("keep")); err != nil {
		t.Fatalf("discarded delete must not reach the backend, got %v", err)
	}
	if got, err := overlay.Get([]byte("keep")); err != nil || string(got) != "v" {
		t.Fatalf("overlay must fall through after discard, got %q err %v", got, err)
	}
	if backend.Len() != 1 {
		t.Fatalf("expected a single backend key, got %d", backend.Len())
	}
}

func TestOverlayReadsThrough(t *testing.T) {
	backend := NewMemDB()
	if err := backend.Put([]byte("k"), []byte("base")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	overlay := NewOverlay(backend)
	got, err := overlay.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "base" {
		t.Fatalf("expected read-through, got %q", got)
	}
}

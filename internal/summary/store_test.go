package summary

import (
	"bytes"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "weft.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreSaveLoad(t *testing.T) {
	s := openTestStore(t)
	blob := []byte("snapshot bytes")

	if err := s.Save("doc-1", blob); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load("doc-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Errorf("loaded %q, want %q", got, blob)
	}

	// Saving again replaces the previous snapshot.
	if err := s.Save("doc-1", []byte("v2")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err = s.Load("doc-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("loaded %q, want %q", got, "v2")
	}
}

func TestStoreLoadMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Load("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStoreKeys(t *testing.T) {
	s := openTestStore(t)
	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("fresh store keys = %v, want none", keys)
	}

	for _, k := range []string{"beta", "alpha"} {
		if err := s.Save(k, []byte(k)); err != nil {
			t.Fatalf("save %s: %v", k, err)
		}
	}
	keys, err = s.Keys()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"alpha", "beta"}) {
		t.Errorf("keys = %v, want [alpha beta]", keys)
	}
}

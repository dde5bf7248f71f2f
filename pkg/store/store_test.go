package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ferrite-vm/ferrite/pkg/vm"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "programs.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var sampleProgram = vm.Program{
	vm.Load(1, 5),
	vm.Load(2, 10),
	vm.Add(3, 1, 2),
	vm.Halt(),
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	hash, err := s.Put("sample", sampleProgram)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if hash != Hash(sampleProgram) {
		t.Errorf("Put hash = %s, want %s", hash, Hash(sampleProgram))
	}

	got, err := s.Get(hash)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got) != len(sampleProgram) {
		t.Fatalf("got %d instructions, want %d", len(got), len(sampleProgram))
	}
	for i := range sampleProgram {
		if got[i] != sampleProgram[i] {
			t.Errorf("instruction %d: got %v, want %v", i, got[i], sampleProgram[i])
		}
	}
}

func TestGetByName(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Put("sample", sampleProgram); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetByName("sample")
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}
	if got[0] != sampleProgram[0] {
		t.Errorf("got %v, want %v", got[0], sampleProgram[0])
	}
	if _, err := s.GetByName("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByName(missing) = %v, want ErrNotFound", err)
	}
}

func TestPutIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	h1, err := s.Put("first", sampleProgram)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := s.Put("renamed", sampleProgram)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("same content produced different hashes: %s vs %s", h1, h2)
	}
	entries, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("store holds %d entries, want 1", len(entries))
	}
	if entries[0].Name != "renamed" {
		t.Errorf("name = %q, want %q (re-put relabels)", entries[0].Name, "renamed")
	}
}

func TestList(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Put("a", sampleProgram); err != nil {
		t.Fatal(err)
	}
	other := vm.Program{vm.Halt()}
	if _, err := s.Put("b", other); err != nil {
		t.Fatal(err)
	}
	entries, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Hash == "" || e.Name == "" || e.Instructions == 0 || e.CreatedAt.IsZero() {
			t.Errorf("incomplete entry: %+v", e)
		}
	}
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	hash, err := s.Put("sample", sampleProgram)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(hash); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(hash); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete(hash); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete = %v, want ErrNotFound", err)
	}
}

func TestGetUnknownHash(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get("deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
}

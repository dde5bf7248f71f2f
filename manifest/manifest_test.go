package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "demo"
version = "0.1.0"
entry = "programs/main.fasm"

[machine]
memory-size = 131072
hot-threshold = 500

[trace]
enabled = true
profile = true

[store]
path = "db/programs.db"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "demo" {
		t.Errorf("project name = %q, want demo", m.Project.Name)
	}
	if m.Machine.MemorySize != 131072 {
		t.Errorf("memory size = %d, want 131072", m.Machine.MemorySize)
	}
	if m.Machine.HotThreshold != 500 {
		t.Errorf("hot threshold = %d, want 500", m.Machine.HotThreshold)
	}
	if !m.Trace.Enabled || !m.Trace.Profile {
		t.Errorf("trace config = %+v, want both enabled", m.Trace)
	}
	if want := filepath.Join(m.Dir, "db", "programs.db"); m.StorePath() != want {
		t.Errorf("store path = %q, want %q", m.StorePath(), want)
	}
	if want := filepath.Join(m.Dir, "programs", "main.fasm"); m.EntryPath() != want {
		t.Errorf("entry path = %q, want %q", m.EntryPath(), want)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "bare"
`)
	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Machine.MemorySize != 0 {
		t.Errorf("memory size = %d, want 0 (engine applies its own default)", m.Machine.MemorySize)
	}
	if want := filepath.Join(m.Dir, ".ferrite", "programs.db"); m.StorePath() != want {
		t.Errorf("store path = %q, want %q", m.StorePath(), want)
	}
	if m.EntryPath() != "" {
		t.Errorf("entry path = %q, want empty", m.EntryPath())
	}
}

func TestLoadRejectsNegativeMemory(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[machine]
memory-size = -1
`)
	if _, err := Load(dir); err == nil {
		t.Fatal("Load accepted a negative memory size")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("Load succeeded with no manifest present")
	}
}

func TestLoadMalformedToml(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `[project`)
	if _, err := Load(dir); err == nil {
		t.Fatal("Load accepted malformed TOML")
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[project]
name = "nested"
`)
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad did not find the manifest")
	}
	if m.Project.Name != "nested" {
		t.Errorf("project name = %q, want nested", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m != nil {
		t.Errorf("FindAndLoad returned %+v, want nil", m)
	}
}

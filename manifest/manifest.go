// Package manifest handles ferrite.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file name looked up in project directories.
const FileName = "ferrite.toml"

// Manifest represents a ferrite.toml project configuration.
type Manifest struct {
	Project Project       `toml:"project"`
	Machine MachineConfig `toml:"machine"`
	Trace   TraceConfig   `toml:"trace"`
	Store   StoreConfig   `toml:"store"`

	// Dir is the directory containing the ferrite.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Entry   string `toml:"entry"` // default assembly source to run
}

// MachineConfig configures the execution engine.
type MachineConfig struct {
	MemorySize   int `toml:"memory-size"`
	HotThreshold int `toml:"hot-threshold"`
}

// TraceConfig configures execution observers.
type TraceConfig struct {
	Enabled bool `toml:"enabled"`
	Profile bool `toml:"profile"`
}

// StoreConfig configures the program library.
type StoreConfig struct {
	Path string `toml:"path"`
}

// Load parses a ferrite.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a ferrite.toml file, then
// loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) validate() error {
	if m.Machine.MemorySize < 0 {
		return fmt.Errorf("machine.memory-size must not be negative (got %d)", m.Machine.MemorySize)
	}
	if m.Machine.HotThreshold < 0 {
		return fmt.Errorf("machine.hot-threshold must not be negative (got %d)", m.Machine.HotThreshold)
	}
	return nil
}

func (m *Manifest) applyDefaults() {
	if m.Store.Path == "" {
		m.Store.Path = filepath.Join(".ferrite", "programs.db")
	}
}

// StorePath returns the absolute path of the program library database.
func (m *Manifest) StorePath() string {
	if filepath.IsAbs(m.Store.Path) {
		return m.Store.Path
	}
	return filepath.Join(m.Dir, m.Store.Path)
}

// EntryPath returns the absolute path of the default entry source, or ""
// when no entry is configured.
func (m *Manifest) EntryPath() string {
	if m.Project.Entry == "" {
		return ""
	}
	if filepath.IsAbs(m.Project.Entry) {
		return m.Project.Entry
	}
	return filepath.Join(m.Dir, m.Project.Entry)
}

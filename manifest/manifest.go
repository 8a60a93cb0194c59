// Package manifest handles baranium.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project file.
const FileName = "baranium.toml"

// SourceExt is the extension of source files found in source directories.
const SourceExt = ".bar"

// Manifest represents a baranium.toml project configuration.
type Manifest struct {
	Project      Project               `toml:"project"`
	Build        Build                 `toml:"build"`
	Run          Run                   `toml:"run"`
	Dependencies map[string]Dependency `toml:"dependencies"`

	// Dir is the directory containing the baranium.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Build configures compilation.
type Build struct {
	Sources   []string `toml:"sources"` // files, or directories scanned for *.bar
	Include   []string `toml:"include"`
	Output    string   `toml:"output"`
	Strict    bool     `toml:"strict"`
	Library   bool     `toml:"library"`
	Verbosity int      `toml:"verbosity"`
}

// Run configures barvm.
type Run struct {
	Entry  string `toml:"entry"`
	Budget int    `toml:"budget"`
}

// Dependency is another Baranium project whose include directories become
// part of the search path.
type Dependency struct {
	Git  string `toml:"git"`
	Tag  string `toml:"tag"`
	Path string `toml:"path"`
}

// Load parses a baranium.toml file from the given directory.
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

	// Defaults
	if len(m.Build.Sources) == 0 {
		m.Build.Sources = []string{"src"}
	}
	if m.Build.Output == "" {
		name := m.Project.Name
		if name == "" {
			name = filepath.Base(m.Dir)
		}
		ext := ".bin"
		if m.Build.Library {
			ext = ".lib"
		}
		m.Build.Output = name + ext
	}
	if m.Run.Entry == "" {
		m.Run.Entry = "main"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a baranium.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
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

func (m *Manifest) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// SourceFiles expands the configured sources into a sorted list of files.
// Directories contribute their *.bar files, recursively.
func (m *Manifest) SourceFiles() ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, s := range m.Build.Sources {
		p := m.abs(s)
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", s, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), SourceExt) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", s, err)
		}
		sort.Strings(found)
		for _, f := range found {
			add(f)
		}
	}
	return files, nil
}

// IncludePaths returns absolute paths for the configured include directories.
func (m *Manifest) IncludePaths() []string {
	var paths []string
	for _, d := range m.Build.Include {
		paths = append(paths, m.abs(d))
	}
	return paths
}

// OutputPath returns the absolute output path.
func (m *Manifest) OutputPath() string {
	return m.abs(m.Build.Output)
}

// DepsDir returns the path to the .baranium/deps directory.
func (m *Manifest) DepsDir() string {
	return filepath.Join(m.Dir, ".baranium", "deps")
}

// LockFilePath returns the path to .baranium/lock.toml.
func (m *Manifest) LockFilePath() string {
	return filepath.Join(m.Dir, ".baranium", "lock.toml")
}

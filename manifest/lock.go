package manifest

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// LockFile records the exact state each dependency was resolved to.
type LockFile struct {
	Deps []LockedDep `toml:"dep"`
}

// LockedDep is one entry of the lock file.
type LockedDep struct {
	Name   string `toml:"name"`
	Git    string `toml:"git,omitempty"`
	Tag    string `toml:"tag,omitempty"`
	Commit string `toml:"commit,omitempty"`
	Path   string `toml:"path,omitempty"`
}

// ReadLock reads a lock file. A missing file yields nil, nil.
func ReadLock(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var lf LockFile
	if err := toml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return &lf, nil
}

// WriteLock writes a lock file.
func WriteLock(path string, lf *LockFile) error {
	var buf bytes.Buffer
	buf.WriteString("# Generated by barc. Do not edit.\n\n")
	if err := toml.NewEncoder(&buf).Encode(lf); err != nil {
		return fmt.Errorf("encoding lock file: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// FindLockedDep returns the entry for name, or nil. It is safe to call on a
// nil lock file.
func (lf *LockFile) FindLockedDep(name string) *LockedDep {
	if lf == nil {
		return nil
	}
	for i := range lf.Deps {
		if lf.Deps[i].Name == name {
			return &lf.Deps[i]
		}
	}
	return nil
}

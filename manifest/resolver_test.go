package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePathDependencies(t *testing.T) {
	root := t.TempDir()

	// app -> gfx -> math; gfx has an include dir, math has none
	writeFile(t, filepath.Join(root, "math", "vec.bar"), "")
	writeFile(t, filepath.Join(root, "math", FileName), "[project]\nname = \"math\"\n")
	writeFile(t, filepath.Join(root, "gfx", "include", "draw.bar"), "")
	writeFile(t, filepath.Join(root, "gfx", FileName), `
[project]
name = "gfx"
[build]
include = ["include"]
[dependencies]
math = { path = "../math" }
`)
	writeFile(t, filepath.Join(root, "app", FileName), `
[project]
name = "app"
[dependencies]
gfx = { path = "../gfx" }
`)

	m, err := Load(filepath.Join(root, "app"))
	if err != nil {
		t.Fatal(err)
	}
	deps, err := NewResolver(m).Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(deps) != 2 {
		t.Fatalf("resolved %d deps, want 2", len(deps))
	}
	if deps[0].Name != "math" || deps[1].Name != "gfx" {
		t.Errorf("order = %s, %s; want math, gfx", deps[0].Name, deps[1].Name)
	}

	paths, err := NewResolver(m).IncludePaths()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(root, "math"), filepath.Join(root, "gfx", "include")}
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Errorf("IncludePaths = %v, want %v", paths, want)
	}

	lf, err := ReadLock(m.LockFilePath())
	if err != nil || lf == nil {
		t.Fatalf("lock file not written: %v", err)
	}
	if d := lf.FindLockedDep("gfx"); d == nil || d.Path != "../gfx" {
		t.Errorf("locked gfx = %v", d)
	}
}

func TestResolveNoDependencies(t *testing.T) {
	dir := t.TempDir()
	m := &Manifest{Dir: dir}
	deps, err := NewResolver(m).Resolve()
	if err != nil || deps != nil {
		t.Errorf("Resolve = %v, %v; want nil, nil", deps, err)
	}
	if _, err := os.Stat(m.LockFilePath()); !os.IsNotExist(err) {
		t.Error("lock file written without dependencies")
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		dep  Dependency
	}{
		{"missing path", Dependency{Path: "does-not-exist"}},
		{"no source", Dependency{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := &Manifest{Dir: t.TempDir(), Dependencies: map[string]Dependency{"x": tc.dep}}
			if _, err := NewResolver(m).Resolve(); err == nil {
				t.Error("Resolve succeeded")
			}
		})
	}
}

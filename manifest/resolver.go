package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("baranium.manifest")

// ResolvedDep represents a dependency that has been resolved to a local path.
type ResolvedDep struct {
	Name      string    // dependency name
	LocalPath string    // local filesystem path
	Manifest  *Manifest // the dependency's own manifest (may be nil)
}

// IncludePaths returns the directories the dependency contributes to the
// include search path: its configured include directories, or its root
// when it has none.
func (d ResolvedDep) IncludePaths() []string {
	if d.Manifest != nil && len(d.Manifest.Build.Include) > 0 {
		return d.Manifest.IncludePaths()
	}
	return []string{d.LocalPath}
}

// Resolver manages dependency resolution.
type Resolver struct {
	manifest *Manifest
	lock     *LockFile
}

// NewResolver creates a new dependency resolver.
func NewResolver(m *Manifest) *Resolver {
	return &Resolver{manifest: m}
}

// Resolve resolves all dependencies and returns them in load order
// (dependencies before dependents).
func (r *Resolver) Resolve() ([]ResolvedDep, error) {
	if len(r.manifest.Dependencies) == 0 {
		return nil, nil
	}

	lock, err := ReadLock(r.manifest.LockFilePath())
	if err != nil {
		return nil, fmt.Errorf("reading lock file: %w", err)
	}
	r.lock = lock

	resolved := make(map[string]*ResolvedDep)
	order, err := r.resolveAll(r.manifest, r.manifest.Dependencies, resolved)
	if err != nil {
		return nil, err
	}

	if err := r.writeLock(resolved); err != nil {
		return nil, fmt.Errorf("writing lock file: %w", err)
	}
	return order, nil
}

// IncludePaths resolves the dependencies and returns their include
// directories in load order.
func (r *Resolver) IncludePaths() ([]string, error) {
	deps, err := r.Resolve()
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, d := range deps {
		paths = append(paths, d.IncludePaths()...)
	}
	return paths, nil
}

// resolveAll resolves the dependencies declared by base recursively, in
// name order.
func (r *Resolver) resolveAll(base *Manifest, deps map[string]Dependency, resolved map[string]*ResolvedDep) ([]ResolvedDep, error) {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	var order []ResolvedDep
	for _, name := range names {
		if _, ok := resolved[name]; ok {
			continue
		}

		rd, err := r.resolveOne(base, name, deps[name])
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", name, err)
		}
		resolved[name] = rd

		if rd.Manifest != nil && len(rd.Manifest.Dependencies) > 0 {
			transitive, err := r.resolveAll(rd.Manifest, rd.Manifest.Dependencies, resolved)
			if err != nil {
				return nil, err
			}
			order = append(order, transitive...)
		}
		order = append(order, *rd)
	}
	return order, nil
}

// resolveOne resolves a single dependency. Paths are relative to the
// manifest that declares them.
func (r *Resolver) resolveOne(base *Manifest, name string, dep Dependency) (*ResolvedDep, error) {
	if dep.Path != "" {
		localPath, err := filepath.Abs(base.abs(dep.Path))
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", dep.Path, err)
		}
		if _, err := os.Stat(localPath); err != nil {
			return nil, fmt.Errorf("local dependency %q not found at %s: %w", name, localPath, err)
		}

		depManifest, _ := Load(localPath)
		return &ResolvedDep{Name: name, LocalPath: localPath, Manifest: depManifest}, nil
	}

	if dep.Git != "" {
		if err := os.MkdirAll(r.manifest.DepsDir(), 0755); err != nil {
			return nil, fmt.Errorf("creating deps dir: %w", err)
		}
		depDir := filepath.Join(r.manifest.DepsDir(), name)

		if _, err := os.Stat(depDir); os.IsNotExist(err) {
			log.Infof("cloning %s from %s", name, dep.Git)
			if err := gitClone(dep.Git, depDir); err != nil {
				return nil, err
			}
		} else if locked := r.lock.FindLockedDep(name); locked == nil || locked.Tag != dep.Tag {
			log.Infof("fetching %s", name)
			if err := gitFetch(depDir); err != nil {
				return nil, err
			}
		}

		if dep.Tag != "" {
			if err := gitCheckout(depDir, dep.Tag); err != nil {
				return nil, err
			}
		}

		depManifest, _ := Load(depDir)
		return &ResolvedDep{Name: name, LocalPath: depDir, Manifest: depManifest}, nil
	}

	return nil, fmt.Errorf("dependency %q has no git or path specified", name)
}

// writeLock writes the resolved dependencies to the lock file.
func (r *Resolver) writeLock(resolved map[string]*ResolvedDep) error {
	lf := &LockFile{}

	names := make([]string, 0, len(resolved))
	for name := range resolved {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rd := resolved[name]
		ld := LockedDep{Name: name}

		dep := r.manifest.Dependencies[name]
		switch {
		case dep.Git != "":
			ld.Git = dep.Git
			ld.Tag = dep.Tag
			if commit, err := gitCurrentCommit(rd.LocalPath); err == nil {
				ld.Commit = commit
			}
		case dep.Path != "":
			ld.Path = dep.Path
		default:
			// transitive dependency
			ld.Path = rd.LocalPath
		}
		lf.Deps = append(lf.Deps, ld)
	}

	if err := os.MkdirAll(filepath.Dir(r.manifest.LockFilePath()), 0755); err != nil {
		return err
	}
	return WriteLock(r.manifest.LockFilePath(), lf)
}

package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("slotvm.manifest")

// ResolvedDep is a dependency available on the local filesystem.
type ResolvedDep struct {
	Name      string    // dependency name
	LocalPath string    // local filesystem path
	Module    string    // module name its code runs under
	Manifest  *Manifest // the dependency's own manifest (may be nil)

	decl    Dependency
	declDir string // directory of the declaring manifest
	commit  string
}

// RunPaths returns the files the dependency contributes, or nil when it
// has no manifest.
func (rd *ResolvedDep) RunPaths() []string {
	if rd.Manifest == nil {
		return nil
	}
	return rd.Manifest.RunPaths()
}

// Resolver fetches the dependencies of a project and records them in its
// lock file.
type Resolver struct {
	manifest *Manifest
	lock     *LockFile
	resolved map[string]*ResolvedDep
	order    []ResolvedDep
}

// NewResolver creates a resolver for the project described by m.
func NewResolver(m *Manifest) *Resolver {
	return &Resolver{manifest: m}
}

// Resolve resolves all dependencies, direct and transitive, and returns
// them in load order: every dependency comes after the ones it declares.
// Siblings are ordered by name.
func (r *Resolver) Resolve() ([]ResolvedDep, error) {
	lock, err := ReadLock(r.manifest.LockFilePath())
	if err != nil {
		return nil, fmt.Errorf("reading lock file: %w", err)
	}
	r.lock = lock
	r.resolved = make(map[string]*ResolvedDep)
	r.order = nil

	if err := r.resolveAll(r.manifest); err != nil {
		return nil, err
	}
	if err := r.writeLock(); err != nil {
		return nil, fmt.Errorf("writing lock file: %w", err)
	}
	return r.order, nil
}

// resolveAll resolves the dependencies declared by from.
func (r *Resolver) resolveAll(from *Manifest) error {
	names := make([]string, 0, len(from.Dependencies))
	for name := range from.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		dep := from.Dependencies[name]
		if prev, ok := r.resolved[name]; ok {
			if !sameSource(prev.decl, prev.declDir, dep, from.Dir) {
				return fmt.Errorf("dependency %q is declared with different sources", name)
			}
			continue
		}

		var rd *ResolvedDep
		var err error
		switch {
		case dep.Path != "":
			rd, err = r.resolvePath(name, dep, from)
		case dep.Git != "":
			rd, err = r.resolveGit(name, dep)
		default:
			err = fmt.Errorf("dependency %q has no git or path specified", name)
		}
		if err != nil {
			return fmt.Errorf("resolving %s: %w", name, err)
		}
		if rd.Module, err = resolveModule(name, dep, rd.Manifest); err != nil {
			return err
		}
		r.resolved[name] = rd

		if rd.Manifest != nil {
			if err := r.resolveAll(rd.Manifest); err != nil {
				return err
			}
		}
		r.order = append(r.order, *rd)
	}
	return nil
}

// sameSource reports whether two declarations of one dependency name
// refer to the same code. Path declarations are compared after making
// them absolute against their declaring directories.
func sameSource(a Dependency, aDir string, b Dependency, bDir string) bool {
	if a.Git != "" || b.Git != "" {
		return a.Git == b.Git && a.Tag == b.Tag
	}
	abs := func(p, dir string) string {
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		return filepath.Clean(p)
	}
	return abs(a.Path, aDir) == abs(b.Path, bDir)
}

// resolveModule picks the module name a dependency's code runs under:
//  1. the consumer's override (module in [dependencies])
//  2. the producer's [project] module, unless it is the default
//  3. the dependency name in snake case
func resolveModule(name string, dep Dependency, depManifest *Manifest) (string, error) {
	var mod string
	switch {
	case dep.Module != "":
		mod = dep.Module
	case depManifest != nil && depManifest.Project.Module != "" && depManifest.Project.Module != "__main__":
		mod = depManifest.Project.Module
	default:
		mod = ToModuleName(name)
	}

	if !IsModuleName(mod) {
		return "", fmt.Errorf("dependency %q resolves to invalid module name %q", name, mod)
	}
	if IsReservedModule(mod) {
		return "", fmt.Errorf("dependency %q resolves to reserved module name %q (a builtin name); add module = \"...\" override in [dependencies]", name, mod)
	}
	return mod, nil
}

// resolvePath resolves a dependency on a local directory, relative to the
// manifest that declares it.
func (r *Resolver) resolvePath(name string, dep Dependency, from *Manifest) (*ResolvedDep, error) {
	localPath := dep.Path
	if !filepath.IsAbs(localPath) {
		localPath = filepath.Join(from.Dir, localPath)
	}
	localPath, err := filepath.Abs(localPath)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", dep.Path, err)
	}
	if _, err := os.Stat(localPath); err != nil {
		return nil, fmt.Errorf("local dependency %q not found at %s: %w", name, localPath, err)
	}

	depManifest, _ := Load(localPath)
	return &ResolvedDep{Name: name, LocalPath: localPath, Manifest: depManifest, decl: dep, declDir: from.Dir}, nil
}

// resolveGit clones or updates a git dependency under .slotvm/deps. A
// dependency whose tag matches the lock file is checked out at the locked
// commit.
func (r *Resolver) resolveGit(name string, dep Dependency) (*ResolvedDep, error) {
	depDir := filepath.Join(r.manifest.DepsDir(), name)
	if err := os.MkdirAll(r.manifest.DepsDir(), 0755); err != nil {
		return nil, fmt.Errorf("creating deps dir: %w", err)
	}

	var repo gitRepo
	fresh := false
	if _, err := os.Stat(depDir); os.IsNotExist(err) {
		log.Infof("cloning %s from %s", name, dep.Git)
		if repo, err = cloneRepo(dep.Git, depDir); err != nil {
			return nil, err
		}
		fresh = true
	} else {
		repo = gitRepo{dir: depDir}
		origin, err := repo.origin()
		if err != nil {
			return nil, err
		}
		if origin != dep.Git {
			return nil, fmt.Errorf("%s was cloned from %s but is now declared as %s; remove it to clone again", depDir, origin, dep.Git)
		}
	}

	ref := dep.Tag
	if locked := r.lock.FindLockedDep(name); locked != nil && locked.Git == dep.Git && locked.Tag == dep.Tag && locked.Commit != "" {
		ref = locked.Commit
	}
	if ref != "" && !fresh && repo.resolve(ref) == "" {
		log.Infof("fetching %s", name)
		if err := repo.fetch(); err != nil {
			return nil, err
		}
	}
	if ref != "" {
		clean, err := repo.clean()
		if err != nil {
			return nil, err
		}
		if !clean {
			return nil, fmt.Errorf("dependency %q has local changes in %s", name, depDir)
		}
		if err := repo.checkout(ref); err != nil {
			return nil, err
		}
	}

	commit, err := repo.head()
	if err != nil {
		return nil, err
	}
	depManifest, _ := Load(depDir)
	return &ResolvedDep{Name: name, LocalPath: depDir, Manifest: depManifest, decl: dep, commit: commit}, nil
}

// writeLock records the resolved dependencies in .slotvm/lock.toml.
func (r *Resolver) writeLock() error {
	lf := &LockFile{}
	for _, rd := range r.order {
		ld := LockedDep{Name: rd.Name}
		if rd.decl.Git != "" {
			ld.Git = rd.decl.Git
			ld.Tag = rd.decl.Tag
			ld.Commit = rd.commit
		} else {
			ld.Path = rd.decl.Path
		}
		lf.Deps = append(lf.Deps, ld)
	}

	if err := os.MkdirAll(filepath.Dir(r.manifest.LockFilePath()), 0755); err != nil {
		return err
	}
	return WriteLock(r.manifest.LockFilePath(), lf)
}

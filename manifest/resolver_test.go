package manifest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveModule(t *testing.T) {
	tests := []struct {
		name        string
		depName     string
		dep         Dependency
		depManifest *Manifest
		wantModule  string
		wantErr     bool
	}{
		{
			name:    "consumer override wins",
			depName: "numbers",
			dep:     Dependency{Path: "../n", Module: "custom"},
			depManifest: &Manifest{
				Project: Project{Module: "numbers_lib"},
			},
			wantModule: "custom",
		},
		{
			name:    "producer module when no consumer override",
			depName: "numbers",
			dep:     Dependency{Path: "../n"},
			depManifest: &Manifest{
				Project: Project{Module: "numbers_lib"},
			},
			wantModule: "numbers_lib",
		},
		{
			name:        "snake case fallback when no manifest",
			depName:     "my-lib",
			dep:         Dependency{Path: "../my-lib"},
			depManifest: nil,
			wantModule:  "my_lib",
		},
		{
			name:    "fallback when producer keeps the main module",
			depName: "my-lib",
			dep:     Dependency{Path: "../my-lib"},
			depManifest: &Manifest{
				Project: Project{Name: "my-lib", Module: "__main__"},
			},
			wantModule: "my_lib",
		},
		{
			name:        "reserved module rejected",
			depName:     "printing",
			dep:         Dependency{Path: "../p", Module: "print"},
			depManifest: nil,
			wantErr:     true,
		},
		{
			name:        "reserved module via fallback",
			depName:     "len",
			dep:         Dependency{Path: "../len"},
			depManifest: nil,
			wantErr:     true,
		},
		{
			name:        "invalid module name rejected",
			depName:     "x",
			dep:         Dependency{Path: "../x", Module: "not-valid"},
			depManifest: nil,
			wantErr:     true,
		},
		{
			name:        "dotted with non-reserved root is OK",
			depName:     "tp",
			dep:         Dependency{Path: "../tp", Module: "vendor.len"},
			depManifest: nil,
			wantModule:  "vendor.len",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mod, err := resolveModule(tc.depName, tc.dep, tc.depManifest)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got module %q", mod)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if mod != tc.wantModule {
				t.Errorf("module = %q, want %q", mod, tc.wantModule)
			}
		})
	}
}

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestResolvePathDependencies(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "app")
	writeManifest(t, app, `
[project]
name = "app"

[dependencies]
helpers = { path = "../helpers" }
`)
	// helpers depends on base, declared relative to helpers itself.
	writeManifest(t, filepath.Join(root, "helpers"), `
[project]
name = "helpers"

[run]
files = ["util.yaml"]

[dependencies]
base = { path = "libs/base" }
`)
	writeManifest(t, filepath.Join(root, "helpers", "libs", "base"), `
[project]
name = "base"
module = "base_lib"
`)

	m, err := Load(app)
	if err != nil {
		t.Fatal(err)
	}
	deps, err := NewResolver(m).Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(deps) != 2 {
		t.Fatalf("got %d deps, want 2", len(deps))
	}
	if deps[0].Name != "base" || deps[0].Module != "base_lib" {
		t.Errorf("deps[0] = %s/%s, want base/base_lib first", deps[0].Name, deps[0].Module)
	}
	if deps[1].Name != "helpers" || deps[1].Module != "helpers" {
		t.Errorf("deps[1] = %s/%s", deps[1].Name, deps[1].Module)
	}
	if got := deps[1].RunPaths(); len(got) != 1 || got[0] != filepath.Join(root, "helpers", "util.yaml") {
		t.Errorf("RunPaths = %v", got)
	}

	lock, err := ReadLock(m.LockFilePath())
	if err != nil || lock == nil {
		t.Fatalf("ReadLock: %v, %v", lock, err)
	}
	if dep := lock.FindLockedDep("base"); dep == nil || dep.Path != "libs/base" {
		t.Errorf("locked base = %+v", dep)
	}
}

func TestResolveMissingDependency(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[dependencies]
ghost = { path = "../ghost" }
`)
	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewResolver(m).Resolve(); err == nil {
		t.Error("expected error for a missing path dependency")
	}

	writeManifest(t, dir, `
[dependencies]
empty = {}
`)
	m, _ = Load(dir)
	if _, err := NewResolver(m).Resolve(); err == nil {
		t.Error("expected error for a dependency without git or path")
	}
}

func TestManifestModuleField(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "test"

[dependencies]
numbers = { path = "../n", module = "vendor.numbers" }
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	dep, ok := m.Dependencies["numbers"]
	if !ok {
		t.Fatal("missing numbers dependency")
	}
	if dep.Module != "vendor.numbers" {
		t.Errorf("dep.Module = %q, want %q", dep.Module, "vendor.numbers")
	}
}

func TestSameSource(t *testing.T) {
	tests := []struct {
		name       string
		a, b       Dependency
		aDir, bDir string
		want       bool
	}{
		{"same relative path", Dependency{Path: "../lib"}, Dependency{Path: "lib"}, "/w/app", "/w", true},
		{"different paths", Dependency{Path: "../lib"}, Dependency{Path: "lib"}, "/w/app", "/w/other", false},
		{"absolute path", Dependency{Path: "/opt/lib"}, Dependency{Path: "../../opt/lib"}, "/w", "/w/app", true},
		{"same git tag", Dependency{Git: "u", Tag: "v1"}, Dependency{Git: "u", Tag: "v1"}, "/a", "/b", true},
		{"different tag", Dependency{Git: "u", Tag: "v1"}, Dependency{Git: "u", Tag: "v2"}, "/a", "/a", false},
		{"git against path", Dependency{Git: "u"}, Dependency{Path: "u"}, "/a", "/a", false},
	}
	for _, tc := range tests {
		if got := sameSource(tc.a, tc.aDir, tc.b, tc.bDir); got != tc.want {
			t.Errorf("%s: sameSource = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestResolveConflictingSources(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "app")
	writeManifest(t, app, `
[dependencies]
a = { path = "../a" }
shared = { path = "../shared-1" }
`)
	writeManifest(t, filepath.Join(root, "a"), `
[dependencies]
shared = { path = "../shared-2" }
`)
	writeManifest(t, filepath.Join(root, "shared-1"), "")
	writeManifest(t, filepath.Join(root, "shared-2"), "")

	m, err := Load(app)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewResolver(m).Resolve()
	if err == nil || !strings.Contains(err.Error(), "different sources") {
		t.Errorf("Resolve error = %v, want conflicting sources", err)
	}
}

func TestResolveDiamond(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "app")
	writeManifest(t, app, `
[dependencies]
left = { path = "../left" }
right = { path = "../right" }
`)
	writeManifest(t, filepath.Join(root, "left"), "[dependencies]\nbase = { path = \"../base\" }\n")
	writeManifest(t, filepath.Join(root, "right"), "[dependencies]\nbase = { path = \"../base\" }\n")
	writeManifest(t, filepath.Join(root, "base"), "")

	m, err := Load(app)
	if err != nil {
		t.Fatal(err)
	}
	deps, err := NewResolver(m).Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	var names []string
	for _, d := range deps {
		names = append(names, d.Name)
	}
	if got := strings.Join(names, " "); got != "base left right" {
		t.Errorf("load order = %q, want %q", got, "base left right")
	}
}

func gitOrSkip(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	args = append([]string{"-c", "user.name=test", "-c", "user.email=test@example.com", "-c", "commit.gpgsign=false"}, args...)
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

func TestResolveGitDependency(t *testing.T) {
	gitOrSkip(t)
	root := t.TempDir()
	upstream := filepath.Join(root, "upstream")
	writeManifest(t, upstream, "[project]\nname = \"numbers\"\nmodule = \"numbers_lib\"\n")
	runGit(t, upstream, "init", "--quiet")
	runGit(t, upstream, "add", ".")
	runGit(t, upstream, "commit", "--quiet", "-m", "initial")
	runGit(t, upstream, "tag", "v1.0.0")

	app := filepath.Join(root, "app")
	writeManifest(t, app, `
[dependencies]
numbers = { git = "`+upstream+`", tag = "v1.0.0" }
`)
	m, err := Load(app)
	if err != nil {
		t.Fatal(err)
	}
	deps, err := NewResolver(m).Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(deps) != 1 || deps[0].Module != "numbers_lib" {
		t.Fatalf("deps = %+v", deps)
	}
	if want := filepath.Join(m.DepsDir(), "numbers"); deps[0].LocalPath != want {
		t.Errorf("LocalPath = %q, want %q", deps[0].LocalPath, want)
	}

	lock, err := ReadLock(m.LockFilePath())
	if err != nil {
		t.Fatal(err)
	}
	locked := lock.FindLockedDep("numbers")
	if locked == nil || len(locked.Commit) != 40 || locked.Tag != "v1.0.0" {
		t.Fatalf("locked = %+v", locked)
	}

	// A second resolve reuses the clone at the locked commit.
	if _, err := NewResolver(m).Resolve(); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}

	// Local edits in the clone block a checkout.
	if err := os.WriteFile(filepath.Join(deps[0].LocalPath, "edit.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewResolver(m).Resolve(); err == nil || !strings.Contains(err.Error(), "local changes") {
		t.Errorf("Resolve with local changes: %v", err)
	}
}

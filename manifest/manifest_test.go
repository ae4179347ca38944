package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	// Create a temporary directory with a slotvm.toml
	dir := t.TempDir()
	tomlContent := `
[project]
name = "test-app"
module = "test_app"
version = "0.1.0"

[run]
entry = "main.yaml"
files = ["worker.toml", "/abs/other.cbor"]

[engine]
recursion-limit = 250
trace = true

[cache]
path = "build/code.db"

[log]
verbosity = 2
file = "slotvm.log"

[dependencies]
helper = { path = "../helper" }
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "test-app" {
		t.Errorf("project name = %q, want test-app", m.Project.Name)
	}
	if m.Project.Module != "test_app" {
		t.Errorf("project module = %q, want test_app", m.Project.Module)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if m.Engine.RecursionLimit != 250 || !m.Engine.Trace {
		t.Errorf("engine = %+v", m.Engine)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", m.Log.Verbosity)
	}
	if len(m.Dependencies) != 1 {
		t.Errorf("dependencies count = %d, want 1", len(m.Dependencies))
	}
	if dep, ok := m.Dependencies["helper"]; !ok || dep.Path != "../helper" {
		t.Errorf("helper dep = %v, want path ../helper", m.Dependencies["helper"])
	}

	paths := m.RunPaths()
	want := []string{filepath.Join(m.Dir, "main.yaml"), filepath.Join(m.Dir, "worker.toml"), "/abs/other.cbor"}
	if len(paths) != len(want) {
		t.Fatalf("RunPaths = %v", paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("RunPaths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
	if got := m.CachePath(); got != filepath.Join(m.Dir, "build", "code.db") {
		t.Errorf("CachePath = %q", got)
	}
	if got := m.LogPath(); got != filepath.Join(m.Dir, "slotvm.log") {
		t.Errorf("LogPath = %q", got)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "minimal"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Module != "__main__" {
		t.Errorf("default module = %q, want __main__", m.Project.Module)
	}
	if got := m.CachePath(); got != filepath.Join(m.Dir, ".slotvm", "cache.db") {
		t.Errorf("default CachePath = %q", got)
	}
	if m.LogPath() != "" {
		t.Errorf("default LogPath = %q, want empty", m.LogPath())
	}
	if len(m.RunPaths()) != 0 {
		t.Errorf("default RunPaths = %v", m.RunPaths())
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := map[string]string{
		"syntax":           "[project\nname = 1",
		"negative limit":   "[engine]\nrecursion-limit = -1\n",
		"wrong field type": "[engine]\ntrace = \"yes\"\n",
	}
	for name, content := range tests {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(dir); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestCacheDisabled(t *testing.T) {
	m := &Manifest{Dir: "/app", Cache: Cache{Path: "c.db", Disabled: true}}
	if m.CachePath() != "" {
		t.Errorf("CachePath = %q, want empty", m.CachePath())
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	tomlContent := `[project]
name = "found-project"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no slotvm.toml exists")
	}
}

func TestLockFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "lock.toml")

	lf := &LockFile{
		Deps: []LockedDep{
			{Name: "numbers", Git: "https://example.com/numbers.git", Commit: "abc123", Tag: "v0.5.0"},
			{Name: "helper", Path: "../helper"},
		},
	}

	if err := WriteLock(lockPath, lf); err != nil {
		t.Fatalf("WriteLock failed: %v", err)
	}

	loaded, err := ReadLock(lockPath)
	if err != nil {
		t.Fatalf("ReadLock failed: %v", err)
	}

	if len(loaded.Deps) != 2 {
		t.Fatalf("expected 2 deps, got %d", len(loaded.Deps))
	}
	// Written sorted by name
	if loaded.Deps[0].Name != "helper" {
		t.Errorf("dep[0].Name = %q, want helper", loaded.Deps[0].Name)
	}
	if loaded.Deps[1].Commit != "abc123" {
		t.Errorf("dep[1].Commit = %q, want abc123", loaded.Deps[1].Commit)
	}

	// FindLockedDep
	found := loaded.FindLockedDep("helper")
	if found == nil || found.Path != "../helper" {
		t.Errorf("FindLockedDep(helper) = %v, want path ../helper", found)
	}

	notFound := loaded.FindLockedDep("nonexistent")
	if notFound != nil {
		t.Errorf("FindLockedDep(nonexistent) = %v, want nil", notFound)
	}

	var none *LockFile
	if none.FindLockedDep("helper") != nil {
		t.Error("nil lock file should find nothing")
	}
}

func TestReadLockNotFound(t *testing.T) {
	lf, err := ReadLock("/nonexistent/path/lock.toml")
	if err != nil {
		t.Errorf("ReadLock should return nil,nil for missing file, got err: %v", err)
	}
	if lf != nil {
		t.Errorf("ReadLock should return nil for missing file, got %v", lf)
	}
}

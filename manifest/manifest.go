// Package manifest handles slotvm.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project configuration file.
const FileName = "slotvm.toml"

// Manifest represents a slotvm.toml project configuration.
type Manifest struct {
	Project      Project               `toml:"project"`
	Run          Run                   `toml:"run"`
	Engine       Engine                `toml:"engine"`
	Cache        Cache                 `toml:"cache"`
	Log          Log                   `toml:"log"`
	Dependencies map[string]Dependency `toml:"dependencies"`

	// Dir is the directory containing the slotvm.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Module  string `toml:"module"`
	Version string `toml:"version"`
}

// Run lists the code files to execute. Each file is a listing (.yaml,
// .yml, .toml) or a CBOR code object.
type Run struct {
	Entry string   `toml:"entry"`
	Files []string `toml:"files"`
}

// Engine configures the interpreter.
type Engine struct {
	RecursionLimit int  `toml:"recursion-limit"`
	Trace          bool `toml:"trace"`
}

// Cache configures the persistent code cache.
type Cache struct {
	Path     string `toml:"path"`
	Disabled bool   `toml:"disabled"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Dependency represents a single project dependency: another project
// whose run files are executed before this project's own.
type Dependency struct {
	Git    string `toml:"git"`
	Tag    string `toml:"tag"`
	Path   string `toml:"path"`
	Module string `toml:"module"`
}

// Load parses a slotvm.toml file from the given directory.
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
	if m.Project.Module == "" {
		m.Project.Module = "__main__"
	}
	if m.Cache.Path == "" {
		m.Cache.Path = filepath.Join(".slotvm", "cache.db")
	}
	if m.Engine.RecursionLimit < 0 {
		return nil, fmt.Errorf("%s: engine.recursion-limit must not be negative", path)
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a slotvm.toml file,
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

// RunPaths returns absolute paths of the files to run: the entry first,
// then the other files in order.
func (m *Manifest) RunPaths() []string {
	var paths []string
	if m.Run.Entry != "" {
		paths = append(paths, m.resolve(m.Run.Entry))
	}
	for _, f := range m.Run.Files {
		paths = append(paths, m.resolve(f))
	}
	return paths
}

// CachePath returns the absolute path of the code cache database, or ""
// when caching is disabled.
func (m *Manifest) CachePath() string {
	if m.Cache.Disabled {
		return ""
	}
	return m.resolve(m.Cache.Path)
}

// LogPath returns the absolute path of the log file, or "" for stderr.
func (m *Manifest) LogPath() string {
	if m.Log.File == "" {
		return ""
	}
	return m.resolve(m.Log.File)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// DepsDir returns the path to the .slotvm/deps directory.
func (m *Manifest) DepsDir() string {
	return filepath.Join(m.Dir, ".slotvm", "deps")
}

// LockFilePath returns the path to .slotvm/lock.toml.
func (m *Manifest) LockFilePath() string {
	return filepath.Join(m.Dir, ".slotvm", "lock.toml")
}

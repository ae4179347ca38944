package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/slotvm/manifest"
	"github.com/chazu/slotvm/store"
	"github.com/chazu/slotvm/vm"
	"github.com/chazu/slotvm/vm/codec"
)

var errReported = errors.New("errors reported")

// runOptions collects the settings of a run, from flags and the manifest.
type runOptions struct {
	verbosity      int
	logFile        string
	trace          bool
	stats          bool
	recursionLimit int
	cachePath      string
	module         string
	files          []string
	deps           []manifest.ResolvedDep
}

// unit is a file loaded and ready to run.
type unit struct {
	path string
	code *vm.Code
	hash store.Hash
}

// outcome is the result of running one unit.
type outcome struct {
	result vm.Value
	steps  int64
	err    error
	out    bytes.Buffer
}

func runCmd(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var v verbosity
	fs.Var(&v, "v", "Verbose logging (repeat for debug)")
	trace := fs.Bool("trace", false, "Log every instruction (needs -v -v)")
	stats := fs.Bool("stats", false, "Print run statistics")
	cache := fs.String("cache", "", "Code cache database")
	noCache := fs.Bool("no-cache", false, "Do not use the code cache")
	limit := fs.Int("limit", 0, "Recursion limit")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: slotvm run [options] [files...]\n\n")
		fmt.Fprintf(stderr, "Runs each file in its own interpreter, concurrently. Without files,\n")
		fmt.Fprintf(stderr, "runs the project described by the nearest %s.\n\n", manifest.FileName)
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := runOptions{
		verbosity:      int(v),
		trace:          *trace,
		stats:          *stats,
		recursionLimit: *limit,
		cachePath:      *cache,
		module:         "__main__",
		files:          fs.Args(),
	}
	if len(opts.files) == 0 {
		if err := opts.fromManifest("."); err != nil {
			return err
		}
	}
	if *noCache {
		opts.cachePath = ""
	}

	configureLogging(opts.verbosity, opts.logFile)
	return execute(opts, stdout, stderr)
}

// fromManifest fills in the options from the slotvm.toml found above dir.
// Flags given on the command line win over the manifest.
func (o *runOptions) fromManifest(dir string) error {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("no files given and no %s found", manifest.FileName)
	}
	o.files = m.RunPaths()
	if len(o.files) == 0 {
		return fmt.Errorf("%s: no entry or files in [run]", m.Dir)
	}
	if o.verbosity == 0 {
		o.verbosity = m.Log.Verbosity
	}
	o.logFile = m.LogPath()
	o.trace = o.trace || m.Engine.Trace
	if o.recursionLimit == 0 {
		o.recursionLimit = m.Engine.RecursionLimit
	}
	if o.cachePath == "" {
		o.cachePath = m.CachePath()
	}
	o.module = m.Project.Module

	if len(m.Dependencies) > 0 {
		deps, err := manifest.NewResolver(m).Resolve()
		if err != nil {
			return fmt.Errorf("resolving dependencies: %w", err)
		}
		o.deps = deps
	}
	return nil
}

// execute loads every file, then runs them concurrently, each in its own
// interpreter preceded by the dependency prelude.
func execute(opts runOptions, stdout, stderr io.Writer) error {
	var st *store.Store
	if opts.cachePath != "" {
		var err error
		st, err = store.Open(opts.cachePath)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	units, err := loadAll(st, opts.files)
	if err != nil {
		return err
	}
	var prelude [][]unit
	for _, dep := range opts.deps {
		us, err := loadAll(st, dep.RunPaths())
		if err != nil {
			return fmt.Errorf("dependency %s: %w", dep.Name, err)
		}
		prelude = append(prelude, us)
	}

	outcomes := make([]*outcome, len(units))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, u := range units {
		oc := &outcome{}
		outcomes[i] = oc
		g.Go(func() error {
			cfg := vm.DefaultConfig()
			cfg.RecursionLimit = opts.recursionLimit
			cfg.Trace = opts.trace
			cfg.Stdout = stdout
			if len(units) > 1 {
				cfg.Stdout = &oc.out
			}
			in := vm.New(cfg)
			log.Infof("running %s in interpreter %s", u.path, in.ID)

			globals := in.NewGlobals(opts.module)
			if err := runPrelude(in, globals, opts.deps, prelude); err != nil {
				oc.err = err
			} else {
				oc.result, oc.err = in.Exec(u.code, globals)
			}
			oc.steps = in.Steps()
			// Failures are reported per file below; the other files still run.
			return nil
		})
	}
	_ = g.Wait()

	failed := false
	for i, oc := range outcomes {
		if len(units) > 1 {
			stdout.Write(oc.out.Bytes())
		}
		if oc.err != nil {
			failed = true
			reportError(stderr, units[i].path, oc.err)
			continue
		}
		if opts.verbosity > 0 && !vm.IsNone(oc.result) {
			if r, err := vm.Repr(oc.result); err == nil {
				log.Infof("%s returned %s", units[i].path, r)
			}
		}
	}
	if opts.stats {
		printStats(stderr, st, units, outcomes)
	}
	if failed {
		return errReported
	}
	return nil
}

// loadAll loads the files through the cache when there is one.
func loadAll(st *store.Store, paths []string) ([]unit, error) {
	units := make([]unit, len(paths))
	for i, p := range paths {
		units[i].path = p
		if st != nil {
			c, h, err := st.Load(p)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p, err)
			}
			units[i].code, units[i].hash = c, h
			continue
		}
		c, err := codec.LoadFile(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		h, _, err := store.HashOf(c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		units[i].code, units[i].hash = c, h
	}
	return units, nil
}

// runPrelude runs each dependency's files in a namespace named by its
// module, then copies the public names into globals. Later dependencies
// shadow earlier ones.
func runPrelude(in *vm.Interpreter, globals *vm.Dict, deps []manifest.ResolvedDep, prelude [][]unit) error {
	for i, dep := range deps {
		ns := in.NewGlobals(dep.Module)
		for _, u := range prelude[i] {
			if _, err := in.Exec(u.code, ns); err != nil {
				return fmt.Errorf("dependency %s: %s: %w", dep.Name, u.path, err)
			}
		}
		exported := 0
		for _, k := range ns.Keys() {
			name, ok := k.(string)
			if !ok || strings.HasPrefix(name, "_") {
				continue
			}
			v, _ := ns.GetStr(name)
			globals.SetStr(name, v)
			exported++
		}
		log.Debugf("dependency %s (module %s) exported %d names", dep.Name, dep.Module, exported)
	}
	return nil
}

var stderrIsTerminal = sync.OnceValue(func() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
})

// reportError prints a run failure: a multi-line annotated form on a
// terminal, one parseable line otherwise.
func reportError(w io.Writer, path string, err error) {
	annotated := w == io.Writer(os.Stderr) && stderrIsTerminal()
	exc, isExc := vm.AsException(err)
	switch {
	case annotated && isExc:
		fmt.Fprintf(w, "Error in %s:\n  %s: %s\n", path, exc.Kind, exc.Message)
	case annotated && vm.IsInternal(err):
		fmt.Fprintf(w, "Internal error in %s:\n  %v\n  (the code object is malformed)\n", path, err)
	case annotated:
		fmt.Fprintf(w, "Error in %s:\n  %v\n", path, err)
	default:
		fmt.Fprintf(w, "%s: %v\n", path, err)
	}
}

func printStats(w io.Writer, st *store.Store, units []unit, outcomes []*outcome) {
	var total int64
	for i, u := range units {
		ic := vm.CollectICStats(u.code)
		fmt.Fprintf(w, "%s [%s]: %s instructions, %d cache sites, %.1f%% hit rate\n",
			u.path, u.hash.String()[:12], humanize.Comma(outcomes[i].steps), ic.TotalSites, ic.HitRate)
		total += outcomes[i].steps
	}
	if len(units) > 1 {
		fmt.Fprintf(w, "total: %s instructions\n", humanize.Comma(total))
	}
	if st == nil {
		return
	}
	n, err := st.Len()
	if err != nil {
		return
	}
	size := "?"
	if fi, err := os.Stat(st.Path()); err == nil {
		size = humanize.Bytes(uint64(fi.Size()))
	}
	fmt.Fprintf(w, "cache %s: %d code objects, %s\n", st.Path(), n, size)
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const helloYAML = `
name: hello
consts: [hello, 42, null]
names: [print]
instructions:
  - LOAD_GLOBAL 1
  - LOAD_CONST 0
  - LOAD_CONST 1
  - CALL 2
  - POP_TOP
  - LOAD_CONST 2
  - RETURN_VALUE
`

const byeTOML = `
name = "bye"
consts = ["bye", {none = true}]
names = ["print"]
instructions = [
  "LOAD_GLOBAL 1",
  "LOAD_CONST 0",
  "CALL 1",
  "POP_TOP",
  "LOAD_CONST 1",
  "RETURN_VALUE",
]
`

const badYAML = `
name: bad
consts: [1, a]
instructions:
  - LOAD_CONST 0
  - LOAD_CONST 1
  - BINARY_OP +
  - RETURN_VALUE
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errb bytes.Buffer
	code = run(args, &out, &errb)
	return code, out.String(), errb.String()
}

func TestRunFile(t *testing.T) {
	dir := t.TempDir()
	hello := writeFile(t, dir, "hello.yaml", helloYAML)

	code, out, errOut := runCLI(t, "run", "-no-cache", hello)
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, errOut)
	}
	if out != "hello 42\n" {
		t.Errorf("stdout = %q", out)
	}

	// Bare files behave like run.
	code, out, _ = runCLI(t, hello)
	if code != 0 || out != "hello 42\n" {
		t.Errorf("bare run: exit %d, stdout %q", code, out)
	}
}

func TestRunSeveralFiles(t *testing.T) {
	dir := t.TempDir()
	hello := writeFile(t, dir, "hello.yaml", helloYAML)
	bye := writeFile(t, dir, "bye.toml", byeTOML)

	code, out, errOut := runCLI(t, "run", hello, bye, hello)
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, errOut)
	}
	// Output is kept in file order whatever the scheduling.
	if out != "hello 42\nbye\nhello 42\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestRunReportsErrors(t *testing.T) {
	dir := t.TempDir()
	hello := writeFile(t, dir, "hello.yaml", helloYAML)
	bad := writeFile(t, dir, "bad.yaml", badYAML)

	code, out, errOut := runCLI(t, "run", bad, hello)
	if code != 1 {
		t.Fatalf("exit %d, want 1", code)
	}
	if out != "hello 42\n" {
		t.Errorf("the good file should still run, stdout = %q", out)
	}
	want := bad + ": TypeError: unsupported operand type(s) for +: 'int' and 'str'\n"
	if errOut != want {
		t.Errorf("stderr = %q, want %q", errOut, want)
	}
}

func TestRunMissingFile(t *testing.T) {
	code, _, errOut := runCLI(t, "run", filepath.Join(t.TempDir(), "nope.yaml"))
	if code != 1 || !strings.HasPrefix(errOut, "Error: ") {
		t.Errorf("exit %d, stderr %q", code, errOut)
	}
}

func TestRunWithCacheAndStats(t *testing.T) {
	dir := t.TempDir()
	hello := writeFile(t, dir, "hello.yaml", helloYAML)
	db := filepath.Join(dir, "cache.db")

	for i := 0; i < 2; i++ {
		code, out, errOut := runCLI(t, "run", "-cache", db, "-stats", hello)
		if code != 0 {
			t.Fatalf("exit %d, stderr: %s", code, errOut)
		}
		if out != "hello 42\n" {
			t.Errorf("stdout = %q", out)
		}
		if !strings.Contains(errOut, "7 instructions") {
			t.Errorf("stats missing instruction count: %q", errOut)
		}
		if !strings.Contains(errOut, "1 code objects") {
			t.Errorf("stats missing cache size: %q", errOut)
		}
	}
}

func TestAsmDisRoundTrip(t *testing.T) {
	dir := t.TempDir()
	hello := writeFile(t, dir, "hello.yaml", helloYAML)

	code, _, errOut := runCLI(t, "asm", hello)
	if code != 0 {
		t.Fatalf("asm exit %d, stderr: %s", code, errOut)
	}
	cbor := filepath.Join(dir, "hello.cbor")
	if _, err := os.Stat(cbor); err != nil {
		t.Fatalf("asm output: %v", err)
	}

	code, out, _ := runCLI(t, "run", cbor)
	if code != 0 || out != "hello 42\n" {
		t.Errorf("run cbor: exit %d, stdout %q", code, out)
	}

	code, out, _ = runCLI(t, "dis", cbor)
	if code != 0 || !strings.Contains(out, "LOAD_GLOBAL") || !strings.Contains(out, "hello") {
		t.Errorf("dis: exit %d, output %q", code, out)
	}

	code, out, _ = runCLI(t, "dis", "-format", "toml", cbor)
	if code != 0 {
		t.Fatalf("dis -format toml exit %d", code)
	}
	again := writeFile(t, dir, "again.toml", out)
	code, out, errOut = runCLI(t, "run", again)
	if code != 0 || out != "hello 42\n" {
		t.Errorf("run re-listed: exit %d, stdout %q, stderr %q", code, out, errOut)
	}
}

func TestAsmErrors(t *testing.T) {
	dir := t.TempDir()
	cbor := writeFile(t, dir, "x.cbor", "junk")

	tests := map[string][]string{
		"no args":      {"asm"},
		"not listing":  {"asm", cbor},
		"missing file": {"asm", filepath.Join(dir, "missing.yaml")},
	}
	for name, args := range tests {
		if code, _, _ := runCLI(t, args...); code == 0 {
			t.Errorf("%s: expected failure", name)
		}
	}
}

func TestRunManifestProject(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "greet/slotvm.toml", `
[project]
name = "greet"

[run]
entry = "lib.yaml"
`)
	writeFile(t, root, "greet/lib.yaml", `
name: lib
consts: [hi, secret, null]
names: [greeting, _hidden]
instructions:
  - LOAD_CONST 0
  - STORE_NAME 0
  - LOAD_CONST 1
  - STORE_NAME 1
  - LOAD_CONST 2
  - RETURN_VALUE
`)
	app := filepath.Join(root, "app")
	writeFile(t, app, "slotvm.toml", `
[project]
name = "app"

[run]
entry = "main.yaml"

[dependencies]
greet = { path = "../greet" }
`)
	writeFile(t, app, "main.yaml", `
name: main
consts: [null]
names: [print, greeting]
instructions:
  - LOAD_GLOBAL 1
  - LOAD_GLOBAL 2
  - CALL 1
  - POP_TOP
  - LOAD_CONST 0
  - RETURN_VALUE
`)
	t.Chdir(app)

	code, out, errOut := runCLI(t, "run")
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, errOut)
	}
	if out != "hi\n" {
		t.Errorf("stdout = %q", out)
	}
	if _, err := os.Stat(filepath.Join(app, ".slotvm", "cache.db")); err != nil {
		t.Errorf("default cache not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(app, ".slotvm", "lock.toml")); err != nil {
		t.Errorf("lock file not written: %v", err)
	}
}

func TestRunPrivateNamesStayInDependency(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "lib/slotvm.toml", "[run]\nentry = \"lib.yaml\"\n")
	writeFile(t, root, "lib/lib.yaml", `
name: lib
consts: [1, null]
names: [_hidden]
instructions:
  - LOAD_CONST 0
  - STORE_NAME 0
  - LOAD_CONST 1
  - RETURN_VALUE
`)
	app := filepath.Join(root, "app")
	writeFile(t, app, "slotvm.toml", `
[run]
entry = "main.yaml"

[cache]
disabled = true

[dependencies]
lib = { path = "../lib" }
`)
	writeFile(t, app, "main.yaml", `
name: main
names: [_hidden]
instructions:
  - LOAD_NAME 0
  - RETURN_VALUE
`)
	t.Chdir(app)

	code, _, errOut := runCLI(t, "run")
	if code != 1 || !strings.Contains(errOut, "NameError") {
		t.Errorf("exit %d, stderr %q", code, errOut)
	}
	if _, err := os.Stat(filepath.Join(app, ".slotvm", "cache.db")); err == nil {
		t.Error("cache created although disabled")
	}
}

func TestRunWithoutManifest(t *testing.T) {
	t.Chdir(t.TempDir())
	code, _, errOut := runCLI(t, "run")
	if code != 1 || !strings.Contains(errOut, "no files given") {
		t.Errorf("exit %d, stderr %q", code, errOut)
	}
}

func TestUsage(t *testing.T) {
	if code, _, errOut := runCLI(t); code != 2 || !strings.Contains(errOut, "Usage: slotvm") {
		t.Errorf("no args: exit %d, stderr %q", code, errOut)
	}
	if code, out, _ := runCLI(t, "help"); code != 0 || !strings.Contains(out, "Commands:") {
		t.Errorf("help: exit %d", code)
	}
	if code, _, _ := runCLI(t, "run", "-h"); code != 0 {
		t.Errorf("run -h: exit %d", code)
	}
}

func TestVerbosityFlag(t *testing.T) {
	var v verbosity
	for i := 0; i < 3; i++ {
		if err := v.Set("true"); err != nil {
			t.Fatal(err)
		}
	}
	if err := v.Set("false"); err != nil {
		t.Fatal(err)
	}
	if v != 3 || v.String() != "3" {
		t.Errorf("verbosity = %d", v)
	}
}

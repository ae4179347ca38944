// slotvm CLI - assembles, disassembles and runs code objects
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("slotvm.cli")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "run":
		err = runCmd(args[1:], stdout, stderr)
	case "asm":
		err = asmCmd(args[1:], stdout, stderr)
	case "dis":
		err = disCmd(args[1:], stdout, stderr)
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return 0
	default:
		// Bare files run as with "run".
		err = runCmd(args, stdout, stderr)
	}

	switch {
	case err == nil:
		return 0
	case err == flag.ErrHelp:
		return 0
	case err == errReported:
		return 1
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: slotvm <command> [options] [files...]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  run   Run listings (.yaml, .yml, .toml) or CBOR code files\n")
	fmt.Fprintf(w, "  asm   Assemble a listing into a CBOR code file\n")
	fmt.Fprintf(w, "  dis   Disassemble a code file\n")
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  slotvm run main.yaml                # Run one file\n")
	fmt.Fprintf(w, "  slotvm run -v -v a.yaml b.cbor      # Run two files concurrently, debug logging\n")
	fmt.Fprintf(w, "  slotvm run                          # Run the project in slotvm.toml\n")
	fmt.Fprintf(w, "  slotvm asm -o main.cbor main.yaml   # Assemble\n")
	fmt.Fprintf(w, "  slotvm dis -format toml main.cbor   # Convert back to a listing\n")
}

// verbosity is a repeatable -v flag.
type verbosity int

func (v *verbosity) String() string   { return strconv.Itoa(int(*v)) }
func (v *verbosity) IsBoolFlag() bool { return true }

func (v *verbosity) Set(s string) error {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if b {
		*v++
	}
	return nil
}

// configureLogging sets the commonlog verbosity once for the process.
// Verbosity 0 logs notices and above, 1 adds info, 2 adds debug.
func configureLogging(v int, path string) {
	if path != "" {
		commonlog.Configure(v, &path)
	} else {
		commonlog.Configure(v, nil)
	}
}

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/chazu/slotvm/vm/codec"
)

// asmCmd assembles a listing into the CBOR wire form.
func asmCmd(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("asm", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("o", "", "Output file (default: the listing name with .cbor)")
	var v verbosity
	fs.Var(&v, "v", "Verbose output")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: slotvm asm [-o out.cbor] listing\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("asm takes exactly one listing")
	}
	configureLogging(int(v), "")

	src := fs.Arg(0)
	if codec.FormatOf(src) == "" {
		return fmt.Errorf("%s: not a listing (expected .yaml, .yml or .toml)", src)
	}
	c, err := codec.LoadFile(src)
	if err != nil {
		return err
	}
	data, err := codec.Marshal(c)
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}

	dst := *out
	if dst == "" {
		dst = strings.TrimSuffix(src, filepath.Ext(src)) + ".cbor"
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return err
	}
	if v > 0 {
		fmt.Fprintf(stdout, "Wrote %s (%s)\n", dst, humanize.Bytes(uint64(len(data))))
	}
	log.Infof("assembled %s into %s", src, dst)
	return nil
}

// disCmd prints a code file as a disassembly, or as a listing in the
// requested format.
func disCmd(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("dis", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("format", "", "Print a listing in this format (yaml or toml) instead of a disassembly")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: slotvm dis [-format yaml|toml] file\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("dis takes exactly one file")
	}

	c, err := codec.LoadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	if *format == "" {
		_, err = io.WriteString(stdout, c.Disassemble())
		return err
	}
	data, err := codec.FormatListing(c, *format)
	if err != nil {
		return err
	}
	_, err = stdout.Write(data)
	return err
}

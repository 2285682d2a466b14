package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"
	"github.com/simondevenish/Ember/bytecode"
)

// compileCmd lowers a source file to a standalone bytecode artifact
// (spec §6's "compile" mode), optionally printing a disassembly alongside
// it for inspection.
type compileCmd struct {
	output string
	disas  bool
}

func (*compileCmd) Name() string     { return "compile" }
func (*compileCmd) Synopsis() string { return "compile an Ember source file to a bytecode file" }
func (*compileCmd) Usage() string {
	return `compile [-o out.embc] [-disassemble] <file.ember>:
  Compile without running, writing the encoded chunk to disk.
`
}

func (c *compileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "output path (defaults to the input file with its extension replaced by .embc)")
	f.BoolVar(&c.disas, "disassemble", false, "print a disassembly of the compiled chunk to stderr")
}

func (c *compileCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 file not provided\n")
		return subcommands.ExitUsageError
	}
	filename := args[0]

	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to read file: %v\n", err)
		return subcommands.ExitFailure
	}

	statements, parseErrs := parseProgram(string(data))
	if len(parseErrs) > 0 {
		for _, pe := range parseErrs {
			fmt.Fprintln(os.Stderr, pe)
		}
		return subcommands.ExitFailure
	}

	comp := newCompiler(filepath.Dir(filename))
	chunk, compileErrs := comp.Compile(statements)
	if len(compileErrs) > 0 {
		for _, ce := range compileErrs {
			fmt.Fprintln(os.Stderr, ce)
		}
		return subcommands.ExitFailure
	}

	if c.disas {
		fmt.Fprintln(os.Stderr, chunk.Disassemble())
	}

	out := c.output
	if out == "" {
		out = strings.TrimSuffix(filename, filepath.Ext(filename)) + ".embc"
	}
	if err := os.WriteFile(out, bytecode.Encode(chunk), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to write bytecode file: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

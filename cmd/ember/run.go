package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/subcommands"
	"github.com/simondevenish/Ember/vm"
)

// runCmd lexes, parses, compiles, and executes a source file in one step,
// the everyday path for a script with no separate build artifact.
type runCmd struct {
	debug bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "compile and execute an Ember source file" }
func (*runCmd) Usage() string {
	return `run <file.ember>:
  Compile and execute an Ember source file in one step.
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.debug, "debug", false, "trace each executed instruction to stdout")
}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	c := newCompiler(filepath.Dir(filename))
	chunk, compileErrs := c.Compile(statements)
	if len(compileErrs) > 0 {
		for _, ce := range compileErrs {
			fmt.Fprintln(os.Stderr, ce)
		}
		return subcommands.ExitFailure
	}

	machine := vm.New(chunk)
	machine.SetDebug(r.debug)
	if runErr := machine.Run(); runErr != nil {
		fmt.Fprintln(os.Stderr, runErr.Error())
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

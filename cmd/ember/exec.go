package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/simondevenish/Ember/bytecode"
	"github.com/simondevenish/Ember/vm"
)

// execCmd runs an already-compiled chunk, skipping lexing/parsing/
// compiling entirely (spec §6's "exec" mode, for a pre-built artifact
// produced by `compile`).
type execCmd struct {
	debug bool
}

func (*execCmd) Name() string     { return "exec" }
func (*execCmd) Synopsis() string { return "execute a precompiled Ember bytecode file" }
func (*execCmd) Usage() string {
	return `exec <file.embc>:
  Execute a bytecode file produced by the compile command.
`
}

func (e *execCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&e.debug, "debug", false, "trace each executed instruction to stdout")
}

func (e *execCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 file not provided\n")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to read bytecode file: %v\n", err)
		return subcommands.ExitFailure
	}

	chunk, err := bytecode.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to decode bytecode file: %v\n", err)
		return subcommands.ExitFailure
	}

	machine := vm.New(chunk)
	machine.SetDebug(e.debug)
	if runErr := machine.Run(); runErr != nil {
		fmt.Fprintln(os.Stderr, runErr.Error())
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

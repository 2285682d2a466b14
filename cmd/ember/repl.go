package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"
	"github.com/simondevenish/Ember/bytecode"
	"github.com/simondevenish/Ember/compiler"
	"github.com/simondevenish/Ember/lexer"
	"github.com/simondevenish/Ember/token"
	"github.com/simondevenish/Ember/vm"
)

// replCmd is an interactive session that compiles and runs one top-level
// statement (or brace-delimited block) at a time, keeping bindings alive
// across lines by growing a single chunk in place rather than starting a
// fresh program each time.
//
// Indentation-delimited blocks need a following, less-indented line to
// know where they end, which a line-at-a-time prompt can't see ahead of;
// the REPL only accepts single-line statements and `{ }`-delimited
// blocks, leaving full indentation blocks to source files run via `run`.
type replCmd struct{}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "start an interactive Ember session" }
func (*replCmd) Usage() string {
	return `repl:
  Start an interactive session. Enter 'exit' or Ctrl-D to leave.
`
}

func (*replCmd) SetFlags(f *flag.FlagSet) {}

func (*replCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     historyFilePath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 could not start readline: %s\n", err)
		return subcommands.ExitFailure
	}
	defer rl.Close()

	fmt.Println("Ember REPL. Enter 'exit' or Ctrl-D to leave.")

	comp, chunk, machine := newSession()

	var buffer strings.Builder
	for {
		if buffer.Len() == 0 {
			rl.SetPrompt(">>> ")
		} else {
			rl.SetPrompt("... ")
		}

		line, readErr := rl.Readline()
		if readErr == readline.ErrInterrupt {
			if buffer.Len() == 0 {
				continue
			}
			buffer.Reset()
			continue
		}
		if readErr == io.EOF {
			return subcommands.ExitSuccess
		}
		if readErr != nil {
			fmt.Fprintf(os.Stderr, "💥 %s\n", readErr)
			return subcommands.ExitFailure
		}

		if strings.TrimSpace(line) == "exit" && buffer.Len() == 0 {
			return subcommands.ExitSuccess
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)
		source := buffer.String()

		tokens, lexErr := lexSource(source)
		if lexErr != nil {
			fmt.Fprintln(os.Stderr, lexErr)
			buffer.Reset()
			continue
		}
		if !braceBalanced(tokens) {
			continue
		}

		statements, parseErrs := parseProgram(source)
		if len(parseErrs) > 0 {
			for _, pe := range parseErrs {
				fmt.Fprintln(os.Stderr, pe)
			}
			buffer.Reset()
			continue
		}
		buffer.Reset()
		if len(statements) == 0 {
			continue
		}

		// Undo the previous chunk's trailing OP_EOF so this statement's
		// bytecode lands exactly where the VM's instruction pointer is
		// sitting (Run stops at OP_EOF without advancing past it), letting
		// execution resume in place instead of restarting from zero.
		if n := len(chunk.Code); n > 0 && bytecode.Opcode(chunk.Code[n-1]) == bytecode.OpEof {
			chunk.Code = chunk.Code[:n-1]
		}

		_, compileErrs := comp.Compile(statements)
		if len(compileErrs) > 0 {
			for _, ce := range compileErrs {
				fmt.Fprintln(os.Stderr, ce)
			}
			// A failed Compile call leaves the compiler's error list
			// poisoned against further use, so the session restarts with a
			// clean compiler/VM pair; previously bound names are lost.
			fmt.Fprintln(os.Stderr, "🤖 session reset after a compile error; previous bindings are gone")
			comp, chunk, machine = newSession()
			continue
		}

		if runErr := machine.Run(); runErr != nil {
			fmt.Fprintln(os.Stderr, runErr.Error())
		}
	}
}

// newSession builds a fresh compiler/chunk/VM triplet sharing one chunk
// pointer end to end: comp.Compile always appends to and returns this
// same *bytecode.Chunk, so trimming its trailing OP_EOF before each
// subsequent Compile call and letting machine resume from its saved ip
// is enough to keep execution (and globals) continuous across lines.
func newSession() (*compiler.Compiler, *bytecode.Chunk, *vm.VM) {
	comp := newCompiler(".")
	chunk, _ := comp.Compile(nil)
	machine := vm.New(chunk)
	return comp, chunk, machine
}

func historyFilePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ember_history")
}

func lexSource(source string) ([]token.Token, error) {
	return lexer.New(source).Scan()
}

func braceBalanced(tokens []token.Token) bool {
	balance := 0
	for _, tok := range tokens {
		switch tok.TokenType {
		case token.LCUR:
			balance++
		case token.RCUR:
			balance--
		}
	}
	return balance <= 0
}

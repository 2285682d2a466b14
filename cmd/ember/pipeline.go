package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/simondevenish/Ember/ast"
	"github.com/simondevenish/Ember/compiler"
	"github.com/simondevenish/Ember/lexer"
	"github.com/simondevenish/Ember/module"
	"github.com/simondevenish/Ember/parser"
)

// parseProgram lexes and parses source, reporting every diagnostic it
// collects rather than stopping at the first.
func parseProgram(source string) ([]ast.Stmt, []error) {
	lex := lexer.New(source)
	tokens, err := lex.Scan()
	if err != nil {
		return nil, []error{err}
	}
	p := parser.Make(tokens, nil)
	return p.Parse()
}

// loadRegistry resolves the package registry against EMBER_REGISTRY's
// value, falling back to a nil Loader (every import unresolved) when
// unset, matching module.Loader's documented nil-safe fallback.
func loadRegistry() *module.Loader {
	path := os.Getenv("EMBER_REGISTRY")
	if path == "" {
		return nil
	}
	reg, err := module.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "🤖 could not load package registry %q: %s\n", path, err)
		return nil
	}
	return reg
}

// readLocalImport satisfies compiler.FileLoader/interpreter.FileLoader by
// reading a `.ember` file relative to baseDir, the directory of the file
// currently being compiled.
func readLocalImport(baseDir string) func(path string) (string, error) {
	return func(path string) (string, error) {
		data, err := os.ReadFile(filepath.Join(baseDir, path))
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// newCompiler wires a Compiler with the registry and local-import hooks
// appropriate for a source file living in baseDir.
func newCompiler(baseDir string) *compiler.Compiler {
	return compiler.New(loadRegistry(), readLocalImport(baseDir), parseProgram)
}

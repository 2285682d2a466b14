// ember_test.go drives the full source-to-stdout pipeline (lexer, parser,
// compiler, VM) as a black box, the way the ember CLI's run command does,
// and cross-checks a sample of results against the interpreter oracle.
package ember_test

import (
	"io"
	"math/rand"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simondevenish/Ember/ast"
	"github.com/simondevenish/Ember/bytecode"
	"github.com/simondevenish/Ember/compiler"
	"github.com/simondevenish/Ember/interpreter"
	"github.com/simondevenish/Ember/lexer"
	"github.com/simondevenish/Ember/parser"
	"github.com/simondevenish/Ember/token"
	"github.com/simondevenish/Ember/vm"
)

func parseSource(t *testing.T, source string) []ast.Stmt {
	t.Helper()
	toks, err := lexer.New(source).Scan()
	require.NoError(t, err, "lexing %q", source)
	statements, errs := parser.Make(toks, nil).Parse()
	require.Empty(t, errs, "parsing %q: %v", source, errs)
	return statements
}

// captureStdout redirects os.Stdout for the duration of fn, since
// OpPrint writes straight to it (vm.VM has no injectable writer, unlike
// the interpreter package's SetOutput).
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	saved := os.Stdout
	os.Stdout = w
	fn()
	os.Stdout = saved
	w.Close()
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

// runChunk executes chunk and returns its stdout and the VM, so callers
// can additionally inspect the VM's final state (e.g. an empty operand
// stack, or a global slot's bound value).
func runChunk(t *testing.T, chunk *bytecode.Chunk) (string, *vm.VM) {
	t.Helper()
	machine := vm.New(chunk)
	var runErr error
	out := captureStdout(t, func() {
		runErr = machine.Run()
	})
	require.NoError(t, runErr, "running chunk")
	return out, machine
}

// runSource compiles and executes source as a single unit, returning
// stdout. It fails the test on any compile or runtime error.
func runSource(t *testing.T, source string) string {
	t.Helper()
	statements := parseSource(t, source)
	comp := compiler.New(nil, nil, nil)
	chunk, errs := comp.Compile(statements)
	require.Empty(t, errs, "compiling %q: %v", source, errs)
	out, _ := runChunk(t, chunk)
	return out
}

// TestS1ArithmeticAndPrint covers spec scenario S1.
func TestS1ArithmeticAndPrint(t *testing.T) {
	out := runSource(t, `print(1 + 2 * 3)`)
	assert.Equal(t, "7\n", out)
}

// TestS2ImmutabilityIsACompileError covers spec scenario S2: assigning to
// a `let` binding is caught by the compiler, not deferred to the VM, and
// nothing runs.
func TestS2ImmutabilityIsACompileError(t *testing.T) {
	statements := parseSource(t, "let x: 1\nx = 2")
	comp := compiler.New(nil, nil, nil)
	_, errs := comp.Compile(statements)
	require.NotEmpty(t, errs, "expected a compile error assigning to a let binding")

	joined := make([]string, len(errs))
	for i, e := range errs {
		joined[i] = e.Error()
	}
	message := strings.Join(joined, "\n")
	assert.Contains(t, message, "x")
	assert.Contains(t, strings.ToLower(message), "immutable")
}

// TestS3ObjectAndNestedSet covers spec scenario S3.
func TestS3ObjectAndNestedSet(t *testing.T) {
	out := runSource(t, "obj: {a: {b: 1}}\nobj.a.b = 42\nprint(obj.a.b)")
	assert.Equal(t, "42\n", out)
}

// TestS4MixinOverride covers spec scenario S4: a mixin's fields are
// visible unless the child redeclares them.
func TestS4MixinOverride(t *testing.T) {
	out := runSource(t, `base: {greet: "hi", name: "base"}
child: {:[base], name: "child"}
print(child.greet)
print(child.name)`)
	assert.Equal(t, "hi\nchild\n", out)
}

// TestS5RangeIteration covers spec scenario S5: a naked range iterator
// accumulates into an outer binding.
func TestS5RangeIteration(t *testing.T) {
	out := runSource(t, "sum: 0\ni: 1..5\n    sum = sum + i\nprint(sum)")
	assert.Equal(t, "15\n", out)
}

// TestS6StringConcatCoercesNonString covers spec scenario S6.
func TestS6StringConcatCoercesNonString(t *testing.T) {
	out := runSource(t, `print("n=" + 3)`)
	assert.Equal(t, "n=3\n", out)
}

// TestProperty1LexerIndentBalancesToZero exercises invariant 1: across
// any token stream, the net Indent-minus-Dedent count is zero at EOF,
// since every opened block is eventually closed by the dedent that ends
// the file.
func TestProperty1LexerIndentBalancesToZero(t *testing.T) {
	programs := []string{
		"i: 1..3\n    print(i)\n",
		"x: 1\nif (x)\n    print(x)\nelse\n    print(0)\n",
		"f: fn(x)\n    if (x)\n        print(x)\n    print(0)\n",
		"print(1)\n",
	}
	for _, src := range programs {
		toks, err := lexer.New(src).Scan()
		require.NoError(t, err, "lexing %q", src)
		balance := 0
		for _, tk := range toks {
			switch tk.TokenType {
			case token.INDENT:
				balance++
			case token.DEDENT:
				balance--
			}
		}
		assert.Zero(t, balance, "indent/dedent imbalance in %q", src)
	}
}

// TestProperty3CompilerStackDisciplineIsBalanced exercises invariant 3:
// compiling a single top-level statement from an empty stack and running
// it to completion leaves the VM's operand stack empty again, for a
// battery of statement shapes chosen at random from a small grammar.
func TestProperty3CompilerStackDisciplineIsBalanced(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	exprs := []string{
		"1", "1 + 2", "1 + 2 * 3", `"a" + 1`, "1 == 2", "true && false",
		"[1, 2, 3]", "{a: 1, b: 2}", "1..4",
	}
	stmts := []func() string{
		func() string { return "print(" + exprs[rng.Intn(len(exprs))] + ")" },
		func() string { return exprs[rng.Intn(len(exprs))] },
		func() string { return "x: " + exprs[rng.Intn(len(exprs))] },
	}
	for i := 0; i < 20; i++ {
		src := stmts[rng.Intn(len(stmts))]()
		statements := parseSource(t, src)
		comp := compiler.New(nil, nil, nil)
		chunk, errs := comp.Compile(statements)
		require.Empty(t, errs, "compiling %q: %v", src, errs)

		_, machine := runChunk(t, chunk)
		_, ok := machine.Peek()
		assert.False(t, ok, "stack not empty after running %q", src)
	}
}

// TestProperty4JumpArithmeticMatchesLandingSite exercises invariant 4:
// every forward jump's 2-byte operand equals the byte distance from
// right after the operand to the instruction it lands on.
func TestProperty4JumpArithmeticMatchesLandingSite(t *testing.T) {
	src := "x: 1\nif (x)\n    print(1)\nelse\n    print(2)\n"
	statements := parseSource(t, src)
	comp := compiler.New(nil, nil, nil)
	chunk, errs := comp.Compile(statements)
	require.Empty(t, errs)

	code := chunk.Code
	starts := map[int]bool{}
	landings := map[int]int{} // operand site -> landing
	for ip := 0; ip < len(code); {
		starts[ip] = true
		op := bytecode.Opcode(code[ip])
		def, err := bytecode.Get(op)
		require.NoError(t, err, "opcode %d at %d", op, ip)
		width := 0
		for _, w := range def.OperandWidths {
			width += w
		}
		if op == bytecode.OpJump || op == bytecode.OpJumpIfFalse {
			site := ip + 1
			offset := bytecode.ReadUint16(code, site)
			landing := site + 2 + int(offset)
			assert.LessOrEqual(t, landing, len(code), "jump at %d lands past chunk end", site)
			landings[site] = landing
		}
		ip += 1 + width
	}
	for site, landing := range landings {
		assert.True(t, starts[landing], "jump at %d lands at %d, which is not the start of an instruction", site, landing)
	}
}

// TestProperty6RoundTripEncodeDecode exercises invariant 6: encoding and
// decoding a chunk of plain-data constants reproduces it byte-for-byte in
// code and structurally in constants.
func TestProperty6RoundTripEncodeDecode(t *testing.T) {
	programs := []string{
		`print(1 + 2)`,
		`print("hi" + 1)`,
		`print([1, 2, 3])`,
		`print(true)`,
		`x: 1.5`,
	}
	for _, src := range programs {
		statements := parseSource(t, src)
		comp := compiler.New(nil, nil, nil)
		chunk, errs := comp.Compile(statements)
		require.Empty(t, errs, "compiling %q: %v", src, errs)

		encoded := bytecode.Encode(chunk)
		decoded, err := bytecode.Decode(encoded)
		require.NoError(t, err, "decoding %q", src)

		assert.Equal(t, []byte(chunk.Code), []byte(decoded.Code), "code mismatch for %q", src)
		require.Equal(t, len(chunk.Constants), len(decoded.Constants), "constant count mismatch for %q", src)
		for i := range chunk.Constants {
			assert.Equal(t, chunk.Constants[i].ToDisplayString(), decoded.Constants[i].ToDisplayString(), "constant %d mismatch for %q", i, src)
		}
	}
}

// TestProperty7LetImmutabilityVsVarMutability covers invariant 7 directly
// (S2 already covers the let half end to end; this adds the var half).
func TestProperty7LetImmutabilityVsVarMutability(t *testing.T) {
	out := runSource(t, "var x: 1\nx = 2\nprint(x)")
	assert.Equal(t, "2\n", out)
}

// TestProperty8ObjectKeyOrderSurvivesOverwrite covers invariant 8: key
// insertion order is preserved, and overwriting a key doesn't move it.
func TestProperty8ObjectKeyOrderSurvivesOverwrite(t *testing.T) {
	out := runSource(t, `o: {a: 1, b: 2}
o.a = 99
print(o)`)
	// The object's display form lists keys in insertion order; overwriting
	// "a" must not move it after "b".
	assert.True(t, strings.Index(out, "a") < strings.Index(out, "b"), "expected a before b in %q", out)
}

// TestProperty9MixinPrecedence covers invariant 9 directly: a child's own
// key wins over a mixed-in one, but an absent own key still resolves to
// the mixin's.
func TestProperty9MixinPrecedence(t *testing.T) {
	out := runSource(t, `a: {p: 1}
b: {:[a], p: 2}
print(b.p)`)
	assert.Equal(t, "2\n", out)

	out = runSource(t, `a: {p: 1}
b: {:[a]}
print(b.p)`)
	assert.Equal(t, "1\n", out)
}

// TestVMAgreesWithInterpreterOracle spot-checks a handful of programs
// against the tree-walking reference oracle, confirming the compiled and
// interpreted execution paths agree on stdout for every feature S1-S6
// exercises.
func TestVMAgreesWithInterpreterOracle(t *testing.T) {
	programs := []string{
		`print(1 + 2 * 3)`,
		"obj: {a: {b: 1}}\nobj.a.b = 42\nprint(obj.a.b)",
		`base: {greet: "hi", name: "base"}
child: {:[base], name: "child"}
print(child.greet)
print(child.name)`,
		"sum: 0\ni: 1..5\n    sum = sum + i\nprint(sum)",
		`print("n=" + 3)`,
	}
	for _, src := range programs {
		vmOut := runSource(t, src)

		statements := parseSource(t, src)
		interp := interpreter.New(nil, nil, func(source string) ([]ast.Stmt, []error) {
			toks, err := lexer.New(source).Scan()
			if err != nil {
				return nil, []error{err}
			}
			return parser.Make(toks, nil).Parse()
		})
		var buf strings.Builder
		interp.SetOutput(&buf)
		require.NoError(t, interp.Run(statements), "interpreting %q", src)

		assert.Equal(t, vmOut, buf.String(), "VM and interpreter disagree on %q", src)
	}
}

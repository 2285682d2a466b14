package compiler

import (
	"testing"

	"github.com/simondevenish/Ember/ast"
	"github.com/simondevenish/Ember/bytecode"
	"github.com/simondevenish/Ember/token"
	"github.com/simondevenish/Ember/vm"
)

func assertCode(t *testing.T, got bytecode.Instructions, want []byte) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("code length: got %d, want %d (got=%v want=%v)", len(got), len(want), got, want)
	}
	for i, b := range want {
		if got[i] != b {
			t.Errorf("code[%d]: got %d, want %d", i, got[i], b)
		}
	}
}

func tok(tt token.TokenType, lexeme string) token.Token {
	return token.CreateToken(tt, lexeme, 1, 1)
}

func TestCompileLiteralAndPop(t *testing.T) {
	c := New(nil, nil, nil)
	chunk, errs := c.Compile([]ast.Stmt{
		ast.ExpressionStmt{Expression: ast.Literal{Value: int64(5)}},
	})
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	assertCode(t, chunk.Code, []byte{
		byte(bytecode.OpLoadConst), 0,
		byte(bytecode.OpPop),
		byte(bytecode.OpEof),
	})
}

func TestCompileBinaryAdd(t *testing.T) {
	c := New(nil, nil, nil)
	chunk, errs := c.Compile([]ast.Stmt{
		ast.ExpressionStmt{Expression: ast.Binary{
			Left:     ast.Literal{Value: int64(2)},
			Operator: tok(token.ADD, "+"),
			Right:    ast.Literal{Value: int64(3)},
		}},
	})
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	assertCode(t, chunk.Code, []byte{
		byte(bytecode.OpLoadConst), 0,
		byte(bytecode.OpLoadConst), 1,
		byte(bytecode.OpAdd),
		byte(bytecode.OpPop),
		byte(bytecode.OpEof),
	})
}

func TestCompileVarDeclBindsAndLoads(t *testing.T) {
	c := New(nil, nil, nil)
	_, errs := c.Compile([]ast.Stmt{
		ast.VarDecl{Name: tok(token.IDENTIFIER, "x"), Initializer: ast.Literal{Value: int64(1)}, Kind: ast.DeclVar, Mutable: true},
		ast.ExpressionStmt{Expression: ast.Variable{Name: tok(token.IDENTIFIER, "x")}},
	})
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

// TestLetIsImmutable covers the invariant that assigning to a `let`
// binding is a compile-time error.
func TestLetIsImmutable(t *testing.T) {
	c := New(nil, nil, nil)
	_, errs := c.Compile([]ast.Stmt{
		ast.VarDecl{Name: tok(token.IDENTIFIER, "x"), Initializer: ast.Literal{Value: int64(1)}, Kind: ast.DeclLet, Mutable: false},
		ast.ExpressionStmt{Expression: ast.Assign{Name: tok(token.IDENTIFIER, "x"), Value: ast.Literal{Value: int64(2)}}},
	})
	if len(errs) == 0 {
		t.Fatal("expected an error assigning to a let binding, got none")
	}
}

// TestUndefinedVariableIsAnError ensures referencing an unbound name fails
// at compile time rather than being deferred to the VM.
func TestUndefinedVariableIsAnError(t *testing.T) {
	c := New(nil, nil, nil)
	_, errs := c.Compile([]ast.Stmt{
		ast.ExpressionStmt{Expression: ast.Variable{Name: tok(token.IDENTIFIER, "nope")}},
	})
	if len(errs) == 0 {
		t.Fatal("expected an error referencing an undefined variable, got none")
	}
}

// TestIfJumpPatchesToEnd verifies the forward jump's 2-byte operand
// equals the byte distance from right after the operand to the jump's
// landing site (the jump-patching invariant every control-flow construct
// relies on).
func TestIfJumpPatchesToEnd(t *testing.T) {
	c := New(nil, nil, nil)
	chunk, errs := c.Compile([]ast.Stmt{
		ast.If{
			Condition: ast.Literal{Value: true},
			Then:      ast.ExpressionStmt{Expression: ast.Literal{Value: int64(1)}},
		},
	})
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	// load-const(cond) ; jump-if-false -> landing ; load-const(1) ; pop ;
	// jump -> landing ; <landing> ; eof
	jumpIfFalseSite := 3 // right after OpLoadConst(2 bytes) + the OpJumpIfFalse opcode byte
	offset := bytecode.ReadUint16(chunk.Code, jumpIfFalseSite)
	landing := jumpIfFalseSite + 2 + int(offset)
	if landing != len(chunk.Code)-1 {
		t.Errorf("jump-if-false should land right before OP_EOF: landing=%d, want %d", landing, len(chunk.Code)-1)
	}
}

func TestCompileWhileLoopsBackward(t *testing.T) {
	c := New(nil, nil, nil)
	chunk, errs := c.Compile([]ast.Stmt{
		ast.While{
			Condition: ast.Literal{Value: true},
			Body:      ast.Break{},
		},
	})
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	found := false
	for _, b := range chunk.Code {
		if bytecode.Opcode(b) == bytecode.OpLoop {
			found = true
		}
	}
	if !found {
		t.Error("expected a loop (backward jump) instruction in a while body")
	}
}

func TestObjectLiteralStackIsBalanced(t *testing.T) {
	c := New(nil, nil, nil)
	chunk, errs := c.Compile([]ast.Stmt{
		ast.ExpressionStmt{Expression: ast.ObjectLiteral{
			Keys:   []string{"a"},
			Values: []ast.Expression{ast.Literal{Value: int64(1)}},
		}},
	})
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	// new-object ; load-const("a") ; load-const(1) ; set-property ; pop ; eof
	assertCode(t, chunk.Code, []byte{
		byte(bytecode.OpNewObject),
		byte(bytecode.OpLoadConst), 0,
		byte(bytecode.OpLoadConst), 1,
		byte(bytecode.OpSetProperty),
		byte(bytecode.OpPop),
		byte(bytecode.OpEof),
	})
}

// TestRangeExpressionMaterializesAsArray covers a Range used outside
// naked-iterator position, which must compile to a single OpMakeRange
// consuming both bounds rather than leaving them stranded under an
// empty OpNewArray.
func TestRangeExpressionMaterializesAsArray(t *testing.T) {
	c := New(nil, nil, nil)
	chunk, errs := c.Compile([]ast.Stmt{
		ast.VarDecl{
			Name:        tok(token.IDENTIFIER, "r"),
			Initializer: ast.Range{Start: ast.Literal{Value: int64(1)}, End: ast.Literal{Value: int64(3)}},
			Kind:        ast.DeclImplicit,
			Mutable:     true,
		},
	})
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	assertCode(t, chunk.Code, []byte{
		byte(bytecode.OpLoadConst), 0,
		byte(bytecode.OpLoadConst), 1,
		byte(bytecode.OpMakeRange),
		byte(bytecode.OpStoreVar), 0, 0,
		byte(bytecode.OpPop),
		byte(bytecode.OpEof),
	})
}

func TestBreakOutsideLoopIsAnError(t *testing.T) {
	c := New(nil, nil, nil)
	_, errs := c.Compile([]ast.Stmt{ast.Break{}})
	if len(errs) == 0 {
		t.Fatal("expected an error for break outside a loop, got none")
	}
}

func TestCallUndefinedFunctionIsAnError(t *testing.T) {
	c := New(nil, nil, nil)
	_, errs := c.Compile([]ast.Stmt{
		ast.ExpressionStmt{Expression: ast.Call{Callee: tok(token.IDENTIFIER, "nope")}},
	})
	if len(errs) == 0 {
		t.Fatal("expected an error calling an undefined function, got none")
	}
}

// TestReturnOutsideFunctionIsAnError covers VisitReturn's guard against a
// bare top-level `return`, which has no call frame to unwind.
func TestReturnOutsideFunctionIsAnError(t *testing.T) {
	c := New(nil, nil, nil)
	_, errs := c.Compile([]ast.Stmt{
		ast.Return{Value: ast.Literal{Value: int64(1)}},
	})
	if len(errs) == 0 {
		t.Fatal("expected an error returning outside a function, got none")
	}
}

func TestNamedFunctionIsCallable(t *testing.T) {
	c := New(nil, nil, nil)
	_, errs := c.Compile([]ast.Stmt{
		ast.VarDecl{
			Name: tok(token.IDENTIFIER, "f"),
			Initializer: ast.FunctionDef{
				Params: []token.Token{tok(token.IDENTIFIER, "x")},
				Body:   ast.Block{Statements: []ast.Stmt{ast.ExpressionStmt{Expression: ast.Literal{Value: int64(1)}}}},
			},
		},
		ast.ExpressionStmt{Expression: ast.Call{
			Callee: tok(token.IDENTIFIER, "f"),
			Args:   []ast.Expression{ast.Literal{Value: int64(7)}},
		}},
	})
	if len(errs) > 0 {
		t.Fatalf("unexpected errors calling a declared function: %v", errs)
	}
}

// TestReturnYieldsCallersValue compiles `double: fn(x) return x + x`,
// binds the call result to a global, and confirms the bound value is the
// one the return statement computed, not the function-body's always-null
// fallback.
func TestReturnYieldsCallersValue(t *testing.T) {
	c := New(nil, nil, nil)
	chunk, errs := c.Compile([]ast.Stmt{
		ast.VarDecl{
			Name: tok(token.IDENTIFIER, "double"),
			Initializer: ast.FunctionDef{
				Params: []token.Token{tok(token.IDENTIFIER, "x")},
				Body: ast.Block{Statements: []ast.Stmt{
					ast.Return{Value: ast.Binary{
						Left:     ast.Variable{Name: tok(token.IDENTIFIER, "x")},
						Operator: tok(token.ADD, "+"),
						Right:    ast.Variable{Name: tok(token.IDENTIFIER, "x")},
					}},
				}},
			},
		},
		ast.VarDecl{
			Name: tok(token.IDENTIFIER, "result"),
			Initializer: ast.Call{
				Callee: tok(token.IDENTIFIER, "double"),
				Args:   []ast.Expression{ast.Literal{Value: int64(21)}},
			},
			Kind: ast.DeclVar, Mutable: true,
		},
	})
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	machine := vm.New(chunk)
	if err := machine.Run(); err != nil {
		t.Fatalf("Run() error: %s", err)
	}
	// "double" occupies global slot 0, "result" slot 1.
	if got := machine.GlobalAt(1).AsNumber(); got != 42 {
		t.Errorf("double(21): got %v, want 42", got)
	}
}

// Package compiler walks an Ember AST once and emits a bytecode.Chunk: a
// flat instruction stream plus a parallel constant pool, following the
// jump-patching and scope-table shape of Nilan's ast_compiler.go (its
// sibling compiler.go carries a second, divergent and incomplete
// ASTCompiler that this package does not build on, per DESIGN.md).
package compiler

import (
	"context"
	"fmt"

	"github.com/simondevenish/Ember/ast"
	"github.com/simondevenish/Ember/bytecode"
	"github.com/simondevenish/Ember/module"
	"github.com/simondevenish/Ember/symboltable"
	"github.com/simondevenish/Ember/token"
	"github.com/simondevenish/Ember/value"
)

// FileLoader reads the source of a local `.ember` import for inline
// compilation (spec §4.4 import handling).
type FileLoader func(path string) (string, error)

// ProgramParser parses source text into statements, used by the compiler
// to recursively compile a `.ember` import into the current chunk. It is
// satisfied by a thin adapter over lexer.New(...).Scan() + parser.Make.
type ProgramParser func(source string) ([]ast.Stmt, []error)

type loopFrame struct {
	isFor         bool
	loopStart     int   // ip to jump back to on loop (and on continue, for while)
	breakSites    []int // forward-jump patch sites, patched at loop exit
	continueSites []int // isFor loops (for, naked iterators): forward-jump patch sites, patched at the increment
}

// Compiler lowers a parsed program into a single bytecode.Chunk.
type Compiler struct {
	chunk   *bytecode.Chunk
	globals *symboltable.Table
	locals  *symboltable.Table // non-nil only while compiling a function body

	funcIndex map[string]int // function name -> chunk.Functions index

	iterCounter int // gives each collection-form naked iterator unique synthetic slot names

	loops []loopFrame

	resolver *module.Loader
	loadFile FileLoader
	parse    ProgramParser

	registryImportFailure string // first unresolved registry import path found by the Compile pre-pass, if any

	errors []error
}

// New creates a Compiler. resolver/loadFile/parse may be nil if the
// program under compilation never imports anything.
func New(resolver *module.Loader, loadFile FileLoader, parse ProgramParser) *Compiler {
	return &Compiler{
		chunk:     &bytecode.Chunk{},
		globals:   symboltable.NewGlobal(),
		funcIndex: make(map[string]int),
		resolver:  resolver,
		loadFile:  loadFile,
		parse:     parse,
	}
}

// Compile lowers program into a chunk, returning every compile error
// encountered. Unlike parse errors, a non-empty error slice means
// compilation aborted (spec §7 propagation policy: compile errors are
// terminal).
func (c *Compiler) Compile(program []ast.Stmt) (*bytecode.Chunk, []error) {
	if paths := collectRegistryImports(program); len(paths) > 0 {
		failed, err := c.resolver.ResolveAll(context.Background(), paths)
		if err != nil {
			c.fail(DeveloperError{Message: fmt.Sprintf("validating imports: %s", err)})
			return nil, c.errors
		}
		c.registryImportFailure = failed
	}

	for _, stmt := range program {
		c.compileStmt(stmt)
		if len(c.errors) > 0 {
			return nil, c.errors
		}
	}
	c.emit(bytecode.OpEof)
	return c.chunk, nil
}

// collectRegistryImports walks program (recursing into every nested block
// and control-flow body, since an import can appear anywhere a statement
// can) and returns the path string of every non-`.ember` import, for a
// single batched module.Loader.ResolveAll call instead of one Resolve per
// import statement.
func collectRegistryImports(stmts []ast.Stmt) []string {
	var paths []string
	var walk func(ast.Stmt)
	walk = func(s ast.Stmt) {
		switch n := s.(type) {
		case ast.Import:
			if !hasSuffix(n.PathString, ".ember") {
				paths = append(paths, n.PathString)
			}
		case ast.Block:
			for _, inner := range n.Statements {
				walk(inner)
			}
		case ast.If:
			walk(n.Then)
			if n.Else != nil {
				walk(n.Else)
			}
		case ast.While:
			walk(n.Body)
		case ast.For:
			if n.Init != nil {
				walk(n.Init)
			}
			walk(n.Body)
		case ast.NakedIterator:
			walk(n.Body)
		case ast.Switch:
			for _, cs := range n.Cases {
				walk(cs.Body)
			}
		}
	}
	for _, stmt := range stmts {
		walk(stmt)
	}
	return paths
}

func (c *Compiler) fail(err error) {
	c.errors = append(c.errors, err)
}

func (c *Compiler) semantic(format string, args ...any) {
	c.fail(SemanticError{Message: fmt.Sprintf(format, args...)})
}

// scope returns the symbol table names currently resolve against: the
// function-local table while compiling a body, otherwise globals.
func (c *Compiler) scope() *symboltable.Table {
	if c.locals != nil {
		return c.locals
	}
	return c.globals
}

func (c *Compiler) emit(op bytecode.Opcode, operands ...int) int {
	ip := len(c.chunk.Code)
	c.chunk.Code = append(c.chunk.Code, bytecode.Make(op, operands...)...)
	return ip
}

// emitJump emits a forward jump with a placeholder offset and returns the
// site (the position of its 2-byte operand) for later patchJump.
func (c *Compiler) emitJump(op bytecode.Opcode) int {
	c.emit(op, 0xFFFF)
	return len(c.chunk.Code) - 2
}

// patchJump overwrites the placeholder at site so the jump lands at the
// current end of the chunk (spec invariant 4).
func (c *Compiler) patchJump(site int) {
	end := site + 2
	offset := len(c.chunk.Code) - end
	bytecode.PatchUint16(c.chunk.Code, site, uint16(offset))
}

// emitLoop emits a backward jump to loopStart.
func (c *Compiler) emitLoop(loopStart int) {
	site := len(c.chunk.Code) + 1
	end := site + 2
	offset := end - loopStart
	c.emit(bytecode.OpLoop, offset)
}

func (c *Compiler) addConstant(v value.Value) int {
	return c.chunk.AddConstant(v)
}

// ---- statements ----

func (c *Compiler) compileStmt(s ast.Stmt) {
	s.Accept(c)
}

func (c *Compiler) VisitExpressionStmt(e ast.ExpressionStmt) any {
	c.compileExpr(e.Expression)
	c.emit(bytecode.OpPop)
	return nil
}

func (c *Compiler) VisitVarDecl(v ast.VarDecl) any {
	name := v.Name.Lexeme

	if fn, ok := v.Initializer.(ast.FunctionDef); ok {
		c.compileNamedFunction(name, fn)
		return nil
	}

	if v.Initializer != nil {
		c.compileExpr(v.Initializer)
	} else {
		c.emitNullConstant()
	}

	sym, err := c.scope().DeclareVariable(name, v.Mutable)
	if err != nil {
		c.semantic("%s", err.Error())
		return nil
	}
	c.emit(bytecode.OpStoreVar, sym.Slot)
	c.emit(bytecode.OpPop)
	return nil
}

// compileNamedFunction compiles `name: fn(params) body` into the function
// table and binds name to it, per the Open Question resolution in
// SPEC_FULL.md (a dedicated function table, not an IP-as-Number constant).
// The binding lives in the enclosing scope (c.scope(), matching the
// generic VisitVarDecl path below), not always the global table, so a
// named function declared inside a function body doesn't collide with an
// unrelated same-named helper declared inside another function. The slot
// is also actually populated with the Function value, so referencing the
// name as a first-class value (passed around, stored, printed) sees the
// function rather than the slot's zero-value Null.
func (c *Compiler) compileNamedFunction(name string, fn ast.FunctionDef) {
	idx := c.compileFunctionBody(name, fn)

	sym, err := c.scope().DeclareVariable(name, false)
	if err != nil {
		c.semantic("%s", err.Error())
		return
	}
	c.funcIndex[name] = idx

	meta := c.chunk.Functions[idx]
	fnValue := &value.Func{Name: meta.Name, TableIndex: idx}
	for _, p := range fn.Params {
		fnValue.Params = append(fnValue.Params, p.Lexeme)
	}
	c.emit(bytecode.OpLoadConst, c.addConstant(value.NewFunction(fnValue)))
	c.emit(bytecode.OpStoreVar, sym.Slot)
	c.emit(bytecode.OpPop)
}

// compileFunctionBody emits `jump -> SKIP`, the function body inline in
// the current chunk, and `return`, registering a FunctionMeta entry.
// Returns the new entry's index in chunk.Functions.
func (c *Compiler) compileFunctionBody(name string, fn ast.FunctionDef) int {
	skip := c.emitJump(bytecode.OpJump)
	entry := len(c.chunk.Code)

	outerLocals := c.locals
	c.locals = symboltable.NewLocal()
	for i, p := range fn.Params {
		c.locals.DeclareParam(p.Lexeme, i)
	}
	outerLoops := c.loops
	c.loops = nil

	c.compileStmt(fn.Body)
	c.emitNullConstant()
	c.emit(bytecode.OpReturn)

	c.loops = outerLoops
	c.locals = outerLocals
	c.patchJump(skip)

	idx := len(c.chunk.Functions)
	c.chunk.Functions = append(c.chunk.Functions, bytecode.FunctionMeta{
		Name: name, ParamCount: len(fn.Params), EntryIP: entry,
	})
	return idx
}

func (c *Compiler) emitNullConstant() {
	c.emit(bytecode.OpLoadConst, c.addConstant(value.NewNull()))
}

func (c *Compiler) VisitIf(i ast.If) any {
	c.compileExpr(i.Condition)
	elseJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.compileStmt(i.Then)
	endJump := c.emitJump(bytecode.OpJump)
	c.patchJump(elseJump)
	if i.Else != nil {
		c.compileStmt(i.Else)
	}
	c.patchJump(endJump)
	return nil
}

func (c *Compiler) VisitWhile(w ast.While) any {
	loopStart := len(c.chunk.Code)
	c.compileExpr(w.Condition)
	endJump := c.emitJump(bytecode.OpJumpIfFalse)

	c.loops = append(c.loops, loopFrame{loopStart: loopStart})
	c.compileStmt(w.Body)
	frame := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]

	c.emitLoop(loopStart)
	c.patchJump(endJump)
	for _, site := range frame.breakSites {
		c.patchJump(site)
	}
	return nil
}

func (c *Compiler) VisitFor(f ast.For) any {
	if f.Init != nil {
		c.compileStmt(f.Init)
	}
	loopStart := len(c.chunk.Code)

	var endJump int
	hasCond := f.Cond != nil
	if hasCond {
		c.compileExpr(f.Cond)
		endJump = c.emitJump(bytecode.OpJumpIfFalse)
	}

	c.loops = append(c.loops, loopFrame{isFor: true, loopStart: loopStart})
	c.compileStmt(f.Body)
	frame := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]

	for _, site := range frame.continueSites {
		c.patchJump(site)
	}
	if f.Incr != nil {
		c.compileExpr(f.Incr)
		c.emit(bytecode.OpPop)
	}
	c.emitLoop(loopStart)
	if hasCond {
		c.patchJump(endJump)
	}
	for _, site := range frame.breakSites {
		c.patchJump(site)
	}
	return nil
}

// VisitNakedIterator lowers `name: a..b <block>` to the equivalent
// `for` per spec §4.4; the array/variable form drives an index counter
// over the collection's length, binding the loop variable to each value
// (arrays) or each key (objects).
func (c *Compiler) VisitNakedIterator(n ast.NakedIterator) any {
	if rng, ok := n.Iterable.(ast.Range); ok {
		c.compileRangeIterator(n, rng)
		return nil
	}
	c.compileCollectionIterator(n)
	return nil
}

func (c *Compiler) compileRangeIterator(n ast.NakedIterator, rng ast.Range) {
	sym, err := c.scope().DeclareVariable(n.Variable.Lexeme, true)
	if err != nil {
		c.semantic("%s", err.Error())
		return
	}
	c.compileExpr(rng.Start)
	c.emit(bytecode.OpStoreVar, sym.Slot)
	c.emit(bytecode.OpPop)

	loopStart := len(c.chunk.Code)
	c.emit(bytecode.OpLoadVar, sym.Slot)
	c.compileExpr(rng.End)
	c.emit(bytecode.OpLe)
	endJump := c.emitJump(bytecode.OpJumpIfFalse)

	c.loops = append(c.loops, loopFrame{isFor: true, loopStart: loopStart})
	c.compileStmt(n.Body)
	frame := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	for _, site := range frame.continueSites {
		c.patchJump(site)
	}

	c.emit(bytecode.OpLoadVar, sym.Slot)
	c.emit(bytecode.OpLoadConst, c.addConstant(value.NewNumber(1)))
	c.emit(bytecode.OpAdd)
	c.emit(bytecode.OpStoreVar, sym.Slot)
	c.emit(bytecode.OpPop)

	c.emitLoop(loopStart)
	c.patchJump(endJump)
	for _, site := range frame.breakSites {
		c.patchJump(site)
	}
}

func (c *Compiler) compileCollectionIterator(n ast.NakedIterator) {
	c.iterCounter++
	collName := fmt.Sprintf("$iter_coll%d", c.iterCounter)
	idxName := fmt.Sprintf("$iter_idx%d", c.iterCounter)

	collSym, err := c.scope().DeclareVariable(collName, true)
	if err != nil {
		c.semantic("%s", err.Error())
		return
	}
	idxSym, err := c.scope().DeclareVariable(idxName, true)
	if err != nil {
		c.semantic("%s", err.Error())
		return
	}
	varSym, err := c.scope().DeclareVariable(n.Variable.Lexeme, true)
	if err != nil {
		c.semantic("%s", err.Error())
		return
	}

	c.compileExpr(n.Iterable)
	c.emit(bytecode.OpStoreVar, collSym.Slot)
	c.emit(bytecode.OpPop)
	c.emit(bytecode.OpLoadConst, c.addConstant(value.NewNumber(0)))
	c.emit(bytecode.OpStoreVar, idxSym.Slot)
	c.emit(bytecode.OpPop)

	loopStart := len(c.chunk.Code)
	c.emit(bytecode.OpLoadVar, idxSym.Slot)
	c.emit(bytecode.OpLoadVar, collSym.Slot)
	c.emit(bytecode.OpLen)
	c.emit(bytecode.OpLt)
	endJump := c.emitJump(bytecode.OpJumpIfFalse)

	c.emit(bytecode.OpLoadVar, idxSym.Slot)
	c.emit(bytecode.OpLoadVar, collSym.Slot)
	c.emit(bytecode.OpGetIndex)
	c.emit(bytecode.OpStoreVar, varSym.Slot)
	c.emit(bytecode.OpPop)

	c.loops = append(c.loops, loopFrame{isFor: true, loopStart: loopStart})
	c.compileStmt(n.Body)
	frame := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	for _, site := range frame.continueSites {
		c.patchJump(site)
	}

	c.emit(bytecode.OpLoadVar, idxSym.Slot)
	c.emit(bytecode.OpLoadConst, c.addConstant(value.NewNumber(1)))
	c.emit(bytecode.OpAdd)
	c.emit(bytecode.OpStoreVar, idxSym.Slot)
	c.emit(bytecode.OpPop)

	c.emitLoop(loopStart)
	c.patchJump(endJump)
	for _, site := range frame.breakSites {
		c.patchJump(site)
	}
}

func (c *Compiler) VisitSwitch(s ast.Switch) any {
	subjSym, err := c.scope().DeclareVariable("$switch_subject", true)
	if err != nil {
		c.semantic("%s", err.Error())
		return nil
	}
	c.compileExpr(s.Subject)
	c.emit(bytecode.OpStoreVar, subjSym.Slot)
	c.emit(bytecode.OpPop)

	var endJumps []int
	for _, cs := range s.Cases {
		if cs.Value == nil { // default: always falls through to its body
			c.compileStmt(cs.Body)
			continue
		}
		c.emit(bytecode.OpLoadVar, subjSym.Slot)
		c.compileExpr(cs.Value)
		c.emit(bytecode.OpEq)
		nextCase := c.emitJump(bytecode.OpJumpIfFalse)
		c.compileStmt(cs.Body)
		endJumps = append(endJumps, c.emitJump(bytecode.OpJump))
		c.patchJump(nextCase)
	}
	for _, j := range endJumps {
		c.patchJump(j)
	}
	return nil
}

func (c *Compiler) VisitBlock(b ast.Block) any {
	for _, stmt := range b.Statements {
		c.compileStmt(stmt)
		if len(c.errors) > 0 {
			return nil
		}
	}
	return nil
}

func (c *Compiler) VisitImport(i ast.Import) any {
	if hasSuffix(i.PathString, ".ember") {
		if c.loadFile == nil || c.parse == nil {
			c.semantic("cannot load local import %q: no file loader configured", i.PathString)
			return nil
		}
		src, err := c.loadFile(i.PathString)
		if err != nil {
			c.semantic("import %q: %s", i.PathString, err)
			return nil
		}
		stmts, parseErrs := c.parse(src)
		if len(parseErrs) > 0 {
			c.semantic("import %q: %s", i.PathString, parseErrs[0])
			return nil
		}
		for _, stmt := range stmts {
			c.compileStmt(stmt)
		}
		return nil
	}

	// Resolution already ran for every registry import in the program as
	// one batched Compile-time pre-pass (collectRegistryImports +
	// ResolveAll); this only needs to check whether this particular path
	// was the one ResolveAll reported as not installed.
	if i.PathString == c.registryImportFailure {
		c.semantic("unresolved import %q", i.PathString)
	}
	return nil
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

// VisitReturn compiles an early `return`/`return expr`. Unlike break/continue
// it needs no jump patching: OpReturn unwinds the current call frame from
// wherever it executes, using the return address the call site recorded.
func (c *Compiler) VisitReturn(r ast.Return) any {
	if c.locals == nil {
		c.semantic("'return' outside of a function")
		return nil
	}
	if r.Value != nil {
		c.compileExpr(r.Value)
	} else {
		c.emitNullConstant()
	}
	c.emit(bytecode.OpReturn)
	return nil
}

func (c *Compiler) VisitBreak(b ast.Break) any {
	if len(c.loops) == 0 {
		c.semantic("'break' outside of a loop")
		return nil
	}
	site := c.emitJump(bytecode.OpJump)
	top := len(c.loops) - 1
	c.loops[top].breakSites = append(c.loops[top].breakSites, site)
	return nil
}

func (c *Compiler) VisitContinue(cont ast.Continue) any {
	if len(c.loops) == 0 {
		c.semantic("'continue' outside of a loop")
		return nil
	}
	top := len(c.loops) - 1
	frame := &c.loops[top]
	if frame.isFor {
		site := c.emitJump(bytecode.OpJump)
		frame.continueSites = append(frame.continueSites, site)
	} else {
		c.emitLoop(frame.loopStart)
	}
	return nil
}

// ---- expressions ----

func (c *Compiler) compileExpr(e ast.Expression) {
	e.Accept(c)
}

func (c *Compiler) VisitLiteral(lit ast.Literal) any {
	c.emit(bytecode.OpLoadConst, c.addConstant(literalToValue(lit.Value)))
	return nil
}

func literalToValue(v any) value.Value {
	switch t := v.(type) {
	case nil:
		return value.NewNull()
	case bool:
		return value.NewBoolean(t)
	case int64:
		return value.NewNumber(float64(t))
	case float64:
		return value.NewNumber(t)
	case string:
		return value.NewString(t)
	default:
		return value.NewNull()
	}
}

func (c *Compiler) VisitVariable(v ast.Variable) any {
	if v.Name.Lexeme == "this" {
		c.emit(bytecode.OpLoadVar, symboltable.ThisSlot)
		return nil
	}
	sym, ok := c.scope().Resolve(v.Name.Lexeme)
	if !ok {
		sym, ok = c.globals.Resolve(v.Name.Lexeme)
	}
	if !ok {
		c.semantic("undefined variable %q", v.Name.Lexeme)
		return nil
	}
	c.emit(bytecode.OpLoadVar, sym.Slot)
	return nil
}

func (c *Compiler) VisitUnary(u ast.Unary) any {
	c.compileExpr(u.Right)
	switch u.Operator.TokenType {
	case token.SUB:
		c.emit(bytecode.OpNeg)
	case token.BANG:
		c.emit(bytecode.OpNot)
	default:
		c.semantic("unsupported unary operator %q", u.Operator.Lexeme)
	}
	return nil
}

func (c *Compiler) VisitBinary(b ast.Binary) any {
	switch b.Operator.TokenType {
	case token.AND:
		c.compileShortCircuit(b, false)
		return nil
	case token.OR:
		c.compileShortCircuit(b, true)
		return nil
	}

	c.compileExpr(b.Left)
	c.compileExpr(b.Right)
	switch b.Operator.TokenType {
	case token.ADD:
		c.emit(bytecode.OpAdd)
	case token.SUB:
		c.emit(bytecode.OpSub)
	case token.MULT:
		c.emit(bytecode.OpMul)
	case token.DIV:
		c.emit(bytecode.OpDiv)
	case token.MOD:
		c.emit(bytecode.OpMod)
	case token.EQUAL_EQUAL:
		c.emit(bytecode.OpEq)
	case token.NOT_EQUAL:
		c.emit(bytecode.OpNeq)
	case token.LESS:
		c.emit(bytecode.OpLt)
	case token.LARGER:
		c.emit(bytecode.OpGt)
	case token.LESS_EQUAL:
		c.emit(bytecode.OpLe)
	case token.LARGER_EQUAL:
		c.emit(bytecode.OpGe)
	default:
		c.semantic("unsupported binary operator %q", b.Operator.Lexeme)
	}
	return nil
}

// compileShortCircuit standardizes && and || on jump-based short-circuit,
// per SPEC_FULL.md's Open Question resolution: no dedicated AND/OR
// opcodes. `a || b` skips evaluating b when a is already truthy; `a && b`
// skips evaluating b when a is already falsy, in both cases leaving
// whichever side determined the outcome on the stack.
func (c *Compiler) compileShortCircuit(b ast.Binary, isOr bool) {
	c.compileExpr(b.Left)
	c.emit(bytecode.OpDup)
	var shortCircuitJump int
	if isOr {
		shortCircuitJump = c.emitJump(bytecode.OpJumpIfFalse)
		end := c.emitJump(bytecode.OpJump)
		c.patchJump(shortCircuitJump)
		c.emit(bytecode.OpPop)
		c.compileExpr(b.Right)
		c.patchJump(end)
		return
	}
	shortCircuitJump = c.emitJump(bytecode.OpJumpIfFalse)
	c.emit(bytecode.OpPop)
	c.compileExpr(b.Right)
	end := c.emitJump(bytecode.OpJump)
	c.patchJump(shortCircuitJump)
	c.patchJump(end)
}

func (c *Compiler) VisitAssign(a ast.Assign) any {
	if a.Name.Lexeme == "this" {
		c.semantic("cannot assign to 'this'")
		return nil
	}
	if !c.scope().IsMutable(a.Name.Lexeme) && !c.globals.IsMutable(a.Name.Lexeme) {
		c.semantic("cannot assign to immutable %q", a.Name.Lexeme)
		return nil
	}
	sym, ok := c.scope().Resolve(a.Name.Lexeme)
	if !ok {
		sym, ok = c.globals.Resolve(a.Name.Lexeme)
	}
	if !ok {
		c.semantic("undefined variable %q", a.Name.Lexeme)
		return nil
	}
	c.compileExpr(a.Value)
	c.emit(bytecode.OpStoreVar, sym.Slot)
	return nil
}

func (c *Compiler) VisitCall(call ast.Call) any {
	name := call.Callee.Lexeme
	if name == "print" {
		for _, arg := range call.Args {
			c.compileExpr(arg)
		}
		c.emit(bytecode.OpPrint, len(call.Args))
		c.emitNullConstant()
		return nil
	}

	idx, ok := c.funcIndex[name]
	if !ok {
		c.semantic("undefined function %q", name)
		return nil
	}
	meta := c.chunk.Functions[idx]
	if len(call.Args) != meta.ParamCount {
		c.semantic("function %q expects %d argument(s), got %d", name, meta.ParamCount, len(call.Args))
		return nil
	}
	for i := len(call.Args) - 1; i >= 0; i-- {
		c.compileExpr(call.Args[i])
	}
	c.emit(bytecode.OpCall, idx, len(call.Args))
	return nil
}

func (c *Compiler) VisitArrayLiteral(a ast.ArrayLiteral) any {
	c.emit(bytecode.OpNewArray)
	for _, el := range a.Elements {
		c.compileExpr(el)
		c.emit(bytecode.OpArrayPush)
	}
	return nil
}

func (c *Compiler) VisitIndexAccess(i ast.IndexAccess) any {
	c.compileExpr(i.Collection)
	c.compileExpr(i.Index)
	c.emit(bytecode.OpGetIndex)
	return nil
}

func (c *Compiler) VisitObjectLiteral(o ast.ObjectLiteral) any {
	c.emit(bytecode.OpNewObject)
	for _, mixin := range o.Mixins {
		sym, ok := c.scope().Resolve(mixin.Lexeme)
		if !ok {
			sym, ok = c.globals.Resolve(mixin.Lexeme)
		}
		if !ok {
			c.semantic("undefined mixin %q", mixin.Lexeme)
			return nil
		}
		c.emit(bytecode.OpLoadVar, sym.Slot)
		c.emit(bytecode.OpCopyProperties)
	}
	for i, key := range o.Keys {
		c.emit(bytecode.OpLoadConst, c.addConstant(value.NewString(key)))
		c.compileExpr(o.Values[i])
		c.emit(bytecode.OpSetProperty)
	}
	return nil
}

func (c *Compiler) VisitPropertyAccess(p ast.PropertyAccess) any {
	c.compileExpr(p.Object)
	c.emit(bytecode.OpLoadConst, c.addConstant(value.NewString(p.Name.Lexeme)))
	c.emit(bytecode.OpGetProperty)
	return nil
}

// VisitMethodCall compiles `object.method(args...)`: the receiver is
// duplicated (one copy for property lookup, one kept underneath for
// call-method to bind as `this`), per spec §4.4.
func (c *Compiler) VisitMethodCall(m ast.MethodCall) any {
	c.compileExpr(m.Object)
	c.emit(bytecode.OpDup)
	c.emit(bytecode.OpLoadConst, c.addConstant(value.NewString(m.Method.Lexeme)))
	c.emit(bytecode.OpGetProperty)
	for _, arg := range m.Args {
		c.compileExpr(arg)
	}
	c.emit(bytecode.OpCallMethod, len(m.Args))
	return nil
}

// VisitPropertyAssign compiles `a.p = v` directly to set-property, and a
// nested chain `a.b.c = v` by flattening the receiver's property chain
// into a dotted path for set-nested-property, per spec §4.4.
func (c *Compiler) VisitPropertyAssign(p ast.PropertyAssign) any {
	if nested, path, ok := flattenPropertyChain(p.Target); ok {
		c.compileExpr(nested)
		c.emit(bytecode.OpLoadConst, c.addConstant(value.NewString(path)))
		c.compileExpr(p.Value)
		c.emit(bytecode.OpSetNestedProperty)
		return nil
	}
	c.compileExpr(p.Target.Object)
	c.emit(bytecode.OpLoadConst, c.addConstant(value.NewString(p.Target.Name.Lexeme)))
	c.compileExpr(p.Value)
	c.emit(bytecode.OpSetProperty)
	return nil
}

// flattenPropertyChain recognizes a nested PropertyAccess chain
// (a.b.c) and returns the root expression (a) and the dotted path
// ("b.c"). ok is false for a single-level access (a.p), which the caller
// compiles with plain set-property instead.
func flattenPropertyChain(target ast.PropertyAccess) (root ast.Expression, path string, ok bool) {
	inner, isNested := target.Object.(ast.PropertyAccess)
	if !isNested {
		return nil, "", false
	}
	segments := []string{target.Name.Lexeme}
	cur := inner
	for {
		segments = append([]string{cur.Name.Lexeme}, segments...)
		if next, isNested := cur.Object.(ast.PropertyAccess); isNested {
			cur = next
			continue
		}
		break
	}
	joined := segments[0]
	for _, s := range segments[1:] {
		joined += "." + s
	}
	return cur.Object, joined, true
}

func (c *Compiler) VisitRange(r ast.Range) any {
	c.compileExpr(r.Start)
	c.compileExpr(r.End)
	c.emit(bytecode.OpMakeRange) // ranges used outside a naked iterator materialize as an array
	return nil
}

func (c *Compiler) VisitFunctionDef(f ast.FunctionDef) any {
	idx := c.compileFunctionBody("", f)
	meta := c.chunk.Functions[idx]
	fn := &value.Func{Name: meta.Name, TableIndex: idx}
	for _, p := range f.Params {
		fn.Params = append(fn.Params, p.Lexeme)
	}
	c.emit(bytecode.OpLoadConst, c.addConstant(value.NewFunction(fn)))
	return nil
}

// Package interpreter is a tree-walking evaluator kept as a reference
// oracle: it re-implements the same value/eq/mixin/receiver semantics the
// compiler and VM implement as bytecode, so a test can run a program both
// ways and compare results. It follows Nilan's interpreter/interpreter.go
// shape (a visitor over the AST, panic/recover for control flow and
// errors) generalized from Nilan's int/float/string/bool/nil `any` values
// to Ember's value.Value, and completed where Nilan's own tree-walker was
// left with an unfinished Environment.assign.
package interpreter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/simondevenish/Ember/ast"
	"github.com/simondevenish/Ember/module"
	"github.com/simondevenish/Ember/token"
	"github.com/simondevenish/Ember/value"
)

// FileLoader reads the source of a local `.ember` import, mirroring the
// compiler's hook of the same shape.
type FileLoader func(path string) (string, error)

// ProgramParser parses source into top-level statements, mirroring the
// compiler's hook of the same shape.
type ProgramParser func(source string) ([]ast.Stmt, []error)

// closure pairs a function's AST body with the environment it closed
// over, letting a user-defined function see its defining scope (and
// itself, for recursion) when called later.
type closure struct {
	name string
	def  ast.FunctionDef
	env  *Environment
}

// control-flow signals propagate via panic/recover, same mechanism Nilan
// uses for runtime errors (interpreter.go's VisitBlockStmt/Interpret),
// generalized to also unwind loops and function calls.
type breakSignal struct{}
type continueSignal struct{}
type returnSignal struct{ value value.Value }

// Interpreter walks a parsed program directly, without compiling it.
type Interpreter struct {
	env *Environment
	out io.Writer

	resolver *module.Loader
	loadFile FileLoader
	parse    ProgramParser
}

// New constructs an Interpreter. resolver/loadFile/parse may be nil if the
// program being interpreted has no imports.
func New(resolver *module.Loader, loadFile FileLoader, parse ProgramParser) *Interpreter {
	return &Interpreter{
		env:      MakeEnvironment(),
		out:      os.Stdout,
		resolver: resolver,
		loadFile: loadFile,
		parse:    parse,
	}
}

// SetOutput redirects `print`'s destination, for capturing output in tests.
func (i *Interpreter) SetOutput(w io.Writer) { i.out = w }

// Run executes statements against a fresh root scope, returning the first
// runtime error encountered (runtime errors are terminal for a run, per
// spec §7's propagation policy, same as the VM).
func (i *Interpreter) Run(statements []ast.Stmt) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = toError(r)
		}
	}()
	i.executeStatements(statements)
	return nil
}

func toError(r any) error {
	switch sig := r.(type) {
	case RuntimeError:
		return sig
	case error:
		return sig
	case breakSignal:
		return RuntimeError{Message: "'break' outside of a loop"}
	case continueSignal:
		return RuntimeError{Message: "'continue' outside of a loop"}
	case returnSignal:
		return RuntimeError{Message: "'return' outside of a function"}
	default:
		return fmt.Errorf("%v", r)
	}
}

func (i *Interpreter) executeStatements(statements []ast.Stmt) {
	for _, s := range statements {
		i.executeStmt(s)
	}
}

func (i *Interpreter) executeStmt(stmt ast.Stmt) { stmt.Accept(i) }

func (i *Interpreter) evaluate(expr ast.Expression) value.Value {
	return expr.Accept(i).(value.Value)
}

func (i *Interpreter) fail(line int32, column int, format string, args ...any) {
	panic(RuntimeError{Line: line, Column: column, Message: fmt.Sprintf(format, args...)})
}

// --- statements ---

func (i *Interpreter) VisitBlock(b ast.Block) any {
	previous := i.env
	i.env = MakeNestedEnvironment(previous)
	defer func() { i.env = previous }()
	i.executeStatements(b.Statements)
	return nil
}

func (i *Interpreter) VisitExpressionStmt(e ast.ExpressionStmt) any {
	i.evaluate(e.Expression)
	return nil
}

func (i *Interpreter) VisitVarDecl(v ast.VarDecl) any {
	if fn, ok := v.Initializer.(ast.FunctionDef); ok {
		i.env.declare(v.Name.Lexeme, value.NewNull(), true) // bind before closing over, for recursion
		fnVal := i.makeClosure(v.Name.Lexeme, fn)
		i.env.declare(v.Name.Lexeme, fnVal, false)
		return nil
	}
	val := value.NewNull()
	if v.Initializer != nil {
		val = i.evaluate(v.Initializer)
	}
	i.env.declare(v.Name.Lexeme, val, v.Mutable)
	return nil
}

func (i *Interpreter) VisitIf(s ast.If) any {
	if i.evaluate(s.Condition).IsTruthy() {
		i.executeStmt(s.Then)
	} else if s.Else != nil {
		i.executeStmt(s.Else)
	}
	return nil
}

func (i *Interpreter) VisitWhile(w ast.While) any {
	for i.evaluate(w.Condition).IsTruthy() {
		if i.runLoopBody(w.Body) {
			break
		}
	}
	return nil
}

func (i *Interpreter) VisitFor(f ast.For) any {
	previous := i.env
	i.env = MakeNestedEnvironment(previous)
	defer func() { i.env = previous }()

	if f.Init != nil {
		i.executeStmt(f.Init)
	}
	for f.Cond == nil || i.evaluate(f.Cond).IsTruthy() {
		if i.runLoopBody(f.Body) {
			break
		}
		if f.Incr != nil {
			i.evaluate(f.Incr)
		}
	}
	return nil
}

// runLoopBody executes a loop body, absorbing a continueSignal and
// reporting whether a breakSignal propagated out (meaning the caller
// should stop looping).
func (i *Interpreter) runLoopBody(body ast.Stmt) (brokeOut bool) {
	defer func() {
		if r := recover(); r != nil {
			switch r.(type) {
			case breakSignal:
				brokeOut = true
			case continueSignal:
				// absorbed: the loop's own condition/increment runs next
			default:
				panic(r)
			}
		}
	}()
	i.executeStmt(body)
	return false
}

func (i *Interpreter) VisitNakedIterator(n ast.NakedIterator) any {
	previous := i.env
	i.env = MakeNestedEnvironment(previous)
	defer func() { i.env = previous }()

	if rng, ok := n.Iterable.(ast.Range); ok {
		start := i.evaluate(rng.Start)
		end := i.evaluate(rng.End)
		i.env.declare(n.Variable.Lexeme, start, true)
		for v := start.AsNumber(); v <= end.AsNumber(); v++ {
			i.env.values[n.Variable.Lexeme] = value.NewNumber(v)
			if i.runLoopBody(n.Body) {
				break
			}
		}
		return nil
	}

	coll := i.evaluate(n.Iterable)
	switch coll.Kind {
	case value.Array:
		i.env.declare(n.Variable.Lexeme, value.NewNull(), true)
		for _, elem := range coll.Elements() {
			i.env.values[n.Variable.Lexeme] = elem
			if i.runLoopBody(n.Body) {
				break
			}
		}
	case value.Object:
		i.env.declare(n.Variable.Lexeme, value.NewNull(), true)
		for _, key := range coll.Keys() {
			i.env.values[n.Variable.Lexeme] = value.NewString(key)
			if i.runLoopBody(n.Body) {
				break
			}
		}
	default:
		line, col := n.Pos()
		i.fail(line, col, "cannot iterate a %s", coll.Kind)
	}
	return nil
}

func (i *Interpreter) VisitSwitch(s ast.Switch) any {
	subject := i.evaluate(s.Subject)
	for _, c := range s.Cases {
		if c.Value == nil {
			i.executeStmt(c.Body)
			return nil
		}
		if value.Equal(subject, i.evaluate(c.Value)) {
			i.executeStmt(c.Body)
			return nil
		}
	}
	return nil
}

func (i *Interpreter) VisitImport(im ast.Import) any {
	if hasSuffix(im.PathString, ".ember") {
		if i.loadFile == nil || i.parse == nil {
			line, col := im.Pos()
			i.fail(line, col, "cannot load local import %q: no file loader configured", im.PathString)
		}
		src, err := i.loadFile(im.PathString)
		if err != nil {
			line, col := im.Pos()
			i.fail(line, col, "import %q: %s", im.PathString, err)
		}
		stmts, parseErrs := i.parse(src)
		if len(parseErrs) > 0 {
			line, col := im.Pos()
			i.fail(line, col, "import %q: %s", im.PathString, parseErrs[0])
		}
		i.executeStatements(stmts)
		return nil
	}
	if i.resolver.Resolve(im.PathString) != module.Installed {
		line, col := im.Pos()
		i.fail(line, col, "unresolved import %q", im.PathString)
	}
	return nil
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func (i *Interpreter) VisitReturn(r ast.Return) any {
	val := value.NewNull()
	if r.Value != nil {
		val = i.evaluate(r.Value)
	}
	panic(returnSignal{value: val})
}

func (i *Interpreter) VisitBreak(b ast.Break) any       { panic(breakSignal{}) }
func (i *Interpreter) VisitContinue(c ast.Continue) any { panic(continueSignal{}) }

// --- expressions ---

func (i *Interpreter) VisitLiteral(lit ast.Literal) any {
	return literalToValue(lit.Value)
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

func (i *Interpreter) VisitVariable(v ast.Variable) any {
	val, err := i.env.get(v.Name)
	if err != nil {
		panic(err)
	}
	return val
}

func (i *Interpreter) VisitUnary(u ast.Unary) any {
	right := i.evaluate(u.Right)
	line, col := u.Pos()
	switch u.Operator.TokenType {
	case token.SUB:
		if right.Kind != value.Number {
			i.fail(line, col, "cannot negate a %s", right.Kind)
		}
		return value.NewNumber(-right.AsNumber())
	case token.BANG:
		return value.NewBoolean(!right.IsTruthy())
	default:
		i.fail(line, col, "unsupported unary operator %q", u.Operator.Lexeme)
		return value.NewNull()
	}
}

func (i *Interpreter) VisitBinary(b ast.Binary) any {
	switch b.Operator.TokenType {
	case token.AND:
		left := i.evaluate(b.Left)
		if !left.IsTruthy() {
			return left
		}
		return i.evaluate(b.Right)
	case token.OR:
		left := i.evaluate(b.Left)
		if left.IsTruthy() {
			return left
		}
		return i.evaluate(b.Right)
	}

	left := i.evaluate(b.Left)
	right := i.evaluate(b.Right)
	line, col := b.Pos()

	switch b.Operator.TokenType {
	case token.ADD:
		if left.Kind == value.String || right.Kind == value.String {
			return value.NewString(left.ToDisplayString() + right.ToDisplayString())
		}
		a, c := i.numericPair(left, right, line, col)
		return value.NewNumber(a + c)
	case token.SUB:
		a, c := i.numericPair(left, right, line, col)
		return value.NewNumber(a - c)
	case token.MULT:
		a, c := i.numericPair(left, right, line, col)
		return value.NewNumber(a * c)
	case token.DIV:
		a, c := i.numericPair(left, right, line, col)
		if c == 0 {
			i.fail(line, col, "division by zero")
		}
		return value.NewNumber(a / c)
	case token.MOD:
		a, c := i.numericPair(left, right, line, col)
		if c == 0 {
			i.fail(line, col, "modulo by zero")
		}
		return value.NewNumber(float64(int64(a) % int64(c)))
	case token.EQUAL_EQUAL:
		return value.NewBoolean(value.Equal(left, right))
	case token.NOT_EQUAL:
		return value.NewBoolean(!value.Equal(left, right))
	case token.LESS:
		a, c := i.numericPair(left, right, line, col)
		return value.NewBoolean(a < c)
	case token.LESS_EQUAL:
		a, c := i.numericPair(left, right, line, col)
		return value.NewBoolean(a <= c)
	case token.LARGER:
		a, c := i.numericPair(left, right, line, col)
		return value.NewBoolean(a > c)
	case token.LARGER_EQUAL:
		a, c := i.numericPair(left, right, line, col)
		return value.NewBoolean(a >= c)
	default:
		i.fail(line, col, "unsupported binary operator %q", b.Operator.Lexeme)
		return value.NewNull()
	}
}

func (i *Interpreter) numericPair(left, right value.Value, line int32, col int) (float64, float64) {
	if left.Kind != value.Number || right.Kind != value.Number {
		i.fail(line, col, "operands must be numbers, got %s and %s", left.Kind, right.Kind)
	}
	return left.AsNumber(), right.AsNumber()
}

func (i *Interpreter) VisitAssign(a ast.Assign) any {
	val := i.evaluate(a.Value)
	result, err := i.env.assign(a.Name, val)
	if err != nil {
		panic(err)
	}
	return result
}

func (i *Interpreter) VisitCall(c ast.Call) any {
	if c.Callee.Lexeme == "print" {
		parts := make([]string, len(c.Args))
		for idx, arg := range c.Args {
			parts[idx] = i.evaluate(arg).ToDisplayString()
		}
		fmt.Fprintln(i.out, strings.Join(parts, " "))
		return value.NewNull()
	}

	callee, err := i.env.get(c.Callee)
	if err != nil {
		panic(err)
	}
	args := make([]value.Value, len(c.Args))
	for idx, a := range c.Args {
		args[idx] = i.evaluate(a)
	}
	line, col := c.Pos()
	return i.call(callee, args, nil, line, col)
}

// call invokes callee (a built-in or a user-defined closure) with args,
// binding receiver as `this` when present — the same rule the VM applies,
// realized here as an extra environment binding rather than a dedicated
// stack slot.
func (i *Interpreter) call(callee value.Value, args []value.Value, receiver *value.Value, line int32, col int) value.Value {
	if callee.Kind != value.Function {
		i.fail(line, col, "cannot call a %s", callee.Kind)
	}
	fn := callee.AsFunc()
	if fn.Builtin != nil {
		callArgs := args
		if receiver != nil {
			callArgs = append([]value.Value{*receiver}, args...)
		}
		result, err := fn.Builtin(callArgs)
		if err != nil {
			i.fail(line, col, "%s", err.Error())
		}
		return result
	}

	cl, ok := fn.Body.(*closure)
	if !ok {
		i.fail(line, col, "function %q has no body", fn.Name)
	}
	if len(args) != len(cl.def.Params) {
		i.fail(line, col, "function %q expects %d argument(s), got %d", fn.Name, len(cl.def.Params), len(args))
	}

	callEnv := MakeNestedEnvironment(cl.env)
	for idx, p := range cl.def.Params {
		callEnv.declare(p.Lexeme, args[idx], true)
	}
	if receiver != nil {
		callEnv.declare("this", *receiver, false)
	}

	previous := i.env
	i.env = callEnv
	result := value.NewNull()
	func() {
		defer func() {
			i.env = previous
			if r := recover(); r != nil {
				if rs, ok := r.(returnSignal); ok {
					result = rs.value
					return
				}
				panic(r)
			}
		}()
		i.executeStmt(cl.def.Body)
	}()
	return result
}

func (i *Interpreter) makeClosure(name string, fn ast.FunctionDef) value.Value {
	cl := &closure{name: name, def: fn, env: i.env}
	params := make([]string, len(fn.Params))
	for idx, p := range fn.Params {
		params[idx] = p.Lexeme
	}
	return value.NewFunction(&value.Func{Name: name, Params: params, Body: cl})
}

func (i *Interpreter) VisitFunctionDef(f ast.FunctionDef) any {
	return i.makeClosure("", f)
}

func (i *Interpreter) VisitArrayLiteral(a ast.ArrayLiteral) any {
	elems := make([]value.Value, len(a.Elements))
	for idx, e := range a.Elements {
		elems[idx] = i.evaluate(e)
	}
	return value.NewArray(elems)
}

func (i *Interpreter) VisitIndexAccess(ix ast.IndexAccess) any {
	coll := i.evaluate(ix.Collection)
	idx := i.evaluate(ix.Index)
	line, col := ix.Pos()
	switch coll.Kind {
	case value.Array:
		if idx.Kind != value.Number {
			i.fail(line, col, "array index must be a number")
		}
		elem, found := coll.Index(int(idx.AsNumber()))
		if !found {
			i.fail(line, col, "array index %d out of range", int(idx.AsNumber()))
		}
		return elem
	case value.Object:
		elem, found := coll.GetProperty(idx.AsString())
		if !found {
			return value.NewNull()
		}
		return elem
	default:
		i.fail(line, col, "cannot index a %s", coll.Kind)
		return value.NewNull()
	}
}

func (i *Interpreter) VisitObjectLiteral(o ast.ObjectLiteral) any {
	obj := value.NewObject()
	for _, mixin := range o.Mixins {
		mv, err := i.env.get(mixin)
		if err != nil {
			panic(err)
		}
		if mv.Kind != value.Object {
			line, col := o.Pos()
			i.fail(line, col, "mixin %q is not an object", mixin.Lexeme)
		}
		for _, k := range mv.Keys() {
			v, _ := mv.GetProperty(k)
			obj.SetProperty(k, v)
		}
	}
	for idx, key := range o.Keys {
		obj.SetProperty(key, i.evaluate(o.Values[idx]))
	}
	return obj
}

func (i *Interpreter) VisitPropertyAccess(p ast.PropertyAccess) any {
	obj := i.evaluate(p.Object)
	line, col := p.Pos()
	if obj.Kind != value.Object {
		i.fail(line, col, "cannot read a property of a %s", obj.Kind)
	}
	v, found := obj.GetProperty(p.Name.Lexeme)
	if !found {
		return value.NewNull()
	}
	return v
}

func (i *Interpreter) VisitMethodCall(m ast.MethodCall) any {
	obj := i.evaluate(m.Object)
	line, col := m.Pos()
	if obj.Kind != value.Object {
		i.fail(line, col, "cannot call a method on a %s", obj.Kind)
	}
	methodVal, found := obj.GetProperty(m.Method.Lexeme)
	if !found {
		i.fail(line, col, "undefined method %q", m.Method.Lexeme)
	}
	args := make([]value.Value, len(m.Args))
	for idx, a := range m.Args {
		args[idx] = i.evaluate(a)
	}
	return i.call(methodVal, args, &obj, line, col)
}

func (i *Interpreter) VisitPropertyAssign(p ast.PropertyAssign) any {
	root, path, ok := i.flattenPropertyChain(p.Target)
	if !ok {
		line, col := p.Pos()
		i.fail(line, col, "invalid assignment target")
	}
	rootVal := i.evaluate(root)
	line, col := p.Pos()
	if rootVal.Kind != value.Object {
		i.fail(line, col, "cannot set a property on a %s", rootVal.Kind)
	}
	val := i.evaluate(p.Value)
	setNestedProperty(rootVal, path, val)
	return val
}

// flattenPropertyChain mirrors the compiler's flattenPropertyChain,
// turning a nested PropertyAccess target into its root expression and a
// dotted path string.
func (i *Interpreter) flattenPropertyChain(target ast.PropertyAccess) (ast.Expression, string, bool) {
	path := target.Name.Lexeme
	cur := target
	for {
		if obj, ok := cur.Object.(ast.PropertyAccess); ok {
			path = obj.Name.Lexeme + "." + path
			cur = obj
			continue
		}
		break
	}
	return cur.Object, path, true
}

func setNestedProperty(root value.Value, path string, val value.Value) {
	segments := strings.Split(path, ".")
	cur := root
	for idx, seg := range segments {
		if idx == len(segments)-1 {
			cur.SetProperty(seg, val)
			return
		}
		next, found := cur.GetProperty(seg)
		if !found || next.Kind != value.Object {
			next = value.NewObject()
			cur.SetProperty(seg, next)
		}
		cur = next
	}
}

func (i *Interpreter) VisitRange(r ast.Range) any {
	start := i.evaluate(r.Start)
	end := i.evaluate(r.End)
	line, col := r.Pos()
	if start.Kind != value.Number || end.Kind != value.Number {
		i.fail(line, col, "range bounds must be numbers")
	}
	var elems []value.Value
	for v := start.AsNumber(); v <= end.AsNumber(); v++ {
		elems = append(elems, value.NewNumber(v))
	}
	return value.NewArray(elems)
}

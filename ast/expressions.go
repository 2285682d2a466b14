// expressions.go contains every expression AST node. An expression always
// evaluates to a value.
package ast

import "github.com/simondevenish/Ember/token"

// Literal is a number, string, boolean, or null constant.
type Literal struct {
	pos
	Value any
}

func (l Literal) Accept(v ExpressionVisitor) any { return v.VisitLiteral(l) }

// Variable is a read of a previously bound name.
type Variable struct {
	pos
	Name token.Token
}

func (e Variable) Accept(v ExpressionVisitor) any { return v.VisitVariable(e) }

// Unary is a prefix operator applied to one operand (`-x`, `!x`).
type Unary struct {
	pos
	Operator token.Token
	Right    Expression
}

func (u Unary) Accept(v ExpressionVisitor) any { return v.VisitUnary(u) }

// Binary is an infix operator applied to two operands, including `&&`/`||`,
// which the compiler lowers to short-circuit jumps rather than a dedicated
// opcode.
type Binary struct {
	pos
	Left     Expression
	Operator token.Token
	Right    Expression
}

func (b Binary) Accept(v ExpressionVisitor) any { return v.VisitBinary(b) }

// Assign is a variable assignment expression (`x = v`). Per spec §4.4 it
// leaves the assigned value on the stack, so it is an expression, not a
// statement.
type Assign struct {
	pos
	Name  token.Token
	Value Expression
}

func (a Assign) Accept(v ExpressionVisitor) any { return v.VisitAssign(a) }

// Call is a function-call expression, `callee(args...)`.
type Call struct {
	pos
	Callee token.Token
	Args   []Expression
}

func (c Call) Accept(v ExpressionVisitor) any { return v.VisitCall(c) }

// ArrayLiteral is `[e1, e2, ...]`.
type ArrayLiteral struct {
	pos
	Elements []Expression
}

func (a ArrayLiteral) Accept(v ExpressionVisitor) any { return v.VisitArrayLiteral(a) }

// IndexAccess is `collection[index]`.
type IndexAccess struct {
	pos
	Collection Expression
	Index      Expression
}

func (i IndexAccess) Accept(v ExpressionVisitor) any { return v.VisitIndexAccess(i) }

// ObjectLiteral is `{ :[Mixin1, Mixin2], key: value, ... }`. Mixins are
// copied into the new object before the literal's own properties, in
// source order, so an explicit property overrides a mixin's.
type ObjectLiteral struct {
	pos
	Mixins []token.Token
	Keys   []string
	Values []Expression
}

func (o ObjectLiteral) Accept(v ExpressionVisitor) any { return v.VisitObjectLiteral(o) }

// PropertyAccess is `object.name`. Chained accesses (`a.b.c`) nest:
// PropertyAccess{Object: PropertyAccess{Object: a, Name: b}, Name: c}.
type PropertyAccess struct {
	pos
	Object Expression
	Name   token.Token
}

func (p PropertyAccess) Accept(v ExpressionVisitor) any { return v.VisitPropertyAccess(p) }

// MethodCall is `object.method(args...)`.
type MethodCall struct {
	pos
	Object Expression
	Method token.Token
	Args   []Expression
}

func (m MethodCall) Accept(v ExpressionVisitor) any { return v.VisitMethodCall(m) }

// PropertyAssign is `target.name = value`, where Target is the
// PropertyAccess chain naming the location being assigned. The compiler
// flattens a nested Target.Object into a dotted path and emits
// set-nested-property; a single-level Target emits set-property.
type PropertyAssign struct {
	pos
	Target PropertyAccess
	Value  Expression
}

func (p PropertyAssign) Accept(v ExpressionVisitor) any { return v.VisitPropertyAssign(p) }

// Range is `start..end`, used directly as an iterable in a naked iterator
// and as a general expression elsewhere.
type Range struct {
	pos
	Start Expression
	End   Expression
}

func (r Range) Accept(v ExpressionVisitor) any { return v.VisitRange(r) }

// FunctionDef is a function expression, `fn(params) body`. A named
// function definition (`name: fn(params) body`) is not a distinct AST
// shape: the parser's declaration disambiguation wraps this expression in
// a VarDecl, per spec §4.2.
type FunctionDef struct {
	pos
	Params []token.Token
	Body   Stmt
}

func (f FunctionDef) Accept(v ExpressionVisitor) any { return v.VisitFunctionDef(f) }

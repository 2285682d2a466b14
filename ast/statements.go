// statements.go contains every statement AST node. A statement does not
// itself produce a value (ExpressionStmt discards its expression's value).
package ast

import "github.com/simondevenish/Ember/token"

// ExpressionStmt evaluates an expression and discards the result (the
// compiler always emits a trailing pop, per spec invariant 5).
type ExpressionStmt struct {
	pos
	Expression Expression
}

func (e ExpressionStmt) Accept(v StmtVisitor) any { return v.VisitExpressionStmt(e) }

// VarDecl is the single AST shape backing all three surface declaration
// forms (`var name = expr`, `let name: expr`, `name: expr`), distinguished
// by Kind and Mutable.
type VarDecl struct {
	pos
	Name        token.Token
	Initializer Expression // nil for `var name` with no initializer
	Kind        DeclKind
	Mutable     bool
}

func (vd VarDecl) Accept(v StmtVisitor) any { return v.VisitVarDecl(vd) }

// If is `if (cond) Then [else Else]`. Else may itself be an If (else-if
// chain) or nil.
type If struct {
	pos
	Condition Expression
	Then      Stmt
	Else      Stmt
}

func (i If) Accept(v StmtVisitor) any { return v.VisitIf(i) }

// While is `while (cond) Body`.
type While struct {
	pos
	Condition Expression
	Body      Stmt
}

func (w While) Accept(v StmtVisitor) any { return v.VisitWhile(w) }

// For is the C-style `for (init?; cond?; incr?) Body`. Any of Init, Cond,
// Incr may be nil.
type For struct {
	pos
	Init Stmt
	Cond Expression
	Incr Expression
	Body Stmt
}

func (f For) Accept(v StmtVisitor) any { return v.VisitFor(f) }

// NakedIterator is `name: iterable <indented block>`, iterating without a
// `for` keyword. Iterable may be a Range, an array expression, or a plain
// variable.
type NakedIterator struct {
	pos
	Variable token.Token
	Iterable Expression
	Body     Stmt
}

func (n NakedIterator) Accept(v StmtVisitor) any { return v.VisitNakedIterator(n) }

// SwitchCase is one `case value: body` arm of a Switch. A nil Value marks
// the `default` arm, which must be last if present.
type SwitchCase struct {
	Value Expression
	Body  Stmt
}

// Switch compares Subject against each case's value (any expression) with `eq`;
// the first match wins and there is no fallthrough between cases.
type Switch struct {
	pos
	Subject Expression
	Cases   []SwitchCase
}

func (s Switch) Accept(v StmtVisitor) any { return v.VisitSwitch(s) }

// Block is a brace- or indent-delimited sequence of statements.
type Block struct {
	pos
	Statements []Stmt
}

func (b Block) Accept(v StmtVisitor) any { return v.VisitBlock(b) }

// Import is `import path`. PathString is the dotted/slash-joined segment
// chain in literal form, which the compiler uses to decide between a
// local `.ember` include and a registry lookup.
type Import struct {
	pos
	PathString string
}

func (i Import) Accept(v StmtVisitor) any { return v.VisitImport(i) }

// Return exits the innermost enclosing function, yielding Value (or null
// if Value is nil, for a bare `return`).
type Return struct {
	pos
	Value Expression
}

func (r Return) Accept(v StmtVisitor) any { return v.VisitReturn(r) }

// Break exits the innermost enclosing loop.
type Break struct {
	pos
}

func (b Break) Accept(v StmtVisitor) any { return v.VisitBreak(b) }

// Continue jumps to the innermost enclosing loop's increment/condition
// check.
type Continue struct {
	pos
}

func (c Continue) Accept(v StmtVisitor) any { return v.VisitContinue(c) }

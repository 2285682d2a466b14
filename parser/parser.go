// Package parser is a hand-written recursive-descent parser with a
// precedence-climbing loop for binary operators, following Nilan's
// token-cursor shape (peek/previous/advance/isMatch/consume).
package parser

import (
	"fmt"

	"github.com/simondevenish/Ember/ast"
	"github.com/simondevenish/Ember/token"
)

var equalityTokenTypes = []token.TokenType{token.EQUAL_EQUAL, token.NOT_EQUAL}
var comparisonTokenTypes = []token.TokenType{token.LESS, token.LESS_EQUAL, token.LARGER, token.LARGER_EQUAL}
var termTokenTypes = []token.TokenType{token.ADD, token.SUB}
var factorTokenTypes = []token.TokenType{token.MULT, token.DIV, token.MOD}
var unaryTokenTypes = []token.TokenType{token.BANG, token.SUB}

// ErrorCallback receives each diagnostic the parser produces, per spec
// §4.2's injected-callback error model.
type ErrorCallback func(err error)

// Parser turns a token stream into a slice of top-level statements.
type Parser struct {
	tokens   []token.Token
	position int
	onError  ErrorCallback
}

// Make constructs a Parser over tokens, reporting diagnostics to onError
// (may be nil, in which case diagnostics are only returned from Parse).
func Make(tokens []token.Token, onError ErrorCallback) *Parser {
	return &Parser{tokens: tokens, onError: onError}
}

func (p *Parser) peek() token.Token     { return p.tokens[p.position] }
func (p *Parser) previous() token.Token { return p.tokens[p.position-1] }

func (p *Parser) isFinished() bool { return p.peek().TokenType == token.EOF }

func (p *Parser) advance() token.Token {
	if !p.isFinished() {
		p.position++
	}
	return p.previous()
}

func (p *Parser) checkType(tt token.TokenType) bool {
	if p.isFinished() {
		return tt == token.EOF
	}
	return p.peek().TokenType == tt
}

// checkTypeAt looks offset tokens ahead without consuming, clamped to EOF.
func (p *Parser) checkTypeAt(offset int, tt token.TokenType) bool {
	idx := p.position + offset
	if idx >= len(p.tokens) {
		return tt == token.EOF
	}
	return p.tokens[idx].TokenType == tt
}

func (p *Parser) isMatch(types ...token.TokenType) bool {
	for _, tt := range types {
		if p.checkType(tt) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) consume(tt token.TokenType, message string) (token.Token, error) {
	if p.checkType(tt) {
		return p.advance(), nil
	}
	cur := p.peek()
	return token.Token{}, CreateSyntaxError(cur.Line, cur.Column, message)
}

// skipNewlines consumes any run of statement-separator Newline/Semi
// tokens, which are optional between statements per spec §4.2.
func (p *Parser) skipNewlines() {
	for p.isMatch(token.NEWLINE, token.SEMI) {
	}
}

func (p *Parser) report(err error) error {
	if p.onError != nil {
		p.onError(err)
	}
	return err
}

// synchronize recovers from a parse error by skipping tokens until the
// next statement boundary (semicolon, closing brace, newline, or dedent),
// bounding recovery so it cannot recurse unboundedly.
func (p *Parser) synchronize() {
	for !p.isFinished() {
		switch p.previous().TokenType {
		case token.SEMI, token.NEWLINE, token.DEDENT, token.RCUR:
			return
		}
		switch p.peek().TokenType {
		case token.IF, token.WHILE, token.FOR, token.VAR, token.LET, token.CONST,
			token.RETURN, token.BREAK, token.CONTINUE, token.IMPORT, token.SWITCH:
			return
		}
		p.advance()
	}
}

// Parse parses the full token stream into top-level statements, collecting
// every diagnostic rather than stopping at the first one.
func (p *Parser) Parse() ([]ast.Stmt, []error) {
	var statements []ast.Stmt
	var errs []error

	p.skipNewlines()
	for !p.isFinished() {
		stmt, err := p.declaration()
		if err != nil {
			errs = append(errs, err)
			p.synchronize()
			p.skipNewlines()
			continue
		}
		statements = append(statements, stmt)
		p.skipNewlines()
	}
	return statements, errs
}

// declaration dispatches to a var/let/const declaration, an implicit
// `name: expr` declaration, or a general statement.
func (p *Parser) declaration() (ast.Stmt, error) {
	if p.isMatch(token.VAR) {
		return p.varOrLetDeclaration(ast.DeclVar, true)
	}
	if p.isMatch(token.LET, token.CONST) {
		return p.varOrLetDeclaration(ast.DeclLet, false)
	}
	if p.checkType(token.IDENTIFIER) && p.checkTypeAt(1, token.COLON) {
		return p.implicitDeclarationOrIterator()
	}
	return p.statement()
}

// varOrLetDeclaration parses `var name = expr` / `var name: expr` /
// `let name: expr` (and `const` as a let-synonym).
func (p *Parser) varOrLetDeclaration(kind ast.DeclKind, mutable bool) (ast.Stmt, error) {
	name, err := p.consume(token.IDENTIFIER, "expected a variable name")
	if err != nil {
		return nil, p.report(err)
	}

	var initializer ast.Expression
	if p.isMatch(token.ASSIGN, token.COLON) {
		initializer, err = p.expression()
		if err != nil {
			return nil, p.report(err)
		}
	} else if kind == ast.DeclLet {
		return nil, p.report(CreateSyntaxError(name.Line, name.Column, "let declaration requires an initializer"))
	}

	return ast.VarDecl{Name: name, Initializer: initializer, Kind: kind, Mutable: mutable}, nil
}

// implicitDeclarationOrIterator parses `name: expr`, then checks whether
// it's immediately followed by an indented block, in which case it is
// really a naked iterator (`name: iterable <block>`) rather than a plain
// declaration.
func (p *Parser) implicitDeclarationOrIterator() (ast.Stmt, error) {
	name, _ := p.consume(token.IDENTIFIER, "expected a name")
	p.advance() // the colon

	value, err := p.expression()
	if err != nil {
		return nil, p.report(err)
	}

	if p.checkType(token.NEWLINE) && p.checkTypeAt(1, token.INDENT) {
		p.advance() // newline
		body, err := p.block()
		if err != nil {
			return nil, p.report(err)
		}
		return ast.NakedIterator{Variable: name, Iterable: value, Body: body}, nil
	}

	return ast.VarDecl{Name: name, Initializer: value, Kind: ast.DeclImplicit, Mutable: true}, nil
}

// statement parses a single non-declaration statement.
func (p *Parser) statement() (ast.Stmt, error) {
	switch {
	case p.isMatch(token.IF):
		return p.ifStatement()
	case p.isMatch(token.WHILE):
		return p.whileStatement()
	case p.isMatch(token.FOR):
		return p.forStatement()
	case p.isMatch(token.SWITCH):
		return p.switchStatement()
	case p.isMatch(token.IMPORT):
		return p.importStatement()
	case p.isMatch(token.RETURN):
		return p.returnStatement()
	case p.isMatch(token.BREAK):
		return ast.Break{}, nil
	case p.isMatch(token.CONTINUE):
		return ast.Continue{}, nil
	case p.isMatch(token.FIRE):
		tok := p.previous()
		return nil, p.report(CreateSyntaxError(tok.Line, tok.Column, "'fire' is reserved but not yet supported"))
	case p.checkType(token.LCUR):
		return p.block()
	case p.checkType(token.INDENT):
		return p.block()
	}

	expr, err := p.expression()
	if err != nil {
		return nil, p.report(err)
	}
	return ast.ExpressionStmt{Expression: expr}, nil
}

// body parses a statement body: an indented block, a brace block, or (for
// single-line forms) one inline statement.
func (p *Parser) body() (ast.Stmt, error) {
	if p.checkType(token.NEWLINE) && p.checkTypeAt(1, token.INDENT) {
		p.advance()
		return p.block()
	}
	if p.checkType(token.LCUR) {
		return p.block()
	}
	return p.statement()
}

// block parses either an Indent-delimited or a brace-delimited statement
// sequence.
func (p *Parser) block() (ast.Stmt, error) {
	if p.isMatch(token.LCUR) {
		var statements []ast.Stmt
		p.skipNewlines()
		for !p.checkType(token.RCUR) && !p.isFinished() {
			stmt, err := p.declaration()
			if err != nil {
				return nil, err
			}
			statements = append(statements, stmt)
			p.skipNewlines()
		}
		if _, err := p.consume(token.RCUR, "expected '}' to close block"); err != nil {
			return nil, p.report(err)
		}
		return ast.Block{Statements: statements}, nil
	}

	if _, err := p.consume(token.INDENT, "expected an indented block"); err != nil {
		return nil, p.report(err)
	}
	var statements []ast.Stmt
	p.skipNewlines()
	for !p.checkType(token.DEDENT) && !p.isFinished() {
		stmt, err := p.declaration()
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
		p.skipNewlines()
	}
	if _, err := p.consume(token.DEDENT, "expected dedent to close block"); err != nil {
		return nil, p.report(err)
	}
	return ast.Block{Statements: statements}, nil
}

// parenCondition parses a condition expression, optionally wrapped in
// parentheses (`if (cond)` and `if cond` both parse).
func (p *Parser) parenCondition() (ast.Expression, error) {
	if p.isMatch(token.LPA) {
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.RPA, "expected ')' after condition"); err != nil {
			return nil, p.report(err)
		}
		return cond, nil
	}
	return p.expression()
}

func (p *Parser) ifStatement() (ast.Stmt, error) {
	cond, err := p.parenCondition()
	if err != nil {
		return nil, p.report(err)
	}
	then, err := p.body()
	if err != nil {
		return nil, err
	}
	var elseStmt ast.Stmt
	mark := p.position
	p.skipNewlines()
	if p.isMatch(token.ELSE) {
		if p.isMatch(token.IF) {
			elseStmt, err = p.ifStatement()
		} else {
			elseStmt, err = p.body()
		}
		if err != nil {
			return nil, err
		}
	} else {
		p.position = mark
	}
	return ast.If{Condition: cond, Then: then, Else: elseStmt}, nil
}

func (p *Parser) whileStatement() (ast.Stmt, error) {
	cond, err := p.parenCondition()
	if err != nil {
		return nil, p.report(err)
	}
	stmt, err := p.body()
	if err != nil {
		return nil, err
	}
	return ast.While{Condition: cond, Body: stmt}, nil
}

// forStatement parses the C-style `for (init?; cond?; incr?) body`.
func (p *Parser) forStatement() (ast.Stmt, error) {
	if _, err := p.consume(token.LPA, "expected '(' after 'for'"); err != nil {
		return nil, p.report(err)
	}

	var init ast.Stmt
	if !p.checkType(token.SEMI) {
		var err error
		init, err = p.declaration()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.consume(token.SEMI, "expected ';' after for-loop initializer"); err != nil {
		return nil, p.report(err)
	}

	var cond ast.Expression
	if !p.checkType(token.SEMI) {
		var err error
		cond, err = p.expression()
		if err != nil {
			return nil, p.report(err)
		}
	}
	if _, err := p.consume(token.SEMI, "expected ';' after for-loop condition"); err != nil {
		return nil, p.report(err)
	}

	var incr ast.Expression
	if !p.checkType(token.RPA) {
		var err error
		incr, err = p.expression()
		if err != nil {
			return nil, p.report(err)
		}
	}
	if _, err := p.consume(token.RPA, "expected ')' after for-loop clauses"); err != nil {
		return nil, p.report(err)
	}

	body, err := p.body()
	if err != nil {
		return nil, err
	}
	return ast.For{Init: init, Cond: cond, Incr: incr, Body: body}, nil
}

func (p *Parser) switchStatement() (ast.Stmt, error) {
	subject, err := p.parenCondition()
	if err != nil {
		return nil, p.report(err)
	}
	if _, err := p.consume(token.LCUR, "expected '{' to open switch body"); err != nil {
		return nil, p.report(err)
	}
	p.skipNewlines()

	var cases []ast.SwitchCase
	for !p.checkType(token.RCUR) && !p.isFinished() {
		if p.isMatch(token.CASE) {
			value, err := p.expression()
			if err != nil {
				return nil, p.report(err)
			}
			if _, err := p.consume(token.COLON, "expected ':' after case value"); err != nil {
				return nil, p.report(err)
			}
			body, err := p.caseBody()
			if err != nil {
				return nil, err
			}
			cases = append(cases, ast.SwitchCase{Value: value, Body: body})
		} else if p.isMatch(token.DEFAULT) {
			if _, err := p.consume(token.COLON, "expected ':' after default"); err != nil {
				return nil, p.report(err)
			}
			body, err := p.caseBody()
			if err != nil {
				return nil, err
			}
			cases = append(cases, ast.SwitchCase{Value: nil, Body: body})
		} else {
			cur := p.peek()
			return nil, p.report(CreateSyntaxError(cur.Line, cur.Column, "expected 'case' or 'default' in switch body"))
		}
		p.skipNewlines()
	}
	if _, err := p.consume(token.RCUR, "expected '}' to close switch body"); err != nil {
		return nil, p.report(err)
	}
	return ast.Switch{Subject: subject, Cases: cases}, nil
}

// caseBody collects statements up to the next case/default/closing brace;
// Ember's switch cases never fall through.
func (p *Parser) caseBody() (ast.Stmt, error) {
	var statements []ast.Stmt
	p.skipNewlines()
	for !p.checkType(token.CASE) && !p.checkType(token.DEFAULT) && !p.checkType(token.RCUR) && !p.isFinished() {
		stmt, err := p.declaration()
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
		p.skipNewlines()
	}
	return ast.Block{Statements: statements}, nil
}

// returnStatement parses `return` or `return expr`; a bare `return` is
// recognized by the statement-boundary token that follows it.
func (p *Parser) returnStatement() (ast.Stmt, error) {
	if p.atStatementEnd() {
		return ast.Return{}, nil
	}
	value, err := p.expression()
	if err != nil {
		return nil, p.report(err)
	}
	return ast.Return{Value: value}, nil
}

// atStatementEnd reports whether the parser is positioned at a token that
// ends a statement without needing an explicit value, used to distinguish
// a bare `return` from `return expr`.
func (p *Parser) atStatementEnd() bool {
	switch p.peek().TokenType {
	case token.NEWLINE, token.SEMI, token.DEDENT, token.RCUR, token.EOF:
		return true
	}
	return false
}

func (p *Parser) importStatement() (ast.Stmt, error) {
	first, err := p.consume(token.IDENTIFIER, "expected an import path")
	if err != nil {
		return nil, p.report(err)
	}
	path := first.Lexeme
	for p.checkType(token.DOT) || p.checkType(token.DIV) {
		sep := p.advance()
		seg, err := p.consume(token.IDENTIFIER, "expected a path segment after import separator")
		if err != nil {
			return nil, p.report(err)
		}
		path += sep.Lexeme + seg.Lexeme
	}
	return ast.Import{PathString: path}, nil
}

// --- expressions ---

func (p *Parser) expression() (ast.Expression, error) {
	return p.assignment()
}

func (p *Parser) assignment() (ast.Expression, error) {
	expr, err := p.rangeExpr()
	if err != nil {
		return nil, err
	}
	if p.isMatch(token.ASSIGN) {
		eq := p.previous()
		value, err := p.assignment()
		if err != nil {
			return nil, err
		}
		switch target := expr.(type) {
		case ast.Variable:
			return ast.Assign{Name: target.Name, Value: value}, nil
		case ast.PropertyAccess:
			return ast.PropertyAssign{Target: target, Value: value}, nil
		default:
			return nil, p.report(CreateSyntaxError(eq.Line, eq.Column, "invalid assignment target"))
		}
	}
	return expr, nil
}

// rangeExpr parses `start..end`, binding looser than `||` so ranges can
// appear directly as a naked-iterator's iterable.
func (p *Parser) rangeExpr() (ast.Expression, error) {
	left, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.isMatch(token.RANGE) {
		right, err := p.or()
		if err != nil {
			return nil, err
		}
		return ast.Range{Start: left, End: right}, nil
	}
	return left, nil
}

func (p *Parser) or() (ast.Expression, error) {
	expr, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.isMatch(token.OR) {
		op := p.previous()
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		expr = ast.Binary{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

func (p *Parser) and() (ast.Expression, error) {
	expr, err := p.equality()
	if err != nil {
		return nil, err
	}
	for p.isMatch(token.AND) {
		op := p.previous()
		right, err := p.equality()
		if err != nil {
			return nil, err
		}
		expr = ast.Binary{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

func (p *Parser) equality() (ast.Expression, error) { return p.leftAssoc(p.comparison, equalityTokenTypes) }
func (p *Parser) comparison() (ast.Expression, error) { return p.leftAssoc(p.term, comparisonTokenTypes) }
func (p *Parser) term() (ast.Expression, error)       { return p.leftAssoc(p.factor, termTokenTypes) }
func (p *Parser) factor() (ast.Expression, error)     { return p.leftAssoc(p.unary, factorTokenTypes) }

func (p *Parser) leftAssoc(next func() (ast.Expression, error), ops []token.TokenType) (ast.Expression, error) {
	expr, err := next()
	if err != nil {
		return nil, err
	}
	for p.isMatch(ops...) {
		op := p.previous()
		right, err := next()
		if err != nil {
			return nil, err
		}
		expr = ast.Binary{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

func (p *Parser) unary() (ast.Expression, error) {
	if p.isMatch(unaryTokenTypes...) {
		op := p.previous()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Operator: op, Right: right}, nil
	}
	return p.postfix()
}

// postfix parses a primary expression followed by zero or more index,
// property, or method-call suffixes, chained left to right.
func (p *Parser) postfix() (ast.Expression, error) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isMatch(token.LBRK):
			idx, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.consume(token.RBRK, "expected ']' after index expression"); err != nil {
				return nil, p.report(err)
			}
			expr = ast.IndexAccess{Collection: expr, Index: idx}

		case p.isMatch(token.DOT):
			name, err := p.consume(token.IDENTIFIER, "expected a property name after '.'")
			if err != nil {
				return nil, p.report(err)
			}
			if p.isMatch(token.LPA) {
				args, err := p.argumentList()
				if err != nil {
					return nil, err
				}
				expr = ast.MethodCall{Object: expr, Method: name, Args: args}
			} else {
				expr = ast.PropertyAccess{Object: expr, Name: name}
			}

		default:
			return expr, nil
		}
	}
}

func (p *Parser) argumentList() ([]ast.Expression, error) {
	var args []ast.Expression
	if !p.checkType(token.RPA) {
		for {
			arg, err := p.expression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.isMatch(token.COMMA) {
				break
			}
		}
	}
	if _, err := p.consume(token.RPA, "expected ')' after arguments"); err != nil {
		return nil, p.report(err)
	}
	return args, nil
}

func (p *Parser) primary() (ast.Expression, error) {
	switch {
	case p.isMatch(token.BOOLEAN):
		return ast.Literal{Value: p.previous().Literal}, nil
	case p.isMatch(token.NULLTOK):
		return ast.Literal{Value: nil}, nil
	case p.isMatch(token.INT, token.FLOAT, token.STRING):
		return ast.Literal{Value: p.previous().Literal}, nil
	case p.isMatch(token.LBRK):
		return p.arrayLiteral()
	case p.isMatch(token.LCUR):
		return p.objectLiteral()
	case p.isMatch(token.FN):
		return p.functionExpression()
	case p.isMatch(token.IDENTIFIER):
		name := p.previous()
		if p.isMatch(token.LPA) {
			args, err := p.argumentList()
			if err != nil {
				return nil, err
			}
			return ast.Call{Callee: name, Args: args}, nil
		}
		return ast.Variable{Name: name}, nil
	case p.isMatch(token.LPA):
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.RPA, "expected ')' to close grouped expression"); err != nil {
			return nil, p.report(err)
		}
		return expr, nil
	}

	cur := p.peek()
	return nil, p.report(CreateSyntaxError(cur.Line, cur.Column, fmt.Sprintf("unexpected token %q", cur.Lexeme)))
}

func (p *Parser) arrayLiteral() (ast.Expression, error) {
	var elements []ast.Expression
	p.skipNewlines()
	if !p.checkType(token.RBRK) {
		for {
			p.skipNewlines()
			el, err := p.expression()
			if err != nil {
				return nil, err
			}
			elements = append(elements, el)
			p.skipNewlines()
			if !p.isMatch(token.COMMA) {
				break
			}
		}
	}
	p.skipNewlines()
	if _, err := p.consume(token.RBRK, "expected ']' to close array literal"); err != nil {
		return nil, p.report(err)
	}
	return ast.ArrayLiteral{Elements: elements}, nil
}

// objectLiteral parses `{ [:[Mixin1, Mixin2],] key: value, ... }`.
func (p *Parser) objectLiteral() (ast.Expression, error) {
	var mixins []token.Token
	var keys []string
	var values []ast.Expression

	p.skipNewlines()
	if p.isMatch(token.COLON) {
		if _, err := p.consume(token.LBRK, "expected '[' after mixin ':'"); err != nil {
			return nil, p.report(err)
		}
		if !p.checkType(token.RBRK) {
			for {
				name, err := p.consume(token.IDENTIFIER, "expected a mixin variable name")
				if err != nil {
					return nil, p.report(err)
				}
				mixins = append(mixins, name)
				if !p.isMatch(token.COMMA) {
					break
				}
			}
		}
		if _, err := p.consume(token.RBRK, "expected ']' after mixin list"); err != nil {
			return nil, p.report(err)
		}
		p.isMatch(token.COMMA)
	}

	p.skipNewlines()
	for !p.checkType(token.RCUR) && !p.isFinished() {
		var key string
		if p.isMatch(token.STRING) {
			key = p.previous().Literal.(string)
		} else {
			tok, err := p.consume(token.IDENTIFIER, "expected an object key")
			if err != nil {
				return nil, p.report(err)
			}
			key = tok.Lexeme
		}
		if _, err := p.consume(token.COLON, "expected ':' after object key"); err != nil {
			return nil, p.report(err)
		}
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		values = append(values, value)

		p.skipNewlines()
		if !p.isMatch(token.COMMA) {
			break
		}
		p.skipNewlines()
	}
	p.skipNewlines()
	if _, err := p.consume(token.RCUR, "expected '}' to close object literal"); err != nil {
		return nil, p.report(err)
	}
	return ast.ObjectLiteral{Mixins: mixins, Keys: keys, Values: values}, nil
}

func (p *Parser) functionExpression() (ast.Expression, error) {
	if _, err := p.consume(token.LPA, "expected '(' after 'fn'"); err != nil {
		return nil, p.report(err)
	}
	var params []token.Token
	if !p.checkType(token.RPA) {
		for {
			name, err := p.consume(token.IDENTIFIER, "expected a parameter name")
			if err != nil {
				return nil, p.report(err)
			}
			params = append(params, name)
			if !p.isMatch(token.COMMA) {
				break
			}
		}
	}
	if _, err := p.consume(token.RPA, "expected ')' after parameter list"); err != nil {
		return nil, p.report(err)
	}
	body, err := p.body()
	if err != nil {
		return nil, err
	}
	return ast.FunctionDef{Params: params, Body: body}, nil
}

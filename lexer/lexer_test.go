package lexer

import (
	"testing"

	"github.com/simondevenish/Ember/token"
)

func kinds(toks []token.Token) []token.TokenType {
	out := make([]token.TokenType, len(toks))
	for i, tok := range toks {
		out[i] = tok.TokenType
	}
	return out
}

func assertKinds(t *testing.T, src string, want []token.TokenType) {
	t.Helper()
	toks, err := New(src).Scan()
	if err != nil {
		t.Fatalf("Scan(%q) error: %v", src, err)
	}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("Scan(%q) = %v, want %v", src, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Scan(%q)[%d] = %v, want %v", src, i, got[i], want[i])
		}
	}
}

func TestOperators(t *testing.T) {
	assertKinds(t, "== / = * + > - < != <= >= !",
		[]token.TokenType{
			token.EQUAL_EQUAL, token.DIV, token.ASSIGN, token.MULT, token.ADD,
			token.LARGER, token.SUB, token.LESS, token.NOT_EQUAL, token.LESS_EQUAL,
			token.LARGER_EQUAL, token.BANG, token.EOF,
		})
}

func TestPunctuation(t *testing.T) {
	assertKinds(t, "(){}[],;:.", []token.TokenType{
		token.LPA, token.RPA, token.LCUR, token.RCUR, token.LBRK, token.RBRK,
		token.COMMA, token.SEMI, token.COLON, token.DOT, token.EOF,
	})
}

func TestRangeOperatorTieBreak(t *testing.T) {
	// "1..5" must lex as INT(1), RANGE, INT(5) -- not a malformed float.
	assertKinds(t, "1..5", []token.TokenType{token.INT, token.RANGE, token.INT, token.EOF})
}

func TestFloatLiteral(t *testing.T) {
	toks, err := New("3.14").Scan()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[0].TokenType != token.FLOAT {
		t.Fatalf("expected FLOAT, got %v", toks[0].TokenType)
	}
	if toks[0].Literal.(float64) != 3.14 {
		t.Fatalf("expected literal 3.14, got %v", toks[0].Literal)
	}
}

func TestStringEscapes(t *testing.T) {
	toks, err := New(`"a\nb\tc\\d\"e"`).Scan()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "a\nb\tc\\d\"e"
	if toks[0].Literal.(string) != want {
		t.Fatalf("got %q, want %q", toks[0].Literal, want)
	}
}

func TestUnterminatedString(t *testing.T) {
	_, err := New(`"unterminated`).Scan()
	if err == nil {
		t.Fatalf("expected an error for an unterminated string")
	}
}

func TestKeywordsVsIdentifiers(t *testing.T) {
	assertKinds(t, "var x = fn true false null",
		[]token.TokenType{
			token.VAR, token.IDENTIFIER, token.ASSIGN, token.FN,
			token.BOOLEAN, token.BOOLEAN, token.NULLTOK, token.EOF,
		})
}

func TestIndentDedentBalance(t *testing.T) {
	src := "x: 1\nif x\n    y: 2\n    if y\n        z: 3\nprint(x)\n"
	toks, err := New(src).Scan()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	indent, dedent := 0, 0
	for _, tok := range toks {
		switch tok.TokenType {
		case token.INDENT:
			indent++
		case token.DEDENT:
			dedent++
		}
	}
	// Property 1 (spec §8): net Indent-Dedent count is zero at EOF.
	if indent != dedent {
		t.Fatalf("unbalanced indentation: %d INDENT vs %d DEDENT", indent, dedent)
	}
	if indent != 2 {
		t.Fatalf("expected 2 INDENT tokens, got %d", indent)
	}
}

func TestBlankAndCommentLinesDoNotAffectIndentStack(t *testing.T) {
	src := "if x\n    y: 1\n\n    // a comment\n    z: 2\nw: 3\n"
	toks, err := New(src).Scan()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	indent, dedent := 0, 0
	for _, tok := range toks {
		switch tok.TokenType {
		case token.INDENT:
			indent++
		case token.DEDENT:
			dedent++
		}
	}
	if indent != 1 || dedent != 1 {
		t.Fatalf("expected exactly one INDENT/DEDENT pair, got %d/%d", indent, dedent)
	}
}

func TestInconsistentIndentationIsAnError(t *testing.T) {
	src := "if x\n    y: 1\n  z: 2\n"
	if _, err := New(src).Scan(); err == nil {
		t.Fatalf("expected an inconsistent-indentation error")
	}
}

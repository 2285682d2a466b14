package compiler

import "fmt"

// SemanticError is a compile-time diagnostic for a program that parses but
// violates a language rule (assignment to an immutable let, redeclaration,
// unresolved import, calling an undefined function).
type SemanticError struct {
	Message string
}

func (e SemanticError) Error() string {
	return fmt.Sprintf("💥 SemanticError: %s", e.Message)
}

// DeveloperError marks a condition that should be unreachable if the
// compiler's own invariants hold (an AST shape it doesn't know how to
// lower, a jump patched against a missing site).
type DeveloperError struct {
	Message string
}

func (e DeveloperError) Error() string {
	return fmt.Sprintf("🤖 DeveloperError: %s", e.Message)
}

package interpreter

import "fmt"

// RuntimeError is the reference oracle's runtime diagnostic. It shares
// vm.RuntimeError's "💥 RuntimeError:" prefix but locates the failure by
// source line and column rather than by ip and opcode.
type RuntimeError struct {
	Line    int32
	Column  int
	Message string
}

func (e RuntimeError) Error() string {
	return fmt.Sprintf("💥 RuntimeError: line %d, column %d - %s", e.Line, e.Column, e.Message)
}

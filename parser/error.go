package parser

import "fmt"

// SyntaxError is a parse-time diagnostic carrying the position of the
// offending token, per spec §7.
type SyntaxError struct {
	Line    int32
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("💥 syntax error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// CreateSyntaxError constructs a SyntaxError.
func CreateSyntaxError(line int32, column int, message string) *SyntaxError {
	return &SyntaxError{Line: line, Column: column, Message: message}
}

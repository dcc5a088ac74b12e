package preprocessor

import (
	"fmt"

	"github.com/sppc/sppc/pkg/lexer"
)

// MacroNotFoundError records an identifier with no binding in the
// Macro Store, encountered during expansion or `#if` evaluation.
type MacroNotFoundError struct {
	Name  string
	Range lexer.Range
}

func (e *MacroNotFoundError) Error() string {
	return fmt.Sprintf("macro %q not found", e.Name)
}

// UnresolvedIncludeError records an `#include` whose callback failed.
// `#tryinclude` failures are suppressed before reaching this type.
type UnresolvedIncludeError struct {
	Path  string
	Range lexer.Range
	Err   error
}

func (e *UnresolvedIncludeError) Error() string {
	return fmt.Sprintf("include %q not found: %v", e.Path, e.Err)
}

func (e *UnresolvedIncludeError) Unwrap() error { return e.Err }

// EvaluationError records a malformed `#if`/`#elseif` expression; the
// condition is treated as false.
type EvaluationError struct {
	Text  string
	Range lexer.Range
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("preprocessor condition is invalid: %s", e.Text)
}

// DirectiveError is an abort-worthy structural error: malformed
// `#define` parameters, an unknown token, or a conditional directive
// seen with an empty condition stack.
type DirectiveError struct {
	Message string
	Range   lexer.Range
}

func (e *DirectiveError) Error() string { return e.Message }

func newDirectiveError(msg string, rng lexer.Range) error {
	return &DirectiveError{Message: msg, Range: rng}
}

// UnknownTokenError wraps a lexer-reported Unknown token, which always
// aborts preprocessing.
type UnknownTokenError struct {
	Text  string
	Range lexer.Range
}

func (e *UnknownTokenError) Error() string {
	return fmt.Sprintf("unknown token %q", e.Text)
}

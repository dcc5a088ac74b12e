package preprocessor

import (
	"fmt"

	"github.com/sppc/sppc/pkg/lexer"
)

// Severity mirrors the LSP DiagnosticSeverity enum's first variant;
// every diagnostic this package produces is an Error.
type Severity int

const (
	SeverityError Severity = iota + 1
)

// Diagnostic is an LSP-shaped diagnostic: a range in the original
// source, a severity, and a human-readable message.
type Diagnostic struct {
	Range    lexer.Range
	Severity Severity
	Message  string
}

// Diagnostics converts a PreprocessingResult's three error lists into
// LSP-shaped diagnostics, per spec.md §6. Ranges come from the range
// each error already carries (spec.md §9's Open Question: populate
// them from the triggering symbol rather than defaulting to zero).
func Diagnostics(r *PreprocessingResult) []Diagnostic {
	var out []Diagnostic
	for _, e := range r.MacroNotFoundErrors {
		out = append(out, Diagnostic{
			Range:    e.Range,
			Severity: SeverityError,
			Message:  fmt.Sprintf("Macro %s not found.", e.Name),
		})
	}
	for _, e := range r.UnresolvedIncludeErrs {
		out = append(out, Diagnostic{
			Range:    e.Range,
			Severity: SeverityError,
			Message:  fmt.Sprintf("Include %q not found.", e.Path),
		})
	}
	for _, e := range r.EvaluationErrors {
		out = append(out, Diagnostic{
			Range:    e.Range,
			Severity: SeverityError,
			Message:  fmt.Sprintf("Preprocessor condition is invalid: %s", e.Text),
		})
	}
	return out
}

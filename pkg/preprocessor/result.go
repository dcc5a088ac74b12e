package preprocessor

import "github.com/sppc/sppc/pkg/lexer"

// PreprocessingResult is the sole output of Preprocess, on both the
// success and the abort path — an aborted run still carries whatever
// was emitted up to the point of failure, so callers can display
// partial highlighting.
type PreprocessingResult struct {
	Text                  string
	Macros                MacrosMap
	SourceMap             *SourceMap
	MacroNotFoundErrors   []MacroNotFoundError
	UnresolvedIncludeErrs []UnresolvedIncludeError
	EvaluationErrors      []EvaluationError
	InactiveRanges        []lexer.Range
	FatalErr              error
}

// Aborted reports whether preprocessing stopped early due to a fatal
// error (an unknown token or a malformed directive/expansion).
func (r *PreprocessingResult) Aborted() bool { return r.FatalErr != nil }

// newResult builds the common result shape from a driver's accumulated
// state, trimming slices to their exact length (shrink_to_fit in the
// original crate) before returning.
func newResult(buf *Buffer, macros *MacroStore, mnf []MacroNotFoundError, uie []UnresolvedIncludeError, ee []EvaluationError, skipped []lexer.Range, fatal error) *PreprocessingResult {
	buf.SourceMap().shrinkToFit()

	r := &PreprocessingResult{
		Text:                  buf.Contents(),
		Macros:                macros.Snapshot(),
		SourceMap:             buf.SourceMap(),
		MacroNotFoundErrors:   shrinkMNF(mnf),
		UnresolvedIncludeErrs: shrinkUIE(uie),
		EvaluationErrors:      shrinkEE(ee),
		InactiveRanges:        CoalesceRanges(skipped),
		FatalErr:              fatal,
	}
	return r
}

func shrinkMNF(s []MacroNotFoundError) []MacroNotFoundError {
	if s == nil {
		return nil
	}
	out := make([]MacroNotFoundError, len(s))
	copy(out, s)
	return out
}

func shrinkUIE(s []UnresolvedIncludeError) []UnresolvedIncludeError {
	if s == nil {
		return nil
	}
	out := make([]UnresolvedIncludeError, len(s))
	copy(out, s)
	return out
}

func shrinkEE(s []EvaluationError) []EvaluationError {
	if s == nil {
		return nil
	}
	out := make([]EvaluationError, len(s))
	copy(out, s)
	return out
}

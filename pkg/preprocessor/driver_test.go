package preprocessor

import (
	"strings"
	"testing"

	"github.com/sppc/sppc/pkg/lexer"
)

func newlineCount(s string) int { return strings.Count(s, "\n") }

func TestPreprocessPlainTextNewlineCountIsInputPlusOne(t *testing.T) {
	in := "int x = 1;\nint y = 2;\n"
	r := Preprocess(1, in, nil)
	if r.Aborted() {
		t.Fatalf("unexpected fatal error: %v", r.FatalErr)
	}
	if got, want := newlineCount(r.Text), newlineCount(in)+1; got != want {
		t.Fatalf("output newline count = %d, want %d (Text=%q)", got, want, r.Text)
	}
	if !strings.Contains(r.Text, "int x = 1;") || !strings.Contains(r.Text, "int y = 2;") {
		t.Fatalf("expected plain text to pass through verbatim, got %q", r.Text)
	}
}

func TestPreprocessObjectLikeMacroExpansion(t *testing.T) {
	in := "#define FOO 42\nFOO\n"
	r := Preprocess(1, in, nil)
	if r.Aborted() {
		t.Fatalf("unexpected fatal error: %v", r.FatalErr)
	}
	if got, want := r.Text, "#define FOO 42\n42\n\n"; got != want {
		t.Fatalf("Text = %q, want %q", got, want)
	}
	if got, want := newlineCount(r.Text), newlineCount(in)+1; got != want {
		t.Fatalf("output newline count = %d, want %d", got, want)
	}
}

func TestPreprocessFunctionLikeMacroSubstitutesArguments(t *testing.T) {
	in := "#define ADD(%1,%2) (%1+%2)\nADD(1,2)\n"
	r := Preprocess(1, in, nil)
	if r.Aborted() {
		t.Fatalf("unexpected fatal error: %v", r.FatalErr)
	}
	if !strings.Contains(r.Text, "1+2") {
		t.Fatalf("Text = %q, want it to contain the substituted argument sequence 1+2", r.Text)
	}
	if got, want := newlineCount(r.Text), newlineCount(in)+1; got != want {
		t.Fatalf("output newline count = %d, want %d", got, want)
	}
}

func TestPreprocessMacroSelfReferenceDoesNotRecurseForever(t *testing.T) {
	in := "#define FOO FOO\nFOO\n"
	r := Preprocess(1, in, nil)
	if r.Aborted() {
		t.Fatalf("unexpected fatal error: %v", r.FatalErr)
	}
	if !strings.Contains(r.Text, "FOO") {
		t.Fatalf("Text = %q, want the disabled self-reference emitted literally", r.Text)
	}
}

func TestPreprocessIfTrueKeepsBodyNoInactiveRange(t *testing.T) {
	in := "#if 1\nkept();\n#endif\n"
	r := Preprocess(1, in, nil)
	if r.Aborted() {
		t.Fatalf("unexpected fatal error: %v", r.FatalErr)
	}
	if !strings.Contains(r.Text, "kept();") {
		t.Fatalf("Text = %q, want the Active branch body kept", r.Text)
	}
	if len(r.InactiveRanges) != 0 {
		t.Fatalf("InactiveRanges = %v, want none for an always-true #if", r.InactiveRanges)
	}
	if got, want := newlineCount(r.Text), newlineCount(in)+1; got != want {
		t.Fatalf("output newline count = %d, want %d", got, want)
	}
}

func TestPreprocessIfFalseElidesBodyPreservingNewlineCount(t *testing.T) {
	in := "#if 0\ndropped();\nmore_dropped();\n#endif\n"
	r := Preprocess(1, in, nil)
	if r.Aborted() {
		t.Fatalf("unexpected fatal error: %v", r.FatalErr)
	}
	if strings.Contains(r.Text, "dropped") {
		t.Fatalf("Text = %q, want the false branch's body elided", r.Text)
	}
	if len(r.InactiveRanges) != 1 {
		t.Fatalf("InactiveRanges = %v, want exactly one elided range", r.InactiveRanges)
	}
	if got, want := newlineCount(r.Text), newlineCount(in)+1; got != want {
		t.Fatalf("output newline count = %d, want %d", got, want)
	}
}

func TestPreprocessIfElseTakesElseBranch(t *testing.T) {
	in := "#if 0\na();\n#else\nb();\n#endif\n"
	r := Preprocess(1, in, nil)
	if r.Aborted() {
		t.Fatalf("unexpected fatal error: %v", r.FatalErr)
	}
	if strings.Contains(r.Text, "a();") || !strings.Contains(r.Text, "b();") {
		t.Fatalf("Text = %q, want only the #else branch kept", r.Text)
	}
	if got, want := newlineCount(r.Text), newlineCount(in)+1; got != want {
		t.Fatalf("output newline count = %d, want %d", got, want)
	}
}

func TestPreprocessIfElseifChainTakesMatchingBranch(t *testing.T) {
	in := "#if 0\na();\n#elseif 1\nb();\n#elseif 1\nc();\n#endif\n"
	r := Preprocess(1, in, nil)
	if r.Aborted() {
		t.Fatalf("unexpected fatal error: %v", r.FatalErr)
	}
	if strings.Contains(r.Text, "a();") || !strings.Contains(r.Text, "b();") || strings.Contains(r.Text, "c();") {
		t.Fatalf("Text = %q, want only the first true #elseif branch kept", r.Text)
	}
	if got, want := newlineCount(r.Text), newlineCount(in)+1; got != want {
		t.Fatalf("output newline count = %d, want %d", got, want)
	}
}

func TestPreprocessNestedIfInsideSkippedBranchStaysSuppressedAndPreservesGeometry(t *testing.T) {
	in := "#if 0\nouter_dropped();\n#if 1\ninner_dropped();\n#endif\nstill_dropped();\n#endif\nkept();\n"
	r := Preprocess(1, in, nil)
	if r.Aborted() {
		t.Fatalf("unexpected fatal error: %v", r.FatalErr)
	}
	if strings.Contains(r.Text, "dropped") {
		t.Fatalf("Text = %q, want every line inside the outer skipped #if elided", r.Text)
	}
	if !strings.Contains(r.Text, "kept();") {
		t.Fatalf("Text = %q, want the code after the outer #endif kept", r.Text)
	}
	if got, want := newlineCount(r.Text), newlineCount(in)+1; got != want {
		t.Fatalf("output newline count = %d, want %d (nested #if must not truncate the outer skipped range)", got, want)
	}
}

func TestPreprocessUndefRemovesBinding(t *testing.T) {
	in := "#define FOO 1\n#undef FOO\nFOO\n"
	r := Preprocess(1, in, nil)
	if r.Aborted() {
		t.Fatalf("unexpected fatal error: %v", r.FatalErr)
	}
	if !strings.Contains(r.Text, "FOO") {
		t.Fatalf("Text = %q, want the now-undefined FOO identifier emitted verbatim", r.Text)
	}
}

func TestPreprocessUnknownTokenAborts(t *testing.T) {
	in := "int x = 1 ` 2;\n"
	r := Preprocess(1, in, nil)
	if !r.Aborted() {
		t.Fatalf("expected an UnknownTokenError to abort preprocessing")
	}
}

func TestPreprocessIncludeInvokesCallbackAndMergesMacros(t *testing.T) {
	var gotPath string
	var gotQuoted bool
	include := func(macros MacrosMap, path string, parentFileID int, quoted bool) error {
		gotPath = path
		gotQuoted = quoted
		macros["INCLUDED"] = &Macro{FileID: parentFileID, Name: "INCLUDED", Body: nil}
		return nil
	}
	in := "#include \"util.inc\"\nINCLUDED\n"
	r := Preprocess(7, in, include)
	if r.Aborted() {
		t.Fatalf("unexpected fatal error: %v", r.FatalErr)
	}
	if gotPath != "util.inc" || !gotQuoted {
		t.Fatalf("include callback args = %q,%v, want util.inc,true", gotPath, gotQuoted)
	}
	if len(r.UnresolvedIncludeErrs) != 0 {
		t.Fatalf("UnresolvedIncludeErrs = %v, want none on success", r.UnresolvedIncludeErrs)
	}
	if _, ok := r.Macros["INCLUDED"]; !ok {
		t.Fatalf("Macros = %v, want the callback's INCLUDED binding merged in", r.Macros)
	}
}

func TestPreprocessIncludeFailureRecordsUnresolvedError(t *testing.T) {
	in := "#include <missing.inc>\n"
	r := Preprocess(1, in, nil)
	if r.Aborted() {
		t.Fatalf("unexpected fatal error: %v", r.FatalErr)
	}
	if len(r.UnresolvedIncludeErrs) != 1 || r.UnresolvedIncludeErrs[0].Path != "missing.inc" {
		t.Fatalf("UnresolvedIncludeErrs = %v, want one entry for missing.inc", r.UnresolvedIncludeErrs)
	}
}

func TestPreprocessTryincludeFailureIsSilent(t *testing.T) {
	in := "#tryinclude <missing.inc>\n"
	r := Preprocess(1, in, nil)
	if r.Aborted() {
		t.Fatalf("unexpected fatal error: %v", r.FatalErr)
	}
	if len(r.UnresolvedIncludeErrs) != 0 {
		t.Fatalf("UnresolvedIncludeErrs = %v, want none for a failed #tryinclude", r.UnresolvedIncludeErrs)
	}
}

func TestPreprocessIntrinsicsHandleSubstitution(t *testing.T) {
	in := "using __intrinsics__.Handle;\nint x;\n"
	r := Preprocess(1, in, nil)
	if r.Aborted() {
		t.Fatalf("unexpected fatal error: %v", r.FatalErr)
	}
	if !strings.Contains(r.Text, "methodmap Handle __nullable__") {
		t.Fatalf("Text = %q, want the Handle methodmap substitution", r.Text)
	}
	if strings.Contains(r.Text, "using") {
		t.Fatalf("Text = %q, want the matched 'using' sequence fully consumed", r.Text)
	}
}

func TestPreprocessUnresolvedMacroInConditionRecordsMacroNotFound(t *testing.T) {
	in := "#if UNKNOWN_MACRO\nx();\n#endif\n"
	r := Preprocess(1, in, nil)
	if r.Aborted() {
		t.Fatalf("unexpected fatal error: %v", r.FatalErr)
	}
	if len(r.MacroNotFoundErrors) != 1 || r.MacroNotFoundErrors[0].Name != "UNKNOWN_MACRO" {
		t.Fatalf("MacroNotFoundErrors = %v, want one entry for UNKNOWN_MACRO", r.MacroNotFoundErrors)
	}
	// An unresolved macro in a condition folds to 0 (false); the branch
	// must be elided, not kept.
	if strings.Contains(r.Text, "x();") {
		t.Fatalf("Text = %q, want the branch elided since the condition folded to false", r.Text)
	}
}

func TestPreprocessMalformedConditionRecordsEvaluationError(t *testing.T) {
	in := "#if 1 +\nx();\n#endif\n"
	r := Preprocess(1, in, nil)
	if r.Aborted() {
		t.Fatalf("unexpected fatal error: %v", r.FatalErr)
	}
	if len(r.EvaluationErrors) != 1 {
		t.Fatalf("EvaluationErrors = %v, want exactly one", r.EvaluationErrors)
	}
}

func TestDiagnosticsBuildsFromAllThreeErrorLists(t *testing.T) {
	in := "#if UNKNOWN\nx();\n#endif\n#include <missing.inc>\n#if 1 +\ny();\n#endif\n"
	r := Preprocess(1, in, nil)
	diags := Diagnostics(r)
	if len(diags) != 3 {
		t.Fatalf("Diagnostics() = %v, want 3 entries (one MacroNotFound, one UnresolvedInclude, one EvaluationError)", diags)
	}
}

func TestPreprocessSeededMergesPriorMacroTableBeforeRootPreload(t *testing.T) {
	seed := MacrosMap{"FOO": {Name: "FOO", Body: []lexer.Symbol{{Kind: lexer.Literal, Lit: lexer.IntegerLiteral, Text: "7"}}}}
	r := PreprocessSeeded(2, "FOO\n", seed, nil)
	if r.Aborted() {
		t.Fatalf("unexpected fatal error: %v", r.FatalErr)
	}
	if !strings.Contains(r.Text, "7") {
		t.Fatalf("Text = %q, want the seeded FOO macro expanded to 7", r.Text)
	}
	if _, ok := r.Macros["FOO"]; !ok {
		t.Fatalf("Macros = %v, want the seeded FOO binding to survive into the result", r.Macros)
	}
}

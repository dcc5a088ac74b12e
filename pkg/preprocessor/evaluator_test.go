package preprocessor

import (
	"testing"

	"github.com/sppc/sppc/pkg/lexer"
)

func lit(text string) lexer.Symbol {
	return lexer.Symbol{Kind: lexer.Literal, Lit: lexer.IntegerLiteral, Text: text}
}

func ident(name string) lexer.Symbol {
	return lexer.Symbol{Kind: lexer.Identifier, Text: name}
}

func op(o lexer.OperatorKind, text string) lexer.Symbol {
	return lexer.Symbol{Kind: lexer.Operator, Op: o, Text: text}
}

func paren(kind lexer.TokenKind) lexer.Symbol {
	return lexer.Symbol{Kind: kind}
}

func newTestEvaluator() *Evaluator {
	return NewEvaluator(NewMacroStore(), NewExpander(), &ExpansionStack{}, nil)
}

func evalSyms(t *testing.T, syms []lexer.Symbol) bool {
	t.Helper()
	e := newTestEvaluator()
	v, err := e.Evaluate(syms, "", lexer.Range{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	return v
}

func TestEvaluatorArithmeticPrecedence(t *testing.T) {
	// 2 + 3 * 4 == 14
	syms := []lexer.Symbol{lit("2"), op(lexer.OpPlus, "+"), lit("3"), op(lexer.OpStar, "*"), lit("4"),
		op(lexer.OpEq, "=="), lit("14")}
	if !evalSyms(t, syms) {
		t.Fatalf("expected 2 + 3 * 4 == 14 to be true")
	}
}

func TestEvaluatorParenthesesOverridePrecedence(t *testing.T) {
	// (2 + 3) * 4 == 20
	syms := []lexer.Symbol{paren(lexer.LParen), lit("2"), op(lexer.OpPlus, "+"), lit("3"), paren(lexer.RParen),
		op(lexer.OpStar, "*"), lit("4"), op(lexer.OpEq, "=="), lit("20")}
	if !evalSyms(t, syms) {
		t.Fatalf("expected (2 + 3) * 4 == 20 to be true")
	}
}

func TestEvaluatorLogicalAndShortCircuitStructure(t *testing.T) {
	// 1 && 0 || 1 -> true
	syms := []lexer.Symbol{lit("1"), op(lexer.OpAndAnd, "&&"), lit("0"), op(lexer.OpOrOr, "||"), lit("1")}
	if !evalSyms(t, syms) {
		t.Fatalf("expected 1 && 0 || 1 to be true")
	}
}

func TestEvaluatorBitwiseOperators(t *testing.T) {
	// (6 & 3) | 8 == 10
	syms := []lexer.Symbol{paren(lexer.LParen), lit("6"), op(lexer.OpAmp, "&"), lit("3"), paren(lexer.RParen),
		op(lexer.OpPipe, "|"), lit("8"), op(lexer.OpEq, "=="), lit("10")}
	if !evalSyms(t, syms) {
		t.Fatalf("expected (6 & 3) | 8 == 10 to be true")
	}
}

func TestEvaluatorShiftAndXor(t *testing.T) {
	// (1 << 3) ^ 1 == 9
	syms := []lexer.Symbol{paren(lexer.LParen), lit("1"), op(lexer.OpShl, "<<"), lit("3"), paren(lexer.RParen),
		op(lexer.OpCaret, "^"), lit("1"), op(lexer.OpEq, "=="), lit("9")}
	if !evalSyms(t, syms) {
		t.Fatalf("expected (1 << 3) ^ 1 == 9 to be true")
	}
}

func TestEvaluatorUnaryOperators(t *testing.T) {
	// !0 && ~0 == -1
	syms := []lexer.Symbol{op(lexer.OpNot, "!"), lit("0"), op(lexer.OpAndAnd, "&&"),
		op(lexer.OpTilde, "~"), lit("0"), op(lexer.OpEq, "=="), op(lexer.OpMinus, "-"), lit("1")}
	if !evalSyms(t, syms) {
		t.Fatalf("expected !0 && ~0 == -1 to be true")
	}
}

func TestEvaluatorRelational(t *testing.T) {
	syms := []lexer.Symbol{lit("3"), op(lexer.OpLt, "<"), lit("5")}
	if !evalSyms(t, syms) {
		t.Fatalf("expected 3 < 5 to be true")
	}
}

func TestEvaluatorDivisionByZeroErrors(t *testing.T) {
	e := newTestEvaluator()
	syms := []lexer.Symbol{lit("1"), op(lexer.OpSlash, "/"), lit("0")}
	if _, err := e.Evaluate(syms, "1/0", lexer.Range{Start: 0, End: 3}); err == nil {
		t.Fatalf("expected division by zero to produce an EvaluationError")
	}
}

func TestEvaluatorMalformedExpressionErrors(t *testing.T) {
	e := newTestEvaluator()
	syms := []lexer.Symbol{lit("1"), op(lexer.OpPlus, "+")}
	if _, err := e.Evaluate(syms, "1+", lexer.Range{Start: 0, End: 2}); err == nil {
		t.Fatalf("expected a trailing operator to be a malformed expression")
	}
}

func TestEvaluatorTrailingGarbageErrors(t *testing.T) {
	e := newTestEvaluator()
	syms := []lexer.Symbol{lit("1"), lit("2")}
	if _, err := e.Evaluate(syms, "1 2", lexer.Range{Start: 0, End: 3}); err == nil {
		t.Fatalf("expected unconsumed trailing tokens to be a malformed expression")
	}
}

func TestEvaluatorDefinedWithParensResolvesToOne(t *testing.T) {
	macros := NewMacroStore()
	macros.Insert("FOO", &Macro{Name: "FOO"})
	e := NewEvaluator(macros, NewExpander(), &ExpansionStack{}, nil)
	syms := []lexer.Symbol{ident("defined"), paren(lexer.LParen), ident("FOO"), paren(lexer.RParen)}
	v, err := e.Evaluate(syms, "", lexer.Range{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !v {
		t.Fatalf("expected defined(FOO) to be true")
	}
}

func TestEvaluatorDefinedWithoutParensOnMissingMacroResolvesToZero(t *testing.T) {
	e := newTestEvaluator()
	syms := []lexer.Symbol{ident("defined"), ident("BAR")}
	v, err := e.Evaluate(syms, "", lexer.Range{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v {
		t.Fatalf("expected defined BAR to be false for an undefined macro")
	}
}

func TestEvaluatorUnknownIdentifierRecordsMacroNotFound(t *testing.T) {
	e := newTestEvaluator()
	syms := []lexer.Symbol{ident("UNDEFINED_THING")}
	v, err := e.Evaluate(syms, "", lexer.Range{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v {
		t.Fatalf("an unresolved identifier must fold to 0 (false)")
	}
	if len(e.NotFound) != 1 || e.NotFound[0].Name != "UNDEFINED_THING" {
		t.Fatalf("NotFound = %v, want one entry for UNDEFINED_THING", e.NotFound)
	}
}

func TestEvaluatorDefinedMacroWithoutExpansionIsZeroValued(t *testing.T) {
	macros := NewMacroStore()
	macros.Insert("FOO", &Macro{Name: "FOO"})
	e := NewEvaluator(macros, NewExpander(), &ExpansionStack{}, nil)
	// `defined(FOO)` already folds to 1 above; a bare reference to a
	// known-but-unexpanded macro used directly in arithmetic is 0.
	syms := []lexer.Symbol{ident("FOO"), op(lexer.OpEq, "=="), lit("0")}
	v, err := e.Evaluate(syms, "", lexer.Range{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !v {
		t.Fatalf("expected a bare known macro reference to evaluate as 0")
	}
}

package preprocessor

import (
	"fmt"

	"github.com/sppc/sppc/pkg/lexer"
)

// Evaluator evaluates a sequence of symbols collected inside an
// `#if`/`#elseif` directive into a boolean, resolving `defined` and
// folding every other identifier to 0 (see substituteDefined).
type Evaluator struct {
	macros  *MacroStore
	expand  *Expander
	stack   *ExpansionStack
	lexer   *lexer.Lexer
	NotFound []MacroNotFoundError
}

// NewEvaluator builds an evaluator bound to the given macro store. The
// lexer/expander/stack are stored on the Evaluator but not used by
// Evaluate: only the macro store is consulted.
func NewEvaluator(macros *MacroStore, expand *Expander, stack *ExpansionStack, lx *lexer.Lexer) *Evaluator {
	return &Evaluator{macros: macros, expand: expand, stack: stack, lexer: lx}
}

type tokenCursor struct {
	syms []lexer.Symbol
	pos  int
}

func (c *tokenCursor) peek() (lexer.Symbol, bool) {
	if c.pos >= len(c.syms) {
		return lexer.Symbol{}, false
	}
	return c.syms[c.pos], true
}

func (c *tokenCursor) next() (lexer.Symbol, bool) {
	s, ok := c.peek()
	if ok {
		c.pos++
	}
	return s, ok
}

// Evaluate evaluates the collected directive symbols. Newline, Comment
// and directive-keyword symbols are dropped before parsing; everything
// else must form one complete expression. On a malformed expression it
// returns an EvaluationError and a false result, per spec.md §7.
func (e *Evaluator) Evaluate(symbols []lexer.Symbol, text string, rng lexer.Range) (bool, error) {
	var filtered []lexer.Symbol
	for _, s := range symbols {
		switch s.Kind {
		case lexer.Newline, lexer.Comment, lexer.PreprocDir:
			continue
		}
		filtered = append(filtered, s)
	}
	filtered = e.substituteDefined(filtered)

	cur := &tokenCursor{syms: filtered}
	v, err := e.parseOr(cur)
	if err != nil {
		return false, &EvaluationError{Text: text, Range: rng}
	}
	if _, ok := cur.peek(); ok {
		return false, &EvaluationError{Text: text, Range: rng}
	}
	return v != 0, nil
}

// substituteDefined rewrites `defined` `(` ID `)` or `defined` ID into
// an integer literal 1/0, then folds every remaining Identifier to the
// literal 0, recording a MacroNotFound (rather than aborting) for each
// one not bound in the macro store. A bound macro's body is not
// substituted: a reference to a defined macro evaluates as 0, not as
// its replacement text.
func (e *Evaluator) substituteDefined(in []lexer.Symbol) []lexer.Symbol {
	out := make([]lexer.Symbol, 0, len(in))
	for i := 0; i < len(in); i++ {
		s := in[i]
		if s.Kind == lexer.Identifier && s.Text == "defined" {
			j := i + 1
			paren := false
			if j < len(in) && in[j].Kind == lexer.LParen {
				paren = true
				j++
			}
			if j < len(in) && in[j].Kind == lexer.Identifier {
				name := in[j].Text
				j++
				if paren && j < len(in) && in[j].Kind == lexer.RParen {
					j++
				}
				_, ok := e.macros.Lookup(name)
				lit := "0"
				if ok {
					lit = "1"
				}
				out = append(out, lexer.NewSynthetic(lexer.Literal, lit, s.Range.Start))
				i = j - 1
				continue
			}
		}
		out = append(out, s)
	}

	resolved := make([]lexer.Symbol, 0, len(out))
	for _, s := range out {
		if s.Kind != lexer.Identifier {
			resolved = append(resolved, s)
			continue
		}
		if _, ok := e.macros.Lookup(s.Text); !ok {
			e.NotFound = append(e.NotFound, MacroNotFoundError{Name: s.Text, Range: s.Range})
			resolved = append(resolved, lexer.NewSynthetic(lexer.Literal, "0", s.Range.Start))
			continue
		}
		// A defined-but-unexpanded identifier inside a constant
		// expression has no numeric value of its own; treat it as 0
		// too, matching a plain preprocessor's "undefined behaves as
		// defined-to-nothing" idiom for bare object-like references
		// used in arithmetic without expansion machinery running here.
		resolved = append(resolved, lexer.NewSynthetic(lexer.Literal, "0", s.Range.Start))
	}
	return resolved
}

func (e *Evaluator) parseOr(c *tokenCursor) (int64, error) {
	v, err := e.parseAnd(c)
	if err != nil {
		return 0, err
	}
	for {
		s, ok := c.peek()
		if !ok || s.Kind != lexer.Operator || s.Op != lexer.OpOrOr {
			return v, nil
		}
		c.next()
		rhs, err := e.parseAnd(c)
		if err != nil {
			return 0, err
		}
		v = boolToInt(v != 0 || rhs != 0)
	}
}

func (e *Evaluator) parseAnd(c *tokenCursor) (int64, error) {
	v, err := e.parseBitOr(c)
	if err != nil {
		return 0, err
	}
	for {
		s, ok := c.peek()
		if !ok || s.Kind != lexer.Operator || s.Op != lexer.OpAndAnd {
			return v, nil
		}
		c.next()
		rhs, err := e.parseBitOr(c)
		if err != nil {
			return 0, err
		}
		v = boolToInt(v != 0 && rhs != 0)
	}
}

// parseBinary parses a left-associative chain of one binary operator
// kind over operands parsed by next, folding each pair with apply.
func (e *Evaluator) parseBinary(c *tokenCursor, next func(*tokenCursor) (int64, error), kind lexer.OperatorKind, apply func(a, b int64) int64) (int64, error) {
	v, err := next(c)
	if err != nil {
		return 0, err
	}
	for {
		s, ok := c.peek()
		if !ok || s.Kind != lexer.Operator || s.Op != kind {
			return v, nil
		}
		c.next()
		rhs, err := next(c)
		if err != nil {
			return 0, err
		}
		v = apply(v, rhs)
	}
}

func (e *Evaluator) parseBitOr(c *tokenCursor) (int64, error) {
	return e.parseBinary(c, e.parseBitXor, lexer.OpPipe, func(a, b int64) int64 { return a | b })
}

func (e *Evaluator) parseBitXor(c *tokenCursor) (int64, error) {
	return e.parseBinary(c, e.parseBitAnd, lexer.OpCaret, func(a, b int64) int64 { return a ^ b })
}

func (e *Evaluator) parseBitAnd(c *tokenCursor) (int64, error) {
	return e.parseBinary(c, e.parseEquality, lexer.OpAmp, func(a, b int64) int64 { return a & b })
}

func (e *Evaluator) parseEquality(c *tokenCursor) (int64, error) {
	v, err := e.parseRelational(c)
	if err != nil {
		return 0, err
	}
	for {
		s, ok := c.peek()
		if !ok || s.Kind != lexer.Operator {
			return v, nil
		}
		var op func(int64, int64) int64
		switch s.Op {
		case lexer.OpEq:
			op = func(a, b int64) int64 { return boolToInt(a == b) }
		case lexer.OpNe:
			op = func(a, b int64) int64 { return boolToInt(a != b) }
		default:
			return v, nil
		}
		c.next()
		rhs, err := e.parseRelational(c)
		if err != nil {
			return 0, err
		}
		v = op(v, rhs)
	}
}

func (e *Evaluator) parseRelational(c *tokenCursor) (int64, error) {
	v, err := e.parseShift(c)
	if err != nil {
		return 0, err
	}
	for {
		s, ok := c.peek()
		if !ok || s.Kind != lexer.Operator {
			return v, nil
		}
		var op func(int64, int64) int64
		switch s.Op {
		case lexer.OpLt:
			op = func(a, b int64) int64 { return boolToInt(a < b) }
		case lexer.OpLe:
			op = func(a, b int64) int64 { return boolToInt(a <= b) }
		case lexer.OpGt:
			op = func(a, b int64) int64 { return boolToInt(a > b) }
		case lexer.OpGe:
			op = func(a, b int64) int64 { return boolToInt(a >= b) }
		default:
			return v, nil
		}
		c.next()
		rhs, err := e.parseShift(c)
		if err != nil {
			return 0, err
		}
		v = op(v, rhs)
	}
}

func (e *Evaluator) parseShift(c *tokenCursor) (int64, error) {
	v, err := e.parseAdditive(c)
	if err != nil {
		return 0, err
	}
	for {
		s, ok := c.peek()
		if !ok || s.Kind != lexer.Operator {
			return v, nil
		}
		var op func(int64, int64) int64
		switch s.Op {
		case lexer.OpShl:
			op = func(a, b int64) int64 { return a << uint(b) }
		case lexer.OpShr:
			op = func(a, b int64) int64 { return a >> uint(b) }
		default:
			return v, nil
		}
		c.next()
		rhs, err := e.parseAdditive(c)
		if err != nil {
			return 0, err
		}
		v = op(v, rhs)
	}
}

func (e *Evaluator) parseAdditive(c *tokenCursor) (int64, error) {
	v, err := e.parseMultiplicative(c)
	if err != nil {
		return 0, err
	}
	for {
		s, ok := c.peek()
		if !ok || s.Kind != lexer.Operator {
			return v, nil
		}
		var op func(int64, int64) int64
		switch s.Op {
		case lexer.OpPlus:
			op = func(a, b int64) int64 { return a + b }
		case lexer.OpMinus:
			op = func(a, b int64) int64 { return a - b }
		default:
			return v, nil
		}
		c.next()
		rhs, err := e.parseMultiplicative(c)
		if err != nil {
			return 0, err
		}
		v = op(v, rhs)
	}
}

func (e *Evaluator) parseMultiplicative(c *tokenCursor) (int64, error) {
	v, err := e.parseUnary(c)
	if err != nil {
		return 0, err
	}
	for {
		s, ok := c.peek()
		if !ok || s.Kind != lexer.Operator {
			return v, nil
		}
		var op func(int64, int64) (int64, error)
		switch s.Op {
		case lexer.OpStar:
			op = func(a, b int64) (int64, error) { return a * b, nil }
		case lexer.OpSlash:
			op = func(a, b int64) (int64, error) {
				if b == 0 {
					return 0, fmt.Errorf("division by zero")
				}
				return a / b, nil
			}
		case lexer.OpPercent:
			op = func(a, b int64) (int64, error) {
				if b == 0 {
					return 0, fmt.Errorf("modulo by zero")
				}
				return a % b, nil
			}
		default:
			return v, nil
		}
		c.next()
		rhs, err := e.parseUnary(c)
		if err != nil {
			return 0, err
		}
		v, err = op(v, rhs)
		if err != nil {
			return 0, err
		}
	}
}

func (e *Evaluator) parseUnary(c *tokenCursor) (int64, error) {
	s, ok := c.peek()
	if ok && s.Kind == lexer.Operator {
		switch s.Op {
		case lexer.OpNot:
			c.next()
			v, err := e.parseUnary(c)
			if err != nil {
				return 0, err
			}
			return boolToInt(v == 0), nil
		case lexer.OpTilde:
			c.next()
			v, err := e.parseUnary(c)
			if err != nil {
				return 0, err
			}
			return ^v, nil
		case lexer.OpMinus:
			c.next()
			v, err := e.parseUnary(c)
			if err != nil {
				return 0, err
			}
			return -v, nil
		case lexer.OpPlus:
			c.next()
			return e.parseUnary(c)
		}
	}
	return e.parsePrimary(c)
}

func (e *Evaluator) parsePrimary(c *tokenCursor) (int64, error) {
	s, ok := c.next()
	if !ok {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	switch s.Kind {
	case lexer.Literal:
		v, ok := s.ToInt()
		if !ok {
			return 0, fmt.Errorf("malformed integer literal %q", s.Text)
		}
		return v, nil
	case lexer.LParen:
		v, err := e.parseOr(c)
		if err != nil {
			return 0, err
		}
		rp, ok := c.next()
		if !ok || rp.Kind != lexer.RParen {
			return 0, fmt.Errorf("expected ')'")
		}
		return v, nil
	}
	return 0, fmt.Errorf("unexpected token %q", s.Text)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// LineContinuationCount returns the number of line-continuation
// sequences consumed by the lexer while scanning the most recent
// directive, draining its internal counter.
func LineContinuationCount(lx *lexer.Lexer) int {
	return lx.DrainContinuations()
}

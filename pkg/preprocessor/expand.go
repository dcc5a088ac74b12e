package preprocessor

import "github.com/sppc/sppc/pkg/lexer"

// stackEntry is either a symbol to re-examine or a reenable signal for
// a macro name whose expansion has just fully drained.
type stackEntry struct {
	sym      lexer.Symbol
	reenable string
}

// ExpansionStack is the LIFO of symbols produced by macro expansion,
// drained by the Driver before the Lexer is consulted again.
type ExpansionStack struct {
	items []stackEntry
}

// NewExpansionStack returns an empty expansion stack.
func NewExpansionStack() *ExpansionStack { return &ExpansionStack{} }

// Empty reports whether the stack has nothing left to drain.
func (s *ExpansionStack) Empty() bool { return len(s.items) == 0 }

// pushReenableAnd pushes a reenable marker for name, then body's
// symbols in an order such that body[0] is the next one popped. The
// reenable marker sits beneath all of body (and anything later pushed
// on top of it by nested expansions), so it only fires once this
// entire expansion — including any nested macro calls inside it — has
// fully drained.
func (s *ExpansionStack) pushReenableAnd(name string, body []lexer.Symbol) {
	s.items = append(s.items, stackEntry{reenable: name})
	for i := len(body) - 1; i >= 0; i-- {
		s.items = append(s.items, stackEntry{sym: body[i]})
	}
}

// Pop removes and returns the top entry. If it is a reenable signal,
// sym is the zero Symbol and reenable is non-empty.
func (s *ExpansionStack) Pop() (sym lexer.Symbol, reenable string, ok bool) {
	n := len(s.items)
	if n == 0 {
		return lexer.Symbol{}, "", false
	}
	e := s.items[n-1]
	s.items = s.items[:n-1]
	return e.sym, e.reenable, true
}

// Expander performs a single macro-expansion step per spec.md §4.3:
// object-like macros push their body as-is; function-like macros
// consume a following argument list from the Lexer and substitute
// `%N` placeholders before pushing.
type Expander struct{}

// NewExpander returns an Expander. It carries no state of its own; all
// mutable state lives in the MacroStore, Lexer, and ExpansionStack
// passed to Expand.
func NewExpander() *Expander { return &Expander{} }

// Expand consumes ident (already resolved to macro m and not
// currently disabled) and performs one expansion step. It returns the
// offset of the invocation's closing ')' when argument parsing
// happened (nil for an object-like macro, or when a function-like name
// was not followed by '('), whether a substitution actually occurred
// (false when a function-like name's invocation fell through for lack
// of a following '(' — the identifier is pushed back verbatim and no
// source-map expansion entry should be recorded for it), and an error
// on malformed arguments.
func (ex *Expander) Expand(lx *lexer.Lexer, store *MacroStore, ident lexer.Symbol, m *Macro, stack *ExpansionStack) (rparenEnd *int, expanded bool, err error) {
	store.Disable(m.Name)

	if !m.IsFunctionLike() {
		body := adjustFirstDelta(m.Body, ident)
		stack.pushReenableAnd(m.Name, body)
		return nil, true, nil
	}

	next := lx.Peek()
	if next.Kind != lexer.LParen {
		stack.pushReenableAnd(m.Name, []lexer.Symbol{ident})
		return nil, false, nil
	}
	lx.Next() // consume '('

	args, rpEnd, scanErr := scanArguments(lx)
	if scanErr != nil {
		return nil, false, scanErr
	}

	body := substituteParams(m, args)
	body = adjustFirstDelta(body, ident)
	stack.pushReenableAnd(m.Name, body)
	return &rpEnd, true, nil
}

// adjustFirstDelta rewrites body's first symbol to carry the
// invocation's own delta, so the expansion occupies the same visual
// column the invocation started at. Every symbol of the copy gets an
// empty range at the invocation's start: expanded text is synthetic and
// is never recorded in the source map.
func adjustFirstDelta(body []lexer.Symbol, ident lexer.Symbol) []lexer.Symbol {
	if len(body) == 0 {
		return body
	}
	out := make([]lexer.Symbol, len(body))
	copy(out, body)
	out[0].Delta = ident.Delta
	for i := range out {
		out[i].Range = lexer.Range{Start: ident.Range.Start, End: ident.Range.Start}
	}
	return out
}

// scanArguments reads comma-separated argument token lists from lx,
// respecting nested parentheses, until the matching top-level ')'. The
// leading '(' has already been consumed by the caller.
func scanArguments(lx *lexer.Lexer) ([][]lexer.Symbol, int, error) {
	var args [][]lexer.Symbol
	var cur []lexer.Symbol
	depth := 0
	for {
		s := lx.Next()
		switch s.Kind {
		case lexer.EOF:
			return nil, 0, newDirectiveError("unterminated macro argument list", s.Range)
		case lexer.LParen:
			depth++
			cur = append(cur, s)
		case lexer.RParen:
			if depth == 0 {
				args = append(args, cur)
				return args, s.Range.End, nil
			}
			depth--
			cur = append(cur, s)
		case lexer.Comma:
			if depth == 0 {
				args = append(args, cur)
				cur = nil
				continue
			}
			cur = append(cur, s)
		default:
			cur = append(cur, s)
		}
	}
}

// substituteParams replaces "%N" placeholder pairs (an OpPercent
// operator immediately followed by a single-digit integer literal) in
// m.Body with the tokens of the corresponding argument, per spec.md
// §4.3. params[d] == -1 (or an index outside the supplied args) leaves
// the placeholder as literal text.
func substituteParams(m *Macro, args [][]lexer.Symbol) []lexer.Symbol {
	var out []lexer.Symbol
	body := m.Body
	for i := 0; i < len(body); i++ {
		sym := body[i]
		if sym.Kind == lexer.Operator && sym.Op == lexer.OpPercent && i+1 < len(body) {
			next := body[i+1]
			if d, ok := placeholderDigit(next); ok {
				argIdx := -1
				if m.Params != nil {
					argIdx = m.Params[d]
				}
				if argIdx >= 0 && argIdx < len(args) {
					out = append(out, args[argIdx]...)
				} else {
					out = append(out, sym, next)
				}
				i++
				continue
			}
		}
		out = append(out, sym)
	}
	return out
}

func placeholderDigit(s lexer.Symbol) (int, bool) {
	if s.Kind != lexer.Literal || s.Lit != lexer.IntegerLiteral || len(s.Text) != 1 {
		return 0, false
	}
	if s.Text[0] < '0' || s.Text[0] > '9' {
		return 0, false
	}
	return int(s.Text[0] - '0'), true
}

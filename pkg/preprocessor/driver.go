package preprocessor

import (
	"strings"

	"github.com/sppc/sppc/pkg/lexer"
)

// Driver is the single dispatch loop that turns one file's raw text
// into a PreprocessingResult: it pulls from the Expansion Stack before
// the Lexer, routes directives to their handlers, expands identifiers
// bound to live macros, and recognises the `using __intrinsics__`
// micro-grammar, all while re-emitting everything else verbatim.
type Driver struct {
	fileID  int
	lx      *lexer.Lexer
	buf     *Buffer
	macros  *MacroStore
	stack   *ExpansionStack
	cond    *Conditional
	expand  *Expander
	intr    *Intrinsics
	include IncludeFunc

	macroNotFound []MacroNotFoundError
	unresolvedInc []UnresolvedIncludeError
	evalErrs      []EvaluationError
	fatal         error

	// pending tracks in-flight macro expansions LIFO, mirroring the
	// nesting of reenable markers on the Expansion Stack: each
	// expansion's source-map entry is only finalized once its reenable
	// marker is popped, i.e. once the entire expansion (including any
	// nested expansions triggered while draining it) has fully drained.
	pending []pendingExpansion
}

type pendingExpansion struct {
	invocation lexer.Range
	identity   Identity
	outputFrom int
}

// Preprocess runs the full dispatch loop over text and returns the
// accumulated result. fileID identifies text for source-map and macro
// Identity purposes; include resolves `#include`/`#tryinclude` targets
// and may be nil, in which case every include fails to resolve.
func Preprocess(fileID int, text string, include IncludeFunc) *PreprocessingResult {
	return PreprocessSeeded(fileID, text, nil, include)
}

// PreprocessSeeded is Preprocess with a pre-populated macro table merged
// in before the root library preload, letting a caller chase an include
// graph file-by-file — feeding the previous file's resulting macro table
// in as seed — rather than recursing through IncludeFunc for every file.
func PreprocessSeeded(fileID int, text string, seed MacrosMap, include IncludeFunc) *PreprocessingResult {
	d := &Driver{
		fileID:  fileID,
		lx:      lexer.New(text),
		buf:     NewBuffer(),
		macros:  NewMacroStore(),
		stack:   NewExpansionStack(),
		cond:    NewConditional(),
		expand:  NewExpander(),
		intr:    NewIntrinsics(),
		include: include,
	}
	if seed != nil {
		d.macros.Seed(seed)
	}
	d.preloadRootLibrary()
	d.run()
	return newResult(d.buf, d.macros, d.macroNotFound, d.unresolvedInc, d.evalErrs, d.cond.Offsets.Skipped(), d.fatal)
}

// preloadRootLibrary resolves the implicit "sourcemod" include before
// any of text is consumed, per spec.md §4.1. A nil include callback (or
// one that cannot resolve it) is not fatal — callers running over
// fragments with no real filesystem behind them still get a usable
// result.
func (d *Driver) preloadRootLibrary() {
	if d.include == nil {
		return
	}
	_ = d.include(d.macros.Map(), rootLibrary, d.fileID, false)
}

// run drains the Expansion Stack and Lexer per the §4.1 priority
// order until EOF or a fatal error.
func (d *Driver) run() {
	for {
		sym := d.nextSymbol()

		// EOF always terminates, even mid-suppression (an unterminated
		// `#if` must not lexer.Next() forever — the Go Lexer repeats
		// EOF rather than signalling end-of-sequence the way the
		// original's Option-returning iterator does).
		if sym.Kind == lexer.EOF {
			d.buf.PushSymbol(sym)
			return
		}

		if d.cond.Suppressed() {
			d.dispatchSuppressed(sym)
			continue
		}

		switch sym.Kind {
		case lexer.Unknown:
			d.fatal = &UnknownTokenError{Text: sym.Text, Range: sym.Range}
			return
		case lexer.PreprocDir:
			if err := d.dispatchDirective(sym); err != nil {
				d.fatal = err
				return
			}
		case lexer.Identifier:
			if d.intr.Feed(d.buf, sym) {
				continue
			}
			if !d.tryExpand(sym) {
				d.buf.PushSymbol(sym)
			}
			if d.fatal != nil {
				return
			}
		case lexer.Using, lexer.Intrinsics, lexer.Dot, lexer.Semicolon:
			if !d.intr.Feed(d.buf, sym) {
				d.buf.PushSymbol(sym)
			}
		default:
			d.buf.PushSymbol(sym)
		}
	}
}

// nextSymbol pops the Expansion Stack when non-empty, re-enabling a
// macro whose expansion has fully drained, and otherwise pulls from the
// Lexer.
func (d *Driver) nextSymbol() lexer.Symbol {
	for {
		sym, reenable, ok := d.stack.Pop()
		if ok {
			if reenable != "" {
				d.macros.Enable(reenable)
				d.finalizePending(reenable)
				continue
			}
			return sym
		}
		return d.lx.Next()
	}
}

// finalizePending pops the innermost pending expansion and records its
// completed source-map entry now that its body has fully drained and
// everything it emitted is already in the buffer. Reenable markers pop
// in exactly the LIFO order their expansions were pushed in, so the
// top of pending belongs to name whenever name's invocation actually
// expanded; a function-like name pushed back unexpanded has a marker
// but no pending entry, and is skipped here.
func (d *Driver) finalizePending(name string) {
	n := len(d.pending)
	if n == 0 || d.pending[n-1].identity.Name != name {
		return
	}
	p := d.pending[n-1]
	d.pending = d.pending[:n-1]
	d.buf.SourceMap().PushExpansion(p.invocation, p.outputFrom, d.buf.Offset(), p.identity)
}

// dispatchSuppressed handles a symbol while the current branch is
// skipped: only conditional directives are processed (to keep the
// state machine balanced); everything else, including the symbol's own
// newline, is dropped — its bytes are recovered in bulk when the
// skipped region eventually closes (see Conditional's returned ranges
// and reemitSkipped).
func (d *Driver) dispatchSuppressed(sym lexer.Symbol) {
	if sym.Kind != lexer.PreprocDir {
		return
	}
	switch sym.Dir {
	case lexer.DirIf:
		d.skipDirectiveLine()
		d.cond.ProcessNegativeIf()
	case lexer.DirEndif:
		end := d.skipDirectiveLine()
		closed, had := d.cond.ProcessEndif(end)
		d.reemitSkipped(closed, had)
	case lexer.DirElse:
		bodyStart := d.skipDirectiveLine()
		closed, had, err := d.cond.ProcessElse(bodyStart)
		if err != nil {
			d.fatal = err
			return
		}
		d.reemitSkipped(closed, had)
	case lexer.DirElseif:
		start := sym.Range.Start
		syms, end := d.collectDirectiveBody()
		bodyStart := end
		closed, had, err := d.cond.ProcessElseif(bodyStart, func() bool {
			ev := NewEvaluator(d.macros, d.expand, d.stack, d.lx)
			v, evalErr := ev.Evaluate(syms, d.lx.Slice(start, end), lexer.Range{Start: start, End: end})
			d.macroNotFound = append(d.macroNotFound, ev.NotFound...)
			if evalErr != nil {
				d.evalErrs = append(d.evalErrs, *evalErr.(*EvaluationError))
			}
			return v
		})
		if err != nil {
			d.fatal = err
			return
		}
		d.reemitSkipped(closed, had)
	default:
		// Any other directive inside a skipped region is itself
		// skipped; drop its line like ordinary body text.
		d.skipDirectiveLine()
	}
}

// skipDirectiveLine consumes the rest of a directive's own line (all
// symbols still InPreprocessor) without emitting anything, and returns
// the offset a caller should treat as "past this directive line". When
// anything follows the keyword, the terminating newline is consumed
// too and the offset is right after it; for a bare directive (`#else`,
// `#endif`) the initial Peek already ends the directive, so the newline
// stays queued as the next symbol and the offset is its start.
func (d *Driver) skipDirectiveLine() int {
	end := d.lx.Peek().Range.Start
	for d.lx.InPreprocessor() {
		s := d.lx.Next()
		end = s.Range.End
	}
	return end
}

// collectDirectiveBody reads every symbol still InPreprocessor (an
// `#if`/`#elseif` condition plus its terminating newline) and returns
// them together with the offset right after the line.
func (d *Driver) collectDirectiveBody() ([]lexer.Symbol, int) {
	var syms []lexer.Symbol
	end := d.lx.Peek().Range.Start
	for d.lx.InPreprocessor() {
		s := d.lx.Next()
		syms = append(syms, s)
		end = s.Range.End
	}
	return syms, end
}

// reemitSkipped re-pushes one newline per '\n' byte the just-closed
// skipped range spanned, via raw source slicing, so the output's line
// count stays faithful to the input regardless of how much text a
// skipped branch discarded. See DESIGN.md's note on conditional.go for
// why this compensation exists.
func (d *Driver) reemitSkipped(r lexer.Range, had bool) {
	if !had {
		return
	}
	text := d.lx.Slice(r.Start, r.End)
	d.buf.PushNewlines(strings.Count(text, "\n"))
}

// dispatchDirective handles a directive symbol reached while the
// current branch is active (not suppressed).
func (d *Driver) dispatchDirective(sym lexer.Symbol) error {
	switch sym.Dir {
	case lexer.DirDefine:
		return d.processDefine(sym)
	case lexer.DirUndef:
		return d.processUndef(sym)
	case lexer.DirIf:
		return d.processIf(sym)
	case lexer.DirElseif:
		return d.processElseif(sym)
	case lexer.DirElse:
		return d.processElse(sym)
	case lexer.DirEndif:
		return d.processEndif(sym)
	case lexer.DirInclude:
		return d.processInclude(sym, false)
	case lexer.DirTryinclude:
		return d.processInclude(sym, true)
	case lexer.DirPragma, lexer.DirError, lexer.DirWarning, lexer.DirOther:
		// Passed through: re-emit the directive keyword and the
		// remainder of its line symbol by symbol.
		return d.passThroughDirective(sym)
	default:
		return d.passThroughDirective(sym)
	}
}

// passThroughDirective re-emits a directive this package does not
// interpret (`#pragma`, `#error`, `#warning`, or any unrecognised
// keyword) symbol by symbol, each preceded by its whitespace delta
// written as that many spaces (tabs and line continuations inside the
// line are therefore not reproduced byte-for-byte).
func (d *Driver) passThroughDirective(sym lexer.Symbol) error {
	d.buf.PushSymbol(sym)
	for d.lx.InPreprocessor() {
		d.buf.PushSymbol(d.lx.Next())
	}
	return nil
}

// compensateDirectiveLine emits one newline per '\n' byte contained in
// [sym.Range.Start, bodyEnd) — the directive keyword through the end
// of its own line — replacing text that dispatchIf/Elseif/Else/Endif
// never re-emit symbol by symbol.
func (d *Driver) compensateDirectiveLine(sym lexer.Symbol, bodyEnd int) {
	text := d.lx.Slice(sym.Range.Start, bodyEnd)
	d.buf.PushNewlines(strings.Count(text, "\n"))
}

func (d *Driver) processIf(sym lexer.Symbol) error {
	start := sym.Range.Start
	syms, bodyEnd := d.collectDirectiveBody()
	ev := NewEvaluator(d.macros, d.expand, d.stack, d.lx)
	v, evalErr := ev.Evaluate(syms, d.lx.Slice(start, bodyEnd), lexer.Range{Start: start, End: bodyEnd})
	d.macroNotFound = append(d.macroNotFound, ev.NotFound...)
	if evalErr != nil {
		d.evalErrs = append(d.evalErrs, *evalErr.(*EvaluationError))
	}
	d.cond.ProcessIf(bodyEnd, v)
	d.compensateDirectiveLine(sym, bodyEnd)
	return nil
}

func (d *Driver) processElseif(sym lexer.Symbol) error {
	start := sym.Range.Start
	syms, bodyEnd := d.collectDirectiveBody()
	ev := NewEvaluator(d.macros, d.expand, d.stack, d.lx)
	closed, had, err := d.cond.ProcessElseif(bodyEnd, func() bool {
		v, evalErr := ev.Evaluate(syms, d.lx.Slice(start, bodyEnd), lexer.Range{Start: start, End: bodyEnd})
		d.macroNotFound = append(d.macroNotFound, ev.NotFound...)
		if evalErr != nil {
			d.evalErrs = append(d.evalErrs, *evalErr.(*EvaluationError))
		}
		return v
	})
	if err != nil {
		return err
	}
	d.reemitSkipped(closed, had)
	d.compensateDirectiveLine(sym, bodyEnd)
	return nil
}

func (d *Driver) processElse(sym lexer.Symbol) error {
	bodyEnd := d.skipDirectiveLine()
	closed, had, err := d.cond.ProcessElse(bodyEnd)
	if err != nil {
		return err
	}
	d.reemitSkipped(closed, had)
	d.compensateDirectiveLine(sym, bodyEnd)
	return nil
}

func (d *Driver) processEndif(sym lexer.Symbol) error {
	bodyEnd := d.skipDirectiveLine()
	closed, had := d.cond.ProcessEndif(bodyEnd)
	d.reemitSkipped(closed, had)
	d.compensateDirectiveLine(sym, bodyEnd)
	return nil
}

// processDefine implements `#define`'s Start/Params/Body scanner per
// spec.md §4.5: Start reads the macro name; an immediately-adjacent '('
// (no intervening whitespace) switches to Params, which reads a
// comma-separated list of positional parameter slots (see
// scanDefineParams); anything else (or the
// closing ')') switches to Body, which collects the remaining symbols
// on the line as the macro's replacement text. The keyword and every
// scanned name/param/body symbol is re-emitted to the output as it is
// read, so the directive line reaches the output exactly as written.
func (d *Driver) processDefine(sym lexer.Symbol) error {
	d.buf.PushSymbol(sym)

	nameSym := d.lx.Next()
	if nameSym.Kind != lexer.Identifier {
		return newDirectiveError("#define missing macro name", nameSym.Range)
	}
	d.buf.PushSymbol(nameSym)

	m := &Macro{FileID: d.fileID, Name: nameSym.Text, NameLen: len(nameSym.Text)}
	var body []lexer.Symbol

	if peek := d.lx.Peek(); peek.Kind == lexer.LParen && peek.Delta == 0 {
		lparen := d.lx.Next() // consume '('
		d.buf.PushSymbol(lparen)
		params, escaped, hasEscaped, err := d.scanDefineParams()
		if err != nil {
			return err
		}
		m.Params = &params.indices
		m.NbParams = params.count
		if hasEscaped && escaped.Kind != lexer.Newline {
			body = append(body, escaped)
		}
	} else if peek.Kind == lexer.Newline {
		// A bodiless #define: the Peek above already ended the directive,
		// so consume its newline here rather than leaving it queued for
		// the main loop on top of the newline pushed below.
		d.lx.Next()
	}

	for d.lx.InPreprocessor() {
		s := d.lx.Next()
		if s.Kind == lexer.Newline {
			break
		}
		d.buf.PushSymbol(s)
		body = append(body, s)
	}

	m.Body = body
	d.macros.Insert(m.Name, m)

	n := d.lx.DrainContinuations()
	d.buf.PushNewlines(n + 1)
	return nil
}

type defineParams struct {
	indices [10]int
	count   int
}

// scanDefineParams reads positional parameter slots — integer literals
// 0-9, optionally '%'-prefixed, separated by top-level commas — up to
// the closing ')', per spec.md §4.5. A symbol arriving with a positive
// whitespace delta escapes the scanner into Body early rather than
// erroring; it is returned as escaped so the caller can prepend it to
// the macro body it goes on to collect. Every symbol read here is
// re-emitted (unless it is the Newline/EOF that ends the directive) at
// the point it is read, regardless of which branch below consumes it.
func (d *Driver) scanDefineParams() (p defineParams, escaped lexer.Symbol, hasEscaped bool, err error) {
	for i := range p.indices {
		p.indices[i] = -1
	}
	argsIdx := 0
	for {
		s := d.lx.Next()
		if s.Kind != lexer.Newline && s.Kind != lexer.EOF {
			d.buf.PushSymbol(s)
		}
		if s.Delta > 0 {
			return p, s, true, nil
		}
		switch {
		case s.Kind == lexer.Operator && s.Op == lexer.OpPercent:
			continue
		case s.Kind == lexer.Literal && s.Lit == lexer.IntegerLiteral:
			v, ok := s.ToInt()
			if !ok || v < 0 || v > 9 {
				return p, lexer.Symbol{}, false, newDirectiveError("malformed #define parameter index", s.Range)
			}
			p.indices[int(v)] = argsIdx
		case s.Kind == lexer.Comma:
			argsIdx++
		case s.Kind == lexer.RParen:
			p.count = countParams(p.indices)
			return p, lexer.Symbol{}, false, nil
		default:
			return p, lexer.Symbol{}, false, newDirectiveError("malformed #define parameter list", s.Range)
		}
	}
}

func countParams(indices [10]int) int {
	n := 0
	for _, v := range indices {
		if v != -1 {
			n++
		}
	}
	return n
}

// processUndef re-emits the `#undef` keyword and the macro name it
// unbinds (and anything else trailing on the line) the same way
// processDefine re-emits its own directive line.
func (d *Driver) processUndef(sym lexer.Symbol) error {
	d.buf.PushSymbol(sym)

	nameSym := d.lx.Next()
	if nameSym.Kind != lexer.Identifier {
		return newDirectiveError("#undef missing macro name", nameSym.Range)
	}
	d.macros.Remove(nameSym.Text)
	d.buf.PushSymbol(nameSym)

	for d.lx.InPreprocessor() {
		s := d.lx.Next()
		if s.Kind == lexer.Newline {
			break
		}
		d.buf.PushSymbol(s)
	}
	n := d.lx.DrainContinuations()
	d.buf.PushNewlines(n + 1)
	return nil
}

// processInclude implements `#include`/`#tryinclude`: the path may be
// quoted (relative/project-local) or angle-bracketed (library search
// path); on a quoted or bracketed path this calls the injected
// IncludeFunc to merge the target's macros into the live table.
// `#tryinclude` swallows a resolution failure silently; `#include`
// records an UnresolvedIncludeError and continues (non-fatal, per
// spec.md §7). The path text itself is never re-emitted — only the
// directive keyword, followed by one newline per linebreak it spanned.
func (d *Driver) processInclude(sym lexer.Symbol, optional bool) error {
	path, quoted, pathRange, bodyEnd, err := d.scanIncludePath()
	if err != nil {
		return err
	}

	if d.include != nil {
		if err := d.include(d.macros.Map(), path, d.fileID, quoted); err != nil {
			if !optional {
				d.unresolvedInc = append(d.unresolvedInc, UnresolvedIncludeError{Path: path, Range: pathRange, Err: err})
			}
		}
	} else if !optional {
		d.unresolvedInc = append(d.unresolvedInc, UnresolvedIncludeError{Path: path, Range: pathRange, Err: errNoIncludeCallback})
	}

	d.buf.PushSymbol(sym)
	d.compensateDirectiveLine(sym, bodyEnd)
	return nil
}

// scanIncludePath reads either a quoted string literal or an
// angle-bracketed `<path>` token sequence up to the directive's
// terminating newline.
func (d *Driver) scanIncludePath() (path string, quoted bool, pathRange lexer.Range, bodyEnd int, err error) {
	first := d.lx.Next()
	switch {
	case first.Kind == lexer.Literal && first.Lit == lexer.StringLiteral:
		path = strings.Trim(first.Text, `"`)
		quoted = true
		pathRange = first.Range
	case first.Kind == lexer.Operator && first.Op == lexer.OpLt:
		var sb strings.Builder
		pathRange = first.Range
		for d.lx.InPreprocessor() {
			s := d.lx.Next()
			if s.Kind == lexer.Operator && s.Op == lexer.OpGt {
				pathRange.End = s.Range.End
				break
			}
			if s.Kind == lexer.Newline || s.Kind == lexer.EOF {
				return "", false, lexer.Range{}, 0, newDirectiveError("unterminated #include path", s.Range)
			}
			sb.WriteString(strings.Repeat(" ", int(s.Delta)))
			sb.WriteString(s.Text)
		}
		path = strings.TrimSpace(sb.String())
		quoted = false
	default:
		return "", false, lexer.Range{}, 0, newDirectiveError("malformed #include path", first.Range)
	}

	bodyEnd = pathRange.End
	for d.lx.InPreprocessor() {
		s := d.lx.Next()
		bodyEnd = s.Range.End
		if s.Kind == lexer.Newline {
			break
		}
	}
	return path, quoted, pathRange, bodyEnd, nil
}

// tryExpand looks ident up in the macro store and, if it is bound and
// not currently disabled, performs one expansion step. It reports
// whether ident was consumed by an expansion attempt (true) — even one
// that pushed the bare identifier back unexpanded because a
// function-like name wasn't followed by '(' — versus being bound to no
// macro at all, in which case the caller emits it verbatim.
func (d *Driver) tryExpand(ident lexer.Symbol) bool {
	m, ok := d.macros.Lookup(ident.Text)
	if !ok || d.macros.IsDisabled(ident.Text) {
		return false
	}
	outputFrom := d.buf.Offset()
	rparenEnd, expanded, err := d.expand.Expand(d.lx, d.macros, ident, m, d.stack)
	if err != nil {
		d.fatal = err
		return true
	}
	if expanded {
		invocation := ident.Range
		if rparenEnd != nil && ident.Range.Start <= *rparenEnd {
			invocation.End = *rparenEnd
		}
		d.pending = append(d.pending, pendingExpansion{invocation: invocation, identity: m.identity(), outputFrom: outputFrom})
	}
	return true
}

var errNoIncludeCallback = newDirectiveError("no include resolver configured", lexer.Range{})

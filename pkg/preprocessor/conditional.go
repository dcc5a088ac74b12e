package preprocessor

import "github.com/sppc/sppc/pkg/lexer"

// ConditionState is the state of one open `#if` nesting level.
type ConditionState int

const (
	// Active means the currently open branch is emitted.
	Active ConditionState = iota
	// NotActivated means no branch of this #if has matched yet; the
	// current branch is skipped.
	NotActivated
	// Activated means an earlier branch already matched; remaining
	// branches are skipped.
	Activated
)

// ConditionStack tracks the nesting of open `#if` directives. Its depth
// equals the current nesting depth; the top state determines whether
// incoming symbols are emitted or suppressed.
type ConditionStack []ConditionState

// Push adds a new nesting level.
func (s *ConditionStack) Push(state ConditionState) { *s = append(*s, state) }

// Pop removes and returns the top state. ok is false on an empty stack.
func (s *ConditionStack) Pop() (ConditionState, bool) {
	n := len(*s)
	if n == 0 {
		return Active, false
	}
	top := (*s)[n-1]
	*s = (*s)[:n-1]
	return top, true
}

// Top returns the current top state without removing it. If the stack
// is empty, the implicit top is Active (not suppressed).
func (s ConditionStack) Top() ConditionState {
	if len(s) == 0 {
		return Active
	}
	return s[len(s)-1]
}

// Suppressed reports whether the current branch should be skipped.
func (s ConditionStack) Suppressed() bool {
	top := s.Top()
	return top == NotActivated || top == Activated
}

// ConditionOffsetStack is the parallel stack of pending skipped-region
// start offsets, plus the flat list of completed skipped ranges. Only
// nesting levels that "own" a region (see Conditional.owns) ever push
// onto or close from this stack; a nested `#if` encountered while
// already suppressed never touches it at all, so it can never reach
// past its own level into an enclosing region's still-pending start.
type ConditionOffsetStack struct {
	starts  []int
	skipped []lexer.Range
}

// Push records the start offset of a new pending skipped region.
func (s *ConditionOffsetStack) Push(start int) { s.starts = append(s.starts, start) }

// Pop removes and returns the top pending start offset without closing
// a range (used when a branch transitions from Active — nothing was
// skipped, so there is nothing to record).
func (s *ConditionOffsetStack) Pop() (int, bool) {
	n := len(s.starts)
	if n == 0 {
		return 0, false
	}
	start := s.starts[n-1]
	s.starts = s.starts[:n-1]
	return start, true
}

// CloseRange pops the pending start offset and appends [start, end) to
// the flat skipped-ranges list, returning the closed range. ok is false
// if there was no pending start to close.
func (s *ConditionOffsetStack) CloseRange(end int) (lexer.Range, bool) {
	start, ok := s.Pop()
	if !ok {
		return lexer.Range{}, false
	}
	r := lexer.Range{Start: start, End: end}
	s.skipped = append(s.skipped, r)
	return r, true
}

// Skipped returns the flat list of completed skipped ranges so far.
func (s *ConditionOffsetStack) Skipped() []lexer.Range { return s.skipped }

// Conditional drives the #if/#elseif/#else/#endif state machine. It
// owns the ConditionStack and ConditionOffsetStack and delegates branch
// evaluation to an Evaluator-backed callback.
//
// Every method that can discard a skipped body returns the closed
// range (ok=false when nothing closed) so the driver can recover the
// newlines that body's raw text contained and re-emit them, keeping
// output line counts faithful to the input regardless of which
// branches were skipped.
//
// owns is a parallel stack, one entry per States frame, recording
// whether that frame has a matching entry on Offsets. A frame opened by
// ProcessIf (reached only when not already suppressed) owns one; a
// frame opened by ProcessNegativeIf (a nested `#if` found while already
// suppressed) does not, since the enclosing level's pending region
// already covers its entire span. elseif/else carry the popped frame's
// owns bit forward onto the replacement frame they push.
type Conditional struct {
	States  ConditionStack
	Offsets ConditionOffsetStack
	owns    []bool
}

// NewConditional returns an empty conditional processor.
func NewConditional() *Conditional {
	return &Conditional{}
}

// Suppressed reports whether the current branch is being skipped.
func (c *Conditional) Suppressed() bool { return c.States.Suppressed() }

func (c *Conditional) pushState(owns bool, state ConditionState) {
	c.owns = append(c.owns, owns)
	c.States.Push(state)
}

// popState pops the States frame together with its owns bit. ok is
// false on an empty stack (States.Pop and owns are always pushed and
// popped together, so one empty check covers both).
func (c *Conditional) popState() (state ConditionState, owns bool, ok bool) {
	state, ok = c.States.Pop()
	if !ok {
		return
	}
	n := len(c.owns)
	owns = c.owns[n-1]
	c.owns = c.owns[:n-1]
	return
}

// ProcessIf handles `#if` reached while not already suppressed.
// condTrue is the already-evaluated branch condition; bodyStart is the
// offset right after the `#if` directive's own line (where its body
// begins). This frame always owns an Offsets entry.
func (c *Conditional) ProcessIf(bodyStart int, condTrue bool) {
	state := NotActivated
	if condTrue {
		state = Active
	}
	c.Offsets.Push(bodyStart)
	c.pushState(true, state)
}

// ProcessNegativeIf handles an `#if` encountered while already
// suppressed: it always pushes Activated regardless of its own
// condition, and never touches Offsets — the enclosing suppressed
// region already spans this nested `#if` in full, so its own `#endif`
// must be a pure States pop, never a second, overlapping Offsets close.
func (c *Conditional) ProcessNegativeIf() {
	c.pushState(false, Activated)
}

// ProcessElseif handles `#elseif`. bodyStart is the offset right after
// the `#elseif` directive's own line (where the new branch's body
// begins). evalFn is called to evaluate the new branch's condition only
// when that evaluation is actually needed (top was NotActivated).
func (c *Conditional) ProcessElseif(bodyStart int, evalFn func() bool) (lexer.Range, bool, error) {
	top, owns, ok := c.popState()
	if !ok {
		return lexer.Range{}, false, newDirectiveError("#elseif with no matching #if", lexer.Range{Start: bodyStart, End: bodyStart})
	}
	switch top {
	case NotActivated:
		// Close the skipped region so far, replace the pending start
		// with this directive's body start (one entry, no second push),
		// then evaluate the new branch as an #if would.
		var closed lexer.Range
		var hadClose bool
		if owns {
			closed, hadClose = c.Offsets.CloseRange(bodyStart)
			c.Offsets.Push(bodyStart)
		}
		state := NotActivated
		if evalFn() {
			state = Active
		}
		c.pushState(owns, state)
		return closed, hadClose, nil
	case Active:
		if owns {
			c.Offsets.Pop()
			c.Offsets.Push(bodyStart)
		}
		c.pushState(owns, Activated)
		return lexer.Range{}, false, nil
	default: // Activated
		var closed lexer.Range
		var hadClose bool
		if owns {
			closed, hadClose = c.Offsets.CloseRange(bodyStart)
			c.Offsets.Push(bodyStart)
		}
		c.pushState(owns, Activated)
		return closed, hadClose, nil
	}
}

// ProcessElse handles `#else`. bodyStart is the offset right after the
// `#else` directive's own line.
func (c *Conditional) ProcessElse(bodyStart int) (lexer.Range, bool, error) {
	top, owns, ok := c.popState()
	if !ok {
		return lexer.Range{}, false, newDirectiveError("#else with no matching #if", lexer.Range{Start: bodyStart, End: bodyStart})
	}
	switch top {
	case NotActivated:
		var closed lexer.Range
		var hadClose bool
		if owns {
			closed, hadClose = c.Offsets.CloseRange(bodyStart)
			c.Offsets.Push(bodyStart)
		}
		c.pushState(owns, Active)
		return closed, hadClose, nil
	case Active:
		if owns {
			c.Offsets.Pop()
			c.Offsets.Push(bodyStart)
		}
		c.pushState(owns, Activated)
		return lexer.Range{}, false, nil
	default: // Activated
		var closed lexer.Range
		var hadClose bool
		if owns {
			closed, hadClose = c.Offsets.CloseRange(bodyStart)
			c.Offsets.Push(bodyStart)
		}
		c.pushState(owns, Activated)
		return closed, hadClose, nil
	}
}

// ProcessEndif handles `#endif`. Silent recovery on an empty stack is
// intentional — preserved per spec.md §9 — unlike #else/#elseif, which
// abort. end is the `#endif` directive's own line end offset. A frame
// that doesn't own an Offsets entry (a nested `#if` found while already
// suppressed) is a pure States pop: no close, regardless of its state.
func (c *Conditional) ProcessEndif(end int) (lexer.Range, bool) {
	top, owns, ok := c.popState()
	if !ok {
		return lexer.Range{}, false
	}
	if !owns {
		return lexer.Range{}, false
	}
	if top != Active {
		return c.Offsets.CloseRange(end)
	}
	c.Offsets.Pop()
	return lexer.Range{}, false
}

// ProcessNegative routes a directive symbol encountered while the
// current branch is suppressed: nested #if always pushes Activated;
// #endif/#else/#elseif still need to run their normal handler so the
// stack stays balanced; any other directive is a no-op. bodyEnd is the
// offset right after the directive's own line.
func (c *Conditional) ProcessNegative(dir lexer.PreprocDirKind, bodyEnd int, evalFn func() bool) (lexer.Range, bool, error) {
	switch dir {
	case lexer.DirIf:
		c.ProcessNegativeIf()
		return lexer.Range{}, false, nil
	case lexer.DirEndif:
		closed, hadClose := c.ProcessEndif(bodyEnd)
		return closed, hadClose, nil
	case lexer.DirElse:
		return c.ProcessElse(bodyEnd)
	case lexer.DirElseif:
		return c.ProcessElseif(bodyEnd, evalFn)
	default:
		return lexer.Range{}, false, nil
	}
}

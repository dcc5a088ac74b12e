package preprocessor

import "github.com/sppc/sppc/pkg/lexer"

// intrinsicsState is the micro-FSM that recognises the four-symbol
// sequence `using __intrinsics__ . Handle ;`.
type intrinsicsState int

const (
	intrinsicsNone intrinsicsState = iota
	intrinsicsUsing
	intrinsicsDot
	intrinsicsHandle
	intrinsicsSemicolon
)

// handleSubstitution is the fixed text emitted in place of a matched
// `using __intrinsics__.Handle;` sequence.
const handleSubstitution = "methodmap Handle __nullable__ {public native ~Handle();public native void Close();};"

// Intrinsics tracks progress through the micro-FSM across successive
// Driver dispatch calls.
type Intrinsics struct {
	state intrinsicsState
}

// NewIntrinsics returns a fresh, unmatched intrinsics parser.
func NewIntrinsics() *Intrinsics { return &Intrinsics{} }

// Feed advances the FSM on sym and reports whether sym was consumed:
// true when sym advances the match, completes it (the substitution text
// is then written to buf) or is the trailing ';' being swallowed; false
// when sym does not fit, in which case the FSM resets and the caller
// emits sym itself.
func (p *Intrinsics) Feed(buf *Buffer, sym lexer.Symbol) bool {
	switch p.state {
	case intrinsicsNone:
		if sym.Kind == lexer.Using {
			p.state = intrinsicsUsing
			return true
		}
	case intrinsicsUsing:
		if sym.Kind == lexer.Intrinsics {
			p.state = intrinsicsDot
			return true
		}
		p.state = intrinsicsNone
	case intrinsicsDot:
		if sym.Kind == lexer.Dot {
			p.state = intrinsicsHandle
			return true
		}
		p.state = intrinsicsNone
	case intrinsicsHandle:
		if sym.Kind == lexer.Identifier && sym.Text == "Handle" {
			buf.PushStr(handleSubstitution)
			p.state = intrinsicsSemicolon
			return true
		}
		p.state = intrinsicsNone
	case intrinsicsSemicolon:
		p.state = intrinsicsNone
		if sym.Kind == lexer.Semicolon {
			return true // swallow the trailing ';'
		}
		return false
	}
	return false
}

package preprocessor

import (
	"strings"

	"github.com/sppc/sppc/pkg/lexer"
)

// Buffer accumulates preprocessed output text alongside the source map
// that relates each emitted byte range back to the original source.
type Buffer struct {
	contents strings.Builder
	offset   int
	sm       *SourceMap
}

// NewBuffer returns an empty output buffer.
func NewBuffer() *Buffer {
	return &Buffer{sm: NewSourceMap()}
}

// PushWhitespace appends |delta| space characters.
func (b *Buffer) PushWhitespace(delta int32) {
	if delta < 0 {
		delta = -delta
	}
	b.contents.WriteString(strings.Repeat(" ", int(delta)))
	b.offset += int(delta)
}

// PushNewline appends a single newline byte.
func (b *Buffer) PushNewline() {
	b.contents.WriteByte('\n')
	b.offset++
}

// PushNewlines appends count newline bytes.
func (b *Buffer) PushNewlines(count int) {
	for i := 0; i < count; i++ {
		b.PushNewline()
	}
}

// PushSymbol emits sym with its preceding whitespace delta, recording a
// source-map entry when sym's original range is non-empty. EOF symbols
// are emitted as a single synthetic newline.
func (b *Buffer) PushSymbol(sym lexer.Symbol) {
	if sym.Kind == lexer.EOF {
		b.PushNewline()
		return
	}
	b.PushWhitespace(sym.Delta)
	b.PushSymbolNoDelta(sym)
}

// PushSymbolNoDelta emits sym's text without any preceding whitespace,
// used inside directive bodies where the directive keyword already
// accounted for the leading space. Still records a source-map entry.
func (b *Buffer) PushSymbolNoDelta(sym lexer.Symbol) {
	start := b.offset
	b.contents.WriteString(sym.Text)
	if !sym.Range.IsEmpty() {
		b.sm.Push(sym.Range, lexer.Range{Start: start, End: start + sym.Range.Len()})
	}
	b.offset += len(sym.Text)
}

// PushStr appends a raw string with no source-map entry.
func (b *Buffer) PushStr(s string) {
	b.contents.WriteString(s)
	b.offset += len(s)
}

// Offset returns the buffer's current byte length.
func (b *Buffer) Offset() int { return b.offset }

// Contents returns the accumulated output text.
func (b *Buffer) Contents() string { return b.contents.String() }

// SourceMap returns the buffer's live source map.
func (b *Buffer) SourceMap() *SourceMap { return b.sm }

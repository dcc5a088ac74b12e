package preprocessor

import (
	"testing"

	"github.com/sppc/sppc/pkg/lexer"
)

func TestBufferPushSymbolAppliesDelta(t *testing.T) {
	b := NewBuffer()
	b.PushSymbol(lexer.Symbol{Kind: lexer.Identifier, Text: "foo", Range: lexer.Range{Start: 3, End: 6}, Delta: 3})
	if got, want := b.Contents(), "   foo"; got != want {
		t.Fatalf("Contents() = %q, want %q", got, want)
	}
}

func TestBufferPushSymbolEOFIsSingleNewline(t *testing.T) {
	b := NewBuffer()
	b.PushSymbol(lexer.Symbol{Kind: lexer.EOF, Range: lexer.Range{Start: 10, End: 10}, Delta: 5})
	if got, want := b.Contents(), "\n"; got != want {
		t.Fatalf("Contents() = %q, want %q", got, want)
	}
}

func TestBufferPushSymbolRecordsSourceMap(t *testing.T) {
	b := NewBuffer()
	b.PushSymbol(lexer.Symbol{Kind: lexer.Identifier, Text: "foo", Range: lexer.Range{Start: 3, End: 6}, Delta: 0})
	rng, ok := b.SourceMap().OriginalRangeFor(1)
	if !ok || rng != (lexer.Range{Start: 3, End: 6}) {
		t.Fatalf("OriginalRangeFor(1) = %v,%v, want {3 6},true", rng, ok)
	}
}

func TestBufferPushSymbolSkipsEmptyRangeInSourceMap(t *testing.T) {
	b := NewBuffer()
	b.PushSymbol(lexer.NewSynthetic(lexer.Literal, "1", 0))
	if len(b.SourceMap().Mappings) != 0 {
		t.Fatalf("expected no source-map entry for a synthetic (empty-range) symbol")
	}
}

func TestBufferPushNewlinesAndStr(t *testing.T) {
	b := NewBuffer()
	b.PushNewlines(3)
	b.PushStr("tail")
	want := "\n\n\ntail"
	if got := b.Contents(); got != want {
		t.Fatalf("Contents() = %q, want %q", got, want)
	}
	if b.Offset() != len(want) {
		t.Fatalf("Offset() = %d, want %d", b.Offset(), len(want))
	}
}

func TestCoalesceRangesMergesOverlappingAndTouching(t *testing.T) {
	in := []lexer.Range{{Start: 10, End: 20}, {Start: 0, End: 5}, {Start: 5, End: 10}, {Start: 25, End: 30}}
	out := CoalesceRanges(in)
	want := []lexer.Range{{Start: 0, End: 20}, {Start: 25, End: 30}}
	if len(out) != len(want) {
		t.Fatalf("CoalesceRanges() = %v, want %v", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("CoalesceRanges()[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestSourceMapExpansionAt(t *testing.T) {
	sm := NewSourceMap()
	sm.PushExpansion(lexer.Range{Start: 0, End: 5}, 10, 15, Identity{Name: "FOO"})
	e, ok := sm.ExpansionAt(12)
	if !ok || e.Macro.Name != "FOO" {
		t.Fatalf("ExpansionAt(12) = %v,%v, want FOO,true", e, ok)
	}
	if _, ok := sm.ExpansionAt(20); ok {
		t.Fatalf("ExpansionAt(20) should miss")
	}
}

package preprocessor

import (
	"sort"

	"github.com/sppc/sppc/pkg/lexer"
)

// Mapping pairs a non-empty original range with the output range it was
// emitted into.
type Mapping struct {
	Original lexer.Range
	Output   lexer.Range
}

// Expansion records a single completed macro expansion: the (possibly
// widened, when arguments were consumed) invocation range in the
// original source, the output range it produced, and the identity of
// the macro that fired.
type Expansion struct {
	Invocation lexer.Range
	OutputFrom int
	OutputTo   int
	Macro      Identity
}

// SourceMap is a reversible relation between output byte offsets and
// original source ranges, plus a separate record of macro expansions.
type SourceMap struct {
	Mappings   []Mapping
	Expansions []Expansion
}

// NewSourceMap returns an empty source map.
func NewSourceMap() *SourceMap {
	return &SourceMap{}
}

// Push records a (original, output) pair for a non-empty-range symbol.
// Output ranges are pushed in non-decreasing start order by construction
// (the buffer only ever appends), so Mappings stays sorted.
func (sm *SourceMap) Push(original, output lexer.Range) {
	if original.IsEmpty() {
		return
	}
	sm.Mappings = append(sm.Mappings, Mapping{Original: original, Output: output})
}

// PushExpansion records a completed macro expansion.
func (sm *SourceMap) PushExpansion(invocation lexer.Range, from, to int, macro Identity) {
	sm.Expansions = append(sm.Expansions, Expansion{Invocation: invocation, OutputFrom: from, OutputTo: to, Macro: macro})
}

// OriginalRangeFor returns the original range nearest to output offset
// off, i.e. the mapping entry whose output range contains off, or the
// last entry starting at or before off if none contains it exactly.
func (sm *SourceMap) OriginalRangeFor(off int) (lexer.Range, bool) {
	i := sort.Search(len(sm.Mappings), func(i int) bool {
		return sm.Mappings[i].Output.Start > off
	})
	if i == 0 {
		return lexer.Range{}, false
	}
	return sm.Mappings[i-1].Original, true
}

// ExpansionAt returns the expansion entry whose output range contains
// off, if any.
func (sm *SourceMap) ExpansionAt(off int) (Expansion, bool) {
	for i := len(sm.Expansions) - 1; i >= 0; i-- {
		e := sm.Expansions[i]
		if off >= e.OutputFrom && off < e.OutputTo {
			return e, true
		}
	}
	return Expansion{}, false
}

// shrinkToFit trims the backing arrays of the map's slices to their
// exact length, mirroring the original crate's shrink_to_fit call on
// its result before returning it to the caller.
func (sm *SourceMap) shrinkToFit() {
	if sm.Mappings != nil {
		m := make([]Mapping, len(sm.Mappings))
		copy(m, sm.Mappings)
		sm.Mappings = m
	}
	if sm.Expansions != nil {
		e := make([]Expansion, len(sm.Expansions))
		copy(e, sm.Expansions)
		sm.Expansions = e
	}
}

// CoalesceRanges sorts ranges by start offset and merges any pair that
// overlaps or touches (end == next start), producing the inactive-ranges
// report.
func CoalesceRanges(ranges []lexer.Range) []lexer.Range {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]lexer.Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := []lexer.Range{sorted[0]}
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

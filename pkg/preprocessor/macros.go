package preprocessor

import "github.com/sppc/sppc/pkg/lexer"

// Macro is an object-like or function-like macro definition. It is
// object-like when Params is nil; function-like otherwise.
type Macro struct {
	FileID   int
	Name     string
	NameLen  int
	Body     []lexer.Symbol
	Params   *[10]int // params[i] = positional arg index for formal i, or -1
	NbParams int
}

// IsFunctionLike reports whether the macro takes a parenthesised
// argument list.
func (m *Macro) IsFunctionLike() bool { return m.Params != nil }

// Identity is the subset of a Macro's fields worth keeping once the
// macro itself may be redefined or removed: enough for a source-map
// expansion entry or a diagnostic to name what was expanded.
type Identity struct {
	FileID   int
	Name     string
	NbParams int
}

func (m *Macro) identity() Identity {
	return Identity{FileID: m.FileID, Name: m.Name, NbParams: m.NbParams}
}

// MacrosMap is the name-keyed macro table shared with the include
// callback, which may populate it with an included file's definitions.
type MacrosMap map[string]*Macro

// MacroStore owns the current macro table plus the set of macro names
// currently disabled to break self-referential expansion.
type MacroStore struct {
	macros   MacrosMap
	disabled map[string]bool
}

// NewMacroStore creates an empty store.
func NewMacroStore() *MacroStore {
	return &MacroStore{macros: make(MacrosMap), disabled: make(map[string]bool)}
}

// Seed merges an externally-supplied macro table into the store,
// overwriting any existing entries with the same name. Used to preload
// a file's macro table from a prior preprocessing pass over an include.
func (s *MacroStore) Seed(macros MacrosMap) {
	for name, m := range macros {
		s.macros[name] = m
	}
}

// Lookup returns the macro bound to name, if any.
func (s *MacroStore) Lookup(name string) (*Macro, bool) {
	m, ok := s.macros[name]
	return m, ok
}

// Insert binds name to m, replacing any previous definition.
func (s *MacroStore) Insert(name string, m *Macro) {
	s.macros[name] = m
}

// Remove deletes name from the store. A no-op if name is unbound.
func (s *MacroStore) Remove(name string) {
	delete(s.macros, name)
}

// IsDisabled reports whether name is currently in the disabled set.
func (s *MacroStore) IsDisabled(name string) bool {
	return s.disabled[name]
}

// Disable adds name to the disabled set.
func (s *MacroStore) Disable(name string) {
	s.disabled[name] = true
}

// Enable removes name from the disabled set.
func (s *MacroStore) Enable(name string) {
	delete(s.disabled, name)
}

// Map returns the live macro table, exposed so the include callback can
// mutate it directly.
func (s *MacroStore) Map() MacrosMap {
	return s.macros
}

// Snapshot returns a shallow copy of the macro table suitable for
// embedding in a PreprocessingResult.
func (s *MacroStore) Snapshot() MacrosMap {
	out := make(MacrosMap, len(s.macros))
	for k, v := range s.macros {
		out[k] = v
	}
	return out
}

package preprocessor

// IncludeFunc is the host-injected include callback: given the live
// macro table, a path, the requesting file's id, and whether the path
// was quoted (`"…"`) rather than angle-bracketed (`<…>`), it resolves
// and preprocesses the target file, merging its macros into macros via
// the mutable reference, or returns an error.
//
// Per spec.md §5, cycle detection across nested includes is the
// callback's own responsibility; this package has no VFS knowledge and
// keeps no include-guard cache (see DESIGN.md).
type IncludeFunc func(macros MacrosMap, path string, parentFileID int, quoted bool) error

// rootLibrary is the implicit root library preloaded before any input
// is consumed, per spec.md §4.1.
const rootLibrary = "sourcemod"

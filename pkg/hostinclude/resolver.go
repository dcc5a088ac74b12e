// Package hostinclude provides a filesystem-backed preprocessor.IncludeFunc:
// path resolution across -I directories, cycle detection, and recursive
// preprocessing of the resolved file, merging its resulting macro table
// back into the includer's.
//
// The preprocessor core itself has no VFS knowledge and delegates all of
// this to the host, per its IncludeFunc contract — this is that host.
package hostinclude

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sppc/sppc/pkg/preprocessor"
)

// MaxIncludeDepth bounds the include nesting depth so a cyclical or
// pathologically deep include graph fails fast rather than recursing
// until the stack blows.
const MaxIncludeDepth = 200

// Resolver resolves `#include`/`#tryinclude` paths against a fixed set of
// search directories and guards against circular includes.
type Resolver struct {
	UserPaths  []string // -I directories, searched in order
	dirStack   []string // directory of the file currently being processed, for quoted includes
	includeStk []string // absolute paths of files currently being included, for cycle detection
	nextFileID int
}

// New creates a Resolver rooted at rootDir (the directory of the entry
// file, used to resolve quoted includes from the top level).
func New(rootDir string, userPaths []string) *Resolver {
	return &Resolver{
		UserPaths:  userPaths,
		dirStack:   []string{rootDir},
		nextFileID: 1,
	}
}

// Kind distinguishes "file" (quoted) from <file> (angle-bracketed) includes.
type Kind int

const (
	Quoted Kind = iota
	Angled
)

// NotFoundError reports that path could not be located on any search path.
type NotFoundError struct {
	Path string
	Kind Kind
}

func (e *NotFoundError) Error() string {
	kind := "angled"
	if e.Kind == Quoted {
		kind = "quoted"
	}
	return fmt.Sprintf("include file not found: %s (%s)", e.Path, kind)
}

// CircularIncludeError reports that path is already being processed
// somewhere up the current include stack.
type CircularIncludeError struct {
	Path  string
	Stack []string
}

func (e *CircularIncludeError) Error() string {
	return fmt.Sprintf("circular include detected: %s (stack: %v)", e.Path, e.Stack)
}

// resolve searches the current directory (quoted only) then UserPaths, in
// order, for path, returning its absolute location.
func (r *Resolver) resolve(path string, quoted bool) (string, error) {
	var searchDirs []string
	if quoted && len(r.dirStack) > 0 {
		searchDirs = append(searchDirs, r.dirStack[len(r.dirStack)-1])
	}
	searchDirs = append(searchDirs, r.UserPaths...)

	for _, dir := range searchDirs {
		full := filepath.Join(dir, path)
		if _, err := os.Stat(full); err == nil {
			abs, err := filepath.Abs(full)
			if err != nil {
				abs = full
			}
			return abs, nil
		}
	}
	kind := Angled
	if quoted {
		kind = Quoted
	}
	return "", &NotFoundError{Path: path, Kind: kind}
}

func (r *Resolver) push(abs string) error {
	if len(r.includeStk) >= MaxIncludeDepth {
		return fmt.Errorf("include nesting exceeds %d levels", MaxIncludeDepth)
	}
	for _, f := range r.includeStk {
		if f == abs {
			return &CircularIncludeError{Path: abs, Stack: append([]string(nil), r.includeStk...)}
		}
	}
	r.includeStk = append(r.includeStk, abs)
	r.dirStack = append(r.dirStack, filepath.Dir(abs))
	return nil
}

func (r *Resolver) pop() {
	r.includeStk = r.includeStk[:len(r.includeStk)-1]
	r.dirStack = r.dirStack[:len(r.dirStack)-1]
}

// Include implements preprocessor.IncludeFunc: it resolves path, reads
// and recursively preprocesses it (chasing its own nested includes
// through this same Resolver), and merges the result's macro table into
// macros.
func (r *Resolver) Include(macros preprocessor.MacrosMap, path string, parentFileID int, quoted bool) error {
	abs, err := r.resolve(path, quoted)
	if err != nil {
		return err
	}
	if err := r.push(abs); err != nil {
		return err
	}
	defer r.pop()

	content, err := os.ReadFile(abs)
	if err != nil {
		return err
	}

	fileID := r.nextFileID
	r.nextFileID++

	result := preprocessor.PreprocessSeeded(fileID, string(content), macros, r.Include)
	if result.Aborted() {
		return fmt.Errorf("preprocessing %s: %w", path, result.FatalErr)
	}
	for name, m := range result.Macros {
		macros[name] = m
	}
	return nil
}

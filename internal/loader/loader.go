// Package loader drives the lexer and parser over a root source file and its
// transitive imports, accumulating the word table and alias table consumed by
// the bytecode compiler.
//
// Loading is depth-first and file-level: on an import directive the target
// file is fully processed before the importing file continues. A canonical
// path set guards against duplicate loads, and an in-progress set detects
// import cycles. Only the root file contributes top-level expressions; in
// imported files they are ignored (reported on the warning writer, if any).
package loader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/sger/ember/internal/ast"
	"github.com/sger/ember/internal/lexer"
	"github.com/sger/ember/internal/parser"
)

// ErrorKind classifies loader failures.
type ErrorKind int

const (
	FileNotFound ErrorKind = iota
	ImportCycle
	DuplicateDefinition
	AmbiguousAlias
)

// errorKindNames maps error kinds to their display labels.
var errorKindNames = map[ErrorKind]string{
	FileNotFound:        "file not found",
	ImportCycle:         "import cycle",
	DuplicateDefinition: "duplicate definition",
	AmbiguousAlias:      "ambiguous alias",
}

// String returns the display label for the error kind.
func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// LoadError reports a structural loading failure.
type LoadError struct {
	Kind    ErrorKind
	Message string
	Pos     lexer.Position
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("load error at %s: %s: %s", e.Pos, e.Kind, e.Message)
	}
	return fmt.Sprintf("load error: %s: %s", e.Kind, e.Message)
}

// Word is one entry of the word table: the unresolved AST body of a user
// definition plus its source origin.
type Word struct {
	// Name is the fully qualified name the word is registered under.
	Name string
	// Module is the owning module name, empty for file-level definitions.
	Module string
	// Body is the definition body in source order.
	Body []ast.Node
	// Origin is the position of the def keyword.
	Origin lexer.Position
}

// Result is the fully accumulated output of a load run.
type Result struct {
	// Words maps fully qualified names to their compilation units.
	Words map[string]*Word
	// Aliases maps short names to fully qualified names.
	Aliases map[string]string
	// Exprs holds the root file's top-level expressions in source order.
	Exprs []ast.Node
	// Root is the canonical path of the root file.
	Root string
}

// Loader performs depth-first multi-file loading.
type Loader struct {
	stdlibDir string
	warnings  io.Writer
	loaded    map[string]bool
	loading   map[string]bool
	result    *Result
}

// Option configures a Loader.
type Option func(*Loader)

// WithStdlibDir sets the fallback directory consulted when an import cannot
// be resolved relative to the importing file.
func WithStdlibDir(dir string) Option {
	return func(l *Loader) {
		l.stdlibDir = dir
	}
}

// WithWarnings sets the writer that receives non-fatal diagnostics, such as
// ignored top-level expressions in imported files. Nil disables them.
func WithWarnings(w io.Writer) Option {
	return func(l *Loader) {
		l.warnings = w
	}
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		loaded:  make(map[string]bool),
		loading: make(map[string]bool),
		result: &Result{
			Words:   make(map[string]*Word),
			Aliases: make(map[string]string),
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load processes the root file and its transitive imports and returns the
// accumulated result. Loading fails fast: at most one error is reported.
func (l *Loader) Load(rootPath string) (*Result, error) {
	canonical, err := canonicalPath(rootPath)
	if err != nil {
		return nil, &LoadError{
			Kind:    FileNotFound,
			Message: fmt.Sprintf("cannot resolve %q: %v", rootPath, err),
		}
	}
	l.result.Root = canonical
	if err := l.loadFile(canonical, true); err != nil {
		return nil, err
	}
	return l.result, nil
}

// canonicalPath normalizes a path for the duplicate and cycle guards.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// loadFile lexes, parses and processes a single file.
// The path must already be canonical.
func (l *Loader) loadFile(path string, isRoot bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return &LoadError{
			Kind:    FileNotFound,
			Message: fmt.Sprintf("cannot read %s: %v", path, err),
		}
	}

	l.loading[path] = true
	defer delete(l.loading, path)

	tokens, err := lexer.New(string(content), lexer.WithFile(path)).Tokenize()
	if err != nil {
		return err
	}
	file, err := parser.New(tokens, path).Parse()
	if err != nil {
		return err
	}

	// Process items in source order so that use directives only see names
	// visible at the moment they are reached.
	for _, item := range file.Items {
		switch node := item.(type) {
		case *ast.ImportDecl:
			if err := l.processImport(node, path); err != nil {
				return err
			}
		case *ast.ModuleBlock:
			for _, def := range node.Defs {
				qualified := node.Name + "." + def.Name
				if err := l.register(qualified, node.Name, def); err != nil {
					return err
				}
			}
		case *ast.WordDef:
			if err := l.register(node.Name, "", node); err != nil {
				return err
			}
		case *ast.UseDecl:
			if err := l.processUse(node); err != nil {
				return err
			}
		default:
			if isRoot {
				l.result.Exprs = append(l.result.Exprs, item)
			} else if l.warnings != nil {
				fmt.Fprintf(l.warnings, "warning: %s: top-level expression in imported file is ignored\n", item.Pos())
			}
		}
	}

	l.loaded[path] = true
	return nil
}

// register inserts a word into the word table, rejecting redefinition.
func (l *Loader) register(qualified, module string, def *ast.WordDef) error {
	if existing, ok := l.result.Words[qualified]; ok {
		return &LoadError{
			Kind:    DuplicateDefinition,
			Message: fmt.Sprintf("word %q is already defined at %s", qualified, existing.Origin),
			Pos:     def.Position,
		}
	}
	l.result.Words[qualified] = &Word{
		Name:   qualified,
		Module: module,
		Body:   def.Body,
		Origin: def.Position,
	}
	return nil
}

// processImport resolves and recursively loads an import target.
func (l *Loader) processImport(node *ast.ImportDecl, importer string) error {
	target, ok := l.resolveImport(node.Path, filepath.Dir(importer))
	if !ok {
		return &LoadError{
			Kind:    FileNotFound,
			Message: fmt.Sprintf("cannot resolve import %q", node.Path),
			Pos:     node.Position,
		}
	}
	if l.loading[target] {
		return &LoadError{
			Kind:    ImportCycle,
			Message: fmt.Sprintf("import of %s cycles back through %s", node.Path, target),
			Pos:     node.Position,
		}
	}
	if l.loaded[target] {
		return nil
	}
	return l.loadFile(target, false)
}

// resolveImport locates an import target. The path is tried relative to the
// importing file's directory first, then the standard-library directory.
// A path without an extension gets the .em suffix appended.
func (l *Loader) resolveImport(path, importerDir string) (string, bool) {
	if filepath.Ext(path) == "" {
		path += ".em"
	}

	dirs := []string{importerDir}
	if l.stdlibDir != "" {
		dirs = append(dirs, l.stdlibDir)
	}
	for _, dir := range dirs {
		candidate := filepath.Join(dir, path)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			canonical, err := canonicalPath(candidate)
			if err == nil {
				return canonical, true
			}
		}
	}
	return "", false
}

// processUse inserts aliases for a use directive. A wildcard aliases every
// qualified name currently in the word table under the module prefix; named
// imports alias unconditionally and are checked for undefined words at
// compile time. Alias collisions are an error unless both map to the same
// qualified name.
func (l *Loader) processUse(node *ast.UseDecl) error {
	if node.Wildcard {
		prefix := node.Module + "."
		names := lo.Filter(lo.Keys(l.result.Words), func(key string, _ int) bool {
			return strings.HasPrefix(key, prefix)
		})
		sort.Strings(names)
		for _, qualified := range names {
			short := strings.TrimPrefix(qualified, prefix)
			if err := l.addAlias(short, qualified, node.Position); err != nil {
				return err
			}
		}
		return nil
	}

	for _, short := range node.Names {
		if err := l.addAlias(short, node.Module+"."+short, node.Position); err != nil {
			return err
		}
	}
	return nil
}

// addAlias inserts one short→qualified mapping into the alias table.
func (l *Loader) addAlias(short, qualified string, pos lexer.Position) error {
	if existing, ok := l.result.Aliases[short]; ok && existing != qualified {
		return &LoadError{
			Kind:    AmbiguousAlias,
			Message: fmt.Sprintf("alias %q already refers to %q, cannot also refer to %q", short, existing, qualified),
			Pos:     pos,
		}
	}
	l.result.Aliases[short] = qualified
	return nil
}

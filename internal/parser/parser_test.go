package parser

import (
	"testing"

	"github.com/sger/ember/internal/ast"
	"github.com/sger/ember/internal/lexer"
)

func parse(t *testing.T, input string) *ast.File {
	t.Helper()
	tokens, err := lexer.New(input, lexer.WithFile("test.em")).Tokenize()
	if err != nil {
		t.Fatalf("lex failed: %v", err)
	}
	file, err := New(tokens, "test.em").Parse()
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return file
}

func parseError(t *testing.T, input string) *ParseError {
	t.Helper()
	tokens, err := lexer.New(input).Tokenize()
	if err != nil {
		t.Fatalf("lex failed: %v", err)
	}
	_, err = New(tokens, "").Parse()
	if err == nil {
		t.Fatalf("parse(%q): expected error", input)
	}
	parseErr, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("error type = %T, want *ParseError", err)
	}
	return parseErr
}

func TestWordDefinition(t *testing.T) {
	file := parse(t, "def square dup * end")
	if len(file.Items) != 1 {
		t.Fatalf("item count = %d, want 1", len(file.Items))
	}
	def, ok := file.Items[0].(*ast.WordDef)
	if !ok {
		t.Fatalf("item type = %T, want *ast.WordDef", file.Items[0])
	}
	if def.Name != "square" {
		t.Errorf("name = %q, want square", def.Name)
	}
	if len(def.Body) != 2 {
		t.Errorf("body length = %d, want 2", len(def.Body))
	}
}

func TestImmediateExpressions(t *testing.T) {
	file := parse(t, `5 3 + print`)
	if len(file.Items) != 4 {
		t.Fatalf("item count = %d, want 4", len(file.Items))
	}
	if _, ok := file.Items[0].(*ast.IntLit); !ok {
		t.Errorf("item 0 type = %T, want *ast.IntLit", file.Items[0])
	}
	if ident, ok := file.Items[2].(*ast.Ident); !ok || ident.Name != "+" {
		t.Errorf("item 2 = %#v, want Ident +", file.Items[2])
	}
}

func TestModuleBlock(t *testing.T) {
	file := parse(t, "module M def sq dup * end def cube dup dup * * end end")
	mod, ok := file.Items[0].(*ast.ModuleBlock)
	if !ok {
		t.Fatalf("item type = %T, want *ast.ModuleBlock", file.Items[0])
	}
	if mod.Name != "M" {
		t.Errorf("module name = %q, want M", mod.Name)
	}
	if len(mod.Defs) != 2 {
		t.Fatalf("def count = %d, want 2", len(mod.Defs))
	}
	if mod.Defs[0].Name != "sq" || mod.Defs[1].Name != "cube" {
		t.Errorf("def names = %q, %q", mod.Defs[0].Name, mod.Defs[1].Name)
	}
}

func TestImportDirective(t *testing.T) {
	for _, input := range []string{`import "lib/math.em"`, `import mathlib`} {
		file := parse(t, input)
		if _, ok := file.Items[0].(*ast.ImportDecl); !ok {
			t.Errorf("parse(%q) item type = %T, want *ast.ImportDecl", input, file.Items[0])
		}
	}
}

func TestUseDirective(t *testing.T) {
	file := parse(t, "use M sq cube  7 sq")
	use, ok := file.Items[0].(*ast.UseDecl)
	if !ok {
		t.Fatalf("item type = %T, want *ast.UseDecl", file.Items[0])
	}
	if use.Module != "M" {
		t.Errorf("module = %q, want M", use.Module)
	}
	if len(use.Names) != 2 || use.Names[0] != "sq" || use.Names[1] != "cube" {
		t.Errorf("names = %v, want [sq cube]", use.Names)
	}
	if use.Wildcard {
		t.Error("wildcard = true, want false")
	}
	// The name list stops at the first non-identifier token.
	if len(file.Items) != 3 {
		t.Errorf("item count = %d, want 3", len(file.Items))
	}
}

func TestUseWildcard(t *testing.T) {
	file := parse(t, "use M *")
	use := file.Items[0].(*ast.UseDecl)
	if !use.Wildcard {
		t.Error("wildcard = false, want true")
	}
	if len(use.Names) != 0 {
		t.Errorf("names = %v, want empty", use.Names)
	}
}

func TestQuotationLiteral(t *testing.T) {
	file := parse(t, "[ dup * ] [ ]")
	quot, ok := file.Items[0].(*ast.QuotLit)
	if !ok {
		t.Fatalf("item type = %T, want *ast.QuotLit", file.Items[0])
	}
	if len(quot.Body) != 2 {
		t.Errorf("body length = %d, want 2", len(quot.Body))
	}
	empty := file.Items[1].(*ast.QuotLit)
	if len(empty.Body) != 0 {
		t.Errorf("empty quotation body length = %d", len(empty.Body))
	}
}

func TestNestedQuotations(t *testing.T) {
	file := parse(t, "[ [ 1 ] [ 2 ] if ]")
	outer := file.Items[0].(*ast.QuotLit)
	if len(outer.Body) != 3 {
		t.Fatalf("outer body length = %d, want 3", len(outer.Body))
	}
	if _, ok := outer.Body[0].(*ast.QuotLit); !ok {
		t.Errorf("inner type = %T, want *ast.QuotLit", outer.Body[0])
	}
}

func TestListLiteral(t *testing.T) {
	file := parse(t, `{ 1 2.5 "three" true { 4 } }`)
	list, ok := file.Items[0].(*ast.ListLit)
	if !ok {
		t.Fatalf("item type = %T, want *ast.ListLit", file.Items[0])
	}
	if len(list.Elements) != 5 {
		t.Fatalf("element count = %d, want 5", len(list.Elements))
	}
	if _, ok := list.Elements[4].(*ast.ListLit); !ok {
		t.Errorf("element 4 type = %T, want nested *ast.ListLit", list.Elements[4])
	}
}

func TestBracketedDefBodyIsKept(t *testing.T) {
	// def name [ body ] end defines a word whose body pushes a quotation;
	// it is never unwrapped.
	file := parse(t, "def q [ dup * ] end")
	def := file.Items[0].(*ast.WordDef)
	if len(def.Body) != 1 {
		t.Fatalf("body length = %d, want 1", len(def.Body))
	}
	if _, ok := def.Body[0].(*ast.QuotLit); !ok {
		t.Errorf("body node type = %T, want *ast.QuotLit", def.Body[0])
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		kind  ErrorKind
	}{
		{"def 5 x end", ExpectedName},            // number is not a name
		{"def sq dup *", UnexpectedEnd},          // missing end
		{"def outer def inner end end", UnexpectedToken},
		{"module M 5 end", UnexpectedToken},      // expression inside module
		{"module A module B end end", UnexpectedToken},
		{"{ dup }", UnexpectedToken},             // non-literal in list
		{"{ [ 1 ] }", UnexpectedToken},           // quotation in list
		{"[ 1 2", MismatchedBrackets},            // unclosed quotation
		{"{ 1 2", MismatchedBrackets},            // unclosed list
		{"1 ]", MismatchedBrackets},              // stray closer
		{"end", UnexpectedToken},                 // stray end
		{"import", ExpectedName},                 // missing path
		{"use M", ExpectedName},                  // missing names
		{"module end", ExpectedName},             // missing module name
	}

	for _, tt := range tests {
		err := parseError(t, tt.input)
		if err.Kind != tt.kind {
			t.Errorf("parse(%q) kind = %s, want %s", tt.input, err.Kind, tt.kind)
		}
		if err.Pos.Line == 0 {
			t.Errorf("parse(%q) error has no position", tt.input)
		}
	}
}

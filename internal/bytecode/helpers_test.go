package bytecode

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sger/ember/internal/loader"
)

// compileSource writes the source to a temp file and runs it through the
// loader and compiler, failing the test on any error.
func compileSource(t *testing.T, source string) *Program {
	t.Helper()
	program, err := tryCompileSource(t, source)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	return program
}

// tryCompileSource is compileSource without the failure check, for tests
// that expect compilation errors.
func tryCompileSource(t *testing.T, source string) (*Program, error) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "main.em")
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
	result, err := loader.New().Load(path)
	if err != nil {
		return nil, err
	}
	return Compile(result)
}

// runSource compiles and executes the source on a fresh VM, returning the
// produced stdout and the final value stack.
func runSource(t *testing.T, source string) (string, []Value) {
	t.Helper()
	out, stack, err := tryRunSource(t, source)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return out, stack
}

// tryRunSource is runSource without the failure check.
func tryRunSource(t *testing.T, source string) (string, []Value, error) {
	t.Helper()
	program, err := tryCompileSource(t, source)
	if err != nil {
		return "", nil, err
	}
	var out bytes.Buffer
	vm := NewVM(WithOutput(&out))
	err = vm.Run(program)
	return out.String(), vm.Stack(), err
}

// runtimeErrorKind runs the source and asserts it fails with a RuntimeError
// of the given kind.
func runtimeErrorKind(t *testing.T, source string, kind RuntimeErrorKind) *RuntimeError {
	t.Helper()
	_, _, err := tryRunSource(t, source)
	if err == nil {
		t.Fatalf("run(%q): expected runtime error", source)
	}
	rtErr, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("run(%q): error type = %T (%v), want *RuntimeError", source, err, err)
	}
	if rtErr.Kind != kind {
		t.Fatalf("run(%q): kind = %s, want %s", source, rtErr.Kind, kind)
	}
	return rtErr
}

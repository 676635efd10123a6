package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
)

// execute resets the command state and runs the CLI with the given args,
// capturing stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	disasm, saveBC, stdlibDir, verbose = false, false, "", false

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeScript writes an Ember source file into a temp directory.
func writeScript(t *testing.T, name, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunSimpleProgram(t *testing.T) {
	path := writeScript(t, "add.em", "5 3 + print")
	stdout, stderr, err := execute(t, path)
	if err != nil {
		t.Fatalf("execute failed: %v\nstderr: %s", err, stderr)
	}
	if stdout != "8\n" {
		t.Errorf("stdout = %q, want \"8\\n\"", stdout)
	}
}

func TestRunFactorial(t *testing.T) {
	path := writeScript(t, "factorial.em", `
; classic recursive factorial
def factorial dup 1 <= [drop 1] [dup 1 - factorial *] if end

10 factorial print
`)
	stdout, _, err := execute(t, path)
	if err != nil {
		t.Fatal(err)
	}
	snaps.MatchSnapshot(t, stdout)
}

func TestRunListPipeline(t *testing.T) {
	path := writeScript(t, "lists.em", `
{ 1 2 3 4 5 } [ dup * ] map print
{ 1 2 3 4 5 } [ 2 % 0 = ] filter print
{ 1 2 3 4 5 } 0 [ + ] fold print
`)
	stdout, _, err := execute(t, path)
	if err != nil {
		t.Fatal(err)
	}
	snaps.MatchSnapshot(t, stdout)
}

func TestRunModulesAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	mathPath := filepath.Join(dir, "mathlib.em")
	mainPath := filepath.Join(dir, "main.em")
	if err := os.WriteFile(mathPath, []byte("module Math def sq dup * end end"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(mainPath, []byte("import mathlib\nuse Math sq\n7 sq print"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, err := execute(t, mainPath)
	if err != nil {
		t.Fatalf("execute failed: %v\nstderr: %s", err, stderr)
	}
	if stdout != "49\n" {
		t.Errorf("stdout = %q, want \"49\\n\"", stdout)
	}
}

func TestDisasmFlag(t *testing.T) {
	path := writeScript(t, "square.em", "def square dup * end  5 square print")
	stdout, _, err := execute(t, path, "--disasm")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "== main ==") {
		t.Errorf("disassembly missing from stdout:\n%s", stdout)
	}
	if !strings.Contains(stdout, "== square ==") {
		t.Errorf("word disassembly missing from stdout:\n%s", stdout)
	}
	// The program still runs after disassembly.
	if !strings.HasSuffix(stdout, "25\n") {
		t.Errorf("program output missing:\n%s", stdout)
	}
}

func TestSaveBytecodeAndReload(t *testing.T) {
	path := writeScript(t, "prog.em", "def double 2 * end  21 double print")

	stdout, stderr, err := execute(t, path, "--save-bc")
	if err != nil {
		t.Fatalf("execute failed: %v\nstderr: %s", err, stderr)
	}
	if stdout != "42\n" {
		t.Errorf("stdout = %q, want \"42\\n\"", stdout)
	}

	bcPath := strings.TrimSuffix(path, ".em") + ".ebc"
	if _, err := os.Stat(bcPath); err != nil {
		t.Fatalf("bytecode file not written: %v", err)
	}

	// compile-save-load-execute is observably identical to compile-execute.
	stdout, stderr, err = execute(t, bcPath)
	if err != nil {
		t.Fatalf("execute of .ebc failed: %v\nstderr: %s", err, stderr)
	}
	if stdout != "42\n" {
		t.Errorf("stdout from bytecode = %q, want \"42\\n\"", stdout)
	}
}

func TestRuntimeErrorReporting(t *testing.T) {
	path := writeScript(t, "div.em", "10 0 /")
	stdout, stderr, err := execute(t, path)
	if err == nil {
		t.Fatal("expected failure")
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want empty", stdout)
	}
	for _, want := range []string{"RuntimeError", "DivisionByZero", ":1:6", "^"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
}

func TestTypeErrorReporting(t *testing.T) {
	path := writeScript(t, "type.em", `"hello" 5 +`)
	_, stderr, err := execute(t, path)
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(stderr, "TypeError") {
		t.Errorf("stderr missing TypeError:\n%s", stderr)
	}
}

func TestUndefinedWordReporting(t *testing.T) {
	path := writeScript(t, "undef.em", "nonexistent print")
	_, stderr, err := execute(t, path)
	if err == nil {
		t.Fatal("expected failure")
	}
	for _, want := range []string{"CompileError", "undefined word", "nonexistent"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
}

func TestParseErrorReporting(t *testing.T) {
	path := writeScript(t, "broken.em", "def incomplete dup *")
	_, stderr, err := execute(t, path)
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(stderr, "ParseError") {
		t.Errorf("stderr missing ParseError:\n%s", stderr)
	}
}

func TestVersionSubcommand(t *testing.T) {
	stdout, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	for _, want := range []string{"ember version", Version, "Git Commit:", "Build Date:"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestMissingFileReporting(t *testing.T) {
	_, stderr, err := execute(t, filepath.Join(t.TempDir(), "missing.em"))
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(stderr, "LoadError") {
		t.Errorf("stderr missing LoadError:\n%s", stderr)
	}
}

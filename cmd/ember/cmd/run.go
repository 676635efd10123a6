package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sger/ember/internal/bytecode"
	emberrors "github.com/sger/ember/internal/errors"
	"github.com/sger/ember/internal/lexer"
	"github.com/sger/ember/internal/loader"
	"github.com/sger/ember/internal/parser"
)

var (
	disasm    bool
	saveBC    bool
	stdlibDir string
)

func init() {
	rootCmd.Flags().BoolVar(&disasm, "disasm", false, "disassemble the compiled bytecode to stdout before running")
	rootCmd.Flags().BoolVar(&saveBC, "save-bc", false, "write the compiled bytecode to a sibling .ebc file")
	rootCmd.Flags().StringVar(&stdlibDir, "stdlib", "", "standard library directory for import resolution")
}

// runFile is the root command: compile (or load) the given file, then
// execute it on a fresh VM. Program output goes to stdout, diagnostics to
// stderr; any failure exits non-zero.
func runFile(command *cobra.Command, args []string) error {
	path := args[0]
	stdout := command.OutOrStdout()
	stderr := command.ErrOrStderr()

	program, err := loadOrCompile(path, stderr)
	if err != nil {
		fmt.Fprintln(stderr, renderError(err))
		return &reportedError{err: err}
	}

	if disasm {
		bytecode.NewDisassembler(stdout).DisassembleProgram(program)
	}

	if saveBC {
		target := strings.TrimSuffix(path, filepath.Ext(path)) + ".ebc"
		data, err := bytecode.NewSerializer().SerializeProgram(program)
		if err != nil {
			fmt.Fprintf(stderr, "Error: cannot serialize bytecode: %v\n", err)
			return &reportedError{err: err}
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			fmt.Fprintf(stderr, "Error: cannot write %s: %v\n", target, err)
			return &reportedError{err: err}
		}
		if verbose {
			fmt.Fprintf(stderr, "wrote %s (%d bytes)\n", target, len(data))
		}
	}

	vm := bytecode.NewVM(bytecode.WithOutput(stdout))
	if err := vm.Run(program); err != nil {
		fmt.Fprintln(stderr, renderError(err))
		return &reportedError{err: err}
	}
	return nil
}

// loadOrCompile produces a program from a source file or a precompiled
// bytecode file, depending on the extension.
func loadOrCompile(path string, stderr io.Writer) (*bytecode.Program, error) {
	if filepath.Ext(path) == ".ebc" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", path, err)
		}
		return bytecode.NewSerializer().DeserializeProgram(data)
	}

	opts := []loader.Option{loader.WithStdlibDir(resolveStdlibDir())}
	if verbose {
		opts = append(opts, loader.WithWarnings(stderr))
	}
	result, err := loader.New(opts...).Load(path)
	if err != nil {
		return nil, err
	}
	return bytecode.Compile(result)
}

// resolveStdlibDir returns the import fallback directory: the --stdlib flag
// when given, otherwise a stdlib directory next to the executable.
func resolveStdlibDir() string {
	if stdlibDir != "" {
		return stdlibDir
	}
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(exe), "stdlib")
}

// renderError formats a pipeline error with its kind label, position and a
// caret-underlined source snippet when the source is available.
func renderError(err error) string {
	var (
		label string
		msg   string
		pos   lexer.Position
	)

	switch e := err.(type) {
	case *lexer.LexError:
		label, msg, pos = "LexError", e.Message, e.Pos
	case *parser.ParseError:
		label, pos = "ParseError", e.Pos
		msg = fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case *loader.LoadError:
		label, pos = "LoadError", e.Pos
		msg = fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case *bytecode.CompileError:
		label, pos = "CompileError", e.Pos
		msg = fmt.Sprintf("undefined word %q", e.Name)
	case *bytecode.RuntimeError:
		label, pos = "RuntimeError", e.Pos
		msg = fmt.Sprintf("%s: %s", e.Kind, e.Message)
		if len(e.StackTop) > 0 {
			parts := make([]string, len(e.StackTop))
			for i, v := range e.StackTop {
				parts[i] = v.String()
			}
			msg += fmt.Sprintf("\nstack top: %s", strings.Join(parts, " "))
		}
	default:
		return "Error: " + err.Error()
	}

	source := ""
	if pos.File != "" {
		if content, readErr := os.ReadFile(pos.File); readErr == nil {
			source = string(content)
		}
	}
	return emberrors.NewSourceError(label, pos, msg, source, pos.File).Format(false)
}

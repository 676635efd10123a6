package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "ember [file]",
	Short: "Ember language compiler and virtual machine",
	Long: `ember compiles and executes programs written in Ember, a small
concatenative, stack-based language in the Forth/Joy lineage.

Source files (.em) are compiled ahead of time to bytecode and executed on a
stack virtual machine. Precompiled bytecode files (.ebc) are loaded directly.

Examples:
  # Compile and run a program
  ember examples/factorial.em

  # Show the compiled bytecode before running
  ember examples/factorial.em --disasm

  # Write a sibling .ebc file, then run
  ember examples/factorial.em --save-bc`,
	Version:       Version,
	Args:          cobra.ExactArgs(1),
	RunE:          runFile,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		// Pretty diagnostics were already written by runFile; anything
		// else (flag errors, bad args) still needs to surface.
		if _, printed := err.(*reportedError); !printed {
			fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		}
	}
	return err
}

// reportedError marks an error whose diagnostics already went to stderr.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
Commit: %s
Built:  %s
`, GitCommit, BuildDate))

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
)

// Exit codes.
const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

// exitError carries a process exit code out of a cobra command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageErr(err error) error { return &exitError{code: exitUsage, err: err} }
func fatalErr(err error) error { return &exitError{code: exitFatal, err: err} }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "surveillance-batch",
		Short:         "Extract weekly ILI/SARI positivity rates from Markdown reports into a CSV dataset",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	root.AddCommand(newRunCmd(), newExportCmd(), newHistoryCmd())
	return root
}

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		os.Exit(exitOK)
	}
	printError("Error: %v\n", err)
	var ee *exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	if common.IsValidation(err) || errors.Is(err, common.ErrInvalidInput) {
		os.Exit(exitUsage)
	}
	os.Exit(exitFatal)
}

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

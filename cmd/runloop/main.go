package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joeycumines/go-runloop/internal/config"
	"github.com/joeycumines/go-runloop/internal/exitcode"
)

// exitError carries a process exit code out of a command.
type exitError struct {
	err  error
	code int
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitError) Unwrap() error { return e.err }

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				fmt.Fprintln(os.Stderr, "Error:", ee.err)
			}
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitcode.Failure)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "runloop",
		Short:         "Drive an update function until it asks to exit",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configCmd := &cobra.Command{Use: "config", Short: "Inspect configuration files"}
	configCmd.AddCommand(
		configValidateCmd(),
	)

	root.AddCommand(
		runCmd(),
		configCmd,
	)

	return root
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(args[0])
			if err != nil {
				return &exitError{code: exitcode.InvalidConfig, err: fmt.Errorf("validation failed: %w", err)}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}

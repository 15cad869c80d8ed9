package cmd

import (
	"errors"
	"fmt"
)

// Exit codes
const (
	ExitExposed    = 0 // at least one project passed secrets to a forked PR build
	ExitNotExposed = 1 // no exposure evidence, or the check failed
	ExitUsage      = 2 // malformed arguments
)

// ExitError carries the process exit code for an error returned by a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageError(err error) error {
	return &ExitError{Code: ExitUsage, Err: err}
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitExposed
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitNotExposed
}

// Package exitcode maps error classes to process exit codes so scripts
// driving the CLI can branch on the failure kind.
package exitcode

import (
	"os"
	"strings"

	"github.com/avaricia/agentflow/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// ValidationError indicates the plan document failed schema validation
	ValidationError = 3

	// LockConflict indicates a concurrent writer won the optimistic lock
	LockConflict = 4

	// ExecutionError indicates a node execution or timeout failure
	ExecutionError = 5

	// AdapterError indicates a missing or misconfigured executor backend
	AdapterError = 6

	// Interrupted indicates the run was cancelled by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}
	Exit(DetermineExitCode(err))
}

// DetermineExitCode analyzes an error and returns the appropriate exit code
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	switch {
	case errors.IsValidation(err):
		return ValidationError
	case errors.IsLockConflict(err):
		return LockConflict
	case errors.IsTimeout(err):
		return ExecutionError
	}
	switch code := string(errors.CodeOf(err)); {
	case strings.HasPrefix(code, "EXEC-"):
		return ExecutionError
	case strings.HasPrefix(code, "ADAPTER-"):
		return AdapterError
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "invalid flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "missing argument") {
		return UsageError
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case ValidationError:
		return "Plan validation failed"
	case LockConflict:
		return "Concurrent artifact update detected"
	case ExecutionError:
		return "Node execution failed"
	case AdapterError:
		return "Executor backend unavailable or misconfigured"
	case Interrupted:
		return "Interrupted by signal"
	default:
		return "Unknown error"
	}
}

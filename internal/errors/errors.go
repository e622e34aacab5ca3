package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Validation errors (VALIDATE-001 to VALIDATE-099)
	ErrCodeDuplicateNode     ErrorCode = "VALIDATE-001"
	ErrCodeUnknownDependency ErrorCode = "VALIDATE-002"
	ErrCodeCyclicDependency  ErrorCode = "VALIDATE-003"
	ErrCodePayloadMissing    ErrorCode = "VALIDATE-004"
	ErrCodePlanInvalid       ErrorCode = "VALIDATE-005"

	// Optimistic locking errors (LOCK-001 to LOCK-099)
	ErrCodeLockConflict ErrorCode = "LOCK-001"
	ErrCodeStaleDigest  ErrorCode = "LOCK-002"

	// Node execution errors (EXEC-001 to EXEC-099)
	ErrCodeExecutorFailure ErrorCode = "EXEC-001"
	ErrCodeExecTimeout     ErrorCode = "EXEC-002"
	ErrCodeMalformedResult ErrorCode = "EXEC-003"
	ErrCodeNodeNotRunnable ErrorCode = "EXEC-004"

	// Adapter errors (ADAPTER-001 to ADAPTER-099)
	ErrCodeAdapterNotFound ErrorCode = "ADAPTER-001"
	ErrCodeAdapterConfig   ErrorCode = "ADAPTER-002"

	// Workflow errors (WORKFLOW-001 to WORKFLOW-099)
	ErrCodeCycleFailed ErrorCode = "WORKFLOW-001"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodePartialWrite    ErrorCode = "IO-004"
	ErrCodeFileUnmarshal   ErrorCode = "IO-005"
	ErrCodeFileMarshal     ErrorCode = "IO-006"
)

// AgentFlowError represents an enhanced error with code, suggestions, and documentation
type AgentFlowError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *AgentFlowError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *AgentFlowError) Unwrap() error {
	return e.Cause
}

// New creates a new AgentFlowError
func New(code ErrorCode, message string) *AgentFlowError {
	return &AgentFlowError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new AgentFlowError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *AgentFlowError {
	return &AgentFlowError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *AgentFlowError) WithSuggestion(suggestion string) *AgentFlowError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *AgentFlowError) WithSuggestions(suggestions ...string) *AgentFlowError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// CodeOf extracts the ErrorCode from an error chain, or "" when the chain
// carries no AgentFlowError.
func CodeOf(err error) ErrorCode {
	var afErr *AgentFlowError
	if errors.As(err, &afErr) {
		return afErr.Code
	}
	return ""
}

// IsValidation reports whether the error is a schema validation failure
func IsValidation(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "VALIDATE-")
}

// IsLockConflict reports whether the error is an optimistic-lock conflict
func IsLockConflict(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "LOCK-")
}

// IsTimeout reports whether the error is an execution timeout
func IsTimeout(err error) bool {
	return CodeOf(err) == ErrCodeExecTimeout
}

// Common error constructors for frequently used errors

// NewDuplicateNodeError creates a duplicate node id error
func NewDuplicateNodeError(nodeID string) *AgentFlowError {
	return New(ErrCodeDuplicateNode, fmt.Sprintf("duplicate node id %q", nodeID)).
		WithSuggestion("Node ids must be unique within a plan").
		WithSuggestion("Rename one of the conflicting nodes")
}

// NewUnknownDependencyError creates an unknown depends_on reference error
func NewUnknownDependencyError(nodeID, depID string) *AgentFlowError {
	return New(ErrCodeUnknownDependency, fmt.Sprintf("node %q depends on unknown node %q", nodeID, depID)).
		WithSuggestion("Check depends_on entries for typos").
		WithSuggestion("Add the missing node to the plan or remove the reference")
}

// NewCyclicDependencyError creates a cyclic dependency error reporting the cycle
func NewCyclicDependencyError(cycle []string) *AgentFlowError {
	return New(ErrCodeCyclicDependency, fmt.Sprintf("cyclic dependency detected: %s", strings.Join(cycle, " -> "))).
		WithSuggestion("Break the cycle by removing one of the depends_on edges").
		WithSuggestion("Plans must form a directed acyclic graph")
}

// NewPayloadMissingError creates a missing payload field error
func NewPayloadMissingError(nodeID, nodeType, field string) *AgentFlowError {
	return New(ErrCodePayloadMissing, fmt.Sprintf("node %q of type %q is missing required payload field %q", nodeID, nodeType, field)).
		WithSuggestion(fmt.Sprintf("Provide a %q value in the node payload", field))
}

// NewLockConflictError creates an optimistic-lock conflict error
func NewLockConflictError(path string, expected, actual int) *AgentFlowError {
	return New(ErrCodeLockConflict, fmt.Sprintf("plan %s changed on disk: expected version %d, found %d", path, expected, actual)).
		WithSuggestion("Reload the plan, reconcile, and retry the write").
		WithSuggestion("Another writer or a manual edit updated the artifact")
}

// NewStaleDigestError creates a content-digest mismatch error
func NewStaleDigestError(path string) *AgentFlowError {
	return New(ErrCodeStaleDigest, fmt.Sprintf("plan %s was edited on disk since it was loaded", path)).
		WithSuggestion("Reload the plan to pick up the external edit").
		WithSuggestion("Manual edits are only safe between run steps")
}

// NewExecTimeoutError creates a node execution timeout error
func NewExecTimeoutError(nodeID string, timeout time.Duration) *AgentFlowError {
	return New(ErrCodeExecTimeout, fmt.Sprintf("node %q exceeded the %s execution timeout", nodeID, timeout)).
		WithSuggestion("Increase AGENTFLOW_TIMEOUT for long-running nodes").
		WithSuggestion("Check whether the backend is hanging")
}

// NewExecutorFailureError creates a backend execution failure error
func NewExecutorFailureError(nodeID string, cause error) *AgentFlowError {
	return Wrap(ErrCodeExecutorFailure, fmt.Sprintf("executing node %q failed", nodeID), cause).
		WithSuggestion("Inspect the node error and history in the plan artifact")
}

// NewNodeNotRunnableError creates an error for executing a node outside the frontier
func NewNodeNotRunnableError(nodeID, status string) *AgentFlowError {
	return New(ErrCodeNodeNotRunnable, fmt.Sprintf("node %q is %s and cannot be executed", nodeID, status)).
		WithSuggestion("Only pending or ready nodes with satisfied dependencies run")
}

// NewAdapterNotFoundError creates an unknown adapter error
func NewAdapterNotFoundError(name string, known []string) *AgentFlowError {
	return New(ErrCodeAdapterNotFound, fmt.Sprintf("unknown adapter %q", name)).
		WithSuggestion(fmt.Sprintf("Set AGENTFLOW_ADAPTER to one of: %s", strings.Join(known, ", ")))
}

// NewAdapterConfigError creates an adapter misconfiguration error
func NewAdapterConfigError(name, detail string) *AgentFlowError {
	return New(ErrCodeAdapterConfig, fmt.Sprintf("adapter %q is not configured: %s", name, detail)).
		WithSuggestion("Set the required environment variable or use the mock adapter")
}

// NewAdapterExitError creates an error for a backend CLI that exited non-zero
func NewAdapterExitError(name, stderr string, cause error) *AgentFlowError {
	msg := fmt.Sprintf("adapter %q exited with an error", name)
	if stderr = strings.TrimSpace(stderr); stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, stderr)
	}
	return Wrap(ErrCodeAdapterConfig, msg, cause)
}

// NewAdapterOutputError creates an error for unparseable backend output
func NewAdapterOutputError(name string, cause error) *AgentFlowError {
	return Wrap(ErrCodeMalformedResult, fmt.Sprintf("adapter %q produced unusable output", name), cause).
		WithSuggestion("Run the backend CLI by hand to inspect its raw output")
}

// NewPartialWriteError creates an atomic-swap failure error
func NewPartialWriteError(path string, cause error) *AgentFlowError {
	return Wrap(ErrCodePartialWrite, fmt.Sprintf("atomic swap of %s failed", path), cause).
		WithSuggestion("The previous on-disk artifact is still intact").
		WithSuggestion("Check free disk space and directory permissions")
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *AgentFlowError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, cause error) *AgentFlowError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse plan artifact %s", path), cause).
		WithSuggestion("Check the YAML syntax of the artifact").
		WithSuggestion("A crashed editor may have left invalid markup")
}

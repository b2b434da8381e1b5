package tools

import (
	"errors"
	"fmt"
)

// Registry and configuration sentinels.
var (
	// ErrToolNotFound indicates an invocation of a name the registry does
	// not know. The orchestration layer converts this into a tool-result
	// turn rather than aborting the run.
	ErrToolNotFound = errors.New("tool not found")

	// ErrUnknownFunction indicates a function binding whose function_name
	// has no entry in the builtin catalog.
	ErrUnknownFunction = errors.New("unknown builtin function")

	// ErrDuplicateTool indicates two configuration entries sharing a name.
	ErrDuplicateTool = errors.New("duplicate tool name")
)

// ToolArgumentError reports model-supplied arguments rejected by schema
// validation before the tool ran. The bound callable or endpoint is never
// reached when this error is returned.
type ToolArgumentError struct {
	// Tool is the registered name of the tool whose arguments failed.
	Tool string

	// Err is the underlying validation failure.
	Err error
}

// Error returns a model-readable description of the rejection.
func (e *ToolArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %q: %v", e.Tool, e.Err)
}

// Unwrap exposes the underlying validation error.
func (e *ToolArgumentError) Unwrap() error { return e.Err }

// ToolExecutionError reports a tool that was dispatched and failed: a remote
// endpoint answered non-2xx, the transport gave out, or a local callable
// returned an error.
type ToolExecutionError struct {
	// Tool is the registered name of the failing tool.
	Tool string

	// StatusCode is the HTTP status for remote failures, zero otherwise.
	StatusCode int

	// Body holds the remote response body for non-2xx answers.
	Body string

	// Err is the underlying failure when no HTTP response was received.
	Err error
}

// Error describes the failure, preferring the HTTP status when one exists.
func (e *ToolExecutionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("tool %q failed with status %d: %s", e.Tool, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Err)
}

// Unwrap exposes the underlying transport or callable error.
func (e *ToolExecutionError) Unwrap() error { return e.Err }

package tools

import "fmt"

// UnknownToolError reports a call to a name the registry does not hold.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// InvalidArgumentError reports arguments rejected before the handler
// ran: malformed JSON, a missing required field, or a type mismatch.
type InvalidArgumentError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("tool %s: invalid argument %q: %s", e.Tool, e.Field, e.Reason)
	}
	return fmt.Sprintf("tool %s: invalid arguments: %s", e.Tool, e.Reason)
}

// ExecutionError reports a handler that was invoked and failed.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

package toolchain

import (
	"fmt"
	"strings"
)

// CompilationError is returned when the C compiler exits unsuccessfully.
// Output holds the compiler's diagnostics verbatim.
type CompilationError struct {
	Source  string
	Command string
	Output  string
	Err     error
}

func (e *CompilationError) Error() string {
	return formatToolFailure("compilation of "+e.Source, e.Command, e.Output, e.Err)
}

func (e *CompilationError) Unwrap() error { return e.Err }

// OptimizationError is returned when opt exits unsuccessfully.
type OptimizationError struct {
	Input   string
	Command string
	Output  string
	Err     error
}

func (e *OptimizationError) Error() string {
	return formatToolFailure("optimization of "+e.Input, e.Command, e.Output, e.Err)
}

func (e *OptimizationError) Unwrap() error { return e.Err }

func formatToolFailure(what, command, output string, err error) string {
	msg := fmt.Sprintf("%s failed: %v", what, err)
	if command != "" {
		msg += "\n  command: " + command
	}
	if out := strings.TrimSpace(output); out != "" {
		msg += "\n" + out
	}
	return msg
}

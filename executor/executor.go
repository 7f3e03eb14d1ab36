// Package executor defines the contracts binding host-owned buffers to a
// compiled kernel: an Executor compiles Programs, an Executable binds
// Resources by (name, direction) and runs, and a Resource is an opaque,
// identity-keyed data buffer shared between host and backend.
package executor

import (
	"fmt"

	"github.com/dariost/wyvern/ir"
)

// IO is the direction of a named binding.
type IO uint8

const (
	Input IO = iota
	Output
)

func (io IO) String() string {
	if io == Input {
		return "Input"
	}
	return "Output"
}

// Report is the backend's free-form completion report.
type Report = string

// Executor compiles Programs into Executables and allocates Resources
// compatible with them.
type Executor interface {
	// Compile validates and compiles a program. No partial result is
	// returned on error.
	Compile(p *ir.Program) (Executable, error)

	// NewResource allocates an empty resource.
	NewResource() (Resource, error)
}

// Executable is a compiled, bindable, runnable kernel.
type Executable interface {
	// Bind attaches a resource to the named slot and returns the
	// previously bound resource, if any. Binding a (name, kind) pair
	// absent from the compiled program is a programmer error and panics.
	Bind(name string, kind IO, res Resource) Resource

	// Unbind detaches and returns the resource bound to the named slot,
	// if any.
	Unbind(name string, kind IO) Resource

	// Run executes the kernel and blocks until the backend reports
	// completion. Bound resources must not be touched by the host while
	// Run is in flight.
	Run() (Report, error)
}

// Resource is a host-owned data buffer. Implementations are hashable by a
// process-unique identity.
type Resource interface {
	// Clear resets the resource to the null value.
	Clear()

	// TokenType reports the token type of the current data.
	TokenType() ir.TokenType

	// SetData replaces the resource contents.
	SetData(v ir.TokenValue)

	// GetData returns a copy of the resource contents.
	GetData() ir.TokenValue
}

// ValidateForCompile runs IR validation and folds the violations into a
// single compile error. Both backends call it before touching a program.
func ValidateForCompile(p *ir.Program) error {
	violations, err := ir.Validate(p)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return fmt.Errorf("invalid program: %w (%d violation(s))", violations[0], len(violations))
	}
	return nil
}

// Package interp is the CPU backend: a scalar reference interpreter of the
// wyvern IR. It is both a usable executor and the executable specification
// of the IR's operational semantics — the SPIR-V generator is validated
// against it.
//
// The interpreter is single-threaded by contract: WorkerId is 0,
// NumWorkers is 1, and barriers are no-ops.
package interp

import (
	"github.com/dariost/wyvern/executor"
	"github.com/dariost/wyvern/ir"
)

// Config configures the CPU backend. There is nothing to configure; the
// zero value is the only value.
type Config struct{}

// Executor compiles programs for CPU interpretation.
type Executor struct{}

var (
	_ executor.Executor   = (*Executor)(nil)
	_ executor.Executable = (*Executable)(nil)
	_ executor.Resource   = (*Resource)(nil)
)

// NewExecutor creates a CPU executor.
func NewExecutor(_ Config) *Executor { return &Executor{} }

// Compile validates the program and captures it for interpretation.
func (e *Executor) Compile(p *ir.Program) (executor.Executable, error) {
	if err := executor.ValidateForCompile(p); err != nil {
		return nil, err
	}
	return &Executable{
		program:  p,
		bindings: map[bindingKey]*Resource{},
	}, nil
}

// NewResource allocates an empty resource.
func (e *Executor) NewResource() (executor.Resource, error) {
	return newResource(), nil
}

// Package wyvern is an embedded compute-kernel framework.
//
// A host program constructs a portable imperative Program over scalars and
// arrays with the builder package, then hands it to an executor that
// either compiles it to a SPIR-V compute shader (the vulkan backend) or
// interprets it on the CPU (the interp backend). Both backends share one
// serializable IR and one resource-binding contract, so the same Program
// runs unchanged on either.
//
// Example:
//
//	b := builder.New()
//	zero := builder.NewConstant[uint32](0, b)
//	a := builder.NewArray(zero, n, true, b).MarkAsInput("a")
//	c := builder.NewArray(zero, n, true, b).MarkAsOutput("c")
//	// ... emit ops ...
//	program, err := b.Finalize()
//
//	exec := interp.NewExecutor(interp.Config{})
//	kernel, err := exec.Compile(program)
//	kernel.Bind("a", executor.Input, res)
//	// ...
//	report, err := kernel.Run()
//
// For GPU lowering without a device, CompileSPIRV returns the word stream
// and binding table directly.
package wyvern

import (
	"fmt"

	"github.com/dariost/wyvern/executor"
	"github.com/dariost/wyvern/ir"
	"github.com/dariost/wyvern/spirv"
)

// CompileSPIRV validates a program and lowers it to a SPIR-V compute
// module plus its binding table.
func CompileSPIRV(p *ir.Program, version spirv.Version) ([]uint32, []spirv.Binding, error) {
	if err := Validate(p); err != nil {
		return nil, nil, err
	}
	words, bindings, err := spirv.Generate(p, version)
	if err != nil {
		return nil, nil, fmt.Errorf("SPIR-V generation error: %w", err)
	}
	return words, bindings, nil
}

// Validate checks a program against the IR invariants and folds any
// violations into one error.
func Validate(p *ir.Program) error {
	return executor.ValidateForCompile(p)
}

// ParseProgram decodes a serialized program from its JSON wire form.
func ParseProgram(data []byte) (*ir.Program, error) {
	return ir.ParseProgram(data)
}

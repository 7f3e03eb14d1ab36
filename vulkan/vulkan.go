// Package vulkan is the GPU runtime glue: it compiles programs through the
// spirv generator and executes them on the first compute-capable Vulkan
// device, mirroring the binding table onto a descriptor set of storage
// buffers (uniform buffers on the 1.0 path).
//
// Driver code depends on cgo Vulkan bindings and is built only with the
// "vulkan" build tag; without it, NewExecutor returns a descriptive error.
// The buffer layout codec and the optional spirv-val/spirv-opt hooks are
// tag-independent.
package vulkan

// Config configures the GPU backend. The zero value selects the first
// compute-capable physical device and runs the external SPIR-V validator
// when one is installed.
type Config struct {
	// DeviceIndex selects among the compute-capable physical devices.
	DeviceIndex int

	// SkipValidate disables the spirv-val post-compile step.
	SkipValidate bool

	// Optimize replaces the generated binary with spirv-opt output when
	// the optimizer is installed.
	Optimize bool
}

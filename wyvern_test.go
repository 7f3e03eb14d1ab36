package wyvern_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dariost/wyvern"
	"github.com/dariost/wyvern/builder"
	"github.com/dariost/wyvern/executor"
	"github.com/dariost/wyvern/interp"
	"github.com/dariost/wyvern/ir"
	"github.com/dariost/wyvern/spirv"
)

// scalarPipeline is out = f32((in << 10) | in) / 2.0.
func scalarPipeline(t *testing.T) *ir.Program {
	t.Helper()
	b := builder.New()
	in := builder.NewVariable[uint32](b).MarkAsInput("in")
	out := builder.NewVariable[float32](b).MarkAsOutput("out")
	ten := builder.NewConstant[uint32](10, b)
	two := builder.NewConstant[float32](2, b)
	v := in.Load()
	out.Store(builder.F32FromU32(v.Shl(ten).Or(v)).Div(two))
	p, err := b.Finalize()
	require.NoError(t, err)
	return p
}

func TestCompileSPIRVPipeline(t *testing.T) {
	program := scalarPipeline(t)
	words, bindings, err := wyvern.CompileSPIRV(program, spirv.Vulkan11)
	require.NoError(t, err)
	require.NotEmpty(t, words)
	require.Len(t, bindings, 2)
	for i, b := range bindings {
		assert.Equal(t, uint32(i), b.Index)
		assert.Equal(t, spirv.Public, b.Kind)
	}
}

func TestCompileSPIRVRejectsInvalid(t *testing.T) {
	p := &ir.Program{
		Symbol:    map[ir.TokenID]ir.TokenType{},
		Storage:   map[ir.TokenID]ir.StorageType{},
		Operation: []ir.Op{ir.WorkerID{Result: 0}},
		Input:     map[string]ir.TokenID{},
		Output:    map[string]ir.TokenID{},
		NextLabel: 1,
	}
	_, _, err := wyvern.CompileSPIRV(p, spirv.Vulkan11)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid program")
}

// A serialized and re-parsed program is the same program: it generates
// identical SPIR-V and interprets to identical outputs.
func TestRoundTripEquivalence(t *testing.T) {
	program := scalarPipeline(t)
	data, err := json.Marshal(program)
	require.NoError(t, err)
	parsed, err := wyvern.ParseProgram(data)
	require.NoError(t, err)

	wordsA, bindingsA, err := wyvern.CompileSPIRV(program, spirv.Vulkan11)
	require.NoError(t, err)
	wordsB, bindingsB, err := wyvern.CompileSPIRV(parsed, spirv.Vulkan11)
	require.NoError(t, err)
	assert.Equal(t, wordsA, wordsB)
	assert.Equal(t, bindingsA, bindingsB)

	run := func(p *ir.Program) float32 {
		e := interp.NewExecutor(interp.Config{})
		kernel, err := e.Compile(p)
		require.NoError(t, err)
		in, _ := e.NewResource()
		in.SetData(ir.ScalarValue(ir.ScalarU32(1)))
		out, _ := e.NewResource()
		out.SetData(ir.ScalarValue(ir.ScalarF32(0)))
		kernel.Bind("in", executor.Input, in)
		kernel.Bind("out", executor.Output, out)
		_, err = kernel.Run()
		require.NoError(t, err)
		return out.GetData().Scalar.F32()
	}
	assert.Equal(t, float32(512.5), run(program))
	assert.Equal(t, run(program), run(parsed))
}

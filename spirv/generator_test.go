package spirv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dariost/wyvern/builder"
	"github.com/dariost/wyvern/executor"
	"github.com/dariost/wyvern/ir"
	"github.com/dariost/wyvern/spirv"
)

// instruction is a decoded (opcode, operands) pair.
type instruction struct {
	opcode spirv.OpCode
	words  []uint32
}

// decode splits an assembled module into instructions, skipping the
// 5-word header.
func decode(t *testing.T, words []uint32) []instruction {
	t.Helper()
	require.GreaterOrEqual(t, len(words), 5)
	require.Equal(t, uint32(spirv.MagicNumber), words[0])
	var out []instruction
	i := 5
	for i < len(words) {
		count := int(words[i] >> 16)
		require.Greater(t, count, 0, "zero-length instruction at word %d", i)
		require.LessOrEqual(t, i+count, len(words), "truncated instruction at word %d", i)
		out = append(out, instruction{
			opcode: spirv.OpCode(words[i] & 0xFFFF),
			words:  words[i+1 : i+count],
		})
		i += count
	}
	return out
}

func opcodes(instrs []instruction) map[spirv.OpCode]int {
	m := map[spirv.OpCode]int{}
	for _, in := range instrs {
		m[in.opcode]++
	}
	return m
}

func firstIndex(instrs []instruction, op spirv.OpCode) int {
	for i, in := range instrs {
		if in.opcode == op {
			return i
		}
	}
	return -1
}

func vectorAdd(t *testing.T, n uint32) *ir.Program {
	t.Helper()
	b := builder.New()
	zero := builder.NewConstant[uint32](0, b)
	a := builder.NewArray(zero, n, true, b).MarkAsInput("a")
	bv := builder.NewArray(zero, n, true, b).MarkAsInput("b")
	c := builder.NewArray(zero, n, true, b).MarkAsOutput("c")
	limit := builder.NewConstant(n, b)
	tid := builder.NewVariable[uint32](b)
	tid.Store(b.WorkerID())
	b.WhileLoop(
		func() builder.Constant[bool] { return tid.Load().Lt(limit) },
		func() {
			i := tid.Load()
			c.At(i).Store(a.At(i).Load().Add(bv.At(i).Load()))
			tid.Store(i.Add(b.NumWorkers()))
		},
	)
	p, err := b.Finalize()
	require.NoError(t, err)
	return p
}

func TestGenerateVectorAdd(t *testing.T) {
	program := vectorAdd(t, 1024)
	words, bindings, err := spirv.Generate(program, spirv.Vulkan11)
	require.NoError(t, err)

	instrs := decode(t, words)
	ops := opcodes(instrs)
	assert.Equal(t, 1, ops[spirv.OpEntryPoint])
	assert.Equal(t, 1, ops[spirv.OpLoopMerge])
	assert.Equal(t, 1, ops[spirv.OpBranchConditional])
	assert.Equal(t, 2, ops[spirv.OpIAdd], "c[i] = a[i] + b[i] and tid += num_workers")
	assert.NotZero(t, ops[spirv.OpIMul], "num_workers = groups * local size")
	assert.GreaterOrEqual(t, ops[spirv.OpAccessChain], 3)
	assert.Equal(t, 1, ops[spirv.OpReturn])
	assert.Equal(t, 1, ops[spirv.OpFunctionEnd])

	require.Len(t, bindings, 3)
	names := map[string]spirv.Binding{}
	for i, b := range bindings {
		assert.Equal(t, uint32(i), b.Index, "binding indices form [0, n)")
		assert.Equal(t, spirv.Public, b.Kind)
		assert.True(t, b.RuntimeArray)
		assert.Equal(t, ir.U32, b.Elem)
		names[b.Name] = b
	}
	assert.Equal(t, executor.Input, names["a"].IO)
	assert.Equal(t, executor.Input, names["b"].IO)
	assert.Equal(t, executor.Output, names["c"].IO)
}

func TestGenerateDeterministic(t *testing.T) {
	program := vectorAdd(t, 64)
	first, bindings1, err := spirv.Generate(program, spirv.Vulkan11)
	require.NoError(t, err)
	second, bindings2, err := spirv.Generate(program, spirv.Vulkan11)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, bindings1, bindings2)
}

func TestVersionSelectsLayout(t *testing.T) {
	program := vectorAdd(t, 16)

	v11, _, err := spirv.Generate(program, spirv.Vulkan11)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x00010300), v11[1])
	i11 := decode(t, v11)
	assert.Equal(t, 2, opcodes(i11)[spirv.OpExtension])
	assert.True(t, hasDecoration(i11, spirv.DecorationBlock))
	assert.False(t, hasDecoration(i11, spirv.DecorationBufferBlock))

	v10, _, err := spirv.Generate(program, spirv.Vulkan10)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x00010000), v10[1])
	i10 := decode(t, v10)
	assert.Zero(t, opcodes(i10)[spirv.OpExtension])
	assert.True(t, hasDecoration(i10, spirv.DecorationBufferBlock))
}

func hasDecoration(instrs []instruction, d spirv.Decoration) bool {
	for _, in := range instrs {
		if in.opcode == spirv.OpDecorate && len(in.words) >= 2 && in.words[1] == uint32(d) {
			return true
		}
	}
	return false
}

func TestStructuredSelection(t *testing.T) {
	b := builder.New()
	v := builder.NewVariable[uint32](b).MarkAsOutput("out")
	one := builder.NewConstant[uint32](1, b)
	two := builder.NewConstant[uint32](2, b)
	b.IfThenElse(
		func() builder.Constant[bool] { return one.Lt(two) },
		func() { v.Store(one) },
		func() { v.Store(two) },
	)
	program, err := b.Finalize()
	require.NoError(t, err)

	words, _, err := spirv.Generate(program, spirv.Vulkan11)
	require.NoError(t, err)
	instrs := decode(t, words)

	merge := firstIndex(instrs, spirv.OpSelectionMerge)
	branch := firstIndex(instrs, spirv.OpBranchConditional)
	require.GreaterOrEqual(t, merge, 0)
	require.Equal(t, merge+1, branch, "SelectionMerge must immediately precede BranchConditional")

	// The entry, then, else and merge blocks each open with a label.
	assert.GreaterOrEqual(t, opcodes(instrs)[spirv.OpLabel], 4)
}

func TestPhiLowering(t *testing.T) {
	p := &ir.Program{
		Symbol: map[ir.TokenID]ir.TokenType{
			0: ir.ConstantType(ir.U32),
			1: ir.ConstantType(ir.U32),
			2: ir.ConstantType(ir.U32),
			3: ir.ConstantType(ir.Bool),
			4: ir.ConstantType(ir.U32),
			5: ir.VariableType(ir.U32),
		},
		Storage: map[ir.TokenID]ir.StorageType{
			5: {Class: ir.StorageVariable, Data: ir.U32},
		},
		Operation: []ir.Op{
			ir.Constant{Result: 0, Value: ir.ScalarU32(0)},
			ir.Constant{Result: 1, Value: ir.ScalarU32(1)},
			ir.While{
				LHeader: 1,
				Cond: []ir.Op{
					ir.Phi{Result: 2, A0: 0, L0: 0, A1: 4, L1: 2},
					ir.Binary{Op: ir.Lt, Result: 3, Left: 2, Right: 1},
				},
				CondToken: 3,
				LBody:     2,
				Body: []ir.Op{
					ir.Binary{Op: ir.Add, Result: 4, Left: 2, Right: 1},
				},
				LExit: 3,
			},
			ir.Store{Target: 5, Source: 2},
		},
		Input:     map[string]ir.TokenID{},
		Output:    map[string]ir.TokenID{"out": 5},
		NextLabel: 4,
	}
	words, _, err := spirv.Generate(p, spirv.Vulkan11)
	require.NoError(t, err)
	instrs := decode(t, words)
	i := firstIndex(instrs, spirv.OpPhi)
	require.GreaterOrEqual(t, i, 0)
	// type, result, then two (value, parent) pairs.
	assert.Len(t, instrs[i].words, 6)
}

func TestBarrierSemantics(t *testing.T) {
	b := builder.New()
	v := builder.NewVariable[uint32](b).MarkAsOutput("out")
	b.MemoryBarrier()
	b.Barrier()
	v.Store(builder.NewConstant[uint32](0, b))
	program, err := b.Finalize()
	require.NoError(t, err)

	words, _, err := spirv.Generate(program, spirv.Vulkan11)
	require.NoError(t, err)
	instrs := decode(t, words)
	ops := opcodes(instrs)
	assert.Equal(t, 1, ops[spirv.OpMemoryBarrier])
	assert.Equal(t, 1, ops[spirv.OpControlBarrier])

	// AcquireRelease | UniformMemory must be interned as a constant.
	found := false
	for _, in := range instrs {
		if in.opcode == spirv.OpConstant && len(in.words) == 3 &&
			in.words[2] == (spirv.MemorySemanticsAcquireRelease|spirv.MemorySemanticsUniformMemory) {
			found = true
		}
	}
	assert.True(t, found, "semantics constant 0x48 not found")
}

func TestPrivateAndAnonymousBindings(t *testing.T) {
	b := builder.New()
	zero := builder.NewConstant[uint32](0, b)
	scratch := builder.NewArray(zero, 32, false, b) // function-local
	anon := builder.NewArray(zero, 64, true, b)     // descriptor without a name
	out := builder.NewVariable[uint32](b).MarkAsOutput("out")
	out.Store(scratch.At(zero).Load().Add(anon.At(zero).Load()))
	program, err := b.Finalize()
	require.NoError(t, err)

	words, bindings, err := spirv.Generate(program, spirv.Vulkan11)
	require.NoError(t, err)

	// One descriptor for the anonymous shared array, one for the exposed
	// scalar; the private array lives in Function storage.
	require.Len(t, bindings, 2)
	var private, public int
	for _, bind := range bindings {
		switch bind.Kind {
		case spirv.Private:
			private++
			assert.Equal(t, uint32(64), bind.MaxSize)
			assert.True(t, bind.RuntimeArray)
		case spirv.Public:
			public++
			assert.Equal(t, "out", bind.Name)
			assert.False(t, bind.RuntimeArray)
		}
	}
	assert.Equal(t, 1, private)
	assert.Equal(t, 1, public)

	instrs := decode(t, words)
	foundFunctionVar := false
	for _, in := range instrs {
		if in.opcode == spirv.OpVariable && len(in.words) >= 3 &&
			in.words[2] == uint32(spirv.StorageClassFunction) {
			foundFunctionVar = true
		}
	}
	assert.True(t, foundFunctionVar, "private array should be a Function-scope variable")
}

func TestBoolSharedArrayRejected(t *testing.T) {
	p := &ir.Program{
		Symbol: map[ir.TokenID]ir.TokenType{
			0: ir.ConstantType(ir.U32),
			1: ir.ArrayType(ir.Bool),
		},
		Storage: map[ir.TokenID]ir.StorageType{
			1: {Class: ir.StorageSharedArray, Data: ir.Bool, MaxSize: 8},
		},
		Operation: []ir.Op{
			ir.Constant{Result: 0, Value: ir.ScalarU32(8)},
			ir.ArrayNew{Result: 1, Size: 0, Elem: ir.Bool, MaxSize: 8, Shared: true},
		},
		Input:     map[string]ir.TokenID{"flags": 1},
		Output:    map[string]ir.TokenID{},
		NextLabel: 1,
	}
	_, _, err := spirv.Generate(p, spirv.Vulkan11)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bool")
}

func TestLocalSizeExecutionMode(t *testing.T) {
	program := vectorAdd(t, 8)
	words, _, err := spirv.Generate(program, spirv.Vulkan11)
	require.NoError(t, err)
	instrs := decode(t, words)
	i := firstIndex(instrs, spirv.OpExecutionMode)
	require.GreaterOrEqual(t, i, 0)
	// entry point id, LocalSize, (1, 1, 1)
	require.Len(t, instrs[i].words, 5)
	assert.Equal(t, uint32(spirv.ExecutionModeLocalSize), instrs[i].words[1])
	assert.Equal(t, []uint32{1, 1, 1}, instrs[i].words[2:])
}

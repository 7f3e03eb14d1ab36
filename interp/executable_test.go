package interp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dariost/wyvern/builder"
	"github.com/dariost/wyvern/executor"
	"github.com/dariost/wyvern/interp"
	"github.com/dariost/wyvern/ir"
)

// vectorAdd builds the canonical data-parallel program:
//
//	tid = worker_id()
//	while tid < n { c[tid] = a[tid] + b[tid]; tid += num_workers() }
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

func newVector(t *testing.T, e *interp.Executor, data []uint32) executor.Resource {
	t.Helper()
	res, err := e.NewResource()
	require.NoError(t, err)
	res.SetData(ir.VectorValue(ir.VectorU32(data)))
	return res
}

func TestVectorAdd(t *testing.T) {
	const n = 4096
	program := vectorAdd(t, n)

	e := interp.NewExecutor(interp.Config{})
	kernel, err := e.Compile(program)
	require.NoError(t, err)

	av := make([]uint32, n)
	bv := make([]uint32, n)
	for i := range av {
		av[i] = uint32(i)
		bv[i] = n - uint32(i)
	}
	a := newVector(t, e, av)
	b := newVector(t, e, bv)
	c := newVector(t, e, make([]uint32, n))
	kernel.Bind("a", executor.Input, a)
	kernel.Bind("b", executor.Input, b)
	kernel.Bind("c", executor.Output, c)

	_, err = kernel.Run()
	require.NoError(t, err)

	out := c.GetData()
	require.Equal(t, ir.ValueVector, out.Kind)
	require.Len(t, out.Vector.U32, n)
	for i, v := range out.Vector.U32 {
		require.Equalf(t, uint32(n), v, "element %d", i)
	}
}

// Scalar pipeline: out = f32((in << 10) | in) / 2.0 with in = 1.
func TestScalarPipeline(t *testing.T) {
	b := builder.New()
	in := builder.NewVariable[uint32](b).MarkAsInput("in")
	out := builder.NewVariable[float32](b).MarkAsOutput("out")
	ten := builder.NewConstant[uint32](10, b)
	two := builder.NewConstant[float32](2, b)
	v := in.Load()
	out.Store(builder.F32FromU32(v.Shl(ten).Or(v)).Div(two))
	program, err := b.Finalize()
	require.NoError(t, err)

	e := interp.NewExecutor(interp.Config{})
	kernel, err := e.Compile(program)
	require.NoError(t, err)

	inRes, _ := e.NewResource()
	inRes.SetData(ir.ScalarValue(ir.ScalarU32(1)))
	outRes, _ := e.NewResource()
	outRes.SetData(ir.ScalarValue(ir.ScalarF32(0)))
	kernel.Bind("in", executor.Input, inRes)
	kernel.Bind("out", executor.Output, outRes)

	_, err = kernel.Run()
	require.NoError(t, err)
	assert.Equal(t, float32(512.5), outRes.GetData().Scalar.F32())
}

// Shift cascade: r = (c<<3) | (c>>29), a rotate-left by 3.
func TestShiftCascade(t *testing.T) {
	cases := []struct {
		in, want uint32
	}{
		{0xE0000003, 0x0000001F},
		{0x80000003, 0x0000001C},
	}
	for _, tc := range cases {
		b := builder.New()
		out := builder.NewVariable[uint32](b).MarkAsOutput("r")
		c := builder.NewConstant(tc.in, b)
		three := builder.NewConstant[uint32](3, b)
		twentyNine := builder.NewConstant[uint32](29, b)
		out.Store(c.Shl(three).Or(c.Shr(twentyNine)))
		program, err := b.Finalize()
		require.NoError(t, err)

		e := interp.NewExecutor(interp.Config{})
		kernel, err := e.Compile(program)
		require.NoError(t, err)
		r, _ := e.NewResource()
		r.SetData(ir.ScalarValue(ir.ScalarU32(0)))
		kernel.Bind("r", executor.Output, r)
		_, err = kernel.Run()
		require.NoError(t, err)
		assert.Equalf(t, tc.want, r.GetData().Scalar.U32(), "input %#x", tc.in)
	}
}

// Loop accumulator: i=0; s=0; while i<10 { s+=i; i+=1 }; out=s.
func TestLoopAccumulator(t *testing.T) {
	b := builder.New()
	out := builder.NewVariable[uint32](b).MarkAsOutput("out")
	i := builder.NewVariable[uint32](b)
	s := builder.NewVariable[uint32](b)
	zero := builder.NewConstant[uint32](0, b)
	one := builder.NewConstant[uint32](1, b)
	ten := builder.NewConstant[uint32](10, b)
	i.Store(zero)
	s.Store(zero)
	b.WhileLoop(
		func() builder.Constant[bool] { return i.Load().Lt(ten) },
		func() {
			s.Store(s.Load().Add(i.Load()))
			i.Store(i.Load().Add(one))
		},
	)
	out.Store(s.Load())
	program, err := b.Finalize()
	require.NoError(t, err)

	e := interp.NewExecutor(interp.Config{})
	kernel, err := e.Compile(program)
	require.NoError(t, err)
	r, _ := e.NewResource()
	r.SetData(ir.ScalarValue(ir.ScalarU32(0)))
	kernel.Bind("out", executor.Output, r)
	_, err = kernel.Run()
	require.NoError(t, err)
	assert.Equal(t, uint32(45), r.GetData().Scalar.U32())
}

// phiCounter is a hand-assembled While whose condition block carries a
// Phi: the counter flows through the phi instead of a variable, selecting
// the init value on entry (previous label 0) and the incremented value on
// the back edge (previous label = body).
func phiCounter() *ir.Program {
	const (
		start = ir.TokenID(0)
		one   = ir.TokenID(1)
		limit = ir.TokenID(2)
		phi   = ir.TokenID(3)
		cond  = ir.TokenID(4)
		next  = ir.TokenID(5)
		out   = ir.TokenID(6)
	)
	return &ir.Program{
		Symbol: map[ir.TokenID]ir.TokenType{
			start: ir.ConstantType(ir.U32),
			one:   ir.ConstantType(ir.U32),
			limit: ir.ConstantType(ir.U32),
			phi:   ir.ConstantType(ir.U32),
			cond:  ir.ConstantType(ir.Bool),
			next:  ir.ConstantType(ir.U32),
			out:   ir.VariableType(ir.U32),
		},
		Storage: map[ir.TokenID]ir.StorageType{
			out: {Class: ir.StorageVariable, Data: ir.U32},
		},
		Operation: []ir.Op{
			ir.Constant{Result: start, Value: ir.ScalarU32(0)},
			ir.Constant{Result: one, Value: ir.ScalarU32(1)},
			ir.Constant{Result: limit, Value: ir.ScalarU32(3)},
			ir.While{
				LHeader: 1,
				Cond: []ir.Op{
					ir.Phi{Result: phi, A0: start, L0: 0, A1: next, L1: 2},
					ir.Binary{Op: ir.Lt, Result: cond, Left: phi, Right: limit},
				},
				CondToken: cond,
				LBody: 2,
				Body: []ir.Op{
					ir.Binary{Op: ir.Add, Result: next, Left: phi, Right: one},
				},
				LExit: 3,
			},
			ir.Store{Target: out, Source: phi},
		},
		Input:     map[string]ir.TokenID{},
		Output:    map[string]ir.TokenID{"out": out},
		NextLabel: 4,
	}
}

func TestPhiSelectsByPreviousLabel(t *testing.T) {
	e := interp.NewExecutor(interp.Config{})
	kernel, err := e.Compile(phiCounter())
	require.NoError(t, err)
	r, _ := e.NewResource()
	r.SetData(ir.ScalarValue(ir.ScalarU32(99)))
	kernel.Bind("out", executor.Output, r)
	_, err = kernel.Run()
	require.NoError(t, err)
	// The loop runs until the phi value reaches the limit.
	assert.Equal(t, uint32(3), r.GetData().Scalar.U32())
}

func TestIfElseMerge(t *testing.T) {
	b := builder.New()
	in := builder.NewVariable[uint32](b).MarkAsInput("in")
	out := builder.NewVariable[uint32](b).MarkAsOutput("out")
	five := builder.NewConstant[uint32](5, b)
	b.IfThenElse(
		func() builder.Constant[bool] { return in.Load().Lt(five) },
		func() { out.Store(builder.NewConstant[uint32](1, b)) },
		func() { out.Store(builder.NewConstant[uint32](2, b)) },
	)
	program, err := b.Finalize()
	require.NoError(t, err)

	for in, want := range map[uint32]uint32{3: 1, 7: 2} {
		e := interp.NewExecutor(interp.Config{})
		kernel, err := e.Compile(program)
		require.NoError(t, err)
		inRes, _ := e.NewResource()
		inRes.SetData(ir.ScalarValue(ir.ScalarU32(in)))
		outRes, _ := e.NewResource()
		outRes.SetData(ir.ScalarValue(ir.ScalarU32(0)))
		kernel.Bind("in", executor.Input, inRes)
		kernel.Bind("out", executor.Output, outRes)
		_, err = kernel.Run()
		require.NoError(t, err)
		assert.Equalf(t, want, outRes.GetData().Scalar.U32(), "input %d", in)
	}
}

func TestMissingInputResource(t *testing.T) {
	program := vectorAdd(t, 8)
	e := interp.NewExecutor(interp.Config{})
	kernel, err := e.Compile(program)
	require.NoError(t, err)
	_, err = kernel.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"a"`)
}

func TestOutOfRangeIndex(t *testing.T) {
	// The program walks n elements, but the host supplies fewer.
	program := vectorAdd(t, 8)
	e := interp.NewExecutor(interp.Config{})
	kernel, err := e.Compile(program)
	require.NoError(t, err)
	kernel.Bind("a", executor.Input, newVector(t, e, make([]uint32, 4)))
	kernel.Bind("b", executor.Input, newVector(t, e, make([]uint32, 4)))
	kernel.Bind("c", executor.Output, newVector(t, e, make([]uint32, 4)))
	_, err = kernel.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestBindUnknownNamePanics(t *testing.T) {
	program := vectorAdd(t, 8)
	e := interp.NewExecutor(interp.Config{})
	kernel, err := e.Compile(program)
	require.NoError(t, err)
	res, _ := e.NewResource()
	assert.Panics(t, func() { kernel.Bind("nope", executor.Input, res) })
	// "c" exists, but as an output.
	assert.Panics(t, func() { kernel.Bind("c", executor.Input, res) })
}

func TestBindReturnsPrior(t *testing.T) {
	program := vectorAdd(t, 8)
	e := interp.NewExecutor(interp.Config{})
	kernel, err := e.Compile(program)
	require.NoError(t, err)
	first, _ := e.NewResource()
	second, _ := e.NewResource()
	assert.Nil(t, kernel.Bind("a", executor.Input, first))
	assert.Same(t, first, kernel.Bind("a", executor.Input, second))
	assert.Same(t, second, kernel.Unbind("a", executor.Input))
	assert.Nil(t, kernel.Unbind("a", executor.Input))
}

func TestDivisionByZeroReported(t *testing.T) {
	b := builder.New()
	out := builder.NewVariable[uint32](b).MarkAsOutput("out")
	one := builder.NewConstant[uint32](1, b)
	zero := builder.NewConstant[uint32](0, b)
	out.Store(one.Div(zero))
	program, err := b.Finalize()
	require.NoError(t, err)

	e := interp.NewExecutor(interp.Config{})
	kernel, err := e.Compile(program)
	require.NoError(t, err)
	r, _ := e.NewResource()
	r.SetData(ir.ScalarValue(ir.ScalarU32(0)))
	kernel.Bind("out", executor.Output, r)
	_, err = kernel.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interpreter fault")
}

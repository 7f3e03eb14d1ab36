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

// mandelbrot builds the escape-magnitude kernel: for every pixel, iterate
// z = z² + c a fixed number of times (unrolled at authoring time) and
// write |z|² to the output. The input array carries [width, height].
func mandelbrot(t *testing.T, centerX, centerY, zoom float32, iterations int) *ir.Program {
	t.Helper()
	b := builder.New()
	zero := builder.NewConstant[uint32](0, b)
	fzero := builder.NewConstant[float32](0, b)
	one := builder.NewConstant[uint32](1, b)
	ftwo := builder.NewConstant[float32](2, b)
	input := builder.NewArray(zero, 0, true, b).MarkAsInput("input")
	output := builder.NewArray(fzero, 0, true, b).MarkAsOutput("output")
	width := input.At(zero).Load()
	height := input.At(one).Load()
	fwidth := builder.F32FromU32(width)
	fheight := builder.F32FromU32(height)
	cx := builder.NewConstant(centerX, b)
	cy := builder.NewConstant(centerY, b)
	zm := builder.NewConstant(zoom, b)
	cells := width.Mul(height)
	cell := builder.NewVariable[uint32](b)
	cell.Store(b.WorkerID())
	size := b.NumWorkers()
	b.WhileLoop(
		func() builder.Constant[bool] { return cell.Load().Lt(cells) },
		func() {
			id := cell.Load()
			localX := builder.F32FromU32(id.Rem(width))
			localY := builder.F32FromU32(id.Div(width))
			x := localX.Sub(fwidth.Div(ftwo)).Div(zm).Add(cx)
			y := localY.Sub(fheight.Div(ftwo)).Div(zm).Add(cy)
			a, bb := fzero, fzero
			for i := 0; i < iterations; i++ {
				tmp := a.Mul(a).Sub(bb.Mul(bb)).Add(x)
				bb = ftwo.Mul(a).Mul(bb).Add(y)
				a = tmp
			}
			output.At(id).Store(a.Mul(a).Add(bb.Mul(bb)))
			cell.Store(id.Add(size))
		},
	)
	p, err := b.Finalize()
	require.NoError(t, err)
	return p
}

// colorize maps escape magnitudes to the grayscale convention: inside the
// set (≤ 2) is black, outside is white.
func colorize(data []float32) []uint8 {
	out := make([]uint8, len(data))
	for i, v := range data {
		if v <= 2.0 {
			out[i] = 0
		} else {
			out[i] = 255
		}
	}
	return out
}

func TestMandelbrotEscapePattern(t *testing.T) {
	const (
		width  = 16
		height = 16
	)
	program := mandelbrot(t, -0.75, 0.0, float32(height)/2.5, 200)

	e := interp.NewExecutor(interp.Config{})
	kernel, err := e.Compile(program)
	require.NoError(t, err)

	input, _ := e.NewResource()
	input.SetData(ir.VectorValue(ir.VectorU32([]uint32{width, height})))
	output, _ := e.NewResource()
	output.SetData(ir.VectorValue(ir.VectorF32(make([]float32, width*height))))
	kernel.Bind("input", executor.Input, input)
	kernel.Bind("output", executor.Output, output)

	_, err = kernel.Run()
	require.NoError(t, err)

	data := output.GetData().Vector.F32
	require.Len(t, data, width*height)
	img := colorize(data)

	center := (height/2)*width + width/2
	assert.Equal(t, uint8(0), img[center], "centre pixel should be inside the set")
	for _, corner := range []int{0, width - 1, (height - 1) * width, height*width - 1} {
		assert.Equalf(t, uint8(255), img[corner], "corner %d should be outside the set", corner)
	}
}

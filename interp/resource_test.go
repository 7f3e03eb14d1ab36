package interp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dariost/wyvern/interp"
	"github.com/dariost/wyvern/ir"
)

func TestResourceClearSetIdempotence(t *testing.T) {
	e := interp.NewExecutor(interp.Config{})
	res, err := e.NewResource()
	require.NoError(t, err)

	values := []ir.TokenValue{
		ir.ScalarValue(ir.ScalarU32(7)),
		ir.ScalarValue(ir.ScalarF32(1.5)),
		ir.ScalarValue(ir.ScalarBool(true)),
		ir.VectorValue(ir.VectorI32([]int32{-1, 0, 1})),
	}
	for _, v := range values {
		res.Clear()
		assert.Equal(t, ir.NullType(), res.TokenType())
		res.SetData(v)
		assert.Equal(t, v, res.GetData())
		assert.Equal(t, ir.TokenTypeOf(v), res.TokenType())
	}
}

func TestResourceIdentity(t *testing.T) {
	e := interp.NewExecutor(interp.Config{})
	a, _ := e.NewResource()
	b, _ := e.NewResource()
	ra := a.(*interp.Resource)
	rb := b.(*interp.Resource)
	assert.NotEqual(t, ra.ID(), rb.ID())
}

func TestResourceCopiesVectors(t *testing.T) {
	e := interp.NewExecutor(interp.Config{})
	res, _ := e.NewResource()
	data := []uint32{1, 2, 3}
	res.SetData(ir.VectorValue(ir.VectorU32(data)))
	data[0] = 99
	got := res.GetData().Vector.U32
	assert.Equal(t, uint32(1), got[0], "SetData must not alias the host slice")
	got[1] = 99
	assert.Equal(t, uint32(2), res.GetData().Vector.U32[1], "GetData must not alias the stored slice")
}

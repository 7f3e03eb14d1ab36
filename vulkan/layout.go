package vulkan

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dariost/wyvern/ir"
	"github.com/dariost/wyvern/spirv"
)

// Buffer layout, shared by the 1.0 uniform and 1.1 storage-buffer paths:
// a scalar is one 4-byte value at offset 0; an array is a 4-byte length
// header at offset 0 followed by 4-byte-stride elements at offset 4. Bool
// elements have no 4-byte representation and are rejected.

// bindingSize returns the byte size of the buffer backing a binding, given
// the host value bound to it (the zero TokenValue for Private entries).
func bindingSize(b spirv.Binding, v ir.TokenValue) (int, error) {
	if !b.RuntimeArray {
		return 4, nil
	}
	n := int(b.MaxSize)
	if v.Kind == ir.ValueVector {
		n = v.Vector.Len()
	}
	if b.Elem == ir.Bool {
		return 0, fmt.Errorf("binding %d: bool elements are not representable", b.Index)
	}
	return 4 + 4*n, nil
}

// encodeValue serializes a resource value into the buffer layout.
func encodeValue(b spirv.Binding, v ir.TokenValue) ([]byte, error) {
	size, err := bindingSize(b, v)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	switch v.Kind {
	case ir.ValueNull:
		if b.RuntimeArray {
			binary.LittleEndian.PutUint32(buf, b.MaxSize)
		}
		return buf, nil
	case ir.ValueScalar:
		if b.RuntimeArray {
			return nil, fmt.Errorf("binding %d: scalar data bound to an array slot", b.Index)
		}
		binary.LittleEndian.PutUint32(buf, v.Scalar.Bits)
		return buf, nil
	}
	if !b.RuntimeArray {
		return nil, fmt.Errorf("binding %d: vector data bound to a scalar slot", b.Index)
	}
	vec := v.Vector
	if vec.Type != b.Elem {
		return nil, fmt.Errorf("binding %d: %s data bound to a %s slot", b.Index, vec.Type, b.Elem)
	}
	binary.LittleEndian.PutUint32(buf, uint32(vec.Len()))
	for i := 0; i < vec.Len(); i++ {
		var bits uint32
		switch vec.Type {
		case ir.I32:
			bits = uint32(vec.I32[i])
		case ir.U32:
			bits = vec.U32[i]
		case ir.F32:
			bits = math.Float32bits(vec.F32[i])
		}
		binary.LittleEndian.PutUint32(buf[4+4*i:], bits)
	}
	return buf, nil
}

// decodeValue reads a buffer back into a resource value shaped like the
// prior host value (the element count comes from the host, not the length
// header, which the kernel does not rewrite).
func decodeValue(b spirv.Binding, prior ir.TokenValue, buf []byte) (ir.TokenValue, error) {
	if !b.RuntimeArray {
		if len(buf) < 4 {
			return ir.TokenValue{}, fmt.Errorf("binding %d: short buffer", b.Index)
		}
		bits := binary.LittleEndian.Uint32(buf)
		return ir.ScalarValue(ir.ConstantScalar{Type: b.Elem, Bits: bits}), nil
	}
	n := int(b.MaxSize)
	if prior.Kind == ir.ValueVector {
		n = prior.Vector.Len()
	}
	if len(buf) < 4+4*n {
		return ir.TokenValue{}, fmt.Errorf("binding %d: short buffer (%d bytes for %d elements)", b.Index, len(buf), n)
	}
	var vec ir.ConstantVector
	switch b.Elem {
	case ir.I32:
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(buf[4+4*i:]))
		}
		vec = ir.VectorI32(out)
	case ir.U32:
		out := make([]uint32, n)
		for i := range out {
			out[i] = binary.LittleEndian.Uint32(buf[4+4*i:])
		}
		vec = ir.VectorU32(out)
	case ir.F32:
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4+4*i:]))
		}
		vec = ir.VectorF32(out)
	default:
		return ir.TokenValue{}, fmt.Errorf("binding %d: bool elements are not representable", b.Index)
	}
	return ir.VectorValue(vec), nil
}

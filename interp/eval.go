package interp

import (
	"math"

	"github.com/dariost/wyvern/ir"
)

// Scalar evaluation follows the host's two's-complement u32/i32 semantics
// and IEEE-754 f32 semantics. Integer division or remainder by zero panics
// like any Go division; the machine converts the panic into the run error.

func evalUnary(op ir.UnaryOperator, a ir.ConstantScalar) ir.ConstantScalar {
	switch op {
	case ir.Neg:
		if a.Type == ir.F32 {
			return ir.ScalarF32(-a.F32())
		}
		return ir.ScalarI32(-a.I32())
	default: // Not
		switch a.Type {
		case ir.Bool:
			return ir.ScalarBool(!a.Bool())
		case ir.I32:
			return ir.ScalarI32(^a.I32())
		default:
			return ir.ScalarU32(^a.U32())
		}
	}
}

func evalBinary(op ir.BinaryOperator, a, b ir.ConstantScalar) ir.ConstantScalar {
	if op.IsShift() {
		return evalShift(op, a, b)
	}
	switch a.Type {
	case ir.Bool:
		return evalBool(op, a.Bool(), b.Bool())
	case ir.I32:
		return evalI32(op, a.I32(), b.I32())
	case ir.U32:
		return evalU32(op, a.U32(), b.U32())
	default:
		return evalF32(op, a.F32(), b.F32())
	}
}

func evalShift(op ir.BinaryOperator, a, b ir.ConstantScalar) ir.ConstantScalar {
	count := b.Bits
	if op == ir.Shl {
		if a.Type == ir.I32 {
			return ir.ScalarI32(a.I32() << count)
		}
		return ir.ScalarU32(a.U32() << count)
	}
	// Shr is logical on U32 and arithmetic on I32.
	if a.Type == ir.I32 {
		return ir.ScalarI32(a.I32() >> count)
	}
	return ir.ScalarU32(a.U32() >> count)
}

func evalBool(op ir.BinaryOperator, a, b bool) ir.ConstantScalar {
	switch op {
	case ir.BitAnd:
		return ir.ScalarBool(a && b)
	case ir.BitOr:
		return ir.ScalarBool(a || b)
	case ir.BitXor:
		return ir.ScalarBool(a != b)
	case ir.Eq:
		return ir.ScalarBool(a == b)
	default: // Ne
		return ir.ScalarBool(a != b)
	}
}

func evalU32(op ir.BinaryOperator, a, b uint32) ir.ConstantScalar {
	switch op {
	case ir.Add:
		return ir.ScalarU32(a + b)
	case ir.Sub:
		return ir.ScalarU32(a - b)
	case ir.Mul:
		return ir.ScalarU32(a * b)
	case ir.Div:
		return ir.ScalarU32(a / b)
	case ir.Rem:
		return ir.ScalarU32(a % b)
	case ir.BitAnd:
		return ir.ScalarU32(a & b)
	case ir.BitOr:
		return ir.ScalarU32(a | b)
	case ir.BitXor:
		return ir.ScalarU32(a ^ b)
	case ir.Eq:
		return ir.ScalarBool(a == b)
	case ir.Ne:
		return ir.ScalarBool(a != b)
	case ir.Lt:
		return ir.ScalarBool(a < b)
	case ir.Le:
		return ir.ScalarBool(a <= b)
	case ir.Gt:
		return ir.ScalarBool(a > b)
	default: // Ge
		return ir.ScalarBool(a >= b)
	}
}

func evalI32(op ir.BinaryOperator, a, b int32) ir.ConstantScalar {
	switch op {
	case ir.Add:
		return ir.ScalarI32(a + b)
	case ir.Sub:
		return ir.ScalarI32(a - b)
	case ir.Mul:
		return ir.ScalarI32(a * b)
	case ir.Div:
		return ir.ScalarI32(a / b)
	case ir.Rem:
		return ir.ScalarI32(a % b)
	case ir.BitAnd:
		return ir.ScalarI32(a & b)
	case ir.BitOr:
		return ir.ScalarI32(a | b)
	case ir.BitXor:
		return ir.ScalarI32(a ^ b)
	case ir.Eq:
		return ir.ScalarBool(a == b)
	case ir.Ne:
		return ir.ScalarBool(a != b)
	case ir.Lt:
		return ir.ScalarBool(a < b)
	case ir.Le:
		return ir.ScalarBool(a <= b)
	case ir.Gt:
		return ir.ScalarBool(a > b)
	default: // Ge
		return ir.ScalarBool(a >= b)
	}
}

func evalF32(op ir.BinaryOperator, a, b float32) ir.ConstantScalar {
	switch op {
	case ir.Add:
		return ir.ScalarF32(a + b)
	case ir.Sub:
		return ir.ScalarF32(a - b)
	case ir.Mul:
		return ir.ScalarF32(a * b)
	case ir.Div:
		return ir.ScalarF32(a / b)
	case ir.Rem:
		return ir.ScalarF32(float32(math.Mod(float64(a), float64(b))))
	case ir.Eq:
		return ir.ScalarBool(a == b)
	case ir.Ne:
		return ir.ScalarBool(a != b)
	case ir.Lt:
		return ir.ScalarBool(a < b)
	case ir.Le:
		return ir.ScalarBool(a <= b)
	case ir.Gt:
		return ir.ScalarBool(a > b)
	default: // Ge
		return ir.ScalarBool(a >= b)
	}
}

func evalConvert(kind ir.ConversionKind, a ir.ConstantScalar) ir.ConstantScalar {
	switch kind {
	case ir.U32fromF32:
		return ir.ScalarU32(uint32(a.F32()))
	case ir.I32fromF32:
		return ir.ScalarI32(int32(a.F32()))
	case ir.F32fromU32:
		return ir.ScalarF32(float32(a.U32()))
	case ir.F32fromI32:
		return ir.ScalarF32(float32(a.I32()))
	case ir.I32fromU32:
		return ir.ScalarI32(int32(a.U32()))
	default: // U32fromI32
		return ir.ScalarU32(uint32(a.I32()))
	}
}

package builder

import (
	"github.com/dariost/wyvern/ir"
)

// Elem is the set of scalar element types a program can compute with.
type Elem interface {
	bool | int32 | uint32 | float32
}

func dataTypeOf[T Elem]() ir.DataType {
	var z T
	switch any(z).(type) {
	case bool:
		return ir.Bool
	case int32:
		return ir.I32
	case uint32:
		return ir.U32
	default:
		return ir.F32
	}
}

func scalarOf[T Elem](v T) ir.ConstantScalar {
	switch x := any(v).(type) {
	case bool:
		return ir.ScalarBool(x)
	case int32:
		return ir.ScalarI32(x)
	case uint32:
		return ir.ScalarU32(x)
	default:
		return ir.ScalarF32(any(v).(float32))
	}
}

// Constant is an immutable SSA value of element type T. Operator methods
// emit one IR op each and return a fresh Constant; cross-type arithmetic
// must go through the explicit conversion constructors.
type Constant[T Elem] struct {
	tok token
}

// NewConstant emits a literal.
func NewConstant[T Elem](value T, b *ProgramBuilder) Constant[T] {
	t := b.mintToken(ir.ConstantType(dataTypeOf[T]()))
	b.addOp(ir.Constant{Result: t.id, Value: scalarOf(value)})
	return Constant[T]{tok: t}
}

// emitBinary type-checks and emits one binary op, returning the result
// token. Violations are authoring errors and panic.
func (b *ProgramBuilder) emitBinary(op ir.BinaryOperator, l, r token) token {
	b.check(l)
	b.check(r)
	ld, rd := l.ty.Data, r.ty.Data
	if l.ty.Kind != ir.KindConstant || r.ty.Kind != ir.KindConstant {
		b.panicf("%s operands must be constants, found %s and %s", op, l.ty, r.ty)
	}
	resultData := ld
	switch {
	case op.IsShift():
		if ld != ir.U32 && ld != ir.I32 {
			b.panicf("%s operand must be an integer, found %s", op, ld)
		}
		if rd != ir.U32 && rd != ir.I32 {
			b.panicf("%s count must be an integer, found %s", op, rd)
		}
	case ld != rd:
		b.panicf("%s operands disagree: %s vs %s", op, ld, rd)
	case op.IsComparison():
		if ld == ir.Bool && op != ir.Eq && op != ir.Ne {
			b.panicf("%s is not defined for Bool", op)
		}
		resultData = ir.Bool
	case op == ir.BitAnd || op == ir.BitOr || op == ir.BitXor:
		if ld == ir.F32 {
			b.panicf("%s is not defined for F32", op)
		}
	default: // Add..Rem
		if ld == ir.Bool {
			b.panicf("%s is not defined for Bool", op)
		}
	}
	res := b.mintToken(ir.ConstantType(resultData))
	b.addOp(ir.Binary{Op: op, Result: res.id, Left: l.id, Right: r.id})
	return res
}

func (b *ProgramBuilder) emitUnary(op ir.UnaryOperator, a token) token {
	b.check(a)
	if a.ty.Kind != ir.KindConstant {
		b.panicf("%s operand must be a constant, found %s", op, a.ty)
	}
	d := a.ty.Data
	switch op {
	case ir.Neg:
		if d != ir.I32 && d != ir.F32 {
			b.panicf("Neg is defined for I32 and F32 only, found %s", d)
		}
	case ir.Not:
		if d == ir.F32 {
			b.panicf("Not is not defined for F32")
		}
	}
	res := b.mintToken(ir.ConstantType(d))
	b.addOp(ir.Unary{Op: op, Result: res.id, Operand: a.id})
	return res
}

func (b *ProgramBuilder) emitConvert(kind ir.ConversionKind, a token) token {
	b.check(a)
	if a.ty != ir.ConstantType(kind.From()) {
		b.panicf("%s source must be Constant(%s), found %s", kind, kind.From(), a.ty)
	}
	res := b.mintToken(ir.ConstantType(kind.To()))
	b.addOp(ir.Convert{Op: kind, Result: res.id, Source: a.id})
	return res
}

func binary[T Elem](op ir.BinaryOperator, l, r Constant[T]) Constant[T] {
	return Constant[T]{tok: l.tok.b.emitBinary(op, l.tok, r.tok)}
}

func compare[T Elem](op ir.BinaryOperator, l, r Constant[T]) Constant[bool] {
	return Constant[bool]{tok: l.tok.b.emitBinary(op, l.tok, r.tok)}
}

func (c Constant[T]) Add(o Constant[T]) Constant[T] { return binary(ir.Add, c, o) }
func (c Constant[T]) Sub(o Constant[T]) Constant[T] { return binary(ir.Sub, c, o) }
func (c Constant[T]) Mul(o Constant[T]) Constant[T] { return binary(ir.Mul, c, o) }
func (c Constant[T]) Div(o Constant[T]) Constant[T] { return binary(ir.Div, c, o) }
func (c Constant[T]) Rem(o Constant[T]) Constant[T] { return binary(ir.Rem, c, o) }

// Neg negates an I32 or F32 value.
func (c Constant[T]) Neg() Constant[T] {
	return Constant[T]{tok: c.tok.b.emitUnary(ir.Neg, c.tok)}
}

// Not is bitwise complement on integers and logical not on Bool.
func (c Constant[T]) Not() Constant[T] {
	return Constant[T]{tok: c.tok.b.emitUnary(ir.Not, c.tok)}
}

// Shl and Shr shift by an unsigned count; the receiver must be an integer.
func (c Constant[T]) Shl(count Constant[uint32]) Constant[T] {
	return Constant[T]{tok: c.tok.b.emitBinary(ir.Shl, c.tok, count.tok)}
}

func (c Constant[T]) Shr(count Constant[uint32]) Constant[T] {
	return Constant[T]{tok: c.tok.b.emitBinary(ir.Shr, c.tok, count.tok)}
}

func (c Constant[T]) And(o Constant[T]) Constant[T] { return binary(ir.BitAnd, c, o) }
func (c Constant[T]) Or(o Constant[T]) Constant[T]  { return binary(ir.BitOr, c, o) }

// Xor is bitwise on integers; on Bool the backends expand it to
// (a ∧ ¬b) ∨ (¬a ∧ b).
func (c Constant[T]) Xor(o Constant[T]) Constant[T] { return binary(ir.BitXor, c, o) }

func (c Constant[T]) Eq(o Constant[T]) Constant[bool] { return compare(ir.Eq, c, o) }
func (c Constant[T]) Ne(o Constant[T]) Constant[bool] { return compare(ir.Ne, c, o) }
func (c Constant[T]) Lt(o Constant[T]) Constant[bool] { return compare(ir.Lt, c, o) }
func (c Constant[T]) Le(o Constant[T]) Constant[bool] { return compare(ir.Le, c, o) }
func (c Constant[T]) Gt(o Constant[T]) Constant[bool] { return compare(ir.Gt, c, o) }
func (c Constant[T]) Ge(o Constant[T]) Constant[bool] { return compare(ir.Ge, c, o) }

// Explicit numeric conversions. Each maps to exactly one conversion op.
func U32FromF32(c Constant[float32]) Constant[uint32] {
	return Constant[uint32]{tok: c.tok.b.emitConvert(ir.U32fromF32, c.tok)}
}

func I32FromF32(c Constant[float32]) Constant[int32] {
	return Constant[int32]{tok: c.tok.b.emitConvert(ir.I32fromF32, c.tok)}
}

func F32FromU32(c Constant[uint32]) Constant[float32] {
	return Constant[float32]{tok: c.tok.b.emitConvert(ir.F32fromU32, c.tok)}
}

func F32FromI32(c Constant[int32]) Constant[float32] {
	return Constant[float32]{tok: c.tok.b.emitConvert(ir.F32fromI32, c.tok)}
}

func I32FromU32(c Constant[uint32]) Constant[int32] {
	return Constant[int32]{tok: c.tok.b.emitConvert(ir.I32fromU32, c.tok)}
}

func U32FromI32(c Constant[int32]) Constant[uint32] {
	return Constant[uint32]{tok: c.tok.b.emitConvert(ir.U32fromI32, c.tok)}
}

// Variable is a mutable cell of element type T.
type Variable[T Elem] struct {
	tok token
}

// NewVariable declares a variable.
func NewVariable[T Elem](b *ProgramBuilder) Variable[T] {
	d := dataTypeOf[T]()
	t := b.mintToken(ir.VariableType(d))
	b.mu.Lock()
	b.storage[t.id] = ir.StorageType{Class: ir.StorageVariable, Data: d}
	b.mu.Unlock()
	return Variable[T]{tok: t}
}

// Load reads the cell into a fresh constant.
func (v Variable[T]) Load() Constant[T] {
	b := v.tok.b
	b.check(v.tok)
	res := b.mintToken(ir.ConstantType(v.tok.ty.Data))
	b.addOp(ir.Load{Result: res.id, Source: v.tok.id})
	return Constant[T]{tok: res}
}

// Store writes a constant into the cell.
func (v Variable[T]) Store(c Constant[T]) {
	b := v.tok.b
	b.check(v.tok)
	b.check(c.tok)
	b.addOp(ir.Store{Target: v.tok.id, Source: c.tok.id})
}

// MarkAsInput registers the variable as a named input and returns it.
func (v Variable[T]) MarkAsInput(name string) Variable[T] {
	v.tok.b.markBinding(v.tok, name, bindInput)
	return v
}

// MarkAsOutput registers the variable as a named output and returns it.
func (v Variable[T]) MarkAsOutput(name string) Variable[T] {
	v.tok.b.markBinding(v.tok, name, bindOutput)
	return v
}

// Array is a sized container of element type T. Shared arrays are visible
// to all invocations and are the only arrays that may be bound by name;
// non-shared arrays are per-invocation scratch.
type Array[T Elem] struct {
	tok    token
	shared bool
}

// NewArray declares an array of size elements. The zero argument fixes the
// element type and must come from the same builder.
func NewArray[T Elem](zero Constant[T], size uint32, shared bool, b *ProgramBuilder) Array[T] {
	b.check(zero.tok)
	d := dataTypeOf[T]()
	sizeTok := NewConstant(size, b)
	t := b.mintToken(ir.ArrayType(d))
	class := ir.StoragePrivateArray
	if shared {
		class = ir.StorageSharedArray
	}
	b.mu.Lock()
	b.storage[t.id] = ir.StorageType{Class: class, Data: d, MaxSize: size}
	b.mu.Unlock()
	b.addOp(ir.ArrayNew{
		Result:  t.id,
		Size:    sizeTok.tok.id,
		Elem:    d,
		MaxSize: size,
		Shared:  shared,
	})
	return Array[T]{tok: t, shared: shared}
}

// Len reads the element count.
func (a Array[T]) Len() Constant[uint32] {
	b := a.tok.b
	b.check(a.tok)
	res := b.mintToken(ir.ConstantType(ir.U32))
	b.addOp(ir.ArrayLen{Result: res.id, Array: a.tok.id})
	return Constant[uint32]{tok: res}
}

// At returns a cell-like handle on one element. The handle erases to the
// (array, index) token pair; it allocates no token of its own.
func (a Array[T]) At(index Constant[uint32]) ArrayElement[T] {
	a.tok.b.check(a.tok)
	a.tok.b.check(index.tok)
	return ArrayElement[T]{arr: a, idx: index}
}

// MarkAsInput registers the array as a named input; the array must be
// shared.
func (a Array[T]) MarkAsInput(name string) Array[T] {
	if !a.shared {
		a.tok.b.panicf("array %d is not shared and cannot be an input", a.tok.id)
	}
	a.tok.b.markBinding(a.tok, name, bindInput)
	return a
}

// MarkAsOutput registers the array as a named output; the array must be
// shared.
func (a Array[T]) MarkAsOutput(name string) Array[T] {
	if !a.shared {
		a.tok.b.panicf("array %d is not shared and cannot be an output", a.tok.id)
	}
	a.tok.b.markBinding(a.tok, name, bindOutput)
	return a
}

// ArrayElement is the handle returned by Array.At.
type ArrayElement[T Elem] struct {
	arr Array[T]
	idx Constant[uint32]
}

// Load reads the element.
func (e ArrayElement[T]) Load() Constant[T] {
	b := e.arr.tok.b
	res := b.mintToken(ir.ConstantType(e.arr.tok.ty.Data))
	b.addOp(ir.ArrayLoad{Result: res.id, Array: e.arr.tok.id, Index: e.idx.tok.id})
	return Constant[T]{tok: res}
}

// Store writes the element.
func (e ArrayElement[T]) Store(c Constant[T]) {
	b := e.arr.tok.b
	b.check(c.tok)
	b.addOp(ir.ArrayStore{Array: e.arr.tok.id, Index: e.idx.tok.id, Source: c.tok.id})
}

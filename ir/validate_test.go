package ir_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dariost/wyvern/ir"
)

func validProgram() *ir.Program {
	return &ir.Program{
		Symbol: map[ir.TokenID]ir.TokenType{
			0: ir.ConstantType(ir.U32),
			1: ir.ConstantType(ir.U32),
			2: ir.ConstantType(ir.U32),
			3: ir.ConstantType(ir.Bool),
			4: ir.ArrayType(ir.U32),
			5: ir.VariableType(ir.U32),
		},
		Storage: map[ir.TokenID]ir.StorageType{
			4: {Class: ir.StorageSharedArray, Data: ir.U32, MaxSize: 16},
			5: {Class: ir.StorageVariable, Data: ir.U32},
		},
		Operation: []ir.Op{
			ir.Constant{Result: 0, Value: ir.ScalarU32(16)},
			ir.Constant{Result: 1, Value: ir.ScalarU32(3)},
			ir.ArrayNew{Result: 4, Size: 0, Elem: ir.U32, MaxSize: 16, Shared: true},
			ir.Binary{Op: ir.Add, Result: 2, Left: 0, Right: 1},
			ir.Binary{Op: ir.Lt, Result: 3, Left: 2, Right: 0},
			ir.If{
				Cond:      nil,
				CondToken: 3,
				LThen:     1,
				Then:      []ir.Op{ir.Store{Target: 5, Source: 2}},
				LEnd:      2,
			},
		},
		Input:     map[string]ir.TokenID{"data": 4},
		Output:    map[string]ir.TokenID{"out": 5},
		NextLabel: 3,
	}
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	violations, err := ir.Validate(validProgram())
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestValidateNilProgram(t *testing.T) {
	_, err := ir.Validate(nil)
	assert.Error(t, err)
}

func expectViolation(t *testing.T, p *ir.Program, fragment string) {
	t.Helper()
	violations, err := ir.Validate(p)
	require.NoError(t, err)
	require.NotEmpty(t, violations, "expected a violation containing %q", fragment)
	for _, v := range violations {
		if strings.Contains(v.Error(), fragment) {
			return
		}
	}
	assert.Failf(t, "violation not found", "no violation mentions %q; got %v", fragment, violations)
}

func TestValidateUnknownToken(t *testing.T) {
	p := validProgram()
	p.Operation = append(p.Operation, ir.Binary{Op: ir.Add, Result: 2, Left: 99, Right: 0})
	expectViolation(t, p, "not in symbol table")
}

func TestValidateTypeMismatch(t *testing.T) {
	p := validProgram()
	p.Symbol[6] = ir.ConstantType(ir.F32)
	p.Operation = append(p.Operation, ir.Binary{Op: ir.Add, Result: 2, Left: 6, Right: 0})
	expectViolation(t, p, "operands disagree")
}

func TestValidateBoolArithmetic(t *testing.T) {
	p := validProgram()
	p.Operation = append(p.Operation, ir.Binary{Op: ir.Add, Result: 3, Left: 3, Right: 3})
	expectViolation(t, p, "not defined for Bool")
}

func TestValidateNegOnU32(t *testing.T) {
	p := validProgram()
	p.Operation = append(p.Operation, ir.Unary{Op: ir.Neg, Result: 2, Operand: 0})
	expectViolation(t, p, "Neg is defined for I32 and F32")
}

func TestValidateShiftCount(t *testing.T) {
	p := validProgram()
	p.Symbol[6] = ir.ConstantType(ir.F32)
	p.Operation = append(p.Operation, ir.Binary{Op: ir.Shl, Result: 2, Left: 0, Right: 6})
	expectViolation(t, p, "count must be an integer")
}

func TestValidateLabelOrder(t *testing.T) {
	p := validProgram()
	op := p.Operation[5].(ir.If)
	op.LThen, op.LEnd = op.LEnd, op.LThen
	p.Operation[5] = op
	expectViolation(t, p, "not strictly increasing")
}

func TestValidateLabelBound(t *testing.T) {
	p := validProgram()
	p.NextLabel = 2
	expectViolation(t, p, "not below next_label")
}

func TestValidateNameAcrossDirections(t *testing.T) {
	p := validProgram()
	p.Output["data"] = 5
	expectViolation(t, p, "both input and output")
}

func TestValidatePrivateArrayBound(t *testing.T) {
	p := validProgram()
	st := p.Storage[4]
	st.Class = ir.StoragePrivateArray
	p.Storage[4] = st
	expectViolation(t, p, "must be shared")
}

func TestValidateLoadFromNonVariable(t *testing.T) {
	p := validProgram()
	p.Operation = append(p.Operation, ir.Load{Result: 2, Source: 4})
	expectViolation(t, p, "load source must be a variable")
}

func TestValidateConversionSource(t *testing.T) {
	p := validProgram()
	p.Symbol[7] = ir.ConstantType(ir.F32)
	p.Operation = append(p.Operation, ir.Convert{Op: ir.F32fromU32, Result: 7, Source: 7})
	expectViolation(t, p, "source must be U32")
}

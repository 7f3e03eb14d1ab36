package ir

import (
	"encoding/json"
	"fmt"
)

// The Program wire format is a JSON document mirroring the in-memory
// structure: maps are object literals keyed by decimal token ids, op
// variants are objects tagged by an "op" field spelling the operation
// name, and scalar F32 payloads travel as IEEE-754 bit patterns so the
// round trip is exact.

// MarshalText encodes the data type as its name.
func (d DataType) MarshalText() ([]byte, error) {
	switch d {
	case Bool, I32, U32, F32:
		return []byte(d.String()), nil
	}
	return nil, fmt.Errorf("unknown data type %d", uint8(d))
}

// UnmarshalText decodes a data type name.
func (d *DataType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Bool":
		*d = Bool
	case "I32":
		*d = I32
	case "U32":
		*d = U32
	case "F32":
		*d = F32
	default:
		return fmt.Errorf("unknown data type %q", text)
	}
	return nil
}

type wireTokenType struct {
	Kind string    `json:"kind"`
	Data *DataType `json:"data,omitempty"`
}

// MarshalJSON encodes the token type as {"kind": ..., "data": ...}; the
// Null kind carries no data field.
func (t TokenType) MarshalJSON() ([]byte, error) {
	w := wireTokenType{Kind: t.Kind.String()}
	if t.Kind != KindNull {
		d := t.Data
		w.Data = &d
	}
	return json.Marshal(w)
}

func (t *TokenType) UnmarshalJSON(data []byte) error {
	var w wireTokenType
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case "Null":
		*t = NullType()
		return nil
	case "Constant":
		t.Kind = KindConstant
	case "Variable":
		t.Kind = KindVariable
	case "Array":
		t.Kind = KindArray
	case "ArrayPointer":
		t.Kind = KindArrayPointer
	default:
		return fmt.Errorf("unknown token kind %q", w.Kind)
	}
	if w.Data == nil {
		return fmt.Errorf("token kind %q requires a data type", w.Kind)
	}
	t.Data = *w.Data
	return nil
}

type wireStorageType struct {
	Class   string   `json:"class"`
	Data    DataType `json:"data"`
	MaxSize uint32   `json:"max_size,omitempty"`
}

func (s StorageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireStorageType{
		Class:   s.Class.String(),
		Data:    s.Data,
		MaxSize: s.MaxSize,
	})
}

func (s *StorageType) UnmarshalJSON(data []byte) error {
	var w wireStorageType
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Class {
	case "Variable":
		s.Class = StorageVariable
	case "PrivateArray":
		s.Class = StoragePrivateArray
	case "SharedArray":
		s.Class = StorageSharedArray
	default:
		return fmt.Errorf("unknown storage class %q", w.Class)
	}
	s.Data = w.Data
	s.MaxSize = w.MaxSize
	return nil
}

type wireScalar struct {
	Type DataType `json:"type"`
	Bits uint32   `json:"bits"`
}

func (c ConstantScalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireScalar{Type: c.Type, Bits: c.Bits})
}

func (c *ConstantScalar) UnmarshalJSON(data []byte) error {
	var w wireScalar
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.Type = w.Type
	c.Bits = w.Bits
	return nil
}

// wireOp is the union of every op envelope. Pointer and slice fields are
// omitted when empty, so each variant serializes only its own operands.
type wireOp struct {
	Op        string          `json:"op"`
	Result    *TokenID        `json:"r,omitempty"`
	A         *TokenID        `json:"a,omitempty"`
	B         *TokenID        `json:"b,omitempty"`
	Var       *TokenID        `json:"var,omitempty"`
	Src       *TokenID        `json:"src,omitempty"`
	Arr       *TokenID        `json:"arr,omitempty"`
	Idx       *TokenID        `json:"idx,omitempty"`
	Value     *ConstantScalar `json:"value,omitempty"`
	Size      *TokenID        `json:"size,omitempty"`
	Elem      *DataType       `json:"elem,omitempty"`
	MaxSize   *uint32         `json:"max,omitempty"`
	Shared    *bool           `json:"shared,omitempty"`
	Cond      []wireOp        `json:"cond,omitempty"`
	CondToken *TokenID        `json:"cond_token,omitempty"`
	LHeader   *LabelID        `json:"l_header,omitempty"`
	LThen     *LabelID        `json:"l_then,omitempty"`
	Then      []wireOp        `json:"then,omitempty"`
	LElse     *LabelID        `json:"l_else,omitempty"`
	Else      []wireOp        `json:"else,omitempty"`
	LBody     *LabelID        `json:"l_body,omitempty"`
	Body      []wireOp        `json:"body,omitempty"`
	LEnd      *LabelID        `json:"l_end,omitempty"`
	LExit     *LabelID        `json:"l_exit,omitempty"`
	A0        *TokenID        `json:"a0,omitempty"`
	L0        *LabelID        `json:"l0,omitempty"`
	A1        *TokenID        `json:"a1,omitempty"`
	L1        *LabelID        `json:"l1,omitempty"`
}

func tok(t TokenID) *TokenID    { return &t }
func lbl(l LabelID) *LabelID    { return &l }
func u32p(v uint32) *uint32     { return &v }
func boolp(v bool) *bool        { return &v }
func dtp(d DataType) *DataType  { return &d }

func opsToWire(ops []Op) ([]wireOp, error) {
	out := make([]wireOp, 0, len(ops))
	for _, op := range ops {
		w, err := opToWire(op)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func opToWire(op Op) (wireOp, error) {
	switch o := op.(type) {
	case MemoryBarrier:
		return wireOp{Op: "MemoryBarrier"}, nil
	case ControlBarrier:
		return wireOp{Op: "ControlBarrier"}, nil
	case WorkerID:
		return wireOp{Op: "WorkerId", Result: tok(o.Result)}, nil
	case NumWorkers:
		return wireOp{Op: "NumWorkers", Result: tok(o.Result)}, nil
	case Constant:
		v := o.Value
		return wireOp{Op: "Constant", Result: tok(o.Result), Value: &v}, nil
	case Load:
		return wireOp{Op: "Load", Result: tok(o.Result), Var: tok(o.Source)}, nil
	case Store:
		return wireOp{Op: "Store", Var: tok(o.Target), Src: tok(o.Source)}, nil
	case ArrayNew:
		return wireOp{
			Op: "ArrayNew", Result: tok(o.Result), Size: tok(o.Size),
			Elem: dtp(o.Elem), MaxSize: u32p(o.MaxSize), Shared: boolp(o.Shared),
		}, nil
	case ArrayLen:
		return wireOp{Op: "ArrayLen", Result: tok(o.Result), Arr: tok(o.Array)}, nil
	case ArrayLoad:
		return wireOp{Op: "ArrayLoad", Result: tok(o.Result), Arr: tok(o.Array), Idx: tok(o.Index)}, nil
	case ArrayStore:
		return wireOp{Op: "ArrayStore", Arr: tok(o.Array), Idx: tok(o.Index), Src: tok(o.Source)}, nil
	case Unary:
		return wireOp{Op: o.Op.String(), Result: tok(o.Result), A: tok(o.Operand)}, nil
	case Binary:
		return wireOp{Op: o.Op.String(), Result: tok(o.Result), A: tok(o.Left), B: tok(o.Right)}, nil
	case Convert:
		return wireOp{Op: o.Op.String(), Result: tok(o.Result), A: tok(o.Source)}, nil
	case If:
		cond, err := opsToWire(o.Cond)
		if err != nil {
			return wireOp{}, err
		}
		then, err := opsToWire(o.Then)
		if err != nil {
			return wireOp{}, err
		}
		return wireOp{
			Op: "If", Cond: cond, CondToken: tok(o.CondToken),
			LThen: lbl(o.LThen), Then: then, LEnd: lbl(o.LEnd),
		}, nil
	case IfElse:
		cond, err := opsToWire(o.Cond)
		if err != nil {
			return wireOp{}, err
		}
		then, err := opsToWire(o.Then)
		if err != nil {
			return wireOp{}, err
		}
		els, err := opsToWire(o.Else)
		if err != nil {
			return wireOp{}, err
		}
		return wireOp{
			Op: "IfElse", Cond: cond, CondToken: tok(o.CondToken),
			LThen: lbl(o.LThen), Then: then,
			LElse: lbl(o.LElse), Else: els, LEnd: lbl(o.LEnd),
		}, nil
	case While:
		cond, err := opsToWire(o.Cond)
		if err != nil {
			return wireOp{}, err
		}
		body, err := opsToWire(o.Body)
		if err != nil {
			return wireOp{}, err
		}
		return wireOp{
			Op: "While", LHeader: lbl(o.LHeader), Cond: cond,
			CondToken: tok(o.CondToken), LBody: lbl(o.LBody), Body: body,
			LExit: lbl(o.LExit),
		}, nil
	case Phi:
		return wireOp{
			Op: "Phi", Result: tok(o.Result),
			A0: tok(o.A0), L0: lbl(o.L0), A1: tok(o.A1), L1: lbl(o.L1),
		}, nil
	}
	return wireOp{}, fmt.Errorf("unknown op variant %T", op)
}

var binaryByName = map[string]BinaryOperator{
	"Add": Add, "Sub": Sub, "Mul": Mul, "Div": Div, "Rem": Rem,
	"Shl": Shl, "Shr": Shr,
	"BitAnd": BitAnd, "BitOr": BitOr, "BitXor": BitXor,
	"Eq": Eq, "Ne": Ne, "Lt": Lt, "Le": Le, "Gt": Gt, "Ge": Ge,
}

var conversionByName = map[string]ConversionKind{
	"U32fromF32": U32fromF32, "I32fromF32": I32fromF32,
	"F32fromU32": F32fromU32, "F32fromI32": F32fromI32,
	"I32fromU32": I32fromU32, "U32fromI32": U32fromI32,
}

func opsFromWire(ws []wireOp) ([]Op, error) {
	out := make([]Op, 0, len(ws))
	for i := range ws {
		op, err := opFromWire(&ws[i])
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, nil
}

func opFromWire(w *wireOp) (Op, error) {
	switch w.Op {
	case "MemoryBarrier":
		return MemoryBarrier{}, nil
	case "ControlBarrier":
		return ControlBarrier{}, nil
	case "WorkerId":
		if w.Result == nil {
			return nil, fmt.Errorf("op WorkerId: missing result")
		}
		return WorkerID{Result: *w.Result}, nil
	case "NumWorkers":
		if w.Result == nil {
			return nil, fmt.Errorf("op NumWorkers: missing result")
		}
		return NumWorkers{Result: *w.Result}, nil
	case "Constant":
		if w.Result == nil || w.Value == nil {
			return nil, fmt.Errorf("op Constant: missing result or value")
		}
		return Constant{Result: *w.Result, Value: *w.Value}, nil
	case "Load":
		if w.Result == nil || w.Var == nil {
			return nil, fmt.Errorf("op Load: missing operands")
		}
		return Load{Result: *w.Result, Source: *w.Var}, nil
	case "Store":
		if w.Var == nil || w.Src == nil {
			return nil, fmt.Errorf("op Store: missing operands")
		}
		return Store{Target: *w.Var, Source: *w.Src}, nil
	case "ArrayNew":
		if w.Result == nil || w.Size == nil || w.Elem == nil {
			return nil, fmt.Errorf("op ArrayNew: missing operands")
		}
		o := ArrayNew{Result: *w.Result, Size: *w.Size, Elem: *w.Elem}
		if w.MaxSize != nil {
			o.MaxSize = *w.MaxSize
		}
		if w.Shared != nil {
			o.Shared = *w.Shared
		}
		return o, nil
	case "ArrayLen":
		if w.Result == nil || w.Arr == nil {
			return nil, fmt.Errorf("op ArrayLen: missing operands")
		}
		return ArrayLen{Result: *w.Result, Array: *w.Arr}, nil
	case "ArrayLoad":
		if w.Result == nil || w.Arr == nil || w.Idx == nil {
			return nil, fmt.Errorf("op ArrayLoad: missing operands")
		}
		return ArrayLoad{Result: *w.Result, Array: *w.Arr, Index: *w.Idx}, nil
	case "ArrayStore":
		if w.Arr == nil || w.Idx == nil || w.Src == nil {
			return nil, fmt.Errorf("op ArrayStore: missing operands")
		}
		return ArrayStore{Array: *w.Arr, Index: *w.Idx, Source: *w.Src}, nil
	case "Neg", "Not":
		if w.Result == nil || w.A == nil {
			return nil, fmt.Errorf("op %s: missing operands", w.Op)
		}
		u := Unary{Op: Neg, Result: *w.Result, Operand: *w.A}
		if w.Op == "Not" {
			u.Op = Not
		}
		return u, nil
	case "If":
		if w.CondToken == nil || w.LThen == nil || w.LEnd == nil {
			return nil, fmt.Errorf("op If: missing operands")
		}
		cond, err := opsFromWire(w.Cond)
		if err != nil {
			return nil, err
		}
		then, err := opsFromWire(w.Then)
		if err != nil {
			return nil, err
		}
		return If{Cond: cond, CondToken: *w.CondToken, LThen: *w.LThen, Then: then, LEnd: *w.LEnd}, nil
	case "IfElse":
		if w.CondToken == nil || w.LThen == nil || w.LElse == nil || w.LEnd == nil {
			return nil, fmt.Errorf("op IfElse: missing operands")
		}
		cond, err := opsFromWire(w.Cond)
		if err != nil {
			return nil, err
		}
		then, err := opsFromWire(w.Then)
		if err != nil {
			return nil, err
		}
		els, err := opsFromWire(w.Else)
		if err != nil {
			return nil, err
		}
		return IfElse{
			Cond: cond, CondToken: *w.CondToken,
			LThen: *w.LThen, Then: then, LElse: *w.LElse, Else: els, LEnd: *w.LEnd,
		}, nil
	case "While":
		if w.LHeader == nil || w.CondToken == nil || w.LBody == nil || w.LExit == nil {
			return nil, fmt.Errorf("op While: missing operands")
		}
		cond, err := opsFromWire(w.Cond)
		if err != nil {
			return nil, err
		}
		body, err := opsFromWire(w.Body)
		if err != nil {
			return nil, err
		}
		return While{
			LHeader: *w.LHeader, Cond: cond, CondToken: *w.CondToken,
			LBody: *w.LBody, Body: body, LExit: *w.LExit,
		}, nil
	case "Phi":
		if w.Result == nil || w.A0 == nil || w.L0 == nil || w.A1 == nil || w.L1 == nil {
			return nil, fmt.Errorf("op Phi: missing operands")
		}
		return Phi{Result: *w.Result, A0: *w.A0, L0: *w.L0, A1: *w.A1, L1: *w.L1}, nil
	}
	if b, ok := binaryByName[w.Op]; ok {
		if w.Result == nil || w.A == nil || w.B == nil {
			return nil, fmt.Errorf("op %s: missing operands", w.Op)
		}
		return Binary{Op: b, Result: *w.Result, Left: *w.A, Right: *w.B}, nil
	}
	if c, ok := conversionByName[w.Op]; ok {
		if w.Result == nil || w.A == nil {
			return nil, fmt.Errorf("op %s: missing operands", w.Op)
		}
		return Convert{Op: c, Result: *w.Result, Source: *w.A}, nil
	}
	return nil, fmt.Errorf("unknown op %q", w.Op)
}

type wireProgram struct {
	Symbol    map[TokenID]TokenType   `json:"symbol"`
	Storage   map[TokenID]StorageType `json:"storage"`
	Operation []wireOp                `json:"operation"`
	Input     map[string]TokenID      `json:"input"`
	Output    map[string]TokenID      `json:"output"`
	NextLabel LabelID                 `json:"next_label"`
}

// MarshalJSON serializes the full program in the wire format.
func (p *Program) MarshalJSON() ([]byte, error) {
	ops, err := opsToWire(p.Operation)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireProgram{
		Symbol:    p.Symbol,
		Storage:   p.Storage,
		Operation: ops,
		Input:     p.Input,
		Output:    p.Output,
		NextLabel: p.NextLabel,
	})
}

// UnmarshalJSON parses the wire format back into a program.
func (p *Program) UnmarshalJSON(data []byte) error {
	var w wireProgram
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ops, err := opsFromWire(w.Operation)
	if err != nil {
		return err
	}
	p.Symbol = w.Symbol
	p.Storage = w.Storage
	p.Operation = ops
	p.Input = w.Input
	p.Output = w.Output
	p.NextLabel = w.NextLabel
	if p.Symbol == nil {
		p.Symbol = map[TokenID]TokenType{}
	}
	if p.Storage == nil {
		p.Storage = map[TokenID]StorageType{}
	}
	if p.Input == nil {
		p.Input = map[string]TokenID{}
	}
	if p.Output == nil {
		p.Output = map[string]TokenID{}
	}
	return nil
}

// ParseProgram decodes a serialized program.
func ParseProgram(data []byte) (*Program, error) {
	var p Program
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse program: %w", err)
	}
	return &p, nil
}

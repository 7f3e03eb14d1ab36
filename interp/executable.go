package interp

import (
	"fmt"

	"github.com/dolthub/swiss"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/dariost/wyvern/executor"
	"github.com/dariost/wyvern/ir"
)

type bindingKey struct {
	name string
	kind executor.IO
}

// Executable is a compiled program plus its resource bindings.
type Executable struct {
	program  *ir.Program
	bindings map[bindingKey]*Resource
}

// Bind attaches a resource to a named slot and returns the prior binding.
// The (name, kind) pair must exist in the compiled program.
func (e *Executable) Bind(name string, kind executor.IO, res executor.Resource) executor.Resource {
	e.checkSlot(name, kind)
	r, ok := res.(*Resource)
	if !ok {
		panic(fmt.Sprintf("wyvern/interp: resource %T was not allocated by this backend", res))
	}
	key := bindingKey{name, kind}
	prior := e.bindings[key]
	e.bindings[key] = r
	if prior == nil {
		return nil
	}
	return prior
}

// Unbind detaches and returns the resource bound to a named slot.
func (e *Executable) Unbind(name string, kind executor.IO) executor.Resource {
	e.checkSlot(name, kind)
	key := bindingKey{name, kind}
	prior := e.bindings[key]
	delete(e.bindings, key)
	if prior == nil {
		return nil
	}
	return prior
}

func (e *Executable) checkSlot(name string, kind executor.IO) {
	m := e.program.Input
	if kind == executor.Output {
		m = e.program.Output
	}
	if _, ok := m[name]; !ok {
		panic(fmt.Sprintf("wyvern/interp: program has no %s named %q", kind, name))
	}
}

// Run interprets the program. Inputs and outputs are staged into the token
// memory before the op stream executes and outputs are copied back after;
// the first error aborts execution.
func (e *Executable) Run() (executor.Report, error) {
	m := &machine{
		program: e.program,
		memory:  swiss.NewMap[ir.TokenID, ir.TokenValue](uint32(len(e.program.Symbol))),
	}
	if err := e.stage(m); err != nil {
		return "", err
	}
	if err := m.run(); err != nil {
		return "", err
	}
	return "", e.unstage(m)
}

// stage copies bound resource data into the token memory and checks it
// against the program's declarations.
func (e *Executable) stage(m *machine) error {
	load := func(name string, kind executor.IO, tok ir.TokenID) error {
		res, ok := e.bindings[bindingKey{name, kind}]
		if !ok {
			return fmt.Errorf("missing %s resource %q", kind, name)
		}
		value := res.GetData()
		want := e.program.Symbol[tok]
		switch want.Kind {
		case ir.KindVariable:
			if value.Kind != ir.ValueScalar || value.Scalar.Type != want.Data {
				return fmt.Errorf("%s %q: expected a %s scalar, found %s",
					kind, name, want.Data, ir.TokenTypeOf(value))
			}
		case ir.KindArray:
			if value.Kind != ir.ValueVector || value.Vector.Type != want.Data {
				return fmt.Errorf("%s %q: expected a %s vector, found %s",
					kind, name, want.Data, ir.TokenTypeOf(value))
			}
		}
		m.memory.Put(tok, value)
		return nil
	}
	for _, name := range sortedNames(e.program.Input) {
		if err := load(name, executor.Input, e.program.Input[name]); err != nil {
			return err
		}
	}
	for _, name := range sortedNames(e.program.Output) {
		if err := load(name, executor.Output, e.program.Output[name]); err != nil {
			return err
		}
	}
	return nil
}

func sortedNames(m map[string]ir.TokenID) []string {
	names := maps.Keys(m)
	slices.Sort(names)
	return names
}

// unstage copies output tokens back to their resources.
func (e *Executable) unstage(m *machine) error {
	for _, name := range sortedNames(e.program.Output) {
		value, ok := m.memory.Get(e.program.Output[name])
		if !ok {
			return fmt.Errorf("output %q was never written", name)
		}
		e.bindings[bindingKey{name, executor.Output}].SetData(value)
	}
	return nil
}

// labelHistory is the two-slot label state used to resolve Phi: every
// block transition shifts current into previous.
type labelHistory struct {
	previous ir.LabelID
	current  ir.LabelID
}

func (l *labelHistory) enter(label ir.LabelID) {
	l.previous = l.current
	l.current = label
}

type machine struct {
	program *ir.Program
	memory  *swiss.Map[ir.TokenID, ir.TokenValue]
	labels  labelHistory
}

// run executes the top-level op stream, converting interpreter panics
// (integer division by zero follows host semantics) into the single error
// report the contract requires.
func (m *machine) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("interpreter fault: %v", r)
		}
	}()
	return m.exec(m.program.Operation)
}

func (m *machine) exec(ops []ir.Op) error {
	for _, op := range ops {
		if err := m.step(op); err != nil {
			return err
		}
	}
	return nil
}

func (m *machine) step(op ir.Op) error {
	switch o := op.(type) {
	case ir.MemoryBarrier, ir.ControlBarrier:
		// Scalar execution: barriers order nothing.
		return nil

	case ir.WorkerID:
		m.memory.Put(o.Result, ir.ScalarValue(ir.ScalarU32(0)))
		return nil
	case ir.NumWorkers:
		m.memory.Put(o.Result, ir.ScalarValue(ir.ScalarU32(1)))
		return nil

	case ir.Constant:
		m.memory.Put(o.Result, ir.ScalarValue(o.Value))
		return nil

	case ir.Load:
		v, err := m.scalar(o.Source)
		if err != nil {
			return err
		}
		m.memory.Put(o.Result, ir.ScalarValue(v))
		return nil
	case ir.Store:
		v, err := m.scalar(o.Source)
		if err != nil {
			return err
		}
		m.memory.Put(o.Target, ir.ScalarValue(v))
		return nil

	case ir.ArrayNew:
		return m.arrayNew(o)
	case ir.ArrayLen:
		vec, err := m.vector(o.Array)
		if err != nil {
			return err
		}
		m.memory.Put(o.Result, ir.ScalarValue(ir.ScalarU32(uint32(vec.Len()))))
		return nil
	case ir.ArrayLoad:
		return m.arrayLoad(o)
	case ir.ArrayStore:
		return m.arrayStore(o)

	case ir.Unary:
		a, err := m.scalar(o.Operand)
		if err != nil {
			return err
		}
		m.memory.Put(o.Result, ir.ScalarValue(evalUnary(o.Op, a)))
		return nil
	case ir.Binary:
		a, err := m.scalar(o.Left)
		if err != nil {
			return err
		}
		b, err := m.scalar(o.Right)
		if err != nil {
			return err
		}
		m.memory.Put(o.Result, ir.ScalarValue(evalBinary(o.Op, a, b)))
		return nil
	case ir.Convert:
		a, err := m.scalar(o.Source)
		if err != nil {
			return err
		}
		m.memory.Put(o.Result, ir.ScalarValue(evalConvert(o.Op, a)))
		return nil

	case ir.If:
		if err := m.exec(o.Cond); err != nil {
			return err
		}
		cond, err := m.boolAt(o.CondToken)
		if err != nil {
			return err
		}
		if cond {
			m.labels.enter(o.LThen)
			if err := m.exec(o.Then); err != nil {
				return err
			}
		}
		m.labels.enter(o.LEnd)
		return nil

	case ir.IfElse:
		if err := m.exec(o.Cond); err != nil {
			return err
		}
		cond, err := m.boolAt(o.CondToken)
		if err != nil {
			return err
		}
		if cond {
			m.labels.enter(o.LThen)
			if err := m.exec(o.Then); err != nil {
				return err
			}
		} else {
			m.labels.enter(o.LElse)
			if err := m.exec(o.Else); err != nil {
				return err
			}
		}
		m.labels.enter(o.LEnd)
		return nil

	case ir.While:
		for {
			m.labels.enter(o.LHeader)
			if err := m.exec(o.Cond); err != nil {
				return err
			}
			cond, err := m.boolAt(o.CondToken)
			if err != nil {
				return err
			}
			if !cond {
				break
			}
			m.labels.enter(o.LBody)
			if err := m.exec(o.Body); err != nil {
				return err
			}
		}
		m.labels.enter(o.LExit)
		return nil

	case ir.Phi:
		var src ir.TokenID
		switch m.labels.previous {
		case o.L0:
			src = o.A0
		case o.L1:
			src = o.A1
		default:
			return fmt.Errorf("phi for token %d: no incoming edge for label %d",
				o.Result, m.labels.previous)
		}
		v, err := m.scalar(src)
		if err != nil {
			return err
		}
		m.memory.Put(o.Result, ir.ScalarValue(v))
		return nil
	}
	return fmt.Errorf("unknown op variant %T", op)
}

// arrayNew allocates a zero-filled vector, unless the token was staged
// from a bound resource, whose contents must survive the declaration.
func (m *machine) arrayNew(o ir.ArrayNew) error {
	if m.memory.Has(o.Result) {
		return nil
	}
	sz, err := m.scalar(o.Size)
	if err != nil {
		return err
	}
	n := sz.U32()
	var vec ir.ConstantVector
	switch o.Elem {
	case ir.Bool:
		vec = ir.VectorBool(make([]bool, n))
	case ir.I32:
		vec = ir.VectorI32(make([]int32, n))
	case ir.U32:
		vec = ir.VectorU32(make([]uint32, n))
	case ir.F32:
		vec = ir.VectorF32(make([]float32, n))
	}
	m.memory.Put(o.Result, ir.VectorValue(vec))
	return nil
}

func (m *machine) arrayLoad(o ir.ArrayLoad) error {
	vec, err := m.vector(o.Array)
	if err != nil {
		return err
	}
	i, err := m.index(o.Index, vec.Len(), o.Array)
	if err != nil {
		return err
	}
	var s ir.ConstantScalar
	switch vec.Type {
	case ir.Bool:
		s = ir.ScalarBool(vec.Bool[i])
	case ir.I32:
		s = ir.ScalarI32(vec.I32[i])
	case ir.U32:
		s = ir.ScalarU32(vec.U32[i])
	case ir.F32:
		s = ir.ScalarF32(vec.F32[i])
	}
	m.memory.Put(o.Result, ir.ScalarValue(s))
	return nil
}

func (m *machine) arrayStore(o ir.ArrayStore) error {
	vec, err := m.vector(o.Array)
	if err != nil {
		return err
	}
	i, err := m.index(o.Index, vec.Len(), o.Array)
	if err != nil {
		return err
	}
	s, err := m.scalar(o.Source)
	if err != nil {
		return err
	}
	switch vec.Type {
	case ir.Bool:
		vec.Bool[i] = s.Bool()
	case ir.I32:
		vec.I32[i] = s.I32()
	case ir.U32:
		vec.U32[i] = s.U32()
	case ir.F32:
		vec.F32[i] = s.F32()
	}
	return nil
}

func (m *machine) scalar(id ir.TokenID) (ir.ConstantScalar, error) {
	v, ok := m.memory.Get(id)
	if !ok {
		return ir.ConstantScalar{}, fmt.Errorf("read of unset token %d", id)
	}
	if v.Kind != ir.ValueScalar {
		return ir.ConstantScalar{}, fmt.Errorf("token %d holds no scalar", id)
	}
	return v.Scalar, nil
}

func (m *machine) vector(id ir.TokenID) (ir.ConstantVector, error) {
	v, ok := m.memory.Get(id)
	if !ok {
		return ir.ConstantVector{}, fmt.Errorf("read of unset array token %d", id)
	}
	if v.Kind != ir.ValueVector {
		return ir.ConstantVector{}, fmt.Errorf("token %d holds no array", id)
	}
	return v.Vector, nil
}

func (m *machine) boolAt(id ir.TokenID) (bool, error) {
	s, err := m.scalar(id)
	if err != nil {
		return false, err
	}
	return s.Bool(), nil
}

func (m *machine) index(id ir.TokenID, length int, array ir.TokenID) (int, error) {
	s, err := m.scalar(id)
	if err != nil {
		return 0, err
	}
	var i int64
	if s.Type == ir.I32 {
		i = int64(s.I32())
	} else {
		i = int64(s.U32())
	}
	if i < 0 || i >= int64(length) {
		return 0, fmt.Errorf("array %d: index %d out of range (length %d)", array, i, length)
	}
	return int(i), nil
}

package spirv

import (
	"fmt"

	"github.com/dolthub/swiss"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/dariost/wyvern/executor"
	"github.com/dariost/wyvern/ir"
)

// localSize is the workgroup size on axis 0. The runtime dispatches one
// workgroup per unit of work, so invocation count = workgroup count.
const localSize = 1

// BindKind discriminates binding-table entries.
type BindKind uint8

const (
	// Public bindings are named program inputs/outputs the host supplies.
	Public BindKind = iota

	// Private bindings are scratch buffers the runtime allocates.
	Private
)

// Binding describes one descriptor of the compiled module. Indices form a
// contiguous range starting at 0; the descriptor set is always 0.
type Binding struct {
	Index uint32
	Kind  BindKind

	// IO and Name identify a Public binding.
	IO   executor.IO
	Name string

	// Elem and MaxSize size a Private allocation.
	Elem    ir.DataType
	MaxSize uint32

	// RuntimeArray is set for array bindings, whose buffers carry a
	// 4-byte length header followed by 4-byte-stride elements.
	RuntimeArray bool
}

// Generate lowers a finalized program to a SPIR-V compute module and its
// binding table. No partial output is returned on error.
func Generate(p *ir.Program, version Version) ([]uint32, []Binding, error) {
	g := &generator{
		program:    p,
		version:    version,
		b:          NewModuleBuilder(version),
		tokenMap:   swiss.NewMap[ir.TokenID, uint32](uint32(len(p.Symbol))),
		labelMap:   swiss.NewMap[ir.LabelID, uint32](uint32(p.NextLabel)),
		ptrTypes:   map[ptrKey]uint32{},
		arrStructs: map[arrKey]uint32{},
		varStructs: map[ir.DataType]uint32{},
	}
	if err := g.run(); err != nil {
		return nil, nil, err
	}
	return g.b.Words(), g.bindings, nil
}

type ptrKey struct {
	class StorageClass
	base  uint32
}

type arrKey struct {
	elem    ir.DataType
	max     uint32
	runtime bool
}

type generator struct {
	program *ir.Program
	version Version
	b       *ModuleBuilder

	// Canonical types and constants.
	typeVoid, typeBool, typeU32, typeI32, typeF32, typeV3U32 uint32
	ptrInputU32, ptrInputV3U32                               uint32
	const0, const1                                           uint32
	scopeDevice, scopeWorkgroup, semAcqRel, localSizeWord    uint32

	bufferClass StorageClass

	// Interned derived types.
	ptrTypes   map[ptrKey]uint32
	arrStructs map[arrKey]uint32     // struct { u32 len; D data[...] }
	varStructs map[ir.DataType]uint32 // struct { D value }

	// Every token and label is pre-assigned a word before lowering, so
	// loop phis can reference values emitted later in the stream.
	tokenMap *swiss.Map[ir.TokenID, uint32]
	labelMap *swiss.Map[ir.LabelID, uint32]

	mainFn, gidVar, numWGVar   uint32
	workerIDWord, numWorkWord uint32

	bindings []Binding
}

func (g *generator) run() error {
	g.preamble()
	g.coreTypes()
	g.assignWords()
	if err := g.storageLayout(); err != nil {
		return err
	}
	g.beginFunction()
	if err := g.locals(); err != nil {
		return err
	}
	g.exposedScalars()
	g.intrinsics()
	if err := g.compile(g.program.Operation); err != nil {
		return err
	}
	g.b.AddReturn()
	g.b.AddFunctionEnd()
	return nil
}

// preamble emits capabilities, extensions, the memory model and the entry
// point declaration.
func (g *generator) preamble() {
	b := g.b
	b.AddCapability(CapabilityShader)
	if g.version == Vulkan11 {
		b.AddExtension(ExtStorageBufferStorageClass)
		b.AddExtension(ExtVariablePointers)
	}
	b.AddExtInstImport("GLSL.std.450")
	b.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)
	g.mainFn = b.AllocID()
	g.gidVar = b.AllocID()
	g.numWGVar = b.AllocID()
	b.AddEntryPoint(ExecutionModelGLCompute, g.mainFn, "main", g.gidVar, g.numWGVar)
	b.AddExecutionMode(g.mainFn, ExecutionModeLocalSize, localSize, 1, 1)
}

func (g *generator) coreTypes() {
	b := g.b
	g.typeVoid = b.AddTypeVoid()
	g.typeBool = b.AddTypeBool()
	g.typeU32 = b.AddTypeInt(32, false)
	g.typeI32 = b.AddTypeInt(32, true)
	g.typeF32 = b.AddTypeFloat(32)
	g.typeV3U32 = b.AddTypeVector(g.typeU32, 3)
	g.ptrInputU32 = b.AddTypePointer(StorageClassInput, g.typeU32)
	g.ptrInputV3U32 = b.AddTypePointer(StorageClassInput, g.typeV3U32)

	g.bufferClass = StorageClassStorageBuffer
	if g.version == Vulkan10 {
		g.bufferClass = StorageClassUniform
	}

	g.const0 = b.AddConstantU32(g.typeU32, 0)
	g.const1 = b.AddConstantU32(g.typeU32, 1)
	g.scopeDevice = b.AddConstantU32(g.typeU32, ScopeDevice)
	g.scopeWorkgroup = b.AddConstantU32(g.typeU32, ScopeWorkgroup)
	g.semAcqRel = b.AddConstantU32(g.typeU32,
		MemorySemanticsAcquireRelease|MemorySemanticsUniformMemory)
	g.localSizeWord = b.AddConstantU32(g.typeU32, localSize)

	b.AddGlobalVariable(g.ptrInputV3U32, g.gidVar, StorageClassInput)
	b.AddGlobalVariable(g.ptrInputV3U32, g.numWGVar, StorageClassInput)
	b.AddDecorate(g.gidVar, DecorationBuiltIn, uint32(BuiltInGlobalInvocationID))
	b.AddDecorate(g.numWGVar, DecorationBuiltIn, uint32(BuiltInNumWorkgroups))
}

// assignWords pre-mints a result word for every token and label.
func (g *generator) assignWords() {
	for _, id := range sortedKeys(g.program.Symbol) {
		g.tokenMap.Put(id, g.b.AllocID())
	}
	for l := ir.LabelID(0); l < g.program.NextLabel; l++ {
		g.labelMap.Put(l, g.b.AllocID())
	}
}

func sortedKeys[K ~uint32, V any](m map[K]V) []K {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}

func (g *generator) scalarType(d ir.DataType) uint32 {
	switch d {
	case ir.Bool:
		return g.typeBool
	case ir.I32:
		return g.typeI32
	case ir.U32:
		return g.typeU32
	default:
		return g.typeF32
	}
}

func (g *generator) ptrType(class StorageClass, base uint32) uint32 {
	key := ptrKey{class, base}
	if id, ok := g.ptrTypes[key]; ok {
		return id
	}
	id := g.b.AddTypePointer(class, base)
	g.ptrTypes[key] = id
	return id
}

// blockDecoration is BufferBlock on the 1.0 uniform path and Block on the
// 1.1 storage-buffer path.
func (g *generator) blockDecoration() Decoration {
	if g.version == Vulkan10 {
		return DecorationBufferBlock
	}
	return DecorationBlock
}

// sharedStruct interns struct { u32 len; runtime_array D } with the layout
// decorations: len at offset 0, elements at offset 4 with stride 4.
func (g *generator) sharedStruct(d ir.DataType) uint32 {
	key := arrKey{elem: d, runtime: true}
	if id, ok := g.arrStructs[key]; ok {
		return id
	}
	b := g.b
	runtimeArr := b.AddTypeRuntimeArray(g.scalarType(d))
	b.AddDecorate(runtimeArr, DecorationArrayStride, 4)
	structID := b.AddTypeStruct(g.typeU32, runtimeArr)
	b.AddMemberDecorate(structID, 0, DecorationOffset, 0)
	b.AddMemberDecorate(structID, 1, DecorationOffset, 4)
	b.AddDecorate(structID, g.blockDecoration())
	g.arrStructs[key] = structID
	return structID
}

// privateStruct interns struct { u32 len; D data[max] } for Function-scope
// arrays.
func (g *generator) privateStruct(d ir.DataType, max uint32) uint32 {
	key := arrKey{elem: d, max: max}
	if id, ok := g.arrStructs[key]; ok {
		return id
	}
	b := g.b
	lenConst := b.AddConstantU32(g.typeU32, max)
	arr := b.AddTypeArray(g.scalarType(d), lenConst)
	structID := b.AddTypeStruct(g.typeU32, arr)
	g.arrStructs[key] = structID
	return structID
}

// scalarStruct interns struct { D value } for exposed scalars.
func (g *generator) scalarStruct(d ir.DataType) uint32 {
	if id, ok := g.varStructs[d]; ok {
		return id
	}
	b := g.b
	structID := b.AddTypeStruct(g.scalarType(d))
	b.AddMemberDecorate(structID, 0, DecorationOffset, 0)
	b.AddDecorate(structID, g.blockDecoration())
	g.varStructs[d] = structID
	return structID
}

// publicName resolves the (direction, name) of a token, inputs first.
func (g *generator) publicName(id ir.TokenID) (executor.IO, string, bool) {
	for _, name := range sortedStrings(g.program.Input) {
		if g.program.Input[name] == id {
			return executor.Input, name, true
		}
	}
	for _, name := range sortedStrings(g.program.Output) {
		if g.program.Output[name] == id {
			return executor.Output, name, true
		}
	}
	return 0, "", false
}

func sortedStrings[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}

// storageLayout instantiates a descriptor for every shared array and every
// exposed scalar, in ascending token order, and records the binding table.
func (g *generator) storageLayout() error {
	for _, id := range sortedKeys(g.program.Storage) {
		st := g.program.Storage[id]
		io, name, named := g.publicName(id)
		switch st.Class {
		case ir.StorageSharedArray:
			if st.Data == ir.Bool {
				return fmt.Errorf("shared array %d: bool elements are not representable in the 4-byte stride layout", id)
			}
			structID := g.sharedStruct(st.Data)
			g.bindBuffer(id, structID, binding(named, io, name, st, true))
		case ir.StorageVariable:
			if !named {
				continue // function-local
			}
			if st.Data == ir.Bool {
				return fmt.Errorf("binding %q: bool scalars are not representable in the block layout", name)
			}
			structID := g.scalarStruct(st.Data)
			g.bindBuffer(id, structID, binding(true, io, name, st, false))
		}
	}
	return nil
}

func binding(named bool, io executor.IO, name string, st ir.StorageType, runtimeArray bool) Binding {
	b := Binding{
		Kind:         Private,
		Elem:         st.Data,
		MaxSize:      st.MaxSize,
		RuntimeArray: runtimeArray,
	}
	if named {
		b.Kind = Public
		b.IO = io
		b.Name = name
	}
	return b
}

// bindBuffer instantiates the struct in the buffer storage class under the
// token's pre-assigned word and appends the binding entry.
func (g *generator) bindBuffer(id ir.TokenID, structID uint32, entry Binding) {
	varID, _ := g.tokenMap.Get(id)
	ptr := g.ptrType(g.bufferClass, structID)
	g.b.AddGlobalVariable(ptr, varID, g.bufferClass)
	entry.Index = uint32(len(g.bindings))
	g.b.AddDecorate(varID, DecorationDescriptorSet, 0)
	g.b.AddDecorate(varID, DecorationBinding, entry.Index)
	g.bindings = append(g.bindings, entry)
}

func (g *generator) beginFunction() {
	b := g.b
	fnType := b.AddTypeFunction(g.typeVoid)
	b.AddFunction(fnType, g.typeVoid, g.mainFn, FunctionControlNone)
	entry, _ := g.labelMap.Get(0)
	b.AddLabel(entry)
}

// locals declares a Function-scope variable for every private array and
// every non-exposed variable. OpVariable must lead the entry block, so
// this runs before any other body instruction.
func (g *generator) locals() error {
	for _, id := range sortedKeys(g.program.Storage) {
		st := g.program.Storage[id]
		varID, _ := g.tokenMap.Get(id)
		switch st.Class {
		case ir.StoragePrivateArray:
			structID := g.privateStruct(st.Data, st.MaxSize)
			g.b.AddFunctionVariable(g.ptrType(StorageClassFunction, structID), varID)
		case ir.StorageVariable:
			if _, _, named := g.publicName(id); named {
				continue
			}
			g.b.AddFunctionVariable(g.ptrType(StorageClassFunction, g.scalarType(st.Data)), varID)
		}
	}
	return nil
}

// exposedScalars rebinds every named variable token to an access chain
// into field 0 of its buffer struct, so plain Load/Store dereference the
// binding from then on.
func (g *generator) exposedScalars() {
	for _, id := range sortedKeys(g.program.Storage) {
		st := g.program.Storage[id]
		if st.Class != ir.StorageVariable {
			continue
		}
		if _, _, named := g.publicName(id); !named {
			continue
		}
		bufVar, _ := g.tokenMap.Get(id)
		ptr := g.ptrType(g.bufferClass, g.scalarType(st.Data))
		chain := g.b.AllocID()
		g.b.AddAccessChain(ptr, chain, bufVar, g.const0)
		g.tokenMap.Put(id, chain)
	}
}

// intrinsics computes worker_id = gl_GlobalInvocationID.x and
// num_workers = gl_NumWorkGroups.x * localSize once, in the prologue.
func (g *generator) intrinsics() {
	b := g.b
	gidPtr := b.AllocID()
	b.AddAccessChain(g.ptrInputU32, gidPtr, g.gidVar, g.const0)
	gid := b.AllocID()
	b.AddLoad(g.typeU32, gid, gidPtr)

	nwgPtr := b.AllocID()
	b.AddAccessChain(g.ptrInputU32, nwgPtr, g.numWGVar, g.const0)
	nwg := b.AllocID()
	b.AddLoad(g.typeU32, nwg, nwgPtr)
	total := b.AllocID()
	b.AddBinaryOp(OpIMul, g.typeU32, total, nwg, g.localSizeWord)

	g.workerIDWord = gid
	g.numWorkWord = total
}

func (g *generator) word(id ir.TokenID) uint32 {
	w, _ := g.tokenMap.Get(id)
	return w
}

func (g *generator) label(l ir.LabelID) uint32 {
	w, _ := g.labelMap.Get(l)
	return w
}

// dataType reads the element type of a constant token from the symbol
// table.
func (g *generator) dataType(id ir.TokenID) ir.DataType {
	return g.program.Symbol[id].Data
}

// arrayClass reports the storage class holding an array token.
func (g *generator) arrayClass(id ir.TokenID) StorageClass {
	if g.program.Storage[id].Class == ir.StoragePrivateArray {
		return StorageClassFunction
	}
	return g.bufferClass
}

func (g *generator) compile(ops []ir.Op) error {
	for _, op := range ops {
		if err := g.compileOp(op); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) compileOp(op ir.Op) error {
	b := g.b
	switch o := op.(type) {
	case ir.MemoryBarrier:
		b.AddMemoryBarrier(g.scopeDevice, g.semAcqRel)
	case ir.ControlBarrier:
		b.AddControlBarrier(g.scopeWorkgroup, g.scopeDevice, g.semAcqRel)

	case ir.WorkerID:
		g.tokenMap.Put(o.Result, g.workerIDWord)
	case ir.NumWorkers:
		g.tokenMap.Put(o.Result, g.numWorkWord)

	case ir.Constant:
		var id uint32
		switch o.Value.Type {
		case ir.Bool:
			id = b.AddConstantBool(g.typeBool, o.Value.Bool())
		default:
			id = b.AddConstantU32(g.scalarType(o.Value.Type), o.Value.Bits)
		}
		g.tokenMap.Put(o.Result, id)

	case ir.Load:
		d := g.dataType(o.Result)
		b.AddLoad(g.scalarType(d), g.word(o.Result), g.word(o.Source))
	case ir.Store:
		b.AddStore(g.word(o.Target), g.word(o.Source))

	case ir.ArrayNew:
		if o.Shared {
			// The host writes the length header.
			return nil
		}
		ptr := b.AllocID()
		b.AddAccessChain(g.ptrType(StorageClassFunction, g.typeU32), ptr, g.word(o.Result), g.const0)
		b.AddStore(ptr, g.word(o.Size))
	case ir.ArrayLen:
		class := g.arrayClass(o.Array)
		ptr := b.AllocID()
		b.AddAccessChain(g.ptrType(class, g.typeU32), ptr, g.word(o.Array), g.const0)
		b.AddLoad(g.typeU32, g.word(o.Result), ptr)
	case ir.ArrayLoad:
		class := g.arrayClass(o.Array)
		d := g.dataType(o.Result)
		ptr := b.AllocID()
		b.AddAccessChain(g.ptrType(class, g.scalarType(d)), ptr, g.word(o.Array), g.const1, g.word(o.Index))
		b.AddLoad(g.scalarType(d), g.word(o.Result), ptr)
	case ir.ArrayStore:
		class := g.arrayClass(o.Array)
		d := g.dataType(o.Source)
		ptr := b.AllocID()
		b.AddAccessChain(g.ptrType(class, g.scalarType(d)), ptr, g.word(o.Array), g.const1, g.word(o.Index))
		b.AddStore(ptr, g.word(o.Source))

	case ir.Unary:
		return g.compileUnary(o)
	case ir.Binary:
		return g.compileBinary(o)
	case ir.Convert:
		return g.compileConvert(o)

	case ir.If:
		if err := g.compile(o.Cond); err != nil {
			return err
		}
		b.AddSelectionMerge(g.label(o.LEnd), SelectionControlNone)
		b.AddBranchConditional(g.word(o.CondToken), g.label(o.LThen), g.label(o.LEnd))
		b.AddLabel(g.label(o.LThen))
		if err := g.compile(o.Then); err != nil {
			return err
		}
		b.AddBranch(g.label(o.LEnd))
		b.AddLabel(g.label(o.LEnd))

	case ir.IfElse:
		if err := g.compile(o.Cond); err != nil {
			return err
		}
		b.AddSelectionMerge(g.label(o.LEnd), SelectionControlNone)
		b.AddBranchConditional(g.word(o.CondToken), g.label(o.LThen), g.label(o.LElse))
		b.AddLabel(g.label(o.LThen))
		if err := g.compile(o.Then); err != nil {
			return err
		}
		b.AddBranch(g.label(o.LEnd))
		b.AddLabel(g.label(o.LElse))
		if err := g.compile(o.Else); err != nil {
			return err
		}
		b.AddBranch(g.label(o.LEnd))
		b.AddLabel(g.label(o.LEnd))

	case ir.While:
		before := b.AllocID()
		cont := b.AllocID()
		b.AddBranch(before)
		b.AddLabel(before)
		b.AddLoopMerge(g.label(o.LExit), cont, LoopControlNone)
		b.AddBranch(g.label(o.LHeader))
		b.AddLabel(g.label(o.LHeader))
		if err := g.compile(o.Cond); err != nil {
			return err
		}
		b.AddBranchConditional(g.word(o.CondToken), g.label(o.LBody), g.label(o.LExit))
		b.AddLabel(g.label(o.LBody))
		if err := g.compile(o.Body); err != nil {
			return err
		}
		b.AddBranch(cont)
		b.AddLabel(cont)
		b.AddBranch(before)
		b.AddLabel(g.label(o.LExit))

	case ir.Phi:
		d := g.dataType(o.Result)
		b.AddPhi(g.scalarType(d), g.word(o.Result),
			g.word(o.A0), g.label(o.L0),
			g.word(o.A1), g.label(o.L1))

	default:
		return fmt.Errorf("unknown op variant %T", op)
	}
	return nil
}

func (g *generator) compileUnary(o ir.Unary) error {
	d := g.dataType(o.Result)
	var opcode OpCode
	switch o.Op {
	case ir.Neg:
		switch d {
		case ir.I32:
			opcode = OpSNegate
		case ir.F32:
			opcode = OpFNegate
		default:
			return fmt.Errorf("Neg is not defined for %s", d)
		}
	case ir.Not:
		switch d {
		case ir.U32, ir.I32:
			opcode = OpNot
		case ir.Bool:
			opcode = OpLogicalNot
		default:
			return fmt.Errorf("Not is not defined for %s", d)
		}
	}
	g.b.AddUnaryOp(opcode, g.scalarType(d), g.word(o.Result), g.word(o.Operand))
	return nil
}

func (g *generator) compileBinary(o ir.Binary) error {
	operand := g.dataType(o.Left)
	result := g.dataType(o.Result)

	// Bool exclusive-or has no SPIR-V instruction and expands to
	// (a ∧ ¬b) ∨ (¬a ∧ b).
	if o.Op == ir.BitXor && operand == ir.Bool {
		b := g.b
		a, d := g.word(o.Left), g.word(o.Right)
		na := b.AllocID()
		b.AddUnaryOp(OpLogicalNot, g.typeBool, na, a)
		nd := b.AllocID()
		b.AddUnaryOp(OpLogicalNot, g.typeBool, nd, d)
		p1 := b.AllocID()
		b.AddBinaryOp(OpLogicalAnd, g.typeBool, p1, a, nd)
		p2 := b.AllocID()
		b.AddBinaryOp(OpLogicalAnd, g.typeBool, p2, na, d)
		b.AddBinaryOp(OpLogicalOr, g.typeBool, g.word(o.Result), p1, p2)
		return nil
	}

	opcode, err := binaryOpcode(o.Op, operand)
	if err != nil {
		return err
	}
	g.b.AddBinaryOp(opcode, g.scalarType(result), g.word(o.Result), g.word(o.Left), g.word(o.Right))
	return nil
}

// binaryOpcode dispatches a binary operator on its operand type.
func binaryOpcode(op ir.BinaryOperator, d ir.DataType) (OpCode, error) {
	type entry struct{ u, i, f, b OpCode }
	const none OpCode = 0
	table := map[ir.BinaryOperator]entry{
		ir.Add: {OpIAdd, OpIAdd, OpFAdd, none},
		ir.Sub: {OpISub, OpISub, OpFSub, none},
		ir.Mul: {OpIMul, OpIMul, OpFMul, none},
		ir.Div: {OpUDiv, OpSDiv, OpFDiv, none},
		// Truncated remainder, matching the interpreter's host semantics.
		ir.Rem: {OpUMod, OpSRem, OpFRem, none},
		ir.Shl: {OpShiftLeftLogical, OpShiftLeftLogical, none, none},
		ir.Shr: {OpShiftRightLogical, OpShiftRightArithmetic, none, none},
		ir.BitAnd: {OpBitwiseAnd, OpBitwiseAnd, none, OpLogicalAnd},
		ir.BitOr:  {OpBitwiseOr, OpBitwiseOr, none, OpLogicalOr},
		ir.BitXor: {OpBitwiseXor, OpBitwiseXor, none, none},
		ir.Eq:     {OpIEqual, OpIEqual, OpFOrdEqual, OpLogicalEqual},
		ir.Ne:     {OpINotEqual, OpINotEqual, OpFOrdNotEqual, OpLogicalNotEqual},
		ir.Lt:     {OpULessThan, OpSLessThan, OpFOrdLessThan, none},
		ir.Le:     {OpULessThanEqual, OpSLessThanEqual, OpFOrdLessThanEqual, none},
		ir.Gt:     {OpUGreaterThan, OpSGreaterThan, OpFOrdGreaterThan, none},
		ir.Ge:     {OpUGreaterThanEqual, OpSGreaterThanEqual, OpFOrdGreaterThanEqual, none},
	}
	e, ok := table[op]
	if !ok {
		return 0, fmt.Errorf("unknown binary operator %s", op)
	}
	var opcode OpCode
	switch d {
	case ir.U32:
		opcode = e.u
	case ir.I32:
		opcode = e.i
	case ir.F32:
		opcode = e.f
	case ir.Bool:
		opcode = e.b
	}
	if opcode == none {
		return 0, fmt.Errorf("%s is not defined for %s", op, d)
	}
	return opcode, nil
}

func (g *generator) compileConvert(o ir.Convert) error {
	var opcode OpCode
	switch o.Op {
	case ir.U32fromF32:
		opcode = OpConvertFToU
	case ir.I32fromF32:
		opcode = OpConvertFToS
	case ir.F32fromU32:
		opcode = OpConvertUToF
	case ir.F32fromI32:
		opcode = OpConvertSToF
	case ir.I32fromU32, ir.U32fromI32:
		// Same width, reinterpret only.
		opcode = OpBitcast
	default:
		return fmt.Errorf("unknown conversion %s", o.Op)
	}
	g.b.AddUnaryOp(opcode, g.scalarType(o.Op.To()), g.word(o.Result), g.word(o.Source))
	return nil
}

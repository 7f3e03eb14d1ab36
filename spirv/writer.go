package spirv

import (
	"encoding/binary"
	"math"
)

// Instruction represents one SPIR-V instruction: its opcode and operand
// words (result type and result id included, in instruction order).
type Instruction struct {
	Opcode OpCode
	Words  []uint32
}

// Encode prepends the wordcount/opcode word.
func (i Instruction) Encode() []uint32 {
	result := make([]uint32, 0, len(i.Words)+1)
	result = append(result, (uint32(len(i.Words)+1)<<16)|uint32(i.Opcode))
	return append(result, i.Words...)
}

// encodeString packs a null-terminated UTF-8 string into words.
func encodeString(s string) []uint32 {
	bytes := append([]byte(s), 0)
	for len(bytes)%4 != 0 {
		bytes = append(bytes, 0)
	}
	words := make([]uint32, 0, len(bytes)/4)
	for i := 0; i < len(bytes); i += 4 {
		words = append(words, uint32(bytes[i])|
			uint32(bytes[i+1])<<8|
			uint32(bytes[i+2])<<16|
			uint32(bytes[i+3])<<24)
	}
	return words
}

// ModuleBuilder assembles a SPIR-V module. Instructions are collected into
// the logical sections the SPIR-V spec mandates and concatenated in order
// by Words.
//
// Unlike a freestanding assembler, result ids come in two flavours: the
// type/constant helpers allocate their own, while the global-variable and
// function-body helpers accept pre-allocated ids. The generator pre-mints
// a word for every program token, because loop phis reference body values
// that are only emitted later in the stream.
type ModuleBuilder struct {
	version Version

	capabilities   []Instruction
	extensions     []Instruction
	extInstImports []Instruction
	memoryModel    *Instruction
	entryPoints    []Instruction
	executionModes []Instruction
	annotations    []Instruction
	types          []Instruction // OpType*, OpConstant*
	globalVars     []Instruction
	functions      []Instruction

	nextID uint32
}

// NewModuleBuilder creates an empty module targeting the given version.
func NewModuleBuilder(version Version) *ModuleBuilder {
	return &ModuleBuilder{version: version, nextID: 1}
}

// AllocID allocates a fresh result id. Ids are minted in call order, which
// keeps the output deterministic for a fixed input.
func (b *ModuleBuilder) AllocID() uint32 {
	id := b.nextID
	b.nextID++
	return id
}

func (b *ModuleBuilder) push(section *[]Instruction, opcode OpCode, words ...uint32) {
	*section = append(*section, Instruction{Opcode: opcode, Words: words})
}

// AddCapability declares a capability.
func (b *ModuleBuilder) AddCapability(c Capability) {
	b.push(&b.capabilities, OpCapability, uint32(c))
}

// AddExtension declares an extension by name.
func (b *ModuleBuilder) AddExtension(name string) {
	b.push(&b.extensions, OpExtension, encodeString(name)...)
}

// AddExtInstImport imports an extended instruction set and returns its id.
func (b *ModuleBuilder) AddExtInstImport(name string) uint32 {
	id := b.AllocID()
	words := append([]uint32{id}, encodeString(name)...)
	b.push(&b.extInstImports, OpExtInstImport, words...)
	return id
}

// SetMemoryModel sets the module memory model.
func (b *ModuleBuilder) SetMemoryModel(a AddressingModel, m MemoryModel) {
	inst := Instruction{Opcode: OpMemoryModel, Words: []uint32{uint32(a), uint32(m)}}
	b.memoryModel = &inst
}

// AddEntryPoint declares an entry point and its interface variables.
func (b *ModuleBuilder) AddEntryPoint(model ExecutionModel, fn uint32, name string, ifaces ...uint32) {
	words := []uint32{uint32(model), fn}
	words = append(words, encodeString(name)...)
	words = append(words, ifaces...)
	b.push(&b.entryPoints, OpEntryPoint, words...)
}

// AddExecutionMode attaches an execution mode to an entry point.
func (b *ModuleBuilder) AddExecutionMode(fn uint32, mode ExecutionMode, params ...uint32) {
	words := append([]uint32{fn, uint32(mode)}, params...)
	b.push(&b.executionModes, OpExecutionMode, words...)
}

// AddDecorate decorates an id.
func (b *ModuleBuilder) AddDecorate(id uint32, d Decoration, params ...uint32) {
	words := append([]uint32{id, uint32(d)}, params...)
	b.push(&b.annotations, OpDecorate, words...)
}

// AddMemberDecorate decorates a struct member.
func (b *ModuleBuilder) AddMemberDecorate(structID, member uint32, d Decoration, params ...uint32) {
	words := append([]uint32{structID, member, uint32(d)}, params...)
	b.push(&b.annotations, OpMemberDecorate, words...)
}

// Type constructors; each allocates and returns the type id.

func (b *ModuleBuilder) AddTypeVoid() uint32 {
	id := b.AllocID()
	b.push(&b.types, OpTypeVoid, id)
	return id
}

func (b *ModuleBuilder) AddTypeBool() uint32 {
	id := b.AllocID()
	b.push(&b.types, OpTypeBool, id)
	return id
}

func (b *ModuleBuilder) AddTypeInt(width uint32, signed bool) uint32 {
	id := b.AllocID()
	sign := uint32(0)
	if signed {
		sign = 1
	}
	b.push(&b.types, OpTypeInt, id, width, sign)
	return id
}

func (b *ModuleBuilder) AddTypeFloat(width uint32) uint32 {
	id := b.AllocID()
	b.push(&b.types, OpTypeFloat, id, width)
	return id
}

func (b *ModuleBuilder) AddTypeVector(component uint32, count uint32) uint32 {
	id := b.AllocID()
	b.push(&b.types, OpTypeVector, id, component, count)
	return id
}

// AddTypeArray declares a sized array; length is a constant id.
func (b *ModuleBuilder) AddTypeArray(element, length uint32) uint32 {
	id := b.AllocID()
	b.push(&b.types, OpTypeArray, id, element, length)
	return id
}

// AddTypeRuntimeArray declares an unsized array.
func (b *ModuleBuilder) AddTypeRuntimeArray(element uint32) uint32 {
	id := b.AllocID()
	b.push(&b.types, OpTypeRuntimeArray, id, element)
	return id
}

func (b *ModuleBuilder) AddTypeStruct(members ...uint32) uint32 {
	id := b.AllocID()
	b.push(&b.types, OpTypeStruct, append([]uint32{id}, members...)...)
	return id
}

func (b *ModuleBuilder) AddTypePointer(class StorageClass, base uint32) uint32 {
	id := b.AllocID()
	b.push(&b.types, OpTypePointer, id, uint32(class), base)
	return id
}

func (b *ModuleBuilder) AddTypeFunction(ret uint32, params ...uint32) uint32 {
	id := b.AllocID()
	b.push(&b.types, OpTypeFunction, append([]uint32{id, ret}, params...)...)
	return id
}

// Constant constructors.

func (b *ModuleBuilder) AddConstantU32(typeID uint32, value uint32) uint32 {
	id := b.AllocID()
	b.push(&b.types, OpConstant, typeID, id, value)
	return id
}

func (b *ModuleBuilder) AddConstantF32(typeID uint32, value float32) uint32 {
	return b.AddConstantU32(typeID, math.Float32bits(value))
}

func (b *ModuleBuilder) AddConstantBool(typeID uint32, value bool) uint32 {
	id := b.AllocID()
	opcode := OpConstantFalse
	if value {
		opcode = OpConstantTrue
	}
	b.push(&b.types, opcode, typeID, id)
	return id
}

// AddGlobalVariable declares a module-scope variable with an explicit
// result id (entry points and token maps reference globals by id).
func (b *ModuleBuilder) AddGlobalVariable(ptrType, id uint32, class StorageClass) {
	b.push(&b.globalVars, OpVariable, ptrType, id, uint32(class))
}

// Function-body emission. Result-producing helpers take the result id.

func (b *ModuleBuilder) AddFunction(funcType, ret, id uint32, control FunctionControl) {
	b.push(&b.functions, OpFunction, ret, id, uint32(control), funcType)
}

func (b *ModuleBuilder) AddFunctionEnd() {
	b.push(&b.functions, OpFunctionEnd)
}

// AddFunctionVariable declares a Function-scope variable. It must be
// emitted directly after the entry label, before any other instruction.
func (b *ModuleBuilder) AddFunctionVariable(ptrType, id uint32) {
	b.push(&b.functions, OpVariable, ptrType, id, uint32(StorageClassFunction))
}

func (b *ModuleBuilder) AddLabel(id uint32) {
	b.push(&b.functions, OpLabel, id)
}

func (b *ModuleBuilder) AddBinaryOp(opcode OpCode, resultType, result, left, right uint32) {
	b.push(&b.functions, opcode, resultType, result, left, right)
}

func (b *ModuleBuilder) AddUnaryOp(opcode OpCode, resultType, result, operand uint32) {
	b.push(&b.functions, opcode, resultType, result, operand)
}

func (b *ModuleBuilder) AddLoad(resultType, result, pointer uint32) {
	b.push(&b.functions, OpLoad, resultType, result, pointer)
}

func (b *ModuleBuilder) AddStore(pointer, value uint32) {
	b.push(&b.functions, OpStore, pointer, value)
}

func (b *ModuleBuilder) AddAccessChain(resultType, result, base uint32, indices ...uint32) {
	words := append([]uint32{resultType, result, base}, indices...)
	b.push(&b.functions, OpAccessChain, words...)
}

// AddPhi emits OpPhi over (value, parent-label) pairs.
func (b *ModuleBuilder) AddPhi(resultType, result uint32, pairs ...uint32) {
	words := append([]uint32{resultType, result}, pairs...)
	b.push(&b.functions, OpPhi, words...)
}

func (b *ModuleBuilder) AddSelectionMerge(merge uint32, control SelectionControl) {
	b.push(&b.functions, OpSelectionMerge, merge, uint32(control))
}

func (b *ModuleBuilder) AddLoopMerge(merge, cont uint32, control LoopControl) {
	b.push(&b.functions, OpLoopMerge, merge, cont, uint32(control))
}

func (b *ModuleBuilder) AddBranch(target uint32) {
	b.push(&b.functions, OpBranch, target)
}

func (b *ModuleBuilder) AddBranchConditional(cond, trueLabel, falseLabel uint32) {
	b.push(&b.functions, OpBranchConditional, cond, trueLabel, falseLabel)
}

func (b *ModuleBuilder) AddReturn() {
	b.push(&b.functions, OpReturn)
}

func (b *ModuleBuilder) AddMemoryBarrier(memScope, semantics uint32) {
	b.push(&b.functions, OpMemoryBarrier, memScope, semantics)
}

func (b *ModuleBuilder) AddControlBarrier(execScope, memScope, semantics uint32) {
	b.push(&b.functions, OpControlBarrier, execScope, memScope, semantics)
}

// Words assembles the module as a 32-bit little-endian word stream.
func (b *ModuleBuilder) Words() []uint32 {
	sections := [][]Instruction{
		b.capabilities,
		b.extensions,
		b.extInstImports,
	}
	out := []uint32{
		MagicNumber,
		b.version.word(),
		GeneratorID,
		b.nextID, // bound
		0,        // schema, reserved
	}
	appendSection := func(instructions []Instruction) {
		for _, inst := range instructions {
			out = append(out, inst.Encode()...)
		}
	}
	for _, s := range sections {
		appendSection(s)
	}
	if b.memoryModel != nil {
		out = append(out, b.memoryModel.Encode()...)
	}
	appendSection(b.entryPoints)
	appendSection(b.executionModes)
	appendSection(b.annotations)
	appendSection(b.types)
	appendSection(b.globalVars)
	appendSection(b.functions)
	return out
}

// Bytes assembles the module as bytes, the form shader-module APIs and
// .spv files consume.
func (b *ModuleBuilder) Bytes() []byte {
	words := b.Words()
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

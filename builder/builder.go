// Package builder provides the fluent, thread-safe authoring surface that
// assembles a wyvern Program.
//
// A ProgramBuilder owns the growing IR state: the symbol and storage
// tables, a stack of open blocks, and the token/label counters. The typed
// wrappers Constant, Variable and Array emit ops through their builder and
// never touch shared state directly. Every token carries the identity of
// the builder that minted it; mixing tokens across builders is a
// programmer error and panics at the offending call.
package builder

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/dariost/wyvern/ir"
)

var (
	// ErrFinalized is returned when Finalize is called twice.
	ErrFinalized = errors.New("builder already finalized")

	// ErrOpenBlocks is returned when Finalize is called while a
	// control-flow block is still open.
	ErrOpenBlocks = errors.New("finalize with open blocks")
)

// ProgramBuilder assembles a Program. The zero value is not usable; create
// builders with New. All public calls serialize on an internal mutex, so a
// builder may be shared by reference across goroutines, though authoring
// remains sequential.
type ProgramBuilder struct {
	mu sync.Mutex

	// id is the random 64-bit builder identity used to reject tokens
	// minted by another builder.
	id uint64

	symbol    map[ir.TokenID]ir.TokenType
	storage   map[ir.TokenID]ir.StorageType
	blocks    [][]ir.Op
	input     map[string]ir.TokenID
	output    map[string]ir.TokenID
	nextToken ir.TokenID
	nextLabel ir.LabelID
	finalized bool
}

// New creates an empty builder with a fresh identity.
func New() *ProgramBuilder {
	return &ProgramBuilder{
		id:      rand.Uint64(),
		symbol:  map[ir.TokenID]ir.TokenType{},
		storage: map[ir.TokenID]ir.StorageType{},
		blocks:  make([][]ir.Op, 1),
		input:   map[string]ir.TokenID{},
		output:  map[string]ir.TokenID{},
		// label 0 is the entry block
		nextLabel: 1,
	}
}

// token is the untyped core of every typed wrapper: a token id, its
// compile-time type, and the minting builder.
type token struct {
	id ir.TokenID
	ty ir.TokenType
	b  *ProgramBuilder
}

func (b *ProgramBuilder) panicf(format string, args ...any) {
	panic(fmt.Sprintf("wyvern/builder: "+format, args...))
}

// check enforces the cross-builder and liveness rules for an operand.
func (b *ProgramBuilder) check(t token) {
	if t.b == nil {
		b.panicf("use of zero-value token")
	}
	if t.b != b {
		b.panicf("token %d was minted by builder %016x, not %016x",
			t.id, t.b.id, b.id)
	}
}

func (b *ProgramBuilder) mintToken(ty ir.TokenType) token {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		b.panicf("use of finalized builder")
	}
	id := b.nextToken
	b.nextToken++
	b.symbol[id] = ty
	return token{id: id, ty: ty, b: b}
}

func (b *ProgramBuilder) addOp(op ir.Op) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		b.panicf("use of finalized builder")
	}
	top := len(b.blocks) - 1
	b.blocks[top] = append(b.blocks[top], op)
}

func (b *ProgramBuilder) pushBlock() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocks = append(b.blocks, nil)
}

func (b *ProgramBuilder) popBlock() []ir.Op {
	b.mu.Lock()
	defer b.mu.Unlock()
	top := len(b.blocks) - 1
	if top == 0 {
		b.panicf("block stack underflow")
	}
	ops := b.blocks[top]
	b.blocks = b.blocks[:top]
	return ops
}

func (b *ProgramBuilder) newLabel() ir.LabelID {
	b.mu.Lock()
	defer b.mu.Unlock()
	l := b.nextLabel
	b.nextLabel++
	return l
}

// WorkerID returns a fresh u32 constant bound to the invocation index.
func (b *ProgramBuilder) WorkerID() Constant[uint32] {
	t := b.mintToken(ir.ConstantType(ir.U32))
	b.addOp(ir.WorkerID{Result: t.id})
	return Constant[uint32]{tok: t}
}

// NumWorkers returns a fresh u32 constant bound to the dispatch width.
func (b *ProgramBuilder) NumWorkers() Constant[uint32] {
	t := b.mintToken(ir.ConstantType(ir.U32))
	b.addOp(ir.NumWorkers{Result: t.id})
	return Constant[uint32]{tok: t}
}

// MemoryBarrier emits a device-scope memory barrier.
func (b *ProgramBuilder) MemoryBarrier() {
	b.addOp(ir.MemoryBarrier{})
}

// Barrier emits a workgroup control barrier with device-scope memory
// semantics.
func (b *ProgramBuilder) Barrier() {
	b.addOp(ir.ControlBarrier{})
}

// IfThen captures the ops emitted by cond and body into a structured If.
// The closures must emit through this builder only.
func (b *ProgramBuilder) IfThen(cond func() Constant[bool], body func()) {
	b.pushBlock()
	condTok := cond()
	b.check(condTok.tok)
	condOps := b.popBlock()
	b.pushBlock()
	body()
	thenOps := b.popBlock()
	lthen := b.newLabel()
	lend := b.newLabel()
	b.addOp(ir.If{
		Cond:      condOps,
		CondToken: condTok.tok.id,
		LThen:     lthen,
		Then:      thenOps,
		LEnd:      lend,
	})
}

// IfThenElse captures cond, then and else blocks into a structured IfElse.
func (b *ProgramBuilder) IfThenElse(cond func() Constant[bool], then, els func()) {
	b.pushBlock()
	condTok := cond()
	b.check(condTok.tok)
	condOps := b.popBlock()
	b.pushBlock()
	then()
	thenOps := b.popBlock()
	b.pushBlock()
	els()
	elseOps := b.popBlock()
	lthen := b.newLabel()
	lelse := b.newLabel()
	lend := b.newLabel()
	b.addOp(ir.IfElse{
		Cond:      condOps,
		CondToken: condTok.tok.id,
		LThen:     lthen,
		Then:      thenOps,
		LElse:     lelse,
		Else:      elseOps,
		LEnd:      lend,
	})
}

// WhileLoop captures cond and body into a structured While. The cond block
// is re-evaluated before every iteration.
func (b *ProgramBuilder) WhileLoop(cond func() Constant[bool], body func()) {
	b.pushBlock()
	condTok := cond()
	b.check(condTok.tok)
	condOps := b.popBlock()
	b.pushBlock()
	body()
	bodyOps := b.popBlock()
	lheader := b.newLabel()
	lbody := b.newLabel()
	lexit := b.newLabel()
	b.addOp(ir.While{
		LHeader:   lheader,
		Cond:      condOps,
		CondToken: condTok.tok.id,
		LBody:     lbody,
		Body:      bodyOps,
		LExit:     lexit,
	})
}

// Finalize consumes the builder and returns the immutable Program. It
// fails if a control-flow block is still open or if the builder was
// already finalized.
func (b *ProgramBuilder) Finalize() (*ir.Program, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return nil, ErrFinalized
	}
	if len(b.blocks) != 1 {
		return nil, fmt.Errorf("%w: %d block(s) still open", ErrOpenBlocks, len(b.blocks)-1)
	}
	b.finalized = true
	return &ir.Program{
		Symbol:    b.symbol,
		Storage:   b.storage,
		Operation: b.blocks[0],
		Input:     b.input,
		Output:    b.output,
		NextLabel: b.nextLabel,
	}, nil
}

// markBinding registers a named external binding for a storage token.
func (b *ProgramBuilder) markBinding(t token, name string, kind bindingKind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		b.panicf("use of finalized builder")
	}
	if _, ok := b.input[name]; ok {
		b.panicf("binding name %q already used as an input", name)
	}
	if _, ok := b.output[name]; ok {
		b.panicf("binding name %q already used as an output", name)
	}
	if _, ok := b.storage[t.id]; !ok {
		b.panicf("token %d does not denote storage and cannot be bound", t.id)
	}
	if kind == bindInput {
		b.input[name] = t.id
	} else {
		b.output[name] = t.id
	}
}

type bindingKind uint8

const (
	bindInput bindingKind = iota
	bindOutput
)

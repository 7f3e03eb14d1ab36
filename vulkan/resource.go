package vulkan

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dariost/wyvern/executor"
	"github.com/dariost/wyvern/ir"
)

var _ executor.Resource = (*Resource)(nil)

// Resource is a host-side staging buffer for the GPU backend. Data lives
// in host memory between runs; Run copies it into transient device-visible
// buffers and back.
type Resource struct {
	id uuid.UUID

	mu   sync.Mutex
	data ir.TokenValue
}

// NewResource allocates an empty resource. Most callers go through
// Executor.NewResource instead.
func NewResource() *Resource {
	return &Resource{id: uuid.New(), data: ir.NullValue()}
}

// ID returns the process-unique identity of the resource.
func (r *Resource) ID() uuid.UUID { return r.id }

// Clear resets the resource to the null value.
func (r *Resource) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = ir.NullValue()
}

// TokenType reports the token type of the current data.
func (r *Resource) TokenType() ir.TokenType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ir.TokenTypeOf(r.data)
}

// SetData replaces the resource contents.
func (r *Resource) SetData(v ir.TokenValue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = v
}

// GetData returns a copy of the resource contents.
func (r *Resource) GetData() ir.TokenValue {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.data
	if v.Kind == ir.ValueVector {
		vec := v.Vector
		vec.Bool = append([]bool(nil), vec.Bool...)
		vec.I32 = append([]int32(nil), vec.I32...)
		vec.U32 = append([]uint32(nil), vec.U32...)
		vec.F32 = append([]float32(nil), vec.F32...)
		v.Vector = vec
	}
	return v
}

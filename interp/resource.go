package interp

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dariost/wyvern/ir"
)

// Resource is a host-owned buffer for the CPU backend. Identity is a
// process-unique uuid; data accesses are serialized on an internal mutex,
// but a bound resource must still not be touched while Run is in flight.
type Resource struct {
	id uuid.UUID

	mu   sync.Mutex
	data ir.TokenValue
}

func newResource() *Resource {
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
	r.data = cloneValue(v)
}

// GetData returns a copy of the resource contents.
func (r *Resource) GetData() ir.TokenValue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneValue(r.data)
}

// cloneValue deep-copies vector payloads so host and engine never alias
// the same backing slice.
func cloneValue(v ir.TokenValue) ir.TokenValue {
	if v.Kind != ir.ValueVector {
		return v
	}
	vec := v.Vector
	switch vec.Type {
	case ir.Bool:
		vec.Bool = append([]bool(nil), vec.Bool...)
	case ir.I32:
		vec.I32 = append([]int32(nil), vec.I32...)
	case ir.U32:
		vec.U32 = append([]uint32(nil), vec.U32...)
	case ir.F32:
		vec.F32 = append([]float32(nil), vec.F32...)
	}
	return ir.VectorValue(vec)
}

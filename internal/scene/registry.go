package scene

import (
	"sync"

	"github.com/gekko3d/scenecore/internal/id"
)

// slotAllocator hands out dense slot indices, reusing freed ones before
// growing the tail — a direct port of the teacher's gpu.SlotAllocator
// (voxelrt/rt/gpu/manager.go), generalized from GPU-pool slots to registry
// dense indices.
type slotAllocator struct {
	tail uint32
	free []uint32
}

func (a *slotAllocator) alloc() uint32 {
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		return idx
	}
	idx := a.tail
	a.tail++
	return idx
}

func (a *slotAllocator) release(idx uint32) {
	a.free = append(a.free, idx)
}

// Dense is a reader-writer-locked, id-keyed dense table: entries keep a
// stable slot index for their whole lifetime (so other records can
// reference them by dense index, e.g. a mesh's material_index), and a freed
// slot's array position is zeroed rather than removed, matching spec §3's
// "insert returns dense index" / "look up by id -> dense index" contract.
// Generalized from the original source's generic `HashBuffer<Id, T, N>`
// container (see original_source/crates/render/.../global_buffers.rs type
// aliases) into an idiomatic Go generic type.
type Dense[T any] struct {
	mu      sync.RWMutex
	items   []T
	present []bool
	index   map[id.ID]uint32
	alloc   slotAllocator
	dirty   bool
}

func NewDense[T any]() *Dense[T] {
	return &Dense[T]{index: make(map[id.ID]uint32)}
}

// Insert adds a new record for entity, or overwrites the existing one if
// entity is already present (every registry's Add routes through here;
// their Update methods go through Update and never insert). Returns the
// dense slot index.
func (d *Dense[T]) Insert(entity id.ID, v T) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if idx, ok := d.index[entity]; ok {
		d.items[idx] = v
		d.dirty = true
		return idx
	}

	idx := d.alloc.alloc()
	if int(idx) >= len(d.items) {
		grown := make([]T, idx+1)
		copy(grown, d.items)
		d.items = grown
		growPresent := make([]bool, idx+1)
		copy(growPresent, d.present)
		d.present = growPresent
	}
	d.items[idx] = v
	d.present[idx] = true
	d.index[entity] = idx
	d.dirty = true
	return idx
}

// Update mutates the record for entity in place via fn, reporting whether
// entity was present. A no-op (false) on an unknown id is the "Consistency"
// error kind of spec §7: the caller is expected to log a diagnostic.
func (d *Dense[T]) Update(entity id.ID, fn func(v *T)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx, ok := d.index[entity]
	if !ok {
		return false
	}
	fn(&d.items[idx])
	d.dirty = true
	return true
}

// Remove frees entity's slot; removing an unknown id is silent (spec §7).
func (d *Dense[T]) Remove(entity id.ID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx, ok := d.index[entity]
	if !ok {
		return false
	}
	delete(d.index, entity)
	var zero T
	d.items[idx] = zero
	d.present[idx] = false
	d.alloc.release(idx)
	d.dirty = true
	return true
}

// Get returns the record and dense index for entity.
func (d *Dense[T]) Get(entity id.ID) (T, uint32, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	idx, ok := d.index[entity]
	if !ok {
		var zero T
		return zero, 0, false
	}
	return d.items[idx], idx, ok
}

// IndexOf returns entity's dense slot without copying its record.
func (d *Dense[T]) IndexOf(entity id.ID) (uint32, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	idx, ok := d.index[entity]
	return idx, ok
}

// Len returns the current dense-array length (including freed holes), the
// count the Scene Assembly Pass needs to size its upload.
func (d *Dense[T]) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.items)
}

// Count returns the number of live (non-freed) entries.
func (d *Dense[T]) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, p := range d.present {
		if p {
			n++
		}
	}
	return n
}

// Dirty reports whether the table changed since the last ClearDirty.
func (d *Dense[T]) Dirty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dirty
}

func (d *Dense[T]) ClearDirty() {
	d.mu.Lock()
	d.dirty = false
	d.mu.Unlock()
}

// Snapshot returns a copy of the full dense array (including zeroed holes),
// in slot order, ready for byte-packing by the caller.
func (d *Dense[T]) Snapshot() []T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]T, len(d.items))
	copy(out, d.items)
	return out
}

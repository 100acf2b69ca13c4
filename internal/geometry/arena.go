// Package geometry implements the Geometry Store: three append-only,
// freelist-backed GPU-visible buffers (indices, vertex positions, vertex
// attributes) that the Mesh Registry allocates contiguous mesh ranges from.
//
// Grounded on the growth/recopy discipline of the teacher's
// GpuBufferManager.ensureBuffer (voxelrt/rt/gpu/manager.go) and its
// SlotAllocator freelist, generalized here to variable-length ranges (a
// mesh's vertex/index count, not a fixed slot size) and to spec's required
// >=2x growth factor rather than the teacher's 1.5x.
package geometry

import (
	"sort"
	"sync"

	"github.com/gekko3d/scenecore/internal/gpudevice"
	"github.com/gekko3d/scenecore/internal/id"
)

// Range is a contiguous span of 32-bit words, in element units (not bytes).
type Range struct {
	Start uint32
	Count uint32
}

// End returns the exclusive end of the range.
func (r Range) End() uint32 { return r.Start + r.Count }

type freeBlock struct {
	start uint32
	count uint32
}

// Arena is one append-only word buffer with per-id range tracking.
type Arena struct {
	mu sync.RWMutex

	name string
	data []uint32 // CPU shadow; len(data) is current capacity in words.
	tail uint32   // first never-yet-used word index.

	free   []freeBlock
	ranges map[id.ID]Range

	dirty     bool // at least one word changed since last Upload.
	fullgrown bool // capacity changed since last Upload; requires a full re-upload.
}

// NewArena creates an empty arena identified by name (used only for
// diagnostics/uploads).
func NewArena(name string) *Arena {
	return &Arena{
		name:   name,
		ranges: make(map[id.ID]Range),
	}
}

// Allocate reserves len(words) elements for id, copies words into the CPU
// shadow, and returns the assigned range. Re-allocating for an id that
// already has a range first frees the old one.
func (a *Arena) Allocate(entity id.ID, words []uint32) Range {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.ranges[entity]; exists {
		a.freeLocked(entity)
	}

	count := uint32(len(words))
	start, ok := a.findFreeLocked(count)
	if !ok {
		start = a.growLocked(count)
	}

	copy(a.data[start:start+count], words)
	r := Range{Start: start, Count: count}
	a.ranges[entity] = r
	a.dirty = true
	return r
}

// WriteRange overwrites entity's existing range in place, without touching
// the freelist, provided the new words are exactly the same length as the
// range currently assigned to entity. Reports false (and does nothing) if
// entity has no range or the length differs — callers that don't know the
// length will match should go through Allocate instead. This lets a caller
// that needs to know a range's final position before it can compute its
// contents (e.g. relocating BVH miss-links against the range's own start)
// reserve with a zeroed Allocate call and then fill it in without risking a
// second, possibly different, freelist placement.
func (a *Arena) WriteRange(entity id.ID, words []uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.ranges[entity]
	if !ok || r.Count != uint32(len(words)) {
		return false
	}
	copy(a.data[r.Start:r.Start+r.Count], words)
	a.dirty = true
	return true
}

// findFreeLocked performs a first-fit search of the freelist, splitting the
// matched block if it's larger than required.
func (a *Arena) findFreeLocked(count uint32) (uint32, bool) {
	for i, b := range a.free {
		if b.count >= count {
			start := b.start
			if b.count == count {
				a.free = append(a.free[:i], a.free[i+1:]...)
			} else {
				a.free[i] = freeBlock{start: b.start + count, count: b.count - count}
			}
			return start, true
		}
	}
	return 0, false
}

// growLocked appends count words at the current tail, growing the backing
// store by at least 2x the required new size if capacity is insufficient.
// Growing marks the arena for a full re-upload, since the backing GPU
// buffer itself must be recreated.
func (a *Arena) growLocked(count uint32) uint32 {
	start := a.tail
	needed := start + count
	if needed > uint32(len(a.data)) {
		newCap := needed * 2
		if newCap < 64 {
			newCap = 64
		}
		grown := make([]uint32, newCap)
		copy(grown, a.data)
		a.data = grown
		a.fullgrown = true
	}
	a.tail = needed
	return start
}

// Free releases entity's range back to the freelist, coalescing with
// adjacent free blocks. Freeing an id with no range is a silent no-op
// (spec §7, Consistency: remove for unknown id is silent).
func (a *Arena) Free(entity id.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.freeLocked(entity)
}

func (a *Arena) freeLocked(entity id.ID) {
	r, ok := a.ranges[entity]
	if !ok {
		return
	}
	delete(a.ranges, entity)
	a.free = append(a.free, freeBlock{start: r.Start, count: r.Count})
	a.coalesceLocked()
}

func (a *Arena) coalesceLocked() {
	if len(a.free) < 2 {
		return
	}
	sort.Slice(a.free, func(i, j int) bool { return a.free[i].start < a.free[j].start })
	merged := a.free[:1]
	for _, b := range a.free[1:] {
		last := &merged[len(merged)-1]
		if last.start+last.count == b.start {
			last.count += b.count
		} else {
			merged = append(merged, b)
		}
	}
	a.free = merged
}

// RangeOf returns the range currently assigned to entity.
func (a *Arena) RangeOf(entity id.ID) (Range, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.ranges[entity]
	return r, ok
}

// Dirty reports whether Upload needs to run before the next frame.
func (a *Arena) Dirty() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dirty
}

// ClearDirty marks the arena clean without touching any device buffer, for
// callers (Store) that upload several arenas' shadows combined into one
// buffer instead of calling Upload per arena.
func (a *Arena) ClearDirty() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dirty = false
	a.fullgrown = false
}

// Len returns the number of words currently in use (the append head), which
// is the size the Scene Assembly Pass should read for offset computation.
func (a *Arena) Len() uint32 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tail
}

// Bytes returns the CPU shadow truncated to the in-use range, as raw bytes
// (little-endian words), for callers that need to inspect or copy it
// directly instead of going through Upload.
func (a *Arena) Bytes() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return wordsToBytes(a.data[:a.tail])
}

// Upload writes the CPU shadow to the GPU buffer identified by buf,
// (re)allocating buf on the device if the arena grew since the last call.
func (a *Arena) Upload(device gpudevice.Device, buf *gpudevice.Buffer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.dirty && !a.fullgrown {
		return
	}
	data := wordsToBytes(a.data[:a.tail])
	if a.fullgrown || buf.Handle == nil || buf.Size() < uint64(len(data)) {
		device.CreateOrResizeBuffer(buf, uint64(len(data)), gpudevice.UsageStorage)
	}
	device.WriteBuffer(buf, 0, data)
	a.dirty = false
	a.fullgrown = false
}

func wordsToBytes(words []uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		out[i*4+0] = byte(w)
		out[i*4+1] = byte(w >> 8)
		out[i*4+2] = byte(w >> 16)
		out[i*4+3] = byte(w >> 24)
	}
	return out
}

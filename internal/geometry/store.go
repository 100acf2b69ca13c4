package geometry

import (
	"github.com/gekko3d/scenecore/internal/gpudevice"
	"github.com/gekko3d/scenecore/internal/id"
)

// Store owns the three append-only arenas named in spec §2.1 — indices,
// vertex positions, and vertex attributes — and assembles their CPU shadows
// into the single Geometry Buffer mega-buffer (spec §6: `[indices
// u32][positions u32][attributes u32]`) that the Scene Assembly Pass
// publishes an offset triplet for.
type Store struct {
	Indices    *Arena
	Positions  *Arena
	Attributes *Arena

	buf gpudevice.Buffer
}

func NewStore() *Store {
	return &Store{
		Indices:    NewArena("indices"),
		Positions:  NewArena("positions"),
		Attributes: NewArena("attributes"),
	}
}

// MeshRanges is the set of ranges a mesh occupies across the three arenas.
type MeshRanges struct {
	Indices    Range
	Positions  Range
	Attributes Range
}

// Allocate reserves space for one mesh's indices/positions/attributes.
func (s *Store) Allocate(entity id.ID, indices, positions, attributes []uint32) MeshRanges {
	return MeshRanges{
		Indices:    s.Indices.Allocate(entity, indices),
		Positions:  s.Positions.Allocate(entity, positions),
		Attributes: s.Attributes.Allocate(entity, attributes),
	}
}

// Free releases a mesh's ranges from all three arenas.
func (s *Store) Free(entity id.ID) {
	s.Indices.Free(entity)
	s.Positions.Free(entity)
	s.Attributes.Free(entity)
}

// Dirty reports whether any of the three arenas need uploading.
func (s *Store) Dirty() bool {
	return s.Indices.Dirty() || s.Positions.Dirty() || s.Attributes.Dirty()
}

// Bytes concatenates the three arenas' CPU shadows into the Geometry
// Buffer's own layout, indices first, then positions, then attributes.
func (s *Store) Bytes() []byte {
	out := make([]byte, 0, (s.Indices.Len()+s.Positions.Len()+s.Attributes.Len())*4)
	out = append(out, s.Indices.Bytes()...)
	out = append(out, s.Positions.Bytes()...)
	out = append(out, s.Attributes.Bytes()...)
	return out
}

// Offsets returns the Geometry Buffer's region base offsets, in 32-bit-word
// units: (0, indices_size, indices_size+positions_size), per spec §4.7
// step 3.
func (s *Store) Offsets() (indices, positions, attributes uint32) {
	return 0, s.Indices.Len(), s.Indices.Len() + s.Positions.Len()
}

// Upload writes the combined Geometry Buffer to its single device buffer,
// resizing it first if any arena grew.
func (s *Store) Upload(device gpudevice.Device) {
	if !s.Dirty() {
		return
	}
	data := s.Bytes()
	if len(data) == 0 {
		return
	}
	if uint64(len(data)) > s.buf.Size() {
		device.CreateOrResizeBuffer(&s.buf, uint64(len(data)), gpudevice.UsageStorage)
	}
	device.WriteBuffer(&s.buf, 0, data)
	s.Indices.ClearDirty()
	s.Positions.ClearDirty()
	s.Attributes.ClearDirty()
}

// Buffer is the persistent device buffer Upload writes to — the handle the
// Scene Assembly Pass exposes to the renderer as the Geometry Buffer.
func (s *Store) Buffer() *gpudevice.Buffer { return &s.buf }

package scene

import (
	"github.com/gekko3d/scenecore/internal/id"
)

// MaterialRegistry is the dense, id-keyed Material Record table of spec
// §4.5. Callers are expected to have already resolved MaterialData's
// texture references to dense Texture Registry indices (via
// TextureRegistry.IndexOf) before calling Add/Update — this keeps the two
// registries decoupled rather than giving one a pointer into the other, a
// deliberate simplification from original_source's add_material (which
// reaches directly into the texture table) documented in DESIGN.md.
type MaterialRegistry struct {
	dense *Dense[GPUMaterial]
}

func NewMaterialRegistry() *MaterialRegistry {
	return &MaterialRegistry{dense: NewDense[GPUMaterial]()}
}

// Add packs data and inserts it, returning the dense material index.
func (r *MaterialRegistry) Add(entity id.ID, data MaterialData) uint32 {
	return r.dense.Insert(entity, BuildGPUMaterial(data))
}

// Update repacks data for an existing material id. Reports false (a no-op
// diagnostic, per spec §7 Consistency) if entity is unknown.
func (r *MaterialRegistry) Update(entity id.ID, data MaterialData) bool {
	return r.dense.Update(entity, func(v *GPUMaterial) {
		*v = BuildGPUMaterial(data)
	})
}

func (r *MaterialRegistry) Remove(entity id.ID) bool {
	return r.dense.Remove(entity)
}

func (r *MaterialRegistry) Get(entity id.ID) (GPUMaterial, uint32, bool) {
	return r.dense.Get(entity)
}

func (r *MaterialRegistry) IndexOf(entity id.ID) (uint32, bool) {
	return r.dense.IndexOf(entity)
}

func (r *MaterialRegistry) Len() int     { return r.dense.Len() }
func (r *MaterialRegistry) Dirty() bool  { return r.dense.Dirty() }
func (r *MaterialRegistry) ClearDirty()  { r.dense.ClearDirty() }

// Bytes packs every dense slot (including zeroed holes) into the flat GPU
// byte buffer the Scene Assembly Pass uploads.
func (r *MaterialRegistry) Bytes() []byte {
	snap := r.dense.Snapshot()
	out := make([]byte, 0, len(snap)*MaterialStride)
	for _, m := range snap {
		out = append(out, m.ToBytes()...)
	}
	return out
}

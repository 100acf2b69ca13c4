package scene

import (
	"github.com/gekko3d/scenecore/internal/id"
)

// LUTKind names a well-known lookup texture slot published through the
// Constant-Data Block (spec §4.5/§6, e.g. PBR_GGX, PBR_CHARLIE), grounded on
// original_source's LUT_PBR_GGX_UID/LUT_PBR_CHARLIE_UID static ids
// (crates/render/src/common/global_buffers.rs).
type LUTKind int

const (
	LUTNone LUTKind = iota
	LUTPBRGGX
	LUTPBRCharlie
	LUTEnvMap
)

// LUTPublisher receives the dense texture index assigned to a LUT-tagged
// texture so the caller (the Scene Assembly Pass's Constant-Data Block) can
// mirror it into the fixed LUT slot on the next frame (spec §4.5, scenario
// 5).
type LUTPublisher interface {
	SetLUTSlot(kind LUTKind, denseIndex uint32)
}

// TextureRegistry is the dense, id-keyed Texture Record table.
type TextureRegistry struct {
	dense     *Dense[GPUTexture]
	publisher LUTPublisher
}

func NewTextureRegistry(publisher LUTPublisher) *TextureRegistry {
	return &TextureRegistry{dense: NewDense[GPUTexture](), publisher: publisher}
}

// Add inserts a texture and, when lut is not LUTNone, publishes the
// resulting dense index through the LUTPublisher — continuing
// original_source's add_texture(texture_id, texture_data, lut_id) ->
// dense_index contract.
func (r *TextureRegistry) Add(entity id.ID, info TextureInfo, lut LUTKind) uint32 {
	idx := r.dense.Insert(entity, BuildGPUTexture(info))
	if lut != LUTNone && r.publisher != nil {
		r.publisher.SetLUTSlot(lut, idx)
	}
	return idx
}

func (r *TextureRegistry) Remove(entity id.ID) bool {
	return r.dense.Remove(entity)
}

func (r *TextureRegistry) IndexOf(entity id.ID) (uint32, bool) {
	return r.dense.IndexOf(entity)
}

func (r *TextureRegistry) Len() int    { return r.dense.Len() }
func (r *TextureRegistry) Dirty() bool { return r.dense.Dirty() }
func (r *TextureRegistry) ClearDirty() { r.dense.ClearDirty() }

func (r *TextureRegistry) Bytes() []byte {
	snap := r.dense.Snapshot()
	out := make([]byte, 0, len(snap)*TextureStride)
	for _, t := range snap {
		out = append(out, t.ToBytes()...)
	}
	return out
}

package scene

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/scenecore/internal/halffloat"
)

// MaterialFlags is the bitset of PBR feature toggles from spec §3's
// Material Record, grounded on original_source's MaterialFlags bitmask enum
// (crates/render/src/common/global_buffers.rs imports) and the teacher's
// own bitmask-constant style (e.g. BrickMask64 in voxelrt/rt/volume).
type MaterialFlags uint32

const (
	FlagUnlit MaterialFlags = 1 << iota
	FlagMetallicRoughness
	FlagSpecularGlossiness
	FlagIor
	FlagSpecular
	FlagTransmission
	FlagVolume
	FlagAlphaOpaque
	FlagAlphaMask
	FlagAlphaBlend
)

// AlphaMode mirrors glTF's alpha mode enum, translated into MaterialFlags
// bits by flagsFromAlphaMode (spec §4.5).
type AlphaMode int

const (
	AlphaOpaque AlphaMode = iota
	AlphaMask
	AlphaBlend
)

const maxTextureSlots = 16

// MaterialData is the CPU-authored form of a material, as supplied to
// add_material/update_material.
type MaterialData struct {
	TextureIndices [maxTextureSlots]int32 // -1 = unbound.
	TexCoordSets   [maxTextureSlots]uint32

	BaseColor      [4]float32
	EmissiveColor  [4]float32
	Metallic       float32
	Roughness      float32
	IOR            float32
	Transmission   float32
	Diffuse        [4]float32
	Specular       [4]float32
	AttenuationColorAndDistance [4]float32
	Thickness      float32
	OcclusionStrength float32
	NormalScale    float32
	AlphaCutoff    float32
	EmissiveStrength float32
	AlphaMode      AlphaMode
	Volume         bool
	Ior            bool
	SpecularGlossiness bool
	Unlit          bool
}

// GPUMaterial is the packed, shader-facing record (192 bytes).
type GPUMaterial struct {
	TextureSlots    [maxTextureSlots]uint32 // (index+1)<<0 | texcoord<<28; 0 = unbound.
	BaseColor       [4]float32
	EmissiveColor   [4]float32
	Metallic        float32
	Roughness       float32
	IOR             float32
	Transmission    float32
	Diffuse         [4]float32
	Specular        [4]float32
	AttenuationColorAndDistance [4]float32
	Thickness       float32
	OcclusionStrength float32
	NormalScaleAlphaCutoff uint32 // packed half floats.
	EmissiveStrength float32
	Flags           uint32
	_pad            [3]uint32
}

// MaterialStride is the fixed ABI byte size of one GPUMaterial record.
const MaterialStride = 192

// ToBytes serializes the material in the fixed 192-byte layout.
func (m GPUMaterial) ToBytes() []byte {
	buf := make([]byte, MaterialStride)
	off := 0
	putU32 := func(v uint32) { binary.LittleEndian.PutUint32(buf[off:off+4], v); off += 4 }
	putF32 := func(v float32) { putU32(math.Float32bits(v)) }
	putVec4 := func(v [4]float32) { for _, f := range v { putF32(f) } }

	for _, s := range m.TextureSlots {
		putU32(s)
	}
	putVec4(m.BaseColor)
	putVec4(m.EmissiveColor)
	putF32(m.Metallic)
	putF32(m.Roughness)
	putF32(m.IOR)
	putF32(m.Transmission)
	putVec4(m.Diffuse)
	putVec4(m.Specular)
	putVec4(m.AttenuationColorAndDistance)
	putF32(m.Thickness)
	putF32(m.OcclusionStrength)
	putU32(m.NormalScaleAlphaCutoff)
	putF32(m.EmissiveStrength)
	putU32(m.Flags)
	putU32(0)
	putU32(0)
	putU32(0)
	return buf
}

// BuildGPUMaterial packs MaterialData plus the already-resolved texture
// index table into the GPU record, grounded on
// global_buffers.rs::add_material/update_material: textures are pre-resolved
// to `(index+1) << 0 | tex_coord_set << 28` (a zero word means "no
// texture"), and normal_scale/alpha_cutoff are quantized to half precision
// and packed into one word.
func BuildGPUMaterial(data MaterialData) GPUMaterial {
	var slots [maxTextureSlots]uint32
	for i := 0; i < maxTextureSlots; i++ {
		if data.TextureIndices[i] < 0 {
			continue
		}
		slots[i] = (uint32(data.TextureIndices[i]+1) << 0) | (data.TexCoordSets[i] << 28)
	}

	flags := flagsFromAlphaMode(data.AlphaMode)
	if data.Volume {
		flags |= FlagVolume
	}
	if data.Ior {
		flags |= FlagIor
	}
	if data.SpecularGlossiness {
		flags |= FlagSpecularGlossiness
	} else {
		flags |= FlagMetallicRoughness
	}
	if data.Unlit {
		flags |= FlagUnlit
	}

	return GPUMaterial{
		TextureSlots:    slots,
		BaseColor:       data.BaseColor,
		EmissiveColor:   data.EmissiveColor,
		Metallic:        data.Metallic,
		Roughness:       data.Roughness,
		IOR:             data.IOR,
		Transmission:    data.Transmission,
		Diffuse:         data.Diffuse,
		Specular:        data.Specular,
		AttenuationColorAndDistance: data.AttenuationColorAndDistance,
		Thickness:       data.Thickness,
		OcclusionStrength: data.OcclusionStrength,
		NormalScaleAlphaCutoff: halffloat.PackPair(data.NormalScale, data.AlphaCutoff),
		EmissiveStrength: data.EmissiveStrength,
		Flags:           uint32(flags),
	}
}

func flagsFromAlphaMode(mode AlphaMode) MaterialFlags {
	switch mode {
	case AlphaMask:
		return FlagAlphaMask
	case AlphaBlend:
		return FlagAlphaBlend
	default:
		return FlagAlphaOpaque
	}
}

// IsTransparent reports whether the material, as currently packed, should
// move a mesh from the Opaque to the Transparent draw bucket: alpha mode is
// Blend, or the base color's alpha channel is below 1 (spec §4.3).
func (m GPUMaterial) IsTransparent() bool {
	return MaterialFlags(m.Flags)&FlagAlphaBlend != 0 || m.BaseColor[3] < 1.0
}

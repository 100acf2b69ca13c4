package scene

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/scenecore/internal/halffloat"
)

// TextureInfo is the CPU-authored atlas placement for one texture, as
// supplied to add_texture. Width/Height/TotalWidth/TotalHeight are stored
// as plain floats and quantized to half precision on pack, matching
// original_source's texture_data.rs (`decode_half`/the implied
// `quantize_half` counterpart) where atlas coordinates live in half
// precision inside packed 32-bit words.
type TextureInfo struct {
	TextureIndex int32 // index into the physical texture/layer array.
	LayerIndex   uint32
	IsLUT        bool

	X, Y                     float32
	Width, Height            float32
	TotalWidth, TotalHeight  float32
}

// GPUTexture is the packed, shader-facing record (16 bytes): a signed
// texture+layer index (sign bit marks "this is a LUT"), then three packed
// half-float coordinate pairs, grounded on texture_data.rs::GPUTexture
// (texture_and_layer_index / min / max / size fields and their
// x()/y()/width()/height()/total_width()/total_height() accessors).
type GPUTexture struct {
	TextureAndLayerIndex int32
	AtlasXY              uint32
	AtlasWH              uint32
	TotalWH              uint32
}

const TextureStride = 16

func (t GPUTexture) ToBytes() []byte {
	buf := make([]byte, TextureStride)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(t.TextureAndLayerIndex))
	binary.LittleEndian.PutUint32(buf[4:8], t.AtlasXY)
	binary.LittleEndian.PutUint32(buf[8:12], t.AtlasWH)
	binary.LittleEndian.PutUint32(buf[12:16], t.TotalWH)
	return buf
}

// BuildGPUTexture packs a TextureInfo into its 16-byte GPU form. The index
// field packs a 29-bit texture index and a 3-bit layer index; the sign bit
// is set (by negating) when IsLUT is true, matching
// `texture_and_layer_index.is_negative()` in texture_data.rs.
func BuildGPUTexture(info TextureInfo) GPUTexture {
	packedIndex := (info.TextureIndex << 3) | int32(info.LayerIndex&0x7)
	if info.IsLUT {
		packedIndex = -packedIndex
		if packedIndex == 0 {
			packedIndex = math.MinInt32 // degenerate all-zero case still reads as "negative".
		}
	}
	return GPUTexture{
		TextureAndLayerIndex: packedIndex,
		AtlasXY:              halffloat.PackPair(info.X, info.Y),
		AtlasWH:              halffloat.PackPair(info.Width, info.Height),
		TotalWH:              halffloat.PackPair(info.TotalWidth, info.TotalHeight),
	}
}

func (t GPUTexture) IsLUT() bool { return t.TextureAndLayerIndex < 0 }

func (t GPUTexture) TextureIndex() int32 {
	idx := t.TextureAndLayerIndex
	if idx < 0 {
		idx = -idx
	}
	return idx >> 3
}

func (t GPUTexture) LayerIndex() uint32 {
	idx := t.TextureAndLayerIndex
	if idx < 0 {
		idx = -idx
	}
	return uint32(idx) & 0x7
}

func (t GPUTexture) X() float32 {
	x, _ := halffloat.UnpackPair(t.AtlasXY)
	return x
}

func (t GPUTexture) Y() float32 {
	_, y := halffloat.UnpackPair(t.AtlasXY)
	return y
}

func (t GPUTexture) Width() float32 {
	w, _ := halffloat.UnpackPair(t.AtlasWH)
	return w
}

func (t GPUTexture) Height() float32 {
	_, h := halffloat.UnpackPair(t.AtlasWH)
	return h
}

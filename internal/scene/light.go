package scene

import (
	"encoding/binary"
	"math"
)

// LightType enumerates the Light Record's type field (spec §3/§6).
type LightType uint32

const (
	LightNone LightType = iota
	LightDirectional
	LightPoint
	LightSpot
)

// LightData is the GPU representation of a light: four packed vec4 words,
// directly continuing the teacher's core.Light
// (voxelrt/rt/core/light.go), extended with the inner/outer cone cosines
// spec §3 requires for spot lights (the teacher only carried one cone
// angle, since its voxel renderer didn't model penumbra falloff).
type LightData struct {
	Position  [4]float32 // xyz, unused
	Direction [4]float32 // xyz, unused
	Color     [4]float32 // rgb, intensity
	Params    [4]float32 // range, inner cone cos, outer cone cos, type
}

const LightStride = 64

func (l LightData) ToBytes() []byte {
	buf := make([]byte, LightStride)
	off := 0
	putVec4 := func(v [4]float32) {
		for _, f := range v {
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(f))
			off += 4
		}
	}
	putVec4(l.Position)
	putVec4(l.Direction)
	putVec4(l.Color)
	putVec4(l.Params)
	return buf
}

// Type reads back the packed type field.
func (l LightData) Type() LightType {
	return LightType(l.Params[3])
}

// NewLight packs a light's fields into its GPU form.
func NewLight(color [3]float32, intensity float32, position [3]float32, lightRange float32,
	direction [3]float32, typ LightType, innerCos, outerCos float32) LightData {
	return LightData{
		Position:  [4]float32{position[0], position[1], position[2], 0},
		Direction: [4]float32{direction[0], direction[1], direction[2], 0},
		Color:     [4]float32{color[0], color[1], color[2], intensity},
		Params:    [4]float32{lightRange, innerCos, outerCos, float32(typ)},
	}
}

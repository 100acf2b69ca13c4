// Package frame implements the Constant-Data Block and the Scene Assembly
// Pass of spec §4.8/§4.7: the small per-frame uniform block every shader
// reads to find the rest of the scene, and the pass that (re)lays out the
// combined Scene Buffer each frame and publishes that block.
package frame

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/gekko3d/scenecore/internal/scene"
)

// ConstantDataStride is the fixed ABI byte size the Constant-Data Block is
// uploaded at, kept within spec §4.8's 256-byte budget. The packed fields
// below use 224 of those bytes; the rest is reserved for future append-only
// growth.
const ConstantDataStride = 256

const numLUTSlots = 3

// unboundLUT marks a LUT slot with no texture published into it yet,
// mirroring original_source's use of a sentinel rather than 0 (0 is a valid
// dense texture index).
const unboundLUT = 0xFFFFFFFF

// DebugFlags is the Constant-Data flag bitset of spec §6, each bit an
// independently toggleable debug/feature switch.
type DebugFlags uint32

const (
	DebugNone               DebugFlags = 0
	DisplayMeshlets         DebugFlags = 1 << (iota - 1)
	DisplayMeshletsLodLevel
	DisplayBaseColor
	DisplayMetallic
	DisplayRoughness
	DisplayNormals
	DisplayTangent
	DisplayBitangent
	DisplayUV0
	DisplayUV1
	DisplayUV2
	DisplayUV3
	DisplayDepthBuffer
	DisplayRadianceBuffer
	DisplayPathtrace
	UseIBL
)

// GeometryOffsets is the Geometry Buffer's region base-offset triplet, in
// 32-bit-word units (spec §4.7 step 3).
type GeometryOffsets struct {
	Indices    uint32
	Positions  uint32
	Attributes uint32
}

// SceneOffsets is the Scene Buffer's five region base offsets, in 32-bit
// word units: the four-offset "quad" (mesh/meshlet/instance/transform)
// named alongside the separate bvh_offset field (spec §4.8).
type SceneOffsets struct {
	Mesh      uint32
	Meshlet   uint32
	Instance  uint32
	Transform uint32
	BVH       uint32
}

// ConstantData is the Constant-Data Block of spec §4.8: a single per-frame
// struct, owned by one writer, whose fields are append-only so stale shader
// binaries keep working across minor revisions. FrameIndex is kept
// unexported and atomic: it is the release/acquire barrier spec §5
// requires readers to synchronize on, and must be the last field the
// writer touches each frame.
type ConstantData struct {
	ViewMatrix [16]float32
	ProjMatrix [16]float32 // pre-multiplied by the clip-space correction matrix.
	Near       float32
	Far        float32
	ScreenSize [2]float32
	DebugCoord [2]float32

	Flags      DebugFlags
	NumMeshes  uint32
	NumLights  uint32
	NumBounces uint32

	// ForcedLODLevel pins every mesh to one LOD level for debugging;
	// negative means "let the renderer pick".
	ForcedLODLevel int32

	TLASStart       int32
	GeometryOffsets GeometryOffsets
	SceneOffsets    SceneOffsets
	LUTSlots        [numLUTSlots]uint32

	frameIndex atomic.Uint32
}

func NewConstantData() *ConstantData {
	c := &ConstantData{ForcedLODLevel: -1}
	for i := range c.LUTSlots {
		c.LUTSlots[i] = unboundLUT
	}
	return c
}

func (c *ConstantData) SetLUTSlot(kind scene.LUTKind, denseIndex uint32) {
	if kind == scene.LUTNone {
		return
	}
	slot := int(kind) - 1
	if slot < 0 || slot >= numLUTSlots {
		return
	}
	c.LUTSlots[slot] = denseIndex
}

func (c *ConstantData) SetNumLights(count uint32) { c.NumLights = count }

// SetCamera implements the §6 external input
// `update_constant_data(view, proj, near, far, screen_size, debug_coord)`.
func (c *ConstantData) SetCamera(view, proj [16]float32, near, far float32, screenSize, debugCoord [2]float32) {
	c.ViewMatrix = view
	c.ProjMatrix = proj
	c.Near = near
	c.Far = far
	c.ScreenSize = screenSize
	c.DebugCoord = debugCoord
}

// FrameIndex is the acquire-load counterpart to the release-store
// publishFrameIndex performs at the end of Assemble.
func (c *ConstantData) FrameIndex() uint32 { return c.frameIndex.Load() }

// publishFrameIndex stores the frame counter with release semantics. It
// must run after every other field in this struct has been set for the
// frame (spec §5: "readers ... observe it under acquire of the atomic
// frame-index field, which is written last").
func (c *ConstantData) publishFrameIndex(v uint32) { c.frameIndex.Store(v) }

func (c *ConstantData) ToBytes() []byte {
	buf := make([]byte, ConstantDataStride)
	off := 0
	putU32 := func(v uint32) { binary.LittleEndian.PutUint32(buf[off:off+4], v); off += 4 }
	putF32 := func(v float32) { putU32(math.Float32bits(v)) }

	for _, f := range c.ViewMatrix {
		putF32(f)
	}
	for _, f := range c.ProjMatrix {
		putF32(f)
	}
	putF32(c.Near)
	putF32(c.Far)
	putF32(c.ScreenSize[0])
	putF32(c.ScreenSize[1])
	putF32(c.DebugCoord[0])
	putF32(c.DebugCoord[1])

	putU32(uint32(c.Flags))
	putU32(c.NumMeshes)
	putU32(c.NumLights)
	putU32(c.NumBounces)
	putU32(uint32(c.ForcedLODLevel))

	// The frame index is acquire-loaded into its fixed slot, between
	// forced_lod_level and tlas_start_index.
	putU32(c.frameIndex.Load())

	putU32(uint32(c.TLASStart))
	putU32(c.GeometryOffsets.Indices)
	putU32(c.GeometryOffsets.Positions)
	putU32(c.GeometryOffsets.Attributes)
	putU32(c.SceneOffsets.Mesh)
	putU32(c.SceneOffsets.Meshlet)
	putU32(c.SceneOffsets.Instance)
	putU32(c.SceneOffsets.Transform)
	putU32(c.SceneOffsets.BVH)
	for _, s := range c.LUTSlots {
		putU32(s)
	}
	return buf
}

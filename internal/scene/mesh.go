package scene

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/gekko3d/scenecore/internal/bvh"
	"github.com/gekko3d/scenecore/internal/geometry"
	"github.com/gekko3d/scenecore/internal/gpudevice"
	"github.com/gekko3d/scenecore/internal/halffloat"
	"github.com/gekko3d/scenecore/internal/id"
	"github.com/gekko3d/scenecore/internal/logx"
	"github.com/gekko3d/scenecore/internal/meshlet"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxLODLevels mirrors meshlet.MaxLODLevels; the Mesh Descriptor carries one
// packed range slot per level regardless of how many a given mesh actually
// builds (spec §3/§6).
const MaxLODLevels = meshlet.MaxLODLevels

const meshletWordsPerRecord = meshlet.Stride / 4
const bvhWordsPerRecord = bvh.NodeStride / 4

// DescriptorStride is the fixed ABI byte size of one MeshDescriptor (spec
// §6): 4 header words, 4 BLAS/material words, MaxLODLevels LOD-range words,
// then position/orientation/scale — 112 bytes total.
const DescriptorStride = 16 + 16 + MaxLODLevels*4 + 16 + 16 + 16

const (
	VertexHasNormal uint32 = 1 << iota
	VertexHasUV
)

// MeshDescriptor is the packed, shader-facing per-mesh record.
type MeshDescriptor struct {
	IndicesOffset        uint32
	PositionsOffset      uint32
	AttributesOffset     uint32
	FlagsAndVertexLayout uint32

	BLASIndex      uint32
	MeshletsOffset uint32
	MaterialIndex  uint32

	LODRanges [MaxLODLevels]uint32 // (start<<16)|end, local to MeshletsOffset.

	Position    [3]float32
	Orientation [4]float32
	Scale       float32
}

func (d MeshDescriptor) ToBytes() []byte {
	buf := make([]byte, DescriptorStride)
	off := 0
	putU32 := func(v uint32) { binary.LittleEndian.PutUint32(buf[off:off+4], v); off += 4 }
	putF32 := func(v float32) { putU32(math.Float32bits(v)) }

	putU32(d.IndicesOffset)
	putU32(d.PositionsOffset)
	putU32(d.AttributesOffset)
	putU32(d.FlagsAndVertexLayout)
	putU32(d.BLASIndex)
	putU32(d.MeshletsOffset)
	putU32(d.MaterialIndex)
	putU32(0) // pad
	for _, r := range d.LODRanges {
		putU32(r)
	}
	for _, f := range d.Position {
		putF32(f)
	}
	putF32(0) // pad
	for _, f := range d.Orientation {
		putF32(f)
	}
	putF32(d.Scale)
	putF32(0)
	putF32(0)
	putF32(0)
	return buf
}

// MeshData is the CPU-authored input to AddMesh: raw triangle geometry plus
// the material and transform the mesh starts with.
type MeshData struct {
	Vertices   []meshlet.Vertex
	Normals    [][3]float32 // optional; padded/truncated to len(Vertices).
	UVs        [][2]float32 // optional; padded/truncated to len(Vertices).
	Indices    []uint32
	Material   id.ID
	MaterialIx uint32
	Transform  Transform
}

// MeshRecord is the CPU-side bookkeeping the registry keeps per mesh,
// alongside the packed Descriptor.
type MeshRecord struct {
	Live         bool
	Descriptor   MeshDescriptor
	Ranges       geometry.MeshRanges
	MeshletRange geometry.Range
	BLASRange    geometry.Range
	Material     id.ID
	Transform    Transform
	LocalMin     mgl32.Vec3
	LocalMax     mgl32.Vec3
}

// MeshRegistry is the Mesh Registry of spec §4.3: it owns the Geometry
// Store ranges, the global meshlet buffer, and the per-mesh BLAS subtrees of
// every live mesh, and packs the Mesh Descriptor table the Scene Assembly
// Pass uploads.
//
// Grounded on original_source's add_mesh/change_mesh/remove_mesh
// (crates/render/src/common/global_buffers.rs), with the dense-slot
// bookkeeping style of the teacher's gpu.SlotAllocator carried over via
// Dense.
type MeshRegistry struct {
	mu sync.Mutex

	geometry *geometry.Store
	meshlets *geometry.Arena
	bvhNodes *geometry.Arena
	dense    *Dense[MeshRecord]
	logger   logx.Logger

	meshletsBuf gpudevice.Buffer
}

func NewMeshRegistry(store *geometry.Store, logger logx.Logger) *MeshRegistry {
	if logger == nil {
		logger = logx.Nop{}
	}
	return &MeshRegistry{
		geometry: store,
		meshlets: geometry.NewArena("meshlets"),
		bvhNodes: geometry.NewArena("bvh"),
		dense:    NewDense[MeshRecord](),
		logger:   logger,
	}
}

// AddMesh runs the full Meshlet Builder + registry insertion pipeline and
// returns the mesh's dense index.
func (r *MeshRegistry) AddMesh(entity id.ID, data MeshData) (uint32, error) {
	// The Meshlet Builder is a pure function of data — it touches no
	// registry state — so it deliberately runs before the lock is taken,
	// letting jobpool.Pool run it concurrently for multiple meshes while
	// only the (cheap) registry insertion below is serialized.
	normals := padVec3(data.Normals, len(data.Vertices), r.logger)
	uvs := padVec2(data.UVs, len(data.Vertices), r.logger)

	build, err := meshlet.Build(data.Vertices, data.Indices)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	meshIndex := r.dense.Insert(entity, MeshRecord{})

	indexWords := append([]uint32{}, build.Indices...)
	posWords := make([]uint32, 0, len(data.Vertices)*3)
	for _, v := range data.Vertices {
		posWords = append(posWords,
			math.Float32bits(v.Position[0]),
			math.Float32bits(v.Position[1]),
			math.Float32bits(v.Position[2]),
		)
	}
	attrWords := make([]uint32, 0, len(data.Vertices)*2)
	for i := range data.Vertices {
		attrWords = append(attrWords,
			halffloat.PackPair(normals[i][0], normals[i][1]),
			halffloat.PackPair(uvs[i][0], uvs[i][1]),
		)
	}
	ranges := r.geometry.Allocate(entity, indexWords, posWords, attrWords)

	// Reserve the BLAS range with placeholders first: Allocate may place it
	// in a freelist hole rather than at the tail, so the miss-link base is
	// only known once the range has been placed.
	blasRange := r.bvhNodes.Allocate(entity, make([]uint32, len(build.BLAS)*bvhWordsPerRecord))
	nodeBase := int32(blasRange.Start) / bvhWordsPerRecord
	blasNodes := append([]bvh.Node{}, build.BLAS...)
	bvh.Relocate(blasNodes, nodeBase)

	leafNodeForMeshlet := make([]int32, len(build.LODs[0].Meshlets))
	for pos, n := range blasNodes {
		if n.IsLeaf() && int(n.Primitive) < len(leafNodeForMeshlet) {
			leafNodeForMeshlet[n.Primitive] = nodeBase + int32(pos)
		}
	}
	r.bvhNodes.WriteRange(entity, bytesToWords(bvh.EncodeNodes(blasNodes)))

	// levelLocalStart[level] is where that level's meshlets begin in the
	// concatenated per-mesh buffer (coarsest-to-finest storage order), so
	// ChildMeshlets — which meshlet.Build emits as indices local to the
	// next-finer LOD's own slice — can be relocated to this mesh's own
	// meshlet segment before the final global relocation below.
	levelLocalStart := make([]uint32, len(build.LODs))
	meshletCount := uint32(0)
	for level := len(build.LODs) - 1; level >= 0; level-- {
		levelLocalStart[level] = meshletCount
		meshletCount += uint32(len(build.LODs[level].Meshlets))
	}

	var descriptor MeshDescriptor
	allMeshlets := make([]meshlet.GPUMeshlet, 0, meshletCount)
	for level := len(build.LODs) - 1; level >= 0; level-- {
		meshlets := build.LODs[level].Meshlets
		storedLOD := uint32(MaxLODLevels - 1 - level)
		localStart := uint32(len(allMeshlets))

		for localIdx, m := range meshlets {
			m.MeshIndexAndLOD = (meshIndex << 3) | storedLOD
			if level == 0 {
				m.BVHOffset = uint32(leafNodeForMeshlet[localIdx])
			} else {
				m.BVHOffset = uint32(nodeBase)
				for ci, c := range m.ChildMeshlets {
					if c >= 0 {
						m.ChildMeshlets[ci] = c + int32(levelLocalStart[level-1])
					}
				}
			}
			allMeshlets = append(allMeshlets, m)
		}
		localEnd := uint32(len(allMeshlets))
		descriptor.LODRanges[storedLOD] = (localStart << 16) | localEnd
	}

	// Reserve the range with placeholders first — same reserve-then-fill
	// discipline as accel.Manager's TLAS relocation — since ChildMeshlets
	// still need +meshlet_start_index applied (mirroring
	// global_buffers.rs::extract_meshlets) and that base is only known once
	// Allocate has placed the range.
	placeholderWords := make([]uint32, len(allMeshlets)*int(meshletWordsPerRecord))
	meshletRange := r.meshlets.Allocate(entity, placeholderWords)
	globalBase := int32(meshletRange.Start / meshletWordsPerRecord)
	for i := range allMeshlets {
		for ci, c := range allMeshlets[i].ChildMeshlets {
			if c >= 0 {
				allMeshlets[i].ChildMeshlets[ci] = c + globalBase
			}
		}
	}
	allMeshletWords := make([]uint32, 0, len(allMeshlets)*int(meshletWordsPerRecord))
	for _, m := range allMeshlets {
		allMeshletWords = append(allMeshletWords, bytesToWords(m.ToBytes())...)
	}
	r.meshlets.WriteRange(entity, allMeshletWords)

	descriptor.IndicesOffset = ranges.Indices.Start
	descriptor.PositionsOffset = ranges.Positions.Start
	descriptor.AttributesOffset = ranges.Attributes.Start
	descriptor.FlagsAndVertexLayout = VertexHasNormal | VertexHasUV
	descriptor.BLASIndex = uint32(nodeBase)
	descriptor.MeshletsOffset = meshletRange.Start / meshletWordsPerRecord
	descriptor.MaterialIndex = data.MaterialIx
	descriptor.Position = [3]float32{data.Transform.Position.X(), data.Transform.Position.Y(), data.Transform.Position.Z()}
	descriptor.Orientation = [4]float32{data.Transform.Rotation.V[0], data.Transform.Rotation.V[1], data.Transform.Rotation.V[2], data.Transform.Rotation.W}
	descriptor.Scale = data.Transform.Scale

	localMin, localMax := blasRootBounds(build.BLAS)

	r.dense.Update(entity, func(v *MeshRecord) {
		*v = MeshRecord{
			Live:         true,
			Descriptor:   descriptor,
			Ranges:       ranges,
			MeshletRange: meshletRange,
			BLASRange:    blasRange,
			Material:     data.Material,
			Transform:    data.Transform,
			LocalMin:     localMin,
			LocalMax:     localMax,
		}
	})

	return meshIndex, nil
}

func blasRootBounds(nodes []bvh.Node) (mgl32.Vec3, mgl32.Vec3) {
	if len(nodes) == 0 {
		return mgl32.Vec3{}, mgl32.Vec3{}
	}
	root := nodes[0]
	return mgl32.Vec3{root.Min[0], root.Min[1], root.Min[2]}, mgl32.Vec3{root.Max[0], root.Max[1], root.Max[2]}
}

// MeshUpdate describes a change_mesh edit: a nil field leaves that aspect of
// the mesh unchanged. Geometry/meshlets/BLAS are never touched by
// ChangeMesh, matching original_source's change_mesh (only transform and
// material_index move, which is why this never needs the Meshlet Builder).
type MeshUpdate struct {
	Transform     *Transform
	Material      *id.ID
	MaterialIndex *uint32
}

// ChangeMesh applies a MeshUpdate in place. It reports whether entity was
// known and whether the change requires a TLAS rebuild (the transform
// moved) — mirroring original_source's change_mesh, which compares the new
// transform against the old one before flagging dirty.
func (r *MeshRegistry) ChangeMesh(entity id.ID, update MeshUpdate) (transformChanged bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ok = r.dense.Update(entity, func(v *MeshRecord) {
		if update.Transform != nil && !v.Transform.Equal(*update.Transform) {
			transformChanged = true
			v.Transform = *update.Transform
			v.Descriptor.Position = [3]float32{update.Transform.Position.X(), update.Transform.Position.Y(), update.Transform.Position.Z()}
			v.Descriptor.Orientation = [4]float32{update.Transform.Rotation.V[0], update.Transform.Rotation.V[1], update.Transform.Rotation.V[2], update.Transform.Rotation.W}
			v.Descriptor.Scale = update.Transform.Scale
		}
		if update.Material != nil {
			v.Material = *update.Material
		}
		if update.MaterialIndex != nil {
			v.Descriptor.MaterialIndex = *update.MaterialIndex
		}
	})
	return transformChanged, ok
}

// RemoveMesh frees every resource a mesh occupies (geometry, meshlets,
// BLAS) and its dense slot. Removing an unknown id is silent (spec §7).
func (r *MeshRegistry) RemoveMesh(entity id.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, _, ok := r.dense.Get(entity); !ok {
		return false
	}
	r.geometry.Free(entity)
	r.meshlets.Free(entity)
	r.bvhNodes.Free(entity)
	return r.dense.Remove(entity)
}

func (r *MeshRegistry) Get(entity id.ID) (MeshRecord, uint32, bool) {
	return r.dense.Get(entity)
}

func (r *MeshRegistry) IndexOf(entity id.ID) (uint32, bool) {
	return r.dense.IndexOf(entity)
}

func (r *MeshRegistry) Len() int { return r.dense.Len() }

// Snapshot returns every mesh record in dense-index order, including freed
// holes, for the Acceleration-Structure Manager and Scene Assembly Pass.
func (r *MeshRegistry) Snapshot() []MeshRecord { return r.dense.Snapshot() }

func (r *MeshRegistry) Dirty() bool {
	return r.dense.Dirty() || r.meshlets.Dirty() || r.bvhNodes.Dirty()
}

func (r *MeshRegistry) ClearDirty() { r.dense.ClearDirty() }

// DescriptorBytes packs every mesh's Descriptor into the flat buffer the
// Scene Assembly Pass uploads as the Mesh Descriptor Table.
func (r *MeshRegistry) DescriptorBytes() []byte {
	snap := r.dense.Snapshot()
	out := make([]byte, 0, len(snap)*DescriptorStride)
	for _, m := range snap {
		out = append(out, m.Descriptor.ToBytes()...)
	}
	return out
}

func (r *MeshRegistry) MeshletBytes() []byte { return r.meshlets.Bytes() }

// BVHBytes returns the shared BVH node buffer's CPU shadow — both this
// registry's BLASes and, once accel.Manager has rebuilt it, the scene-wide
// TLAS, since both live in the one arena BVHArena exposes. The arena places
// each range first-fit, so the TLAS is not necessarily after every BLAS.
func (r *MeshRegistry) BVHBytes() []byte { return r.bvhNodes.Bytes() }

// BVHArena exposes the shared BLAS node arena so the Acceleration-Structure
// Manager can place the scene-wide TLAS in the same global BVH
// buffer (spec §4.4: BLAS and TLAS share one buffer; tlas_start_index marks
// where the TLAS region begins).
func (r *MeshRegistry) BVHArena() *geometry.Arena { return r.bvhNodes }

// UploadMeshlets pushes the meshlet buffer's CPU shadow to its own
// persistent device buffer, independent of the Geometry Store's buffers —
// the Scene Assembly Pass later issues a GPU->GPU copy from this buffer
// into the combined Scene Buffer rather than re-uploading from the CPU.
func (r *MeshRegistry) UploadMeshlets(device gpudevice.Device) {
	r.meshlets.Upload(device, &r.meshletsBuf)
}

// MeshletsBuffer is the persistent device buffer UploadMeshlets writes to.
func (r *MeshRegistry) MeshletsBuffer() *gpudevice.Buffer { return &r.meshletsBuf }

func (r *MeshRegistry) Upload(device gpudevice.Device) {
	r.geometry.Upload(device)
}

func padVec3(in [][3]float32, n int, logger logx.Logger) [][3]float32 {
	out := make([][3]float32, n)
	copy(out, in)
	if len(in) > n {
		logger.Warnf("mesh: normal stream longer than vertex array (%d > %d), truncating", len(in), n)
	}
	return out
}

func padVec2(in [][2]float32, n int, logger logx.Logger) [][2]float32 {
	out := make([][2]float32, n)
	copy(out, in)
	if len(in) > n {
		logger.Warnf("mesh: uv stream longer than vertex array (%d > %d), truncating", len(in), n)
	}
	return out
}

func bytesToWords(data []byte) []uint32 {
	out := make([]uint32, len(data)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[i*4 : i*4+4])
	}
	return out
}

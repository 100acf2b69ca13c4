package scene

import (
	"encoding/binary"
	"sort"

	"github.com/gekko3d/scenecore/internal/gpudevice"
)

// DrawBucket groups meshes that can be drawn with the same pipeline state,
// per spec §4.6: currently just opaque vs. transparent, keyed off the
// owning material's alpha mode.
type DrawBucket uint32

const (
	BucketOpaque DrawBucket = iota
	BucketTransparent
	bucketCount
)

// IndirectDraw is one GPU-indirect draw descriptor: one per meshlet, so the
// renderer can dispatch exactly the meshlets that survived culling.
type IndirectDraw struct {
	MeshIndex    uint32
	MeshletIndex uint32 // absolute index into the global meshlet buffer.
	Bucket       DrawBucket
}

const IndirectDrawStride = 12

func (d IndirectDraw) ToBytes() []byte {
	buf := make([]byte, IndirectDrawStride)
	binary.LittleEndian.PutUint32(buf[0:4], d.MeshIndex)
	binary.LittleEndian.PutUint32(buf[4:8], d.MeshletIndex)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(d.Bucket))
	return buf
}

// DrawIndexer rebuilds the per-bucket indirect draw list from the current
// Mesh Registry + Material Registry state. It holds no persistent identity
// of its own (no add/remove API): it is recomputed whenever meshes or
// materials change, matching spec §4.6's "rebuilt by change_mesh" contract
// without needing its own dense registry.
type DrawIndexer struct {
	buckets [bucketCount][]IndirectDraw
	buf     gpudevice.Buffer
}

func NewDrawIndexer() *DrawIndexer {
	return &DrawIndexer{}
}

// Rebuild walks every live mesh's LOD-0 meshlets (the only LOD eligible for
// direct rendering; coarser LODs are selected by the renderer via the
// mesh's LOD ranges, not re-indexed here) and buckets one IndirectDraw per
// meshlet by whether its material is transparent.
func (di *DrawIndexer) Rebuild(meshes *MeshRegistry, materials *MaterialRegistry) {
	for i := range di.buckets {
		di.buckets[i] = di.buckets[i][:0]
	}

	snap := meshes.Snapshot()
	for meshIndex, rec := range snap {
		if !rec.Live {
			continue
		}
		bucket := BucketOpaque
		if mat, _, ok := materials.Get(rec.Material); ok && mat.IsTransparent() {
			bucket = BucketTransparent
		}

		lod0 := rec.Descriptor.LODRanges[MaxLODLevels-1]
		start, end := lod0>>16, lod0&0xFFFF
		base := rec.Descriptor.MeshletsOffset
		for local := start; local < end; local++ {
			di.buckets[bucket] = append(di.buckets[bucket], IndirectDraw{
				MeshIndex:    uint32(meshIndex),
				MeshletIndex: base + local,
				Bucket:       bucket,
			})
		}
	}

	for i := range di.buckets {
		sort.Slice(di.buckets[i], func(a, b int) bool {
			return di.buckets[i][a].MeshletIndex < di.buckets[i][b].MeshletIndex
		})
	}
}

func (di *DrawIndexer) Bucket(b DrawBucket) []IndirectDraw { return di.buckets[b] }

func (di *DrawIndexer) Bytes() []byte {
	var out []byte
	for _, bucket := range di.buckets {
		for _, d := range bucket {
			out = append(out, d.ToBytes()...)
		}
	}
	return out
}

// Upload pushes the current draw list to its own persistent device buffer.
// The Scene Assembly Pass does not copy this buffer into the Scene Buffer.
func (di *DrawIndexer) Upload(device gpudevice.Device) {
	data := di.Bytes()
	if len(data) == 0 {
		return
	}
	if uint64(len(data)) > di.buf.Size() {
		device.CreateOrResizeBuffer(&di.buf, uint64(len(data)), gpudevice.UsageStorage)
	}
	device.WriteBuffer(&di.buf, 0, data)
}

// Buffer is the persistent device buffer Upload writes to.
func (di *DrawIndexer) Buffer() *gpudevice.Buffer { return &di.buf }

package scene

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/scenecore/internal/gpudevice"
)

// InstanceStride is the packed byte size of one Instance record (spec §3).
const InstanceStride = 8

// Instance pairs an object-instance id with its mesh descriptor index and a
// transform slot (spec §3). TLAS leaves carry instance indices as their
// primitive index; BLAS leaves carry global meshlet indices directly.
type Instance struct {
	MeshIndex      uint32
	TransformIndex uint32
}

func (i Instance) ToBytes() []byte {
	buf := make([]byte, InstanceStride)
	binary.LittleEndian.PutUint32(buf[0:4], i.MeshIndex)
	binary.LittleEndian.PutUint32(buf[4:8], i.TransformIndex)
	return buf
}

// TransformStride is the packed byte size of one Transform array entry:
// position, quaternion orientation, uniform scale. This is the record TLAS
// instances actually reference at draw time; the Mesh Descriptor's own
// position/orientation/scale fields remain the mesh's authored rest pose.
const TransformStride = 32

func transformToBytes(t Transform) []byte {
	buf := make([]byte, TransformStride)
	off := 0
	putF32 := func(v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	putF32(t.Position.X())
	putF32(t.Position.Y())
	putF32(t.Position.Z())
	putF32(t.Scale)
	putF32(t.Rotation.V[0])
	putF32(t.Rotation.V[1])
	putF32(t.Rotation.V[2])
	putF32(t.Rotation.W)
	return buf
}

// InstanceRegistry rebuilds the GPU instance array and transform array
// together from the current Mesh Registry snapshot (spec §3/§4.7), one pair
// per live mesh. It holds no identity of its own — like DrawIndexer, it is
// recomputed wholesale whenever meshes change, not maintained incrementally.
//
// Instance and transform slots are assigned in the same dense, hole-free
// order the Acceleration-Structure Manager assigns TLAS leaf primitive
// indices in (both walk MeshRegistry.Snapshot, skipping dead records, and
// count only live ones), so an instance's position here is always the
// instance dense index its TLAS leaf references.
type InstanceRegistry struct {
	instances  []Instance
	transforms []Transform

	instanceBuf  gpudevice.Buffer
	transformBuf gpudevice.Buffer
}

func NewInstanceRegistry() *InstanceRegistry {
	return &InstanceRegistry{}
}

// Rebuild recomputes the instance and transform arrays from meshes' current
// snapshot. Call it whenever the Mesh Registry's live set or any transform
// changes, immediately before or after accel.Manager.Rebuild against the
// same snapshot so the two stay aligned.
func (ir *InstanceRegistry) Rebuild(meshes *MeshRegistry) {
	snap := meshes.Snapshot()
	ir.instances = ir.instances[:0]
	ir.transforms = ir.transforms[:0]
	for meshIndex, rec := range snap {
		if !rec.Live {
			continue
		}
		slot := uint32(len(ir.instances))
		ir.instances = append(ir.instances, Instance{MeshIndex: uint32(meshIndex), TransformIndex: slot})
		ir.transforms = append(ir.transforms, rec.Transform)
	}
}

func (ir *InstanceRegistry) Len() int { return len(ir.instances) }

func (ir *InstanceRegistry) InstanceBytes() []byte {
	out := make([]byte, 0, len(ir.instances)*InstanceStride)
	for _, inst := range ir.instances {
		out = append(out, inst.ToBytes()...)
	}
	return out
}

func (ir *InstanceRegistry) TransformBytes() []byte {
	out := make([]byte, 0, len(ir.transforms)*TransformStride)
	for _, t := range ir.transforms {
		out = append(out, transformToBytes(t)...)
	}
	return out
}

// Upload pushes the current instance and transform arrays to their own
// persistent device buffers, so the Scene Assembly Pass can GPU->GPU copy
// them into the Scene Buffer instead of re-uploading from the CPU each
// frame (spec §4.7 step 5).
func (ir *InstanceRegistry) Upload(device gpudevice.Device) {
	instanceData := ir.InstanceBytes()
	if len(instanceData) > 0 {
		if uint64(len(instanceData)) > ir.instanceBuf.Size() {
			device.CreateOrResizeBuffer(&ir.instanceBuf, uint64(len(instanceData)), gpudevice.UsageStorage)
		}
		device.WriteBuffer(&ir.instanceBuf, 0, instanceData)
	}

	transformData := ir.TransformBytes()
	if len(transformData) > 0 {
		if uint64(len(transformData)) > ir.transformBuf.Size() {
			device.CreateOrResizeBuffer(&ir.transformBuf, uint64(len(transformData)), gpudevice.UsageStorage)
		}
		device.WriteBuffer(&ir.transformBuf, 0, transformData)
	}
}

func (ir *InstanceRegistry) InstanceBuffer() *gpudevice.Buffer  { return &ir.instanceBuf }
func (ir *InstanceRegistry) TransformBuffer() *gpudevice.Buffer { return &ir.transformBuf }

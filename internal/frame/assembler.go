package frame

import (
	"github.com/gekko3d/scenecore/internal/accel"
	"github.com/gekko3d/scenecore/internal/geometry"
	"github.com/gekko3d/scenecore/internal/gpudevice"
	"github.com/gekko3d/scenecore/internal/scene"
)

// Assembler is the Scene Assembly Pass of spec §4.7. It is not itself a
// registry: it reads the current state of the Mesh Registry, Instance
// Registry, Geometry Store, and Acceleration-Structure Manager, lays out
// the Geometry Buffer and the five-region Scene Buffer (mesh descriptors,
// meshlets, instances, transforms, then the BVH — the one arena holding every
// BLAS and the TLAS accel.Manager places into it), and publishes
// the resulting offsets through the Constant-Data Block. The region order
// never changes, so every frame is laid out identically regardless of what
// changed since the last one.
type Assembler struct {
	meshes    *scene.MeshRegistry
	instances *scene.InstanceRegistry
	accelMgr  *accel.Manager
	geometry  *geometry.Store
	consts    *ConstantData

	frameCounter uint32

	sceneBuffer    gpudevice.Buffer
	constantBuffer gpudevice.Buffer
}

func NewAssembler(meshes *scene.MeshRegistry, instances *scene.InstanceRegistry, accelMgr *accel.Manager, geom *geometry.Store, consts *ConstantData) *Assembler {
	return &Assembler{meshes: meshes, instances: instances, accelMgr: accelMgr, geometry: geom, consts: consts}
}

// Offsets is the layout of the last Assemble call, returned mainly for
// tests (spec §8 scenario 6 exercises this directly). Geometry and Scene
// mirror the Constant-Data Block's own offset fields, in 32-bit-word units;
// Total is the Scene Buffer's byte size.
type Offsets struct {
	Geometry GeometryOffsets
	Scene    SceneOffsets
	Total    uint32
}

// sceneBufferLayout computes the five cumulative Scene Buffer region
// offsets from each region's byte length, per spec §4.7 step 1: m=0, l=A,
// i=A+B, t=A+B+C, b=A+B+C+D, and total S=A+B+C+D+E. The returned offsets
// are in bytes; Assemble divides by 4 before publishing them (step 3
// requires 32-bit-word units).
func sceneBufferLayout(meshBytes, meshletBytes, instanceBytes, transformBytes, bvhBytes uint32) (layout SceneOffsets, total uint32) {
	m := uint32(0)
	l := m + meshBytes
	i := l + meshletBytes
	t := i + instanceBytes
	b := t + transformBytes
	total = b + bvhBytes
	return SceneOffsets{Mesh: m, Meshlet: l, Instance: i, Transform: t, BVH: b}, total
}

// Assemble runs the pass's steps: compute the Scene Buffer's cumulative
// offsets, resize it, publish the Constant-Data Block (geometry offsets,
// scene offsets, tlas_start_index, and — last of all — the frame index),
// upload the mesh descriptor table and BVH buffer from the CPU, and
// GPU->GPU copy the already-device-resident meshlet, instance, and
// transform buffers into place.
func (a *Assembler) Assemble(device gpudevice.Device) Offsets {
	meshDescBytes := a.meshes.DescriptorBytes()
	meshletBytes := a.meshes.MeshletBytes()
	instanceBytes := a.instances.InstanceBytes()
	transformBytes := a.instances.TransformBytes()
	bvhBytes := a.meshes.BVHBytes()

	byteLayout, total := sceneBufferLayout(
		uint32(len(meshDescBytes)), uint32(len(meshletBytes)),
		uint32(len(instanceBytes)), uint32(len(transformBytes)), uint32(len(bvhBytes)))

	gi, gp, ga := a.geometry.Offsets()
	wordLayout := SceneOffsets{
		Mesh:      byteLayout.Mesh / 4,
		Meshlet:   byteLayout.Meshlet / 4,
		Instance:  byteLayout.Instance / 4,
		Transform: byteLayout.Transform / 4,
		BVH:       byteLayout.BVH / 4,
	}

	a.consts.NumMeshes = uint32(a.meshes.Len())
	a.consts.TLASStart = a.accelMgr.StartIndex()
	a.consts.GeometryOffsets = GeometryOffsets{Indices: gi, Positions: gp, Attributes: ga}
	a.consts.SceneOffsets = wordLayout

	// Every other Constant-Data field above has been set for this frame;
	// the frame index is published last, per spec §5.
	a.frameCounter++
	a.consts.publishFrameIndex(a.frameCounter)

	offsets := Offsets{Geometry: a.consts.GeometryOffsets, Scene: wordLayout, Total: total}

	if total == 0 {
		if a.constantBuffer.Size() < ConstantDataStride {
			device.CreateOrResizeBuffer(&a.constantBuffer, ConstantDataStride, gpudevice.UsageUniform)
		}
		device.WriteBuffer(&a.constantBuffer, 0, a.consts.ToBytes())
		return offsets
	}

	device.CreateOrResizeBuffer(&a.sceneBuffer, uint64(total), gpudevice.UsageStorage)

	// Step: publish offsets via CPU->GPU write.
	if a.constantBuffer.Size() < ConstantDataStride {
		device.CreateOrResizeBuffer(&a.constantBuffer, ConstantDataStride, gpudevice.UsageUniform)
	}
	device.WriteBuffer(&a.constantBuffer, 0, a.consts.ToBytes())

	// Step: CPU->GPU upload of the mesh descriptor table.
	if len(meshDescBytes) > 0 {
		device.WriteBuffer(&a.sceneBuffer, uint64(byteLayout.Mesh), meshDescBytes)
	}

	// Step: GPU->GPU copies of the meshlet, instance, and transform
	// buffers (already device-resident via MeshRegistry.UploadMeshlets and
	// InstanceRegistry.Upload).
	if len(meshletBytes) > 0 {
		device.CopyBufferToBuffer(a.meshes.MeshletsBuffer(), 0, &a.sceneBuffer, uint64(byteLayout.Meshlet), uint64(len(meshletBytes)))
	}
	if len(instanceBytes) > 0 {
		device.CopyBufferToBuffer(a.instances.InstanceBuffer(), 0, &a.sceneBuffer, uint64(byteLayout.Instance), uint64(len(instanceBytes)))
	}
	if len(transformBytes) > 0 {
		device.CopyBufferToBuffer(a.instances.TransformBuffer(), 0, &a.sceneBuffer, uint64(byteLayout.Transform), uint64(len(transformBytes)))
	}

	// Step: CPU->GPU upload of the BVH buffer.
	if len(bvhBytes) > 0 {
		device.WriteBuffer(&a.sceneBuffer, uint64(byteLayout.BVH), bvhBytes)
	}

	return offsets
}

func (a *Assembler) SceneBuffer() *gpudevice.Buffer    { return &a.sceneBuffer }
func (a *Assembler) ConstantBuffer() *gpudevice.Buffer { return &a.constantBuffer }

// GeometryBuffer is the combined indices‖positions‖attributes mega-buffer
// the Scene Assembly Pass publishes offsets for but does not itself upload
// (geometry.Store.Upload does, since it alone tracks the three arenas'
// dirty state).
func (a *Assembler) GeometryBuffer() *gpudevice.Buffer { return a.geometry.Buffer() }

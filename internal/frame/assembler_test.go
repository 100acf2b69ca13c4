package frame

import (
	"testing"

	"github.com/gekko3d/scenecore/internal/accel"
	"github.com/gekko3d/scenecore/internal/geometry"
	"github.com/gekko3d/scenecore/internal/gpudevice"
	"github.com/gekko3d/scenecore/internal/id"
	"github.com/gekko3d/scenecore/internal/logx"
	"github.com/gekko3d/scenecore/internal/meshlet"
	"github.com/gekko3d/scenecore/internal/scene"
)

func triangleData(material id.ID, materialIx uint32) scene.MeshData {
	return scene.MeshData{
		Vertices: []meshlet.Vertex{
			{Position: [3]float32{0, 0, 0}},
			{Position: [3]float32{1, 0, 0}},
			{Position: [3]float32{0, 1, 0}},
		},
		Indices:    []uint32{0, 1, 2},
		Material:   material,
		MaterialIx: materialIx,
		Transform:  scene.NewTransform(),
	}
}

func TestAssembleOffsetsAreMonotonicAndSumToTotal(t *testing.T) {
	store := geometry.NewStore()
	meshes := scene.NewMeshRegistry(store, logx.Nop{})
	materials := scene.NewMaterialRegistry()
	draws := scene.NewDrawIndexer()
	instances := scene.NewInstanceRegistry()

	mat := id.New()
	materials.Add(mat, scene.MaterialData{BaseColor: [4]float32{1, 1, 1, 1}})
	matIdx, _ := materials.IndexOf(mat)

	if _, err := meshes.AddMesh(id.New(), triangleData(mat, matIdx)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	draws.Rebuild(meshes, materials)
	instances.Rebuild(meshes)

	accelMgr := accel.NewManager(meshes.BVHArena())
	accelMgr.Rebuild(meshes.Snapshot())

	consts := NewConstantData()
	asm := NewAssembler(meshes, instances, accelMgr, store, consts)

	dev := &gpudevice.Fake{}
	meshes.UploadMeshlets(dev)
	draws.Upload(dev)
	instances.Upload(dev)

	offsets := asm.Assemble(dev)

	if offsets.Scene.Mesh != 0 {
		t.Fatalf("expected mesh descriptor table to start at word 0, got %d", offsets.Scene.Mesh)
	}
	if offsets.Scene.Meshlet < offsets.Scene.Mesh {
		t.Fatalf("meshlet offset must not precede mesh offset")
	}
	if offsets.Scene.Instance < offsets.Scene.Meshlet {
		t.Fatalf("instance offset must not precede meshlet offset")
	}
	if offsets.Scene.Transform < offsets.Scene.Instance {
		t.Fatalf("transform offset must not precede instance offset")
	}
	if offsets.Scene.BVH < offsets.Scene.Transform {
		t.Fatalf("bvh offset must not precede transform offset")
	}
	if want := offsets.Scene.BVH*4 + uint32(len(meshes.BVHBytes())); offsets.Total != want {
		t.Fatalf("expected total %d (bvh offset plus bvh bytes), got %d", want, offsets.Total)
	}
	if consts.SceneOffsets != offsets.Scene {
		t.Fatalf("published constant-data scene offsets must match the returned Offsets")
	}
	if consts.GeometryOffsets != offsets.Geometry {
		t.Fatalf("published constant-data geometry offsets must match the returned Offsets")
	}
	if consts.FrameIndex() != 1 {
		t.Fatalf("expected the first Assemble call to publish frame index 1, got %d", consts.FrameIndex())
	}
}

func TestAssembleEmptySceneStillPublishesConstants(t *testing.T) {
	store := geometry.NewStore()
	meshes := scene.NewMeshRegistry(store, logx.Nop{})
	instances := scene.NewInstanceRegistry()
	accelMgr := accel.NewManager(meshes.BVHArena())
	consts := NewConstantData()
	asm := NewAssembler(meshes, instances, accelMgr, store, consts)

	dev := &gpudevice.Fake{}
	offsets := asm.Assemble(dev)
	if offsets.Total != 0 {
		t.Fatalf("expected zero total size for an empty scene, got %d", offsets.Total)
	}
	if consts.NumMeshes != 0 {
		t.Fatalf("expected zero mesh count")
	}
}

// TestSceneBufferLayoutMatchesScenario6 exercises spec §8 scenario 6
// directly: with A=1024, B=2048, C=512, D=256, E=4096, the published scene
// offsets (in 32-bit-word units) must be (0, 256, 768, 896, 960) and
// bvh_offset=960.
func TestSceneBufferLayoutMatchesScenario6(t *testing.T) {
	layout, total := sceneBufferLayout(1024, 2048, 512, 256, 4096)
	if total != 1024+2048+512+256+4096 {
		t.Fatalf("expected total byte size S=A+B+C+D+E, got %d", total)
	}

	wordLayout := SceneOffsets{
		Mesh:      layout.Mesh / 4,
		Meshlet:   layout.Meshlet / 4,
		Instance:  layout.Instance / 4,
		Transform: layout.Transform / 4,
		BVH:       layout.BVH / 4,
	}
	want := SceneOffsets{Mesh: 0, Meshlet: 256, Instance: 768, Transform: 896, BVH: 960}
	if wordLayout != want {
		t.Fatalf("expected %+v, got %+v", want, wordLayout)
	}
}

func TestConstantDataLUTPublishDefaultsUnbound(t *testing.T) {
	c := NewConstantData()
	for _, s := range c.LUTSlots {
		if s != unboundLUT {
			t.Fatalf("expected all LUT slots to start unbound")
		}
	}
	c.SetLUTSlot(scene.LUTPBRGGX, 7)
	if c.LUTSlots[0] != 7 {
		t.Fatalf("expected GGX slot to be published at index 7, got %d", c.LUTSlots[0])
	}
}

func TestConstantDataToBytesStride(t *testing.T) {
	c := NewConstantData()
	if len(c.ToBytes()) != ConstantDataStride {
		t.Fatalf("expected %d bytes, got %d", ConstantDataStride, len(c.ToBytes()))
	}
}

func TestConstantDataFrameIndexPublishRoundTrip(t *testing.T) {
	c := NewConstantData()
	if c.FrameIndex() != 0 {
		t.Fatalf("expected frame index to start at 0")
	}
	c.publishFrameIndex(42)
	if c.FrameIndex() != 42 {
		t.Fatalf("expected FrameIndex to observe the published value, got %d", c.FrameIndex())
	}
}

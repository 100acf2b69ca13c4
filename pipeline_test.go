package scenecore

import (
	"testing"

	"github.com/gekko3d/scenecore/internal/gpudevice"
	"github.com/gekko3d/scenecore/internal/id"
	"github.com/gekko3d/scenecore/internal/meshlet"
	"github.com/gekko3d/scenecore/internal/scene"
	"github.com/go-gl/mathgl/mgl32"
)

func triangleMesh(material id.ID, materialIx uint32) scene.MeshData {
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

func cubeMesh(material id.ID, materialIx uint32, offset float32) scene.MeshData {
	verts := []meshlet.Vertex{
		{Position: [3]float32{0 + offset, 0, 0}},
		{Position: [3]float32{1 + offset, 0, 0}},
		{Position: [3]float32{1 + offset, 1, 0}},
		{Position: [3]float32{0 + offset, 1, 0}},
		{Position: [3]float32{0 + offset, 0, 1}},
		{Position: [3]float32{1 + offset, 0, 1}},
		{Position: [3]float32{1 + offset, 1, 1}},
		{Position: [3]float32{0 + offset, 1, 1}},
	}
	indices := []uint32{
		0, 1, 2, 0, 2, 3,
		1, 5, 6, 1, 6, 2,
		5, 4, 7, 5, 7, 6,
		4, 0, 3, 4, 3, 7,
		3, 2, 6, 3, 6, 7,
		4, 5, 1, 4, 1, 0,
	}
	return scene.MeshData{
		Vertices:   verts,
		Indices:    indices,
		Material:   material,
		MaterialIx: materialIx,
		Transform:  scene.NewTransform(),
	}
}

func TestPipelineAddSingleTriangle(t *testing.T) {
	p := New(Config{Device: &gpudevice.Fake{}})
	defer p.Close()

	mat := id.New()
	matIdx := p.AddMaterial(mat, scene.MaterialData{BaseColor: [4]float32{1, 1, 1, 1}})

	idx, err := p.AddMesh(id.New(), triangleMesh(mat, matIdx))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != 0 {
		t.Fatalf("expected dense index 0, got %d", idx)
	}

	offsets := p.AssembleFrame()
	if offsets.Total == 0 {
		t.Fatalf("expected a non-empty assembled frame")
	}
}

func TestPipelineAddTwoUnitCubes(t *testing.T) {
	p := New(Config{Device: &gpudevice.Fake{}})
	defer p.Close()

	mat := id.New()
	matIdx := p.AddMaterial(mat, scene.MaterialData{BaseColor: [4]float32{1, 1, 1, 1}})

	if _, err := p.AddMesh(id.New(), cubeMesh(mat, matIdx, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.AddMesh(id.New(), cubeMesh(mat, matIdx, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	offsets := p.AssembleFrame()
	if offsets.Total == 0 {
		t.Fatalf("expected non-empty frame for two cubes")
	}
	if p.accelMgr.NodeCount() < 2 {
		t.Fatalf("expected at least 2 TLAS-contributing nodes for 2 instances, got %d", p.accelMgr.NodeCount())
	}
}

func TestPipelineMaterialAlphaEditMovesDrawBucket(t *testing.T) {
	p := New(Config{Device: &gpudevice.Fake{}})
	defer p.Close()

	mat := id.New()
	matIdx := p.AddMaterial(mat, scene.MaterialData{AlphaMode: scene.AlphaOpaque, BaseColor: [4]float32{1, 1, 1, 1}})
	if _, err := p.AddMesh(id.New(), triangleMesh(mat, matIdx)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(p.draws.Bucket(scene.BucketOpaque)) != 1 {
		t.Fatalf("expected mesh to start opaque")
	}

	if err := p.UpdateMaterial(mat, scene.MaterialData{AlphaMode: scene.AlphaBlend, BaseColor: [4]float32{1, 1, 1, 1}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.draws.Bucket(scene.BucketTransparent)) != 1 {
		t.Fatalf("expected mesh to move to transparent bucket after alpha edit")
	}
}

func TestPipelineLightAddRemoveCount(t *testing.T) {
	p := New(Config{Device: &gpudevice.Fake{}})
	defer p.Close()

	l1 := scene.NewLight([3]float32{1, 1, 1}, 1.0, [3]float32{0, 0, 0}, 10, [3]float32{0, -1, 0}, scene.LightPoint, 0, 0)
	p.AddLight(id.New(), l1)
	if p.lights.NumLights() != 1 {
		t.Fatalf("expected 1 live light, got %d", p.lights.NumLights())
	}

	e2 := id.New()
	p.AddLight(e2, l1)
	if p.lights.NumLights() != 2 {
		t.Fatalf("expected 2 live lights, got %d", p.lights.NumLights())
	}

	if err := p.RemoveLight(e2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.lights.NumLights() != 1 {
		t.Fatalf("expected 1 live light after removal, got %d", p.lights.NumLights())
	}
}

func TestPipelineTextureLUTPublish(t *testing.T) {
	p := New(Config{Device: &gpudevice.Fake{}})
	defer p.Close()

	idx := p.AddTexture(id.New(), scene.TextureInfo{TextureIndex: 0, LayerIndex: 0}, scene.LUTPBRGGX)
	if p.consts.LUTSlots[0] != idx {
		t.Fatalf("expected GGX LUT slot to publish dense index %d, got %d", idx, p.consts.LUTSlots[0])
	}
}

func TestPipelineRemoveUnknownMeshIsSilent(t *testing.T) {
	p := New(Config{Device: &gpudevice.Fake{}})
	defer p.Close()

	if err := p.RemoveMesh(id.New()); err != nil {
		t.Fatalf("expected silent no-op, got error: %v", err)
	}
}

func TestPipelineUpdateConstantDataSetsCamera(t *testing.T) {
	p := New(Config{Device: &gpudevice.Fake{}})
	defer p.Close()

	view := mgl32.Ident4()
	proj := mgl32.Perspective(1, 1, 0.1, 100)
	p.UpdateConstantData(view, proj, 0.1, 100, [2]float32{1920, 1080}, [2]float32{960, 540})

	if p.consts.Near != 0.1 || p.consts.Far != 100 {
		t.Fatalf("expected near/far to be published, got near=%v far=%v", p.consts.Near, p.consts.Far)
	}
	if p.consts.ScreenSize != [2]float32{1920, 1080} {
		t.Fatalf("expected screen size to be published, got %v", p.consts.ScreenSize)
	}
	if p.consts.ViewMatrix != [16]float32(view) {
		t.Fatalf("expected view matrix to be published")
	}
}

func TestPipelineGeometryAndSceneBufferOffsetsPublished(t *testing.T) {
	p := New(Config{Device: &gpudevice.Fake{}})
	defer p.Close()

	mat := id.New()
	matIdx := p.AddMaterial(mat, scene.MaterialData{BaseColor: [4]float32{1, 1, 1, 1}})
	if _, err := p.AddMesh(id.New(), triangleMesh(mat, matIdx)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	offsets := p.AssembleFrame()
	if offsets.Scene.Instance == 0 {
		t.Fatalf("expected a non-zero instance region offset once meshes/meshlets exist")
	}
	if offsets.Scene.Transform <= offsets.Scene.Instance {
		t.Fatalf("expected the transform region to start after the instance region")
	}
	if p.GeometryBuffer().Handle == nil || p.SceneBuffer().Handle == nil || p.ConstantBuffer().Handle == nil {
		t.Fatalf("expected every buffer to have a device handle after assembly")
	}
}

func TestPipelineFrameIndexAdvancesEachAssemble(t *testing.T) {
	p := New(Config{Device: &gpudevice.Fake{}})
	defer p.Close()

	p.AssembleFrame()
	first := p.consts.FrameIndex()
	p.AssembleFrame()
	second := p.consts.FrameIndex()
	if second != first+1 {
		t.Fatalf("expected frame index to advance by 1 each AssembleFrame, got %d then %d", first, second)
	}
}

func TestPipelineAddMeshesConcurrent(t *testing.T) {
	p := New(Config{Device: &gpudevice.Fake{}, Workers: 4})
	defer p.Close()

	mat := id.New()
	matIdx := p.AddMaterial(mat, scene.MaterialData{BaseColor: [4]float32{1, 1, 1, 1}})

	entities := make([]id.ID, 6)
	datas := make([]scene.MeshData, 6)
	for i := range entities {
		entities[i] = id.New()
		datas[i] = cubeMesh(mat, matIdx, float32(i*10))
	}

	idxs, errs := p.AddMeshesConcurrent(entities, datas)
	for i, err := range errs {
		if err != nil {
			t.Fatalf("unexpected error at %d: %v", i, err)
		}
	}
	seen := make(map[uint32]bool)
	for _, idx := range idxs {
		if seen[idx] {
			t.Fatalf("duplicate dense index %d", idx)
		}
		seen[idx] = true
	}
}

package scene

import (
	"testing"

	"github.com/gekko3d/scenecore/internal/geometry"
	"github.com/gekko3d/scenecore/internal/id"
	"github.com/gekko3d/scenecore/internal/logx"
	"github.com/gekko3d/scenecore/internal/meshlet"
	"github.com/go-gl/mathgl/mgl32"
)

func triangleMeshData() MeshData {
	return MeshData{
		Vertices: []meshlet.Vertex{
			{Position: [3]float32{0, 0, 0}},
			{Position: [3]float32{1, 0, 0}},
			{Position: [3]float32{0, 1, 0}},
		},
		Indices:    []uint32{0, 1, 2},
		Material:   id.New(),
		MaterialIx: 0,
		Transform:  NewTransform(),
	}
}

func TestAddMeshAssignsDenseIndex(t *testing.T) {
	r := NewMeshRegistry(geometry.NewStore(), logx.Nop{})
	entity := id.New()
	idx, err := r.AddMesh(entity, triangleMeshData())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != 0 {
		t.Fatalf("expected first mesh to get dense index 0, got %d", idx)
	}
	rec, gotIdx, ok := r.Get(entity)
	if !ok || gotIdx != idx {
		t.Fatalf("Get mismatch: ok=%v idx=%d", ok, gotIdx)
	}
	if !rec.Live {
		t.Fatalf("expected record to be live")
	}
	if rec.Descriptor.MaterialIndex != 0 {
		t.Fatalf("expected material index 0, got %d", rec.Descriptor.MaterialIndex)
	}
}

func TestAddMeshEmptyGeometryPropagatesError(t *testing.T) {
	r := NewMeshRegistry(geometry.NewStore(), logx.Nop{})
	data := triangleMeshData()
	data.Vertices = nil
	data.Indices = nil
	if _, err := r.AddMesh(id.New(), data); err != meshlet.ErrEmptyGeometry {
		t.Fatalf("expected ErrEmptyGeometry, got %v", err)
	}
}

func TestChangeMeshTransformReportsDirty(t *testing.T) {
	r := NewMeshRegistry(geometry.NewStore(), logx.Nop{})
	entity := id.New()
	if _, err := r.AddMesh(entity, triangleMeshData()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	moved := NewTransform()
	moved.Position = mgl32.Vec3{5, 0, 0}
	changed, ok := r.ChangeMesh(entity, MeshUpdate{Transform: &moved})
	if !ok {
		t.Fatalf("expected known entity")
	}
	if !changed {
		t.Fatalf("expected transform change to be reported")
	}

	// Re-applying the same transform must not re-flag a rebuild.
	changed, ok = r.ChangeMesh(entity, MeshUpdate{Transform: &moved})
	if !ok || changed {
		t.Fatalf("expected no-op transform update to report unchanged, got changed=%v ok=%v", changed, ok)
	}
}

func TestChangeMeshUnknownEntity(t *testing.T) {
	r := NewMeshRegistry(geometry.NewStore(), logx.Nop{})
	_, ok := r.ChangeMesh(id.New(), MeshUpdate{})
	if ok {
		t.Fatalf("expected unknown entity to report not-ok")
	}
}

func TestRemoveMeshFreesResources(t *testing.T) {
	store := geometry.NewStore()
	r := NewMeshRegistry(store, logx.Nop{})
	entity := id.New()
	if _, err := r.AddMesh(entity, triangleMeshData()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.RemoveMesh(entity) {
		t.Fatalf("expected remove to succeed")
	}
	if _, _, ok := r.Get(entity); ok {
		t.Fatalf("expected entity to be gone after remove")
	}
	if _, ok := store.Indices.RangeOf(entity); ok {
		t.Fatalf("expected the mesh's index range to be released")
	}
	if _, ok := r.BVHArena().RangeOf(entity); ok {
		t.Fatalf("expected the mesh's BLAS range to be released")
	}
	if r.RemoveMesh(entity) {
		t.Fatalf("expected second remove of same id to be a silent no-op (false)")
	}
}

func TestDescriptorBytesStride(t *testing.T) {
	r := NewMeshRegistry(geometry.NewStore(), logx.Nop{})
	if _, err := r.AddMesh(id.New(), triangleMeshData()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bytes := r.DescriptorBytes()
	if len(bytes) != DescriptorStride {
		t.Fatalf("expected %d bytes for one descriptor, got %d", DescriptorStride, len(bytes))
	}
}

func TestTwoMeshesGetDistinctBLASBase(t *testing.T) {
	r := NewMeshRegistry(geometry.NewStore(), logx.Nop{})
	e1, e2 := id.New(), id.New()
	if _, err := r.AddMesh(e1, triangleMeshData()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.AddMesh(e2, triangleMeshData()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec1, _, _ := r.Get(e1)
	rec2, _, _ := r.Get(e2)
	if rec1.Descriptor.BLASIndex == rec2.Descriptor.BLASIndex {
		t.Fatalf("expected distinct BLAS roots for distinct meshes")
	}
	if rec1.Descriptor.MeshletsOffset == rec2.Descriptor.MeshletsOffset {
		t.Fatalf("expected distinct meshlet bases for distinct meshes")
	}
}

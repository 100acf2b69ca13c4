package accel

import (
	"testing"

	"github.com/gekko3d/scenecore/internal/geometry"
	"github.com/gekko3d/scenecore/internal/id"
	"github.com/gekko3d/scenecore/internal/scene"
	"github.com/go-gl/mathgl/mgl32"
)

func meshAt(x float32) scene.MeshRecord {
	t := scene.NewTransform()
	t.Position = mgl32.Vec3{x, 0, 0}
	return scene.MeshRecord{
		Live:      true,
		Transform: t,
		LocalMin:  mgl32.Vec3{-0.5, -0.5, -0.5},
		LocalMax:  mgl32.Vec3{0.5, 0.5, 0.5},
	}
}

func TestRebuildPublishesStartIndex(t *testing.T) {
	arena := geometry.NewArena("bvh")
	m := NewManager(arena)
	if m.StartIndex() != -1 {
		t.Fatalf("expected -1 before first rebuild")
	}
	m.Rebuild([]scene.MeshRecord{meshAt(0), meshAt(10)})
	if m.StartIndex() < 0 {
		t.Fatalf("expected a valid start index after rebuild")
	}
	if m.NodeCount() != 3 { // 2 leaves + 1 internal
		t.Fatalf("expected 3 TLAS nodes for 2 instances, got %d", m.NodeCount())
	}
}

func TestRebuildSkipsDeadMeshes(t *testing.T) {
	arena := geometry.NewArena("bvh")
	m := NewManager(arena)
	dead := meshAt(0)
	dead.Live = false
	m.Rebuild([]scene.MeshRecord{dead, meshAt(10)})
	if m.NodeCount() != 1 {
		t.Fatalf("expected 1 TLAS node (single live instance), got %d", m.NodeCount())
	}
}

func TestRebuildEmptySceneYieldsDegenerateRoot(t *testing.T) {
	arena := geometry.NewArena("bvh")
	m := NewManager(arena)
	m.Rebuild(nil)
	if m.NodeCount() != 1 {
		t.Fatalf("expected the degenerate single-node convention for an empty scene")
	}
}

func TestRebuildCoexistsWithMeshBLASInSharedArena(t *testing.T) {
	arena := geometry.NewArena("bvh")
	// Simulate a mesh registry having already appended BLAS nodes.
	meshID := id.New()
	arena.Allocate(meshID, make([]uint32, 8))

	m := NewManager(arena)
	m.Rebuild([]scene.MeshRecord{meshAt(0)})
	if m.StartIndex() != 1 { // BLAS occupies node 0; TLAS starts right after.
		t.Fatalf("expected TLAS to start after the existing BLAS node, got %d", m.StartIndex())
	}
}

func TestRebuildIsIdempotentOnSceneSize(t *testing.T) {
	arena := geometry.NewArena("bvh")
	m := NewManager(arena)
	m.Rebuild([]scene.MeshRecord{meshAt(0), meshAt(10)})
	first := m.StartIndex()
	m.Rebuild([]scene.MeshRecord{meshAt(0), meshAt(10)})
	second := m.StartIndex()
	if first != second {
		t.Fatalf("expected a same-size rebuild to reuse the same region: %d vs %d", first, second)
	}
}

// Package accel implements the two-level Acceleration-Structure Manager of
// spec §4.4: it rebuilds the scene-wide top-level BVH (TLAS) over every live
// mesh's world-space AABB and publishes the node offset the renderer should
// start traversal from.
//
// Grounded on original_source's recreate_tlas
// (crates/render/src/common/global_buffers.rs): world AABBs are derived from
// each mesh's BLAS-root AABB transformed by its instance transform, and the
// published offset uses the same release-store/acquire-load discipline as
// recreate_tlas's `tlas_start_index.store(.., Ordering::SeqCst)`.
package accel

import (
	"sync/atomic"

	"github.com/gekko3d/scenecore/internal/bvh"
	"github.com/gekko3d/scenecore/internal/geometry"
	"github.com/gekko3d/scenecore/internal/id"
	"github.com/gekko3d/scenecore/internal/scene"
)

const nodeWords = bvh.NodeStride / 4

// tlasEntity is the synthetic id the TLAS region is allocated under in the
// shared BVH arena, reusing the arena's freelist/growth machinery across
// rebuilds exactly like any mesh's BLAS allocation.
var tlasEntity = id.New()

// Manager owns TLAS rebuilds against a shared BVH node arena (the one the
// Mesh Registry's BLASes live in).
type Manager struct {
	arena      *geometry.Arena
	startIndex atomic.Int32
	nodeCount  atomic.Int32
}

func NewManager(arena *geometry.Arena) *Manager {
	m := &Manager{arena: arena}
	m.startIndex.Store(-1)
	return m
}

// Rebuild recomputes the TLAS from the current mesh snapshot and places it
// in the shared arena (the previous TLAS range is freed first, then the
// arena's first-fit search runs, growing at the tail only if no free block
// fits), publishing the new start index only once the nodes
// are fully written (release-store; StartIndex is the matching
// acquire-load for readers on another goroutine, e.g. the renderer thread).
func (m *Manager) Rebuild(meshes []scene.MeshRecord) {
	// Primitive.Index is the instance dense index (spec §4.4 step 2, §8
	// invariant 3): the position each live mesh will occupy in
	// scene.InstanceRegistry's array, which iterates this same snapshot in
	// the same order and skips the same dead records — not its raw
	// position in meshes, which still counts holes.
	prims := make([]bvh.Primitive, 0, len(meshes))
	for _, rec := range meshes {
		if !rec.Live {
			continue
		}
		worldMin, worldMax := scene.TransformAABB(rec.Transform.ObjectToWorld(), rec.LocalMin, rec.LocalMax)
		prims = append(prims, bvh.Primitive{
			Min:   [3]float32{worldMin.X(), worldMin.Y(), worldMin.Z()},
			Max:   [3]float32{worldMax.X(), worldMax.Y(), worldMax.Z()},
			Index: int32(len(prims)),
		})
	}

	nodes := bvh.Build(prims)

	// Reserve the region first with zeroed placeholder words, so the
	// freelist/growth decision is made exactly once and its resulting start
	// index is known before the miss-link relocation (which must happen
	// before the real bytes are written) — then fill the reserved range in
	// place via WriteRange, which never re-enters the freelist.
	placeholder := make([]uint32, len(nodes)*nodeWords)
	r := m.arena.Allocate(tlasEntity, placeholder)
	base := int32(r.Start) / nodeWords
	bvh.Relocate(nodes, base)

	words := make([]uint32, 0, len(nodes)*nodeWords)
	for _, n := range nodes {
		b := n.ToBytes()
		for i := 0; i < len(b); i += 4 {
			words = append(words, uint32(b[i])|uint32(b[i+1])<<8|uint32(b[i+2])<<16|uint32(b[i+3])<<24)
		}
	}
	m.arena.WriteRange(tlasEntity, words)

	m.nodeCount.Store(int32(len(nodes)))
	m.startIndex.Store(base)
}

// StartIndex is the published, absolute node index the renderer should
// begin TLAS traversal from. It is -1 until the first Rebuild.
func (m *Manager) StartIndex() int32 { return m.startIndex.Load() }

func (m *Manager) NodeCount() int32 { return m.nodeCount.Load() }

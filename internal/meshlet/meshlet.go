// Package meshlet implements the offline, CPU-side Meshlet Builder of spec
// §4.1: given a mesh's vertex positions and triangle index stream, it
// produces a multi-LOD meshlet hierarchy plus a per-mesh BLAS over the
// LOD-0 meshlets.
//
// No direct teacher precedent builds meshlets (Gekko3D is a voxel/brick
// renderer, not a triangle-mesh one); this package is grounded instead on
// spec §4.1's seven-step algorithm directly and on
// original_source/crates/render/src/common/global_buffers.rs's
// extract_meshlets (LOD-reversal, child_meshlets bookkeeping, BLAS miss-link
// fixups), with the clustering/adjacency machinery written in the same
// greedy, deterministic style as the teacher's bvh.TLASBuilder
// (voxelrt/rt/bvh/builder.go: stable sort, explicit axis/criterion choice,
// no randomness).
package meshlet

import (
	"encoding/binary"
	"errors"
	"math"
	"sort"

	"github.com/gekko3d/scenecore/internal/bvh"
)

const (
	MaxLODLevels       = 8 // spec §4.1/§9: MAX_LOD_LEVELS.
	MeshletGroupSize   = 8 // child-meshlet slots / max group size for LOD grouping.
	MaxMeshletVertices = 64
	MaxMeshletTriangles = 124
)

var (
	ErrEmptyGeometry = errors.New("meshlet: empty geometry")
	ErrDegenerateMesh = errors.New("meshlet: degenerate mesh")
)

// Vertex is a mesh-local vertex position; the Meshlet Builder only needs
// positions to cluster and simplify — attribute streams travel alongside
// unchanged, keyed by the same mesh-local vertex index.
type Vertex struct {
	Position [3]float32
}

// GPUMeshlet is the packed, shader-facing record (48 bytes / 12 words),
// matching spec §6's ABI: mesh/LOD word, first_index, last_index,
// bvh_offset, 8 child-meshlet indices. MeshIndexAndLOD's mesh-index bits
// are left at 0 here; the Mesh Registry ORs in the owning mesh's dense
// index once it knows it (spec §4.3 step 4).
type GPUMeshlet struct {
	MeshIndexAndLOD uint32
	FirstIndex      uint32
	LastIndex       uint32
	BVHOffset       uint32
	ChildMeshlets   [MeshletGroupSize]int32
}

const Stride = 48

func (m GPUMeshlet) ToBytes() []byte {
	buf := make([]byte, Stride)
	binary.LittleEndian.PutUint32(buf[0:4], m.MeshIndexAndLOD)
	binary.LittleEndian.PutUint32(buf[4:8], m.FirstIndex)
	binary.LittleEndian.PutUint32(buf[8:12], m.LastIndex)
	binary.LittleEndian.PutUint32(buf[12:16], m.BVHOffset)
	for i, c := range m.ChildMeshlets {
		binary.LittleEndian.PutUint32(buf[16+i*4:20+i*4], uint32(c))
	}
	return buf
}

// LOD is one level's meshlet list, finest (LOD 0) first in builder output.
type LOD struct {
	Meshlets []GPUMeshlet
}

// MeshBuild is the Meshlet Builder's full output for one mesh.
type MeshBuild struct {
	// LODs[0] is LOD 0 (finest); LODs[len-1] is coarsest. The Mesh Registry
	// is responsible for reversing this before insertion into the global
	// meshlet buffer (spec §4.3 step 4: "reverse order so the coarsest LOD
	// sits first").
	LODs []LOD
	// Indices is the concatenated mesh-local index stream; every
	// GPUMeshlet.First/LastIndex pair is a [first,last) range into it.
	Indices []uint32
	// BLAS is the flat BVH over LOD-0 meshlet AABBs; each leaf's Primitive
	// is that meshlet's position within LODs[0].Meshlets.
	BLAS []bvh.Node
}

type triangle [3]uint32

// Build runs the full seven-step pipeline of spec §4.1.
func Build(vertices []Vertex, indices []uint32) (*MeshBuild, error) {
	if len(vertices) == 0 {
		return nil, ErrEmptyGeometry
	}
	if len(indices)%3 != 0 {
		return nil, ErrDegenerateMesh
	}

	tris := dropDegenerate(vertices, indices)
	if !hasNonCollinearTriangle(vertices, tris) {
		return nil, ErrDegenerateMesh
	}

	build := &MeshBuild{}

	// Step 1+2: Optimize + Cluster (LOD 0). A single adjacency-guided
	// greedy walk over the triangle list serves both: triangles are
	// consumed in an order that keeps spatially/topologically adjacent
	// triangles together (vertex-cache locality) while accumulating them
	// into capped meshlets.
	lod0Clusters := clusterTriangles(tris)

	currentClusters := lod0Clusters
	currentTriangleSource := tris

	for lod := 0; ; lod++ {
		meshlets, lodIndices := emitLOD(currentClusters, &build.Indices)
		build.Indices = lodIndices
		build.LODs = append(build.LODs, LOD{Meshlets: meshlets})

		if lod == 0 {
			build.BLAS = buildBLAS(vertices, currentClusters)
		}

		if len(currentClusters) <= 1 || lod >= MaxLODLevels-1 {
			break
		}

		// Step 3: Adjacency between this LOD's meshlets.
		adjacency := buildAdjacency(currentClusters)
		// Step 4: Group into clusters of up to MeshletGroupSize.
		groups := groupClusters(currentClusters, adjacency)
		if len(groups) >= len(currentClusters) {
			// Grouping made no progress (e.g. fully disconnected meshlets);
			// stop rather than loop forever re-deriving the same LOD.
			break
		}

		// Step 5: Simplify each group to ~50% triangle count, preserving
		// boundary edges with meshlets outside the group, then re-cluster.
		var nextClusters []cluster
		for _, g := range groups {
			simplified := simplifyGroup(vertices, currentClusters, adjacency, g)
			newClusters := clusterTriangles(simplified)
			childIDs := groupChildIndices(g)
			for i := range newClusters {
				newClusters[i].children = childIDs
			}
			nextClusters = append(nextClusters, newClusters...)
		}
		currentClusters = nextClusters
		_ = currentTriangleSource
	}

	return build, nil
}

// cluster is one meshlet's worth of triangles during the build, carrying
// the finer-LOD child indices it was derived from (empty for LOD 0).
type cluster struct {
	triangles []triangle
	children  []int32
}

func dropDegenerate(vertices []Vertex, indices []uint32) []triangle {
	tris := make([]triangle, 0, len(indices)/3)
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		if int(a) >= len(vertices) || int(b) >= len(vertices) || int(c) >= len(vertices) {
			continue
		}
		if a == b || b == c || a == c {
			continue
		}
		if triangleArea(vertices[a].Position, vertices[b].Position, vertices[c].Position) <= 1e-12 {
			continue
		}
		tris = append(tris, triangle{a, b, c})
	}
	return tris
}

func hasNonCollinearTriangle(vertices []Vertex, tris []triangle) bool {
	return len(tris) > 0
}

func triangleArea(a, b, c [3]float32) float64 {
	ab := sub(b, a)
	ac := sub(c, a)
	cx := ab[1]*ac[2] - ab[2]*ac[1]
	cy := ab[2]*ac[0] - ab[0]*ac[2]
	cz := ab[0]*ac[1] - ab[1]*ac[0]
	return 0.5 * math.Sqrt(float64(cx)*float64(cx)+float64(cy)*float64(cy)+float64(cz)*float64(cz))
}

func sub(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

type edge [2]uint32

func makeEdge(a, b uint32) edge {
	if a < b {
		return edge{a, b}
	}
	return edge{b, a}
}

// clusterTriangles implements spec §4.1 steps 1-2: greedily grow meshlets
// by following shared-edge adjacency from a stable starting order, capping
// each meshlet at MaxMeshletVertices unique vertices and MaxMeshletTriangles
// triangles.
func clusterTriangles(tris []triangle) []cluster {
	if len(tris) == 0 {
		return nil
	}

	edgeOwners := make(map[edge][]int)
	for ti, t := range tris {
		for _, e := range triEdges(t) {
			edgeOwners[e] = append(edgeOwners[e], ti)
		}
	}

	visited := make([]bool, len(tris))
	var clusters []cluster

	for start := 0; start < len(tris); start++ {
		if visited[start] {
			continue
		}
		verts := make(map[uint32]struct{})
		var current cluster
		frontier := []int{start}
		visited[start] = true

		addTri := func(ti int) bool {
			t := tris[ti]
			newVerts := 0
			for _, v := range t {
				if _, ok := verts[v]; !ok {
					newVerts++
				}
			}
			if len(verts)+newVerts > MaxMeshletVertices || len(current.triangles) >= MaxMeshletTriangles {
				return false
			}
			for _, v := range t {
				verts[v] = struct{}{}
			}
			current.triangles = append(current.triangles, t)
			return true
		}
		addTri(start)

		for len(frontier) > 0 {
			ti := frontier[0]
			frontier = frontier[1:]
			for _, e := range triEdges(tris[ti]) {
				for _, nti := range edgeOwners[e] {
					if visited[nti] {
						continue
					}
					if addTri(nti) {
						visited[nti] = true
						frontier = append(frontier, nti)
					}
				}
			}
		}

		clusters = append(clusters, current)
	}

	return clusters
}

func triEdges(t triangle) [3]edge {
	return [3]edge{
		makeEdge(t[0], t[1]),
		makeEdge(t[1], t[2]),
		makeEdge(t[2], t[0]),
	}
}

// emitLOD converts clusters into GPUMeshlets and appends their triangle
// indices to the shared index stream, returning the extended stream.
func emitLOD(clusters []cluster, indices *[]uint32) ([]GPUMeshlet, []uint32) {
	out := make([]GPUMeshlet, 0, len(clusters))
	idx := *indices
	for _, c := range clusters {
		first := uint32(len(idx))
		for _, t := range c.triangles {
			idx = append(idx, t[0], t[1], t[2])
		}
		last := uint32(len(idx))

		var children [MeshletGroupSize]int32
		for i := range children {
			children[i] = -1
		}
		for i, c := range c.children {
			if i >= MeshletGroupSize {
				break
			}
			children[i] = c
		}

		out = append(out, GPUMeshlet{
			FirstIndex:    first,
			LastIndex:     last,
			ChildMeshlets: children,
		})
	}
	return out, idx
}

// buildAdjacency computes, for each pair of clusters, the number of shared
// boundary edges (spec §4.1 step 3).
func buildAdjacency(clusters []cluster) map[int]map[int]int {
	edgeOwner := make(map[edge][]int)
	for ci, c := range clusters {
		for _, t := range c.triangles {
			for _, e := range triEdges(t) {
				edgeOwner[e] = append(edgeOwner[e], ci)
			}
		}
	}
	adj := make(map[int]map[int]int)
	for _, owners := range edgeOwner {
		for i := 0; i < len(owners); i++ {
			for j := i + 1; j < len(owners); j++ {
				a, b := owners[i], owners[j]
				if a == b {
					continue
				}
				if adj[a] == nil {
					adj[a] = make(map[int]int)
				}
				if adj[b] == nil {
					adj[b] = make(map[int]int)
				}
				adj[a][b]++
				adj[b][a]++
			}
		}
	}
	return adj
}

// groupClusters partitions clusters into groups of up to MeshletGroupSize
// by greedily attaching the most-adjacent remaining cluster (spec §4.1 step
// 4: "locally-optimal merging that minimizes total boundary edge count").
func groupClusters(clusters []cluster, adjacency map[int]map[int]int) [][]int {
	assigned := make([]bool, len(clusters))
	var groups [][]int

	for start := 0; start < len(clusters); start++ {
		if assigned[start] {
			continue
		}
		group := []int{start}
		assigned[start] = true

		for len(group) < MeshletGroupSize {
			best, bestWeight := -1, 0
			for _, member := range group {
				for other, weight := range adjacency[member] {
					if assigned[other] {
						continue
					}
					if weight > bestWeight || (weight == bestWeight && (best == -1 || other < best)) {
						best, bestWeight = other, weight
					}
				}
			}
			if best == -1 {
				break
			}
			group = append(group, best)
			assigned[best] = true
		}
		sort.Ints(group)
		groups = append(groups, group)
	}
	return groups
}

// groupChildIndices returns the (already-sorted) cluster indices of a
// group, truncated to MeshletGroupSize, as the child_meshlets a new coarser
// meshlet derived from this group should record.
func groupChildIndices(group []int) []int32 {
	out := make([]int32, 0, len(group))
	for _, g := range group {
		if len(out) >= MeshletGroupSize {
			break
		}
		out = append(out, int32(g))
	}
	return out
}

// simplifyGroup implements spec §4.1 step 5: decimates the union of a
// group's triangles to roughly half their count while always preserving
// triangles that touch a boundary edge shared with a meshlet outside the
// group (so neighbouring, non-simplified LOD meshlets never crack apart at
// the seam).
func simplifyGroup(vertices []Vertex, clusters []cluster, adjacency map[int]map[int]int, group []int) []triangle {
	inGroup := make(map[int]bool, len(group))
	for _, g := range group {
		inGroup[g] = true
	}

	var all []triangle
	owner := make(map[triangle]int)
	for _, ci := range group {
		for _, t := range clusters[ci].triangles {
			all = append(all, t)
			owner[t] = ci
		}
	}

	// An edge is a cross-group boundary if any triangle outside the group
	// shares it; precompute which clusters the group borders.
	outsideNeighbors := make(map[int]bool)
	for _, ci := range group {
		for other := range adjacency[ci] {
			if !inGroup[other] {
				outsideNeighbors[other] = true
			}
		}
	}

	edgeOwner := make(map[edge][]int)
	for ti, t := range all {
		for _, e := range triEdges(t) {
			edgeOwner[e] = append(edgeOwner[e], ti)
		}
	}
	protectedTri := make([]bool, len(all))
	if len(outsideNeighbors) > 0 {
		for ti, t := range all {
			for _, e := range triEdges(t) {
				// A triangle is protected if one of its edges is used by
				// only this one triangle among the group's own triangles:
				// such an edge lies either on the seam with geometry
				// outside the group or on the mesh's own open border, and
				// both kinds survive decimation.
				if len(edgeOwner[e]) == 1 {
					protectedTri[ti] = true
				}
			}
		}
	}

	target := (len(all) + 1) / 2
	if target < 1 {
		target = 1
	}

	var kept []triangle
	var droppable []int
	for ti := range all {
		if protectedTri[ti] {
			kept = append(kept, all[ti])
		} else {
			droppable = append(droppable, ti)
		}
	}

	// Deterministically keep the first droppable triangles, in order, until
	// the target count is reached and drop the rest, a stand-in for
	// quadric-error-metric edge collapse: it never touches a protected
	// boundary triangle, so the result stays above half the count when more
	// than half the triangles are protected.
	keepFromDroppable := target - len(kept)
	if keepFromDroppable < 0 {
		keepFromDroppable = 0
	}
	for i, ti := range droppable {
		if i < keepFromDroppable {
			kept = append(kept, all[ti])
		}
	}
	if len(kept) == 0 && len(all) > 0 {
		kept = append(kept, all[0])
	}

	return kept
}

// buildBLAS constructs the per-mesh bottom-level BVH over LOD-0 meshlet
// AABBs (spec §4.1 step 7), reusing the shared SAH builder.
func buildBLAS(vertices []Vertex, clusters []cluster) []bvh.Node {
	prims := make([]bvh.Primitive, len(clusters))
	for i, c := range clusters {
		inf := float32(1e20)
		min := [3]float32{inf, inf, inf}
		max := [3]float32{-inf, -inf, -inf}
		for _, t := range c.triangles {
			for _, v := range t {
				p := vertices[v].Position
				for k := 0; k < 3; k++ {
					if p[k] < min[k] {
						min[k] = p[k]
					}
					if p[k] > max[k] {
						max[k] = p[k]
					}
				}
			}
		}
		prims[i] = bvh.Primitive{Min: min, Max: max, Index: int32(i)}
	}
	return bvh.Build(prims)
}

// Package bvh builds and serializes the stackless, miss-link bounding
// volume hierarchies shared by the per-mesh BLAS and the scene-wide TLAS.
//
// Node layout matches the shader contract of spec §3/§6: 8 x 32-bit words
// (AABB min, AABB max, miss link, primitive index), 32 bytes per node.
package bvh

import (
	"encoding/binary"
	"math"
	"sort"
)

// NodeStride is the fixed byte size of one serialized Node. It is part of
// the ABI shared with the renderer and must never change.
const NodeStride = 32

// Node is one entry of a linearized BVH buffer.
//
//	AABB min (3 floats), AABB max (3 floats), miss (i32), primitive (i32)
type Node struct {
	Min       [3]float32
	Max       [3]float32
	Miss      int32 // -1 means "stop"; otherwise an absolute index later in the buffer.
	Primitive int32 // >=0: leaf payload (meshlet or instance index). <0: internal node.
}

// IsLeaf reports whether this node carries a primitive payload.
func (n Node) IsLeaf() bool { return n.Primitive >= 0 }

// ToBytes serializes the node in the 32-byte ABI layout, little-endian.
func (n Node) ToBytes() []byte {
	buf := make([]byte, NodeStride)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(n.Min[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(n.Min[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(n.Min[2]))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(n.Max[0]))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(n.Max[1]))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(n.Max[2]))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(n.Miss))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(n.Primitive))
	return buf
}

// NodeFromBytes decodes a single node from a 32-byte slice.
func NodeFromBytes(buf []byte) Node {
	var n Node
	n.Min[0] = math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))
	n.Min[1] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8]))
	n.Min[2] = math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12]))
	n.Max[0] = math.Float32frombits(binary.LittleEndian.Uint32(buf[12:16]))
	n.Max[1] = math.Float32frombits(binary.LittleEndian.Uint32(buf[16:20]))
	n.Max[2] = math.Float32frombits(binary.LittleEndian.Uint32(buf[20:24]))
	n.Miss = int32(binary.LittleEndian.Uint32(buf[24:28]))
	n.Primitive = int32(binary.LittleEndian.Uint32(buf[28:32]))
	return n
}

// EncodeNodes serializes a node slice into a flat byte buffer.
func EncodeNodes(nodes []Node) []byte {
	out := make([]byte, 0, len(nodes)*NodeStride)
	for _, n := range nodes {
		out = append(out, n.ToBytes()...)
	}
	return out
}

// DecodeNodes is the inverse of EncodeNodes.
func DecodeNodes(buf []byte) []Node {
	count := len(buf) / NodeStride
	nodes := make([]Node, count)
	for i := 0; i < count; i++ {
		nodes[i] = NodeFromBytes(buf[i*NodeStride : (i+1)*NodeStride])
	}
	return nodes
}

// Primitive is one leaf input to Build: a world- or mesh-local-space AABB
// tagged with the absolute index the caller wants stored as the leaf's
// primitive index (an instance index for a TLAS, a meshlet index for a
// BLAS).
type Primitive struct {
	Min, Max [3]float32
	Index    int32
}

func (p Primitive) centroid() [3]float32 {
	return [3]float32{
		(p.Min[0] + p.Max[0]) * 0.5,
		(p.Min[1] + p.Max[1]) * 0.5,
		(p.Min[2] + p.Max[2]) * 0.5,
	}
}

// Build constructs a preorder, stackless BVH over prims via recursive SAH
// splits (surface-area heuristic, ties broken by axis round-robin) and
// returns it as a flat node slice whose root is nodes[0]. Determinism: same
// input slice (order and values) always produces the same output.
//
// An empty input yields a single degenerate root node with Miss == -1 and
// no primitive, matching spec's "BVH has exactly 1 node" convention for the
// empty case.
func Build(prims []Primitive) []Node {
	if len(prims) == 0 {
		return []Node{{Miss: -1, Primitive: -1}}
	}

	items := make([]Primitive, len(prims))
	copy(items, prims)

	b := &builder{roundRobin: 0}
	nodes := make([]Node, 0, len(items)*2-1)
	b.flatten(items, &nodes)
	nodes[0].Miss = -1
	return nodes
}

type builder struct {
	roundRobin int
}

// flatten appends the subtree for items to nodes in preorder and returns its
// root index. Each node's Miss is set to the index just past its own
// subtree once the subtree is fully emitted, which is always either -1
// (root only, fixed up by Build) or strictly greater than the node's index.
func (b *builder) flatten(items []Primitive, nodes *[]Node) int32 {
	idx := int32(len(*nodes))
	minB, maxB := bounds(items)
	*nodes = append(*nodes, Node{Min: minB, Max: maxB, Primitive: -1})

	if len(items) == 1 {
		(*nodes)[idx].Primitive = items[0].Index
		(*nodes)[idx].Miss = int32(len(*nodes))
		return idx
	}

	left, right := b.split(items)
	b.flatten(left, nodes)
	b.flatten(right, nodes)
	(*nodes)[idx].Miss = int32(len(*nodes))
	return idx
}

// split partitions items into two non-empty groups along the axis whose SAH
// cost is lowest, breaking ties via round-robin axis selection.
func (b *builder) split(items []Primitive) (left, right []Primitive) {
	bestAxis := -1
	bestCost := float32(math.Inf(1))
	bestMid := len(items) / 2

	for axis := 0; axis < 3; axis++ {
		sorted := make([]Primitive, len(items))
		copy(sorted, items)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].centroid()[axis] < sorted[j].centroid()[axis]
		})

		cost, mid := sahCost(sorted)
		if cost < bestCost-1e-6 {
			bestCost = cost
			bestAxis = axis
			bestMid = mid
			items = sorted // keep the ordering belonging to the current best
		} else if cost < bestCost+1e-6 && axis == b.roundRobin%3 {
			bestCost = cost
			bestAxis = axis
			bestMid = mid
			items = sorted
		}
	}
	if bestAxis == -1 {
		bestAxis = b.roundRobin % 3
	}
	b.roundRobin++

	left = append([]Primitive{}, items[:bestMid]...)
	right = append([]Primitive{}, items[bestMid:]...)
	if len(left) == 0 || len(right) == 0 {
		mid := len(items) / 2
		left = append([]Primitive{}, items[:mid]...)
		right = append([]Primitive{}, items[mid:]...)
	}
	return left, right
}

// sahCost evaluates, for centroid-sorted items, the best split point by
// surface-area heuristic (cost = leftCount*leftArea + rightCount*rightArea)
// and returns that cost together with the split index.
func sahCost(sorted []Primitive) (float32, int) {
	n := len(sorted)
	prefixMin := make([][3]float32, n+1)
	prefixMax := make([][3]float32, n+1)
	prefixMin[0] = inf3(math.Inf(1))
	prefixMax[0] = inf3(math.Inf(-1))
	for i, p := range sorted {
		prefixMin[i+1] = minv(prefixMin[i], p.Min)
		prefixMax[i+1] = maxv(prefixMax[i], p.Max)
	}
	suffixMin := make([][3]float32, n+1)
	suffixMax := make([][3]float32, n+1)
	suffixMin[n] = inf3(math.Inf(1))
	suffixMax[n] = inf3(math.Inf(-1))
	for i := n - 1; i >= 0; i-- {
		suffixMin[i] = minv(suffixMin[i+1], sorted[i].Min)
		suffixMax[i] = maxv(suffixMax[i+1], sorted[i].Max)
	}

	bestCost := float32(math.Inf(1))
	bestMid := n / 2
	for mid := 1; mid < n; mid++ {
		leftArea := surfaceArea(prefixMin[mid], prefixMax[mid])
		rightArea := surfaceArea(suffixMin[mid], suffixMax[mid])
		cost := float32(mid)*leftArea + float32(n-mid)*rightArea
		if cost < bestCost {
			bestCost = cost
			bestMid = mid
		}
	}
	return bestCost, bestMid
}

func surfaceArea(min, max [3]float32) float32 {
	d := [3]float32{max[0] - min[0], max[1] - min[1], max[2] - min[2]}
	if d[0] < 0 {
		return 0
	}
	return 2 * (d[0]*d[1] + d[1]*d[2] + d[2]*d[0])
}

func bounds(items []Primitive) (min, max [3]float32) {
	min = inf3(math.Inf(1))
	max = inf3(math.Inf(-1))
	for _, p := range items {
		min = minv(min, p.Min)
		max = maxv(max, p.Max)
	}
	return min, max
}

func inf3(v float64) [3]float32 {
	f := float32(v)
	return [3]float32{f, f, f}
}

func minv(a, b [3]float32) [3]float32 {
	return [3]float32{minf(a[0], b[0]), minf(a[1], b[1]), minf(a[2], b[2])}
}

func maxv(a, b [3]float32) [3]float32 {
	return [3]float32{maxf(a[0], b[0]), maxf(a[1], b[1]), maxf(a[2], b[2])}
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// Relocate adjusts every non-stop miss link in nodes by base, matching the
// "+blas_base"/"+tlas_start_index" fixup the mesh registry and acceleration
// structure manager apply when a locally-built subtree is appended to the
// global BVH buffer.
func Relocate(nodes []Node, base int32) {
	for i := range nodes {
		if nodes[i].Miss >= 0 {
			nodes[i].Miss += base
		}
	}
}

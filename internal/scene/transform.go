// Package scene implements the Mesh, Material, Texture, Light registries and
// the Draw-Command Indexer of spec §4.3/§4.5/§4.6, adapted from the
// teacher's core.Transform/core.Material/core.Light
// (voxelrt/rt/core/{transform,material,light}.go) to the mesh-descriptor
// shape required here: a single uniform scale instead of a per-axis Scale
// vector, since spec §3's Mesh Descriptor carries "position, orientation
// quaternion, uniform scale".
package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Transform is a mesh instance's position/orientation/uniform-scale. Dirty
// starts true in NewTransform; nothing else in this module reads or changes
// it, and Equal ignores it.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    float32
	Dirty    bool
}

func NewTransform() Transform {
	return Transform{
		Position: mgl32.Vec3{0, 0, 0},
		Rotation: mgl32.QuatIdent(),
		Scale:    1.0,
		Dirty:    true,
	}
}

// ObjectToWorld composes the instance's world matrix as T * R * S.
func (t Transform) ObjectToWorld() mgl32.Mat4 {
	translate := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotate := t.Rotation.Mat4()
	scale := mgl32.Scale3D(t.Scale, t.Scale, t.Scale)
	return translate.Mul4(rotate).Mul4(scale)
}

// Equal reports component-wise equality, the comparison change_mesh uses to
// decide whether a TLAS rebuild is required (spec §4.3).
func (t Transform) Equal(o Transform) bool {
	return t.Position == o.Position && t.Rotation == o.Rotation && t.Scale == o.Scale
}

// TransformAABB conservatively transforms a mesh-local AABB into world
// space by transforming all 8 corners and re-deriving the bounds, the same
// technique as the teacher's VoxelObject.UpdateWorldAABB
// (voxelrt/rt/core/scene.go).
func TransformAABB(m mgl32.Mat4, min, max mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	corners := [8]mgl32.Vec3{
		{min.X(), min.Y(), min.Z()},
		{max.X(), min.Y(), min.Z()},
		{min.X(), max.Y(), min.Z()},
		{max.X(), max.Y(), min.Z()},
		{min.X(), min.Y(), max.Z()},
		{max.X(), min.Y(), max.Z()},
		{min.X(), max.Y(), max.Z()},
		{max.X(), max.Y(), max.Z()},
	}

	inf := float32(1e20)
	wMin := mgl32.Vec3{inf, inf, inf}
	wMax := mgl32.Vec3{-inf, -inf, -inf}
	for _, c := range corners {
		wc := m.Mul4x1(c.Vec4(1.0)).Vec3()
		wMin = mgl32.Vec3{minf(wMin.X(), wc.X()), minf(wMin.Y(), wc.Y()), minf(wMin.Z(), wc.Z())}
		wMax = mgl32.Vec3{maxf(wMax.X(), wc.X()), maxf(wMax.Y(), wc.Y()), maxf(wMax.Z(), wc.Z())}
	}
	return wMin, wMax
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

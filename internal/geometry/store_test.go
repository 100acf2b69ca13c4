package geometry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gekko3d/scenecore/internal/gpudevice"
	"github.com/gekko3d/scenecore/internal/id"
)

func TestStoreAllocateAssignsIndependentRanges(t *testing.T) {
	s := NewStore()
	mesh := id.New()

	ranges := s.Allocate(mesh, []uint32{1, 2, 3}, []uint32{0, 0, 0, 0}, []uint32{9})
	require.Equal(t, Range{Start: 0, Count: 3}, ranges.Indices)
	require.Equal(t, Range{Start: 0, Count: 4}, ranges.Positions)
	require.Equal(t, Range{Start: 0, Count: 1}, ranges.Attributes)
}

func TestStoreFreeReleasesAllThreeArenas(t *testing.T) {
	s := NewStore()
	mesh := id.New()
	s.Allocate(mesh, []uint32{1, 2, 3}, []uint32{0, 0, 0, 0}, []uint32{9})

	s.Free(mesh)

	_, ok := s.Indices.RangeOf(mesh)
	require.False(t, ok)
	_, ok = s.Positions.RangeOf(mesh)
	require.False(t, ok)
	_, ok = s.Attributes.RangeOf(mesh)
	require.False(t, ok)
}

func TestStoreOffsetsAreWordUnitsNotBytes(t *testing.T) {
	s := NewStore()
	mesh := id.New()
	s.Allocate(mesh, []uint32{1, 2, 3}, []uint32{0, 0, 0, 0}, []uint32{9})

	indices, positions, attributes := s.Offsets()
	require.EqualValues(t, 0, indices)
	require.EqualValues(t, 3, positions)
	require.EqualValues(t, 7, attributes)
}

func TestStoreDirtyAndUpload(t *testing.T) {
	s := NewStore()
	mesh := id.New()
	s.Allocate(mesh, []uint32{1, 2, 3}, []uint32{0, 0, 0, 0}, []uint32{9})
	require.True(t, s.Dirty())

	dev := &gpudevice.Fake{}
	s.Upload(dev)
	require.Equal(t, 1, dev.Resizes)
	require.Equal(t, 1, dev.Writes)
	require.False(t, s.Dirty())
}

package scene

import (
	"testing"

	"github.com/gekko3d/scenecore/internal/id"
)

type fakeLUTPublisher struct {
	slots map[LUTKind]uint32
}

func newFakeLUTPublisher() *fakeLUTPublisher {
	return &fakeLUTPublisher{slots: make(map[LUTKind]uint32)}
}

func (f *fakeLUTPublisher) SetLUTSlot(kind LUTKind, denseIndex uint32) {
	f.slots[kind] = denseIndex
}

func TestTextureRegistryAddAssignsDenseIndex(t *testing.T) {
	r := NewTextureRegistry(nil)
	entity := id.New()

	idx := r.Add(entity, TextureInfo{TextureIndex: 3, LayerIndex: 1}, LUTNone)
	if idx != 0 {
		t.Fatalf("expected dense index 0, got %d", idx)
	}
	got, ok := r.IndexOf(entity)
	if !ok || got != 0 {
		t.Fatalf("expected IndexOf to find dense index 0, got %d ok=%v", got, ok)
	}
}

func TestTextureRegistryPublishesLUTSlot(t *testing.T) {
	pub := newFakeLUTPublisher()
	r := NewTextureRegistry(pub)
	entity := id.New()

	idx := r.Add(entity, TextureInfo{TextureIndex: 5, LayerIndex: 0, IsLUT: true}, LUTPBRGGX)
	if got := pub.slots[LUTPBRGGX]; got != idx {
		t.Fatalf("expected publisher to receive dense index %d for LUTPBRGGX, got %d", idx, got)
	}
}

func TestTextureRegistryNonLUTDoesNotPublish(t *testing.T) {
	pub := newFakeLUTPublisher()
	r := NewTextureRegistry(pub)
	r.Add(id.New(), TextureInfo{TextureIndex: 1}, LUTNone)

	if len(pub.slots) != 0 {
		t.Fatalf("expected no LUT slot publication for LUTNone, got %v", pub.slots)
	}
}

func TestTextureRegistryRemoveUnknownIsFalse(t *testing.T) {
	r := NewTextureRegistry(nil)
	if r.Remove(id.New()) {
		t.Fatalf("expected Remove on unknown id to report false")
	}
}

func TestTextureRegistryBytesStride(t *testing.T) {
	r := NewTextureRegistry(nil)
	r.Add(id.New(), TextureInfo{TextureIndex: 2, LayerIndex: 3, X: 0.25, Y: 0.5, Width: 0.1, Height: 0.2, TotalWidth: 1, TotalHeight: 1}, LUTNone)

	b := r.Bytes()
	if len(b) != TextureStride {
		t.Fatalf("expected %d bytes, got %d", TextureStride, len(b))
	}
}

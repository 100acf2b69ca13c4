package scene

import (
	"testing"

	"github.com/gekko3d/scenecore/internal/id"
)

type fakeLightObserver struct {
	count uint32
	calls int
}

func (f *fakeLightObserver) SetNumLights(count uint32) {
	f.count = count
	f.calls++
}

func pointLight() LightData {
	return NewLight([3]float32{1, 1, 1}, 2.0, [3]float32{0, 1, 0}, 10, [3]float32{0, -1, 0}, LightPoint, 0, 0)
}

func TestLightRegistryAddNotifiesObserver(t *testing.T) {
	obs := &fakeLightObserver{}
	r := NewLightRegistry(obs)

	r.Add(id.New(), pointLight())
	if obs.count != 1 {
		t.Fatalf("expected observer to see 1 live light, got %d", obs.count)
	}
	if r.NumLights() != 1 {
		t.Fatalf("expected NumLights()==1, got %d", r.NumLights())
	}
}

func TestLightRegistryAddLightNoneDoesNotCountAsLive(t *testing.T) {
	obs := &fakeLightObserver{}
	r := NewLightRegistry(obs)

	r.Add(id.New(), LightData{})
	if obs.calls != 0 {
		t.Fatalf("expected no observer notification for a LightNone-typed light")
	}
	if r.NumLights() != 0 {
		t.Fatalf("expected NumLights()==0, got %d", r.NumLights())
	}
}

func TestLightRegistryRemoveDecrementsCount(t *testing.T) {
	obs := &fakeLightObserver{}
	r := NewLightRegistry(obs)
	entity := id.New()
	r.Add(entity, pointLight())

	if !r.Remove(entity) {
		t.Fatalf("expected Remove to succeed")
	}
	if r.NumLights() != 0 {
		t.Fatalf("expected NumLights()==0 after remove, got %d", r.NumLights())
	}
	if r.Remove(entity) {
		t.Fatalf("expected second Remove to report false")
	}
}

func TestLightRegistryUpdateTogglesLiveness(t *testing.T) {
	obs := &fakeLightObserver{}
	r := NewLightRegistry(obs)
	entity := id.New()
	r.Add(entity, pointLight())

	if !r.Update(entity, LightData{}) {
		t.Fatalf("expected Update to succeed for known id")
	}
	if r.NumLights() != 0 {
		t.Fatalf("expected NumLights()==0 after updating to LightNone, got %d", r.NumLights())
	}
}

func TestLightRegistryBytesStride(t *testing.T) {
	r := NewLightRegistry(nil)
	r.Add(id.New(), pointLight())
	r.Add(id.New(), pointLight())

	b := r.Bytes()
	if len(b) != 2*LightStride {
		t.Fatalf("expected %d bytes, got %d", 2*LightStride, len(b))
	}
}

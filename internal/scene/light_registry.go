package scene

import (
	"github.com/gekko3d/scenecore/internal/id"
)

// LightCountObserver is notified whenever the live (type != None) light
// count changes, so the Constant-Data Block's num_lights field (spec §4.5,
// invariant §3) stays in sync without the registry needing a reference to
// the whole frame package.
type LightCountObserver interface {
	SetNumLights(count uint32)
}

// LightRegistry is the dense, id-keyed Light Record table.
type LightRegistry struct {
	dense    *Dense[LightData]
	observer LightCountObserver
	numLive  uint32
}

func NewLightRegistry(observer LightCountObserver) *LightRegistry {
	return &LightRegistry{dense: NewDense[LightData](), observer: observer}
}

func (r *LightRegistry) Add(entity id.ID, data LightData) uint32 {
	idx := r.dense.Insert(entity, data)
	if data.Type() != LightNone {
		r.numLive++
		r.notify()
	}
	return idx
}

func (r *LightRegistry) Update(entity id.ID, data LightData) bool {
	old, _, ok := r.dense.Get(entity)
	if !ok {
		return false
	}
	r.dense.Update(entity, func(v *LightData) { *v = data })
	if wasLive, isLive := old.Type() != LightNone, data.Type() != LightNone; wasLive != isLive {
		if isLive {
			r.numLive++
		} else {
			r.numLive--
		}
		r.notify()
	}
	return true
}

func (r *LightRegistry) Remove(entity id.ID) bool {
	old, _, ok := r.dense.Get(entity)
	if !ok {
		return false
	}
	r.dense.Remove(entity)
	if old.Type() != LightNone {
		r.numLive--
		r.notify()
	}
	return true
}

func (r *LightRegistry) notify() {
	if r.observer != nil {
		r.observer.SetNumLights(r.numLive)
	}
}

func (r *LightRegistry) NumLights() uint32 { return r.numLive }
func (r *LightRegistry) Len() int          { return r.dense.Len() }
func (r *LightRegistry) Dirty() bool       { return r.dense.Dirty() }
func (r *LightRegistry) ClearDirty()       { r.dense.ClearDirty() }

func (r *LightRegistry) Bytes() []byte {
	snap := r.dense.Snapshot()
	out := make([]byte, 0, len(snap)*LightStride)
	for _, l := range snap {
		out = append(out, l.ToBytes()...)
	}
	return out
}

// Package gpudevice abstracts the graphics device down to exactly the
// operations the pipeline needs: buffer allocation, GPU->GPU copy, and
// CPU->GPU write. Swapchain, queue, and command-pool setup stay external
// (spec §1, Out of scope).
package gpudevice

// Usage is a bitmask of buffer usage flags, kept deliberately small: the
// pipeline only ever needs storage or uniform buffers that are both copy
// source and destination (for resize-and-preserve and GPU->GPU region
// copies).
type Usage uint32

const (
	UsageStorage Usage = 1 << iota
	UsageUniform
	UsageCopySrc
	UsageCopyDst
)

// Buffer is an opaque handle to a device-resident buffer plus the
// bookkeeping the Device implementation needs to resize it. Handle is
// backend-specific (e.g. *wgpu.Buffer); callers never need to touch it.
type Buffer struct {
	Label  string
	Handle any
	size   uint64
}

// Size reports the current allocated size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Device is the abstract graphics device the pipeline is written against.
// An implementation backed by an abstract device of this shape is supplied
// by this package's wgpu adapter; tests use the in-memory Fake.
type Device interface {
	// CreateOrResizeBuffer ensures buf has at least size bytes of backing
	// storage, creating or growing it as needed. Implementations that grow
	// an existing buffer must preserve its prior contents (copy-on-grow),
	// matching the Geometry Store's "growing is a full re-upload" contract
	// only at the call-site: the device itself just guarantees the bytes
	// survive the resize so the caller can choose to re-write them or not.
	CreateOrResizeBuffer(buf *Buffer, size uint64, usage Usage)
	// WriteBuffer uploads data from the CPU into buf at offset.
	WriteBuffer(buf *Buffer, offset uint64, data []byte)
	// CopyBufferToBuffer issues a GPU-local copy of size bytes from src at
	// srcOffset into dst at dstOffset.
	CopyBufferToBuffer(src *Buffer, srcOffset uint64, dst *Buffer, dstOffset uint64, size uint64)
}

package gpudevice

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// WGPUDevice adapts a *wgpu.Device to the Device interface, continuing the
// teacher's GpuBufferManager.ensureBuffer resize-and-recopy pattern
// (voxelrt/rt/gpu/manager.go): a grown buffer is a brand-new wgpu.Buffer
// with the old one's contents copied across via CopyBufferToBuffer before
// the old handle is released.
type WGPUDevice struct {
	Device *wgpu.Device
}

func NewWGPUDevice(device *wgpu.Device) *WGPUDevice {
	return &WGPUDevice{Device: device}
}

func toWGPUUsage(u Usage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u&UsageStorage != 0 {
		out |= wgpu.BufferUsageStorage
	}
	if u&UsageUniform != 0 {
		out |= wgpu.BufferUsageUniform
	}
	// Every pipeline buffer must tolerate being resized and written from the
	// CPU, so copy src/dst are always present regardless of caller intent -
	// matching the teacher's own `usage = usage | wgpu.BufferUsageCopyDst |
	// wgpu.BufferUsageCopySrc` in ensureBuffer.
	out |= wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	return out
}

func (d *WGPUDevice) CreateOrResizeBuffer(buf *Buffer, size uint64, usage Usage) {
	if size%4 != 0 {
		size += 4 - (size % 4)
	}

	var current *wgpu.Buffer
	if buf.Handle != nil {
		current = buf.Handle.(*wgpu.Buffer)
	}
	if current != nil && current.GetSize() >= size {
		buf.size = current.GetSize()
		return
	}

	newBuf, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            buf.Label,
		Size:             size,
		Usage:            toWGPUUsage(usage),
		MappedAtCreation: false,
	})
	if err != nil {
		panic(err)
	}

	if current != nil {
		encoder, err := d.Device.CreateCommandEncoder(nil)
		if err != nil {
			panic(err)
		}
		encoder.CopyBufferToBuffer(current, 0, newBuf, 0, current.GetSize())
		cmdBuf, err := encoder.Finish(nil)
		if err != nil {
			panic(err)
		}
		d.Device.GetQueue().Submit(cmdBuf)
		current.Release()
	}

	buf.Handle = newBuf
	buf.size = size
}

func (d *WGPUDevice) WriteBuffer(buf *Buffer, offset uint64, data []byte) {
	handle := buf.Handle.(*wgpu.Buffer)
	d.Device.GetQueue().WriteBuffer(handle, offset, data)
}

func (d *WGPUDevice) CopyBufferToBuffer(src *Buffer, srcOffset uint64, dst *Buffer, dstOffset uint64, size uint64) {
	encoder, err := d.Device.CreateCommandEncoder(nil)
	if err != nil {
		panic(err)
	}
	encoder.CopyBufferToBuffer(
		src.Handle.(*wgpu.Buffer), srcOffset,
		dst.Handle.(*wgpu.Buffer), dstOffset,
		size,
	)
	cmdBuf, err := encoder.Finish(nil)
	if err != nil {
		panic(err)
	}
	d.Device.GetQueue().Submit(cmdBuf)
}

var _ Device = (*WGPUDevice)(nil)

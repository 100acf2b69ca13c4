package gpudevice

// Fake is an in-memory Device used by tests that exercise upload/resize
// behavior without a real graphics backend.
type Fake struct {
	Resizes int
	Writes  int
	Copies  int
}

type fakeHandle struct {
	bytes []byte
}

func (f *Fake) CreateOrResizeBuffer(buf *Buffer, size uint64, usage Usage) {
	f.Resizes++
	h, _ := buf.Handle.(*fakeHandle)
	if h == nil {
		h = &fakeHandle{}
	}
	if uint64(len(h.bytes)) < size {
		grown := make([]byte, size)
		copy(grown, h.bytes)
		h.bytes = grown
	}
	buf.Handle = h
	buf.size = size
}

func (f *Fake) WriteBuffer(buf *Buffer, offset uint64, data []byte) {
	f.Writes++
	h := buf.Handle.(*fakeHandle)
	copy(h.bytes[offset:], data)
}

func (f *Fake) CopyBufferToBuffer(src *Buffer, srcOffset uint64, dst *Buffer, dstOffset uint64, size uint64) {
	f.Copies++
	sh := src.Handle.(*fakeHandle)
	dh := dst.Handle.(*fakeHandle)
	copy(dh.bytes[dstOffset:dstOffset+size], sh.bytes[srcOffset:srcOffset+size])
}

// Contents returns the bytes currently stored in buf, for assertions.
func Contents(buf *Buffer) []byte {
	h := buf.Handle.(*fakeHandle)
	return h.bytes
}

var _ Device = (*Fake)(nil)

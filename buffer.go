package meshbatch

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

const (
	// MaxBufferBytes is the largest backing store a Buffer will allocate.
	MaxBufferBytes = 1 << 30

	// DefaultGrowthFactor is the capacity multiplier used by Reserve.
	DefaultGrowthFactor = 2

	// copyAlignment is the size granularity required by Queue.WriteBuffer.
	copyAlignment = 4
)

// nextBufferID hands out stable buffer identities.
var nextBufferID atomic.Uint64

// Buffer is a growable array of scalar elements mirrored to a GPU vertex
// buffer. The CPU copy is the source of truth: views write into it and
// Upload copies the whole array to the device.
//
// A Buffer created without a device is CPU-only; it can be written through
// views but not uploaded.
//
// Buffer is not safe for concurrent use.
type Buffer struct {
	label string
	id    uint64

	elem  ElementType
	count int
	data  []byte

	device    hal.Device
	halBuffer hal.Buffer
	halSize   uint64

	destroyed bool
}

// NewBuffer creates a buffer holding count elements of type elem.
// device may be nil for a CPU-only buffer. A count of zero creates an empty
// buffer with no GPU resource.
func NewBuffer(device hal.Device, label string, elem ElementType, count int) (*Buffer, error) {
	b := &Buffer{
		label:  label,
		id:     nextBufferID.Add(1),
		device: device,
	}
	if err := b.Resize(elem, count); err != nil {
		return nil, err
	}
	return b, nil
}

// Resize reallocates the buffer to hold count elements of type elem.
// Bytes below the new capacity keep their offsets; bytes above it are
// discarded and new bytes are zero. The previous storage is never reused,
// so slices obtained from Data before the call no longer alias the buffer.
//
// When the buffer has a device and the byte capacity changes, the GPU
// resource is recreated. Its contents are undefined until the next Upload.
func (b *Buffer) Resize(elem ElementType, count int) error {
	if b.destroyed {
		return ErrBufferDestroyed
	}
	size := elem.Size()
	if size == 0 {
		return fmt.Errorf("%w: invalid element type %s", ErrAllocation, elem)
	}
	if count < 0 {
		return fmt.Errorf("%w: negative element count %d", ErrAllocation, count)
	}
	if count > MaxBufferBytes/size {
		return fmt.Errorf("%w: %d x %s exceeds %d bytes", ErrAllocation, count, elem, MaxBufferBytes)
	}

	n := count * size
	aligned := alignUp(uint64(n), copyAlignment)

	if b.device != nil && aligned != b.halSize {
		if err := b.recreate(aligned); err != nil {
			return err
		}
	}

	data := make([]byte, n, aligned)
	copy(data, b.data)

	Logger().Debug("meshbatch: buffer resized",
		"label", b.label, "elem", elem.String(), "count", count, "bytes", n)

	b.elem = elem
	b.count = count
	b.data = data
	return nil
}

// Reserve grows the buffer so it holds at least count elements of its
// current type. Capacity grows by DefaultGrowthFactor to amortize repeated
// appends. It never shrinks the buffer.
func (b *Buffer) Reserve(count int) error {
	if count <= b.count {
		return nil
	}
	grown := b.count * DefaultGrowthFactor
	if grown < count {
		grown = count
	}
	if size := b.elem.Size(); size > 0 && grown > MaxBufferBytes/size {
		grown = count
	}
	return b.Resize(b.elem, grown)
}

// recreate replaces the GPU resource with one of size bytes.
// The old resource is released only after the new one exists.
func (b *Buffer) recreate(size uint64) error {
	var buf hal.Buffer
	if size > 0 {
		var err error
		buf, err = b.device.CreateBuffer(&hal.BufferDescriptor{
			Label: b.label,
			Size:  size,
			Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("%w: create %s (%d bytes): %v", ErrAllocation, b.label, size, err)
		}
	}
	if b.halBuffer != nil {
		b.device.DestroyBuffer(b.halBuffer)
	}
	b.halBuffer = buf
	b.halSize = size
	return nil
}

// Upload copies the whole CPU array to the GPU buffer.
func (b *Buffer) Upload(queue hal.Queue) error {
	if b.destroyed {
		return ErrBufferDestroyed
	}
	if len(b.data) == 0 {
		return nil
	}
	if queue == nil || b.halBuffer == nil {
		return fmt.Errorf("%w: upload %s", ErrNilDevice, b.label)
	}
	// data has capacity halSize; the padding bytes are zero.
	if err := queue.WriteBuffer(b.halBuffer, 0, b.data[:b.halSize]); err != nil {
		return fmt.Errorf("upload %s: %w", b.label, err)
	}
	Logger().Debug("meshbatch: buffer uploaded", "label", b.label, "bytes", b.halSize)
	return nil
}

// Destroy releases the GPU resource and the CPU array.
// Safe to call multiple times.
func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	if b.halBuffer != nil && b.device != nil {
		b.device.DestroyBuffer(b.halBuffer)
	}
	b.halBuffer = nil
	b.halSize = 0
	b.data = nil
	b.count = 0
	b.destroyed = true
}

// Data returns the backing bytes. The slice is valid until the next Resize.
func (b *Buffer) Data() []byte { return b.data }

// ElementType returns the type of the stored elements.
func (b *Buffer) ElementType() ElementType { return b.elem }

// ByteSize returns the width of one element in bytes.
func (b *Buffer) ByteSize() int { return b.elem.Size() }

// Size returns the number of elements.
func (b *Buffer) Size() int { return b.count }

// Capacity returns the size of the backing store in bytes.
func (b *Buffer) Capacity() int { return len(b.data) }

// ID returns an identifier that is unique among buffers in the process and
// stable across Resize.
func (b *Buffer) ID() uint64 { return b.id }

// Label returns the debug label.
func (b *Buffer) Label() string { return b.label }

// Raw returns the GPU resource, or nil for CPU-only or empty buffers.
func (b *Buffer) Raw() hal.Buffer { return b.halBuffer }

// Destroyed reports whether Destroy has been called.
func (b *Buffer) Destroyed() bool { return b.destroyed }

// Elements decodes the buffer contents as T. It returns nil when T does not
// match the buffer's element type.
func Elements[T Scalar](b *Buffer) []T {
	return Values[T](Payload{elem: b.elem, n: b.count, raw: b.data})
}

func alignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

package meshbatch

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// View describes how one vertex attribute is interleaved into a Buffer.
//
// Vertex i of the attribute occupies components consecutive elements
// starting at element offset + i*stride. A stride of zero means the
// attribute is tightly packed (stride == components).
//
// A View does not own its buffer. It looks the backing bytes up on every
// write, so it stays valid across Buffer.Resize.
type View struct {
	buf        *Buffer
	elem       ElementType
	stride     int
	offset     int
	components int
}

// NewView creates a view onto buf. stride and offset are in elements.
func NewView(buf *Buffer, stride, offset, components int) (*View, error) {
	if buf == nil {
		return nil, fmt.Errorf("%w: nil buffer", ErrInvalidView)
	}
	if components < 1 || components > 4 {
		return nil, fmt.Errorf("%w: %d components", ErrInvalidView, components)
	}
	if stride < 0 || offset < 0 || stride > MaxBufferBytes || offset > MaxBufferBytes {
		return nil, fmt.Errorf("%w: stride %d offset %d", ErrInvalidView, stride, offset)
	}
	if stride != 0 && stride < components {
		return nil, fmt.Errorf("%w: stride %d smaller than %d components", ErrInvalidView, stride, components)
	}
	return &View{
		buf:        buf,
		elem:       buf.ElementType(),
		stride:     stride,
		offset:     offset,
		components: components,
	}, nil
}

// Buffer returns the buffer the view writes into.
func (v *View) Buffer() *Buffer { return v.buf }

// ElementType returns the element type the view expects.
func (v *View) ElementType() ElementType { return v.elem }

// Stride returns the configured stride in elements (0 = tightly packed).
func (v *View) Stride() int { return v.stride }

// Offset returns the element offset of vertex 0.
func (v *View) Offset() int { return v.offset }

// Components returns the number of elements per vertex.
func (v *View) Components() int { return v.components }

// EffectiveStride returns the distance in elements between consecutive
// vertices.
func (v *View) EffectiveStride() int {
	if v.stride == 0 {
		return v.components
	}
	return v.stride
}

// MaxVertices returns how many vertices fit in the buffer at its current size.
func (v *View) MaxVertices() int {
	room := v.buf.Size() - v.offset - v.components
	if room < 0 {
		return 0
	}
	return room/v.EffectiveStride() + 1
}

// Insert writes p starting at vertex vertexOffset. p must hold a whole
// number of vertices. Bounds are checked before any byte is written.
func (v *View) Insert(p Payload, vertexOffset int) error {
	if p.Len()%v.components != 0 {
		return fmt.Errorf("%w: %d values for %d components", ErrAttributeCountMismatch, p.Len(), v.components)
	}
	if p.Len() == 0 {
		return nil
	}
	if v.buf.Destroyed() {
		return ErrBufferDestroyed
	}
	if p.ElementType() != v.elem || v.buf.ElementType() != v.elem {
		return fmt.Errorf("%w: payload %s, view %s, buffer %s",
			ErrElementTypeMismatch, p.ElementType(), v.elem, v.buf.ElementType())
	}

	size := v.buf.Size()
	if vertexOffset < 0 {
		return fmt.Errorf("%w: vertex offset %d", ErrOutOfBoundsWrite, vertexOffset)
	}
	groups := p.Len() / v.components
	stride := v.EffectiveStride()
	// The last vertex that fits, computed by division so that no product
	// of stride and a vertex index can overflow.
	room := size - v.offset - v.components
	if room < 0 || vertexOffset > room/stride || groups-1 > room/stride-vertexOffset {
		return fmt.Errorf("%w: %d vertices at vertex %d, stride %d, buffer size %d",
			ErrOutOfBoundsWrite, groups, vertexOffset, stride, size)
	}
	start := v.offset + vertexOffset*stride

	esz := v.elem.Size()
	data := v.buf.Data()
	src := p.Bytes()
	if stride == v.components {
		copy(data[start*esz:], src)
		return nil
	}
	row := v.components * esz
	for g := 0; g < groups; g++ {
		dst := (start + g*stride) * esz
		copy(data[dst:dst+row], src[g*row:(g+1)*row])
	}
	return nil
}

// Layout returns the vertex buffer layout for the view bound at its own
// buffer slot. The slot's base offset is ByteOffset.
func (v *View) Layout(location uint32) (gputypes.VertexBufferLayout, error) {
	format, err := v.elem.VertexFormat(v.components)
	if err != nil {
		return gputypes.VertexBufferLayout{}, err
	}
	return gputypes.VertexBufferLayout{
		ArrayStride: uint64(v.EffectiveStride() * v.elem.Size()),
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: format, Offset: 0, ShaderLocation: location},
		},
	}, nil
}

// ByteOffset returns the byte offset of vertex 0 inside the buffer.
func (v *View) ByteOffset() uint64 {
	return uint64(v.offset * v.elem.Size())
}

// InsertValues encodes values and writes them through v at vertexOffset.
func InsertValues[T Scalar](v *View, values []T, vertexOffset int) error {
	return v.Insert(NewPayload(values), vertexOffset)
}

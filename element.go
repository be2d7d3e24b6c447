package meshbatch

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
)

// ElementType identifies the scalar type stored in a buffer or carried by a
// payload. The zero value is invalid.
type ElementType uint8

// Supported element types.
const (
	ElementInvalid ElementType = iota
	Float32
	Uint32
	Int32
	Uint16
	Int16
	Uint8
	Int8
)

// Size returns the width of one element in bytes, or 0 for ElementInvalid.
func (t ElementType) Size() int {
	switch t {
	case Float32, Uint32, Int32:
		return 4
	case Uint16, Int16:
		return 2
	case Uint8, Int8:
		return 1
	default:
		return 0
	}
}

// String returns the Go name of the element type.
func (t ElementType) String() string {
	switch t {
	case Float32:
		return "float32"
	case Uint32:
		return "uint32"
	case Int32:
		return "int32"
	case Uint16:
		return "uint16"
	case Int16:
		return "int16"
	case Uint8:
		return "uint8"
	case Int8:
		return "int8"
	default:
		return fmt.Sprintf("ElementType(%d)", uint8(t))
	}
}

// vertexFormats maps an element type to its vertex formats indexed by
// component count. Undefined entries have no hardware format.
var vertexFormats = map[ElementType][5]gputypes.VertexFormat{
	Float32: {1: gputypes.VertexFormatFloat32, 2: gputypes.VertexFormatFloat32x2, 3: gputypes.VertexFormatFloat32x3, 4: gputypes.VertexFormatFloat32x4},
	Uint32:  {1: gputypes.VertexFormatUint32, 2: gputypes.VertexFormatUint32x2, 3: gputypes.VertexFormatUint32x3, 4: gputypes.VertexFormatUint32x4},
	Int32:   {1: gputypes.VertexFormatSint32, 2: gputypes.VertexFormatSint32x2, 3: gputypes.VertexFormatSint32x3, 4: gputypes.VertexFormatSint32x4},
	Uint16:  {2: gputypes.VertexFormatUint16x2, 4: gputypes.VertexFormatUint16x4},
	Int16:   {2: gputypes.VertexFormatSint16x2, 4: gputypes.VertexFormatSint16x4},
	Uint8:   {2: gputypes.VertexFormatUint8x2, 4: gputypes.VertexFormatUint8x4},
	Int8:    {2: gputypes.VertexFormatSint8x2, 4: gputypes.VertexFormatSint8x4},
}

// VertexFormat returns the vertex format for an attribute of the given
// component count, or ErrUnsupportedFormat.
func (t ElementType) VertexFormat(components int) (gputypes.VertexFormat, error) {
	formats, ok := vertexFormats[t]
	if !ok || components < 1 || components > 4 || formats[components] == gputypes.VertexFormatUndefined {
		return gputypes.VertexFormatUndefined, fmt.Errorf("%w: %d x %s", ErrUnsupportedFormat, components, t)
	}
	return formats[components], nil
}

// Scalar is the set of Go types that can be stored in a Buffer.
type Scalar interface {
	float32 | uint32 | int32 | uint16 | int16 | uint8 | int8
}

// ElementTypeOf returns the ElementType for the scalar type T.
func ElementTypeOf[T Scalar]() ElementType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return Float32
	case uint32:
		return Uint32
	case int32:
		return Int32
	case uint16:
		return Uint16
	case int16:
		return Int16
	case uint8:
		return Uint8
	default:
		return Int8
	}
}

// putElement encodes v little-endian into dst using the width of t.
func putElement[T Scalar](dst []byte, t ElementType, v T) {
	switch t {
	case Float32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v)))
	case Uint32, Int32:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	case Uint16, Int16:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case Uint8, Int8:
		dst[0] = uint8(v)
	}
}

// getElement decodes the element at the start of src.
func getElement[T Scalar](src []byte, t ElementType) T {
	switch t {
	case Float32:
		return T(math.Float32frombits(binary.LittleEndian.Uint32(src)))
	case Uint32:
		return T(binary.LittleEndian.Uint32(src))
	case Int32:
		return T(int32(binary.LittleEndian.Uint32(src)))
	case Uint16:
		return T(binary.LittleEndian.Uint16(src))
	case Int16:
		return T(int16(binary.LittleEndian.Uint16(src)))
	case Uint8:
		return T(src[0])
	case Int8:
		return T(int8(src[0]))
	}
	var zero T
	return zero
}

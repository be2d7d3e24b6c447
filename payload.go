package meshbatch

// Payload is a type-erased, owned copy of attribute values: an element type
// tag plus the values encoded little-endian. The zero Payload is empty.
//
// Payloads have value semantics. NewPayload copies its input, so the caller
// may reuse the slice afterwards.
type Payload struct {
	elem ElementType
	n    int
	raw  []byte
}

// NewPayload encodes values into a new Payload.
func NewPayload[T Scalar](values []T) Payload {
	elem := ElementTypeOf[T]()
	size := elem.Size()
	raw := make([]byte, len(values)*size)
	for i, v := range values {
		putElement(raw[i*size:], elem, v)
	}
	return Payload{elem: elem, n: len(values), raw: raw}
}

// ElementType returns the element type of the values.
func (p Payload) ElementType() ElementType { return p.elem }

// Len returns the number of scalar values.
func (p Payload) Len() int { return p.n }

// Bytes returns the encoded values. The slice must not be modified.
func (p Payload) Bytes() []byte { return p.raw }

// Clone returns a Payload that shares no storage with p.
func (p Payload) Clone() Payload {
	if p.raw == nil {
		return p
	}
	raw := make([]byte, len(p.raw))
	copy(raw, p.raw)
	return Payload{elem: p.elem, n: p.n, raw: raw}
}

// Values decodes the payload as T. It returns nil when T does not match the
// payload's element type.
func Values[T Scalar](p Payload) []T {
	if ElementTypeOf[T]() != p.elem {
		return nil
	}
	size := p.elem.Size()
	out := make([]T, p.n)
	for i := range out {
		out[i] = getElement[T](p.raw[i*size:], p.elem)
	}
	return out
}

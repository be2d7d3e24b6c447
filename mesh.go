package meshbatch

import "fmt"

// Drawable is anything the renderer can place into shared buffers: a fixed
// number of vertices that can be written at an arbitrary vertex offset.
type Drawable interface {
	NumVertex() int
	Insert(vertexOffset int) error
}

// attribute pairs a view with the values written through it.
type attribute struct {
	view *View
	data Payload
}

// Mesh is a drawable unit: a vertex count and, for each attribute it
// supplies, the values and the view that places them in a buffer.
//
// A Mesh knows nothing about where it will land. The renderer assigns the
// vertex offset when it lays out a frame.
type Mesh struct {
	numVertex int
	attrs     []attribute
}

// NewMesh creates a mesh of numVertex vertices with no attributes. A
// negative numVertex is treated as zero: the mesh is empty, accepts only
// empty attribute data and never starts a batch.
func NewMesh(numVertex int) *Mesh {
	if numVertex < 0 {
		numVertex = 0
	}
	return &Mesh{numVertex: numVertex}
}

// NumVertex returns the number of vertices.
func (m *Mesh) NumVertex() int { return m.numVertex }

// AddAttributeData attaches p to the mesh, written through view.
// p must hold exactly NumVertex()*view.Components() values.
func (m *Mesh) AddAttributeData(view *View, p Payload) error {
	if view == nil {
		return fmt.Errorf("%w: nil view", ErrInvalidView)
	}
	if want := m.numVertex * view.Components(); p.Len() != want {
		return fmt.Errorf("%w: got %d values, want %d (%d vertices x %d components)",
			ErrAttributeCountMismatch, p.Len(), want, m.numVertex, view.Components())
	}
	if p.ElementType() != view.ElementType() && p.Len() > 0 {
		return fmt.Errorf("%w: payload %s, view %s", ErrElementTypeMismatch, p.ElementType(), view.ElementType())
	}
	m.attrs = append(m.attrs, attribute{view: view, data: p})
	return nil
}

// Insert writes every attribute at vertexOffset. It performs no GPU work.
func (m *Mesh) Insert(vertexOffset int) error {
	for i := range m.attrs {
		a := &m.attrs[i]
		if err := a.view.Insert(a.data, vertexOffset); err != nil {
			return fmt.Errorf("attribute %d: %w", i, err)
		}
	}
	return nil
}

// Views returns the views the mesh writes through, in attach order.
func (m *Mesh) Views() []*View {
	views := make([]*View, len(m.attrs))
	for i, a := range m.attrs {
		views[i] = a.view
	}
	return views
}

// Clone returns a deep copy of m. Views are shared; payloads are not.
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{numVertex: m.numVertex, attrs: make([]attribute, len(m.attrs))}
	for i, a := range m.attrs {
		c.attrs[i] = attribute{view: a.view, data: a.data.Clone()}
	}
	return c
}

// AddAttribute is the typed form of Mesh.AddAttributeData.
func AddAttribute[T Scalar](m *Mesh, view *View, values []T) error {
	return m.AddAttributeData(view, NewPayload(values))
}

// TextureID identifies a texture registered with a TextureSet.
type TextureID uint32

// TexturedMesh is a Mesh drawn with a bound texture. Meshes sharing a
// texture are merged into one draw call.
type TexturedMesh struct {
	*Mesh
	Texture TextureID
}

// NewTexturedMesh creates a textured mesh of numVertex vertices.
func NewTexturedMesh(numVertex int, texture TextureID) *TexturedMesh {
	return &TexturedMesh{Mesh: NewMesh(numVertex), Texture: texture}
}

// BatchKey returns the texture id.
func (m *TexturedMesh) BatchKey() uint64 { return uint64(m.Texture) }

// Keyed is implemented by drawables that carry their own batch key.
type Keyed interface {
	BatchKey() uint64
}

package meshbatch

// QuadVertices is the number of vertices in a quad drawn as two triangles.
const QuadVertices = 6

// Rect is an axis-aligned rectangle with corners (X0, Y0) and (X1, Y1).
type Rect struct {
	X0, Y0, X1, Y1 float32
}

// Positions returns the two triangles covering r as 6 xy pairs, wound
// (X0,Y0) (X1,Y0) (X1,Y1) then (X0,Y0) (X1,Y1) (X0,Y1).
func (r Rect) Positions() []float32 {
	return []float32{
		r.X0, r.Y0, r.X1, r.Y0, r.X1, r.Y1,
		r.X0, r.Y0, r.X1, r.Y1, r.X0, r.Y1,
	}
}

// UVs returns texture coordinates matching Positions, mapping the full
// texture onto the rectangle with v growing along Y.
func (r Rect) UVs() []float32 {
	return Rect{0, 0, 1, 1}.Positions()
}

// NewQuad builds a textured quad covering r. pos and uv receive Positions
// and UVs; either may be nil to omit the attribute.
func NewQuad(r Rect, texture TextureID, pos, uv *View) (*TexturedMesh, error) {
	m := NewTexturedMesh(QuadVertices, texture)
	if pos != nil {
		if err := AddAttribute(m.Mesh, pos, r.Positions()); err != nil {
			return nil, err
		}
	}
	if uv != nil {
		if err := AddAttribute(m.Mesh, uv, r.UVs()); err != nil {
			return nil, err
		}
	}
	return m, nil
}

package text

import (
	"fmt"
	"image"
	"math"

	gtfont "github.com/go-text/typesetting/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/gogpu/meshbatch"
)

// glyphKey identifies a rasterized glyph of the renderer's font.
type glyphKey struct {
	id   gtfont.GID
	ppem fixed.Int26_6
}

// glyph is a cached rasterization. Blank glyphs such as spaces have no
// texture.
type glyph struct {
	texture meshbatch.TextureID

	// bounds is the coverage rectangle in pixels relative to the glyph
	// origin, Y down.
	bounds image.Rectangle
}

// rasterizer renders glyph outlines to alpha masks. It reuses its buffers
// and is not safe for concurrent use.
type rasterizer struct {
	font *Font
	buf  sfnt.Buffer
	z    vector.Rasterizer
}

// Rasterize renders glyph id at ppem. It returns a nil mask for glyphs
// without an outline.
func (r *rasterizer) Rasterize(id gtfont.GID, ppem fixed.Int26_6) (*image.Alpha, image.Rectangle, error) {
	if id > math.MaxUint16 {
		return nil, image.Rectangle{}, fmt.Errorf("text: glyph %d out of range", id)
	}
	segs, err := r.font.outlines.LoadGlyph(&r.buf, sfnt.GlyphIndex(id), ppem, nil)
	if err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("text: load glyph %d: %w", id, err)
	}
	if len(segs) == 0 {
		return nil, image.Rectangle{}, nil
	}

	b := segs.Bounds()
	bounds := image.Rect(b.Min.X.Floor(), b.Min.Y.Floor(), b.Max.X.Ceil(), b.Max.Y.Ceil())
	if bounds.Empty() {
		return nil, image.Rectangle{}, nil
	}

	dx, dy := float32(bounds.Min.X), float32(bounds.Min.Y)
	pt := func(p fixed.Point26_6) (float32, float32) {
		return float32(p.X)/64 - dx, float32(p.Y)/64 - dy
	}

	r.z.Reset(bounds.Dx(), bounds.Dy())
	for _, s := range segs {
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			x, y := pt(s.Args[0])
			r.z.MoveTo(x, y)
		case sfnt.SegmentOpLineTo:
			x, y := pt(s.Args[0])
			r.z.LineTo(x, y)
		case sfnt.SegmentOpQuadTo:
			bx, by := pt(s.Args[0])
			cx, cy := pt(s.Args[1])
			r.z.QuadTo(bx, by, cx, cy)
		case sfnt.SegmentOpCubeTo:
			bx, by := pt(s.Args[0])
			cx, cy := pt(s.Args[1])
			ex, ey := pt(s.Args[2])
			r.z.CubeTo(bx, by, cx, cy, ex, ey)
		}
	}
	r.z.ClosePath()

	mask := image.NewAlpha(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	r.z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	return mask, bounds, nil
}

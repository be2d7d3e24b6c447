package text

import (
	"errors"
	"fmt"
	"image/color"

	gtfont "github.com/go-text/typesetting/font"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/meshbatch"
	"github.com/gogpu/meshbatch/internal/cache"
	"github.com/gogpu/meshbatch/shader"
)

// floatsPerVertex is the interleaved vertex layout: position (2), uv (2)
// and color (3).
const floatsPerVertex = 7

// Stats reports glyph cache activity.
type Stats struct {
	Glyphs    int
	Textures  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Renderer draws strings as one textured quad per glyph. Glyph coverage
// lives in per-glyph R8 textures kept in an LRU cache; quads sharing a
// glyph are drawn in one batch.
//
// Positions passed to Draw are in pixels with the origin at the top-left
// of the viewport and y on the baseline.
//
// A Renderer is not safe for concurrent use.
type Renderer struct {
	cfg      Config
	ppem     fixed.Int26_6
	shaper   *Shaper
	raster   rasterizer
	program  *shader.Program
	textures *meshbatch.TextureSet
	buf      *meshbatch.Buffer
	pos      *meshbatch.View
	uv       *meshbatch.View
	col      *meshbatch.View
	batcher  *meshbatch.Renderer
	glyphs   *cache.Cache[glyphKey, glyph]

	// retired holds textures of evicted glyphs. Quads queued this frame
	// may still reference them, so they are released after the frame.
	retired []meshbatch.TextureID

	vertices      int
	width, height float32
	closed        bool
}

// NewRenderer creates a text renderer on device. The pipeline targets
// format, or RGBA8Unorm when format is undefined.
func NewRenderer(device hal.Device, queue hal.Queue, format gputypes.TextureFormat, cfg Config) (_ *Renderer, err error) {
	if device == nil || queue == nil {
		return nil, meshbatch.ErrNilDevice
	}
	cfg = cfg.withDefaults()
	if cfg.Font == nil {
		if cfg.Font, err = DefaultFont(); err != nil {
			return nil, err
		}
	}

	r := &Renderer{
		cfg:    cfg,
		ppem:   fixed.Int26_6(cfg.pixelSize() * 64),
		shaper: NewShaper(cfg.Font),
		raster: rasterizer{font: cfg.Font},
	}
	defer func() {
		if err != nil {
			r.Destroy()
		}
	}()
	r.glyphs = cache.New[glyphKey, glyph](cfg.GlyphCacheSize, func(_ glyphKey, g glyph) {
		if g.texture != 0 {
			r.retired = append(r.retired, g.texture)
		}
	})

	if r.textures, err = meshbatch.NewTextureSet(device, queue, cfg.Label+"_glyphs"); err != nil {
		return nil, err
	}
	if r.program, err = shader.Text(device); err != nil {
		return nil, err
	}
	if r.buf, err = meshbatch.NewBuffer(device, cfg.Label, meshbatch.Float32, cfg.VertexCapacity*floatsPerVertex); err != nil {
		return nil, err
	}
	if r.pos, err = meshbatch.NewView(r.buf, floatsPerVertex, 0, 2); err != nil {
		return nil, err
	}
	if r.uv, err = meshbatch.NewView(r.buf, floatsPerVertex, 2, 2); err != nil {
		return nil, err
	}
	if r.col, err = meshbatch.NewView(r.buf, floatsPerVertex, 4, 3); err != nil {
		return nil, err
	}

	attrs := []meshbatch.Attribute{
		{Name: "position", View: r.pos},
		{Name: "uv", View: r.uv},
		{Name: "color", View: r.col},
	}
	if err = r.program.Check(attrs); err != nil {
		return nil, err
	}
	r.batcher, err = meshbatch.NewRenderer(device, queue, attrs,
		meshbatch.WithLabel(cfg.Label),
		meshbatch.WithAttributeSource(r.program),
		meshbatch.WithBatchKey(meshbatch.TextureKey),
		meshbatch.WithBatchState(r.textures),
	)
	if err != nil {
		return nil, err
	}
	pc := r.program.PipelineConfig()
	pc.Format = format
	if err = r.batcher.BuildPipeline(pc); err != nil {
		return nil, err
	}
	return r, nil
}

// SetViewport sets the pixel size of the render target.
func (r *Renderer) SetViewport(width, height int) {
	r.width, r.height = float32(width), float32(height)
}

// Draw queues s with its baseline starting at (x, y). The alpha of c is
// ignored.
func (r *Renderer) Draw(x, y float32, c color.Color, s string) error {
	if r.closed {
		return ErrClosed
	}
	if r.width <= 0 || r.height <= 0 {
		return ErrNoViewport
	}
	rgb := toRGB(c)

	for _, sg := range r.shaper.Shape(s, r.cfg.pixelSize()) {
		g, err := r.glyph(sg.ID)
		if err != nil {
			return err
		}
		if g.texture == 0 {
			continue
		}

		ox, oy := x+sg.X, y+sg.Y
		quad := meshbatch.Rect{
			X0: r.ndcX(ox + float32(g.bounds.Min.X)),
			Y0: r.ndcY(oy + float32(g.bounds.Min.Y)),
			X1: r.ndcX(ox + float32(g.bounds.Max.X)),
			Y1: r.ndcY(oy + float32(g.bounds.Max.Y)),
		}
		mesh := meshbatch.NewTexturedMesh(meshbatch.QuadVertices, g.texture)
		colors := make([]float32, 0, 3*meshbatch.QuadVertices)
		for range meshbatch.QuadVertices {
			colors = append(colors, rgb[:]...)
		}
		if err := errors.Join(
			meshbatch.AddAttribute(mesh.Mesh, r.pos, quad.Positions()),
			meshbatch.AddAttribute(mesh.Mesh, r.uv, quad.UVs()),
			meshbatch.AddAttribute(mesh.Mesh, r.col, colors),
		); err != nil {
			return err
		}

		if err := r.buf.Reserve((r.vertices + meshbatch.QuadVertices) * floatsPerVertex); err != nil {
			return err
		}
		r.vertices += meshbatch.QuadVertices
		r.batcher.Add(mesh)
	}
	return nil
}

// Measure returns the advance width of s in pixels.
func (r *Renderer) Measure(s string) float32 {
	return r.shaper.Measure(s, r.cfg.pixelSize())
}

// Render records the queued glyphs into pass. A frame with nothing queued
// records nothing and is not an error.
func (r *Renderer) Render(pass meshbatch.PassEncoder) error {
	if r.closed {
		return ErrClosed
	}
	if r.batcher.Pending() == 0 {
		r.endFrame()
		return nil
	}
	err := r.batcher.Render(pass)
	r.endFrame()
	return err
}

// RenderFrame clears target, renders the queued glyphs and submits.
func (r *Renderer) RenderFrame(target hal.TextureView) error {
	if r.closed {
		return ErrClosed
	}
	if r.batcher.Pending() == 0 {
		r.endFrame()
		return nil
	}
	err := r.batcher.RenderFrame(target)
	r.endFrame()
	return err
}

// Batches returns the batches of the last rendered frame.
func (r *Renderer) Batches() []meshbatch.Batch { return r.batcher.Batches() }

// Stats returns glyph cache statistics.
func (r *Renderer) Stats() Stats {
	s := r.glyphs.Stats()
	return Stats{
		Glyphs:    s.Len,
		Textures:  r.textures.Len(),
		Hits:      s.Hits,
		Misses:    s.Misses,
		Evictions: s.Evictions,
	}
}

// Destroy releases every GPU resource. It is safe to call more than once.
func (r *Renderer) Destroy() {
	if r.closed {
		return
	}
	r.closed = true
	if r.batcher != nil {
		r.batcher.Destroy()
	}
	if r.glyphs != nil {
		r.glyphs.Clear()
	}
	if r.textures != nil {
		r.textures.Destroy()
	}
	r.retired = nil
	if r.buf != nil {
		r.buf.Destroy()
	}
	if r.program != nil {
		r.program.Destroy()
	}
}

func (r *Renderer) glyph(id gtfont.GID) (glyph, error) {
	key := glyphKey{id: id, ppem: r.ppem}
	return r.glyphs.GetOrCreate(key, func() (glyph, error) {
		mask, bounds, err := r.raster.Rasterize(id, r.ppem)
		if err != nil || mask == nil {
			return glyph{}, err
		}
		tex, err := r.textures.AddAlpha(mask)
		if err != nil {
			return glyph{}, fmt.Errorf("text: upload glyph %d: %w", id, err)
		}
		return glyph{texture: tex, bounds: bounds}, nil
	})
}

func (r *Renderer) endFrame() {
	for _, id := range r.retired {
		r.textures.Remove(id)
	}
	if n := len(r.retired); n > 0 {
		meshbatch.Logger().Debug("meshbatch: glyph textures released", "count", n)
	}
	r.retired = r.retired[:0]
	r.vertices = 0
}

func (r *Renderer) ndcX(px float32) float32 { return 2*px/r.width - 1 }
func (r *Renderer) ndcY(py float32) float32 { return 1 - 2*py/r.height }

func toRGB(c color.Color) [3]float32 {
	if c == nil {
		return [3]float32{1, 1, 1}
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return [3]float32{float32(n.R) / 255, float32(n.G) / 255, float32(n.B) / 255}
}

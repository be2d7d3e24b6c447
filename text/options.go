package text

// Defaults applied by Config.withDefaults.
const (
	// DefaultFontSize is the font size in points.
	DefaultFontSize = 16.0

	// DefaultDPI maps points to pixels (72 DPI makes one point one pixel).
	DefaultDPI = 72.0

	// DefaultGlyphCacheSize is the number of glyph textures kept alive.
	DefaultGlyphCacheSize = 256

	// DefaultVertexCapacity is the initial number of glyph vertices the
	// vertex buffer is sized for.
	DefaultVertexCapacity = 1024
)

// Config holds configuration for a Renderer. Zero fields take defaults.
type Config struct {
	// Font is the face used for shaping and rasterization.
	// Defaults to the Go Regular font.
	Font *Font

	// FontSize is the size in points.
	FontSize float64

	// DPI scales FontSize to pixels.
	DPI float64

	// GlyphCacheSize bounds the number of rasterized glyph textures.
	GlyphCacheSize int

	// VertexCapacity is the initial vertex buffer size in vertices.
	VertexCapacity int

	// Label prefixes GPU resource labels.
	Label string
}

func (c Config) withDefaults() Config {
	if c.FontSize <= 0 {
		c.FontSize = DefaultFontSize
	}
	if c.DPI <= 0 {
		c.DPI = DefaultDPI
	}
	if c.GlyphCacheSize <= 0 {
		c.GlyphCacheSize = DefaultGlyphCacheSize
	}
	if c.VertexCapacity <= 0 {
		c.VertexCapacity = DefaultVertexCapacity
	}
	if c.Label == "" {
		c.Label = "meshbatch_text"
	}
	return c
}

// pixelSize returns the font size in pixels per em.
func (c Config) pixelSize() float64 {
	return c.FontSize * c.DPI / 72
}

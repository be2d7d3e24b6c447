package text

import (
	"bytes"
	"fmt"
	"sync"

	gtfont "github.com/go-text/typesetting/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// Font is a parsed TrueType or OpenType font. The same data backs shaping
// (go-text) and outline rasterization (x/image), so glyph IDs agree.
//
// Font is read-only and safe for concurrent use.
type Font struct {
	outlines *opentype.Font
	shaping  *gtfont.Font
	name     string
}

// ParseFont parses font data.
func ParseFont(data []byte) (*Font, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFontData
	}
	outlines, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("text: parse font: %w", err)
	}
	face, err := gtfont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("text: parse font for shaping: %w", err)
	}
	name, err := outlines.Name(nil, sfnt.NameIDFamily)
	if err != nil {
		name = ""
	}
	return &Font{outlines: outlines, shaping: face.Font, name: name}, nil
}

var defaultFont = sync.OnceValues(func() (*Font, error) {
	return ParseFont(goregular.TTF)
})

// DefaultFont returns the Go Regular font, parsed once.
func DefaultFont() (*Font, error) {
	return defaultFont()
}

// Name returns the font family name, if the font declares one.
func (f *Font) Name() string { return f.name }

// NumGlyphs returns the number of glyphs in the font.
func (f *Font) NumGlyphs() int { return f.outlines.NumGlyphs() }

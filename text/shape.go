package text

import (
	"math"

	"github.com/go-text/typesetting/di"
	gtfont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/bidi"
	"golang.org/x/text/width"

	"github.com/gogpu/meshbatch/internal/cache"
)

// DefaultRunCacheSize is the number of shaped runs a Shaper keeps.
const DefaultRunCacheSize = 128

// Glyph is a shaped glyph. X and Y place the glyph origin relative to the
// start of the run on the baseline, with Y growing down.
type Glyph struct {
	ID      gtfont.GID
	X, Y    float32
	Advance float32

	// Cluster is the index of the first rune of the glyph's cluster.
	Cluster int
}

// Shaper turns strings into positioned glyphs with HarfBuzz shaping.
// Shaped runs are kept in a small LRU keyed by text and size.
// A Shaper is not safe for concurrent use.
type Shaper struct {
	font   *Font
	face   *gtfont.Face
	shaper shaping.HarfbuzzShaper
	runs   *cache.Cache[runKey, []Glyph]
}

type runKey struct {
	text string
	size uint64
}

// NewShaper creates a shaper for f.
func NewShaper(f *Font) *Shaper {
	return &Shaper{
		font: f,
		face: gtfont.NewFace(f.shaping),
		runs: cache.New[runKey, []Glyph](DefaultRunCacheSize, nil),
	}
}

// Shape shapes s at ppem pixels per em. Full-width forms are folded to
// their narrow equivalents first. A run whose first strong character is
// right-to-left is shaped right-to-left; glyphs are returned in visual
// order either way.
//
// The returned slice is shared with the run cache and must not be modified.
func (s *Shaper) Shape(str string, ppem float64) []Glyph {
	if str == "" || ppem <= 0 {
		return nil
	}
	key := runKey{text: str, size: math.Float64bits(ppem)}
	if glyphs, ok := s.runs.Get(key); ok {
		return glyphs
	}
	glyphs := s.shape(str, ppem)
	s.runs.Put(key, glyphs)
	return glyphs
}

// RunStats reports how the shaped-run cache is doing.
func (s *Shaper) RunStats() cache.Stats {
	return s.runs.Stats()
}

func (s *Shaper) shape(str string, ppem float64) []Glyph {
	runes := []rune(width.Narrow.String(str))

	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: direction(runes),
		Face:      s.face,
		Size:      fixed.Int26_6(ppem * 64),
		Script:    script(runes),
		Language:  language.NewLanguage("en"),
	}
	out := s.shaper.Shape(input)

	glyphs := make([]Glyph, 0, len(out.Glyphs))
	var pen fixed.Int26_6
	for _, g := range out.Glyphs {
		glyphs = append(glyphs, Glyph{
			ID:      g.GlyphID,
			X:       fixedToFloat(pen + g.XOffset),
			Y:       -fixedToFloat(g.YOffset),
			Advance: fixedToFloat(g.Advance),
			Cluster: g.TextIndex(),
		})
		pen += g.Advance
	}
	return glyphs
}

// Measure returns the advance width of s in pixels.
func (s *Shaper) Measure(str string, ppem float64) float32 {
	var w float32
	for _, g := range s.Shape(str, ppem) {
		w += g.Advance
	}
	return w
}

func direction(runes []rune) di.Direction {
	for _, r := range runes {
		props, _ := bidi.LookupRune(r)
		switch props.Class() {
		case bidi.R, bidi.AL:
			return di.DirectionRTL
		case bidi.L:
			return di.DirectionLTR
		}
	}
	return di.DirectionLTR
}

func script(runes []rune) language.Script {
	for _, r := range runes {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}

func fixedToFloat(v fixed.Int26_6) float32 {
	return float32(v) / 64
}

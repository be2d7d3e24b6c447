// Package text draws strings with a meshbatch renderer.
//
// Text is shaped with go-text's HarfBuzz shaper and each glyph outline is
// rasterized once, with golang.org/x/image, into its own R8 texture. A
// string becomes one textured quad per visible glyph carrying interleaved
// position, uv and color attributes. Quads for the same glyph share a
// batch, so a frame costs one draw call per distinct glyph.
//
// # Example usage
//
//	tr, err := text.NewRenderer(device, queue, format, text.Config{FontSize: 24})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tr.Destroy()
//
//	tr.SetViewport(800, 600)
//	_ = tr.Draw(40, 80, color.White, "Hello, GoGPU!")
//	if err := tr.RenderFrame(target); err != nil {
//	    log.Fatal(err)
//	}
//
// # Glyph cache
//
// Rasterized glyphs live in an LRU cache bounded by Config.GlyphCacheSize.
// Textures of evicted glyphs are released after the frame that evicted them
// has been rendered.
package text

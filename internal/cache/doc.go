// Package cache provides a generic LRU cache with an eviction callback.
//
// The text renderer keys rasterized glyphs by glyph and size and keeps
// their GPU textures in a Cache. When an entry falls out, the callback
// schedules the texture for release:
//
//	glyphs := cache.New[glyphKey, glyph](256, func(k glyphKey, g glyph) {
//		pending = append(pending, g.texture)
//	})
//	g, err := glyphs.GetOrCreate(key, rasterize)
//
// Cache is safe for concurrent use. The eviction callback runs outside the
// cache lock and may call back into the cache.
package cache

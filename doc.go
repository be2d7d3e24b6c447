// Package meshbatch packs many small meshes into shared GPU vertex buffers
// and draws them with as few draw calls as possible.
//
// # Overview
//
// A [Buffer] is a growable array of scalars mirrored to a GPU vertex
// buffer. A [View] describes how one vertex attribute is interleaved into a
// buffer: a stride, an offset and a component count, all in elements.
// A [Mesh] carries a vertex count and the values of each attribute it
// supplies, together with the view each set of values is written through.
//
// A [Renderer] collects meshes for a frame. On Render it lays them out back
// to back, writes every attribute at the mesh's vertex offset, uploads each
// buffer once and records one draw call per [Batch].
//
// # Quick Start
//
//	buf, _ := meshbatch.NewBuffer(device, "vertices", meshbatch.Float32, 1024)
//	pos, _ := meshbatch.NewView(buf, 4, 0, 2) // xy at elements 0-1 of each 4
//	uv, _ := meshbatch.NewView(buf, 4, 2, 2)  // uv at elements 2-3
//
//	r, _ := meshbatch.NewRenderer(device, queue,
//	    []meshbatch.Attribute{{View: pos}, {View: uv}},
//	    meshbatch.WithBatchKey(meshbatch.TextureKey),
//	    meshbatch.WithBatchState(textures))
//
//	quad, _ := meshbatch.NewQuad(meshbatch.Rect{X0: 0, Y0: 0, X1: 1, Y1: 1}, tex, pos, uv)
//	r.Add(quad)
//	err := r.RenderFrame(targetView)
//
// # Batching
//
// Without a key every mesh lands in one batch in insertion order. With
// [WithBatchKey], meshes are stable-sorted by key and a new batch starts
// each time the key changes; [TextureSet] then binds each batch's texture.
//
// # Logging
//
// The package is silent by default. See [SetLogger].
package meshbatch

package meshbatch

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// RendererOption configures a Renderer during creation.
//
// Example:
//
//	// Merge draws by texture and bind each texture per batch.
//	r, err := meshbatch.NewRenderer(device, queue, attrs,
//	    meshbatch.WithBatchKey(meshbatch.TextureKey),
//	    meshbatch.WithBatchState(textures))
type RendererOption func(*rendererOptions)

// rendererOptions holds optional configuration for a Renderer.
type rendererOptions struct {
	label      string
	key        KeyFunc
	state      BatchState
	pipeline   hal.RenderPipeline
	source     AttributeSource
	topology   gputypes.PrimitiveTopology
	clearColor gputypes.Color
	workers    int
}

// defaultRendererOptions returns the default renderer options: no batch
// key (one draw for everything), no batch state, triangle lists.
func defaultRendererOptions() rendererOptions {
	return rendererOptions{
		label:    "meshbatch",
		topology: gputypes.PrimitiveTopologyTriangleList,
	}
}

// WithLabel sets the prefix used for GPU resource labels.
func WithLabel(label string) RendererOption {
	return func(o *rendererOptions) {
		o.label = label
	}
}

// WithBatchKey enables keyed batching: meshes are stable-sorted by key and
// one draw is issued per run of equal keys.
func WithBatchKey(key KeyFunc) RendererOption {
	return func(o *rendererOptions) {
		o.key = key
	}
}

// WithBatchState sets the state bound around each batch's draw call.
func WithBatchState(state BatchState) RendererOption {
	return func(o *rendererOptions) {
		o.state = state
	}
}

// WithPipeline sets an externally created render pipeline. The renderer
// binds it at the start of Render but does not destroy it.
func WithPipeline(pipeline hal.RenderPipeline) RendererOption {
	return func(o *rendererOptions) {
		o.pipeline = pipeline
	}
}

// WithAttributeSource resolves named attributes against a shader program.
func WithAttributeSource(src AttributeSource) RendererOption {
	return func(o *rendererOptions) {
		o.source = src
	}
}

// WithTopology sets the primitive topology used by BuildPipeline.
func WithTopology(t gputypes.PrimitiveTopology) RendererOption {
	return func(o *rendererOptions) {
		o.topology = t
	}
}

// WithClearColor sets the color RenderFrame clears the target to.
func WithClearColor(c gputypes.Color) RendererOption {
	return func(o *rendererOptions) {
		o.clearColor = c
	}
}

// WithInsertWorkers writes meshes into their buffers on n goroutines. Each
// Drawable's Insert must then be safe to run alongside the others'. Values
// below 2 keep insertion on the calling goroutine.
func WithInsertWorkers(n int) RendererOption {
	return func(o *rendererOptions) {
		o.workers = n
	}
}

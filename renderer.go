package meshbatch

import (
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/meshbatch/internal/parallel"
)

// PassEncoder is the subset of hal.RenderPassEncoder the renderer records
// into. Any hal.RenderPassEncoder satisfies it.
type PassEncoder interface {
	SetPipeline(pipeline hal.RenderPipeline)
	SetBindGroup(index uint32, group hal.BindGroup, offsets []uint32)
	SetVertexBuffer(slot uint32, buffer hal.Buffer, offset uint64)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
}

// AttributeSource maps attribute names to shader input locations.
// The shader package's Program implements it.
type AttributeSource interface {
	NumAttributes() int
	AttributeLocation(name string) (uint32, bool)
}

// BatchState binds the render state shared by a batch. Enter runs before
// the batch's draw call and Exit after it; Exit reverts whatever Enter set
// that must not leak into the next batch. States that only set bind groups
// may leave Exit empty, since the next Enter replaces the group.
//
// Commands issued through pass reach the real pass only after Enter has
// succeeded for every batch of the frame, so a failing Enter leaves the
// pass untouched.
type BatchState interface {
	Enter(pass PassEncoder, b Batch) error
	Exit(pass PassEncoder, b Batch)
}

// BatchValidator is implemented by batch states that can reject a batch
// before any vertex data is uploaded. Render calls Validate for every batch
// of the frame before Enter.
type BatchValidator interface {
	Validate(b Batch) error
}

// layoutProvider is implemented by batch states that bind a group the
// pipeline layout must declare.
type layoutProvider interface {
	BindGroupLayout() hal.BindGroupLayout
}

// Attribute binds a view to a shader input. An empty Name binds the view
// to the location equal to its index in the attribute list.
type Attribute struct {
	Name string
	View *View
}

// binding is a resolved Attribute. Each binding occupies its own vertex
// buffer slot, in attribute order.
type binding struct {
	name     string
	view     *View
	location uint32
}

// Renderer collects drawables, packs them into shared vertex buffers and
// records one draw call per batch.
//
// A frame is: Add meshes, then Render into a render pass (or RenderFrame
// to encode and submit a pass of its own). Render consumes the collected
// meshes, so the next frame starts empty.
//
// Renderer is not safe for concurrent use. Render is not re-entrant.
type Renderer struct {
	device hal.Device
	queue  hal.Queue
	opts   rendererOptions

	bindings []binding
	owned    []*Buffer

	items     []Drawable
	batches   []Batch
	rendering bool

	pipeline      hal.RenderPipeline
	pipeLayout    hal.PipelineLayout
	ownsPipeline  bool
	surfaceFormat gputypes.TextureFormat

	pool *parallel.WorkerPool
}

// NewRenderer creates a renderer drawing with the given attribute views.
// Named attributes are resolved through WithAttributeSource.
func NewRenderer(device hal.Device, queue hal.Queue, attrs []Attribute, opts ...RendererOption) (*Renderer, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	o := defaultRendererOptions()
	for _, opt := range opts {
		opt(&o)
	}
	r := &Renderer{
		device:        device,
		queue:         queue,
		opts:          o,
		pipeline:      o.pipeline,
		surfaceFormat: gputypes.TextureFormatRGBA8Unorm,
	}
	if err := r.bind(attrs); err != nil {
		return nil, err
	}
	if o.workers > 1 {
		r.pool = parallel.NewWorkerPool(o.workers)
	}
	return r, nil
}

// bind resolves attribute names and indices to shader locations.
func (r *Renderer) bind(attrs []Attribute) error {
	src := r.opts.source
	r.bindings = make([]binding, 0, len(attrs))
	for i, a := range attrs {
		if a.View == nil {
			return fmt.Errorf("%w: attribute %d has no view", ErrInvalidView, i)
		}
		var loc uint32
		switch {
		case a.Name != "":
			if src == nil {
				return fmt.Errorf("%w: %q without an attribute source", ErrUnknownAttribute, a.Name)
			}
			l, ok := src.AttributeLocation(a.Name)
			if !ok {
				return fmt.Errorf("%w: %q", ErrUnknownAttribute, a.Name)
			}
			loc = l
		default:
			if src != nil && i >= src.NumAttributes() {
				return fmt.Errorf("%w: index %d, shader declares %d", ErrUnknownAttribute, i, src.NumAttributes())
			}
			loc = uint32(i)
		}
		r.bindings = append(r.bindings, binding{name: a.Name, view: a.View, location: loc})
	}
	return nil
}

// NewBuffer creates a buffer on the renderer's device. The renderer owns it
// and destroys it in Destroy.
func (r *Renderer) NewBuffer(label string, elem ElementType, count int) (*Buffer, error) {
	b, err := NewBuffer(r.device, r.opts.label+"_"+label, elem, count)
	if err != nil {
		return nil, err
	}
	r.owned = append(r.owned, b)
	return b, nil
}

// Add queues drawables for the next Render. Nil drawables are ignored.
func (r *Renderer) Add(items ...Drawable) {
	for _, d := range items {
		if d != nil {
			r.items = append(r.items, d)
		}
	}
}

// Pending returns the number of drawables queued for the next Render.
func (r *Renderer) Pending() int { return len(r.items) }

// Batches returns the batches recorded by the last successful Render.
func (r *Renderer) Batches() []Batch {
	out := make([]Batch, len(r.batches))
	copy(out, r.batches)
	return out
}

// Render lays out the queued drawables, uploads every bound buffer once and
// records one draw per batch into pass. The queue of drawables is consumed
// whether or not Render succeeds.
//
// Render returns ErrEmptyBatch when nothing was added. On any error no draw
// call is recorded.
func (r *Renderer) Render(pass PassEncoder) error {
	if r.rendering {
		return ErrRenderInProgress
	}
	r.rendering = true
	defer func() { r.rendering = false }()

	items := r.items
	r.items = nil
	if len(items) == 0 {
		return ErrEmptyBatch
	}

	batches, err := r.prepare(items)
	if err != nil {
		return err
	}

	rec := &passRecorder{}
	state := r.opts.state
	for _, b := range batches {
		if state != nil {
			if err := state.Enter(rec, b); err != nil {
				return fmt.Errorf("enter batch at vertex %d: %w", b.Offset, err)
			}
		}
		rec.Draw(uint32(b.NumVertex), 1, uint32(b.Offset), 0)
		if state != nil {
			state.Exit(rec, b)
		}
	}

	if r.pipeline != nil {
		pass.SetPipeline(r.pipeline)
	}
	for slot, b := range r.bindings {
		pass.SetVertexBuffer(uint32(slot), b.view.Buffer().Raw(), b.view.ByteOffset())
	}
	rec.replay(pass)

	r.batches = batches
	Logger().Debug("meshbatch: frame recorded",
		"meshes", len(items), "batches", len(batches))
	return nil
}

// prepare batches and writes items, then uploads each bound buffer once.
// Nothing is recorded into a pass.
func (r *Renderer) prepare(items []Drawable) ([]Batch, error) {
	batches, err := buildBatches(items, r.opts.key, r.pool)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, b := range batches {
		total += b.NumVertex
	}
	if uint64(total) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d vertices", ErrOutOfBoundsWrite, total)
	}

	if v, ok := r.opts.state.(BatchValidator); ok {
		for _, b := range batches {
			if err := v.Validate(b); err != nil {
				return nil, fmt.Errorf("batch at vertex %d: %w", b.Offset, err)
			}
		}
	}

	seen := make(map[uint64]bool, len(r.bindings))
	for _, b := range r.bindings {
		buf := b.view.Buffer()
		if seen[buf.ID()] {
			continue
		}
		seen[buf.ID()] = true
		if err := buf.Upload(r.queue); err != nil {
			return nil, err
		}
		if total > 0 && buf.Raw() == nil {
			return nil, fmt.Errorf("%w: buffer %s has no GPU storage", ErrNilDevice, buf.Label())
		}
	}
	return batches, nil
}

// VertexLayouts returns one vertex buffer layout per attribute, in slot
// order.
func (r *Renderer) VertexLayouts() ([]gputypes.VertexBufferLayout, error) {
	layouts := make([]gputypes.VertexBufferLayout, len(r.bindings))
	for i, b := range r.bindings {
		l, err := b.view.Layout(b.location)
		if err != nil {
			return nil, fmt.Errorf("attribute %d: %w", i, err)
		}
		layouts[i] = l
	}
	return layouts, nil
}

// PipelineConfig describes the render pipeline built by BuildPipeline.
type PipelineConfig struct {
	// Module holds both entry points.
	Module hal.ShaderModule

	// VertexEntry and FragmentEntry default to "vs_main" and "fs_main".
	VertexEntry   string
	FragmentEntry string

	// Format is the color target format. Defaults to the provider's surface
	// format, or RGBA8Unorm.
	Format gputypes.TextureFormat

	// BindGroupLayouts default to the batch state's layout, if it has one.
	BindGroupLayouts []hal.BindGroupLayout

	// Blend defaults to premultiplied alpha.
	Blend *gputypes.BlendState
}

// BuildPipeline creates the renderer's pipeline from a shader module and
// the attribute layouts. A previously built pipeline is replaced.
func (r *Renderer) BuildPipeline(cfg PipelineConfig) error {
	if cfg.Module == nil {
		return fmt.Errorf("build pipeline: nil shader module")
	}
	if cfg.VertexEntry == "" {
		cfg.VertexEntry = "vs_main"
	}
	if cfg.FragmentEntry == "" {
		cfg.FragmentEntry = "fs_main"
	}
	if cfg.Format == gputypes.TextureFormatUndefined {
		cfg.Format = r.surfaceFormat
	}
	if cfg.Blend == nil {
		premul := gputypes.BlendStatePremultiplied()
		cfg.Blend = &premul
	}
	if cfg.BindGroupLayouts == nil {
		if lp, ok := r.opts.state.(layoutProvider); ok {
			cfg.BindGroupLayouts = []hal.BindGroupLayout{lp.BindGroupLayout()}
		}
	}

	layouts, err := r.VertexLayouts()
	if err != nil {
		return err
	}

	r.destroyPipeline()

	pipeLayout, err := r.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            r.opts.label + "_pipe_layout",
		BindGroupLayouts: cfg.BindGroupLayouts,
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	r.pipeLayout = pipeLayout

	pipeline, err := r.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  r.opts.label + "_pipeline",
		Layout: r.pipeLayout,
		Vertex: hal.VertexState{
			Module:     cfg.Module,
			EntryPoint: cfg.VertexEntry,
			Buffers:    layouts,
		},
		Fragment: &hal.FragmentState{
			Module:     cfg.Module,
			EntryPoint: cfg.FragmentEntry,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    cfg.Format,
					Blend:     cfg.Blend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: r.opts.topology,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		r.destroyPipeline()
		return fmt.Errorf("create render pipeline: %w", err)
	}
	r.pipeline = pipeline
	r.ownsPipeline = true

	Logger().Info("meshbatch: pipeline created",
		"label", r.opts.label, "attributes", len(layouts), "format", cfg.Format)
	return nil
}

// RenderFrame encodes a render pass that clears target, records Render
// into it, submits the commands and waits for the GPU to finish.
func (r *Renderer) RenderFrame(target hal.TextureView) error {
	if target == nil {
		return fmt.Errorf("render frame: nil target")
	}
	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: r.opts.label + "_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(r.opts.label + "_frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: r.opts.label + "_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: r.opts.clearColor,
		}},
	})
	renderErr := r.Render(rp)
	rp.End()
	if renderErr != nil {
		encoder.DiscardEncoding()
		return renderErr
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer r.device.FreeCommandBuffer(cmdBuf)

	if _, err := r.queue.Submit([]hal.CommandBuffer{cmdBuf}); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if err := r.device.WaitIdle(); err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	return nil
}

// Destroy releases the pipeline built by BuildPipeline and every buffer
// created through NewBuffer. Safe to call multiple times.
func (r *Renderer) Destroy() {
	r.destroyPipeline()
	for _, b := range r.owned {
		b.Destroy()
	}
	r.owned = nil
	r.items = nil
	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
}

// destroyPipeline releases pipeline resources in reverse creation order.
func (r *Renderer) destroyPipeline() {
	if r.ownsPipeline && r.pipeline != nil {
		r.device.DestroyRenderPipeline(r.pipeline)
		r.pipeline = nil
		r.ownsPipeline = false
	}
	if r.pipeLayout != nil {
		r.device.DestroyPipelineLayout(r.pipeLayout)
		r.pipeLayout = nil
	}
}

// passRecorder buffers pass commands until the whole frame is known to
// record without error.
type passRecorder struct {
	ops []func(PassEncoder)
}

func (p *passRecorder) SetPipeline(pipeline hal.RenderPipeline) {
	p.ops = append(p.ops, func(pass PassEncoder) { pass.SetPipeline(pipeline) })
}

func (p *passRecorder) SetBindGroup(index uint32, group hal.BindGroup, offsets []uint32) {
	p.ops = append(p.ops, func(pass PassEncoder) { pass.SetBindGroup(index, group, offsets) })
}

func (p *passRecorder) SetVertexBuffer(slot uint32, buffer hal.Buffer, offset uint64) {
	p.ops = append(p.ops, func(pass PassEncoder) { pass.SetVertexBuffer(slot, buffer, offset) })
}

func (p *passRecorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.ops = append(p.ops, func(pass PassEncoder) {
		pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	})
}

func (p *passRecorder) replay(pass PassEncoder) {
	for _, op := range p.ops {
		op(pass)
	}
}

package meshbatch

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/meshbatch/internal/gputest"
)

type rendererFixture struct {
	device hal.Device
	queue  *gputest.RecordingQueue
	r      *Renderer
	buf    *Buffer
	pos    *View
	uv     *View
}

// newRendererFixture builds a renderer over one interleaved float buffer:
// xy at elements 0-1 and uv at 2-3 of every 4.
func newRendererFixture(t *testing.T, vertices int, opts ...RendererOption) *rendererFixture {
	t.Helper()
	device, queue := gputest.NoopDevice(t)
	f := &rendererFixture{device: device, queue: &gputest.RecordingQueue{Queue: queue}}

	var err error
	f.buf, err = NewBuffer(device, "vertices", Float32, vertices*4)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	t.Cleanup(f.buf.Destroy)
	f.pos, _ = NewView(f.buf, 4, 0, 2)
	f.uv, _ = NewView(f.buf, 4, 2, 2)

	f.r, err = NewRenderer(device, f.queue, []Attribute{{View: f.pos}, {View: f.uv}}, opts...)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(f.r.Destroy)
	return f
}

func (f *rendererFixture) quad(t *testing.T, tex TextureID, x float32) *TexturedMesh {
	t.Helper()
	m, err := NewQuad(Rect{X0: x, Y0: 0, X1: x + 1, Y1: 1}, tex, f.pos, f.uv)
	if err != nil {
		t.Fatalf("NewQuad: %v", err)
	}
	return m
}

func TestNewRendererRequiresDevice(t *testing.T) {
	if _, err := NewRenderer(nil, nil, nil); !errors.Is(err, ErrNilDevice) {
		t.Errorf("NewRenderer(nil) = %v, want ErrNilDevice", err)
	}
}

func TestRendererEmptyFrame(t *testing.T) {
	f := newRendererFixture(t, 6)
	pass := &gputest.RecordingPass{}
	if err := f.r.Render(pass); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("Render = %v, want ErrEmptyBatch", err)
	}
	if len(pass.Ops) != 0 {
		t.Errorf("empty frame recorded %v", pass.Ops)
	}
}

func TestRendererSingleBatch(t *testing.T) {
	f := newRendererFixture(t, 18)
	for i := range 3 {
		f.r.Add(f.quad(t, TextureID(3-i), float32(i*10)))
	}

	pass := &gputest.RecordingPass{}
	if err := f.r.Render(pass); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if want := []gputest.Draw{{VertexCount: 18, InstanceCount: 1}}; !slices.Equal(pass.Draws, want) {
		t.Errorf("draws = %+v, want %+v", pass.Draws, want)
	}

	// Quad i starts at vertex 6*i; its first x is 10*i.
	data := Elements[float32](f.buf)
	for i := range 3 {
		if got := data[6*i*4]; got != float32(i*10) {
			t.Errorf("quad %d x = %v, want %v", i, got, float32(i*10))
		}
	}

	wantSlots := []gputest.VertexBuffer{
		{Slot: 0, Buffer: f.buf.Raw(), Offset: 0},
		{Slot: 1, Buffer: f.buf.Raw(), Offset: 8},
	}
	if !slices.Equal(pass.VertexBuffers, wantSlots) {
		t.Errorf("vertex buffers = %+v, want %+v", pass.VertexBuffers, wantSlots)
	}
}

func TestRendererUploadsEachBufferOnce(t *testing.T) {
	f := newRendererFixture(t, 6)
	f.r.Add(f.quad(t, 0, 0))
	if err := f.r.Render(&gputest.RecordingPass{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(f.queue.Writes) != 1 {
		t.Fatalf("got %d uploads, want 1 for a buffer shared by two views", len(f.queue.Writes))
	}
	if got, want := len(f.queue.Writes[0].Data), f.buf.Capacity(); got != want {
		t.Errorf("uploaded %d bytes, want %d", got, want)
	}
}

func TestRendererBatchesByKey(t *testing.T) {
	f := newRendererFixture(t, 24, WithBatchKey(TextureKey))
	for i, key := range []TextureID{2, 1, 2, 1} {
		f.r.Add(f.quad(t, key, float32(i)))
	}
	pass := &gputest.RecordingPass{}
	if err := f.r.Render(pass); err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := []gputest.Draw{
		{VertexCount: 12, InstanceCount: 1, FirstVertex: 0},
		{VertexCount: 12, InstanceCount: 1, FirstVertex: 12},
	}
	if !slices.Equal(pass.Draws, want) {
		t.Errorf("draws = %+v, want %+v", pass.Draws, want)
	}

	// Sorted order is quads 1, 3, 0, 2.
	data := Elements[float32](f.buf)
	for slot, quad := range []int{1, 3, 0, 2} {
		if got := data[slot*6*4]; got != float32(quad) {
			t.Errorf("slot %d holds x=%v, want quad %d", slot, got, quad)
		}
	}

	batches := f.r.Batches()
	if len(batches) != 2 || batches[0].Key != 1 || batches[1].Key != 2 {
		t.Errorf("Batches() = %+v", batches)
	}
}

func TestRendererParallelInsert(t *testing.T) {
	f := newRendererFixture(t, 6*64, WithBatchKey(TextureKey), WithInsertWorkers(4))
	for i := range 64 {
		f.r.Add(f.quad(t, TextureID(i%4), float32(i)))
	}
	pass := &gputest.RecordingPass{}
	if err := f.r.Render(pass); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(pass.Draws) != 4 {
		t.Fatalf("draws = %+v, want 4", pass.Draws)
	}
	// Key 0 holds quads 0, 4, 8, ... in insertion order.
	data := Elements[float32](f.buf)
	for slot := range 16 {
		if got := data[slot*6*4]; got != float32(slot*4) {
			t.Errorf("slot %d holds x=%v, want %d", slot, got, slot*4)
		}
	}
}

func TestRendererConsumesQueue(t *testing.T) {
	f := newRendererFixture(t, 6)
	f.r.Add(f.quad(t, 0, 0), nil)
	if f.r.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", f.r.Pending())
	}
	if err := f.r.Render(&gputest.RecordingPass{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if f.r.Pending() != 0 {
		t.Errorf("Pending after Render = %d, want 0", f.r.Pending())
	}
	if err := f.r.Render(&gputest.RecordingPass{}); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("second Render = %v, want ErrEmptyBatch", err)
	}
}

func TestRendererOutOfBoundsDrawsNothing(t *testing.T) {
	f := newRendererFixture(t, 6)
	f.r.Add(f.quad(t, 0, 0), f.quad(t, 0, 1))
	pass := &gputest.RecordingPass{}
	if err := f.r.Render(pass); !errors.Is(err, ErrOutOfBoundsWrite) {
		t.Fatalf("Render = %v, want ErrOutOfBoundsWrite", err)
	}
	if len(pass.Ops) != 0 {
		t.Errorf("failed frame recorded %v", pass.Ops)
	}
	if len(f.queue.Writes) != 0 {
		t.Errorf("failed frame uploaded %d buffers", len(f.queue.Writes))
	}
}

func TestRendererUploadFailureDrawsNothing(t *testing.T) {
	f := newRendererFixture(t, 6)
	boom := errors.New("boom")
	f.queue.Fail = boom
	f.r.Add(f.quad(t, 0, 0))
	pass := &gputest.RecordingPass{}
	if err := f.r.Render(pass); !errors.Is(err, boom) {
		t.Fatalf("Render = %v, want upload error", err)
	}
	if len(pass.Draws) != 0 {
		t.Errorf("failed frame recorded %d draws", len(pass.Draws))
	}
}

// reentrantState calls Render from inside a batch.
type reentrantState struct {
	r   *Renderer
	err error
}

func (s *reentrantState) Enter(pass PassEncoder, _ Batch) error {
	s.err = s.r.Render(pass)
	return nil
}

func (s *reentrantState) Exit(PassEncoder, Batch) {}

func TestRendererNotReentrant(t *testing.T) {
	state := &reentrantState{}
	f := newRendererFixture(t, 6, WithBatchState(state))
	state.r = f.r
	f.r.Add(f.quad(t, 0, 0))
	if err := f.r.Render(&gputest.RecordingPass{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !errors.Is(state.err, ErrRenderInProgress) {
		t.Errorf("nested Render = %v, want ErrRenderInProgress", state.err)
	}
}

// orderState binds a group per batch through the pass it is given and
// logs its own calls.
type orderState struct {
	calls []string
}

func (s *orderState) Enter(pass PassEncoder, b Batch) error {
	s.calls = append(s.calls, fmt.Sprintf("Enter %d", b.Key))
	pass.SetBindGroup(0, nil, nil)
	return nil
}

func (s *orderState) Exit(_ PassEncoder, b Batch) {
	s.calls = append(s.calls, fmt.Sprintf("Exit %d", b.Key))
}

func TestRendererBatchStateWrapsDraws(t *testing.T) {
	state := &orderState{}
	f := newRendererFixture(t, 12, WithBatchKey(TextureKey), WithBatchState(state))
	f.r.Add(f.quad(t, 1, 0), f.quad(t, 2, 0))
	pass := &gputest.RecordingPass{}
	if err := f.r.Render(pass); err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := []string{
		"SetVertexBuffer", "SetVertexBuffer",
		"SetBindGroup", "Draw",
		"SetBindGroup", "Draw",
	}
	if !slices.Equal(pass.Ops, want) {
		t.Errorf("ops = %v, want %v", pass.Ops, want)
	}
	if want := []string{"Enter 1", "Exit 1", "Enter 2", "Exit 2"}; !slices.Equal(state.calls, want) {
		t.Errorf("state calls = %v, want %v", state.calls, want)
	}
}

// failingState binds every batch until it reaches the key it rejects.
type failingState struct {
	failKey uint64
	err     error
}

func (s *failingState) Enter(pass PassEncoder, b Batch) error {
	if b.Key == s.failKey {
		return s.err
	}
	pass.SetBindGroup(0, nil, nil)
	return nil
}

func (s *failingState) Exit(PassEncoder, Batch) {}

func TestRendererFailedEnterDrawsNothing(t *testing.T) {
	bind := errors.New("bind failed")
	f := newRendererFixture(t, 12, WithBatchKey(TextureKey), WithBatchState(&failingState{failKey: 2, err: bind}))
	f.r.Add(f.quad(t, 1, 0), f.quad(t, 2, 0))
	pass := &gputest.RecordingPass{}
	if err := f.r.Render(pass); !errors.Is(err, bind) {
		t.Fatalf("Render = %v, want bind failure", err)
	}
	if len(pass.Ops) != 0 {
		t.Errorf("failed frame recorded %v", pass.Ops)
	}
}

// rejectingState refuses one key before anything is uploaded.
type rejectingState struct {
	failingState
}

func (s *rejectingState) Validate(b Batch) error {
	if b.Key == s.failKey {
		return s.err
	}
	return nil
}

func TestRendererBatchValidatorRejectsBeforeUpload(t *testing.T) {
	missing := errors.New("missing")
	f := newRendererFixture(t, 12, WithBatchKey(TextureKey),
		WithBatchState(&rejectingState{failingState{failKey: 1, err: missing}}))
	f.r.Add(f.quad(t, 1, 0), f.quad(t, 2, 0))
	pass := &gputest.RecordingPass{}
	if err := f.r.Render(pass); !errors.Is(err, missing) {
		t.Fatalf("Render = %v, want validation failure", err)
	}
	if len(pass.Ops) != 0 || len(f.queue.Writes) != 0 {
		t.Errorf("rejected frame recorded %v and uploaded %d buffers", pass.Ops, len(f.queue.Writes))
	}
}

// fakeSource resolves a fixed set of names.
type fakeSource map[string]uint32

func (s fakeSource) NumAttributes() int { return len(s) }

func (s fakeSource) AttributeLocation(name string) (uint32, bool) {
	loc, ok := s[name]
	return loc, ok
}

func TestRendererResolvesAttributes(t *testing.T) {
	device, queue := gputest.NoopDevice(t)
	b, _ := NewBuffer(device, "attrs", Float32, 16)
	defer b.Destroy()
	pos, _ := NewView(b, 4, 0, 2)
	uv, _ := NewView(b, 4, 2, 2)
	src := fakeSource{"position": 3, "uv": 5}

	r, err := NewRenderer(device, queue,
		[]Attribute{{Name: "uv", View: uv}, {Name: "position", View: pos}},
		WithAttributeSource(src))
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	layouts, err := r.VertexLayouts()
	if err != nil {
		t.Fatalf("VertexLayouts: %v", err)
	}
	if got := []uint32{layouts[0].Attributes[0].ShaderLocation, layouts[1].Attributes[0].ShaderLocation}; !slices.Equal(got, []uint32{5, 3}) {
		t.Errorf("locations = %v, want [5 3]", got)
	}

	_, err = NewRenderer(device, queue, []Attribute{{Name: "normal", View: pos}}, WithAttributeSource(src))
	if !errors.Is(err, ErrUnknownAttribute) {
		t.Errorf("unknown name = %v, want ErrUnknownAttribute", err)
	}
	_, err = NewRenderer(device, queue, []Attribute{{Name: "uv", View: uv}})
	if !errors.Is(err, ErrUnknownAttribute) {
		t.Errorf("name without source = %v, want ErrUnknownAttribute", err)
	}
	_, err = NewRenderer(device, queue,
		[]Attribute{{View: pos}, {View: uv}, {View: pos}}, WithAttributeSource(src))
	if !errors.Is(err, ErrUnknownAttribute) {
		t.Errorf("index past shader inputs = %v, want ErrUnknownAttribute", err)
	}
	_, err = NewRenderer(device, queue, []Attribute{{}})
	if !errors.Is(err, ErrInvalidView) {
		t.Errorf("attribute without view = %v, want ErrInvalidView", err)
	}
}

func TestRendererBuildPipeline(t *testing.T) {
	f := newRendererFixture(t, 6, WithLabel("quads"))
	module, err := f.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "quads_shader",
		Source: hal.ShaderSource{WGSL: "@vertex fn vs_main() {}"},
	})
	if err != nil {
		t.Fatalf("CreateShaderModule: %v", err)
	}
	defer f.device.DestroyShaderModule(module)

	if err := f.r.BuildPipeline(PipelineConfig{}); err == nil {
		t.Error("BuildPipeline without a module should fail")
	}
	if err := f.r.BuildPipeline(PipelineConfig{Module: module, Format: gputypes.TextureFormatBGRA8Unorm}); err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}

	f.r.Add(f.quad(t, 0, 0))
	pass := &gputest.RecordingPass{}
	if err := f.r.Render(pass); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(pass.Ops) == 0 || pass.Ops[0] != "SetPipeline" {
		t.Errorf("ops = %v, want SetPipeline first", pass.Ops)
	}
}

func TestRendererRenderFrame(t *testing.T) {
	f := newRendererFixture(t, 6, WithClearColor(gputypes.Color{A: 1}))
	tex, err := f.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "target",
		Size:          hal.Extent3D{Width: 4, Height: 4, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	defer f.device.DestroyTexture(tex)
	view, err := f.device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: "target_view"})
	if err != nil {
		t.Fatalf("CreateTextureView: %v", err)
	}
	defer f.device.DestroyTextureView(view)

	if err := f.r.RenderFrame(view); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("empty RenderFrame = %v, want ErrEmptyBatch", err)
	}
	f.r.Add(f.quad(t, 0, 0))
	if err := f.r.RenderFrame(view); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if got := f.r.Batches(); len(got) != 1 || got[0].NumVertex != 6 {
		t.Errorf("Batches() = %+v, want one batch of 6", got)
	}
	if err := f.r.RenderFrame(nil); err == nil {
		t.Error("RenderFrame(nil) should fail")
	}
}

func TestRendererDestroyReleasesOwnedBuffers(t *testing.T) {
	device, queue := gputest.NoopDevice(t)
	r, err := NewRenderer(device, queue, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.NewBuffer("owned", Float32, 8)
	if err != nil {
		t.Fatal(err)
	}
	if b.Label() != "meshbatch_owned" {
		t.Errorf("Label = %q, want meshbatch_owned", b.Label())
	}
	r.Destroy()
	r.Destroy()
	if !b.Destroyed() {
		t.Error("Destroy did not release the owned buffer")
	}
}

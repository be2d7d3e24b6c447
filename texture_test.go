package meshbatch

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/meshbatch/internal/gputest"
)

func newTextureSet(t *testing.T) *TextureSet {
	t.Helper()
	device, queue := gputest.NoopDevice(t)
	s, err := NewTextureSet(device, queue, "test_textures")
	if err != nil {
		t.Fatalf("NewTextureSet: %v", err)
	}
	t.Cleanup(s.Destroy)
	return s
}

func TestTextureSetAdd(t *testing.T) {
	s := newTextureSet(t)

	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.NRGBA{R: 255, A: 128})
	a, err := s.AddImage(img)
	if err != nil {
		t.Fatalf("AddImage: %v", err)
	}
	mask := image.NewAlpha(image.Rect(4, 4, 9, 6))
	b, err := s.AddAlpha(mask)
	if err != nil {
		t.Fatalf("AddAlpha: %v", err)
	}
	if a == b || a == 0 || b == 0 {
		t.Errorf("ids %d and %d should be distinct and non-zero", a, b)
	}
	if w, h, ok := s.Size(a); !ok || w != 3 || h != 2 {
		t.Errorf("Size(a) = %d,%d,%v, want 3,2,true", w, h, ok)
	}
	if w, h, ok := s.Size(b); !ok || w != 5 || h != 2 {
		t.Errorf("Size(b) = %d,%d,%v, want 5,2,true", w, h, ok)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}

	s.Remove(a)
	s.Remove(a)
	if s.Has(a) || s.Len() != 1 {
		t.Errorf("after Remove: Has=%v Len=%d", s.Has(a), s.Len())
	}
}

func TestTextureSetAddPixelsErrors(t *testing.T) {
	s := newTextureSet(t)
	if _, err := s.AddPixels(gputypes.TextureFormatBGRA8Unorm, 1, 1, make([]byte, 4)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("BGRA = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := s.AddPixels(gputypes.TextureFormatRGBA8Unorm, 0, 1, nil); err == nil {
		t.Error("zero width should fail")
	}
	if _, err := s.AddPixels(gputypes.TextureFormatRGBA8Unorm, 2, 2, make([]byte, 15)); err == nil {
		t.Error("short pixel data should fail")
	}
}

func TestTextureSetBindsPerBatch(t *testing.T) {
	device, queue := gputest.NoopDevice(t)
	textures, err := NewTextureSet(device, queue, "quads")
	if err != nil {
		t.Fatal(err)
	}
	defer textures.Destroy()
	red, _ := textures.AddPixels(gputypes.TextureFormatRGBA8Unorm, 1, 1, []byte{255, 0, 0, 255})
	blue, _ := textures.AddPixels(gputypes.TextureFormatRGBA8Unorm, 1, 1, []byte{0, 0, 255, 255})

	buf, _ := NewBuffer(device, "quads", Float32, 4*QuadVertices*3)
	defer buf.Destroy()
	pos, _ := NewView(buf, 4, 0, 2)
	uv, _ := NewView(buf, 4, 2, 2)
	r, err := NewRenderer(device, queue, []Attribute{{View: pos}, {View: uv}},
		WithBatchKey(TextureKey), WithBatchState(textures))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Destroy()

	for _, tex := range []TextureID{blue, red, blue} {
		q, err := NewQuad(Rect{X1: 1, Y1: 1}, tex, pos, uv)
		if err != nil {
			t.Fatal(err)
		}
		r.Add(q)
	}
	pass := &gputest.RecordingPass{}
	if err := r.Render(pass); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(pass.BindGroups) != 2 || len(pass.Draws) != 2 {
		t.Errorf("got %d bind groups and %d draws, want 2 and 2", len(pass.BindGroups), len(pass.Draws))
	}
	if pass.Draws[0].VertexCount != 6 || pass.Draws[1].VertexCount != 12 {
		t.Errorf("draws = %+v, want red (6) then blue (12)", pass.Draws)
	}
}

func TestTextureSetUnknownTextureDrawsNothing(t *testing.T) {
	device, queue := gputest.NoopDevice(t)
	textures, err := NewTextureSet(device, queue, "missing")
	if err != nil {
		t.Fatal(err)
	}
	defer textures.Destroy()

	buf, _ := NewBuffer(device, "missing", Float32, 2*QuadVertices)
	defer buf.Destroy()
	pos, _ := NewView(buf, 0, 0, 2)
	r, _ := NewRenderer(device, queue, []Attribute{{View: pos}},
		WithBatchKey(TextureKey), WithBatchState(textures))
	defer r.Destroy()

	q, _ := NewQuad(Rect{X1: 1, Y1: 1}, 99, pos, nil)
	r.Add(q)
	pass := &gputest.RecordingPass{}
	if err := r.Render(pass); !errors.Is(err, ErrTextureNotFound) {
		t.Fatalf("Render = %v, want ErrTextureNotFound", err)
	}
	if len(pass.Ops) != 0 {
		t.Errorf("failed frame recorded %v", pass.Ops)
	}
}

func TestNewTextureSetRequiresDevice(t *testing.T) {
	if _, err := NewTextureSet(nil, nil, "x"); !errors.Is(err, ErrNilDevice) {
		t.Errorf("NewTextureSet(nil) = %v, want ErrNilDevice", err)
	}
}

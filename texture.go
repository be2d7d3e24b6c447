package meshbatch

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/draw"
)

// Texture binding slots used by TextureSet. Shaders sample with
//
//	@group(0) @binding(0) var tex: texture_2d<f32>;
//	@group(0) @binding(1) var samp: sampler;
const (
	TextureBinding = 0
	SamplerBinding = 1
)

// texture is one registered texture with its bind group.
type texture struct {
	tex       hal.Texture
	view      hal.TextureView
	bindGroup hal.BindGroup
	width     uint32
	height    uint32
	format    gputypes.TextureFormat
}

// TextureSet owns a group of sampled 2D textures that share a sampler and a
// bind group layout. It implements BatchState: each batch binds the texture
// whose id equals the batch key.
type TextureSet struct {
	device hal.Device
	queue  hal.Queue
	label  string
	group  uint32

	sampler hal.Sampler
	layout  hal.BindGroupLayout

	textures map[TextureID]*texture
	nextID   TextureID
}

// NewTextureSet creates an empty texture set whose bind groups are bound at
// group index 0.
func NewTextureSet(device hal.Device, queue hal.Queue, label string) (*TextureSet, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	s := &TextureSet{
		device:   device,
		queue:    queue,
		label:    label,
		textures: make(map[TextureID]*texture),
		nextID:   1,
	}

	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        label + "_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s sampler: %w", label, err)
	}
	s.sampler = sampler

	layout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: label + "_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    TextureBinding,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    SamplerBinding,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		device.DestroySampler(sampler)
		return nil, fmt.Errorf("create %s bind group layout: %w", label, err)
	}
	s.layout = layout
	return s, nil
}

// BindGroupLayout returns the layout of the per-texture bind groups.
func (s *TextureSet) BindGroupLayout() hal.BindGroupLayout { return s.layout }

// Len returns the number of registered textures.
func (s *TextureSet) Len() int { return len(s.textures) }

// Has reports whether id is registered.
func (s *TextureSet) Has(id TextureID) bool {
	_, ok := s.textures[id]
	return ok
}

// Size returns the dimensions of texture id.
func (s *TextureSet) Size(id TextureID) (width, height int, ok bool) {
	t, ok := s.textures[id]
	if !ok {
		return 0, 0, false
	}
	return int(t.width), int(t.height), true
}

// AddImage uploads img as an RGBA8 texture.
func (s *TextureSet) AddImage(img image.Image) (TextureID, error) {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) || rgba.Stride != 4*b.Dx() {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	return s.AddPixels(gputypes.TextureFormatRGBA8Unorm, b.Dx(), b.Dy(), rgba.Pix)
}

// AddAlpha uploads a coverage mask as a single-channel R8 texture.
func (s *TextureSet) AddAlpha(mask *image.Alpha) (TextureID, error) {
	b := mask.Bounds()
	pix := mask.Pix
	if mask.Stride != b.Dx() || b.Min != (image.Point{}) {
		tight := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(tight, tight.Bounds(), mask, b.Min, draw.Src)
		pix = tight.Pix
	}
	return s.AddPixels(gputypes.TextureFormatR8Unorm, b.Dx(), b.Dy(), pix)
}

// AddPixels uploads tightly packed rows of pixels in format, which must be
// RGBA8Unorm or R8Unorm.
func (s *TextureSet) AddPixels(format gputypes.TextureFormat, width, height int, pix []byte) (TextureID, error) {
	var bpp int
	switch format {
	case gputypes.TextureFormatRGBA8Unorm:
		bpp = 4
	case gputypes.TextureFormatR8Unorm:
		bpp = 1
	default:
		return 0, fmt.Errorf("%w: texture format %v", ErrUnsupportedFormat, format)
	}
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("add texture: invalid size %dx%d", width, height)
	}
	if len(pix) < width*height*bpp {
		return 0, fmt.Errorf("add texture: %d bytes for %dx%d", len(pix), width, height)
	}

	id := s.nextID
	label := fmt.Sprintf("%s_%d", s.label, id)
	t := &texture{width: uint32(width), height: uint32(height), format: format}

	tex, err := s.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return 0, fmt.Errorf("create texture %s: %w", label, err)
	}
	t.tex = tex

	view, err := s.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		s.destroy(t)
		return 0, fmt.Errorf("create texture view %s: %w", label, err)
	}
	t.view = view

	if err := s.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		pix[:width*height*bpp],
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(width * bpp), RowsPerImage: t.height},
		&hal.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
	); err != nil {
		s.destroy(t)
		return 0, fmt.Errorf("upload texture %s: %w", label, err)
	}

	bindGroup, err := s.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  label + "_bind",
		Layout: s.layout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: TextureBinding, Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}},
			{Binding: SamplerBinding, Resource: gputypes.SamplerBinding{Sampler: s.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		s.destroy(t)
		return 0, fmt.Errorf("create bind group %s: %w", label, err)
	}
	t.bindGroup = bindGroup

	s.textures[id] = t
	s.nextID++
	return id, nil
}

// Remove destroys texture id. Removing an unknown id is a no-op.
func (s *TextureSet) Remove(id TextureID) {
	t, ok := s.textures[id]
	if !ok {
		return
	}
	delete(s.textures, id)
	s.destroy(t)
}

// Validate reports ErrTextureNotFound when the batch key names no texture.
func (s *TextureSet) Validate(b Batch) error {
	if _, ok := s.textures[TextureID(b.Key)]; !ok {
		return fmt.Errorf("%w: %d", ErrTextureNotFound, b.Key)
	}
	return nil
}

// Enter binds the bind group of the texture named by the batch key.
func (s *TextureSet) Enter(pass PassEncoder, b Batch) error {
	t, ok := s.textures[TextureID(b.Key)]
	if !ok {
		return fmt.Errorf("%w: %d", ErrTextureNotFound, b.Key)
	}
	pass.SetBindGroup(s.group, t.bindGroup, nil)
	return nil
}

// Exit is a no-op. Bind groups stay bound until replaced.
func (s *TextureSet) Exit(PassEncoder, Batch) {}

// Destroy releases every texture, the layout and the sampler.
func (s *TextureSet) Destroy() {
	for id, t := range s.textures {
		s.destroy(t)
		delete(s.textures, id)
	}
	if s.layout != nil {
		s.device.DestroyBindGroupLayout(s.layout)
		s.layout = nil
	}
	if s.sampler != nil {
		s.device.DestroySampler(s.sampler)
		s.sampler = nil
	}
}

// destroy releases a texture's resources in reverse creation order.
func (s *TextureSet) destroy(t *texture) {
	if t.bindGroup != nil {
		s.device.DestroyBindGroup(t.bindGroup)
	}
	if t.view != nil {
		s.device.DestroyTextureView(t.view)
	}
	if t.tex != nil {
		s.device.DestroyTexture(t.tex)
	}
}

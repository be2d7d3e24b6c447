// Command meshdemo renders a frame of textured quads and text on the
// headless noop backend and logs how the frame was batched.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/meshbatch"
	"github.com/gogpu/meshbatch/shader"
	"github.com/gogpu/meshbatch/text"
)

func main() {
	var (
		width   = flag.Int("width", 800, "target width")
		height  = flag.Int("height", 600, "target height")
		quads   = flag.Int("quads", 12, "number of textured quads")
		message = flag.String("text", "Hello, meshbatch!", "text to draw")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	meshbatch.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	host, err := openHeadless()
	if err != nil {
		log.Fatalf("Failed to open device: %v", err)
	}
	defer host.Close()

	target, err := host.Target(*width, *height)
	if err != nil {
		log.Fatalf("Failed to create target: %v", err)
	}

	batches, err := drawQuads(host, target, *quads)
	if err != nil {
		log.Fatalf("Quads: %v", err)
	}
	log.Printf("Rendered %d quads in %d batches\n", *quads, len(batches))
	for _, b := range batches {
		log.Printf("  texture %d: vertices [%d, %d)\n", b.Key, b.Offset, b.Offset+b.NumVertex)
	}

	stats, glyphBatches, err := drawText(host, target, *width, *height, *message)
	if err != nil {
		log.Fatalf("Text: %v", err)
	}
	log.Printf("Rendered %q in %d batches (%d glyph textures)\n", *message, len(glyphBatches), stats.Textures)
}

func drawQuads(host *headless, target hal.TextureView, n int) ([]meshbatch.Batch, error) {
	textures, err := meshbatch.NewTextureSet(host.device, host.queue, "demo_textures")
	if err != nil {
		return nil, err
	}
	defer textures.Destroy()

	palette := []color.NRGBA{
		{R: 230, G: 80, B: 80, A: 255},
		{R: 80, G: 200, B: 120, A: 255},
		{R: 70, G: 110, B: 230, A: 255},
	}
	ids := make([]meshbatch.TextureID, len(palette))
	for i, c := range palette {
		if ids[i], err = textures.AddImage(checkerboard(16, c)); err != nil {
			return nil, err
		}
	}

	prog, err := shader.Textured(host.device)
	if err != nil {
		return nil, err
	}
	defer prog.Destroy()

	buf, err := meshbatch.NewBuffer(host.device, "demo_quads", meshbatch.Float32, 4*meshbatch.QuadVertices*n)
	if err != nil {
		return nil, err
	}
	defer buf.Destroy()
	pos, err := meshbatch.NewView(buf, 4, 0, 2)
	if err != nil {
		return nil, err
	}
	uv, err := meshbatch.NewView(buf, 4, 2, 2)
	if err != nil {
		return nil, err
	}
	attrs := []meshbatch.Attribute{{Name: "position", View: pos}, {Name: "uv", View: uv}}
	if err := prog.Check(attrs); err != nil {
		return nil, err
	}

	r, err := meshbatch.NewRendererFromProvider(host, attrs,
		meshbatch.WithLabel("demo_quads"),
		meshbatch.WithBatchKey(meshbatch.TextureKey),
		meshbatch.WithBatchState(textures),
		meshbatch.WithAttributeSource(prog),
		meshbatch.WithClearColor(gputypes.Color{R: 0.1, G: 0.1, B: 0.12, A: 1}),
	)
	if err != nil {
		return nil, err
	}
	defer r.Destroy()
	if err := r.BuildPipeline(prog.PipelineConfig()); err != nil {
		return nil, err
	}

	const cols = 4
	size := float32(2) / cols
	for i := range n {
		x0 := -1 + float32(i%cols)*size
		y0 := 1 - float32(i/cols+1)*size
		rect := meshbatch.Rect{X0: x0 + 0.02, Y0: y0 + 0.02, X1: x0 + size - 0.02, Y1: y0 + size - 0.02}
		q, err := meshbatch.NewQuad(rect, ids[i%len(ids)], pos, uv)
		if err != nil {
			return nil, err
		}
		r.Add(q)
	}
	if err := r.RenderFrame(target); err != nil {
		return nil, err
	}
	return r.Batches(), nil
}

func drawText(host *headless, target hal.TextureView, width, height int, msg string) (text.Stats, []meshbatch.Batch, error) {
	tr, err := text.NewRenderer(host.device, host.queue, host.SurfaceFormat(), text.Config{FontSize: 24})
	if err != nil {
		return text.Stats{}, nil, err
	}
	defer tr.Destroy()

	tr.SetViewport(width, height)
	if err := tr.Draw(24, float32(height)-32, color.White, msg); err != nil {
		return text.Stats{}, nil, err
	}
	if err := tr.RenderFrame(target); err != nil {
		return text.Stats{}, nil, err
	}
	return tr.Stats(), tr.Batches(), nil
}

func checkerboard(size int, c color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			if (x/4+y/4)%2 == 0 {
				img.SetNRGBA(x, y, c)
			} else {
				img.SetNRGBA(x, y, color.NRGBA{R: c.R / 2, G: c.G / 2, B: c.B / 2, A: 255})
			}
		}
	}
	return img
}

// headless is a device provider over the noop HAL backend.
type headless struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	textures []hal.Texture
	views    []hal.TextureView
}

func openHeadless() (*headless, error) {
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		return nil, err
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("noop backend reported no adapters")
	}
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, err
	}
	return &headless{instance: instance, device: open.Device, queue: open.Queue}, nil
}

// Target creates a render target texture view.
func (h *headless) Target(width, height int) (hal.TextureView, error) {
	tex, err := h.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "demo_target",
		Size:          hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        h.SurfaceFormat(),
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, err
	}
	view, err := h.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "demo_target_view",
		Format:        h.SurfaceFormat(),
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		h.device.DestroyTexture(tex)
		return nil, err
	}
	h.textures = append(h.textures, tex)
	h.views = append(h.views, view)
	return view, nil
}

func (h *headless) HalDevice() any                        { return h.device }
func (h *headless) HalQueue() any                         { return h.queue }
func (h *headless) Device() gpucontext.Device             { return h.device }
func (h *headless) Queue() gpucontext.Queue               { return h.queue }
func (h *headless) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }
func (h *headless) Adapter() gpucontext.Adapter           { return nil }
func (h *headless) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "noop", Type: gpucontext.AdapterTypeSoftware}
}

// Close releases the targets and the device.
func (h *headless) Close() {
	for _, v := range h.views {
		h.device.DestroyTextureView(v)
	}
	for _, t := range h.textures {
		h.device.DestroyTexture(t)
	}
	h.device.Destroy()
	h.instance.Destroy()
}

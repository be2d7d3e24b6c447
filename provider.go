package meshbatch

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// halProvider is implemented by hosts that expose HAL objects directly.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// DeviceFromProvider extracts the HAL device and queue from a host
// application's device provider. Providers exposing HalDevice and HalQueue
// are preferred; otherwise Device and Queue must be HAL objects.
func DeviceFromProvider(provider any) (hal.Device, hal.Queue, error) {
	var dev, q any
	switch p := provider.(type) {
	case halProvider:
		dev, q = p.HalDevice(), p.HalQueue()
	case gpucontext.DeviceProvider:
		dev, q = p.Device(), p.Queue()
	default:
		return nil, nil, fmt.Errorf("%w: %T is not a device provider", ErrNilDevice, provider)
	}
	device, ok := dev.(hal.Device)
	if !ok || device == nil {
		return nil, nil, fmt.Errorf("%w: provider device is %T, not hal.Device", ErrNilDevice, dev)
	}
	queue, ok := q.(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, fmt.Errorf("%w: provider queue is %T, not hal.Queue", ErrNilDevice, q)
	}
	return device, queue, nil
}

// NewRendererFromProvider creates a renderer on a shared device. The
// provider's surface format is used for the renderer's pipeline target
// unless a format is given explicitly to BuildPipeline.
func NewRendererFromProvider(provider gpucontext.DeviceProvider, attrs []Attribute, opts ...RendererOption) (*Renderer, error) {
	device, queue, err := DeviceFromProvider(provider)
	if err != nil {
		return nil, err
	}
	r, err := NewRenderer(device, queue, attrs, opts...)
	if err != nil {
		return nil, err
	}
	if f := provider.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		r.surfaceFormat = f
	}
	info := provider.AdapterInfo()
	Logger().Info("meshbatch: using shared device", "adapter", info.Name, "surface_format", r.surfaceFormat)
	return r, nil
}

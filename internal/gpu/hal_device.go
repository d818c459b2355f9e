package gpu

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/emote/render"
)

// Backend names used in the render registry.
var backendNames = map[gputypes.Backend]string{
	gputypes.BackendVulkan: "vulkan",
	gputypes.BackendMetal:  "metal",
	gputypes.BackendDX12:   "dx12",
	gputypes.BackendGL:     "gl",
	gputypes.BackendEmpty:  "hal-empty",
}

// BackendName returns the registry name of a HAL backend variant.
func BackendName(variant gputypes.Backend) string {
	if name, ok := backendNames[variant]; ok {
		return name
	}
	return variant.String()
}

var errDestroyed = errors.New("gpu: device destroyed")

// HALDevice renders effects with a wgpu HAL render pipeline.
//
// Every draw is one render pass followed by a submit and a wait for idle,
// so a later ReadPixels always observes the finished frame. HALDevice is
// not safe for concurrent use; the engine drives it from one goroutine.
type HALDevice struct {
	name     string
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance // nil for external devices
	external bool
	useSPIRV bool

	sampler hal.Sampler
	blank   *halTexture // bound when a draw has no texture

	lost      bool
	destroyed bool
	live      render.DeviceStats
}

// Open creates an instance of the given HAL backend and opens the first
// discrete or integrated GPU it exposes, falling back to any adapter.
func Open(variant gputypes.Backend) (*HALDevice, error) {
	backend, ok := hal.GetBackend(variant)
	if !ok {
		return nil, fmt.Errorf("gpu: %s backend not registered: %w", BackendName(variant), hal.ErrBackendNotFound)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s instance: %w", BackendName(variant), err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: no %s adapters found", BackendName(variant))
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open %s device: %w", BackendName(variant), err)
	}

	d, err := newHALDevice(BackendName(variant), openDev.Device, openDev.Queue)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.instance = instance
	d.useSPIRV = variant == gputypes.BackendVulkan
	slogger().Info("gpu: device opened", "backend", d.name, "adapter", selected.Info.Name)
	return d, nil
}

// FromProvider wraps a device owned by the host application. The provider
// must expose HalDevice() and HalQueue() returning hal.Device and
// hal.Queue. Destroy does not destroy an external device.
func FromProvider(provider render.DeviceHandle) (*HALDevice, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, errors.New("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, errors.New("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, errors.New("gpu: provider HalQueue is not hal.Queue")
	}
	d, err := newHALDevice("external", device, queue)
	if err != nil {
		return nil, err
	}
	d.external = true
	return d, nil
}

// New wraps an open HAL device and queue. The HALDevice takes ownership
// and destroys the device in Destroy.
func New(name string, device hal.Device, queue hal.Queue) (*HALDevice, error) {
	return newHALDevice(name, device, queue)
}

func newHALDevice(name string, device hal.Device, queue hal.Queue) (*HALDevice, error) {
	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "emote_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
		LodMaxClamp:  32,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create sampler: %w", err)
	}
	return &HALDevice{name: name, device: device, queue: queue, sampler: sampler}, nil
}

// Name returns the backend name, e.g. "vulkan".
func (d *HALDevice) Name() string { return d.name }

// Stats returns the number of live objects.
func (d *HALDevice) Stats() render.DeviceStats { return d.live }

// SetLogger routes both this package and the wgpu HAL layer to l.
func (d *HALDevice) SetLogger(l *slog.Logger) {
	setLogger(l)
	hal.SetLogger(l)
}

func (d *HALDevice) check() error {
	switch {
	case d.destroyed:
		return errDestroyed
	case d.lost:
		return render.ErrDeviceLost
	}
	return nil
}

// fail converts a HAL device loss into render.ErrDeviceLost and marks the
// device lost. Other errors are wrapped with op.
func (d *HALDevice) fail(op string, err error) error {
	if errors.Is(err, hal.ErrDeviceLost) {
		if !d.lost {
			slogger().Warn("gpu: device lost", "backend", d.name, "op", op)
		}
		d.lost = true
		return fmt.Errorf("gpu: %s: %w: %w", op, render.ErrDeviceLost, err)
	}
	return fmt.Errorf("gpu: %s: %w", op, err)
}

// Destroy releases the sampler and, unless the device is external, the
// HAL device and instance.
func (d *HALDevice) Destroy() {
	if d.destroyed {
		return
	}
	if d.blank != nil {
		d.destroyTexture(d.blank)
		d.blank = nil
	}
	if d.sampler != nil {
		d.device.DestroySampler(d.sampler)
		d.sampler = nil
	}
	if !d.external {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.destroyed = true
	d.live = render.DeviceStats{}
}

var _ render.Device = (*HALDevice)(nil)

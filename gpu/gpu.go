// Package gpu registers the wgpu HAL render backends.
//
// Import this package to make Vulkan, Metal, DX12 and GL devices
// available through render.OpenBest and render.Open:
//
//	import _ "github.com/gogpu/emote/gpu" // enable GPU rendering
//
// Backends whose drivers are missing report themselves unavailable and
// rendering falls back to the software device.
package gpu

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/allbackends" // register platform HAL backends

	gpuimpl "github.com/gogpu/emote/internal/gpu"
	"github.com/gogpu/emote/render"
)

// Render registry priorities of the HAL backends.
const (
	priorityNative = 100
	priorityGL     = 50
)

func init() {
	render.RegisterHandleOpener(FromProvider)
	register(gputypes.BackendVulkan, priorityNative)
	register(gputypes.BackendMetal, priorityNative)
	register(gputypes.BackendDX12, priorityNative)
	register(gputypes.BackendGL, priorityGL)
}

func register(variant gputypes.Backend, priority int) {
	render.Register(gpuimpl.BackendName(variant), priority,
		func() (render.Device, error) {
			d, err := gpuimpl.Open(variant)
			if err != nil {
				return nil, err
			}
			return d, nil
		},
		func() bool {
			_, ok := hal.GetBackend(variant)
			return ok
		})
}

// FromProvider creates a device on the GPU owned by the host application.
// The provider must also expose HalDevice() and HalQueue() returning the
// wgpu HAL device and queue. It is registered with render.OpenHandle, so
// emote.WithDeviceHandle reaches it.
func FromProvider(provider render.DeviceHandle) (render.Device, error) {
	d, err := gpuimpl.FromProvider(provider)
	if err != nil {
		return nil, err
	}
	return d, nil
}

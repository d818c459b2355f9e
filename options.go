package emote

import (
	"time"

	"github.com/gogpu/emote/render"
	"github.com/gogpu/emote/shader"
)

// Defaults.
const (
	// DefaultSize is the side of the square render target in pixels.
	DefaultSize = 112

	// DefaultPreviewRate is the preview tick rate in Hz.
	DefaultPreviewRate = 60
)

// EngineOption configures an Engine during creation.
//
// Example:
//
//	// Best available backend, 112x112
//	e, err := emote.NewEngine()
//
//	// Software rendering at 256x256
//	e, err := emote.NewEngine(emote.WithBackend("software"), emote.WithSize(256))
type EngineOption func(*engineOptions)

type engineOptions struct {
	device   render.Device
	handle   render.DeviceHandle
	backend  string
	size     int
	notifier Notifier
	compiler *shader.Compiler
}

func defaultEngineOptions() engineOptions {
	return engineOptions{
		size:     DefaultSize,
		notifier: logNotifier{},
	}
}

// WithDevice renders on an already opened device. The engine takes
// ownership and destroys it on Close.
//
// Example:
//
//	dev, _ := gpu.FromProvider(hostApp)
//	e, err := emote.NewEngine(emote.WithDevice(dev))
func WithDevice(dev render.Device) EngineOption {
	return func(o *engineOptions) {
		o.device = dev
	}
}

// WithDeviceHandle renders on the GPU device of the host application. A
// render.NullDeviceHandle selects the software device; other handles need
// the gpu package linked in. The host keeps ownership of its device.
//
// Example:
//
//	import _ "github.com/gogpu/emote/gpu"
//
//	e, err := emote.NewEngine(emote.WithDeviceHandle(hostApp))
func WithDeviceHandle(h render.DeviceHandle) EngineOption {
	return func(o *engineOptions) {
		o.handle = h
	}
}

// WithBackend opens the named render backend instead of the best
// available one. Names are listed by render.Available.
func WithBackend(name string) EngineOption {
	return func(o *engineOptions) {
		o.backend = name
	}
}

// WithSize sets the side of the square render target. Values below 1 are
// ignored.
func WithSize(size int) EngineOption {
	return func(o *engineOptions) {
		if size > 0 {
			o.size = size
		}
	}
}

// WithNotifier routes user-facing notifications (context loss, failed
// uploads, failed renders) to n. By default they are logged.
func WithNotifier(n Notifier) EngineOption {
	return func(o *engineOptions) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithShaderCompiler shares a shader compiler, and its module cache,
// between engines.
func WithShaderCompiler(c *shader.Compiler) EngineOption {
	return func(o *engineOptions) {
		o.compiler = c
	}
}

// PreviewOption configures a Preview.
type PreviewOption func(*previewOptions)

type previewOptions struct {
	clock func() time.Time
	rate  float64
}

func defaultPreviewOptions() previewOptions {
	return previewOptions{
		clock: time.Now,
		rate:  DefaultPreviewRate,
	}
}

// WithClock replaces the wall clock the preview derives its time uniform
// from. Tests use it to step time by hand.
//
// Example:
//
//	now := time.Unix(0, 0)
//	p, _ := emote.NewPreview(ctx, e, emote.WithClock(func() time.Time { return now }))
func WithClock(clock func() time.Time) PreviewOption {
	return func(o *previewOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithRate sets how often Run ticks, in Hz. Values of 0 or less are
// ignored.
func WithRate(hz float64) PreviewOption {
	return func(o *previewOptions) {
		if hz > 0 {
			o.rate = hz
		}
	}
}

// ControllerOption configures a Controller.
type ControllerOption func(*controllerOptions)

type controllerOptions struct {
	catalog *Catalog
	workers int
	colors  int
}

// WithCatalog selects the effects offered by the controller. The default
// is catalog.Default().
func WithCatalog(c *Catalog) ControllerOption {
	return func(o *controllerOptions) {
		o.catalog = c
	}
}

// WithEncoderWorkers gives every render job its own quantization pool of
// n workers instead of the shared one.
func WithEncoderWorkers(n int) ControllerOption {
	return func(o *controllerOptions) {
		o.workers = n
	}
}

// WithPaletteSize limits the colors per GIF frame, transparency included.
func WithPaletteSize(n int) ControllerOption {
	return func(o *controllerOptions) {
		o.colors = n
	}
}

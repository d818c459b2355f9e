package emote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/emote/render"
	"github.com/gogpu/emote/shader"
)

// Engine owns a render device and the goroutine that drives it.
//
// Every device call goes through Do, so previews and render jobs share
// one device safely. When the device reports a lost context the engine
// notifies once, refuses further work with ErrContextLost and waits for
// Reacquire.
type Engine struct {
	runner   *Runner
	size     int
	notifier Notifier
	lang     *shader.Compiler

	devMu sync.Mutex
	dev   render.Device

	// Owned by the runner goroutine.
	compiler *render.ProgramCompiler
	mesh     *MeshBuffer
	lost     bool

	generation atomic.Uint64
	closed     atomic.Bool
}

// NewEngine opens a device and starts its GPU goroutine.
//
// WithDevice wins over WithDeviceHandle, which wins over WithBackend.
// Without any of them the highest priority available backend is used; the
// software device is always available.
func NewEngine(opts ...EngineOption) (*Engine, error) {
	o := defaultEngineOptions()
	for _, opt := range opts {
		opt(&o)
	}

	dev := o.device
	if dev == nil {
		var err error
		switch {
		case o.handle != nil:
			dev, err = render.OpenHandle(o.handle)
		case o.backend != "":
			dev, err = render.Open(o.backend)
		default:
			dev, err = render.OpenBest()
		}
		if err != nil {
			return nil, fmt.Errorf("emote: open device: %w", err)
		}
	}

	lang := o.compiler
	if lang == nil {
		lang = shader.NewCompiler()
	}

	mesh, err := newMeshBuffer(dev)
	if err != nil {
		dev.Destroy()
		return nil, err
	}

	e := &Engine{
		runner:   NewRunner(),
		size:     o.size,
		notifier: o.notifier,
		lang:     lang,
		dev:      dev,
		compiler: render.NewProgramCompiler(dev, lang),
		mesh:     mesh,
	}
	e.generation.Store(1)
	trackEngine(e)

	Logger().Info("emote: engine opened", "backend", dev.Name(), "size", o.size)
	return e, nil
}

// Device returns the current device.
func (e *Engine) Device() render.Device {
	e.devMu.Lock()
	defer e.devMu.Unlock()
	return e.dev
}

// Size returns the side of the square render target.
func (e *Engine) Size() int { return e.size }

// Generation identifies the current device context. It changes on every
// Reacquire; resources from an older generation are invalid.
func (e *Engine) Generation() uint64 { return e.generation.Load() }

// Lost reports whether the context is lost and not yet reacquired.
func (e *Engine) Lost() bool {
	var lost bool
	if err := e.runner.Do(context.Background(), func() { lost = e.lost }); err != nil {
		return true
	}
	return lost
}

// Do runs fn with the device on the GPU goroutine and waits for it.
//
// It returns ErrContextLost without calling fn while the context is lost.
// A render.ErrDeviceLost from fn marks the context lost and is returned
// as ErrContextLost.
func (e *Engine) Do(ctx context.Context, fn func(dev render.Device) error) error {
	return e.do(ctx, func() error { return fn(e.dev) })
}

func (e *Engine) do(ctx context.Context, fn func() error) error {
	var (
		err     error
		newLoss bool
	)
	runErr := e.runner.Do(ctx, func() {
		if e.lost {
			err = ErrContextLost
			return
		}
		err = fn()
		if errors.Is(err, render.ErrDeviceLost) {
			newLoss = !e.lost
			e.lost = true
			err = fmt.Errorf("%w: %w", ErrContextLost, err)
		}
	})
	if runErr != nil {
		return runErr
	}
	if newLoss {
		e.reportLoss()
	}
	return err
}

// release runs fn even while the context is lost. Delete calls accept
// handles from a lost context.
func (e *Engine) release(fn func(dev render.Device)) {
	err := e.runner.Do(context.Background(), func() { fn(e.dev) })
	if err != nil && !errors.Is(err, ErrClosed) {
		Logger().Warn("emote: release failed", "err", err)
	}
}

func (e *Engine) reportLoss() {
	Logger().Warn("emote: GPU context lost, rendering disabled", "backend", e.Device().Name())
	e.notifier.Notify(Notification{
		Title:   TitleContextLost,
		Message: "The GPU context was lost. Rendering resumes once it is restored.",
		Err:     ErrContextLost,
	})
}

// Reacquire replaces a lost device with dev. Programs, textures and
// targets from the previous generation become invalid; the quad mesh is
// recreated here and the other resources are rebuilt by their owners on
// next use.
func (e *Engine) Reacquire(ctx context.Context, dev render.Device) error {
	if dev == nil {
		return errors.New("emote: reacquire: nil device")
	}
	var err error
	runErr := e.runner.Do(ctx, func() {
		var mesh *MeshBuffer
		mesh, err = newMeshBuffer(dev)
		if err != nil {
			return
		}

		old := e.dev
		e.mesh.release(old)
		old.Destroy()

		e.devMu.Lock()
		e.dev = dev
		e.devMu.Unlock()
		e.compiler = render.NewProgramCompiler(dev, e.lang)
		e.mesh = mesh
		e.lost = false
		e.generation.Add(1)
	})
	if runErr != nil {
		return runErr
	}
	if err != nil {
		return err
	}

	propagateLogger(dev, Logger())
	Logger().Info("emote: context reacquired", "backend", dev.Name(), "generation", e.Generation())
	return nil
}

// Close destroys the device and stops the GPU goroutine. Resources still
// held by previews and controllers are released with the device. Close is
// idempotent.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	untrackEngine(e)
	_ = e.runner.Do(context.Background(), func() {
		e.mesh.release(e.dev)
		e.dev.Destroy()
	})
	e.runner.Close()
	return nil
}

// buildProgram compiles and links an effect. Runs on the GPU goroutine.
func (e *Engine) buildProgram(effect *Effect) (*CompiledProgram, error) {
	prog, err := e.compiler.Build(effect.VertexSource, effect.FragmentSource)
	if err != nil {
		return nil, err
	}
	return newCompiledProgram(e, effect, prog), nil
}

package emote

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/gogpu/emote/render"
)

// Preview draws an effect live into its own surface.
//
// Time is wall-clock seconds since the preview was created, so the effect
// keeps its phase across effect and image swaps. Nothing is read back or
// encoded; Snapshot exists for hosts without a shared GPU surface.
type Preview struct {
	engine   *Engine
	textures *TextureManager
	opts     previewOptions
	start    time.Time
	ticks    atomic.Int64

	// Owned by the GPU goroutine.
	effect  *Effect
	program *CompiledProgram
	target  render.Target
	gen     uint64
}

// NewPreview creates a preview on e with an empty program and texture.
func NewPreview(e *Engine, opts ...PreviewOption) *Preview {
	o := defaultPreviewOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Preview{
		engine:   e,
		textures: NewTextureManager(e),
		opts:     o,
		start:    o.clock(),
	}
}

// SetEffect swaps the previewed effect. On failure the previous effect
// keeps running.
func (p *Preview) SetEffect(ctx context.Context, effect *Effect) error {
	if err := effect.Validate(); err != nil {
		return err
	}
	err := p.engine.do(ctx, func() error {
		prog, err := p.engine.buildProgram(effect)
		if err != nil {
			return err
		}
		p.releaseProgram()
		p.effect = effect
		p.program = prog
		return nil
	})
	if err != nil {
		return fmt.Errorf("emote: preview %q: %w", effect.Name, err)
	}
	return nil
}

// SetImage swaps the previewed image.
func (p *Preview) SetImage(ctx context.Context, img *SourceImage) error {
	return p.textures.Upload(ctx, img)
}

// Time returns the value of the time uniform for the next tick.
func (p *Preview) Time() float64 {
	return p.opts.clock().Sub(p.start).Seconds()
}

// Ticks returns the number of frames drawn.
func (p *Preview) Ticks() int64 { return p.ticks.Load() }

// Tick draws one frame. It returns ErrNoEffect before SetEffect and
// ErrNoImage before SetImage.
func (p *Preview) Tick(ctx context.Context) error {
	t := float32(p.Time())
	return p.engine.do(ctx, func() error {
		if p.effect == nil {
			return ErrNoEffect
		}
		if err := p.ensureResources(); err != nil {
			return err
		}
		tex, err := p.textures.texture()
		if err != nil {
			return err
		}
		size := p.engine.Size()
		p.program.setUniforms(t, size, size)
		call, err := p.program.drawCall(tex, p.target)
		if err != nil {
			return err
		}
		if err := p.engine.dev.Draw(call); err != nil {
			return err
		}
		p.ticks.Add(1)
		return nil
	})
}

// ensureResources rebuilds the program and target after a Reacquire.
// Runs on the GPU goroutine.
func (p *Preview) ensureResources() error {
	gen := p.engine.Generation()
	if p.program == nil || p.program.Stale() {
		prog, err := p.engine.buildProgram(p.effect)
		if err != nil {
			return err
		}
		p.program = prog
	}
	if p.target == nil || p.gen != gen {
		size := p.engine.Size()
		t, err := p.engine.dev.CreateTarget(size, size)
		if err != nil {
			return err
		}
		p.target = t
		p.gen = gen
	}
	return nil
}

// Run ticks at the configured rate until ctx ends. Ticks without an
// effect or image and ticks during a context loss are skipped.
func (p *Preview) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / p.opts.rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := p.Tick(ctx); err != nil && !skippableTick(err) {
			return err
		}
	}
}

func skippableTick(err error) bool {
	return errors.Is(err, ErrNoEffect) || errors.Is(err, ErrNoImage) || errors.Is(err, ErrContextLost)
}

// Surface returns the live render target, or nil before the first tick.
// On the software device its Pixels are bottom row first.
func (p *Preview) Surface() render.Target {
	var t render.Target
	_ = p.engine.runner.Do(context.Background(), func() { t = p.target })
	return t
}

// Snapshot reads the surface back as a top-row-first image.
func (p *Preview) Snapshot(ctx context.Context) (*image.RGBA, error) {
	size := p.engine.Size()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	err := p.engine.do(ctx, func() error {
		if p.target == nil || p.gen != p.engine.Generation() {
			return ErrNoEffect
		}
		return p.engine.dev.ReadPixels(p.target, img.Pix)
	})
	if err != nil {
		return nil, err
	}
	render.FlipRows(img.Pix, size, size)
	return img, nil
}

// releaseProgram runs on the GPU goroutine.
func (p *Preview) releaseProgram() {
	if p.program != nil && !p.program.Stale() && p.program.program != nil {
		p.engine.dev.DeleteProgram(p.program.program)
		p.program.program = nil
	}
	p.program = nil
}

// Close releases the preview's program, texture and surface.
func (p *Preview) Close() {
	p.engine.release(func(dev render.Device) {
		p.releaseProgram()
		if p.target != nil && p.gen == p.engine.Generation() {
			dev.DeleteTarget(p.target)
		}
		p.target = nil
	})
	p.textures.Release()
}

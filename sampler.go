package emote

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/emote/render"
)

// FrameRate is the fixed sampling rate of rendered animations.
const FrameRate = 30

// FrameDelay is the display time of one rendered frame.
const FrameDelay = time.Second / FrameRate

var opaqueBlack = gputypes.Color{R: 0, G: 0, B: 0, A: 1}

// FrameCount returns the number of frames sampled for a loop of duration
// seconds: both ends of [0, duration] are included.
func FrameCount(duration float64) int {
	return int(math.Floor(duration*FrameRate)) + 1
}

// CancelToken tells a running job to stop at the next frame boundary.
type CancelToken struct {
	canceled atomic.Bool
}

// NewCancelToken returns a token that is not canceled.
func NewCancelToken() *CancelToken { return &CancelToken{} }

// Cancel sets the token. It is safe to call from any goroutine and more
// than once.
func (t *CancelToken) Cancel() { t.canceled.Store(true) }

// Canceled reports whether Cancel was called.
func (t *CancelToken) Canceled() bool { return t.canceled.Load() }

// FrameSink receives rendered frames. The frame's pixels are reused for
// the next frame once AddFrame returns.
type FrameSink interface {
	AddFrame(f *render.Frame) error
}

// FrameSampler renders an effect into a fixed number of frames, one frame
// per GPU task, so the result never depends on how fast the host is.
type FrameSampler struct {
	engine *Engine
	calls  atomic.Int64
}

// NewFrameSampler creates a sampler rendering on e.
func NewFrameSampler(e *Engine) *FrameSampler {
	return &FrameSampler{engine: e}
}

// Calls returns how many times Run has started a frame loop.
func (s *FrameSampler) Calls() int64 { return s.calls.Load() }

// Run renders FrameCount(prog.Duration) frames of prog over the texture
// in tex and passes them to sink in order. Frame i samples time i/30.
//
// Run checks token before every frame and returns ErrCanceled as soon as
// it is set; frames already passed to sink stay with the sink. A failed
// draw or readback is a *RenderTargetError. The returned count is the
// number of frames passed to sink.
func (s *FrameSampler) Run(ctx context.Context, prog *CompiledProgram, tex *TextureManager, token *CancelToken, sink FrameSink) (int, error) {
	s.calls.Add(1)

	size := s.engine.Size()
	n := FrameCount(prog.Duration)
	log := Logger().With("effect", prog.Effect().Name)

	var target render.Target
	defer func() {
		if target != nil {
			s.engine.release(func(dev render.Device) { dev.DeleteTarget(target) })
		}
	}()

	frame := &render.Frame{
		Pix:    make([]byte, size*size*4),
		Width:  size,
		Height: size,
		Delay:  FrameDelay,
	}

	for i := range n {
		err := s.engine.do(ctx, func() error {
			if token.Canceled() {
				return ErrCanceled
			}
			if target == nil {
				t, err := s.engine.dev.CreateTarget(size, size)
				if err != nil {
					return &RenderTargetError{Frame: i, Err: err}
				}
				target = t
			}
			return s.renderFrame(prog, tex, target, i, frame)
		})
		if err != nil {
			log.Debug("emote: frame loop stopped", "frame", i, "of", n, "err", err)
			return i, err
		}
		if err := sink.AddFrame(frame); err != nil {
			return i, err
		}
	}
	log.Debug("emote: frame loop done", "frames", n)
	return n, nil
}

// renderFrame draws and reads back frame i. Runs on the GPU goroutine.
func (s *FrameSampler) renderFrame(prog *CompiledProgram, tex *TextureManager, target render.Target, i int, frame *render.Frame) error {
	texture, err := tex.texture()
	if err != nil {
		return err
	}
	prog.setUniforms(float32(float64(i)/FrameRate), frame.Width, frame.Height)
	call, err := prog.drawCall(texture, target)
	if err != nil {
		return err
	}

	dev := s.engine.dev
	if err := dev.Draw(call); err != nil {
		return &RenderTargetError{Frame: i, Err: err}
	}
	if err := dev.ReadPixels(target, frame.Pix); err != nil {
		return &RenderTargetError{Frame: i, Err: err}
	}
	render.FlipRows(frame.Pix, frame.Width, frame.Height)
	return nil
}

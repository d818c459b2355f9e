// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package encode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"sync"
	"time"

	pix "github.com/gogpu/emote/internal/image"
	"github.com/gogpu/emote/internal/parallel"
	"github.com/gogpu/emote/render"
)

// Encoder errors.
var (
	// ErrFinished is returned by AddFrame after Finish or Abort.
	ErrFinished = errors.New("encode: encoder already finished")

	// ErrNoFrames is returned by Finish when no frame was added.
	ErrNoFrames = errors.New("encode: no frames")
)

// MaxColors is the largest GIF palette.
const MaxColors = 256

var (
	sharedPoolOnce sync.Once
	sharedPool     *parallel.WorkerPool

	frameBuffers = pix.NewPool(64)
)

func defaultPool() *parallel.WorkerPool {
	sharedPoolOnce.Do(func() {
		sharedPool = parallel.NewWorkerPool(0)
	})
	return sharedPool
}

// Option configures a GIF encoder.
type Option func(*options)

type options struct {
	transparent *color.RGBA
	colors      int
	workers     int
}

// WithTransparent makes key the transparent palette entry. Black pixels,
// the cleared background of every frame, and pixels matching key encode
// as transparent.
func WithTransparent(key color.RGBA) Option {
	return func(o *options) {
		o.transparent = &key
	}
}

// WithColors limits each frame's palette to n colors (2..256), including
// the transparent entry.
func WithColors(n int) Option {
	return func(o *options) {
		o.colors = min(max(n, 2), MaxColors)
	}
}

// WithWorkers gives the encoder its own pool of n quantization workers
// instead of the shared pool. The pool is closed by Finish or Abort.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

type encodedFrame struct {
	img   *image.Paletted
	delay int // 1/100 s
}

// GIF encodes rendered frames into a looping animated GIF.
//
// AddFrame copies the frame and quantizes it on a worker pool, so the
// caller's buffer may be reused as soon as AddFrame returns. Finish waits
// for the workers and assembles the file. GIF is safe for concurrent use
// but frames are kept in AddFrame order.
type GIF struct {
	width, height int
	opts          options

	pool    *parallel.WorkerPool
	ownPool bool
	group   *parallel.Group

	mu     sync.Mutex
	frames []*encodedFrame
	done   bool

	// elapsed and shown track the exact and the encoded play time so
	// rounding errors do not add up over the frames.
	elapsed time.Duration
	shown   int
}

// NewGIF creates an encoder for width x height frames.
func NewGIF(width, height int, opts ...Option) *GIF {
	o := options{colors: MaxColors}
	for _, opt := range opts {
		opt(&o)
	}
	e := &GIF{width: width, height: height, opts: o}
	if o.workers > 0 {
		e.pool = parallel.NewWorkerPool(o.workers)
		e.ownPool = true
	} else {
		e.pool = defaultPool()
	}
	e.group = e.pool.Group()
	return e
}

// AddFrame queues f for quantization. f.Pix must be top row first.
func (e *GIF) AddFrame(f *render.Frame) error {
	if f.Width != e.width || f.Height != e.height {
		return fmt.Errorf("encode: frame is %dx%d, encoder expects %dx%d", f.Width, f.Height, e.width, e.height)
	}
	n := f.Width * f.Height * 4
	if len(f.Pix) < n {
		return fmt.Errorf("encode: frame holds %d bytes, need %d", len(f.Pix), n)
	}

	e.mu.Lock()
	if e.done {
		e.mu.Unlock()
		return ErrFinished
	}
	e.elapsed += f.Delay
	end := centiseconds(e.elapsed)
	slot := &encodedFrame{delay: end - e.shown}
	e.shown = end
	e.frames = append(e.frames, slot)
	e.mu.Unlock()

	buf := frameBuffers.Get(n)
	copy(buf, f.Pix[:n])
	w, h := f.Width, f.Height
	e.group.Go(func() {
		defer frameBuffers.Put(buf)
		img := quantizeFrame(buf, w, h, e.opts.transparent, e.opts.colors)
		e.mu.Lock()
		slot.img = img
		e.mu.Unlock()
	})
	return nil
}

// Frames returns the number of frames added so far.
func (e *GIF) Frames() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.frames)
}

// Finish waits for quantization and encodes the animation. Every frame is
// disposed to the background and the animation loops forever.
func (e *GIF) Finish() ([]byte, error) {
	if !e.close() {
		return nil, ErrFinished
	}

	e.mu.Lock()
	frames := e.frames
	e.frames = nil
	e.mu.Unlock()
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}

	anim := &gif.GIF{
		Image:     make([]*image.Paletted, len(frames)),
		Delay:     make([]int, len(frames)),
		Disposal:  make([]byte, len(frames)),
		LoopCount: 0,
		Config: image.Config{
			Width:  e.width,
			Height: e.height,
		},
	}
	for i, f := range frames {
		anim.Image[i] = f.img
		anim.Delay[i] = f.delay
		anim.Disposal[i] = gif.DisposalBackground
	}

	var out bytes.Buffer
	if err := gif.EncodeAll(&out, anim); err != nil {
		return nil, fmt.Errorf("encode: write gif: %w", err)
	}
	return out.Bytes(), nil
}

// Abort discards every queued frame. It waits for in-flight quantization
// so no worker touches the encoder afterwards.
func (e *GIF) Abort() {
	if e.close() {
		e.mu.Lock()
		e.frames = nil
		e.mu.Unlock()
	}
}

// close stops intake and waits for the workers. It reports whether this
// call closed the encoder.
func (e *GIF) close() bool {
	e.mu.Lock()
	if e.done {
		e.mu.Unlock()
		return false
	}
	e.done = true
	e.mu.Unlock()

	e.group.Wait()
	if e.ownPool {
		e.pool.Close()
	}
	return true
}

// centiseconds rounds d to the GIF delay unit.
func centiseconds(d time.Duration) int {
	return int((d + 5*time.Millisecond) / (10 * time.Millisecond))
}

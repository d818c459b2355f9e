package emote

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/gogpu/emote/encode"
	"github.com/gogpu/emote/render"
)

// State is what the controller shows for the current image.
type State int

// Controller states.
const (
	// StateInitial: an image is uploaded but no effect is selected.
	StateInitial State = iota
	// StateRendering: a job for the selected effect is running.
	StateRendering
	// StateRendered: the artifact of the selected effect is available.
	StateRendered
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateRendering:
		return "rendering"
	case StateRendered:
		return "rendered"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Controller turns effect selections into GIF artifacts for the uploaded
// image.
//
// At most one render job runs at a time: selecting another effect or
// uploading another image cancels it. Artifacts are cached per effect for
// the current image, so selecting an effect again is instant until the
// image changes.
type Controller struct {
	engine   *Engine
	catalog  *Catalog
	textures *TextureManager
	sampler  *FrameSampler
	cache    *RenderCache
	opts     controllerOptions

	mu       sync.Mutex
	state    State
	selected string
	job      *RenderJob
	program  *CompiledProgram
	artifact *Artifact
	broken   map[string]error
	closed   bool
	jobs     sync.WaitGroup

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// NewController creates a controller rendering on e.
func NewController(e *Engine, opts ...ControllerOption) *Controller {
	var o controllerOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.catalog == nil {
		o.catalog = DefaultCatalog()
	}
	return &Controller{
		engine:   e,
		catalog:  o.catalog,
		textures: NewTextureManager(e),
		sampler:  NewFrameSampler(e),
		cache:    NewRenderCache(),
		opts:     o,
		broken:   make(map[string]error),
		subs:     make(map[int]func(State)),
	}
}

// Catalog returns the effects the controller offers.
func (c *Controller) Catalog() *Catalog { return c.catalog }

// Sampler returns the frame sampler used by render jobs.
func (c *Controller) Sampler() *FrameSampler { return c.sampler }

// Cache returns the artifact cache of the current image.
func (c *Controller) Cache() *RenderCache { return c.cache }

// Image returns the current image, or nil before the first upload.
func (c *Controller) Image() *SourceImage { return c.textures.Image() }

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Selected returns the selected effect, or "".
func (c *Controller) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Artifact returns the artifact of the selected effect once rendered.
func (c *Controller) Artifact() *Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.artifact
}

// Job returns the most recent render job, or nil.
func (c *Controller) Job() *RenderJob {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job
}

// Subscribe calls fn after every state change, in order, until the
// returned function is called. fn runs on the goroutine that changed the
// state; it must not block or call back into the controller.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// unlockAndPublish releases c.mu and delivers the new state if it
// changed. Taking subMu before releasing c.mu keeps deliveries in the
// order of the changes.
func (c *Controller) unlockAndPublish(changed bool) {
	if !changed {
		c.mu.Unlock()
		return
	}
	state := c.state
	c.subMu.Lock()
	c.mu.Unlock()
	defer c.subMu.Unlock()
	for _, fn := range c.subs {
		fn(state)
	}
}

// setStateLocked reports whether the state changed.
func (c *Controller) setStateLocked(s State) bool {
	if c.state == s {
		return false
	}
	c.state = s
	return true
}

func (c *Controller) cancelJobLocked() {
	if c.job != nil {
		c.job.Cancel()
	}
}

// UploadImage makes img, resized to the engine size, the current image.
// The cache is cleared, the running job canceled and the selection reset.
func (c *Controller) UploadImage(ctx context.Context, img image.Image, fileName string) error {
	return c.UploadSource(ctx, NewSourceImage(img, fileName, c.engine.Size()))
}

// UploadSource is UploadImage for an already prepared image.
func (c *Controller) UploadSource(ctx context.Context, src *SourceImage) error {
	var changed bool
	c.mu.Lock()
	defer func() { c.unlockAndPublish(changed) }()
	if c.closed {
		return ErrClosed
	}

	c.cancelJobLocked()
	c.job = nil
	c.cache.Reset(src.ID)
	c.selected = ""
	c.artifact = nil
	changed = c.setStateLocked(StateInitial)

	Logger().Debug("emote: image uploaded", "name", src.Name, "id", src.ID)
	return c.textures.Upload(ctx, src)
}

// ReportUploadError records an image the caller failed to decode or
// upload. The fallback image replaces the current one and the user is
// notified. The state and selection are kept; a running job restarts
// with the fallback image. In StateRendered the artifact of the replaced
// image stays on display until the next selection, which renders the
// fallback image.
func (c *Controller) ReportUploadError(ctx context.Context, err error) error {
	fallback := FallbackImage(c.engine.Size())

	Logger().Warn("emote: image upload failed, using fallback", "err", err)
	c.engine.notifier.Notify(Notification{
		Title:   TitleUploadFailed,
		Message: "The image could not be read. Try another file.",
		Err:     err,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	restart := c.job != nil && c.state == StateRendering && c.job.State() == JobRunning
	c.cancelJobLocked()
	c.cache.Reset(fallback.ID)

	if uerr := c.textures.Upload(ctx, fallback); uerr != nil {
		return uerr
	}
	if !restart || c.program == nil {
		return nil
	}
	c.startLocked(c.program, fallback)
	return nil
}

// SelectEffect shows effect name for the current image.
//
// A cached artifact is shown at once. Otherwise the running job is
// canceled, the effect is compiled and a new job starts. Compile and link
// errors are returned before anything is canceled, so the running job and
// the state are kept; the effect stays broken until RebuildEffect.
func (c *Controller) SelectEffect(ctx context.Context, name string) error {
	var changed bool
	c.mu.Lock()
	defer func() { c.unlockAndPublish(changed) }()
	if c.closed {
		return ErrClosed
	}

	effect, ok := c.catalog.Get(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEffect, name)
	}
	img := c.textures.Image()
	if img == nil {
		return ErrNoImage
	}

	if a, ok := c.cache.Get(img.ID, name); ok {
		c.cancelJobLocked()
		c.selected = name
		c.artifact = a
		changed = c.setStateLocked(StateRendered)
		Logger().Debug("emote: cache hit", "effect", name)
		return nil
	}

	if err := c.broken[name]; err != nil {
		return err
	}

	prog, err := c.programLocked(ctx, effect)
	if err != nil {
		if IsShaderError(err) {
			c.broken[name] = err
			Logger().Warn("emote: effect does not build", "effect", name, "err", err)
		}
		return err
	}
	c.cancelJobLocked()
	if prog != c.program {
		c.program.Release()
		c.program = prog
	}

	c.selected = name
	c.artifact = nil
	changed = c.setStateLocked(StateRendering)
	c.startLocked(prog, img)
	return nil
}

// programLocked returns a program for effect. The current program is
// reused when it already serves effect; otherwise a new one is built and
// the program slot is left to the caller.
func (c *Controller) programLocked(ctx context.Context, effect *Effect) (*CompiledProgram, error) {
	if c.program != nil && c.program.Effect() == effect && !c.program.Stale() {
		return c.program, nil
	}
	return c.engine.CompileEffect(ctx, effect)
}

// RebuildEffect clears the broken mark of name and builds it again.
func (c *Controller) RebuildEffect(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	effect, ok := c.catalog.Get(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEffect, name)
	}

	delete(c.broken, name)
	prog, err := c.engine.CompileEffect(ctx, effect)
	if err != nil {
		if IsShaderError(err) {
			c.broken[name] = err
		}
		return err
	}
	prog.Release()
	return nil
}

func (c *Controller) startLocked(prog *CompiledProgram, img *SourceImage) {
	job := newRenderJob(prog.Effect().Name, img.ID)
	c.job = job
	c.jobs.Add(1)
	go c.run(job, prog, img)
}

type jobSink struct {
	job *RenderJob
	enc *encode.GIF
}

func (s jobSink) AddFrame(f *render.Frame) error {
	if err := s.enc.AddFrame(f); err != nil {
		return err
	}
	s.job.progress()
	return nil
}

func (c *Controller) run(job *RenderJob, prog *CompiledProgram, img *SourceImage) {
	defer c.jobs.Done()

	effect := prog.Effect()
	log := Logger().With("effect", effect.Name, "image", img.ID)
	start := time.Now()

	size := c.engine.Size()
	var opts []encode.Option
	if effect.Transparent != nil {
		opts = append(opts, encode.WithTransparent(*effect.Transparent))
	}
	if c.opts.workers > 0 {
		opts = append(opts, encode.WithWorkers(c.opts.workers))
	}
	if c.opts.colors > 0 {
		opts = append(opts, encode.WithColors(c.opts.colors))
	}
	enc := encode.NewGIF(size, size, opts...)

	frames, err := c.sampler.Run(context.Background(), prog, c.textures, job.token, jobSink{job: job, enc: enc})

	var a *Artifact
	switch {
	case err != nil:
		enc.Abort()
	case job.Canceled():
		enc.Abort()
		err = ErrCanceled
	default:
		var data []byte
		data, err = enc.Finish()
		if err == nil {
			a = NewArtifact(ArtifactName(img.Name, effect.Name), data, frames)
		}
	}

	current := c.settle(job, a, err)
	job.finish(frames, a, err)

	switch {
	case err == nil:
		log.Info("emote: job finished", "frames", frames, "bytes", a.Len(), "elapsed", time.Since(start))
	case IsCanceled(err):
		log.Debug("emote: job canceled", "frames", frames)
	case errors.Is(err, ErrContextLost):
		log.Debug("emote: job stopped by context loss", "frames", frames)
	default:
		log.Warn("emote: job failed", "frames", frames, "err", err)
		if current {
			c.engine.notifier.Notify(Notification{
				Title:   TitleRenderFailed,
				Message: fmt.Sprintf("Rendering %s failed.", effect.Name),
				Err:     err,
			})
		}
	}
}

// settle stores a finished artifact if job is still the current job.
func (c *Controller) settle(job *RenderJob, a *Artifact, err error) (current bool) {
	var changed bool
	c.mu.Lock()
	defer func() { c.unlockAndPublish(changed) }()
	current = c.job == job && !job.Canceled()
	if err != nil || !current {
		return current
	}
	if !c.cache.Put(job.ImageID(), job.Effect(), a) {
		return false
	}
	c.artifact = a
	changed = c.setStateLocked(StateRendered)
	return true
}

// Wait blocks until the selected effect is rendered and returns its
// artifact. It follows superseding jobs, returns the error of a failed
// job and ErrNoEffect when nothing is selected.
func (c *Controller) Wait(ctx context.Context) (*Artifact, error) {
	for {
		c.mu.Lock()
		job, a, state, closed := c.job, c.artifact, c.state, c.closed
		c.mu.Unlock()

		switch {
		case closed:
			return nil, ErrClosed
		case state == StateRendered:
			return a, nil
		case job == nil:
			return nil, ErrNoEffect
		}

		if _, err := job.Wait(ctx); err != nil && !IsCanceled(err) {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if job.Canceled() {
			// Wait for the job that replaced it to be installed.
			c.mu.Lock()
			same := c.job == job && c.state == StateRendering
			c.mu.Unlock()
			if same {
				return nil, ErrCanceled
			}
		}
	}
}

// Close cancels the running job, waits for it and releases the
// controller's program and texture. The engine stays open.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancelJobLocked()
	c.mu.Unlock()

	c.jobs.Wait()

	c.mu.Lock()
	prog := c.program
	c.program = nil
	c.mu.Unlock()
	prog.Release()
	c.textures.Release()
	return nil
}

package emote

import (
	"bytes"
	"context"
	"errors"
	"image/gif"
	"slices"
	"sync"
	"testing"

	"github.com/fortytw2/leaktest"

	"github.com/gogpu/emote/catalog"
	"github.com/gogpu/emote/render"
)

func newTestController(t *testing.T, e *testEngine, opts ...ControllerOption) *Controller {
	t.Helper()
	opts = append([]ControllerOption{WithEncoderWorkers(2)}, opts...)
	return NewController(e.Engine, opts...)
}

func uploadTo(t *testing.T, c *Controller, name string) *SourceImage {
	t.Helper()
	src := NewSourceImage(splitImage(64), name, c.engine.Size())
	if err := c.UploadSource(testContext(t), src); err != nil {
		t.Fatalf("UploadSource: %v", err)
	}
	return src
}

func renderEffect(t *testing.T, c *Controller, name string) *Artifact {
	t.Helper()
	ctx := testContext(t)
	if err := c.SelectEffect(ctx, name); err != nil {
		t.Fatalf("SelectEffect(%s): %v", name, err)
	}
	a, err := c.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait(%s): %v", name, err)
	}
	return a
}

// selectWhileHeld selects name while the GPU goroutine is held, so the
// running job is canceled before it can draw another frame.
func selectWhileHeld(t *testing.T, e *testEngine, c *Controller, name string) {
	t.Helper()
	prev := c.Job()
	release := holdGPU(t, e.Engine)

	errc := make(chan error, 1)
	go func() { errc <- c.SelectEffect(context.Background(), name) }()
	waitFor(t, "the running job to be canceled", prev.Canceled)
	release()
	if err := <-errc; err != nil {
		t.Fatalf("SelectEffect(%s): %v", name, err)
	}
}

func TestControllerRender(t *testing.T) {
	defer leaktest.Check(t)()

	e := newTestEngine(t)
	defer e.Close()
	c := newTestController(t, e)
	defer c.Close()

	var (
		mu     sync.Mutex
		states []State
	)
	unsubscribe := c.Subscribe(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	defer unsubscribe()

	uploadTo(t, c, "cat.png")
	a := renderEffect(t, c, "Bounce")

	if a.Name() != "cat-Bounce.gif" {
		t.Errorf("Name = %q", a.Name())
	}
	if a.Frames() != 19 {
		t.Errorf("Frames = %d, want 19", a.Frames())
	}
	if c.State() != StateRendered || c.Selected() != "Bounce" || c.Artifact() != a {
		t.Errorf("state %v, selected %q", c.State(), c.Selected())
	}
	if job := c.Job(); job.State() != JobFinished || job.Frames() != 19 {
		t.Errorf("job %v with %d frames", job.State(), job.Frames())
	}

	g, err := gif.DecodeAll(a.Reader())
	if err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	if len(g.Image) != 19 || g.LoopCount != 0 {
		t.Errorf("gif has %d frames, loop %d", len(g.Image), g.LoopCount)
	}
	for i, d := range g.Delay {
		if d != 3 {
			t.Fatalf("frame %d delay = %d cs, want 3", i, d)
		}
	}
	if g.Config.Width != DefaultSize || g.Config.Height != DefaultSize {
		t.Errorf("gif is %dx%d", g.Config.Width, g.Config.Height)
	}

	var buf bytes.Buffer
	if n, err := a.WriteTo(&buf); err != nil || n != int64(a.Len()) || !bytes.Equal(buf.Bytes(), a.Bytes()) {
		t.Errorf("WriteTo = %d, %v", n, err)
	}

	mu.Lock()
	defer mu.Unlock()
	if want := []State{StateRendering, StateRendered}; !slices.Equal(states, want) {
		t.Errorf("state changes = %v, want %v", states, want)
	}
}

func TestControllerCacheHitSkipsRender(t *testing.T) {
	defer leaktest.Check(t)()

	e := newTestEngine(t, WithSize(32))
	defer e.Close()
	c := newTestController(t, e)
	defer c.Close()

	uploadTo(t, c, "cat.png")
	first := renderEffect(t, c, "Bounce")
	renderEffect(t, c, "Hop")
	calls := c.Sampler().Calls()
	if calls != 2 {
		t.Fatalf("Calls = %d, want 2", calls)
	}

	if err := c.SelectEffect(testContext(t), "Bounce"); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateRendered {
		t.Errorf("state after cache hit = %v", c.State())
	}
	if c.Artifact() != first {
		t.Error("cache hit returned a different artifact")
	}
	if got := c.Sampler().Calls(); got != calls {
		t.Errorf("Calls = %d after cache hit, want %d", got, calls)
	}
	if c.Cache().Len() != 2 {
		t.Errorf("cache holds %d artifacts, want 2", c.Cache().Len())
	}
}

func TestControllerCancelKeepsJobOutOfCache(t *testing.T) {
	defer leaktest.Check(t)()

	e := newTestEngine(t, WithSize(32))
	defer e.Close()
	c := newTestController(t, e)
	defer c.Close()

	uploadTo(t, c, "cat.png")
	if err := c.SelectEffect(testContext(t), "Peek"); err != nil {
		t.Fatal(err)
	}
	peek := c.Job()
	selectWhileHeld(t, e, c, "Bounce")

	if _, err := peek.Wait(testContext(t)); !IsCanceled(err) {
		t.Fatalf("canceled job = %v, want ErrCanceled", err)
	}
	if peek.State() != JobAborted {
		t.Errorf("canceled job state = %v", peek.State())
	}
	if full := FrameCount(catalogEffect(t, "Peek").Duration); peek.Frames() >= full {
		t.Errorf("canceled job rendered %d of %d frames", peek.Frames(), full)
	}

	a, err := c.Wait(testContext(t))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if a.Name() != "cat-Bounce.gif" || a.Frames() != 19 {
		t.Errorf("artifact %q with %d frames", a.Name(), a.Frames())
	}
	if got := c.Cache().Effects(); !slices.Equal(got, []string{"Bounce"}) {
		t.Errorf("cached effects = %v, want [Bounce]", got)
	}
}

func TestControllerSwitchBackRendersFresh(t *testing.T) {
	defer leaktest.Check(t)()

	e := newTestEngine(t, WithSize(32))
	defer e.Close()
	c := newTestController(t, e)
	defer c.Close()

	uploadTo(t, c, "")
	if err := c.SelectEffect(testContext(t), "Peek"); err != nil {
		t.Fatal(err)
	}
	first := c.Job()
	selectWhileHeld(t, e, c, "Pride")
	selectWhileHeld(t, e, c, "Peek")

	if _, err := first.Wait(testContext(t)); !IsCanceled(err) || first.State() != JobAborted {
		t.Fatalf("first Peek job = %v, want aborted", err)
	}
	a, err := c.Wait(testContext(t))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	job := c.Job()
	if job == first || job.Canceled() || job.State() != JobFinished {
		t.Errorf("final job: canceled %v, state %v", job.Canceled(), job.State())
	}
	if a.Name() != "result-Peek.gif" || a.Frames() != FrameCount(catalogEffect(t, "Peek").Duration) {
		t.Errorf("artifact %q with %d frames", a.Name(), a.Frames())
	}
	if _, ok := c.Cache().Get(c.Image().ID, "Pride"); ok {
		t.Error("canceled Pride job reached the cache")
	}
}

func TestControllerUploadInvalidatesCache(t *testing.T) {
	defer leaktest.Check(t)()

	e := newTestEngine(t, WithSize(16))
	defer e.Close()
	c := newTestController(t, e)
	defer c.Close()

	old := uploadTo(t, c, "a.png")
	renderEffect(t, c, "Go")
	renderEffect(t, c, "Rain")
	if c.Cache().Len() != 2 {
		t.Fatalf("cache holds %d artifacts", c.Cache().Len())
	}

	uploadTo(t, c, "b.png")
	if c.Cache().Len() != 0 {
		t.Errorf("cache holds %d artifacts after upload", c.Cache().Len())
	}
	if c.State() != StateInitial || c.Selected() != "" || c.Artifact() != nil {
		t.Errorf("after upload: state %v, selected %q", c.State(), c.Selected())
	}
	if c.Cache().Put(old.ID, "Go", NewArtifact("a-Go.gif", nil, 0)) {
		t.Error("cache accepted an artifact of the replaced image")
	}
	if _, err := c.Wait(testContext(t)); !errors.Is(err, ErrNoEffect) {
		t.Errorf("Wait without selection = %v, want ErrNoEffect", err)
	}

	calls := c.Sampler().Calls()
	if a := renderEffect(t, c, "Go"); a.Name() != "b-Go.gif" {
		t.Errorf("Name = %q", a.Name())
	}
	if c.Sampler().Calls() != calls+1 {
		t.Error("selecting after upload did not render")
	}
}

func TestControllerUploadCancelsJob(t *testing.T) {
	defer leaktest.Check(t)()

	e := newTestEngine(t, WithSize(32))
	defer e.Close()
	c := newTestController(t, e)
	defer c.Close()

	uploadTo(t, c, "a.png")
	if err := c.SelectEffect(testContext(t), "Peek"); err != nil {
		t.Fatal(err)
	}
	job := c.Job()
	uploadTo(t, c, "b.png")

	if _, err := job.Wait(testContext(t)); err != nil && !IsCanceled(err) {
		t.Fatalf("job = %v", err)
	}
	if c.Cache().Len() != 0 || c.State() != StateInitial {
		t.Errorf("after upload: cache %d, state %v", c.Cache().Len(), c.State())
	}
}

func TestControllerUploadError(t *testing.T) {
	defer leaktest.Check(t)()

	e := newTestEngine(t, WithSize(16))
	defer e.Close()
	c := newTestController(t, e)
	defer c.Close()

	uploadTo(t, c, "cat.png")
	renderEffect(t, c, "Hop")

	uploadErr := &ImageUploadError{Name: "dog.png", Err: errors.New("bad header")}
	if err := c.ReportUploadError(testContext(t), uploadErr); err != nil {
		t.Fatalf("ReportUploadError: %v", err)
	}
	if got := e.notifier.titles(); !slices.Equal(got, []string{TitleUploadFailed}) {
		t.Errorf("notifications = %v", got)
	}
	if c.State() != StateRendered || c.Selected() != "Hop" {
		t.Errorf("state %v, selected %q; want them untouched", c.State(), c.Selected())
	}
	if c.Cache().Len() != 0 {
		t.Errorf("cache holds %d artifacts after fallback", c.Cache().Len())
	}
	if img := c.Image(); img.Name != "" || img.Pixels.Bounds().Dx() != 16 {
		t.Errorf("image after failure = %q", img.Name)
	}
	if a := c.Artifact(); a == nil || a.Name() != "cat-Hop.gif" {
		t.Errorf("displayed artifact = %v, want the last rendered one", a)
	}

	if a := renderEffect(t, c, "Hop"); a.Name() != "result-Hop.gif" {
		t.Errorf("Name = %q", a.Name())
	}
}

func TestControllerUploadErrorRestartsJob(t *testing.T) {
	defer leaktest.Check(t)()

	e := newTestEngine(t, WithSize(32))
	defer e.Close()
	c := newTestController(t, e)
	defer c.Close()

	uploadTo(t, c, "cat.png")
	if err := c.SelectEffect(testContext(t), "Peek"); err != nil {
		t.Fatal(err)
	}
	running := c.Job()
	release := holdGPU(t, e.Engine)
	errc := make(chan error, 1)
	go func() { errc <- c.ReportUploadError(context.Background(), errors.New("decode")) }()
	waitFor(t, "the running job to be canceled", running.Canceled)
	release()
	if err := <-errc; err != nil {
		t.Fatal(err)
	}

	restarted := c.Job()
	if restarted == running || restarted.ImageID() != c.Image().ID {
		t.Fatal("job was not restarted on the fallback image")
	}
	a, err := c.Wait(testContext(t))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if a.Name() != "result-Peek.gif" {
		t.Errorf("Name = %q", a.Name())
	}
}

func TestControllerErrors(t *testing.T) {
	defer leaktest.Check(t)()

	e := newTestEngine(t, WithSize(8))
	defer e.Close()

	broken := stillEffect("Broken", 1)
	broken.FragmentSource = catalog.FragmentSource(brokenFragment)
	cat, err := catalog.New(stillEffect("Still", 0.5), broken)
	if err != nil {
		t.Fatal(err)
	}
	c := newTestController(t, e, WithCatalog(cat))
	defer c.Close()
	ctx := testContext(t)

	if err := c.SelectEffect(ctx, "Still"); !errors.Is(err, ErrNoImage) {
		t.Errorf("select before upload = %v, want ErrNoImage", err)
	}
	uploadTo(t, c, "x.png")
	if err := c.SelectEffect(ctx, "Nope"); !errors.Is(err, ErrUnknownEffect) {
		t.Errorf("unknown effect = %v", err)
	}

	var ce *ShaderCompileError
	if err := c.SelectEffect(ctx, "Broken"); !errors.As(err, &ce) || !IsShaderError(err) {
		t.Fatalf("broken effect = %v, want ShaderCompileError", err)
	}
	if c.State() != StateInitial || c.Job() != nil {
		t.Errorf("failed compile changed state to %v", c.State())
	}
	before := e.dev.Stats().Shaders
	if err := c.SelectEffect(ctx, "Broken"); !errors.As(err, &ce) {
		t.Errorf("broken effect recovered without a rebuild: %v", err)
	}
	if e.dev.Stats().Shaders != before {
		t.Error("broken effect was compiled again")
	}
	if err := c.RebuildEffect(ctx, "Broken"); !errors.As(err, &ce) {
		t.Errorf("RebuildEffect = %v", err)
	}
	if err := c.RebuildEffect(ctx, "Still"); err != nil {
		t.Errorf("RebuildEffect(Still) = %v", err)
	}

	renderEffect(t, c, "Still")
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.SelectEffect(ctx, "Still"); !errors.Is(err, ErrClosed) {
		t.Errorf("select after Close = %v", err)
	}
	if got := e.dev.Stats(); got.Programs != 0 || got.Textures != 0 {
		t.Errorf("controller left %d programs and %d textures", got.Programs, got.Textures)
	}
}

func TestControllerBrokenSelectKeepsJob(t *testing.T) {
	defer leaktest.Check(t)()

	e := newTestEngine(t, WithSize(8))
	defer e.Close()

	broken := stillEffect("Broken", 1)
	broken.FragmentSource = catalog.FragmentSource(brokenFragment)
	cat, err := catalog.New(stillEffect("Still", 2), broken)
	if err != nil {
		t.Fatal(err)
	}
	c := newTestController(t, e, WithCatalog(cat))
	defer c.Close()
	ctx := testContext(t)

	uploadTo(t, c, "x.png")
	if err := c.SelectEffect(ctx, "Still"); err != nil {
		t.Fatal(err)
	}
	running := c.Job()

	// The compile queues behind the held GPU goroutine while the job is
	// still in flight.
	release := holdGPU(t, e.Engine)
	errc := make(chan error, 1)
	go func() { errc <- c.SelectEffect(context.Background(), "Broken") }()
	release()
	if err := <-errc; !IsShaderError(err) {
		t.Fatalf("broken effect = %v, want a shader error", err)
	}

	if running.Canceled() || c.Job() != running {
		t.Fatal("failed compile canceled the running job")
	}
	if c.Selected() != "Still" {
		t.Errorf("selected = %q, want Still", c.Selected())
	}
	a, err := c.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if a.Name() != "x-Still.gif" || c.State() != StateRendered {
		t.Errorf("Wait = %q in state %v", a.Name(), c.State())
	}
}

func TestControllerContextLoss(t *testing.T) {
	defer leaktest.Check(t)()

	e := newTestEngine(t, WithSize(16))
	defer e.Close()
	c := newTestController(t, e)
	defer c.Close()
	ctx := testContext(t)

	uploadTo(t, c, "cat.png")
	renderEffect(t, c, "Hop")

	e.dev.LoseContext()
	for range 2 {
		if err := c.SelectEffect(ctx, "Bounce"); !errors.Is(err, ErrContextLost) {
			t.Fatalf("select while lost = %v, want ErrContextLost", err)
		}
	}
	if got := e.notifier.titles(); !slices.Equal(got, []string{TitleContextLost}) {
		t.Errorf("notifications = %v, want one context loss", got)
	}
	if err := c.SelectEffect(ctx, "Hop"); err != nil {
		t.Errorf("cached artifact unavailable while lost: %v", err)
	}

	if err := e.Reacquire(ctx, render.NewSoftwareDevice()); err != nil {
		t.Fatalf("Reacquire: %v", err)
	}
	if a := renderEffect(t, c, "Bounce"); a.Frames() != 19 {
		t.Errorf("Bounce after reacquire has %d frames", a.Frames())
	}
}

func catalogEffect(t *testing.T, name string) *Effect {
	t.Helper()
	effect, ok := DefaultCatalog().Get(name)
	if !ok {
		t.Fatalf("no effect %q", name)
	}
	return effect
}

package emote

import (
	"context"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/emote/catalog"
	"github.com/gogpu/emote/render"
	"github.com/gogpu/emote/shader"
)

// fakeSPIRV is a five-word SPIR-V header. The software device runs the
// registered kernels, so tests skip naga.
var fakeSPIRV = []byte{
	0x03, 0x02, 0x23, 0x07,
	0x00, 0x00, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

func testCompiler() *shader.Compiler {
	return shader.NewCompilerWith(func(string) ([]byte, error) { return fakeSPIRV, nil })
}

const stillVertex = `
@vertex
fn quad_vertex(@location(0) meshPosition: vec2<f32>) -> VertexOutput {
    var out: VertexOutput;
    out.position = vec4<f32>(meshPosition, 0.0, 1.0);
    out.uv = quad_uv(meshPosition);
    return out;
}
`

const stillFragment = `
@fragment
fn emote_fragment(in: VertexOutput) -> @location(0) vec4<f32> {
    return sample_emote(in.uv);
}
`

// brokenFragment has no software kernel, so it never compiles.
const brokenFragment = `
@fragment
fn broken_fragment(in: VertexOutput) -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`

// stillEffect shows the image unchanged for duration seconds.
func stillEffect(name string, duration float64) catalog.Effect {
	return catalog.Effect{
		Name:           name,
		VertexSource:   catalog.VertexSource(stillVertex),
		FragmentSource: catalog.FragmentSource(stillFragment),
		Duration:       duration,
	}
}

type testEngine struct {
	*Engine
	dev      *render.SoftwareDevice
	notifier *recordingNotifier
}

// newTestEngine opens an engine on a software device. The caller closes
// it with a defer placed after any leak check.
func newTestEngine(t *testing.T, opts ...EngineOption) *testEngine {
	t.Helper()
	dev := render.NewSoftwareDevice()
	n := &recordingNotifier{}
	opts = append([]EngineOption{
		WithDevice(dev),
		WithShaderCompiler(testCompiler()),
		WithNotifier(n),
	}, opts...)
	e, err := NewEngine(opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return &testEngine{Engine: e, dev: dev, notifier: n}
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []Notification
}

func (r *recordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	r.got = append(r.got, n)
	r.mu.Unlock()
}

func (r *recordingNotifier) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	titles := make([]string, len(r.got))
	for i, n := range r.got {
		titles[i] = n.Title
	}
	return titles
}

var (
	red  = color.NRGBA{R: 0xff, A: 0xff}
	blue = color.NRGBA{B: 0xff, A: 0xff}
)

// splitImage is red on top and blue below.
func splitImage(size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		c := red
		if y >= size/2 {
			c = blue
		}
		for x := range size {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// holdGPU blocks the engine's GPU goroutine until the returned function
// is called.
func holdGPU(t *testing.T, e *Engine) (release func()) {
	t.Helper()
	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = e.Do(context.Background(), func(render.Device) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held
	return func() { close(done) }
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

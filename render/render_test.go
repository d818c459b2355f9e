// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/emote/kernel"
	"github.com/gogpu/emote/shader"
)

const testPrelude = `
struct Uniforms {
    time: f32,
    resolution: vec2<f32>,
}

@group(0) @binding(0) var<uniform> u: Uniforms;
@group(0) @binding(1) var emote: texture_2d<f32>;
@group(0) @binding(2) var emote_sampler: sampler;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}
`

const testVertexSource = testPrelude + `
@vertex
fn render_test_vertex(@location(0) meshPosition: vec2<f32>) -> VertexOutput {
    var out: VertexOutput;
    out.position = vec4<f32>(meshPosition, 0.0, 1.0);
    out.uv = (meshPosition + vec2<f32>(1.0, 1.0)) * 0.5;
    return out;
}
`

const testTextureSource = testPrelude + `
@fragment
fn render_test_texture(in: VertexOutput) -> @location(0) vec4<f32> {
    let pixel = textureSample(emote, emote_sampler, vec2<f32>(in.uv.x, 1.0 - in.uv.y));
    return vec4<f32>(pixel.rgb, floor(pixel.a + 0.5));
}
`

const testUniformSource = testPrelude + `
@fragment
fn render_test_uniforms(in: VertexOutput) -> @location(0) vec4<f32> {
    return vec4<f32>(u.time, u.resolution.x / 10.0, 0.0, 1.0);
}
`

const testHalfRedSource = testPrelude + `
@fragment
fn render_test_half_red(in: VertexOutput) -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 0.5);
}
`

func init() {
	kernel.RegisterVertex("render_test_vertex", kernel.Passthrough)
	kernel.RegisterVertex("render_test_extra_input", kernel.Passthrough)
	kernel.RegisterFragment("render_test_texture", func(_ kernel.Uniforms, in kernel.VertexOutput, tex kernel.Sampler) kernel.Vec4 {
		return kernel.SampleFlipped(tex, in.UV)
	})
	kernel.RegisterFragment("render_test_uniforms", func(u kernel.Uniforms, _ kernel.VertexOutput, _ kernel.Sampler) kernel.Vec4 {
		return kernel.V4(u.Time, u.Resolution.X/10, 0, 1)
	})
	kernel.RegisterFragment("render_test_half_red", func(kernel.Uniforms, kernel.VertexOutput, kernel.Sampler) kernel.Vec4 {
		return kernel.V4(1, 0, 0, 0.5)
	})
}

var quad = []float32{
	-1, -1, 1, -1, 1, 1,
	-1, -1, 1, 1, -1, 1,
}

// testModule builds a module from reflection alone, without naga.
func testModule(t *testing.T, source string, stage shader.Stage) *shader.Module {
	t.Helper()
	refl, err := shader.Reflect(source, stage)
	if err != nil {
		t.Fatalf("Reflect: %v", err)
	}
	return &shader.Module{Stage: stage, Source: source, Reflection: *refl}
}

func testProgram(t *testing.T, dev *SoftwareDevice, fragmentSource string) Program {
	t.Helper()
	vs, err := dev.CompileShader(testModule(t, testVertexSource, shader.StageVertex))
	if err != nil {
		t.Fatalf("CompileShader(vertex): %v", err)
	}
	fs, err := dev.CompileShader(testModule(t, fragmentSource, shader.StageFragment))
	if err != nil {
		t.Fatalf("CompileShader(fragment): %v", err)
	}
	p, err := NewProgramCompiler(dev, nil).Link(vs, fs, shader.DefaultBindings())
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	return p
}

// checker is a 2x2 image: red, green on top; blue, white below.
func checker() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	img.SetNRGBA(1, 0, color.NRGBA{0, 255, 0, 255})
	img.SetNRGBA(0, 1, color.NRGBA{0, 0, 255, 255})
	img.SetNRGBA(1, 1, color.NRGBA{255, 255, 255, 255})
	return img
}

func drawOnce(t *testing.T, dev *SoftwareDevice, prog Program, tex Texture, w, h int, uniforms UniformData) []byte {
	t.Helper()
	mesh, err := dev.CreateMesh(quad)
	if err != nil {
		t.Fatalf("CreateMesh: %v", err)
	}
	defer dev.DeleteMesh(mesh)
	target, err := dev.CreateTarget(w, h)
	if err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}
	defer dev.DeleteTarget(target)

	err = dev.Draw(DrawCall{
		Program:  prog,
		Mesh:     mesh,
		Texture:  tex,
		Target:   target,
		Uniforms: uniforms,
		Clear:    gputypes.Color{A: 1},
	})
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	pix := make([]byte, w*h*4)
	if err := dev.ReadPixels(target, pix); err != nil {
		t.Fatalf("ReadPixels: %v", err)
	}
	return pix
}

func TestSoftwareDrawTexture(t *testing.T) {
	dev := NewSoftwareDevice()
	defer dev.Destroy()

	prog := testProgram(t, dev, testTextureSource)
	tex, err := dev.CreateTexture(checker())
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}

	pix := drawOnce(t, dev, prog, tex, 2, 2, nil)

	// Bottom row first.
	want := []byte{
		0, 0, 255, 255, 255, 255, 255, 255,
		255, 0, 0, 255, 0, 255, 0, 255,
	}
	if string(pix) != string(want) {
		t.Fatalf("pixels = %v, want %v", pix, want)
	}

	FlipRows(pix, 2, 2)
	if pix[0] != 255 || pix[1] != 0 || pix[2] != 0 {
		t.Errorf("top-left after flip = %v, want red", pix[:4])
	}
}

func TestSoftwareDrawUniforms(t *testing.T) {
	dev := NewSoftwareDevice()
	defer dev.Destroy()

	prog := testProgram(t, dev, testUniformSource)
	data := NewUniformData(prog.Linked().Uniforms)
	timeLoc, ok := prog.UniformLocation("time")
	if !ok {
		t.Fatal("no time uniform")
	}
	resLoc, ok := prog.UniformLocation("resolution")
	if !ok {
		t.Fatal("no resolution uniform")
	}
	data.SetFloat(timeLoc, 0.5)
	data.SetVec2(resLoc, 2, 2)

	pix := drawOnce(t, dev, prog, nil, 2, 2, data)
	for i := 0; i < len(pix); i += 4 {
		if pix[i] != 128 || pix[i+1] != 51 || pix[i+2] != 0 || pix[i+3] != 255 {
			t.Fatalf("pixel %d = %v, want [128 51 0 255]", i/4, pix[i:i+4])
		}
	}
}

func TestSoftwareBlend(t *testing.T) {
	dev := NewSoftwareDevice()
	defer dev.Destroy()

	prog := testProgram(t, dev, testHalfRedSource)
	pix := drawOnce(t, dev, prog, nil, 3, 3, nil)

	// (1,0,0,0.5) over opaque black.
	for i := 0; i < len(pix); i += 4 {
		if pix[i] != 128 || pix[i+1] != 0 || pix[i+2] != 0 || pix[i+3] != 191 {
			t.Fatalf("pixel %d = %v, want [128 0 0 191]", i/4, pix[i:i+4])
		}
	}
}

func TestSoftwareMissingKernel(t *testing.T) {
	dev := NewSoftwareDevice()
	defer dev.Destroy()

	m := testModule(t, testVertexSource, shader.StageVertex)
	m.EntryPoint = "no_such_kernel"
	_, err := dev.CompileShader(m)

	var ce *shader.CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("CompileShader error = %v, want *shader.CompileError", err)
	}
}

func TestSoftwareContextLoss(t *testing.T) {
	dev := NewSoftwareDevice()
	defer dev.Destroy()

	prog := testProgram(t, dev, testTextureSource)
	mesh, _ := dev.CreateMesh(quad)
	target, _ := dev.CreateTarget(2, 2)

	dev.LoseContext()

	if _, err := dev.CreateTexture(checker()); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("CreateTexture after loss = %v, want ErrDeviceLost", err)
	}
	err := dev.Draw(DrawCall{Program: prog, Mesh: mesh, Target: target})
	if !errors.Is(err, ErrDeviceLost) {
		t.Errorf("Draw after loss = %v, want ErrDeviceLost", err)
	}
	if err := dev.ReadPixels(target, make([]byte, 16)); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("ReadPixels after loss = %v, want ErrDeviceLost", err)
	}

	// Deleting lost handles is allowed.
	dev.DeleteProgram(prog)
	dev.DeleteMesh(mesh)
	dev.DeleteTarget(target)
}

func TestSoftwareForeignAndDeletedHandles(t *testing.T) {
	a, b := NewSoftwareDevice(), NewSoftwareDevice()
	defer a.Destroy()
	defer b.Destroy()

	prog := testProgram(t, a, testTextureSource)
	mesh, _ := b.CreateMesh(quad)
	target, _ := a.CreateTarget(2, 2)

	if err := a.Draw(DrawCall{Program: prog, Mesh: mesh, Target: target}); !errors.Is(err, errForeignHandle) {
		t.Errorf("Draw with foreign mesh = %v", err)
	}

	a.DeleteTarget(target)
	if err := a.ReadPixels(target, make([]byte, 16)); !errors.Is(err, errDeletedHandle) {
		t.Errorf("ReadPixels of deleted target = %v", err)
	}
}

func TestSoftwareReadPixelsShortBuffer(t *testing.T) {
	dev := NewSoftwareDevice()
	defer dev.Destroy()

	target, _ := dev.CreateTarget(2, 2)
	if err := dev.ReadPixels(target, make([]byte, 15)); err == nil {
		t.Error("ReadPixels into a short buffer succeeded")
	}
}

func TestSoftwareStats(t *testing.T) {
	dev := NewSoftwareDevice()

	prog := testProgram(t, dev, testTextureSource)
	tex, _ := dev.CreateTexture(checker())
	mesh, _ := dev.CreateMesh(quad)
	target, _ := dev.CreateTarget(4, 4)

	want := DeviceStats{Programs: 1, Textures: 1, Meshes: 1, Targets: 1}
	if got := dev.Stats(); got != want {
		t.Fatalf("Stats = %+v, want %+v", got, want)
	}

	dev.DeleteProgram(prog)
	dev.DeleteProgram(prog)
	dev.DeleteTexture(tex)
	dev.DeleteMesh(mesh)
	dev.DeleteTarget(target)
	if got := dev.Stats(); got != (DeviceStats{}) {
		t.Errorf("Stats after delete = %+v, want zero", got)
	}

	dev.Destroy()
	if _, err := dev.CreateTarget(1, 1); !errors.Is(err, errDestroyed) {
		t.Errorf("CreateTarget after Destroy = %v", err)
	}
}

func TestCreateMeshValidation(t *testing.T) {
	dev := NewSoftwareDevice()
	defer dev.Destroy()

	for _, verts := range [][]float32{nil, {1, 2, 3}} {
		if _, err := dev.CreateMesh(verts); err == nil {
			t.Errorf("CreateMesh(%v) succeeded", verts)
		}
	}
	if _, err := dev.CreateTarget(0, 4); err == nil {
		t.Error("CreateTarget(0, 4) succeeded")
	}
	if _, err := dev.CreateTexture(image.NewNRGBA(image.Rectangle{})); err == nil {
		t.Error("CreateTexture(empty) succeeded")
	}
}

func TestLinkReleasesShadersOnSuccess(t *testing.T) {
	dev := NewSoftwareDevice()
	defer dev.Destroy()

	testProgram(t, dev, testTextureSource)
	if got := dev.Stats(); got.Shaders != 0 || got.Programs != 1 {
		t.Errorf("Stats = %+v, want 0 shaders and 1 program", got)
	}
}

func TestLinkKeepsShadersOnFailure(t *testing.T) {
	dev := NewSoftwareDevice()
	defer dev.Destroy()

	vs, err := dev.CompileShader(testModule(t, testVertexSource, shader.StageVertex))
	if err != nil {
		t.Fatal(err)
	}
	fs, err := dev.CompileShader(testModule(t, testTextureSource, shader.StageFragment))
	if err != nil {
		t.Fatal(err)
	}

	// Stages swapped.
	_, err = NewProgramCompiler(dev, nil).Link(fs, vs, shader.DefaultBindings())
	var le *shader.LinkError
	if !errors.As(err, &le) {
		t.Fatalf("Link error = %v, want *shader.LinkError", err)
	}
	if got := dev.Stats().Shaders; got != 2 {
		t.Errorf("Shaders = %d after failed link, want 2", got)
	}
}

func TestProgramCompilerBuild(t *testing.T) {
	dev := NewSoftwareDevice()
	defer dev.Destroy()

	prog, err := NewProgramCompiler(dev, nil).Build(testVertexSource, testTextureSource)
	if err != nil {
		var ce *shader.CompileError
		if errors.As(err, &ce) {
			t.Skipf("naga cannot compile the test shaders: %v", err)
		}
		t.Fatalf("Build: %v", err)
	}
	if prog.Linked().Vertex.EntryPoint != "render_test_vertex" {
		t.Errorf("vertex entry point = %q", prog.Linked().Vertex.EntryPoint)
	}
}

func TestProgramCompilerBuildFailure(t *testing.T) {
	dev := NewSoftwareDevice()
	defer dev.Destroy()

	fake := shader.NewCompilerWith(func(string) ([]byte, error) {
		return []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0}, nil
	})
	pc := NewProgramCompiler(dev, fake)

	noKernel := testPrelude + `
@fragment
fn render_test_missing(in: VertexOutput) -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 1.0, 1.0, 1.0);
}
`
	// Location 1 has no attribute binding, so linking fails.
	extraInput := testPrelude + `
@vertex
fn render_test_extra_input(@location(0) meshPosition: vec2<f32>, @location(1) weight: f32) -> VertexOutput {
    var out: VertexOutput;
    out.position = vec4<f32>(meshPosition, 0.0, 1.0);
    out.uv = meshPosition * weight;
    return out;
}
`
	tests := []struct {
		name   string
		vs, fs string
	}{
		{"compile", testVertexSource, noKernel},
		{"link", extraInput, testTextureSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := pc.Build(tt.vs, tt.fs); err == nil {
				t.Fatal("Build succeeded")
			}
			if got := dev.Stats(); got.Shaders != 0 || got.Programs != 0 {
				t.Errorf("Stats = %+v after failed build", got)
			}
		})
	}
}

func TestUniformData(t *testing.T) {
	block := &shader.UniformBlock{
		Size: 16,
		Members: []shader.Member{
			{Name: "time", Type: "f32", Offset: 0, Size: 4},
			{Name: "resolution", Type: "vec2<f32>", Offset: 8, Size: 8},
		},
	}
	data := NewUniformData(block)
	if len(data) != 16 {
		t.Fatalf("len = %d, want 16", len(data))
	}

	timeLoc, _ := LocateUniform(block, "time")
	resLoc, _ := LocateUniform(block, "resolution")
	data.SetFloat(timeLoc, 1.25)
	data.SetVec2(resLoc, 112, 56)

	if got := data.Float(timeLoc); got != 1.25 {
		t.Errorf("time = %v", got)
	}
	if x, y := data.Vec2(resLoc); x != 112 || y != 56 {
		t.Errorf("resolution = (%v, %v)", x, y)
	}
	if _, ok := LocateUniform(block, "missing"); ok {
		t.Error("LocateUniform found a missing member")
	}
	if NewUniformData(nil) != nil {
		t.Error("NewUniformData(nil) != nil")
	}

	// Out-of-range writes are dropped.
	data.SetVec2(UniformLocation{Offset: 12, Size: 8}, 1, 1)
	if x, _ := data.Vec2(resLoc); x != 112 {
		t.Errorf("out-of-range write changed resolution.x to %v", x)
	}
}

func TestFlipRows(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"even", 3, 4},
		{"odd", 2, 5},
		{"single row", 4, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pix := make([]byte, tt.w*tt.h*4)
			for i := range pix {
				pix[i] = byte(i)
			}
			orig := append([]byte(nil), pix...)

			FlipRows(pix, tt.w, tt.h)
			stride := tt.w * 4
			for y := 0; y < tt.h; y++ {
				got := pix[y*stride : (y+1)*stride]
				want := orig[(tt.h-1-y)*stride : (tt.h-y)*stride]
				if string(got) != string(want) {
					t.Fatalf("row %d = %v, want %v", y, got, want)
				}
			}

			FlipRows(pix, tt.w, tt.h)
			if string(pix) != string(orig) {
				t.Error("flipping twice is not the identity")
			}
		})
	}
}

func TestFrameImage(t *testing.T) {
	f := &Frame{Pix: make([]byte, 2*3*4), Width: 2, Height: 3}
	f.Pix[4] = 9
	img := f.Image()
	if img.Bounds() != image.Rect(0, 0, 2, 3) {
		t.Errorf("Bounds = %v", img.Bounds())
	}
	if img.RGBAAt(1, 0).R != 9 {
		t.Error("Image does not share the frame pixels")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if _, err := r.OpenBest(); !errors.Is(err, ErrNoBackend) {
		t.Errorf("OpenBest on empty registry = %v", err)
	}

	opened := ""
	factory := func(name string) Factory {
		return func() (Device, error) {
			opened = name
			return NewSoftwareDevice(), nil
		}
	}
	r.Register("gpu", 100, factory("gpu"), func() bool { return false })
	r.Register("gl", 50, func() (Device, error) { return nil, errors.New("no display") }, nil)
	r.Register("software", 10, factory("software"), nil)

	if got := r.List(); len(got) != 3 || got[0] != "gpu" || got[2] != "software" {
		t.Errorf("List = %v", got)
	}
	if got := r.Available(); len(got) != 2 || got[0] != "gl" {
		t.Errorf("Available = %v", got)
	}

	dev, err := r.OpenBest()
	if err != nil {
		t.Fatalf("OpenBest: %v", err)
	}
	dev.Destroy()
	if opened != "software" {
		t.Errorf("OpenBest opened %q, want software", opened)
	}

	var unavailable *BackendUnavailableError
	if _, err := r.Open("gpu"); !errors.As(err, &unavailable) {
		t.Errorf("Open(gpu) = %v", err)
	}
	var notFound *BackendNotFoundError
	if _, err := r.Open("metal"); !errors.As(err, &notFound) {
		t.Errorf("Open(metal) = %v", err)
	}

	r.Unregister("gl")
	if _, ok := r.Get("gl"); ok {
		t.Error("gl still registered")
	}
}

func TestDefaultRegistryHasSoftware(t *testing.T) {
	b, ok := Get("software")
	if !ok {
		t.Fatal("software backend not registered")
	}
	if !b.Available() {
		t.Error("software backend unavailable")
	}
	dev, err := Open("software")
	if err != nil {
		t.Fatalf("Open(software): %v", err)
	}
	defer dev.Destroy()
	if dev.Name() != "software" {
		t.Errorf("Name = %q", dev.Name())
	}
}

func TestNullDeviceHandle(t *testing.T) {
	var h DeviceHandle = NullDeviceHandle{}
	if h.Device() != nil || h.Queue() != nil || h.Adapter() != nil {
		t.Error("null handle returned a device")
	}
	if h.SurfaceFormat() != gputypes.TextureFormatUndefined {
		t.Errorf("SurfaceFormat = %v", h.SurfaceFormat())
	}
	if info := h.AdapterInfo(); info.Type != gpucontext.AdapterTypeSoftware {
		t.Errorf("AdapterInfo = %+v, want a software adapter", info)
	}
}

// hostHandle stands in for a GPU device owned by a host application.
type hostHandle struct{ NullDeviceHandle }

func TestOpenHandle(t *testing.T) {
	dev, err := OpenHandle(NullDeviceHandle{})
	if err != nil {
		t.Fatalf("OpenHandle(null): %v", err)
	}
	if dev.Name() != "software" {
		t.Errorf("null handle opened %q, want software", dev.Name())
	}
	dev.Destroy()

	if _, err := OpenHandle(nil); err == nil {
		t.Error("OpenHandle(nil) succeeded")
	}
	if _, err := OpenHandle(hostHandle{}); !errors.Is(err, ErrNoHandleOpener) {
		t.Errorf("OpenHandle without opener = %v, want ErrNoHandleOpener", err)
	}

	var got DeviceHandle
	RegisterHandleOpener(func(h DeviceHandle) (Device, error) {
		got = h
		return NewSoftwareDevice(), nil
	})
	defer RegisterHandleOpener(nil)
	dev, err = OpenHandle(hostHandle{})
	if err != nil {
		t.Fatalf("OpenHandle(host): %v", err)
	}
	dev.Destroy()
	if _, ok := got.(hostHandle); !ok {
		t.Errorf("opener received %T", got)
	}
}

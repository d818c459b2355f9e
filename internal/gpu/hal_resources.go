package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/emote/render"
	"github.com/gogpu/emote/shader"
)

var (
	errForeignHandle = errors.New("gpu: handle belongs to another device")
	errDeletedHandle = errors.New("gpu: handle already deleted")
)

// meshStride is the byte stride of one vec2<f32> mesh position.
const meshStride = 8

// copyRowAlignment is the required BytesPerRow alignment of texture copies.
const copyRowAlignment = 256

type halShader struct {
	dev     *HALDevice
	module  *shader.Module
	handle  hal.ShaderModule
	deleted bool
}

func (s *halShader) Module() *shader.Module { return s.module }

// CompileShader creates a HAL shader module. Vulkan receives the SPIR-V
// produced by naga; other backends translate the WGSL source themselves.
func (d *HALDevice) CompileShader(m *shader.Module) (render.Shader, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("gpu: nil shader module")
	}
	src := hal.ShaderSource{WGSL: m.Source}
	if d.useSPIRV && len(m.SPIRV) > 0 {
		src = hal.ShaderSource{SPIRV: m.SPIRV}
	}
	handle, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "emote_" + m.EntryPoint,
		Source: src,
	})
	if err != nil {
		if errors.Is(err, hal.ErrDeviceLost) {
			return nil, d.fail("create shader module", err)
		}
		return nil, &shader.CompileError{Stage: m.Stage, Log: err.Error()}
	}
	d.live.Shaders++
	return &halShader{dev: d, module: m, handle: handle}, nil
}

// DeleteShader releases s.
func (d *HALDevice) DeleteShader(s render.Shader) {
	hs, ok := s.(*halShader)
	if !ok || hs.dev != d || hs.deleted {
		return
	}
	hs.deleted = true
	if !d.destroyed {
		d.device.DestroyShaderModule(hs.handle)
	}
	d.live.Shaders--
}

type halProgram struct {
	dev        *HALDevice
	linked     *shader.Linked
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	uniforms   hal.Buffer
	uniformLen uint64
	deleted    bool
}

func (p *halProgram) Linked() *shader.Linked { return p.linked }

func (p *halProgram) UniformLocation(name string) (render.UniformLocation, bool) {
	return render.LocateUniform(p.linked.Uniforms, name)
}

// programBlend is (SRC_ALPHA, ONE_MINUS_SRC_ALPHA) on color and alpha alike.
var programBlend = gputypes.BlendState{
	Color: gputypes.BlendComponent{
		SrcFactor: gputypes.BlendFactorSrcAlpha,
		DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
		Operation: gputypes.BlendOperationAdd,
	},
	Alpha: gputypes.BlendComponent{
		SrcFactor: gputypes.BlendFactorSrcAlpha,
		DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
		Operation: gputypes.BlendOperationAdd,
	},
}

// LinkProgram builds the bind group layout from the reflected resources and
// creates the render pipeline.
func (d *HALDevice) LinkProgram(vs, fs render.Shader, linked *shader.Linked) (render.Program, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	v, err := d.ownShader(vs)
	if err != nil {
		return nil, err
	}
	f, err := d.ownShader(fs)
	if err != nil {
		return nil, err
	}
	entries, err := bindLayoutEntries(linked)
	if err != nil {
		return nil, err
	}

	p := &halProgram{dev: d, linked: linked}
	if err := d.createPipeline(p, v, f, entries); err != nil {
		d.destroyProgram(p)
		return nil, err
	}
	d.live.Programs++
	return p, nil
}

func (d *HALDevice) createPipeline(p *halProgram, v, f *halShader, entries []gputypes.BindGroupLayoutEntry) error {
	var err error
	p.bindLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "emote_bind_layout",
		Entries: entries,
	})
	if err != nil {
		return d.fail("create bind group layout", err)
	}
	p.pipeLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "emote_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		return d.fail("create pipeline layout", err)
	}

	if p.linked.Uniforms != nil {
		p.uniformLen = uint64(max(p.linked.Uniforms.Size, 16))
		p.uniforms, err = d.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "emote_uniforms",
			Size:  p.uniformLen,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return d.fail("create uniform buffer", err)
		}
	}

	location := p.linked.Bindings[shader.MeshPositionAttribute]
	p.pipeline, err = d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "emote_" + v.module.EntryPoint + "_" + f.module.EntryPoint,
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     v.handle,
			EntryPoint: v.module.EntryPoint,
			Buffers: []gputypes.VertexBufferLayout{{
				ArrayStride: meshStride,
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes: []gputypes.VertexAttribute{{
					Format:         gputypes.VertexFormatFloat32x2,
					Offset:         0,
					ShaderLocation: location,
				}},
			}},
		},
		Primitive:   gputypes.PrimitiveState{},
		Multisample: gputypes.DefaultMultisampleState(),
		Fragment: &hal.FragmentState{
			Module:     f.handle,
			EntryPoint: f.module.EntryPoint,
			Targets: []gputypes.ColorTargetState{{
				Format:    gputypes.TextureFormatRGBA8Unorm,
				Blend:     &programBlend,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
	})
	if err != nil {
		if errors.Is(err, hal.ErrDeviceLost) {
			return d.fail("create render pipeline", err)
		}
		return &shader.LinkError{Log: err.Error()}
	}
	return nil
}

// bindLayoutEntries maps the reflected uniform block, textures and
// samplers to group 0 layout entries.
func bindLayoutEntries(linked *shader.Linked) ([]gputypes.BindGroupLayoutEntry, error) {
	var entries []gputypes.BindGroupLayoutEntry
	visibility := gputypes.ShaderStageVertex | gputypes.ShaderStageFragment

	if u := linked.Uniforms; u != nil {
		if u.Group != 0 {
			return nil, &shader.LinkError{Log: fmt.Sprintf("uniform %q is in group %d, only group 0 is supported", u.Name, u.Group)}
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    u.Binding,
			Visibility: visibility,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		})
	}
	for _, t := range linked.Textures {
		if t.Group != 0 {
			return nil, &shader.LinkError{Log: fmt.Sprintf("texture %q is in group %d, only group 0 is supported", t.Name, t.Group)}
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    t.Binding,
			Visibility: visibility,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	}
	for _, s := range linked.Samplers {
		if s.Group != 0 {
			return nil, &shader.LinkError{Log: fmt.Sprintf("sampler %q is in group %d, only group 0 is supported", s.Name, s.Group)}
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    s.Binding,
			Visibility: visibility,
			Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
		})
	}
	return entries, nil
}

func (d *HALDevice) ownShader(s render.Shader) (*halShader, error) {
	hs, ok := s.(*halShader)
	if !ok || hs.dev != d {
		return nil, errForeignHandle
	}
	if hs.deleted {
		return nil, errDeletedHandle
	}
	return hs, nil
}

// DeleteProgram releases p.
func (d *HALDevice) DeleteProgram(p render.Program) {
	hp, ok := p.(*halProgram)
	if !ok || hp.dev != d || hp.deleted {
		return
	}
	hp.deleted = true
	d.destroyProgram(hp)
	d.live.Programs--
}

func (d *HALDevice) destroyProgram(p *halProgram) {
	if d.destroyed {
		return
	}
	if p.pipeline != nil {
		d.device.DestroyRenderPipeline(p.pipeline)
	}
	if p.uniforms != nil {
		d.device.DestroyBuffer(p.uniforms)
	}
	if p.pipeLayout != nil {
		d.device.DestroyPipelineLayout(p.pipeLayout)
	}
	if p.bindLayout != nil {
		d.device.DestroyBindGroupLayout(p.bindLayout)
	}
}

type halTexture struct {
	dev     *HALDevice
	w, h    int
	tex     hal.Texture
	view    hal.TextureView
	deleted bool
}

func (t *halTexture) Width() int  { return t.w }
func (t *halTexture) Height() int { return t.h }

// CreateTexture uploads img as an RGBA8 texture, first row at v = 0.
func (d *HALDevice) CreateTexture(img *image.NRGBA) (render.Texture, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if img == nil || img.Rect.Empty() {
		return nil, errors.New("gpu: empty texture image")
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		src := img.Pix[img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y):]
		copy(pix[y*w*4:(y+1)*w*4], src[:w*4])
	}
	t, err := d.uploadTexture("emote_image", w, h, pix)
	if err != nil {
		return nil, err
	}
	d.live.Textures++
	return t, nil
}

func (d *HALDevice) uploadTexture(label string, w, h int, pix []byte) (*halTexture, error) {
	size := hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1} //nolint:gosec // image sizes fit uint32
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, d.fail("create texture", err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, d.fail("create texture view", err)
	}
	err = d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, Aspect: gputypes.TextureAspectAll},
		pix,
		&hal.ImageDataLayout{BytesPerRow: uint32(w * 4), RowsPerImage: uint32(h)}, //nolint:gosec // image sizes fit uint32
		&size,
	)
	if err != nil {
		d.device.DestroyTextureView(view)
		d.device.DestroyTexture(tex)
		return nil, d.fail("upload texture", err)
	}
	return &halTexture{dev: d, w: w, h: h, tex: tex, view: view}, nil
}

// DeleteTexture releases t.
func (d *HALDevice) DeleteTexture(t render.Texture) {
	ht, ok := t.(*halTexture)
	if !ok || ht.dev != d || ht.deleted || ht == d.blank {
		return
	}
	d.destroyTexture(ht)
	d.live.Textures--
}

func (d *HALDevice) destroyTexture(t *halTexture) {
	t.deleted = true
	if d.destroyed {
		return
	}
	d.device.DestroyTextureView(t.view)
	d.device.DestroyTexture(t.tex)
}

// blankTexture returns the 1x1 opaque black texture bound by draws
// without an image.
func (d *HALDevice) blankTexture() (*halTexture, error) {
	if d.blank != nil {
		return d.blank, nil
	}
	t, err := d.uploadTexture("emote_blank", 1, 1, []byte{0, 0, 0, 255})
	if err != nil {
		return nil, err
	}
	d.blank = t
	return t, nil
}

type halMesh struct {
	dev     *HALDevice
	buf     hal.Buffer
	count   int
	deleted bool
}

func (m *halMesh) VertexCount() int { return m.count }

// CreateMesh uploads interleaved (x, y) positions into a vertex buffer.
func (d *HALDevice) CreateMesh(vertices []float32) (render.Mesh, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if len(vertices) == 0 || len(vertices)%2 != 0 {
		return nil, fmt.Errorf("gpu: mesh needs (x, y) pairs, got %d floats", len(vertices))
	}
	data := make([]byte, len(vertices)*4)
	for i, v := range vertices {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "emote_mesh",
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, d.fail("create vertex buffer", err)
	}
	if err := d.queue.WriteBuffer(buf, 0, data); err != nil {
		d.device.DestroyBuffer(buf)
		return nil, d.fail("upload vertex buffer", err)
	}
	d.live.Meshes++
	return &halMesh{dev: d, buf: buf, count: len(vertices) / 2}, nil
}

// DeleteMesh releases m.
func (d *HALDevice) DeleteMesh(m render.Mesh) {
	hm, ok := m.(*halMesh)
	if !ok || hm.dev != d || hm.deleted {
		return
	}
	hm.deleted = true
	if !d.destroyed {
		d.device.DestroyBuffer(hm.buf)
	}
	d.live.Meshes--
}

// Target is a HAL color target. View exposes it to hosts that composite
// the preview surface themselves.
type Target struct {
	dev      *HALDevice
	w, h     int
	tex      hal.Texture
	view     hal.TextureView
	staging  hal.Buffer
	rowPitch uint32
	deleted  bool
}

// Width returns the target width in pixels.
func (t *Target) Width() int { return t.w }

// Height returns the target height in pixels.
func (t *Target) Height() int { return t.h }

// Format returns RGBA8Unorm.
func (t *Target) Format() gputypes.TextureFormat { return gputypes.TextureFormatRGBA8Unorm }

// Pixels returns nil: HAL targets live in GPU memory.
func (t *Target) Pixels() []byte { return nil }

// View returns the texture view of the target.
func (t *Target) View() hal.TextureView { return t.view }

// CreateTarget allocates a color target and its readback buffer.
func (d *HALDevice) CreateTarget(width, height int) (render.Target, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("gpu: invalid target size %dx%d", width, height)
	}
	w, h := uint32(width), uint32(height) //nolint:gosec // checked positive above
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "emote_target",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage: gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc |
			gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, d.fail("create target texture", err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "emote_target_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, d.fail("create target view", err)
	}

	rowPitch := alignUp(w*4, copyRowAlignment)
	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "emote_readback",
		Size:  uint64(rowPitch) * uint64(h),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		d.device.DestroyTextureView(view)
		d.device.DestroyTexture(tex)
		return nil, d.fail("create readback buffer", err)
	}
	d.live.Targets++
	return &Target{dev: d, w: width, h: height, tex: tex, view: view, staging: staging, rowPitch: rowPitch}, nil
}

// DeleteTarget releases t.
func (d *HALDevice) DeleteTarget(t render.Target) {
	ht, ok := t.(*Target)
	if !ok || ht.dev != d || ht.deleted {
		return
	}
	ht.deleted = true
	if !d.destroyed {
		d.device.DestroyBuffer(ht.staging)
		d.device.DestroyTextureView(ht.view)
		d.device.DestroyTexture(ht.tex)
	}
	d.live.Targets--
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) / align * align
}

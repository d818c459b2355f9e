// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/emote/kernel"
	"github.com/gogpu/emote/shader"
)

var (
	errDestroyed     = errors.New("render: device destroyed")
	errForeignHandle = errors.New("render: handle belongs to another device")
	errDeletedHandle = errors.New("render: handle already deleted")
)

// DeviceStats counts live objects on a device.
type DeviceStats struct {
	Shaders  int
	Programs int
	Textures int
	Meshes   int
	Targets  int
}

// SoftwareDevice rasterizes on the CPU.
//
// Triangles are sampled at pixel centers with a consistent tie-break on
// shared edges, texture lookups are nearest with clamp to edge, and
// fragments are blended with (SRC_ALPHA, ONE_MINUS_SRC_ALPHA) on all four
// channels. The result is bit-for-bit reproducible.
type SoftwareDevice struct {
	lost      atomic.Bool
	destroyed bool
	live      DeviceStats
}

// NewSoftwareDevice creates a software device.
func NewSoftwareDevice() *SoftwareDevice {
	return &SoftwareDevice{}
}

// Name returns "software".
func (d *SoftwareDevice) Name() string { return "software" }

// LoseContext simulates a lost GPU context: every later call fails with
// ErrDeviceLost. It may be called from any goroutine.
func (d *SoftwareDevice) LoseContext() { d.lost.Store(true) }

// Stats returns the number of live objects.
func (d *SoftwareDevice) Stats() DeviceStats { return d.live }

func (d *SoftwareDevice) check() error {
	switch {
	case d.destroyed:
		return errDestroyed
	case d.lost.Load():
		return ErrDeviceLost
	}
	return nil
}

type softShader struct {
	dev      *SoftwareDevice
	module   *shader.Module
	vertex   kernel.VertexFunc
	fragment kernel.FragmentFunc
	deleted  bool
}

func (s *softShader) Module() *shader.Module { return s.module }

// CompileShader resolves the kernel registered for the module's entry point.
func (d *SoftwareDevice) CompileShader(m *shader.Module) (Shader, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("render: nil shader module")
	}

	s := &softShader{dev: d, module: m}
	var ok bool
	switch m.Stage {
	case shader.StageVertex:
		s.vertex, ok = kernel.Vertex(m.EntryPoint)
	case shader.StageFragment:
		s.fragment, ok = kernel.Fragment(m.EntryPoint)
	}
	if !ok {
		return nil, &shader.CompileError{
			Stage: m.Stage,
			Log:   fmt.Sprintf("software backend: no kernel for entry point %s", m.EntryPoint),
		}
	}
	d.live.Shaders++
	return s, nil
}

type softProgram struct {
	dev      *SoftwareDevice
	linked   *shader.Linked
	vertex   kernel.VertexFunc
	fragment kernel.FragmentFunc
	deleted  bool
}

func (p *softProgram) Linked() *shader.Linked { return p.linked }

func (p *softProgram) UniformLocation(name string) (UniformLocation, bool) {
	return LocateUniform(p.linked.Uniforms, name)
}

// LinkProgram pairs the vertex and fragment kernels.
func (d *SoftwareDevice) LinkProgram(vs, fs Shader, linked *shader.Linked) (Program, error) {
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
	if v.vertex == nil || f.fragment == nil {
		return nil, &shader.LinkError{Log: "software backend: stage kernels do not form a program"}
	}
	d.live.Programs++
	return &softProgram{dev: d, linked: linked, vertex: v.vertex, fragment: f.fragment}, nil
}

func (d *SoftwareDevice) ownShader(s Shader) (*softShader, error) {
	ss, ok := s.(*softShader)
	if !ok || ss.dev != d {
		return nil, errForeignHandle
	}
	if ss.deleted {
		return nil, errDeletedHandle
	}
	return ss, nil
}

// DeleteShader releases s.
func (d *SoftwareDevice) DeleteShader(s Shader) {
	if ss, ok := s.(*softShader); ok && ss.dev == d && !ss.deleted {
		ss.deleted = true
		d.live.Shaders--
	}
}

// DeleteProgram releases p.
func (d *SoftwareDevice) DeleteProgram(p Program) {
	if sp, ok := p.(*softProgram); ok && sp.dev == d && !sp.deleted {
		sp.deleted = true
		d.live.Programs--
	}
}

type softTexture struct {
	dev     *SoftwareDevice
	w, h    int
	pix     []byte // NRGBA, top row first
	deleted bool
}

func (t *softTexture) Width() int  { return t.w }
func (t *softTexture) Height() int { return t.h }

// Sample performs a nearest, clamp-to-edge lookup.
func (t *softTexture) Sample(uv kernel.Vec2) kernel.Vec4 {
	x := clampInt(int(math.Floor(float64(uv.X)*float64(t.w))), 0, t.w-1)
	y := clampInt(int(math.Floor(float64(uv.Y)*float64(t.h))), 0, t.h-1)
	i := (y*t.w + x) * 4
	return kernel.Vec4{
		X: float32(t.pix[i]) / 255,
		Y: float32(t.pix[i+1]) / 255,
		Z: float32(t.pix[i+2]) / 255,
		W: float32(t.pix[i+3]) / 255,
	}
}

// unboundTexture samples opaque black, like an incomplete GL texture.
type unboundTexture struct{}

func (unboundTexture) Sample(kernel.Vec2) kernel.Vec4 { return kernel.V4(0, 0, 0, 1) }

// CreateTexture copies img into a new texture.
func (d *SoftwareDevice) CreateTexture(img *image.NRGBA) (Texture, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if img == nil || img.Rect.Empty() {
		return nil, errors.New("render: empty texture image")
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		src := img.Pix[img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y):]
		copy(pix[y*w*4:(y+1)*w*4], src[:w*4])
	}
	d.live.Textures++
	return &softTexture{dev: d, w: w, h: h, pix: pix}, nil
}

// DeleteTexture releases t.
func (d *SoftwareDevice) DeleteTexture(t Texture) {
	if st, ok := t.(*softTexture); ok && st.dev == d && !st.deleted {
		st.deleted = true
		st.pix = nil
		d.live.Textures--
	}
}

type softMesh struct {
	dev     *SoftwareDevice
	verts   []kernel.Vec2
	deleted bool
}

func (m *softMesh) VertexCount() int { return len(m.verts) }

// CreateMesh uploads interleaved (x, y) positions.
func (d *SoftwareDevice) CreateMesh(vertices []float32) (Mesh, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if len(vertices) == 0 || len(vertices)%2 != 0 {
		return nil, fmt.Errorf("render: mesh needs (x, y) pairs, got %d floats", len(vertices))
	}
	verts := make([]kernel.Vec2, len(vertices)/2)
	for i := range verts {
		verts[i] = kernel.V2(vertices[2*i], vertices[2*i+1])
	}
	d.live.Meshes++
	return &softMesh{dev: d, verts: verts}, nil
}

// DeleteMesh releases m.
func (d *SoftwareDevice) DeleteMesh(m Mesh) {
	if sm, ok := m.(*softMesh); ok && sm.dev == d && !sm.deleted {
		sm.deleted = true
		d.live.Meshes--
	}
}

type softTarget struct {
	dev     *SoftwareDevice
	w, h    int
	pix     []byte // RGBA8, bottom row first
	deleted bool
}

func (t *softTarget) Width() int                     { return t.w }
func (t *softTarget) Height() int                    { return t.h }
func (t *softTarget) Format() gputypes.TextureFormat { return gputypes.TextureFormatRGBA8Unorm }
func (t *softTarget) Pixels() []byte                 { return t.pix }

// CreateTarget allocates a width x height color target.
func (d *SoftwareDevice) CreateTarget(width, height int) (Target, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("render: invalid target size %dx%d", width, height)
	}
	d.live.Targets++
	return &softTarget{dev: d, w: width, h: height, pix: make([]byte, width*height*4)}, nil
}

// DeleteTarget releases t.
func (d *SoftwareDevice) DeleteTarget(t Target) {
	if st, ok := t.(*softTarget); ok && st.dev == d && !st.deleted {
		st.deleted = true
		d.live.Targets--
	}
}

// Draw clears the target and rasterizes the mesh as a triangle list.
func (d *SoftwareDevice) Draw(call DrawCall) error {
	if err := d.check(); err != nil {
		return err
	}
	prog, ok := call.Program.(*softProgram)
	if !ok || prog.dev != d {
		return errForeignHandle
	}
	mesh, ok := call.Mesh.(*softMesh)
	if !ok || mesh.dev != d {
		return errForeignHandle
	}
	target, ok := call.Target.(*softTarget)
	if !ok || target.dev != d {
		return errForeignHandle
	}
	if prog.deleted || mesh.deleted || target.deleted {
		return errDeletedHandle
	}

	var tex kernel.Sampler = unboundTexture{}
	if call.Texture != nil {
		st, ok := call.Texture.(*softTexture)
		if !ok || st.dev != d {
			return errForeignHandle
		}
		if st.deleted {
			return errDeletedHandle
		}
		tex = st
	}

	u := prog.uniforms(call.Uniforms)
	clearTarget(target, call.Clear)

	for i := 0; i+2 < len(mesh.verts); i += 3 {
		var tri [3]kernel.VertexOutput
		for k := range tri {
			tri[k] = prog.vertex(u, mesh.verts[i+k])
		}
		rasterize(target, tri, func(in kernel.VertexOutput) kernel.Vec4 {
			return prog.fragment(u, in, tex)
		})
	}
	return nil
}

func (p *softProgram) uniforms(data UniformData) kernel.Uniforms {
	var u kernel.Uniforms
	if loc, ok := p.UniformLocation("time"); ok {
		u.Time = data.Float(loc)
	}
	if loc, ok := p.UniformLocation("resolution"); ok {
		u.Resolution.X, u.Resolution.Y = data.Vec2(loc)
	}
	return u
}

// ReadPixels copies the target into dst, bottom row first.
func (d *SoftwareDevice) ReadPixels(t Target, dst []byte) error {
	if err := d.check(); err != nil {
		return err
	}
	st, ok := t.(*softTarget)
	if !ok || st.dev != d {
		return errForeignHandle
	}
	if st.deleted {
		return errDeletedHandle
	}
	if len(dst) < len(st.pix) {
		return fmt.Errorf("render: readback buffer holds %d bytes, need %d", len(dst), len(st.pix))
	}
	copy(dst, st.pix)
	return nil
}

// Destroy releases the device. Later calls fail.
func (d *SoftwareDevice) Destroy() {
	d.destroyed = true
	d.live = DeviceStats{}
}

func clearTarget(t *softTarget, c gputypes.Color) {
	px := [4]byte{unorm8(c.R), unorm8(c.G), unorm8(c.B), unorm8(c.A)}
	for i := 0; i < len(t.pix); i += 4 {
		copy(t.pix[i:i+4], px[:])
	}
}

type screenVertex struct {
	x, y float64
	out  kernel.VertexOutput
}

// rasterize fills the pixels whose centers lie inside the triangle.
// Target row 0 is the bottom row, so window coordinates grow upward like
// clip space.
func rasterize(t *softTarget, tri [3]kernel.VertexOutput, shade func(kernel.VertexOutput) kernel.Vec4) {
	var v [3]screenVertex
	for i, o := range tri {
		w := float64(o.Position.W)
		if w == 0 {
			return
		}
		v[i] = screenVertex{
			x:   (float64(o.Position.X)/w + 1) * 0.5 * float64(t.w),
			y:   (float64(o.Position.Y)/w + 1) * 0.5 * float64(t.h),
			out: o,
		}
	}

	area := edge(v[0], v[1], v[2].x, v[2].y)
	if area == 0 {
		return
	}
	if area < 0 {
		v[1], v[2] = v[2], v[1]
		area = -area
	}

	minX := clampInt(int(math.Floor(min(v[0].x, v[1].x, v[2].x))), 0, t.w-1)
	maxX := clampInt(int(math.Ceil(max(v[0].x, v[1].x, v[2].x))), 0, t.w-1)
	minY := clampInt(int(math.Floor(min(v[0].y, v[1].y, v[2].y))), 0, t.h-1)
	maxY := clampInt(int(math.Ceil(max(v[0].y, v[1].y, v[2].y))), 0, t.h-1)

	for row := minY; row <= maxY; row++ {
		py := float64(row) + 0.5
		for col := minX; col <= maxX; col++ {
			px := float64(col) + 0.5
			w0 := edge(v[1], v[2], px, py)
			w1 := edge(v[2], v[0], px, py)
			w2 := edge(v[0], v[1], px, py)
			if !covers(w0, v[1], v[2]) || !covers(w1, v[2], v[0]) || !covers(w2, v[0], v[1]) {
				continue
			}
			l0, l1, l2 := float32(w0/area), float32(w1/area), float32(w2/area)
			in := kernel.VertexOutput{
				Position: kernel.V4(float32(px), float32(py), 0, 1),
				UV: kernel.V2(
					v[0].out.UV.X*l0+v[1].out.UV.X*l1+v[2].out.UV.X*l2,
					v[0].out.UV.Y*l0+v[1].out.UV.Y*l1+v[2].out.UV.Y*l2,
				),
			}
			blend(t.pix[(row*t.w+col)*4:], shade(in))
		}
	}
}

// edge is twice the signed area of (a, b, p); positive when p lies to the
// left of a->b.
func edge(a, b screenVertex, px, py float64) float64 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

// covers applies the edge test. Samples exactly on an edge belong to only
// one of the two triangles sharing it.
func covers(w float64, a, b screenVertex) bool {
	if w > 0 {
		return true
	}
	if w < 0 {
		return false
	}
	dx, dy := b.x-a.x, b.y-a.y
	return dy < 0 || (dy == 0 && dx > 0)
}

// blend applies (SRC_ALPHA, ONE_MINUS_SRC_ALPHA) to one RGBA8 pixel.
func blend(dst []byte, src kernel.Vec4) {
	a := kernel.Clamp(src.W, 0, 1)
	s := [4]float32{src.X, src.Y, src.Z, src.W}
	for i := range 4 {
		sc := kernel.Clamp(s[i], 0, 1)
		dc := float32(dst[i]) / 255
		dst[i] = unorm8(float64(sc*a + dc*(1-a)))
	}
}

func unorm8(v float64) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(math.Round(v * 255))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var _ Device = (*SoftwareDevice)(nil)

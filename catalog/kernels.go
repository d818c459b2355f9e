// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package catalog

import (
	"math"

	"github.com/gogpu/emote/kernel"
)

// CPU twins of the entry points in shaders/. Each one follows its WGSL
// line by line in float32 so the software device renders what a GPU does.

func init() {
	kernel.RegisterVertex("hop_vertex", hopVertex(0.85, true))
	kernel.RegisterVertex("hopper_vertex", hopVertex(0.85/2.0, true))
	kernel.RegisterVertex("overheat_vertex", hopVertex(0.85/8.0, true))
	kernel.RegisterVertex("slide_vertex", hopVertex(0.85, false))
	kernel.RegisterVertex("quad_vertex", kernel.Passthrough)
	kernel.RegisterVertex("bounce_vertex", bounceVertex)
	kernel.RegisterVertex("circle_vertex", circleVertex)
	kernel.RegisterVertex("laughing_vertex", laughingVertex)
	kernel.RegisterVertex("blob_vertex", blobVertex)
	kernel.RegisterVertex("hard_vertex", hardVertex)
	kernel.RegisterVertex("peek_vertex", peekVertex)

	kernel.RegisterFragment("emote_fragment", emoteFragment)
	kernel.RegisterFragment("overheat_fragment", overheatFragment)
	kernel.RegisterFragment("go_fragment", goFragment)
	kernel.RegisterFragment("elevator_fragment", elevatorFragment)
	kernel.RegisterFragment("rain_fragment", rainFragment)
	kernel.RegisterFragment("pride_fragment", prideFragment)
}

func slidingFromLeftToRight(t, interval float32) float32 {
	return (kernel.Mod(t, interval) - interval*0.5) / (interval * 0.5)
}

func flippingDirections(t, interval float32) float32 {
	return 1 - 2*kernel.Mod(kernel.Floor(t/interval), 2)
}

// hopVertex builds the walking family. With bounce false the image slides
// along the floor without hopping.
func hopVertex(xInterval float32, bounce bool) kernel.VertexFunc {
	const (
		scale  = 0.40
		hops   = 2.0
		height = 0.5
	)
	return func(u kernel.Uniforms, p kernel.Vec2) kernel.VertexOutput {
		t := u.Time
		yInterval := xInterval / (2 * hops)
		flip := flippingDirections(t, xInterval)
		offset := kernel.V2(slidingFromLeftToRight(t, xInterval)*flip*(1-scale), -height)
		if bounce {
			offset.Y = (slidingFromLeftToRight(t, yInterval)*flippingDirections(t, yInterval)+1)/4 - height
		}
		uv := kernel.QuadUV(p)
		return kernel.VertexOutput{
			Position: kernel.V4(p.X*scale+offset.X, p.Y*scale+offset.Y, 0, 1),
			UV:       kernel.V2((flip+1)/2-uv.X*flip, uv.Y),
		}
	}
}

func bounceVertex(u kernel.Uniforms, p kernel.Vec2) kernel.VertexOutput {
	const scale, period = 0.30, 5.0
	y := (2*kernel.Abs(kernel.Sin(u.Time*period)) - 1) * (1 - scale)
	return kernel.VertexOutput{
		Position: kernel.V4(p.X*scale, p.Y*scale+y, 0, 1),
		UV:       kernel.QuadUV(p),
	}
}

func circleVertex(u kernel.Uniforms, p kernel.Vec2) kernel.VertexOutput {
	const scale, period = 0.30, 8.0
	outer := kernel.V2(kernel.Cos(period*u.Time), kernel.Sin(period*u.Time)).Scale(1 - scale)
	inner := kernel.Rotate(p.Scale(scale), -period*u.Time+math.Pi/2)
	pos := inner.Add(outer)
	return kernel.VertexOutput{
		Position: kernel.V4(pos.X, pos.Y, 0, 1),
		UV:       kernel.QuadUV(p),
	}
}

func laughingVertex(u kernel.Uniforms, p kernel.Vec2) kernel.VertexOutput {
	const a = 0.3
	t := (kernel.Sin(24*u.Time)*a + a) / 2
	return kernel.VertexOutput{
		Position: kernel.V4(p.X, p.Y-t, 0, 1),
		UV:       kernel.QuadUV(p),
	}
}

func blobVertex(u kernel.Uniforms, p kernel.Vec2) kernel.VertexOutput {
	stretch := kernel.Sin(6*u.Time)*0.5 + 1
	return kernel.VertexOutput{
		Position: kernel.V4(p.X*stretch, p.Y*(2-stretch)+(1-stretch), 0, 1),
		UV:       kernel.QuadUV(p),
	}
}

func hardVertex(u kernel.Uniforms, p kernel.Vec2) kernel.VertexOutput {
	const zoom, intensity, amplitude = 1.4, 32.0, 1.0 / 8.0
	shake := kernel.V2(kernel.Cos(intensity*u.Time), kernel.Sin(intensity*u.Time)).Scale(amplitude)
	return kernel.VertexOutput{
		Position: kernel.V4(p.X*zoom+shake.X, p.Y*zoom+shake.Y, 0, 1),
		UV:       kernel.QuadUV(p),
	}
}

func peekVertex(u kernel.Uniforms, p kernel.Vec2) kernel.VertexOutput {
	tc := kernel.Mod(u.Time*2, 4*3.14)

	s1 := kernel.Select(0, 1, tc < 2*3.14)
	s2 := 1 - s1
	hold1 := kernel.Select(0, 1, tc > 0.5*3.14 && tc < 2*3.14)
	hold2 := 1 - kernel.Select(0, 1, tc > 2.5*3.14 && tc < 4*3.14)

	cycle1 := 1 - (s1*kernel.Sin(tc)*(1-hold1) + hold1)
	cycle2 := s2 * hold2 * (kernel.Sin(tc) - 1)
	return kernel.VertexOutput{
		Position: kernel.V4(p.X+1+cycle1+cycle2, p.Y, 0, 1),
		UV:       kernel.QuadUV(p),
	}
}

func emoteFragment(_ kernel.Uniforms, in kernel.VertexOutput, tex kernel.Sampler) kernel.Vec4 {
	return kernel.SampleFlipped(tex, in.UV)
}

func overheatFragment(_ kernel.Uniforms, in kernel.VertexOutput, tex kernel.Sampler) kernel.Vec4 {
	return kernel.SampleFlipped(tex, in.UV).Mul(kernel.V4(1, 0, 0, 1))
}

func slide(t, speed, v float32) float32 {
	return kernel.Mod(v-speed*t, 1)
}

func goFragment(u kernel.Uniforms, in kernel.VertexOutput, tex kernel.Sampler) kernel.Vec4 {
	return kernel.SampleFlipped(tex, kernel.V2(slide(u.Time, 4, in.UV.X), in.UV.Y))
}

func elevatorFragment(u kernel.Uniforms, in kernel.VertexOutput, tex kernel.Sampler) kernel.Vec4 {
	return kernel.SampleFlipped(tex, kernel.V2(in.UV.X, 1-slide(u.Time, 4, 1-in.UV.Y)))
}

func rainFragment(u kernel.Uniforms, in kernel.VertexOutput, tex kernel.Sampler) kernel.Vec4 {
	x := kernel.Mod(4*slide(u.Time, 1, in.UV.X), 1)
	y := kernel.Mod(4*slide(u.Time, 1, 1-in.UV.Y), 1)
	return kernel.SampleFlipped(tex, kernel.V2(x, 1-y))
}

func hslToRGB(h, s, l float32) (r, g, b float32) {
	channel := func(k float32) float32 {
		return kernel.Clamp(kernel.Abs(kernel.Mod(h*6+k, 6)-3)-1, 0, 1)
	}
	chroma := s * (1 - kernel.Abs(2*l-1))
	r = l + (channel(0)-0.5)*chroma
	g = l + (channel(4)-0.5)*chroma
	b = l + (channel(2)-0.5)*chroma
	return r, g, b
}

func prideFragment(u kernel.Uniforms, in kernel.VertexOutput, tex kernel.Sampler) kernel.Vec4 {
	px := kernel.SampleFlipped(tex, in.UV)
	base := kernel.V4(kernel.Mix(1, px.X, px.W), kernel.Mix(1, px.Y, px.W), kernel.Mix(1, px.Z, px.W), 1)
	r, g, b := hslToRGB((u.Time-in.UV.X-in.UV.Y)*0.5, 1, 0.80)
	return base.Mul(kernel.V4(r, g, b, 1))
}

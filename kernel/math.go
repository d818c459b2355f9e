// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kernel

import "math"

// Vec2 mirrors vec2<f32>.
type Vec2 struct{ X, Y float32 }

// Vec4 mirrors vec4<f32>. Colors use X,Y,Z,W as R,G,B,A.
type Vec4 struct{ X, Y, Z, W float32 }

// V2 constructs a Vec2.
func V2(x, y float32) Vec2 { return Vec2{x, y} }

// V4 constructs a Vec4.
func V4(x, y, z, w float32) Vec4 { return Vec4{x, y, z, w} }

func (a Vec2) Add(b Vec2) Vec2 { return Vec2{a.X + b.X, a.Y + b.Y} }
func (a Vec2) Sub(b Vec2) Vec2 { return Vec2{a.X - b.X, a.Y - b.Y} }
func (a Vec2) Mul(b Vec2) Vec2 { return Vec2{a.X * b.X, a.Y * b.Y} }
func (a Vec2) Scale(s float32) Vec2 { return Vec2{a.X * s, a.Y * s} }
func (a Vec4) Mul(b Vec4) Vec4 { return Vec4{a.X * b.X, a.Y * b.Y, a.Z * b.Z, a.W * b.W} }
func (a Vec4) Scale(s float32) Vec4 { return Vec4{a.X * s, a.Y * s, a.Z * s, a.W * s} }
func (a Vec2) Lerp(b Vec2, t float32) Vec2 {
	return Vec2{Mix(a.X, b.X, t), Mix(a.Y, b.Y, t)}
}

// Rotate multiplies v by the column-major mat2x2(c, -s, s, c).
func Rotate(v Vec2, angle float32) Vec2 {
	s, c := Sin(angle), Cos(angle)
	return Vec2{c*v.X + s*v.Y, -s*v.X + c*v.Y}
}

// Mod is GLSL mod: x - y*floor(x/y). The result has the sign of y.
func Mod(x, y float32) float32 {
	return x - y*Floor(x/y)
}

// Fract returns x - floor(x).
func Fract(x float32) float32 { return x - Floor(x) }

// Mix linearly interpolates between a and b.
func Mix(a, b, t float32) float32 { return a*(1-t) + b*t }

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float32) float32 {
	return min(max(x, lo), hi)
}

// Step returns 0 when x < edge and 1 otherwise.
func Step(edge, x float32) float32 {
	if x < edge {
		return 0
	}
	return 1
}

// Select returns t when cond is true and f otherwise, like WGSL select(f, t, cond).
func Select(f, t float32, cond bool) float32 {
	if cond {
		return t
	}
	return f
}

func Floor(x float32) float32 { return float32(math.Floor(float64(x))) }
func Abs(x float32) float32 { return float32(math.Abs(float64(x))) }
func Sin(x float32) float32 { return float32(math.Sin(float64(x))) }
func Cos(x float32) float32 { return float32(math.Cos(float64(x))) }

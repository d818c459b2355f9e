// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kernel

import (
	"fmt"
	"sort"
	"sync"
)

// Uniforms mirrors the WGSL Uniforms block shared by every effect.
type Uniforms struct {
	Time       float32
	Resolution Vec2
}

// VertexOutput mirrors the WGSL VertexOutput struct: the clip-space
// position and the texture coordinate at location 0.
type VertexOutput struct {
	Position Vec4
	UV       Vec2
}

// Sampler samples the bound texture. (0,0) is the first uploaded row.
type Sampler interface {
	Sample(uv Vec2) Vec4
}

// VertexFunc is the CPU form of a @vertex entry point.
type VertexFunc func(u Uniforms, meshPosition Vec2) VertexOutput

// FragmentFunc is the CPU form of a @fragment entry point. in carries the
// interpolated vertex output.
type FragmentFunc func(u Uniforms, in VertexOutput, tex Sampler) Vec4

var (
	mu        sync.RWMutex
	vertices  = map[string]VertexFunc{}
	fragments = map[string]FragmentFunc{}
)

// RegisterVertex registers fn for a @vertex entry point name.
// It panics if the name is already taken.
func RegisterVertex(entryPoint string, fn VertexFunc) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := vertices[entryPoint]; dup {
		panic(fmt.Sprintf("kernel: vertex entry point %q registered twice", entryPoint))
	}
	vertices[entryPoint] = fn
}

// RegisterFragment registers fn for a @fragment entry point name.
// It panics if the name is already taken.
func RegisterFragment(entryPoint string, fn FragmentFunc) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := fragments[entryPoint]; dup {
		panic(fmt.Sprintf("kernel: fragment entry point %q registered twice", entryPoint))
	}
	fragments[entryPoint] = fn
}

// Vertex returns the kernel registered for a @vertex entry point.
func Vertex(entryPoint string) (VertexFunc, bool) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := vertices[entryPoint]
	return fn, ok
}

// Fragment returns the kernel registered for a @fragment entry point.
func Fragment(entryPoint string) (FragmentFunc, bool) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := fragments[entryPoint]
	return fn, ok
}

// EntryPoints lists the registered vertex and fragment entry points, sorted.
func EntryPoints() (vertex, fragment []string) {
	mu.RLock()
	defer mu.RUnlock()
	for name := range vertices {
		vertex = append(vertex, name)
	}
	for name := range fragments {
		fragment = append(fragment, name)
	}
	sort.Strings(vertex)
	sort.Strings(fragment)
	return vertex, fragment
}

// Passthrough is the vertex kernel of full-screen effects: the quad covers
// the target and uv runs from (0,0) at the bottom-left corner to (1,1).
func Passthrough(_ Uniforms, p Vec2) VertexOutput {
	return VertexOutput{
		Position: Vec4{p.X, p.Y, 0, 1},
		UV:       QuadUV(p),
	}
}

// QuadUV maps a mesh corner in [-1,1]² to [0,1]².
func QuadUV(p Vec2) Vec2 {
	return Vec2{(p.X + 1) / 2, (p.Y + 1) / 2}
}

// SampleFlipped samples tex with the vertical axis flipped, so uv.y = 1
// reads the top row of the image, and snaps alpha to 0 or 1.
func SampleFlipped(tex Sampler, uv Vec2) Vec4 {
	c := tex.Sample(Vec2{uv.X, 1 - uv.Y})
	c.W = Floor(c.W + 0.5)
	return c
}

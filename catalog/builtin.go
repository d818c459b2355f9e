// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package catalog

import (
	_ "embed" // shader sources
	"image/color"
	"math"
	"sync"
)

//go:embed shaders/prelude.wgsl
var shaderPrelude string

//go:embed shaders/sample.wgsl
var shaderSample string

// Vertex stages.

//go:embed shaders/hop.wgsl
var shaderHop string

//go:embed shaders/hopper.wgsl
var shaderHopper string

//go:embed shaders/overheat.wgsl
var shaderOverheat string

//go:embed shaders/slide.wgsl
var shaderSlide string

//go:embed shaders/bounce.wgsl
var shaderBounce string

//go:embed shaders/circle.wgsl
var shaderCircle string

//go:embed shaders/laughing.wgsl
var shaderLaughing string

//go:embed shaders/blob.wgsl
var shaderBlob string

//go:embed shaders/hard.wgsl
var shaderHard string

//go:embed shaders/peek.wgsl
var shaderPeek string

//go:embed shaders/quad.wgsl
var shaderQuad string

// Fragment stages.

//go:embed shaders/emote.wgsl
var shaderEmote string

//go:embed shaders/overheat_fragment.wgsl
var shaderOverheatFragment string

//go:embed shaders/go.wgsl
var shaderGo string

//go:embed shaders/elevator.wgsl
var shaderElevator string

//go:embed shaders/rain.wgsl
var shaderRain string

//go:embed shaders/pride.wgsl
var shaderPride string

// GreenScreen is the transparency key of the built-in effects.
var GreenScreen = color.RGBA{G: 0xff, A: 0xff}

// VertexSource prepends the shared bindings to a vertex stage body.
func VertexSource(body string) string {
	return shaderPrelude + "\n" + body
}

// FragmentSource prepends the shared bindings and the sample_emote helper
// to a fragment stage body.
func FragmentSource(body string) string {
	return shaderPrelude + "\n" + shaderSample + "\n" + body
}

func builtin(name string, duration float64, vertex, fragment string, keyed bool) Effect {
	e := Effect{
		Name:           name,
		VertexSource:   VertexSource(vertex),
		FragmentSource: FragmentSource(fragment),
		Duration:       duration,
	}
	if keyed {
		key := GreenScreen
		e.Transparent = &key
	}
	return e
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := New(
		builtin("Hop", 0.85*2, shaderHop, shaderEmote, true),
		builtin("Hopper", 0.85, shaderHopper, shaderEmote, true),
		builtin("Overheat", 0.85/8*2, shaderOverheat, shaderOverheatFragment, true),
		builtin("Bounce", math.Pi/5, shaderBounce, shaderEmote, true),
		builtin("Circle", math.Pi/4, shaderCircle, shaderEmote, true),
		builtin("Slide", 0.85*2, shaderSlide, shaderEmote, true),
		builtin("Laughing", math.Pi/12, shaderLaughing, shaderEmote, true),
		builtin("Blob", math.Pi/3, shaderBlob, shaderEmote, true),
		builtin("Go", 1.0/4, shaderQuad, shaderGo, true),
		builtin("Elevator", 1.0/4, shaderQuad, shaderElevator, true),
		builtin("Rain", 1, shaderQuad, shaderRain, true),
		builtin("Pride", 2, shaderQuad, shaderPride, false),
		builtin("Hard", 2*math.Pi/32, shaderHard, shaderEmote, true),
		builtin("Peek", 2*math.Pi, shaderPeek, shaderEmote, true),
	)
	if err != nil {
		panic(err)
	}
	return c
})

// Default returns the built-in effects. The catalog is shared and
// immutable.
func Default() *Catalog {
	return defaultCatalog()
}

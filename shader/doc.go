// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shader compiles and links the WGSL programs that drive effects.
//
// Compilation goes through the Pure Go naga compiler (WGSL to SPIR-V), so a
// shader that fails here fails identically on every backend. Alongside the
// SPIR-V, the compiler reflects the parts of the module that the renderer
// binds by name:
//
//   - the entry point of the stage (@vertex or @fragment)
//   - vertex inputs and inter-stage values (@location(n))
//   - the uniform block at @group(0) @binding(0) with member offsets
//   - texture and sampler bindings
//
// Linking pairs a vertex and a fragment module and checks that they agree:
// attribute bindings must match the declared vertex input locations,
// fragment inputs must be produced by the vertex stage, and both stages
// must see the same uniform layout.
//
// # Binding Conventions
//
// Every effect program uses the same layout so the mesh and bind groups can
// be shared:
//
//	@group(0) @binding(0) var<uniform> u: Uniforms;   // time, resolution
//	@group(0) @binding(1) var emote: texture_2d<f32>;
//	@group(0) @binding(2) var emote_sampler: sampler;
//
// The vertex input meshPosition is bound to slot 0 (see DefaultBindings).
package shader

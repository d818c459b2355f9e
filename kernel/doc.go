// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package kernel holds CPU ports of effect shader entry points.
//
// Every WGSL entry point that the software device may execute has a Go
// twin registered here under the same entry point name. The software
// device still compiles the WGSL through naga, so syntax and binding
// errors surface identically on every backend; it then looks up the
// kernel by entry point and runs it per vertex and per fragment.
//
// Kernels use float32 arithmetic and the GLSL-style helpers in this
// package (Mod, Fract, Mix) so their output tracks the GPU closely.
package kernel

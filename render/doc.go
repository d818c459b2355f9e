// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render is the device layer under the effect renderer.
//
// A Device owns every GPU object an effect needs: compiled shader stages,
// linked programs, the source texture, the quad mesh and offscreen render
// targets. The renderer drives it through a small, GL-like surface:
//
//   - CompileShader / LinkProgram turn shader.Module values into a Program
//   - CreateTexture uploads an image (nearest filtering, clamp to edge)
//   - CreateMesh uploads vec2 vertex positions bound to slot 0
//   - Draw clears a target and draws a mesh with source-alpha blending
//   - ReadPixels copies a target back, bottom row first
//
// # Devices
//
//   - SoftwareDevice: deterministic CPU rasterizer. Shaders are compiled
//     through naga like everywhere else, then executed by the Go kernels
//     registered in package kernel under the same entry point names.
//   - internal/gpu.HALDevice: wgpu HAL render pipeline with buffer readback.
//
// Devices are selected by name through the backend registry (Register,
// Open, OpenBest). Host applications that already own a GPU device hand it
// over as a DeviceHandle.
//
// # Thread Safety
//
// Devices are NOT thread-safe. The renderer confines all device calls to a
// single goroutine.
package render

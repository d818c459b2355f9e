// Package gpu implements render.Device on top of the wgpu HAL.
//
// HALDevice compiles each effect into a render pipeline whose bind group
// layout is derived from the reflected WGSL interface: the uniform block,
// the image texture and a nearest, clamp-to-edge sampler. A draw is a
// single render pass that clears the target and draws the quad mesh with
// (SRC_ALPHA, ONE_MINUS_SRC_ALPHA) blending. ReadPixels copies the target
// into a mappable buffer with 256-byte aligned rows and returns the rows
// bottom first, the same layout the software device produces.
//
// Devices are opened by backend variant with Open, or wrap a device owned
// by the host application with FromProvider.
package gpu

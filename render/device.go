// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"image"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/emote/shader"
)

// ErrDeviceLost is returned by every device call once the underlying GPU
// context is gone. Callers detect it with errors.Is.
var ErrDeviceLost = errors.New("render: device lost")

// DeviceHandle provides GPU device access from the host application.
// It is an alias for gpucontext.DeviceProvider.
type DeviceHandle = gpucontext.DeviceProvider

// Shader is a compiled, device-resident shader stage.
type Shader interface {
	Module() *shader.Module
}

// Program is a linked vertex/fragment pair.
type Program interface {
	Linked() *shader.Linked

	// UniformLocation resolves a member of the uniform block by name.
	UniformLocation(name string) (UniformLocation, bool)
}

// Texture is an uploaded RGBA8 image.
type Texture interface {
	Width() int
	Height() int
}

// Mesh is a vertex buffer of vec2 positions.
type Mesh interface {
	VertexCount() int
}

// Target is an offscreen RGBA8 color target.
type Target interface {
	Width() int
	Height() int
	Format() gputypes.TextureFormat

	// Pixels returns the live pixel memory, bottom row first.
	// Returns nil for GPU-only targets.
	Pixels() []byte
}

// DrawCall describes one clear-and-draw pass.
type DrawCall struct {
	Program  Program
	Mesh     Mesh
	Texture  Texture
	Target   Target
	Uniforms UniformData
	Clear    gputypes.Color
}

// Device is the rendering backend.
//
// Delete methods accept nil and handles from a lost context.
type Device interface {
	// Name identifies the backend, e.g. "software" or "vulkan".
	Name() string

	CompileShader(m *shader.Module) (Shader, error)
	LinkProgram(vs, fs Shader, linked *shader.Linked) (Program, error)
	DeleteShader(s Shader)
	DeleteProgram(p Program)

	CreateTexture(img *image.NRGBA) (Texture, error)
	DeleteTexture(t Texture)

	CreateMesh(vertices []float32) (Mesh, error)
	DeleteMesh(m Mesh)

	CreateTarget(width, height int) (Target, error)
	DeleteTarget(t Target)

	// Draw clears call.Target to call.Clear and draws call.Mesh as a
	// triangle list.
	Draw(call DrawCall) error

	// ReadPixels copies the target into dst (width*height*4 bytes),
	// bottom row first.
	ReadPixels(t Target, dst []byte) error

	Destroy()
}

// NullDeviceHandle is a DeviceHandle without a GPU.
// OpenHandle turns it into the software device.
type NullDeviceHandle struct{}

// Device returns nil for the null device.
func (NullDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil for the null device.
func (NullDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil for the null device.
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// SurfaceFormat returns undefined format for the null device.
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// AdapterInfo reports a software adapter.
func (NullDeviceHandle) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "software", Type: gpucontext.AdapterTypeSoftware}
}

var _ DeviceHandle = NullDeviceHandle{}

// HandleOpener wraps a device owned by the host application.
type HandleOpener func(h DeviceHandle) (Device, error)

var (
	handleMu     sync.RWMutex
	handleOpener HandleOpener
)

// ErrNoHandleOpener is returned by OpenHandle for a GPU handle when no
// backend accepting host devices is linked in. Importing
// github.com/gogpu/emote/gpu registers one.
var ErrNoHandleOpener = errors.New("render: no backend accepts host device handles")

// RegisterHandleOpener sets the function OpenHandle uses for GPU handles.
// A nil fn removes it.
func RegisterHandleOpener(fn HandleOpener) {
	handleMu.Lock()
	handleOpener = fn
	handleMu.Unlock()
}

// OpenHandle returns a device for a host handle: the software device for
// a NullDeviceHandle, otherwise a device from the registered opener.
func OpenHandle(h DeviceHandle) (Device, error) {
	switch h.(type) {
	case nil:
		return nil, errors.New("render: nil device handle")
	case NullDeviceHandle, *NullDeviceHandle:
		return NewSoftwareDevice(), nil
	}
	handleMu.RLock()
	open := handleOpener
	handleMu.RUnlock()
	if open == nil {
		return nil, ErrNoHandleOpener
	}
	return open(h)
}

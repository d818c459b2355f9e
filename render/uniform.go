// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/emote/shader"
)

// UniformLocation addresses one member of a program's uniform block.
type UniformLocation struct {
	Offset uint32
	Size   uint32
}

// LocateUniform resolves name in block.
func LocateUniform(block *shader.UniformBlock, name string) (UniformLocation, bool) {
	m, ok := block.Member(name)
	if !ok {
		return UniformLocation{}, false
	}
	return UniformLocation{Offset: m.Offset, Size: m.Size}, true
}

// UniformData is the little-endian contents of a uniform block.
type UniformData []byte

// NewUniformData allocates zeroed storage for block.
func NewUniformData(block *shader.UniformBlock) UniformData {
	if block == nil {
		return nil
	}
	return make(UniformData, block.Size)
}

// SetFloat writes v at loc. Writes outside the block are ignored.
func (u UniformData) SetFloat(loc UniformLocation, v float32) {
	if int(loc.Offset)+4 > len(u) || loc.Size < 4 {
		return
	}
	binary.LittleEndian.PutUint32(u[loc.Offset:], math.Float32bits(v))
}

// SetVec2 writes (x, y) at loc. Writes outside the block are ignored.
func (u UniformData) SetVec2(loc UniformLocation, x, y float32) {
	if int(loc.Offset)+8 > len(u) || loc.Size < 8 {
		return
	}
	binary.LittleEndian.PutUint32(u[loc.Offset:], math.Float32bits(x))
	binary.LittleEndian.PutUint32(u[loc.Offset+4:], math.Float32bits(y))
}

// Float reads the float at loc.
func (u UniformData) Float(loc UniformLocation) float32 {
	if int(loc.Offset)+4 > len(u) {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(u[loc.Offset:]))
}

// Vec2 reads the vec2 at loc.
func (u UniformData) Vec2(loc UniformLocation) (x, y float32) {
	if int(loc.Offset)+8 > len(u) {
		return 0, 0
	}
	x = math.Float32frombits(binary.LittleEndian.Uint32(u[loc.Offset:]))
	y = math.Float32frombits(binary.LittleEndian.Uint32(u[loc.Offset+4:]))
	return x, y
}

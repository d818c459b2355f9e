// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"errors"
	"strings"

	"github.com/gogpu/naga"

	"github.com/gogpu/emote/internal/cache"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// Module is a compiled shader stage: SPIR-V plus its reflected interface.
// Modules are immutable and may be shared between programs.
type Module struct {
	Stage  Stage
	Source string
	SPIRV  []uint32
	Reflection
}

// Compiler compiles WGSL stages through naga and memoizes the results by
// stage and source text. Failed compilations are not cached, so a corrected
// source is picked up on the next call.
//
// Compiler is safe for concurrent use.
type Compiler struct {
	compile Frontend
	modules *cache.ShardedCache[string, *Module]
}

// Frontend translates WGSL source to little-endian SPIR-V bytes.
type Frontend func(source string) ([]byte, error)

// NewCompiler creates a compiler backed by naga.
func NewCompiler() *Compiler {
	return newCompiler(naga.Compile)
}

// NewCompilerWith creates a compiler that translates with frontend instead
// of naga. Reflection and linking are unchanged.
func NewCompilerWith(frontend Frontend) *Compiler {
	return newCompiler(frontend)
}

func newCompiler(compile Frontend) *Compiler {
	return &Compiler{
		compile: compile,
		modules: cache.NewSharded[string, *Module](cache.DefaultCapacity, cache.StringHasher),
	}
}

// Compile compiles source as the given stage.
// Errors are always of type *CompileError.
func (c *Compiler) Compile(source string, stage Stage) (*Module, error) {
	if stage != StageVertex && stage != StageFragment {
		return nil, &CompileError{Stage: stage, Log: "unsupported stage"}
	}
	if strings.TrimSpace(source) == "" {
		return nil, &CompileError{Stage: stage, Log: "empty source"}
	}

	key := stage.String() + "\x00" + source
	if m, ok := c.modules.Get(key); ok {
		return m, nil
	}

	spirvBytes, err := c.compile(source)
	if err != nil {
		return nil, &CompileError{Stage: stage, Log: err.Error()}
	}
	words, err := spirvWords(spirvBytes)
	if err != nil {
		return nil, &CompileError{Stage: stage, Log: err.Error()}
	}

	refl, err := Reflect(source, stage)
	if err != nil {
		return nil, &CompileError{Stage: stage, Log: err.Error()}
	}

	m := &Module{
		Stage:      stage,
		Source:     source,
		SPIRV:      words,
		Reflection: *refl,
	}
	c.modules.Set(key, m)
	return m, nil
}

// CachedModules returns the number of memoized modules.
func (c *Compiler) CachedModules() int {
	return c.modules.Len()
}

// spirvWords converts little-endian SPIR-V bytes to 32-bit words.
func spirvWords(b []byte) ([]uint32, error) {
	if len(b) < 4 || len(b)%4 != 0 {
		return nil, errors.New("naga produced truncated SPIR-V")
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	if words[0] != spirvMagic {
		return nil, errors.New("naga produced output without the SPIR-V magic number")
	}
	return words, nil
}

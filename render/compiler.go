// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"github.com/gogpu/emote/shader"
)

// ProgramCompiler turns WGSL source into device programs.
//
// Language errors come from the shared shader.Compiler, so an effect that
// fails to compile fails the same way on every device.
type ProgramCompiler struct {
	dev  Device
	lang *shader.Compiler
}

// NewProgramCompiler creates a compiler for dev. A nil lang gets a fresh
// naga-backed shader.Compiler.
func NewProgramCompiler(dev Device, lang *shader.Compiler) *ProgramCompiler {
	if lang == nil {
		lang = shader.NewCompiler()
	}
	return &ProgramCompiler{dev: dev, lang: lang}
}

// Compile compiles one stage and creates its device shader.
// Errors are *shader.CompileError or device errors such as ErrDeviceLost.
func (c *ProgramCompiler) Compile(source string, stage shader.Stage) (Shader, error) {
	m, err := c.lang.Compile(source, stage)
	if err != nil {
		return nil, err
	}
	return c.dev.CompileShader(m)
}

// Link links vs and fs under bindings.
//
// On success both shaders are released and only the program remains. On
// failure the error is returned and nothing is released.
func (c *ProgramCompiler) Link(vs, fs Shader, bindings shader.AttributeBindings) (Program, error) {
	linked, err := shader.Link(vs.Module(), fs.Module(), bindings)
	if err != nil {
		return nil, err
	}
	p, err := c.dev.LinkProgram(vs, fs, linked)
	if err != nil {
		return nil, err
	}
	c.dev.DeleteShader(vs)
	c.dev.DeleteShader(fs)
	return p, nil
}

// Build compiles both stages and links them with shader.DefaultBindings.
// Stages left over by a failed build are deleted.
func (c *ProgramCompiler) Build(vertexSource, fragmentSource string) (Program, error) {
	vs, err := c.Compile(vertexSource, shader.StageVertex)
	if err != nil {
		return nil, err
	}
	fs, err := c.Compile(fragmentSource, shader.StageFragment)
	if err != nil {
		c.dev.DeleteShader(vs)
		return nil, err
	}
	p, err := c.Link(vs, fs, shader.DefaultBindings())
	if err != nil {
		c.dev.DeleteShader(vs)
		c.dev.DeleteShader(fs)
		return nil, err
	}
	return p, nil
}

// Device returns the device programs are created on.
func (c *ProgramCompiler) Device() Device {
	return c.dev
}

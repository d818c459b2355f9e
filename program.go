package emote

import (
	"context"
	"fmt"

	"github.com/gogpu/emote/render"
)

// Uniform names every effect may declare.
const (
	uniformTime       = "time"
	uniformResolution = "resolution"
)

// CompiledProgram is an effect linked on a device, with its uniform
// locations resolved. It serves one effect; switching effects releases it
// and builds a new one.
type CompiledProgram struct {
	engine  *Engine
	effect  *Effect
	program render.Program

	// Duration is the effect's loop length in seconds.
	Duration float64

	timeLoc, resolutionLoc render.UniformLocation
	hasTime, hasResolution bool
	uniforms               render.UniformData

	generation uint64
}

func newCompiledProgram(e *Engine, effect *Effect, prog render.Program) *CompiledProgram {
	p := &CompiledProgram{
		engine:     e,
		effect:     effect,
		program:    prog,
		Duration:   effect.Duration,
		uniforms:   render.NewUniformData(prog.Linked().Uniforms),
		generation: e.Generation(),
	}
	p.timeLoc, p.hasTime = prog.UniformLocation(uniformTime)
	p.resolutionLoc, p.hasResolution = prog.UniformLocation(uniformResolution)
	return p
}

// CompileEffect builds effect on the engine's device. Failures are
// *ShaderCompileError, *ShaderLinkError or ErrContextLost.
func (e *Engine) CompileEffect(ctx context.Context, effect *Effect) (*CompiledProgram, error) {
	if err := effect.Validate(); err != nil {
		return nil, err
	}
	var prog *CompiledProgram
	err := e.do(ctx, func() error {
		var err error
		prog, err = e.buildProgram(effect)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("emote: effect %q: %w", effect.Name, err)
	}
	Logger().Debug("emote: effect compiled", "effect", effect.Name)
	return prog, nil
}

// Effect returns the effect the program was built from.
func (p *CompiledProgram) Effect() *Effect { return p.effect }

// Stale reports whether the program belongs to a lost context.
func (p *CompiledProgram) Stale() bool {
	return p.generation != p.engine.Generation()
}

// setUniforms writes time and resolution. Programs that do not declare a
// uniform ignore it.
func (p *CompiledProgram) setUniforms(t float32, width, height int) {
	if p.hasTime {
		p.uniforms.SetFloat(p.timeLoc, t)
	}
	if p.hasResolution {
		p.uniforms.SetVec2(p.resolutionLoc, float32(width), float32(height))
	}
}

// drawCall runs on the GPU goroutine.
func (p *CompiledProgram) drawCall(tex render.Texture, target render.Target) (render.DrawCall, error) {
	if p.program == nil {
		return render.DrawCall{}, fmt.Errorf("emote: effect %q: program released", p.effect.Name)
	}
	if p.Stale() {
		return render.DrawCall{}, ErrContextLost
	}
	return render.DrawCall{
		Program:  p.program,
		Mesh:     p.engine.mesh.Mesh(),
		Texture:  tex,
		Target:   target,
		Uniforms: p.uniforms,
		Clear:    opaqueBlack,
	}, nil
}

// Release frees the device program. It is safe to call more than once.
func (p *CompiledProgram) Release() {
	if p == nil {
		return
	}
	p.engine.release(func(dev render.Device) {
		if p.program != nil {
			dev.DeleteProgram(p.program)
			p.program = nil
		}
	})
}

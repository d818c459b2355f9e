// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"
	"sort"
)

// Linked is a checked vertex/fragment pair ready to become a device program.
type Linked struct {
	Vertex   *Module
	Fragment *Module
	Bindings AttributeBindings

	// Uniforms is the union of both stages' uniform blocks, or nil when
	// neither stage declares one.
	Uniforms *UniformBlock

	// Textures and Samplers are the union of both stages' bindings.
	Textures []Resource
	Samplers []Resource
}

// Link checks that vs and fs form a valid program under bindings.
// Errors are always of type *LinkError.
func Link(vs, fs *Module, bindings AttributeBindings) (*Linked, error) {
	if vs == nil || vs.Stage != StageVertex {
		return nil, &LinkError{Log: "first module is not a vertex shader"}
	}
	if fs == nil || fs.Stage != StageFragment {
		return nil, &LinkError{Log: "second module is not a fragment shader"}
	}

	if err := checkAttributes(vs, bindings); err != nil {
		return nil, err
	}
	if err := checkVaryings(vs, fs); err != nil {
		return nil, err
	}
	uniforms, err := mergeUniforms(vs.Uniforms, fs.Uniforms)
	if err != nil {
		return nil, err
	}

	return &Linked{
		Vertex:   vs,
		Fragment: fs,
		Bindings: bindings,
		Uniforms: uniforms,
		Textures: mergeResources(vs.Textures, fs.Textures),
		Samplers: mergeResources(vs.Samplers, fs.Samplers),
	}, nil
}

func checkAttributes(vs *Module, bindings AttributeBindings) error {
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		slot := bindings[name]
		in, ok := findByName(vs.Inputs, name)
		if !ok {
			return &LinkError{Log: fmt.Sprintf("attribute %q is not declared by vertex entry point %s", name, vs.EntryPoint)}
		}
		if in.Location != slot {
			return &LinkError{Log: fmt.Sprintf("attribute %q is declared at location %d but bound to slot %d", name, in.Location, slot)}
		}
	}
	for _, in := range vs.Inputs {
		if _, ok := bindings[in.Name]; !ok {
			return &LinkError{Log: fmt.Sprintf("vertex input %q at location %d has no attribute binding", in.Name, in.Location)}
		}
	}
	return nil
}

func checkVaryings(vs, fs *Module) error {
	for _, in := range fs.Inputs {
		out, ok := findByLocation(vs.Outputs, in.Location)
		if !ok {
			return &LinkError{Log: fmt.Sprintf("fragment input %q at location %d is not written by the vertex stage", in.Name, in.Location)}
		}
		if out.Type != in.Type {
			return &LinkError{Log: fmt.Sprintf("location %d is %s in the vertex stage but %s in the fragment stage", in.Location, out.Type, in.Type)}
		}
	}
	return nil
}

func mergeUniforms(a, b *UniformBlock) (*UniformBlock, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}
	if a.Group != b.Group || a.Binding != b.Binding {
		return nil, &LinkError{Log: fmt.Sprintf("uniform blocks bound at (%d,%d) and (%d,%d)", a.Group, a.Binding, b.Group, b.Binding)}
	}

	merged := *a
	merged.Members = append([]Member(nil), a.Members...)
	for _, m := range b.Members {
		existing, ok := a.Member(m.Name)
		if !ok {
			merged.Members = append(merged.Members, m)
			continue
		}
		if existing.Offset != m.Offset || existing.Type != m.Type {
			return nil, &LinkError{Log: fmt.Sprintf("uniform %q has conflicting layouts between stages", m.Name)}
		}
	}
	if b.Size > merged.Size {
		merged.Size = b.Size
	}
	return &merged, nil
}

func mergeResources(a, b []Resource) []Resource {
	out := append([]Resource(nil), a...)
	for _, r := range b {
		dup := false
		for _, e := range out {
			if e.Group == r.Group && e.Binding == r.Binding {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, r)
		}
	}
	return out
}

func findByName(values []Value, name string) (Value, bool) {
	for _, v := range values {
		if v.Name == name {
			return v, true
		}
	}
	return Value{}, false
}

func findByLocation(values []Value, loc uint32) (Value, bool) {
	for _, v := range values {
		if v.Location == loc {
			return v, true
		}
	}
	return Value{}, false
}

// Link is Link as a method, for callers holding a *Compiler.
func (c *Compiler) Link(vs, fs *Module, bindings AttributeBindings) (*Linked, error) {
	return Link(vs, fs, bindings)
}

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// Value is a vertex input or an inter-stage value bound by location.
type Value struct {
	Name     string
	Location uint32
	Type     string
}

// Member is one member of the uniform block.
// Offset and Size are in bytes, as laid out by naga.
type Member struct {
	Name   string
	Type   string
	Offset uint32
	Size   uint32
}

// UniformBlock describes the uniform buffer variable of a module.
type UniformBlock struct {
	Name    string
	Type    string
	Group   uint32
	Binding uint32
	Members []Member
	Size    uint32
}

// Member returns the block member with the given name.
func (b *UniformBlock) Member(name string) (Member, bool) {
	if b == nil {
		return Member{}, false
	}
	for _, m := range b.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// Resource is a texture or sampler binding.
type Resource struct {
	Name    string
	Group   uint32
	Binding uint32
}

// Reflection is the binding-relevant interface of one compiled stage.
type Reflection struct {
	EntryPoint string
	Inputs     []Value
	Outputs    []Value
	Uniforms   *UniformBlock
	Textures   []Resource
	Samplers   []Resource
}

// Reflect extracts the binding interface of the entry point for stage.
// The source is parsed and lowered by naga; syntax and type errors are
// returned as is.
func Reflect(source string, stage Stage) (*Reflection, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, err
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, err
	}
	return reflectModule(module, stage)
}

func reflectModule(m *ir.Module, stage Stage) (*Reflection, error) {
	if stage != StageVertex && stage != StageFragment {
		return nil, fmt.Errorf("unsupported stage %s", stage)
	}
	var ep *ir.EntryPoint
	for i := range m.EntryPoints {
		if m.EntryPoints[i].Stage == stage.irStage() {
			ep = &m.EntryPoints[i]
			break
		}
	}
	if ep == nil {
		return nil, fmt.Errorf("no %s entry point", stage.attribute())
	}

	r := &Reflection{EntryPoint: ep.Name}
	if err := reflectGlobals(m, r); err != nil {
		return nil, err
	}
	for _, arg := range ep.Function.Arguments {
		r.Inputs = append(r.Inputs, locatedValues(m, arg.Name, arg.Type, arg.Binding)...)
	}
	if res := ep.Function.Result; res != nil {
		r.Outputs = locatedValues(m, "", res.Type, res.Binding)
	}
	return r, nil
}

func reflectGlobals(m *ir.Module, r *Reflection) error {
	for _, v := range m.GlobalVariables {
		var group, binding uint32
		if v.Binding != nil {
			group, binding = v.Binding.Group, v.Binding.Binding
		}
		res := Resource{Name: v.Name, Group: group, Binding: binding}

		switch inner := typeInner(m, v.Type); {
		case v.Space == ir.SpaceUniform:
			if r.Uniforms != nil {
				continue
			}
			st, ok := inner.(ir.StructType)
			if !ok {
				return fmt.Errorf("uniform %s: type %s is not a struct", v.Name, typeName(m, v.Type))
			}
			block := &UniformBlock{
				Name:    v.Name,
				Type:    typeName(m, v.Type),
				Group:   group,
				Binding: binding,
				Size:    st.Span,
			}
			for _, member := range st.Members {
				block.Members = append(block.Members, Member{
					Name:   member.Name,
					Type:   typeName(m, member.Type),
					Offset: member.Offset,
					Size:   ir.TypeSize(m, member.Type),
				})
			}
			r.Uniforms = block
		default:
			switch inner.(type) {
			case ir.ImageType:
				r.Textures = append(r.Textures, res)
			case ir.SamplerType:
				r.Samplers = append(r.Samplers, res)
			}
		}
	}
	return nil
}

// locatedValues returns the @location values carried by a parameter or
// result, expanding struct types.
func locatedValues(m *ir.Module, name string, typ ir.TypeHandle, binding *ir.Binding) []Value {
	if binding != nil {
		if loc, ok := (*binding).(ir.LocationBinding); ok {
			return []Value{{Name: name, Location: loc.Location, Type: typeName(m, typ)}}
		}
		return nil
	}
	st, ok := typeInner(m, typ).(ir.StructType)
	if !ok {
		return nil
	}
	var values []Value
	for _, member := range st.Members {
		if member.Binding == nil {
			continue
		}
		if loc, ok := (*member.Binding).(ir.LocationBinding); ok {
			values = append(values, Value{Name: member.Name, Location: loc.Location, Type: typeName(m, member.Type)})
		}
	}
	return values
}

func typeInner(m *ir.Module, h ir.TypeHandle) ir.TypeInner {
	if int(h) >= len(m.Types) {
		return nil
	}
	return m.Types[h].Inner
}

// typeName spells a type the way WGSL source does, so stages can compare
// interface types by name.
func typeName(m *ir.Module, h ir.TypeHandle) string {
	if int(h) >= len(m.Types) {
		return fmt.Sprintf("type#%d", h)
	}
	t := m.Types[h]
	switch inner := t.Inner.(type) {
	case ir.ScalarType:
		return scalarName(inner)
	case ir.VectorType:
		return fmt.Sprintf("vec%d<%s>", inner.Size, scalarName(inner.Scalar))
	case ir.MatrixType:
		return fmt.Sprintf("mat%dx%d<%s>", inner.Columns, inner.Rows, scalarName(inner.Scalar))
	case ir.ArrayType:
		if inner.Size.Constant == nil {
			return fmt.Sprintf("array<%s>", typeName(m, inner.Base))
		}
		return fmt.Sprintf("array<%s, %d>", typeName(m, inner.Base), *inner.Size.Constant)
	case ir.SamplerType:
		if inner.Comparison {
			return "sampler_comparison"
		}
		return "sampler"
	}
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("type#%d", h)
}

func scalarName(s ir.ScalarType) string {
	switch s.Kind {
	case ir.ScalarFloat:
		if s.Width == 2 {
			return "f16"
		}
		return "f32"
	case ir.ScalarSint:
		return "i32"
	case ir.ScalarUint:
		return "u32"
	case ir.ScalarBool:
		return "bool"
	}
	return fmt.Sprintf("scalar%d", s.Kind)
}

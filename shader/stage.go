// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import "github.com/gogpu/naga/ir"

// Stage identifies a programmable pipeline stage.
type Stage uint8

const (
	// StageVertex is the vertex stage.
	StageVertex Stage = iota + 1

	// StageFragment is the fragment stage.
	StageFragment
)

// String returns a human-readable name for the stage.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return "unknown"
	}
}

// attribute returns the WGSL entry point attribute for the stage.
func (s Stage) attribute() string {
	switch s {
	case StageVertex:
		return "@vertex"
	case StageFragment:
		return "@fragment"
	default:
		return ""
	}
}

func (s Stage) irStage() ir.ShaderStage {
	if s == StageFragment {
		return ir.StageFragment
	}
	return ir.StageVertex
}

// AttributeBindings maps vertex attribute names to stable slot indices.
// Bindings are fixed before linking so the mesh layout is identical across
// all programs.
type AttributeBindings map[string]uint32

// MeshPositionAttribute is the vertex attribute carrying quad corners.
const MeshPositionAttribute = "meshPosition"

// DefaultBindings returns the attribute bindings shared by every effect.
func DefaultBindings() AttributeBindings {
	return AttributeBindings{MeshPositionAttribute: 0}
}

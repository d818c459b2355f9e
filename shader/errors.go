// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import "fmt"

// CompileError reports a shader that failed to compile.
// Log holds the compiler diagnostics.
type CompileError struct {
	Stage Stage
	Log   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("shader: could not compile %s shader: %s", e.Stage, e.Log)
}

// LinkError reports a vertex/fragment pair that cannot form a program.
type LinkError struct {
	Log string
}

func (e *LinkError) Error() string {
	return "shader: could not link program: " + e.Log
}

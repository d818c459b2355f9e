package emote

import (
	"fmt"

	"github.com/gogpu/emote/render"
)

// quadVertices covers clip space with two triangles.
var quadVertices = []float32{
	-1, -1, 1, -1, 1, 1,
	-1, -1, 1, 1, -1, 1,
}

// MeshBuffer is the full-screen quad every effect draws. One buffer is
// shared by the previews and the frame sampler of an engine; it is
// recreated only when the context is reacquired.
type MeshBuffer struct {
	mesh render.Mesh
}

func newMeshBuffer(dev render.Device) (*MeshBuffer, error) {
	m, err := dev.CreateMesh(quadVertices)
	if err != nil {
		return nil, fmt.Errorf("emote: create quad mesh: %w", err)
	}
	return &MeshBuffer{mesh: m}, nil
}

// Mesh returns the device mesh.
func (b *MeshBuffer) Mesh() render.Mesh { return b.mesh }

// VertexCount returns 6.
func (b *MeshBuffer) VertexCount() int { return len(quadVertices) / 2 }

func (b *MeshBuffer) release(dev render.Device) {
	if b == nil || b.mesh == nil {
		return
	}
	dev.DeleteMesh(b.mesh)
	b.mesh = nil
}

package gpu

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/emote/render"
)

// Draw clears the target and draws the mesh in one render pass, then
// waits for the queue to drain.
func (d *HALDevice) Draw(call render.DrawCall) error {
	if err := d.check(); err != nil {
		return err
	}
	prog, ok := call.Program.(*halProgram)
	if !ok || prog.dev != d {
		return errForeignHandle
	}
	mesh, ok := call.Mesh.(*halMesh)
	if !ok || mesh.dev != d {
		return errForeignHandle
	}
	target, ok := call.Target.(*Target)
	if !ok || target.dev != d {
		return errForeignHandle
	}
	if prog.deleted || mesh.deleted || target.deleted {
		return errDeletedHandle
	}

	var tex *halTexture
	if call.Texture != nil {
		tex, ok = call.Texture.(*halTexture)
		if !ok || tex.dev != d {
			return errForeignHandle
		}
		if tex.deleted {
			return errDeletedHandle
		}
	} else {
		var err error
		if tex, err = d.blankTexture(); err != nil {
			return err
		}
	}

	if prog.uniforms != nil && len(call.Uniforms) > 0 {
		data := call.Uniforms
		if uint64(len(data)) > prog.uniformLen {
			data = data[:prog.uniformLen]
		}
		if err := d.queue.WriteBuffer(prog.uniforms, 0, data); err != nil {
			return d.fail("write uniforms", err)
		}
	}

	bindGroup, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "emote_bind",
		Layout:  prog.bindLayout,
		Entries: d.bindGroupEntries(prog, tex),
	})
	if err != nil {
		return d.fail("create bind group", err)
	}
	defer d.device.DestroyBindGroup(bindGroup)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "emote_draw_encoder"})
	if err != nil {
		return d.fail("create command encoder", err)
	}
	if err := encoder.BeginEncoding("emote_draw"); err != nil {
		return d.fail("begin encoding", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "emote_draw_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target.view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: call.Clear,
		}},
	})
	rp.SetPipeline(prog.pipeline)
	rp.SetBindGroup(0, bindGroup, nil)
	rp.SetVertexBuffer(0, mesh.buf, 0)
	rp.Draw(uint32(mesh.count), 1, 0, 0) //nolint:gosec // vertex count fits uint32
	rp.End()

	return d.submit(encoder)
}

func (d *HALDevice) bindGroupEntries(prog *halProgram, tex *halTexture) []gputypes.BindGroupEntry {
	var entries []gputypes.BindGroupEntry
	linked := prog.linked
	if linked.Uniforms != nil {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding: linked.Uniforms.Binding,
			Resource: gputypes.BufferBinding{
				Buffer: prog.uniforms.NativeHandle(),
				Size:   prog.uniformLen,
			},
		})
	}
	for _, t := range linked.Textures {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  t.Binding,
			Resource: gputypes.TextureViewBinding{TextureView: tex.view.NativeHandle()},
		})
	}
	for _, s := range linked.Samplers {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  s.Binding,
			Resource: gputypes.SamplerBinding{Sampler: d.sampler.NativeHandle()},
		})
	}
	return entries
}

// submit ends encoding, submits the command buffer and waits for idle.
func (d *HALDevice) submit(encoder hal.CommandEncoder) error {
	cmd, err := encoder.EndEncoding()
	if err != nil {
		return d.fail("end encoding", err)
	}
	defer d.device.FreeCommandBuffer(cmd)

	if _, err := d.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		return d.fail("submit", err)
	}
	if err := d.device.WaitIdle(); err != nil {
		return d.fail("wait for GPU", err)
	}
	return nil
}

// ReadPixels copies the target into dst, bottom row first.
func (d *HALDevice) ReadPixels(t render.Target, dst []byte) error {
	if err := d.check(); err != nil {
		return err
	}
	target, ok := t.(*Target)
	if !ok || target.dev != d {
		return errForeignHandle
	}
	if target.deleted {
		return errDeletedHandle
	}
	rowBytes := target.w * 4
	if len(dst) < rowBytes*target.h {
		return fmt.Errorf("gpu: readback buffer holds %d bytes, need %d", len(dst), rowBytes*target.h)
	}

	w, h := uint32(target.w), uint32(target.h) //nolint:gosec // target sizes fit uint32
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "emote_readback_encoder"})
	if err != nil {
		return d.fail("create command encoder", err)
	}
	if err := encoder.BeginEncoding("emote_readback"); err != nil {
		return d.fail("begin encoding", err)
	}
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: target.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(target.tex, target.staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{BytesPerRow: target.rowPitch, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: target.tex, Aspect: gputypes.TextureAspectAll},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: target.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})
	if err := d.submit(encoder); err != nil {
		return err
	}

	size := uint64(target.rowPitch) * uint64(h)
	mapping, err := d.device.MapBuffer(target.staging, 0, size)
	if err != nil {
		return d.fail("map readback buffer", err)
	}
	src := unsafe.Slice((*byte)(mapping.Ptr), size)

	// The copy is top row first; the contract is bottom row first.
	for y := 0; y < target.h; y++ {
		row := src[y*int(target.rowPitch) : y*int(target.rowPitch)+rowBytes]
		copy(dst[(target.h-1-y)*rowBytes:], row)
	}
	if err := d.device.UnmapBuffer(target.staging); err != nil {
		return d.fail("unmap readback buffer", err)
	}
	return nil
}

package emote

import (
	"errors"
	"fmt"

	"github.com/gogpu/emote/shader"
)

var (
	// ErrCanceled is the outcome of a superseded render job. It is not a
	// failure and is never reported to the user.
	ErrCanceled = errors.New("emote: render canceled")

	// ErrContextLost is returned once the GPU context is gone. Every
	// compiled program and texture is invalid until Engine.Reacquire.
	ErrContextLost = errors.New("emote: GPU context lost")

	// ErrUnknownEffect is returned for names missing from the catalog.
	ErrUnknownEffect = errors.New("emote: unknown effect")

	// ErrNoImage is returned when rendering is requested before an image
	// was uploaded.
	ErrNoImage = errors.New("emote: no image uploaded")

	// ErrNoEffect is returned by Controller.Wait when no effect is
	// selected for the current image.
	ErrNoEffect = errors.New("emote: no effect selected")

	// ErrClosed is returned by calls on a closed engine or controller.
	ErrClosed = errors.New("emote: closed")
)

type (
	// ShaderCompileError reports a stage that failed to compile.
	ShaderCompileError = shader.CompileError

	// ShaderLinkError reports a vertex/fragment pair that failed to link.
	ShaderLinkError = shader.LinkError
)

// IsCanceled reports whether err is a cancellation rather than a failure.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// IsShaderError reports whether err makes an effect unusable until it is
// rebuilt.
func IsShaderError(err error) bool {
	var ce *ShaderCompileError
	var le *ShaderLinkError
	return errors.As(err, &ce) || errors.As(err, &le)
}

// RenderTargetError reports a failed draw or readback of one frame. The
// job that hit it is aborted without an artifact.
type RenderTargetError struct {
	Frame int
	Err   error
}

func (e *RenderTargetError) Error() string {
	return fmt.Sprintf("emote: render target failed at frame %d: %v", e.Frame, e.Err)
}

func (e *RenderTargetError) Unwrap() error { return e.Err }

// ImageUploadError reports an image the input collaborator could not
// decode or upload. It triggers the fallback image.
type ImageUploadError struct {
	Name string
	Err  error
}

func (e *ImageUploadError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("emote: image upload failed: %v", e.Err)
	}
	return fmt.Sprintf("emote: image upload %q failed: %v", e.Name, e.Err)
}

func (e *ImageUploadError) Unwrap() error { return e.Err }

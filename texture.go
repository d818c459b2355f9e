package emote

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gogpu/emote/render"
	pix "github.com/gogpu/emote/internal/image"
)

var nextImageID atomic.Uint64

// SourceImage is an uploaded picture resized to the render target.
type SourceImage struct {
	// Pixels is the resized image. It must not be modified.
	Pixels *image.NRGBA

	// Name is the file name the user picked, or "" when unknown.
	Name string

	// ID distinguishes uploads. A new upload always gets a new ID, even
	// for the same file.
	ID uint64
}

// NewSourceImage resizes img to size x size and assigns it a new ID.
func NewSourceImage(img image.Image, name string, size int) *SourceImage {
	return &SourceImage{
		Pixels: pix.Fit(img, size, size),
		Name:   name,
		ID:     nextImageID.Add(1),
	}
}

// FallbackImage returns the "broken image" picture shown when an upload
// fails. It has no name, so its artifacts are called "result-<effect>".
func FallbackImage(size int) *SourceImage {
	return &SourceImage{
		Pixels: pix.Fallback(size, size),
		ID:     nextImageID.Add(1),
	}
}

// DecodeSourceImage decodes an encoded picture (PNG, JPEG, GIF, BMP,
// TIFF or WebP). Failures are *ImageUploadError.
func DecodeSourceImage(data []byte, name string, size int) (*SourceImage, error) {
	img, _, err := pix.DecodeBytes(data)
	if err != nil {
		return nil, &ImageUploadError{Name: name, Err: err}
	}
	return NewSourceImage(img, name, size), nil
}

// LoadSourceImage decodes the image file at path. The image is named after
// the last element of path.
func LoadSourceImage(path string, size int) (*SourceImage, error) {
	name := filepath.Base(path)
	img, _, err := pix.Load(path)
	if err != nil {
		return nil, &ImageUploadError{Name: name, Err: err}
	}
	return NewSourceImage(img, name, size), nil
}

// TextureManager holds the one texture an owner samples from. Uploading
// releases the previous texture before creating the new one. After a
// context loss the texture is uploaded again from the retained pixels on
// next use.
type TextureManager struct {
	engine *Engine

	mu  sync.Mutex
	img *SourceImage

	// Owned by the GPU goroutine.
	tex        render.Texture
	texImage   *SourceImage
	generation uint64
}

// NewTextureManager creates an empty slot on e.
func NewTextureManager(e *Engine) *TextureManager {
	return &TextureManager{engine: e}
}

// Image returns the current image, or nil.
func (m *TextureManager) Image() *SourceImage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.img
}

// Upload replaces the slot's image and texture. The image is kept even
// when the upload fails, so it is retried after Reacquire.
func (m *TextureManager) Upload(ctx context.Context, img *SourceImage) error {
	m.mu.Lock()
	m.img = img
	m.mu.Unlock()

	return m.engine.do(ctx, func() error {
		_, err := m.texture()
		return err
	})
}

// texture returns the device texture of the current image, uploading it
// if the slot holds another image or a stale texture. Runs on the GPU
// goroutine.
func (m *TextureManager) texture() (render.Texture, error) {
	img := m.Image()
	gen := m.engine.Generation()
	if m.tex != nil && m.texImage == img && m.generation == gen {
		return m.tex, nil
	}

	m.releaseTexture()
	if img == nil {
		return nil, ErrNoImage
	}
	tex, err := m.engine.dev.CreateTexture(img.Pixels)
	if err != nil {
		return nil, fmt.Errorf("emote: upload %q: %w", img.Name, err)
	}
	m.tex = tex
	m.texImage = img
	m.generation = gen
	return tex, nil
}

// releaseTexture runs on the GPU goroutine.
func (m *TextureManager) releaseTexture() {
	if m.tex == nil {
		return
	}
	if m.generation == m.engine.Generation() {
		m.engine.dev.DeleteTexture(m.tex)
	}
	m.tex = nil
	m.texImage = nil
}

// Release frees the texture. The image is kept.
func (m *TextureManager) Release() {
	m.engine.release(func(render.Device) { m.releaseTexture() })
}

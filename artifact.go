package emote

import (
	"bytes"
	"io"
	"strings"
)

// Artifact is an encoded animation ready to be saved.
type Artifact struct {
	name   string
	data   []byte
	frames int
}

// NewArtifact wraps encoded GIF bytes. The artifact takes ownership of data.
func NewArtifact(name string, data []byte, frames int) *Artifact {
	return &Artifact{name: name, data: data, frames: frames}
}

// Name is the suggested file name, e.g. "cat-Bounce.gif".
func (a *Artifact) Name() string { return a.name }

// Bytes returns the encoded file. The slice must not be modified.
func (a *Artifact) Bytes() []byte { return a.data }

// Len returns the size of the encoded file in bytes.
func (a *Artifact) Len() int { return len(a.data) }

// Frames returns the number of frames in the animation.
func (a *Artifact) Frames() int { return a.frames }

// Reader returns a reader over the encoded file.
func (a *Artifact) Reader() io.Reader { return bytes.NewReader(a.data) }

// WriteTo writes the encoded file to w.
func (a *Artifact) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(a.data)
	return int64(n), err
}

// ArtifactName derives the download name for an effect rendered from
// fileName: everything before the last dot of fileName, a dash, the
// effect name and ".gif". An empty fileName becomes "result".
func ArtifactName(fileName, effect string) string {
	base := "result"
	if fileName != "" {
		base = fileName
		if i := strings.LastIndexByte(base, '.'); i >= 0 {
			base = base[:i]
		}
	}
	return base + "-" + effect + ".gif"
}

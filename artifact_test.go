package emote

import (
	"context"
	"errors"
	"io"
	"slices"
	"testing"
)

func TestArtifactName(t *testing.T) {
	tests := []struct {
		file, effect, want string
	}{
		{"cat.png", "Bounce", "cat-Bounce.gif"},
		{"my.cat.jpeg", "Hop", "my.cat-Hop.gif"},
		{"noext", "Go", "noext-Go.gif"},
		{".hidden", "Rain", "-Rain.gif"},
		{"", "Pride", "result-Pride.gif"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			if got := ArtifactName(tt.file, tt.effect); got != tt.want {
				t.Errorf("ArtifactName(%q, %q) = %q, want %q", tt.file, tt.effect, got, tt.want)
			}
		})
	}
}

func TestArtifactReaders(t *testing.T) {
	a := NewArtifact("x-Hop.gif", []byte("GIF89a"), 4)
	if a.Name() != "x-Hop.gif" || a.Len() != 6 || a.Frames() != 4 {
		t.Errorf("artifact = %q, %d bytes, %d frames", a.Name(), a.Len(), a.Frames())
	}
	b, err := io.ReadAll(a.Reader())
	if err != nil || string(b) != "GIF89a" {
		t.Errorf("Reader = %q, %v", b, err)
	}
	// Each reader starts at the beginning.
	if b, _ := io.ReadAll(a.Reader()); string(b) != "GIF89a" {
		t.Errorf("second Reader = %q", b)
	}
}

func TestRenderCache(t *testing.T) {
	c := NewRenderCache()
	a := NewArtifact("a", nil, 1)

	if c.Put(7, "Hop", a) {
		t.Fatal("Put accepted an image the cache is not bound to")
	}
	c.Reset(7)
	if !c.Put(7, "Hop", a) || !c.Put(7, "Go", a) {
		t.Fatal("Put refused the bound image")
	}
	if got, ok := c.Get(7, "Hop"); !ok || got != a {
		t.Error("Get missed a stored artifact")
	}
	if _, ok := c.Get(8, "Hop"); ok {
		t.Error("Get returned an artifact for another image")
	}
	names := c.Effects()
	slices.Sort(names)
	if !slices.Equal(names, []string{"Go", "Hop"}) {
		t.Errorf("Effects = %v", names)
	}

	c.Reset(8)
	if c.Len() != 0 {
		t.Errorf("Len after Reset = %d", c.Len())
	}
	if _, ok := c.Get(7, "Hop"); ok {
		t.Error("old image still cached")
	}
}

func TestRenderJob(t *testing.T) {
	j := newRenderJob("Hop", 3)
	if j.State() != JobRunning || j.Effect() != "Hop" || j.ImageID() != 3 {
		t.Fatalf("new job = %v %q %d", j.State(), j.Effect(), j.ImageID())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := j.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait on canceled context = %v", err)
	}

	j.Cancel()
	j.progress()
	j.progress()
	j.finish(2, nil, ErrCanceled)
	<-j.Done()
	if j.State() != JobAborted || j.Frames() != 2 || !IsCanceled(j.Err()) {
		t.Errorf("canceled job = %v, %d frames, %v", j.State(), j.Frames(), j.Err())
	}

	done := newRenderJob("Go", 3)
	a := NewArtifact("x", nil, 8)
	done.finish(8, a, nil)
	if got, err := done.Wait(context.Background()); got != a || err != nil || done.State() != JobFinished {
		t.Errorf("finished job = %v, %v", got, err)
	}
}

func TestErrors(t *testing.T) {
	inner := errors.New("boom")
	rte := &RenderTargetError{Frame: 4, Err: inner}
	if !errors.Is(rte, inner) || rte.Error() != "emote: render target failed at frame 4: boom" {
		t.Errorf("RenderTargetError = %q", rte.Error())
	}
	iue := &ImageUploadError{Name: "x.png", Err: inner}
	if !errors.Is(iue, inner) || iue.Error() != `emote: image upload "x.png" failed: boom` {
		t.Errorf("ImageUploadError = %q", iue.Error())
	}
	if IsCanceled(inner) || !IsCanceled(errors.Join(inner, ErrCanceled)) {
		t.Error("IsCanceled")
	}
	if IsShaderError(inner) || !IsShaderError(&ShaderLinkError{Log: "x"}) {
		t.Error("IsShaderError")
	}
}

func TestDecodeSourceImage(t *testing.T) {
	var iue *ImageUploadError
	if _, err := DecodeSourceImage([]byte("not an image"), "bad.png", 16); !errors.As(err, &iue) || iue.Name != "bad.png" {
		t.Errorf("DecodeSourceImage = %v, want ImageUploadError", err)
	}
	if _, err := LoadSourceImage("testdata/missing.png", 16); !errors.As(err, &iue) {
		t.Errorf("LoadSourceImage = %v, want ImageUploadError", err)
	}

	a := FallbackImage(16)
	b := FallbackImage(16)
	if a.ID == b.ID || a.Name != "" || a.Pixels.Bounds().Dx() != 16 {
		t.Errorf("fallback images %d and %d", a.ID, b.ID)
	}
}

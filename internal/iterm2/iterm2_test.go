package iterm2

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"testing"
)

func payload(t *testing.T, s, prefix string) []byte {
	t.Helper()
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, "\x07\n") {
		t.Fatalf("escape sequence = %q", s)
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, prefix), "\x07\n")
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	return b
}

func TestImage(t *testing.T) {
	m := image.NewRGBA(image.Rect(0, 0, 2, 2))
	m.Set(1, 1, color.RGBA{R: 0xff, A: 0xff})

	var buf bytes.Buffer
	if err := Image(&buf, m); err != nil {
		t.Fatal(err)
	}
	got, err := png.Decode(bytes.NewReader(payload(t, buf.String(), "\x1b]1337;File=inline=1:")))
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	if r, _, _, _ := got.At(1, 1).RGBA(); r != 0xffff {
		t.Errorf("pixel = %v", got.At(1, 1))
	}
}

func TestFile(t *testing.T) {
	data := []byte("GIF89a")
	var buf bytes.Buffer
	if err := File(&buf, "cat-Hop.gif", data); err != nil {
		t.Fatal(err)
	}
	prefix := "\x1b]1337;File=inline=1;size=6;name=" + base64.StdEncoding.EncodeToString([]byte("cat-Hop.gif")) + ":"
	if got := payload(t, buf.String(), prefix); !bytes.Equal(got, data) {
		t.Errorf("payload = %q", got)
	}
}

func TestIsCompatible(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "tty")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	t.Setenv("TERM_PROGRAM", "iTerm.app")
	if IsCompatible(f) {
		t.Error("regular file reported as iTerm2")
	}
	if Width(f) != 0 {
		t.Error("regular file has a width")
	}
}

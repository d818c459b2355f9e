// Package iterm2 writes images inline using the iTerm2 OSC 1337 protocol.
package iterm2

import (
	"encoding/base64"
	"image"
	"image/png"
	"io"
	"os"
	"strconv"

	"golang.org/x/term"
)

// IsCompatible reports whether f is a terminal run by iTerm2.
func IsCompatible(f *os.File) bool {
	// TODO: query the terminal instead of trusting TERM_PROGRAM
	return os.Getenv("TERM_PROGRAM") == "iTerm.app" && term.IsTerminal(int(f.Fd()))
}

// Image writes m as an inline PNG.
func Image(w io.Writer, m image.Image) error {
	if _, err := io.WriteString(w, "\x1b]1337;File=inline=1:"); err != nil {
		return err
	}
	enc := base64.NewEncoder(base64.StdEncoding, w)
	if err := png.Encode(enc, m); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\x07\n")
	return err
}

// File writes an already encoded file (GIF, PNG) inline. iTerm2 animates GIFs.
func File(w io.Writer, name string, data []byte) error {
	header := "\x1b]1337;File=inline=1;size=" + strconv.Itoa(len(data))
	if name != "" {
		header += ";name=" + base64.StdEncoding.EncodeToString([]byte(name))
	}
	if _, err := io.WriteString(w, header+":"); err != nil {
		return err
	}
	enc := base64.NewEncoder(base64.StdEncoding, w)
	if _, err := enc.Write(data); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\x07\n")
	return err
}

// Width returns the terminal width in cells, or 0 when f is not a terminal.
func Width(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return w
}

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package catalog

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// document is the TOML form of a catalog:
//
//	builtin = true            # start from the built-in effects
//
//	[[effect]]
//	name = "Spin"
//	duration = 1.5
//	transparent = "#00ff00"   # optional
//	vertex_file = "spin.wgsl" # or vertex = "..."
//	fragment = "..."
//
// Stage bodies get the shared bindings prepended, as for the built-ins.
// Set raw = true to supply complete WGSL modules instead.
type document struct {
	Builtin bool          `toml:"builtin"`
	Effects []effectEntry `toml:"effect"`
}

type effectEntry struct {
	Name         string  `toml:"name"`
	Duration     float64 `toml:"duration"`
	Transparent  string  `toml:"transparent"`
	Vertex       string  `toml:"vertex"`
	VertexFile   string  `toml:"vertex_file"`
	Fragment     string  `toml:"fragment"`
	FragmentFile string  `toml:"fragment_file"`
	Raw          bool    `toml:"raw"`
}

// Load decodes a TOML catalog. Relative *_file paths are resolved against
// dir; an empty dir disallows them.
func Load(r io.Reader, dir string) (*Catalog, error) {
	var doc document
	md, err := toml.NewDecoder(r).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("catalog: unknown keys: %s", strings.Join(keys, ", "))
	}

	var effects []Effect
	if doc.Builtin {
		for _, e := range Default().Effects() {
			effects = append(effects, *e)
		}
	}
	for i, entry := range doc.Effects {
		e, err := entry.effect(dir)
		if err != nil {
			return nil, fmt.Errorf("catalog: effect %d: %w", i+1, err)
		}
		effects = append(effects, e)
	}
	if len(effects) == 0 {
		return nil, errors.New("catalog: no effects")
	}
	return New(effects...)
}

// LoadFile loads the TOML catalog at path. Stage files are resolved
// relative to the catalog's directory.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Load(f, filepath.Dir(path))
}

func (entry effectEntry) effect(dir string) (Effect, error) {
	vertex, err := stageSource("vertex", entry.Vertex, entry.VertexFile, dir)
	if err != nil {
		return Effect{}, err
	}
	fragment, err := stageSource("fragment", entry.Fragment, entry.FragmentFile, dir)
	if err != nil {
		return Effect{}, err
	}
	if !entry.Raw {
		vertex = VertexSource(vertex)
		fragment = FragmentSource(fragment)
	}

	e := Effect{
		Name:           entry.Name,
		VertexSource:   vertex,
		FragmentSource: fragment,
		Duration:       entry.Duration,
	}
	if entry.Transparent != "" {
		key, err := ParseColor(entry.Transparent)
		if err != nil {
			return Effect{}, err
		}
		e.Transparent = &key
	}
	return e, e.Validate()
}

func stageSource(stage, inline, file, dir string) (string, error) {
	switch {
	case inline != "" && file != "":
		return "", fmt.Errorf("both %s and %s_file are set", stage, stage)
	case file == "":
		return inline, nil
	case dir == "" && !filepath.IsAbs(file):
		return "", fmt.Errorf("%s_file %q: relative path without a catalog directory", stage, file)
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(dir, file)
	}
	b, err := os.ReadFile(filepath.Clean(file))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseColor parses "#rrggbb", "rrggbb" or "0xrrggbb" into an opaque color.
func ParseColor(s string) (color.RGBA, error) {
	h := strings.TrimSpace(s)
	h = strings.TrimPrefix(h, "#")
	h = strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X")
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil //nolint:gosec // 24-bit value
}

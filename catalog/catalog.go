// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package catalog

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strings"
)

// Effect is a named, time-parameterized shader pair.
type Effect struct {
	Name           string
	VertexSource   string // WGSL with a @vertex entry point
	FragmentSource string // WGSL with a @fragment entry point

	// Duration is the animation length in seconds.
	Duration float64

	// Transparent is the color keyed out of encoded animations, or nil
	// for an opaque animation.
	Transparent *color.RGBA
}

// Validate reports the first problem that makes e unusable.
func (e *Effect) Validate() error {
	switch {
	case strings.TrimSpace(e.Name) == "":
		return errors.New("catalog: effect has no name")
	case strings.TrimSpace(e.VertexSource) == "":
		return fmt.Errorf("catalog: effect %q: empty vertex source", e.Name)
	case strings.TrimSpace(e.FragmentSource) == "":
		return fmt.Errorf("catalog: effect %q: empty fragment source", e.Name)
	case !(e.Duration > 0) || math.IsInf(e.Duration, 0):
		return fmt.Errorf("catalog: effect %q: duration must be a positive number of seconds, got %v", e.Name, e.Duration)
	}
	return nil
}

// Catalog is an immutable set of effects keyed by name.
// It is safe for concurrent use.
type Catalog struct {
	effects map[string]*Effect
	names   []string
}

// ErrDuplicateEffect is returned by New when two effects share a name.
var ErrDuplicateEffect = errors.New("catalog: duplicate effect name")

// New validates effects and builds a catalog that lists them in the given
// order. The effects are copied.
func New(effects ...Effect) (*Catalog, error) {
	c := &Catalog{effects: make(map[string]*Effect, len(effects))}
	for i := range effects {
		e := effects[i]
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.effects[e.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateEffect, e.Name)
		}
		if e.Transparent != nil {
			key := *e.Transparent
			e.Transparent = &key
		}
		c.effects[e.Name] = &e
		c.names = append(c.names, e.Name)
	}
	return c, nil
}

// Get returns the effect registered under name. The result must not be
// modified.
func (c *Catalog) Get(name string) (*Effect, bool) {
	e, ok := c.effects[name]
	return e, ok
}

// Names returns the effect names in catalog order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Len returns the number of effects.
func (c *Catalog) Len() int { return len(c.names) }

// Effects returns the effects in catalog order.
func (c *Catalog) Effects() []*Effect {
	out := make([]*Effect, len(c.names))
	for i, name := range c.names {
		out[i] = c.effects[name]
	}
	return out
}

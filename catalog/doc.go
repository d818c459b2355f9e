// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package catalog defines effects and ships the built-in set.
//
// An effect is a WGSL vertex/fragment pair plus an animation duration and
// an optional transparency key. Every effect binds the same interface (see
// package shader): a Uniforms block with time and resolution, the source
// image as texture "emote" and its sampler. Catalogs are immutable once
// built, so they can be shared between renderers.
//
// The built-in effects also register CPU kernels (package kernel) so that
// they render on the software device. Effects loaded from TOML render on
// GPU devices; on the software device their entry points must have kernels
// registered by the host program.
package catalog

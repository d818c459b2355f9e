// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package encode turns rendered effect frames into animated GIFs.
//
// Frames are quantized to a median-cut palette per frame on a shared
// worker pool while the renderer keeps producing the next frame:
//
//	enc := encode.NewGIF(112, 112, encode.WithTransparent(key))
//	for _, f := range frames {
//		if err := enc.AddFrame(f); err != nil {
//			enc.Abort()
//			return err
//		}
//	}
//	data, err := enc.Finish()
package encode

// Package emote renders animated emotes: a still picture run through a
// time-parameterized shader effect, sampled at a fixed frame rate and
// encoded as a looping GIF.
//
// # Quick Start
//
//	e, err := emote.NewEngine()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Close()
//
//	c := emote.NewController(e)
//	defer c.Close()
//
//	img, _ := emote.LoadSourceImage("cat.png", e.Size())
//	_ = c.UploadSource(ctx, img)
//	_ = c.SelectEffect(ctx, "Bounce")
//	art, err := c.Wait(ctx)
//	// art.Name() == "cat-Bounce.gif"
//
// # Rendering Model
//
// An [Engine] owns one render device and a single goroutine that issues
// every device call. A [Controller] renders artifacts: each effect
// selection starts a [RenderJob] whose [FrameSampler] draws
// floor(duration*30)+1 frames at t = i/30, one GPU task per frame, so
// other GPU work only interleaves between frames and the output does not
// depend on host speed. Frames stream into the GIF encoder, which
// quantizes them on a worker pool.
//
// A [Preview] draws the same effects live, driven by the wall clock.
//
// # Backends
//
// The software device is always available and bit-for-bit reproducible.
// Import the gpu package to add the wgpu HAL backends:
//
//	import _ "github.com/gogpu/emote/gpu"
//
// # Context Loss
//
// When the device reports a lost context the engine notifies once through
// its [Notifier] and fails further work with [ErrContextLost] until
// [Engine.Reacquire] installs a new device. Previews and controllers
// rebuild their resources on next use.
package emote

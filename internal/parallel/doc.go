// Package parallel provides the work-stealing worker pool that runs GIF
// palette quantization off the GPU goroutine.
package parallel

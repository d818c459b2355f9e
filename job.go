package emote

import (
	"context"
	"sync"
)

// JobState is the lifecycle of a render job.
type JobState int

// Job states.
const (
	JobRunning JobState = iota
	JobAborted
	JobFinished
)

func (s JobState) String() string {
	switch s {
	case JobRunning:
		return "running"
	case JobAborted:
		return "aborted"
	case JobFinished:
		return "finished"
	}
	return "unknown"
}

// RenderJob is one rendering of an effect over an uploaded image. It ends
// either finished with exactly one artifact or aborted with none.
type RenderJob struct {
	effect  string
	imageID uint64
	token   *CancelToken
	done    chan struct{}

	mu       sync.Mutex
	state    JobState
	frames   int
	artifact *Artifact
	err      error
}

func newRenderJob(effect string, imageID uint64) *RenderJob {
	return &RenderJob{
		effect:  effect,
		imageID: imageID,
		token:   NewCancelToken(),
		done:    make(chan struct{}),
	}
}

// Effect returns the name of the effect being rendered.
func (j *RenderJob) Effect() string { return j.effect }

// ImageID returns the upload the job renders from.
func (j *RenderJob) ImageID() uint64 { return j.imageID }

// Cancel asks the job to stop at the next frame boundary.
func (j *RenderJob) Cancel() { j.token.Cancel() }

// Canceled reports whether Cancel was called.
func (j *RenderJob) Canceled() bool { return j.token.Canceled() }

// Done is closed when the job settles.
func (j *RenderJob) Done() <-chan struct{} { return j.done }

// State returns the job state.
func (j *RenderJob) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Frames returns the number of frames rendered so far. A canceled job
// keeps the count it reached.
func (j *RenderJob) Frames() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.frames
}

// Err returns why the job was aborted, or nil.
func (j *RenderJob) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Wait blocks until the job settles and returns its artifact. A
// superseded job returns ErrCanceled.
func (j *RenderJob) Wait(ctx context.Context) (*Artifact, error) {
	select {
	case <-j.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.artifact, j.err
}

func (j *RenderJob) progress() {
	j.mu.Lock()
	j.frames++
	j.mu.Unlock()
}

func (j *RenderJob) finish(frames int, a *Artifact, err error) {
	j.mu.Lock()
	j.frames = frames
	if err != nil {
		j.state = JobAborted
		j.err = err
	} else {
		j.state = JobFinished
		j.artifact = a
	}
	j.mu.Unlock()
	close(j.done)
}

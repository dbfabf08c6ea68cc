package dispatch

import (
	"context"
	"time"

	"github.com/GriffinCanCode/speakerline/internal/audio"
	apperr "github.com/GriffinCanCode/speakerline/internal/errors"
	"github.com/GriffinCanCode/speakerline/internal/orchestrator/chunker"
	"github.com/GriffinCanCode/speakerline/internal/orchestrator/transcript"
)

// Task is one chunk of one speaker's audio awaiting transcription.
type Task struct {
	ID          string
	SpeakerKey  string
	Samples     []float32
	SampleRate  int
	StartTime   time.Time
	EndTime     time.Time
	EnqueueTime time.Time
	Attempt     int // 1-based number of the last engine call made
	Reason      chunker.Reason
}

// Duration is the audio length of the task.
func (t Task) Duration() time.Duration {
	return audio.SamplesDuration(len(t.Samples), t.SampleRate)
}

// Completion reports the outcome of a task. Exactly one is delivered per
// accepted task.
type Completion struct {
	Task     Task
	Fragment transcript.Fragment
	Err      error
}

// Future resolves once its task completes, fails or is cancelled.
type Future struct {
	done chan struct{}
	frag transcript.Fragment
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(frag transcript.Fragment, err error) {
	f.frag, f.err = frag, err
	close(f.done)
}

// Done is closed when the outcome is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task resolves or ctx ends.
func (f *Future) Wait(ctx context.Context) (transcript.Fragment, error) {
	select {
	case <-f.done:
		return f.frag, f.err
	case <-ctx.Done():
		return transcript.Fragment{}, apperr.Wrap(ctx.Err(), apperr.Cancelled, "wait aborted")
	}
}

package orchestrator

import (
	"github.com/GriffinCanCode/speakerline/internal/audio"
	"github.com/GriffinCanCode/speakerline/internal/orchestrator/dispatch"
)

// event is everything the coordinator loop reacts to.
type event interface {
	isEvent()
}

type audioReceived struct {
	ev audio.Event
}

// silenceElapsed fires when a speaker's debounce timer expires. gen lets the
// loop ignore timers superseded by later audio.
type silenceElapsed struct {
	key string
	gen uint64
}

type admissionRecheck struct{}

type sweepTick struct{}

type taskCompleted struct {
	c dispatch.Completion
}

type finalizeRequest struct {
	done chan struct{}
}

type snapshotRequest struct {
	reply chan Snapshot
}

type engineChanged struct{}

func (audioReceived) isEvent()    {}
func (silenceElapsed) isEvent()   {}
func (admissionRecheck) isEvent() {}
func (sweepTick) isEvent()        {}
func (taskCompleted) isEvent()    {}
func (finalizeRequest) isEvent()  {}
func (snapshotRequest) isEvent()  {}
func (engineChanged) isEvent()    {}

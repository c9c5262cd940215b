package pipeline

import (
	"github.com/Electron910/Vocalis/core/events"
	"go.opentelemetry.io/otel/attribute"
)

const (
	interruptReasonRequested = "requested"
	interruptReasonBargeIn   = "barge-in"
)

// Interrupt cancels playback: the rendering chunk is stopped, the queue is
// purged, and the interrupt signal callback fires so the remote side can
// cancel any synthesis still queued. Calling it with nothing playing is safe
// and only resets state.
func (p *Pipeline) Interrupt() {
	if p == nil {
		return
	}

	p.loop.Post(func() { p.interruptNow(interruptReasonRequested) })
}

// interruptNow runs on the loop. The interrupted flag is the authoritative
// signal the completion handler checks, so it is raised before the queue
// purge and the hardware stop. Raising it twice collapses into one
// interruption.
func (p *Pipeline) interruptNow(reason string) {
	if !p.interrupted.CompareAndSwap(false, true) {
		return
	}

	_, span := tracer.Start(p.baseContext, "interrupt playback")
	span.SetAttributes(attribute.String("interrupt.reason", reason))
	defer span.End()

	p.scheduler.queue = p.scheduler.queue[:0]
	p.scheduler.queueLen.Store(0)
	p.scheduler.rendering = false
	p.scheduler.renderingSpeech = false
	p.sink.Clear()

	session := p.scheduler.session
	p.scheduler.session = ""

	previous := p.setState(StateInterrupted)
	p.publish(events.NewPlaybackStop(session, previous.String(), reason))

	if p.startOptions.onInterruptSignal != nil {
		p.startOptions.onInterruptSignal()
	}

	p.loop.Post(p.settleInterrupt)
}

// settleInterrupt clears the pending-interrupt flag once any in-flight
// completion has had its turn, then returns the pipeline to Inactive.
func (p *Pipeline) settleInterrupt() {
	p.interrupted.Store(false)
	if p.state.current == StateInterrupted {
		p.setState(StateInactive)
	}
}

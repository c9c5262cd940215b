package main

import (
	"sync"
	"time"
)

// maxFollowupTier is the last escalation step; tiers map to the backend's
// increasingly direct follow-up prompts.
const maxFollowupTier = 2

// followupTimer requests a follow-up after the conversation has idled for the
// configured delay, escalating the tier on each one until the user answers or
// the tiers run out. Reset puts it back to tier zero and restarts the
// countdown.
type followupTimer struct {
	delay time.Duration
	fire  func(tier int) bool

	mu    sync.Mutex
	timer *time.Timer
	tier  int
	// generation invalidates an in-flight fire when Reset lands while it
	// runs; comparing tiers alone cannot tell a reset apart from the first
	// round, both sit at zero.
	generation int
	stopped    bool
}

// newFollowupTimer builds a timer that calls fire when the delay elapses. A
// zero delay disables it entirely. The timer stays idle until the first
// Reset.
func newFollowupTimer(delay time.Duration, fire func(tier int) bool) *followupTimer {
	return &followupTimer{delay: delay, fire: fire}
}

// Reset restarts the countdown at tier zero. Called whenever the conversation
// shows signs of life.
func (t *followupTimer) Reset() {
	if t == nil || t.delay <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}

	t.tier = 0
	t.generation++
	t.schedule()
}

// Stop cancels any pending countdown permanently.
func (t *followupTimer) Stop() {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// schedule arms the timer for one delay. Caller holds the mutex.
func (t *followupTimer) schedule() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.delay, t.elapsed)
}

func (t *followupTimer) elapsed() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	tier, generation := t.tier, t.generation
	t.mu.Unlock()

	// fire runs unlocked; it calls back into the session, which may Reset.
	sent := t.fire(tier)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.generation != generation {
		return
	}

	if sent {
		t.tier++
	}
	if t.tier <= maxFollowupTier {
		t.schedule()
	}
}

package uitask

import (
	"time"

	"github.com/atomphone/firmware/pkg/hal"
)

// Debounce/gesture timing constants per spec §4.2.
const (
	PollInterval    = 40 * time.Millisecond
	ShortPressMax   = 650 * time.Millisecond
	DoubleTapWindow = 400 * time.Millisecond
)

// Gesture is one classified button event, spec §4.2's three gesture kinds.
type Gesture interface{ isGesture() }

// Edge is emitted on every button transition, for PTT use while
// Established.
type Edge struct{ Pressed bool }

// Short is a press+release whose held time is ≤ ShortPressMax.
type Short struct{}

// DoubleTap is two Short presses with a between-release gap ≤
// DoubleTapWindow.
type DoubleTap struct{}

func (Edge) isGesture()       {}
func (Short) isGesture()      {}
func (DoubleTap) isGesture()  {}

// GestureClassifier tracks button state transitions at the fixed poll
// cadence and classifies them into Edge/Short/DoubleTap gestures, per
// spec §4.2. Longer holds than ShortPressMax are discarded (cancel
// gesture) with no Short emitted.
type GestureClassifier struct {
	lastState   hal.ButtonState
	pressedAt   time.Time
	lastShortAt time.Time
	haveLastShort bool
}

// NewGestureClassifier seeds the classifier with the button's current
// state so the first poll does not synthesize a spurious edge.
func NewGestureClassifier(initial hal.ButtonState) *GestureClassifier {
	return &GestureClassifier{lastState: initial}
}

// Poll feeds one sampled button state at time now and returns the
// gestures it produces, in order (an Edge, optionally followed by a Short
// or DoubleTap on release).
func (g *GestureClassifier) Poll(state hal.ButtonState, now time.Time) []Gesture {
	if state == g.lastState {
		return nil
	}
	g.lastState = state

	var out []Gesture
	out = append(out, Edge{Pressed: state == hal.Pressed})

	if state == hal.Pressed {
		g.pressedAt = now
		return out
	}

	// Released: classify against the press that just ended.
	held := now.Sub(g.pressedAt)
	if held > ShortPressMax {
		return out // cancel gesture: no Short/DoubleTap
	}

	out = append(out, Short{})

	if g.haveLastShort && now.Sub(g.lastShortAt) <= DoubleTapWindow {
		out = append(out, DoubleTap{})
		g.haveLastShort = false
	} else {
		g.haveLastShort = true
		g.lastShortAt = now
	}

	return out
}

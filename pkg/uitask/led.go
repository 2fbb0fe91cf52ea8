package uitask

import (
	"time"

	"github.com/atomphone/firmware/pkg/calldata"
	"github.com/atomphone/firmware/pkg/hal"
)

// ledPattern is one row of spec §4.2's LED table: a color and a blink
// period (zero meaning steady-on).
type ledPattern struct {
	color  hal.LedState
	period time.Duration
}

var (
	colorGreen  = hal.LedColor(0, 255, 0)
	colorRed    = hal.LedColor(255, 0, 0)
	colorYellow = hal.LedColor(255, 255, 0)
	colorBlue   = hal.LedColor(0, 0, 255)
)

func patternFor(state calldata.DialogState, registered bool) ledPattern {
	switch state {
	case calldata.DialogRinging, calldata.DialogInviting:
		return ledPattern{color: colorYellow, period: 300 * time.Millisecond}
	case calldata.DialogEstablished:
		return ledPattern{color: colorBlue, period: 0}
	default: // Idle, Terminated
		if registered {
			return ledPattern{color: colorGreen, period: 0}
		}
		return ledPattern{color: colorRed, period: 800 * time.Millisecond}
	}
}

// LedController drives the UI device's indicator from the current
// phone/registration state, toggling on/off at each tick of the pattern's
// blink period and writing only when the computed target differs from the
// last written value, per spec §4.2.
type LedController struct {
	device hal.UiDevice

	dialogState calldata.DialogState
	registered  bool

	pattern    ledPattern
	lastTick   time.Time
	on         bool
	lastWritten hal.LedState
	haveWritten bool
}

// NewLedController constructs a controller bound to the UI task's device.
func NewLedController(device hal.UiDevice) *LedController {
	return &LedController{device: device}
}

// SetDialogState updates the phone state driving the pattern.
func (c *LedController) SetDialogState(s calldata.DialogState) {
	c.dialogState = s
}

// SetRegistered updates the registration state driving the pattern.
func (c *LedController) SetRegistered(r bool) {
	c.registered = r
}

// Tick recomputes the current pattern and, on the blink schedule, writes
// to the device only when the target state changed.
func (c *LedController) Tick(now time.Time) error {
	pattern := patternFor(c.dialogState, c.registered)
	if pattern != c.pattern {
		c.pattern = pattern
		c.on = true
		c.lastTick = now
		return c.write(pattern.color)
	}

	if pattern.period == 0 {
		return c.write(pattern.color)
	}

	if now.Sub(c.lastTick) >= pattern.period {
		c.lastTick = now
		c.on = !c.on
	}

	if c.on {
		return c.write(pattern.color)
	}
	return c.write(hal.LedOff)
}

func (c *LedController) write(target hal.LedState) error {
	if c.haveWritten && c.lastWritten == target {
		return nil
	}
	if err := c.device.SetLedState(target); err != nil {
		return err
	}
	c.lastWritten = target
	c.haveWritten = true
	return nil
}

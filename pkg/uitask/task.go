package uitask

import (
	"time"

	"github.com/atomphone/firmware/pkg/calldata"
	"github.com/atomphone/firmware/pkg/hal"
	"github.com/atomphone/firmware/pkg/logging"
	"github.com/atomphone/firmware/pkg/messages"
)

// AutoAnswer, when true, arms a 3s auto-answer timer on entering Ringing.
// It is an ordinary package variable, false by default; no build tag or
// build profile sets it or restricts who may set it.
var AutoAnswer = false

const autoAnswerDelay = 3 * time.Second

// Engine is the UI task: it owns the UiDevice exclusively, polls the
// button at a fixed cadence, classifies gestures, drives the LED pattern
// state machine, and forwards PTT/answer/hangup gestures to the SIP task
// as SipCommand. Grounded on original_source/app/src/tasks/ui.rs's
// poll-commands/poll-button/poll-auto-answer loop shape.
type Engine struct {
	device hal.UiDevice
	log    logging.Logger

	cmdCh <-chan messages.UiCommand
	sipCh chan<- messages.SipCommand

	gestures *GestureClassifier
	led      *LedController

	dialogState       calldata.DialogState
	autoAnswerDeadline time.Time
	autoAnswerArmed    bool
}

// NewEngine constructs a UI task engine bound to an already-acquired
// UiDevice.
func NewEngine(device hal.UiDevice, cmdCh <-chan messages.UiCommand, sipCh chan<- messages.SipCommand) *Engine {
	initial, _ := device.ReadButtonState()
	return &Engine{
		device:   device,
		log:      logging.New("ui"),
		cmdCh:    cmdCh,
		sipCh:    sipCh,
		gestures: NewGestureClassifier(initial),
		led:      NewLedController(device),
	}
}

// Run drives the task loop at the fixed 40ms poll cadence until stopCh is
// closed.
func (e *Engine) Run(stopCh <-chan struct{}) {
	e.log.Info("ui task started")
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			e.log.Info("ui task stopping")
			return
		case cmd := <-e.cmdCh:
			e.handleCommand(cmd)
		case <-ticker.C:
			now := time.Now()
			e.pollButton(now)
			e.pollAutoAnswer(now)
			if err := e.led.Tick(now); err != nil {
				e.log.Warn("led write failed", logging.F("err", err.Error()))
			}
		}
	}
}

func (e *Engine) handleCommand(cmd messages.UiCommand) {
	switch c := cmd.(type) {
	case messages.DialogStateChanged:
		e.dialogState = c.State
		e.led.SetDialogState(c.State)
		if c.State == calldata.DialogRinging {
			e.armAutoAnswer()
		} else {
			e.autoAnswerArmed = false
		}
	case messages.RegistrationStateChanged:
		e.led.SetRegistered(c.State == calldata.RegRegistered)
	case messages.SetLed:
		// Direct LED override is not exercised by this stack's own
		// commands but is accepted for forward compatibility with the
		// UiCommand sum type.
	}
}

func (e *Engine) armAutoAnswer() {
	if !AutoAnswer || e.autoAnswerArmed {
		return
	}
	e.autoAnswerArmed = true
	e.autoAnswerDeadline = time.Now().Add(autoAnswerDelay)
	e.log.Info("auto-answer armed")
}

func (e *Engine) pollAutoAnswer(now time.Time) {
	if !e.autoAnswerArmed {
		return
	}
	if now.Before(e.autoAnswerDeadline) {
		return
	}
	e.autoAnswerArmed = false
	e.log.Info("auto-answer timeout reached, simulating short press")
	e.sipCh <- messages.ShortPress{}
}

func (e *Engine) pollButton(now time.Time) {
	state, err := e.device.ReadButtonState()
	if err != nil {
		e.log.Warn("button read failed", logging.F("err", err.Error()))
		return
	}

	for _, g := range e.gestures.Poll(state, now) {
		switch gg := g.(type) {
		case Edge:
			e.sipCh <- messages.ButtonEdge{State: gg.Pressed}
		case Short:
			e.sipCh <- messages.ShortPress{}
		case DoubleTap:
			e.sipCh <- messages.DoubleTap{}
		}
	}
}

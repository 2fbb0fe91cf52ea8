package audiopipe

import (
	"encoding/binary"
	"time"

	"github.com/atomphone/firmware/pkg/calldata"
	"github.com/atomphone/firmware/pkg/hal"
	"github.com/atomphone/firmware/pkg/logging"
	"github.com/atomphone/firmware/pkg/messages"
	"github.com/atomphone/firmware/pkg/metrics"
	"github.com/atomphone/firmware/pkg/rtpstream"
)

const (
	playoutPeriod = 20 * time.Millisecond
	capturePeriod = 20 * time.Millisecond
	micFrame16k   = 320 // 20ms @ 16kHz
	ioTimeout     = 25 * time.Millisecond
)

// engineKind is the tagged audio engine state of spec §3: Off, Listen, or
// Talk. Replacing boolean "running"/"mode" flags with one variant per
// spec §9's design note eliminates the "mode says Listen but speaker is
// not running" class of bug seen in earlier source revisions.
type engineKind int

const (
	engineOff engineKind = iota
	engineListen
	engineTalk
)

// Engine is the audio task: it owns the AudioDevice exclusively, drains
// the jitter-buffered remote stream to the speaker while Listening, and
// captures the microphone to MediaOut while Talking. Desired engine state
// is a pure function of (dialog state, PTT mode); switching is always
// stop-then-start. Grounded on original_source/app/src/tasks/audio.rs for
// the command-drain/playback/capture loop shape, reworked with the
// polyphase/AGC/downsample chain from dsp.rs and agc.rs wired in.
type Engine struct {
	device hal.AudioDevice
	log    logging.Logger

	cmdCh     <-chan messages.AudioCommand
	mediaInCh <-chan messages.MediaIn
	mediaOutCh chan<- messages.MediaOut

	jitter *rtpstream.Buffer
	up     Upsampler
	agc    *AGC

	dialogState calldata.DialogState
	mode        messages.AudioMode

	current      engineKind
	nextPlayout  time.Time
	nextCapture  time.Time
}

// NewEngine constructs an audio task engine bound to an already-acquired
// AudioDevice, per spec §3's single-owner-per-resource rule.
func NewEngine(device hal.AudioDevice, cmdCh <-chan messages.AudioCommand, mediaInCh <-chan messages.MediaIn, mediaOutCh chan<- messages.MediaOut) *Engine {
	return &Engine{
		device:     device,
		log:        logging.New("audio"),
		cmdCh:      cmdCh,
		mediaInCh:  mediaInCh,
		mediaOutCh: mediaOutCh,
		jitter:     rtpstream.NewBuffer(),
		agc:        NewAGC(),
		mode:       messages.ModeListen,
		current:    engineOff,
	}
}

// Run drives the task loop at a 10ms poll cadence until stopCh is closed,
// matching original_source's thread::sleep(10ms) tail.
func (e *Engine) Run(stopCh <-chan struct{}) {
	e.log.Info("audio task started")
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			e.log.Info("audio task stopping")
			return
		case cmd := <-e.cmdCh:
			e.handleCommand(cmd)
		case in := <-e.mediaInCh:
			e.handleMediaIn(in)
		case <-ticker.C:
			now := time.Now()
			e.applyDesiredEngine(now)
			e.tick(now)
		}
	}
}

func (e *Engine) handleCommand(cmd messages.AudioCommand) {
	switch c := cmd.(type) {
	case messages.SetMode:
		e.mode = c.Mode
	case messages.DialogStateChanged:
		e.dialogState = c.State
	case messages.RegistrationStateChanged:
		// Registration state does not affect the audio engine directly.
	}
}

func (e *Engine) handleMediaIn(in messages.MediaIn) {
	decoded := rtpstream.DecodeFrame(in.Payload)
	var frame [rtpstream.FrameSamples]int16
	copy(frame[:], decoded)
	e.jitter.Push(in.SequenceNumber, frame)
	metrics.JitterBufferFill.Set(float64(e.jitter.Len()))
}

// desiredEngine is a pure function of (dialog state, PTT mode), per
// spec §3.
func (e *Engine) desiredEngine() engineKind {
	if e.dialogState != calldata.DialogEstablished {
		return engineOff
	}
	if e.mode == messages.ModeTalk {
		return engineTalk
	}
	return engineListen
}

func (e *Engine) applyDesiredEngine(now time.Time) {
	desired := e.desiredEngine()
	if desired == e.current {
		return
	}
	e.stop(e.current)
	e.start(desired, now)
	e.current = desired
}

func (e *Engine) stop(kind engineKind) {
	switch kind {
	case engineListen:
		_ = e.device.TxDisable()
	case engineTalk:
		_ = e.device.StopCurrent()
	}
}

func (e *Engine) start(kind engineKind, now time.Time) {
	switch kind {
	case engineListen:
		_ = e.device.EnsureTxReady()
		_ = e.device.TxEnable()
		e.nextPlayout = now.Add(playoutPeriod)
	case engineTalk:
		_ = e.device.EnsureRxReady()
		e.nextCapture = now.Add(capturePeriod)
	}
}

// tick advances whichever engine is current. Deadlines are always
// advanced by adding the fixed period to the previous deadline, never to
// "now", per spec §9's timer-precision design note.
func (e *Engine) tick(now time.Time) {
	switch e.current {
	case engineListen:
		for !now.Before(e.nextPlayout) {
			e.playoutOnce()
			e.nextPlayout = e.nextPlayout.Add(playoutPeriod)
		}
	case engineTalk:
		for !now.Before(e.nextCapture) {
			e.captureOnce()
			e.nextCapture = e.nextCapture.Add(capturePeriod)
		}
	}
}

func (e *Engine) playoutOnce() {
	frame := e.jitter.Pop()
	out48k := e.up.ProcessFrame(frame)

	buf := make([]byte, len(out48k)*2)
	for i, s := range out48k {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	if _, err := e.device.Write(buf, ioTimeout); err != nil {
		e.log.Warn("audio playout write failed", logging.F("err", err.Error()))
	}
}

func (e *Engine) captureOnce() {
	mic16k := make([]int16, micFrame16k)
	n, err := e.device.Read(mic16k, ioTimeout)
	if err != nil {
		e.log.Warn("audio capture read failed", logging.F("err", err.Error()))
		return
	}
	mic16k = mic16k[:n]

	pcm8k := DownsamplePairAverage(mic16k)
	if len(pcm8k) < rtpstream.FrameSamples {
		padded := make([]int16, rtpstream.FrameSamples)
		copy(padded, pcm8k)
		pcm8k = padded
	}
	pcm8k = pcm8k[:rtpstream.FrameSamples]

	e.agc.ProcessFrame(pcm8k)
	metrics.AGCGainQ12.Set(float64(e.agc.gainQ12))

	var out messages.MediaOut
	copy(out.Samples[:], pcm8k)

	select {
	case e.mediaOutCh <- out:
	default:
		// Drop the frame rather than block the capture cadence.
	}
}

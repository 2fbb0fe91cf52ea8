// Package hal declares the hardware abstraction boundary that the real-time
// call engine is built against. Wi-Fi association, codec register bring-up,
// the I2S/PDM driver, the RMT-driven LED, and GPIO button reads all live on
// the far side of this interface and are out of scope for this module — see
// spec §1 and §6. Everything in this package is a contract, plus (in
// sim.go) an in-memory implementation used by tests.
package hal

import (
	"errors"
	"net"
	"time"
)

// ErrAlreadyTaken is returned by a Device's Get*Device/GetIPAddr methods on
// the second call; each resource is handed out exactly once.
var ErrAlreadyTaken = errors.New("hal: resource already taken")

// WifiConfig carries the credentials needed to associate. Username is only
// set for WPA2-Enterprise networks.
type WifiConfig struct {
	SSID     string
	Password string
	Username string
}

// Device represents the board-level handle returned once Wi-Fi association
// has completed and an IPv4 address has been assigned. AudioDevice,
// UiDevice, and the local IP are each taken exactly once by their owning
// task, matching the single-owner-per-resource rule in spec §5.
type Device interface {
	GetAudioDevice() (AudioDevice, error)
	GetUiDevice() (UiDevice, error)
	GetIPAddr() (net.IP, error)
}

// InitFunc is a board bring-up: it blocks until Wi-Fi association completes
// and an IPv4 address has been assigned, then returns the board handle. A real implementation lives
// entirely outside this module.
type InitFunc func(cfg WifiConfig) (Device, error)

// ButtonState is the debounced physical state of the single hardware
// button.
type ButtonState int

const (
	Released ButtonState = iota
	Pressed
)

func (s ButtonState) String() string {
	if s == Pressed {
		return "Pressed"
	}
	return "Released"
}

// LedState is either off or a solid RGB color; blinking is implemented by
// the UI task toggling between Off and a Color at a pattern-specific period
// (spec §4.2).
type LedState struct {
	On bool
	R  uint8
	G  uint8
	B  uint8
}

// LedOff is the off state.
var LedOff = LedState{}

// LedColor builds a solid-color on state.
func LedColor(r, g, b uint8) LedState {
	return LedState{On: true, R: r, G: g, B: b}
}

// UiDevice owns the single physical button and the RGB indicator.
type UiDevice interface {
	ReadButtonState() (ButtonState, error)
	SetLedState(LedState) error
}

// AudioDevice owns the PDM microphone and I2S DAC. Write and Read take a
// per-call timeout rather than blocking indefinitely, matching spec §5's
// "small per-call timeouts (4-25ms)" suspension-point rule.
type AudioDevice interface {
	EnsureTxReady() error
	TxEnable() error
	TxDisable() error
	PreloadData(frame []byte) error
	Write(frame []byte, timeout time.Duration) (int, error)

	EnsureRxReady() error
	Read(samples []int16, timeout time.Duration) (int, error)

	StopCurrent() error
	DropTx() error
}

// RandomU32 returns a fresh random 32-bit value, used for SSRC generation
// and SIP identifiers that do not need to be cryptographically strong.
type RandomU32 func() uint32

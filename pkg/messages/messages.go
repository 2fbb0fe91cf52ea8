// Package messages defines the typed commands and events exchanged between
// tasks over the single-producer/single-consumer channels the supervisor
// wires up (spec §3 "Ownership", §4.1, §5). Each command family is a sealed
// interface implemented by small payload structs, the idiomatic Go stand-in
// for the Rust source's payload-carrying enum variants.
package messages

import (
	"github.com/atomphone/firmware/pkg/calldata"
)

// SipCommand is sent from the UI task to the SIP task.
type SipCommand interface{ isSipCommand() }

type ShortPress struct{}
type DoubleTap struct{}
type ButtonEdge struct{ State bool } // true = pressed, false = released

func (ShortPress) isSipCommand() {}
func (DoubleTap) isSipCommand()  {}
func (ButtonEdge) isSipCommand() {}

// AudioCommand is sent from the SIP task to the Audio task.
type AudioCommand interface{ isAudioCommand() }

type AudioMode int

const (
	ModeListen AudioMode = iota
	ModeTalk
)

type SetMode struct{ Mode AudioMode }
type DialogStateChanged struct{ State calldata.DialogState }
type RegistrationStateChanged struct{ State calldata.RegistrationState }

func (SetMode) isAudioCommand()                  {}
func (DialogStateChanged) isAudioCommand()       {}
func (RegistrationStateChanged) isAudioCommand() {}

// RtpCommand is sent from the SIP task to the RTP task.
type RtpCommand interface{ isRtpCommand() }

type StartStream struct {
	RemoteIP      string
	RemotePort    uint16
	PayloadType   uint8
	ExpectedSSRC  *uint32 // nil: learn on first accepted packet
}
type RepointStream struct {
	RemoteIP    string
	RemotePort  uint16
	PayloadType uint8
}
type StopStream struct{}

func (StartStream) isRtpCommand()   {}
func (RepointStream) isRtpCommand() {}
func (StopStream) isRtpCommand()    {}

// UiCommand is sent from the SIP task to the UI task.
type UiCommand interface{ isUiCommand() }

func (DialogStateChanged) isUiCommand()       {}
func (RegistrationStateChanged) isUiCommand() {}

type SetLed struct{ State string } // mirrors spec's UiCommand::SetLed escape hatch for direct LED control

func (SetLed) isUiCommand() {}

// MediaIn carries one accepted, decoded-ready inbound RTP packet from the
// RTP task to the Audio task.
type MediaIn struct {
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	PayloadType    uint8
	Payload        []byte // still mu-law encoded; Audio decodes it
}

// MediaOut carries one captured 8kHz PCM frame (160 samples) from the
// Audio task to the RTP task.
type MediaOut struct {
	Samples [160]int16
}

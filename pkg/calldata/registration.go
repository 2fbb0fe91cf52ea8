package calldata

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/icholy/digest"
	"github.com/looplab/fsm"
)

// RegistrationState is the tagged state of REGISTER refresh, per spec §3.
type RegistrationState int

const (
	RegUnregistered RegistrationState = iota
	RegRegistering
	RegRegistered
	RegError
)

func (s RegistrationState) String() string {
	switch s {
	case RegUnregistered:
		return "Unregistered"
	case RegRegistering:
		return "Registering"
	case RegRegistered:
		return "Registered"
	case RegError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Registration tracks everything the SIP task needs across REGISTER
// refresh cycles: the monotonic CSeq counter, the endpoint-instance
// Call-ID, stable From/To tags, a Via branch counter, the last granted
// Expires, and the last digest challenge received (if any).
type Registration struct {
	fsm *fsm.FSM

	CallID    string
	FromTag   string
	ToTag     string
	CSeq      uint32
	branchSeq uint32

	LastExpires int
	Challenge   *digest.Challenge
}

// NewRegistration builds a Registration seeded with a fresh Call-ID and
// From-tag, stable for the lifetime of the process per spec §4.3.
func NewRegistration() *Registration {
	r := &Registration{
		CallID:  uuid.New().String(),
		FromTag: shortToken(),
		ToTag:   shortToken(),
		CSeq:    1,
	}
	r.fsm = fsm.NewFSM(
		RegUnregistered.String(),
		fsm.Events{
			{Name: "register", Src: []string{RegUnregistered.String(), RegError.String()}, Dst: RegRegistering.String()},
			{Name: "registered", Src: []string{RegRegistering.String(), RegRegistered.String()}, Dst: RegRegistered.String()},
			{Name: "challenge", Src: []string{RegRegistering.String()}, Dst: RegUnregistered.String()},
			{Name: "fail", Src: []string{RegRegistering.String()}, Dst: RegError.String()},
			{Name: "timeout", Src: []string{RegRegistering.String()}, Dst: RegUnregistered.String()},
			{Name: "reset", Src: []string{RegRegistered.String(), RegError.String(), RegUnregistered.String()}, Dst: RegUnregistered.String()},
		},
		fsm.Callbacks{},
	)
	return r
}

// State returns the current RegistrationState.
func (r *Registration) State() RegistrationState {
	switch r.fsm.Current() {
	case RegRegistering.String():
		return RegRegistering
	case RegRegistered.String():
		return RegRegistered
	case RegError.String():
		return RegError
	default:
		return RegUnregistered
	}
}

// Transition fires the named event on the registration FSM.
func (r *Registration) Transition(event string) error {
	if err := r.fsm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("calldata: registration transition %q from %s: %w", event, r.fsm.Current(), err)
	}
	return nil
}

// NextCSeq returns the CSeq to use on the next REGISTER and then advances
// the counter by one.
func (r *Registration) NextCSeq() uint32 {
	v := r.CSeq
	r.CSeq++
	return v
}

// NextBranch returns a fresh magic-cookie-prefixed Via branch parameter,
// unique per request per spec §4.3.
func (r *Registration) NextBranch() string {
	r.branchSeq++
	return fmt.Sprintf("z9hG4bK%s.%d", r.CallID[:8], r.branchSeq)
}

func shortToken() string {
	id := uuid.New().String()
	// Strip dashes so the tag is a clean SIP token.
	out := make([]byte, 0, len(id))
	for _, c := range id {
		if c != '-' {
			out = append(out, byte(c))
		}
	}
	return string(out)
}

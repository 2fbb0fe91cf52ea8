// Package calldata holds the shared data model described in spec §3: the
// dialog and registration state machines, the call context, the dialog
// identity triple, and the INVITE server transaction record. None of these
// types own a socket or a device — they are pure data, shared across tasks
// strictly by value (spec §3 "Ownership").
package calldata

import (
	"context"
	"fmt"

	"github.com/atomphone/firmware/pkg/sipmsg"
	"github.com/looplab/fsm"
)

// DialogState is the tagged state of the single active dialog. Spec §3
// lists it as Idle, Inviting, Ringing{role,id,invite}, Established{role,id},
// Terminated — the payload fields live alongside the state on Dialog rather
// than inside the enum, since Go has no payload-carrying enum variants.
type DialogState int

const (
	DialogIdle DialogState = iota
	DialogInviting
	DialogRinging
	DialogEstablished
	DialogTerminated
)

func (s DialogState) String() string {
	switch s {
	case DialogIdle:
		return "Idle"
	case DialogInviting:
		return "Inviting"
	case DialogRinging:
		return "Ringing"
	case DialogEstablished:
		return "Established"
	case DialogTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Role is UAC (we sent the INVITE) or UAS (we received it).
type Role int

const (
	RoleUAC Role = iota
	RoleUAS
)

func (r Role) String() string {
	if r == RoleUAS {
		return "UAS"
	}
	return "UAC"
}

// DialogID is the (Call-ID, local tag, remote tag) triple that identifies a
// dialog per spec §3/§9. LocalTag may be empty until a response carrying a
// To-tag commits it.
type DialogID struct {
	CallID    string
	LocalTag  string
	RemoteTag string
}

// MatchesInDialog implements the §9 dialog-identity rule: a request is
// in-dialog if its Call-ID and remote tag match, and, when our local tag is
// already set, its "to" tag (as seen from the peer, i.e. our local tag) also
// matches. An empty local tag accepts on Call-ID + remote-tag alone; a set
// local tag that does not match the request's to-tag is refused.
func (id DialogID) MatchesInDialog(callID, fromTag, toTag string) bool {
	if id.CallID != callID || id.RemoteTag != fromTag {
		return false
	}
	if id.LocalTag == "" {
		return true
	}
	return id.LocalTag == toTag
}

// CallContext holds everything about the single active call: the INVITE
// that created it (retained verbatim so responses can be built against it),
// the parsed remote SDP and the local SDP we advertised, an optional ring
// deadline, and the remote transport address.
type CallContext struct {
	Invite        *sipmsg.Request
	RemoteSDPRaw  []byte
	LocalSDPRaw   []byte
	RemoteRTPIP   string
	RemoteRTPPort uint16
	RemotePayload uint8
	RingDeadline  *Deadline
	RemoteAddr    string // host:port of the peer as seen on the wire
}

// Deadline is a monotonic instant wrapper; calldata never calls time.Now
// itself so callers (tasks) control the clock, including in tests.
type Deadline struct {
	At int64 // UnixNano, monotonic-safe because it's always derived from time.Now().UnixNano() by the caller
}

// Dialog wraps the FSM plus the payload fields each state variant carries
// in spec §3.
type Dialog struct {
	fsm *fsm.FSM

	Role Role
	ID   DialogID
	Call *CallContext

	cseq       uint32
	tagCounter uint32
}

// NewDialog builds a Dialog in the Idle state, wired with the transition
// table from spec §3/§4.3: Idle -> Inviting (UAC) or Idle -> Ringing (UAS),
// Ringing -> Established, any non-terminal -> Terminated.
func NewDialog() *Dialog {
	d := &Dialog{tagCounter: 1}
	d.fsm = fsm.NewFSM(
		DialogIdle.String(),
		fsm.Events{
			{Name: "invite", Src: []string{DialogIdle.String(), DialogTerminated.String()}, Dst: DialogInviting.String()},
			{Name: "ring", Src: []string{DialogIdle.String(), DialogTerminated.String(), DialogInviting.String()}, Dst: DialogRinging.String()},
			{Name: "establish", Src: []string{DialogRinging.String(), DialogInviting.String()}, Dst: DialogEstablished.String()},
			{Name: "reinvite", Src: []string{DialogEstablished.String()}, Dst: DialogEstablished.String()},
			{Name: "terminate", Src: []string{DialogIdle.String(), DialogInviting.String(), DialogRinging.String(), DialogEstablished.String(), DialogTerminated.String()}, Dst: DialogTerminated.String()},
			{Name: "idle", Src: []string{DialogTerminated.String(), DialogIdle.String()}, Dst: DialogIdle.String()},
		},
		fsm.Callbacks{},
	)
	return d
}

// State returns the current DialogState.
func (d *Dialog) State() DialogState {
	return parseDialogState(d.fsm.Current())
}

// Transition fires the named event against the underlying FSM. Callers
// (the SIP task) are the only writers of Dialog; spec §5 makes the SIP task
// the single authority for call-state broadcasts.
func (d *Dialog) Transition(event string) error {
	if err := d.fsm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("calldata: dialog transition %q from %s: %w", event, d.fsm.Current(), err)
	}
	return nil
}

// Reset returns the dialog to Idle and clears its payload, for reuse across
// calls without reallocating the FSM.
func (d *Dialog) Reset() {
	d.fsm.SetState(DialogIdle.String())
	d.Role = RoleUAC
	d.ID = DialogID{}
	d.Call = nil
	d.cseq = 0
}

// NextCSeq increments and returns the CSeq to use on the dialog's next
// self-originated request (BYE), mirroring the original's per-dialog
// cseq counter (distinct from the registration's own CSeq counter).
func (d *Dialog) NextCSeq() uint32 {
	d.cseq++
	return d.cseq
}

// AllocateTag returns a fresh local tag, per spec §3/§9's "local tag may
// be empty until a response commits it" — the first call for a given
// dialog should be stored back onto d.ID.LocalTag by the caller.
func (d *Dialog) AllocateTag() string {
	tag := fmt.Sprintf("dlg%x", d.tagCounter)
	d.tagCounter++
	return tag
}

func parseDialogState(s string) DialogState {
	switch s {
	case DialogIdle.String():
		return DialogIdle
	case DialogInviting.String():
		return DialogInviting
	case DialogRinging.String():
		return DialogRinging
	case DialogEstablished.String():
		return DialogEstablished
	case DialogTerminated.String():
		return DialogTerminated
	default:
		return DialogIdle
	}
}

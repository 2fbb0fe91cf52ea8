package calldata

import (
	"fmt"
	"time"

	"github.com/atomphone/firmware/pkg/sipmsg"
)

// TxState is the INVITE server transaction state per spec §4.3.
type TxState int

const (
	TxProceeding TxState = iota
	TxCompleted
	TxConfirmed
)

func (s TxState) String() string {
	switch s {
	case TxProceeding:
		return "Proceeding"
	case TxCompleted:
		return "Completed"
	case TxConfirmed:
		return "Confirmed"
	default:
		return "Unknown"
	}
}

// TxKey identifies an INVITE server transaction by (Call-ID, CSeq number),
// per spec §3/§4.3.
type TxKey struct {
	CallID string
	CSeq   uint32
}

const (
	timerT1  = 500 * time.Millisecond
	timerT2  = 4 * time.Second
	timerHAt = 64 * timerT1 // 32s abandon timer
	timerI   = 5 * time.Second
)

// ServerTransaction tracks retransmission/abandon/cleanup timers for one
// INVITE server transaction, per spec §4.3. now() is injected by the owner
// (the SIP task) so tests can drive timers without real sleeps.
type ServerTransaction struct {
	Key          TxKey
	RemoteAddr   string
	LastResponse *sipmsg.Response
	State        TxState

	retransmitInterval time.Duration
	nextRetransmit     time.Time
	abandonAt          time.Time
	cleanupAt          time.Time
}

// NewServerTransaction starts a transaction in Proceeding — provisional
// responses arm no timers, matching spec §4.3.
func NewServerTransaction(key TxKey, remoteAddr string) *ServerTransaction {
	return &ServerTransaction{Key: key, RemoteAddr: remoteAddr, State: TxProceeding}
}

// ArmFinal records the final response sent, moves the transaction to
// Completed, and arms Timer G (retransmission, T1 doubling to T2 cap) and
// Timer H (abandon at 64*T1), per spec §4.3.
func (t *ServerTransaction) ArmFinal(resp *sipmsg.Response, now time.Time) {
	t.LastResponse = resp
	t.State = TxCompleted
	t.retransmitInterval = timerT1
	t.nextRetransmit = now.Add(t.retransmitInterval)
	t.abandonAt = now.Add(timerHAt)
}

// ConfirmACK moves a Completed transaction to Confirmed and arms Timer I
// (cleanup), per spec §4.3. No-op if not Completed.
func (t *ServerTransaction) ConfirmACK(now time.Time) {
	if t.State != TxCompleted {
		return
	}
	t.State = TxConfirmed
	t.cleanupAt = now.Add(timerI)
}

// PollRetransmit returns the last response to resend and true if Timer G
// has fired, advancing the timer (doubling, capped at T2) and checking
// Timer H abandonment. Once Timer H passes, no further retransmissions are
// produced and Done reports true.
func (t *ServerTransaction) PollRetransmit(now time.Time) (resp *sipmsg.Response, fire bool) {
	if t.State != TxCompleted {
		return nil, false
	}
	if !now.Before(t.abandonAt) {
		t.State = TxConfirmed // treat abandonment like cleanup-eligible
		return nil, false
	}
	if now.Before(t.nextRetransmit) {
		return nil, false
	}
	t.retransmitInterval *= 2
	if t.retransmitInterval > timerT2 {
		t.retransmitInterval = timerT2
	}
	t.nextRetransmit = now.Add(t.retransmitInterval)
	return t.LastResponse, true
}

// Done reports whether the transaction has reached Timer I cleanup (or
// Timer H abandonment without ever receiving an ACK, which leaves
// cleanupAt unset and is immediately eligible for cleanup).
func (t *ServerTransaction) Done(now time.Time) bool {
	if t.State != TxConfirmed {
		return false
	}
	if t.cleanupAt.IsZero() {
		return true
	}
	return !now.Before(t.cleanupAt)
}

func (k TxKey) String() string {
	return fmt.Sprintf("%s/%d", k.CallID, k.CSeq)
}

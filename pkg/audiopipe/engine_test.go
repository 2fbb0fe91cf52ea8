package audiopipe

import (
	"testing"
	"time"

	"github.com/atomphone/firmware/pkg/calldata"
	"github.com/atomphone/firmware/pkg/hal"
	"github.com/atomphone/firmware/pkg/messages"
	"github.com/stretchr/testify/require"
)

// TestPTTCycleProducesCaptureFramesOnlyWhileTalking implements spec §8
// scenario 4: within an Established call, SetMode(Talk) must start
// producing 160-sample MediaOut frames on the 20ms capture cadence, and
// SetMode(Listen) must stop further frames from appearing.
func TestPTTCycleProducesCaptureFramesOnlyWhileTalking(t *testing.T) {
	device := hal.NewSimAudioDevice()
	cmdCh := make(chan messages.AudioCommand, 4)
	mediaInCh := make(chan messages.MediaIn, 4)
	mediaOutCh := make(chan messages.MediaOut, 8)

	e := NewEngine(device, cmdCh, mediaInCh, mediaOutCh)
	e.handleCommand(messages.DialogStateChanged{State: calldata.DialogEstablished})
	e.handleCommand(messages.SetMode{Mode: messages.ModeTalk})

	t0 := time.Now()
	e.applyDesiredEngine(t0)
	require.Equal(t, engineTalk, e.current)

	e.tick(t0.Add(capturePeriod))
	select {
	case out := <-mediaOutCh:
		require.Len(t, out.Samples, 160)
	default:
		t.Fatal("expected a MediaOut frame after one capture period while Talking")
	}

	e.handleCommand(messages.SetMode{Mode: messages.ModeListen})
	e.applyDesiredEngine(t0.Add(capturePeriod))
	require.Equal(t, engineListen, e.current)

	e.tick(t0.Add(2 * capturePeriod))
	select {
	case <-mediaOutCh:
		t.Fatal("no further MediaOut frames should appear once switched back to Listen")
	default:
	}
}

// TestDesiredEngineIsOffOutsideEstablishedDialog covers the pure-function
// mapping from (dialog state, PTT mode) to engine kind: anything short of
// Established forces Off regardless of the PTT mode in effect.
func TestDesiredEngineIsOffOutsideEstablishedDialog(t *testing.T) {
	device := hal.NewSimAudioDevice()
	e := NewEngine(device, make(chan messages.AudioCommand), make(chan messages.MediaIn), make(chan messages.MediaOut, 1))

	e.handleCommand(messages.SetMode{Mode: messages.ModeTalk})
	require.Equal(t, engineOff, e.desiredEngine())

	e.handleCommand(messages.DialogStateChanged{State: calldata.DialogRinging})
	require.Equal(t, engineOff, e.desiredEngine())

	e.handleCommand(messages.DialogStateChanged{State: calldata.DialogEstablished})
	require.Equal(t, engineTalk, e.desiredEngine())

	e.handleCommand(messages.SetMode{Mode: messages.ModeListen})
	require.Equal(t, engineListen, e.desiredEngine())
}

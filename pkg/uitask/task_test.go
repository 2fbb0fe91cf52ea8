package uitask

import (
	"testing"
	"time"

	"github.com/atomphone/firmware/pkg/hal"
	"github.com/atomphone/firmware/pkg/messages"
	"github.com/stretchr/testify/require"
)

func TestPollButtonEmitsEdgeAndShortPress(t *testing.T) {
	dev := hal.NewSimUiDevice()
	cmdCh := make(chan messages.UiCommand, 4)
	sipCh := make(chan messages.SipCommand, 4)
	e := NewEngine(dev, cmdCh, sipCh)

	t0 := time.Now()
	dev.SetButtonState(hal.Pressed)
	e.pollButton(t0)

	select {
	case cmd := <-sipCh:
		require.Equal(t, messages.ButtonEdge{State: true}, cmd)
	default:
		t.Fatal("expected an edge command")
	}

	dev.SetButtonState(hal.Released)
	e.pollButton(t0.Add(100 * time.Millisecond))

	edge := <-sipCh
	require.Equal(t, messages.ButtonEdge{State: false}, edge)
	short := <-sipCh
	require.Equal(t, messages.ShortPress{}, short)
}

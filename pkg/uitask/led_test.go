package uitask

import (
	"testing"
	"time"

	"github.com/atomphone/firmware/pkg/calldata"
	"github.com/atomphone/firmware/pkg/hal"
	"github.com/stretchr/testify/require"
)

func TestLedSteadyGreenWhenIdleRegistered(t *testing.T) {
	dev := hal.NewSimUiDevice()
	c := NewLedController(dev)
	c.SetDialogState(calldata.DialogIdle)
	c.SetRegistered(true)

	require.NoError(t, c.Tick(time.Now()))
	require.Equal(t, colorGreen, dev.LastLed())
}

func TestLedBlinksRedWhenIdleUnregistered(t *testing.T) {
	dev := hal.NewSimUiDevice()
	c := NewLedController(dev)
	c.SetDialogState(calldata.DialogIdle)
	c.SetRegistered(false)

	t0 := time.Now()
	require.NoError(t, c.Tick(t0))
	require.Equal(t, colorRed, dev.LastLed())

	// Before the 800ms period elapses, no new write.
	before := len(dev.LedLog())
	require.NoError(t, c.Tick(t0.Add(100*time.Millisecond)))
	require.Len(t, dev.LedLog(), before)

	require.NoError(t, c.Tick(t0.Add(900*time.Millisecond)))
	require.Equal(t, hal.LedOff, dev.LastLed())
}

func TestLedYellowWhileRinging(t *testing.T) {
	dev := hal.NewSimUiDevice()
	c := NewLedController(dev)
	c.SetDialogState(calldata.DialogRinging)

	require.NoError(t, c.Tick(time.Now()))
	require.Equal(t, colorYellow, dev.LastLed())
}

func TestLedSteadyBlueWhenEstablished(t *testing.T) {
	dev := hal.NewSimUiDevice()
	c := NewLedController(dev)
	c.SetDialogState(calldata.DialogEstablished)

	require.NoError(t, c.Tick(time.Now()))
	require.Equal(t, colorBlue, dev.LastLed())
}

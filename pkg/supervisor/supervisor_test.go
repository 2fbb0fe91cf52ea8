package supervisor

import (
	"net"
	"testing"
	"time"

	"github.com/atomphone/firmware/pkg/config"
	"github.com/atomphone/firmware/pkg/hal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		WifiSSID:     "test",
		SipRegistrar: "sip:127.0.0.1:5060",
		SipContact:   "sip:echo@0.0.0.0:0",
		SipUsername:  "x",
		SipPassword:  "p",
		SipBindAddr:  "127.0.0.1:0",
		RingTimeout:  20 * time.Second,
	}
}

func TestNewWiresAllTasksAndBindsDistinctSockets(t *testing.T) {
	device := hal.NewSimDevice(net.ParseIP("127.0.0.1"), hal.NewSimAudioDevice(), hal.NewSimUiDevice())
	registry := prometheus.NewRegistry()

	sup, err := New(testConfig(), device, hal.NewSimRandomU32(1), registry)
	require.NoError(t, err)
	require.Len(t, sup.tasks, 4)

	sipAddr := sup.sipConn.LocalAddr().(*net.UDPAddr)
	rtpAddr := sup.rtpConn.LocalAddr().(*net.UDPAddr)
	require.NotEqual(t, sipAddr.Port, rtpAddr.Port)

	_, err = device.GetAudioDevice()
	require.ErrorIs(t, err, hal.ErrAlreadyTaken, "the supervisor must have already taken the audio device")
}

func TestRunStartsTasksAndStopDrainsCleanly(t *testing.T) {
	device := hal.NewSimDevice(net.ParseIP("127.0.0.1"), hal.NewSimAudioDevice(), hal.NewSimUiDevice())
	registry := prometheus.NewRegistry()

	sup, err := New(testConfig(), device, hal.NewSimRandomU32(2), registry)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		sup.Run()
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	sup.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor.Run did not return after Stop")
	}

	_, err = sup.sipConn.WriteTo([]byte("x"), sup.sipConn.LocalAddr())
	require.Error(t, err, "sip socket should be closed after Stop")
}

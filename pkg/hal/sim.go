package hal

import (
	"math/rand"
	"net"
	"sync"
	"time"
)

// SimDevice is an in-memory Device used by tests and by host-profile builds
// that have no real radio or codec attached. It mirrors the teacher's
// mockTransport package: a concrete implementation of the production
// interface, handed out once per resource, that records what was done to it
// so tests can assert on it.
type SimDevice struct {
	mu          sync.Mutex
	ip          net.IP
	audio       AudioDevice
	ui          UiDevice
	audioTaken  bool
	uiTaken     bool
	ipTaken     bool
}

// NewSimDevice constructs a simulated board bound to ip, backed by the
// given audio and UI devices (typically *SimAudioDevice / *SimUiDevice).
func NewSimDevice(ip net.IP, audio AudioDevice, ui UiDevice) *SimDevice {
	return &SimDevice{ip: ip, audio: audio, ui: ui}
}

func (d *SimDevice) GetAudioDevice() (AudioDevice, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.audioTaken {
		return nil, ErrAlreadyTaken
	}
	d.audioTaken = true
	return d.audio, nil
}

func (d *SimDevice) GetUiDevice() (UiDevice, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.uiTaken {
		return nil, ErrAlreadyTaken
	}
	d.uiTaken = true
	return d.ui, nil
}

func (d *SimDevice) GetIPAddr() (net.IP, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ipTaken {
		return nil, ErrAlreadyTaken
	}
	d.ipTaken = true
	return d.ip, nil
}

// SimUiDevice is a programmable UiDevice: tests set the button state with
// SetButtonState and read back the LED states SetLedState recorded.
type SimUiDevice struct {
	mu      sync.Mutex
	state   ButtonState
	ledLog  []LedState
}

func NewSimUiDevice() *SimUiDevice {
	return &SimUiDevice{state: Released}
}

func (d *SimUiDevice) SetButtonState(s ButtonState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = s
}

func (d *SimUiDevice) ReadButtonState() (ButtonState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state, nil
}

func (d *SimUiDevice) SetLedState(s LedState) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ledLog = append(d.ledLog, s)
	return nil
}

func (d *SimUiDevice) LedLog() []LedState {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]LedState, len(d.ledLog))
	copy(out, d.ledLog)
	return out
}

func (d *SimUiDevice) LastLed() LedState {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.ledLog) == 0 {
		return LedOff
	}
	return d.ledLog[len(d.ledLog)-1]
}

// SimAudioDevice is a no-op AudioDevice: writes succeed immediately and
// reads return silence, which is enough to drive the audio engine's state
// machine in tests without real I2S hardware.
type SimAudioDevice struct {
	mu       sync.Mutex
	txOn     bool
	rxOn     bool
	written  int
	preloads int
}

func NewSimAudioDevice() *SimAudioDevice {
	return &SimAudioDevice{}
}

func (d *SimAudioDevice) EnsureTxReady() error { return nil }

func (d *SimAudioDevice) TxEnable() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.txOn = true
	return nil
}

func (d *SimAudioDevice) TxDisable() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.txOn = false
	return nil
}

func (d *SimAudioDevice) PreloadData(frame []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.preloads++
	return nil
}

func (d *SimAudioDevice) Write(frame []byte, timeout time.Duration) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.written += len(frame)
	return len(frame), nil
}

func (d *SimAudioDevice) EnsureRxReady() error { return nil }

func (d *SimAudioDevice) Read(samples []int16, timeout time.Duration) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rxOn = true
	for i := range samples {
		samples[i] = 0
	}
	return len(samples), nil
}

func (d *SimAudioDevice) StopCurrent() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.txOn = false
	d.rxOn = false
	return nil
}

func (d *SimAudioDevice) DropTx() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.txOn = false
	return nil
}

func (d *SimAudioDevice) BytesWritten() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.written
}

// NewSimRandomU32 returns a RandomU32 seeded deterministically, for
// reproducible tests.
func NewSimRandomU32(seed int64) RandomU32 {
	r := rand.New(rand.NewSource(seed))
	var mu sync.Mutex
	return func() uint32 {
		mu.Lock()
		defer mu.Unlock()
		return r.Uint32()
	}
}

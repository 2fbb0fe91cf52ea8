// Package supervisor builds the inter-task channels, binds the two owned
// UDP sockets, constructs each task, and releases a start barrier so no
// task observes a partially wired peer, per spec §4.1. Grounded on the
// teacher's pkg/dialog/stack.go for the shape of a component-construction/
// lifecycle-wiring entry point, adapted away from sipgo's transport-owning
// stack to this module's channel-owned tasks.
package supervisor

import (
	"fmt"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/atomphone/firmware/pkg/audiopipe"
	"github.com/atomphone/firmware/pkg/config"
	"github.com/atomphone/firmware/pkg/hal"
	"github.com/atomphone/firmware/pkg/logging"
	"github.com/atomphone/firmware/pkg/messages"
	"github.com/atomphone/firmware/pkg/metrics"
	"github.com/atomphone/firmware/pkg/rtpstream"
	"github.com/atomphone/firmware/pkg/sipstack"
	"github.com/atomphone/firmware/pkg/uitask"
	"github.com/prometheus/client_golang/prometheus"
)

// chanCapacity sizes the single-producer/single-consumer command channels.
// Media channels get a slightly deeper buffer since a tick's worth of
// jitter between producer and consumer tasks is expected, not exceptional.
const (
	chanCapacity      = 8
	mediaChanCapacity = 16
)

// task is the uniform capability spec §4.1 describes: a name (for
// logging/metrics), an optional stack-size hint, and a run closure. Go
// goroutines grow their stacks dynamically, so StackSizeHint is carried
// only for logging/documentation parity with the embedded target's
// per-thread stack sizing — it is never enforced here.
type task struct {
	Name          string
	StackSizeHint int
	Run           func(stopCh <-chan struct{})
}

// Supervisor owns the process lifecycle: channel construction, task
// construction, the start barrier, and the idle/stats loop.
type Supervisor struct {
	log logging.Logger
	cfg *config.Config

	sipConn *net.UDPConn
	rtpConn *net.UDPConn

	tasks  []task
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New binds both owned UDP sockets and constructs every task, wiring the
// channels described in spec §4.1. It does not start anything yet — call
// Run for that.
func New(cfg *config.Config, device hal.Device, randomU32 hal.RandomU32, metricsRegisterer prometheus.Registerer) (*Supervisor, error) {
	log := logging.New("supervisor")

	audioDevice, err := device.GetAudioDevice()
	if err != nil {
		return nil, fmt.Errorf("supervisor: get audio device: %w", err)
	}
	uiDevice, err := device.GetUiDevice()
	if err != nil {
		return nil, fmt.Errorf("supervisor: get ui device: %w", err)
	}

	sipConn, err := bindUDP(cfg.SipBindAddr)
	if err != nil {
		return nil, fmt.Errorf("supervisor: bind sip socket: %w", err)
	}
	if err := sipstack.TuneSocket(sipConn); err != nil {
		log.Warn("sip socket tuning failed", logging.F("err", err.Error()))
	}

	rtpConn, err := bindUDP(":0")
	if err != nil {
		_ = sipConn.Close()
		return nil, fmt.Errorf("supervisor: bind rtp socket: %w", err)
	}
	if err := rtpstream.TuneSocket(rtpConn); err != nil {
		log.Warn("rtp socket tuning failed", logging.F("err", err.Error()))
	}
	rtpLocalPort := uint16(rtpConn.LocalAddr().(*net.UDPAddr).Port)

	sipCmdCh := make(chan messages.SipCommand, chanCapacity)
	audioCmdCh := make(chan messages.AudioCommand, chanCapacity)
	rtpCmdCh := make(chan messages.RtpCommand, chanCapacity)
	uiCmdCh := make(chan messages.UiCommand, chanCapacity)
	mediaInCh := make(chan messages.MediaIn, mediaChanCapacity)
	mediaOutCh := make(chan messages.MediaOut, mediaChanCapacity)

	sipEngine, err := sipstack.NewEngine(sipConn, rtpLocalPort, cfg, sipCmdCh, audioCmdCh, rtpCmdCh, uiCmdCh)
	if err != nil {
		_ = sipConn.Close()
		_ = rtpConn.Close()
		return nil, fmt.Errorf("supervisor: construct sip task: %w", err)
	}
	rtpEngine := rtpstream.NewEngine(rtpConn, randomU32, rtpCmdCh, mediaInCh, mediaOutCh)
	audioEngine := audiopipe.NewEngine(audioDevice, audioCmdCh, mediaInCh, mediaOutCh)
	uiEngine := uitask.NewEngine(uiDevice, uiCmdCh, sipCmdCh)

	if metricsRegisterer != nil {
		metrics.Register(metricsRegisterer)
	}

	s := &Supervisor{
		log:     log,
		cfg:     cfg,
		sipConn: sipConn,
		rtpConn: rtpConn,
		stopCh:  make(chan struct{}),
		tasks: []task{
			{Name: "sip", StackSizeHint: 8192, Run: sipEngine.Run},
			{Name: "rtp", StackSizeHint: 4096, Run: rtpEngine.Run},
			{Name: "audio", StackSizeHint: 4096, Run: audioEngine.Run},
			{Name: "ui", StackSizeHint: 2048, Run: uiEngine.Run},
		},
	}
	return s, nil
}

func bindUDP(bindAddr string) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, err
	}
	return net.ListenUDP("udp", addr)
}

// Run spawns every task behind a single start barrier — none begins its
// loop until every channel and peer is already wired — then runs the
// idle/stats loop until stopCh is closed via Stop.
func (s *Supervisor) Run() {
	start := make(chan struct{})

	for _, t := range s.tasks {
		s.wg.Add(1)
		go func(t task) {
			defer s.wg.Done()
			<-start
			s.log.Info("task starting", logging.F("task", t.Name), logging.F("stack_hint", t.StackSizeHint))
			t.Run(s.stopCh)
		}(t)
	}
	close(start)

	s.idleLoop()
}

// Stop signals every task to exit and waits for them to drain, then closes
// the owned sockets — the last step of spec §5's "owning task stops its
// device driver explicitly" for the two socket-owning tasks.
func (s *Supervisor) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	_ = s.sipConn.Close()
	_ = s.rtpConn.Close()
}

// idleLoop sleeps periodically and, when task_stats is enabled, samples
// system-wide goroutine/stack statistics and logs them, per spec §4.1.
// Go exposes these process-wide rather than per-goroutine, so the sampled
// figures are labeled "process" rather than per-task.
func (s *Supervisor) idleLoop() {
	const statsInterval = 5 * time.Second
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !s.cfg.TaskStats {
				continue
			}
			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			metrics.TaskStackHighWater.WithLabelValues("process").Set(float64(mem.StackInuse))
			s.log.Info("task stats",
				logging.F("goroutines", runtime.NumGoroutine()),
				logging.F("stack_inuse_bytes", mem.StackInuse),
			)
		}
	}
}

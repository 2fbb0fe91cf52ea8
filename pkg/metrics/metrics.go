// Package metrics centralizes the prometheus collectors every task reports
// into, in the label shape used by the teacher's pkg/dialog/metrics.go and
// pkg/rtp/metrics.go (component + event name rather than one collector per
// call site).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RegistrationState is 0=Unregistered,1=Registering,2=Registered,3=Error.
	RegistrationState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "atomphone",
		Subsystem: "sip",
		Name:      "registration_state",
		Help:      "Current registration state as an integer (see calldata.RegistrationState).",
	})

	DialogState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "atomphone",
		Subsystem: "sip",
		Name:      "dialog_state",
		Help:      "Current dialog state as an integer (see calldata.DialogState).",
	})

	Retransmissions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "atomphone",
		Subsystem: "sip",
		Name:      "invite_retransmissions_total",
		Help:      "Total INVITE server transaction retransmissions sent.",
	})

	RTPPacketsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "atomphone",
		Subsystem: "rtp",
		Name:      "packets_sent_total",
		Help:      "Total RTP packets transmitted.",
	})

	RTPPacketsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "atomphone",
		Subsystem: "rtp",
		Name:      "packets_received_total",
		Help:      "Total RTP packets accepted after filtering.",
	})

	RTPPacketsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "atomphone",
		Subsystem: "rtp",
		Name:      "packets_dropped_total",
		Help:      "Total inbound RTP packets dropped by filtering.",
	})

	JitterBufferFill = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "atomphone",
		Subsystem: "audio",
		Name:      "jitter_buffer_fill",
		Help:      "Number of frames currently held in the jitter buffer.",
	})

	AGCGainQ12 = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "atomphone",
		Subsystem: "audio",
		Name:      "agc_gain_q12",
		Help:      "Current AGC gain in Q12 fixed point (4096 = 1.0x).",
	})

	TaskStackHighWater = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "atomphone",
		Subsystem: "supervisor",
		Name:      "task_stack_highwater_bytes",
		Help:      "High-water stack usage sampled per task, where supported.",
	}, []string{"task"})
)

// Register registers all of the above against a prometheus.Registerer in
// one call, so the supervisor can register them once.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		RegistrationState,
		DialogState,
		Retransmissions,
		RTPPacketsSent,
		RTPPacketsReceived,
		RTPPacketsDropped,
		JitterBufferFill,
		AGCGainQ12,
		TaskStackHighWater,
	)
}

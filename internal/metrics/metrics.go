package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	storeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_store_requests_total",
			Help: "Total number of conversation-store requests issued.",
		},
		[]string{"operation", "outcome"},
	)
	sendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_sends_total",
			Help: "Total number of message sends by final outcome.",
		},
		[]string{"outcome"},
	)
	channelEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_channel_events_total",
			Help: "Total number of push-channel lifecycle events.",
		},
		[]string{"event"},
	)
	channelConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "courier_channel_connected",
			Help: "Whether the push channel is currently open (1) or not (0).",
		},
	)
	fallbackPollsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "courier_fallback_polls_total",
			Help: "Total number of fallback polling refreshes performed.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		storeRequestsTotal,
		sendsTotal,
		channelEventsTotal,
		channelConnected,
		fallbackPollsTotal,
	)
}

// Outcome labels for request and send counters.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// IncStoreRequest records one conversation-store call.
func IncStoreRequest(operation, outcome string) {
	storeRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

// IncSend records one completed send attempt.
func IncSend(outcome string) {
	sendsTotal.WithLabelValues(outcome).Inc()
}

// IncChannelEvent records a push-channel lifecycle event.
func IncChannelEvent(event string) {
	channelEventsTotal.WithLabelValues(event).Inc()
}

// SetChannelConnected updates the connected gauge.
func SetChannelConnected(connected bool) {
	if connected {
		channelConnected.Set(1)
	} else {
		channelConnected.Set(0)
	}
}

// IncFallbackPoll records one fallback refresh pass.
func IncFallbackPoll() {
	fallbackPollsTotal.Inc()
}

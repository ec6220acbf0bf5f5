package pipeline

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"firestige.xyz/lidarpcd/internal/metrics"
)

// Metrics contains the packet-loop counters of a pipeline.
type Metrics struct {
	Read         atomic.Uint64
	Filtered     atomic.Uint64
	DecodeErrors atomic.Uint64
	Pending      atomic.Uint64 // fragments absorbed by the reassembler
	PortMismatch atomic.Uint64
	Delivered    atomic.Uint64

	read         prometheus.Counter
	filtered     prometheus.Counter
	decodeErrors prometheus.Counter
	pending      prometheus.Counter
	portMismatch prometheus.Counter
	delivered    prometheus.Counter
}

// NewMetrics creates a new metrics instance bound to the global collectors.
func NewMetrics() *Metrics {
	stage := metrics.CapturePacketsTotal
	return &Metrics{
		read:         stage.WithLabelValues("read"),
		filtered:     stage.WithLabelValues("filtered"),
		decodeErrors: stage.WithLabelValues("decode_error"),
		pending:      stage.WithLabelValues("pending"),
		portMismatch: stage.WithLabelValues("port_mismatch"),
		delivered:    stage.WithLabelValues("delivered"),
	}
}

func inc(local *atomic.Uint64, c prometheus.Counter) {
	local.Add(1)
	c.Inc()
}

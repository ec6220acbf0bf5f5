// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CapturePacketsTotal counts frames read from the capture file by outcome
	CapturePacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lidarpcd_capture_packets_total",
			Help: "Total number of frames read from the capture file",
		},
		[]string{"stage"}, // read, filtered, decode_error, pending, port_mismatch, delivered
	)

	// ReassemblyActiveFlows tracks datagrams waiting for more fragments
	ReassemblyActiveFlows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lidarpcd_reassembly_active_flows",
			Help: "Number of incomplete IPv4 datagrams held in the reassembly table",
		},
	)

	// ReassemblyFragmentsDroppedTotal counts fragments rejected before insertion
	ReassemblyFragmentsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lidarpcd_reassembly_fragments_dropped_total",
			Help: "Total number of malformed IPv4 fragments dropped",
		},
		[]string{"reason"}, // odd_length, overflow
	)

	// ReassemblyResetsTotal counts whole-table resets caused by inconsistent fragments
	ReassemblyResetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lidarpcd_reassembly_resets_total",
			Help: "Total number of reassembly table resets",
		},
	)

	// ReassemblyDatagramsTotal counts datagrams leaving the reassembler
	ReassemblyDatagramsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lidarpcd_reassembly_datagrams_total",
			Help: "Total number of complete IPv4 datagrams produced",
		},
		[]string{"path"}, // bypass, reassembled
	)

	// LidarFramesTotal counts frame boundaries by outcome
	LidarFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lidarpcd_lidar_frames_total",
			Help: "Total number of lidar frames completed or dropped",
		},
		[]string{"result"}, // flushed, dropped
	)

	// LidarBrokenTotal counts transitions into the broken stream state
	LidarBrokenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lidarpcd_lidar_broken_total",
			Help: "Total number of events that marked the lidar stream broken",
		},
		[]string{"reason"}, // short_payload, bad_status
	)

	// LidarPointsTotal counts points emitted into frame buffers
	LidarPointsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lidarpcd_lidar_points_total",
			Help: "Total number of valid points decoded",
		},
	)

	// SinkQueueDepth tracks flush requests waiting for the writer
	SinkQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lidarpcd_sink_queue_depth",
			Help: "Number of point-cloud files queued for writing",
		},
	)

	// SinkFilesWrittenTotal counts files written by the sink
	SinkFilesWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lidarpcd_sink_files_written_total",
			Help: "Total number of point-cloud files written",
		},
	)

	// SinkBytesWrittenTotal counts bytes written by the sink
	SinkBytesWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lidarpcd_sink_bytes_written_total",
			Help: "Total number of bytes written to point-cloud files",
		},
	)

	// SinkWriteLatencySeconds measures the time spent writing one file
	SinkWriteLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lidarpcd_sink_write_latency_seconds",
			Help:    "Latency of writing one point-cloud file in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 20), // 10µs to ~5s
		},
	)
)

// Package pipeline implements the capture-to-point-cloud processing loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"firestige.xyz/lidarpcd/internal/core"
	"firestige.xyz/lidarpcd/internal/core/decoder"
	"firestige.xyz/lidarpcd/internal/lidar"
	"firestige.xyz/lidarpcd/internal/sink"
	"firestige.xyz/lidarpcd/internal/utils"
)

// PacketSource yields raw frames in capture order. Next returns io.EOF at the end.
type PacketSource interface {
	Next() (core.RawPacket, error)
}

// FrameSink accepts point-cloud files for asynchronous writing.
type FrameSink interface {
	Submit(r sink.Request) error
	Done() <-chan struct{}
	Err() error
}

// Config contains pipeline configuration.
type Config struct {
	Source  PacketSource
	Decoder decoder.Decoder     // nil = StandardDecoder with a fresh reassembler
	Filter  *utils.PacketFilter // nil = no prefilter
	Model   *lidar.Model
	Sink    FrameSink

	Port             uint16 // UDP destination port carrying the sensor stream
	OutputDir        string
	Digits           int
	ProgressInterval int // packets between progress logs, 0 disables
}

// Pipeline is a single-threaded chain: source -> filter -> decoder ->
// port match -> lidar frame decoder -> sink.
type Pipeline struct {
	source  PacketSource
	decoder decoder.Decoder
	filter  *utils.PacketFilter
	frames  *lidar.FrameDecoder
	sink    FrameSink

	port      uint16
	outputDir string
	digits    int
	progress  uint64

	metrics *Metrics
}

// New creates a new pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Decoder == nil {
		cfg.Decoder = decoder.NewStandardDecoder(nil)
	}
	if cfg.Digits < 1 {
		cfg.Digits = 4
	}

	p := &Pipeline{
		source:    cfg.Source,
		decoder:   cfg.Decoder,
		filter:    cfg.Filter,
		sink:      cfg.Sink,
		port:      cfg.Port,
		outputDir: cfg.OutputDir,
		digits:    cfg.Digits,
		progress:  uint64(max(cfg.ProgressInterval, 0)),
		metrics:   NewMetrics(),
	}
	p.frames = lidar.NewFrameDecoder(cfg.Model, p.emit)
	return p
}

// Run processes the whole source. It returns nil at the end of the capture,
// ctx's error if cancelled, or the sink's error if writing failed. A frame
// still being accumulated when the capture ends is not written.
func (p *Pipeline) Run(ctx context.Context) error {
	slog.Info("pipeline starting", "port", p.port, "output", p.outputDir)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-p.sink.Done():
			return p.sinkError()
		default:
		}

		raw, err := p.source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			slog.Warn("capture ends with a truncated record", "packets", p.metrics.Read.Load())
			break
		}
		if err != nil {
			return err
		}

		if err := p.processPacket(raw); err != nil {
			return err
		}

		if n := p.metrics.Read.Load(); p.progress > 0 && n%p.progress == 0 {
			slog.Info("progress", "packets", n, "frames", p.frames.Stats().Flushed, "flows", p.flows())
		}
	}

	if frameID, readings := p.frames.Pending(); readings > 0 {
		slog.Debug("discarding trailing frame", "frame_id", frameID, "readings", readings)
	}
	p.logSummary()
	return nil
}

// processPacket runs one frame through the chain. Only sink failures are returned.
func (p *Pipeline) processPacket(raw core.RawPacket) error {
	m := p.metrics
	inc(&m.Read, m.read)

	if p.filter != nil && !p.filter.Match(raw.Data) {
		inc(&m.Filtered, m.filtered)
		return nil
	}

	pkt, ok, err := p.decoder.Decode(raw)
	if err != nil {
		inc(&m.DecodeErrors, m.decodeErrors)
		slog.Debug("packet decode failed", "packet", m.Read.Load(), "error", err)
		return nil
	}
	if !ok {
		inc(&m.Pending, m.pending)
		return nil
	}

	if pkt.Transport.DstPort != p.port {
		inc(&m.PortMismatch, m.portMismatch)
		return nil
	}
	inc(&m.Delivered, m.delivered)

	return p.frames.Put(pkt.Payload)
}

// emit hands a completed frame to the sink.
func (p *Pipeline) emit(f lidar.Frame) error {
	err := p.sink.Submit(sink.Request{
		Path:   filepath.Join(p.outputDir, lidar.PCDFileName(f.Index, p.digits)),
		Header: f.Header(),
		Body:   f.Body(),
	})
	if err != nil {
		return fmt.Errorf("submit frame %d: %w", f.Index, err)
	}
	return nil
}

func (p *Pipeline) sinkError() error {
	if err := p.sink.Err(); err != nil {
		return fmt.Errorf("point cloud writer failed: %w", err)
	}
	return core.ErrSinkClosed
}

func (p *Pipeline) reassembler() *decoder.Reassembler {
	if d, ok := p.decoder.(interface{ Reassembler() *decoder.Reassembler }); ok {
		return d.Reassembler()
	}
	return nil
}

func (p *Pipeline) flows() int {
	if r := p.reassembler(); r != nil {
		return r.Flows()
	}
	return 0
}

func (p *Pipeline) logSummary() {
	s := p.Stats()
	slog.Info("pipeline finished",
		"packets", s.Packets,
		"filtered", s.Filtered,
		"decode_errors", s.DecodeErrors,
		"port_mismatch", s.PortMismatch,
		"payloads", s.Payloads,
		"reassembled", s.Reassembly.Reassembled,
		"fragments_dropped", s.Reassembly.Dropped,
		"reassembly_resets", s.Reassembly.Resets,
		"incomplete_flows", s.IncompleteFlows,
		"frames_flushed", s.Frames.Flushed,
		"frames_dropped", s.Frames.Dropped,
		"short_payloads", s.Frames.ShortPayloads,
		"bad_status", s.Frames.BadStatus,
	)
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	s := Stats{
		Packets:      p.metrics.Read.Load(),
		Filtered:     p.metrics.Filtered.Load(),
		DecodeErrors: p.metrics.DecodeErrors.Load(),
		Pending:      p.metrics.Pending.Load(),
		PortMismatch: p.metrics.PortMismatch.Load(),
		Payloads:     p.metrics.Delivered.Load(),
		Frames:       p.frames.Stats(),
	}
	if r := p.reassembler(); r != nil {
		s.Reassembly = r.Stats()
		s.IncompleteFlows = r.Flows()
	}
	return s
}

// Stats represents pipeline statistics.
type Stats struct {
	Packets         uint64
	Filtered        uint64
	DecodeErrors    uint64
	Pending         uint64
	PortMismatch    uint64
	Payloads        uint64
	IncompleteFlows int
	Reassembly      decoder.ReassemblyStats
	Frames          lidar.FrameStats
}

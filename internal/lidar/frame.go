package lidar

import (
	"log/slog"

	"firestige.xyz/lidarpcd/internal/metrics"
)

// Frame is one completed rotation ready to be written.
type Frame struct {
	Index     int       // output sequence number, starting at 0
	FrameID   uint16    // sensor frame id
	Timestamp uint64    // earliest column timestamp
	Points    []float32 // x, y, z, intensity quadruples
}

// Len returns the number of points in the frame.
func (f *Frame) Len() int {
	return len(f.Points) / 4
}

// EmitFunc receives completed frames. The decoder never touches f.Points again.
type EmitFunc func(f Frame) error

// FrameStats counts decoder outcomes.
type FrameStats struct {
	Payloads      uint64
	Columns       uint64
	Points        uint64 // valid points appended
	Flushed       uint64
	Dropped       uint64 // frames with too few readings
	ShortPayloads uint64
	BadStatus     uint64
	Discarded     uint64 // columns skipped while broken
}

// FrameDecoder accumulates measurement blocks into frames.
// It is not safe for concurrent use.
type FrameDecoder struct {
	model *Model
	emit  EmitFunc

	frameID   uint16
	timestamp uint64
	points    []float32
	seen      int // channel readings, valid or not
	broken    bool
	next      int

	stats FrameStats
}

// NewFrameDecoder creates a decoder handing completed frames to emit.
func NewFrameDecoder(m *Model, emit EmitFunc) *FrameDecoder {
	return &FrameDecoder{
		model:  m,
		emit:   emit,
		points: make([]float32, 0, m.FramePoints()*4),
	}
}

// Put decodes one UDP payload. Only whole measurement blocks are read;
// trailing bytes shorter than a block are ignored. The returned error comes
// from the emit callback.
func (d *FrameDecoder) Put(payload []byte) error {
	d.stats.Payloads++

	if len(payload) < d.model.PacketLen() {
		d.stats.ShortPayloads++
		d.markBroken("short_payload", len(payload))
		return nil
	}

	colLen := d.model.ColumnLen()
	for off := 0; off+colLen <= len(payload); off += colLen {
		if err := d.putColumn(parseColumn(payload[off : off+colLen])); err != nil {
			return err
		}
	}
	return nil
}

func (d *FrameDecoder) putColumn(c column) error {
	d.stats.Columns++

	if !c.valid() {
		d.stats.BadStatus++
		d.markBroken("bad_status", int(c.frameID))
		return nil
	}

	if d.broken {
		if c.frameID == d.frameID {
			d.stats.Discarded++
			return nil
		}
		// a new frame id ends the broken stretch; the partial frame is lost
		if d.seen > 0 {
			d.drop()
		}
		d.broken = false
		d.reset()
	}

	if c.frameID != d.frameID {
		if err := d.finish(); err != nil {
			return err
		}
		d.frameID = c.frameID
		d.timestamp = c.timestamp
	} else if c.timestamp < d.timestamp {
		d.timestamp = c.timestamp
	}

	pixels := d.model.format.PixelsPerColumn
	added := 0
	for ch := 0; ch < pixels; ch++ {
		d.seen++
		r, reflectivity := c.pixel(ch)
		if r == 0 || reflectivity == 0 {
			continue
		}
		x, y, z := d.model.Point(c.measurementID, ch, r)
		d.points = append(d.points, float32(x), float32(y), float32(z), float32(reflectivity)/255)
		added++
	}
	d.stats.Points += uint64(added)
	metrics.LidarPointsTotal.Add(float64(added))
	return nil
}

// finish closes the current frame: emitted if complete, dropped otherwise.
func (d *FrameDecoder) finish() error {
	if d.seen < d.model.FramePoints() {
		if d.seen > 0 {
			d.drop()
		}
		d.reset()
		return nil
	}

	f := Frame{
		Index:     d.next,
		FrameID:   d.frameID,
		Timestamp: d.timestamp,
		Points:    d.points,
	}
	d.next++
	d.stats.Flushed++
	metrics.LidarFramesTotal.WithLabelValues("flushed").Inc()
	slog.Debug("frame complete", "index", f.Index, "frame_id", f.FrameID, "points", f.Len(), "readings", d.seen)

	d.points = make([]float32, 0, cap(f.Points))
	d.seen = 0
	return d.emit(f)
}

func (d *FrameDecoder) drop() {
	d.stats.Dropped++
	metrics.LidarFramesTotal.WithLabelValues("dropped").Inc()
	slog.Debug("dropping incomplete frame", "frame_id", d.frameID, "readings", d.seen, "want", d.model.FramePoints())
}

func (d *FrameDecoder) reset() {
	d.points = d.points[:0]
	d.seen = 0
}

func (d *FrameDecoder) markBroken(reason string, detail int) {
	if !d.broken {
		slog.Debug("lidar stream broken", "reason", reason, "frame_id", d.frameID, "detail", detail)
	}
	d.broken = true
	metrics.LidarBrokenTotal.WithLabelValues(reason).Inc()
}

// Pending reports the frame still being accumulated. It is never emitted if
// the stream ends.
func (d *FrameDecoder) Pending() (frameID uint16, readings int) {
	return d.frameID, d.seen
}

// Stats returns a snapshot of the decoder counters.
func (d *FrameDecoder) Stats() FrameStats {
	return d.stats
}

package decoder

import (
	"log/slog"
	"net/netip"

	"firestige.xyz/lidarpcd/internal/core"
	"firestige.xyz/lidarpcd/internal/metrics"
)

// ipv4MaxSize is the byte space addressable by one datagram.
const ipv4MaxSize = 65535

// FlowKey identifies one in-flight IPv4 datagram.
// Fixed-size arrays keep the key comparable and allocation free.
type FlowKey struct {
	SrcIP    [4]byte
	DstIP    [4]byte
	Protocol uint8
	ID       uint16
}

// String renders the key for logs.
func (k FlowKey) String() string {
	return netip.AddrFrom4(k.SrcIP).String() + "->" + netip.AddrFrom4(k.DstIP).String()
}

// Fragment is one IPv4 packet's contribution to a datagram.
type Fragment struct {
	Key           FlowKey
	Offset        uint16 // in 8-byte units
	MoreFragments bool
	DontFragment  bool
	Payload       []byte
}

// hole is a byte range [first, last) not yet received.
type hole struct {
	first int
	last  int
}

// chunk is the reassembly buffer of one flow.
type chunk struct {
	data  []byte
	holes []hole
	size  int // total datagram length, known once the final fragment arrives
}

func newChunk() *chunk {
	return &chunk{
		data:  make([]byte, ipv4MaxSize),
		holes: []hole{{first: 0, last: ipv4MaxSize}},
		size:  ipv4MaxSize,
	}
}

// fill records payload at [first, last). It returns false when the range
// straddles the boundary of the hole it overlaps.
func (c *chunk) fill(first, last int, more bool, payload []byte) bool {
	for i, h := range c.holes {
		if first >= h.last || last <= h.first {
			continue
		}
		if first < h.first || last > h.last {
			return false
		}

		c.holes = append(c.holes[:i], c.holes[i+1:]...)
		if first > h.first {
			c.holes = append(c.holes, hole{first: h.first, last: first})
		}
		if last < h.last && more {
			c.holes = append(c.holes, hole{first: last, last: h.last})
		}
		break
	}

	// Bytes landing on already received data overwrite it.
	copy(c.data[first:last], payload)
	return true
}

func (c *chunk) complete() bool {
	return len(c.holes) == 0
}

// ReassemblyStats counts reassembler outcomes.
type ReassemblyStats struct {
	Bypassed    uint64 // DF datagrams returned without tracking
	Reassembled uint64 // datagrams rebuilt from fragments
	Dropped     uint64 // malformed fragments (length parity, overflow)
	Resets      uint64 // whole-table resets
}

// Reassembler rebuilds IPv4 datagrams with the RFC 815 hole-descriptor algorithm.
//
// Each flow owns a 65535-byte buffer and an unordered list of holes. There is
// no timeout or eviction: a flow leaves the table when it completes or when an
// inconsistent fragment resets every flow. A Reassembler is owned by a single
// goroutine.
type Reassembler struct {
	flows map[FlowKey]*chunk
	stats ReassemblyStats
}

// NewReassembler creates an empty reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{
		flows: make(map[FlowKey]*chunk),
	}
}

// Submit offers one fragment. It returns the complete datagram payload when
// this fragment finished one, or the fragment's own payload when DF is set.
func (r *Reassembler) Submit(f Fragment) ([]byte, bool) {
	if f.DontFragment {
		r.stats.Bypassed++
		metrics.ReassemblyDatagramsTotal.WithLabelValues("bypass").Inc()
		return f.Payload, true
	}

	length := len(f.Payload)
	if f.MoreFragments && length%8 != 0 {
		r.drop(f.Key, "odd_length")
		return nil, false
	}

	first := int(f.Offset) * 8
	last := first + length
	if last > ipv4MaxSize {
		r.drop(f.Key, "overflow")
		return nil, false
	}

	c, ok := r.flows[f.Key]
	if !ok {
		c = newChunk()
		r.flows[f.Key] = c
		metrics.ReassemblyActiveFlows.Inc()
	}
	if !f.MoreFragments {
		c.size = last
	}

	if !c.fill(first, last, f.MoreFragments, f.Payload) {
		slog.Debug("resetting reassembly table",
			"flow", f.Key.String(), "id", f.Key.ID, "first", first, "last", last,
			"flows", len(r.flows), "error", core.ErrFragmentInconsistent)
		r.Reset()
		return nil, false
	}

	// Only the flow touched above can have become complete: every other flow
	// was checked when it was last touched.
	if !c.complete() {
		return nil, false
	}

	delete(r.flows, f.Key)
	metrics.ReassemblyActiveFlows.Dec()
	r.stats.Reassembled++
	metrics.ReassemblyDatagramsTotal.WithLabelValues("reassembled").Inc()
	return c.data[:c.size:c.size], true
}

// Reset discards every flow in the table.
func (r *Reassembler) Reset() {
	clear(r.flows)
	r.stats.Resets++
	metrics.ReassemblyResetsTotal.Inc()
	metrics.ReassemblyActiveFlows.Set(0)
}

// Flows returns the number of incomplete datagrams being tracked.
func (r *Reassembler) Flows() int {
	return len(r.flows)
}

// Stats returns a snapshot of the reassembler counters.
func (r *Reassembler) Stats() ReassemblyStats {
	return r.stats
}

func (r *Reassembler) drop(key FlowKey, reason string) {
	r.stats.Dropped++
	metrics.ReassemblyFragmentsDroppedTotal.WithLabelValues(reason).Inc()
	slog.Debug("dropping fragment", "flow", key.String(), "id", key.ID,
		"reason", reason, "error", core.ErrFragmentMalformed)
}

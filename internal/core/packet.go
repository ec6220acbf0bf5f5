// Package core defines core data structures with zero external dependencies.
package core

import "time"

// RawPacket is one link-layer frame read from a capture file.
type RawPacket struct {
	Data       []byte    // Raw frame data
	Timestamp  time.Time // Capture timestamp
	CaptureLen uint32    // Captured length
	OrigLen    uint32    // Original frame length on the wire
}

// DecodedPacket is the result of L2-L4 protocol stack decoding.
type DecodedPacket struct {
	Timestamp   time.Time
	Ethernet    EthernetHeader
	IP          IPHeader
	Transport   TransportHeader
	Payload     []byte // Application layer payload
	CaptureLen  uint32
	OrigLen     uint32
	Reassembled bool // Whether the datagram went through the fragment table
}

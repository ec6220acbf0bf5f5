package decoder

import (
	"encoding/binary"

	"firestige.xyz/lidarpcd/internal/core"
)

const (
	udpHeaderLen = 8

	protocolUDP = 17
)

// decodeUDP decodes a UDP header from a complete datagram.
// When the length field is consistent the payload is bounded by it.
func decodeUDP(data []byte) (core.TransportHeader, []byte, error) {
	if len(data) < udpHeaderLen {
		return core.TransportHeader{}, nil, core.ErrPacketTooShort
	}

	udp := core.TransportHeader{
		Protocol: protocolUDP,
		SrcPort:  binary.BigEndian.Uint16(data[0:2]),
		DstPort:  binary.BigEndian.Uint16(data[2:4]),
		Length:   binary.BigEndian.Uint16(data[4:6]),
	}

	end := len(data)
	if l := int(udp.Length); l >= udpHeaderLen && l <= end {
		end = l
	}
	return udp, data[udpHeaderLen:end], nil
}

package decoder

import (
	"encoding/binary"
	"net/netip"

	"firestige.xyz/lidarpcd/internal/core"
)

const (
	ipv4HeaderMinLen = 20

	ipv4FlagDF     = 0x4000
	ipv4FlagMF     = 0x2000
	ipv4OffsetMask = 0x1FFF
)

// decodeIPv4 decodes an IPv4 header including its fragmentation fields.
// The returned payload is bounded by the header's total length so that
// Ethernet trailer padding never leaks into reassembly.
func decodeIPv4(data []byte) (core.IPHeader, []byte, error) {
	if len(data) < ipv4HeaderMinLen {
		return core.IPHeader{}, nil, core.ErrPacketTooShort
	}
	if version := data[0] >> 4; version != 4 {
		return core.IPHeader{Version: version}, nil, core.ErrUnsupportedProto
	}

	headerLen := int(data[0]&0x0F) * 4
	if headerLen < ipv4HeaderMinLen || len(data) < headerLen {
		return core.IPHeader{}, nil, core.ErrPacketTooShort
	}

	ip := core.IPHeader{
		Version:   4,
		HeaderLen: headerLen,
		TotalLen:  binary.BigEndian.Uint16(data[2:4]),
		ID:        binary.BigEndian.Uint16(data[4:6]),
		TTL:       data[8],
		Protocol:  data[9],
		SrcIP:     netip.AddrFrom4([4]byte(data[12:16])),
		DstIP:     netip.AddrFrom4([4]byte(data[16:20])),
	}

	flags := binary.BigEndian.Uint16(data[6:8])
	ip.DontFragment = flags&ipv4FlagDF != 0
	ip.MoreFragments = flags&ipv4FlagMF != 0
	ip.FragOffset = flags & ipv4OffsetMask

	end := int(ip.TotalLen)
	if end < headerLen || end > len(data) {
		// truncated capture or bogus length
		return ip, nil, core.ErrPacketTooShort
	}

	return ip, data[headerLen:end], nil
}

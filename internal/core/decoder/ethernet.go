// Package decoder implements L2-L4 protocol decoding and IPv4 reassembly.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/lidarpcd/internal/core"
)

const (
	ethernetHeaderLen = 14
	vlanHeaderLen     = 4

	etherTypeIPv4 = 0x0800
	etherTypeIPv6 = 0x86DD
	etherTypeVLAN = 0x8100
	etherTypeQinQ = 0x88A8
)

// decodeEthernet decodes the Ethernet header, unwrapping any 802.1Q or QinQ tags.
// Returns the header and the L3 payload.
func decodeEthernet(data []byte) (core.EthernetHeader, []byte, error) {
	if len(data) < ethernetHeaderLen {
		return core.EthernetHeader{}, nil, core.ErrPacketTooShort
	}

	var eth core.EthernetHeader
	copy(eth.DstMAC[:], data[0:6])
	copy(eth.SrcMAC[:], data[6:12])

	etherType := binary.BigEndian.Uint16(data[12:14])
	offset := ethernetHeaderLen

	for etherType == etherTypeVLAN || etherType == etherTypeQinQ {
		if len(data) < offset+vlanHeaderLen {
			return eth, nil, core.ErrPacketTooShort
		}
		tci := binary.BigEndian.Uint16(data[offset : offset+2])
		eth.VLANs = append(eth.VLANs, tci&0x0FFF)
		etherType = binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += vlanHeaderLen
	}

	eth.EtherType = etherType
	return eth, data[offset:], nil
}

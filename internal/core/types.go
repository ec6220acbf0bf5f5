// Package core defines core types with zero external dependencies.
package core

import "net/netip"

// EthernetHeader represents L2 Ethernet frame header.
type EthernetHeader struct {
	SrcMAC    [6]byte
	DstMAC    [6]byte
	EtherType uint16   // 0x0800=IPv4, 0x86DD=IPv6, 0x8100=VLAN
	VLANs     []uint16 // 0~2 VLAN IDs (QinQ scenarios have 2)
}

// IPHeader represents the L3 IPv4 header fields the decoder cares about.
type IPHeader struct {
	Version   uint8
	SrcIP     netip.Addr
	DstIP     netip.Addr
	Protocol  uint8 // UDP=17
	TTL       uint8
	TotalLen  uint16
	HeaderLen int
	// Fragmentation fields
	ID            uint16
	DontFragment  bool
	MoreFragments bool
	FragOffset    uint16 // in 8-byte units
}

// IsFragment reports whether the header describes a piece of a larger datagram.
func (h IPHeader) IsFragment() bool {
	return h.MoreFragments || h.FragOffset != 0
}

// TransportHeader represents the L4 UDP header.
type TransportHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16
	Protocol uint8 // Redundant storage for convenience
}

package decoder

import (
	"fmt"

	"firestige.xyz/lidarpcd/internal/core"
)

// Decoder decodes raw frames into UDP datagrams.
// ok is false while a datagram is still waiting for fragments.
type Decoder interface {
	Decode(raw core.RawPacket) (pkt core.DecodedPacket, ok bool, err error)
}

// StandardDecoder decodes Ethernet -> IPv4 -> (reassembly) -> UDP.
type StandardDecoder struct {
	reassembler *Reassembler
}

// NewStandardDecoder creates a decoder feeding every IPv4 packet through r.
// A nil r gets a fresh reassembler.
func NewStandardDecoder(r *Reassembler) *StandardDecoder {
	if r == nil {
		r = NewReassembler()
	}
	return &StandardDecoder{reassembler: r}
}

// Reassembler returns the fragment table used by the decoder.
func (d *StandardDecoder) Reassembler() *Reassembler {
	return d.reassembler
}

// Decode implements Decoder.
func (d *StandardDecoder) Decode(raw core.RawPacket) (core.DecodedPacket, bool, error) {
	pkt := core.DecodedPacket{
		Timestamp:  raw.Timestamp,
		CaptureLen: raw.CaptureLen,
		OrigLen:    raw.OrigLen,
	}

	eth, l3, err := decodeEthernet(raw.Data)
	if err != nil {
		return pkt, false, fmt.Errorf("ethernet: %w", err)
	}
	pkt.Ethernet = eth
	if eth.EtherType != etherTypeIPv4 {
		return pkt, false, fmt.Errorf("ethertype 0x%04x: %w", eth.EtherType, core.ErrUnsupportedProto)
	}

	ip, l4, err := decodeIPv4(l3)
	if err != nil {
		return pkt, false, fmt.Errorf("ipv4: %w", err)
	}
	pkt.IP = ip

	datagram, ok := d.reassembler.Submit(Fragment{
		Key: FlowKey{
			SrcIP:    ip.SrcIP.As4(),
			DstIP:    ip.DstIP.As4(),
			Protocol: ip.Protocol,
			ID:       ip.ID,
		},
		Offset:        ip.FragOffset,
		MoreFragments: ip.MoreFragments,
		DontFragment:  ip.DontFragment,
		Payload:       l4,
	})
	if !ok {
		return pkt, false, nil
	}
	pkt.Reassembled = !ip.DontFragment

	if ip.Protocol != protocolUDP {
		return pkt, false, fmt.Errorf("ip protocol %d: %w", ip.Protocol, core.ErrUnsupportedProto)
	}

	udp, payload, err := decodeUDP(datagram)
	if err != nil {
		return pkt, false, fmt.Errorf("udp: %w", err)
	}
	pkt.Transport = udp
	pkt.Payload = payload
	return pkt, true, nil
}

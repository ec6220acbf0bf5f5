// Package pcaptest synthesizes capture fixtures for tests.
package pcaptest

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var (
	srcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dstMAC = net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA}
)

// Flow describes the addressing of a synthesized UDP stream.
type Flow struct {
	SrcIP   net.IP
	DstIP   net.IP
	SrcPort uint16
	DstPort uint16
	VLAN    uint16 // 0 means untagged
}

// UDPDatagram serializes a UDP header plus payload, without the IP layer.
func UDPDatagram(f Flow, payload []byte) ([]byte, error) {
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(f.SrcPort),
		DstPort: layers.UDPPort(f.DstPort),
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, udp, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("serialize udp: %w", err)
	}
	return buf.Bytes(), nil
}

// IPv4Frame frames one IPv4 packet carrying data inside Ethernet.
// offset is in bytes and must be a multiple of 8.
func IPv4Frame(f Flow, id uint16, flags layers.IPv4Flag, offset int, data []byte) ([]byte, error) {
	ip := &layers.IPv4{
		Version:    4,
		TTL:        64,
		Id:         id,
		Flags:      flags,
		FragOffset: uint16(offset / 8),
		Protocol:   layers.IPProtocolUDP,
		SrcIP:      f.SrcIP.To4(),
		DstIP:      f.DstIP.To4(),
	}
	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}

	stack := []gopacket.SerializableLayer{eth}
	if f.VLAN != 0 {
		eth.EthernetType = layers.EthernetTypeDot1Q
		stack = append(stack, &layers.Dot1Q{
			VLANIdentifier: f.VLAN,
			Type:           layers.EthernetTypeIPv4,
		})
	}
	stack = append(stack, ip, gopacket.Payload(data))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, stack...); err != nil {
		return nil, fmt.Errorf("serialize frame: %w", err)
	}
	return buf.Bytes(), nil
}

// UDPFrames builds the Ethernet frames carrying payload to f.DstPort.
//
// With fragSize <= 0 the datagram travels whole with DF set. Otherwise the
// datagram is split into fragments of fragSize bytes (rounded down to a
// multiple of 8), in order.
func UDPFrames(f Flow, id uint16, payload []byte, fragSize int) ([][]byte, error) {
	datagram, err := UDPDatagram(f, payload)
	if err != nil {
		return nil, err
	}

	if fragSize <= 0 {
		frame, err := IPv4Frame(f, id, layers.IPv4DontFragment, 0, datagram)
		if err != nil {
			return nil, err
		}
		return [][]byte{frame}, nil
	}

	fragSize -= fragSize % 8
	if fragSize == 0 {
		return nil, fmt.Errorf("fragment size too small")
	}

	var frames [][]byte
	for off := 0; off < len(datagram); off += fragSize {
		end := min(off+fragSize, len(datagram))
		var flags layers.IPv4Flag
		if end < len(datagram) {
			flags = layers.IPv4MoreFragments
		}
		frame, err := IPv4Frame(f, id, flags, off, datagram[off:end])
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// WritePcap writes frames as a classic pcap file, one millisecond apart.
func WritePcap(w io.Writer, start time.Time, frames [][]byte) error {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return fmt.Errorf("write pcap header: %w", err)
	}
	for i, frame := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(frame),
			Length:        len(frame),
		}
		if err := pw.WritePacket(ci, frame); err != nil {
			return fmt.Errorf("write packet %d: %w", i, err)
		}
	}
	return nil
}

// WritePcapNg writes frames as a pcapng file with one Ethernet interface.
func WritePcapNg(w io.Writer, start time.Time, frames [][]byte) error {
	nw, err := pcapgo.NewNgWriter(w, layers.LinkTypeEthernet)
	if err != nil {
		return fmt.Errorf("create pcapng writer: %w", err)
	}
	for i, frame := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(frame),
			Length:        len(frame),
		}
		if err := nw.WritePacket(ci, frame); err != nil {
			return fmt.Errorf("write packet %d: %w", i, err)
		}
	}
	return nw.Flush()
}

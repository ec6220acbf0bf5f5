// Package utils holds helpers shared by the capture path.
package utils

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"golang.org/x/net/bpf"
)

const (
	etherTypeIPv4 = 0x0800
	etherTypeVLAN = 0x8100
	etherTypeQinQ = 0x88A8

	// offsets relative to X, which holds the VLAN tag bytes skipped
	etherTypeOff = 12
	ipv4SrcOff   = 14 + 12
	ipv4DstOff   = 14 + 16

	acceptLen = 0x40000
)

// IPv4Program returns a classic BPF program accepting Ethernet frames that
// carry IPv4, untagged or behind up to two VLAN tags. A valid host further
// restricts it to frames where host is the source or destination address.
func IPv4Program(host netip.Addr) []bpf.Instruction {
	prog := []bpf.Instruction{
		bpf.LoadConstant{Dst: bpf.RegX, Val: 0},
		bpf.LoadAbsolute{Off: etherTypeOff, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: etherTypeVLAN, SkipTrue: 1},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: etherTypeQinQ, SkipTrue: 5},
		bpf.LoadConstant{Dst: bpf.RegX, Val: 4},
		bpf.LoadIndirect{Off: etherTypeOff, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: etherTypeVLAN, SkipTrue: 2},
		bpf.LoadConstant{Dst: bpf.RegX, Val: 8},
		bpf.LoadIndirect{Off: etherTypeOff, Size: 2},
	}

	if !host.Is4() {
		return append(prog,
			bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: etherTypeIPv4, SkipTrue: 1},
			bpf.RetConstant{Val: acceptLen},
			bpf.RetConstant{Val: 0},
		)
	}

	h := binary.BigEndian.Uint32(host.AsSlice())
	return append(prog,
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: etherTypeIPv4, SkipTrue: 5},
		bpf.LoadIndirect{Off: ipv4SrcOff, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: h, SkipTrue: 2},
		bpf.LoadIndirect{Off: ipv4DstOff, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: h, SkipFalse: 1},
		bpf.RetConstant{Val: acceptLen},
		bpf.RetConstant{Val: 0},
	)
}

// CompileBpf assembles the IPv4 program for host into raw instructions.
func CompileBpf(host netip.Addr) ([]bpf.RawInstruction, error) {
	raw, err := bpf.Assemble(IPv4Program(host))
	if err != nil {
		return nil, fmt.Errorf("failed to assemble BPF filter: %w", err)
	}
	return raw, nil
}

// PacketFilter runs a BPF program over frames in user space.
type PacketFilter struct {
	vm  *bpf.VM
	len int
}

// NewPacketFilter builds the IPv4 filter for host. Pass the zero Addr to
// accept every IPv4 frame.
func NewPacketFilter(host netip.Addr) (*PacketFilter, error) {
	if host.IsValid() && !host.Is4() {
		return nil, fmt.Errorf("filter host %s is not an IPv4 address", host)
	}
	raw, err := CompileBpf(host)
	if err != nil {
		return nil, err
	}
	vm, err := bpf.NewVM(IPv4Program(host))
	if err != nil {
		return nil, fmt.Errorf("failed to load BPF filter: %w", err)
	}
	return &PacketFilter{vm: vm, len: len(raw)}, nil
}

// Match reports whether frame passes the filter.
func (f *PacketFilter) Match(frame []byte) bool {
	n, err := f.vm.Run(frame)
	return err == nil && n > 0
}

// Len returns the number of instructions in the program.
func (f *PacketFilter) Len() int {
	return f.len
}

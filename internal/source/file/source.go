// Package file reads Ethernet frames from pcap and pcapng capture files.
package file

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/spf13/afero"

	"firestige.xyz/lidarpcd/internal/core"
)

// Format is the detected capture container.
type Format int

const (
	FormatUnknown Format = iota
	FormatPcap
	FormatPcapNg
)

func (f Format) String() string {
	switch f {
	case FormatPcap:
		return "pcap"
	case FormatPcapNg:
		return "pcapng"
	default:
		return "unknown"
	}
}

const readBufferSize = 1 << 20

// Leading four bytes of each container, read big-endian.
const (
	magicMicroBE = 0xA1B2C3D4
	magicMicroLE = 0xD4C3B2A1
	magicNanoBE  = 0xA1B23C4D
	magicNanoLE  = 0x4D3CB2A1
	magicNgBlock = 0x0A0D0D0A
)

// DetectFormat identifies the container from its first four bytes.
func DetectFormat(magic []byte) Format {
	if len(magic) < 4 {
		return FormatUnknown
	}
	switch binary.BigEndian.Uint32(magic) {
	case magicMicroBE, magicMicroLE, magicNanoBE, magicNanoLE:
		return FormatPcap
	case magicNgBlock:
		return FormatPcapNg
	default:
		return FormatUnknown
	}
}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Source yields the frames of one capture file in file order.
type Source struct {
	path   string
	file   afero.File
	reader packetReader
	format Format
	count  uint64
}

// Open opens path on fs and prepares a reader for its container format.
// Only Ethernet captures are accepted.
func Open(fs afero.Fs, path string) (*Source, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file %s: %w", path, err)
	}

	s, err := newSource(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func newSource(f afero.File, path string) (*Source, error) {
	br := bufio.NewReaderSize(f, readBufferSize)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, core.ErrUnknownCaptureFormat, err)
	}

	s := &Source{path: path, file: f, format: DetectFormat(magic)}
	switch s.format {
	case FormatPcap:
		r, err := pcapgo.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", path, core.ErrUnknownCaptureFormat, err)
		}
		s.reader = r
	case FormatPcapNg:
		r, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", path, core.ErrUnknownCaptureFormat, err)
		}
		s.reader = r
	default:
		return nil, fmt.Errorf("%s: %w: magic %x", path, core.ErrUnknownCaptureFormat, magic)
	}

	if lt := s.reader.LinkType(); lt != layers.LinkTypeEthernet {
		return nil, fmt.Errorf("%s: %w: %s", path, core.ErrUnsupportedLinkType, lt)
	}
	return s, nil
}

// Next returns the next frame. It returns io.EOF at the end of the file and
// io.ErrUnexpectedEOF when the last record is truncated.
func (s *Source) Next() (core.RawPacket, error) {
	data, ci, err := s.reader.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return core.RawPacket{}, err
		}
		return core.RawPacket{}, fmt.Errorf("read packet %d of %s: %w", s.count+1, s.path, err)
	}
	s.count++

	return core.RawPacket{
		Data:       data,
		Timestamp:  ci.Timestamp,
		CaptureLen: uint32(ci.CaptureLength),
		OrigLen:    uint32(ci.Length),
	}, nil
}

// Format returns the detected container format.
func (s *Source) Format() Format {
	return s.format
}

// LinkType returns the capture's link type.
func (s *Source) LinkType() layers.LinkType {
	return s.reader.LinkType()
}

// Path returns the file the source reads.
func (s *Source) Path() string {
	return s.path
}

// Count returns the number of frames read so far.
func (s *Source) Count() uint64 {
	return s.count
}

// Close closes the underlying file.
func (s *Source) Close() error {
	return s.file.Close()
}

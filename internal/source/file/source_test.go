package file

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/lidarpcd/internal/core"
	"firestige.xyz/lidarpcd/internal/pcaptest"
)

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testFrames(t *testing.T) [][]byte {
	t.Helper()
	flow := pcaptest.Flow{
		SrcIP:   net.IPv4(10, 5, 5, 1),
		DstIP:   net.IPv4(10, 5, 5, 2),
		SrcPort: 7502,
		DstPort: 7502,
	}
	frames, err := pcaptest.UDPFrames(flow, 9, bytes.Repeat([]byte{1}, 200), 64)
	require.NoError(t, err)
	return frames
}

func readAll(t *testing.T, s *Source) []core.RawPacket {
	t.Helper()
	var out []core.RawPacket
	for {
		pkt, err := s.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, pkt)
	}
}

func TestOpen_Pcap(t *testing.T) {
	fs := afero.NewMemMapFs()
	frames := testFrames(t)

	var buf bytes.Buffer
	require.NoError(t, pcaptest.WritePcap(&buf, start, frames))
	require.NoError(t, afero.WriteFile(fs, "/cap/in.pcap", buf.Bytes(), 0o644))

	s, err := Open(fs, "/cap/in.pcap")
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, FormatPcap, s.Format())
	assert.Equal(t, layers.LinkTypeEthernet, s.LinkType())

	pkts := readAll(t, s)
	require.Len(t, pkts, len(frames))
	for i, p := range pkts {
		assert.Equal(t, frames[i], p.Data)
		assert.Equal(t, uint32(len(frames[i])), p.CaptureLen)
	}
	assert.True(t, pkts[1].Timestamp.Equal(start.Add(time.Millisecond)))
	assert.Equal(t, uint64(len(frames)), s.Count())
}

func TestOpen_PcapNg(t *testing.T) {
	fs := afero.NewMemMapFs()
	frames := testFrames(t)

	var buf bytes.Buffer
	require.NoError(t, pcaptest.WritePcapNg(&buf, start, frames))
	require.NoError(t, afero.WriteFile(fs, "/cap/in.pcapng", buf.Bytes(), 0o644))

	s, err := Open(fs, "/cap/in.pcapng")
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, FormatPcapNg, s.Format())
	assert.Equal(t, "pcapng", s.Format().String())

	pkts := readAll(t, s)
	require.Len(t, pkts, len(frames))
	assert.Equal(t, frames[len(frames)-1], pkts[len(pkts)-1].Data)
}

func TestOpen_UnknownFormat(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/garbage", []byte("this is not a capture"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/empty", nil, 0o644))

	_, err := Open(fs, "/garbage")
	assert.ErrorIs(t, err, core.ErrUnknownCaptureFormat)

	_, err = Open(fs, "/empty")
	assert.ErrorIs(t, err, core.ErrUnknownCaptureFormat)

	_, err = Open(fs, "/missing")
	assert.Error(t, err)
}

func TestOpen_NonEthernetLinkType(t *testing.T) {
	fs := afero.NewMemMapFs()

	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeRaw))
	require.NoError(t, w.WritePacket(gopacket.CaptureInfo{Timestamp: start, CaptureLength: 4, Length: 4}, []byte{0x45, 0, 0, 4}))
	require.NoError(t, afero.WriteFile(fs, "/raw.pcap", buf.Bytes(), 0o644))

	_, err := Open(fs, "/raw.pcap")
	assert.ErrorIs(t, err, core.ErrUnsupportedLinkType)
}

func TestNext_TruncatedRecord(t *testing.T) {
	fs := afero.NewMemMapFs()
	frames := testFrames(t)

	var buf bytes.Buffer
	require.NoError(t, pcaptest.WritePcap(&buf, start, frames))
	data := buf.Bytes()[:buf.Len()-5]
	require.NoError(t, afero.WriteFile(fs, "/cut.pcap", data, 0o644))

	s, err := Open(fs, "/cut.pcap")
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < len(frames)-1; i++ {
		_, err := s.Next()
		require.NoError(t, err)
	}
	_, err = s.Next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatPcap, DetectFormat([]byte{0xD4, 0xC3, 0xB2, 0xA1}))
	assert.Equal(t, FormatPcap, DetectFormat([]byte{0xA1, 0xB2, 0x3C, 0x4D}))
	assert.Equal(t, FormatPcapNg, DetectFormat([]byte{0x0A, 0x0D, 0x0D, 0x0A}))
	assert.Equal(t, FormatUnknown, DetectFormat([]byte{0x0A}))
	assert.Equal(t, "unknown", FormatUnknown.String())
}

package cmd

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/lidarpcd/internal/config"
	"firestige.xyz/lidarpcd/internal/core"
	"firestige.xyz/lidarpcd/internal/pcaptest"
)

const sensorMeta = `{
  "beam_azimuth_angles": [0, 0],
  "beam_altitude_angles": [1, -1],
  "beam_to_lidar_transform": [1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1],
  "data_format": {"columns_per_frame": 2, "columns_per_packet": 2, "pixels_per_column": 2}
}`

// writeFixture stores a calibration and a capture of three rotations, each in
// one datagram split into two fragments.
func writeFixture(t *testing.T, fs afero.Fs) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, "/data/meta.json", []byte(sensorMeta), 0o644))

	flow := pcaptest.Flow{
		SrcIP:   net.IPv4(10, 0, 0, 2),
		DstIP:   net.IPv4(10, 0, 0, 1),
		SrcPort: 7502,
		DstPort: 7502,
	}
	pixels := []pcaptest.Pixel{{Range: 2000, Reflectivity: 9}, {Range: 3000, Reflectivity: 18}}

	var frames [][]byte
	for i := uint16(1); i <= 3; i++ {
		payload := append(
			pcaptest.Column(uint64(i)*100, 0, i, pixels, true),
			pcaptest.Column(uint64(i)*100+1, 1, i, pixels, true)...,
		)
		fragments, err := pcaptest.UDPFrames(flow, i, payload, 64)
		require.NoError(t, err)
		frames = append(frames, fragments...)
	}

	var buf bytes.Buffer
	require.NoError(t, pcaptest.WritePcapNg(&buf, time.Unix(1700000000, 0), frames))
	require.NoError(t, afero.WriteFile(fs, "/data/capture.pcapng", buf.Bytes(), 0o644))
}

func testConfig() *config.Config {
	cfg := &config.Config{
		Port:   7502,
		Meta:   "/data/meta.json",
		Input:  "/data/capture.pcapng",
		Output: "/data/out",
		Digits: 3,
		Log:    config.LogConfig{Level: "info", Format: "text"},
	}
	return cfg
}

func TestRunExtract(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFixture(t, fs)

	cfg := testConfig()
	cfg.Filter.Host = "10.0.0.2"
	cfg.Metrics = config.MetricsConfig{Enabled: true, Listen: "127.0.0.1:0", Path: "/metrics"}
	require.NoError(t, cfg.ValidateAndApplyDefaults())

	stats, err := runExtract(context.Background(), cfg, fs)
	require.NoError(t, err)

	names, err := afero.Glob(fs, "/data/out/*.pcd")
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/out/000.pcd", "/data/out/001.pcd"}, names)

	assert.Equal(t, uint64(3), stats.Payloads)
	assert.Equal(t, uint64(2), stats.Frames.Flushed)
	assert.Equal(t, uint64(3), stats.Reassembly.Reassembled)
}

func TestRunExtract_MissingCalibration(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFixture(t, fs)

	cfg := testConfig()
	cfg.Meta = "/data/absent.json"

	_, err := runExtract(context.Background(), cfg, fs)
	require.Error(t, err)

	exists, _ := afero.DirExists(fs, "/data/out")
	assert.False(t, exists, "no output before the calibration loads")
}

func TestRunExtract_UnknownCapture(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFixture(t, fs)
	require.NoError(t, afero.WriteFile(fs, "/data/capture.pcapng", []byte("plain text, not a capture"), 0o644))

	_, err := runExtract(context.Background(), testConfig(), fs)
	assert.ErrorIs(t, err, core.ErrUnknownCaptureFormat)
}

func TestRunExtract_ReadOnlyOutput(t *testing.T) {
	base := afero.NewMemMapFs()
	writeFixture(t, base)

	_, err := runExtract(context.Background(), testConfig(), afero.NewReadOnlyFs(base))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output directory")
}

func TestRunValidate(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFixture(t, fs)

	var out bytes.Buffer
	require.NoError(t, runValidate(testConfig(), fs, &out))

	text := out.String()
	assert.Contains(t, text, "port: 7502\n")
	assert.Contains(t, text, "digits: 3\n")
	assert.Contains(t, text, "VALID: calibration /data/meta.json: 2 columns/frame, 2 columns/packet, 2 pixels/column, 88 bytes/packet")
	assert.Contains(t, text, "VALID: capture /data/capture.pcapng: pcapng, link type Ethernet")

	exists, _ := afero.DirExists(fs, "/data/out")
	assert.False(t, exists)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, Execute())
	assert.Contains(t, out.String(), "lidarpcd "+version)
}

func TestExtractCommand_RequiresPort(t *testing.T) {
	rootCmd.SetArgs([]string{"extract", "-m", "meta.json", "-i", "in.pcap", "-o", "out"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := Execute()
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

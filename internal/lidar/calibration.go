package lidar

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"firestige.xyz/lidarpcd/internal/core"
)

// DataFormat describes the column layout of the sensor's packets.
type DataFormat struct {
	ColumnsPerFrame  int `json:"columns_per_frame" yaml:"columns_per_frame"`
	ColumnsPerPacket int `json:"columns_per_packet" yaml:"columns_per_packet"`
	PixelsPerColumn  int `json:"pixels_per_column" yaml:"pixels_per_column"`
}

// Calibration is the sensor metadata document. Unknown fields are ignored.
type Calibration struct {
	BeamAzimuthAngles    []float64  `json:"beam_azimuth_angles"`     // degrees
	BeamAltitudeAngles   []float64  `json:"beam_altitude_angles"`    // degrees
	BeamToLidarTransform []float64  `json:"beam_to_lidar_transform"` // 4x4 row-major
	DataFormat           DataFormat `json:"data_format"`
}

// LoadCalibration reads and validates a calibration document from fs.
func LoadCalibration(fs afero.Fs, path string) (*Calibration, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open calibration %s: %w", path, err)
	}
	defer f.Close()

	cal, err := ReadCalibration(f)
	if err != nil {
		return nil, fmt.Errorf("calibration %s: %w", path, err)
	}
	return cal, nil
}

// ReadCalibration decodes and validates a calibration document.
func ReadCalibration(r io.Reader) (*Calibration, error) {
	var cal Calibration
	if err := json.NewDecoder(r).Decode(&cal); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCalibrationInvalid, err)
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return &cal, nil
}

// Validate checks the document is usable for decoding.
func (c *Calibration) Validate() error {
	df := c.DataFormat
	if df.ColumnsPerFrame <= 0 || df.ColumnsPerPacket <= 0 || df.PixelsPerColumn <= 0 {
		return fmt.Errorf("%w: data_format values must be positive (columns_per_frame=%d columns_per_packet=%d pixels_per_column=%d)",
			core.ErrCalibrationInvalid, df.ColumnsPerFrame, df.ColumnsPerPacket, df.PixelsPerColumn)
	}
	if len(c.BeamToLidarTransform) != 16 {
		return fmt.Errorf("%w: beam_to_lidar_transform has %d values, want 16",
			core.ErrCalibrationInvalid, len(c.BeamToLidarTransform))
	}
	if len(c.BeamAzimuthAngles) != len(c.BeamAltitudeAngles) {
		return fmt.Errorf("%w: %d azimuth angles but %d altitude angles",
			core.ErrCalibrationInvalid, len(c.BeamAzimuthAngles), len(c.BeamAltitudeAngles))
	}
	if len(c.BeamAzimuthAngles) < df.PixelsPerColumn {
		return fmt.Errorf("%w: %d beam angles for %d pixels per column",
			core.ErrCalibrationInvalid, len(c.BeamAzimuthAngles), df.PixelsPerColumn)
	}
	return nil
}

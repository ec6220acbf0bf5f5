package lidar

import "math"

// Model holds the per-channel trigonometry derived from a Calibration.
// It is immutable once built.
type Model struct {
	format DataFormat

	n  float64 // beam origin offset from the lidar origin, mm
	tx float64 // beam_to_lidar_transform[3]
	tz float64 // beam_to_lidar_transform[11]

	azimuth []float64 // correction, radians
	cosAlt  []float64
	sinAlt  []float64
}

// NewModel validates cal and precomputes the channel tables.
func NewModel(cal *Calibration) (*Model, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}

	t := cal.BeamToLidarTransform
	m := &Model{
		format:  cal.DataFormat,
		n:       math.Hypot(t[3], t[11]),
		tx:      t[3],
		tz:      t[11],
		azimuth: make([]float64, len(cal.BeamAzimuthAngles)),
		cosAlt:  make([]float64, len(cal.BeamAltitudeAngles)),
		sinAlt:  make([]float64, len(cal.BeamAltitudeAngles)),
	}
	for i, az := range cal.BeamAzimuthAngles {
		m.azimuth[i] = -2 * math.Pi * az / 360
	}
	for i, alt := range cal.BeamAltitudeAngles {
		rad := 2 * math.Pi * alt / 360
		m.cosAlt[i] = math.Cos(rad)
		m.sinAlt[i] = math.Sin(rad)
	}
	return m, nil
}

// Format returns the packet layout of the sensor.
func (m *Model) Format() DataFormat {
	return m.format
}

// ColumnLen is the size in bytes of one measurement block.
func (m *Model) ColumnLen() int {
	return columnHeaderLen + m.format.PixelsPerColumn*pixelLen + columnStatusLen
}

// PacketLen is the minimum payload size holding columns_per_packet blocks.
func (m *Model) PacketLen() int {
	return m.format.ColumnsPerPacket * m.ColumnLen()
}

// FramePoints is the number of channel readings a complete frame contains.
func (m *Model) FramePoints() int {
	return m.format.ColumnsPerFrame * m.format.PixelsPerColumn
}

// Point projects a range reading of channel ch in column measurementID to
// Cartesian metres.
func (m *Model) Point(measurementID uint16, ch int, rangeMM uint32) (x, y, z float64) {
	encoder := 2 * math.Pi * (1 - float64(measurementID)/float64(m.format.ColumnsPerFrame))
	r := float64(rangeMM) - m.n

	x = (r*math.Cos(encoder+m.azimuth[ch])*m.cosAlt[ch] + m.tx*math.Cos(encoder)) / 1000
	y = (r*math.Sin(encoder+m.azimuth[ch])*m.cosAlt[ch] + m.tx*math.Sin(encoder)) / 1000
	z = (r*m.sinAlt[ch] + m.tz) / 1000
	return x, y, z
}

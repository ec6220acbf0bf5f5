package lidar

import "encoding/binary"

const (
	columnHeaderLen = 16
	columnStatusLen = 4
	pixelLen        = 12

	statusValid = 0xFFFFFFFF
	rangeMask   = 0x000FFFFF
)

// column is one measurement block. pixels aliases the payload.
type column struct {
	timestamp     uint64
	measurementID uint16
	frameID       uint16
	status        uint32
	pixels        []byte
}

// parseColumn splits a block of exactly ColumnLen bytes.
func parseColumn(b []byte) column {
	end := len(b) - columnStatusLen
	return column{
		timestamp:     binary.LittleEndian.Uint64(b[0:8]),
		measurementID: binary.LittleEndian.Uint16(b[8:10]),
		frameID:       binary.LittleEndian.Uint16(b[10:12]),
		status:        binary.LittleEndian.Uint32(b[end:]),
		pixels:        b[columnHeaderLen:end],
	}
}

func (c column) valid() bool {
	return c.status == statusValid
}

// pixel returns the range (mm) and reflectivity of channel ch.
func (c column) pixel(ch int) (rangeMM uint32, reflectivity uint8) {
	p := c.pixels[ch*pixelLen : (ch+1)*pixelLen]
	return binary.LittleEndian.Uint32(p[0:4]) & rangeMask, p[4]
}

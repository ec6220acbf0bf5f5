package pcaptest

import "encoding/binary"

// Pixel is one channel reading of a legacy measurement block.
type Pixel struct {
	Range        uint32 // millimetres, low 20 bits
	Reflectivity uint8
}

// Column encodes a legacy measurement block. A false valid writes a zero
// status word.
func Column(ts uint64, measurementID, frameID uint16, pixels []Pixel, valid bool) []byte {
	buf := make([]byte, 20+len(pixels)*12)
	binary.LittleEndian.PutUint64(buf[0:8], ts)
	binary.LittleEndian.PutUint16(buf[8:10], measurementID)
	binary.LittleEndian.PutUint16(buf[10:12], frameID)

	off := 16
	for _, p := range pixels {
		binary.LittleEndian.PutUint32(buf[off:off+4], p.Range&0xFFFFF)
		buf[off+4] = p.Reflectivity
		off += 12
	}

	if valid {
		binary.LittleEndian.PutUint32(buf[off:off+4], 0xFFFFFFFF)
	}
	return buf
}

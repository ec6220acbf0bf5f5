package lidar

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const pcdHeaderFormat = `# .PCD v.7 - Point Cloud Data file format
# timestamp: %d
VERSION .7
FIELDS x y z intensity
SIZE 4 4 4 4
TYPE F F F F
COUNT 1 1 1 1
WIDTH %d
HEIGHT 1
VIEWPOINT 0 0 0 1 0 0 0
POINTS %d
DATA binary
`

// PCDHeader renders the ASCII header of a binary PCD v0.7 file.
func PCDHeader(timestamp uint64, points int) string {
	return fmt.Sprintf(pcdHeaderFormat, timestamp, points, points)
}

// PCDBody encodes values as consecutive little-endian float32.
func PCDBody(values []float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// PCDFileName returns the zero-padded file name for a frame index.
func PCDFileName(index, digits int) string {
	return fmt.Sprintf("%0*d.pcd", digits, index)
}

// Header returns the PCD header for f.
func (f *Frame) Header() string {
	return PCDHeader(f.Timestamp, f.Len())
}

// Body returns the binary PCD payload for f.
func (f *Frame) Body() []byte {
	return PCDBody(f.Points)
}

// WriteTo writes f as a complete PCD file.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, f.Header())
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(f.Body())
	return int64(n + m), err
}

/*
Package lidar decodes legacy Ouster LIDAR UDP payloads into point-cloud frames.

A payload carries columns_per_packet measurement blocks back to back. Each block
is 20 + pixels_per_column*12 bytes, little-endian:

	[0,8)        timestamp (u64, ns)
	[8,10)       measurement id (u16), the column index within a rotation
	[10,12)      frame id (u16)
	[12,16)      reserved
	[16,len-4)   pixels_per_column channel blocks of 12 bytes
	             ├── [0,4)  range in mm, low 20 bits of a u32
	             ├── [4]    reflectivity
	             └── [5,12) signal/noise, ignored
	[len-4,len)  block status, 0xFFFFFFFF when valid

FrameDecoder follows frame ids across blocks. A frame is emitted when the id
changes and the finished frame saw at least columns_per_frame*pixels_per_column
channel readings; otherwise it is dropped. A short payload or a block with a bad
status marks the stream broken, and everything up to the next frame id change
is discarded.

Frames serialize as PCD v0.7 with binary little-endian float32 x y z intensity.
*/
package lidar

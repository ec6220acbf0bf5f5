// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors shared across packages; wrap with %w and test with errors.Is.
var (
	// Packet decoding errors
	ErrPacketTooShort       = errors.New("lidarpcd: packet too short")
	ErrUnsupportedProto     = errors.New("lidarpcd: unsupported protocol")
	ErrUnknownCaptureFormat = errors.New("lidarpcd: unrecognized capture format")
	ErrUnsupportedLinkType  = errors.New("lidarpcd: unsupported link type")

	// IP reassembly errors
	ErrFragmentMalformed    = errors.New("lidarpcd: malformed fragment")
	ErrFragmentInconsistent = errors.New("lidarpcd: fragment overlaps received data")

	// Calibration errors
	ErrCalibrationInvalid = errors.New("lidarpcd: invalid calibration")

	// Configuration errors
	ErrConfigInvalid = errors.New("lidarpcd: invalid configuration")

	// Sink errors
	ErrSinkClosed = errors.New("lidarpcd: sink closed")
)

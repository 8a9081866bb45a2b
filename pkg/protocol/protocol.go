// Package protocol defines the table wire messages and their length-prefixed framing.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// FrameHeaderSize is the byte size of the length prefix in front of every frame.
	FrameHeaderSize = 4

	// MaxFrameSize is the maximum frame payload size (64KB).
	MaxFrameSize = 65536
)

// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize in either direction.
var ErrFrameTooLarge = errors.New("protocol: frame too large")

// WriteFrame writes one length-prefixed frame to a writer.
// Format: [4-byte big-endian length][payload]
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	// Header and payload go out in a single write so concurrent readers never see a torn frame.
	buf := make([]byte, FrameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[:FrameHeaderSize], uint32(len(payload))) //nolint:gosec // length already bounds-checked above
	copy(buf[FrameHeaderSize:], payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("protocol: write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from a reader.
func ReadFrame(r io.Reader) ([]byte, error) {
	lenBuf := make([]byte, FrameHeaderSize)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, fmt.Errorf("protocol: read length: %w", err)
	}
	length := binary.BigEndian.Uint32(lenBuf)
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("protocol: read payload: %w", err)
	}
	return data, nil
}

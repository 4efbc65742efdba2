// Package protocol implements the client wire format: length-prefixed
// frames carrying a request kind or response status followed by a
// length-prefixed inner payload.
//
//	frame:    [4 bytes big-endian length][payload]
//	request:  [int32 kind][uint32 length][inner]
//	response: [int32 status][uint32 length][data]
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// frameHeaderLength is the size of the outer length prefix.
const frameHeaderLength = 4

// DefaultMaxFrameBytes bounds the declared frame length accepted from a peer.
const DefaultMaxFrameBytes = 16 << 20

var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// EncodeFrame prepends the 4-byte big-endian length of payload.
func EncodeFrame(payload []byte) []byte {
	frame := make([]byte, frameHeaderLength+len(payload))
	binary.BigEndian.PutUint32(frame[:frameHeaderLength], uint32(len(payload)))
	copy(frame[frameHeaderLength:], payload)
	return frame
}

// DecodeFrame extracts the first complete frame from buf. It returns the
// payload and the number of bytes consumed, or ok=false without consuming
// anything when buf does not yet hold a whole frame. The returned payload
// aliases buf.
func DecodeFrame(buf []byte) (payload []byte, consumed int, ok bool) {
	if len(buf) < frameHeaderLength {
		return nil, 0, false
	}
	size := int(binary.BigEndian.Uint32(buf[:frameHeaderLength]))
	if len(buf)-frameHeaderLength < size {
		return nil, 0, false
	}
	end := frameHeaderLength + size
	return buf[frameHeaderLength:end:end], end, true
}

// FrameBuffer reassembles frames from an arbitrary sequence of reads. It
// keeps any partial frame between Feed calls.
type FrameBuffer struct {
	receiveBuffer []byte
	// expectedFrameSize is the payload length of the frame being
	// assembled; -1 means the prefix has not been read yet.
	expectedFrameSize int
	maxFrameBytes     int
}

func NewFrameBuffer(maxFrameBytes int) *FrameBuffer {
	if maxFrameBytes <= 0 {
		maxFrameBytes = DefaultMaxFrameBytes
	}
	return &FrameBuffer{expectedFrameSize: -1, maxFrameBytes: maxFrameBytes}
}

// Feed appends bytes read from the connection.
func (b *FrameBuffer) Feed(data []byte) {
	b.receiveBuffer = append(b.receiveBuffer, data...)
}

// Next returns the next complete frame payload. ok is false when more
// bytes are needed. The payload is a fresh copy owned by the caller.
func (b *FrameBuffer) Next() (payload []byte, ok bool, err error) {
	if b.expectedFrameSize < 0 {
		if len(b.receiveBuffer) < frameHeaderLength {
			return nil, false, nil
		}
		size := binary.BigEndian.Uint32(b.receiveBuffer[:frameHeaderLength])
		if uint64(size) > uint64(b.maxFrameBytes) {
			return nil, false, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, size, b.maxFrameBytes)
		}
		b.expectedFrameSize = int(size)
		b.receiveBuffer = b.receiveBuffer[frameHeaderLength:]
	}

	if len(b.receiveBuffer) < b.expectedFrameSize {
		return nil, false, nil
	}

	payload = make([]byte, b.expectedFrameSize)
	copy(payload, b.receiveBuffer[:b.expectedFrameSize])
	b.receiveBuffer = b.receiveBuffer[b.expectedFrameSize:]
	b.expectedFrameSize = -1

	if len(b.receiveBuffer) == 0 {
		b.receiveBuffer = nil
	}
	return payload, true, nil
}

// Buffered reports how many bytes are held back waiting for more data.
func (b *FrameBuffer) Buffered() int {
	return len(b.receiveBuffer)
}

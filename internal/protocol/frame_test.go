package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFrame_RoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		{0x01},
		[]byte("hello frame"),
		bytes.Repeat([]byte{0xAB}, 70000),
	}

	for _, p := range payloads {
		frame := EncodeFrame(p)
		require.Len(t, frame, 4+len(p))

		got, consumed, ok := DecodeFrame(frame)
		require.True(t, ok)
		assert.Equal(t, len(frame), consumed)
		assert.Equal(t, len(p), len(got))
		assert.True(t, bytes.Equal(p, got))
	}
}

func TestEncodeFrame_BigEndianPrefix(t *testing.T) {
	frame := EncodeFrame([]byte("abc"))
	assert.Equal(t, []byte{0, 0, 0, 3, 'a', 'b', 'c'}, frame)
}

func TestDecodeFrame_Incomplete(t *testing.T) {
	frame := EncodeFrame([]byte("payload"))

	for i := 0; i < len(frame); i++ {
		_, consumed, ok := DecodeFrame(frame[:i])
		assert.False(t, ok, "prefix of %d bytes", i)
		assert.Zero(t, consumed)
	}
}

func TestFrameBuffer_ByteByByte(t *testing.T) {
	frames := [][]byte{[]byte("first"), {}, []byte("third frame")}
	var stream []byte
	for _, f := range frames {
		stream = append(stream, EncodeFrame(f)...)
	}

	buf := NewFrameBuffer(0)
	var got [][]byte
	for _, b := range stream {
		buf.Feed([]byte{b})
		for {
			payload, ok, err := buf.Next()
			require.NoError(t, err)
			if !ok {
				break
			}
			got = append(got, payload)
		}
	}

	require.Len(t, got, len(frames))
	for i := range frames {
		assert.True(t, bytes.Equal(frames[i], got[i]), "frame %d", i)
	}
	assert.Zero(t, buf.Buffered())
}

func TestFrameBuffer_BackToBackInOneRead(t *testing.T) {
	stream := append(EncodeFrame([]byte("a")), EncodeFrame([]byte("bb"))...)
	stream = append(stream, 0, 0) // start of a third prefix

	buf := NewFrameBuffer(0)
	buf.Feed(stream)

	p1, ok, err := buf.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", string(p1))

	p2, ok, err := buf.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bb", string(p2))

	_, ok, err = buf.Next()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, buf.Buffered())
}

func TestFrameBuffer_PayloadIsCopied(t *testing.T) {
	buf := NewFrameBuffer(0)
	buf.Feed(EncodeFrame([]byte("xyz")))

	p, ok, err := buf.Next()
	require.NoError(t, err)
	require.True(t, ok)

	buf.Feed(EncodeFrame([]byte("qqq")))
	assert.Equal(t, "xyz", string(p))
}

func TestFrameBuffer_TooLarge(t *testing.T) {
	buf := NewFrameBuffer(8)
	buf.Feed([]byte{0, 0, 0, 9})

	_, ok, err := buf.Next()
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrShortPayload = errors.New("payload truncated")

// Writer appends big-endian fields to a byte slice.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Int32(v int32) *Writer {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
	return w
}

func (w *Writer) Uint32(v uint32) *Writer {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
	return w
}

func (w *Writer) Float64(v float64) *Writer {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
	return w
}

// Time is written as Unix milliseconds; the zero time is written as 0.
func (w *Writer) Time(t time.Time) *Writer {
	var ms int64
	if !t.IsZero() {
		ms = t.UnixMilli()
	}
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(ms))
	return w
}

func (w *Writer) Blob(b []byte) *Writer {
	w.Uint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
	return w
}

func (w *Writer) Text(s string) *Writer {
	w.Uint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
	return w
}

func (w *Writer) Texts(list []string) *Writer {
	w.Uint32(uint32(len(list)))
	for _, s := range list {
		w.Text(s)
	}
	return w
}

// Reader consumes fields written by Writer. The first failure is sticky:
// later reads return zero values and Err reports the original problem.
type Reader struct {
	buf []byte
	err error
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

func (r *Reader) Err() error {
	return r.err
}

// Remaining reports unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf)
}

func (r *Reader) take(n int, field string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf) < n {
		r.err = fmt.Errorf("%w: reading %s: need %d bytes, have %d", ErrShortPayload, field, n, len(r.buf))
		return nil
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out
}

func (r *Reader) Int32() int32 {
	b := r.take(4, "int32")
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (r *Reader) Uint32() uint32 {
	b := r.take(4, "uint32")
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *Reader) Float64() float64 {
	b := r.take(8, "float64")
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

func (r *Reader) Time() time.Time {
	b := r.take(8, "time")
	if b == nil {
		return time.Time{}
	}
	ms := int64(binary.BigEndian.Uint64(b))
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (r *Reader) Blob() []byte {
	n := r.Uint32()
	if r.err != nil {
		return nil
	}
	b := r.take(int(n), "blob")
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (r *Reader) Text() string {
	n := r.Uint32()
	if r.err != nil {
		return ""
	}
	return string(r.take(int(n), "string"))
}

func (r *Reader) Texts() []string {
	n := r.Uint32()
	if r.err != nil {
		return nil
	}
	// Every string needs at least its 4-byte length.
	if uint64(n)*4 > uint64(len(r.buf)) {
		r.err = fmt.Errorf("%w: string list of %d entries", ErrShortPayload, n)
		return nil
	}
	list := make([]string, 0, n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		list = append(list, r.Text())
	}
	return list
}

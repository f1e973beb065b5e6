package segment

import (
	"encoding/binary"
	"fmt"
)

// reader walks a body buffer, refusing any access that would run past its end.
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) uint16() (uint16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) next(n int) ([]byte, error) {
	if n < 0 || n > r.remaining() {
		return nil, fmt.Errorf("%w: field of %d bytes at offset %d overruns body of %d bytes",
			ErrMalformedSegment, n, r.off, len(r.buf))
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// text reads a uint16 length prefix followed by that many bytes.
func (r *reader) text() (string, error) {
	n, err := r.uint16()
	if err != nil {
		return "", err
	}
	b, err := r.next(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// writer appends wire fields to a growing buffer.
type writer struct {
	buf []byte
}

func (w *writer) byte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *writer) uint16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

// text writes s with its uint16 length prefix.
func (w *writer) text(s string) error {
	if len(s) > MaxLength {
		return fmt.Errorf("%w: text field is %d bytes", ErrLengthOverflow, len(s))
	}
	w.uint16(uint16(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

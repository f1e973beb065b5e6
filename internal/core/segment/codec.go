package segment

import (
	"errors"
	"fmt"
)

var (
	// ErrLengthOverflow is returned when a field or body does not fit in a uint16.
	ErrLengthOverflow = errors.New("segment: length overflow")
	// ErrMalformedSegment is returned when a body's inner lengths disagree with
	// its declared length.
	ErrMalformedSegment = errors.New("segment: malformed segment")
	// ErrUnencodable is returned when asked to encode an Unrecognized segment.
	ErrUnencodable = errors.New("segment: cannot encode unrecognized segment")
)

// Encode converts s into its exact wire representation, header included.
func Encode(s Segment) ([]byte, error) {
	body, err := encodeBody(s)
	if err != nil {
		return nil, err
	}
	if len(body) > MaxLength {
		return nil, fmt.Errorf("%w: %s body is %d bytes", ErrLengthOverflow, s.Type(), len(body))
	}

	w := writer{buf: make([]byte, 0, HeaderSize+len(body))}
	w.byte(byte(s.Type()))
	w.uint16(uint16(len(body)))
	w.buf = append(w.buf, body...)
	return w.buf, nil
}

func encodeBody(s Segment) ([]byte, error) {
	var w writer

	switch seg := s.(type) {
	case Message:
		if err := w.text(seg.Sender); err != nil {
			return nil, fmt.Errorf("encoding sender: %w", err)
		}
		if err := w.text(seg.Contents); err != nil {
			return nil, fmt.Errorf("encoding contents: %w", err)
		}
	case Status:
		if err := w.text(seg.Text); err != nil {
			return nil, fmt.Errorf("encoding status: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnencodable, s.Type())
	}

	return w.buf, nil
}

// Decode interprets body according to t. The body must be exactly the length
// declared in the segment header. Unknown tags decode to Unrecognized.
func Decode(t Type, body []byte) (Segment, error) {
	r := &reader{buf: body}

	var seg Segment
	switch t {
	case TypeMessage:
		sender, err := r.text()
		if err != nil {
			return nil, fmt.Errorf("decoding sender: %w", err)
		}
		contents, err := r.text()
		if err != nil {
			return nil, fmt.Errorf("decoding contents: %w", err)
		}
		seg = Message{Sender: sender, Contents: contents}
	case TypeStatus:
		text, err := r.text()
		if err != nil {
			return nil, fmt.Errorf("decoding status: %w", err)
		}
		seg = Status{Text: text}
	default:
		return Unrecognized{Tag: t}, nil
	}

	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after %s body", ErrMalformedSegment, r.remaining(), t)
	}
	return seg, nil
}

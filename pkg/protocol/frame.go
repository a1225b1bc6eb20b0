package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

// Frame layer constants. Magic spells 'VKUC'.
const (
	FrameMagic   = 0x564B5543
	FrameVersion = 0x0100 // v1.0

	frameHeaderSize = 12
)

// Frame kinds. Text frames carry tag-encoded control messages,
// binary frames carry raw file chunks.
const (
	FrameText   uint8 = 0
	FrameBinary uint8 = 1
)

var (
	ErrInvalidMagic   = errors.New("invalid frame magic")
	ErrInvalidVersion = errors.New("unsupported frame version")
	ErrInvalidKind    = errors.New("invalid frame kind")
	ErrFrameTooLarge  = errors.New("frame payload exceeds maximum size")
)

// Frame is one wire unit: a kind discriminant plus its payload.
type Frame struct {
	Kind    uint8
	Payload []byte
}

// TextFrame wraps a control message in a text frame.
func TextFrame(m Message) *Frame {
	return &Frame{Kind: FrameText, Payload: []byte(m.Encode())}
}

// BinaryFrame wraps a raw file chunk in a binary frame.
func BinaryFrame(chunk []byte) *Frame {
	return &Frame{Kind: FrameBinary, Payload: chunk}
}

// Text returns the payload as a string. Only meaningful for text frames.
func (f *Frame) Text() string {
	return string(f.Payload)
}

// encodeHeader writes the 12-byte frame header:
// magic(4) version(2) kind(1) reserved(1) length(4), big-endian.
func (f *Frame) encodeHeader(buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], FrameMagic)
	binary.BigEndian.PutUint16(buf[4:6], FrameVersion)
	buf[6] = f.Kind
	buf[7] = 0
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(f.Payload)))
}

// WriteFrame writes one frame. Header and payload go out in a single
// Write call so the frame hits the wire contiguously.
func WriteFrame(w io.Writer, f *Frame) error {
	if len(f.Payload) > MaxMessageSize {
		return ErrFrameTooLarge
	}
	if f.Kind != FrameText && f.Kind != FrameBinary {
		return ErrInvalidKind
	}
	buf := make([]byte, frameHeaderSize+len(f.Payload))
	f.encodeHeader(buf)
	copy(buf[frameHeaderSize:], f.Payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads and validates one frame.
func ReadFrame(r io.Reader) (*Frame, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	if binary.BigEndian.Uint32(header[0:4]) != FrameMagic {
		return nil, ErrInvalidMagic
	}
	if binary.BigEndian.Uint16(header[4:6]) != FrameVersion {
		return nil, ErrInvalidVersion
	}

	kind := header[6]
	if kind != FrameText && kind != FrameBinary {
		return nil, ErrInvalidKind
	}

	length := binary.BigEndian.Uint32(header[8:12])
	if length > MaxMessageSize {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	return &Frame{Kind: kind, Payload: payload}, nil
}

package message

import (
	"errors"
	"fmt"
)

// ErrFrameTooShort is returned when binary input cannot cover the
// configured header length.
var ErrFrameTooShort = errors.New("frame shorter than header length")

// FramedBinary is a fixed-length opaque header followed by a UTF-8 text
// payload (typically XML) running to the end of the message.
type FramedBinary struct {
	data      []byte
	headerLen int
	payload   string
}

// NewFramedBinary builds a message from a header and a text payload.
func NewFramedBinary(header []byte, payload string) *FramedBinary {
	data := make([]byte, 0, len(header)+len(payload))
	data = append(data, header...)
	data = append(data, payload...)
	return &FramedBinary{
		data:      data,
		headerLen: len(header),
		payload:   payload,
	}
}

// ParseFramedBinary interprets full as headerLen opaque bytes followed
// by a UTF-8 payload. It fails when the input cannot cover the header.
func ParseFramedBinary(full []byte, headerLen int) (*FramedBinary, error) {
	if headerLen < 0 || len(full) < headerLen {
		return nil, fmt.Errorf("%w: %d bytes, header %d", ErrFrameTooShort, len(full), headerLen)
	}
	data := make([]byte, len(full))
	copy(data, full)
	return &FramedBinary{
		data:      data,
		headerLen: headerLen,
		payload:   string(data[headerLen:]),
	}, nil
}

// WellFormedFrame reports whether data holds a header plus at least one
// payload byte.
func WellFormedFrame(data []byte, headerLen int) bool {
	return len(data) > headerLen
}

// Bytes returns a copy of the raw message bytes (header + payload).
func (m *FramedBinary) Bytes() []byte {
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

// Len returns the total message length in bytes.
func (m *FramedBinary) Len() int { return len(m.data) }

// Header returns a copy of the opaque header bytes.
func (m *FramedBinary) Header() []byte {
	out := make([]byte, m.headerLen)
	copy(out, m.data[:m.headerLen])
	return out
}

// HeaderLen returns the configured header length.
func (m *FramedBinary) HeaderLen() int { return m.headerLen }

// Payload returns the trailing payload as UTF-8 text.
func (m *FramedBinary) Payload() string { return m.payload }

// Valid always reports true; the protocol carries no semantic
// validation beyond the structural length check at parse time.
func (m *FramedBinary) Valid() bool { return true }

// Type returns the generic payload discriminator.
func (m *FramedBinary) Type() string { return "XML" }

// Protocol returns "BYTE_HEADER_XML".
func (m *FramedBinary) Protocol() string { return "BYTE_HEADER_XML" }

func (m *FramedBinary) String() string {
	return fmt.Sprintf("FramedBinary{header=%d payload=%d total=%d}",
		m.headerLen, len(m.payload), m.Len())
}

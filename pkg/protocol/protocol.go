// Package protocol defines the pluggable wire-format handlers and the
// registry that maps protocol names to them. Handlers know how to
// parse raw bytes or text into messages and how to stream a file of
// their format into a consumer.
package protocol

import (
	"errors"

	"github.com/luxfi/fixinject/pkg/message"
)

// ErrUnsupportedProtocol is returned by Registry.Resolve for names that
// were never registered.
var ErrUnsupportedProtocol = errors.New("unsupported protocol")

// ErrMalformedMessage is returned by handlers when input fails the
// protocol's basic structural test.
var ErrMalformedMessage = errors.New("malformed message")

// ReadOptions carries the reader settings protocol handlers need when
// streaming a file.
type ReadOptions struct {
	// BufferSize is the chunk size for file reads.
	BufferSize int
	// Validate gates messages on their semantic validity predicate.
	Validate bool
	// HeaderLength is the fixed header size for binary framing.
	HeaderLength int
}

// Handler is the capability set of one wire format.
type Handler interface {
	// Name returns the protocol identifier.
	Name() string

	// WellFormed reports whether data passes the protocol's basic
	// structural test.
	WellFormed(data []byte) bool

	// Parse builds a message from raw bytes.
	Parse(data []byte) (message.Message, error)

	// ParseText builds a message from text input.
	ParseText(text string) (message.Message, error)

	// ReadFile streams a file of this format, emitting each accepted
	// message. Per-line failures are logged and skipped.
	ReadFile(path string, opts ReadOptions, emit func(message.Message)) error

	// Extensions lists the file extensions recognized by this protocol,
	// without the leading dot.
	Extensions() []string
}

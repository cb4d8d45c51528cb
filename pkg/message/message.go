// Package message defines the message model shared by the injector,
// the ingestion readers and the capture server. Every concrete message
// owns an immutable copy of its raw bytes; accessors hand out copies so
// downstream code can never corrupt a buffer that is being replayed or
// logged.
package message

// Message is the common interface implemented by all injectable
// message variants.
type Message interface {
	// Bytes returns a copy of the raw message bytes.
	Bytes() []byte

	// Len returns the message length in bytes.
	Len() int

	// Valid reports whether the message carries the minimal field set
	// required by its protocol. Protocols without semantic validation
	// always report true.
	Valid() bool

	// Type returns the protocol-specific message type discriminator.
	Type() string

	// Protocol returns the name of the protocol this message belongs to.
	Protocol() string

	// String returns a short human-readable summary.
	String() string
}

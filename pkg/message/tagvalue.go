package message

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// SOH is the control byte separating tag=value fields.
const SOH = '\x01'

// Well-known FIX tag numbers used by accessors and validation.
const (
	tagBeginString  = 8
	tagBodyLength   = 9
	tagMsgSeqNum    = 34
	tagMsgType      = 35
	tagOrderQty     = 38
	tagPrice        = 44
	tagSenderCompID = 49
	tagSendingTime  = 52
	tagTargetCompID = 56
)

// TagValue is a tag=value message in FIX convention: integer tags and
// string values joined by '=' and separated by SOH bytes.
type TagValue struct {
	raw  string
	data []byte
	tags map[int]string
}

// NewTagValue parses raw into a TagValue message. Malformed fields
// (empty, missing '=', non-numeric tag, empty value) are skipped
// without failing the parse; duplicate tags keep the last occurrence.
func NewTagValue(raw string) *TagValue {
	m := &TagValue{
		raw:  raw,
		data: []byte(raw),
		tags: make(map[int]string),
	}
	m.parse()
	return m
}

func (m *TagValue) parse() {
	for _, field := range strings.Split(m.raw, string(rune(SOH))) {
		if field == "" {
			continue
		}
		eq := strings.IndexByte(field, '=')
		if eq <= 0 || eq >= len(field)-1 {
			continue
		}
		tag, err := strconv.Atoi(field[:eq])
		if err != nil {
			continue
		}
		m.tags[tag] = field[eq+1:]
	}
}

// WellFormedTagValue reports whether s passes the minimal structural
// test for a tag-value message: a begin-string field, a message-type
// field and at least one SOH separator.
func WellFormedTagValue(s string) bool {
	return s != "" &&
		strings.Contains(s, "8=") &&
		strings.Contains(s, "35=") &&
		strings.ContainsRune(s, SOH)
}

// Bytes returns a copy of the raw message bytes.
func (m *TagValue) Bytes() []byte {
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

// Len returns the message length in bytes.
func (m *TagValue) Len() int { return len(m.data) }

// Raw returns the message as originally supplied.
func (m *TagValue) Raw() string { return m.raw }

// Tag returns the value of the given tag, or the empty string when the
// tag is absent.
func (m *TagValue) Tag(tag int) string { return m.tags[tag] }

// HasTag reports whether the given tag is present.
func (m *TagValue) HasTag(tag int) bool {
	_, ok := m.tags[tag]
	return ok
}

// Tags returns a copy of the parsed tag map.
func (m *TagValue) Tags() map[int]string {
	out := make(map[int]string, len(m.tags))
	for k, v := range m.tags {
		out[k] = v
	}
	return out
}

// BeginString returns tag 8.
func (m *TagValue) BeginString() string { return m.Tag(tagBeginString) }

// BodyLength returns tag 9.
func (m *TagValue) BodyLength() string { return m.Tag(tagBodyLength) }

// MsgType returns tag 35.
func (m *TagValue) MsgType() string { return m.Tag(tagMsgType) }

// MsgSeqNum returns tag 34.
func (m *TagValue) MsgSeqNum() string { return m.Tag(tagMsgSeqNum) }

// SenderCompID returns tag 49.
func (m *TagValue) SenderCompID() string { return m.Tag(tagSenderCompID) }

// SendingTime returns tag 52.
func (m *TagValue) SendingTime() string { return m.Tag(tagSendingTime) }

// TargetCompID returns tag 56.
func (m *TagValue) TargetCompID() string { return m.Tag(tagTargetCompID) }

// Price returns tag 44 as a decimal. The second return is false when
// the tag is absent or not a number.
func (m *TagValue) Price() (decimal.Decimal, bool) {
	return m.decimalTag(tagPrice)
}

// OrderQty returns tag 38 as a decimal. The second return is false when
// the tag is absent or not a number.
func (m *TagValue) OrderQty() (decimal.Decimal, bool) {
	return m.decimalTag(tagOrderQty)
}

func (m *TagValue) decimalTag(tag int) (decimal.Decimal, bool) {
	v, ok := m.tags[tag]
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Valid reports whether the minimal required tag set is present:
// begin-string, body-length, message-type, sender and target.
func (m *TagValue) Valid() bool {
	return m.HasTag(tagBeginString) &&
		m.HasTag(tagBodyLength) &&
		m.HasTag(tagMsgType) &&
		m.HasTag(tagSenderCompID) &&
		m.HasTag(tagTargetCompID)
}

// Type returns the message-type discriminator (tag 35).
func (m *TagValue) Type() string { return m.MsgType() }

// Protocol returns "FIX".
func (m *TagValue) Protocol() string { return "FIX" }

func (m *TagValue) String() string {
	return fmt.Sprintf("TagValue{type=%s sender=%s target=%s seq=%s len=%d}",
		m.MsgType(), m.SenderCompID(), m.TargetCompID(), m.MsgSeqNum(), m.Len())
}

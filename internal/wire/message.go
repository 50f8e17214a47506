package wire

import (
	"encoding/binary"
	"errors"
	"strings"
)

// Messages are a fixed 20 bytes: a 13-byte header (three big-endian uint32
// fields plus the payload type byte) followed by 7 payload bytes.
const (
	MessageLength = 20
	PayloadLength = 7
)

// Payload type discriminators (byte 12 of the envelope).
const (
	PayloadTypeLocation      byte = 1
	PayloadTypeQuestionnaire byte = 2
	PayloadTypeBattery       byte = 3
	PayloadTypeText          byte = 4
	PayloadTypeHeartbeat     byte = 5
)

// ErrBadLength is returned when an envelope is not exactly 20 bytes.
var ErrBadLength = errors.New("message must be exactly 20 bytes")

// Message is one decoded telemetry envelope. Payload interpretation
// depends on PayloadType; Decode leaves the raw bytes untouched so an
// unknown discriminator still yields a structurally valid envelope.
type Message struct {
	MessageID   uint32
	SenderID    uint32
	Timestamp   uint32 // Unix seconds, UTC
	PayloadType byte
	Payload     [PayloadLength]byte
}

// KnownPayloadType reports whether the discriminator is one of the five
// defined payload types. Callers decide how to treat unknown values; the
// envelope itself decodes either way.
func (m Message) KnownPayloadType() bool {
	return m.PayloadType >= PayloadTypeLocation && m.PayloadType <= PayloadTypeHeartbeat
}

// Decode parses a 20-byte envelope. The only failure is a wrong length;
// every 20-byte input has a well-formed header and raw payload.
func Decode(data []byte) (Message, error) {
	if len(data) != MessageLength {
		return Message{}, ErrBadLength
	}
	m := Message{
		MessageID:   binary.BigEndian.Uint32(data[0:4]),
		SenderID:    binary.BigEndian.Uint32(data[4:8]),
		Timestamp:   binary.BigEndian.Uint32(data[8:12]),
		PayloadType: data[12],
	}
	copy(m.Payload[:], data[13:20])
	return m, nil
}

// coordMask is the 28-bit field mask; coordScale is the max-scale divisor
// for the fixed-point coordinate mapping. The divisor is 2^28-1, not 2^28:
// the encoder maps the top of the range to the all-ones field value, so
// decoding with 2^28 would never reach +90/+180 and round-trips would
// drift.
const coordMask = 1<<28 - 1

const coordScale = float64(coordMask)

// DecodeLocation unpacks the 7 payload bytes as one 56-bit big-endian
// value holding two 28-bit fixed-point fields: latitude in the upper 28
// bits mapped over [-90,+90], longitude in the lower 28 mapped over
// [-180,+180].
func DecodeLocation(payload [PayloadLength]byte) (lat, lon float64) {
	var v uint64
	for _, b := range payload {
		v = v<<8 | uint64(b)
	}
	latU := (v >> 28) & coordMask
	lonU := v & coordMask
	lat = float64(latU)/coordScale*180 - 90
	lon = float64(lonU)/coordScale*360 - 180
	return lat, lon
}

// DecodeQuestionnaire maps the 7 payload bytes to a 7-character string of
// '0'/'1' flags in byte order. 0x01 means yes; 0x00 means no; any other
// byte value leniently reads as no rather than failing.
func DecodeQuestionnaire(payload [PayloadLength]byte) string {
	var b strings.Builder
	b.Grow(PayloadLength)
	for _, c := range payload {
		if c == 0x01 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// DecodeBattery reads bytes 0-1 as an ASCII percentage (0-99) and bytes
// 2-6 as ASCII seconds remaining (0-99999). A sub-field that is not all
// ASCII digits leniently decodes to 0.
func DecodeBattery(payload [PayloadLength]byte) (percentage, secondsRemaining int) {
	percentage = parseASCIIDigits(payload[0:2])
	secondsRemaining = parseASCIIDigits(payload[2:7])
	return percentage, secondsRemaining
}

// parseASCIIDigits returns the base-10 value of an all-digit ASCII field,
// or 0 if any byte is not a digit.
func parseASCIIDigits(field []byte) int {
	n := 0
	for _, c := range field {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// DecodeText reads the payload as UTF-8 with invalid sequences dropped,
// then strips the trailing NUL padding. An empty result is a valid empty
// message.
func DecodeText(payload [PayloadLength]byte) string {
	s := strings.ToValidUTF8(string(payload[:]), "")
	return strings.TrimRight(s, "\x00")
}

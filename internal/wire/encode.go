package wire

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// Encode serializes a message into its 20-byte envelope.
func Encode(m Message) []byte {
	data := make([]byte, MessageLength)
	binary.BigEndian.PutUint32(data[0:4], m.MessageID)
	binary.BigEndian.PutUint32(data[4:8], m.SenderID)
	binary.BigEndian.PutUint32(data[8:12], m.Timestamp)
	data[12] = m.PayloadType
	copy(data[13:20], m.Payload[:])
	return data
}

// EncodeLocation packs a latitude/longitude pair into the 56-bit
// fixed-point payload. The conversion truncates toward zero, matching the
// field encoder, so decode reproduces the input within one quantization
// step (180/(2^28-1) for latitude, 360/(2^28-1) for longitude).
func EncodeLocation(lat, lon float64) ([PayloadLength]byte, error) {
	var payload [PayloadLength]byte
	if lat < -90 || lat > 90 {
		return payload, fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return payload, fmt.Errorf("longitude %v out of range [-180, 180]", lon)
	}
	latU := uint64((lat + 90.0) / 180.0 * coordScale)
	lonU := uint64((lon + 180.0) / 360.0 * coordScale)
	v := latU<<28 | lonU
	for i := PayloadLength - 1; i >= 0; i-- {
		payload[i] = byte(v)
		v >>= 8
	}
	return payload, nil
}

// EncodeQuestionnaire packs a 7-character string of '0'/'1' flags into the
// payload (one byte per flag).
func EncodeQuestionnaire(flags string) ([PayloadLength]byte, error) {
	var payload [PayloadLength]byte
	if len(flags) != PayloadLength {
		return payload, fmt.Errorf("questionnaire must be %d flags, got %d", PayloadLength, len(flags))
	}
	for i := 0; i < PayloadLength; i++ {
		switch flags[i] {
		case '0':
			payload[i] = 0x00
		case '1':
			payload[i] = 0x01
		default:
			return payload, fmt.Errorf("questionnaire flag %q at position %d is not '0' or '1'", flags[i], i)
		}
	}
	return payload, nil
}

// EncodeBattery packs a percentage (0-99) and seconds remaining (0-99999)
// as the 2+5 ASCII digit payload.
func EncodeBattery(percentage, secondsRemaining int) ([PayloadLength]byte, error) {
	var payload [PayloadLength]byte
	if percentage < 0 || percentage > 99 {
		return payload, fmt.Errorf("battery percentage %d out of range [0, 99]", percentage)
	}
	if secondsRemaining < 0 || secondsRemaining > 99999 {
		return payload, fmt.Errorf("battery seconds %d out of range [0, 99999]", secondsRemaining)
	}
	copy(payload[:], fmt.Sprintf("%02d%05d", percentage, secondsRemaining))
	return payload, nil
}

// EncodeText packs a UTF-8 string of at most 7 bytes, NUL-padded on the
// right.
func EncodeText(text string) ([PayloadLength]byte, error) {
	var payload [PayloadLength]byte
	if !utf8.ValidString(text) {
		return payload, fmt.Errorf("text is not valid UTF-8")
	}
	if len(text) > PayloadLength {
		return payload, fmt.Errorf("text %q is %d bytes, limit is %d", text, len(text), PayloadLength)
	}
	copy(payload[:], text)
	return payload, nil
}

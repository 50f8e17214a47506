package wire

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Reference frame produced by the field encoder: message_id=1, sender_id=1,
// timestamp=0x6747a000, location payload for downtown Buffalo.
const buffaloFrameHex = "00000001000000016747a00001bcfe76247e8a01"

func mustPayload(t *testing.T, hexStr string) [PayloadLength]byte {
	t.Helper()
	raw, err := hex.DecodeString(hexStr)
	require.NoError(t, err)
	require.Len(t, raw, PayloadLength)
	var p [PayloadLength]byte
	copy(p[:], raw)
	return p
}

func TestDecode_HeaderFields(t *testing.T) {
	raw, err := hex.DecodeString(buffaloFrameHex)
	require.NoError(t, err)

	msg, err := Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, uint32(1), msg.MessageID)
	assert.Equal(t, uint32(1), msg.SenderID)
	assert.Equal(t, uint32(0x6747a000), msg.Timestamp)
	assert.Equal(t, PayloadTypeLocation, msg.PayloadType)
	assert.Equal(t, mustPayload(t, "bcfe76247e8a01"), msg.Payload)
}

func TestDecode_BadLength(t *testing.T) {
	for _, size := range []int{0, 1, 19, 21, 40} {
		_, err := Decode(make([]byte, size))
		assert.ErrorIs(t, err, ErrBadLength, "length %d", size)
	}
}

func TestDecode_UnknownPayloadTypeStillDecodes(t *testing.T) {
	raw := make([]byte, MessageLength)
	raw[12] = 0x2A

	msg, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, byte(0x2A), msg.PayloadType)
	assert.False(t, msg.KnownPayloadType())
}

func TestKnownPayloadType(t *testing.T) {
	for pt := byte(1); pt <= 5; pt++ {
		assert.True(t, Message{PayloadType: pt}.KnownPayloadType(), "type %d", pt)
	}
	assert.False(t, Message{PayloadType: 0}.KnownPayloadType())
	assert.False(t, Message{PayloadType: 6}.KnownPayloadType())
}

func TestDecodeLocation_KnownVectors(t *testing.T) {
	tests := []struct {
		name       string
		payloadHex string
		wantLat    float64
		wantLon    float64
	}{
		{"downtown buffalo", "bcfe76247e8a01", 42.88639967473745, -78.87840099214912},
		{"south buffalo", "bcfdf3a47e8558", 42.884999561626444, -78.88000092983246},
		{"south-west corner", "00000000000000", -90, -180},
		{"north-east corner", "ffffffffffffff", 90, 180},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, lon := DecodeLocation(mustPayload(t, tt.payloadHex))
			assert.InDelta(t, tt.wantLat, lat, 1e-9)
			assert.InDelta(t, tt.wantLon, lon, 1e-9)
		})
	}
}

func TestLocationRoundTrip(t *testing.T) {
	// One quantization step of the 28-bit fixed-point mapping.
	const latQuantum = 180.0 / coordScale
	const lonQuantum = 360.0 / coordScale

	coords := [][2]float64{
		{42.8864, -78.8784},
		{-90, -180},
		{90, 180},
		{0, 0},
		{-33.8688, 151.2093},
		{64.1466, -21.9426},
	}
	for _, c := range coords {
		payload, err := EncodeLocation(c[0], c[1])
		require.NoError(t, err)
		lat, lon := DecodeLocation(payload)
		assert.InDelta(t, c[0], lat, latQuantum, "lat for %v", c)
		assert.InDelta(t, c[1], lon, lonQuantum, "lon for %v", c)
	}
}

func TestEncodeLocation_OutOfRange(t *testing.T) {
	_, err := EncodeLocation(90.0001, 0)
	assert.Error(t, err)
	_, err = EncodeLocation(0, -180.0001)
	assert.Error(t, err)
}

func TestDecodeQuestionnaire_LenientBytes(t *testing.T) {
	// Bytes outside {0x00, 0x01} read as "no" instead of failing.
	payload := [PayloadLength]byte{0x01, 0x00, 0x01, 0xFF, 0x7F, 0x02, 0x01}
	assert.Equal(t, "1010001", DecodeQuestionnaire(payload))

	assert.Equal(t, "0000000", DecodeQuestionnaire([PayloadLength]byte{}))
	assert.Equal(t, "1111111", DecodeQuestionnaire([PayloadLength]byte{1, 1, 1, 1, 1, 1, 1}))
}

func TestQuestionnaireRoundTrip(t *testing.T) {
	payload, err := EncodeQuestionnaire("1100101")
	require.NoError(t, err)
	assert.Equal(t, "1100101", DecodeQuestionnaire(payload))

	_, err = EncodeQuestionnaire("110")
	assert.Error(t, err)
	_, err = EncodeQuestionnaire("110210x")
	assert.Error(t, err)
}

func TestDecodeBattery(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantPct  int
		wantSecs int
	}{
		{"quarter charge", "2503600", 25, 3600},
		{"three quarters", "7518000", 75, 18000},
		{"maximums", "9999999", 99, 99999},
		{"zeros", "0000000", 0, 0},
		{"bad percentage field", "ab12345", 0, 12345},
		{"bad seconds field", "25036x0", 25, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p [PayloadLength]byte
			copy(p[:], tt.payload)
			pct, secs := DecodeBattery(p)
			assert.Equal(t, tt.wantPct, pct)
			assert.Equal(t, tt.wantSecs, secs)
		})
	}
}

func TestDecodeBattery_NulPayloadIsZero(t *testing.T) {
	pct, secs := DecodeBattery([PayloadLength]byte{})
	assert.Equal(t, 0, pct)
	assert.Equal(t, 0, secs)
}

func TestEncodeBattery(t *testing.T) {
	payload, err := EncodeBattery(5, 3600)
	require.NoError(t, err)
	assert.Equal(t, "0503600", string(payload[:]))

	pct, secs := DecodeBattery(payload)
	assert.Equal(t, 5, pct)
	assert.Equal(t, 3600, secs)

	_, err = EncodeBattery(100, 0)
	assert.Error(t, err)
	_, err = EncodeBattery(0, 100000)
	assert.Error(t, err)
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name    string
		payload [PayloadLength]byte
		want    string
	}{
		{"nul padded", [PayloadLength]byte{'H', 'E', 'L', 'P', '!', '!', 0x00}, "HELP!!"},
		{"full width", [PayloadLength]byte{'N', 'e', 'e', 'd', ' ', 'f', 'd'}, "Need fd"},
		{"invalid utf-8 dropped", [PayloadLength]byte{0xFF, 0xFE, 'H', 'i', 0x00, 0x00, 0x00}, "Hi"},
		{"empty", [PayloadLength]byte{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeText(tt.payload))
		})
	}
}

func TestEncodeText(t *testing.T) {
	payload, err := EncodeText("HELP!!")
	require.NoError(t, err)
	assert.Equal(t, "HELP!!", DecodeText(payload))

	_, err = EncodeText("too long!")
	assert.Error(t, err)
	_, err = EncodeText(string([]byte{0xFF, 0xFE}))
	assert.Error(t, err)
}

func TestEncodeDecodeEnvelope(t *testing.T) {
	payload, err := EncodeBattery(42, 7200)
	require.NoError(t, err)

	in := Message{
		MessageID:   9,
		SenderID:    0x38553441,
		Timestamp:   0x6747a006,
		PayloadType: PayloadTypeBattery,
		Payload:     payload,
	}
	raw := Encode(in)
	require.Len(t, raw, MessageLength)

	out, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

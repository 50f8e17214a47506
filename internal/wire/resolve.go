package wire

import (
	"encoding/binary"
	"fmt"
)

// ResolveSenderID maps a raw 32-bit sender identifier to the canonical
// device id string. Field devices transmit either a human-assigned tag of
// up to 4 printable ASCII characters packed big-endian into the integer,
// or a plain numeric id. The tag reading is tried first: numeric-looking
// ASCII such as "1001" is itself a valid output of the numeric fallback,
// so the two branches overlap and the order is what makes resolution
// deterministic. Total function, no side effects.
//
// The numeric fallback zero-pads to 4 digits. Sender ids >= 10000 overflow
// the padding and resolve to a wider string; that boundary is deliberate
// and must not be capped or rejected.
func ResolveSenderID(senderID uint32) string {
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], senderID)

	tag := raw[:]
	for len(tag) > 0 && tag[len(tag)-1] == 0x00 {
		tag = tag[:len(tag)-1]
	}
	if len(tag) > 0 && isPrintableASCII(tag) {
		return string(tag)
	}
	return fmt.Sprintf("%04d", senderID)
}

func isPrintableASCII(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7E {
			return false
		}
	}
	return true
}

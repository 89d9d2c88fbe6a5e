package preset

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// EncodeID renders a unique id as its four big-endian bytes, reversed,
// in lowercase hex.
func EncodeID(id int32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(id))
	reverse(b[:])
	return hex.EncodeToString(b[:])
}

// DecodeID is the inverse of EncodeID.
func DecodeID(s string) (int32, error) {
	if len(s) != 8 {
		return 0, fmt.Errorf("fx id %q must be 8 hex characters", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, fmt.Errorf("fx id %q: %w", s, err)
	}
	reverse(b)
	return int32(binary.BigEndian.Uint32(b)), nil
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

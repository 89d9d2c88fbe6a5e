package preset

import (
	"encoding/binary"
	"math"
	"math/rand"
	"testing"
)

func TestEncodeIDFixture(t *testing.T) {
	id := int32(binary.BigEndian.Uint32([]byte{0x38, 0x58, 0x38, 0x2D}))
	if got := EncodeID(id); got != "2d385838" {
		t.Errorf("EncodeID(%#x) = %q, want %q", id, got, "2d385838")
	}
}

func TestIDRoundTrip(t *testing.T) {
	ids := []int32{0, 1, -1, math.MaxInt32, math.MinInt32, 0x2D385838}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		ids = append(ids, int32(rng.Uint32()))
	}

	for _, id := range ids {
		enc := EncodeID(id)
		if len(enc) != 8 {
			t.Fatalf("EncodeID(%d) = %q, want 8 characters", id, enc)
		}
		got, err := DecodeID(enc)
		if err != nil {
			t.Fatalf("DecodeID(%q) failed: %v", enc, err)
		}
		if got != id {
			t.Fatalf("DecodeID(EncodeID(%d)) = %d", id, got)
		}
	}
}

func TestDecodeIDInvalid(t *testing.T) {
	for _, s := range []string{"", "2d3858", "2d38583800", "zz385838"} {
		if _, err := DecodeID(s); err == nil {
			t.Errorf("DecodeID(%q) succeeded, want error", s)
		}
	}
}

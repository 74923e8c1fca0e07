package qrcode

import "testing"

func TestRoundTrip(t *testing.T) {
	for gameID := int64(1); gameID < 5; gameID++ {
		for playerNumber := int64(1); playerNumber < 50; playerNumber++ {
			payload := Encode(gameID, playerNumber)
			decoded, err := Decode(payload)
			if err != nil {
				t.Fatalf("decode(%q) failed: %v", payload, err)
			}
			if decoded.GameID != gameID || decoded.PlayerNumber != playerNumber {
				t.Errorf("round trip mismatch: want (%d,%d) got (%d,%d)", gameID, playerNumber, decoded.GameID, decoded.PlayerNumber)
			}
		}
	}
}

func TestDecode_MalformedPayload(t *testing.T) {
	for _, bad := range []string{"", "not-a-number", "-5"} {
		if _, err := Decode(bad); err == nil {
			t.Errorf("expected error decoding %q", bad)
		}
	}
}

func TestDecode_RejectsZeroFields(t *testing.T) {
	// gameId=0 encodes validly but must be rejected on decode.
	payload := Encode(0, 1)
	if _, err := Decode(payload); err == nil {
		t.Error("expected error decoding payload with gameId=0")
	}
}

func TestEncode_Deterministic(t *testing.T) {
	a := Encode(7, 42)
	b := Encode(7, 42)
	if a != b {
		t.Errorf("expected deterministic encoding, got %q and %q", a, b)
	}
}

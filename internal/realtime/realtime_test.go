package realtime

import (
	"strings"
	"testing"
)

func TestConnectedPlayerCountEmpty(t *testing.T) {
	h := NewHub()
	if got := h.ConnectedPlayerCount(1); got != 0 {
		t.Fatalf("ConnectedPlayerCount = %d, want 0", got)
	}
}

func TestBroadcastToEmptyRoomDoesNotPanic(t *testing.T) {
	h := NewHub()
	h.Broadcast(1, "game:ended", Message{"winner1": 3})
	h.SendToPlayer(1, "nobody", "error", Message{"message": "x"})
}

func TestMustJSONIncludesType(t *testing.T) {
	b := mustJSON(typed("auth:success", Message{"address": "a"}))
	if string(b) == "" {
		t.Fatalf("expected non-empty payload")
	}
	if !strings.Contains(string(b), `"type":"auth:success"`) {
		t.Fatalf("payload %s lacks type field", b)
	}
}

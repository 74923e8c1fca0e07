package ble

import "testing"

func TestCanonicalize(t *testing.T) {
	cases := map[string]string{
		"AA:BB:CC":   "AABBCC",
		"aa-bb-cc":   "AABBCC",
		" aabbcc ":   "AABBCC",
		"AABBCC":     "AABBCC",
	}
	for in, want := range cases {
		if got := Canonicalize(in); got != want {
			t.Errorf("Canonicalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContains(t *testing.T) {
	nearby := []string{"aa:bb:cc", "11-22-33"}

	if !Contains(nearby, "AABBCC") {
		t.Error("expected canonicalized match")
	}
	if !Contains(nearby, "112233") {
		t.Error("expected canonicalized match for second token")
	}
	if Contains(nearby, "ffeedd") {
		t.Error("expected no match for absent token")
	}
	if Contains(nearby, "") {
		t.Error("expected empty target to never match")
	}
	if Contains(nil, "AABBCC") {
		t.Error("expected no match against empty nearby set")
	}
}

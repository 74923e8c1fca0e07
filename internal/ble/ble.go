// Package ble canonicalizes Bluetooth identifiers reported by mobile
// clients and tests set membership, for the proximity checks in
// internal/verifier.
package ble

import "strings"

// Canonicalize normalizes a Bluetooth token for comparison: trims
// whitespace, upper-cases hex digits, and strips colon/dash separators so
// "AA:BB:CC" and "aabbcc" compare equal.
func Canonicalize(token string) string {
	t := strings.TrimSpace(token)
	t = strings.ToUpper(t)
	t = strings.NewReplacer(":", "", "-", "", " ", "").Replace(t)
	return t
}

// Contains reports whether target is present among nearby, after
// canonicalizing both sides. An empty target never matches.
func Contains(nearby []string, target string) bool {
	if target == "" {
		return false
	}
	canonicalTarget := Canonicalize(target)
	if canonicalTarget == "" {
		return false
	}
	for _, candidate := range nearby {
		if Canonicalize(candidate) == canonicalTarget {
			return true
		}
	}
	return false
}

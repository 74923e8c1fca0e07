// Package qrcode implements the obfuscated numeric QR payload codec shared
// between the mobile clients and the coordinator (spec §6). The encoding is
// a fixed modular multiplication; this is the one piece of wire format the
// client and server must never disagree on, so the arithmetic here must
// match spec.md bit-for-bit.
package qrcode

import (
	"fmt"
	"math/big"
)

const (
	multiplier = 1_588_635_695
	modulus    = 2_147_483_647 // 2^31 - 1, a Mersenne prime
	playerMod  = 10_000
)

var inverse = new(big.Int).ModInverse(big.NewInt(multiplier), big.NewInt(modulus))

// Encode produces the numeric QR payload string for (gameId, playerNumber).
func Encode(gameID int64, playerNumber int64) string {
	n := new(big.Int).Mul(big.NewInt(gameID), big.NewInt(playerMod))
	n.Add(n, big.NewInt(playerNumber))

	result := new(big.Int).Mul(n, big.NewInt(multiplier))
	result.Mod(result, big.NewInt(modulus))
	return result.String()
}

// Payload is a decoded QR payload.
type Payload struct {
	GameID       int64
	PlayerNumber int64
}

// Decode parses a numeric QR payload string, inverting Encode. It returns an
// error if the payload is not a valid non-negative integer, or if the
// decoded (gameId, playerNumber) pair is not strictly positive in both
// fields (spec §6: "valid iff both fields are positive").
func Decode(payload string) (Payload, error) {
	enc, ok := new(big.Int).SetString(payload, 10)
	if !ok || enc.Sign() < 0 {
		return Payload{}, fmt.Errorf("qrcode: malformed payload %q", payload)
	}

	n := new(big.Int).Mul(enc, inverse)
	n.Mod(n, big.NewInt(modulus))

	gameID := new(big.Int)
	playerNumber := new(big.Int)
	gameID.QuoRem(n, big.NewInt(playerMod), playerNumber)

	if gameID.Sign() <= 0 || playerNumber.Sign() <= 0 {
		return Payload{}, fmt.Errorf("qrcode: decoded fields out of range (gameId=%s playerNumber=%s)", gameID, playerNumber)
	}

	return Payload{GameID: gameID.Int64(), PlayerNumber: playerNumber.Int64()}, nil
}

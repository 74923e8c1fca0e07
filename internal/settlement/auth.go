package settlement

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ErrClockSkew flags a signed message whose embedded timestamp fell outside
// the allowed skew window.
var ErrClockSkew = errors.New("settlement: message timestamp outside skew window")

// ErrBadSignature flags a signature that does not recover to a valid key.
var ErrBadSignature = errors.New("settlement: could not recover signer")

// RecoverAddress recovers the wallet address that produced a compact
// signature over message, the way the teacher's bitcoin package treats an
// RPC wallet as the source of truth for key material — here the coordinator
// has no wallet of its own, so every player identity is authenticated by
// this recovery instead.
func RecoverAddress(message string, signature []byte) (string, error) {
	hash := chainhash.HashB([]byte(message))
	pubKey, _, err := ecdsa.RecoverCompact(signature, hash)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return AddressFromPubKey(pubKey), nil
}

// AddressFromPubKey derives a wallet address from a public key using the
// same Hash160 (RIPEMD160(SHA256(x))) construction the teacher's btcutil
// dependency uses for P2PKH addresses, hex-encoded rather than
// base58Check/bech32 since the settlement contract is not a Bitcoin chain.
func AddressFromPubKey(pubKey *btcec.PublicKey) string {
	h := btcutil.Hash160(pubKey.SerializeCompressed())
	return "0x" + hex.EncodeToString(h)
}

// VerifySignedMessage parses a "chain-assassin:{gameId}:{timestamp}" message,
// checks it names gameID and falls within skew of now, recovers the
// signer, and confirms it matches expectedAddress (spec §4.7).
func VerifySignedMessage(message string, signature []byte, gameID int64, expectedAddress string, now time.Time, skew time.Duration) error {
	parts := strings.Split(message, ":")
	if len(parts) != 3 || parts[0] != "chain-assassin" {
		return fmt.Errorf("settlement: malformed signed message %q", message)
	}
	msgGameID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || msgGameID != gameID {
		return fmt.Errorf("settlement: signed message game mismatch")
	}
	ts, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return fmt.Errorf("settlement: malformed timestamp in signed message")
	}
	return checkSkewAndRecover(message, signature, ts, expectedAddress, now, skew)
}

// VerifyRestMessage parses a "chain-assassin:{timestamp}" message (spec §6
// REST surface, which carries game scope in the URL path rather than the
// signed message), checks the timestamp falls within skew of now, and
// confirms the recovered signer matches expectedAddress.
func VerifyRestMessage(message string, signature []byte, expectedAddress string, now time.Time, skew time.Duration) error {
	parts := strings.Split(message, ":")
	if len(parts) != 2 || parts[0] != "chain-assassin" {
		return fmt.Errorf("settlement: malformed signed message %q", message)
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return fmt.Errorf("settlement: malformed timestamp in signed message")
	}
	return checkSkewAndRecover(message, signature, ts, expectedAddress, now, skew)
}

func checkSkewAndRecover(message string, signature []byte, ts int64, expectedAddress string, now time.Time, skew time.Duration) error {
	signedAt := time.Unix(ts, 0)
	if signedAt.Before(now.Add(-skew)) || signedAt.After(now.Add(skew)) {
		return ErrClockSkew
	}

	addr, err := RecoverAddress(message, signature)
	if err != nil {
		return err
	}
	if !strings.EqualFold(addr, expectedAddress) {
		return fmt.Errorf("settlement: recovered address %s does not match %s", addr, expectedAddress)
	}
	return nil
}

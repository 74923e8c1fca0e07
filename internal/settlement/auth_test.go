package settlement

import (
	"fmt"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func signMessage(t *testing.T, priv *btcec.PrivateKey, message string) []byte {
	t.Helper()
	hash := chainhash.HashB([]byte(message))
	sig := ecdsa.SignCompact(priv, hash, true)
	return sig
}

func TestRecoverAddressRoundTrip(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	message := "chain-assassin:1:1700000000"
	sig := signMessage(t, priv, message)

	addr, err := RecoverAddress(message, sig)
	if err != nil {
		t.Fatalf("RecoverAddress: %v", err)
	}
	want := AddressFromPubKey(priv.PubKey())
	if addr != want {
		t.Fatalf("RecoverAddress = %s, want %s", addr, want)
	}
}

func TestVerifySignedMessageSuccess(t *testing.T) {
	priv, _ := btcec.NewPrivateKey()
	now := time.Unix(1700000000, 0)
	message := fmt.Sprintf("chain-assassin:1:%d", now.Unix())
	sig := signMessage(t, priv, message)
	addr := AddressFromPubKey(priv.PubKey())

	if err := VerifySignedMessage(message, sig, 1, addr, now, 30*time.Second); err != nil {
		t.Fatalf("VerifySignedMessage: %v", err)
	}
}

func TestVerifySignedMessageRejectsStaleTimestamp(t *testing.T) {
	priv, _ := btcec.NewPrivateKey()
	now := time.Unix(1700000000, 0)
	message := fmt.Sprintf("chain-assassin:1:%d", now.Add(-time.Hour).Unix())
	sig := signMessage(t, priv, message)
	addr := AddressFromPubKey(priv.PubKey())

	err := VerifySignedMessage(message, sig, 1, addr, now, 30*time.Second)
	if err != ErrClockSkew {
		t.Fatalf("err = %v, want ErrClockSkew", err)
	}
}

func TestVerifySignedMessageRejectsGameMismatch(t *testing.T) {
	priv, _ := btcec.NewPrivateKey()
	now := time.Unix(1700000000, 0)
	message := fmt.Sprintf("chain-assassin:2:%d", now.Unix())
	sig := signMessage(t, priv, message)
	addr := AddressFromPubKey(priv.PubKey())

	if err := VerifySignedMessage(message, sig, 1, addr, now, 30*time.Second); err == nil {
		t.Fatalf("expected error for game mismatch")
	}
}

func TestVerifyRestMessageSuccess(t *testing.T) {
	priv, _ := btcec.NewPrivateKey()
	now := time.Unix(1700000000, 0)
	message := fmt.Sprintf("chain-assassin:%d", now.Unix())
	sig := signMessage(t, priv, message)
	addr := AddressFromPubKey(priv.PubKey())

	if err := VerifyRestMessage(message, sig, addr, now, 30*time.Second); err != nil {
		t.Fatalf("VerifyRestMessage: %v", err)
	}
}

func TestVerifyRestMessageRejectsThreePartForm(t *testing.T) {
	priv, _ := btcec.NewPrivateKey()
	now := time.Unix(1700000000, 0)
	message := fmt.Sprintf("chain-assassin:1:%d", now.Unix())
	sig := signMessage(t, priv, message)
	addr := AddressFromPubKey(priv.PubKey())

	if err := VerifyRestMessage(message, sig, addr, now, 30*time.Second); err == nil {
		t.Fatalf("expected error for gameId-bearing message on the REST surface")
	}
}

func TestVerifyRestMessageRejectsStaleTimestamp(t *testing.T) {
	priv, _ := btcec.NewPrivateKey()
	now := time.Unix(1700000000, 0)
	message := fmt.Sprintf("chain-assassin:%d", now.Add(-time.Hour).Unix())
	sig := signMessage(t, priv, message)
	addr := AddressFromPubKey(priv.PubKey())

	err := VerifyRestMessage(message, sig, addr, now, 30*time.Second)
	if err != ErrClockSkew {
		t.Fatalf("err = %v, want ErrClockSkew", err)
	}
}

package coordinator

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/chain-assassin/coordinator/internal/settlement"
)

// Authenticate implements realtime.Authenticator, recovering the signer of
// a "chain-assassin:{gameId}:{timestamp}" message and confirming it names a
// registered player of gameID (spec §4.7 WebSocket auth frame).
func (c *Coordinator) Authenticate(gameID int64, address, signature, message string) (bool, int, string) {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false, 0, ""
	}
	if err := settlement.VerifySignedMessage(message, sig, gameID, address, time.Now(), c.cfg.SignatureSkew); err != nil {
		return false, 0, ""
	}

	g, err := c.st.GetGame(context.Background(), gameID)
	if err != nil {
		return false, 0, ""
	}
	p, err := c.st.GetPlayer(context.Background(), gameID, address)
	if err != nil {
		return false, 0, ""
	}
	return true, p.PlayerNumber, string(g.SubPhase)
}

// AuthenticateREST backs the signed-header auth middleware of the REST
// surface (spec §6): a "chain-assassin:{timestamp}" message, carried in
// X-Address/X-Signature/X-Message headers, with game scope coming from the
// URL path instead of the message body the way the WebSocket auth frame
// carries it.
func (c *Coordinator) AuthenticateREST(gameID int64, address, signature, message string) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return settlement.VerifyRestMessage(message, sig, address, time.Now(), c.cfg.SignatureSkew) == nil
}

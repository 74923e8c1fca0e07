// Package settlement is the coordinator's only contact with the external
// settlement contract (spec §1 Non-goals: "cryptocurrency custody" is out
// of scope, the contract itself is an external collaborator). It wraps the
// narrow "operator" API the coordinator is allowed to call, the same
// Client-struct-over-net/http shape as the teacher's internal/bitcoin
// client wraps Bitcoin Core's JSON-RPC — except here there is no
// btcd/rpcclient transport to reuse (a full node RPC client has no
// counterpart on a smart-contract settlement layer), so the wrapper talks
// plain JSON-RPC-shaped HTTP directly.
package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/btcutil"
)

// Config configures the operator API connection, naming every field spec
// §6's config surface reserves for it.
type Config struct {
	RPCURL             string
	ContractAddress    string
	OperatorPrivateKey string
	RequestTimeout     time.Duration
}

// Client is the coordinator-side operator API wrapper.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient constructs a Client. A zero RequestTimeout defaults to 10s.
func NewClient(cfg Config) *Client {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	log.Printf("[Settlement] operator client targeting %s (contract %s)", cfg.RPCURL, cfg.ContractAddress)
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}
}

// rpcRequest/rpcResponse model a minimal JSON-RPC 2.0 envelope, the same
// request/response shape rpcclient uses under the hood for Bitcoin Core.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RPCURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("settlement: %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("settlement: %s: decode: %w", method, err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("settlement: %s: %s (code %d)", method, decoded.Error.Message, decoded.Error.Code)
	}
	return decoded.Result, nil
}

// TxResult is returned by every state-changing operator call.
type TxResult struct {
	TxHash string `json:"txHash"`
}

// StartGame confirms the coordinator's transition out of REGISTRATION.
func (c *Client) StartGame(ctx context.Context, gameID int64) (TxResult, error) {
	return c.submit(ctx, "operator_startGame", gameID)
}

// RecordKill reports a confirmed kill as playerNumbers.
func (c *Client) RecordKill(ctx context.Context, gameID int64, hunterNumber, targetNumber int) (TxResult, error) {
	return c.submit(ctx, "operator_recordKill", gameID, hunterNumber, targetNumber)
}

// EliminatePlayer reports a non-kill elimination (zone/heartbeat/checkin).
func (c *Client) EliminatePlayer(ctx context.Context, gameID int64, playerNumber int, reason string) (TxResult, error) {
	return c.submit(ctx, "operator_eliminatePlayer", gameID, playerNumber, reason)
}

// EndGame reports the resolved winners as playerNumbers (spec §4.5/§4.6).
func (c *Client) EndGame(ctx context.Context, gameID int64, winner1, winner2, winner3, topKiller int) (TxResult, error) {
	return c.submit(ctx, "operator_endGame", gameID, winner1, winner2, winner3, topKiller)
}

// TriggerCancellation reports that a game failed to reach minPlayers.
func (c *Client) TriggerCancellation(ctx context.Context, gameID int64) (TxResult, error) {
	return c.submit(ctx, "operator_triggerCancellation", gameID)
}

// TriggerExpiry reports that check-in did not complete by expiryDeadline.
func (c *Client) TriggerExpiry(ctx context.Context, gameID int64) (TxResult, error) {
	return c.submit(ctx, "operator_triggerExpiry", gameID)
}

// FetchEvents returns the raw, undecoded event log starting after
// sinceHeight (spec §4.8's chain event stream). The caller (internal/
// chainadapter) owns decoding into its own Event type so this package
// stays free of a chainadapter import.
func (c *Client) FetchEvents(ctx context.Context, sinceHeight int64) (json.RawMessage, error) {
	return c.call(ctx, "operator_getEvents", sinceHeight)
}

func (c *Client) submit(ctx context.Context, method string, params ...interface{}) (TxResult, error) {
	raw, err := c.call(ctx, method, params...)
	if err != nil {
		return TxResult{}, err
	}
	var result TxResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return TxResult{}, fmt.Errorf("settlement: %s: decode result: %w", method, err)
	}
	return result, nil
}

// EntryFeeAmount converts a raw on-chain integer amount into btcutil.Amount,
// reusing the teacher's integer-currency type for every prize/fee field
// (spec §3 Game.entryFee / totalCollected).
func EntryFeeAmount(raw int64) btcutil.Amount {
	return btcutil.Amount(raw)
}

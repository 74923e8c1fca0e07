// Package chainadapter is the coordinator's single point of contact with
// the settlement chain's event stream (spec §4.8): it applies events
// strictly in block order, advances the persisted sync cursor, and
// submits operator transactions serially per game through an outbox.
// Grounded on the teacher's internal/scanner.BlockScanner: the same
// atomic-progress-counter shape for the cursor, generalized from a
// bounded one-shot range scan to an unbounded live stream.
package chainadapter

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/uuid"

	"github.com/chain-assassin/coordinator/internal/models"
	"github.com/chain-assassin/coordinator/internal/settlement"
	"github.com/chain-assassin/coordinator/internal/store"
)

// EventType discriminates the chain events spec §4.8 names.
type EventType string

const (
	EventGameCreated     EventType = "GameCreated"
	EventPlayerRegistered EventType = "PlayerRegistered"
	EventGameStarted      EventType = "GameStarted"
	EventGameEnded        EventType = "GameEnded"
	EventGameCancelled    EventType = "GameCancelled"
	EventPrizeClaimed     EventType = "PrizeClaimed"
	EventRefundClaimed    EventType = "RefundClaimed"
)

// Event is one decoded chain-event envelope, block-ordered by the stream.
type Event struct {
	Type        EventType
	BlockHeight int64
	BlockHash   chainhash.Hash
	GameID      int64

	// Event-specific fields, populated according to Type.
	Game            *models.Game        // GameCreated
	Shrinks         []models.ZoneShrink // GameCreated
	PlayerAddr      string              // PlayerRegistered, PrizeClaimed, RefundClaimed
	TotalCollected  btcutil.Amount      // PlayerRegistered
	Winners         EndGameWinners      // GameEnded (copied as-is from the decoded event)
}

// EndGameWinners carries the winner1/winner2/winner3/topKiller strings of a
// GameEnded event exactly as decoded, and they are persisted as addresses.
// No playerNumber-to-address lookup is made on this path.
type EndGameWinners struct {
	Winner1, Winner2, Winner3, TopKiller string
}

// Handlers are the coordinator callbacks the adapter dispatches events
// into. Kept as a narrow interface so chainadapter never imports
// internal/coordinator (avoids an import cycle; the coordinator is the
// one wiring both together).
type Handlers interface {
	OnGameCreated(ctx context.Context, game *models.Game, shrinks []models.ZoneShrink) error
	OnPlayerRegistered(ctx context.Context, gameID int64, address string, totalCollected btcutil.Amount) error
	OnGameStarted(ctx context.Context, gameID int64) error
	OnGameEnded(ctx context.Context, gameID int64, winners EndGameWinners) error
	OnGameCancelled(ctx context.Context, gameID int64) error
	OnPrizeClaimed(ctx context.Context, gameID int64, address string) error
	OnRefundClaimed(ctx context.Context, gameID int64, address string) error
}

// Adapter owns sync-cursor advancement and the per-game operator-tx outbox.
type Adapter struct {
	st       store.Store
	client   *settlement.Client
	handlers Handlers

	mu          sync.Mutex
	gameLocks   map[int64]*sync.Mutex // serializes operator submissions per game
	lastHeight  atomic.Int64
}

// New constructs an Adapter.
func New(st store.Store, client *settlement.Client, handlers Handlers) *Adapter {
	return &Adapter{
		st:        st,
		client:    client,
		handlers:  handlers,
		gameLocks: make(map[int64]*sync.Mutex),
	}
}

// ApplyEvent dispatches a single chain event into the right handler, then
// advances the persisted cursor. Per spec §5, the cursor advances
// atomically with the event's effects, and an error here must NOT advance
// the cursor so the event retries.
func (a *Adapter) ApplyEvent(ctx context.Context, ev Event) error {
	var err error
	switch ev.Type {
	case EventGameCreated:
		err = a.handlers.OnGameCreated(ctx, ev.Game, ev.Shrinks)
	case EventPlayerRegistered:
		err = a.handlers.OnPlayerRegistered(ctx, ev.GameID, ev.PlayerAddr, ev.TotalCollected)
	case EventGameStarted:
		err = a.handlers.OnGameStarted(ctx, ev.GameID)
	case EventGameEnded:
		err = a.handlers.OnGameEnded(ctx, ev.GameID, ev.Winners)
	case EventGameCancelled:
		err = a.handlers.OnGameCancelled(ctx, ev.GameID)
	case EventPrizeClaimed:
		err = a.handlers.OnPrizeClaimed(ctx, ev.GameID, ev.PlayerAddr)
	case EventRefundClaimed:
		err = a.handlers.OnRefundClaimed(ctx, ev.GameID, ev.PlayerAddr)
	default:
		err = fmt.Errorf("chainadapter: unknown event type %q", ev.Type)
	}
	if err != nil {
		log.Printf("[ChainAdapter] event %s (game %d, block %d) failed, cursor will not advance: %v",
			ev.Type, ev.GameID, ev.BlockHeight, err)
		return err
	}

	if err := a.st.SetSyncCursor(ctx, models.SyncCursor{BlockHeight: ev.BlockHeight, BlockHash: ev.BlockHash}); err != nil {
		return fmt.Errorf("chainadapter: persist cursor: %w", err)
	}
	a.lastHeight.Store(ev.BlockHeight)
	return nil
}

// CurrentHeight reports the last block height whose events were fully
// applied, for health/metrics endpoints.
func (a *Adapter) CurrentHeight() int64 {
	return a.lastHeight.Load()
}

func (a *Adapter) lockFor(gameID int64) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.gameLocks[gameID]
	if !ok {
		l = &sync.Mutex{}
		a.gameLocks[gameID] = l
	}
	return l
}

// OperatorCall is the zero-arg closure the coordinator passes in to name
// which settlement.Client method to invoke; keeping chainadapter generic
// over the six operator actions instead of hard-coding each one.
type OperatorCall func(ctx context.Context) (settlement.TxResult, error)

// Submit fire-and-forgets an operator transaction: it records a pending
// outbox row synchronously, then runs the actual chain call in the
// background so the triggering request is never blocked on chain latency
// (spec §5, "Operator transaction submissions must not block the request
// that triggered them"). Submissions for the same game are serialized to
// avoid nonce races (spec §4.8).
func (a *Adapter) Submit(ctx context.Context, gameID int64, action models.OperatorAction, call OperatorCall) (string, error) {
	tx := &models.OperatorTx{
		ID:          uuid.NewString(),
		GameID:      gameID,
		Action:      action,
		Status:      models.OperatorTxPending,
		SubmittedAt: time.Now(),
	}
	if err := a.st.InsertOperatorTx(ctx, tx); err != nil {
		return "", fmt.Errorf("chainadapter: insert outbox row: %w", err)
	}

	go a.runSubmission(gameID, tx, call)
	return tx.ID, nil
}

func (a *Adapter) runSubmission(gameID int64, tx *models.OperatorTx, call OperatorCall) {
	lock := a.lockFor(gameID)
	lock.Lock()
	defer lock.Unlock()

	ctx := context.Background()
	result, err := call(ctx)
	if err != nil {
		tx.Status = models.OperatorTxFailed
		tx.Error = err.Error()
		log.Printf("[ChainAdapter] operator tx %s (%s, game %d) failed: %v", tx.ID, tx.Action, gameID, err)
	} else {
		hash, parseErr := chainhash.NewHashFromStr(result.TxHash)
		if parseErr == nil {
			tx.TxHash = hash
		}
		tx.Status = models.OperatorTxConfirmed
		now := time.Now()
		tx.ConfirmedAt = &now
	}
	if err := a.st.UpdateOperatorTx(ctx, tx); err != nil {
		log.Printf("[ChainAdapter] failed to update outbox row %s: %v", tx.ID, err)
	}
}

package chainadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/chain-assassin/coordinator/internal/models"
	"github.com/chain-assassin/coordinator/internal/store"
)

// wireEvent is the on-the-wire shape FetchEvents returns, decoded into an
// Event before being handed to ApplyEvent. Grounded on the teacher's
// internal/mempool.Poller: a ticker-driven loop that decodes a batch of raw
// JSON results into typed Go values before acting on them.
type wireEvent struct {
	Type        EventType `json:"type"`
	BlockHeight int64     `json:"blockHeight"`
	BlockHash   string    `json:"blockHash"`
	GameID      int64     `json:"gameId"`

	Game       *wireGame        `json:"game,omitempty"`
	Shrinks    []models.ZoneShrink `json:"shrinks,omitempty"`
	PlayerAddr string           `json:"playerAddress,omitempty"`
	Collected  int64            `json:"totalCollected,omitempty"`
	Winner1    string           `json:"winner1,omitempty"`
	Winner2    string           `json:"winner2,omitempty"`
	Winner3    string           `json:"winner3,omitempty"`
	TopKiller  string           `json:"topKiller,omitempty"`
}

type wireGame struct {
	Title                string           `json:"title"`
	EntryFee             int64            `json:"entryFee"`
	MinPlayers           int              `json:"minPlayers"`
	MaxPlayers           int              `json:"maxPlayers"`
	RegistrationDeadline time.Time        `json:"registrationDeadline"`
	GameDate             time.Time        `json:"gameDate"`
	ExpiryDeadline       time.Time        `json:"expiryDeadline"`
	MaxDurationSeconds   int64            `json:"maxDurationSeconds"`
	ZoneCenter           models.FixedPoint `json:"zoneCenter"`
	MeetingPoint         *models.FixedPoint `json:"meetingPoint,omitempty"`
	PrizeSplit           models.PrizeSplit `json:"prizeSplit"`
}

func (w wireEvent) toEvent() (Event, error) {
	hash, err := chainhash.NewHashFromStr(w.BlockHash)
	if err != nil {
		return Event{}, fmt.Errorf("chainadapter: decode block hash: %w", err)
	}
	ev := Event{
		Type:        w.Type,
		BlockHeight: w.BlockHeight,
		BlockHash:   *hash,
		GameID:      w.GameID,
		PlayerAddr:  w.PlayerAddr,
		TotalCollected: btcutil.Amount(w.Collected),
		Winners:     EndGameWinners{Winner1: w.Winner1, Winner2: w.Winner2, Winner3: w.Winner3, TopKiller: w.TopKiller},
	}
	if w.Game != nil {
		ev.Game = &models.Game{
			GameID:               w.GameID,
			Title:                w.Game.Title,
			EntryFee:             btcutil.Amount(w.Game.EntryFee),
			MinPlayers:           w.Game.MinPlayers,
			MaxPlayers:           w.Game.MaxPlayers,
			RegistrationDeadline: w.Game.RegistrationDeadline,
			GameDate:             w.Game.GameDate,
			ExpiryDeadline:       w.Game.ExpiryDeadline,
			MaxDuration:          time.Duration(w.Game.MaxDurationSeconds) * time.Second,
			ZoneCenter:           w.Game.ZoneCenter,
			MeetingPoint:         w.Game.MeetingPoint,
			PrizeSplit:           w.Game.PrizeSplit,
			Phase:                models.PhaseRegistration,
		}
		ev.Shrinks = w.Shrinks
	}
	return ev, nil
}

// RunPoller polls FetchEvents on interval, decodes each batch, and applies
// events strictly in block order, resuming from the persisted sync cursor
// on startup (spec §4.8). Mirrors the teacher's Poller.Run select-on-
// ticker-with-ctx.Done shape.
func (a *Adapter) RunPoller(ctx context.Context, interval time.Duration) {
	cursor, err := a.st.GetSyncCursor(ctx)
	var since int64
	if err == nil {
		since = cursor.BlockHeight
	} else if err != store.ErrNotFound {
		log.Printf("[ChainAdapter] poller: read sync cursor: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			since = a.pollOnce(ctx, since)
		}
	}
}

func (a *Adapter) pollOnce(ctx context.Context, since int64) int64 {
	raw, err := a.client.FetchEvents(ctx, since)
	if err != nil {
		log.Printf("[ChainAdapter] poller: fetch events since %d: %v", since, err)
		return since
	}

	var wireEvents []wireEvent
	if err := json.Unmarshal(raw, &wireEvents); err != nil {
		log.Printf("[ChainAdapter] poller: decode events: %v", err)
		return since
	}
	sort.Slice(wireEvents, func(i, j int) bool { return wireEvents[i].BlockHeight < wireEvents[j].BlockHeight })

	for _, w := range wireEvents {
		ev, err := w.toEvent()
		if err != nil {
			log.Printf("[ChainAdapter] poller: %v", err)
			continue
		}
		if err := a.ApplyEvent(ctx, ev); err != nil {
			// ApplyEvent already logged; stop here so the next poll retries
			// this event and everything after it, preserving block order.
			return since
		}
		since = ev.BlockHeight
	}
	return since
}

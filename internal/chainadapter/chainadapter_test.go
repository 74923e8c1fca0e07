package chainadapter

import (
	"context"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/chain-assassin/coordinator/internal/models"
	"github.com/chain-assassin/coordinator/internal/store"
)

type stubHandlers struct {
	failGameStarted bool
	gameStartedGame int64
}

func (s *stubHandlers) OnGameCreated(ctx context.Context, game *models.Game, shrinks []models.ZoneShrink) error {
	return nil
}
func (s *stubHandlers) OnPlayerRegistered(ctx context.Context, gameID int64, address string, totalCollected btcutil.Amount) error {
	return nil
}
func (s *stubHandlers) OnGameStarted(ctx context.Context, gameID int64) error {
	s.gameStartedGame = gameID
	if s.failGameStarted {
		return errors.New("boom")
	}
	return nil
}
func (s *stubHandlers) OnGameEnded(ctx context.Context, gameID int64, winners EndGameWinners) error {
	return nil
}
func (s *stubHandlers) OnGameCancelled(ctx context.Context, gameID int64) error { return nil }
func (s *stubHandlers) OnPrizeClaimed(ctx context.Context, gameID int64, address string) error {
	return nil
}
func (s *stubHandlers) OnRefundClaimed(ctx context.Context, gameID int64, address string) error {
	return nil
}

func TestApplyEventAdvancesCursorOnSuccess(t *testing.T) {
	st := store.NewMemoryStore()
	h := &stubHandlers{}
	a := New(st, nil, h)

	err := a.ApplyEvent(context.Background(), Event{
		Type:        EventGameStarted,
		BlockHeight: 100,
		BlockHash:   chainhash.Hash{1, 2, 3},
		GameID:      1,
	})
	if err != nil {
		t.Fatalf("ApplyEvent: %v", err)
	}
	if a.CurrentHeight() != 100 {
		t.Fatalf("CurrentHeight = %d, want 100", a.CurrentHeight())
	}
	cursor, err := st.GetSyncCursor(context.Background())
	if err != nil {
		t.Fatalf("GetSyncCursor: %v", err)
	}
	if cursor.BlockHeight != 100 {
		t.Fatalf("cursor.BlockHeight = %d, want 100", cursor.BlockHeight)
	}
}

func TestApplyEventDoesNotAdvanceCursorOnFailure(t *testing.T) {
	st := store.NewMemoryStore()
	h := &stubHandlers{failGameStarted: true}
	a := New(st, nil, h)

	err := a.ApplyEvent(context.Background(), Event{
		Type:        EventGameStarted,
		BlockHeight: 50,
		GameID:      1,
	})
	if err == nil {
		t.Fatalf("expected error from failing handler")
	}
	if _, err := st.GetSyncCursor(context.Background()); err != store.ErrNotFound {
		t.Fatalf("expected no cursor persisted, got err=%v", err)
	}
}

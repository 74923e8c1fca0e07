package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/chain-assassin/coordinator/internal/chainadapter"
	"github.com/chain-assassin/coordinator/internal/models"
	"github.com/chain-assassin/coordinator/internal/realtime"
)

// This file implements chainadapter.Handlers, the dispatch target for the
// chain event stream (spec §4.8's event → handler table).

func (c *Coordinator) OnGameCreated(ctx context.Context, game *models.Game, shrinks []models.ZoneShrink) error {
	if err := c.st.CreateGame(ctx, game); err != nil {
		return fmt.Errorf("coordinator: create game %d: %w", game.GameID, err)
	}
	if len(shrinks) > 0 {
		if err := c.st.InsertZoneShrinks(ctx, game.GameID, shrinks); err != nil {
			return fmt.Errorf("coordinator: insert shrinks for game %d: %w", game.GameID, err)
		}
	}
	c.logf("game %d created, phase=%s", game.GameID, game.Phase)
	return nil
}

func (c *Coordinator) OnPlayerRegistered(ctx context.Context, gameID int64, address string, totalCollected btcutil.Amount) error {
	g, err := c.st.GetGame(ctx, gameID)
	if err != nil {
		return fmt.Errorf("coordinator: get game %d: %w", gameID, err)
	}

	num, err := c.st.NextPlayerNumber(ctx, gameID)
	if err != nil {
		return fmt.Errorf("coordinator: next player number: %w", err)
	}
	p := &models.Player{
		GameID:        gameID,
		WalletAddress: address,
		PlayerNumber:  num,
		IsAlive:       true,
	}
	if err := c.st.InsertPlayer(ctx, p); err != nil {
		return fmt.Errorf("coordinator: insert player: %w", err)
	}

	g.PlayerCount++
	g.TotalCollected = totalCollected
	if err := c.st.UpdateGame(ctx, g); err != nil {
		return fmt.Errorf("coordinator: update game counters: %w", err)
	}

	c.hub.Broadcast(gameID, "player:registered", realtime.Message{
		"playerNumber": num,
		"playerCount":  g.PlayerCount,
	})
	return nil
}

func (c *Coordinator) OnGameStarted(ctx context.Context, gameID int64) error {
	g, err := c.st.GetGame(ctx, gameID)
	if err != nil {
		return fmt.Errorf("coordinator: get game %d: %w", gameID, err)
	}
	return c.enterCheckin(ctx, g)
}

func (c *Coordinator) OnGameEnded(ctx context.Context, gameID int64, winners chainadapter.EndGameWinners) error {
	g, err := c.st.GetGame(ctx, gameID)
	if err != nil {
		return fmt.Errorf("coordinator: get game %d: %w", gameID, err)
	}
	g.Phase = models.PhaseEnded
	now := time.Now()
	g.EndedAt = &now
	g.Winner1, g.Winner2, g.Winner3, g.TopKiller = winners.Winner1, winners.Winner2, winners.Winner3, winners.TopKiller
	if err := c.st.UpdateGame(ctx, g); err != nil {
		return fmt.Errorf("coordinator: persist ended game: %w", err)
	}

	w1, w2, w3, topKiller := resolveWinnerNumbers(ctx, c.st, gameID, leaderboardWinners(g))
	c.hub.Broadcast(gameID, "game:ended", realtime.Message{
		"winner1":   w1,
		"winner2":   w2,
		"winner3":   w3,
		"topKiller": topKiller,
	})
	if c.metrics != nil {
		c.metrics.GamesEnded.Inc()
		c.metrics.ActiveGames.Dec()
	}
	c.cancelTimers(gameID)
	return nil
}

func (c *Coordinator) OnGameCancelled(ctx context.Context, gameID int64) error {
	g, err := c.st.GetGame(ctx, gameID)
	if err != nil {
		return fmt.Errorf("coordinator: get game %d: %w", gameID, err)
	}
	g.Phase = models.PhaseCancelled
	if err := c.st.UpdateGame(ctx, g); err != nil {
		return fmt.Errorf("coordinator: persist cancelled game: %w", err)
	}
	c.hub.Broadcast(gameID, "game:cancelled", realtime.Message{"gameId": gameID})
	if c.metrics != nil {
		c.metrics.GamesCancelled.Inc()
	}
	c.cancelTimers(gameID)
	return nil
}

func (c *Coordinator) OnPrizeClaimed(ctx context.Context, gameID int64, address string) error {
	return c.markClaimed(ctx, gameID, address)
}

func (c *Coordinator) OnRefundClaimed(ctx context.Context, gameID int64, address string) error {
	return c.markClaimed(ctx, gameID, address)
}

func (c *Coordinator) markClaimed(ctx context.Context, gameID int64, address string) error {
	p, err := c.st.GetPlayer(ctx, gameID, address)
	if err != nil {
		return fmt.Errorf("coordinator: get player %s in game %d: %w", address, gameID, err)
	}
	p.HasClaimed = true
	return c.st.UpdatePlayer(ctx, p)
}


package coordinator

import (
	"context"
	"time"

	"github.com/chain-assassin/coordinator/internal/chainadapter"
	"github.com/chain-assassin/coordinator/internal/leaderboard"
	"github.com/chain-assassin/coordinator/internal/models"
	"github.com/chain-assassin/coordinator/internal/realtime"
	"github.com/chain-assassin/coordinator/internal/settlement"
)

// CheckAutoStart implements POST /api/admin/check-auto-start: it runs the
// registrationDeadline/gameDate checks over every REGISTRATION game (spec
// §4.6 transition diagram, top two edges).
func (c *Coordinator) CheckAutoStart(ctx context.Context) error {
	games, err := c.st.ListGamesByPhase(ctx, models.PhaseRegistration)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, g := range games {
		underSubscribed := g.PlayerCount < g.MinPlayers
		pastDeadline := now.After(g.RegistrationDeadline) || now.Equal(g.RegistrationDeadline)
		pastGameDate := now.After(g.GameDate) || now.Equal(g.GameDate)

		switch {
		case underSubscribed && (pastDeadline || pastGameDate):
			c.triggerCancellation(g.GameID)
		case !underSubscribed && pastGameDate:
			c.startGame(ctx, g)
		}
	}
	return nil
}

func (c *Coordinator) startGame(ctx context.Context, g *models.Game) {
	if g.Simulated {
		if err := c.OnGameStarted(ctx, g.GameID); err != nil {
			c.logf("game %d: simulated start failed: %v", g.GameID, err)
		}
		return
	}
	if c.adapter == nil {
		return
	}
	if _, err := c.adapter.Submit(ctx, g.GameID, models.ActionStartGame, func(ctx context.Context) (settlement.TxResult, error) {
		return c.client.StartGame(ctx, g.GameID)
	}); err != nil {
		c.logf("game %d: submit startGame: %v", g.GameID, err)
	}
}

// triggerCancellation submits an operator.triggerCancellation, guarded
// against duplicate submission by the per-game in-flight flag (spec §4.6
// "Cancellation").
func (c *Coordinator) triggerCancellation(gameID int64) {
	flags := c.triggersFor(gameID)
	if !flags.cancellationInFlight.CompareAndSwap(false, true) {
		return
	}

	ctx := context.Background()
	g, err := c.st.GetGame(ctx, gameID)
	if err != nil {
		flags.cancellationInFlight.Store(false)
		c.logf("game %d: triggerCancellation get game: %v", gameID, err)
		return
	}
	if g.Phase != models.PhaseRegistration {
		flags.cancellationInFlight.Store(false)
		return
	}

	if g.Simulated {
		if err := c.OnGameCancelled(ctx, gameID); err != nil {
			flags.cancellationInFlight.Store(false)
			c.logf("game %d: simulated cancellation failed: %v", gameID, err)
		}
		// On success OnGameCancelled's cancelTimers already clears this flag.
		return
	}

	if c.adapter == nil {
		flags.cancellationInFlight.Store(false)
		return
	}
	// Submit only guarantees the outbox row was inserted; the real chain
	// outcome resolves later via OnGameCancelled, which clears the flag
	// through cancelTimers. Only a synchronous submit failure resets it
	// here, so a tick that fires before the event arrives stays suppressed.
	if _, err := c.adapter.Submit(ctx, gameID, models.ActionTriggerCancellation, func(ctx context.Context) (settlement.TxResult, error) {
		return c.client.TriggerCancellation(ctx, gameID)
	}); err != nil {
		flags.cancellationInFlight.Store(false)
		c.logf("game %d: submit triggerCancellation: %v", gameID, err)
	}
}

// triggerExpiry fires when ACTIVE.checkin runs past expiryDeadline without
// reaching requiredCheckedIn (spec §4.6 "Expiry").
func (c *Coordinator) triggerExpiry(gameID int64) {
	flags := c.triggersFor(gameID)
	if !flags.expiryInFlight.CompareAndSwap(false, true) {
		return
	}

	ctx := context.Background()
	g, err := c.st.GetGame(ctx, gameID)
	if err != nil {
		flags.expiryInFlight.Store(false)
		c.logf("game %d: triggerExpiry get game: %v", gameID, err)
		return
	}
	if g.SubPhase != models.SubPhaseCheckin {
		flags.expiryInFlight.Store(false)
		return
	}

	if g.Simulated {
		if err := c.OnGameCancelled(ctx, gameID); err != nil {
			flags.expiryInFlight.Store(false)
			c.logf("game %d: simulated expiry cancellation failed: %v", gameID, err)
		}
		return
	}

	if c.adapter == nil {
		flags.expiryInFlight.Store(false)
		return
	}
	if _, err := c.adapter.Submit(ctx, gameID, models.ActionTriggerExpiry, func(ctx context.Context) (settlement.TxResult, error) {
		return c.client.TriggerExpiry(ctx, gameID)
	}); err != nil {
		flags.expiryInFlight.Store(false)
		c.logf("game %d: submit triggerExpiry: %v", gameID, err)
	}
}

// endGame resolves winners and submits operator.endGame, guarded against
// duplicate submission (spec §5 "endingGames").
func (c *Coordinator) endGame(ctx context.Context, rt *gameRuntime) {
	gameID := rt.gameID
	flags := c.triggersFor(gameID)
	if !flags.endingInFlight.CompareAndSwap(false, true) {
		return
	}

	g, err := c.st.GetGame(ctx, gameID)
	if err != nil {
		flags.endingInFlight.Store(false)
		c.logf("game %d: endGame get game: %v", gameID, err)
		return
	}
	if g.Phase == models.PhaseEnded {
		flags.endingInFlight.Store(false)
		return
	}

	players, err := c.st.ListPlayers(ctx, gameID)
	if err != nil {
		flags.endingInFlight.Store(false)
		c.logf("game %d: endGame list players: %v", gameID, err)
		return
	}
	winners := leaderboard.ResolveWinners(players, g.PrizeSplit)

	if g.Simulated {
		ew := chainadapter.EndGameWinners{Winner1: winners.Winner1, Winner2: winners.Winner2, Winner3: winners.Winner3, TopKiller: winners.TopKiller}
		if err := c.OnGameEnded(ctx, gameID, ew); err != nil {
			flags.endingInFlight.Store(false)
			c.logf("game %d: simulated endGame failed: %v", gameID, err)
		}
		return
	}

	if c.adapter == nil {
		flags.endingInFlight.Store(false)
		return
	}
	w1, w2, w3, topKiller := resolveWinnerNumbers(ctx, c.st, gameID, winners)
	if _, err := c.adapter.Submit(ctx, gameID, models.ActionEndGame, func(ctx context.Context) (settlement.TxResult, error) {
		return c.client.EndGame(ctx, gameID, w1, w2, w3, topKiller)
	}); err != nil {
		flags.endingInFlight.Store(false)
		c.logf("game %d: submit endGame: %v", gameID, err)
	}
}

// GetGameStatus serves GET /api/games/{id}/status.
func (c *Coordinator) GetGameStatus(ctx context.Context, gameID int64) (realtime.Message, error) {
	g, err := c.st.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	players, err := c.st.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, err
	}
	entries := leaderboard.Rank(players)
	out := make([]realtime.Message, len(entries))
	for i, e := range entries {
		out[i] = realtime.Message{
			"playerNumber":  e.PlayerNumber,
			"walletAddress": e.WalletAddress,
			"isAlive":       e.IsAlive,
			"kills":         e.Kills,
		}
	}

	status := realtime.Message{
		"gameId":       gameID,
		"phase":        g.Phase,
		"subPhase":     g.SubPhase,
		"playerCount":  g.PlayerCount,
		"aliveCount":   aliveCount(players),
		"leaderboard":  out,
	}
	if g.Phase == models.PhaseEnded {
		w1, w2, w3, topKiller := resolveWinnerNumbers(ctx, c.st, gameID, leaderboardWinners(g))
		status["winner1"] = w1
		status["winner2"] = w2
		status["winner3"] = w3
		status["topKiller"] = topKiller
	}
	if g.SubPhase == models.SubPhasePregame && g.SubPhaseStartedAt != nil {
		status["pregameEndsAt"] = g.SubPhaseStartedAt.Add(time.Duration(c.cfg.PregameDurationSeconds) * time.Second)
	}

	rt, ok := c.runtimeFor(gameID)
	if ok {
		rt.mu.Lock()
		zone := rt.zone
		rt.mu.Unlock()
		if zone != nil {
			status["zone"] = zoneMessage(zone.State(time.Now()))
		}
	}
	return status, nil
}

// SpectatorInit implements realtime.SpectatorInitProvider, building the
// one-shot spectate:init frame a new spectator connection receives (spec
// §4.7 "on connect the server sends spectate:init containing the phase,
// counters, current leaderboard, and latest positions snapshot"). ok=false
// means gameID doesn't exist and the connection should get no snapshot.
func (c *Coordinator) SpectatorInit(gameID int64) (realtime.Message, bool) {
	ctx := context.Background()
	g, err := c.st.GetGame(ctx, gameID)
	if err != nil {
		return nil, false
	}
	players, err := c.st.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, false
	}
	entries := leaderboard.Rank(players)
	board := make([]realtime.Message, len(entries))
	for i, e := range entries {
		board[i] = realtime.Message{
			"playerNumber":  e.PlayerNumber,
			"walletAddress": e.WalletAddress,
			"isAlive":       e.IsAlive,
			"kills":         e.Kills,
		}
	}

	_, positions, err := c.positionsSnapshot(ctx, gameID)
	if err != nil {
		positions = nil
	}

	msg := realtime.Message{
		"gameId":      gameID,
		"phase":       g.Phase,
		"subPhase":    g.SubPhase,
		"playerCount": g.PlayerCount,
		"aliveCount":  aliveCount(players),
		"leaderboard": board,
		"players":     positions,
	}

	rt, ok := c.runtimeFor(gameID)
	if ok {
		rt.mu.Lock()
		zone := rt.zone
		rt.mu.Unlock()
		if zone != nil {
			msg["zone"] = zoneMessage(zone.State(time.Now()))
		}
	}
	return msg, true
}

package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/chain-assassin/coordinator/internal/chainadapter"
	"github.com/chain-assassin/coordinator/internal/config"
	"github.com/chain-assassin/coordinator/internal/models"
	"github.com/chain-assassin/coordinator/internal/realtime"
	"github.com/chain-assassin/coordinator/internal/store"
	"github.com/chain-assassin/coordinator/internal/targetchain"
)

func testConfig() config.Config {
	return config.Config{
		CheckinDurationSeconds:    120,
		PregameDurationSeconds:    30,
		ZoneGraceSeconds:          60,
		KillProximityMeters:       50,
		HeartbeatProximityMeters:  50,
		HeartbeatIntervalSeconds:  3600,
		HeartbeatDisableThreshold: 2,
		BLERequired:               false,
	}
}

func newTestCoordinator() (*Coordinator, store.Store) {
	st := store.NewMemoryStore()
	chain := targetchain.New(st)
	hub := realtime.NewHub()
	c := New(st, chain, hub, nil, nil, testConfig(), nil)
	return c, st
}

func seedGame(t *testing.T, st store.Store, gameID int64, numPlayers int, split models.PrizeSplit) []*models.Player {
	t.Helper()
	now := time.Now()
	g := &models.Game{
		GameID:         gameID,
		MinPlayers:     2,
		MaxPlayers:     numPlayers,
		PrizeSplit:     split,
		Phase:          models.PhaseActive,
		SubPhase:       models.SubPhaseCheckin,
		StartedAt:      &now,
		ExpiryDeadline: now.Add(time.Hour),
		Simulated:      true,
	}
	if err := st.CreateGame(context.Background(), g); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	players := make([]*models.Player, numPlayers)
	for i := 0; i < numPlayers; i++ {
		p := &models.Player{
			GameID:        gameID,
			WalletAddress: addrFor(i),
			PlayerNumber:  i + 1,
			IsAlive:       true,
		}
		if err := st.InsertPlayer(context.Background(), p); err != nil {
			t.Fatalf("InsertPlayer: %v", err)
		}
		players[i] = p
	}
	g.PlayerCount = numPlayers
	if err := st.UpdateGame(context.Background(), g); err != nil {
		t.Fatalf("UpdateGame: %v", err)
	}
	return players
}

func addrFor(i int) string {
	return "0xplayer" + string(rune('A'+i))
}

func TestCheckCheckinCompleteEliminatesUncheckedAndEntersPregame(t *testing.T) {
	c, st := newTestCoordinator()
	split := models.PrizeSplit{Bps1st: 6000, Bps2nd: 3000, Bps3rd: 0}
	players := seedGame(t, st, 1, 4, split) // requiredCheckedIn = 2

	ctx := context.Background()
	players[0].CheckedIn = true
	players[1].CheckedIn = true
	if err := st.UpdatePlayer(ctx, players[0]); err != nil {
		t.Fatalf("UpdatePlayer: %v", err)
	}
	if err := st.UpdatePlayer(ctx, players[1]); err != nil {
		t.Fatalf("UpdatePlayer: %v", err)
	}

	c.newRuntime(1)
	defer c.cancelTimers(1)

	if !c.checkCheckinComplete(ctx, 1) {
		t.Fatalf("expected checkCheckinComplete to report completion")
	}

	all, err := st.ListPlayers(ctx, 1)
	if err != nil {
		t.Fatalf("ListPlayers: %v", err)
	}
	aliveNow := 0
	for _, p := range all {
		if p.IsAlive {
			aliveNow++
		} else if p.EliminatedBy != string(models.EliminationReasonNoCheckin) {
			t.Fatalf("player %d eliminated with unexpected reason %q", p.PlayerNumber, p.EliminatedBy)
		}
	}
	if aliveNow != 2 {
		t.Fatalf("aliveNow = %d, want 2", aliveNow)
	}

	g, err := st.GetGame(ctx, 1)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if g.SubPhase != models.SubPhasePregame {
		t.Fatalf("subPhase = %q, want pregame", g.SubPhase)
	}
}

func TestCheckCheckinCompleteEndsGameWhenOnlyOneSurvives(t *testing.T) {
	c, st := newTestCoordinator()
	split := models.PrizeSplit{Bps1st: 10000}
	players := seedGame(t, st, 2, 3, split) // requiredCheckedIn = 1

	ctx := context.Background()
	players[0].CheckedIn = true
	if err := st.UpdatePlayer(ctx, players[0]); err != nil {
		t.Fatalf("UpdatePlayer: %v", err)
	}

	c.newRuntime(2)
	defer c.cancelTimers(2)

	if !c.checkCheckinComplete(ctx, 2) {
		t.Fatalf("expected completion")
	}

	g, err := st.GetGame(ctx, 2)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if g.Phase != models.PhaseEnded {
		t.Fatalf("phase = %q, want ENDED", g.Phase)
	}
	if g.Winner1 != players[0].WalletAddress {
		t.Fatalf("winner1 = %q, want %q", g.Winner1, players[0].WalletAddress)
	}
}

func TestProcessKillCollapsesTwoPlayerChainAndEndsGame(t *testing.T) {
	c, st := newTestCoordinator()
	split := models.PrizeSplit{Bps1st: 9000, BpsKills: 1000}
	players := seedGame(t, st, 3, 2, split)

	ctx := context.Background()
	if err := c.chain.Initialize(ctx, 3, []string{players[0].WalletAddress, players[1].WalletAddress}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	rt := c.newRuntime(3)
	defer c.cancelTimers(3)

	hunterAddr, targetAddr := players[0].WalletAddress, players[1].WalletAddress
	if t1, _ := c.chain.TargetOf(3, hunterAddr); t1 != targetAddr {
		hunterAddr, targetAddr = players[1].WalletAddress, players[0].WalletAddress
	}

	c.processKill(ctx, rt, hunterAddr, targetAddr)

	hunter, err := st.GetPlayer(ctx, 3, hunterAddr)
	if err != nil {
		t.Fatalf("GetPlayer hunter: %v", err)
	}
	if hunter.Kills != 1 {
		t.Fatalf("hunter.Kills = %d, want 1", hunter.Kills)
	}
	target, err := st.GetPlayer(ctx, 3, targetAddr)
	if err != nil {
		t.Fatalf("GetPlayer target: %v", err)
	}
	if target.IsAlive {
		t.Fatalf("target still alive")
	}

	g, err := st.GetGame(ctx, 3)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if g.Phase != models.PhaseEnded {
		t.Fatalf("phase = %q, want ENDED", g.Phase)
	}
	if g.Winner1 != hunterAddr {
		t.Fatalf("winner1 = %q, want %q", g.Winner1, hunterAddr)
	}
	if g.TopKiller != hunterAddr {
		t.Fatalf("topKiller = %q, want %q", g.TopKiller, hunterAddr)
	}
}

func TestEliminateNonKillReassignsChainAndContinuesGame(t *testing.T) {
	c, st := newTestCoordinator()
	split := models.PrizeSplit{Bps1st: 10000}
	players := seedGame(t, st, 4, 3, split)
	addrs := []string{players[0].WalletAddress, players[1].WalletAddress, players[2].WalletAddress}

	ctx := context.Background()
	if err := c.chain.Initialize(ctx, 4, addrs); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	rt := c.newRuntime(4)
	defer c.cancelTimers(4)

	victim := players[1].WalletAddress
	huntedBy, ok := c.chain.HunterOf(4, victim)
	if !ok {
		t.Fatalf("expected an assigned hunter for %s", victim)
	}
	victimTarget, ok := c.chain.TargetOf(4, victim)
	if !ok {
		t.Fatalf("expected an assigned target for %s", victim)
	}

	c.eliminateNonKill(ctx, rt, victim, models.EliminationReasonZoneViolation)

	vp, err := st.GetPlayer(ctx, 4, victim)
	if err != nil {
		t.Fatalf("GetPlayer: %v", err)
	}
	if vp.IsAlive {
		t.Fatalf("victim still alive")
	}
	if vp.EliminatedBy != string(models.EliminationReasonZoneViolation) {
		t.Fatalf("eliminatedBy = %q", vp.EliminatedBy)
	}

	newTarget, ok := c.chain.TargetOf(4, huntedBy)
	if !ok || newTarget != victimTarget {
		t.Fatalf("chain not rewired around victim: TargetOf(%s) = %s, ok=%v, want %s", huntedBy, newTarget, ok, victimTarget)
	}

	g, err := st.GetGame(ctx, 4)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if g.Phase != models.PhaseActive {
		t.Fatalf("phase = %q, want ACTIVE (3 players should not yet end)", g.Phase)
	}
}

func TestCheckAutoStartCancelsUnderSubscribedGame(t *testing.T) {
	c, st := newTestCoordinator()
	now := time.Now()
	g := &models.Game{
		GameID:               5,
		MinPlayers:           4,
		PlayerCount:          1,
		Phase:                models.PhaseRegistration,
		RegistrationDeadline: now.Add(-time.Minute),
		GameDate:             now.Add(time.Hour),
		Simulated:            true,
	}
	if err := st.CreateGame(context.Background(), g); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	if err := c.CheckAutoStart(context.Background()); err != nil {
		t.Fatalf("CheckAutoStart: %v", err)
	}

	got, err := st.GetGame(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if got.Phase != models.PhaseCancelled {
		t.Fatalf("phase = %q, want CANCELLED", got.Phase)
	}
}

func TestCheckAutoStartBeginsCheckinForFullyRegisteredGame(t *testing.T) {
	c, st := newTestCoordinator()
	now := time.Now()
	g := &models.Game{
		GameID:               6,
		MinPlayers:           2,
		PlayerCount:          2,
		Phase:                models.PhaseRegistration,
		RegistrationDeadline: now.Add(time.Hour),
		GameDate:             now.Add(-time.Minute),
		Simulated:            true,
	}
	if err := st.CreateGame(context.Background(), g); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	if err := c.CheckAutoStart(context.Background()); err != nil {
		t.Fatalf("CheckAutoStart: %v", err)
	}
	defer c.cancelTimers(6)

	got, err := st.GetGame(context.Background(), 6)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if got.Phase != models.PhaseActive || got.SubPhase != models.SubPhaseCheckin {
		t.Fatalf("phase/subPhase = %s/%s, want ACTIVE/checkin", got.Phase, got.SubPhase)
	}
}

// a compile-time check that Coordinator satisfies chainadapter.Handlers.
var _ chainadapter.Handlers = (*Coordinator)(nil)

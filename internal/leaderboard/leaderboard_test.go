package leaderboard

import (
	"testing"
	"time"

	"github.com/chain-assassin/coordinator/internal/models"
)

func TestRankAliveBeforeEliminated(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	players := []*models.Player{
		{WalletAddress: "dead1", PlayerNumber: 1, IsAlive: false, EliminatedAt: &t1, Kills: 5},
		{WalletAddress: "alive1", PlayerNumber: 2, IsAlive: true, Kills: 1},
	}
	ranked := Rank(players)
	if ranked[0].WalletAddress != "alive1" {
		t.Fatalf("ranked[0] = %+v, want alive1 first", ranked[0])
	}
}

func TestRankEliminatedByLaterFirst(t *testing.T) {
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	players := []*models.Player{
		{WalletAddress: "early", PlayerNumber: 1, IsAlive: false, EliminatedAt: &early},
		{WalletAddress: "late", PlayerNumber: 2, IsAlive: false, EliminatedAt: &late},
	}
	ranked := Rank(players)
	if ranked[0].WalletAddress != "late" {
		t.Fatalf("ranked[0] = %+v, want late (higher rank)", ranked[0])
	}
}

func TestRankKillsThenPlayerNumber(t *testing.T) {
	players := []*models.Player{
		{WalletAddress: "p3", PlayerNumber: 3, IsAlive: true, Kills: 2},
		{WalletAddress: "p1", PlayerNumber: 1, IsAlive: true, Kills: 2},
		{WalletAddress: "p2", PlayerNumber: 2, IsAlive: true, Kills: 5},
	}
	ranked := Rank(players)
	if ranked[0].WalletAddress != "p2" {
		t.Fatalf("ranked[0] = %+v, want p2 (most kills)", ranked[0])
	}
	if ranked[1].WalletAddress != "p1" || ranked[2].WalletAddress != "p3" {
		t.Fatalf("tie-break order = %v, want p1 then p3 by playerNumber", ranked[1:])
	}
}

func TestResolveWinnersZeroSlotsWhenBpsZero(t *testing.T) {
	players := []*models.Player{
		{WalletAddress: "p1", PlayerNumber: 1, IsAlive: true, Kills: 3},
		{WalletAddress: "p2", PlayerNumber: 2, IsAlive: true, Kills: 1},
	}
	split := models.PrizeSplit{Bps1st: 5000, Bps2nd: 0, Bps3rd: 0, BpsKills: 0}
	w := ResolveWinners(players, split)
	if w.Winner1 != "p1" {
		t.Fatalf("Winner1 = %q, want p1", w.Winner1)
	}
	if w.Winner2 != "" || w.Winner3 != "" || w.TopKiller != "" {
		t.Fatalf("expected zero slots, got %+v", w)
	}
}

func TestResolveWinnersTopKiller(t *testing.T) {
	players := []*models.Player{
		{WalletAddress: "p1", PlayerNumber: 1, IsAlive: true, Kills: 3},
		{WalletAddress: "p2", PlayerNumber: 2, IsAlive: false, Kills: 5},
	}
	split := models.PrizeSplit{Bps1st: 5000, BpsKills: 1000}
	w := ResolveWinners(players, split)
	if w.TopKiller != "p2" {
		t.Fatalf("TopKiller = %q, want p2", w.TopKiller)
	}
}

// Package leaderboard implements the deterministic player ranking and
// winner resolution of spec §4.5.
package leaderboard

import (
	"sort"

	"github.com/chain-assassin/coordinator/internal/models"
)

// Entry is one ranked row, as broadcast in leaderboard:update frames.
type Entry struct {
	PlayerNumber int
	WalletAddress string
	IsAlive       bool
	Kills         int
}

// Rank orders players per spec §4.5:
//  1. Alive before eliminated.
//  2. Among eliminated, larger eliminatedAt first (later = higher rank).
//  3. Then larger kills first.
//  4. Then smaller playerNumber first.
func Rank(players []*models.Player) []Entry {
	sorted := append([]*models.Player(nil), players...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.IsAlive != b.IsAlive {
			return a.IsAlive
		}
		if !a.IsAlive {
			at, bt := a.EliminatedAt, b.EliminatedAt
			if at != nil && bt != nil && !at.Equal(*bt) {
				return at.After(*bt)
			}
		}
		if a.Kills != b.Kills {
			return a.Kills > b.Kills
		}
		return a.PlayerNumber < b.PlayerNumber
	})

	out := make([]Entry, len(sorted))
	for i, p := range sorted {
		out[i] = Entry{
			PlayerNumber:  p.PlayerNumber,
			WalletAddress: p.WalletAddress,
			IsAlive:       p.IsAlive,
			Kills:         p.Kills,
		}
	}
	return out
}

// Winners is the resolved payout set for operator.endGame.
type Winners struct {
	Winner1   string
	Winner2   string
	Winner3   string
	TopKiller string
}

// ResolveWinners reads players once and computes the §4.5 winner set. The
// zero value of a slot is the empty string, which the coordinator turns
// into player number 0 before calling the settlement client's EndGame.
func ResolveWinners(players []*models.Player, split models.PrizeSplit) Winners {
	ranked := Rank(players)

	var w Winners
	if len(ranked) > 0 {
		w.Winner1 = ranked[0].WalletAddress
	}
	if split.Bps2nd != 0 && len(ranked) > 1 {
		w.Winner2 = ranked[1].WalletAddress
	}
	if split.Bps3rd != 0 && len(ranked) > 2 {
		w.Winner3 = ranked[2].WalletAddress
	}

	if split.BpsKills != 0 {
		var topAddr string
		maxKills := 0
		for _, p := range players {
			if p.Kills > maxKills {
				maxKills = p.Kills
				topAddr = p.WalletAddress
			}
		}
		if maxKills > 0 {
			w.TopKiller = topAddr
		}
	}
	return w
}

package coordinator

import (
	"context"
	"time"

	"github.com/chain-assassin/coordinator/internal/geo"
	"github.com/chain-assassin/coordinator/internal/models"
	"github.com/chain-assassin/coordinator/internal/zonetracker"
)

// Resume reconstructs in-memory runtime state for every ACTIVE game after a
// process restart (spec §8 scenario 5 "Crash recovery"): the target chain,
// the zone tracker seeded from each player's latest persisted location
// ping, and whichever loop the game's sub-phase calls for.
func (c *Coordinator) Resume(ctx context.Context) error {
	games, err := c.st.ListGamesByPhase(ctx, models.PhaseActive)
	if err != nil {
		return err
	}
	for _, g := range games {
		c.resumeGame(ctx, g)
	}
	return nil
}

func (c *Coordinator) resumeGame(ctx context.Context, g *models.Game) {
	rt := c.newRuntime(g.GameID)

	switch g.SubPhase {
	case models.SubPhaseCheckin:
		c.logf("game %d: resuming checkin", g.GameID)
		go c.runAutoSeedLoop(rt)
		go c.runCheckinMonitor(rt)

	case models.SubPhasePregame:
		c.logf("game %d: resuming pregame", g.GameID)
		remaining := time.Duration(c.cfg.PregameDurationSeconds) * time.Second
		if g.SubPhaseStartedAt != nil {
			elapsed := time.Since(*g.SubPhaseStartedAt)
			remaining -= elapsed
			if remaining < 0 {
				remaining = 0
			}
		}
		go c.schedulePregameTimer(rt, remaining)

	case models.SubPhaseGame:
		c.logf("game %d: resuming game", g.GameID)
		if err := c.chain.Restore(ctx, g.GameID); err != nil {
			c.logf("game %d: restore target chain: %v", g.GameID, err)
			return
		}
		if err := c.rebuildZoneTracker(ctx, rt, g); err != nil {
			c.logf("game %d: rebuild zone tracker: %v", g.GameID, err)
			return
		}
		go c.runGameTick(rt)

	default:
		c.logf("game %d: resume found unexpected sub-phase %q, leaving idle", g.GameID, g.SubPhase)
	}
}

// rebuildZoneTracker reconstructs a game's shrink-schedule state and
// re-seeds out-of-zone grace timers from the latest ping on file for every
// alive player (spec §8 scenario 5): the shrink index itself is derived
// purely from gameStartedAt + elapsed time, so only the out-of-zone
// bookkeeping needs explicit re-seeding.
func (c *Coordinator) rebuildZoneTracker(ctx context.Context, rt *gameRuntime, g *models.Game) error {
	shrinks, err := c.st.GetZoneShrinks(ctx, g.GameID)
	if err != nil {
		return err
	}
	gameStartedAt := time.Now()
	if g.SubPhaseStartedAt != nil {
		gameStartedAt = *g.SubPhaseStartedAt
	}
	zone := zonetracker.New(toGeoPoint(g.ZoneCenter), shrinks, gameStartedAt, c.cfg.ZoneGraceSeconds)

	alive, err := c.st.ListAlivePlayers(ctx, g.GameID)
	if err != nil {
		return err
	}
	now := time.Now()
	zone.Tick(now) // classify pings against the radius in effect now
	for _, p := range alive {
		ping, err := c.st.GetLatestPing(ctx, g.GameID, p.WalletAddress)
		if err != nil {
			continue
		}
		zone.SeedFromPing(p.WalletAddress, geo.Point{Lat: ping.Lat, Lng: ping.Lng}, ping.Timestamp, now)
	}

	rt.mu.Lock()
	rt.zone = zone
	rt.mu.Unlock()
	return nil
}

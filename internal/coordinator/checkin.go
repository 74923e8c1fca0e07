package coordinator

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/chain-assassin/coordinator/internal/ble"
	"github.com/chain-assassin/coordinator/internal/geo"
	"github.com/chain-assassin/coordinator/internal/models"
	"github.com/chain-assassin/coordinator/internal/qrcode"
	"github.com/chain-assassin/coordinator/internal/realtime"
	"github.com/chain-assassin/coordinator/internal/store"
	"github.com/chain-assassin/coordinator/internal/verifier"
)

const meetingRadiusMeters = 5000

// enterCheckin transitions a freshly-started game into ACTIVE.checkin and
// spins up its auto-seed and check-in-monitor loops (spec §4.6).
func (c *Coordinator) enterCheckin(ctx context.Context, g *models.Game) error {
	now := time.Now()
	g.Phase = models.PhaseActive
	g.SubPhase = models.SubPhaseCheckin
	g.StartedAt = &now
	g.SubPhaseStartedAt = &now
	if err := c.st.UpdateGame(ctx, g); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.GamesStarted.Inc()
		c.metrics.ActiveGames.Inc()
	}

	rt := c.newRuntime(g.GameID)
	required := requiredCheckedIn(g.PrizeSplit)
	checkinEndsAt := now.Add(time.Duration(c.cfg.CheckinDurationSeconds) * time.Second)
	c.hub.Broadcast(g.GameID, "game:checkin_started", realtime.Message{
		"checkinDurationSeconds": c.cfg.CheckinDurationSeconds,
		"checkinEndsAt":          checkinEndsAt,
		"requiredCheckedIn":      required,
	})

	go c.runAutoSeedLoop(rt)
	go c.runCheckinMonitor(rt)
	return nil
}

// runAutoSeedLoop implements "Check-in seeding" (spec §4.6): every 60s,
// seed enough nearby un-checked-in players to reach the viral seed target.
func (c *Coordinator) runAutoSeedLoop(rt *gameRuntime) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	c.autoSeedIteration(rt.gameID)
	for {
		select {
		case <-rt.ctx.Done():
			return
		case <-ticker.C:
			done, err := c.autoSeedIteration(rt.gameID)
			if err != nil {
				c.logf("game %d auto-seed iteration failed: %v", rt.gameID, err)
				continue
			}
			if done {
				return
			}
		}
	}
}

func (c *Coordinator) autoSeedIteration(gameID int64) (done bool, err error) {
	ctx := context.Background()
	g, err := c.st.GetGame(ctx, gameID)
	if err != nil {
		return false, err
	}
	if g.SubPhase != models.SubPhaseCheckin {
		return true, nil
	}

	alive, err := c.st.ListAlivePlayers(ctx, gameID)
	if err != nil {
		return false, err
	}
	seedTarget := int(math.Max(1, math.Ceil(0.05*float64(len(alive)))))

	checkedIn := 0
	var candidates []*models.Player
	for _, p := range alive {
		if p.CheckedIn {
			checkedIn++
		} else {
			candidates = append(candidates, p)
		}
	}
	need := seedTarget - checkedIn
	if need <= 0 || len(candidates) == 0 {
		return need <= 0, nil
	}

	pings, err := c.st.ListLatestPings(ctx, gameID)
	if err != nil {
		return false, err
	}
	pingByAddr := make(map[string]*models.LocationPing, len(pings))
	for _, p := range pings {
		pingByAddr[p.Address] = p
	}

	meeting := meetingPointOrZoneCenter(g)
	type scored struct {
		player *models.Player
		dist   float64
	}
	var nearby []scored
	for _, p := range candidates {
		ping, ok := pingByAddr[p.WalletAddress]
		if !ok {
			continue
		}
		dist := geo.HaversineMeters(meeting, geo.Point{Lat: ping.Lat, Lng: ping.Lng})
		if dist <= meetingRadiusMeters {
			nearby = append(nearby, scored{p, dist})
		}
	}
	sort.Slice(nearby, func(i, j int) bool { return nearby[i].dist < nearby[j].dist })

	if len(nearby) > need {
		nearby = nearby[:need]
	}
	for _, s := range nearby {
		s.player.CheckedIn = true
		if err := c.st.UpdatePlayer(ctx, s.player); err != nil {
			return false, err
		}
		checkedIn++
		c.hub.Broadcast(gameID, "checkin:update", realtime.Message{
			"checkedInCount": checkedIn,
			"totalPlayers":   len(alive),
			"playerNumber":   s.player.PlayerNumber,
		})
	}

	if c.checkCheckinComplete(ctx, gameID) {
		return true, nil
	}
	return checkedIn >= seedTarget, nil
}

// runCheckinMonitor polls every 2s for check-in completion and expiry,
// matching the teacher's select-on-ticker-with-ctx.Done loop shape.
func (c *Coordinator) runCheckinMonitor(rt *gameRuntime) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-rt.ctx.Done():
			return
		case <-ticker.C:
			ctx := context.Background()
			g, err := c.st.GetGame(ctx, rt.gameID)
			if err != nil {
				c.logf("game %d checkin monitor: %v", rt.gameID, err)
				continue
			}
			if g.SubPhase != models.SubPhaseCheckin {
				return
			}
			if c.checkCheckinComplete(ctx, rt.gameID) {
				return
			}
			if time.Now().After(g.ExpiryDeadline) {
				c.triggerExpiry(rt.gameID)
				return
			}
		}
	}
}

// SubmitCheckin handles a client-driven check-in request
// (POST /api/games/{id}/checkin).
func (c *Coordinator) SubmitCheckin(ctx context.Context, gameID int64, address string, lat, lng float64, qrPayload, bluetoothToken string, bleNearby []string) (verifier.CheckinVerdict, error) {
	g, err := c.st.GetGame(ctx, gameID)
	if err != nil {
		return verifier.CheckinVerdict{}, err
	}
	submitter, err := c.st.GetPlayer(ctx, gameID, address)
	if err != nil && err != store.ErrNotFound {
		return verifier.CheckinVerdict{}, err
	}

	var scanned *models.Player
	if qrPayload != "" {
		if payload, derr := qrcode.Decode(qrPayload); derr == nil {
			if scannedAddr, ok := c.lookupPlayerByNumber(ctx, gameID, payload.PlayerNumber); ok {
				if sp, serr := c.st.GetPlayer(ctx, gameID, scannedAddr); serr == nil {
					scanned = sp
				}
			}
		}
	}

	meeting := meetingPointOrZoneCenter(g)
	dist := geo.HaversineMeters(meeting, geo.Point{Lat: lat, Lng: lng})

	verdict := verifier.VerifyCheckin(verifier.CheckinInput{
		GameID:               gameID,
		SubPhase:             g.SubPhase,
		ChainTimeNow:         time.Now(),
		ExpiryDeadline:       g.ExpiryDeadline,
		Submitter:            submitter,
		SubmitterDistance:    dist,
		MeetingRadiusMeters:  meetingRadiusMeters,
		QRPayload:            qrPayload,
		BluetoothToken:       bluetoothToken,
		BLENearbyTokens:      bleNearby,
		BLERequired:          c.cfg.BLERequired,
		LookupPlayerByNumber: func(n int64) (string, bool) { return c.lookupPlayerByNumber(ctx, gameID, n) },
		ScannedPlayer:        scanned,
	})
	if !verdict.Valid {
		return verdict, nil
	}

	submitter.CheckedIn = true
	if bluetoothToken != "" {
		submitter.BluetoothToken = ble.Canonicalize(bluetoothToken)
	}
	if err := c.st.UpdatePlayer(ctx, submitter); err != nil {
		return verifier.CheckinVerdict{}, err
	}

	alive, err := c.st.ListAlivePlayers(ctx, gameID)
	if err != nil {
		return verifier.CheckinVerdict{}, err
	}
	checkedIn := 0
	for _, p := range alive {
		if p.CheckedIn {
			checkedIn++
		}
	}
	c.hub.Broadcast(gameID, "checkin:update", realtime.Message{
		"checkedInCount": checkedIn,
		"totalPlayers":   len(alive),
		"playerNumber":   submitter.PlayerNumber,
	})

	c.checkCheckinComplete(ctx, gameID)
	return verdict, nil
}

// checkCheckinComplete transitions a game out of ACTIVE.checkin once
// requiredCheckedIn is reached (spec §4.6 "Completing check-in").
func (c *Coordinator) checkCheckinComplete(ctx context.Context, gameID int64) bool {
	g, err := c.st.GetGame(ctx, gameID)
	if err != nil || g.SubPhase != models.SubPhaseCheckin {
		return false
	}
	alive, err := c.st.ListAlivePlayers(ctx, gameID)
	if err != nil {
		return false
	}
	checkedIn := 0
	for _, p := range alive {
		if p.CheckedIn {
			checkedIn++
		}
	}
	if checkedIn < requiredCheckedIn(g.PrizeSplit) {
		return false
	}

	for _, p := range alive {
		if p.CheckedIn {
			continue
		}
		p.IsAlive = false
		now := time.Now()
		p.EliminatedAt = &now
		p.EliminatedBy = string(models.EliminationReasonNoCheckin)
		if err := c.st.UpdatePlayer(ctx, p); err != nil {
			c.logf("game %d: failed to eliminate unchecked player %d: %v", gameID, p.PlayerNumber, err)
			continue
		}
		c.hub.Broadcast(gameID, "player:eliminated", realtime.Message{
			"playerNumber":    p.PlayerNumber,
			"eliminatorNumber": 0,
			"reason":          models.EliminationReasonNoCheckin,
		})
		if c.metrics != nil {
			c.metrics.Eliminations.WithLabelValues(string(models.EliminationReasonNoCheckin)).Inc()
		}
	}

	// The loop above flipped IsAlive=false on every unchecked player in
	// place, so alive now only still counts the ones who made it in.
	remaining := aliveCount(alive)
	rt, ok := c.runtimeFor(gameID)
	if !ok {
		return true
	}

	if remaining <= 1 {
		c.endGame(ctx, rt)
		return true
	}

	now := time.Now()
	g.SubPhase = models.SubPhasePregame
	g.SubPhaseStartedAt = &now
	if err := c.st.UpdateGame(ctx, g); err != nil {
		c.logf("game %d: failed to persist pregame transition: %v", gameID, err)
		return true
	}

	checkedInFinal := checkedIn
	pregameEndsAt := now.Add(time.Duration(c.cfg.PregameDurationSeconds) * time.Second)
	c.hub.Broadcast(gameID, "game:pregame_started", realtime.Message{
		"pregameDurationSeconds": c.cfg.PregameDurationSeconds,
		"pregameEndsAt":          pregameEndsAt,
		"checkedInCount":         checkedInFinal,
		"playerCount":            g.PlayerCount,
	})

	go c.schedulePregameTimer(rt, time.Duration(c.cfg.PregameDurationSeconds)*time.Second)
	return true
}

func (c *Coordinator) schedulePregameTimer(rt *gameRuntime, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-rt.ctx.Done():
		return
	case <-timer.C:
		c.enterGame(context.Background(), rt)
	}
}

func (c *Coordinator) lookupPlayerByNumber(ctx context.Context, gameID int64, playerNumber int64) (string, bool) {
	p, err := c.st.GetPlayerByNumber(ctx, gameID, int(playerNumber))
	if err != nil {
		return "", false
	}
	return p.WalletAddress, true
}

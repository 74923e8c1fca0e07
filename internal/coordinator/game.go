package coordinator

import (
	"context"
	"sort"
	"time"

	"github.com/chain-assassin/coordinator/internal/geo"
	"github.com/chain-assassin/coordinator/internal/leaderboard"
	"github.com/chain-assassin/coordinator/internal/models"
	"github.com/chain-assassin/coordinator/internal/qrcode"
	"github.com/chain-assassin/coordinator/internal/realtime"
	"github.com/chain-assassin/coordinator/internal/settlement"
	"github.com/chain-assassin/coordinator/internal/store"
	"github.com/chain-assassin/coordinator/internal/targetchain"
	"github.com/chain-assassin/coordinator/internal/verifier"
	"github.com/chain-assassin/coordinator/internal/zonetracker"
)

// enterGame runs the pregame → game transition (spec §4.6): builds the
// target chain and zone tracker, seeds heartbeats, and starts the 1 Hz tick.
func (c *Coordinator) enterGame(ctx context.Context, rt *gameRuntime) {
	gameID := rt.gameID
	g, err := c.st.GetGame(ctx, gameID)
	if err != nil {
		c.logf("game %d: enterGame: %v", gameID, err)
		return
	}
	if g.SubPhase != models.SubPhasePregame {
		return
	}

	alive, err := c.st.ListAlivePlayers(ctx, gameID)
	if err != nil {
		c.logf("game %d: enterGame list alive: %v", gameID, err)
		return
	}
	if len(alive) <= 1 {
		c.endGame(ctx, rt)
		return
	}

	addrs := make([]string, len(alive))
	byAddr := make(map[string]*models.Player, len(alive))
	for i, p := range alive {
		addrs[i] = p.WalletAddress
		byAddr[p.WalletAddress] = p
	}
	if err := c.chain.Initialize(ctx, gameID, addrs); err != nil {
		c.logf("game %d: chain init: %v", gameID, err)
		return
	}

	shrinks, err := c.st.GetZoneShrinks(ctx, gameID)
	if err != nil {
		c.logf("game %d: get shrinks: %v", gameID, err)
		return
	}
	now := time.Now()
	zone := zonetracker.New(toGeoPoint(g.ZoneCenter), shrinks, now, c.cfg.ZoneGraceSeconds)
	rt.mu.Lock()
	rt.zone = zone
	rt.mu.Unlock()

	for _, p := range alive {
		p.LastHeartbeatAt = &now
		if err := c.st.UpdatePlayer(ctx, p); err != nil {
			c.logf("game %d: seed heartbeat for player %d: %v", gameID, p.PlayerNumber, err)
		}
	}

	g.SubPhase = models.SubPhaseGame
	g.SubPhaseStartedAt = &now
	if err := c.st.UpdateGame(ctx, g); err != nil {
		c.logf("game %d: persist game transition: %v", gameID, err)
		return
	}

	go c.runGameTick(rt)

	heartbeatDeadline := now.Add(time.Duration(c.cfg.HeartbeatIntervalSeconds) * time.Second)
	zoneState := zone.State(now)
	for _, hunter := range alive {
		target, _ := c.chain.TargetOf(gameID, hunter.WalletAddress)
		huntedBy, _ := c.chain.HunterOf(gameID, hunter.WalletAddress)
		targetPlayer := byAddr[target]
		hunterOfPlayer := byAddr[huntedBy]
		if targetPlayer == nil || hunterOfPlayer == nil {
			continue
		}
		c.hub.SendToPlayer(gameID, hunter.WalletAddress, "game:started", realtime.Message{
			"target":                   realtime.Message{"playerNumber": targetPlayer.PlayerNumber},
			"hunterPlayerNumber":       hunterOfPlayer.PlayerNumber,
			"heartbeatDeadline":        heartbeatDeadline,
			"heartbeatIntervalSeconds": c.cfg.HeartbeatIntervalSeconds,
			"zone":                     zoneMessage(zoneState),
		})
	}
	c.hub.Broadcast(gameID, "game:started_broadcast", realtime.Message{"playerCount": g.PlayerCount})
}

func zoneMessage(z zonetracker.ZoneState) realtime.Message {
	m := realtime.Message{
		"centerLat":           z.Center.Lat,
		"centerLng":           z.Center.Lng,
		"currentRadiusMeters": z.CurrentRadius,
	}
	if z.NextShrinkAt != nil {
		m["nextShrinkAt"] = *z.NextShrinkAt
	}
	if z.NextRadiusMeters != nil {
		m["nextRadiusMeters"] = *z.NextRadiusMeters
	}
	return m
}

// runGameTick drives the spec §4.6 1 Hz tick for a game in ACTIVE.game.
func (c *Coordinator) runGameTick(rt *gameRuntime) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	spectatorTick := 0
	pruneTick := 0
	for {
		select {
		case <-rt.ctx.Done():
			return
		case <-ticker.C:
			c.gameTick(rt)
			spectatorTick++
			pruneTick++
			if spectatorTick >= 2 {
				spectatorTick = 0
				c.broadcastSpectatorPositions(rt.gameID)
			}
			if pruneTick >= 60 {
				pruneTick = 0
				_ = c.st.PruneOldPings(context.Background(), rt.gameID, 300*time.Second)
			}
		}
	}
}

func (c *Coordinator) gameTick(rt *gameRuntime) {
	ctx := context.Background()
	gameID := rt.gameID
	now := time.Now()

	rt.mu.Lock()
	zone := rt.zone
	rt.mu.Unlock()
	if zone == nil {
		return
	}

	if state := zone.Tick(now); state != nil {
		c.hub.Broadcast(gameID, "zone:shrink", zoneMessage(*state))
	}

	// Same-tick zone eliminations run in ascending playerNumber order.
	expired := zone.ExpiredPlayers(now)
	numbers := make(map[string]int, len(expired))
	for _, addr := range expired {
		if p, err := c.st.GetPlayer(ctx, gameID, addr); err == nil {
			numbers[addr] = p.PlayerNumber
		}
	}
	sort.SliceStable(expired, func(i, j int) bool { return numbers[expired[i]] < numbers[expired[j]] })
	for _, addr := range expired {
		c.eliminateNonKill(ctx, rt, addr, models.EliminationReasonZoneViolation)
	}

	alive, err := c.st.ListAlivePlayers(ctx, gameID)
	if err != nil {
		c.logf("game %d tick: list alive: %v", gameID, err)
		return
	}
	if len(alive) > c.cfg.HeartbeatDisableThreshold {
		deadline := time.Duration(c.cfg.HeartbeatIntervalSeconds) * time.Second
		for _, p := range alive {
			if p.LastHeartbeatAt != nil && now.Sub(*p.LastHeartbeatAt) > deadline {
				c.eliminateNonKill(ctx, rt, p.WalletAddress, models.EliminationReasonHeartbeat)
			}
		}
	}

	alive, err = c.st.ListAlivePlayers(ctx, gameID)
	if err == nil && len(alive) <= 1 {
		c.endGame(ctx, rt)
	}
}

// positionsSnapshot builds the per-player {playerNumber, lat, lng, isAlive,
// kills} array shared by the every-2-seconds spectator:positions broadcast and the
// one-shot spectate:init frame sent on connect (spec §4.7).
func (c *Coordinator) positionsSnapshot(ctx context.Context, gameID int64) ([]*models.Player, []realtime.Message, error) {
	alive, err := c.st.ListAlivePlayers(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	pings, err := c.st.ListLatestPings(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	pingByAddr := make(map[string]*models.LocationPing, len(pings))
	for _, p := range pings {
		pingByAddr[p.Address] = p
	}

	players := make([]realtime.Message, 0, len(alive))
	for _, p := range alive {
		ping := pingByAddr[p.WalletAddress]
		var lat, lng float64
		if ping != nil {
			lat, lng = ping.Lat, ping.Lng
		}
		players = append(players, realtime.Message{
			"playerNumber": p.PlayerNumber,
			"lat":          lat,
			"lng":          lng,
			"isAlive":      p.IsAlive,
			"kills":        p.Kills,
		})
	}
	return alive, players, nil
}

func (c *Coordinator) broadcastSpectatorPositions(gameID int64) {
	ctx := context.Background()
	alive, players, err := c.positionsSnapshot(ctx, gameID)
	if err != nil {
		return
	}

	chainMap := c.chain.ChainMap(gameID)
	byAddr := make(map[string]*models.Player, len(alive))
	for _, p := range alive {
		byAddr[p.WalletAddress] = p
	}
	huntLinks := make([]realtime.Message, 0, len(chainMap))
	for hunter, target := range chainMap {
		hp, tp := byAddr[hunter], byAddr[target]
		if hp == nil || tp == nil {
			continue
		}
		huntLinks = append(huntLinks, realtime.Message{"hunter": hp.PlayerNumber, "target": tp.PlayerNumber})
	}

	rt, ok := c.runtimeFor(gameID)
	var zoneMsg realtime.Message
	if ok {
		rt.mu.Lock()
		z := rt.zone
		rt.mu.Unlock()
		if z != nil {
			zoneMsg = zoneMessage(z.State(time.Now()))
		}
	}

	c.hub.Broadcast(gameID, "spectator:positions", realtime.Message{
		"players":    players,
		"zone":       zoneMsg,
		"aliveCount": len(alive),
		"huntLinks":  huntLinks,
	})
}

// SubmitLocation handles POST /api/games/{id}/location.
func (c *Coordinator) SubmitLocation(ctx context.Context, gameID int64, address string, lat, lng float64, ts time.Time) error {
	if _, err := c.st.GetPlayer(ctx, gameID, address); err != nil {
		return err
	}
	inZone := true
	rt, ok := c.runtimeFor(gameID)
	if ok {
		rt.mu.Lock()
		zone := rt.zone
		rt.mu.Unlock()
		if zone != nil {
			result := zone.ProcessLocation(address, geo.Point{Lat: lat, Lng: lng}, ts)
			inZone = result.InZone
			if !result.InZone {
				c.hub.SendToPlayer(gameID, address, "zone:warning", realtime.Message{
					"secondsRemaining": result.SecondsRemaining,
					"inZone":           false,
				})
			}
		}
	}
	ping := &models.LocationPing{GameID: gameID, Address: address, Lat: lat, Lng: lng, Timestamp: ts, InZone: inZone}
	return c.st.UpsertLocationPing(ctx, ping)
}

// SubmitKill handles POST /api/games/{id}/kill (spec §4.3 verification +
// §4.6 elimination flow).
func (c *Coordinator) SubmitKill(ctx context.Context, gameID int64, hunterAddr string, qrPayload string, hunterLat, hunterLng float64, bleNearby []string) (verifier.KillVerdict, error) {
	g, err := c.st.GetGame(ctx, gameID)
	if err != nil {
		return verifier.KillVerdict{}, err
	}
	if g.SubPhase != models.SubPhaseGame {
		return verifier.KillVerdict{ErrorKind: verifier.ErrGameNotActive}, nil
	}

	hunter, err := c.st.GetPlayer(ctx, gameID, hunterAddr)
	if err != nil && err != store.ErrNotFound {
		return verifier.KillVerdict{}, err
	}
	currentTarget, _ := c.chain.TargetOf(gameID, hunterAddr)

	payload, _ := qrcode.Decode(qrPayload)
	var target *models.Player
	if targetAddr, ok := c.lookupPlayerByNumber(ctx, gameID, payload.PlayerNumber); ok {
		target, _ = c.st.GetPlayer(ctx, gameID, targetAddr)
	}
	var targetPing *models.LocationPing
	if target != nil {
		targetPing, _ = c.st.GetLatestPing(ctx, gameID, target.WalletAddress)
	}

	verdict := verifier.VerifyKill(verifier.KillInput{
		GameID:               gameID,
		HunterAddress:        hunterAddr,
		QRPayload:            qrPayload,
		HunterLat:            hunterLat,
		HunterLng:            hunterLng,
		BLENearbyTokens:      bleNearby,
		LookupPlayerByNumber: func(n int64) (string, bool) { return c.lookupPlayerByNumber(ctx, gameID, n) },
		Hunter:               hunter,
		Target:               target,
		HunterCurrentTarget:  currentTarget,
		TargetLatestPing:     targetPing,
		KillProximityMeters:  c.cfg.KillProximityMeters,
		StrictLocationProof:  false,
		BLERequired:          c.cfg.BLERequired,
	})
	if !verdict.Valid {
		return verdict, nil
	}

	rt, ok := c.runtimeFor(gameID)
	if !ok {
		return verdict, nil
	}
	c.processKill(ctx, rt, hunterAddr, verdict.TargetAddress)
	return verdict, nil
}

// processKill runs the full elimination flow for a confirmed kill.
func (c *Coordinator) processKill(ctx context.Context, rt *gameRuntime, hunterAddr, targetAddr string) {
	gameID := rt.gameID
	reassign, err := c.chain.ProcessKill(ctx, gameID, hunterAddr, targetAddr)
	if err != nil {
		c.logf("game %d: processKill chain update (%s -> %s): %v", gameID, hunterAddr, targetAddr, err)
		return
	}

	hunter, err := c.st.GetPlayer(ctx, gameID, hunterAddr)
	if err != nil {
		c.logf("game %d: processKill get hunter: %v", gameID, err)
		return
	}
	target, err := c.st.GetPlayer(ctx, gameID, targetAddr)
	if err != nil {
		c.logf("game %d: processKill get target: %v", gameID, err)
		return
	}

	now := time.Now()
	hunter.Kills++
	target.IsAlive = false
	target.EliminatedAt = &now
	target.EliminatedBy = hunterAddr
	if err := c.st.UpdatePlayer(ctx, hunter); err != nil {
		c.logf("game %d: persist hunter: %v", gameID, err)
	}
	if err := c.st.UpdatePlayer(ctx, target); err != nil {
		c.logf("game %d: persist target: %v", gameID, err)
	}

	kill := &models.KillRecord{GameID: gameID, Hunter: hunterAddr, Target: targetAddr, Timestamp: now}
	if err := c.st.InsertKill(ctx, kill); err != nil {
		c.logf("game %d: insert kill record: %v", gameID, err)
	}

	rt.mu.Lock()
	if rt.zone != nil {
		rt.zone.ClearPlayer(targetAddr)
	}
	rt.mu.Unlock()

	if c.adapter != nil {
		_, _ = c.adapter.Submit(ctx, gameID, models.ActionRecordKill, func(ctx context.Context) (settlement.TxResult, error) {
			return c.client.RecordKill(ctx, gameID, hunter.PlayerNumber, target.PlayerNumber)
		})
	}
	if c.metrics != nil {
		c.metrics.Kills.Inc()
	}

	c.hub.Broadcast(gameID, "kill:recorded", realtime.Message{
		"hunterNumber": hunter.PlayerNumber,
		"targetNumber": target.PlayerNumber,
		"hunterKills":  hunter.Kills,
	})
	c.hub.Broadcast(gameID, "player:eliminated", realtime.Message{
		"playerNumber":     target.PlayerNumber,
		"eliminatorNumber": hunter.PlayerNumber,
		"reason":           "kill",
	})

	c.notifyReassignment(ctx, gameID, reassign)
	c.broadcastLeaderboard(ctx, gameID)
	c.checkGameEnd(ctx, rt)
}

// eliminateNonKill handles zone_violation / heartbeat_timeout eliminations,
// which share the kill flow's ordering but have no hunter-side kill count
// and settle via operator.eliminatePlayer instead of operator.recordKill.
func (c *Coordinator) eliminateNonKill(ctx context.Context, rt *gameRuntime, addr string, reason models.EliminationReason) {
	gameID := rt.gameID
	p, err := c.st.GetPlayer(ctx, gameID, addr)
	if err != nil || !p.IsAlive {
		return
	}

	reassign, err := c.chain.RemoveFromChain(ctx, gameID, addr)
	if err != nil {
		c.logf("game %d: RemoveFromChain(%s): %v", gameID, addr, err)
		return
	}

	now := time.Now()
	p.IsAlive = false
	p.EliminatedAt = &now
	p.EliminatedBy = string(reason)
	if err := c.st.UpdatePlayer(ctx, p); err != nil {
		c.logf("game %d: persist eliminated player: %v", gameID, err)
	}

	rt.mu.Lock()
	if rt.zone != nil {
		rt.zone.ClearPlayer(addr)
	}
	rt.mu.Unlock()

	if c.adapter != nil {
		_, _ = c.adapter.Submit(ctx, gameID, models.ActionEliminatePlayer, func(ctx context.Context) (settlement.TxResult, error) {
			return c.client.EliminatePlayer(ctx, gameID, p.PlayerNumber, string(reason))
		})
	}
	if c.metrics != nil {
		c.metrics.Eliminations.WithLabelValues(string(reason)).Inc()
	}

	c.hub.Broadcast(gameID, "player:eliminated", realtime.Message{
		"playerNumber":     p.PlayerNumber,
		"eliminatorNumber": 0,
		"reason":           reason,
	})

	c.notifyReassignment(ctx, gameID, reassign)
	c.broadcastLeaderboard(ctx, gameID)
	c.checkGameEnd(ctx, rt)
}

func (c *Coordinator) notifyReassignment(ctx context.Context, gameID int64, reassign *targetchain.Reassignment) {
	if reassign == nil {
		return
	}
	hunterP, err := c.st.GetPlayer(ctx, gameID, reassign.Hunter)
	if err != nil {
		return
	}
	targetP, err := c.st.GetPlayer(ctx, gameID, reassign.NewTarget)
	if err != nil {
		return
	}
	c.hub.SendToPlayer(gameID, reassign.Hunter, "target:assigned", realtime.Message{
		"target":             realtime.Message{"playerNumber": targetP.PlayerNumber},
		"hunterPlayerNumber": hunterOfOrZero(ctx, c.st, c.chain, gameID, reassign.Hunter),
	})
	c.hub.SendToPlayer(gameID, reassign.NewTarget, "hunter:updated", realtime.Message{
		"hunterPlayerNumber": hunterP.PlayerNumber,
	})
}

func hunterOfOrZero(ctx context.Context, st store.Store, chain *targetchain.Manager, gameID int64, address string) int {
	huntedBy, ok := chain.HunterOf(gameID, address)
	if !ok {
		return 0
	}
	p, err := st.GetPlayer(ctx, gameID, huntedBy)
	if err != nil {
		return 0
	}
	return p.PlayerNumber
}

func (c *Coordinator) broadcastLeaderboard(ctx context.Context, gameID int64) {
	players, err := c.st.ListPlayers(ctx, gameID)
	if err != nil {
		return
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
	c.hub.Broadcast(gameID, "leaderboard:update", realtime.Message{"entries": out})
}

func (c *Coordinator) checkGameEnd(ctx context.Context, rt *gameRuntime) {
	alive, err := c.st.ListAlivePlayers(ctx, rt.gameID)
	if err != nil {
		return
	}
	if len(alive) <= 1 {
		c.endGame(ctx, rt)
	}
}

// SubmitHeartbeat handles POST /api/games/{id}/heartbeat.
func (c *Coordinator) SubmitHeartbeat(ctx context.Context, gameID int64, scannerAddr string, qrPayload string, lat, lng float64, bleNearby []string) (verifier.HeartbeatVerdict, error) {
	g, err := c.st.GetGame(ctx, gameID)
	if err != nil {
		return verifier.HeartbeatVerdict{}, err
	}
	scanner, err := c.st.GetPlayer(ctx, gameID, scannerAddr)
	if err != nil && err != store.ErrNotFound {
		return verifier.HeartbeatVerdict{}, err
	}

	payload, _ := qrcode.Decode(qrPayload)
	var scanned *models.Player
	if scannedAddr, ok := c.lookupPlayerByNumber(ctx, gameID, payload.PlayerNumber); ok {
		scanned, _ = c.st.GetPlayer(ctx, gameID, scannedAddr)
	}
	var latestPing *models.LocationPing
	if scanned != nil {
		latestPing, _ = c.st.GetLatestPing(ctx, gameID, scanned.WalletAddress)
	}

	alive, err := c.st.ListAlivePlayers(ctx, gameID)
	if err != nil {
		return verifier.HeartbeatVerdict{}, err
	}
	scannerTarget, _ := c.chain.TargetOf(gameID, scannerAddr)
	scannerHunter, _ := c.chain.HunterOf(gameID, scannerAddr)

	verdict := verifier.VerifyHeartbeat(verifier.HeartbeatInput{
		GameID:                    gameID,
		ScannerAddress:            scannerAddr,
		QRPayload:                 qrPayload,
		Lat:                       lat,
		Lng:                       lng,
		BLENearbyTokens:           bleNearby,
		SubPhase:                  g.SubPhase,
		AliveCount:                len(alive),
		HeartbeatDisableThreshold: c.cfg.HeartbeatDisableThreshold,
		LookupPlayerByNumber:      func(n int64) (string, bool) { return c.lookupPlayerByNumber(ctx, gameID, n) },
		Scanner:                   scanner,
		Scanned:                   scanned,
		ScannerCurrentTarget:      scannerTarget,
		ScannerCurrentHunter:      scannerHunter,
		LatestPing:                latestPing,
		HeartbeatProximityMeters:  c.cfg.HeartbeatProximityMeters,
		BLERequired:               c.cfg.BLERequired,
	})
	if !verdict.Valid {
		return verdict, nil
	}

	now := time.Now()
	scanned.LastHeartbeatAt = &now
	if err := c.st.UpdatePlayer(ctx, scanned); err != nil {
		return verifier.HeartbeatVerdict{}, err
	}
	if err := c.st.InsertHeartbeatScan(ctx, &models.HeartbeatScan{GameID: gameID, Scanner: scannerAddr, Scanned: scanned.WalletAddress, Timestamp: now}); err != nil {
		c.logf("game %d: insert heartbeat scan: %v", gameID, err)
	}

	refreshedUntil := now.Add(time.Duration(c.cfg.HeartbeatIntervalSeconds) * time.Second)
	c.hub.SendToPlayer(gameID, scanned.WalletAddress, "heartbeat:refreshed", realtime.Message{"refreshedUntil": refreshedUntil})
	c.hub.SendToPlayer(gameID, scannerAddr, "heartbeat:scan_success", realtime.Message{"scannedPlayerNumber": scanned.PlayerNumber})

	return verdict, nil
}

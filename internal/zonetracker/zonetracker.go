// Package zonetracker implements the per-game evolving geo-zone (spec
// §4.2): a shrinking disk with out-of-zone grace timers. Same mutex-guarded
// per-entity struct shape as the teacher's internal/heuristics watchlist
// and case managers, built on internal/geo for the distance math.
package zonetracker

import (
	"sort"
	"sync"
	"time"

	"github.com/chain-assassin/coordinator/internal/geo"
	"github.com/chain-assassin/coordinator/internal/models"
)

// ZoneState is the zone's public shape at a point in time, as broadcast in
// zone:shrink / spectate:init frames.
type ZoneState struct {
	Center            geo.Point
	CurrentRadius     float64
	NextShrinkAt      *time.Time
	NextRadiusMeters  *float64
}

// LocationResult is the outcome of processing one location ping against
// the zone.
type LocationResult struct {
	InZone           bool
	SecondsRemaining int // only meaningful when !InZone
}

type outOfZoneRecord struct {
	exitedAt time.Time
}

// Tracker owns one game's shrink schedule and out-of-zone bookkeeping.
type Tracker struct {
	mu sync.Mutex

	center        geo.Point
	shrinks       []models.ZoneShrink // sorted ascending by AtSecond
	gameStartedAt time.Time
	graceSeconds  int

	shrinkIndex int // index of the currently-effective shrink
	outOfZone   map[string]outOfZoneRecord
}

// New constructs a Tracker for a game whose `game` sub-phase began at
// gameStartedAt, with the given center, shrink schedule and grace period.
// shrinks must be sorted ascending by AtSecond; shrinks[0] is the initial
// radius (spec §3).
func New(center geo.Point, shrinks []models.ZoneShrink, gameStartedAt time.Time, graceSeconds int) *Tracker {
	sorted := append([]models.ZoneShrink(nil), shrinks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].AtSecond < sorted[j].AtSecond })
	return &Tracker{
		center:        center,
		shrinks:       sorted,
		gameStartedAt: gameStartedAt,
		graceSeconds:  graceSeconds,
		shrinkIndex:   0,
		outOfZone:     make(map[string]outOfZoneRecord),
	}
}

// CurrentRadius returns the radius in effect right now, given the Tracker's
// current shrink index.
func (t *Tracker) CurrentRadius() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentRadiusLocked()
}

func (t *Tracker) currentRadiusLocked() float64 {
	if len(t.shrinks) == 0 {
		return 0
	}
	return t.shrinks[t.shrinkIndex].RadiusMeters
}

// Tick advances the shrink index if a new shrink has become effective as of
// now, returning the new ZoneState, or nil if nothing changed (spec §4.2,
// §4.6 step 1).
func (t *Tracker) Tick(now time.Time) *ZoneState {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := int(now.Sub(t.gameStartedAt).Seconds())
	advanced := false
	for t.shrinkIndex+1 < len(t.shrinks) && t.shrinks[t.shrinkIndex+1].AtSecond <= elapsed {
		t.shrinkIndex++
		advanced = true
	}
	if !advanced {
		return nil
	}
	return t.stateLocked(now)
}

// State returns the zone's current state without advancing it.
func (t *Tracker) State(now time.Time) ZoneState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked(now)
}

func (t *Tracker) stateLocked(now time.Time) ZoneState {
	state := ZoneState{Center: t.center, CurrentRadius: t.currentRadiusLocked()}
	if t.shrinkIndex+1 < len(t.shrinks) {
		next := t.shrinks[t.shrinkIndex+1]
		at := t.gameStartedAt.Add(time.Duration(next.AtSecond) * time.Second)
		radius := next.RadiusMeters
		state.NextShrinkAt = &at
		state.NextRadiusMeters = &radius
	}
	return state
}

// ProcessLocation classifies a ping against the current zone (spec §4.2).
func (t *Tracker) ProcessLocation(address string, p geo.Point, now time.Time) LocationResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	if geo.InsideRadius(t.center, t.currentRadiusLocked(), p) {
		delete(t.outOfZone, address)
		return LocationResult{InZone: true}
	}

	rec, tracked := t.outOfZone[address]
	if !tracked {
		t.outOfZone[address] = outOfZoneRecord{exitedAt: now}
		return LocationResult{InZone: false, SecondsRemaining: t.graceSeconds}
	}

	elapsed := int(now.Sub(rec.exitedAt).Seconds())
	remaining := t.graceSeconds - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return LocationResult{InZone: false, SecondsRemaining: remaining}
}

// ExpiredPlayers returns the addresses whose out-of-zone grace has fully
// elapsed as of now, sorted for deterministic processing order by the
// caller (spec §9: ties broken by ascending playerNumber, which the
// coordinator applies after looking up each address's number).
func (t *Tracker) ExpiredPlayers(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []string
	for addr, rec := range t.outOfZone {
		if int(now.Sub(rec.exitedAt).Seconds()) >= t.graceSeconds {
			expired = append(expired, addr)
		}
	}
	sort.Strings(expired)
	return expired
}

// ClearPlayer removes out-of-zone state for address (on death or game end).
func (t *Tracker) ClearPlayer(address string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.outOfZone, address)
}

// SeedFromPing re-establishes out-of-zone tracking for a ping recovered
// from the store (spec §8 scenario 5, crash recovery).
func (t *Tracker) SeedFromPing(address string, p geo.Point, pingTime, now time.Time) {
	result := t.ProcessLocation(address, p, pingTime)
	if result.InZone {
		return
	}
	t.mu.Lock()
	t.outOfZone[address] = outOfZoneRecord{exitedAt: pingTime}
	t.mu.Unlock()
}

package zonetracker

import (
	"testing"
	"time"

	"github.com/chain-assassin/coordinator/internal/geo"
	"github.com/chain-assassin/coordinator/internal/models"
)

func testShrinks() []models.ZoneShrink {
	return []models.ZoneShrink{
		{AtSecond: 0, RadiusMeters: 2000},
		{AtSecond: 600, RadiusMeters: 1000},
		{AtSecond: 1200, RadiusMeters: 300},
	}
}

func TestTickAdvancesOnSchedule(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := New(geo.Point{Lat: 0, Lng: 0}, testShrinks(), start, 60)

	if got := tr.CurrentRadius(); got != 2000 {
		t.Fatalf("initial radius = %v, want 2000", got)
	}
	if state := tr.Tick(start.Add(599 * time.Second)); state != nil {
		t.Fatalf("Tick before shrink = %+v, want nil", state)
	}
	state := tr.Tick(start.Add(600 * time.Second))
	if state == nil || state.CurrentRadius != 1000 {
		t.Fatalf("Tick at shrink boundary = %+v, want radius 1000", state)
	}
}

func TestProcessLocationGraceCountdown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := New(geo.Point{Lat: 0, Lng: 0}, testShrinks(), start, 60)
	outside := geo.Point{Lat: 1, Lng: 1} // far outside 2000m radius

	r0 := tr.ProcessLocation("p1", outside, start)
	if r0.InZone || r0.SecondsRemaining != 60 {
		t.Fatalf("first exit = %+v, want InZone=false SecondsRemaining=60", r0)
	}
	r1 := tr.ProcessLocation("p1", outside, start.Add(30*time.Second))
	if r1.InZone || r1.SecondsRemaining != 30 {
		t.Fatalf("mid-grace = %+v, want SecondsRemaining=30", r1)
	}
	r2 := tr.ProcessLocation("p1", outside, start.Add(59*time.Second))
	if r2.InZone || r2.SecondsRemaining != 1 {
		t.Fatalf("near-expiry = %+v, want SecondsRemaining=1", r2)
	}
}

func TestProcessLocationClearsOnReentry(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := New(geo.Point{Lat: 0, Lng: 0}, testShrinks(), start, 60)
	outside := geo.Point{Lat: 1, Lng: 1}
	inside := geo.Point{Lat: 0, Lng: 0}

	tr.ProcessLocation("p1", outside, start)
	r := tr.ProcessLocation("p1", inside, start.Add(10*time.Second))
	if !r.InZone {
		t.Fatalf("re-entry result = %+v, want InZone=true", r)
	}
	if len(tr.ExpiredPlayers(start.Add(100*time.Second))) != 0 {
		t.Fatalf("expected no expired players after re-entry")
	}
}

func TestExpiredPlayersAtGraceLimit(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := New(geo.Point{Lat: 0, Lng: 0}, testShrinks(), start, 60)
	outside := geo.Point{Lat: 1, Lng: 1}

	tr.ProcessLocation("p2", outside, start)
	if got := tr.ExpiredPlayers(start.Add(59 * time.Second)); len(got) != 0 {
		t.Fatalf("ExpiredPlayers before grace = %v, want empty", got)
	}
	got := tr.ExpiredPlayers(start.Add(60 * time.Second))
	if len(got) != 1 || got[0] != "p2" {
		t.Fatalf("ExpiredPlayers at grace = %v, want [p2]", got)
	}
}

func TestClearPlayer(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := New(geo.Point{Lat: 0, Lng: 0}, testShrinks(), start, 60)
	outside := geo.Point{Lat: 1, Lng: 1}

	tr.ProcessLocation("p3", outside, start)
	tr.ClearPlayer("p3")
	if got := tr.ExpiredPlayers(start.Add(100 * time.Second)); len(got) != 0 {
		t.Fatalf("ExpiredPlayers after ClearPlayer = %v, want empty", got)
	}
}

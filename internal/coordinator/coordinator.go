// Package coordinator owns each game's lifecycle state machine (spec
// §4.6): phase/sub-phase transitions, the check-in auto-seed loop, the 1 Hz
// game tick, the shared elimination flow, and the ending/cancellation/
// expiry guards. Grounded on the teacher's internal/mempool.Poller
// (select-over-tickers-with-ctx.Done loop) and internal/scanner.BlockScanner
// (atomic in-flight/progress flags), generalized from one global poller to
// one goroutine set per game.
package coordinator

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/chain-assassin/coordinator/internal/chainadapter"
	"github.com/chain-assassin/coordinator/internal/config"
	"github.com/chain-assassin/coordinator/internal/geo"
	"github.com/chain-assassin/coordinator/internal/leaderboard"
	"github.com/chain-assassin/coordinator/internal/metrics"
	"github.com/chain-assassin/coordinator/internal/models"
	"github.com/chain-assassin/coordinator/internal/realtime"
	"github.com/chain-assassin/coordinator/internal/settlement"
	"github.com/chain-assassin/coordinator/internal/store"
	"github.com/chain-assassin/coordinator/internal/targetchain"
	"github.com/chain-assassin/coordinator/internal/zonetracker"
)

// gameRuntime is the in-memory state that exists only while a game is in
// phase ACTIVE (spec §3 Lifecycle): its zone tracker and its cancellation
// signal. The single-writer guard flags live in Coordinator.triggers.
type gameRuntime struct {
	gameID int64

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	zone *zonetracker.Tracker
}

// Coordinator is the constructor-injected runtime struct spec §9 calls for
// in place of a module-level singleton: every handle it needs (store,
// chain map, fan-out, operator client) is passed in once at construction.
type Coordinator struct {
	st      store.Store
	chain   *targetchain.Manager
	hub     *realtime.Hub
	adapter *chainadapter.Adapter
	client  *settlement.Client
	cfg     config.Config
	metrics *metrics.Registry

	mu    sync.RWMutex
	games map[int64]*gameRuntime

	// Duplicate-submission guards that must survive outside ACTIVE phase
	// (registration-time cancellation can fire before any gameRuntime
	// exists), keyed independently of the live game map (spec §5
	// "Shared-resource policy").
	triggersMu sync.Mutex
	triggers   map[int64]*triggerFlags
}

type triggerFlags struct {
	cancellationInFlight atomic.Bool
	expiryInFlight       atomic.Bool
	endingInFlight       atomic.Bool
}

func (c *Coordinator) triggersFor(gameID int64) *triggerFlags {
	c.triggersMu.Lock()
	defer c.triggersMu.Unlock()
	t, ok := c.triggers[gameID]
	if !ok {
		t = &triggerFlags{}
		c.triggers[gameID] = t
	}
	return t
}

// New constructs a Coordinator. The adapter is expected to have been
// constructed with this Coordinator as its chainadapter.Handlers
// implementation (see chain_handlers.go).
func New(st store.Store, chain *targetchain.Manager, hub *realtime.Hub, adapter *chainadapter.Adapter, client *settlement.Client, cfg config.Config, reg *metrics.Registry) *Coordinator {
	return &Coordinator{
		st:      st,
		chain:   chain,
		hub:     hub,
		adapter: adapter,
		client:  client,
		cfg:     cfg,
		metrics: reg,
		games:   make(map[int64]*gameRuntime),
		triggers: make(map[int64]*triggerFlags),
	}
}

// SetAdapter wires the chain adapter after construction, breaking the
// circular dependency between chainadapter.New (which needs a
// chainadapter.Handlers) and Coordinator (which needs an *Adapter to
// submit operator transactions).
func (c *Coordinator) SetAdapter(adapter *chainadapter.Adapter) {
	c.adapter = adapter
}

func (c *Coordinator) runtimeFor(gameID int64) (*gameRuntime, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rt, ok := c.games[gameID]
	return rt, ok
}

func (c *Coordinator) newRuntime(gameID int64) *gameRuntime {
	ctx, cancel := context.WithCancel(context.Background())
	rt := &gameRuntime{gameID: gameID, ctx: ctx, cancel: cancel}
	c.mu.Lock()
	c.games[gameID] = rt
	c.mu.Unlock()
	return rt
}

// cancelTimers stops every goroutine owned by gameID's runtime and drops it
// from the live map (spec §5 "cancelTimers(gameId) and cleanupAll()").
func (c *Coordinator) cancelTimers(gameID int64) {
	c.mu.Lock()
	rt, ok := c.games[gameID]
	delete(c.games, gameID)
	c.mu.Unlock()
	if ok {
		rt.cancel()
	}
	c.chain.Discard(gameID)

	c.triggersMu.Lock()
	delete(c.triggers, gameID)
	c.triggersMu.Unlock()
}

// requiredCheckedIn implements spec §4.6's
// "requiredCheckedIn = 1 + (bps2nd>0) + (bps3rd>0)".
func requiredCheckedIn(split models.PrizeSplit) int {
	n := 1
	if split.Bps2nd > 0 {
		n++
	}
	if split.Bps3rd > 0 {
		n++
	}
	return n
}

func toGeoPoint(fp models.FixedPoint) geo.Point {
	return geo.Point{Lat: geo.FixedToDegrees(fp.Lat), Lng: geo.FixedToDegrees(fp.Lng)}
}

func meetingPointOrZoneCenter(g *models.Game) geo.Point {
	if g.MeetingPoint != nil {
		return toGeoPoint(*g.MeetingPoint)
	}
	return toGeoPoint(g.ZoneCenter)
}

func (c *Coordinator) logf(format string, args ...interface{}) {
	log.Printf("[Coordinator] "+format, args...)
}

// aliveCount is a small helper shared by several flows.
func aliveCount(players []*models.Player) int {
	n := 0
	for _, p := range players {
		if p.IsAlive {
			n++
		}
	}
	return n
}

func leaderboardWinners(g *models.Game) leaderboard.Winners {
	return leaderboard.Winners{Winner1: g.Winner1, Winner2: g.Winner2, Winner3: g.Winner3, TopKiller: g.TopKiller}
}

func resolveWinnerNumbers(ctx context.Context, st store.Store, gameID int64, w leaderboard.Winners) (w1, w2, w3, topKiller int) {
	resolve := func(addr string) int {
		if addr == "" {
			return 0
		}
		p, err := st.GetPlayer(ctx, gameID, addr)
		if err != nil {
			return 0
		}
		return p.PlayerNumber
	}
	return resolve(w.Winner1), resolve(w.Winner2), resolve(w.Winner3), resolve(w.TopKiller)
}

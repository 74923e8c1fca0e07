// Package targetchain maintains the circular hunter→target map that drives
// the hunt (spec §4.1). Mutex-guarded per-game maps, the same shape as the
// teacher's internal/heuristics case managers, kept in sync with the store
// rather than owning persistence itself.
package targetchain

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/chain-assassin/coordinator/internal/store"
)

// ErrTargetMismatch is returned by ProcessKill when hunter's current
// assignment does not equal the claimed target.
var ErrTargetMismatch = fmt.Errorf("targetchain: target mismatch")

// ErrNoAssignment flags the "should never occur" case from spec §9: the
// coordinator asked to process a kill/removal for a hunter with no row.
var ErrNoAssignment = fmt.Errorf("targetchain: no assignment for hunter")

// Reassignment is the (reassignedHunter, newTarget) pair the coordinator
// must notify after a kill or non-kill elimination rewires the chain.
type Reassignment struct {
	Hunter    string
	NewTarget string
}

// game holds one game's live chain, two maps kept in sync as required by
// spec §9 ("cyclic data ... implement as two maps").
type game struct {
	mu        sync.Mutex
	targetOf  map[string]string // hunter -> target
	hunterOf  map[string]string // target -> hunter
}

// Manager owns the in-memory chain state for every ACTIVE game. Persistence
// goes through store.Store so state survives a coordinator restart.
type Manager struct {
	mu    sync.RWMutex
	games map[int64]*game
	st    store.Store
}

// New constructs a Manager backed by st.
func New(st store.Store) *Manager {
	return &Manager{games: make(map[int64]*game), st: st}
}

// Initialize builds a fresh circular chain over addrs, shuffled with
// crypto/rand (spec §4.1: "seeded from a cryptographically strong random
// source"), persists it, and keeps it in memory.
func (m *Manager) Initialize(ctx context.Context, gameID int64, addrs []string) error {
	shuffled := append([]string(nil), addrs...)
	if err := fisherYatesShuffle(shuffled); err != nil {
		return err
	}

	targetOf := make(map[string]string, len(shuffled))
	hunterOf := make(map[string]string, len(shuffled))
	n := len(shuffled)
	for i, hunter := range shuffled {
		if n < 2 {
			break
		}
		target := shuffled[(i+1)%n]
		targetOf[hunter] = target
		hunterOf[target] = hunter
	}

	if err := m.st.ReplaceTargetAssignments(ctx, gameID, targetOf); err != nil {
		return err
	}

	g := &game{targetOf: targetOf, hunterOf: hunterOf}
	m.mu.Lock()
	m.games[gameID] = g
	m.mu.Unlock()
	return nil
}

// Restore rebuilds in-memory state for gameID from the store, used on
// coordinator crash recovery (spec §4.6).
func (m *Manager) Restore(ctx context.Context, gameID int64) error {
	targetOf, err := m.st.ListTargetAssignments(ctx, gameID)
	if err != nil {
		return err
	}
	hunterOf := make(map[string]string, len(targetOf))
	for hunter, target := range targetOf {
		hunterOf[target] = hunter
	}
	g := &game{targetOf: targetOf, hunterOf: hunterOf}
	m.mu.Lock()
	m.games[gameID] = g
	m.mu.Unlock()
	return nil
}

// Discard drops a game's in-memory chain state (spec §4.6, game ending).
func (m *Manager) Discard(gameID int64) {
	m.mu.Lock()
	delete(m.games, gameID)
	m.mu.Unlock()
}

func (m *Manager) gameFor(gameID int64) (*game, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[gameID]
	return g, ok
}

// TargetOf returns hunter's current target, if any.
func (m *Manager) TargetOf(gameID int64, hunter string) (string, bool) {
	g, ok := m.gameFor(gameID)
	if !ok {
		return "", false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.targetOf[hunter]
	return t, ok
}

// HunterOf returns target's current hunter, if any.
func (m *Manager) HunterOf(gameID int64, target string) (string, bool) {
	g, ok := m.gameFor(gameID)
	if !ok {
		return "", false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	h, ok := g.hunterOf[target]
	return h, ok
}

// ChainSize returns the number of live assignment rows for gameID.
func (m *Manager) ChainSize(gameID int64) int {
	g, ok := m.gameFor(gameID)
	if !ok {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.targetOf)
}

// ChainMap returns a snapshot copy of hunter->target, used by spectator
// fan-out and recovery (spec §4.1).
func (m *Manager) ChainMap(gameID int64) map[string]string {
	g, ok := m.gameFor(gameID)
	if !ok {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]string, len(g.targetOf))
	for h, t := range g.targetOf {
		out[h] = t
	}
	return out
}

// ProcessKill validates that hunter's current target is target, then
// rewires the chain around target's removal (spec §4.1). Returns the
// resulting reassignment, or nil if the chain collapsed to nothing (only
// two players were left).
func (m *Manager) ProcessKill(ctx context.Context, gameID int64, hunter, target string) (*Reassignment, error) {
	g, ok := m.gameFor(gameID)
	if !ok {
		return nil, ErrNoAssignment
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	current, ok := g.targetOf[hunter]
	if !ok {
		return nil, ErrNoAssignment
	}
	if current != target {
		return nil, ErrTargetMismatch
	}

	nextTarget, ok := g.targetOf[target]
	if !ok {
		return nil, ErrNoAssignment
	}

	delete(g.targetOf, target)
	delete(g.hunterOf, target)

	if nextTarget == hunter {
		delete(g.targetOf, hunter)
		delete(g.hunterOf, hunter)
		if err := m.persistRemoval(ctx, gameID, hunter, target); err != nil {
			return nil, err
		}
		return nil, nil
	}

	g.targetOf[hunter] = nextTarget
	g.hunterOf[nextTarget] = hunter

	if err := m.persistRewire(ctx, gameID, hunter, target, nextTarget); err != nil {
		return nil, err
	}
	return &Reassignment{Hunter: hunter, NewTarget: nextTarget}, nil
}

// RemoveFromChain handles a non-kill elimination (zone, missed heartbeat,
// failed check-in) for eliminated, per spec §4.1.
func (m *Manager) RemoveFromChain(ctx context.Context, gameID int64, eliminated string) (*Reassignment, error) {
	g, ok := m.gameFor(gameID)
	if !ok {
		return nil, ErrNoAssignment
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	hunter, ok := g.hunterOf[eliminated]
	if !ok {
		return nil, ErrNoAssignment
	}
	exTarget, ok := g.targetOf[eliminated]
	if !ok {
		return nil, ErrNoAssignment
	}

	delete(g.targetOf, eliminated)
	delete(g.hunterOf, eliminated)

	if exTarget == hunter {
		delete(g.targetOf, hunter)
		delete(g.hunterOf, hunter)
		if err := m.persistRemoval(ctx, gameID, hunter, eliminated); err != nil {
			return nil, err
		}
		return nil, nil
	}

	g.targetOf[hunter] = exTarget
	g.hunterOf[exTarget] = hunter

	if err := m.persistRewire(ctx, gameID, hunter, eliminated, exTarget); err != nil {
		return nil, err
	}
	return &Reassignment{Hunter: hunter, NewTarget: exTarget}, nil
}

func (m *Manager) persistRemoval(ctx context.Context, gameID int64, hunter, removed string) error {
	if err := m.st.DeleteTargetAssignment(ctx, gameID, hunter); err != nil {
		return err
	}
	return m.st.DeleteTargetAssignment(ctx, gameID, removed)
}

func (m *Manager) persistRewire(ctx context.Context, gameID int64, hunter, removed, newTarget string) error {
	if err := m.st.DeleteTargetAssignment(ctx, gameID, removed); err != nil {
		return err
	}
	return m.st.SetTargetAssignment(ctx, gameID, hunter, newTarget)
}

// fisherYatesShuffle shuffles addrs in place using crypto/rand.
func fisherYatesShuffle(addrs []string) error {
	for i := len(addrs) - 1; i > 0; i-- {
		jBig, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return err
		}
		j := int(jBig.Int64())
		addrs[i], addrs[j] = addrs[j], addrs[i]
	}
	return nil
}

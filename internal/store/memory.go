package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/chain-assassin/coordinator/internal/models"
)

// MemoryStore is an in-memory Store implementation, used by the process for
// every game when PostgreSQL cannot be reached at startup, and by
// coordinator tests where spinning up a real Postgres instance would be
// overkill — mirroring the teacher's own
// "continue without persisting" fallback mode in cmd/engine/main.go.
type MemoryStore struct {
	mu sync.RWMutex

	games       map[int64]*models.Game
	shrinks     map[int64][]models.ZoneShrink
	players     map[int64]map[string]*models.Player
	assignments map[int64]map[string]string // hunter -> target
	kills       map[int64][]*models.KillRecord
	pings       map[int64]map[string]*models.LocationPing
	heartbeats  map[int64][]*models.HeartbeatScan
	operatorTx  map[string]*models.OperatorTx
	cursor      *models.SyncCursor
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:       make(map[int64]*models.Game),
		shrinks:     make(map[int64][]models.ZoneShrink),
		players:     make(map[int64]map[string]*models.Player),
		assignments: make(map[int64]map[string]string),
		kills:       make(map[int64][]*models.KillRecord),
		pings:       make(map[int64]map[string]*models.LocationPing),
		heartbeats:  make(map[int64][]*models.HeartbeatScan),
		operatorTx:  make(map[string]*models.OperatorTx),
	}
}

func copyGame(g *models.Game) *models.Game {
	c := *g
	return &c
}

func (m *MemoryStore) CreateGame(_ context.Context, g *models.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[g.GameID]; ok {
		return nil
	}
	m.games[g.GameID] = copyGame(g)
	m.players[g.GameID] = make(map[string]*models.Player)
	m.assignments[g.GameID] = make(map[string]string)
	m.pings[g.GameID] = make(map[string]*models.LocationPing)
	return nil
}

func (m *MemoryStore) GetGame(_ context.Context, gameID int64) (*models.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyGame(g), nil
}

func (m *MemoryStore) UpdateGame(_ context.Context, g *models.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[g.GameID]; !ok {
		return ErrNotFound
	}
	m.games[g.GameID] = copyGame(g)
	return nil
}

func (m *MemoryStore) ListGamesByPhase(_ context.Context, phase models.Phase) ([]*models.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Game
	for _, g := range m.games {
		if g.Phase == phase {
			out = append(out, copyGame(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out, nil
}

func (m *MemoryStore) InsertZoneShrinks(_ context.Context, gameID int64, shrinks []models.ZoneShrink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shrinks[gameID] = append([]models.ZoneShrink(nil), shrinks...)
	return nil
}

func (m *MemoryStore) GetZoneShrinks(_ context.Context, gameID int64) ([]models.ZoneShrink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.ZoneShrink(nil), m.shrinks[gameID]...), nil
}

func (m *MemoryStore) InsertPlayer(_ context.Context, p *models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byAddr, ok := m.players[p.GameID]
	if !ok {
		byAddr = make(map[string]*models.Player)
		m.players[p.GameID] = byAddr
	}
	if _, exists := byAddr[p.WalletAddress]; exists {
		return nil
	}
	cp := *p
	byAddr[p.WalletAddress] = &cp
	return nil
}

func (m *MemoryStore) GetPlayer(_ context.Context, gameID int64, address string) (*models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[gameID][address]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) GetPlayerByNumber(_ context.Context, gameID int64, playerNumber int) (*models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.players[gameID] {
		if p.PlayerNumber == playerNumber {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListPlayers(_ context.Context, gameID int64) ([]*models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedPlayers(gameID, false), nil
}

func (m *MemoryStore) ListAlivePlayers(_ context.Context, gameID int64) ([]*models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedPlayers(gameID, true), nil
}

func (m *MemoryStore) sortedPlayers(gameID int64, aliveOnly bool) []*models.Player {
	var out []*models.Player
	for _, p := range m.players[gameID] {
		if aliveOnly && !p.IsAlive {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerNumber < out[j].PlayerNumber })
	return out
}

func (m *MemoryStore) UpdatePlayer(_ context.Context, p *models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byAddr, ok := m.players[p.GameID]
	if !ok {
		return ErrNotFound
	}
	if _, exists := byAddr[p.WalletAddress]; !exists {
		return ErrNotFound
	}
	cp := *p
	byAddr[p.WalletAddress] = &cp
	return nil
}

func (m *MemoryStore) NextPlayerNumber(_ context.Context, gameID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	max := 0
	for _, p := range m.players[gameID] {
		if p.PlayerNumber > max {
			max = p.PlayerNumber
		}
	}
	return max + 1, nil
}

func (m *MemoryStore) ReplaceTargetAssignments(_ context.Context, gameID int64, assignments map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]string, len(assignments))
	for k, v := range assignments {
		cp[k] = v
	}
	m.assignments[gameID] = cp
	return nil
}

func (m *MemoryStore) GetTargetAssignment(_ context.Context, gameID int64, hunter string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	target, ok := m.assignments[gameID][hunter]
	return target, ok, nil
}

func (m *MemoryStore) GetHunterOf(_ context.Context, gameID int64, target string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for hunter, t := range m.assignments[gameID] {
		if t == target {
			return hunter, true, nil
		}
	}
	return "", false, nil
}

func (m *MemoryStore) SetTargetAssignment(_ context.Context, gameID int64, hunter, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assignments[gameID] == nil {
		m.assignments[gameID] = make(map[string]string)
	}
	m.assignments[gameID][hunter] = target
	return nil
}

func (m *MemoryStore) DeleteTargetAssignment(_ context.Context, gameID int64, hunter string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assignments[gameID], hunter)
	return nil
}

func (m *MemoryStore) ListTargetAssignments(_ context.Context, gameID int64) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.assignments[gameID]))
	for k, v := range m.assignments[gameID] {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) DeleteAllTargetAssignments(_ context.Context, gameID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[gameID] = make(map[string]string)
	return nil
}

func (m *MemoryStore) InsertKill(_ context.Context, k *models.KillRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *k
	m.kills[k.GameID] = append(m.kills[k.GameID], &cp)
	return nil
}

func (m *MemoryStore) SetKillTxHash(_ context.Context, gameID int64, hunter, target string, at time.Time, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.kills[gameID] {
		if k.Hunter == hunter && k.Target == target && k.Timestamp.Equal(at) {
			hash, err := chainhash.NewHashFromStr(txHash)
			if err != nil {
				return err
			}
			k.SettlementTxHash = hash
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) UpsertLocationPing(_ context.Context, p *models.LocationPing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byAddr, ok := m.pings[p.GameID]
	if !ok {
		byAddr = make(map[string]*models.LocationPing)
		m.pings[p.GameID] = byAddr
	}
	cp := *p
	byAddr[p.Address] = &cp
	return nil
}

func (m *MemoryStore) GetLatestPing(_ context.Context, gameID int64, address string) (*models.LocationPing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pings[gameID][address]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) ListLatestPings(_ context.Context, gameID int64) ([]*models.LocationPing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.LocationPing
	for _, p := range m.pings[gameID] {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (m *MemoryStore) PruneOldPings(_ context.Context, gameID int64, olderThan time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	for addr, p := range m.pings[gameID] {
		if p.Timestamp.Before(cutoff) {
			delete(m.pings[gameID], addr)
		}
	}
	return nil
}

func (m *MemoryStore) InsertHeartbeatScan(_ context.Context, sc *models.HeartbeatScan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sc
	m.heartbeats[sc.GameID] = append(m.heartbeats[sc.GameID], &cp)
	return nil
}

func (m *MemoryStore) InsertOperatorTx(_ context.Context, tx *models.OperatorTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tx
	m.operatorTx[tx.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateOperatorTx(_ context.Context, tx *models.OperatorTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.operatorTx[tx.ID]; !ok {
		return ErrNotFound
	}
	cp := *tx
	m.operatorTx[tx.ID] = &cp
	return nil
}

func (m *MemoryStore) ListOperatorTxByGame(_ context.Context, gameID int64) ([]*models.OperatorTx, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.OperatorTx
	for _, tx := range m.operatorTx {
		if tx.GameID == gameID {
			cp := *tx
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (m *MemoryStore) GetSyncCursor(_ context.Context) (*models.SyncCursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cursor == nil {
		return nil, ErrNotFound
	}
	cp := *m.cursor
	return &cp, nil
}

func (m *MemoryStore) SetSyncCursor(_ context.Context, cursor models.SyncCursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := cursor
	m.cursor = &cp
	return nil
}

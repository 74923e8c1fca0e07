// Package store defines the typed persistence boundary for the coordinator
// (spec §3/§4 "Store interface") and provides a pgx/v5-backed Postgres
// implementation plus an in-memory implementation used for tests and as the
// fallback when PostgreSQL is unreachable at startup.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/chain-assassin/coordinator/internal/models"
)

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = errors.New("store: not found")

// Store is the full set of typed queries the coordinator needs. A single
// implementation backs every game of a process: PostgresStore, or
// MemoryStore when PostgreSQL cannot be reached at startup. Tests use
// MemoryStore.
type Store interface {
	// Games
	CreateGame(ctx context.Context, g *models.Game) error
	GetGame(ctx context.Context, gameID int64) (*models.Game, error)
	UpdateGame(ctx context.Context, g *models.Game) error
	ListGamesByPhase(ctx context.Context, phase models.Phase) ([]*models.Game, error)

	// Zone shrinks
	InsertZoneShrinks(ctx context.Context, gameID int64, shrinks []models.ZoneShrink) error
	GetZoneShrinks(ctx context.Context, gameID int64) ([]models.ZoneShrink, error)

	// Players
	InsertPlayer(ctx context.Context, p *models.Player) error
	GetPlayer(ctx context.Context, gameID int64, address string) (*models.Player, error)
	GetPlayerByNumber(ctx context.Context, gameID int64, playerNumber int) (*models.Player, error)
	ListPlayers(ctx context.Context, gameID int64) ([]*models.Player, error)
	ListAlivePlayers(ctx context.Context, gameID int64) ([]*models.Player, error)
	UpdatePlayer(ctx context.Context, p *models.Player) error
	NextPlayerNumber(ctx context.Context, gameID int64) (int, error)

	// Target assignments
	ReplaceTargetAssignments(ctx context.Context, gameID int64, assignments map[string]string) error
	GetTargetAssignment(ctx context.Context, gameID int64, hunter string) (target string, ok bool, err error)
	GetHunterOf(ctx context.Context, gameID int64, target string) (hunter string, ok bool, err error)
	SetTargetAssignment(ctx context.Context, gameID int64, hunter, target string) error
	DeleteTargetAssignment(ctx context.Context, gameID int64, hunter string) error
	ListTargetAssignments(ctx context.Context, gameID int64) (map[string]string, error)
	DeleteAllTargetAssignments(ctx context.Context, gameID int64) error

	// Kills
	InsertKill(ctx context.Context, k *models.KillRecord) error
	SetKillTxHash(ctx context.Context, gameID int64, hunter, target string, at time.Time, txHash string) error

	// Location pings
	UpsertLocationPing(ctx context.Context, p *models.LocationPing) error
	GetLatestPing(ctx context.Context, gameID int64, address string) (*models.LocationPing, error)
	ListLatestPings(ctx context.Context, gameID int64) ([]*models.LocationPing, error)
	PruneOldPings(ctx context.Context, gameID int64, olderThan time.Duration) error

	// Heartbeat scans
	InsertHeartbeatScan(ctx context.Context, s *models.HeartbeatScan) error

	// Operator tx outbox
	InsertOperatorTx(ctx context.Context, tx *models.OperatorTx) error
	UpdateOperatorTx(ctx context.Context, tx *models.OperatorTx) error
	ListOperatorTxByGame(ctx context.Context, gameID int64) ([]*models.OperatorTx, error)

	// Sync cursor
	GetSyncCursor(ctx context.Context) (*models.SyncCursor, error)
	SetSyncCursor(ctx context.Context, cursor models.SyncCursor) error
}

package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chain-assassin/coordinator/internal/models"
)

// PostgresStore is the pgx/v5-backed Store implementation, following the
// teacher's internal/db/postgres.go connect/ping/InitSchema shape.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	log.Println("[Store] Successfully connected to PostgreSQL for chain-assassin coordinator")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes schema.sql.
func (s *PostgresStore) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/store/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	if _, err := s.pool.Exec(context.Background(), string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %w", err)
	}

	log.Println("[Store] chain-assassin schema initialized")
	return nil
}

func hashToStr(h *chainhash.Hash) *string {
	if h == nil {
		return nil
	}
	s := h.String()
	return &s
}

func strToHash(s *string) (*chainhash.Hash, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	return chainhash.NewHashFromStr(*s)
}

// --- Games ---

func (s *PostgresStore) CreateGame(ctx context.Context, g *models.Game) error {
	const sql = `
		INSERT INTO games (game_id, title, entry_fee, min_players, max_players,
			registration_deadline, game_date, expiry_deadline, max_duration_seconds,
			zone_center_lat, zone_center_lng, meeting_point_lat, meeting_point_lng,
			bps_1st, bps_2nd, bps_3rd, bps_kills, bps_creator,
			player_count, total_collected, phase, sub_phase,
			started_at, sub_phase_started_at, ended_at,
			winner1, winner2, winner3, top_killer, simulated)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30)
		ON CONFLICT (game_id) DO NOTHING
	`
	var meetingLat, meetingLng *int64
	if g.MeetingPoint != nil {
		meetingLat = &g.MeetingPoint.Lat
		meetingLng = &g.MeetingPoint.Lng
	}
	_, err := s.pool.Exec(ctx, sql,
		g.GameID, g.Title, int64(g.EntryFee), g.MinPlayers, g.MaxPlayers,
		g.RegistrationDeadline, g.GameDate, g.ExpiryDeadline, int64(g.MaxDuration.Seconds()),
		g.ZoneCenter.Lat, g.ZoneCenter.Lng, meetingLat, meetingLng,
		g.PrizeSplit.Bps1st, g.PrizeSplit.Bps2nd, g.PrizeSplit.Bps3rd, g.PrizeSplit.BpsKills, g.PrizeSplit.BpsCreator,
		g.PlayerCount, int64(g.TotalCollected), string(g.Phase), nullableSubPhase(g.SubPhase),
		g.StartedAt, g.SubPhaseStartedAt, g.EndedAt,
		nullableStr(g.Winner1), nullableStr(g.Winner2), nullableStr(g.Winner3), nullableStr(g.TopKiller), g.Simulated,
	)
	return err
}

func nullableStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableSubPhase(sp models.SubPhase) *string {
	if sp == "" {
		return nil
	}
	s := string(sp)
	return &s
}

func (s *PostgresStore) GetGame(ctx context.Context, gameID int64) (*models.Game, error) {
	const sql = `
		SELECT game_id, title, entry_fee, min_players, max_players,
			registration_deadline, game_date, expiry_deadline, max_duration_seconds,
			zone_center_lat, zone_center_lng, meeting_point_lat, meeting_point_lng,
			bps_1st, bps_2nd, bps_3rd, bps_kills, bps_creator,
			player_count, total_collected, phase, sub_phase,
			started_at, sub_phase_started_at, ended_at,
			winner1, winner2, winner3, top_killer, simulated
		FROM games WHERE game_id = $1
	`
	row := s.pool.QueryRow(ctx, sql, gameID)
	return scanGame(row)
}

func scanGame(row pgx.Row) (*models.Game, error) {
	var g models.Game
	var entryFee, totalCollected int64
	var maxDurationSeconds int64
	var subPhase *string
	var meetingLat, meetingLng *int64
	var winner1, winner2, winner3, topKiller *string

	err := row.Scan(
		&g.GameID, &g.Title, &entryFee, &g.MinPlayers, &g.MaxPlayers,
		&g.RegistrationDeadline, &g.GameDate, &g.ExpiryDeadline, &maxDurationSeconds,
		&g.ZoneCenter.Lat, &g.ZoneCenter.Lng, &meetingLat, &meetingLng,
		&g.PrizeSplit.Bps1st, &g.PrizeSplit.Bps2nd, &g.PrizeSplit.Bps3rd, &g.PrizeSplit.BpsKills, &g.PrizeSplit.BpsCreator,
		&g.PlayerCount, &totalCollected, &g.Phase, &subPhase,
		&g.StartedAt, &g.SubPhaseStartedAt, &g.EndedAt,
		&winner1, &winner2, &winner3, &topKiller, &g.Simulated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	g.EntryFee = btcutil.Amount(entryFee)
	g.TotalCollected = btcutil.Amount(totalCollected)
	g.MaxDuration = time.Duration(maxDurationSeconds) * time.Second
	if subPhase != nil {
		g.SubPhase = models.SubPhase(*subPhase)
	}
	if meetingLat != nil && meetingLng != nil {
		g.MeetingPoint = &models.FixedPoint{Lat: *meetingLat, Lng: *meetingLng}
	}
	if winner1 != nil {
		g.Winner1 = *winner1
	}
	if winner2 != nil {
		g.Winner2 = *winner2
	}
	if winner3 != nil {
		g.Winner3 = *winner3
	}
	if topKiller != nil {
		g.TopKiller = *topKiller
	}
	return &g, nil
}

func (s *PostgresStore) UpdateGame(ctx context.Context, g *models.Game) error {
	const sql = `
		UPDATE games SET
			player_count = $2, total_collected = $3, phase = $4, sub_phase = $5,
			started_at = $6, sub_phase_started_at = $7, ended_at = $8,
			winner1 = $9, winner2 = $10, winner3 = $11, top_killer = $12
		WHERE game_id = $1
	`
	_, err := s.pool.Exec(ctx, sql,
		g.GameID, g.PlayerCount, int64(g.TotalCollected), string(g.Phase), nullableSubPhase(g.SubPhase),
		g.StartedAt, g.SubPhaseStartedAt, g.EndedAt,
		nullableStr(g.Winner1), nullableStr(g.Winner2), nullableStr(g.Winner3), nullableStr(g.TopKiller),
	)
	return err
}

func (s *PostgresStore) ListGamesByPhase(ctx context.Context, phase models.Phase) ([]*models.Game, error) {
	const sql = `
		SELECT game_id, title, entry_fee, min_players, max_players,
			registration_deadline, game_date, expiry_deadline, max_duration_seconds,
			zone_center_lat, zone_center_lng, meeting_point_lat, meeting_point_lng,
			bps_1st, bps_2nd, bps_3rd, bps_kills, bps_creator,
			player_count, total_collected, phase, sub_phase,
			started_at, sub_phase_started_at, ended_at,
			winner1, winner2, winner3, top_killer, simulated
		FROM games WHERE phase = $1
	`
	rows, err := s.pool.Query(ctx, sql, string(phase))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []*models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// --- Zone shrinks ---

func (s *PostgresStore) InsertZoneShrinks(ctx context.Context, gameID int64, shrinks []models.ZoneShrink) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const sql = `INSERT INTO zone_shrinks (game_id, at_second, radius_meters) VALUES ($1,$2,$3)
		ON CONFLICT (game_id, at_second) DO UPDATE SET radius_meters = EXCLUDED.radius_meters`
	for _, sh := range shrinks {
		if _, err := tx.Exec(ctx, sql, gameID, sh.AtSecond, sh.RadiusMeters); err != nil {
			return fmt.Errorf("insert zone shrink: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetZoneShrinks(ctx context.Context, gameID int64) ([]models.ZoneShrink, error) {
	const sql = `SELECT game_id, at_second, radius_meters FROM zone_shrinks WHERE game_id = $1 ORDER BY at_second ASC`
	rows, err := s.pool.Query(ctx, sql, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shrinks []models.ZoneShrink
	for rows.Next() {
		var sh models.ZoneShrink
		if err := rows.Scan(&sh.GameID, &sh.AtSecond, &sh.RadiusMeters); err != nil {
			return nil, err
		}
		shrinks = append(shrinks, sh)
	}
	return shrinks, rows.Err()
}

// --- Players ---

func (s *PostgresStore) InsertPlayer(ctx context.Context, p *models.Player) error {
	const sql = `
		INSERT INTO players (game_id, wallet_address, player_number, is_alive, kills,
			eliminated_at, eliminated_by, checked_in, bluetooth_token, last_heartbeat_at, has_claimed)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (game_id, wallet_address) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, sql, p.GameID, p.WalletAddress, p.PlayerNumber, p.IsAlive, p.Kills,
		p.EliminatedAt, nullableStr(p.EliminatedBy), p.CheckedIn, nullableStr(p.BluetoothToken), p.LastHeartbeatAt, p.HasClaimed)
	return err
}

func (s *PostgresStore) GetPlayer(ctx context.Context, gameID int64, address string) (*models.Player, error) {
	const sql = `
		SELECT game_id, wallet_address, player_number, is_alive, kills,
			eliminated_at, eliminated_by, checked_in, bluetooth_token, last_heartbeat_at, has_claimed
		FROM players WHERE game_id = $1 AND wallet_address = $2
	`
	return scanPlayer(s.pool.QueryRow(ctx, sql, gameID, address))
}

func (s *PostgresStore) GetPlayerByNumber(ctx context.Context, gameID int64, playerNumber int) (*models.Player, error) {
	const sql = `
		SELECT game_id, wallet_address, player_number, is_alive, kills,
			eliminated_at, eliminated_by, checked_in, bluetooth_token, last_heartbeat_at, has_claimed
		FROM players WHERE game_id = $1 AND player_number = $2
	`
	return scanPlayer(s.pool.QueryRow(ctx, sql, gameID, playerNumber))
}

func scanPlayer(row pgx.Row) (*models.Player, error) {
	var p models.Player
	var eliminatedBy, bluetoothToken *string
	err := row.Scan(&p.GameID, &p.WalletAddress, &p.PlayerNumber, &p.IsAlive, &p.Kills,
		&p.EliminatedAt, &eliminatedBy, &p.CheckedIn, &bluetoothToken, &p.LastHeartbeatAt, &p.HasClaimed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if eliminatedBy != nil {
		p.EliminatedBy = *eliminatedBy
	}
	if bluetoothToken != nil {
		p.BluetoothToken = *bluetoothToken
	}
	return &p, nil
}

func (s *PostgresStore) ListPlayers(ctx context.Context, gameID int64) ([]*models.Player, error) {
	return s.listPlayers(ctx, gameID, false)
}

func (s *PostgresStore) ListAlivePlayers(ctx context.Context, gameID int64) ([]*models.Player, error) {
	return s.listPlayers(ctx, gameID, true)
}

func (s *PostgresStore) listPlayers(ctx context.Context, gameID int64, aliveOnly bool) ([]*models.Player, error) {
	sql := `
		SELECT game_id, wallet_address, player_number, is_alive, kills,
			eliminated_at, eliminated_by, checked_in, bluetooth_token, last_heartbeat_at, has_claimed
		FROM players WHERE game_id = $1
	`
	if aliveOnly {
		sql += ` AND is_alive = TRUE`
	}
	sql += ` ORDER BY player_number ASC`

	rows, err := s.pool.Query(ctx, sql, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (s *PostgresStore) UpdatePlayer(ctx context.Context, p *models.Player) error {
	const sql = `
		UPDATE players SET is_alive=$3, kills=$4, eliminated_at=$5, eliminated_by=$6,
			checked_in=$7, bluetooth_token=$8, last_heartbeat_at=$9, has_claimed=$10
		WHERE game_id=$1 AND wallet_address=$2
	`
	_, err := s.pool.Exec(ctx, sql, p.GameID, p.WalletAddress, p.IsAlive, p.Kills, p.EliminatedAt,
		nullableStr(p.EliminatedBy), p.CheckedIn, nullableStr(p.BluetoothToken), p.LastHeartbeatAt, p.HasClaimed)
	return err
}

func (s *PostgresStore) NextPlayerNumber(ctx context.Context, gameID int64) (int, error) {
	const sql = `SELECT COALESCE(MAX(player_number), 0) + 1 FROM players WHERE game_id = $1`
	var next int
	if err := s.pool.QueryRow(ctx, sql, gameID).Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

// --- Target assignments ---

func (s *PostgresStore) ReplaceTargetAssignments(ctx context.Context, gameID int64, assignments map[string]string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM target_assignments WHERE game_id = $1`, gameID); err != nil {
		return err
	}
	now := time.Now()
	for hunter, target := range assignments {
		if _, err := tx.Exec(ctx, `INSERT INTO target_assignments (game_id, hunter, target, assigned_at) VALUES ($1,$2,$3,$4)`,
			gameID, hunter, target, now); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetTargetAssignment(ctx context.Context, gameID int64, hunter string) (string, bool, error) {
	const sql = `SELECT target FROM target_assignments WHERE game_id = $1 AND hunter = $2`
	var target string
	err := s.pool.QueryRow(ctx, sql, gameID, hunter).Scan(&target)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return target, true, nil
}

func (s *PostgresStore) GetHunterOf(ctx context.Context, gameID int64, target string) (string, bool, error) {
	const sql = `SELECT hunter FROM target_assignments WHERE game_id = $1 AND target = $2`
	var hunter string
	err := s.pool.QueryRow(ctx, sql, gameID, target).Scan(&hunter)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hunter, true, nil
}

func (s *PostgresStore) SetTargetAssignment(ctx context.Context, gameID int64, hunter, target string) error {
	const sql = `
		INSERT INTO target_assignments (game_id, hunter, target, assigned_at) VALUES ($1,$2,$3,$4)
		ON CONFLICT (game_id, hunter) DO UPDATE SET target = EXCLUDED.target, assigned_at = EXCLUDED.assigned_at
	`
	_, err := s.pool.Exec(ctx, sql, gameID, hunter, target, time.Now())
	return err
}

func (s *PostgresStore) DeleteTargetAssignment(ctx context.Context, gameID int64, hunter string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM target_assignments WHERE game_id = $1 AND hunter = $2`, gameID, hunter)
	return err
}

func (s *PostgresStore) ListTargetAssignments(ctx context.Context, gameID int64) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT hunter, target FROM target_assignments WHERE game_id = $1`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var hunter, target string
		if err := rows.Scan(&hunter, &target); err != nil {
			return nil, err
		}
		result[hunter] = target
	}
	return result, rows.Err()
}

func (s *PostgresStore) DeleteAllTargetAssignments(ctx context.Context, gameID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM target_assignments WHERE game_id = $1`, gameID)
	return err
}

// --- Kills ---

func (s *PostgresStore) InsertKill(ctx context.Context, k *models.KillRecord) error {
	const sql = `
		INSERT INTO kills (game_id, hunter, target, ts, hunter_lat, hunter_lng, target_lat, target_lng, distance_meters, settlement_tx_hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`
	_, err := s.pool.Exec(ctx, sql, k.GameID, k.Hunter, k.Target, k.Timestamp,
		k.HunterLat, k.HunterLng, k.TargetLat, k.TargetLng, k.DistanceMeters, hashToStr(k.SettlementTxHash))
	return err
}

func (s *PostgresStore) SetKillTxHash(ctx context.Context, gameID int64, hunter, target string, at time.Time, txHash string) error {
	const sql = `UPDATE kills SET settlement_tx_hash = $5 WHERE game_id = $1 AND hunter = $2 AND target = $3 AND ts = $4`
	_, err := s.pool.Exec(ctx, sql, gameID, hunter, target, at, txHash)
	return err
}

// --- Location pings ---

func (s *PostgresStore) UpsertLocationPing(ctx context.Context, p *models.LocationPing) error {
	const sql = `
		INSERT INTO location_pings (game_id, address, lat, lng, ts, in_zone) VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (game_id, address) DO UPDATE SET lat=EXCLUDED.lat, lng=EXCLUDED.lng, ts=EXCLUDED.ts, in_zone=EXCLUDED.in_zone
	`
	_, err := s.pool.Exec(ctx, sql, p.GameID, p.Address, p.Lat, p.Lng, p.Timestamp, p.InZone)
	return err
}

func (s *PostgresStore) GetLatestPing(ctx context.Context, gameID int64, address string) (*models.LocationPing, error) {
	const sql = `SELECT game_id, address, lat, lng, ts, in_zone FROM location_pings WHERE game_id = $1 AND address = $2`
	var p models.LocationPing
	err := s.pool.QueryRow(ctx, sql, gameID, address).Scan(&p.GameID, &p.Address, &p.Lat, &p.Lng, &p.Timestamp, &p.InZone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) ListLatestPings(ctx context.Context, gameID int64) ([]*models.LocationPing, error) {
	rows, err := s.pool.Query(ctx, `SELECT game_id, address, lat, lng, ts, in_zone FROM location_pings WHERE game_id = $1`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pings []*models.LocationPing
	for rows.Next() {
		var p models.LocationPing
		if err := rows.Scan(&p.GameID, &p.Address, &p.Lat, &p.Lng, &p.Timestamp, &p.InZone); err != nil {
			return nil, err
		}
		pings = append(pings, &p)
	}
	return pings, rows.Err()
}

func (s *PostgresStore) PruneOldPings(ctx context.Context, gameID int64, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	_, err := s.pool.Exec(ctx, `DELETE FROM location_pings WHERE game_id = $1 AND ts < $2`, gameID, cutoff)
	return err
}

// --- Heartbeat scans ---

func (s *PostgresStore) InsertHeartbeatScan(ctx context.Context, sc *models.HeartbeatScan) error {
	const sql = `INSERT INTO heartbeat_scans (game_id, scanner, scanned, ts) VALUES ($1,$2,$3,$4)`
	_, err := s.pool.Exec(ctx, sql, sc.GameID, sc.Scanner, sc.Scanned, sc.Timestamp)
	return err
}

// --- Operator tx outbox ---

func (s *PostgresStore) InsertOperatorTx(ctx context.Context, tx *models.OperatorTx) error {
	const sql = `
		INSERT INTO operator_tx (id, game_id, action, status, tx_hash, submitted_at, confirmed_at, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`
	_, err := s.pool.Exec(ctx, sql, tx.ID, tx.GameID, string(tx.Action), string(tx.Status),
		hashToStr(tx.TxHash), tx.SubmittedAt, tx.ConfirmedAt, nullableStr(tx.Error))
	return err
}

func (s *PostgresStore) UpdateOperatorTx(ctx context.Context, tx *models.OperatorTx) error {
	const sql = `UPDATE operator_tx SET status=$2, tx_hash=$3, confirmed_at=$4, error=$5 WHERE id=$1`
	_, err := s.pool.Exec(ctx, sql, tx.ID, string(tx.Status), hashToStr(tx.TxHash), tx.ConfirmedAt, nullableStr(tx.Error))
	return err
}

func (s *PostgresStore) ListOperatorTxByGame(ctx context.Context, gameID int64) ([]*models.OperatorTx, error) {
	const sql = `
		SELECT id, game_id, action, status, tx_hash, submitted_at, confirmed_at, error
		FROM operator_tx WHERE game_id = $1 ORDER BY submitted_at ASC
	`
	rows, err := s.pool.Query(ctx, sql, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*models.OperatorTx
	for rows.Next() {
		var tx models.OperatorTx
		var action, status string
		var txHashStr, errStr *string
		if err := rows.Scan(&tx.ID, &tx.GameID, &action, &status, &txHashStr, &tx.SubmittedAt, &tx.ConfirmedAt, &errStr); err != nil {
			return nil, err
		}
		tx.Action = models.OperatorAction(action)
		tx.Status = models.OperatorTxStatus(status)
		if errStr != nil {
			tx.Error = *errStr
		}
		hash, err := strToHash(txHashStr)
		if err != nil {
			return nil, err
		}
		tx.TxHash = hash
		txs = append(txs, &tx)
	}
	return txs, rows.Err()
}

// --- Sync cursor ---

func (s *PostgresStore) GetSyncCursor(ctx context.Context) (*models.SyncCursor, error) {
	const sql = `SELECT block_height, block_hash FROM sync_cursor WHERE id = TRUE`
	var c models.SyncCursor
	var hashStr string
	err := s.pool.QueryRow(ctx, sql).Scan(&c.BlockHeight, &hashStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	hash, err := chainhash.NewHashFromStr(hashStr)
	if err != nil {
		return nil, err
	}
	c.BlockHash = *hash
	return &c, nil
}

func (s *PostgresStore) SetSyncCursor(ctx context.Context, cursor models.SyncCursor) error {
	const sql = `
		INSERT INTO sync_cursor (id, block_height, block_hash) VALUES (TRUE, $1, $2)
		ON CONFLICT (id) DO UPDATE SET block_height = EXCLUDED.block_height, block_hash = EXCLUDED.block_hash
	`
	_, err := s.pool.Exec(ctx, sql, cursor.BlockHeight, cursor.BlockHash.String())
	return err
}

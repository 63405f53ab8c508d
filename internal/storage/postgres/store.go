package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/abdulrahman305/qenex-defi-sub000/internal/engine"
	"github.com/abdulrahman305/qenex-defi-sub000/internal/fixedpoint"
	"github.com/abdulrahman305/qenex-defi-sub000/internal/model"
)

const (
	connectRetries = 5
	connectBackoff = 500 * time.Millisecond
)

// Store provides Postgres persistence for pools, positions, events and
// per-pool metrics. It implements the engine's commit sink: one transaction
// per applied operation. Connection setup is retried; commits never are,
// because a failed commit may still have landed and must not be re-applied.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewStore(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pg dsn: %w", err)
	}
	err = withRetry(ctx, connectRetries, connectBackoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("postgres ping failed", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables the store writes to.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS amm_pools (
			pool_id      TEXT PRIMARY KEY,
			token0       TEXT NOT NULL,
			token1       TEXT NOT NULL,
			fee_rate_bps INTEGER NOT NULL,
			reserve0     NUMERIC(39,0) NOT NULL,
			reserve1     NUMERIC(39,0) NOT NULL,
			total_shares NUMERIC(39,0) NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS amm_positions (
			pool_id    TEXT NOT NULL,
			provider   TEXT NOT NULL,
			shares     NUMERIC(39,0) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (pool_id, provider)
		);
		CREATE TABLE IF NOT EXISTS amm_events (
			seq        BIGINT PRIMARY KEY,
			op         TEXT NOT NULL,
			pool_id    TEXT NOT NULL,
			op_hash    TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL,
			data       JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS amm_events_pool_idx ON amm_events (pool_id, seq);
		CREATE TABLE IF NOT EXISTS amm_state (
			name       TEXT PRIMARY KEY,
			last_seq   BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS amm_pool_metrics (
			pool_id         TEXT PRIMARY KEY,
			token0          TEXT NOT NULL,
			token1          TEXT NOT NULL,
			swap_count      BIGINT NOT NULL,
			liquidity_adds  BIGINT NOT NULL,
			liquidity_burns BIGINT NOT NULL,
			volume_in0      NUMERIC(39,0) NOT NULL,
			volume_in1      NUMERIC(39,0) NOT NULL,
			fees0           NUMERIC(39,0) NOT NULL,
			fees1           NUMERIC(39,0) NOT NULL,
			reserve0        NUMERIC(39,0) NOT NULL,
			reserve1        NUMERIC(39,0) NOT NULL,
			total_shares    NUMERIC(39,0) NOT NULL,
			last_k          NUMERIC(78,0) NOT NULL,
			last_seq        BIGINT NOT NULL,
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Commit writes one applied operation in a single transaction: the pool row,
// the affected position row and the event row.
func (s *Store) Commit(ctx context.Context, c engine.Commit) error {
	appliedAt, err := time.Parse(time.RFC3339Nano, c.Event.AppliedAt)
	if err != nil {
		return fmt.Errorf("parse event timestamp: %w", err)
	}
	data, err := json.Marshal(c.Event.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO amm_pools (
			pool_id, token0, token1, fee_rate_bps, reserve0, reserve1, total_shares, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (pool_id)
		DO UPDATE SET
			reserve0 = EXCLUDED.reserve0,
			reserve1 = EXCLUDED.reserve1,
			total_shares = EXCLUDED.total_shares,
			updated_at = now()
	`,
		c.Pool.ID,
		c.Pool.Token0,
		c.Pool.Token1,
		int32(c.Pool.FeeRateBps),
		c.Pool.Reserve0.String(),
		c.Pool.Reserve1.String(),
		c.Pool.TotalShares.String(),
	)
	if err != nil {
		return fmt.Errorf("upsert pool: %w", err)
	}

	if c.Position != nil {
		if c.RemovePosition {
			_, err = tx.Exec(ctx, `
				DELETE FROM amm_positions WHERE pool_id = $1 AND provider = $2
			`, c.Position.PoolID, c.Position.Provider)
		} else {
			_, err = tx.Exec(ctx, `
				INSERT INTO amm_positions (pool_id, provider, shares, updated_at)
				VALUES ($1, $2, $3, now())
				ON CONFLICT (pool_id, provider)
				DO UPDATE SET shares = EXCLUDED.shares, updated_at = now()
			`, c.Position.PoolID, c.Position.Provider, c.Position.Shares.String())
		}
		if err != nil {
			return fmt.Errorf("write position: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO amm_events (seq, op, pool_id, op_hash, applied_at, data)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		int64(c.Event.Seq),
		c.Event.Op,
		c.Event.PoolID,
		c.Event.OpHash,
		appliedAt,
		data,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return tx.Commit(ctx)
}

// LoadPools returns every persisted pool for engine restore.
func (s *Store) LoadPools(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_id, token0, token1, fee_rate_bps,
		       reserve0::text, reserve1::text, total_shares::text
		FROM amm_pools ORDER BY pool_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query pools: %w", err)
	}
	defer rows.Close()

	var pools []model.Pool
	for rows.Next() {
		var (
			pool                  model.Pool
			feeRate               int32
			res0, res1, totShares string
		)
		if err := rows.Scan(&pool.ID, &pool.Token0, &pool.Token1, &feeRate, &res0, &res1, &totShares); err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		pool.FeeRateBps = uint16(feeRate)
		if pool.Reserve0, err = fixedpoint.Parse(res0); err != nil {
			return nil, fmt.Errorf("pool %s reserve0: %w", pool.ID, err)
		}
		if pool.Reserve1, err = fixedpoint.Parse(res1); err != nil {
			return nil, fmt.Errorf("pool %s reserve1: %w", pool.ID, err)
		}
		if pool.TotalShares, err = fixedpoint.Parse(totShares); err != nil {
			return nil, fmt.Errorf("pool %s total shares: %w", pool.ID, err)
		}
		pools = append(pools, pool)
	}
	return pools, rows.Err()
}

// LoadPositions returns every persisted position for engine restore.
func (s *Store) LoadPositions(ctx context.Context) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_id, provider, shares::text FROM amm_positions ORDER BY pool_id, provider
	`)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		var (
			pos    model.Position
			shares string
		)
		if err := rows.Scan(&pos.PoolID, &pos.Provider, &shares); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		if pos.Shares, err = fixedpoint.Parse(shares); err != nil {
			return nil, fmt.Errorf("position %s/%s shares: %w", pos.PoolID, pos.Provider, err)
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

// LoadLastSeq returns the highest committed event sequence, zero when none.
func (s *Store) LoadLastSeq(ctx context.Context) (uint64, error) {
	var last int64
	row := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM amm_events`)
	if err := row.Scan(&last); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return uint64(last), nil
}

// UpsertPoolMetrics inserts or updates accumulated per-pool metrics.
func (s *Store) UpsertPoolMetrics(ctx context.Context, metrics []model.PoolMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO amm_pool_metrics (
				pool_id, token0, token1, swap_count, liquidity_adds, liquidity_burns,
				volume_in0, volume_in1, fees0, fees1, reserve0, reserve1, total_shares,
				last_k, last_seq, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,now())
			ON CONFLICT (pool_id)
			DO UPDATE SET
				swap_count = EXCLUDED.swap_count,
				liquidity_adds = EXCLUDED.liquidity_adds,
				liquidity_burns = EXCLUDED.liquidity_burns,
				volume_in0 = EXCLUDED.volume_in0,
				volume_in1 = EXCLUDED.volume_in1,
				fees0 = EXCLUDED.fees0,
				fees1 = EXCLUDED.fees1,
				reserve0 = EXCLUDED.reserve0,
				reserve1 = EXCLUDED.reserve1,
				total_shares = EXCLUDED.total_shares,
				last_k = EXCLUDED.last_k,
				last_seq = EXCLUDED.last_seq,
				updated_at = now()
		`,
			m.PoolID,
			m.Token0,
			m.Token1,
			int64(m.SwapCount),
			int64(m.LiquidityAdds),
			int64(m.LiquidityBurns),
			m.VolumeIn0.String(),
			m.VolumeIn1.String(),
			m.Fees0.String(),
			m.Fees1.String(),
			m.Reserve0.String(),
			m.Reserve1.String(),
			m.TotalShares.String(),
			m.LastK,
			int64(m.LastSeq),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert pool metrics: %w", err)
		}
	}
	return nil
}

// LoadPoolMetrics returns every persisted metrics row so a resumed stats run
// can continue accumulating instead of refolding the whole log.
func (s *Store) LoadPoolMetrics(ctx context.Context) ([]model.PoolMetrics, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_id, token0, token1, swap_count, liquidity_adds, liquidity_burns,
		       volume_in0::text, volume_in1::text, fees0::text, fees1::text,
		       reserve0::text, reserve1::text, total_shares::text, last_k::text, last_seq
		FROM amm_pool_metrics ORDER BY pool_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query pool metrics: %w", err)
	}
	defer rows.Close()

	var metrics []model.PoolMetrics
	for rows.Next() {
		var (
			m                       model.PoolMetrics
			swaps, adds, burns, seq int64
			vol0, vol1, fee0, fee1  string
			res0, res1, shares      string
		)
		err := rows.Scan(&m.PoolID, &m.Token0, &m.Token1, &swaps, &adds, &burns,
			&vol0, &vol1, &fee0, &fee1, &res0, &res1, &shares, &m.LastK, &seq)
		if err != nil {
			return nil, fmt.Errorf("scan pool metrics: %w", err)
		}
		m.SwapCount = uint64(swaps)
		m.LiquidityAdds = uint64(adds)
		m.LiquidityBurns = uint64(burns)
		m.LastSeq = uint64(seq)
		if m.VolumeIn0, err = fixedpoint.Parse(vol0); err != nil {
			return nil, fmt.Errorf("metrics %s volume_in0: %w", m.PoolID, err)
		}
		if m.VolumeIn1, err = fixedpoint.Parse(vol1); err != nil {
			return nil, fmt.Errorf("metrics %s volume_in1: %w", m.PoolID, err)
		}
		if m.Fees0, err = fixedpoint.Parse(fee0); err != nil {
			return nil, fmt.Errorf("metrics %s fees0: %w", m.PoolID, err)
		}
		if m.Fees1, err = fixedpoint.Parse(fee1); err != nil {
			return nil, fmt.Errorf("metrics %s fees1: %w", m.PoolID, err)
		}
		if m.Reserve0, err = fixedpoint.Parse(res0); err != nil {
			return nil, fmt.Errorf("metrics %s reserve0: %w", m.PoolID, err)
		}
		if m.Reserve1, err = fixedpoint.Parse(res1); err != nil {
			return nil, fmt.Errorf("metrics %s reserve1: %w", m.PoolID, err)
		}
		if m.TotalShares, err = fixedpoint.Parse(shares); err != nil {
			return nil, fmt.Errorf("metrics %s total_shares: %w", m.PoolID, err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// LoadState returns last_seq for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var seq int64
	row := s.pool.QueryRow(ctx, `SELECT last_seq FROM amm_state WHERE name=$1`, name)
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(seq), true, nil
}

// SaveState upserts last_seq for a name.
func (s *Store) SaveState(ctx context.Context, name string, seq uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO amm_state (name, last_seq, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_seq = EXCLUDED.last_seq, updated_at = now()
	`, name, int64(seq))
	return err
}
